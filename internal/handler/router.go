package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/cookfeed/internal/middleware"
)

// HealthChecker はDB疎通確認のインターフェース。*sql.DBが実装する。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ヘルスチェック
	HealthChecker HealthChecker

	// ミドルウェア依存
	SessionFinder     middleware.SessionFinder
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter

	// メトリクス（いずれもnilを許容する）
	MetricsMiddleware func(next http.Handler) http.Handler
	MetricsHandler    http.Handler

	// CSRF保護。nilの場合は無効（テスト用）。
	CSRF *middleware.CSRFConfig

	// 閲覧者解決
	ViewerResolver   ViewerResolver
	UsernameResolver UsernameResolver

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// フィード
	FeedService FeedServiceInterface
	// FeedPageSize が0以下の場合はデフォルトのページサイズを使用する。
	FeedPageSize int
	// UserSearchLimit が0以下の場合はサービス層のデフォルト件数を使用する。
	UserSearchLimit int

	// 投稿
	PostService PostServiceInterface
	LinkPreview LinkPreviewInterface

	// コメント
	CommentService CommentServiceInterface

	// ユーザー
	UserService UserServiceInterface

	// 通知
	NotificationService NotificationServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	CORSMiddleware → (Optional)SessionMiddleware → RateLimitMiddleware(GeneralMiddleware)
//
// 認証ルート（/auth/*）はミドルウェアチェーンの外に配置する。
// フィード・公開投稿・プロフィールの閲覧系エンドポイントは未ログインでも
// アクセスできるため、OptionalSessionMiddlewareを使用する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	// 全ルートに効くミドルウェア。Recoveryを最外層に置き、
	// panic発生時もアクセスログとメトリクスが記録されるようにする。
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(slog.Default()))
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewSecurityHeadersMiddleware())

	if deps.MetricsMiddleware != nil {
		r.Use(deps.MetricsMiddleware)
	}

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig)
	feedHandler := NewFeedHandler(deps.FeedService, deps.ViewerResolver)
	if deps.FeedPageSize > 0 {
		feedHandler.pageSize = deps.FeedPageSize
	}
	if deps.UserSearchLimit > 0 {
		feedHandler.searchLimit = deps.UserSearchLimit
	}
	postHandler := NewPostHandler(deps.PostService, deps.ViewerResolver, deps.UsernameResolver, deps.LinkPreview)
	commentHandler := NewCommentHandler(deps.CommentService, deps.ViewerResolver)
	userHandler := NewUserHandler(deps.UserService, deps.ViewerResolver)
	notificationHandler := NewNotificationHandler(deps.NotificationService, deps.ViewerResolver)

	// --- 認証不要のルート ---

	// ヘルスチェック（DockerヘルスチェックとLBの死活監視用）
	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		if deps.HealthChecker != nil {
			if err := deps.HealthChecker.PingContext(req.Context()); err != nil {
				writeJSONResponse(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
				return
			}
		}
		writeJSONResponse(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Prometheusスクレイプエンドポイント
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	// 認証ルート（OAuthフロー）
	r.Route("/auth", func(r chi.Router) {
		r.Get("/google/login", authHandler.Login)
		r.Get("/google/callback", authHandler.Callback)
		r.Post("/logout", authHandler.Logout)
		r.Get("/me", authHandler.Me)
	})

	// --- 未ログインでも閲覧できるルート ---
	// セッションがあれば閲覧者として解決し、なければ匿名として扱う。
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewOptionalSessionMiddleware(deps.SessionFinder))

		// フィード
		r.Get("/api/feed/for-you", feedHandler.ForYou)
		r.Get("/api/feed/following", feedHandler.Following)
		r.Get("/api/discover", feedHandler.Discover)

		// ユーザー検索・プロフィール
		r.Get("/api/users/search", feedHandler.SearchUsers)
		r.Get("/api/users/{username}", userHandler.GetProfile)
		r.Get("/api/users/{username}/posts", postHandler.ListByAuthor)

		// 投稿閲覧
		r.Get("/api/posts/{postID}", postHandler.Get)
		r.Get("/api/posts/{postID}/comments", commentHandler.List)
	})

	// CSRFトークン取得（SPAが状態変更リクエスト前に呼び出す）
	if deps.CSRF != nil {
		r.Method(http.MethodGet, "/api/csrf-token", middleware.NewCSRFTokenHandler(*deps.CSRF))
	}

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: CSRF → Session → RateLimit(General)
	r.Group(func(r chi.Router) {
		if deps.CSRF != nil {
			r.Use(middleware.NewCSRFMiddleware(*deps.CSRF))
		}
		r.Use(middleware.NewSessionMiddleware(deps.SessionFinder))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// 投稿管理
		r.Route("/api/posts", func(r chi.Router) {
			// POST /api/posts - 投稿作成（作成専用レート制限を追加）
			r.With(deps.RateLimiter.PostCreationMiddleware()).Post("/", postHandler.Create)

			// POST /api/posts/preview - 参照元URLのプレビュー取得
			r.Post("/preview", postHandler.FetchPreview)

			r.Route("/{postID}", func(r chi.Router) {
				r.Put("/", postHandler.Update)
				r.Delete("/", postHandler.Delete)
				r.Post("/like", postHandler.ToggleLike)
				r.Post("/save", postHandler.ToggleSave)
				r.Post("/comments", commentHandler.Add)
			})
		})

		// コメント削除
		r.Delete("/api/comments/{commentID}", commentHandler.Delete)

		// 保存済み・コレクション管理
		r.Get("/api/saved", postHandler.ListSaved)
		r.Route("/api/collections", func(r chi.Router) {
			r.Post("/", postHandler.CreateCollection)
			r.Get("/", postHandler.ListCollections)
			r.Delete("/{collectionID}", postHandler.DeleteCollection)
		})

		// フォロー・親しい友達
		r.Route("/api/users/{username}", func(r chi.Router) {
			r.Post("/follow", userHandler.Follow)
			r.Delete("/follow", userHandler.Unfollow)
			r.Post("/close-friend", userHandler.AddCloseFriend)
			r.Delete("/close-friend", userHandler.RemoveCloseFriend)
		})

		// 自分のアカウント管理
		r.Route("/api/me", func(r chi.Router) {
			r.Put("/profile", userHandler.UpdateProfile)
			r.Get("/close-friends", userHandler.ListCloseFriends)
			r.Delete("/", userHandler.Withdraw)
		})

		// 通知
		r.Route("/api/notifications", func(r chi.Router) {
			r.Get("/", notificationHandler.List)
			r.Post("/{notificationID}/read", notificationHandler.MarkRead)
			r.Post("/read-all", notificationHandler.MarkAllRead)
		})
	})

	return r
}
