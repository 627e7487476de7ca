// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/hitoshi/cookfeed/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByUsername はユーザー名でユーザーを検索する。見つからない場合はnilを返す。
	FindByUsername(ctx context.Context, username string) (*model.User, error)

	// CreateWithIdentity はユーザーとidentityを同一トランザクションで作成する。
	CreateWithIdentity(ctx context.Context, user *model.User, identity *model.Identity) error

	// UpdateProfile はプロフィール項目（表示名、自己紹介、非公開フラグ等）を更新する。
	UpdateProfile(ctx context.Context, user *model.User) error

	// Search はトークン化されたクエリでユーザーを検索する。
	// 各トークンはusername・first_name・last_nameのいずれかに部分一致する必要があり（AND）、
	// rawQueryはフルネーム連結（first_name || ' ' || last_name）への部分一致にも使用される。
	// 結果はusername、last_name、first_nameの順でソートされる。
	Search(ctx context.Context, rawQuery string, tokens []string, limit int) ([]*model.User, error)

	// DeleteByID は指定IDのユーザーを削除する。
	// 関連するidentities、sessions等はCASCADE削除される。
	DeleteByID(ctx context.Context, id string) error
}

// IdentityRepository は外部IdP紐付け情報の永続化インターフェース。
type IdentityRepository interface {
	// FindByProviderAndProviderUserID はproviderとprovider_user_idでidentityを検索する。
	// 見つからない場合はnilを返す。
	FindByProviderAndProviderUserID(ctx context.Context, provider, providerUserID string) (*model.Identity, error)
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteByUserID は指定ユーザーの全セッションを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
}

// PostRepository はレシピ投稿データの永続化インターフェース。
// 一覧系メソッドは投稿者・タグ・材料・いいね数をJOIN済みの読み取りモデルを返し、
// published_atがnil（下書き）の投稿を一切含めない。
// 並び順は常にpublished_at降順、created_at降順（普遍的なフォールバック順序）。
type PostRepository interface {
	// FindByID は指定IDの投稿を取得する。下書きも対象。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.RecipePost, error)

	// ListPublished は公開済み投稿の全候補集合を新着順で返す。
	ListPublished(ctx context.Context) ([]*model.RecipePost, error)

	// ListPublishedByAuthors は指定した投稿者の公開済み投稿を新着順で返す。
	// authorIDsが空の場合は空スライスを返す。
	ListPublishedByAuthors(ctx context.Context, authorIDs []string) ([]*model.RecipePost, error)

	// ListByAuthor は投稿者の投稿一覧を返す。includeDraftsがtrueの場合は下書きも含む。
	ListByAuthor(ctx context.Context, authorID string, includeDrafts bool) ([]*model.RecipePost, error)

	// Create は投稿と材料を同一トランザクションで作成する。
	Create(ctx context.Context, post *model.RecipePost) error

	// Update は投稿本体を更新し、材料を洗い替えする。
	Update(ctx context.Context, post *model.RecipePost) error

	// Delete は指定IDの投稿を削除する。関連レコードはCASCADE削除される。
	Delete(ctx context.Context, id string) error

	// ListNeedingSourcePreview はsource_urlが設定済みでプレビュー未取得の投稿を返す。
	ListNeedingSourcePreview(ctx context.Context, limit int) ([]*model.RecipePost, error)

	// UpdateSourcePreview はリンクプレビューの取得結果を保存する。
	// 取得失敗時もfetchedAtを記録して再試行の対象から外す。
	UpdateSourcePreview(ctx context.Context, postID, sourceTitle string, fetchedAt time.Time) error
}

// Relationships は閲覧者から見た関係集合のスナップショット。
// 一括可視性フィルタが投稿ごとのクエリ（N+1）を避けるために1回で読み込む。
type Relationships struct {
	// Following は閲覧者がフォローしている投稿者IDの集合。
	Following map[string]bool
	// CloseFriendOf は閲覧者を親しい友達に指定している投稿者IDの集合。
	CloseFriendOf map[string]bool
}

// RelationRepository はフォロー・親しい友達エッジの永続化インターフェース。
type RelationRepository interface {
	// ViewerRelationships は閲覧者の関係集合を一括で読み込む。
	// viewerIDが空の場合は空の集合を返す。
	ViewerRelationships(ctx context.Context, viewerID string) (*Relationships, error)

	// IsFollowing はfollowerがauthorをフォローしているかを返す。
	IsFollowing(ctx context.Context, followerID, authorID string) (bool, error)

	// IsCloseFriend はownerがfriendを親しい友達に指定しているかを返す。
	IsCloseFriend(ctx context.Context, ownerID, friendID string) (bool, error)

	// FollowedAuthorIDs はユーザーがフォローしている投稿者IDの一覧を返す。
	FollowedAuthorIDs(ctx context.Context, userID string) ([]string, error)

	// CreateFollow はフォローエッジを作成する。重複時は何もせずfalseを返す。
	CreateFollow(ctx context.Context, follow *model.Follow) (bool, error)

	// DeleteFollow はフォローエッジを削除する。
	DeleteFollow(ctx context.Context, followerID, authorID string) error

	// ListFollowers はauthorのフォロワー一覧を返す。
	ListFollowers(ctx context.Context, authorID string) ([]*model.User, error)

	// ListFollowing はuserがフォローしているユーザー一覧を返す。
	ListFollowing(ctx context.Context, userID string) ([]*model.User, error)

	// CreateCloseFriend は親しい友達エッジを作成する。重複時は何もせずfalseを返す。
	CreateCloseFriend(ctx context.Context, cf *model.CloseFriend) (bool, error)

	// DeleteCloseFriend は親しい友達エッジを削除する。
	DeleteCloseFriend(ctx context.Context, ownerID, friendID string) error

	// ListCloseFriends はownerの親しい友達一覧を返す。
	ListCloseFriends(ctx context.Context, ownerID string) ([]*model.User, error)
}

// EngagementRepository はいいね・保存データの永続化インターフェース。
// トグル操作は投稿のキャッシュカウンタを同一トランザクション内の
// 単一行UPDATEで更新し、並行トグルによるロストアップデートを防ぐ。
type EngagementRepository interface {
	// ToggleLike はいいねをトグルし、トグル後の状態（いいね済みならtrue）を返す。
	ToggleLike(ctx context.Context, userID, postID string) (bool, error)

	// ToggleSave は保存をトグルし、トグル後の状態（保存済みならtrue）を返す。
	// collectionIDが空の場合はデフォルトコレクションに保存する。
	ToggleSave(ctx context.Context, userID, postID, collectionID string) (bool, error)

	// ListLikedPosts はユーザーがいいねした投稿をいいね日時の昇順で返す。
	// タグ・投稿者JOIN済み。パーソナライズ（好みタグ抽出）に使用する。
	ListLikedPosts(ctx context.Context, userID string) ([]*model.RecipePost, error)

	// ListSavedPosts はユーザーが保存した投稿を保存日時の降順で返す。
	// collectionIDが空の場合は全コレクションを対象とする。
	ListSavedPosts(ctx context.Context, userID, collectionID string) ([]*model.RecipePost, error)
}

// CollectionRepository は保存コレクションの永続化インターフェース。
type CollectionRepository interface {
	// Create はコレクションを作成する。
	Create(ctx context.Context, collection *model.Collection) error
	// FindByID は指定IDのコレクションを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Collection, error)
	// ListByOwner は所有者のコレクション一覧を投稿数付きで返す。
	ListByOwner(ctx context.Context, ownerID string) ([]*model.Collection, error)
	// Delete は指定IDのコレクションを削除する。保存レコードはCASCADE削除される。
	Delete(ctx context.Context, id string) error
}

// CommentRepository はコメントデータの永続化インターフェース。
type CommentRepository interface {
	// Create はコメントを作成する。
	Create(ctx context.Context, comment *model.Comment) error
	// FindByID は指定IDのコメントを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Comment, error)
	// ListByPost は投稿のコメント一覧を投稿者JOIN済み・作成日時昇順で返す。
	ListByPost(ctx context.Context, postID string) ([]*model.Comment, error)
	// Delete は指定IDのコメントを削除する。
	Delete(ctx context.Context, id string) error
}

// NotificationRepository は通知レコードの永続化インターフェース。
type NotificationRepository interface {
	// Create は通知レコードを作成する。
	Create(ctx context.Context, n *model.Notification) error
	// ListByRecipient は受信者の通知一覧をアクターJOIN済み・新着順で返す。
	ListByRecipient(ctx context.Context, recipientID string, limit int) ([]*model.Notification, error)
	// MarkRead は指定通知を既読にする。
	MarkRead(ctx context.Context, recipientID, notificationID string) error
	// MarkAllRead は受信者の全通知を既読にする。
	MarkAllRead(ctx context.Context, recipientID string) error
	// DeleteByUserID はユーザーが受信者またはアクターである全通知を削除する。
	DeleteByUserID(ctx context.Context, userID string) error
}

// TxBeginner はトランザクション開始用のインターフェース。
type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}
