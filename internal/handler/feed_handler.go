package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/hitoshi/cookfeed/internal/feed"
	"github.com/hitoshi/cookfeed/internal/model"
)

// defaultFeedPageSize は1ページあたりのデフォルト投稿数。
const defaultFeedPageSize = 20

// FeedServiceInterface はフィードハンドラーが必要とするサービスインターフェース。
type FeedServiceInterface interface {
	ForYouPosts(ctx context.Context, viewer *model.User, params feed.ForYouParams) ([]*model.RecipePost, error)
	FollowingPosts(ctx context.Context, viewer *model.User, query string, offset, limit int) ([]*model.RecipePost, error)
	DiscoverPosts(ctx context.Context, viewer *model.User, params feed.DiscoverParams) ([]*model.RecipePost, error)
	SearchUsers(ctx context.Context, query string, limit int) ([]*model.User, error)
}

// FeedHandler はフィード関連のHTTPハンドラー。
type FeedHandler struct {
	service     FeedServiceInterface
	users       ViewerResolver
	pageSize    int
	searchLimit int
}

// NewFeedHandler はFeedHandlerを生成する。
func NewFeedHandler(service FeedServiceInterface, users ViewerResolver) *FeedHandler {
	return &FeedHandler{
		service:  service,
		users:    users,
		pageSize: defaultFeedPageSize,
	}
}

// feedResponse はフィードのレスポンス。
// Seedはページング時に同じ並び順を再現するためクライアントに返す。
type feedResponse struct {
	Posts []*postResponse `json:"posts"`
	Seed  int64           `json:"seed,omitempty"`
}

// ForYou は「おすすめ」フィードを返す。
// GET /api/feed/for-you?q=&seed=&offset=&limit=&sort=
//
// seedが未指定の場合は現在時刻から生成し、レスポンスに含めて返す。
// クライアントは2ページ目以降で同じseedを渡すことで並び順を固定できる。
func (h *FeedHandler) ForYou(w http.ResponseWriter, r *http.Request) {
	viewer, err := resolveViewer(r, h.users)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	query := r.URL.Query()

	seed, err := strconv.ParseInt(query.Get("seed"), 10, 64)
	if err != nil {
		seed = time.Now().UnixNano()
	}

	params := feed.ForYouParams{
		Query:  query.Get("q"),
		Offset: parseNonNegativeInt(query.Get("offset"), 0),
		Limit:  parsePositiveInt(query.Get("limit"), h.pageSize),
		Seed:   seed,
		Sort:   query.Get("sort"),
	}

	posts, err := h.service.ForYouPosts(r.Context(), viewer, params)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, feedResponse{
		Posts: newPostResponses(posts),
		Seed:  seed,
	})
}

// Following は「フォロー中」フィードを返す。
// GET /api/feed/following?q=&offset=&limit=
//
// 匿名閲覧者には空のフィードを返す。
func (h *FeedHandler) Following(w http.ResponseWriter, r *http.Request) {
	viewer, err := resolveViewer(r, h.users)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	query := r.URL.Query()
	offset := parseNonNegativeInt(query.Get("offset"), 0)
	limit := parsePositiveInt(query.Get("limit"), h.pageSize)

	posts, err := h.service.FollowingPosts(r.Context(), viewer, query.Get("q"), offset, limit)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, feedResponse{
		Posts: newPostResponses(posts),
	})
}

// Discover はファセット絞り込み付きの「見つける」一覧を返す。
// GET /api/discover?q=&category=&ingredient=&have=&min_time=&max_time=&sort=&offset=&limit=
//
// haveはカンマ区切りの手持ち材料リスト。min_time・max_timeの
// パース不能な値はサービス層で無視される。
func (h *FeedHandler) Discover(w http.ResponseWriter, r *http.Request) {
	viewer, err := resolveViewer(r, h.users)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	query := r.URL.Query()

	params := feed.DiscoverParams{
		Query:           query.Get("q"),
		Category:        query.Get("category"),
		IngredientQuery: query.Get("ingredient"),
		HaveIngredients: splitCommaList(query.Get("have")),
		MinTotalTime:    query.Get("min_time"),
		MaxTotalTime:    query.Get("max_time"),
		Sort:            query.Get("sort"),
		Offset:          parseNonNegativeInt(query.Get("offset"), 0),
		Limit:           parsePositiveInt(query.Get("limit"), h.pageSize),
	}

	posts, err := h.service.DiscoverPosts(r.Context(), viewer, params)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, feedResponse{
		Posts: newPostResponses(posts),
	})
}

// userSearchResponse はユーザー検索のレスポンス。
type userSearchResponse struct {
	Users []*userResponse `json:"users"`
}

// SearchUsers はユーザー検索結果を返す。
// GET /api/users/search?q=&limit=
func (h *FeedHandler) SearchUsers(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	limit := parsePositiveInt(query.Get("limit"), h.searchLimit)

	users, err := h.service.SearchUsers(r.Context(), query.Get("q"), limit)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, userSearchResponse{
		Users: newUserResponses(users),
	})
}

// parseNonNegativeInt は文字列を非負整数として解釈する。
// パース不能・負数の場合はfallbackを返す。
func parseNonNegativeInt(s string, fallback int) int {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}

// parsePositiveInt は文字列を正整数として解釈する。
// パース不能・0以下の場合はfallbackを返す。
func parsePositiveInt(s string, fallback int) int {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

// splitCommaList はカンマ区切りの文字列を空白除去済みのスライスに分解する。
func splitCommaList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var items []string
	for _, item := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}
