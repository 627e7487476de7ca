package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/cookfeed/internal/linkpreview"
	"github.com/hitoshi/cookfeed/internal/model"
	"github.com/hitoshi/cookfeed/internal/post"
)

// PostServiceInterface は投稿ハンドラーが必要とするサービスインターフェース。
type PostServiceInterface interface {
	CreatePost(ctx context.Context, author *model.User, params post.PostParams) (*model.RecipePost, error)
	UpdatePost(ctx context.Context, viewer *model.User, postID string, params post.PostParams) (*model.RecipePost, error)
	GetPost(ctx context.Context, viewer *model.User, postID string) (*model.RecipePost, error)
	DeletePost(ctx context.Context, viewer *model.User, postID string) error
	ListByAuthor(ctx context.Context, viewer *model.User, author *model.User) ([]*model.RecipePost, error)
	ToggleLike(ctx context.Context, viewer *model.User, postID string) (bool, error)
	ToggleSave(ctx context.Context, viewer *model.User, postID, collectionID string) (bool, error)
	ListSavedPosts(ctx context.Context, viewer *model.User, collectionID string) ([]*model.RecipePost, error)
	CreateCollection(ctx context.Context, viewer *model.User, name string) (*model.Collection, error)
	ListCollections(ctx context.Context, viewer *model.User) ([]*model.Collection, error)
	DeleteCollection(ctx context.Context, viewer *model.User, collectionID string) error
}

// UsernameResolver はユーザー名からユーザーを解決するインターフェース。
// repository.UserRepositoryの部分集合として定義する。
type UsernameResolver interface {
	FindByUsername(ctx context.Context, username string) (*model.User, error)
}

// LinkPreviewInterface は参照元URLのプレビュー取得インターフェース。
type LinkPreviewInterface interface {
	FetchPreview(ctx context.Context, pageURL string) (*linkpreview.Preview, error)
}

// PostHandler はレシピ投稿関連のHTTPハンドラー。
type PostHandler struct {
	service   PostServiceInterface
	users     ViewerResolver
	usernames UsernameResolver
	previews  LinkPreviewInterface
}

// NewPostHandler はPostHandlerを生成する。
func NewPostHandler(
	service PostServiceInterface,
	users ViewerResolver,
	usernames UsernameResolver,
	previews LinkPreviewInterface,
) *PostHandler {
	return &PostHandler{
		service:   service,
		users:     users,
		usernames: usernames,
		previews:  previews,
	}
}

// ingredientRequest は材料の入力。
type ingredientRequest struct {
	Name     string `json:"name"`
	Quantity string `json:"quantity"`
}

// postRequest は投稿の作成・更新リクエストボディ。
type postRequest struct {
	Title       string              `json:"title"`
	Description string              `json:"description"`
	Category    string              `json:"category"`
	Visibility  string              `json:"visibility"`
	Tags        string              `json:"tags"`
	Ingredients []ingredientRequest `json:"ingredients"`
	PrepTimeMin int                 `json:"prep_time_min"`
	CookTimeMin int                 `json:"cook_time_min"`
	Servings    int                 `json:"servings"`
	SourceURL   string              `json:"source_url"`
	ImageURL    string              `json:"image_url"`
	Publish     bool                `json:"publish"`
}

// toParams はリクエストボディをサービス層のパラメータに変換する。
func (req *postRequest) toParams() post.PostParams {
	ingredients := make([]post.IngredientInput, 0, len(req.Ingredients))
	for _, ing := range req.Ingredients {
		ingredients = append(ingredients, post.IngredientInput{
			Name:     ing.Name,
			Quantity: ing.Quantity,
		})
	}

	return post.PostParams{
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		Visibility:  req.Visibility,
		Tags:        req.Tags,
		Ingredients: ingredients,
		PrepTimeMin: req.PrepTimeMin,
		CookTimeMin: req.CookTimeMin,
		Servings:    req.Servings,
		SourceURL:   req.SourceURL,
		ImageURL:    req.ImageURL,
		Publish:     req.Publish,
	}
}

// Create は新しいレシピ投稿を作成する。
// POST /api/posts
func (h *PostHandler) Create(w http.ResponseWriter, r *http.Request) {
	viewer, ok := requireViewer(w, r, h.users)
	if !ok {
		return
	}

	var req postRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		handleServiceError(w, model.NewInvalidRequestError("リクエストボディの解析に失敗しました"))
		return
	}

	created, err := h.service.CreatePost(r.Context(), viewer, req.toParams())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, newPostResponse(created))
}

// Get は投稿の詳細を返す。
// GET /api/posts/{postID}
func (h *PostHandler) Get(w http.ResponseWriter, r *http.Request) {
	viewer, err := resolveViewer(r, h.users)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	postID := chi.URLParam(r, "postID")
	found, err := h.service.GetPost(r.Context(), viewer, postID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, newPostResponse(found))
}

// Update は投稿を更新する。所有者のみが実行できる。
// PUT /api/posts/{postID}
func (h *PostHandler) Update(w http.ResponseWriter, r *http.Request) {
	viewer, ok := requireViewer(w, r, h.users)
	if !ok {
		return
	}

	var req postRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		handleServiceError(w, model.NewInvalidRequestError("リクエストボディの解析に失敗しました"))
		return
	}

	postID := chi.URLParam(r, "postID")
	updated, err := h.service.UpdatePost(r.Context(), viewer, postID, req.toParams())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, newPostResponse(updated))
}

// Delete は投稿を削除する。所有者のみが実行できる。
// DELETE /api/posts/{postID}
func (h *PostHandler) Delete(w http.ResponseWriter, r *http.Request) {
	viewer, ok := requireViewer(w, r, h.users)
	if !ok {
		return
	}

	postID := chi.URLParam(r, "postID")
	if err := h.service.DeletePost(r.Context(), viewer, postID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// postListResponse は投稿一覧のレスポンス。
type postListResponse struct {
	Posts []*postResponse `json:"posts"`
}

// ListByAuthor は指定ユーザーの投稿一覧を返す。
// GET /api/users/{username}/posts
//
// 本人が閲覧する場合は下書きも含まれる。他者の一覧は可視性フィルタを通過した
// 公開済み投稿のみが返る。
func (h *PostHandler) ListByAuthor(w http.ResponseWriter, r *http.Request) {
	viewer, err := resolveViewer(r, h.users)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	username := chi.URLParam(r, "username")
	author, err := h.usernames.FindByUsername(r.Context(), username)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if author == nil {
		handleServiceError(w, model.NewUserNotFoundError())
		return
	}

	posts, err := h.service.ListByAuthor(r.Context(), viewer, author)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, postListResponse{Posts: newPostResponses(posts)})
}

// toggleLikeResponse はいいねトグルのレスポンス。
type toggleLikeResponse struct {
	Liked bool `json:"liked"`
}

// ToggleLike は投稿へのいいねをトグルする。
// POST /api/posts/{postID}/like
func (h *PostHandler) ToggleLike(w http.ResponseWriter, r *http.Request) {
	viewer, ok := requireViewer(w, r, h.users)
	if !ok {
		return
	}

	postID := chi.URLParam(r, "postID")
	liked, err := h.service.ToggleLike(r.Context(), viewer, postID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, toggleLikeResponse{Liked: liked})
}

// toggleSaveRequest は保存トグルのリクエストボディ。
type toggleSaveRequest struct {
	CollectionID string `json:"collection_id"` // 空はデフォルトコレクション
}

// toggleSaveResponse は保存トグルのレスポンス。
type toggleSaveResponse struct {
	Saved bool `json:"saved"`
}

// ToggleSave は投稿のコレクションへの保存をトグルする。
// POST /api/posts/{postID}/save
func (h *PostHandler) ToggleSave(w http.ResponseWriter, r *http.Request) {
	viewer, ok := requireViewer(w, r, h.users)
	if !ok {
		return
	}

	// ボディは省略可能（デフォルトコレクションへの保存）
	var req toggleSaveRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	postID := chi.URLParam(r, "postID")
	saved, err := h.service.ToggleSave(r.Context(), viewer, postID, req.CollectionID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, toggleSaveResponse{Saved: saved})
}

// ListSaved は保存済み投稿の一覧を返す。
// GET /api/saved?collection_id=
//
// collection_idが空の場合はデフォルトコレクションの保存が対象になる。
func (h *PostHandler) ListSaved(w http.ResponseWriter, r *http.Request) {
	viewer, ok := requireViewer(w, r, h.users)
	if !ok {
		return
	}

	collectionID := r.URL.Query().Get("collection_id")
	posts, err := h.service.ListSavedPosts(r.Context(), viewer, collectionID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, postListResponse{Posts: newPostResponses(posts)})
}

// collectionResponse はコレクションのJSON表現。
type collectionResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	PostCount int       `json:"post_count"`
	CreatedAt time.Time `json:"created_at"`
}

func newCollectionResponse(c *model.Collection) *collectionResponse {
	return &collectionResponse{
		ID:        c.ID,
		Name:      c.Name,
		PostCount: c.PostCount,
		CreatedAt: c.CreatedAt,
	}
}

// createCollectionRequest はコレクション作成のリクエストボディ。
type createCollectionRequest struct {
	Name string `json:"name"`
}

// CreateCollection は新しいコレクションを作成する。
// POST /api/collections
func (h *PostHandler) CreateCollection(w http.ResponseWriter, r *http.Request) {
	viewer, ok := requireViewer(w, r, h.users)
	if !ok {
		return
	}

	var req createCollectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		handleServiceError(w, model.NewInvalidRequestError("リクエストボディの解析に失敗しました"))
		return
	}

	created, err := h.service.CreateCollection(r.Context(), viewer, req.Name)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, newCollectionResponse(created))
}

// collectionListResponse はコレクション一覧のレスポンス。
type collectionListResponse struct {
	Collections []*collectionResponse `json:"collections"`
}

// ListCollections は自分のコレクション一覧を返す。
// GET /api/collections
func (h *PostHandler) ListCollections(w http.ResponseWriter, r *http.Request) {
	viewer, ok := requireViewer(w, r, h.users)
	if !ok {
		return
	}

	collections, err := h.service.ListCollections(r.Context(), viewer)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	responses := make([]*collectionResponse, 0, len(collections))
	for _, c := range collections {
		responses = append(responses, newCollectionResponse(c))
	}

	writeJSONResponse(w, http.StatusOK, collectionListResponse{Collections: responses})
}

// DeleteCollection はコレクションを削除する。所有者のみが実行できる。
// DELETE /api/collections/{collectionID}
func (h *PostHandler) DeleteCollection(w http.ResponseWriter, r *http.Request) {
	viewer, ok := requireViewer(w, r, h.users)
	if !ok {
		return
	}

	collectionID := chi.URLParam(r, "collectionID")
	if err := h.service.DeleteCollection(r.Context(), viewer, collectionID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// linkPreviewRequest はリンクプレビュー取得のリクエストボディ。
type linkPreviewRequest struct {
	URL string `json:"url"`
}

// linkPreviewResponse はリンクプレビューのレスポンス。
type linkPreviewResponse struct {
	Title    string `json:"title"`
	ImageURL string `json:"image_url,omitempty"`
}

// FetchPreview は参照元URLのプレビュー情報を取得する。
// POST /api/posts/preview
//
// 投稿フォームで参照元URLを入力した際のタイトル・画像の自動補完に使う。
// SSRF防止の検証を通過しないURLはエラーになる。
func (h *PostHandler) FetchPreview(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireViewer(w, r, h.users); !ok {
		return
	}

	var req linkPreviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		handleServiceError(w, model.NewInvalidRequestError("リクエストボディの解析に失敗しました"))
		return
	}

	preview, err := h.previews.FetchPreview(r.Context(), req.URL)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, linkPreviewResponse{
		Title:    preview.Title,
		ImageURL: preview.ImageURL,
	})
}
