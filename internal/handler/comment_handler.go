package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/cookfeed/internal/model"
)

// CommentServiceInterface はコメントハンドラーが必要とするサービスインターフェース。
type CommentServiceInterface interface {
	AddComment(ctx context.Context, viewer *model.User, postID, body string) (*model.Comment, error)
	ListComments(ctx context.Context, viewer *model.User, postID string) ([]*model.Comment, error)
	DeleteComment(ctx context.Context, viewer *model.User, commentID string) error
}

// CommentHandler はコメント関連のHTTPハンドラー。
type CommentHandler struct {
	service CommentServiceInterface
	users   ViewerResolver
}

// NewCommentHandler はCommentHandlerを生成する。
func NewCommentHandler(service CommentServiceInterface, users ViewerResolver) *CommentHandler {
	return &CommentHandler{
		service: service,
		users:   users,
	}
}

// addCommentRequest はコメント投稿のリクエストボディ。
type addCommentRequest struct {
	Body string `json:"body"`
}

// Add は投稿にコメントを追加する。
// POST /api/posts/{postID}/comments
func (h *CommentHandler) Add(w http.ResponseWriter, r *http.Request) {
	viewer, ok := requireViewer(w, r, h.users)
	if !ok {
		return
	}

	var req addCommentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		handleServiceError(w, model.NewInvalidRequestError("リクエストボディの解析に失敗しました"))
		return
	}

	postID := chi.URLParam(r, "postID")
	created, err := h.service.AddComment(r.Context(), viewer, postID, req.Body)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, newCommentResponse(created))
}

// commentListResponse はコメント一覧のレスポンス。
type commentListResponse struct {
	Comments []*commentResponse `json:"comments"`
}

// List は投稿のコメント一覧を返す。投稿を閲覧できる閲覧者のみが取得できる。
// GET /api/posts/{postID}/comments
func (h *CommentHandler) List(w http.ResponseWriter, r *http.Request) {
	viewer, err := resolveViewer(r, h.users)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	postID := chi.URLParam(r, "postID")
	comments, err := h.service.ListComments(r.Context(), viewer, postID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	responses := make([]*commentResponse, 0, len(comments))
	for _, c := range comments {
		responses = append(responses, newCommentResponse(c))
	}

	writeJSONResponse(w, http.StatusOK, commentListResponse{Comments: responses})
}

// Delete はコメントを削除する。コメント投稿者と投稿の所有者のみが実行できる。
// DELETE /api/comments/{commentID}
func (h *CommentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	viewer, ok := requireViewer(w, r, h.users)
	if !ok {
		return
	}

	commentID := chi.URLParam(r, "commentID")
	if err := h.service.DeleteComment(r.Context(), viewer, commentID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
