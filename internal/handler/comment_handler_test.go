package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/cookfeed/internal/model"
)

// --- モック定義 ---

type mockCommentService struct {
	addFn    func(ctx context.Context, viewer *model.User, postID, body string) (*model.Comment, error)
	listFn   func(ctx context.Context, viewer *model.User, postID string) ([]*model.Comment, error)
	deleteFn func(ctx context.Context, viewer *model.User, commentID string) error
}

func (m *mockCommentService) AddComment(ctx context.Context, viewer *model.User, postID, body string) (*model.Comment, error) {
	if m.addFn != nil {
		return m.addFn(ctx, viewer, postID, body)
	}
	return &model.Comment{ID: "c1", PostID: postID, Body: body}, nil
}

func (m *mockCommentService) ListComments(ctx context.Context, viewer *model.User, postID string) ([]*model.Comment, error) {
	if m.listFn != nil {
		return m.listFn(ctx, viewer, postID)
	}
	return nil, nil
}

func (m *mockCommentService) DeleteComment(ctx context.Context, viewer *model.User, commentID string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, viewer, commentID)
	}
	return nil
}

// --- テスト ---

// TestCommentHandler_Add_Success_Returns201 はコメント投稿が
// 201とコメント本文を返すことをテストする。
func TestCommentHandler_Add_Success_Returns201(t *testing.T) {
	sawBody := ""
	svc := &mockCommentService{
		addFn: func(ctx context.Context, viewer *model.User, postID, body string) (*model.Comment, error) {
			sawBody = body
			return &model.Comment{
				ID:        "c1",
				PostID:    postID,
				UserID:    viewer.ID,
				Body:      body,
				CreatedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
			}, nil
		},
	}
	h := NewCommentHandler(svc, resolverWith(testAuthor))

	body := strings.NewReader(`{"body": "おいしそう！"}`)
	req := withUserID(httptest.NewRequest(http.MethodPost, "/api/posts/p1/comments", body), "user-1")
	req = withURLParam(req, "postID", "p1")
	w := httptest.NewRecorder()

	h.Add(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d, body = %s", w.Code, http.StatusCreated, w.Body.String())
	}
	if sawBody != "おいしそう！" {
		t.Errorf("body = %q, want おいしそう！", sawBody)
	}

	var resp commentResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.PostID != "p1" || resp.Body != "おいしそう！" {
		t.Errorf("comment = %+v, want p1 comment", resp)
	}
}

// TestCommentHandler_Add_Unauthenticated_Returns401 は未認証のコメント投稿が
// 拒否されることをテストする。
func TestCommentHandler_Add_Unauthenticated_Returns401(t *testing.T) {
	h := NewCommentHandler(&mockCommentService{}, resolverWith())

	body := strings.NewReader(`{"body": "x"}`)
	req := withURLParam(httptest.NewRequest(http.MethodPost, "/api/posts/p1/comments", body), "postID", "p1")
	w := httptest.NewRecorder()

	h.Add(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

// TestCommentHandler_Add_EmptyBody_Returns400 は空コメントの拒否が
// 400として返ることをテストする。
func TestCommentHandler_Add_EmptyBody_Returns400(t *testing.T) {
	svc := &mockCommentService{
		addFn: func(ctx context.Context, viewer *model.User, postID, body string) (*model.Comment, error) {
			return nil, model.NewInvalidRequestError("コメント本文が空です")
		},
	}
	h := NewCommentHandler(svc, resolverWith(testAuthor))

	body := strings.NewReader(`{"body": "   "}`)
	req := withUserID(httptest.NewRequest(http.MethodPost, "/api/posts/p1/comments", body), "user-1")
	req = withURLParam(req, "postID", "p1")
	w := httptest.NewRecorder()

	h.Add(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

// TestCommentHandler_List_InvisiblePost_Returns403 は閲覧できない投稿の
// コメント一覧が403になることをテストする。
func TestCommentHandler_List_InvisiblePost_Returns403(t *testing.T) {
	svc := &mockCommentService{
		listFn: func(ctx context.Context, viewer *model.User, postID string) ([]*model.Comment, error) {
			return nil, model.NewPostForbiddenError()
		},
	}
	h := NewCommentHandler(svc, resolverWith())

	req := withURLParam(httptest.NewRequest(http.MethodGet, "/api/posts/p1/comments", nil), "postID", "p1")
	w := httptest.NewRecorder()

	h.List(w, req)

	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", w.Code, http.StatusForbidden)
	}
}

// TestCommentHandler_List_ReturnsComments はコメント一覧が匿名閲覧者にも
// 返ることをテストする（公開投稿の場合）。
func TestCommentHandler_List_ReturnsComments(t *testing.T) {
	svc := &mockCommentService{
		listFn: func(ctx context.Context, viewer *model.User, postID string) ([]*model.Comment, error) {
			return []*model.Comment{
				{ID: "c1", PostID: postID, Body: "first"},
				{ID: "c2", PostID: postID, Body: "second"},
			}, nil
		},
	}
	h := NewCommentHandler(svc, resolverWith())

	req := withURLParam(httptest.NewRequest(http.MethodGet, "/api/posts/p1/comments", nil), "postID", "p1")
	w := httptest.NewRecorder()

	h.List(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp commentListResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Comments) != 2 {
		t.Errorf("comments = %d, want 2", len(resp.Comments))
	}
}

// TestCommentHandler_Delete_Stranger_Returns403 は権限のない削除が
// 403になることをテストする。
func TestCommentHandler_Delete_Stranger_Returns403(t *testing.T) {
	svc := &mockCommentService{
		deleteFn: func(ctx context.Context, viewer *model.User, commentID string) error {
			return model.NewNotPostOwnerError()
		},
	}
	h := NewCommentHandler(svc, resolverWith(testAuthor))

	req := withUserID(httptest.NewRequest(http.MethodDelete, "/api/comments/c1", nil), "user-1")
	req = withURLParam(req, "commentID", "c1")
	w := httptest.NewRecorder()

	h.Delete(w, req)

	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", w.Code, http.StatusForbidden)
	}
}

// TestCommentHandler_Delete_Success_Returns204 はコメント削除が
// 204を返すことをテストする。
func TestCommentHandler_Delete_Success_Returns204(t *testing.T) {
	deleted := ""
	svc := &mockCommentService{
		deleteFn: func(ctx context.Context, viewer *model.User, commentID string) error {
			deleted = commentID
			return nil
		},
	}
	h := NewCommentHandler(svc, resolverWith(testAuthor))

	req := withUserID(httptest.NewRequest(http.MethodDelete, "/api/comments/c1", nil), "user-1")
	req = withURLParam(req, "commentID", "c1")
	w := httptest.NewRecorder()

	h.Delete(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNoContent)
	}
	if deleted != "c1" {
		t.Errorf("deleted = %q, want c1", deleted)
	}
}
