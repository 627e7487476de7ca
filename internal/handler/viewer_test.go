package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/cookfeed/internal/middleware"
	"github.com/hitoshi/cookfeed/internal/model"
)

// --- 共通モック・ヘルパー ---

// mockViewerResolver はViewerResolverのモック。IDからユーザーを引く。
type mockViewerResolver struct {
	users map[string]*model.User
	err   error
}

func (m *mockViewerResolver) FindByID(ctx context.Context, id string) (*model.User, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.users[id], nil
}

// resolverWith は指定ユーザーを解決できるmockViewerResolverを生成する。
func resolverWith(users ...*model.User) *mockViewerResolver {
	m := &mockViewerResolver{users: make(map[string]*model.User)}
	for _, u := range users {
		m.users[u.ID] = u
	}
	return m
}

// withUserID はリクエストコンテキストにユーザーIDを注入する。
func withUserID(r *http.Request, userID string) *http.Request {
	return r.WithContext(middleware.ContextWithUserID(r.Context(), userID))
}

// withURLParam はchiのURLパラメータをリクエストに設定する。
func withURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// --- テスト ---

// TestResolveViewer_NoSession_ReturnsNil はセッションのないリクエストが
// 匿名閲覧者（nil）として解決されることをテストする。
func TestResolveViewer_NoSession_ReturnsNil(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/discover", nil)

	viewer, err := resolveViewer(req, resolverWith())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if viewer != nil {
		t.Errorf("viewer = %+v, want nil", viewer)
	}
}

// TestResolveViewer_WithSession_ReturnsUser はセッションのあるリクエストが
// 該当ユーザーとして解決されることをテストする。
func TestResolveViewer_WithSession_ReturnsUser(t *testing.T) {
	resolver := resolverWith(&model.User{ID: "user-1", Username: "alice"})
	req := withUserID(httptest.NewRequest(http.MethodGet, "/api/discover", nil), "user-1")

	viewer, err := resolveViewer(req, resolver)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if viewer == nil || viewer.Username != "alice" {
		t.Errorf("viewer = %+v, want alice", viewer)
	}
}

// TestResolveViewer_WithdrawnUser_ReturnsNil はセッションはあるが
// ユーザーが退会済みの場合に匿名として扱われることをテストする。
func TestResolveViewer_WithdrawnUser_ReturnsNil(t *testing.T) {
	req := withUserID(httptest.NewRequest(http.MethodGet, "/api/discover", nil), "gone-user")

	viewer, err := resolveViewer(req, resolverWith())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if viewer != nil {
		t.Errorf("viewer = %+v, want nil", viewer)
	}
}

// TestRequireViewer_Anonymous_Writes401 は匿名リクエストに対して
// 401 Unauthorizedが書き込まれることをテストする。
func TestRequireViewer_Anonymous_Writes401(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/posts", nil)
	w := httptest.NewRecorder()

	_, ok := requireViewer(w, req, resolverWith())
	if ok {
		t.Fatal("expected requireViewer to fail for anonymous request")
	}
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

// TestRequireViewer_ResolverError_Writes500 は閲覧者解決の失敗が
// 500エラーとして報告されることをテストする。
func TestRequireViewer_ResolverError_Writes500(t *testing.T) {
	resolver := &mockViewerResolver{err: errors.New("db down")}
	req := withUserID(httptest.NewRequest(http.MethodPost, "/api/posts", nil), "user-1")
	w := httptest.NewRecorder()

	_, ok := requireViewer(w, req, resolver)
	if ok {
		t.Fatal("expected requireViewer to fail on resolver error")
	}
	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
}
