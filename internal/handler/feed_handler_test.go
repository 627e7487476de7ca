package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/hitoshi/cookfeed/internal/feed"
	"github.com/hitoshi/cookfeed/internal/model"
)

// --- モック定義 ---

type mockFeedService struct {
	forYouFn      func(ctx context.Context, viewer *model.User, params feed.ForYouParams) ([]*model.RecipePost, error)
	followingFn   func(ctx context.Context, viewer *model.User, query string, offset, limit int) ([]*model.RecipePost, error)
	discoverFn    func(ctx context.Context, viewer *model.User, params feed.DiscoverParams) ([]*model.RecipePost, error)
	searchUsersFn func(ctx context.Context, query string, limit int) ([]*model.User, error)
}

func (m *mockFeedService) ForYouPosts(ctx context.Context, viewer *model.User, params feed.ForYouParams) ([]*model.RecipePost, error) {
	if m.forYouFn != nil {
		return m.forYouFn(ctx, viewer, params)
	}
	return nil, nil
}

func (m *mockFeedService) FollowingPosts(ctx context.Context, viewer *model.User, query string, offset, limit int) ([]*model.RecipePost, error) {
	if m.followingFn != nil {
		return m.followingFn(ctx, viewer, query, offset, limit)
	}
	return nil, nil
}

func (m *mockFeedService) DiscoverPosts(ctx context.Context, viewer *model.User, params feed.DiscoverParams) ([]*model.RecipePost, error) {
	if m.discoverFn != nil {
		return m.discoverFn(ctx, viewer, params)
	}
	return nil, nil
}

func (m *mockFeedService) SearchUsers(ctx context.Context, query string, limit int) ([]*model.User, error) {
	if m.searchUsersFn != nil {
		return m.searchUsersFn(ctx, query, limit)
	}
	return nil, nil
}

func publishedPost(id string) *model.RecipePost {
	publishedAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return &model.RecipePost{
		ID:          id,
		AuthorID:    "author-1",
		Title:       "post " + id,
		Visibility:  model.VisibilityPublic,
		PublishedAt: &publishedAt,
	}
}

// --- テスト ---

// TestFeedHandler_ForYou_EchoesSeed は指定したシードがサービスに渡され、
// レスポンスにも同じ値が返ることをテストする。
func TestFeedHandler_ForYou_EchoesSeed(t *testing.T) {
	var captured feed.ForYouParams
	svc := &mockFeedService{
		forYouFn: func(ctx context.Context, viewer *model.User, params feed.ForYouParams) ([]*model.RecipePost, error) {
			captured = params
			return []*model.RecipePost{publishedPost("p1")}, nil
		},
	}
	h := NewFeedHandler(svc, resolverWith())

	req := httptest.NewRequest(http.MethodGet, "/api/feed/for-you?seed=42&offset=3&limit=10&q=pasta", nil)
	w := httptest.NewRecorder()

	h.ForYou(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if captured.Seed != 42 || captured.Offset != 3 || captured.Limit != 10 || captured.Query != "pasta" {
		t.Errorf("params = %+v, want seed=42 offset=3 limit=10 q=pasta", captured)
	}

	var resp feedResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Seed != 42 {
		t.Errorf("response seed = %d, want 42", resp.Seed)
	}
	if len(resp.Posts) != 1 || resp.Posts[0].ID != "p1" {
		t.Errorf("posts = %+v, want [p1]", resp.Posts)
	}
}

// TestFeedHandler_ForYou_GeneratesSeedWhenMissing はシード未指定の場合に
// サーバー側で生成したシードがレスポンスに含まれることをテストする。
func TestFeedHandler_ForYou_GeneratesSeedWhenMissing(t *testing.T) {
	var captured feed.ForYouParams
	svc := &mockFeedService{
		forYouFn: func(ctx context.Context, viewer *model.User, params feed.ForYouParams) ([]*model.RecipePost, error) {
			captured = params
			return nil, nil
		},
	}
	h := NewFeedHandler(svc, resolverWith())

	req := httptest.NewRequest(http.MethodGet, "/api/feed/for-you", nil)
	w := httptest.NewRecorder()

	h.ForYou(w, req)

	var resp feedResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Seed == 0 {
		t.Error("expected generated seed in response")
	}
	if resp.Seed != captured.Seed {
		t.Errorf("response seed = %d, service saw %d", resp.Seed, captured.Seed)
	}
}

// TestFeedHandler_ForYou_AnonymousViewer はセッションのないリクエストで
// 匿名閲覧者（nil）がサービスに渡されることをテストする。
func TestFeedHandler_ForYou_AnonymousViewer(t *testing.T) {
	var sawViewer *model.User
	viewerSet := false
	svc := &mockFeedService{
		forYouFn: func(ctx context.Context, viewer *model.User, params feed.ForYouParams) ([]*model.RecipePost, error) {
			sawViewer = viewer
			viewerSet = true
			return nil, nil
		},
	}
	h := NewFeedHandler(svc, resolverWith())

	req := httptest.NewRequest(http.MethodGet, "/api/feed/for-you", nil)
	w := httptest.NewRecorder()

	h.ForYou(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if !viewerSet || sawViewer != nil {
		t.Errorf("viewer = %+v, want nil (anonymous)", sawViewer)
	}
}

// TestFeedHandler_ForYou_AuthenticatedViewer はセッションのあるリクエストで
// 解決済みユーザーがサービスに渡されることをテストする。
func TestFeedHandler_ForYou_AuthenticatedViewer(t *testing.T) {
	var sawViewer *model.User
	svc := &mockFeedService{
		forYouFn: func(ctx context.Context, viewer *model.User, params feed.ForYouParams) ([]*model.RecipePost, error) {
			sawViewer = viewer
			return nil, nil
		},
	}
	h := NewFeedHandler(svc, resolverWith(&model.User{ID: "user-1", Username: "alice"}))

	req := withUserID(httptest.NewRequest(http.MethodGet, "/api/feed/for-you", nil), "user-1")
	w := httptest.NewRecorder()

	h.ForYou(w, req)

	if sawViewer == nil || sawViewer.ID != "user-1" {
		t.Errorf("viewer = %+v, want user-1", sawViewer)
	}
}

// TestFeedHandler_Following_DefaultPaging はoffset・limit未指定時の
// デフォルト値がサービスに渡されることをテストする。
func TestFeedHandler_Following_DefaultPaging(t *testing.T) {
	var sawOffset, sawLimit int
	svc := &mockFeedService{
		followingFn: func(ctx context.Context, viewer *model.User, query string, offset, limit int) ([]*model.RecipePost, error) {
			sawOffset, sawLimit = offset, limit
			return nil, nil
		},
	}
	h := NewFeedHandler(svc, resolverWith())

	req := httptest.NewRequest(http.MethodGet, "/api/feed/following", nil)
	w := httptest.NewRecorder()

	h.Following(w, req)

	if sawOffset != 0 || sawLimit != defaultFeedPageSize {
		t.Errorf("offset = %d, limit = %d, want 0 and %d", sawOffset, sawLimit, defaultFeedPageSize)
	}
}

// TestFeedHandler_Discover_ParsesFacetParams はクエリパラメータが
// ファセット絞り込みパラメータとして正しく解釈されることをテストする。
func TestFeedHandler_Discover_ParsesFacetParams(t *testing.T) {
	var captured feed.DiscoverParams
	svc := &mockFeedService{
		discoverFn: func(ctx context.Context, viewer *model.User, params feed.DiscoverParams) ([]*model.RecipePost, error) {
			captured = params
			return nil, nil
		},
	}
	h := NewFeedHandler(svc, resolverWith())

	target := "/api/discover?q=cake&category=dessert&ingredient=egg&have=egg,%20flour&min_time=10&max_time=60&sort=popular&offset=5&limit=12"
	req := httptest.NewRequest(http.MethodGet, target, nil)
	w := httptest.NewRecorder()

	h.Discover(w, req)

	want := feed.DiscoverParams{
		Query:           "cake",
		Category:        "dessert",
		IngredientQuery: "egg",
		HaveIngredients: []string{"egg", "flour"},
		MinTotalTime:    "10",
		MaxTotalTime:    "60",
		Sort:            "popular",
		Offset:          5,
		Limit:           12,
	}
	if !reflect.DeepEqual(captured, want) {
		t.Errorf("params = %+v, want %+v", captured, want)
	}
}

// TestFeedHandler_Discover_InvalidPagingFallsBack はパース不能なoffset・limitが
// デフォルト値に落ちることをテストする。
func TestFeedHandler_Discover_InvalidPagingFallsBack(t *testing.T) {
	var captured feed.DiscoverParams
	svc := &mockFeedService{
		discoverFn: func(ctx context.Context, viewer *model.User, params feed.DiscoverParams) ([]*model.RecipePost, error) {
			captured = params
			return nil, nil
		},
	}
	h := NewFeedHandler(svc, resolverWith())

	req := httptest.NewRequest(http.MethodGet, "/api/discover?offset=abc&limit=-5", nil)
	w := httptest.NewRecorder()

	h.Discover(w, req)

	if captured.Offset != 0 || captured.Limit != defaultFeedPageSize {
		t.Errorf("offset = %d, limit = %d, want 0 and %d", captured.Offset, captured.Limit, defaultFeedPageSize)
	}
}

// TestFeedHandler_SearchUsers_ReturnsUsers はユーザー検索結果が
// JSONとして返ることをテストする。
func TestFeedHandler_SearchUsers_ReturnsUsers(t *testing.T) {
	svc := &mockFeedService{
		searchUsersFn: func(ctx context.Context, query string, limit int) ([]*model.User, error) {
			if query != "ali" {
				t.Errorf("query = %q, want %q", query, "ali")
			}
			return []*model.User{{ID: "user-1", Username: "alice"}}, nil
		},
	}
	h := NewFeedHandler(svc, resolverWith())

	req := httptest.NewRequest(http.MethodGet, "/api/users/search?q=ali", nil)
	w := httptest.NewRecorder()

	h.SearchUsers(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp userSearchResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Users) != 1 || resp.Users[0].Username != "alice" {
		t.Errorf("users = %+v, want [alice]", resp.Users)
	}
}

// TestFeedHandler_ServiceError_Returns500 はサービス層の想定外エラーが
// 詳細を隠した500レスポンスになることをテストする。
func TestFeedHandler_ServiceError_Returns500(t *testing.T) {
	svc := &mockFeedService{
		discoverFn: func(ctx context.Context, viewer *model.User, params feed.DiscoverParams) ([]*model.RecipePost, error) {
			return nil, errors.New("db connection lost")
		},
	}
	h := NewFeedHandler(svc, resolverWith())

	req := httptest.NewRequest(http.MethodGet, "/api/discover", nil)
	w := httptest.NewRecorder()

	h.Discover(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}

	var resp apiErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Code != "INTERNAL_ERROR" {
		t.Errorf("code = %q, want INTERNAL_ERROR", resp.Code)
	}
}
