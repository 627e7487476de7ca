package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hitoshi/cookfeed/internal/linkpreview"
	"github.com/hitoshi/cookfeed/internal/model"
	"github.com/hitoshi/cookfeed/internal/post"
)

// --- モック定義 ---

type mockPostService struct {
	createFn           func(ctx context.Context, author *model.User, params post.PostParams) (*model.RecipePost, error)
	updateFn           func(ctx context.Context, viewer *model.User, postID string, params post.PostParams) (*model.RecipePost, error)
	getFn              func(ctx context.Context, viewer *model.User, postID string) (*model.RecipePost, error)
	deleteFn           func(ctx context.Context, viewer *model.User, postID string) error
	listByAuthorFn     func(ctx context.Context, viewer *model.User, author *model.User) ([]*model.RecipePost, error)
	toggleLikeFn       func(ctx context.Context, viewer *model.User, postID string) (bool, error)
	toggleSaveFn       func(ctx context.Context, viewer *model.User, postID, collectionID string) (bool, error)
	listSavedFn        func(ctx context.Context, viewer *model.User, collectionID string) ([]*model.RecipePost, error)
	createCollectionFn func(ctx context.Context, viewer *model.User, name string) (*model.Collection, error)
	listCollectionsFn  func(ctx context.Context, viewer *model.User) ([]*model.Collection, error)
	deleteCollectionFn func(ctx context.Context, viewer *model.User, collectionID string) error
}

func (m *mockPostService) CreatePost(ctx context.Context, author *model.User, params post.PostParams) (*model.RecipePost, error) {
	if m.createFn != nil {
		return m.createFn(ctx, author, params)
	}
	return publishedPost("created"), nil
}

func (m *mockPostService) UpdatePost(ctx context.Context, viewer *model.User, postID string, params post.PostParams) (*model.RecipePost, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, viewer, postID, params)
	}
	return publishedPost(postID), nil
}

func (m *mockPostService) GetPost(ctx context.Context, viewer *model.User, postID string) (*model.RecipePost, error) {
	if m.getFn != nil {
		return m.getFn(ctx, viewer, postID)
	}
	return publishedPost(postID), nil
}

func (m *mockPostService) DeletePost(ctx context.Context, viewer *model.User, postID string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, viewer, postID)
	}
	return nil
}

func (m *mockPostService) ListByAuthor(ctx context.Context, viewer *model.User, author *model.User) ([]*model.RecipePost, error) {
	if m.listByAuthorFn != nil {
		return m.listByAuthorFn(ctx, viewer, author)
	}
	return nil, nil
}

func (m *mockPostService) ToggleLike(ctx context.Context, viewer *model.User, postID string) (bool, error) {
	if m.toggleLikeFn != nil {
		return m.toggleLikeFn(ctx, viewer, postID)
	}
	return false, nil
}

func (m *mockPostService) ToggleSave(ctx context.Context, viewer *model.User, postID, collectionID string) (bool, error) {
	if m.toggleSaveFn != nil {
		return m.toggleSaveFn(ctx, viewer, postID, collectionID)
	}
	return false, nil
}

func (m *mockPostService) ListSavedPosts(ctx context.Context, viewer *model.User, collectionID string) ([]*model.RecipePost, error) {
	if m.listSavedFn != nil {
		return m.listSavedFn(ctx, viewer, collectionID)
	}
	return nil, nil
}

func (m *mockPostService) CreateCollection(ctx context.Context, viewer *model.User, name string) (*model.Collection, error) {
	if m.createCollectionFn != nil {
		return m.createCollectionFn(ctx, viewer, name)
	}
	return &model.Collection{ID: "col-1", Name: name}, nil
}

func (m *mockPostService) ListCollections(ctx context.Context, viewer *model.User) ([]*model.Collection, error) {
	if m.listCollectionsFn != nil {
		return m.listCollectionsFn(ctx, viewer)
	}
	return nil, nil
}

func (m *mockPostService) DeleteCollection(ctx context.Context, viewer *model.User, collectionID string) error {
	if m.deleteCollectionFn != nil {
		return m.deleteCollectionFn(ctx, viewer, collectionID)
	}
	return nil
}

type mockUsernameResolver struct {
	users map[string]*model.User
}

func (m *mockUsernameResolver) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	return m.users[username], nil
}

type mockLinkPreview struct {
	preview *linkpreview.Preview
	err     error
}

func (m *mockLinkPreview) FetchPreview(ctx context.Context, pageURL string) (*linkpreview.Preview, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.preview, nil
}

func newTestPostHandler(svc *mockPostService, viewers *mockViewerResolver) *PostHandler {
	return NewPostHandler(svc, viewers, &mockUsernameResolver{}, &mockLinkPreview{})
}

var testAuthor = &model.User{ID: "user-1", Username: "alice"}

// --- テスト ---

// TestPostHandler_Create_Unauthenticated_Returns401 は未認証リクエストが
// 拒否されることをテストする。
func TestPostHandler_Create_Unauthenticated_Returns401(t *testing.T) {
	h := newTestPostHandler(&mockPostService{}, resolverWith())

	req := httptest.NewRequest(http.MethodPost, "/api/posts", strings.NewReader(`{"title":"x"}`))
	w := httptest.NewRecorder()

	h.Create(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

// TestPostHandler_Create_Success_Returns201 はリクエストボディが
// サービス層のパラメータに変換され、201が返ることをテストする。
func TestPostHandler_Create_Success_Returns201(t *testing.T) {
	var captured post.PostParams
	svc := &mockPostService{
		createFn: func(ctx context.Context, author *model.User, params post.PostParams) (*model.RecipePost, error) {
			captured = params
			return publishedPost("p1"), nil
		},
	}
	h := newTestPostHandler(svc, resolverWith(testAuthor))

	body := `{
		"title": "Carbonara",
		"tags": "Pasta, Dinner",
		"ingredients": [{"name": "Egg", "quantity": "2"}, {"name": "Pancetta"}],
		"prep_time_min": 10,
		"cook_time_min": 20,
		"servings": 2,
		"publish": true
	}`
	req := withUserID(httptest.NewRequest(http.MethodPost, "/api/posts", strings.NewReader(body)), "user-1")
	w := httptest.NewRecorder()

	h.Create(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d, body = %s", w.Code, http.StatusCreated, w.Body.String())
	}
	if captured.Title != "Carbonara" || captured.Tags != "Pasta, Dinner" || !captured.Publish {
		t.Errorf("params = %+v, want title/tags/publish preserved", captured)
	}
	if len(captured.Ingredients) != 2 || captured.Ingredients[0].Name != "Egg" || captured.Ingredients[0].Quantity != "2" {
		t.Errorf("ingredients = %+v, want [Egg/2 Pancetta]", captured.Ingredients)
	}
}

// TestPostHandler_Create_InvalidJSON_Returns400 は壊れたリクエストボディが
// 400エラーになることをテストする。
func TestPostHandler_Create_InvalidJSON_Returns400(t *testing.T) {
	h := newTestPostHandler(&mockPostService{}, resolverWith(testAuthor))

	req := withUserID(httptest.NewRequest(http.MethodPost, "/api/posts", strings.NewReader(`{broken`)), "user-1")
	w := httptest.NewRecorder()

	h.Create(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

// TestPostHandler_Get_NotFound_Returns404 は存在しない投稿の取得が
// 404になることをテストする。
func TestPostHandler_Get_NotFound_Returns404(t *testing.T) {
	svc := &mockPostService{
		getFn: func(ctx context.Context, viewer *model.User, postID string) (*model.RecipePost, error) {
			return nil, model.NewPostNotFoundError(postID)
		},
	}
	h := newTestPostHandler(svc, resolverWith())

	req := withURLParam(httptest.NewRequest(http.MethodGet, "/api/posts/missing", nil), "postID", "missing")
	w := httptest.NewRecorder()

	h.Get(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}

	var resp apiErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Code != model.ErrCodePostNotFound {
		t.Errorf("code = %q, want %q", resp.Code, model.ErrCodePostNotFound)
	}
}

// TestPostHandler_Get_Forbidden_Returns403 は閲覧権限のない投稿の取得が
// 403になることをテストする。
func TestPostHandler_Get_Forbidden_Returns403(t *testing.T) {
	svc := &mockPostService{
		getFn: func(ctx context.Context, viewer *model.User, postID string) (*model.RecipePost, error) {
			return nil, model.NewPostForbiddenError()
		},
	}
	h := newTestPostHandler(svc, resolverWith())

	req := withURLParam(httptest.NewRequest(http.MethodGet, "/api/posts/p1", nil), "postID", "p1")
	w := httptest.NewRecorder()

	h.Get(w, req)

	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", w.Code, http.StatusForbidden)
	}
}

// TestPostHandler_Update_NotOwner_Returns403 は所有者以外による更新が
// 403になることをテストする。
func TestPostHandler_Update_NotOwner_Returns403(t *testing.T) {
	svc := &mockPostService{
		updateFn: func(ctx context.Context, viewer *model.User, postID string, params post.PostParams) (*model.RecipePost, error) {
			return nil, model.NewNotPostOwnerError()
		},
	}
	h := newTestPostHandler(svc, resolverWith(testAuthor))

	req := withUserID(httptest.NewRequest(http.MethodPut, "/api/posts/p1", strings.NewReader(`{"title":"x"}`)), "user-1")
	req = withURLParam(req, "postID", "p1")
	w := httptest.NewRecorder()

	h.Update(w, req)

	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", w.Code, http.StatusForbidden)
	}
}

// TestPostHandler_Delete_Success_Returns204 は投稿削除が204を返すことをテストする。
func TestPostHandler_Delete_Success_Returns204(t *testing.T) {
	deleted := ""
	svc := &mockPostService{
		deleteFn: func(ctx context.Context, viewer *model.User, postID string) error {
			deleted = postID
			return nil
		},
	}
	h := newTestPostHandler(svc, resolverWith(testAuthor))

	req := withUserID(httptest.NewRequest(http.MethodDelete, "/api/posts/p1", nil), "user-1")
	req = withURLParam(req, "postID", "p1")
	w := httptest.NewRecorder()

	h.Delete(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNoContent)
	}
	if deleted != "p1" {
		t.Errorf("deleted = %q, want p1", deleted)
	}
}

// TestPostHandler_ListByAuthor_UnknownUser_Returns404 は存在しないユーザーの
// 投稿一覧が404になることをテストする。
func TestPostHandler_ListByAuthor_UnknownUser_Returns404(t *testing.T) {
	h := newTestPostHandler(&mockPostService{}, resolverWith())

	req := withURLParam(httptest.NewRequest(http.MethodGet, "/api/users/ghost/posts", nil), "username", "ghost")
	w := httptest.NewRecorder()

	h.ListByAuthor(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

// TestPostHandler_ListByAuthor_ResolvesAuthor はユーザー名で解決した投稿者が
// サービスに渡されることをテストする。
func TestPostHandler_ListByAuthor_ResolvesAuthor(t *testing.T) {
	var sawAuthor *model.User
	svc := &mockPostService{
		listByAuthorFn: func(ctx context.Context, viewer *model.User, author *model.User) ([]*model.RecipePost, error) {
			sawAuthor = author
			return []*model.RecipePost{publishedPost("p1")}, nil
		},
	}
	h := NewPostHandler(svc, resolverWith(), &mockUsernameResolver{
		users: map[string]*model.User{"alice": testAuthor},
	}, &mockLinkPreview{})

	req := withURLParam(httptest.NewRequest(http.MethodGet, "/api/users/alice/posts", nil), "username", "alice")
	w := httptest.NewRecorder()

	h.ListByAuthor(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if sawAuthor == nil || sawAuthor.ID != "user-1" {
		t.Errorf("author = %+v, want user-1", sawAuthor)
	}
}

// TestPostHandler_ToggleLike_ReturnsLikedState はいいねトグルの結果が
// レスポンスに反映されることをテストする。
func TestPostHandler_ToggleLike_ReturnsLikedState(t *testing.T) {
	svc := &mockPostService{
		toggleLikeFn: func(ctx context.Context, viewer *model.User, postID string) (bool, error) {
			return true, nil
		},
	}
	h := newTestPostHandler(svc, resolverWith(testAuthor))

	req := withUserID(httptest.NewRequest(http.MethodPost, "/api/posts/p1/like", nil), "user-1")
	req = withURLParam(req, "postID", "p1")
	w := httptest.NewRecorder()

	h.ToggleLike(w, req)

	var resp toggleLikeResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !resp.Liked {
		t.Error("liked = false, want true")
	}
}

// TestPostHandler_ToggleSave_NoBody_UsesDefaultCollection はボディ省略時に
// デフォルトコレクション（空ID）への保存になることをテストする。
func TestPostHandler_ToggleSave_NoBody_UsesDefaultCollection(t *testing.T) {
	sawCollection := "unset"
	svc := &mockPostService{
		toggleSaveFn: func(ctx context.Context, viewer *model.User, postID, collectionID string) (bool, error) {
			sawCollection = collectionID
			return true, nil
		},
	}
	h := newTestPostHandler(svc, resolverWith(testAuthor))

	req := withUserID(httptest.NewRequest(http.MethodPost, "/api/posts/p1/save", nil), "user-1")
	req = withURLParam(req, "postID", "p1")
	w := httptest.NewRecorder()

	h.ToggleSave(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if sawCollection != "" {
		t.Errorf("collectionID = %q, want empty (default collection)", sawCollection)
	}
}

// TestPostHandler_ToggleSave_WithCollection は指定コレクションIDが
// サービスに渡されることをテストする。
func TestPostHandler_ToggleSave_WithCollection(t *testing.T) {
	sawCollection := ""
	svc := &mockPostService{
		toggleSaveFn: func(ctx context.Context, viewer *model.User, postID, collectionID string) (bool, error) {
			sawCollection = collectionID
			return true, nil
		},
	}
	h := newTestPostHandler(svc, resolverWith(testAuthor))

	body := strings.NewReader(`{"collection_id": "col-7"}`)
	req := withUserID(httptest.NewRequest(http.MethodPost, "/api/posts/p1/save", body), "user-1")
	req = withURLParam(req, "postID", "p1")
	w := httptest.NewRecorder()

	h.ToggleSave(w, req)

	if sawCollection != "col-7" {
		t.Errorf("collectionID = %q, want col-7", sawCollection)
	}
}

// TestPostHandler_CreateCollection_Returns201 はコレクション作成が
// 201を返すことをテストする。
func TestPostHandler_CreateCollection_Returns201(t *testing.T) {
	h := newTestPostHandler(&mockPostService{}, resolverWith(testAuthor))

	body := strings.NewReader(`{"name": "週末の作り置き"}`)
	req := withUserID(httptest.NewRequest(http.MethodPost, "/api/collections", body), "user-1")
	w := httptest.NewRecorder()

	h.CreateCollection(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusCreated)
	}

	var resp collectionResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Name != "週末の作り置き" {
		t.Errorf("name = %q, want 週末の作り置き", resp.Name)
	}
}

// TestPostHandler_FetchPreview_SSRFBlocked_Returns400 はSSRF防止で
// ブロックされたURLが400エラーになることをテストする。
func TestPostHandler_FetchPreview_SSRFBlocked_Returns400(t *testing.T) {
	h := NewPostHandler(&mockPostService{}, resolverWith(testAuthor), &mockUsernameResolver{}, &mockLinkPreview{
		err: model.NewSSRFBlockedError(),
	})

	body := strings.NewReader(`{"url": "http://169.254.169.254/latest/meta-data"}`)
	req := withUserID(httptest.NewRequest(http.MethodPost, "/api/posts/preview", body), "user-1")
	w := httptest.NewRecorder()

	h.FetchPreview(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

// TestPostHandler_FetchPreview_ReturnsTitleAndImage はプレビュー取得結果が
// レスポンスに含まれることをテストする。
func TestPostHandler_FetchPreview_ReturnsTitleAndImage(t *testing.T) {
	h := NewPostHandler(&mockPostService{}, resolverWith(testAuthor), &mockUsernameResolver{}, &mockLinkPreview{
		preview: &linkpreview.Preview{Title: "絶品カルボナーラ", ImageURL: "https://example.com/og.png"},
	})

	body := strings.NewReader(`{"url": "https://example.com/recipe"}`)
	req := withUserID(httptest.NewRequest(http.MethodPost, "/api/posts/preview", body), "user-1")
	w := httptest.NewRecorder()

	h.FetchPreview(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp linkPreviewResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Title != "絶品カルボナーラ" || resp.ImageURL != "https://example.com/og.png" {
		t.Errorf("preview = %+v, want title and image", resp)
	}
}
