package linkpreview

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hitoshi/cookfeed/internal/model"
)

// mockSSRFValidator はテスト用のSSRF検証モック。
type mockSSRFValidator struct {
	validateErr error
}

func (m *mockSSRFValidator) ValidateURL(rawURL string) error {
	return m.validateErr
}

func (m *mockSSRFValidator) NewSafeClient(timeout time.Duration, maxResponseSize int64) *http.Client {
	return &http.Client{Timeout: timeout}
}

// --- FetchPreview のテスト ---

// TestFetchPreview_HTMLPage はHTMLページからタイトルを抽出することをテストする。
func TestFetchPreview_HTMLPage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(`<html><head><title>Fetched Recipe</title></head><body></body></html>`))
	}))
	defer server.Close()

	f := NewFetcher(nil, 5*time.Second)
	preview, err := f.FetchPreview(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if preview.Title != "Fetched Recipe" {
		t.Errorf("期待タイトル: Fetched Recipe, 結果: %s", preview.Title)
	}
}

// TestFetchPreview_NonHTMLPage はHTML以外のページで空プレビューを返すことをテストする。
func TestFetchPreview_NonHTMLPage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Write([]byte("%PDF-1.4"))
	}))
	defer server.Close()

	f := NewFetcher(nil, 5*time.Second)
	preview, err := f.FetchPreview(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if preview.Title != "" {
		t.Errorf("HTML以外のページでは空プレビューが返るべき: %+v", preview)
	}
}

// TestFetchPreview_EmptyURL は空URLでINVALID_URLエラーを返すことをテストする。
func TestFetchPreview_EmptyURL(t *testing.T) {
	f := NewFetcher(nil, 5*time.Second)

	_, err := f.FetchPreview(context.Background(), "")
	if err == nil {
		t.Fatal("expected error for empty URL, got nil")
	}
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeInvalidURL {
		t.Errorf("expected INVALID_URL error, got %v", err)
	}
}

// TestFetchPreview_SSRFBlocked はSSRF検証で拒否されたURLでSSRF_BLOCKEDエラーを返すことをテストする。
func TestFetchPreview_SSRFBlocked(t *testing.T) {
	guard := &mockSSRFValidator{validateErr: errors.New("private IP")}
	f := NewFetcher(guard, 5*time.Second)

	_, err := f.FetchPreview(context.Background(), "http://169.254.169.254/meta")
	if err == nil {
		t.Fatal("expected error for blocked URL, got nil")
	}
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeSSRFBlocked {
		t.Errorf("expected SSRF_BLOCKED error, got %v", err)
	}
}

// TestFetchPreview_ServerError は5xxレスポンスでFETCH_FAILEDエラーを返すことをテストする。
func TestFetchPreview_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	f := NewFetcher(nil, 5*time.Second)

	_, err := f.FetchPreview(context.Background(), server.URL)
	if err == nil {
		t.Fatal("expected error for 500 response, got nil")
	}
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeFetchFailed {
		t.Errorf("expected FETCH_FAILED error, got %v", err)
	}
}

// TestFetchPreview_UnreachableHost は接続できないホストでFETCH_FAILEDエラーを返すことをテストする。
func TestFetchPreview_UnreachableHost(t *testing.T) {
	f := NewFetcher(nil, 1*time.Second)

	_, err := f.FetchPreview(context.Background(), "http://127.0.0.1:1/preview")
	if err == nil {
		t.Fatal("expected error for unreachable host, got nil")
	}
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeFetchFailed {
		t.Errorf("expected FETCH_FAILED error, got %v", err)
	}
}
