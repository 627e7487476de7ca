package linkpreview

import (
	"context"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/hitoshi/cookfeed/internal/model"
)

// defaultMaxBodySize はプレビュー取得時に読み込むレスポンスボディの最大サイズ（5MB）。
const defaultMaxBodySize = 5 * 1024 * 1024

// SSRFValidator はSSRF検証のインターフェース。
// security.SSRFGuardServiceを抽象化してテスタビリティを向上させる。
type SSRFValidator interface {
	ValidateURL(rawURL string) error
	NewSafeClient(timeout time.Duration, maxResponseSize int64) *http.Client
}

// Fetcher は参照元URLからプレビュー情報を取得する。
type Fetcher struct {
	ssrfGuard SSRFValidator
	timeout   time.Duration
	maxSize   int64
}

// NewFetcher はFetcherの新しいインスタンスを生成する。
func NewFetcher(ssrfGuard SSRFValidator, timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Fetcher{
		ssrfGuard: ssrfGuard,
		timeout:   timeout,
		maxSize:   defaultMaxBodySize,
	}
}

// SetMaxBodySize はレスポンスボディの最大読み込みサイズを変更する。
// 0以下の値は無視される。
func (f *Fetcher) SetMaxBodySize(size int64) {
	if size > 0 {
		f.maxSize = size
	}
}

// FetchPreview は指定URLのページを取得してプレビュー情報を抽出する。
// 1. SSRF検証を実行
// 2. URLにHTTPリクエストを送信
// 3. HTMLの場合はheadタグからタイトル・OGP画像を抽出
// HTMLでないページ（PDF等）はタイトルなしの空プレビューを返す。
func (f *Fetcher) FetchPreview(ctx context.Context, pageURL string) (*Preview, error) {
	if pageURL == "" {
		return nil, model.NewInvalidURLError("URLが入力されていません")
	}

	// SSRF検証
	if f.ssrfGuard != nil {
		if err := f.ssrfGuard.ValidateURL(pageURL); err != nil {
			return nil, model.NewSSRFBlockedError()
		}
	}

	client := f.getHTTPClient()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, model.NewInvalidURLError(err.Error())
	}
	req.Header.Set("User-Agent", "Cookfeed/1.0 Link Preview")
	req.Header.Set("Accept", "text/html, application/xhtml+xml, */*")

	resp, err := client.Do(req)
	if err != nil {
		return nil, model.NewFetchFailedError(err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, model.NewFetchFailedError(resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxSize))
	if err != nil {
		return nil, model.NewFetchFailedError(err.Error())
	}

	contentType := resp.Header.Get("Content-Type")
	mediaType, _, _ := mime.ParseMediaType(contentType)
	if !strings.Contains(strings.ToLower(mediaType), "html") {
		// HTML以外はプレビュー抽出の対象外
		return &Preview{}, nil
	}

	preview := ParsePreviewFromHTML(body, pageURL)
	return &preview, nil
}

// getHTTPClient はHTTPクライアントを取得する。
// SSRFGuardが設定されている場合はSSRF防止付きクライアントを返す。
func (f *Fetcher) getHTTPClient() *http.Client {
	if f.ssrfGuard != nil {
		return f.ssrfGuard.NewSafeClient(f.timeout, f.maxSize)
	}
	return &http.Client{Timeout: f.timeout}
}
