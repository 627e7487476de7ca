// Package linkpreview はレシピの参照元URLからページ情報を取得・抽出する。
package linkpreview

import (
	"bytes"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// Preview はリンク先ページから抽出したプレビュー情報を表す。
type Preview struct {
	Title    string
	ImageURL string
}

// ParsePreviewFromHTML はHTMLのheadタグからタイトルとOGP画像を解析・抽出する。
// og:titleが存在する場合は<title>より優先される。
// 相対URLはbaseURLを基準に絶対URLに解決される。
func ParsePreviewFromHTML(htmlBody []byte, baseURL string) Preview {
	var preview Preview
	var titleTag string

	baseU, err := url.Parse(baseURL)
	if err != nil {
		return preview
	}

	tokenizer := html.NewTokenizer(bytes.NewReader(htmlBody))
	inHead := false
	inTitle := false

	for {
		tt := tokenizer.Next()
		switch tt {
		case html.ErrorToken:
			return finishPreview(preview, titleTag)

		case html.TextToken:
			if inTitle {
				titleTag += string(tokenizer.Text())
			}

		case html.StartTagToken, html.SelfClosingTagToken:
			tn, hasAttr := tokenizer.TagName()
			tagName := string(tn)

			if tagName == "head" {
				inHead = true
				continue
			}

			if tagName == "body" {
				// bodyに入ったらheadの解析を終了
				return finishPreview(preview, titleTag)
			}

			if !inHead {
				continue
			}

			if tagName == "title" {
				inTitle = true
				continue
			}

			if tagName != "meta" || !hasAttr {
				continue
			}

			// meta要素の属性を解析
			var property, content string
			for {
				key, val, more := tokenizer.TagAttr()
				k := strings.ToLower(string(key))
				v := string(val)
				switch k {
				case "property", "name":
					property = strings.ToLower(v)
				case "content":
					content = v
				}
				if !more {
					break
				}
			}

			switch property {
			case "og:title":
				if preview.Title == "" {
					preview.Title = strings.TrimSpace(content)
				}
			case "og:image":
				if preview.ImageURL == "" {
					preview.ImageURL = resolveURL(baseU, content)
				}
			}

		case html.EndTagToken:
			tn, _ := tokenizer.TagName()
			switch string(tn) {
			case "title":
				inTitle = false
			case "head":
				return finishPreview(preview, titleTag)
			}
		}
	}
}

// finishPreview はog:titleがない場合に<title>の内容をフォールバックとして使う。
func finishPreview(preview Preview, titleTag string) Preview {
	if preview.Title == "" {
		preview.Title = strings.TrimSpace(titleTag)
	}
	return preview
}

// resolveURL は相対URLをベースURLを基準に絶対URLに解決する。
func resolveURL(base *url.URL, rawRef string) string {
	rawRef = strings.TrimSpace(rawRef)
	if rawRef == "" {
		return ""
	}
	ref, err := url.Parse(rawRef)
	if err != nil {
		return ""
	}
	return base.ResolveReference(ref).String()
}
