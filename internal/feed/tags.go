package feed

import "strings"

// NormalizeTags はタグ列を正規化する。前後空白を除去し、小文字化し、
// 空要素を捨て、初出順を保つ。サービス内のタグ比較はすべて
// この関数（またはSplitTags）を通過するため、大文字小文字・空白の
// 揺れに依存しないマッチングが保証される。
func NormalizeTags(tags []string) []string {
	normalized := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" {
			continue
		}
		normalized = append(normalized, tag)
	}
	return normalized
}

// SplitTags はカンマ区切りのタグ文字列を正規化済みタグ列に変換する。
func SplitTags(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return NormalizeTags(strings.Split(s, ","))
}

// dedupeTags はタグ列の重複を初出順を保ったまま除去する。
func dedupeTags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	result := make([]string, 0, len(tags))
	for _, tag := range tags {
		if seen[tag] {
			continue
		}
		seen[tag] = true
		result = append(result, tag)
	}
	return result
}

// tagSet はタグ列を集合に変換する。
func tagSet(tags []string) map[string]bool {
	set := make(map[string]bool, len(tags))
	for _, tag := range tags {
		set[tag] = true
	}
	return set
}

// hasAnyTag は正規化済みタグ列がpreferred集合のいずれかを含むかを返す。
func hasAnyTag(tags []string, preferred map[string]bool) bool {
	for _, tag := range NormalizeTags(tags) {
		if preferred[tag] {
			return true
		}
	}
	return false
}
