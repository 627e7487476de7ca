package feed

import (
	"reflect"
	"testing"
)

// TestNormalizeTags は小文字化・前後空白除去・空要素の除去をテストする。
func TestNormalizeTags(t *testing.T) {
	got := NormalizeTags([]string{" Pasta ", "DINNER", "", "  ", "quick"})
	want := []string{"pasta", "dinner", "quick"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("NormalizeTags = %v, want %v", got, want)
	}
}

// TestSplitTags はカンマ区切り文字列からの正規化済みタグ列生成をテストする。
func TestSplitTags(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"通常のカンマ区切り", "Pasta, dinner ,QUICK", []string{"pasta", "dinner", "quick"}},
		{"空文字はnil", "", nil},
		{"空白のみはnil", "   ", nil},
		{"空要素は捨てる", "pasta,,dinner", []string{"pasta", "dinner"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SplitTags(tt.input)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("SplitTags(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

// TestDedupeTags は初出順を保った重複除去をテストする。
func TestDedupeTags(t *testing.T) {
	got := dedupeTags([]string{"pasta", "dinner", "pasta", "quick", "dinner"})
	want := []string{"pasta", "dinner", "quick"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("dedupeTags = %v, want %v", got, want)
	}
}

// TestHasAnyTag は正規化後のタグと好み集合の交差判定をテストする。
func TestHasAnyTag(t *testing.T) {
	preferred := map[string]bool{"pasta": true}

	if !hasAnyTag([]string{" PASTA "}, preferred) {
		t.Error("hasAnyTag should match after normalization")
	}
	if hasAnyTag([]string{"tacos"}, preferred) {
		t.Error("hasAnyTag should not match disjoint tags")
	}
	if hasAnyTag(nil, preferred) {
		t.Error("hasAnyTag should be false for empty tags")
	}
}
