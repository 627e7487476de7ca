package feed

import (
	"math/rand"

	"github.com/hitoshi/cookfeed/internal/model"
)

// shufflePosts は投稿列をシード付きで決定的にシャッフルした新しいスライスを返す。
// math/randのシード付きジェネレータによるFisher–Yatesシャッフルであり、
// 結果は(seed, 入力列)の純粋関数。同じシードと同じ候補集合であれば
// 常に同じ順列になるため、offset 0, L, 2L, … とページングしても
// 重複・抜けのない一貫した走査になる（セッション単位のシードを想定）。
func shufflePosts(posts []*model.RecipePost, seed int64) []*model.RecipePost {
	shuffled := make([]*model.RecipePost, len(posts))
	copy(shuffled, posts)

	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	return shuffled
}

// paginatePosts は[offset : offset+limit]のスライスを返す。
// limitが0以下の場合は[offset:]を返す。範囲外のoffsetは空スライスになる。
func paginatePosts(posts []*model.RecipePost, offset, limit int) []*model.RecipePost {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(posts) {
		return nil
	}
	end := len(posts)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return posts[offset:end]
}
