// Package feed はフィードのランキング・絞り込み・検索のドメインロジックを提供する。
//
// 3種類のフィードを生成する:
//   - 「おすすめ」: いいね履歴のタグ親和性でスコアリングし、シード付きシャッフルで返す
//   - 「フォロー中」: フォローしている投稿者の新着
//   - 「見つける」: ファセット絞り込み付きの全体検索
//
// いずれも可視性フィルタ（privacyパッケージ）を通過した投稿のみを返す。
// 全操作は（データストアの内容、引数）の純粋関数であり、リクエスト間で
// 状態を保持しない。シードやオフセットは呼び出し側が明示的に渡す。
package feed

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/hitoshi/cookfeed/internal/model"
	"github.com/hitoshi/cookfeed/internal/repository"
)

// tagMatchScore はタグ親和性マッチ1件のスコア。鮮度3日分・保存3件分に相当する。
const tagMatchScore = 3

// freshnessWindowDays は鮮度スコアの上限（日）。これより古い投稿の鮮度項は0になる。
const freshnessWindowDays = 10

// privateTag はこのタグが付いた投稿を投稿者以外の「見つける」結果から除外する。
// visibilityフィールドとは独立に作用する。
const privateTag = "#private"

// defaultUserSearchLimit はユーザー検索のデフォルト取得件数。
const defaultUserSearchLimit = 18

// VisibilityFilter は投稿集合の可視性絞り込みインターフェース。
// privacy.Serviceを抽象化してテスタビリティを向上させる。
type VisibilityFilter interface {
	FilterVisiblePosts(ctx context.Context, posts []*model.RecipePost, viewer *model.User) ([]*model.RecipePost, error)
}

// Recorder はフィードメトリクス収集のインターフェース。nilの場合は記録しない。
type Recorder interface {
	// RecordFeedRequest はフィード種別ごとのリクエストと候補集合サイズを記録する。
	RecordFeedRequest(variant string, candidates, visible int)
}

// Service はフィード生成のサービス層。
type Service struct {
	postRepo repository.PostRepository
	relRepo  repository.RelationRepository
	engRepo  repository.EngagementRepository
	userRepo repository.UserRepository
	privacy  VisibilityFilter
	metrics  Recorder
	now      func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。metricsはnilを許容する。
func NewService(
	postRepo repository.PostRepository,
	relRepo repository.RelationRepository,
	engRepo repository.EngagementRepository,
	userRepo repository.UserRepository,
	privacy VisibilityFilter,
	metrics Recorder,
) *Service {
	return &Service{
		postRepo: postRepo,
		relRepo:  relRepo,
		engRepo:  engRepo,
		userRepo: userRepo,
		privacy:  privacy,
		metrics:  metrics,
		now:      time.Now,
	}
}

// UserPreferenceTags はユーザーがいいねした投稿のタグを
// 正規化・初出順・重複除去で集めた好みタグ列を返す。
func (s *Service) UserPreferenceTags(ctx context.Context, user *model.User) ([]string, error) {
	if !user.IsAuthenticated() {
		return nil, nil
	}
	liked, err := s.engRepo.ListLikedPosts(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	var tags []string
	for _, post := range liked {
		tags = append(tags, NormalizeTags(post.Tags)...)
	}
	return dedupeTags(tags), nil
}

// PreferredTagsForUser はいいね済み投稿ID集合と好みタグ列を返す。
// 未認証ユーザーには両方とも空を返す。いいねが1件もない場合、タグ列は空になる。
func (s *Service) PreferredTagsForUser(ctx context.Context, user *model.User) (map[string]bool, []string, error) {
	if !user.IsAuthenticated() {
		return map[string]bool{}, nil, nil
	}
	liked, err := s.engRepo.ListLikedPosts(ctx, user.ID)
	if err != nil {
		return nil, nil, err
	}

	likedIDs := make(map[string]bool, len(liked))
	var tags []string
	for _, post := range liked {
		likedIDs[post.ID] = true
		tags = append(tags, NormalizeTags(post.Tags)...)
	}
	return likedIDs, dedupeTags(tags), nil
}

// ApplyQueryFilters はフリーテキストクエリで投稿を絞り込む。
// タイトル・説明・タグのいずれかにクエリが大文字小文字無視で
// 部分一致する投稿を残す。空クエリは入力をそのまま返す。
func ApplyQueryFilters(posts []*model.RecipePost, query string) []*model.RecipePost {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return posts
	}

	filtered := make([]*model.RecipePost, 0, len(posts))
	for _, post := range posts {
		if strings.Contains(strings.ToLower(post.Title), query) ||
			strings.Contains(strings.ToLower(post.Description), query) {
			filtered = append(filtered, post)
			continue
		}
		for _, tag := range NormalizeTags(post.Tags) {
			if strings.Contains(tag, query) {
				filtered = append(filtered, post)
				break
			}
		}
	}
	return filtered
}

// ScorePostForUser は投稿のパーソナライズスコアを計算する。
// score = タグ親和性(3) + 保存数 + 鮮度(max(0, 10 - 経過日数))。
// published_atがない投稿は経過日数999として扱い、鮮度項は0になる（負にはならない）。
func (s *Service) ScorePostForUser(post *model.RecipePost, preferredTags map[string]bool) int {
	score := 0
	if hasAnyTag(post.Tags, preferredTags) {
		score += tagMatchScore
	}
	score += post.SavedCount

	ageDays := 999
	if post.PublishedAt != nil {
		ageDays = int(s.now().Sub(*post.PublishedAt).Hours() / 24)
		if ageDays < 0 {
			ageDays = 0
		}
	}
	if freshness := freshnessWindowDays - ageDays; freshness > 0 {
		score += freshness
	}
	return score
}

// ForYouParams は「おすすめ」フィードのパラメータ。
type ForYouParams struct {
	Query  string
	Limit  int // 0以下 = 無制限
	Offset int
	Seed   int64
	Sort   string // 空の場合はシード付きシャッフル。popular|oldest|newestで明示ソート。
}

// ForYouPosts はパーソナライズされた「おすすめ」フィードを返す。
//
// パイプライン: 候補集合（公開済み全投稿） → 可視性フィルタ → クエリフィルタ
// → 好みタグでの絞り込み（いいね済み投稿は除外） → スコアリング
// → 明示ソートまたはシード付きシャッフル → [offset : offset+limit] スライス。
//
// 好みタグでの絞り込みが空集合になった場合は、絞り込み前の集合に
// フォールバックする。空のパーソナライズフィードは汎用フィードより悪い。
func (s *Service) ForYouPosts(ctx context.Context, viewer *model.User, params ForYouParams) ([]*model.RecipePost, error) {
	base, err := s.postRepo.ListPublished(ctx)
	if err != nil {
		return nil, err
	}

	visible, err := s.privacy.FilterVisiblePosts(ctx, base, viewer)
	if err != nil {
		return nil, err
	}
	visible = ApplyQueryFilters(visible, params.Query)

	likedIDs, preferredTags, err := s.PreferredTagsForUser(ctx, viewer)
	if err != nil {
		return nil, err
	}

	candidates := visible
	preferred := tagSet(preferredTags)
	if len(preferredTags) > 0 {
		// おすすめは未知の投稿を出す場なので、いいね済みは外し、好みタグと交差する投稿だけ残す
		tagged := make([]*model.RecipePost, 0, len(visible))
		for _, post := range visible {
			if likedIDs[post.ID] {
				continue
			}
			if hasAnyTag(post.Tags, preferred) {
				tagged = append(tagged, post)
			}
		}
		if len(tagged) > 0 {
			candidates = tagged
		}

		// スコア降順・同点は元の新着順を保つ
		scored := make([]*model.RecipePost, len(candidates))
		copy(scored, candidates)
		sort.SliceStable(scored, func(i, j int) bool {
			return s.ScorePostForUser(scored[i], preferred) > s.ScorePostForUser(scored[j], preferred)
		})
		candidates = scored
	}

	s.record("for_you", len(base), len(visible))

	if params.Sort != "" {
		sorted := sortPosts(candidates, model.ParsePostSort(params.Sort))
		return paginatePosts(sorted, params.Offset, params.Limit), nil
	}

	shuffled := shufflePosts(candidates, params.Seed)
	return paginatePosts(shuffled, params.Offset, params.Limit), nil
}

// FollowingPosts は「フォロー中」フィードを返す。
// 候補投稿者はフォローエッジの先のみ。誰もフォローしていない場合は
// 空を返し、汎用フィードへのフォールバックは行わない（おすすめとは対照的）。
func (s *Service) FollowingPosts(ctx context.Context, viewer *model.User, query string, offset, limit int) ([]*model.RecipePost, error) {
	if !viewer.IsAuthenticated() {
		return nil, nil
	}

	authorIDs, err := s.relRepo.FollowedAuthorIDs(ctx, viewer.ID)
	if err != nil {
		return nil, err
	}
	if len(authorIDs) == 0 {
		return nil, nil
	}

	base, err := s.postRepo.ListPublishedByAuthors(ctx, authorIDs)
	if err != nil {
		return nil, err
	}

	visible, err := s.privacy.FilterVisiblePosts(ctx, base, viewer)
	if err != nil {
		return nil, err
	}
	visible = ApplyQueryFilters(visible, query)

	s.record("following", len(base), len(visible))

	// 新着順（リポジトリの順序）を保ったままスライスする
	return paginatePosts(visible, offset, limit), nil
}

// DiscoverParams は「見つける」一覧のファセットパラメータ。
type DiscoverParams struct {
	Query           string
	Category        string   // 大文字小文字無視の完全一致。"all"・空はフィルタなし。
	IngredientQuery string   // 単一材料の部分一致
	HaveIngredients []string // 手持ち材料の許可リスト
	MinTotalTime    string   // prep+cook合計の下限（分）。パース不能な値は無視。
	MaxTotalTime    string   // prep+cook合計の上限（分）。パース不能な値は無視。
	Sort            string   // popular|oldest|newest
	Offset          int
	Limit           int
}

// DiscoverPosts はファセット絞り込み付きの「見つける」一覧を返す。
//
// 適用順: #privateタグ除外（投稿者本人は除く） → クエリフィルタ → カテゴリ
// → 材料部分一致 → 合計調理時間の範囲 → 手持ち材料の許可リスト
// → 可視性フィルタ → 全体ソート（popular / oldest / newest）。
func (s *Service) DiscoverPosts(ctx context.Context, viewer *model.User, params DiscoverParams) ([]*model.RecipePost, error) {
	base, err := s.postRepo.ListPublished(ctx)
	if err != nil {
		return nil, err
	}

	posts := excludePrivateTagged(base, viewer)
	posts = ApplyQueryFilters(posts, params.Query)
	posts = filterByCategory(posts, params.Category)
	posts = filterByIngredientQuery(posts, params.IngredientQuery)
	posts = filterByTotalTime(posts, params.MinTotalTime, params.MaxTotalTime)
	posts = filterByHaveIngredients(posts, params.HaveIngredients)

	visible, err := s.privacy.FilterVisiblePosts(ctx, posts, viewer)
	if err != nil {
		return nil, err
	}

	s.record("discover", len(base), len(visible))

	sorted := sortPosts(visible, model.ParsePostSort(params.Sort))
	return paginatePosts(sorted, params.Offset, params.Limit), nil
}

// SearchUsers はユーザー名・姓名でユーザーを検索する。
// クエリは@と空白で分割され、複数トークンの場合は全トークンが
// いずれかのフィールドに一致する必要がある（トークン間AND、フィールド間OR）。
// これにより「Jane Doe」と「Doe Jane」の両方がJane Doeに一致する。
// 空クエリは常に空の結果を返す（全ユーザーを返すことはない）。
func (s *Service) SearchUsers(ctx context.Context, query string, limit int) ([]*model.User, error) {
	tokens := strings.Fields(strings.ReplaceAll(query, "@", " "))
	if len(tokens) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = defaultUserSearchLimit
	}
	return s.userRepo.Search(ctx, strings.Join(tokens, " "), tokens, limit)
}

// record はメトリクスを記録する。コレクタ未設定の場合は何もしない。
func (s *Service) record(variant string, candidates, visible int) {
	if s.metrics != nil {
		s.metrics.RecordFeedRequest(variant, candidates, visible)
	}
}

// excludePrivateTagged は#privateタグ付き投稿を投稿者本人以外から隠す。
func excludePrivateTagged(posts []*model.RecipePost, viewer *model.User) []*model.RecipePost {
	filtered := make([]*model.RecipePost, 0, len(posts))
	for _, post := range posts {
		if viewer.IsAuthenticated() && viewer.ID == post.AuthorID {
			filtered = append(filtered, post)
			continue
		}
		hidden := false
		for _, tag := range NormalizeTags(post.Tags) {
			if tag == privateTag {
				hidden = true
				break
			}
		}
		if !hidden {
			filtered = append(filtered, post)
		}
	}
	return filtered
}

// filterByCategory はカテゴリの完全一致（大文字小文字無視）で絞り込む。
// 空または"all"はワイルドカードとして扱う。
func filterByCategory(posts []*model.RecipePost, category string) []*model.RecipePost {
	category = strings.ToLower(strings.TrimSpace(category))
	if category == "" || category == "all" {
		return posts
	}
	filtered := make([]*model.RecipePost, 0, len(posts))
	for _, post := range posts {
		if strings.ToLower(post.Category) == category {
			filtered = append(filtered, post)
		}
	}
	return filtered
}

// filterByIngredientQuery は単一材料名の部分一致で絞り込む。
func filterByIngredientQuery(posts []*model.RecipePost, ingredientQ string) []*model.RecipePost {
	ingredientQ = strings.ToLower(strings.TrimSpace(ingredientQ))
	if ingredientQ == "" {
		return posts
	}
	filtered := make([]*model.RecipePost, 0, len(posts))
	for _, post := range posts {
		for _, ing := range post.Ingredients {
			if strings.Contains(strings.ToLower(ing.Name), ingredientQ) {
				filtered = append(filtered, post)
				break
			}
		}
	}
	return filtered
}

// filterByTotalTime は合計調理時間（prep+cook）の範囲で絞り込む。
// 境界値は非負整数としてパースできた場合のみ適用され、
// パース不能な値はエラーではなく無視される。
func filterByTotalTime(posts []*model.RecipePost, minStr, maxStr string) []*model.RecipePost {
	minTime, hasMin := parseNonNegativeInt(minStr)
	maxTime, hasMax := parseNonNegativeInt(maxStr)
	if !hasMin && !hasMax {
		return posts
	}

	filtered := make([]*model.RecipePost, 0, len(posts))
	for _, post := range posts {
		total := post.TotalTimeMin()
		if hasMin && total < minTime {
			continue
		}
		if hasMax && total > maxTime {
			continue
		}
		filtered = append(filtered, post)
	}
	return filtered
}

// filterByHaveIngredients は手持ち材料の許可リストで絞り込む。
// 「許可リスト内の材料を1つ以上含む」かつ「許可リスト外の材料を1つも含まない」
// 投稿のみが残る。つまり手持ちの材料だけで作り切れるレシピに限定する。
func filterByHaveIngredients(posts []*model.RecipePost, have []string) []*model.RecipePost {
	allowed := tagSet(NormalizeTags(have))
	if len(allowed) == 0 {
		return posts
	}

	filtered := make([]*model.RecipePost, 0, len(posts))
	for _, post := range posts {
		hasAllowed := false
		hasDisallowed := false
		for _, ing := range post.Ingredients {
			name := strings.ToLower(strings.TrimSpace(ing.Name))
			if allowed[name] {
				hasAllowed = true
			} else {
				hasDisallowed = true
				break
			}
		}
		if hasAllowed && !hasDisallowed {
			filtered = append(filtered, post)
		}
	}
	return filtered
}

// parseNonNegativeInt は文字列を非負整数としてパースする。
// パース不能・負値の場合はfalseを返す（silently ignored）。
func parseNonNegativeInt(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// sortPosts は投稿列を全体ソートした新しいスライスを返す。
//   - popular: 保存数+いいね数の降順。同値は新着順。
//   - oldest:  published_at昇順、created_at昇順。
//   - newest:  published_at降順、created_at降順（デフォルト）。
func sortPosts(posts []*model.RecipePost, sortKey model.PostSort) []*model.RecipePost {
	sorted := make([]*model.RecipePost, len(posts))
	copy(sorted, posts)

	switch sortKey {
	case model.PostSortPopular:
		sort.SliceStable(sorted, func(i, j int) bool {
			pi := sorted[i].SavedCount + sorted[i].LikeCount
			pj := sorted[j].SavedCount + sorted[j].LikeCount
			if pi != pj {
				return pi > pj
			}
			return publishedAfter(sorted[i], sorted[j])
		})
	case model.PostSortOldest:
		sort.SliceStable(sorted, func(i, j int) bool {
			return publishedAfter(sorted[j], sorted[i])
		})
	default:
		sort.SliceStable(sorted, func(i, j int) bool {
			return publishedAfter(sorted[i], sorted[j])
		})
	}
	return sorted
}

// publishedAfter はaがbより新しい（published_at、次いでcreated_atで比較）かを返す。
func publishedAfter(a, b *model.RecipePost) bool {
	pa, pb := publishedOrZero(a), publishedOrZero(b)
	if !pa.Equal(pb) {
		return pa.After(pb)
	}
	return a.CreatedAt.After(b.CreatedAt)
}

// publishedOrZero はpublished_atを返す。nilの場合はゼロ値。
func publishedOrZero(p *model.RecipePost) time.Time {
	if p.PublishedAt == nil {
		return time.Time{}
	}
	return *p.PublishedAt
}
