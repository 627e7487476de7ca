// Package model はドメインモデルを定義する。
package model

import "time"

// Visibility は投稿の公開範囲を表す。
type Visibility string

const (
	// VisibilityPublic は全員に公開される投稿。
	VisibilityPublic Visibility = "public"
	// VisibilityFollowers はフォロワーのみに公開される投稿。
	VisibilityFollowers Visibility = "followers"
	// VisibilityCloseFriends は親しい友達のみに公開される投稿。
	VisibilityCloseFriends Visibility = "close_friends"
)

// RecipePost はレシピ投稿を表す。
// PublishedAtがnilの投稿は下書きであり、いかなるフィードにも表示されない。
type RecipePost struct {
	ID          string
	AuthorID    string
	Author      *User // JOINで取得される投稿者情報
	Title       string
	Description string // サニタイズ済みHTML
	Category    string
	Visibility  Visibility
	Tags        []string // 小文字正規化済みで保存される
	Ingredients []Ingredient
	PrepTimeMin int
	CookTimeMin int
	Servings    int
	SourceURL   string
	SourceTitle string
	ImageURL    string
	SavedCount  int
	LikeCount   int // 読み取り専用（COUNT JOINで取得）
	PublishedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// IsPublished は公開済み投稿かどうかを返す。
func (p *RecipePost) IsPublished() bool {
	return p.PublishedAt != nil
}

// TotalTimeMin は準備時間と調理時間の合計（分）を返す。
func (p *RecipePost) TotalTimeMin() int {
	return p.PrepTimeMin + p.CookTimeMin
}

// Ingredient はレシピの材料を表す。
// Nameは小文字・前後空白除去で正規化されて保存される。
type Ingredient struct {
	ID       string
	PostID   string
	Name     string
	Quantity string // 自由記述（"大さじ2" 等）
	Position int
}

// PostSort はフィード・検索一覧のソート種別を表す。
type PostSort string

const (
	// PostSortNewest は新着順（published_at降順）。デフォルト。
	PostSortNewest PostSort = "newest"
	// PostSortOldest は古い順（published_at昇順）。
	PostSortOldest PostSort = "oldest"
	// PostSortPopular は人気順（保存数+いいね数の降順、同値は新着順）。
	PostSortPopular PostSort = "popular"
)

// ParsePostSort は文字列をPostSortに解釈する。
// 未知の値・空文字はPostSortNewestを返す（fail-closedではなくデフォルト動作）。
func ParsePostSort(s string) PostSort {
	switch PostSort(s) {
	case PostSortOldest:
		return PostSortOldest
	case PostSortPopular:
		return PostSortPopular
	default:
		return PostSortNewest
	}
}

// Comment は投稿へのコメントを表す。
type Comment struct {
	ID        string
	PostID    string
	UserID    string
	User      *User
	Body      string // サニタイズ済み
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Collection は保存した投稿をまとめるコレクションを表す。
type Collection struct {
	ID        string
	OwnerID   string
	Name      string
	PostCount int
	CreatedAt time.Time
	UpdatedAt time.Time
}
