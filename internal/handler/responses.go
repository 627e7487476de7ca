package handler

import (
	"time"

	"github.com/hitoshi/cookfeed/internal/model"
)

// userResponse はユーザーのJSON表現。メールアドレス等の非公開項目は含めない。
type userResponse struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	FullName  string `json:"full_name"`
	Bio       string `json:"bio,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
	IsPrivate bool   `json:"is_private"`
}

func newUserResponse(u *model.User) *userResponse {
	if u == nil {
		return nil
	}
	return &userResponse{
		ID:        u.ID,
		Username:  u.Username,
		FullName:  u.FullName(),
		Bio:       u.Bio,
		AvatarURL: u.AvatarURL,
		IsPrivate: u.IsPrivate,
	}
}

func newUserResponses(users []*model.User) []*userResponse {
	responses := make([]*userResponse, 0, len(users))
	for _, u := range users {
		responses = append(responses, newUserResponse(u))
	}
	return responses
}

// ingredientResponse は材料のJSON表現。
type ingredientResponse struct {
	Name     string `json:"name"`
	Quantity string `json:"quantity,omitempty"`
	Position int    `json:"position"`
}

// postResponse はレシピ投稿のJSON表現。
type postResponse struct {
	ID          string               `json:"id"`
	Author      *userResponse        `json:"author,omitempty"`
	Title       string               `json:"title"`
	Description string               `json:"description,omitempty"`
	Category    string               `json:"category,omitempty"`
	Visibility  string               `json:"visibility"`
	Tags        []string             `json:"tags,omitempty"`
	Ingredients []ingredientResponse `json:"ingredients,omitempty"`
	PrepTimeMin int                  `json:"prep_time_min"`
	CookTimeMin int                  `json:"cook_time_min"`
	Servings    int                  `json:"servings"`
	SourceURL   string               `json:"source_url,omitempty"`
	SourceTitle string               `json:"source_title,omitempty"`
	ImageURL    string               `json:"image_url,omitempty"`
	SavedCount  int                  `json:"saved_count"`
	LikeCount   int                  `json:"like_count"`
	IsDraft     bool                 `json:"is_draft"`
	PublishedAt *time.Time           `json:"published_at,omitempty"`
	CreatedAt   time.Time            `json:"created_at"`
}

func newPostResponse(p *model.RecipePost) *postResponse {
	ingredients := make([]ingredientResponse, 0, len(p.Ingredients))
	for _, ing := range p.Ingredients {
		ingredients = append(ingredients, ingredientResponse{
			Name:     ing.Name,
			Quantity: ing.Quantity,
			Position: ing.Position,
		})
	}

	return &postResponse{
		ID:          p.ID,
		Author:      newUserResponse(p.Author),
		Title:       p.Title,
		Description: p.Description,
		Category:    p.Category,
		Visibility:  string(p.Visibility),
		Tags:        p.Tags,
		Ingredients: ingredients,
		PrepTimeMin: p.PrepTimeMin,
		CookTimeMin: p.CookTimeMin,
		Servings:    p.Servings,
		SourceURL:   p.SourceURL,
		SourceTitle: p.SourceTitle,
		ImageURL:    p.ImageURL,
		SavedCount:  p.SavedCount,
		LikeCount:   p.LikeCount,
		IsDraft:     !p.IsPublished(),
		PublishedAt: p.PublishedAt,
		CreatedAt:   p.CreatedAt,
	}
}

func newPostResponses(posts []*model.RecipePost) []*postResponse {
	responses := make([]*postResponse, 0, len(posts))
	for _, p := range posts {
		responses = append(responses, newPostResponse(p))
	}
	return responses
}

// commentResponse はコメントのJSON表現。
type commentResponse struct {
	ID        string        `json:"id"`
	PostID    string        `json:"post_id"`
	User      *userResponse `json:"user,omitempty"`
	Body      string        `json:"body"`
	CreatedAt time.Time     `json:"created_at"`
}

func newCommentResponse(c *model.Comment) *commentResponse {
	return &commentResponse{
		ID:        c.ID,
		PostID:    c.PostID,
		User:      newUserResponse(c.User),
		Body:      c.Body,
		CreatedAt: c.CreatedAt,
	}
}

// notificationResponse は通知のJSON表現。
type notificationResponse struct {
	ID        string        `json:"id"`
	Actor     *userResponse `json:"actor,omitempty"`
	Type      string        `json:"type"`
	PostID    string        `json:"post_id,omitempty"`
	IsRead    bool          `json:"is_read"`
	CreatedAt time.Time     `json:"created_at"`
}

func newNotificationResponse(n *model.Notification) *notificationResponse {
	return &notificationResponse{
		ID:        n.ID,
		Actor:     newUserResponse(n.Actor),
		Type:      string(n.Type),
		PostID:    n.PostID,
		IsRead:    n.IsRead,
		CreatedAt: n.CreatedAt,
	}
}
