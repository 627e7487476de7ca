// Package post はレシピ投稿のドメインロジックを提供する。
package post

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/cookfeed/internal/feed"
	"github.com/hitoshi/cookfeed/internal/model"
	"github.com/hitoshi/cookfeed/internal/repository"
)

// VisibilityService は投稿可視性判定のインターフェース。
// privacy.Serviceを抽象化してテスタビリティを向上させる。
type VisibilityService interface {
	CanViewPost(ctx context.Context, viewer *model.User, post *model.RecipePost) (bool, error)
	FilterVisiblePosts(ctx context.Context, posts []*model.RecipePost, viewer *model.User) ([]*model.RecipePost, error)
}

// Sanitizer はユーザー入力のHTMLサニタイズインターフェース。
type Sanitizer interface {
	Sanitize(rawHTML string) string
}

// URLValidator は参照元URLの事前検証インターフェース。
// SSRFGuardServiceを抽象化してテスタビリティを向上させる。
type URLValidator interface {
	ValidateURL(rawURL string) error
}

// Service はレシピ投稿のサービス層。
// 投稿のCRUD、いいね・保存のトグル、コレクション管理のビジネスロジックを提供する。
type Service struct {
	postRepo       repository.PostRepository
	engRepo        repository.EngagementRepository
	collectionRepo repository.CollectionRepository
	notifRepo      repository.NotificationRepository
	privacy        VisibilityService
	sanitizer      Sanitizer
	urlValidator   URLValidator
	now            func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	postRepo repository.PostRepository,
	engRepo repository.EngagementRepository,
	collectionRepo repository.CollectionRepository,
	notifRepo repository.NotificationRepository,
	privacy VisibilityService,
	sanitizer Sanitizer,
	urlValidator URLValidator,
) *Service {
	return &Service{
		postRepo:       postRepo,
		engRepo:        engRepo,
		collectionRepo: collectionRepo,
		notifRepo:      notifRepo,
		privacy:        privacy,
		sanitizer:      sanitizer,
		urlValidator:   urlValidator,
		now:            time.Now,
	}
}

// IngredientInput は投稿作成・更新時の材料入力。
type IngredientInput struct {
	Name     string
	Quantity string
}

// PostParams は投稿の作成・更新パラメータ。
type PostParams struct {
	Title       string
	Description string
	Category    string
	Visibility  string // 空はpublic
	Tags        string // カンマ区切り
	Ingredients []IngredientInput
	PrepTimeMin int
	CookTimeMin int
	Servings    int
	SourceURL   string
	ImageURL    string
	Publish     bool // falseは下書きとして保存
}

// CreatePost は新しいレシピ投稿を作成する。
// タイトルは必須。説明文はサニタイズされ、タグ・材料名は小文字に正規化される。
// 参照元URLが指定されている場合はSSRF防止の事前検証を通過する必要がある。
func (s *Service) CreatePost(ctx context.Context, author *model.User, params PostParams) (*model.RecipePost, error) {
	created, err := s.buildPost(params, &model.RecipePost{
		ID:       uuid.NewString(),
		AuthorID: author.ID,
	})
	if err != nil {
		return nil, err
	}

	if params.Publish {
		published := s.now()
		created.PublishedAt = &published
	}

	if err := s.postRepo.Create(ctx, created); err != nil {
		return nil, fmt.Errorf("投稿の作成に失敗しました: %w", err)
	}

	slog.Info("投稿を作成しました",
		slog.String("post_id", created.ID),
		slog.String("author_id", author.ID),
		slog.Bool("published", created.IsPublished()),
	)
	return created, nil
}

// UpdatePost は既存の投稿を更新する。投稿者本人のみが実行できる。
// 一度公開された投稿は下書きには戻らない。下書きをPublish=trueで
// 更新するとその時点で公開される。
func (s *Service) UpdatePost(ctx context.Context, viewer *model.User, postID string, params PostParams) (*model.RecipePost, error) {
	existing, err := s.postRepo.FindByID(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("投稿の取得に失敗しました: %w", err)
	}
	if existing == nil {
		return nil, model.NewPostNotFoundError(postID)
	}
	if existing.AuthorID != viewer.ID {
		return nil, model.NewNotPostOwnerError()
	}

	updated, err := s.buildPost(params, &model.RecipePost{
		ID:          existing.ID,
		AuthorID:    existing.AuthorID,
		PublishedAt: existing.PublishedAt,
		CreatedAt:   existing.CreatedAt,
	})
	if err != nil {
		return nil, err
	}

	if params.Publish && updated.PublishedAt == nil {
		published := s.now()
		updated.PublishedAt = &published
	}

	if err := s.postRepo.Update(ctx, updated); err != nil {
		return nil, fmt.Errorf("投稿の更新に失敗しました: %w", err)
	}
	return updated, nil
}

// buildPost はパラメータを検証・正規化してpostに書き込む。
func (s *Service) buildPost(params PostParams, post *model.RecipePost) (*model.RecipePost, error) {
	title := strings.TrimSpace(params.Title)
	if title == "" {
		return nil, model.NewInvalidRequestError("タイトルは必須です")
	}

	visibility := model.VisibilityPublic
	if params.Visibility != "" {
		switch model.Visibility(params.Visibility) {
		case model.VisibilityPublic, model.VisibilityFollowers, model.VisibilityCloseFriends:
			visibility = model.Visibility(params.Visibility)
		default:
			return nil, model.NewInvalidVisibilityError(params.Visibility)
		}
	}

	sourceURL := strings.TrimSpace(params.SourceURL)
	if sourceURL != "" {
		if err := s.urlValidator.ValidateURL(sourceURL); err != nil {
			return nil, model.NewInvalidURLError(err.Error())
		}
	}

	if params.PrepTimeMin < 0 || params.CookTimeMin < 0 || params.Servings < 0 {
		return nil, model.NewInvalidRequestError("調理時間・人数には0以上の値を指定してください")
	}

	ingredients := make([]model.Ingredient, 0, len(params.Ingredients))
	for _, in := range params.Ingredients {
		name := strings.ToLower(strings.TrimSpace(in.Name))
		if name == "" {
			continue
		}
		ingredients = append(ingredients, model.Ingredient{
			ID:       uuid.NewString(),
			PostID:   post.ID,
			Name:     name,
			Quantity: strings.TrimSpace(in.Quantity),
			Position: len(ingredients),
		})
	}

	post.Title = title
	post.Description = s.sanitizer.Sanitize(params.Description)
	post.Category = strings.TrimSpace(params.Category)
	post.Visibility = visibility
	post.Tags = feed.SplitTags(params.Tags)
	post.Ingredients = ingredients
	post.PrepTimeMin = params.PrepTimeMin
	post.CookTimeMin = params.CookTimeMin
	post.Servings = params.Servings
	post.SourceURL = sourceURL
	post.ImageURL = strings.TrimSpace(params.ImageURL)
	return post, nil
}

// GetPost は投稿を取得する。
// 下書きは投稿者本人以外には存在しないものとして扱い、
// 可視性判定で拒否された場合は存在有無を漏らさないForbiddenを返す。
func (s *Service) GetPost(ctx context.Context, viewer *model.User, postID string) (*model.RecipePost, error) {
	found, err := s.postRepo.FindByID(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("投稿の取得に失敗しました: %w", err)
	}
	if found == nil {
		return nil, model.NewPostNotFoundError(postID)
	}

	if !found.IsPublished() {
		if !viewer.IsAuthenticated() || viewer.ID != found.AuthorID {
			return nil, model.NewPostNotFoundError(postID)
		}
		return found, nil
	}

	canView, err := s.privacy.CanViewPost(ctx, viewer, found)
	if err != nil {
		return nil, fmt.Errorf("投稿可視性の判定に失敗しました: %w", err)
	}
	if !canView {
		return nil, model.NewPostForbiddenError()
	}
	return found, nil
}

// DeletePost は投稿を削除する。投稿者本人のみが実行できる。
func (s *Service) DeletePost(ctx context.Context, viewer *model.User, postID string) error {
	existing, err := s.postRepo.FindByID(ctx, postID)
	if err != nil {
		return fmt.Errorf("投稿の取得に失敗しました: %w", err)
	}
	if existing == nil {
		return model.NewPostNotFoundError(postID)
	}
	if existing.AuthorID != viewer.ID {
		return model.NewNotPostOwnerError()
	}

	if err := s.postRepo.Delete(ctx, postID); err != nil {
		return fmt.Errorf("投稿の削除に失敗しました: %w", err)
	}

	slog.Info("投稿を削除しました",
		slog.String("post_id", postID),
		slog.String("author_id", viewer.ID),
	)
	return nil
}

// ListByAuthor は投稿者の投稿一覧を返す。
// 本人には下書きを含む全投稿、他の閲覧者には可視性フィルタを通過した投稿のみ。
func (s *Service) ListByAuthor(ctx context.Context, viewer *model.User, author *model.User) ([]*model.RecipePost, error) {
	isOwner := viewer.IsAuthenticated() && viewer.ID == author.ID
	posts, err := s.postRepo.ListByAuthor(ctx, author.ID, isOwner)
	if err != nil {
		return nil, fmt.Errorf("投稿一覧の取得に失敗しました: %w", err)
	}
	if isOwner {
		return posts, nil
	}

	visible, err := s.privacy.FilterVisiblePosts(ctx, posts, viewer)
	if err != nil {
		return nil, fmt.Errorf("投稿可視性の判定に失敗しました: %w", err)
	}
	return visible, nil
}

// ToggleLike はいいねをトグルし、トグル後の状態を返す。
// 新たにいいねが付いた場合のみ、投稿者への通知レコードを作成する
// （自分の投稿へのいいねは通知しない）。
func (s *Service) ToggleLike(ctx context.Context, viewer *model.User, postID string) (bool, error) {
	target, err := s.GetPost(ctx, viewer, postID)
	if err != nil {
		return false, err
	}

	liked, err := s.engRepo.ToggleLike(ctx, viewer.ID, postID)
	if err != nil {
		return false, fmt.Errorf("いいねのトグルに失敗しました: %w", err)
	}

	if liked && target.AuthorID != viewer.ID {
		// 通知の作成失敗はいいね自体を失敗させない
		if err := s.notifRepo.Create(ctx, &model.Notification{
			ID:          uuid.NewString(),
			RecipientID: target.AuthorID,
			ActorID:     viewer.ID,
			Type:        model.NotificationTypeLike,
			PostID:      postID,
		}); err != nil {
			slog.Warn("いいね通知の作成に失敗しました",
				slog.String("post_id", postID),
				slog.String("actor_id", viewer.ID),
				slog.String("error", err.Error()),
			)
		}
	}
	return liked, nil
}

// ToggleSave は投稿の保存をトグルし、トグル後の状態を返す。
// collectionIDが空の場合はデフォルトコレクションに保存する。
// 他人のコレクションへの保存はコレクション未検出として扱う。
func (s *Service) ToggleSave(ctx context.Context, viewer *model.User, postID, collectionID string) (bool, error) {
	if _, err := s.GetPost(ctx, viewer, postID); err != nil {
		return false, err
	}

	if collectionID != "" {
		collection, err := s.collectionRepo.FindByID(ctx, collectionID)
		if err != nil {
			return false, fmt.Errorf("コレクションの取得に失敗しました: %w", err)
		}
		if collection == nil || collection.OwnerID != viewer.ID {
			return false, model.NewInvalidRequestError("指定されたコレクションが見つかりません")
		}
	}

	saved, err := s.engRepo.ToggleSave(ctx, viewer.ID, postID, collectionID)
	if err != nil {
		return false, fmt.Errorf("保存のトグルに失敗しました: %w", err)
	}
	return saved, nil
}

// ListSavedPosts はviewerが保存した投稿一覧を返す。
// 保存後に非公開化された投稿も可視性フィルタで除外される。
func (s *Service) ListSavedPosts(ctx context.Context, viewer *model.User, collectionID string) ([]*model.RecipePost, error) {
	if collectionID != "" {
		collection, err := s.collectionRepo.FindByID(ctx, collectionID)
		if err != nil {
			return nil, fmt.Errorf("コレクションの取得に失敗しました: %w", err)
		}
		if collection == nil || collection.OwnerID != viewer.ID {
			return nil, model.NewInvalidRequestError("指定されたコレクションが見つかりません")
		}
	}

	posts, err := s.engRepo.ListSavedPosts(ctx, viewer.ID, collectionID)
	if err != nil {
		return nil, fmt.Errorf("保存済み投稿の取得に失敗しました: %w", err)
	}

	visible, err := s.privacy.FilterVisiblePosts(ctx, posts, viewer)
	if err != nil {
		return nil, fmt.Errorf("投稿可視性の判定に失敗しました: %w", err)
	}
	return visible, nil
}

// CreateCollection は保存用コレクションを作成する。名前は必須。
func (s *Service) CreateCollection(ctx context.Context, viewer *model.User, name string) (*model.Collection, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, model.NewInvalidRequestError("コレクション名は必須です")
	}

	collection := &model.Collection{
		ID:      uuid.NewString(),
		OwnerID: viewer.ID,
		Name:    name,
	}
	if err := s.collectionRepo.Create(ctx, collection); err != nil {
		return nil, fmt.Errorf("コレクションの作成に失敗しました: %w", err)
	}
	return collection, nil
}

// ListCollections はviewer自身のコレクション一覧を投稿数付きで返す。
func (s *Service) ListCollections(ctx context.Context, viewer *model.User) ([]*model.Collection, error) {
	collections, err := s.collectionRepo.ListByOwner(ctx, viewer.ID)
	if err != nil {
		return nil, fmt.Errorf("コレクション一覧の取得に失敗しました: %w", err)
	}
	return collections, nil
}

// DeleteCollection はコレクションを削除する。所有者のみが実行できる。
// 中の保存レコードはCASCADE削除されるが、投稿自体は消えない。
func (s *Service) DeleteCollection(ctx context.Context, viewer *model.User, collectionID string) error {
	collection, err := s.collectionRepo.FindByID(ctx, collectionID)
	if err != nil {
		return fmt.Errorf("コレクションの取得に失敗しました: %w", err)
	}
	if collection == nil || collection.OwnerID != viewer.ID {
		return model.NewInvalidRequestError("指定されたコレクションが見つかりません")
	}

	if err := s.collectionRepo.Delete(ctx, collectionID); err != nil {
		return fmt.Errorf("コレクションの削除に失敗しました: %w", err)
	}
	return nil
}
