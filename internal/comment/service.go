// Package comment は投稿コメントのドメインロジックを提供する。
package comment

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/hitoshi/cookfeed/internal/model"
	"github.com/hitoshi/cookfeed/internal/repository"
)

// PostViewer は投稿の取得と可視性判定のインターフェース。
// post.Serviceを抽象化してテスタビリティを向上させる。
type PostViewer interface {
	GetPost(ctx context.Context, viewer *model.User, postID string) (*model.RecipePost, error)
}

// Sanitizer はユーザー入力のHTMLサニタイズインターフェース。
type Sanitizer interface {
	Sanitize(rawHTML string) string
}

// Service は投稿コメントのサービス層。
// コメントの閲覧権限は対象投稿の閲覧権限に従う。
type Service struct {
	commentRepo repository.CommentRepository
	notifRepo   repository.NotificationRepository
	posts       PostViewer
	sanitizer   Sanitizer
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	commentRepo repository.CommentRepository,
	notifRepo repository.NotificationRepository,
	posts PostViewer,
	sanitizer Sanitizer,
) *Service {
	return &Service{
		commentRepo: commentRepo,
		notifRepo:   notifRepo,
		posts:       posts,
		sanitizer:   sanitizer,
	}
}

// AddComment は投稿にコメントを追加する。
// 閲覧できない投稿にはコメントできない。本文はサニタイズされ、空本文は拒否される。
// 投稿者への通知レコードを作成する（自分の投稿へのコメントは通知しない）。
func (s *Service) AddComment(ctx context.Context, viewer *model.User, postID, body string) (*model.Comment, error) {
	target, err := s.posts.GetPost(ctx, viewer, postID)
	if err != nil {
		return nil, err
	}

	sanitized := strings.TrimSpace(s.sanitizer.Sanitize(body))
	if sanitized == "" {
		return nil, model.NewInvalidRequestError("コメント本文は必須です")
	}

	created := &model.Comment{
		ID:     uuid.NewString(),
		PostID: postID,
		UserID: viewer.ID,
		Body:   sanitized,
	}
	if err := s.commentRepo.Create(ctx, created); err != nil {
		return nil, fmt.Errorf("コメントの作成に失敗しました: %w", err)
	}

	if target.AuthorID != viewer.ID {
		// 通知の作成失敗はコメント自体を失敗させない
		if err := s.notifRepo.Create(ctx, &model.Notification{
			ID:          uuid.NewString(),
			RecipientID: target.AuthorID,
			ActorID:     viewer.ID,
			Type:        model.NotificationTypeComment,
			PostID:      postID,
		}); err != nil {
			slog.Warn("コメント通知の作成に失敗しました",
				slog.String("post_id", postID),
				slog.String("actor_id", viewer.ID),
				slog.String("error", err.Error()),
			)
		}
	}
	return created, nil
}

// ListComments は投稿のコメント一覧を作成日時昇順で返す。
// 対象投稿を閲覧できない場合はコメントも閲覧できない。
func (s *Service) ListComments(ctx context.Context, viewer *model.User, postID string) ([]*model.Comment, error) {
	if _, err := s.posts.GetPost(ctx, viewer, postID); err != nil {
		return nil, err
	}

	comments, err := s.commentRepo.ListByPost(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("コメント一覧の取得に失敗しました: %w", err)
	}
	return comments, nil
}

// DeleteComment はコメントを削除する。
// コメントの投稿者本人、または対象投稿の投稿者のみが実行できる。
func (s *Service) DeleteComment(ctx context.Context, viewer *model.User, commentID string) error {
	target, err := s.commentRepo.FindByID(ctx, commentID)
	if err != nil {
		return fmt.Errorf("コメントの取得に失敗しました: %w", err)
	}
	if target == nil {
		return model.NewCommentNotFoundError(commentID)
	}

	if target.UserID != viewer.ID {
		parent, err := s.posts.GetPost(ctx, viewer, target.PostID)
		if err != nil {
			return err
		}
		if parent.AuthorID != viewer.ID {
			return model.NewNotPostOwnerError()
		}
	}

	if err := s.commentRepo.Delete(ctx, commentID); err != nil {
		return fmt.Errorf("コメントの削除に失敗しました: %w", err)
	}
	return nil
}
