// Package user はユーザー管理とソーシャルグラフのドメインロジックを提供する。
package user

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/hitoshi/cookfeed/internal/model"
	"github.com/hitoshi/cookfeed/internal/repository"
)

// ProfileViewer はプロフィール可視性判定のインターフェース。
// privacy.Serviceを抽象化してテスタビリティを向上させる。
type ProfileViewer interface {
	CanViewProfile(ctx context.Context, viewer, author *model.User) (bool, error)
}

// Sanitizer はユーザー入力のHTMLサニタイズインターフェース。
type Sanitizer interface {
	Sanitize(rawHTML string) string
}

// Profile はプロフィール画面用の読み取りモデル。
// Restrictedがtrueの場合、閲覧者には投稿・フォロー関係は公開されない。
type Profile struct {
	User           *model.User
	FollowerCount  int
	FollowingCount int
	IsFollowing    bool
	Restricted     bool
}

// Service はユーザー管理のサービス層。
// プロフィール、フォロー・親しい友達エッジ、退会処理のビジネスロジックを提供する。
type Service struct {
	userRepo    repository.UserRepository
	relRepo     repository.RelationRepository
	sessionRepo repository.SessionRepository
	notifRepo   repository.NotificationRepository
	privacy     ProfileViewer
	sanitizer   Sanitizer
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	userRepo repository.UserRepository,
	relRepo repository.RelationRepository,
	sessionRepo repository.SessionRepository,
	notifRepo repository.NotificationRepository,
	privacy ProfileViewer,
	sanitizer Sanitizer,
) *Service {
	return &Service{
		userRepo:    userRepo,
		relRepo:     relRepo,
		sessionRepo: sessionRepo,
		notifRepo:   notifRepo,
		privacy:     privacy,
		sanitizer:   sanitizer,
	}
}

// GetProfile はユーザー名からプロフィールを取得する。
// 非公開アカウントを非フォロワーが閲覧した場合もエラーにはせず、
// Restricted=trueの制限付きプロフィール（ユーザー情報とフォロワー数のみ）を返す。
func (s *Service) GetProfile(ctx context.Context, viewer *model.User, username string) (*Profile, error) {
	target, err := s.userRepo.FindByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if target == nil {
		return nil, model.NewUserNotFoundError()
	}

	canView, err := s.privacy.CanViewProfile(ctx, viewer, target)
	if err != nil {
		return nil, fmt.Errorf("プロフィール可視性の判定に失敗しました: %w", err)
	}

	followers, err := s.relRepo.ListFollowers(ctx, target.ID)
	if err != nil {
		return nil, fmt.Errorf("フォロワー一覧の取得に失敗しました: %w", err)
	}
	following, err := s.relRepo.ListFollowing(ctx, target.ID)
	if err != nil {
		return nil, fmt.Errorf("フォロー一覧の取得に失敗しました: %w", err)
	}

	isFollowing := false
	if viewer.IsAuthenticated() && viewer.ID != target.ID {
		isFollowing, err = s.relRepo.IsFollowing(ctx, viewer.ID, target.ID)
		if err != nil {
			return nil, fmt.Errorf("フォロー状態の取得に失敗しました: %w", err)
		}
	}

	return &Profile{
		User:           target,
		FollowerCount:  len(followers),
		FollowingCount: len(following),
		IsFollowing:    isFollowing,
		Restricted:     !canView,
	}, nil
}

// UpdateProfileParams はプロフィール更新のパラメータ。
// nilのフィールドは「未指定」として現状を維持する（空文字での消去と区別する）。
type UpdateProfileParams struct {
	FirstName *string
	LastName  *string
	Bio       *string
	AvatarURL *string
	IsPrivate *bool
}

// UpdateProfile は本人のプロフィール項目を更新する。
// 自己紹介はサニタイズされる。ユーザー名・メールアドレスは変更できない。
func (s *Service) UpdateProfile(ctx context.Context, userID string, params UpdateProfileParams) (*model.User, error) {
	target, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if target == nil {
		return nil, model.NewUserNotFoundError()
	}

	if params.FirstName != nil {
		target.FirstName = strings.TrimSpace(*params.FirstName)
	}
	if params.LastName != nil {
		target.LastName = strings.TrimSpace(*params.LastName)
	}
	if params.Bio != nil {
		target.Bio = s.sanitizer.Sanitize(*params.Bio)
	}
	if params.AvatarURL != nil {
		target.AvatarURL = strings.TrimSpace(*params.AvatarURL)
	}
	if params.IsPrivate != nil {
		target.IsPrivate = *params.IsPrivate
	}

	if err := s.userRepo.UpdateProfile(ctx, target); err != nil {
		return nil, fmt.Errorf("プロフィールの更新に失敗しました: %w", err)
	}
	return target, nil
}

// Follow はviewerがusernameのユーザーをフォローする。
// フォローが新規作成された場合のみ通知レコードを作成する。
// 既にフォロー済みの場合はDuplicateFollowエラーを返す。
func (s *Service) Follow(ctx context.Context, viewer *model.User, username string) error {
	target, err := s.userRepo.FindByUsername(ctx, username)
	if err != nil {
		return fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if target == nil {
		return model.NewUserNotFoundError()
	}
	if target.ID == viewer.ID {
		return model.NewSelfFollowError()
	}

	created, err := s.relRepo.CreateFollow(ctx, &model.Follow{
		ID:         uuid.NewString(),
		FollowerID: viewer.ID,
		AuthorID:   target.ID,
	})
	if err != nil {
		return fmt.Errorf("フォローの作成に失敗しました: %w", err)
	}
	if !created {
		return model.NewDuplicateFollowError()
	}

	// 通知の作成失敗はフォロー自体を失敗させない
	if err := s.notifRepo.Create(ctx, &model.Notification{
		ID:          uuid.NewString(),
		RecipientID: target.ID,
		ActorID:     viewer.ID,
		Type:        model.NotificationTypeFollow,
	}); err != nil {
		slog.Warn("フォロー通知の作成に失敗しました",
			slog.String("recipient_id", target.ID),
			slog.String("actor_id", viewer.ID),
			slog.String("error", err.Error()),
		)
	}
	return nil
}

// Unfollow はviewerがusernameのユーザーのフォローを解除する。冪等。
func (s *Service) Unfollow(ctx context.Context, viewer *model.User, username string) error {
	target, err := s.userRepo.FindByUsername(ctx, username)
	if err != nil {
		return fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if target == nil {
		return model.NewUserNotFoundError()
	}

	if err := s.relRepo.DeleteFollow(ctx, viewer.ID, target.ID); err != nil {
		return fmt.Errorf("フォローの解除に失敗しました: %w", err)
	}
	return nil
}

// AddCloseFriend はviewerがusernameのユーザーを親しい友達に追加する。
// フォロー関係とは独立したエッジであり、フォローの有無は前提にしない。
// 既に追加済みの場合は何もしない（冪等）。
func (s *Service) AddCloseFriend(ctx context.Context, viewer *model.User, username string) error {
	target, err := s.userRepo.FindByUsername(ctx, username)
	if err != nil {
		return fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if target == nil {
		return model.NewUserNotFoundError()
	}
	if target.ID == viewer.ID {
		return model.NewSelfCloseFriendError()
	}

	if _, err := s.relRepo.CreateCloseFriend(ctx, &model.CloseFriend{
		ID:       uuid.NewString(),
		OwnerID:  viewer.ID,
		FriendID: target.ID,
	}); err != nil {
		return fmt.Errorf("親しい友達の追加に失敗しました: %w", err)
	}
	return nil
}

// RemoveCloseFriend はviewerがusernameのユーザーを親しい友達から外す。冪等。
func (s *Service) RemoveCloseFriend(ctx context.Context, viewer *model.User, username string) error {
	target, err := s.userRepo.FindByUsername(ctx, username)
	if err != nil {
		return fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if target == nil {
		return model.NewUserNotFoundError()
	}

	if err := s.relRepo.DeleteCloseFriend(ctx, viewer.ID, target.ID); err != nil {
		return fmt.Errorf("親しい友達の削除に失敗しました: %w", err)
	}
	return nil
}

// ListCloseFriends はviewer自身の親しい友達一覧を返す。
// 他人の親しい友達リストは公開されない。
func (s *Service) ListCloseFriends(ctx context.Context, viewer *model.User) ([]*model.User, error) {
	friends, err := s.relRepo.ListCloseFriends(ctx, viewer.ID)
	if err != nil {
		return nil, fmt.Errorf("親しい友達一覧の取得に失敗しました: %w", err)
	}
	return friends, nil
}

// Withdraw はユーザーの退会処理を実行する。
// 削除順序: 通知 → セッション → ユーザー
// 投稿・フォロー・いいね・保存等はユーザー削除時にCASCADEで消える。
func (s *Service) Withdraw(ctx context.Context, userID string) error {
	target, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if target == nil {
		return model.NewUserNotFoundError()
	}

	slog.Info("退会処理を開始します",
		slog.String("user_id", userID),
	)

	// 1. ユーザーが受信者またはアクターである通知を削除
	if s.notifRepo != nil {
		if err := s.notifRepo.DeleteByUserID(ctx, userID); err != nil {
			return fmt.Errorf("通知の削除に失敗しました: %w", err)
		}
	}

	// 2. セッションを削除
	if s.sessionRepo != nil {
		if err := s.sessionRepo.DeleteByUserID(ctx, userID); err != nil {
			return fmt.Errorf("セッションの削除に失敗しました: %w", err)
		}
	}

	// 3. ユーザーを削除（identities, posts, follows等はCASCADE削除）
	if err := s.userRepo.DeleteByID(ctx, userID); err != nil {
		return fmt.Errorf("ユーザーの削除に失敗しました: %w", err)
	}

	slog.Info("退会処理が完了しました",
		slog.String("user_id", userID),
	)

	return nil
}
