// Package notification はアプリ内通知のドメインロジックを提供する。
//
// 通知はレコードの作成と取得のみを扱い、プッシュ配信等のファンアウトは行わない。
// レコードの作成はフォロー・いいね・コメントの各操作の中で行われる。
package notification

import (
	"context"
	"fmt"

	"github.com/hitoshi/cookfeed/internal/model"
	"github.com/hitoshi/cookfeed/internal/repository"
)

// defaultLimit は通知一覧のデフォルト取得件数。
const defaultLimit = 50

// Service はアプリ内通知のサービス層。
type Service struct {
	notifRepo repository.NotificationRepository
	limit     int
}

// NewService はServiceの新しいインスタンスを生成する。
// limitが0以下の場合はデフォルト値を使用する。
func NewService(notifRepo repository.NotificationRepository, limit int) *Service {
	if limit <= 0 {
		limit = defaultLimit
	}
	return &Service{notifRepo: notifRepo, limit: limit}
}

// ListNotifications はviewerの通知一覧をアクター情報付き・新着順で返す。
func (s *Service) ListNotifications(ctx context.Context, viewer *model.User) ([]*model.Notification, error) {
	notifications, err := s.notifRepo.ListByRecipient(ctx, viewer.ID, s.limit)
	if err != nil {
		return nil, fmt.Errorf("通知一覧の取得に失敗しました: %w", err)
	}
	return notifications, nil
}

// MarkRead は指定通知を既読にする。受信者本人の通知のみが対象であり、
// 他人の通知IDを指定しても何も起きない（受信者IDで絞り込まれる）。
func (s *Service) MarkRead(ctx context.Context, viewer *model.User, notificationID string) error {
	if err := s.notifRepo.MarkRead(ctx, viewer.ID, notificationID); err != nil {
		return fmt.Errorf("通知の既読化に失敗しました: %w", err)
	}
	return nil
}

// MarkAllRead はviewerの全通知を既読にする。
func (s *Service) MarkAllRead(ctx context.Context, viewer *model.User) error {
	if err := s.notifRepo.MarkAllRead(ctx, viewer.ID); err != nil {
		return fmt.Errorf("通知の一括既読化に失敗しました: %w", err)
	}
	return nil
}
