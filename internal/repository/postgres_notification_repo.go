package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/cookfeed/internal/model"
)

// PostgresNotificationRepo はPostgreSQLを使用した通知リポジトリ。
type PostgresNotificationRepo struct {
	db *sql.DB
}

// NewPostgresNotificationRepo はPostgresNotificationRepoを生成する。
func NewPostgresNotificationRepo(db *sql.DB) *PostgresNotificationRepo {
	return &PostgresNotificationRepo{db: db}
}

// Create は通知レコードを作成する。
func (r *PostgresNotificationRepo) Create(ctx context.Context, n *model.Notification) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO notifications (id, recipient_id, actor_id, type, post_id, is_read, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		n.ID, n.RecipientID, n.ActorID, n.Type, nullString(n.PostID), n.IsRead, n.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("通知の作成に失敗しました: %w", err)
	}
	return nil
}

// ListByRecipient は受信者の通知一覧をアクターJOIN済み・新着順で返す。
func (r *PostgresNotificationRepo) ListByRecipient(ctx context.Context, recipientID string, limit int) ([]*model.Notification, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT n.id, n.recipient_id, n.actor_id, n.type, n.post_id, n.is_read, n.created_at,
		        `+prefixedUserColumns+`
		 FROM notifications n
		 JOIN users u ON u.id = n.actor_id
		 WHERE n.recipient_id = $1
		 ORDER BY n.created_at DESC
		 LIMIT $2`,
		recipientID, limit)
	if err != nil {
		return nil, fmt.Errorf("通知一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var notifications []*model.Notification
	for rows.Next() {
		n := &model.Notification{Actor: &model.User{}}
		var postID sql.NullString
		var firstName, lastName, bio, avatarURL sql.NullString
		if err := rows.Scan(
			&n.ID, &n.RecipientID, &n.ActorID, &n.Type, &postID, &n.IsRead, &n.CreatedAt,
			&n.Actor.ID, &n.Actor.Username, &n.Actor.Email,
			&firstName, &lastName, &bio, &avatarURL,
			&n.Actor.IsPrivate, &n.Actor.CreatedAt, &n.Actor.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("通知行の読み取りに失敗しました: %w", err)
		}
		n.PostID = nullStringValue(postID)
		n.Actor.FirstName = nullStringValue(firstName)
		n.Actor.LastName = nullStringValue(lastName)
		n.Actor.Bio = nullStringValue(bio)
		n.Actor.AvatarURL = nullStringValue(avatarURL)
		notifications = append(notifications, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("通知一覧の走査に失敗しました: %w", err)
	}
	return notifications, nil
}

// MarkRead は指定通知を既読にする。受信者以外の通知には作用しない。
func (r *PostgresNotificationRepo) MarkRead(ctx context.Context, recipientID, notificationID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE notifications SET is_read = true WHERE id = $1 AND recipient_id = $2`,
		notificationID, recipientID,
	)
	if err != nil {
		return fmt.Errorf("通知の既読化に失敗しました: %w", err)
	}
	return nil
}

// MarkAllRead は受信者の全通知を既読にする。
func (r *PostgresNotificationRepo) MarkAllRead(ctx context.Context, recipientID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE notifications SET is_read = true WHERE recipient_id = $1 AND is_read = false`,
		recipientID,
	)
	if err != nil {
		return fmt.Errorf("通知の一括既読化に失敗しました: %w", err)
	}
	return nil
}

// DeleteByUserID はユーザーが受信者またはアクターである全通知を削除する。
func (r *PostgresNotificationRepo) DeleteByUserID(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM notifications WHERE recipient_id = $1 OR actor_id = $1`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("通知の削除に失敗しました: %w", err)
	}
	return nil
}

// compile-time interface check
var _ NotificationRepository = (*PostgresNotificationRepo)(nil)
