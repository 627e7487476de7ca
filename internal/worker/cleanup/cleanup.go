// Package cleanup はデータベースの定期クリーンアップジョブを提供する。
// 期限切れセッションの削除、既読通知の保持期間超過分の削除、
// 保存数キャッシュカウンタのドリフト修復を日次バッチで実行する。
package cleanup

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

// Executor はSQLのExecContextを抽象化するインターフェース。
// *sql.DB や *sql.Tx を受け付けることができる。
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// CleanupJob はデータベースの定期クリーンアップジョブ。
// 日次実行のバッチジョブとして設計されており、冪等な処理を保証する。
type CleanupJob struct {
	db            Executor
	logger        *slog.Logger
	RetentionDays int // 既読通知の保持日数（デフォルト: 14）
}

// NewCleanupJob は新しいCleanupJobを生成する。
// デフォルトの保持日数は14日。
func NewCleanupJob(db Executor, logger *slog.Logger) *CleanupJob {
	return &CleanupJob{
		db:            db,
		logger:        logger,
		RetentionDays: 14,
	}
}

// Run はクリーンアップの全ステップを実行する。
// 冪等: 対象レコードがない場合でもエラーにならない。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()

	expiredSessions, err := j.deleteExpiredSessions(ctx)
	if err != nil {
		return err
	}

	staleNotifications, err := j.deleteReadNotifications(ctx)
	if err != nil {
		return err
	}

	repairedCounters, err := j.reconcileSavedCounts(ctx)
	if err != nil {
		return err
	}

	duration := time.Since(start)
	j.logger.Info("クリーンアップジョブが完了しました",
		slog.Int64("expired_sessions", expiredSessions),
		slog.Int64("stale_notifications", staleNotifications),
		slog.Int64("repaired_counters", repairedCounters),
		slog.Int("retention_days", j.RetentionDays),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}

// deleteExpiredSessions は有効期限切れのセッションを削除する。
func (j *CleanupJob) deleteExpiredSessions(ctx context.Context) (int64, error) {
	result, err := j.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at < now()`)
	if err != nil {
		j.logger.Error("期限切れセッションの削除に失敗しました",
			slog.String("error", err.Error()),
		)
		return 0, fmt.Errorf("期限切れセッションの削除に失敗: %w", err)
	}
	return result.RowsAffected()
}

// deleteReadNotifications は保持期間を超過した既読通知を削除する。
func (j *CleanupJob) deleteReadNotifications(ctx context.Context) (int64, error) {
	interval := fmt.Sprintf("%d days", j.RetentionDays)

	result, err := j.db.ExecContext(ctx,
		`DELETE FROM notifications WHERE is_read = true AND created_at < now() - $1::interval`,
		interval)
	if err != nil {
		j.logger.Error("既読通知の削除に失敗しました",
			slog.String("error", err.Error()),
			slog.Int("retention_days", j.RetentionDays),
		)
		return 0, fmt.Errorf("既読通知の削除に失敗: %w", err)
	}
	return result.RowsAffected()
}

// reconcileSavedCounts はposts.saved_countをsaved_postsの実数に合わせて修復する。
// トグル操作は同一トランザクションでカウンタを更新するため通常ドリフトは発生しないが、
// 手動のデータ修正等でずれた場合の保険として実数と突き合わせる。
func (j *CleanupJob) reconcileSavedCounts(ctx context.Context) (int64, error) {
	result, err := j.db.ExecContext(ctx, `
		UPDATE posts p
		SET saved_count = c.actual
		FROM (
			SELECT po.id, COALESCE(s.cnt, 0) AS actual
			FROM posts po
			LEFT JOIN (SELECT post_id, COUNT(*) AS cnt FROM saved_posts GROUP BY post_id) s
			       ON s.post_id = po.id
		) c
		WHERE p.id = c.id AND p.saved_count <> c.actual`)
	if err != nil {
		j.logger.Error("保存数カウンタの修復に失敗しました",
			slog.String("error", err.Error()),
		)
		return 0, fmt.Errorf("保存数カウンタの修復に失敗: %w", err)
	}
	return result.RowsAffected()
}
