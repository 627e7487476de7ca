package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/cookfeed/internal/model"
)

// PostgresEngagementRepo はPostgreSQLを使用したいいね・保存リポジトリ。
// トグル操作はエッジの作成/削除とキャッシュカウンタの単一行UPDATEを
// 同一トランザクションで行い、並行トグルによるロストアップデートを防ぐ。
type PostgresEngagementRepo struct {
	db *sql.DB
}

// NewPostgresEngagementRepo はPostgresEngagementRepoを生成する。
func NewPostgresEngagementRepo(db *sql.DB) *PostgresEngagementRepo {
	return &PostgresEngagementRepo{db: db}
}

// ToggleLike はいいねをトグルし、トグル後の状態（いいね済みならtrue）を返す。
func (r *PostgresEngagementRepo) ToggleLike(ctx context.Context, userID, postID string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO likes (id, user_id, post_id, created_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (user_id, post_id) DO NOTHING`,
		uuid.New().String(), userID, postID, time.Now(),
	)
	if err != nil {
		return false, fmt.Errorf("いいねの作成に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("挿入行数の取得に失敗しました: %w", err)
	}
	if rowsAffected > 0 {
		return true, nil
	}

	// 既にいいね済みの場合は解除する
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM likes WHERE user_id = $1 AND post_id = $2`,
		userID, postID,
	); err != nil {
		return false, fmt.Errorf("いいねの解除に失敗しました: %w", err)
	}
	return false, nil
}

// ToggleSave は保存をトグルし、トグル後の状態（保存済みならtrue）を返す。
// 投稿のsaved_countキャッシュはエッジと同一トランザクションの
// 単一行UPDATE（saved_count = saved_count ± 1）で更新する。
func (r *PostgresEngagementRepo) ToggleSave(ctx context.Context, userID, postID, collectionID string) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("トランザクションの開始に失敗しました: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`INSERT INTO saved_posts (id, user_id, post_id, collection_id, created_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (user_id, post_id) DO NOTHING`,
		uuid.New().String(), userID, postID, nullString(collectionID), time.Now(),
	)
	if err != nil {
		return false, fmt.Errorf("保存の作成に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("挿入行数の取得に失敗しました: %w", err)
	}

	saved := rowsAffected > 0
	if saved {
		_, err = tx.ExecContext(ctx,
			`UPDATE posts SET saved_count = saved_count + 1 WHERE id = $1`, postID)
	} else {
		if _, err = tx.ExecContext(ctx,
			`DELETE FROM saved_posts WHERE user_id = $1 AND post_id = $2`,
			userID, postID,
		); err == nil {
			_, err = tx.ExecContext(ctx,
				`UPDATE posts SET saved_count = GREATEST(saved_count - 1, 0) WHERE id = $1`, postID)
		}
	}
	if err != nil {
		return false, fmt.Errorf("保存数カウンタの更新に失敗しました: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("トランザクションのコミットに失敗しました: %w", err)
	}
	return saved, nil
}

// ListLikedPosts はユーザーがいいねした投稿をいいね日時の昇順で返す。
// 好みタグの「初出順」を保つため、並び順はlikes.created_at昇順とする。
func (r *PostgresEngagementRepo) ListLikedPosts(ctx context.Context, userID string) ([]*model.RecipePost, error) {
	postRepo := &PostgresPostRepo{db: r.db}
	return postRepo.listPosts(ctx,
		`SELECT `+postColumns+postFromJoins+`
		 JOIN likes lk ON lk.post_id = p.id AND lk.user_id = $1
		 ORDER BY lk.created_at ASC`,
		userID)
}

// ListSavedPosts はユーザーが保存した投稿を保存日時の降順で返す。
func (r *PostgresEngagementRepo) ListSavedPosts(ctx context.Context, userID, collectionID string) ([]*model.RecipePost, error) {
	postRepo := &PostgresPostRepo{db: r.db}
	if collectionID != "" {
		return postRepo.listPosts(ctx,
			`SELECT `+postColumns+postFromJoins+`
			 JOIN saved_posts sp ON sp.post_id = p.id AND sp.user_id = $1 AND sp.collection_id = $2
			 ORDER BY sp.created_at DESC`,
			userID, collectionID)
	}
	return postRepo.listPosts(ctx,
		`SELECT `+postColumns+postFromJoins+`
		 JOIN saved_posts sp ON sp.post_id = p.id AND sp.user_id = $1
		 ORDER BY sp.created_at DESC`,
		userID)
}

// compile-time interface check
var _ EngagementRepository = (*PostgresEngagementRepo)(nil)
