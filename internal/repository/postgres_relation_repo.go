package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/cookfeed/internal/model"
)

// PostgresRelationRepo はPostgreSQLを使用したフォロー・親しい友達リポジトリ。
type PostgresRelationRepo struct {
	db *sql.DB
}

// NewPostgresRelationRepo はPostgresRelationRepoを生成する。
func NewPostgresRelationRepo(db *sql.DB) *PostgresRelationRepo {
	return &PostgresRelationRepo{db: db}
}

// ViewerRelationships は閲覧者の関係集合を一括で読み込む。
// フォロー中の投稿者集合と、閲覧者を親しい友達に指定している投稿者集合を
// それぞれ1クエリで取得する。viewerIDが空の場合は空の集合を返す。
func (r *PostgresRelationRepo) ViewerRelationships(ctx context.Context, viewerID string) (*Relationships, error) {
	rel := &Relationships{
		Following:     make(map[string]bool),
		CloseFriendOf: make(map[string]bool),
	}
	if viewerID == "" {
		return rel, nil
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT author_id FROM follows WHERE follower_id = $1`, viewerID)
	if err != nil {
		return nil, fmt.Errorf("フォロー集合の取得に失敗しました: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var authorID string
		if err := rows.Scan(&authorID); err != nil {
			return nil, fmt.Errorf("フォロー行の読み取りに失敗しました: %w", err)
		}
		rel.Following[authorID] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("フォロー集合の走査に失敗しました: %w", err)
	}

	cfRows, err := r.db.QueryContext(ctx,
		`SELECT owner_id FROM close_friends WHERE friend_id = $1`, viewerID)
	if err != nil {
		return nil, fmt.Errorf("親しい友達集合の取得に失敗しました: %w", err)
	}
	defer cfRows.Close()
	for cfRows.Next() {
		var ownerID string
		if err := cfRows.Scan(&ownerID); err != nil {
			return nil, fmt.Errorf("親しい友達行の読み取りに失敗しました: %w", err)
		}
		rel.CloseFriendOf[ownerID] = true
	}
	if err := cfRows.Err(); err != nil {
		return nil, fmt.Errorf("親しい友達集合の走査に失敗しました: %w", err)
	}

	return rel, nil
}

// IsFollowing はfollowerがauthorをフォローしているかを返す。
func (r *PostgresRelationRepo) IsFollowing(ctx context.Context, followerID, authorID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM follows WHERE follower_id = $1 AND author_id = $2)`,
		followerID, authorID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("フォロー関係の確認に失敗しました: %w", err)
	}
	return exists, nil
}

// IsCloseFriend はownerがfriendを親しい友達に指定しているかを返す。
func (r *PostgresRelationRepo) IsCloseFriend(ctx context.Context, ownerID, friendID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM close_friends WHERE owner_id = $1 AND friend_id = $2)`,
		ownerID, friendID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("親しい友達関係の確認に失敗しました: %w", err)
	}
	return exists, nil
}

// FollowedAuthorIDs はユーザーがフォローしている投稿者IDの一覧を返す。
func (r *PostgresRelationRepo) FollowedAuthorIDs(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT author_id FROM follows WHERE follower_id = $1 ORDER BY created_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("フォロー中投稿者の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("フォロー中投稿者行の読み取りに失敗しました: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("フォロー中投稿者の走査に失敗しました: %w", err)
	}
	return ids, nil
}

// CreateFollow はフォローエッジを作成する。重複時は何もせずfalseを返す。
func (r *PostgresRelationRepo) CreateFollow(ctx context.Context, follow *model.Follow) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO follows (id, follower_id, author_id, created_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (follower_id, author_id) DO NOTHING`,
		follow.ID, follow.FollowerID, follow.AuthorID, follow.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("フォローの作成に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("挿入行数の取得に失敗しました: %w", err)
	}
	return rowsAffected > 0, nil
}

// DeleteFollow はフォローエッジを削除する。
func (r *PostgresRelationRepo) DeleteFollow(ctx context.Context, followerID, authorID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM follows WHERE follower_id = $1 AND author_id = $2`,
		followerID, authorID,
	)
	if err != nil {
		return fmt.Errorf("フォローの削除に失敗しました: %w", err)
	}
	return nil
}

// ListFollowers はauthorのフォロワー一覧を返す。
func (r *PostgresRelationRepo) ListFollowers(ctx context.Context, authorID string) ([]*model.User, error) {
	return r.listRelatedUsers(ctx,
		`SELECT `+prefixedUserColumns+`
		 FROM follows f JOIN users u ON u.id = f.follower_id
		 WHERE f.author_id = $1
		 ORDER BY f.created_at DESC`,
		authorID)
}

// ListFollowing はuserがフォローしているユーザー一覧を返す。
func (r *PostgresRelationRepo) ListFollowing(ctx context.Context, userID string) ([]*model.User, error) {
	return r.listRelatedUsers(ctx,
		`SELECT `+prefixedUserColumns+`
		 FROM follows f JOIN users u ON u.id = f.author_id
		 WHERE f.follower_id = $1
		 ORDER BY f.created_at DESC`,
		userID)
}

// CreateCloseFriend は親しい友達エッジを作成する。重複時は何もせずfalseを返す。
func (r *PostgresRelationRepo) CreateCloseFriend(ctx context.Context, cf *model.CloseFriend) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO close_friends (id, owner_id, friend_id, created_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (owner_id, friend_id) DO NOTHING`,
		cf.ID, cf.OwnerID, cf.FriendID, cf.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("親しい友達の追加に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("挿入行数の取得に失敗しました: %w", err)
	}
	return rowsAffected > 0, nil
}

// DeleteCloseFriend は親しい友達エッジを削除する。
func (r *PostgresRelationRepo) DeleteCloseFriend(ctx context.Context, ownerID, friendID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM close_friends WHERE owner_id = $1 AND friend_id = $2`,
		ownerID, friendID,
	)
	if err != nil {
		return fmt.Errorf("親しい友達の削除に失敗しました: %w", err)
	}
	return nil
}

// ListCloseFriends はownerの親しい友達一覧を返す。
func (r *PostgresRelationRepo) ListCloseFriends(ctx context.Context, ownerID string) ([]*model.User, error) {
	return r.listRelatedUsers(ctx,
		`SELECT `+prefixedUserColumns+`
		 FROM close_friends cf JOIN users u ON u.id = cf.friend_id
		 WHERE cf.owner_id = $1
		 ORDER BY cf.created_at DESC`,
		ownerID)
}

// prefixedUserColumns はJOIN先usersテーブルのSELECT句（uエイリアス付き）。
const prefixedUserColumns = `u.id, u.username, u.email, u.first_name, u.last_name, u.bio, u.avatar_url, u.is_private, u.created_at, u.updated_at`

// listRelatedUsers は関係エッジJOINのユーザー一覧クエリを実行する。
func (r *PostgresRelationRepo) listRelatedUsers(ctx context.Context, query string, args ...any) ([]*model.User, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("関係ユーザー一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var users []*model.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("関係ユーザー行の読み取りに失敗しました: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("関係ユーザー一覧の走査に失敗しました: %w", err)
	}
	return users, nil
}

// compile-time interface check
var _ RelationRepository = (*PostgresRelationRepo)(nil)
