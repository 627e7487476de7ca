package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/hitoshi/cookfeed/internal/model"
)

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

// userColumns はusersテーブルのSELECT句。
const userColumns = `id, username, email, first_name, last_name, bio, avatar_url, is_private, created_at, updated_at`

// scanUser は1行分のユーザーを読み取る。
func scanUser(row interface{ Scan(...any) error }) (*model.User, error) {
	user := &model.User{}
	var firstName, lastName, bio, avatarURL sql.NullString
	err := row.Scan(
		&user.ID, &user.Username, &user.Email, &firstName, &lastName,
		&bio, &avatarURL, &user.IsPrivate, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	user.FirstName = nullStringValue(firstName)
	user.LastName = nullStringValue(lastName)
	user.Bio = nullStringValue(bio)
	user.AvatarURL = nullStringValue(avatarURL)
	return user, nil
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id)

	user, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	return user, nil
}

// FindByUsername はユーザー名でユーザーを検索する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = $1`, username)

	user, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ユーザー名によるユーザーの検索に失敗しました: %w", err)
	}
	return user, nil
}

// CreateWithIdentity はユーザーとidentityを同一トランザクションで作成する。
func (r *PostgresUserRepo) CreateWithIdentity(ctx context.Context, user *model.User, identity *model.Identity) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("トランザクションの開始に失敗しました: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO users (id, username, email, first_name, last_name, bio, avatar_url, is_private, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		user.ID, user.Username, user.Email, nullString(user.FirstName), nullString(user.LastName),
		nullString(user.Bio), nullString(user.AvatarURL), user.IsPrivate, user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("ユーザーの作成に失敗しました: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO identities (id, user_id, provider, provider_user_id, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		identity.ID, identity.UserID, identity.Provider, identity.ProviderUserID, identity.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("identityの作成に失敗しました: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("トランザクションのコミットに失敗しました: %w", err)
	}
	return nil
}

// UpdateProfile はプロフィール項目を更新する。
func (r *PostgresUserRepo) UpdateProfile(ctx context.Context, user *model.User) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET
		    first_name = $2, last_name = $3, bio = $4, avatar_url = $5,
		    is_private = $6, updated_at = $7
		 WHERE id = $1`,
		user.ID, nullString(user.FirstName), nullString(user.LastName),
		nullString(user.Bio), nullString(user.AvatarURL), user.IsPrivate, user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("プロフィールの更新に失敗しました: %w", err)
	}
	return nil
}

// Search はトークン化されたクエリでユーザーを検索する。
// 各トークンはusername・first_name・last_nameのいずれかに部分一致する必要があり（AND）、
// 単一トークンの場合はフルネーム連結への部分一致も許容する。
func (r *PostgresUserRepo) Search(ctx context.Context, rawQuery string, tokens []string, limit int) ([]*model.User, error) {
	if len(tokens) == 0 {
		return nil, nil
	}

	var conds []string
	var args []any
	argIndex := 1

	// 各トークンがいずれかのフィールドに一致する必要がある（トークン間はAND）
	for _, token := range tokens {
		pattern := "%" + escapeLike(token) + "%"
		conds = append(conds, fmt.Sprintf(
			`(username ILIKE $%d OR COALESCE(first_name, '') ILIKE $%d OR COALESCE(last_name, '') ILIKE $%d)`,
			argIndex, argIndex, argIndex))
		args = append(args, pattern)
		argIndex++
	}

	// フルネーム連結への一致も許容する。"ne do"のように姓名の境界をまたぐ
	// クエリがトークン分割で落ちるのを防ぐ。
	rawPattern := "%" + escapeLike(rawQuery) + "%"
	where := fmt.Sprintf(
		`((%s) OR (COALESCE(first_name, '') || ' ' || COALESCE(last_name, '')) ILIKE $%d)`,
		strings.Join(conds, " AND "), argIndex)
	args = append(args, rawPattern)
	argIndex++

	query := `SELECT ` + userColumns + ` FROM users WHERE ` + where +
		fmt.Sprintf(` ORDER BY username, last_name NULLS FIRST, first_name NULLS FIRST LIMIT $%d`, argIndex)
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ユーザー検索に失敗しました: %w", err)
	}
	defer rows.Close()

	var users []*model.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("ユーザー行の読み取りに失敗しました: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ユーザー検索結果の走査に失敗しました: %w", err)
	}
	return users, nil
}

// DeleteByID は指定IDのユーザーを削除する。
// 関連するidentities、sessions等はCASCADE削除される。
func (r *PostgresUserRepo) DeleteByID(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("ユーザーの削除に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("削除行数の取得に失敗しました: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("ユーザーが見つかりません: %s", id)
	}
	return nil
}

// escapeLike はLIKEパターンのメタ文字をエスケープする。
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
