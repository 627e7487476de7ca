package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/cookfeed/internal/model"
)

// PostgresCollectionRepo はPostgreSQLを使用した保存コレクションリポジトリ。
type PostgresCollectionRepo struct {
	db *sql.DB
}

// NewPostgresCollectionRepo はPostgresCollectionRepoを生成する。
func NewPostgresCollectionRepo(db *sql.DB) *PostgresCollectionRepo {
	return &PostgresCollectionRepo{db: db}
}

// Create はコレクションを作成する。
func (r *PostgresCollectionRepo) Create(ctx context.Context, collection *model.Collection) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO collections (id, owner_id, name, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		collection.ID, collection.OwnerID, collection.Name,
		collection.CreatedAt, collection.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("コレクションの作成に失敗しました: %w", err)
	}
	return nil
}

// FindByID は指定IDのコレクションを取得する。見つからない場合はnilを返す。
func (r *PostgresCollectionRepo) FindByID(ctx context.Context, id string) (*model.Collection, error) {
	collection := &model.Collection{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, owner_id, name, created_at, updated_at
		 FROM collections WHERE id = $1`,
		id,
	).Scan(&collection.ID, &collection.OwnerID, &collection.Name,
		&collection.CreatedAt, &collection.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("コレクションの取得に失敗しました: %w", err)
	}
	return collection, nil
}

// ListByOwner は所有者のコレクション一覧を投稿数付きで返す。
func (r *PostgresCollectionRepo) ListByOwner(ctx context.Context, ownerID string) ([]*model.Collection, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT c.id, c.owner_id, c.name, COUNT(sp.id) AS post_count, c.created_at, c.updated_at
		 FROM collections c
		 LEFT JOIN saved_posts sp ON sp.collection_id = c.id
		 WHERE c.owner_id = $1
		 GROUP BY c.id
		 ORDER BY c.created_at ASC`,
		ownerID)
	if err != nil {
		return nil, fmt.Errorf("コレクション一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var collections []*model.Collection
	for rows.Next() {
		collection := &model.Collection{}
		if err := rows.Scan(&collection.ID, &collection.OwnerID, &collection.Name,
			&collection.PostCount, &collection.CreatedAt, &collection.UpdatedAt); err != nil {
			return nil, fmt.Errorf("コレクション行の読み取りに失敗しました: %w", err)
		}
		collections = append(collections, collection)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("コレクション一覧の走査に失敗しました: %w", err)
	}
	return collections, nil
}

// Delete は指定IDのコレクションを削除する。保存レコードはCASCADE削除される。
func (r *PostgresCollectionRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM collections WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("コレクションの削除に失敗しました: %w", err)
	}
	return nil
}

// compile-time interface check
var _ CollectionRepository = (*PostgresCollectionRepo)(nil)
