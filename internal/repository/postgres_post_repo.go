package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/hitoshi/cookfeed/internal/model"
)

// PostgresPostRepo はPostgreSQLを使用したレシピ投稿リポジトリ。
type PostgresPostRepo struct {
	db *sql.DB
}

// NewPostgresPostRepo はPostgresPostRepoを生成する。
func NewPostgresPostRepo(db *sql.DB) *PostgresPostRepo {
	return &PostgresPostRepo{db: db}
}

// postColumns は投稿一覧クエリのSELECT句。
// 投稿者情報といいね数をJOINして読み取りモデルを一度に構築する。
const postColumns = `
	p.id, p.author_id, p.title, p.description, p.category, p.visibility, p.tags,
	p.prep_time_min, p.cook_time_min, p.servings, p.source_url, p.source_title, p.image_url,
	p.saved_count, COALESCE(l.like_count, 0) AS like_count,
	p.published_at, p.created_at, p.updated_at,
	u.username, u.email, u.first_name, u.last_name, u.bio, u.avatar_url, u.is_private,
	u.created_at, u.updated_at`

// postFromJoins は投稿一覧クエリのFROM句。
const postFromJoins = `
	FROM posts p
	JOIN users u ON u.id = p.author_id
	LEFT JOIN (SELECT post_id, COUNT(*) AS like_count FROM likes GROUP BY post_id) l
	       ON l.post_id = p.id`

// scanPost は1行分の投稿（投稿者JOIN済み）を読み取る。
func scanPost(row interface{ Scan(...any) error }) (*model.RecipePost, error) {
	post := &model.RecipePost{Author: &model.User{}}
	var description, category, sourceURL, sourceTitle, imageURL sql.NullString
	var firstName, lastName, bio, avatarURL sql.NullString
	var publishedAt sql.NullTime

	err := row.Scan(
		&post.ID, &post.AuthorID, &post.Title, &description, &category, &post.Visibility,
		pq.Array(&post.Tags),
		&post.PrepTimeMin, &post.CookTimeMin, &post.Servings, &sourceURL, &sourceTitle, &imageURL,
		&post.SavedCount, &post.LikeCount,
		&publishedAt, &post.CreatedAt, &post.UpdatedAt,
		&post.Author.Username, &post.Author.Email, &firstName, &lastName, &bio, &avatarURL,
		&post.Author.IsPrivate, &post.Author.CreatedAt, &post.Author.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	post.Description = nullStringValue(description)
	post.Category = nullStringValue(category)
	post.SourceURL = nullStringValue(sourceURL)
	post.SourceTitle = nullStringValue(sourceTitle)
	post.ImageURL = nullStringValue(imageURL)
	post.Author.ID = post.AuthorID
	post.Author.FirstName = nullStringValue(firstName)
	post.Author.LastName = nullStringValue(lastName)
	post.Author.Bio = nullStringValue(bio)
	post.Author.AvatarURL = nullStringValue(avatarURL)
	if publishedAt.Valid {
		post.PublishedAt = &publishedAt.Time
	}

	return post, nil
}

// FindByID は指定IDの投稿を取得する。下書きも対象。見つからない場合はnilを返す。
func (r *PostgresPostRepo) FindByID(ctx context.Context, id string) (*model.RecipePost, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+postColumns+postFromJoins+` WHERE p.id = $1`, id)

	post, err := scanPost(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("投稿の取得に失敗しました: %w", err)
	}

	if err := r.attachIngredients(ctx, []*model.RecipePost{post}); err != nil {
		return nil, err
	}
	return post, nil
}

// ListPublished は公開済み投稿の全候補集合を新着順で返す。
// published_atがnil（下書き）の投稿はここで除外され、以降のどのパイプラインにも入らない。
func (r *PostgresPostRepo) ListPublished(ctx context.Context) ([]*model.RecipePost, error) {
	return r.listPosts(ctx,
		`SELECT `+postColumns+postFromJoins+`
		 WHERE p.published_at IS NOT NULL
		 ORDER BY p.published_at DESC, p.created_at DESC`)
}

// ListPublishedByAuthors は指定した投稿者の公開済み投稿を新着順で返す。
func (r *PostgresPostRepo) ListPublishedByAuthors(ctx context.Context, authorIDs []string) ([]*model.RecipePost, error) {
	if len(authorIDs) == 0 {
		return nil, nil
	}
	return r.listPosts(ctx,
		`SELECT `+postColumns+postFromJoins+`
		 WHERE p.published_at IS NOT NULL AND p.author_id = ANY($1)
		 ORDER BY p.published_at DESC, p.created_at DESC`,
		pq.Array(authorIDs))
}

// ListByAuthor は投稿者の投稿一覧を返す。includeDraftsがtrueの場合は下書きも含む。
func (r *PostgresPostRepo) ListByAuthor(ctx context.Context, authorID string, includeDrafts bool) ([]*model.RecipePost, error) {
	query := `SELECT ` + postColumns + postFromJoins + ` WHERE p.author_id = $1`
	if !includeDrafts {
		query += ` AND p.published_at IS NOT NULL`
	}
	query += ` ORDER BY p.published_at DESC NULLS FIRST, p.created_at DESC`
	return r.listPosts(ctx, query, authorID)
}

// listPosts は一覧クエリを実行し、材料を一括で付与して返す。
func (r *PostgresPostRepo) listPosts(ctx context.Context, query string, args ...any) ([]*model.RecipePost, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("投稿一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var posts []*model.RecipePost
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("投稿行の読み取りに失敗しました: %w", err)
		}
		posts = append(posts, post)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("投稿一覧の走査に失敗しました: %w", err)
	}

	if err := r.attachIngredients(ctx, posts); err != nil {
		return nil, err
	}
	return posts, nil
}

// attachIngredients は投稿集合の材料を1クエリで読み込んで付与する（N+1回避）。
func (r *PostgresPostRepo) attachIngredients(ctx context.Context, posts []*model.RecipePost) error {
	if len(posts) == 0 {
		return nil
	}

	ids := make([]string, len(posts))
	byID := make(map[string]*model.RecipePost, len(posts))
	for i, p := range posts {
		ids[i] = p.ID
		byID[p.ID] = p
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, post_id, name, quantity, position
		 FROM ingredients
		 WHERE post_id = ANY($1)
		 ORDER BY post_id, position`,
		pq.Array(ids))
	if err != nil {
		return fmt.Errorf("材料の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var ing model.Ingredient
		var quantity sql.NullString
		if err := rows.Scan(&ing.ID, &ing.PostID, &ing.Name, &quantity, &ing.Position); err != nil {
			return fmt.Errorf("材料行の読み取りに失敗しました: %w", err)
		}
		ing.Quantity = nullStringValue(quantity)
		if post, ok := byID[ing.PostID]; ok {
			post.Ingredients = append(post.Ingredients, ing)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("材料一覧の走査に失敗しました: %w", err)
	}
	return nil
}

// Create は投稿と材料を同一トランザクションで作成する。
func (r *PostgresPostRepo) Create(ctx context.Context, post *model.RecipePost) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("トランザクションの開始に失敗しました: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO posts (id, author_id, title, description, category, visibility, tags,
		                    prep_time_min, cook_time_min, servings, source_url, source_title, image_url,
		                    saved_count, published_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		post.ID, post.AuthorID, post.Title, nullString(post.Description), nullString(post.Category),
		post.Visibility, pq.Array(post.Tags),
		post.PrepTimeMin, post.CookTimeMin, post.Servings,
		nullString(post.SourceURL), nullString(post.SourceTitle), nullString(post.ImageURL),
		post.SavedCount, post.PublishedAt, post.CreatedAt, post.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("投稿の作成に失敗しました: %w", err)
	}

	if err := insertIngredients(ctx, tx, post); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("トランザクションのコミットに失敗しました: %w", err)
	}
	return nil
}

// Update は投稿本体を更新し、材料を洗い替えする。
func (r *PostgresPostRepo) Update(ctx context.Context, post *model.RecipePost) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("トランザクションの開始に失敗しました: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`UPDATE posts SET
		    title = $2, description = $3, category = $4, visibility = $5, tags = $6,
		    prep_time_min = $7, cook_time_min = $8, servings = $9,
		    source_url = $10, source_title = $11, image_url = $12,
		    published_at = $13, updated_at = $14
		 WHERE id = $1`,
		post.ID, post.Title, nullString(post.Description), nullString(post.Category),
		post.Visibility, pq.Array(post.Tags),
		post.PrepTimeMin, post.CookTimeMin, post.Servings,
		nullString(post.SourceURL), nullString(post.SourceTitle), nullString(post.ImageURL),
		post.PublishedAt, post.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("投稿の更新に失敗しました: %w", err)
	}

	// 材料は全削除してから挿入し直す
	if _, err := tx.ExecContext(ctx, `DELETE FROM ingredients WHERE post_id = $1`, post.ID); err != nil {
		return fmt.Errorf("既存材料の削除に失敗しました: %w", err)
	}
	if err := insertIngredients(ctx, tx, post); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("トランザクションのコミットに失敗しました: %w", err)
	}
	return nil
}

// insertIngredients は投稿の材料をトランザクション内で挿入する。
func insertIngredients(ctx context.Context, tx *sql.Tx, post *model.RecipePost) error {
	for i, ing := range post.Ingredients {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO ingredients (id, post_id, name, quantity, position)
			 VALUES ($1, $2, $3, $4, $5)`,
			ing.ID, post.ID, ing.Name, nullString(ing.Quantity), i,
		)
		if err != nil {
			return fmt.Errorf("材料の作成に失敗しました: %w", err)
		}
	}
	return nil
}

// Delete は指定IDの投稿を削除する。関連レコードはCASCADE削除される。
func (r *PostgresPostRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM posts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("投稿の削除に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("削除行数の取得に失敗しました: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("投稿が見つかりません: %s", id)
	}
	return nil
}

// ListNeedingSourcePreview はsource_urlが設定済みでプレビュー未取得の投稿を返す。
func (r *PostgresPostRepo) ListNeedingSourcePreview(ctx context.Context, limit int) ([]*model.RecipePost, error) {
	return r.listPosts(ctx,
		`SELECT `+postColumns+postFromJoins+`
		 WHERE p.source_url IS NOT NULL AND p.preview_fetched_at IS NULL
		 ORDER BY p.created_at ASC
		 LIMIT $1`,
		limit)
}

// UpdateSourcePreview はリンクプレビューの取得結果を保存する。
// 取得失敗時もfetchedAtを記録して再試行の対象から外す。
func (r *PostgresPostRepo) UpdateSourcePreview(ctx context.Context, postID, sourceTitle string, fetchedAt time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE posts SET source_title = $2, preview_fetched_at = $3, updated_at = now()
		 WHERE id = $1`,
		postID, nullString(sourceTitle), fetchedAt,
	)
	if err != nil {
		return fmt.Errorf("リンクプレビューの保存に失敗しました: %w", err)
	}
	return nil
}

// nullString は空文字列をNULLに変換する。
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// nullStringValue はsql.NullStringから値を取り出す。NULLの場合は空文字を返す。
func nullStringValue(ns sql.NullString) string {
	if !ns.Valid {
		return ""
	}
	return ns.String
}

// compile-time interface check
var _ PostRepository = (*PostgresPostRepo)(nil)
