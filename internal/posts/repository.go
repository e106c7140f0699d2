package posts

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/odyssey-erp/odyssey-rbac/internal/platform/db"
)

const postColumns = `id, text, pub_date, author_id`

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	db db.Querier
}

// NewRepository constructs a repository.
func NewRepository(q db.Querier) *Repository {
	return &Repository{db: q}
}

// ListPosts returns the posts visible in scope, newest first.
func (r *Repository) ListPosts(ctx context.Context, scope Scope) ([]Post, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+postColumns+` FROM posts WHERE ($1::bigint = 0 OR author_id = $1) ORDER BY pub_date DESC, id DESC`,
		scope.AuthorID)
	if err != nil {
		return nil, fmt.Errorf("posts: list: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Post, error) { return scanPost(row) })
}

// GetPost fetches a post by ID within scope.
func (r *Repository) GetPost(ctx context.Context, scope Scope, id int64) (Post, error) {
	post, err := scanPost(r.db.QueryRow(ctx,
		`SELECT `+postColumns+` FROM posts WHERE id = $1 AND ($2::bigint = 0 OR author_id = $2)`,
		id, scope.AuthorID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Post{}, ErrNotFound
		}
		return Post{}, fmt.Errorf("posts: get %d: %w", id, err)
	}
	return post, nil
}

// CreatePost inserts a post.
func (r *Repository) CreatePost(ctx context.Context, authorID int64, text string) (Post, error) {
	post, err := scanPost(r.db.QueryRow(ctx,
		`INSERT INTO posts (text, author_id) VALUES ($1, $2) RETURNING `+postColumns, text, authorID))
	if err != nil {
		if db.IsForeignKeyViolation(err) {
			return Post{}, ErrUnknownAuthor
		}
		return Post{}, fmt.Errorf("posts: create: %w", err)
	}
	return post, nil
}

// UpdatePost rewrites the text of a post.
func (r *Repository) UpdatePost(ctx context.Context, id int64, text string) (Post, error) {
	post, err := scanPost(r.db.QueryRow(ctx,
		`UPDATE posts SET text = $2 WHERE id = $1 RETURNING `+postColumns, id, text))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Post{}, ErrNotFound
		}
		return Post{}, fmt.Errorf("posts: update %d: %w", id, err)
	}
	return post, nil
}

// DeletePost removes a post.
func (r *Repository) DeletePost(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM posts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("posts: delete %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanPost(row pgx.Row) (Post, error) {
	var p Post
	err := row.Scan(&p.ID, &p.Text, &p.PubDate, &p.AuthorID)
	return p, err
}

var _ RepositoryPort = (*Repository)(nil)
