package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/odyssey-erp/odyssey-rbac/internal/platform/db"
)

const (
	resourceColumns = `id, name, description, created_at, updated_at`
	actionColumns   = `id, name, description`
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	db db.Querier
}

// NewRepository constructs a repository.
func NewRepository(q db.Querier) *Repository {
	return &Repository{db: q}
}

// ListResources returns all resources ordered by name.
func (r *Repository) ListResources(ctx context.Context) ([]Resource, error) {
	rows, err := r.db.Query(ctx, `SELECT `+resourceColumns+` FROM resources ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("catalog: list resources: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Resource, error) { return scanResource(row) })
}

// GetResource fetches a resource by ID.
func (r *Repository) GetResource(ctx context.Context, id int64) (Resource, error) {
	res, err := scanResource(r.db.QueryRow(ctx, `SELECT `+resourceColumns+` FROM resources WHERE id = $1`, id))
	return res, mapErr(ErrResourceNotFound, "get resource", err)
}

// CreateResource inserts a resource.
func (r *Repository) CreateResource(ctx context.Context, in Input) (Resource, error) {
	res, err := scanResource(r.db.QueryRow(ctx,
		`INSERT INTO resources (name, description) VALUES ($1, $2) RETURNING `+resourceColumns,
		in.Name, in.Description))
	return res, mapErr(ErrResourceNotFound, "create resource", err)
}

// UpdateResource rewrites a resource.
func (r *Repository) UpdateResource(ctx context.Context, id int64, in Input) (Resource, error) {
	res, err := scanResource(r.db.QueryRow(ctx,
		`UPDATE resources SET name = $2, description = $3, updated_at = NOW() WHERE id = $1 RETURNING `+resourceColumns,
		id, in.Name, in.Description))
	return res, mapErr(ErrResourceNotFound, "update resource", err)
}

// DeleteResource removes a resource and, through ON DELETE CASCADE, its grants.
func (r *Repository) DeleteResource(ctx context.Context, id int64) error {
	return r.delete(ctx, `DELETE FROM resources WHERE id = $1`, id, ErrResourceNotFound)
}

// ListActions returns all actions ordered by name.
func (r *Repository) ListActions(ctx context.Context) ([]Action, error) {
	rows, err := r.db.Query(ctx, `SELECT `+actionColumns+` FROM actions ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("catalog: list actions: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Action, error) { return scanAction(row) })
}

// GetAction fetches an action by ID.
func (r *Repository) GetAction(ctx context.Context, id int64) (Action, error) {
	act, err := scanAction(r.db.QueryRow(ctx, `SELECT `+actionColumns+` FROM actions WHERE id = $1`, id))
	return act, mapErr(ErrActionNotFound, "get action", err)
}

// CreateAction inserts an action.
func (r *Repository) CreateAction(ctx context.Context, in Input) (Action, error) {
	act, err := scanAction(r.db.QueryRow(ctx,
		`INSERT INTO actions (name, description) VALUES ($1, $2) RETURNING `+actionColumns,
		in.Name, in.Description))
	return act, mapErr(ErrActionNotFound, "create action", err)
}

// UpdateAction rewrites an action.
func (r *Repository) UpdateAction(ctx context.Context, id int64, in Input) (Action, error) {
	act, err := scanAction(r.db.QueryRow(ctx,
		`UPDATE actions SET name = $2, description = $3 WHERE id = $1 RETURNING `+actionColumns,
		id, in.Name, in.Description))
	return act, mapErr(ErrActionNotFound, "update action", err)
}

// DeleteAction removes an action and, through ON DELETE CASCADE, its grants.
func (r *Repository) DeleteAction(ctx context.Context, id int64) error {
	return r.delete(ctx, `DELETE FROM actions WHERE id = $1`, id, ErrActionNotFound)
}

func (r *Repository) delete(ctx context.Context, sql string, id int64, notFound error) error {
	tag, err := r.db.Exec(ctx, sql, id)
	if err != nil {
		return fmt.Errorf("catalog: delete %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return notFound
	}
	return nil
}

func mapErr(notFound error, op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, pgx.ErrNoRows):
		return notFound
	case db.IsUniqueViolation(err):
		return ErrDuplicateName
	default:
		return fmt.Errorf("catalog: %s: %w", op, err)
	}
}

func scanResource(row pgx.Row) (Resource, error) {
	var res Resource
	err := row.Scan(&res.ID, &res.Name, &res.Description, &res.CreatedAt, &res.UpdatedAt)
	return res, err
}

func scanAction(row pgx.Row) (Action, error) {
	var act Action
	err := row.Scan(&act.ID, &act.Name, &act.Description)
	return act, err
}

var _ RepositoryPort = (*Repository)(nil)
