package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/lottobet/internal/domain"
)

// TemplateStore implements domain.TemplateStore using PostgreSQL.
type TemplateStore struct {
	pool *pgxpool.Pool
}

// NewTemplateStore creates a new TemplateStore backed by the given connection pool.
func NewTemplateStore(pool *pgxpool.Pool) *TemplateStore {
	return &TemplateStore{pool: pool}
}

const templateSelectCols = `id, owner, name, description, items, created_at`

func scanTemplate(row pgx.Row) (domain.Template, error) {
	var t domain.Template
	var itemsJSON []byte
	if err := row.Scan(&t.ID, &t.Owner, &t.Name, &t.Description, &itemsJSON, &t.CreatedAt); err != nil {
		return domain.Template{}, err
	}
	if err := json.Unmarshal(itemsJSON, &t.Items); err != nil {
		return domain.Template{}, fmt.Errorf("unmarshal items: %w", err)
	}
	return t, nil
}

// Create inserts a template. Items are stored as JSONB.
func (s *TemplateStore) Create(ctx context.Context, t domain.Template) error {
	itemsJSON, err := json.Marshal(t.Items)
	if err != nil {
		return fmt.Errorf("postgres: marshal template items %s: %w", t.ID, err)
	}

	const query = `
		INSERT INTO templates (id, owner, name, description, items, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	if _, err := s.pool.Exec(ctx, query, t.ID, t.Owner, t.Name, t.Description, itemsJSON, t.CreatedAt); err != nil {
		return fmt.Errorf("postgres: create template %s: %w", t.ID, err)
	}
	return nil
}

// GetByID retrieves a template by id.
func (s *TemplateStore) GetByID(ctx context.Context, id string) (domain.Template, error) {
	query := `SELECT ` + templateSelectCols + ` FROM templates WHERE id = $1`

	t, err := scanTemplate(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Template{}, domain.ErrNotFound
		}
		return domain.Template{}, fmt.Errorf("postgres: get template %s: %w", id, err)
	}
	return t, nil
}

// ListByOwner returns a page of an owner's templates, newest first, and the
// owner's total template count.
func (s *TemplateStore) ListByOwner(ctx context.Context, owner string, opts domain.ListOpts) ([]domain.Template, int64, error) {
	var total int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM templates WHERE owner = $1`, owner).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("postgres: count templates for %s: %w", owner, err)
	}

	q := newListQuery(`SELECT `+templateSelectCols+` FROM templates WHERE owner = $1`, owner)
	q.window("created_at", domain.ListOpts{Limit: opts.Limit, Offset: opts.Offset})

	rows, err := s.pool.Query(ctx, q.String(), q.args...)
	if err != nil {
		return nil, 0, fmt.Errorf("postgres: list templates for %s: %w", owner, err)
	}
	defer rows.Close()

	var out []domain.Template
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("postgres: scan template: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("postgres: list templates rows: %w", err)
	}
	return out, total, nil
}

// Delete removes an owner's template. Templates of other owners are reported
// as not found.
func (s *TemplateStore) Delete(ctx context.Context, owner, id string) error {
	const query = `DELETE FROM templates WHERE id = $1 AND owner = $2`

	tag, err := s.pool.Exec(ctx, query, id, owner)
	if err != nil {
		return fmt.Errorf("postgres: delete template %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
