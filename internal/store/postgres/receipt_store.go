package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/lottobet/internal/domain"
)

// ReceiptStore implements domain.ReceiptStore using PostgreSQL.
type ReceiptStore struct {
	pool *pgxpool.Pool
}

// NewReceiptStore creates a new ReceiptStore backed by the given connection pool.
func NewReceiptStore(pool *pgxpool.Pool) *ReceiptStore {
	return &ReceiptStore{pool: pool}
}

const receiptSelectCols = `poy_id, session_id, owner, period_id, huay_name, note,
	lines, total_amount, total_potential_win, submitted_at, archive_path`

func scanReceipt(row pgx.Row) (domain.Receipt, error) {
	var r domain.Receipt
	var linesJSON []byte
	if err := row.Scan(
		&r.PoyID, &r.SessionID, &r.Owner, &r.PeriodID, &r.HuayName, &r.Note,
		&linesJSON, &r.TotalAmount, &r.TotalPotentialWin, &r.SubmittedAt, &r.ArchivePath,
	); err != nil {
		return domain.Receipt{}, err
	}
	if err := json.Unmarshal(linesJSON, &r.Lines); err != nil {
		return domain.Receipt{}, fmt.Errorf("unmarshal lines: %w", err)
	}
	return r, nil
}

func scanReceiptRows(rows pgx.Rows) ([]domain.Receipt, error) {
	var out []domain.Receipt
	for rows.Next() {
		r, err := scanReceipt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Create inserts a receipt. A second receipt with the same poy id fails with
// domain.ErrAlreadyExists.
func (s *ReceiptStore) Create(ctx context.Context, r domain.Receipt) error {
	linesJSON, err := json.Marshal(r.Lines)
	if err != nil {
		return fmt.Errorf("postgres: marshal receipt lines %s: %w", r.PoyID, err)
	}

	const query = `
		INSERT INTO receipts (
			poy_id, session_id, owner, period_id, huay_name, note,
			lines, total_amount, total_potential_win, submitted_at, archive_path
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err = s.pool.Exec(ctx, query,
		r.PoyID, r.SessionID, r.Owner, r.PeriodID, r.HuayName, r.Note,
		linesJSON, r.TotalAmount, r.TotalPotentialWin, r.SubmittedAt, r.ArchivePath,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("postgres: receipt %s: %w", r.PoyID, domain.ErrAlreadyExists)
		}
		return fmt.Errorf("postgres: create receipt %s: %w", r.PoyID, err)
	}
	return nil
}

// GetByPoyID retrieves a receipt by its poy id.
func (s *ReceiptStore) GetByPoyID(ctx context.Context, poyID string) (domain.Receipt, error) {
	query := `SELECT ` + receiptSelectCols + ` FROM receipts WHERE poy_id = $1`

	r, err := scanReceipt(s.pool.QueryRow(ctx, query, poyID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Receipt{}, domain.ErrNotFound
		}
		return domain.Receipt{}, fmt.Errorf("postgres: get receipt %s: %w", poyID, err)
	}
	return r, nil
}

// ListByOwner returns an owner's receipts, newest first.
func (s *ReceiptStore) ListByOwner(ctx context.Context, owner string, opts domain.ListOpts) ([]domain.Receipt, error) {
	q := newListQuery(`SELECT `+receiptSelectCols+` FROM receipts WHERE owner = $1`, owner)
	q.window("submitted_at", opts)

	rows, err := s.pool.Query(ctx, q.String(), q.args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list receipts for %s: %w", owner, err)
	}
	defer rows.Close()

	out, err := scanReceiptRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan receipts: %w", err)
	}
	return out, nil
}

// ListBefore returns every receipt submitted before the cutoff, oldest first.
func (s *ReceiptStore) ListBefore(ctx context.Context, before time.Time) ([]domain.Receipt, error) {
	query := `SELECT ` + receiptSelectCols + ` FROM receipts
		WHERE submitted_at < $1
		ORDER BY submitted_at ASC`

	rows, err := s.pool.Query(ctx, query, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list receipts before %s: %w", before.Format(time.RFC3339), err)
	}
	defer rows.Close()

	out, err := scanReceiptRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan receipts: %w", err)
	}
	return out, nil
}

// SetArchivePath records where a receipt was archived.
func (s *ReceiptStore) SetArchivePath(ctx context.Context, poyID, path string) error {
	const query = `UPDATE receipts SET archive_path = $2 WHERE poy_id = $1`

	tag, err := s.pool.Exec(ctx, query, poyID, path)
	if err != nil {
		return fmt.Errorf("postgres: set archive path %s: %w", poyID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// DeleteBefore removes receipts submitted before the cutoff and returns the
// number removed.
func (s *ReceiptStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	const query = `DELETE FROM receipts WHERE submitted_at < $1`

	tag, err := s.pool.Exec(ctx, query, before)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete receipts before %s: %w", before.Format(time.RFC3339), err)
	}
	return tag.RowsAffected(), nil
}
