package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/cryptowallet/internal/domain"
)

// PriceHistoryStore implements domain.PriceHistoryStore using PostgreSQL.
type PriceHistoryStore struct {
	pool *pgxpool.Pool
}

// NewPriceHistoryStore creates a new PriceHistoryStore backed by the given
// connection pool.
func NewPriceHistoryStore(pool *pgxpool.Pool) *PriceHistoryStore {
	return &PriceHistoryStore{pool: pool}
}

// Compile-time interface check.
var _ domain.PriceHistoryStore = (*PriceHistoryStore)(nil)

func scanPriceHistoryRows(rows pgx.Rows) ([]domain.PriceHistoryRecord, error) {
	records := []domain.PriceHistoryRecord{}
	for rows.Next() {
		var r domain.PriceHistoryRecord
		if err := rows.Scan(&r.ID, &r.Symbol, &r.Price, &r.Timestamp); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// Append inserts a new observation. A zero Timestamp is filled by the
// database clock.
func (s *PriceHistoryStore) Append(ctx context.Context, rec domain.PriceHistoryRecord) (domain.PriceHistoryRecord, error) {
	const query = `
		INSERT INTO price_history (symbol, price, recorded_at)
		VALUES ($1, $2, COALESCE($3, NOW()))
		RETURNING id, recorded_at`

	var ts *time.Time
	if !rec.Timestamp.IsZero() {
		ts = &rec.Timestamp
	}
	if err := s.pool.QueryRow(ctx, query, rec.Symbol, rec.Price, ts).Scan(&rec.ID, &rec.Timestamp); err != nil {
		return domain.PriceHistoryRecord{}, fmt.Errorf("postgres: append price history %s: %w", rec.Symbol, err)
	}
	return rec, nil
}

// ListBySymbol returns observations for symbol, newest first.
func (s *PriceHistoryStore) ListBySymbol(ctx context.Context, symbol string, opts domain.ListOpts) ([]domain.PriceHistoryRecord, error) {
	query := `SELECT id, symbol, price, recorded_at FROM price_history WHERE symbol = $1`
	args := []any{symbol}
	argIdx := 2

	if opts.Since != nil {
		query += fmt.Sprintf(" AND recorded_at >= $%d", argIdx)
		args = append(args, *opts.Since)
		argIdx++
	}
	if opts.Until != nil {
		query += fmt.Sprintf(" AND recorded_at <= $%d", argIdx)
		args = append(args, *opts.Until)
		argIdx++
	}

	query += " ORDER BY recorded_at DESC, id DESC"

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list price history %s: %w", symbol, err)
	}
	defer rows.Close()

	records, err := scanPriceHistoryRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan price history: %w", err)
	}
	return records, nil
}

// ListBetween returns the observations recorded in [after, before), oldest
// first. A zero after leaves the window open at the start.
func (s *PriceHistoryStore) ListBetween(ctx context.Context, after, before time.Time) ([]domain.PriceHistoryRecord, error) {
	query := `SELECT id, symbol, price, recorded_at FROM price_history WHERE recorded_at < $1`
	args := []any{before}
	if !after.IsZero() {
		query += ` AND recorded_at >= $2`
		args = append(args, after)
	}
	query += ` ORDER BY recorded_at, id`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list price history before %s: %w", before.Format(time.RFC3339), err)
	}
	defer rows.Close()

	records, err := scanPriceHistoryRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan price history: %w", err)
	}
	return records, nil
}
