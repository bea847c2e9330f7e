package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/cryptowallet/internal/domain"
)

// AssetStore implements domain.AssetStore using PostgreSQL.
type AssetStore struct {
	pool *pgxpool.Pool
}

// NewAssetStore creates a new AssetStore backed by the given connection pool.
func NewAssetStore(pool *pgxpool.Pool) *AssetStore {
	return &AssetStore{pool: pool}
}

// Compile-time interface check.
var _ domain.AssetStore = (*AssetStore)(nil)

const assetSelectCols = `id, wallet_id, symbol, quantity, price, updated_at`

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func scanAssetRow(row pgx.Row) (domain.Asset, error) {
	var a domain.Asset
	if err := row.Scan(&a.ID, &a.WalletID, &a.Symbol, &a.Quantity, &a.Price, &a.UpdatedAt); err != nil {
		return domain.Asset{}, err
	}
	return a, nil
}

func scanAssetRows(rows pgx.Rows) ([]domain.Asset, error) {
	assets := []domain.Asset{}
	for rows.Next() {
		a, err := scanAssetRow(rows)
		if err != nil {
			return nil, err
		}
		assets = append(assets, a)
	}
	return assets, rows.Err()
}

func listAssets(ctx context.Context, q querier, where string, args ...any) ([]domain.Asset, error) {
	rows, err := q.Query(ctx, `SELECT `+assetSelectCols+` FROM assets `+where+` ORDER BY id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAssetRows(rows)
}

// Create inserts a new asset. A second asset for the same wallet and symbol
// yields domain.ErrAlreadyExists.
func (s *AssetStore) Create(ctx context.Context, a domain.Asset) (domain.Asset, error) {
	const query = `
		INSERT INTO assets (wallet_id, symbol, quantity, price, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		RETURNING ` + assetSelectCols

	created, err := scanAssetRow(s.pool.QueryRow(ctx, query, a.WalletID, a.Symbol, a.Quantity, a.Price))
	if err != nil {
		if isUniqueViolation(err, "assets_wallet_symbol_key") {
			return domain.Asset{}, fmt.Errorf("postgres: create asset %s: %w", a.Symbol, domain.ErrAlreadyExists)
		}
		return domain.Asset{}, fmt.Errorf("postgres: create asset %s: %w", a.Symbol, err)
	}
	return created, nil
}

// Update overwrites quantity and price of an existing asset.
func (s *AssetStore) Update(ctx context.Context, a domain.Asset) (domain.Asset, error) {
	const query = `
		UPDATE assets SET quantity = $2, price = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + assetSelectCols

	updated, err := scanAssetRow(s.pool.QueryRow(ctx, query, a.ID, a.Quantity, a.Price))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Asset{}, domain.ErrNotFound
		}
		return domain.Asset{}, fmt.Errorf("postgres: update asset %d: %w", a.ID, err)
	}
	return updated, nil
}

// GetByWalletAndSymbol returns the wallet's asset for symbol.
func (s *AssetStore) GetByWalletAndSymbol(ctx context.Context, walletID int64, symbol string) (domain.Asset, error) {
	const query = `SELECT ` + assetSelectCols + ` FROM assets WHERE wallet_id = $1 AND symbol = $2`

	a, err := scanAssetRow(s.pool.QueryRow(ctx, query, walletID, symbol))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Asset{}, domain.ErrNotFound
		}
		return domain.Asset{}, fmt.Errorf("postgres: get asset %s of wallet %d: %w", symbol, walletID, err)
	}
	return a, nil
}

// ListByWallet returns every asset held in the wallet ordered by insertion.
func (s *AssetStore) ListByWallet(ctx context.Context, walletID int64) ([]domain.Asset, error) {
	assets, err := listAssets(ctx, s.pool, `WHERE wallet_id = $1`, walletID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list assets of wallet %d: %w", walletID, err)
	}
	return assets, nil
}

// DistinctSymbols returns the held symbols ordered by the first asset that
// introduced them.
func (s *AssetStore) DistinctSymbols(ctx context.Context) ([]string, error) {
	const query = `SELECT symbol FROM assets GROUP BY symbol ORDER BY MIN(id)`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("postgres: distinct symbols: %w", err)
	}
	defer rows.Close()

	symbols := []string{}
	for rows.Next() {
		var sym string
		if err := rows.Scan(&sym); err != nil {
			return nil, fmt.Errorf("postgres: scan symbol: %w", err)
		}
		symbols = append(symbols, sym)
	}
	return symbols, rows.Err()
}

// UpdatePriceBySymbol sets the price of every asset holding symbol in a single
// statement and reports how many rows changed.
func (s *AssetStore) UpdatePriceBySymbol(ctx context.Context, symbol string, price decimal.Decimal) (int64, error) {
	const query = `UPDATE assets SET price = $2, updated_at = NOW() WHERE symbol = $1`

	tag, err := s.pool.Exec(ctx, query, symbol, price)
	if err != nil {
		return 0, fmt.Errorf("postgres: update price of %s: %w", symbol, err)
	}
	return tag.RowsAffected(), nil
}
