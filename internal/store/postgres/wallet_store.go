package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/cryptowallet/internal/domain"
)

// WalletStore implements domain.WalletStore using PostgreSQL.
type WalletStore struct {
	pool   *pgxpool.Pool
	assets *AssetStore
}

// NewWalletStore creates a new WalletStore backed by the given connection pool.
func NewWalletStore(pool *pgxpool.Pool) *WalletStore {
	return &WalletStore{pool: pool, assets: NewAssetStore(pool)}
}

// Compile-time interface check.
var _ domain.WalletStore = (*WalletStore)(nil)

const walletSelect = `
	SELECT w.id, w.user_id, u.email, w.created_at
	FROM wallets w
	JOIN users u ON u.id = w.user_id`

func scanWalletRow(row pgx.Row) (domain.Wallet, error) {
	var w domain.Wallet
	if err := row.Scan(&w.ID, &w.UserID, &w.OwnerEmail, &w.CreatedAt); err != nil {
		return domain.Wallet{}, err
	}
	return w, nil
}

// Create upserts the user for email and inserts its wallet in one
// transaction.
func (s *WalletStore) Create(ctx context.Context, email string) (domain.Wallet, error) {
	w := domain.Wallet{OwnerEmail: email}

	err := withTx(ctx, s.pool, func(tx pgx.Tx) error {
		const upsertUser = `
			INSERT INTO users (email) VALUES ($1)
			ON CONFLICT (email) DO UPDATE SET email = EXCLUDED.email
			RETURNING id`
		if err := tx.QueryRow(ctx, upsertUser, email).Scan(&w.UserID); err != nil {
			return fmt.Errorf("upsert user: %w", err)
		}

		const insertWallet = `
			INSERT INTO wallets (user_id) VALUES ($1)
			RETURNING id, created_at`
		if err := tx.QueryRow(ctx, insertWallet, w.UserID).Scan(&w.ID, &w.CreatedAt); err != nil {
			return fmt.Errorf("insert wallet: %w", err)
		}
		return nil
	})
	if err != nil {
		if isUniqueViolation(err, "wallets_user_id_key") {
			return domain.Wallet{}, fmt.Errorf("postgres: create wallet for %s: %w", email, domain.ErrAlreadyExists)
		}
		return domain.Wallet{}, fmt.Errorf("postgres: create wallet for %s: %w", email, err)
	}
	return w, nil
}

// GetByID returns the wallet with its assets ordered by insertion.
func (s *WalletStore) GetByID(ctx context.Context, id int64) (domain.Wallet, error) {
	w, err := scanWalletRow(s.pool.QueryRow(ctx, walletSelect+` WHERE w.id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Wallet{}, domain.ErrNotFound
		}
		return domain.Wallet{}, fmt.Errorf("postgres: get wallet %d: %w", id, err)
	}

	w.Assets, err = s.assets.ListByWallet(ctx, id)
	if err != nil {
		return domain.Wallet{}, err
	}
	return w, nil
}

// GetByOwnerEmail returns the wallet owned by email without its assets.
func (s *WalletStore) GetByOwnerEmail(ctx context.Context, email string) (domain.Wallet, error) {
	w, err := scanWalletRow(s.pool.QueryRow(ctx, walletSelect+` WHERE u.email = $1`, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Wallet{}, domain.ErrNotFound
		}
		return domain.Wallet{}, fmt.Errorf("postgres: get wallet by owner %s: %w", email, err)
	}
	return w, nil
}

// Delete removes the wallet's assets and then the wallet in one transaction.
func (s *WalletStore) Delete(ctx context.Context, id int64) error {
	err := withTx(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM assets WHERE wallet_id = $1`, id); err != nil {
			return fmt.Errorf("delete assets: %w", err)
		}
		tag, err := tx.Exec(ctx, `DELETE FROM wallets WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("delete wallet: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrNotFound
		}
		return nil
	})
	if errors.Is(err, domain.ErrNotFound) {
		return err
	}
	if err != nil {
		return fmt.Errorf("postgres: delete wallet %d: %w", id, err)
	}
	return nil
}
