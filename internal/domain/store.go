package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
	// Event restricts audit listings to a single event name.
	Event string
}

// WalletStore persists wallets together with their owning user.
type WalletStore interface {
	// Create upserts the user identified by email and creates its wallet in
	// the same transaction. It returns ErrAlreadyExists if the user already
	// owns a wallet.
	Create(ctx context.Context, email string) (Wallet, error)
	// GetByID returns the wallet with its assets loaded.
	GetByID(ctx context.Context, id int64) (Wallet, error)
	GetByOwnerEmail(ctx context.Context, email string) (Wallet, error)
	// Delete removes the wallet and every asset it owns in one transaction.
	Delete(ctx context.Context, id int64) error
}

// AssetStore persists assets. Every call is atomic on its own; no call spans
// more than one statement except where documented.
type AssetStore interface {
	Create(ctx context.Context, asset Asset) (Asset, error)
	Update(ctx context.Context, asset Asset) (Asset, error)
	GetByWalletAndSymbol(ctx context.Context, walletID int64, symbol string) (Asset, error)
	// DistinctSymbols returns every symbol held by any wallet, ordered by
	// first appearance.
	DistinctSymbols(ctx context.Context) ([]string, error)
	// UpdatePriceBySymbol sets price on every asset holding symbol and
	// returns the number of rows touched.
	UpdatePriceBySymbol(ctx context.Context, symbol string, price decimal.Decimal) (int64, error)
}

// PriceHistoryStore is the append-only price history log.
type PriceHistoryStore interface {
	Append(ctx context.Context, rec PriceHistoryRecord) (PriceHistoryRecord, error)
	ListBySymbol(ctx context.Context, symbol string, opts ListOpts) ([]PriceHistoryRecord, error)
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64
	Event     string
	Detail    map[string]any
	CreatedAt time.Time
}

// AuditStore persists an append-only audit log.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}
