package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/cryptowallet/internal/domain"
)

// DefaultHistoryLimit caps price history listings when the caller gives no
// limit.
const DefaultHistoryLimit = 100

// WalletService is the entry point for wallet operations exposed over HTTP.
type WalletService struct {
	wallets   domain.WalletStore
	assets    domain.AssetStore
	history   domain.PriceHistoryStore
	market    domain.MarketData
	evaluator *Evaluator
	logger    *slog.Logger
}

// NewWalletService creates a WalletService with all required dependencies.
func NewWalletService(
	wallets domain.WalletStore,
	assets domain.AssetStore,
	history domain.PriceHistoryStore,
	market domain.MarketData,
	evaluator *Evaluator,
	logger *slog.Logger,
) *WalletService {
	return &WalletService{
		wallets:   wallets,
		assets:    assets,
		history:   history,
		market:    market,
		evaluator: evaluator,
		logger:    logger,
	}
}

// CreateWallet creates the wallet for email, creating the user on first use.
func (s *WalletService) CreateWallet(ctx context.Context, email string) (domain.Wallet, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return domain.Wallet{}, err
	}

	_, err = s.wallets.GetByOwnerEmail(ctx, email)
	switch {
	case err == nil:
		return domain.Wallet{}, domain.NewError(domain.KindWalletAlreadyExists, "user already has a wallet")
	case !errors.Is(err, domain.ErrNotFound):
		return domain.Wallet{}, fmt.Errorf("wallet_service: lookup wallet of %s: %w", email, err)
	}

	w, err := s.wallets.Create(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			return domain.Wallet{}, domain.WrapError(domain.KindWalletAlreadyExists, err, "user already has a wallet")
		}
		return domain.Wallet{}, fmt.Errorf("wallet_service: create wallet: %w", err)
	}

	s.logger.InfoContext(ctx, "wallet_service: wallet created",
		slog.Int64("wallet_id", w.ID),
		slog.Int64("user_id", w.UserID),
	)
	return w, nil
}

// AddAsset prices symbol at the current market price and adds quantity of it
// to the wallet. Adding a symbol already held merges into the existing asset.
func (s *WalletService) AddAsset(ctx context.Context, walletID int64, symbol string, quantity decimal.Decimal) (domain.Asset, error) {
	symbol = NormalizeSymbol(symbol)
	if symbol == "" {
		return domain.Asset{}, domain.NewError(domain.KindInvalidInput, "symbol is required")
	}
	if !quantity.IsPositive() {
		return domain.Asset{}, domain.NewError(domain.KindInvalidInput, "quantity must be positive")
	}

	w, err := s.wallet(ctx, walletID)
	if err != nil {
		return domain.Asset{}, err
	}

	price, err := s.market.CurrentPrice(ctx, symbol)
	if err != nil {
		if domain.KindOf(err) == domain.KindAssetNotFound {
			return domain.Asset{}, domain.WrapError(domain.KindWalletGeneric, err,
				"cannot add asset, symbol not found: %s", symbol)
		}
		return domain.Asset{}, fmt.Errorf("wallet_service: price %s: %w", symbol, err)
	}
	price = price.Round(domain.PriceScale)

	asset, err := s.upsertAsset(ctx, w, symbol, quantity, price)
	if err != nil {
		return domain.Asset{}, err
	}

	s.logger.InfoContext(ctx, "wallet_service: asset added",
		slog.Int64("wallet_id", walletID),
		slog.String("symbol", symbol),
		slog.String("quantity", asset.Quantity.String()),
		slog.String("price", asset.Price.String()),
	)
	return asset, nil
}

func (s *WalletService) upsertAsset(ctx context.Context, w domain.Wallet, symbol string, quantity, price decimal.Decimal) (domain.Asset, error) {
	merge := func(existing domain.Asset) (domain.Asset, error) {
		if err := existing.Merge(quantity, price); err != nil {
			return domain.Asset{}, err
		}
		updated, err := s.assets.Update(ctx, existing)
		if err != nil {
			return domain.Asset{}, fmt.Errorf("wallet_service: update asset %s: %w", symbol, err)
		}
		return updated, nil
	}

	if existing, ok := w.FindAsset(symbol); ok {
		return merge(existing)
	}

	created, err := s.assets.Create(ctx, domain.Asset{
		WalletID: w.ID,
		Symbol:   symbol,
		Quantity: quantity,
		Price:    price,
	})
	if err == nil {
		return created, nil
	}
	if !errors.Is(err, domain.ErrAlreadyExists) {
		return domain.Asset{}, fmt.Errorf("wallet_service: create asset %s: %w", symbol, err)
	}

	// Lost a race with a concurrent add of the same symbol.
	existing, err := s.assets.GetByWalletAndSymbol(ctx, w.ID, symbol)
	if err != nil {
		return domain.Asset{}, fmt.Errorf("wallet_service: reload asset %s: %w", symbol, err)
	}
	return merge(existing)
}

// GetWalletInfo returns the wallet with every asset valued at its stored price.
func (s *WalletService) GetWalletInfo(ctx context.Context, walletID int64) (domain.WalletInfo, error) {
	w, err := s.wallet(ctx, walletID)
	if err != nil {
		return domain.WalletInfo{}, err
	}
	return w.Summarize(), nil
}

// EvaluateWallet evaluates caller-supplied holdings against prices on date.
func (s *WalletService) EvaluateWallet(ctx context.Context, inputs []domain.EvaluationInput, date time.Time) (domain.EvaluationResult, error) {
	if len(inputs) == 0 {
		return domain.EvaluationResult{}, domain.ErrEmptyAssetList
	}
	normalized := make([]domain.EvaluationInput, len(inputs))
	for i, in := range inputs {
		in.Symbol = NormalizeSymbol(in.Symbol)
		if in.Symbol == "" {
			return domain.EvaluationResult{}, domain.NewError(domain.KindInvalidInput, "asset %d: symbol is required", i)
		}
		normalized[i] = in
	}
	return s.evaluator.Evaluate(ctx, normalized, date)
}

// DeleteWallet removes the wallet and all of its assets.
func (s *WalletService) DeleteWallet(ctx context.Context, walletID int64) error {
	if err := s.wallets.Delete(ctx, walletID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return walletNotFound(walletID)
		}
		return fmt.Errorf("wallet_service: delete wallet %d: %w", walletID, err)
	}
	s.logger.InfoContext(ctx, "wallet_service: wallet deleted", slog.Int64("wallet_id", walletID))
	return nil
}

// PriceHistory returns the most recent recorded prices of symbol.
func (s *WalletService) PriceHistory(ctx context.Context, symbol string, limit int) ([]domain.PriceHistoryRecord, error) {
	symbol = NormalizeSymbol(symbol)
	if symbol == "" {
		return nil, domain.NewError(domain.KindInvalidInput, "symbol is required")
	}
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	records, err := s.history.ListBySymbol(ctx, symbol, domain.ListOpts{Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("wallet_service: price history %s: %w", symbol, err)
	}
	return records, nil
}

func (s *WalletService) wallet(ctx context.Context, walletID int64) (domain.Wallet, error) {
	w, err := s.wallets.GetByID(ctx, walletID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Wallet{}, walletNotFound(walletID)
		}
		return domain.Wallet{}, fmt.Errorf("wallet_service: get wallet %d: %w", walletID, err)
	}
	return w, nil
}

func walletNotFound(id int64) error {
	return domain.NewError(domain.KindWalletNotFound, "wallet not found with id: %d", id)
}

// NormalizeSymbol trims and upper-cases a ticker.
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", domain.NewError(domain.KindInvalidInput, "email is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", domain.NewError(domain.KindInvalidInput, "invalid email: %s", email)
	}
	return email, nil
}
