package service

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"github.com/alanyoungcy/cryptowallet/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// MockMarketData is a mock implementation of domain.MarketData for testing
type MockMarketData struct {
	mock.Mock
}

func (m *MockMarketData) CurrentPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	args := m.Called(ctx, symbol)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockMarketData) HistoricalPrice(ctx context.Context, symbol string, date time.Time) (decimal.Decimal, bool) {
	args := m.Called(ctx, symbol, date)
	return args.Get(0).(decimal.Decimal), args.Bool(1)
}

// memStore is an in-memory implementation of the wallet, asset and price
// history stores.
type memStore struct {
	mu      sync.Mutex
	nextID  int64
	users   map[string]int64
	wallets map[int64]domain.Wallet
	assets  map[int64]domain.Asset
	history []domain.PriceHistoryRecord
}

func newMemStore() *memStore {
	return &memStore{
		users:   map[string]int64{},
		wallets: map[int64]domain.Wallet{},
		assets:  map[int64]domain.Asset{},
	}
}

func (s *memStore) id() int64 {
	s.nextID++
	return s.nextID
}

type memWallets struct{ *memStore }
type memAssets struct{ *memStore }
type memHistory struct{ *memStore }

func (s memWallets) Create(_ context.Context, email string) (domain.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	uid, ok := s.users[email]
	if !ok {
		uid = s.id()
		s.users[email] = uid
	}
	for _, w := range s.wallets {
		if w.UserID == uid {
			return domain.Wallet{}, domain.ErrAlreadyExists
		}
	}
	w := domain.Wallet{ID: s.id(), UserID: uid, OwnerEmail: email, CreatedAt: time.Now()}
	s.wallets[w.ID] = w
	return w, nil
}

func (s memWallets) GetByID(_ context.Context, id int64) (domain.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.wallets[id]
	if !ok {
		return domain.Wallet{}, domain.ErrNotFound
	}
	w.Assets = s.assetsWhere(func(a domain.Asset) bool { return a.WalletID == id })
	return w, nil
}

func (s memWallets) GetByOwnerEmail(_ context.Context, email string) (domain.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, w := range s.wallets {
		if w.OwnerEmail == email {
			return w, nil
		}
	}
	return domain.Wallet{}, domain.ErrNotFound
}

func (s memWallets) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.wallets[id]; !ok {
		return domain.ErrNotFound
	}
	for aid, a := range s.assets {
		if a.WalletID == id {
			delete(s.assets, aid)
		}
	}
	delete(s.wallets, id)
	return nil
}

// assetsWhere must be called with mu held.
func (s *memStore) assetsWhere(keep func(domain.Asset) bool) []domain.Asset {
	out := []domain.Asset{}
	for _, a := range s.assets {
		if keep(a) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s memAssets) Create(_ context.Context, a domain.Asset) (domain.Asset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.assets {
		if existing.WalletID == a.WalletID && existing.Symbol == a.Symbol {
			return domain.Asset{}, domain.ErrAlreadyExists
		}
	}
	a.ID = s.id()
	a.UpdatedAt = time.Now()
	s.assets[a.ID] = a
	return a, nil
}

func (s memAssets) Update(_ context.Context, a domain.Asset) (domain.Asset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.assets[a.ID]; !ok {
		return domain.Asset{}, domain.ErrNotFound
	}
	a.UpdatedAt = time.Now()
	s.assets[a.ID] = a
	return a, nil
}

func (s memAssets) GetByWalletAndSymbol(_ context.Context, walletID int64, symbol string) (domain.Asset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.assets {
		if a.WalletID == walletID && a.Symbol == symbol {
			return a, nil
		}
	}
	return domain.Asset{}, domain.ErrNotFound
}

func (s memAssets) DistinctSymbols(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := map[string]bool{}
	var out []string
	for _, a := range s.assetsWhere(func(domain.Asset) bool { return true }) {
		if !seen[a.Symbol] {
			seen[a.Symbol] = true
			out = append(out, a.Symbol)
		}
	}
	return out, nil
}

func (s memAssets) UpdatePriceBySymbol(_ context.Context, symbol string, price decimal.Decimal) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, a := range s.assets {
		if a.Symbol == symbol {
			a.Price = price
			s.assets[id] = a
			n++
		}
	}
	return n, nil
}

func (s memHistory) Append(_ context.Context, rec domain.PriceHistoryRecord) (domain.PriceHistoryRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec.ID = s.id()
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}
	s.history = append(s.history, rec)
	return rec, nil
}

func (s memHistory) ListBySymbol(_ context.Context, symbol string, opts domain.ListOpts) ([]domain.PriceHistoryRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []domain.PriceHistoryRecord{}
	for i := len(s.history) - 1; i >= 0; i-- {
		if s.history[i].Symbol == symbol {
			out = append(out, s.history[i])
		}
		if opts.Limit > 0 && len(out) == opts.Limit {
			break
		}
	}
	return out, nil
}
