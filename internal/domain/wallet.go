package domain

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// PriceScale is the number of decimals stored for asset prices and reported
// for monetary values.
const PriceScale = 2

// FixedNumber renders d as a JSON number with exactly PriceScale decimals, so
// 35000 is written as 35000.00.
func FixedNumber(d decimal.Decimal) json.Number {
	return json.Number(d.StringFixed(PriceScale))
}

// User owns at most one wallet. It is created implicitly the first time a
// wallet is requested for an email.
type User struct {
	ID    int64
	Email string
}

// Wallet exclusively owns its assets. Deleting a wallet deletes its assets.
type Wallet struct {
	ID         int64
	UserID     int64
	OwnerEmail string
	Assets     []Asset
	CreatedAt  time.Time
}

// Asset is a holding of a single symbol inside a wallet. There is at most one
// asset per (wallet, symbol).
type Asset struct {
	ID        int64
	WalletID  int64
	Symbol    string
	Quantity  decimal.Decimal
	Price     decimal.Decimal
	UpdatedAt time.Time
}

// Value is price * quantity rounded half-up to two decimals. A zero price or
// quantity yields zero.
func (a Asset) Value() decimal.Decimal {
	if a.Price.IsZero() || a.Quantity.IsZero() {
		return decimal.Zero
	}
	return a.Price.Mul(a.Quantity).Round(PriceScale)
}

// Merge folds an additional purchase of the same symbol into the asset: the
// quantity is summed and the price overwritten.
func (a *Asset) Merge(quantity, price decimal.Decimal) error {
	if !quantity.IsPositive() {
		return NewError(KindInvalidInput, "additional quantity must be positive")
	}
	a.Quantity = a.Quantity.Add(quantity)
	a.Price = price
	return nil
}

// FindAsset returns the wallet's asset for symbol, if held.
func (w Wallet) FindAsset(symbol string) (Asset, bool) {
	for _, a := range w.Assets {
		if a.Symbol == symbol {
			return a, true
		}
	}
	return Asset{}, false
}

// AssetInfo is the read model of a single asset in a wallet summary.
type AssetInfo struct {
	Symbol   string          `json:"symbol"`
	Quantity decimal.Decimal `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
	Value    decimal.Decimal `json:"value"`
}

// MarshalJSON writes price and value at the monetary scale. Quantity keeps
// its own precision.
func (a AssetInfo) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Symbol   string          `json:"symbol"`
		Quantity decimal.Decimal `json:"quantity"`
		Price    json.Number     `json:"price"`
		Value    json.Number     `json:"value"`
	}{a.Symbol, a.Quantity, FixedNumber(a.Price), FixedNumber(a.Value)})
}

// WalletInfo summarises a wallet: every asset's value and the wallet total.
type WalletInfo struct {
	ID     int64           `json:"id"`
	Total  decimal.Decimal `json:"total"`
	Assets []AssetInfo     `json:"assets"`
}

// MarshalJSON writes the total at the monetary scale.
func (w WalletInfo) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID     int64       `json:"id"`
		Total  json.Number `json:"total"`
		Assets []AssetInfo `json:"assets"`
	}{w.ID, FixedNumber(w.Total), w.Assets})
}

// Summarize builds the WalletInfo of w. The total is the sum of the already
// rounded asset values.
func (w Wallet) Summarize() WalletInfo {
	info := WalletInfo{
		ID:     w.ID,
		Total:  decimal.Zero,
		Assets: make([]AssetInfo, 0, len(w.Assets)),
	}
	for _, a := range w.Assets {
		v := a.Value()
		info.Total = info.Total.Add(v)
		info.Assets = append(info.Assets, AssetInfo{
			Symbol:   a.Symbol,
			Quantity: a.Quantity,
			Price:    a.Price,
			Value:    v,
		})
	}
	return info
}
