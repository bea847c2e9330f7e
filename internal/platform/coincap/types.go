package coincap

import (
	"time"

	"github.com/shopspring/decimal"
)

// APIAsset is the asset object returned by GET /assets/{id}.
type APIAsset struct {
	ID       string  `json:"id"`
	Rank     string  `json:"rank"`
	Symbol   string  `json:"symbol"`
	Name     string  `json:"name"`
	PriceUSD *string `json:"priceUsd"`
}

type assetResponse struct {
	Data      *APIAsset `json:"data"`
	Timestamp int64     `json:"timestamp"`
}

// APIHistoryPoint is one element of GET /assets/{id}/history.
type APIHistoryPoint struct {
	PriceUSD string `json:"priceUsd"`
	Time     int64  `json:"time"`
	Date     string `json:"date"`
}

type historyResponse struct {
	Data      []APIHistoryPoint `json:"data"`
	Timestamp int64             `json:"timestamp"`
}

// Price parses the point's USD price.
func (p APIHistoryPoint) Price() (decimal.Decimal, error) {
	return decimal.NewFromString(p.PriceUSD)
}

// At returns the point's timestamp.
func (p APIHistoryPoint) At() time.Time {
	return time.UnixMilli(p.Time).UTC()
}
