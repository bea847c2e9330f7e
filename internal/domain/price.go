package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceHistoryRecord is an immutable price observation written by the refresh
// pipeline. It outlives the assets it was fetched for.
type PriceHistoryRecord struct {
	ID        int64           `json:"id"`
	Symbol    string          `json:"symbol"`
	Price     decimal.Decimal `json:"price"`
	Timestamp time.Time       `json:"timestamp"`
}

// CycleReport summarises one price refresh cycle.
type CycleReport struct {
	StartedAt     time.Time
	Duration      time.Duration
	Symbols       []string
	Batches       int
	Updated       []string
	Failed        []string
	AssetsTouched int64
}
