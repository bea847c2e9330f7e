package domain

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// EvaluationInput is a caller-claimed holding to be evaluated against the
// reference-date price.
type EvaluationInput struct {
	Symbol       string          `json:"symbol"`
	Quantity     decimal.Decimal `json:"quantity"`
	ClaimedValue decimal.Decimal `json:"value"`
}

// EvaluationResult is the outcome of a wallet evaluation.
type EvaluationResult struct {
	Total            decimal.Decimal `json:"total"`
	BestAsset        string          `json:"bestAsset"`
	BestPerformance  decimal.Decimal `json:"bestPerformance"`
	WorstAsset       string          `json:"worstAsset"`
	WorstPerformance decimal.Decimal `json:"worstPerformance"`
}

// MarshalJSON writes the total and both performances with two decimals.
func (r EvaluationResult) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Total            json.Number `json:"total"`
		BestAsset        string      `json:"bestAsset"`
		BestPerformance  json.Number `json:"bestPerformance"`
		WorstAsset       string      `json:"worstAsset"`
		WorstPerformance json.Number `json:"worstPerformance"`
	}{
		Total:            FixedNumber(r.Total),
		BestAsset:        r.BestAsset,
		BestPerformance:  FixedNumber(r.BestPerformance),
		WorstAsset:       r.WorstAsset,
		WorstPerformance: FixedNumber(r.WorstPerformance),
	})
}
