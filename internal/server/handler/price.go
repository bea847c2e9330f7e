package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/cryptowallet/internal/domain"
)

// PriceHistoryService reads the recorded price history.
type PriceHistoryService interface {
	PriceHistory(ctx context.Context, symbol string, limit int) ([]domain.PriceHistoryRecord, error)
}

// PriceHandler serves read-only price history.
type PriceHandler struct {
	svc    PriceHistoryService
	logger *slog.Logger
}

// NewPriceHandler creates a PriceHandler.
func NewPriceHandler(svc PriceHistoryService, logger *slog.Logger) *PriceHandler {
	return &PriceHandler{svc: svc, logger: logHandler(logger, "price")}
}

type pricePoint struct {
	Price     decimal.Decimal `json:"price"`
	Timestamp time.Time       `json:"timestamp"`
}

type priceHistoryResponse struct {
	Symbol  string       `json:"symbol"`
	Records []pricePoint `json:"records"`
}

// History lists the latest recorded prices of a symbol, newest first.
// GET /prices/{symbol}/history?limit=N
func (h *PriceHandler) History(w http.ResponseWriter, r *http.Request) {
	limit, err := queryLimit(r, 100, 1000)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}

	records, err := h.svc.PriceHistory(r.Context(), pathParam(r, "symbol"), limit)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}

	resp := priceHistoryResponse{Records: make([]pricePoint, 0, len(records))}
	for _, rec := range records {
		resp.Symbol = rec.Symbol
		resp.Records = append(resp.Records, pricePoint{Price: rec.Price, Timestamp: rec.Timestamp})
	}
	if resp.Symbol == "" {
		resp.Symbol = pathParam(r, "symbol")
	}
	writeJSON(w, http.StatusOK, resp)
}
