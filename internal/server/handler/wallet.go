package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/cryptowallet/internal/domain"
)

// WalletService is the application surface the wallet endpoints call.
type WalletService interface {
	CreateWallet(ctx context.Context, email string) (domain.Wallet, error)
	AddAsset(ctx context.Context, walletID int64, symbol string, quantity decimal.Decimal) (domain.Asset, error)
	GetWalletInfo(ctx context.Context, walletID int64) (domain.WalletInfo, error)
	EvaluateWallet(ctx context.Context, inputs []domain.EvaluationInput, date time.Time) (domain.EvaluationResult, error)
	DeleteWallet(ctx context.Context, walletID int64) error
}

// WalletHandler serves the /wallets endpoints.
type WalletHandler struct {
	svc    WalletService
	logger *slog.Logger
}

// NewWalletHandler creates a WalletHandler.
func NewWalletHandler(svc WalletService, logger *slog.Logger) *WalletHandler {
	return &WalletHandler{svc: svc, logger: logHandler(logger, "wallet")}
}

type createWalletRequest struct {
	Email string `json:"email"`
}

type createWalletResponse struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
}

// CreateWallet creates the wallet of a user.
// POST /wallets
func (h *WalletHandler) CreateWallet(w http.ResponseWriter, r *http.Request) {
	var req createWalletRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}

	wallet, err := h.svc.CreateWallet(r.Context(), req.Email)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, createWalletResponse{ID: wallet.ID, Email: wallet.OwnerEmail})
}

type addAssetRequest struct {
	Symbol   string          `json:"symbol"`
	Quantity decimal.Decimal `json:"quantity"`
}

type assetResponse struct {
	ID       int64           `json:"id"`
	Symbol   string          `json:"symbol"`
	Quantity decimal.Decimal `json:"quantity"`
	Price    json.Number     `json:"price"`
	Value    json.Number     `json:"value"`
}

// AddAsset adds a holding to a wallet at the current market price.
// POST /wallets/{walletId}/assets
func (h *WalletHandler) AddAsset(w http.ResponseWriter, r *http.Request) {
	walletID, err := pathInt64(r, "walletId")
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}

	var req addAssetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}

	asset, err := h.svc.AddAsset(r.Context(), walletID, req.Symbol, req.Quantity)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, assetResponse{
		ID:       asset.ID,
		Symbol:   asset.Symbol,
		Quantity: asset.Quantity,
		Price:    domain.FixedNumber(asset.Price),
		Value:    domain.FixedNumber(asset.Value()),
	})
}

// GetWallet returns the wallet summary.
// GET /wallets/{walletId}
func (h *WalletHandler) GetWallet(w http.ResponseWriter, r *http.Request) {
	walletID, err := pathInt64(r, "walletId")
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}

	info, err := h.svc.GetWalletInfo(r.Context(), walletID)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// DeleteWallet removes a wallet and its assets.
// DELETE /wallets/{walletId}
func (h *WalletHandler) DeleteWallet(w http.ResponseWriter, r *http.Request) {
	walletID, err := pathInt64(r, "walletId")
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}

	if err := h.svc.DeleteWallet(r.Context(), walletID); err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type evaluateRequest struct {
	Assets []domain.EvaluationInput `json:"assets"`
}

// EvaluateWallet evaluates caller-supplied holdings against the prices of
// ?date=YYYY-MM-DD (today when absent).
// POST /wallets/evaluate
func (h *WalletHandler) EvaluateWallet(w http.ResponseWriter, r *http.Request) {
	var date time.Time
	if raw := r.URL.Query().Get("date"); raw != "" {
		d, err := time.Parse(time.DateOnly, raw)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "invalid date, expected YYYY-MM-DD: "+raw)
			return
		}
		date = d
	}

	var req evaluateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}

	res, err := h.svc.EvaluateWallet(r.Context(), req.Assets, date)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
