package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/alanyoungcy/cryptowallet/internal/domain"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Status    int    `json:"status"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}

// writeJSON marshals v and writes it with status. A marshal failure becomes a
// plain 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"status":500,"message":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// WriteError writes the standard error envelope.
func WriteError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{
		Status:    status,
		Message:   msg,
		Timestamp: time.Now().UnixMilli(),
	})
}

// statusFor maps an error kind to its HTTP status.
func statusFor(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindWalletAlreadyExists:
		return http.StatusConflict
	case domain.KindWalletNotFound, domain.KindAssetNotFound:
		return http.StatusNotFound
	case domain.KindWalletGeneric, domain.KindNoPriceData, domain.KindInvalidInput:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// writeDomainError translates err into the error envelope. Untagged errors
// are logged and reported as a generic 500.
func writeDomainError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	kind := domain.KindOf(err)
	status := statusFor(kind)
	msg := domain.MessageOf(err, "internal server error")

	if status >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "request failed",
			slog.String("kind", kind.String()),
			slog.String("error", err.Error()),
		)
	} else {
		logger.DebugContext(r.Context(), "request rejected",
			slog.String("kind", kind.String()),
			slog.String("error", err.Error()),
		)
	}
	WriteError(w, status, msg)
}

// decodeJSON decodes a bounded request body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return domain.NewError(domain.KindInvalidInput, "request body is required")
		}
		return domain.WrapError(domain.KindInvalidInput, err, "malformed request body")
	}
	return nil
}

// pathParam extracts a named path parameter (Go 1.22+ ServeMux patterns).
func pathParam(r *http.Request, name string) string {
	return r.PathValue(name)
}

// pathInt64 parses a numeric path parameter.
func pathInt64(r *http.Request, name string) (int64, error) {
	raw := pathParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, domain.NewError(domain.KindInvalidInput, "invalid %s: %q", name, raw)
	}
	return id, nil
}

// queryLimit reads ?limit=, clamped to [1, maxLimit]; def is used when absent.
func queryLimit(r *http.Request, def, maxLimit int) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, domain.NewError(domain.KindInvalidInput, "invalid limit: %q", raw)
	}
	return min(n, maxLimit), nil
}

func logHandler(logger *slog.Logger, name string) *slog.Logger {
	return logger.With(slog.String("handler", name))
}
