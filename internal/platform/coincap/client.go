package coincap

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/cryptowallet/internal/domain"
)

// DefaultBaseURL is the public CoinCap v2 API root.
const DefaultBaseURL = "https://api.coincap.io/v2"

// Client is the REST client for a CoinCap-compatible market-data API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

// ClientConfig holds connection settings for the market-data API.
type ClientConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// NewClient creates a new market-data client. A zero Timeout falls back to
// ten seconds and an empty BaseURL to DefaultBaseURL.
func NewClient(cfg ClientConfig, logger *slog.Logger) *Client {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: base,
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger.With(slog.String("component", "coincap")),
	}
}

// Compile-time interface check.
var _ domain.MarketData = (*Client)(nil)

// CurrentPrice returns the current USD price of symbol.
func (c *Client) CurrentPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	path := "/assets/" + assetID(symbol)

	body, err := c.doGet(ctx, path)
	if err != nil {
		return decimal.Zero, c.classify(symbol, err)
	}

	var resp assetResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return decimal.Zero, domain.WrapError(domain.KindUpstreamUnavailable, err,
			"market data unavailable for %s", symbol)
	}
	if resp.Data == nil || resp.Data.PriceUSD == nil || *resp.Data.PriceUSD == "" {
		return decimal.Zero, domain.NewError(domain.KindAssetNotFound, "asset not found: %s", symbol)
	}

	price, err := decimal.NewFromString(*resp.Data.PriceUSD)
	if err != nil {
		return decimal.Zero, domain.WrapError(domain.KindUpstreamUnavailable, err,
			"market data unavailable for %s", symbol)
	}
	return price, nil
}

// HistoricalPrice returns the daily USD price of symbol on the UTC calendar
// day containing date. Any failure is logged and reported as ok == false.
func (c *Client) HistoricalPrice(ctx context.Context, symbol string, date time.Time) (decimal.Decimal, bool) {
	start := startOfDay(date)
	end := start.AddDate(0, 0, 1)

	params := url.Values{}
	params.Set("interval", "d1")
	params.Set("start", strconv.FormatInt(start.UnixMilli(), 10))
	params.Set("end", strconv.FormatInt(end.UnixMilli(), 10))
	path := "/assets/" + assetID(symbol) + "/history?" + params.Encode()

	log := c.logger.With(
		slog.String("symbol", symbol),
		slog.String("date", start.Format(time.DateOnly)),
	)

	body, err := c.doGet(ctx, path)
	if err != nil {
		log.Warn("historical price fetch failed", slog.String("error", err.Error()))
		return decimal.Zero, false
	}

	var resp historyResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		log.Warn("historical price decode failed", slog.String("error", err.Error()))
		return decimal.Zero, false
	}
	point, found := pointWithin(resp.Data, start, end)
	if !found {
		log.Warn("no historical price data", slog.Int("points", len(resp.Data)))
		return decimal.Zero, false
	}

	price, err := point.Price()
	if err != nil {
		log.Warn("historical price parse failed", slog.String("error", err.Error()))
		return decimal.Zero, false
	}
	return price, true
}

// --------------------------------------------------------------------------
// Internal helpers
// --------------------------------------------------------------------------

// statusError is a non-2xx response from the API.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.code, e.body)
}

func (c *Client) doGet(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &statusError{code: resp.StatusCode, body: truncate(string(body), 256)}
	}
	return body, nil
}

// classify maps a transport or status error onto the domain error kinds:
// 4xx means the provider does not know the symbol, 429 and anything else
// means the provider could not be reached.
func (c *Client) classify(symbol string, err error) error {
	var se *statusError
	if errors.As(err, &se) {
		switch {
		case se.code == http.StatusTooManyRequests:
			return domain.WrapError(domain.KindUpstreamUnavailable, fmt.Errorf("%w: %w", domain.ErrRateLimited, err),
				"market data unavailable for %s", symbol)
		case se.code >= 400 && se.code < 500:
			return domain.WrapError(domain.KindAssetNotFound, err, "asset not found: %s", symbol)
		}
	}
	return domain.WrapError(domain.KindUpstreamUnavailable, err, "market data unavailable for %s", symbol)
}

// pointWithin returns the first point stamped inside [start, end).
func pointWithin(points []APIHistoryPoint, start, end time.Time) (APIHistoryPoint, bool) {
	for _, p := range points {
		at := p.At()
		if !at.Before(start) && at.Before(end) {
			return p, true
		}
	}
	return APIHistoryPoint{}, false
}

func assetID(symbol string) string {
	return url.PathEscape(strings.ToLower(strings.TrimSpace(symbol)))
}

func startOfDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
