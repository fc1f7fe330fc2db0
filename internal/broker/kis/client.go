// Package kis implements broker.Client against a generic Korean-venue
// REST+WebSocket contract, grounded on the teacher's
// internal/market/alpaca.Provider (one struct implementing the generic
// interface, response types mapped into this repository's model types)
// but rewritten against a plain net/http client instead of a venue SDK —
// no Go SDK for the target venue exists anywhere in the example pack.
package kis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/korea-trading-core/core/internal/breaker"
	"github.com/korea-trading-core/core/internal/broker"
	"github.com/korea-trading-core/core/internal/errs"
	"github.com/korea-trading-core/core/internal/model"
	"github.com/korea-trading-core/core/internal/ratelimit"
)

// Client is the sole process-level owner of outbound brokerage traffic.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	apiSecret  string

	bucket   *ratelimit.Bucket
	breakers *breaker.Registry
	tokens   *tokenStore

	rateLimitWait time.Duration
}

// Config collects the Gateway's venue-facing tunables.
type Config struct {
	BaseURL       string
	APIKey        string
	APISecret     string
	TokenFilePath string
	RatePerSecond int
	RateWait      time.Duration
	Breaker       breaker.Config
	HTTPTimeout   time.Duration
}

func New(cfg Config) *Client {
	if cfg.HTTPTimeout == 0 {
		cfg.HTTPTimeout = 5 * time.Second
	}
	return &Client{
		httpClient:    &http.Client{Timeout: cfg.HTTPTimeout},
		baseURL:       cfg.BaseURL,
		apiKey:        cfg.APIKey,
		apiSecret:     cfg.APISecret,
		bucket:        ratelimit.New(cfg.RatePerSecond),
		breakers:      breaker.NewRegistry(cfg.Breaker),
		tokens:        newTokenStore(cfg.TokenFilePath),
		rateLimitWait: cfg.RateWait,
	}
}

// BreakersOpenFor reports which endpoints' breakers have been OPEN for at
// least d, for the gateway's prolonged-outage operator alert.
func (c *Client) BreakersOpenFor(d time.Duration) []string {
	return c.breakers.OpenFor(d)
}

// authToken returns a valid bearer token, reusing the cached one when
// still fresh and otherwise issuing a new one through the venue's
// (separately rate-limited) auth endpoint.
func (c *Client) authToken(ctx context.Context) (string, error) {
	if tok, ok := c.tokens.valid(); ok {
		return tok, nil
	}

	const endpoint = "POST /oauth2/token"
	if !c.breakers.Allow(endpoint) {
		return "", errs.New(errs.CircuitOpen, "kis: auth endpoint circuit open")
	}
	if !c.bucket.Acquire(ctx, c.rateLimitWait) {
		return "", errs.New(errs.RateLimited, "kis: rate limit exhausted acquiring auth token")
	}

	body, _ := json.Marshal(map[string]string{
		"grant_type": "client_credentials",
		"appkey":     c.apiKey,
		"appsecret":  c.apiSecret,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/oauth2/tokenP", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("kis: build auth request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.breakers.RecordResult(endpoint, false)
		return "", errs.Wrap(errs.BrokerageTransport, "kis: auth request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		c.breakers.RecordResult(endpoint, false)
		return "", errs.New(errs.BrokerageTransport, fmt.Sprintf("kis: auth upstream status %d", resp.StatusCode))
	}
	c.breakers.RecordResult(endpoint, true)

	var out struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("kis: decode auth response: %w", err)
	}
	expiresAt := time.Now().Add(time.Duration(out.ExpiresIn) * time.Second)
	if err := c.tokens.store(out.AccessToken, expiresAt); err != nil {
		return "", err
	}
	return out.AccessToken, nil
}

// do performs one rate-limited, breaker-guarded REST call against the
// venue, classifying failures exactly as spec §4.1 requires: transport
// errors count against the breaker, 4xx business errors surface verbatim
// and never do.
func (c *Client) do(ctx context.Context, endpoint, method, path string, reqBody, respBody any) error {
	if !c.breakers.Allow(endpoint) {
		return errs.New(errs.CircuitOpen, fmt.Sprintf("kis: %s circuit open", endpoint))
	}
	if !c.bucket.Acquire(ctx, c.rateLimitWait) {
		return errs.New(errs.RateLimited, fmt.Sprintf("kis: rate limit exhausted for %s", endpoint))
	}

	token, err := c.authToken(ctx)
	if err != nil {
		return err
	}

	var bodyReader io.Reader
	if reqBody != nil {
		data, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("kis: marshal request for %s: %w", endpoint, err)
		}
		bodyReader = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("kis: build request for %s: %w", endpoint, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+token)
	httpReq.Header.Set("appkey", c.apiKey)
	httpReq.Header.Set("appsecret", c.apiSecret)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.breakers.RecordResult(endpoint, false)
		return errs.Wrap(errs.BrokerageTransport, fmt.Sprintf("kis: %s transport error", endpoint), err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500:
		c.breakers.RecordResult(endpoint, false)
		return errs.New(errs.BrokerageTransport, fmt.Sprintf("kis: %s upstream status %d", endpoint, resp.StatusCode))
	case resp.StatusCode >= 400:
		c.breakers.RecordResult(endpoint, true) // business error, not a breaker trip
		data, _ := io.ReadAll(resp.Body)
		return errs.New(errs.BrokerageBusiness, fmt.Sprintf("kis: %s business error %d: %s", endpoint, resp.StatusCode, string(data)))
	}
	c.breakers.RecordResult(endpoint, true)

	if respBody != nil {
		if err := json.NewDecoder(resp.Body).Decode(respBody); err != nil {
			return fmt.Errorf("kis: decode response for %s: %w", endpoint, err)
		}
	}
	return nil
}

func (c *Client) Snapshot(ctx context.Context, code model.StockCode) (model.StockSnapshot, error) {
	var out model.StockSnapshot
	err := c.do(ctx, "GET /quotations/inquire-price", http.MethodGet, "/uapi/domestic-stock/v1/quotations/inquire-price?code="+code.String(), nil, &out)
	return out, err
}

func (c *Client) DailyPrices(ctx context.Context, code model.StockCode, days int) ([]model.DailyPrice, error) {
	var out []model.DailyPrice
	path := fmt.Sprintf("/uapi/domestic-stock/v1/quotations/inquire-daily-price?code=%s&days=%d", code.String(), days)
	err := c.do(ctx, "GET /quotations/inquire-daily-price", http.MethodGet, path, nil, &out)
	return out, err
}

func (c *Client) MinutePrices(ctx context.Context, code model.StockCode, count int) ([]model.MinutePrice, error) {
	var out []model.MinutePrice
	path := fmt.Sprintf("/uapi/domestic-stock/v1/quotations/inquire-time-itemchartprice?code=%s&count=%d", code.String(), count)
	err := c.do(ctx, "GET /quotations/inquire-time-itemchartprice", http.MethodGet, path, nil, &out)
	return out, err
}

func (c *Client) placeOrder(ctx context.Context, endpoint, path string, req model.OrderRequest) (model.OrderResult, error) {
	if err := req.Validate(); err != nil {
		return model.OrderResult{}, errs.Wrap(errs.Validation, "kis: order request validation", err)
	}
	var out model.OrderResult
	err := c.do(ctx, endpoint, http.MethodPost, path, req, &out)
	return out, err
}

func (c *Client) PlaceBuy(ctx context.Context, req model.OrderRequest) (model.OrderResult, error) {
	return c.placeOrder(ctx, "POST /trading/order-cash buy", "/uapi/domestic-stock/v1/trading/order-cash/buy", req)
}

func (c *Client) PlaceSell(ctx context.Context, req model.OrderRequest) (model.OrderResult, error) {
	return c.placeOrder(ctx, "POST /trading/order-cash sell", "/uapi/domestic-stock/v1/trading/order-cash/sell", req)
}

func (c *Client) Cancel(ctx context.Context, orderNo string) (model.CancelResult, error) {
	var out model.CancelResult
	err := c.do(ctx, "POST /trading/order-rvsecncl", http.MethodPost, "/uapi/domestic-stock/v1/trading/order-rvsecncl", map[string]string{"order_no": orderNo}, &out)
	return out, err
}

func (c *Client) OrderStatus(ctx context.Context, orderNo string) (model.OrderStatus, error) {
	var out model.OrderStatus
	err := c.do(ctx, "GET /trading/inquire-daily-ccld", http.MethodGet, "/uapi/domestic-stock/v1/trading/inquire-daily-ccld?order_no="+orderNo, nil, &out)
	return out, err
}

func (c *Client) Balance(ctx context.Context) (model.PortfolioState, error) {
	var out model.PortfolioState
	err := c.do(ctx, "GET /trading/inquire-balance", http.MethodGet, "/uapi/domestic-stock/v1/trading/inquire-balance", nil, &out)
	return out, err
}

func (c *Client) Cash(ctx context.Context) (model.CashStatus, error) {
	var out model.CashStatus
	err := c.do(ctx, "GET /trading/inquire-psbl-order", http.MethodGet, "/uapi/domestic-stock/v1/trading/inquire-psbl-order", nil, &out)
	return out, err
}

func (c *Client) IsMarketOpen(ctx context.Context) (model.MarketOpenStatus, error) {
	var out model.MarketOpenStatus
	err := c.do(ctx, "GET /quotations/trade-time", http.MethodGet, "/uapi/domestic-stock/v1/quotations/trade-time", nil, &out)
	return out, err
}

func (c *Client) IsTradingDay(ctx context.Context, date string) (model.TradingDayStatus, error) {
	var out model.TradingDayStatus
	err := c.do(ctx, "GET /quotations/chk-holiday", http.MethodGet, "/uapi/domestic-stock/v1/quotations/chk-holiday?date="+date, nil, &out)
	return out, err
}

var _ broker.Client = (*Client)(nil)
