// Package gatewayclient is the HTTP client every non-Gateway CORE process
// uses to reach the Brokerage Gateway's local HTTP surface (spec §6.3).
// No component other than the Gateway talks to the brokerage directly;
// everyone else goes through this client, matching spec §2's "All
// components communicate only through the message bus ... and the typed
// cache" for data, with this HTTP surface as the one explicit exception
// spec §6.3 carves out for command/query operations (orders, balance).
package gatewayclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/korea-trading-core/core/internal/errs"
	"github.com/korea-trading-core/core/internal/model"
)

type Client struct {
	baseURL string
	http    *http.Client
}

func New(baseURL string, timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	return &Client{baseURL: baseURL, http: &http.Client{Timeout: timeout}}
}

func (c *Client) call(ctx context.Context, method, path string, reqBody, respBody any) error {
	var bodyReader io.Reader
	if reqBody != nil {
		data, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("gatewayclient: marshal request for %s: %w", path, err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("gatewayclient: build request for %s: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return errs.Wrap(errs.BrokerageTransport, fmt.Sprintf("gatewayclient: %s transport error", path), err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		if respBody != nil {
			return json.NewDecoder(resp.Body).Decode(respBody)
		}
		return nil
	case http.StatusTooManyRequests:
		return errs.New(errs.RateLimited, "gatewayclient: rate limited")
	case http.StatusServiceUnavailable:
		return errs.New(errs.CircuitOpen, "gatewayclient: circuit open or upstream down")
	default:
		var apiErr model.APIError
		json.NewDecoder(resp.Body).Decode(&apiErr)
		if resp.StatusCode >= 500 {
			return errs.New(errs.BrokerageTransport, fmt.Sprintf("gatewayclient: %s status %d: %s", path, resp.StatusCode, apiErr.Detail))
		}
		return errs.New(errs.BrokerageBusiness, fmt.Sprintf("gatewayclient: %s status %d: %s", path, resp.StatusCode, apiErr.Detail))
	}
}

func (c *Client) Snapshot(ctx context.Context, code model.StockCode) (model.StockSnapshot, error) {
	var out model.StockSnapshot
	err := c.call(ctx, http.MethodPost, "/api/market/snapshot", map[string]string{"stock_code": code.String()}, &out)
	return out, err
}

func (c *Client) DailyPrices(ctx context.Context, code model.StockCode, days int) ([]model.DailyPrice, error) {
	var out []model.DailyPrice
	err := c.call(ctx, http.MethodPost, "/api/market/daily-prices", map[string]any{"stock_code": code.String(), "days": days}, &out)
	return out, err
}

func (c *Client) MinutePrices(ctx context.Context, code model.StockCode, count int) ([]model.MinutePrice, error) {
	var out []model.MinutePrice
	err := c.call(ctx, http.MethodPost, "/api/market/minute-prices", map[string]any{"stock_code": code.String(), "count": count}, &out)
	return out, err
}

func (c *Client) IsMarketOpen(ctx context.Context) (model.MarketOpenStatus, error) {
	var out model.MarketOpenStatus
	err := c.call(ctx, http.MethodGet, "/api/market/is-market-open", nil, &out)
	return out, err
}

func (c *Client) IsTradingDay(ctx context.Context, date string) (model.TradingDayStatus, error) {
	var out model.TradingDayStatus
	err := c.call(ctx, http.MethodGet, "/api/market/is-trading-day?date="+date, nil, &out)
	return out, err
}

func (c *Client) PlaceBuy(ctx context.Context, req model.OrderRequest) (model.OrderResult, error) {
	var out model.OrderResult
	err := c.call(ctx, http.MethodPost, "/api/trading/buy", req, &out)
	return out, err
}

func (c *Client) PlaceSell(ctx context.Context, req model.OrderRequest) (model.OrderResult, error) {
	var out model.OrderResult
	err := c.call(ctx, http.MethodPost, "/api/trading/sell", req, &out)
	return out, err
}

func (c *Client) Cancel(ctx context.Context, orderNo string) (model.CancelResult, error) {
	var out model.CancelResult
	err := c.call(ctx, http.MethodPost, "/api/trading/cancel", map[string]string{"order_no": orderNo}, &out)
	return out, err
}

func (c *Client) OrderStatus(ctx context.Context, orderNo string) (model.OrderStatus, error) {
	var out model.OrderStatus
	err := c.call(ctx, http.MethodPost, "/api/trading/order-status", map[string]string{"order_no": orderNo}, &out)
	return out, err
}

func (c *Client) Balance(ctx context.Context) (model.PortfolioState, error) {
	var out model.PortfolioState
	err := c.call(ctx, http.MethodPost, "/api/account/balance", nil, &out)
	return out, err
}

func (c *Client) Cash(ctx context.Context) (model.CashStatus, error) {
	var out model.CashStatus
	err := c.call(ctx, http.MethodPost, "/api/account/cash", nil, &out)
	return out, err
}

func (c *Client) Subscribe(ctx context.Context, codes []model.StockCode) error {
	return c.call(ctx, http.MethodPost, "/api/subscribe", map[string]any{"codes": codes}, nil)
}

func (c *Client) Unsubscribe(ctx context.Context, codes []model.StockCode) error {
	return c.call(ctx, http.MethodPost, "/api/unsubscribe", map[string]any{"codes": codes}, nil)
}
