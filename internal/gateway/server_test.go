package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/korea-trading-core/core/internal/errs"
	"github.com/korea-trading-core/core/internal/model"
)

// mockBroker scripts the venue client's behavior per test.
type mockBroker struct {
	snapshotErr error
	buyResult   model.OrderResult
	buyErr      error
	balance     model.PortfolioState
}

func (m *mockBroker) Snapshot(ctx context.Context, code model.StockCode) (model.StockSnapshot, error) {
	if m.snapshotErr != nil {
		return model.StockSnapshot{}, m.snapshotErr
	}
	return model.StockSnapshot{StockCode: code, Price: decimal.NewFromInt(72100)}, nil
}

func (m *mockBroker) DailyPrices(ctx context.Context, code model.StockCode, days int) ([]model.DailyPrice, error) {
	return nil, nil
}

func (m *mockBroker) MinutePrices(ctx context.Context, code model.StockCode, count int) ([]model.MinutePrice, error) {
	return nil, nil
}

func (m *mockBroker) PlaceBuy(ctx context.Context, req model.OrderRequest) (model.OrderResult, error) {
	return m.buyResult, m.buyErr
}

func (m *mockBroker) PlaceSell(ctx context.Context, req model.OrderRequest) (model.OrderResult, error) {
	return model.OrderResult{}, nil
}

func (m *mockBroker) Cancel(ctx context.Context, orderNo string) (model.CancelResult, error) {
	return model.CancelResult{Success: true}, nil
}

func (m *mockBroker) OrderStatus(ctx context.Context, orderNo string) (model.OrderStatus, error) {
	return model.OrderStatus{}, nil
}

func (m *mockBroker) Balance(ctx context.Context) (model.PortfolioState, error) {
	return m.balance, nil
}

func (m *mockBroker) Cash(ctx context.Context) (model.CashStatus, error) {
	return model.CashStatus{BuyingPower: decimal.NewFromInt(10_000_000)}, nil
}

func (m *mockBroker) IsMarketOpen(ctx context.Context) (model.MarketOpenStatus, error) {
	return model.MarketOpenStatus{Open: true, Session: "regular"}, nil
}

func (m *mockBroker) IsTradingDay(ctx context.Context, date string) (model.TradingDayStatus, error) {
	return model.TradingDayStatus{Trading: true}, nil
}

type mockSubscriber struct {
	subscribed []model.StockCode
}

func (m *mockSubscriber) Subscribe(codes []model.StockCode) error {
	m.subscribed = append(m.subscribed, codes...)
	return nil
}

func (m *mockSubscriber) Unsubscribe(codes []model.StockCode) error { return nil }

func newTestServer(b *mockBroker) (*Server, *mockSubscriber) {
	subs := &mockSubscriber{}
	return NewServer(b, subs, zerolog.Nop()), subs
}

func postJSON(t *testing.T, srv *Server, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func TestSnapshotOK(t *testing.T) {
	srv, _ := newTestServer(&mockBroker{})
	rec := postJSON(t, srv, "/api/market/snapshot", map[string]string{"stock_code": "005930"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	var snap model.StockSnapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if snap.StockCode != "005930" {
		t.Errorf("stock_code = %s", snap.StockCode)
	}
}

func TestSnapshotRejectsBadCode(t *testing.T) {
	srv, _ := newTestServer(&mockBroker{})
	rec := postJSON(t, srv, "/api/market/snapshot", map[string]string{"stock_code": "93"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	var apiErr model.APIError
	if err := json.Unmarshal(rec.Body.Bytes(), &apiErr); err != nil {
		t.Fatalf("decode error envelope: %v", err)
	}
	if apiErr.Service != "gateway" || apiErr.Error == "" {
		t.Errorf("error envelope = %+v", apiErr)
	}
}

func TestErrorKindStatusMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{errs.New(errs.RateLimited, "bucket exhausted"), http.StatusTooManyRequests},
		{errs.New(errs.CircuitOpen, "breaker open"), http.StatusServiceUnavailable},
		{errs.New(errs.BrokerageTransport, "venue 502"), http.StatusServiceUnavailable},
		{errs.New(errs.BrokerageBusiness, "insufficient funds"), http.StatusConflict},
	}
	for _, c := range cases {
		srv, _ := newTestServer(&mockBroker{snapshotErr: c.err})
		rec := postJSON(t, srv, "/api/market/snapshot", map[string]string{"stock_code": "005930"})
		if rec.Code != c.want {
			t.Errorf("%v -> status %d, want %d", c.err, rec.Code, c.want)
		}
	}
}

func TestBuyValidatesOrderRequest(t *testing.T) {
	srv, _ := newTestServer(&mockBroker{})
	// limit order without a price violates the OrderRequest invariant.
	rec := postJSON(t, srv, "/api/trading/buy", map[string]any{
		"stock_code": "005930",
		"side":       "buy",
		"quantity":   10,
		"order_type": "limit",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestBuyPassesThrough(t *testing.T) {
	srv, _ := newTestServer(&mockBroker{
		buyResult: model.OrderResult{Success: true, OrderNo: "ORD1", FilledQuantity: 12, AvgFillPrice: decimal.NewFromInt(72120)},
	})
	rec := postJSON(t, srv, "/api/trading/buy", map[string]any{
		"stock_code": "005930",
		"side":       "buy",
		"quantity":   12,
		"order_type": "market",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	var result model.OrderResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !result.Success || result.OrderNo != "ORD1" {
		t.Errorf("result = %+v", result)
	}
}

func TestSubscribeForwardsCodes(t *testing.T) {
	srv, subs := newTestServer(&mockBroker{})
	rec := postJSON(t, srv, "/api/subscribe", map[string]any{"codes": []string{"005930", "000660"}})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if len(subs.subscribed) != 2 {
		t.Errorf("subscribed = %v", subs.subscribed)
	}
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(&mockBroker{})
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestIsTradingDayValidatesDate(t *testing.T) {
	srv, _ := newTestServer(&mockBroker{})
	req := httptest.NewRequest(http.MethodGet, "/api/market/is-trading-day?date=14-03-2025", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}
