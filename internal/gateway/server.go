// Package gateway exposes the Brokerage Gateway's local HTTP surface
// (spec §6.3) over a gorilla/mux router. Every route funnels into the one
// broker.Client this process owns; the rate limiter and circuit breaker
// live inside that client, so handlers only translate between HTTP and
// the model types, plus the uniform error envelope.
package gateway

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/korea-trading-core/core/internal/broker"
	"github.com/korea-trading-core/core/internal/errs"
	"github.com/korea-trading-core/core/internal/metrics"
	"github.com/korea-trading-core/core/internal/model"
)

const serviceName = "gateway"

// Server routes §6.3's operations onto the process's broker client and
// WebSocket subscriber.
type Server struct {
	client broker.Client
	subs   broker.Subscriber
	log    zerolog.Logger
}

func NewServer(client broker.Client, subs broker.Subscriber, log zerolog.Logger) *Server {
	return &Server{client: client, subs: subs, log: log}
}

// Router builds the full §6.3 route table plus /health and /metrics.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.requestID)

	r.HandleFunc("/api/market/snapshot", s.handleSnapshot).Methods(http.MethodPost)
	r.HandleFunc("/api/market/daily-prices", s.handleDailyPrices).Methods(http.MethodPost)
	r.HandleFunc("/api/market/minute-prices", s.handleMinutePrices).Methods(http.MethodPost)
	r.HandleFunc("/api/market/is-market-open", s.handleIsMarketOpen).Methods(http.MethodGet)
	r.HandleFunc("/api/market/is-trading-day", s.handleIsTradingDay).Methods(http.MethodGet)

	r.HandleFunc("/api/trading/buy", s.handleBuy).Methods(http.MethodPost)
	r.HandleFunc("/api/trading/sell", s.handleSell).Methods(http.MethodPost)
	r.HandleFunc("/api/trading/cancel", s.handleCancel).Methods(http.MethodPost)
	r.HandleFunc("/api/trading/order-status", s.handleOrderStatus).Methods(http.MethodPost)

	r.HandleFunc("/api/account/balance", s.handleBalance).Methods(http.MethodPost)
	r.HandleFunc("/api/account/cash", s.handleCash).Methods(http.MethodPost)

	r.HandleFunc("/api/subscribe", s.handleSubscribe).Methods(http.MethodPost)
	r.HandleFunc("/api/unsubscribe", s.handleUnsubscribe).Methods(http.MethodPost)

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	return r
}

// requestID tags every request with a correlation id for log stitching
// across the Gateway's own log and its callers'.
func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// writeError maps the error taxonomy onto §6.3's status table:
// validation 400, rate-limited 429, circuit open / upstream down 503,
// business conflict 409, everything else 500.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	kind := errs.KindOf(err)
	status := http.StatusInternalServerError
	switch kind {
	case errs.Validation:
		status = http.StatusBadRequest
	case errs.RateLimited:
		status = http.StatusTooManyRequests
	case errs.CircuitOpen, errs.BrokerageTransport:
		status = http.StatusServiceUnavailable
	case errs.BrokerageBusiness:
		status = http.StatusConflict
	}
	s.log.Warn().Str("event", "request_failed").Str("reason", err.Error()).Int("status", status).Send()
	writeJSON(w, status, model.APIError{
		Error:     string(kind),
		Detail:    err.Error(),
		Service:   serviceName,
		Timestamp: time.Now().UTC(),
	})
}

func decodeBody(r *http.Request, dest any) error {
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		return errs.Wrap(errs.Validation, "gateway: malformed request body", err)
	}
	return nil
}

func parseCode(raw string) (model.StockCode, error) {
	code, err := model.NewStockCode(raw)
	if err != nil {
		return "", errs.Wrap(errs.Validation, "gateway: invalid stock code", err)
	}
	return code, nil
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	var req struct {
		StockCode string `json:"stock_code"`
	}
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	code, err := parseCode(req.StockCode)
	if err != nil {
		s.writeError(w, err)
		return
	}
	out, err := s.client.Snapshot(r.Context(), code)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleDailyPrices(w http.ResponseWriter, r *http.Request) {
	var req struct {
		StockCode string `json:"stock_code"`
		Days      int    `json:"days"`
	}
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	code, err := parseCode(req.StockCode)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if req.Days <= 0 {
		req.Days = 60
	}
	out, err := s.client.DailyPrices(r.Context(), code, req.Days)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleMinutePrices(w http.ResponseWriter, r *http.Request) {
	var req struct {
		StockCode string `json:"stock_code"`
		Count     int    `json:"count"`
	}
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	code, err := parseCode(req.StockCode)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if req.Count <= 0 {
		req.Count = 30
	}
	out, err := s.client.MinutePrices(r.Context(), code, req.Count)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleIsMarketOpen(w http.ResponseWriter, r *http.Request) {
	out, err := s.client.IsMarketOpen(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleIsTradingDay(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if date == "" {
		s.writeError(w, errs.New(errs.Validation, "gateway: missing date parameter"))
		return
	}
	if _, err := time.Parse("2006-01-02", date); err != nil {
		s.writeError(w, errs.Wrap(errs.Validation, "gateway: date must be YYYY-MM-DD", err))
		return
	}
	out, err := s.client.IsTradingDay(r.Context(), date)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleOrder(w http.ResponseWriter, r *http.Request, place func(*http.Request, model.OrderRequest) (model.OrderResult, error)) {
	var req model.OrderRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if err := req.Validate(); err != nil {
		s.writeError(w, errs.Wrap(errs.Validation, "gateway: order request", err))
		return
	}
	started := time.Now()
	out, err := place(r, req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.log.Info().
		Str("event", "order_placed").
		Str("stock_code", req.StockCode.String()).
		Str("side", string(req.Side)).
		Dur("duration_ms", time.Since(started)).
		Send()
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleBuy(w http.ResponseWriter, r *http.Request) {
	s.handleOrder(w, r, func(r *http.Request, req model.OrderRequest) (model.OrderResult, error) {
		metrics.OrdersPlaced.WithLabelValues("buy", "attempt").Inc()
		return s.client.PlaceBuy(r.Context(), req)
	})
}

func (s *Server) handleSell(w http.ResponseWriter, r *http.Request) {
	s.handleOrder(w, r, func(r *http.Request, req model.OrderRequest) (model.OrderResult, error) {
		metrics.OrdersPlaced.WithLabelValues("sell", "attempt").Inc()
		return s.client.PlaceSell(r.Context(), req)
	})
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OrderNo string `json:"order_no"`
	}
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if req.OrderNo == "" {
		s.writeError(w, errs.New(errs.Validation, "gateway: missing order_no"))
		return
	}
	out, err := s.client.Cancel(r.Context(), req.OrderNo)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OrderNo string `json:"order_no"`
	}
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if req.OrderNo == "" {
		s.writeError(w, errs.New(errs.Validation, "gateway: missing order_no"))
		return
	}
	out, err := s.client.OrderStatus(r.Context(), req.OrderNo)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	out, err := s.client.Balance(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCash(w http.ResponseWriter, r *http.Request) {
	out, err := s.client.Cash(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) decodeCodes(w http.ResponseWriter, r *http.Request) ([]model.StockCode, bool) {
	var req struct {
		Codes []string `json:"codes"`
	}
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return nil, false
	}
	codes := make([]model.StockCode, 0, len(req.Codes))
	for _, raw := range req.Codes {
		code, err := parseCode(raw)
		if err != nil {
			s.writeError(w, err)
			return nil, false
		}
		codes = append(codes, code)
	}
	return codes, true
}

func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	codes, ok := s.decodeCodes(w, r)
	if !ok {
		return
	}
	if err := s.subs.Subscribe(codes); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleUnsubscribe(w http.ResponseWriter, r *http.Request) {
	codes, ok := s.decodeCodes(w, r)
	if !ok {
		return
	}
	if err := s.subs.Unsubscribe(codes); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": serviceName})
}
