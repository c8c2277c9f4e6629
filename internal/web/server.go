// Package web serves the dashboard and its JSON API over the shared
// exchange client.
package web

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"futures-bot/internal/core"
	"futures-bot/internal/exchange/binance"
	"futures-bot/internal/orders"
)

const (
	maxJSONBodyBytes int64 = 1 << 20 // 1 MiB

	indexPath   = "/"
	balancePath = "/api/balance"
	orderPath   = "/api/order"

	requestIDHeader = "X-Request-ID"
)

//go:embed static/index.html
var staticFiles embed.FS

type BalanceSource interface {
	GetAccountBalance(ctx context.Context) ([]binance.BalanceEntry, error)
}

type OrderService interface {
	PlaceOrder(ctx context.Context, order core.Order) (orders.Result, error)
	GetOrder(ctx context.Context, symbol string, orderID int64) (orders.Result, error)
}

type handlerFunc func(http.ResponseWriter, *http.Request)

type httpServer struct {
	balances BalanceSource
	orders   OrderService
	log      logrus.FieldLogger
}

// NewHandler wires the dashboard routes. The returned handler tags every
// request with an id and writes one access log line per request.
func NewHandler(balances BalanceSource, orderSvc OrderService, logger logrus.FieldLogger) http.Handler {
	if logger == nil {
		discard := logrus.New()
		discard.SetOutput(io.Discard)
		logger = discard
	}
	server := &httpServer{balances: balances, orders: orderSvc, log: logger.WithField("component", "web")}
	mux := http.NewServeMux()

	mux.Handle(indexPath, server.methodHandlers(map[string]handlerFunc{
		http.MethodGet: server.index,
	}))
	mux.Handle(balancePath, server.methodHandlers(map[string]handlerFunc{
		http.MethodGet: server.getBalance,
	}))
	mux.Handle(orderPath, server.methodHandlers(map[string]handlerFunc{
		http.MethodGet:  server.getOrder,
		http.MethodPost: server.placeOrder,
	}))
	return server.withRequestLog(mux)
}

// NewServer returns an http.Server with conservative timeouts around handler.
func NewServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

func (s *httpServer) methodHandlers(handlers map[string]handlerFunc) http.Handler {
	allowed := allowedMethods(handlers)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if handler, ok := handlers[r.Method]; ok {
			handler(w, r)
			return
		}
		methodNotAllowed(w, allowed...)
	})
}

func allowedMethods(handlers map[string]handlerFunc) []string {
	allowed := make([]string, 0, len(handlers))
	for method := range handlers {
		allowed = append(allowed, method)
	}
	sort.Strings(allowed)
	return allowed
}

func (s *httpServer) index(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != indexPath {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	page, err := staticFiles.ReadFile("static/index.html")
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(page)
}

func (s *httpServer) getBalance(w http.ResponseWriter, r *http.Request) {
	balances, err := s.balances.GetAccountBalance(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "balances": balances})
}

type orderPayload struct {
	Symbol    flexString `json:"symbol"`
	Side      flexString `json:"side"`
	Type      flexString `json:"type"`
	Quantity  flexString `json:"quantity"`
	Price     flexString `json:"price"`
	TIF       flexString `json:"tif"`
	StopPrice flexString `json:"stop_price"`
}

func (p orderPayload) request() core.OrderRequest {
	return core.OrderRequest{
		Symbol:      string(p.Symbol),
		Side:        string(p.Side),
		Type:        string(p.Type),
		Quantity:    string(p.Quantity),
		Price:       string(p.Price),
		StopPrice:   string(p.StopPrice),
		TimeInForce: string(p.TIF),
	}
}

func (s *httpServer) placeOrder(w http.ResponseWriter, r *http.Request) {
	limitRequestBody(w, r)
	var payload orderPayload
	if err := decodeJSON(r, &payload); err != nil {
		writeDecodeError(w, err)
		return
	}
	order, err := payload.request().Validate()
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	result, err := s.orders.PlaceOrder(r.Context(), order)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "order": result})
}

func (s *httpServer) getOrder(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	symbol, err := core.ValidateSymbol(query.Get("symbol"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	orderID, err := core.ValidateOrderID(query.Get("order_id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	result, err := s.orders.GetOrder(r.Context(), symbol, orderID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "order": result})
}

func (s *httpServer) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status, message := classifyError(err)
	s.log.WithFields(logrus.Fields{
		"request_id": w.Header().Get(requestIDHeader),
		"path":       r.URL.Path,
		"status":     status,
	}).WithError(err).Warn("request failed")
	writeError(w, status, message)
}

// classifyError maps the error taxonomy onto HTTP statuses.
func classifyError(err error) (int, string) {
	var (
		cfgErr       *binance.ConfigurationError
		validErr     *core.ValidationError
		apiErr       *binance.APIError
		transportErr *binance.TransportError
	)
	switch {
	case errors.As(err, &cfgErr):
		return http.StatusServiceUnavailable, err.Error()
	case errors.As(err, &validErr):
		return http.StatusBadRequest, err.Error()
	case errors.As(err, &apiErr), errors.As(err, &transportErr):
		return http.StatusBadGateway, err.Error()
	default:
		return http.StatusInternalServerError, "Unexpected error: " + err.Error()
	}
}

func (s *httpServer) withRequestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, requestID)
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		started := time.Now()
		next.ServeHTTP(rec, r)
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     rec.status,
			"elapsed_ms": time.Since(started).Milliseconds(),
		}).Info("http request")
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// flexString accepts a JSON string, number or null. Numbers keep their
// literal text so decimals are not rounded through float64.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	if data[0] != '-' && (data[0] < '0' || data[0] > '9') {
		return fmt.Errorf("expected string or number, got %s", string(data))
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("expected string or number, got %s", string(data))
	}
	*f = flexString(n.String())
	return nil
}

func limitRequestBody(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body must be a JSON object")
		}
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

func writeDecodeError(w http.ResponseWriter, err error) {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}
	writeError(w, http.StatusBadRequest, err.Error())
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	if len(allowed) > 0 {
		w.Header().Set("Allow", strings.Join(allowed, ", "))
	}
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"success": false, "error": message})
}
