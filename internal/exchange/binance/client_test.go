package binance

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"

	"futures-bot/internal/core"
)

const (
	testKey    = "test-key"
	testSecret = "test-secret"
)

var fixedNow = time.UnixMilli(1700000000000)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *logtest.Hook) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	client, err := NewClientWithOptions(Options{
		APIKey:      testKey,
		APISecret:   testSecret,
		RestBaseURL: srv.URL,
	}, logger)
	if err != nil {
		t.Fatalf("NewClientWithOptions() error = %v", err)
	}
	client.now = func() time.Time { return fixedNow }
	return client, hook
}

func TestSignDeterministic(t *testing.T) {
	payload := "symbol=BTCUSDT&timestamp=1700000000000"
	first := sign(testSecret, payload)
	if got := sign(testSecret, payload); got != first {
		t.Fatalf("sign() = %s, want %s", got, first)
	}
	if len(first) != 64 {
		t.Fatalf("sign() len = %d, want 64", len(first))
	}
	if got := sign(testSecret, payload+"0"); got == first {
		t.Fatalf("sign() unchanged after payload change")
	}
	if got := sign("other", payload); got == first {
		t.Fatalf("sign() unchanged after secret change")
	}
}

func TestSignKnownVector(t *testing.T) {
	// Published example from the Binance API documentation.
	secret := "NhqPtmdSJYdKjVHjA7PZj4Mge3R5YNiP1e3UZjInClVN65XAbvqqM6A7H5fATj0j"
	payload := "symbol=LTCBTC&side=BUY&type=LIMIT&timeInForce=GTC&quantity=1&price=0.1&recvWindow=5000&timestamp=1499827319559"
	want := "c8db56825ae71d6d79447849e617115f4a920fa2acdcab2b053c4b2838bd6b71"
	if got := sign(secret, payload); got != want {
		t.Fatalf("sign() = %s, want %s", got, want)
	}
}

func TestNewClientRequiresCredentials(t *testing.T) {
	cases := []Options{
		{APISecret: testSecret},
		{APIKey: testKey},
		{APIKey: "  ", APISecret: testSecret},
	}
	for _, opts := range cases {
		_, err := NewClientWithOptions(opts, nil)
		var cfgErr *ConfigurationError
		if !errors.As(err, &cfgErr) {
			t.Fatalf("NewClientWithOptions(%+v) error = %v, want ConfigurationError", opts, err)
		}
	}
}

func TestNewClientDefaults(t *testing.T) {
	client, err := NewClientWithOptions(Options{APIKey: testKey, APISecret: testSecret}, nil)
	if err != nil {
		t.Fatalf("NewClientWithOptions() error = %v", err)
	}
	if client.BaseURL() != DefaultBaseURL {
		t.Fatalf("BaseURL() = %q, want %q", client.BaseURL(), DefaultBaseURL)
	}
	if client.httpClient.Timeout != 10*time.Second {
		t.Fatalf("timeout = %v, want 10s", client.httpClient.Timeout)
	}
}

func TestSignedGetAppendsSignatureLast(t *testing.T) {
	var rawQuery, apiKey string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		rawQuery = r.URL.RawQuery
		apiKey = r.Header.Get("X-MBX-APIKEY")
		_, _ = io.WriteString(w, `{"orderId":12345,"status":"NEW"}`)
	})

	params := url.Values{}
	params.Set("symbol", "BTCUSDT")
	params.Set("orderId", "12345")
	out, err := client.Get(context.Background(), "/fapi/v1/order", params, true)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if apiKey != testKey {
		t.Fatalf("X-MBX-APIKEY = %q, want %q", apiKey, testKey)
	}
	idx := strings.LastIndex(rawQuery, "&signature=")
	if idx < 0 {
		t.Fatalf("query %q has no signature", rawQuery)
	}
	signed, sig := rawQuery[:idx], rawQuery[idx+len("&signature="):]
	wantSigned := "orderId=12345&symbol=BTCUSDT&timestamp=1700000000000"
	if signed != wantSigned {
		t.Fatalf("signed payload = %q, want %q", signed, wantSigned)
	}
	if sig != sign(testSecret, signed) {
		t.Fatalf("signature = %s, want %s", sig, sign(testSecret, signed))
	}
	if _, exists := params["timestamp"]; exists {
		t.Fatalf("caller params mutated: %v", params)
	}
	if got, ok := out["orderId"].(json.Number); !ok || got.String() != "12345" {
		t.Fatalf("orderId = %#v, want json.Number 12345", out["orderId"])
	}
}

func TestSignedPostUsesFormBody(t *testing.T) {
	var body, contentType, rawQuery string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		raw, _ := io.ReadAll(r.Body)
		body = string(raw)
		contentType = r.Header.Get("Content-Type")
		rawQuery = r.URL.RawQuery
		_, _ = io.WriteString(w, `{"orderId":1}`)
	})

	params := url.Values{}
	params.Set("symbol", "BTCUSDT")
	params.Set("side", "BUY")
	if _, err := client.Post(context.Background(), "/fapi/v1/order", params, true); err != nil {
		t.Fatalf("Post() error = %v", err)
	}
	if rawQuery != "" {
		t.Fatalf("query = %q, want empty", rawQuery)
	}
	if contentType != "application/x-www-form-urlencoded" {
		t.Fatalf("Content-Type = %q", contentType)
	}
	wantSigned := "side=BUY&symbol=BTCUSDT&timestamp=1700000000000"
	want := wantSigned + "&signature=" + sign(testSecret, wantSigned)
	if body != want {
		t.Fatalf("body = %q, want %q", body, want)
	}
}

func TestUnsignedRequestHasNoSignature(t *testing.T) {
	var rawQuery, apiKey string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		rawQuery = r.URL.RawQuery
		apiKey = r.Header.Get("X-MBX-APIKEY")
		_, _ = io.WriteString(w, `{}`)
	})
	if _, err := client.Get(context.Background(), "/fapi/v1/ping", nil, false); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if rawQuery != "" {
		t.Fatalf("query = %q, want empty", rawQuery)
	}
	if apiKey != testKey {
		t.Fatalf("X-MBX-APIKEY = %q, want %q", apiKey, testKey)
	}
}

func TestDeleteSendsQuery(t *testing.T) {
	var method, symbol string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		symbol = r.URL.Query().Get("symbol")
		_, _ = io.WriteString(w, `{"status":"CANCELED"}`)
	})
	params := url.Values{"symbol": {"BTCUSDT"}, "orderId": {"7"}}
	out, err := client.Delete(context.Background(), "/fapi/v1/order", params, true)
	if err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if method != http.MethodDelete || symbol != "BTCUSDT" {
		t.Fatalf("request = %s symbol=%s, want DELETE BTCUSDT", method, symbol)
	}
	if out["status"] != "CANCELED" {
		t.Fatalf("status = %v, want CANCELED", out["status"])
	}
}

func TestAPIErrorFromBody(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"code":-1121,"msg":"Invalid symbol."}`)
	})
	_, err := client.Get(context.Background(), "/fapi/v1/order", url.Values{"symbol": {"NOPE"}}, true)
	apiErr, ok := AsAPIError(err)
	if !ok {
		t.Fatalf("Get() error = %T %v, want APIError", err, err)
	}
	if apiErr.Status != http.StatusBadRequest || apiErr.Code != -1121 || !apiErr.HasCode {
		t.Fatalf("apiErr = %+v", apiErr)
	}
	if !strings.Contains(err.Error(), "-1121") || !strings.Contains(err.Error(), "Invalid symbol.") {
		t.Fatalf("Error() = %q, want code and message", err.Error())
	}
	if !errors.Is(err, core.ErrInvalidSymbol) {
		t.Fatalf("errors.Is(ErrInvalidSymbol) = false for %v", err)
	}
	if !IsAPIErrorCode(err, -1121) {
		t.Fatalf("IsAPIErrorCode(-1121) = false")
	}
}

func TestAPIErrorNonJSONBody(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = io.WriteString(w, "upstream unavailable\n")
	})
	_, err := client.Get(context.Background(), "/fapi/v1/exchangeInfo", nil, false)
	apiErr, ok := AsAPIError(err)
	if !ok {
		t.Fatalf("Get() error = %v, want APIError", err)
	}
	if apiErr.HasCode || apiErr.CodeString() != "N/A" {
		t.Fatalf("code = %s, want N/A", apiErr.CodeString())
	}
	if apiErr.Msg != "upstream unavailable" {
		t.Fatalf("Msg = %q, want raw body", apiErr.Msg)
	}
}

func TestTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	base := srv.URL
	srv.Close()

	client, err := NewClientWithOptions(Options{APIKey: testKey, APISecret: testSecret, RestBaseURL: base}, nil)
	if err != nil {
		t.Fatalf("NewClientWithOptions() error = %v", err)
	}
	_, err = client.Get(context.Background(), "/fapi/v1/exchangeInfo", nil, false)
	var transportErr *TransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("Get() error = %T %v, want TransportError", err, err)
	}
	if _, ok := AsAPIError(err); ok {
		t.Fatalf("transport failure classified as APIError")
	}
}

func TestTransportErrorRedactsSignature(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	base := srv.URL
	srv.Close()

	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	client, err := NewClientWithOptions(Options{APIKey: testKey, APISecret: testSecret, RestBaseURL: base}, logger)
	if err != nil {
		t.Fatalf("NewClientWithOptions() error = %v", err)
	}
	client.now = func() time.Time { return fixedNow }

	params := url.Values{}
	params.Set("symbol", "BTCUSDT")
	params.Set("orderId", "42")
	_, err = client.Get(context.Background(), "/fapi/v1/order", params, true)
	var transportErr *TransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("Get() error = %T %v, want TransportError", err, err)
	}

	signature := sign(testSecret, "orderId=42&symbol=BTCUSDT&timestamp=1700000000000")
	if strings.Contains(err.Error(), signature) {
		t.Fatalf("Get() error = %q, leaks signature", err.Error())
	}
	if !strings.Contains(err.Error(), "&signature=***") {
		t.Fatalf("Get() error = %q, want redacted URL", err.Error())
	}
	var sawFailure bool
	for _, entry := range hook.AllEntries() {
		line, lineErr := entry.String()
		if lineErr != nil {
			t.Fatalf("entry.String() error = %v", lineErr)
		}
		if strings.Contains(line, signature) {
			t.Fatalf("signature leaked into log: %q", line)
		}
		if entry.Message == "request failed" {
			sawFailure = true
		}
	}
	if !sawFailure {
		t.Fatalf("no request failed log entry")
	}
}

func TestDebugLogRedactsSignature(t *testing.T) {
	client, hook := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{}`)
	})
	if _, err := client.Get(context.Background(), endpointAccount, nil, true); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	var sawRequest bool
	for _, entry := range hook.AllEntries() {
		params, _ := entry.Data["params"].(string)
		if entry.Message == "request" {
			sawRequest = true
			if !strings.HasSuffix(params, "&signature=***") {
				t.Fatalf("logged params = %q, want redacted signature", params)
			}
		}
		if strings.Contains(params, sign(testSecret, "timestamp=1700000000000")) {
			t.Fatalf("signature leaked into log: %q", params)
		}
	}
	if !sawRequest {
		t.Fatalf("no request log entry")
	}
}

func TestGetExchangeInfo(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != endpointExchangeInfo {
			t.Errorf("path = %s", r.URL.Path)
		}
		_, _ = io.WriteString(w, `{"symbols":[
			{"symbol":"ETHUSDT","status":"TRADING","baseAsset":"ETH","quoteAsset":"USDT","filters":[]},
			{"symbol":"BTCUSDT","status":"TRADING","baseAsset":"BTC","quoteAsset":"USDT","pricePrecision":2,"filters":[
				{"filterType":"PRICE_FILTER","tickSize":"0.10"},
				{"filterType":"LOT_SIZE","minQty":"0.001","stepSize":"0.001"},
				{"filterType":"MIN_NOTIONAL","notional":"100"}
			]}
		]}`)
	})

	info, err := client.GetExchangeInfo(context.Background(), "btcusdt")
	if err != nil {
		t.Fatalf("GetExchangeInfo() error = %v", err)
	}
	if info.Symbol != "BTCUSDT" || info.BaseAsset != "BTC" || info.QuoteAsset != "USDT" {
		t.Fatalf("info = %+v", info)
	}
	if !info.Rules.PriceTick.Equal(decimal.RequireFromString("0.1")) {
		t.Fatalf("PriceTick = %s, want 0.1", info.Rules.PriceTick)
	}
	if !info.Rules.QtyStep.Equal(decimal.RequireFromString("0.001")) {
		t.Fatalf("QtyStep = %s, want 0.001", info.Rules.QtyStep)
	}
	if !info.Rules.MinNotional.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("MinNotional = %s, want 100", info.Rules.MinNotional)
	}
	if got, ok := info.Raw["pricePrecision"].(json.Number); !ok || got.String() != "2" {
		t.Fatalf("Raw pricePrecision = %#v", info.Raw["pricePrecision"])
	}

	_, err = client.GetExchangeInfo(context.Background(), "XRPUSDT")
	var notFound *SymbolNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("GetExchangeInfo(XRPUSDT) error = %v, want SymbolNotFoundError", err)
	}
	if !errors.Is(err, core.ErrInvalidSymbol) {
		t.Fatalf("errors.Is(ErrInvalidSymbol) = false")
	}
}

func TestGetAccountBalanceFiltersZero(t *testing.T) {
	var signed bool
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		signed = r.URL.Query().Get("signature") != ""
		_, _ = io.WriteString(w, `{"assets":[
			{"asset":"USDT","walletBalance":"0","availableBalance":"0"},
			{"asset":"BNB","walletBalance":"12.5","availableBalance":"12.5","crossWalletBalance":"12.5"},
			{"asset":"BTC","walletBalance":"0.00000000"}
		]}`)
	})
	got, err := client.GetAccountBalance(context.Background())
	if err != nil {
		t.Fatalf("GetAccountBalance() error = %v", err)
	}
	if !signed {
		t.Fatalf("account request was not signed")
	}
	if len(got) != 1 || got[0].Asset != "BNB" || got[0].WalletBalance != "12.5" {
		t.Fatalf("GetAccountBalance() = %+v, want only BNB", got)
	}
}

func TestGetAccountBalanceAcceptsNumbers(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"assets":[
			{"asset":"USDT","walletBalance":0,"availableBalance":0},
			{"asset":"BNB","walletBalance":12.5,"availableBalance":"10","crossWalletBalance":null}
		]}`)
	})
	got, err := client.GetAccountBalance(context.Background())
	if err != nil {
		t.Fatalf("GetAccountBalance() error = %v", err)
	}
	if len(got) != 1 || got[0].Asset != "BNB" || got[0].WalletBalance != "12.5" || got[0].AvailableBalance != "10" {
		t.Fatalf("GetAccountBalance() = %+v, want only BNB", got)
	}
}

func TestAmountRejectsNonNumeric(t *testing.T) {
	var entry BalanceEntry
	if err := json.Unmarshal([]byte(`{"asset":"BNB","walletBalance":true}`), &entry); err == nil {
		t.Fatalf("Unmarshal() error = nil, want error for boolean amount")
	}
}

func TestGetExchangeInfoReportsDecodeError(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"symbols":[
			{"symbol":["BTCUSDT"]},
			{"symbol":"ETHUSDT","status":"TRADING","filters":[]}
		]}`)
	})
	_, err := client.GetExchangeInfo(context.Background(), "BTCUSDT")
	if err == nil {
		t.Fatalf("GetExchangeInfo() error = nil, want decode error")
	}
	var notFound *SymbolNotFoundError
	if errors.As(err, &notFound) {
		t.Fatalf("GetExchangeInfo() error = %v, want decode error, not SymbolNotFoundError", err)
	}
}
