package binance

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/sirupsen/logrus"

	"futures-bot/internal/config"
)

const DefaultBaseURL = config.DefaultRestBaseURL

const (
	endpointExchangeInfo = "/fapi/v1/exchangeInfo"
	endpointAccount      = "/fapi/v2/account"
)

// Client signs and sends REST calls to the futures API. It holds no state
// besides the credentials and the HTTP connection pool, so one value may be
// shared between goroutines.
type Client struct {
	apiKey     string
	apiSecret  string
	baseURL    string
	httpClient *http.Client
	log        logrus.FieldLogger
	metrics    *clientMetrics
	now        func() time.Time
}

type Options struct {
	APIKey         string
	APISecret      string
	RestBaseURL    string
	HTTPTimeoutSec int64
}

func NewClient(cfg config.ExchangeConfig, logger logrus.FieldLogger) (*Client, error) {
	return NewClientWithOptions(Options{
		APIKey:         cfg.APIKey,
		APISecret:      cfg.APISecret,
		RestBaseURL:    cfg.RestBaseURL,
		HTTPTimeoutSec: cfg.HTTPTimeoutSec,
	}, logger)
}

func NewClientWithOptions(opts Options, logger logrus.FieldLogger) (*Client, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, &ConfigurationError{Field: "api_key", Msg: "is required (set BINANCE_API_KEY)"}
	}
	if strings.TrimSpace(opts.APISecret) == "" {
		return nil, &ConfigurationError{Field: "api_secret", Msg: "is required (set BINANCE_API_SECRET)"}
	}
	timeout := 10 * time.Second
	if opts.HTTPTimeoutSec > 0 {
		timeout = time.Duration(opts.HTTPTimeoutSec) * time.Second
	}
	baseURL := strings.TrimRight(strings.TrimSpace(opts.RestBaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if logger == nil {
		discard := logrus.New()
		discard.SetOutput(io.Discard)
		logger = discard
	}
	return &Client{
		apiKey:     opts.APIKey,
		apiSecret:  opts.APISecret,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		log:        logger.WithField("component", "binance"),
		metrics:    newClientMetrics(),
		now:        time.Now,
	}, nil
}

func (c *Client) Name() string { return "binance-futures" }

func (c *Client) BaseURL() string { return c.baseURL }

func (c *Client) Get(ctx context.Context, endpoint string, params url.Values, signed bool) (map[string]any, error) {
	return c.call(ctx, http.MethodGet, endpoint, params, signed)
}

func (c *Client) Post(ctx context.Context, endpoint string, params url.Values, signed bool) (map[string]any, error) {
	return c.call(ctx, http.MethodPost, endpoint, params, signed)
}

func (c *Client) Delete(ctx context.Context, endpoint string, params url.Values, signed bool) (map[string]any, error) {
	return c.call(ctx, http.MethodDelete, endpoint, params, signed)
}

func (c *Client) call(ctx context.Context, method, endpoint string, params url.Values, signed bool) (map[string]any, error) {
	body, err := c.doRequest(ctx, method, endpoint, params, signed)
	if err != nil {
		return nil, err
	}
	out, err := decodeObject(body)
	if err != nil {
		return nil, fmt.Errorf("decode %s %s response: %w", method, endpoint, err)
	}
	return out, nil
}

// GetExchangeInfo fetches the full exchange metadata and returns the entry
// for symbol, matched case-insensitively.
func (c *Client) GetExchangeInfo(ctx context.Context, symbol string) (SymbolInfo, error) {
	body, err := c.doRequest(ctx, http.MethodGet, endpointExchangeInfo, nil, false)
	if err != nil {
		return SymbolInfo{}, err
	}
	var resp exchangeInfoResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return SymbolInfo{}, fmt.Errorf("decode exchange info: %w", err)
	}
	want := strings.TrimSpace(symbol)
	for i, rawSymbol := range resp.Symbols {
		var name struct {
			Symbol string `json:"symbol"`
		}
		if err := json.Unmarshal(rawSymbol, &name); err != nil {
			return SymbolInfo{}, fmt.Errorf("decode exchange info symbol %d: %w", i, err)
		}
		if !strings.EqualFold(name.Symbol, want) {
			continue
		}
		var entry symbolInfoResponse
		if err := json.Unmarshal(rawSymbol, &entry); err != nil {
			return SymbolInfo{}, fmt.Errorf("decode symbol %s: %w", name.Symbol, err)
		}
		raw, err := decodeObject(rawSymbol)
		if err != nil {
			return SymbolInfo{}, fmt.Errorf("decode symbol %s: %w", entry.Symbol, err)
		}
		return parseSymbolInfo(entry, raw), nil
	}
	return SymbolInfo{}, &SymbolNotFoundError{Symbol: symbol}
}

// GetAccountBalance returns the assets whose wallet balance is strictly
// positive, in the order the exchange reported them.
func (c *Client) GetAccountBalance(ctx context.Context) ([]BalanceEntry, error) {
	body, err := c.doRequest(ctx, http.MethodGet, endpointAccount, nil, true)
	if err != nil {
		return nil, err
	}
	var resp accountResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode account: %w", err)
	}
	out := make([]BalanceEntry, 0, len(resp.Assets))
	for _, asset := range resp.Assets {
		wallet, err := asset.WalletBalance.Decimal()
		if err != nil || !wallet.IsPositive() {
			continue
		}
		out = append(out, asset)
	}
	return out, nil
}

func (c *Client) doRequest(ctx context.Context, method, endpoint string, params url.Values, signed bool) ([]byte, error) {
	values := url.Values{}
	for k, v := range params {
		values[k] = append([]string(nil), v...)
	}
	payload := values.Encode()
	logged := payload
	if signed {
		values.Set("timestamp", strconv.FormatInt(c.now().UnixMilli(), 10))
		payload = values.Encode()
		signature := sign(c.apiSecret, payload)
		logged = payload + "&signature=***"
		payload += "&signature=" + signature
	}

	var (
		req *http.Request
		err error
	)
	urlStr := c.baseURL + endpoint
	if method == http.MethodGet || method == http.MethodDelete {
		if payload != "" {
			urlStr += "?" + payload
		}
		req, err = http.NewRequestWithContext(ctx, method, urlStr, nil)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, urlStr, strings.NewReader(payload))
	}
	if err != nil {
		return nil, err
	}
	if method != http.MethodGet && method != http.MethodDelete {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	req.Header.Set("X-MBX-APIKEY", c.apiKey)

	reqLog := c.log.WithFields(logrus.Fields{"method": method, "endpoint": endpoint})
	reqLog.WithField("params", logged).Debug("request")

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.record(ctx, method, endpoint, "transport_error", time.Since(started))
		err = redactURLError(err, urlStr, c.baseURL+endpoint, logged)
		reqLog.WithError(err).Debug("request failed")
		return nil, &TransportError{Method: method, Endpoint: endpoint, Err: err}
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.metrics.record(ctx, method, endpoint, "transport_error", time.Since(started))
		return nil, &TransportError{Method: method, Endpoint: endpoint, Err: err}
	}
	reqLog.WithFields(logrus.Fields{"status": resp.StatusCode, "body": string(body)}).Debug("response")
	if resp.StatusCode != http.StatusOK {
		c.metrics.record(ctx, method, endpoint, "api_error", time.Since(started))
		return nil, parseAPIError(resp.StatusCode, body)
	}
	c.metrics.record(ctx, method, endpoint, "ok", time.Since(started))
	return body, nil
}

func parseAPIError(status int, body []byte) *APIError {
	out := &APIError{Status: status, Msg: strings.TrimSpace(string(body))}
	var payload apiError
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Code != nil {
			out.Code = *payload.Code
			out.HasCode = true
		}
		if payload.Msg != nil {
			out.Msg = *payload.Msg
		}
	}
	return classifyAPIError(out)
}

// redactURLError rewrites the URL carried by a *url.Error so that the
// signature never reaches logs or users.
func redactURLError(err error, sentURL, baseURL, logged string) error {
	var urlErr *url.Error
	if !errors.As(err, &urlErr) {
		return err
	}
	redacted := baseURL
	if strings.Contains(sentURL, "?") && logged != "" {
		redacted += "?" + logged
	}
	return &url.Error{Op: urlErr.Op, URL: redacted, Err: urlErr.Err}
}

func sign(secret, payload string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

func decodeObject(body []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var out map[string]any
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	if out == nil {
		out = map[string]any{}
	}
	return out, nil
}
