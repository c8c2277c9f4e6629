package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"futures-bot/internal/config"
	"futures-bot/internal/core"
	"futures-bot/internal/exchange/binance"
	"futures-bot/internal/logging"
	"futures-bot/internal/orders"
)

type checkStatus string

const (
	statusPass checkStatus = "PASS"
	statusFail checkStatus = "FAIL"
)

type checkResult struct {
	Name       string      `json:"name"`
	Status     checkStatus `json:"status"`
	DurationMs int64       `json:"duration_ms"`
	Detail     string      `json:"detail,omitempty"`
	Error      string      `json:"error,omitempty"`
}

type report struct {
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	BaseURL    string        `json:"base_url"`
	Symbol     string        `json:"symbol"`
	Checks     []checkResult `json:"checks"`
}

type selectedChecks struct {
	exchangeInfo bool
	balance      bool
	lifecycle    bool
}

type options struct {
	configPath  string
	symbol      string
	timeoutSec  int
	outJSONPath string
	checkFlag   string
	allowOrders bool
	price       string
	qty         string
}

func main() {
	var opts options
	flag.StringVar(&opts.configPath, "config", "", "optional config yaml path")
	flag.StringVar(&opts.symbol, "symbol", "BTCUSDT", "symbol used by the checks")
	flag.IntVar(&opts.timeoutSec, "timeout-sec", 60, "total timeout seconds")
	flag.StringVar(&opts.outJSONPath, "out-json", "", "optional output report path")
	flag.StringVar(&opts.checkFlag, "check", "default", "checks to run: default | all | comma list (exchange_info,account_balance,order_lifecycle)")
	flag.BoolVar(&opts.allowOrders, "allow-orders", false, "allow the order lifecycle check to place and cancel a LIMIT order")
	flag.StringVar(&opts.price, "price", "", "limit price for the order lifecycle check, far from market")
	flag.StringVar(&opts.qty, "qty", "", "quantity for the order lifecycle check")
	flag.Parse()

	if err := config.LoadDotEnv(); err != nil {
		fatal(err.Error())
	}
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fatal(err.Error())
	}
	checks, err := parseCheckFlag(opts.checkFlag)
	if err != nil {
		fatal(err.Error())
	}
	if checks.lifecycle && !opts.allowOrders {
		fatal("order_lifecycle places a real testnet order; set -allow-orders=true to continue")
	}
	if opts.timeoutSec < 10 {
		opts.timeoutSec = 10
	}

	logger, err := logging.New(cfg.Log, os.Stderr)
	if err != nil {
		fatal(err.Error())
	}
	defer logger.Close()

	client, err := binance.NewClient(cfg.Exchange, logger)
	if err != nil {
		fatal(err.Error())
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(opts.timeoutSec)*time.Second)
	defer cancel()

	r := &runner{
		out: os.Stdout,
		report: report{
			StartedAt: time.Now().UTC(),
			BaseURL:   client.BaseURL(),
			Symbol:    strings.ToUpper(opts.symbol),
		},
	}
	runChecks(ctx, r, checks, opts, client, orders.NewManager(client, logger))
	r.report.FinishedAt = time.Now().UTC()
	printSummary(r.out, r.report)

	if opts.outJSONPath != "" {
		if err := writeReport(opts.outJSONPath, r.report); err != nil {
			fatal(err.Error())
		}
	}
	if r.failed() {
		os.Exit(1)
	}
}

type exchangeClient interface {
	GetExchangeInfo(ctx context.Context, symbol string) (binance.SymbolInfo, error)
	GetAccountBalance(ctx context.Context) ([]binance.BalanceEntry, error)
}

type orderClient interface {
	PlaceOrder(ctx context.Context, order core.Order) (orders.Result, error)
	GetOrder(ctx context.Context, symbol string, orderID int64) (orders.Result, error)
	CancelOrder(ctx context.Context, symbol string, orderID int64) (orders.Result, error)
}

func runChecks(ctx context.Context, r *runner, checks selectedChecks, opts options, client exchangeClient, mgr orderClient) {
	if checks.exchangeInfo {
		r.run("exchange_info", func() (string, error) {
			info, err := client.GetExchangeInfo(ctx, opts.symbol)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("symbol=%s status=%s minQty=%s qtyStep=%s tick=%s minNotional=%s",
				info.Symbol, info.Status, info.Rules.MinQty, info.Rules.QtyStep, info.Rules.PriceTick, info.Rules.MinNotional), nil
		})
	}

	if checks.balance {
		r.run("account_balance", func() (string, error) {
			balances, err := client.GetAccountBalance(ctx)
			if err != nil {
				return "", err
			}
			parts := make([]string, 0, len(balances))
			for _, b := range balances {
				parts = append(parts, b.Asset+"="+string(b.WalletBalance))
			}
			return fmt.Sprintf("assets=%d %s", len(balances), strings.Join(parts, " ")), nil
		})
	}

	if checks.lifecycle {
		r.run("order_lifecycle_place_query_cancel", func() (string, error) {
			order, err := core.OrderRequest{
				Symbol:   opts.symbol,
				Side:     string(core.Buy),
				Type:     string(core.Limit),
				Quantity: opts.qty,
				Price:    opts.price,
			}.Validate()
			if err != nil {
				return "", err
			}
			placed, err := mgr.PlaceOrder(ctx, order)
			if err != nil {
				return "", fmt.Errorf("place: %w", err)
			}
			orderID, err := core.ValidateOrderID(fmt.Sprint(placed["orderId"]))
			if err != nil {
				return "", fmt.Errorf("place returned no usable orderId: %w", err)
			}
			queried, err := mgr.GetOrder(ctx, order.Symbol, orderID)
			if err != nil {
				return "", fmt.Errorf("query order %d: %w", orderID, err)
			}
			canceled, err := mgr.CancelOrder(ctx, order.Symbol, orderID)
			if err != nil {
				return "", fmt.Errorf("cancel order %d: %w", orderID, err)
			}
			if status := fmt.Sprint(canceled["status"]); status != string(core.OrderCanceled) {
				return "", fmt.Errorf("cancel order %d: status=%s, want %s", orderID, status, core.OrderCanceled)
			}
			return fmt.Sprintf("orderId=%d queried=%v canceled=%v", orderID, queried["status"], canceled["status"]), nil
		})
	}
}

type runner struct {
	out    io.Writer
	report report
}

func (r *runner) run(name string, fn func() (string, error)) {
	start := time.Now()
	detail, err := fn()
	cr := checkResult{
		Name:       name,
		DurationMs: time.Since(start).Milliseconds(),
		Detail:     detail,
	}
	if err != nil {
		cr.Status = statusFail
		cr.Error = err.Error()
	} else {
		cr.Status = statusPass
	}
	r.report.Checks = append(r.report.Checks, cr)
	if cr.Status == statusPass {
		fmt.Fprintf(r.out, "[PASS] %s (%dms)", name, cr.DurationMs)
		if cr.Detail != "" {
			fmt.Fprintf(r.out, " - %s", cr.Detail)
		}
		fmt.Fprintln(r.out)
	} else {
		fmt.Fprintf(r.out, "[FAIL] %s (%dms) - %s\n", name, cr.DurationMs, cr.Error)
	}
}

func (r *runner) failed() bool {
	for _, c := range r.report.Checks {
		if c.Status == statusFail {
			return true
		}
	}
	return false
}

func parseCheckFlag(raw string) (selectedChecks, error) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	switch raw {
	case "", "default":
		return selectedChecks{exchangeInfo: true, balance: true}, nil
	case "all":
		return selectedChecks{exchangeInfo: true, balance: true, lifecycle: true}, nil
	}
	var out selectedChecks
	for _, part := range strings.Split(raw, ",") {
		switch strings.TrimSpace(part) {
		case "exchange_info":
			out.exchangeInfo = true
		case "account_balance":
			out.balance = true
		case "order_lifecycle":
			out.lifecycle = true
		case "":
		default:
			return selectedChecks{}, fmt.Errorf("unknown check %q", strings.TrimSpace(part))
		}
	}
	if out == (selectedChecks{}) {
		return selectedChecks{}, errors.New("no checks selected")
	}
	return out, nil
}

func printSummary(w io.Writer, r report) {
	pass := 0
	fail := 0
	for _, c := range r.Checks {
		if c.Status == statusPass {
			pass++
		} else {
			fail++
		}
	}
	fmt.Fprintf(w, "\nsummary base=%s symbol=%s pass=%d fail=%d duration=%s\n",
		r.BaseURL,
		r.Symbol,
		pass,
		fail,
		r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond).String(),
	)
}

func writeReport(path string, r report) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func fatal(msg string) {
	fmt.Fprintln(os.Stderr, strings.TrimSpace(msg))
	os.Exit(1)
}
