package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	json "github.com/goccy/go-json"
	"github.com/urfave/cli/v2"

	"futures-bot/internal/config"
	"futures-bot/internal/core"
	"futures-bot/internal/exchange/binance"
	"futures-bot/internal/logging"
	"futures-bot/internal/orders"
	"futures-bot/internal/web"
)

var Version = "dev"

type app struct {
	in     io.Reader
	out    io.Writer
	errOut io.Writer

	cfg      config.Config
	logger   *logging.Logger
	exchange *binance.Client
	prompts  *prompter
}

// setupError marks failures to load configuration or build the logger.
type setupError struct {
	err error
}

func (e *setupError) Error() string { return e.err.Error() }

func (e *setupError) Unwrap() error { return e.err }

func main() {
	a := &app{in: os.Stdin, out: os.Stdout, errOut: os.Stderr}
	if err := a.cli().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, describeError(err))
		os.Exit(1)
	}
}

func (a *app) cli() *cli.App {
	symbolFlag := func() cli.Flag {
		return &cli.StringFlag{Name: "symbol", Aliases: []string{"s"}, Usage: "trading pair symbol, e.g. BTCUSDT"}
	}
	orderIDFlag := func() cli.Flag {
		return &cli.StringFlag{Name: "order-id", Usage: "exchange order id"}
	}
	return &cli.App{
		Name:      "futuresbot",
		Usage:     "Binance Futures Testnet trading bot",
		Version:   Version,
		Writer:    a.out,
		ErrWriter: a.errOut,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				EnvVars: []string{"FUTURESBOT_CONFIG"},
				Usage:   "optional YAML config path",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "console log level (debug, info, warn, error)",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "place-order",
				Usage: "place a MARKET, LIMIT, STOP_MARKET or STOP_LIMIT order",
				Flags: []cli.Flag{
					symbolFlag(),
					&cli.StringFlag{Name: "side", Usage: "BUY or SELL"},
					&cli.StringFlag{Name: "type", Aliases: []string{"t"}, Usage: "MARKET, LIMIT, STOP_MARKET or STOP_LIMIT"},
					&cli.StringFlag{Name: "quantity", Aliases: []string{"q"}, Usage: "base asset quantity, e.g. 0.01"},
					&cli.StringFlag{Name: "price", Usage: "limit price (LIMIT, STOP_LIMIT)"},
					&cli.StringFlag{Name: "stop-price", Usage: "trigger price (STOP_MARKET, STOP_LIMIT)"},
					&cli.StringFlag{Name: "tif", Usage: "time in force: GTC, IOC or FOK (default GTC)"},
				},
				Action: a.cmdPlaceOrder,
			},
			{
				Name:   "account-balance",
				Usage:  "show assets with a non-zero wallet balance",
				Action: a.cmdAccountBalance,
			},
			{
				Name:   "order-status",
				Usage:  "show the status of an order",
				Flags:  []cli.Flag{symbolFlag(), orderIDFlag()},
				Action: a.cmdOrderStatus,
			},
			{
				Name:   "cancel-order",
				Usage:  "cancel an open order",
				Flags:  []cli.Flag{symbolFlag(), orderIDFlag()},
				Action: a.cmdCancelOrder,
			},
			{
				Name:   "exchange-info",
				Usage:  "show exchange metadata for one symbol",
				Flags:  []cli.Flag{symbolFlag()},
				Action: a.cmdExchangeInfo,
			},
			{
				Name:   "interactive",
				Usage:  "guided menu for orders, balance and status",
				Action: a.cmdInteractive,
			},
			{
				Name:  "serve",
				Usage: "run the web dashboard",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "addr", Usage: "listen address, defaults to web.listen_addr or :$PORT"},
				},
				Action: a.cmdServe,
			},
		},
		Before: a.before,
		After: func(*cli.Context) error {
			return a.logger.Close()
		},
	}
}

func (a *app) before(c *cli.Context) error {
	if err := config.LoadDotEnv(); err != nil {
		return &setupError{err: err}
	}
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return &setupError{err: fmt.Errorf("load config: %w", err)}
	}
	if lvl := strings.TrimSpace(c.String("log-level")); lvl != "" {
		cfg.Log.Level = strings.ToLower(lvl)
	}
	logger, err := logging.New(cfg.Log, a.errOut)
	if err != nil {
		return &setupError{err: fmt.Errorf("log level: %w", err)}
	}
	a.cfg = cfg
	a.logger = logger
	return nil
}

// client builds the exchange client once per process.
func (a *app) client() (*binance.Client, error) {
	if a.exchange != nil {
		return a.exchange, nil
	}
	client, err := binance.NewClient(a.cfg.Exchange, a.logger)
	if err != nil {
		return nil, err
	}
	a.exchange = client
	return client, nil
}

func (a *app) manager() (*orders.Manager, error) {
	client, err := a.client()
	if err != nil {
		return nil, err
	}
	return orders.NewManager(client, a.logger), nil
}

func (a *app) cmdPlaceOrder(c *cli.Context) error {
	order, err := core.OrderRequest{
		Symbol:      c.String("symbol"),
		Side:        c.String("side"),
		Type:        c.String("type"),
		Quantity:    c.String("quantity"),
		Price:       c.String("price"),
		StopPrice:   c.String("stop-price"),
		TimeInForce: c.String("tif"),
	}.Validate()
	if err != nil {
		return err
	}
	printOrderSummary(a.out, order)
	return a.submitOrder(c.Context, order)
}

func (a *app) submitOrder(ctx context.Context, order core.Order) error {
	mgr, err := a.manager()
	if err != nil {
		return err
	}
	result, err := mgr.PlaceOrder(ctx, order)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, orders.FormatOrderResult(result))
	fmt.Fprintln(a.out)
	fmt.Fprintln(a.out, "Order placed successfully!")
	return nil
}

func (a *app) cmdAccountBalance(c *cli.Context) error {
	client, err := a.client()
	if err != nil {
		return err
	}
	balances, err := client.GetAccountBalance(c.Context)
	if err != nil {
		return err
	}
	printBalances(a.out, balances)
	return nil
}

func (a *app) cmdOrderStatus(c *cli.Context) error {
	symbol, orderID, err := orderRefFlags(c)
	if err != nil {
		return err
	}
	return a.showOrder(c.Context, symbol, orderID)
}

func (a *app) showOrder(ctx context.Context, symbol string, orderID int64) error {
	mgr, err := a.manager()
	if err != nil {
		return err
	}
	result, err := mgr.GetOrder(ctx, symbol, orderID)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, orders.FormatOrderResult(result))
	return nil
}

func (a *app) cmdCancelOrder(c *cli.Context) error {
	symbol, orderID, err := orderRefFlags(c)
	if err != nil {
		return err
	}
	mgr, err := a.manager()
	if err != nil {
		return err
	}
	result, err := mgr.CancelOrder(c.Context, symbol, orderID)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, orders.FormatOrderResult(result))
	fmt.Fprintln(a.out)
	fmt.Fprintln(a.out, "Order cancelled.")
	return nil
}

func (a *app) cmdExchangeInfo(c *cli.Context) error {
	symbol, err := core.ValidateSymbol(c.String("symbol"))
	if err != nil {
		return err
	}
	client, err := a.client()
	if err != nil {
		return err
	}
	info, err := client.GetExchangeInfo(c.Context, symbol)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s status=%s base=%s quote=%s\n", info.Symbol, info.Status, info.BaseAsset, info.QuoteAsset)
	fmt.Fprintf(a.out, "minQty=%s qtyStep=%s priceTick=%s minNotional=%s\n",
		info.Rules.MinQty, info.Rules.QtyStep, info.Rules.PriceTick, info.Rules.MinNotional)
	return printJSON(a.out, info.Raw)
}

func (a *app) cmdServe(c *cli.Context) error {
	client, err := a.client()
	if err != nil {
		return err
	}
	addr := strings.TrimSpace(c.String("addr"))
	if addr == "" {
		addr = a.cfg.Web.ListenAddr
	}
	handler := web.NewHandler(client, orders.NewManager(client, a.logger), a.logger)
	srv := web.NewServer(addr, handler)

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	a.logger.WithField("addr", addr).Info("web dashboard listening")
	fmt.Fprintf(a.out, "Web UI running at http://%s\n", displayAddr(addr))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	a.logger.Info("shutting down web dashboard")
	return srv.Shutdown(shutdownCtx)
}

func orderRefFlags(c *cli.Context) (string, int64, error) {
	symbol, err := core.ValidateSymbol(c.String("symbol"))
	if err != nil {
		return "", 0, err
	}
	orderID, err := core.ValidateOrderID(c.String("order-id"))
	if err != nil {
		return "", 0, err
	}
	return symbol, orderID, nil
}

// describeError prefixes err with the category shown to the user.
func describeError(err error) string {
	var (
		setupErr     *setupError
		cfgErr       *binance.ConfigurationError
		validErr     *core.ValidationError
		apiErr       *binance.APIError
		transportErr *binance.TransportError
	)
	switch {
	case errors.As(err, &setupErr), errors.As(err, &cfgErr):
		return "Configuration error: " + err.Error()
	case errors.As(err, &validErr):
		return "Validation error: " + err.Error()
	case errors.As(err, &apiErr), errors.As(err, &transportErr):
		return "Exchange error: " + err.Error()
	default:
		return "Unexpected error: " + err.Error()
	}
}

func printOrderSummary(w io.Writer, order core.Order) {
	border := strings.Repeat("=", 60)
	fmt.Fprintln(w, border)
	fmt.Fprintln(w, "           ORDER REQUEST SUMMARY")
	fmt.Fprintln(w, border)
	fmt.Fprintf(w, "  Symbol     : %s\n", order.Symbol)
	fmt.Fprintf(w, "  Side       : %s\n", order.Side)
	fmt.Fprintf(w, "  Type       : %s\n", order.Type)
	fmt.Fprintf(w, "  Quantity   : %s\n", order.Quantity)
	price := "N/A"
	if order.Price.Valid {
		price = order.Price.Decimal.String()
	}
	fmt.Fprintf(w, "  Price      : %s\n", price)
	if order.StopPrice.Valid {
		fmt.Fprintf(w, "  Stop Price : %s\n", order.StopPrice.Decimal)
	}
	if order.Type.NeedsPrice() {
		fmt.Fprintf(w, "  TIF        : %s\n", order.TimeInForce)
	}
	fmt.Fprintln(w, border)
	fmt.Fprintln(w)
}

func printBalances(w io.Writer, balances []binance.BalanceEntry) {
	if len(balances) == 0 {
		fmt.Fprintln(w, "No assets with a non-zero balance found.")
		return
	}
	border := strings.Repeat("=", 60)
	fmt.Fprintln(w, border)
	fmt.Fprintln(w, "           ACCOUNT BALANCES")
	fmt.Fprintln(w, border)
	fmt.Fprintf(w, "  %-10s %20s %20s\n", "Asset", "Wallet Balance", "Available Balance")
	fmt.Fprintln(w, strings.Repeat("-", 60))
	for _, b := range balances {
		fmt.Fprintf(w, "  %-10s %20s %20s\n", b.Asset, fixed8(b.WalletBalance), fixed8(b.AvailableBalance))
	}
	fmt.Fprintln(w, border)
}

func fixed8(raw binance.Amount) string {
	d, err := raw.Decimal()
	if err != nil {
		return string(raw)
	}
	return d.StringFixed(8)
}

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func displayAddr(addr string) string {
	if strings.HasPrefix(addr, ":") {
		return "localhost" + addr
	}
	return addr
}
