package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/urfave/cli/v2"

	"futures-bot/internal/core"
	"futures-bot/internal/exchange/binance"
)

type prompter struct {
	scanner *bufio.Scanner
	out     io.Writer
}

func (a *app) prompter() *prompter {
	if a.prompts == nil {
		a.prompts = &prompter{scanner: bufio.NewScanner(a.in), out: a.out}
	}
	return a.prompts
}

// ask returns the trimmed answer, or def when the answer is blank. It
// returns io.EOF once input is exhausted.
func (p *prompter) ask(label, def string) (string, error) {
	if def != "" {
		fmt.Fprintf(p.out, "  %s [%s]: ", label, def)
	} else {
		fmt.Fprintf(p.out, "  %s: ", label)
	}
	if !p.scanner.Scan() {
		if err := p.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	answer := strings.TrimSpace(p.scanner.Text())
	if answer == "" {
		answer = def
	}
	return answer, nil
}

func askValid[T any](p *prompter, label, def string, check func(string) (T, error)) (T, error) {
	for {
		raw, err := p.ask(label, def)
		if err != nil {
			var zero T
			return zero, err
		}
		v, err := check(raw)
		if err == nil {
			return v, nil
		}
		fmt.Fprintf(p.out, "  ! %v\n\n", err)
	}
}

func (p *prompter) confirm(label string) (bool, error) {
	answer, err := p.ask(label+" [y/N]", "")
	if err != nil {
		return false, err
	}
	switch strings.ToLower(answer) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}

func menuChoice(raw string) (string, error) {
	switch raw {
	case "1", "2", "3", "4":
		return raw, nil
	}
	return "", fmt.Errorf("%q is not one of 1, 2, 3, 4", raw)
}

func (a *app) cmdInteractive(c *cli.Context) error {
	p := a.prompter()
	border := strings.Repeat("=", 60)
	fmt.Fprintln(a.out)
	fmt.Fprintln(a.out, border)
	fmt.Fprintln(a.out, "   BINANCE FUTURES TESTNET - INTERACTIVE MODE")
	fmt.Fprintln(a.out, border)

	for {
		fmt.Fprintln(a.out)
		fmt.Fprintln(a.out, "  What would you like to do?")
		fmt.Fprintln(a.out)
		fmt.Fprintln(a.out, "    [1] Place an order")
		fmt.Fprintln(a.out, "    [2] Check account balance")
		fmt.Fprintln(a.out, "    [3] Check order status")
		fmt.Fprintln(a.out, "    [4] Exit")
		fmt.Fprintln(a.out)

		choice, err := askValid(p, "Enter choice", "", menuChoice)
		if err != nil {
			return a.endSession(err)
		}
		fmt.Fprintln(a.out)

		var opErr error
		switch choice {
		case "1":
			opErr = a.interactiveOrder(c.Context, p)
		case "2":
			opErr = a.cmdAccountBalance(c)
		case "3":
			opErr = a.interactiveStatus(c.Context, p)
		case "4":
			return a.endSession(nil)
		}
		if opErr == nil {
			continue
		}
		var cfgErr *binance.ConfigurationError
		if errors.Is(opErr, io.EOF) || errors.As(opErr, &cfgErr) {
			return a.endSession(opErr)
		}
		fmt.Fprintf(a.out, "  %s\n", describeError(opErr))
	}
}

func (a *app) endSession(err error) error {
	if err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	fmt.Fprintln(a.out)
	fmt.Fprintln(a.out, "  Goodbye!")
	return nil
}

func (a *app) interactiveOrder(ctx context.Context, p *prompter) error {
	var (
		order core.Order
		err   error
	)
	if order.Symbol, err = askValid(p, "Symbol (e.g. BTCUSDT)", "", core.ValidateSymbol); err != nil {
		return err
	}
	if order.Side, err = askValid(p, "Side [BUY/SELL]", "", core.ValidateSide); err != nil {
		return err
	}
	fmt.Fprintln(a.out)
	fmt.Fprintln(a.out, "  Order types:")
	fmt.Fprintln(a.out, "    MARKET      - instant fill at market price")
	fmt.Fprintln(a.out, "    LIMIT       - fill at your price or better")
	fmt.Fprintln(a.out, "    STOP_MARKET - market order once the stop price trades")
	fmt.Fprintln(a.out, "    STOP_LIMIT  - limit order once the stop price trades")
	fmt.Fprintln(a.out)
	if order.Type, err = askValid(p, "Order type", "", core.ValidateOrderType); err != nil {
		return err
	}
	if order.Quantity, err = askValid(p, "Quantity", "", core.ValidateQuantity); err != nil {
		return err
	}
	if order.Type.NeedsPrice() {
		order.Price, err = askValid(p, "Limit price", "", func(raw string) (decimal.NullDecimal, error) {
			return core.ValidatePrice(raw, order.Type)
		})
		if err != nil {
			return err
		}
	}
	if order.Type.NeedsStopPrice() {
		order.StopPrice, err = askValid(p, "Stop trigger price", "", func(raw string) (decimal.NullDecimal, error) {
			return core.ValidateStopPrice(raw, order.Type)
		})
		if err != nil {
			return err
		}
	}
	order.TimeInForce = core.GTC
	if order.Type.NeedsPrice() {
		if order.TimeInForce, err = askValid(p, "Time-in-force [GTC/IOC/FOK]", string(core.GTC), core.ValidateTimeInForce); err != nil {
			return err
		}
	}

	fmt.Fprintln(a.out)
	printOrderSummary(a.out, order)
	ok, err := p.confirm("Confirm and place this order?")
	if err != nil {
		return err
	}
	if !ok {
		fmt.Fprintln(a.out, "  Order cancelled.")
		return nil
	}
	fmt.Fprintln(a.out)
	return a.submitOrder(ctx, order)
}

func (a *app) interactiveStatus(ctx context.Context, p *prompter) error {
	symbol, err := askValid(p, "Symbol (e.g. BTCUSDT)", "", core.ValidateSymbol)
	if err != nil {
		return err
	}
	orderID, err := askValid(p, "Order ID", "", core.ValidateOrderID)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out)
	return a.showOrder(ctx, symbol, orderID)
}
