package core

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	symbolPattern = regexp.MustCompile(`^[A-Z]{2,20}$`)
	maxQuantity   = decimal.NewFromInt(1_000_000)
)

// ValidationError names the offending input field. It unwraps to ErrInvalidOrder.
type ValidationError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid " + e.Field + ": " + e.Reason
}

func (e *ValidationError) Unwrap() error { return ErrInvalidOrder }

func invalid(field, value, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Value: value, Reason: fmt.Sprintf(format, args...)}
}

func ValidateSymbol(raw string) (string, error) {
	symbol := strings.ToUpper(strings.TrimSpace(raw))
	if !symbolPattern.MatchString(symbol) {
		return "", invalid("symbol", raw, "%q must be 2-20 letters, e.g. BTCUSDT", symbol)
	}
	return symbol, nil
}

func ValidateSide(raw string) (Side, error) {
	side := Side(strings.ToUpper(strings.TrimSpace(raw)))
	switch side {
	case Buy, Sell:
		return side, nil
	}
	return "", invalid("side", raw, "%q must be BUY or SELL", string(side))
}

func ValidateOrderType(raw string) (OrderType, error) {
	t := OrderType(strings.ToUpper(strings.TrimSpace(raw)))
	switch t {
	case Market, Limit, StopMarket, StopLimit:
		return t, nil
	}
	return "", invalid("type", raw, "%q must be one of LIMIT, MARKET, STOP_LIMIT, STOP_MARKET", string(t))
}

func ValidateQuantity(raw string) (decimal.Decimal, error) {
	qty, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, invalid("quantity", raw, "%q is not a number", raw)
	}
	if qty.Sign() <= 0 {
		return decimal.Zero, invalid("quantity", raw, "must be greater than 0, got %s", qty)
	}
	if qty.GreaterThan(maxQuantity) {
		return decimal.Zero, invalid("quantity", raw, "must not exceed %s, got %s", maxQuantity, qty)
	}
	return qty, nil
}

// ValidatePrice checks the limit price against the order type. STOP_LIMIT is
// held to the LIMIT rule.
func ValidatePrice(raw string, t OrderType) (decimal.NullDecimal, error) {
	present := strings.TrimSpace(raw) != ""
	if !t.NeedsPrice() {
		if present {
			return decimal.NullDecimal{}, invalid("price", raw, "must not be set for %s orders", t)
		}
		return decimal.NullDecimal{}, nil
	}
	if !present {
		return decimal.NullDecimal{}, invalid("price", raw, "is required for %s orders", t)
	}
	return positiveDecimal("price", raw)
}

// ValidateStopPrice checks the trigger price. Types without a trigger ignore it.
func ValidateStopPrice(raw string, t OrderType) (decimal.NullDecimal, error) {
	if !t.NeedsStopPrice() {
		return decimal.NullDecimal{}, nil
	}
	if strings.TrimSpace(raw) == "" {
		return decimal.NullDecimal{}, invalid("stop_price", raw, "is required for %s orders", t)
	}
	return positiveDecimal("stop_price", raw)
}

func ValidateTimeInForce(raw string) (TimeInForce, error) {
	tif := TimeInForce(strings.ToUpper(strings.TrimSpace(raw)))
	switch tif {
	case "":
		return GTC, nil
	case GTC, IOC, FOK:
		return tif, nil
	}
	return "", invalid("time_in_force", raw, "%q must be one of FOK, GTC, IOC", string(tif))
}

func ValidateOrderID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, invalid("order_id", raw, "%q is not an integer", raw)
	}
	if id <= 0 {
		return 0, invalid("order_id", raw, "must be greater than 0, got %d", id)
	}
	return id, nil
}

func positiveDecimal(field, raw string) (decimal.NullDecimal, error) {
	v, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.NullDecimal{}, invalid(field, raw, "%q is not a number", raw)
	}
	if v.Sign() <= 0 {
		return decimal.NullDecimal{}, invalid(field, raw, "must be greater than 0, got %s", v)
	}
	return decimal.NullDecimal{Decimal: v, Valid: true}, nil
}

// Validate runs every field check and returns the normalized order. No
// partially valid order is ever returned.
func (r OrderRequest) Validate() (Order, error) {
	symbol, err := ValidateSymbol(r.Symbol)
	if err != nil {
		return Order{}, err
	}
	side, err := ValidateSide(r.Side)
	if err != nil {
		return Order{}, err
	}
	orderType, err := ValidateOrderType(r.Type)
	if err != nil {
		return Order{}, err
	}
	qty, err := ValidateQuantity(r.Quantity)
	if err != nil {
		return Order{}, err
	}
	price, err := ValidatePrice(r.Price, orderType)
	if err != nil {
		return Order{}, err
	}
	tif, err := ValidateTimeInForce(r.TimeInForce)
	if err != nil {
		return Order{}, err
	}
	stop, err := ValidateStopPrice(r.StopPrice, orderType)
	if err != nil {
		return Order{}, err
	}
	return Order{
		Symbol:      symbol,
		Side:        side,
		Type:        orderType,
		Quantity:    qty,
		Price:       price,
		StopPrice:   stop,
		TimeInForce: tif,
	}, nil
}

// Validate re-checks an already normalized order, for callers that build
// Order directly instead of through OrderRequest.Validate. Fields are not
// normalized here: a lowercase symbol or side is rejected.
func (o Order) Validate() error {
	if !symbolPattern.MatchString(o.Symbol) {
		return invalid("symbol", o.Symbol, "%q must be 2-20 uppercase letters, e.g. BTCUSDT", o.Symbol)
	}
	switch o.Side {
	case Buy, Sell:
	default:
		return invalid("side", string(o.Side), "%q must be BUY or SELL", string(o.Side))
	}
	switch o.Type {
	case Market, Limit, StopMarket, StopLimit:
	default:
		return invalid("type", string(o.Type), "%q must be one of LIMIT, MARKET, STOP_LIMIT, STOP_MARKET", string(o.Type))
	}
	if o.Quantity.Sign() <= 0 {
		return invalid("quantity", o.Quantity.String(), "must be greater than 0, got %s", o.Quantity)
	}
	if o.Quantity.GreaterThan(maxQuantity) {
		return invalid("quantity", o.Quantity.String(), "must not exceed %s, got %s", maxQuantity, o.Quantity)
	}
	if err := checkNormalizedPrice("price", o.Price, o.Type.NeedsPrice(), o.Type); err != nil {
		return err
	}
	if o.Type.NeedsStopPrice() {
		if err := checkNormalizedPrice("stop_price", o.StopPrice, true, o.Type); err != nil {
			return err
		}
	}
	switch o.TimeInForce {
	case "", GTC, IOC, FOK:
	default:
		return invalid("time_in_force", string(o.TimeInForce), "%q must be one of FOK, GTC, IOC", string(o.TimeInForce))
	}
	return nil
}

func checkNormalizedPrice(field string, v decimal.NullDecimal, required bool, t OrderType) error {
	if !required {
		if v.Valid {
			return invalid(field, v.Decimal.String(), "must not be set for %s orders", t)
		}
		return nil
	}
	if !v.Valid {
		return invalid(field, "", "is required for %s orders", t)
	}
	if v.Decimal.Sign() <= 0 {
		return invalid(field, v.Decimal.String(), "must be greater than 0, got %s", v.Decimal)
	}
	return nil
}
