package core

import (
	"github.com/shopspring/decimal"
)

type Side string

type OrderType string

type TimeInForce string

type OrderStatus string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

const (
	Market     OrderType = "MARKET"
	Limit      OrderType = "LIMIT"
	StopMarket OrderType = "STOP_MARKET"
	StopLimit  OrderType = "STOP_LIMIT"
)

const (
	GTC TimeInForce = "GTC"
	IOC TimeInForce = "IOC"
	FOK TimeInForce = "FOK"
)

// Order lifecycle is owned by the exchange; these values are only observed.
const (
	OrderNew             OrderStatus = "NEW"
	OrderPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	OrderFilled          OrderStatus = "FILLED"
	OrderCanceled        OrderStatus = "CANCELED"
	OrderRejected        OrderStatus = "REJECTED"
	OrderExpired         OrderStatus = "EXPIRED"
)

// NeedsPrice reports whether the type carries a limit price.
func (t OrderType) NeedsPrice() bool {
	return t == Limit || t == StopLimit
}

// NeedsStopPrice reports whether the type carries a trigger price.
func (t OrderType) NeedsStopPrice() bool {
	return t == StopMarket || t == StopLimit
}

// Order is a validated, normalized order ready for dispatch. Build it with
// OrderRequest.Validate.
type Order struct {
	Symbol      string
	Side        Side
	Type        OrderType
	Quantity    decimal.Decimal
	Price       decimal.NullDecimal
	StopPrice   decimal.NullDecimal
	TimeInForce TimeInForce
}

// OrderRequest holds raw user input as typed on a command line or posted by
// the dashboard. Empty Price/StopPrice mean absent.
type OrderRequest struct {
	Symbol      string
	Side        string
	Type        string
	Quantity    string
	Price       string
	StopPrice   string
	TimeInForce string
}

type Rules struct {
	MinQty      decimal.Decimal
	MinNotional decimal.Decimal
	PriceTick   decimal.Decimal
	QtyStep     decimal.Decimal
}
