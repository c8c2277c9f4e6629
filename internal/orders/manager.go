package orders

import (
	"context"
	"io"
	"net/url"
	"strconv"

	"github.com/sirupsen/logrus"

	"futures-bot/internal/core"
	"futures-bot/internal/exchange"
)

const endpointOrder = "/fapi/v1/order"

// Result is an exchange order response passed through unmodified, plus the
// derived updateTimeHuman key.
type Result map[string]any

const KeyUpdateTimeHuman = "updateTimeHuman"

type Manager struct {
	exec exchange.Executor
	log  logrus.FieldLogger
}

func NewManager(exec exchange.Executor, logger logrus.FieldLogger) *Manager {
	if logger == nil {
		discard := logrus.New()
		discard.SetOutput(io.Discard)
		logger = discard
	}
	return &Manager{exec: exec, log: logger.WithField("component", "orders")}
}

// BuildOrderParams returns the exact pre-signature parameter set for order.
// The order is re-validated first; an invalid order never reaches the
// executor.
func BuildOrderParams(order core.Order) (url.Values, error) {
	if err := order.Validate(); err != nil {
		return nil, err
	}
	params := url.Values{}
	params.Set("symbol", order.Symbol)
	params.Set("side", string(order.Side))
	params.Set("type", string(order.Type))
	params.Set("quantity", order.Quantity.String())

	tif := order.TimeInForce
	if tif == "" {
		tif = core.GTC
	}
	if order.Type.NeedsPrice() {
		params.Set("price", order.Price.Decimal.String())
		params.Set("timeInForce", string(tif))
	}
	if order.Type.NeedsStopPrice() {
		params.Set("stopPrice", order.StopPrice.Decimal.String())
	}
	return params, nil
}

func (m *Manager) PlaceOrder(ctx context.Context, order core.Order) (Result, error) {
	params, err := BuildOrderParams(order)
	if err != nil {
		return nil, err
	}
	m.log.WithFields(logrus.Fields{
		"symbol":     order.Symbol,
		"side":       order.Side,
		"type":       order.Type,
		"quantity":   order.Quantity.String(),
		"price":      optional(params, "price"),
		"stop_price": optional(params, "stopPrice"),
		"tif":        optional(params, "timeInForce"),
	}).Info("placing order")

	resp, err := m.exec.Post(ctx, endpointOrder, params, true)
	if err != nil {
		m.log.WithError(err).WithField("symbol", order.Symbol).Error("order placement failed")
		return nil, err
	}
	result := annotate(resp)
	m.log.WithFields(logrus.Fields{
		"order_id": result["orderId"],
		"status":   result["status"],
	}).Info("order placed")
	return result, nil
}

func (m *Manager) GetOrder(ctx context.Context, symbol string, orderID int64) (Result, error) {
	params, err := orderRef(symbol, orderID)
	if err != nil {
		return nil, err
	}
	m.log.WithFields(logrus.Fields{"symbol": params.Get("symbol"), "order_id": orderID}).Info("fetching order")
	resp, err := m.exec.Get(ctx, endpointOrder, params, true)
	if err != nil {
		return nil, err
	}
	m.log.WithField("response", resp).Debug("order status")
	return annotate(resp), nil
}

func (m *Manager) CancelOrder(ctx context.Context, symbol string, orderID int64) (Result, error) {
	params, err := orderRef(symbol, orderID)
	if err != nil {
		return nil, err
	}
	m.log.WithFields(logrus.Fields{"symbol": params.Get("symbol"), "order_id": orderID}).Info("cancelling order")
	resp, err := m.exec.Delete(ctx, endpointOrder, params, true)
	if err != nil {
		return nil, err
	}
	result := annotate(resp)
	m.log.WithField("status", result["status"]).Info("order cancelled")
	return result, nil
}

func orderRef(symbol string, orderID int64) (url.Values, error) {
	normalized, err := core.ValidateSymbol(symbol)
	if err != nil {
		return nil, err
	}
	if orderID <= 0 {
		return nil, &core.ValidationError{Field: "order_id", Value: strconv.FormatInt(orderID, 10), Reason: "must be a positive integer"}
	}
	params := url.Values{}
	params.Set("symbol", normalized)
	params.Set("orderId", strconv.FormatInt(orderID, 10))
	return params, nil
}

func annotate(resp map[string]any) Result {
	result := Result(resp)
	if result == nil {
		result = Result{}
	}
	result[KeyUpdateTimeHuman] = FormatUpdateTime(result["updateTime"])
	return result
}

func optional(params url.Values, key string) string {
	if v := params.Get(key); v != "" {
		return v
	}
	return "N/A"
}
