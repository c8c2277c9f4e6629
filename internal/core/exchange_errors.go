package core

import "errors"

var (
	// ErrInvalidOrder indicates order input failed local validation.
	ErrInvalidOrder = errors.New("invalid order")
	// ErrInsufficientBalance indicates the exchange rejected the action due to insufficient funds or margin.
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrOrderNotFound indicates the order does not exist on exchange.
	ErrOrderNotFound = errors.New("order not found")
	// ErrOrderRejected indicates the order was rejected by exchange.
	ErrOrderRejected = errors.New("order rejected")
	// ErrInvalidSymbol indicates the exchange does not list the symbol.
	ErrInvalidSymbol = errors.New("invalid symbol")
	// ErrUnauthorized indicates the exchange refused the key, signature, or timestamp.
	ErrUnauthorized = errors.New("unauthorized")
)
