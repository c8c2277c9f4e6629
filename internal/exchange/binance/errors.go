package binance

import (
	"errors"
	"strconv"
	"strings"

	"futures-bot/internal/core"
)

const (
	apiCodeInvalidTimestamp = -1021
	apiCodeInvalidSignature = -1022
	apiCodeInvalidSymbol    = -1121
	apiCodeNewOrderRejected = -2010
	apiCodeCancelRejected   = -2011
	apiCodeOrderNotFound    = -2013
	apiCodeInvalidKeyFormat = -2014
	apiCodeRejectedAPIKey   = -2015
	apiCodeMarginShortfall  = -2019
)

var apiErrorMessageKinds = map[string]error{
	"account has insufficient balance for requested action.": core.ErrInsufficientBalance,
	"margin is insufficient.":                                core.ErrInsufficientBalance,
	"unknown order sent.":                                    core.ErrOrderNotFound,
	"order does not exist.":                                  core.ErrOrderNotFound,
	"invalid symbol.":                                        core.ErrInvalidSymbol,
}

// ConfigurationError reports missing or unusable client settings. No request
// is ever attempted once it is returned.
type ConfigurationError struct {
	Field string
	Msg   string
}

func (e *ConfigurationError) Error() string {
	return "binance configuration: " + e.Field + " " + e.Msg
}

// APIError is a non-200 response from the exchange. Code is meaningful only
// when HasCode is set; otherwise it prints as N/A and Msg holds the raw body.
type APIError struct {
	Status  int
	Code    int
	HasCode bool
	Msg     string

	kind error
}

func (e *APIError) Error() string {
	return "binance api error " + strconv.Itoa(e.Status) + ": " + e.CodeString() + " " + e.Msg
}

func (e *APIError) CodeString() string {
	if !e.HasCode {
		return "N/A"
	}
	return strconv.Itoa(e.Code)
}

// Unwrap exposes the classified kind so callers can test with errors.Is.
func (e *APIError) Unwrap() error { return e.kind }

// TransportError means no response was received.
type TransportError struct {
	Method   string
	Endpoint string
	Err      error
}

func (e *TransportError) Error() string {
	return "binance transport " + e.Method + " " + e.Endpoint + ": " + e.Err.Error()
}

func (e *TransportError) Unwrap() error { return e.Err }

type SymbolNotFoundError struct {
	Symbol string
}

func (e *SymbolNotFoundError) Error() string {
	return "symbol " + strconv.Quote(e.Symbol) + " not found on exchange"
}

func (e *SymbolNotFoundError) Unwrap() error { return core.ErrInvalidSymbol }

func classifyAPIError(apiErr *APIError) *APIError {
	apiErr.kind = classifyAPIErrorKind(apiErr)
	return apiErr
}

func classifyAPIErrorKind(apiErr *APIError) error {
	if apiErr.HasCode {
		switch apiErr.Code {
		case apiCodeOrderNotFound, apiCodeCancelRejected:
			return core.ErrOrderNotFound
		case apiCodeMarginShortfall:
			return core.ErrInsufficientBalance
		case apiCodeInvalidSymbol:
			return core.ErrInvalidSymbol
		case apiCodeInvalidTimestamp, apiCodeInvalidSignature, apiCodeInvalidKeyFormat, apiCodeRejectedAPIKey:
			return core.ErrUnauthorized
		case apiCodeNewOrderRejected:
			if kind, ok := apiErrorMessageKinds[normalizeAPIErrorMsg(apiErr.Msg)]; ok {
				return kind
			}
			return core.ErrOrderRejected
		}
	}
	if kind, ok := apiErrorMessageKinds[normalizeAPIErrorMsg(apiErr.Msg)]; ok {
		return kind
	}
	return nil
}

func normalizeAPIErrorMsg(msg string) string {
	return strings.ToLower(strings.TrimSpace(msg))
}

func AsAPIError(err error) (*APIError, bool) {
	if err == nil {
		return nil, false
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return nil, false
	}
	return apiErr, true
}

func IsAPIErrorCode(err error, codes ...int) bool {
	apiErr, ok := AsAPIError(err)
	if !ok || !apiErr.HasCode {
		return false
	}
	for _, code := range codes {
		if apiErr.Code == code {
			return true
		}
	}
	return false
}
