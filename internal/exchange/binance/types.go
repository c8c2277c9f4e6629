package binance

import (
	"bytes"
	"fmt"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"

	"futures-bot/internal/core"
)

type apiError struct {
	Code *int    `json:"code"`
	Msg  *string `json:"msg"`
}

type exchangeInfoResponse struct {
	Symbols []json.RawMessage `json:"symbols"`
}

type symbolInfoResponse struct {
	Symbol     string `json:"symbol"`
	Status     string `json:"status"`
	BaseAsset  string `json:"baseAsset"`
	QuoteAsset string `json:"quoteAsset"`
	Filters    []struct {
		FilterType string `json:"filterType"`
		MinQty     string `json:"minQty"`
		StepSize   string `json:"stepSize"`
		TickSize   string `json:"tickSize"`
		Notional   string `json:"notional"`
	} `json:"filters"`
}

type accountResponse struct {
	Assets []BalanceEntry `json:"assets"`
}

// BalanceEntry is one futures wallet asset as reported by /fapi/v2/account.
type BalanceEntry struct {
	Asset              string `json:"asset"`
	WalletBalance      Amount `json:"walletBalance"`
	AvailableBalance   Amount `json:"availableBalance"`
	CrossWalletBalance Amount `json:"crossWalletBalance"`
}

// Amount holds a decimal the exchange sent either as a JSON string or as a
// bare number. The literal text is kept as is.
type Amount string

func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*a = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = Amount(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("amount must be a string or number, got %s", string(data))
	}
	*a = Amount(n.String())
	return nil
}

func (a Amount) Decimal() (decimal.Decimal, error) {
	return decimal.NewFromString(strings.TrimSpace(string(a)))
}

// SymbolInfo is the exchangeInfo entry for one symbol. Raw keeps every field
// the exchange sent.
type SymbolInfo struct {
	Symbol     string
	Status     string
	BaseAsset  string
	QuoteAsset string
	Rules      core.Rules
	Raw        map[string]any
}

func parseSymbolInfo(src symbolInfoResponse, raw map[string]any) SymbolInfo {
	info := SymbolInfo{
		Symbol:     src.Symbol,
		Status:     src.Status,
		BaseAsset:  src.BaseAsset,
		QuoteAsset: src.QuoteAsset,
		Rules:      core.Rules{MinQty: decimal.Zero, MinNotional: decimal.Zero, PriceTick: decimal.Zero, QtyStep: decimal.Zero},
		Raw:        raw,
	}
	for _, f := range src.Filters {
		switch f.FilterType {
		case "LOT_SIZE":
			if v, err := decimal.NewFromString(f.MinQty); err == nil {
				info.Rules.MinQty = v
			}
			if v, err := decimal.NewFromString(f.StepSize); err == nil {
				info.Rules.QtyStep = v
			}
		case "PRICE_FILTER":
			if v, err := decimal.NewFromString(f.TickSize); err == nil {
				info.Rules.PriceTick = v
			}
		case "MIN_NOTIONAL":
			if v, err := decimal.NewFromString(f.Notional); err == nil {
				info.Rules.MinNotional = v
			}
		}
	}
	return info
}
