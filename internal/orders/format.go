package orders

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"
)

const updateTimeLayout = "2006-01-02 15:04:05 UTC"

// Millisecond bounds of years 1 through 9999.
const (
	minUpdateTimeMs = -62135596800000
	maxUpdateTimeMs = 253402300799999
)

// FormatUpdateTime renders an exchange millisecond timestamp as UTC text.
// It never fails: values that cannot be converted come back in their raw
// string form, and a missing value is treated as zero.
func FormatUpdateTime(v any) string {
	if v == nil {
		v = int64(0)
	}
	ms, ok := toMillis(v)
	if !ok {
		return fmt.Sprint(v)
	}
	return time.UnixMilli(ms).UTC().Format(updateTimeLayout)
}

func toMillis(v any) (int64, bool) {
	var f float64
	switch x := v.(type) {
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return boundMillis(n)
		}
		parsed, err := x.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case int:
		return boundMillis(int64(x))
	case int64:
		return boundMillis(x)
	case float64:
		f = x
	case string:
		s := strings.TrimSpace(x)
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return boundMillis(n)
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f < minUpdateTimeMs || f > maxUpdateTimeMs {
		return 0, false
	}
	return int64(f), true
}

func boundMillis(ms int64) (int64, bool) {
	if ms < minUpdateTimeMs || ms > maxUpdateTimeMs {
		return 0, false
	}
	return ms, true
}

// FormatOrderResult renders the bordered console summary of an order.
func FormatOrderResult(result Result) string {
	field := func(key string) string {
		v, ok := result[key]
		if !ok || v == nil {
			return "N/A"
		}
		return fmt.Sprint(v)
	}
	when, ok := result[KeyUpdateTimeHuman].(string)
	if !ok {
		when = FormatUpdateTime(result["updateTime"])
	}

	border := strings.Repeat("=", 60)
	var b strings.Builder
	b.WriteString(border + "\n")
	b.WriteString("           ORDER RESULT\n")
	b.WriteString(border + "\n")
	rows := []struct{ label, value string }{
		{"Order ID", field("orderId")},
		{"Symbol", field("symbol")},
		{"Side", field("side")},
		{"Type", field("type")},
		{"Status", field("status")},
		{"Quantity", field("origQty")},
		{"Executed Qty", field("executedQty")},
		{"Avg Price", field("avgPrice")},
		{"Price", field("price")},
		{"Stop Price", field("stopPrice")},
		{"Time", when},
	}
	for _, row := range rows {
		fmt.Fprintf(&b, "  %-13s: %s\n", row.label, row.value)
	}
	b.WriteString(border)
	return b.String()
}
