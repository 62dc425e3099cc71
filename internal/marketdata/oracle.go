// Package marketdata abstracts historical and current price lookup.
package marketdata

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout keys quote maps by date.
const DateLayout = "2006-01-02"

// Quote is one day's OHLCV bar.
type Quote struct {
	Open   decimal.Decimal
	High   decimal.Decimal
	Low    decimal.Decimal
	Close  decimal.Decimal
	Volume int64
}

// Oracle resolves prices in batched form, one request per symbol covering
// all needed dates.
type Oracle interface {
	// BatchQuote returns OHLCV bars for the symbol keyed by DateLayout.
	// Dates with no trading data are absent from the result.
	BatchQuote(ctx context.Context, symbol string, dates []time.Time) (map[string]Quote, error)
	// BatchCurrentPrice returns the latest price per symbol. Symbols the
	// oracle cannot price are absent from the result.
	BatchCurrentPrice(ctx context.Context, symbols []string) (map[string]decimal.Decimal, error)
}
