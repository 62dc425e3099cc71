package reports

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/foliostack/tradeledger/internal/ledger"
	"github.com/foliostack/tradeledger/internal/marketdata"
)

// DailyPnLRow summarizes one (date, symbol) trading day against the
// market bar for that day.
type DailyPnLRow struct {
	Date           time.Time
	Symbol         string
	AvgPrice       decimal.Decimal
	Quantity       int64
	AmountInvested decimal.Decimal
	Open           decimal.Decimal
	High           decimal.Decimal
	Low            decimal.Decimal
	Close          decimal.Decimal
	Volume         int64
	// DailySpend is the running net outlay across all symbols traded on
	// the row's date, in row order.
	DailySpend decimal.Decimal
}

type dailyKey struct {
	date   string
	symbol string
}

type dailyAgg struct {
	date      time.Time
	symbol    string
	weighted  decimal.Decimal
	quantity  int64
	netOutlay decimal.Decimal
}

// BuildDailyPnL aggregates the ledger per (date, symbol). Bars come from
// one BatchQuote call per symbol covering all of that symbol's dates.
func BuildDailyPnL(ctx context.Context, rows []ledger.EnrichedTransaction, oracle marketdata.Oracle) ([]DailyPnLRow, error) {
	aggs := make(map[dailyKey]*dailyAgg)
	var order []dailyKey
	datesBySymbol := make(map[string][]time.Time)
	seenDates := make(map[dailyKey]bool)

	for _, row := range rows {
		key := dailyKey{date: row.DateKey(), symbol: row.Symbol}
		agg, ok := aggs[key]
		if !ok {
			agg = &dailyAgg{date: row.Date, symbol: row.Symbol}
			aggs[key] = agg
			order = append(order, key)
		}
		if !seenDates[key] {
			seenDates[key] = true
			datesBySymbol[row.Symbol] = append(datesBySymbol[row.Symbol], row.Date)
		}
		qty := row.AbsQuantity()
		agg.quantity += qty
		agg.weighted = agg.weighted.Add(row.Price.Mul(decimal.NewFromInt(qty)))
		agg.netOutlay = agg.netOutlay.Add(row.FinalAmount)
	}

	sort.SliceStable(order, func(i, j int) bool {
		if order[i].date != order[j].date {
			return order[i].date < order[j].date
		}
		return order[i].symbol < order[j].symbol
	})

	bars := make(map[string]map[string]marketdata.Quote)
	if oracle != nil {
		for symbol, dates := range datesBySymbol {
			quotes, err := oracle.BatchQuote(ctx, symbol, dates)
			if err != nil {
				return nil, err
			}
			bars[symbol] = quotes
		}
	}

	out := make([]DailyPnLRow, 0, len(order))
	spendByDate := make(map[string]decimal.Decimal)
	for _, key := range order {
		agg := aggs[key]
		avg := decimal.Zero
		if agg.quantity > 0 {
			avg = agg.weighted.Div(decimal.NewFromInt(agg.quantity))
		}
		spend := spendByDate[key.date].Add(agg.netOutlay)
		spendByDate[key.date] = spend

		row := DailyPnLRow{
			Date:           agg.date,
			Symbol:         agg.symbol,
			AvgPrice:       avg,
			Quantity:       agg.quantity,
			AmountInvested: agg.netOutlay,
			DailySpend:     spend,
		}
		if bar, ok := bars[key.symbol][key.date]; ok {
			row.Open = bar.Open
			row.High = bar.High
			row.Low = bar.Low
			row.Close = bar.Close
			row.Volume = bar.Volume
		}
		out = append(out, row)
	}
	return out, nil
}
