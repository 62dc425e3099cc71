package capitalgains

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/foliostack/tradeledger/internal/ledger"
)

// Row is one (symbol, financial year) taxation bucket.
type Row struct {
	Symbol         string
	FinancialYear  string
	LTCG           decimal.Decimal
	STCG           decimal.Decimal
	IntradayIncome decimal.Decimal
}

// Total sums the three gain buckets.
func (r Row) Total() decimal.Decimal {
	return r.LTCG.Add(r.STCG).Add(r.IntradayIncome)
}

// Result carries the taxation rows plus per-symbol matched quantities for
// reconciliation.
type Result struct {
	Rows            []Row
	MatchedQuantity map[string]int64
}

// Classify computes realized gains from the enriched ledger. Per symbol it
// nets same-day quantity into intraday income, then FIFO-matches the
// residual buy and sell parcels across the whole history; each matched pair
// lands in the financial year of its sell date. Unmatched buy residue (open
// positions) contributes nothing.
func Classify(rows []ledger.EnrichedTransaction) Result {
	result := Result{
		Rows:            nil,
		MatchedQuantity: make(map[string]int64),
	}

	bySymbol := make(map[string][]ledger.EnrichedTransaction)
	var symbols []string
	for _, row := range rows {
		if _, ok := bySymbol[row.Symbol]; !ok {
			symbols = append(symbols, row.Symbol)
		}
		bySymbol[row.Symbol] = append(bySymbol[row.Symbol], row)
	}
	sort.Strings(symbols)

	buckets := make(map[string]*Row)
	var bucketOrder []string
	bucket := func(symbol, fy string) *Row {
		key := symbol + "|" + fy
		b, ok := buckets[key]
		if !ok {
			b = &Row{
				Symbol:         symbol,
				FinancialYear:  fy,
				LTCG:           decimal.Zero,
				STCG:           decimal.Zero,
				IntradayIncome: decimal.Zero,
			}
			buckets[key] = b
			bucketOrder = append(bucketOrder, key)
		}
		return b
	}

	for _, symbol := range symbols {
		matched := classifySymbol(symbol, bySymbol[symbol], bucket)
		result.MatchedQuantity[symbol] = matched
	}

	sort.Strings(bucketOrder)
	for _, key := range bucketOrder {
		result.Rows = append(result.Rows, *buckets[key])
	}
	return result
}

type parcel struct {
	date     time.Time
	quantity int64
	unit     decimal.Decimal
}

type dayTotals struct {
	date         time.Time
	buyQty       int64
	buyCost      decimal.Decimal
	sellQty      int64
	sellProceeds decimal.Decimal
}

func classifySymbol(symbol string, rows []ledger.EnrichedTransaction, bucket func(symbol, fy string) *Row) int64 {
	days := make(map[string]*dayTotals)
	var dayOrder []string
	for _, row := range rows {
		key := row.DateKey()
		day, ok := days[key]
		if !ok {
			day = &dayTotals{
				date:         row.Date,
				buyQty:       0,
				buyCost:      decimal.Zero,
				sellQty:      0,
				sellProceeds: decimal.Zero,
			}
			days[key] = day
			dayOrder = append(dayOrder, key)
		}
		switch row.Type {
		case ledger.TradeBuy:
			day.buyQty += row.AbsQuantity()
			day.buyCost = day.buyCost.Add(row.FinalAmount.Abs())
		case ledger.TradeSell:
			day.sellQty += row.AbsQuantity()
			day.sellProceeds = day.sellProceeds.Add(row.FinalAmount.Abs())
		}
	}
	sort.Strings(dayOrder)

	var totalMatched int64
	var buyResidue, sellResidue []parcel
	for _, key := range dayOrder {
		day := days[key]
		var buyUnit, sellUnit decimal.Decimal
		if day.buyQty > 0 {
			buyUnit = day.buyCost.Div(decimal.NewFromInt(day.buyQty))
		}
		if day.sellQty > 0 {
			sellUnit = day.sellProceeds.Div(decimal.NewFromInt(day.sellQty))
		}

		matched := day.buyQty
		if day.sellQty < matched {
			matched = day.sellQty
		}
		if matched > 0 {
			income := sellUnit.Sub(buyUnit).Mul(decimal.NewFromInt(matched))
			b := bucket(symbol, FinancialYear(day.date))
			b.IntradayIncome = b.IntradayIncome.Add(income)
			totalMatched += matched
		}

		if residual := day.buyQty - matched; residual > 0 {
			buyResidue = append(buyResidue, parcel{date: day.date, quantity: residual, unit: buyUnit})
		}
		if residual := day.sellQty - matched; residual > 0 {
			sellResidue = append(sellResidue, parcel{date: day.date, quantity: residual, unit: sellUnit})
		}
	}

	// Cross-date FIFO over the residuals.
	bi, si := 0, 0
	for bi < len(buyResidue) && si < len(sellResidue) {
		buy := &buyResidue[bi]
		sell := &sellResidue[si]
		matched := buy.quantity
		if sell.quantity < matched {
			matched = sell.quantity
		}
		gain := sell.unit.Sub(buy.unit).Mul(decimal.NewFromInt(matched))
		b := bucket(symbol, FinancialYear(sell.date))
		if IsLongTerm(buy.date, sell.date) {
			b.LTCG = b.LTCG.Add(gain)
		} else {
			b.STCG = b.STCG.Add(gain)
		}
		totalMatched += matched
		buy.quantity -= matched
		sell.quantity -= matched
		if buy.quantity == 0 {
			bi++
		}
		if sell.quantity == 0 {
			si++
		}
	}

	return totalMatched
}
