// Package lots implements FIFO lot matching for realized cost basis.
package lots

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/foliostack/tradeledger/internal/ledger"
)

// Lot is a dated parcel of shares with its total cost. Lots are owned by a
// single matching invocation and mutated in place.
type Lot struct {
	Date     time.Time
	Quantity int64
	Cost     decimal.Decimal
}

// UnitCost returns cost per share, zero for an empty lot.
func (l Lot) UnitCost() decimal.Decimal {
	if l.Quantity == 0 {
		return decimal.Zero
	}
	return l.Cost.Div(decimal.NewFromInt(l.Quantity))
}

// FromEnriched splits one symbol's enriched rows into date-ordered BUY and
// SELL lot lists. Cost carries the settled (final) amount magnitude so
// realized figures include fees.
func FromEnriched(rows []ledger.EnrichedTransaction) (buys, sells []Lot) {
	for _, row := range rows {
		lot := Lot{
			Date:     row.Date,
			Quantity: row.AbsQuantity(),
			Cost:     row.FinalAmount.Abs(),
		}
		switch row.Type {
		case ledger.TradeBuy:
			buys = append(buys, lot)
		case ledger.TradeSell:
			sells = append(sells, lot)
		}
	}
	return buys, sells
}

// AverageCostOfSoldShares computes the weighted average acquisition cost of
// every share sold, matching same-date lots first and the remainder FIFO
// across dates. Both lists must be date-ordered. Returns zero when nothing
// was sold. The inputs are consumed.
func AverageCostOfSoldShares(buys, sells []Lot) decimal.Decimal {
	accumulated := decimal.Zero
	var intraCount int64

	// Phase 1: same-date netting. A buy dated before the current sell is
	// skipped here; it stays available for the cross-date phase.
	bi, si := 0, 0
	for bi < len(buys) && si < len(sells) {
		buy := &buys[bi]
		sell := &sells[si]
		switch {
		case buy.Date.Equal(sell.Date):
			matched := buy.Quantity
			if sell.Quantity < matched {
				matched = sell.Quantity
			}
			consumed := buy.UnitCost().Mul(decimal.NewFromInt(matched))
			accumulated = accumulated.Add(consumed)
			intraCount += matched
			buy.Cost = buy.Cost.Sub(consumed)
			buy.Quantity -= matched
			sell.Quantity -= matched
			if buy.Quantity == 0 {
				bi++
			}
			if sell.Quantity == 0 {
				si++
			}
		case buy.Date.Before(sell.Date):
			bi++
		default:
			si++
		}
	}

	// Phase 2: remaining sell quantity consumes buy lots FIFO.
	var delCount int64
	for _, sell := range sells {
		delCount += sell.Quantity
	}
	var delConsumed int64
	for i := range buys {
		if delCount == 0 {
			break
		}
		buy := &buys[i]
		if buy.Quantity == 0 {
			continue
		}
		matched := buy.Quantity
		if delCount < matched {
			matched = delCount
		}
		consumed := buy.UnitCost().Mul(decimal.NewFromInt(matched))
		accumulated = accumulated.Add(consumed)
		buy.Cost = buy.Cost.Sub(consumed)
		buy.Quantity -= matched
		delCount -= matched
		delConsumed += matched
	}

	totalMatched := intraCount + delConsumed
	if totalMatched == 0 {
		return decimal.Zero
	}
	return accumulated.Div(decimal.NewFromInt(totalMatched))
}
