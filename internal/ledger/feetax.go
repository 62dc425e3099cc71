package ledger

import (
	"github.com/shopspring/decimal"

	"github.com/foliostack/tradeledger/internal/feeschedule"
)

// DPLedger tracks which (symbol, date) groups already paid the flat
// depository charge. One ledger is threaded through a whole batch and
// never shared across units of work.
type DPLedger struct {
	applied map[string]struct{}
}

// NewDPLedger constructs an empty DP accumulator.
func NewDPLedger() *DPLedger {
	ledger := new(DPLedger)
	ledger.applied = make(map[string]struct{})
	return ledger
}

// MarkApplied records the group and reports whether this was the first
// delivery SELL for it.
func (l *DPLedger) MarkApplied(groupKey string) bool {
	if _, ok := l.applied[groupKey]; ok {
		return false
	}
	l.applied[groupKey] = struct{}{}
	return true
}

// Calculator computes the per-row fee and tax breakdown from a resolved
// fee schedule. Rows must carry intraday counts before fees are applied.
type Calculator struct {
	schedule feeschedule.Schedule
}

// NewCalculator constructs a Calculator bound to one participant schedule.
func NewCalculator(schedule feeschedule.Schedule) *Calculator {
	calc := new(Calculator)
	calc.schedule = schedule
	return calc
}

// Apply fills the fee columns and final amount of every row, threading the
// DP ledger across the batch so the flat charge lands once per (symbol, date).
func (c *Calculator) Apply(rows []EnrichedTransaction, dp *DPLedger) {
	if dp == nil {
		dp = NewDPLedger()
	}
	for i := range rows {
		c.applyRow(&rows[i], dp)
	}
}

func (c *Calculator) applyRow(row *EnrichedTransaction, dp *DPLedger) {
	intradayQty := decimal.NewFromInt(row.IntradayCount)
	deliveryQty := decimal.NewFromInt(row.DeliveryCount())
	intradayAmt := row.Price.Mul(intradayQty)
	deliveryAmt := row.Price.Mul(deliveryQty)
	netAbs := row.NetAmount.Abs()

	row.STT = c.schedule.STT.Delivery.Mul(deliveryAmt)
	if row.Type == TradeSell {
		row.STT = row.STT.Add(c.schedule.STT.Intraday.Mul(intradayAmt))
	}

	row.SEBICharges = c.schedule.SEBIRate.Mul(netAbs)
	row.ExchangeCharges = c.schedule.ExchangeRate(row.Exchange).Mul(netAbs)
	row.Brokerage = c.brokerage(intradayAmt, deliveryAmt)

	if !c.schedule.StampDuty.BuySideOnly || row.Type == TradeBuy {
		row.StampDuty = c.schedule.StampDuty.Delivery.Mul(deliveryAmt).
			Add(c.schedule.StampDuty.Intraday.Mul(intradayAmt))
	} else {
		row.StampDuty = decimal.Zero
	}

	row.DPCharges = decimal.Zero
	if row.Type == TradeSell && row.DeliveryCount() > 0 && dp.MarkApplied(row.GroupKey()) {
		row.DPCharges = c.schedule.DPCharges
	}

	gstBase := row.Brokerage.
		Add(row.DPCharges).
		Add(row.ExchangeCharges).
		Add(row.SEBICharges)
	row.GST = c.schedule.GSTRate.Mul(gstBase)

	row.FinalAmount = row.NetAmount.Add(row.TotalFees())
}

func (c *Calculator) brokerage(intradayAmt, deliveryAmt decimal.Decimal) decimal.Decimal {
	if c.schedule.Brokerage.Mode == feeschedule.BrokerageFixed {
		return c.schedule.Brokerage.Fixed
	}
	total := decimal.Zero
	for _, amt := range []decimal.Decimal{intradayAmt, deliveryAmt} {
		if amt.IsZero() {
			continue
		}
		fee := c.schedule.Brokerage.Rate.Mul(amt)
		if c.schedule.Brokerage.Cap.IsPositive() && fee.GreaterThan(c.schedule.Brokerage.Cap) {
			fee = c.schedule.Brokerage.Cap
		}
		total = total.Add(fee)
	}
	return total
}
