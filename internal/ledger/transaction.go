// Package ledger holds the canonical transaction types and the
// normalize/classify/enrich stages of the processing pipeline.
package ledger

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// TradeType labels the direction of a transaction.
type TradeType string

const (
	// TradeBuy marks a purchase; quantity is positive.
	TradeBuy TradeType = "BUY"
	// TradeSell marks a sale; quantity is negative.
	TradeSell TradeType = "SELL"
)

// DateLayout is the canonical date-only representation used for grouping keys.
const DateLayout = "2006-01-02"

// Transaction is one canonical broker trade row.
// NetAmount equals Price x Quantity at ingestion; the quantity sign
// encodes the trade direction.
type Transaction struct {
	Date      time.Time
	Symbol    string
	Exchange  string
	Type      TradeType
	Quantity  int64
	Price     decimal.Decimal
	NetAmount decimal.Decimal
}

// AbsQuantity returns the unsigned share count.
func (t Transaction) AbsQuantity() int64 {
	if t.Quantity < 0 {
		return -t.Quantity
	}
	return t.Quantity
}

// DateKey returns the date-only grouping key.
func (t Transaction) DateKey() string {
	return t.Date.Format(DateLayout)
}

// GroupKey returns the (symbol, date) grouping key shared by the intraday
// classifier and the DP ledger.
func (t Transaction) GroupKey() string {
	return t.Symbol + "|" + t.DateKey()
}

// EnrichedTransaction extends a Transaction with the intraday split and
// the per-row fee and tax breakdown.
type EnrichedTransaction struct {
	Transaction
	IntradayCount   int64
	STT             decimal.Decimal
	SEBICharges     decimal.Decimal
	ExchangeCharges decimal.Decimal
	Brokerage       decimal.Decimal
	StampDuty       decimal.Decimal
	DPCharges       decimal.Decimal
	GST             decimal.Decimal
	FinalAmount     decimal.Decimal
}

// DeliveryCount returns the non-intraday portion of the quantity.
func (t EnrichedTransaction) DeliveryCount() int64 {
	return t.AbsQuantity() - t.IntradayCount
}

// TotalFees sums every fee column.
func (t EnrichedTransaction) TotalFees() decimal.Decimal {
	return t.STT.
		Add(t.SEBICharges).
		Add(t.ExchangeCharges).
		Add(t.Brokerage).
		Add(t.StampDuty).
		Add(t.DPCharges).
		Add(t.GST)
}

// Enrich wraps canonical transactions into enriched rows with zeroed fees.
func Enrich(txs []Transaction) []EnrichedTransaction {
	rows := make([]EnrichedTransaction, 0, len(txs))
	for _, tx := range txs {
		rows = append(rows, EnrichedTransaction{
			Transaction:     tx,
			IntradayCount:   0,
			STT:             decimal.Zero,
			SEBICharges:     decimal.Zero,
			ExchangeCharges: decimal.Zero,
			Brokerage:       decimal.Zero,
			StampDuty:       decimal.Zero,
			DPCharges:       decimal.Zero,
			GST:             decimal.Zero,
			FinalAmount:     tx.NetAmount,
		})
	}
	return rows
}

// SortCanonical orders transactions by (symbol, date, BUY before SELL),
// keeping encounter order for ties so same-timestamp rows stay stable.
func SortCanonical(txs []Transaction) {
	sort.SliceStable(txs, func(i, j int) bool {
		if txs[i].Symbol != txs[j].Symbol {
			return txs[i].Symbol < txs[j].Symbol
		}
		if !txs[i].Date.Equal(txs[j].Date) {
			return txs[i].Date.Before(txs[j].Date)
		}
		return txs[i].Type == TradeBuy && txs[j].Type == TradeSell
	})
}
