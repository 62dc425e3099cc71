// Package reports builds the derived report tables from the enriched ledger.
package reports

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/foliostack/tradeledger/internal/ledger"
	"github.com/foliostack/tradeledger/internal/lots"
	"github.com/foliostack/tradeledger/internal/marketdata"
)

// SharePnLRow is one symbol's realized and unrealized position summary.
type SharePnLRow struct {
	Symbol              string
	SharesBought        int64
	SharesSold          int64
	SharesRemaining     int64
	AvgBuyPrice         decimal.Decimal
	AvgSalePrice        decimal.Decimal
	AvgCostOfSoldShares decimal.Decimal
	ProfitPerShare      decimal.Decimal
	NetProfit           decimal.Decimal
	TotalInvestment     decimal.Decimal
	CurrentInvestment   decimal.Decimal
	ClosingPrice        decimal.Decimal
	Holdings            decimal.Decimal
}

// BuildSharePnL aggregates the ledger per symbol. Closing prices come from
// one batched oracle call covering every symbol.
func BuildSharePnL(ctx context.Context, rows []ledger.EnrichedTransaction, oracle marketdata.Oracle) ([]SharePnLRow, error) {
	bySymbol := groupBySymbol(rows)
	symbols := make([]string, 0, len(bySymbol))
	for symbol := range bySymbol {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)

	prices := map[string]decimal.Decimal{}
	if oracle != nil && len(symbols) > 0 {
		fetched, err := oracle.BatchCurrentPrice(ctx, symbols)
		if err != nil {
			return nil, err
		}
		prices = fetched
	}

	out := make([]SharePnLRow, 0, len(symbols))
	for _, symbol := range symbols {
		symbolRows := bySymbol[symbol]

		var boughtQty, soldQty int64
		totalInvestment := decimal.Zero
		totalSale := decimal.Zero
		currentInvestment := decimal.Zero
		for _, row := range symbolRows {
			currentInvestment = currentInvestment.Add(row.FinalAmount)
			switch row.Type {
			case ledger.TradeBuy:
				boughtQty += row.AbsQuantity()
				totalInvestment = totalInvestment.Add(row.FinalAmount)
			case ledger.TradeSell:
				soldQty += row.AbsQuantity()
				totalSale = totalSale.Add(row.FinalAmount.Abs())
			}
		}

		avgBuy := decimal.Zero
		if boughtQty > 0 {
			avgBuy = totalInvestment.Div(decimal.NewFromInt(boughtQty))
		}
		avgSale := decimal.Zero
		if soldQty > 0 {
			avgSale = totalSale.Div(decimal.NewFromInt(soldQty))
		}

		buys, sells := lots.FromEnriched(symbolRows)
		avgCost := lots.AverageCostOfSoldShares(buys, sells)
		profitPerShare := avgSale.Sub(avgCost)
		netProfit := decimal.Zero
		if soldQty > 0 {
			netProfit = profitPerShare.Mul(decimal.NewFromInt(soldQty))
		}

		remaining := boughtQty - soldQty
		closing := prices[symbol]
		holdings := decimal.Zero
		if remaining > 0 && !closing.IsZero() {
			holdings = closing.Mul(decimal.NewFromInt(remaining))
		}

		out = append(out, SharePnLRow{
			Symbol:              symbol,
			SharesBought:        boughtQty,
			SharesSold:          soldQty,
			SharesRemaining:     remaining,
			AvgBuyPrice:         avgBuy,
			AvgSalePrice:        avgSale,
			AvgCostOfSoldShares: avgCost,
			ProfitPerShare:      profitPerShare,
			NetProfit:           netProfit,
			TotalInvestment:     totalInvestment,
			CurrentInvestment:   currentInvestment,
			ClosingPrice:        closing,
			Holdings:            holdings,
		})
	}
	return out, nil
}

func groupBySymbol(rows []ledger.EnrichedTransaction) map[string][]ledger.EnrichedTransaction {
	out := make(map[string][]ledger.EnrichedTransaction)
	for _, row := range rows {
		out[row.Symbol] = append(out[row.Symbol], row)
	}
	return out
}
