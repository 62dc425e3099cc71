package reports

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/foliostack/tradeledger/internal/capitalgains"
	"github.com/foliostack/tradeledger/internal/ledger"
	"github.com/foliostack/tradeledger/internal/tabular"
)

// Cell colors used by the sheet style functions.
const (
	colorBuy    = "#C6EFCE"
	colorSell   = "#FFC7CE"
	colorProfit = "#006100"
	colorLoss   = "#9C0006"
)

var transactionHeader = []string{
	"Date", "Symbol", "Exchange", "Type", "Quantity", "Price", "Net Amount",
	"Intraday Count", "STT", "SEBI Charges", "Exchange Charges", "Brokerage",
	"Stamp Duty", "DP Charges", "GST", "Final Amount",
}

var sharePnLHeader = []string{
	"Symbol", "Shares Bought", "Shares Sold", "Shares Remaining",
	"Avg Buy Price", "Avg Sale Price", "Avg Cost of Sold Shares",
	"Profit per Share", "Net Profit", "Total Investment",
	"Current Investment", "Closing Price", "Holdings",
}

var dailyPnLHeader = []string{
	"Date", "Symbol", "Avg Price", "Quantity", "Amount Invested",
	"Open", "High", "Low", "Close", "Volume", "Daily Spend",
}

var taxationHeader = []string{
	"Symbol", "Financial Year", "LTCG", "STCG", "Intraday Income", "Total",
}

func money(d decimal.Decimal) string { return d.StringFixed(2) }

func count(n int64) string { return strconv.FormatInt(n, 10) }

// TransactionTable renders the enriched ledger in canonical order.
func TransactionTable(rows []ledger.EnrichedTransaction) tabular.Table {
	table := tabular.Table{Header: append([]string(nil), transactionHeader...)}
	for _, row := range rows {
		table.Rows = append(table.Rows, []string{
			row.DateKey(),
			row.Symbol,
			row.Exchange,
			string(row.Type),
			count(row.Quantity),
			money(row.Price),
			money(row.NetAmount),
			count(row.IntradayCount),
			money(row.STT),
			money(row.SEBICharges),
			money(row.ExchangeCharges),
			money(row.Brokerage),
			money(row.StampDuty),
			money(row.DPCharges),
			money(row.GST),
			money(row.FinalAmount),
		})
	}
	return table
}

// SharePnLTable renders the per-symbol summary.
func SharePnLTable(rows []SharePnLRow) tabular.Table {
	table := tabular.Table{Header: append([]string(nil), sharePnLHeader...)}
	for _, row := range rows {
		table.Rows = append(table.Rows, []string{
			row.Symbol,
			count(row.SharesBought),
			count(row.SharesSold),
			count(row.SharesRemaining),
			money(row.AvgBuyPrice),
			money(row.AvgSalePrice),
			money(row.AvgCostOfSoldShares),
			money(row.ProfitPerShare),
			money(row.NetProfit),
			money(row.TotalInvestment),
			money(row.CurrentInvestment),
			money(row.ClosingPrice),
			money(row.Holdings),
		})
	}
	return table
}

// DailyPnLTable renders the per-day summary.
func DailyPnLTable(rows []DailyPnLRow) tabular.Table {
	table := tabular.Table{Header: append([]string(nil), dailyPnLHeader...)}
	for _, row := range rows {
		table.Rows = append(table.Rows, []string{
			row.Date.Format(ledger.DateLayout),
			row.Symbol,
			money(row.AvgPrice),
			count(row.Quantity),
			money(row.AmountInvested),
			money(row.Open),
			money(row.High),
			money(row.Low),
			money(row.Close),
			count(row.Volume),
			money(row.DailySpend),
		})
	}
	return table
}

// TaxationTable renders the classifier output.
func TaxationTable(result capitalgains.Result) tabular.Table {
	table := tabular.Table{Header: append([]string(nil), taxationHeader...)}
	for _, row := range result.Rows {
		table.Rows = append(table.Rows, []string{
			row.Symbol,
			row.FinancialYear,
			money(row.LTCG),
			money(row.STCG),
			money(row.IntradayIncome),
			money(row.Total()),
		})
	}
	return table
}

// TransactionStyle tints rows by trade direction.
func TransactionStyle(table tabular.Table) tabular.StyleFunc {
	typeCol := table.ColumnIndex("Type")
	return func(row, col int, value string) tabular.CellStyle {
		if row == 0 {
			return tabular.CellStyle{Bold: true}
		}
		if col != typeCol {
			return tabular.CellStyle{}
		}
		switch strings.ToUpper(strings.TrimSpace(value)) {
		case string(ledger.TradeBuy):
			return tabular.CellStyle{Background: colorBuy}
		case string(ledger.TradeSell):
			return tabular.CellStyle{Background: colorSell}
		}
		return tabular.CellStyle{}
	}
}

// ProfitStyle colors the named column by sign.
func ProfitStyle(table tabular.Table, column string) tabular.StyleFunc {
	target := table.ColumnIndex(column)
	return func(row, col int, value string) tabular.CellStyle {
		if row == 0 {
			return tabular.CellStyle{Bold: true}
		}
		if col != target {
			return tabular.CellStyle{}
		}
		amount, err := decimal.NewFromString(strings.TrimSpace(value))
		if err != nil || amount.IsZero() {
			return tabular.CellStyle{}
		}
		if amount.IsNegative() {
			return tabular.CellStyle{FontColor: colorLoss}
		}
		return tabular.CellStyle{FontColor: colorProfit}
	}
}

// HeaderStyle bolds the header row only.
func HeaderStyle() tabular.StyleFunc {
	return func(row, col int, value string) tabular.CellStyle {
		if row == 0 {
			return tabular.CellStyle{Bold: true}
		}
		return tabular.CellStyle{}
	}
}
