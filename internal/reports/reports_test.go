package reports

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/foliostack/tradeledger/errs"
	"github.com/foliostack/tradeledger/internal/ledger"
	"github.com/foliostack/tradeledger/internal/marketdata"
	"github.com/foliostack/tradeledger/internal/tabular"
)

func day(d int) time.Time {
	return time.Date(2023, time.January, d, 0, 0, 0, 0, time.UTC)
}

func enriched(symbol string, date time.Time, tradeType ledger.TradeType, qty int64, price float64) ledger.EnrichedTransaction {
	signed := qty
	if tradeType == ledger.TradeSell {
		signed = -qty
	}
	net := decimal.NewFromFloat(price).Mul(decimal.NewFromInt(signed))
	return ledger.EnrichedTransaction{
		Transaction: ledger.Transaction{
			Date:      date,
			Symbol:    symbol,
			Exchange:  "NSE",
			Type:      tradeType,
			Quantity:  signed,
			Price:     decimal.NewFromFloat(price),
			NetAmount: net,
		},
		FinalAmount: net,
	}
}

type stubOracle struct {
	quotes map[string]map[string]marketdata.Quote
	prices map[string]decimal.Decimal
	err    error
}

func (o *stubOracle) BatchQuote(ctx context.Context, symbol string, dates []time.Time) (map[string]marketdata.Quote, error) {
	if o.err != nil {
		return nil, o.err
	}
	out := make(map[string]marketdata.Quote)
	for _, d := range dates {
		key := d.Format(marketdata.DateLayout)
		if q, ok := o.quotes[symbol][key]; ok {
			out[key] = q
		}
	}
	return out, nil
}

func (o *stubOracle) BatchCurrentPrice(ctx context.Context, symbols []string) (map[string]decimal.Decimal, error) {
	if o.err != nil {
		return nil, o.err
	}
	out := make(map[string]decimal.Decimal)
	for _, s := range symbols {
		if p, ok := o.prices[s]; ok {
			out[s] = p
		}
	}
	return out, nil
}

func TestBuildSharePnL(t *testing.T) {
	rows := []ledger.EnrichedTransaction{
		enriched("TCS", day(10), ledger.TradeBuy, 10, 100),
		enriched("TCS", day(11), ledger.TradeSell, 4, 150),
	}
	oracle := &stubOracle{prices: map[string]decimal.Decimal{"TCS": decimal.NewFromInt(200)}}

	out, err := BuildSharePnL(context.Background(), rows, oracle)
	require.NoError(t, err)
	require.Len(t, out, 1)

	row := out[0]
	require.Equal(t, "TCS", row.Symbol)
	require.EqualValues(t, 10, row.SharesBought)
	require.EqualValues(t, 4, row.SharesSold)
	require.EqualValues(t, 6, row.SharesRemaining)
	require.True(t, row.AvgBuyPrice.Equal(decimal.NewFromInt(100)), "avg buy %s", row.AvgBuyPrice)
	require.True(t, row.AvgSalePrice.Equal(decimal.NewFromInt(150)), "avg sale %s", row.AvgSalePrice)
	require.True(t, row.AvgCostOfSoldShares.Equal(decimal.NewFromInt(100)), "avg cost %s", row.AvgCostOfSoldShares)
	require.True(t, row.ProfitPerShare.Equal(decimal.NewFromInt(50)), "profit per share %s", row.ProfitPerShare)
	require.True(t, row.NetProfit.Equal(decimal.NewFromInt(200)), "net profit %s", row.NetProfit)
	require.True(t, row.TotalInvestment.Equal(decimal.NewFromInt(1000)), "total investment %s", row.TotalInvestment)
	require.True(t, row.CurrentInvestment.Equal(decimal.NewFromInt(400)), "current investment %s", row.CurrentInvestment)
	require.True(t, row.ClosingPrice.Equal(decimal.NewFromInt(200)))
	require.True(t, row.Holdings.Equal(decimal.NewFromInt(1200)), "holdings %s", row.Holdings)
}

func TestBuildSharePnLWithoutOracle(t *testing.T) {
	rows := []ledger.EnrichedTransaction{
		enriched("TCS", day(10), ledger.TradeBuy, 10, 100),
	}
	out, err := BuildSharePnL(context.Background(), rows, nil)
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.True(t, out[0].ClosingPrice.IsZero())
	require.True(t, out[0].Holdings.IsZero())
}

func TestBuildDailyPnL(t *testing.T) {
	rows := []ledger.EnrichedTransaction{
		enriched("TCS", day(10), ledger.TradeBuy, 10, 100),
		enriched("INFY", day(10), ledger.TradeBuy, 5, 200),
		enriched("TCS", day(11), ledger.TradeSell, 4, 150),
	}
	oracle := &stubOracle{
		quotes: map[string]map[string]marketdata.Quote{
			"TCS": {
				"2023-01-10": {Open: decimal.NewFromInt(98), Close: decimal.NewFromInt(102), Volume: 1200},
			},
		},
	}

	out, err := BuildDailyPnL(context.Background(), rows, oracle)
	require.NoError(t, err)
	require.Len(t, out, 3)

	require.Equal(t, "INFY", out[0].Symbol)
	require.Equal(t, "TCS", out[1].Symbol)
	require.Equal(t, day(11), out[2].Date)

	require.True(t, out[0].DailySpend.Equal(decimal.NewFromInt(1000)), "spend %s", out[0].DailySpend)
	require.True(t, out[1].DailySpend.Equal(decimal.NewFromInt(2000)), "spend %s", out[1].DailySpend)
	require.True(t, out[2].DailySpend.Equal(decimal.NewFromInt(-600)), "spend %s", out[2].DailySpend)

	require.True(t, out[1].Close.Equal(decimal.NewFromInt(102)))
	require.EqualValues(t, 1200, out[1].Volume)
	require.True(t, out[2].Close.IsZero())
}

func TestBuildDailyPnLWeightedAverage(t *testing.T) {
	rows := []ledger.EnrichedTransaction{
		enriched("TCS", day(10), ledger.TradeBuy, 10, 100),
		enriched("TCS", day(10), ledger.TradeSell, 5, 130),
	}
	out, err := BuildDailyPnL(context.Background(), rows, nil)
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.EqualValues(t, 15, out[0].Quantity)
	require.True(t, out[0].AvgPrice.Equal(decimal.NewFromInt(110)), "avg %s", out[0].AvgPrice)
	require.True(t, out[0].AmountInvested.Equal(decimal.NewFromInt(350)), "invested %s", out[0].AmountInvested)
}

func TestRunnerWritesAllSheets(t *testing.T) {
	store := tabular.NewMemoryStore()
	oracle := &stubOracle{prices: map[string]decimal.Decimal{"TCS": decimal.NewFromInt(200)}}
	runner := NewRunner(store, oracle)

	rows := []ledger.EnrichedTransaction{
		enriched("TCS", day(10), ledger.TradeBuy, 10, 100),
		enriched("TCS", day(11), ledger.TradeSell, 4, 150),
	}
	output, err := runner.Run(context.Background(), "unit-1", rows)
	require.NoError(t, err)
	require.Len(t, output.SharePnL, 1)
	require.Len(t, output.DailyPnL, 2)

	names, err := store.SheetNames(context.Background(), "unit-1")
	require.NoError(t, err)
	require.Equal(t, []string{
		tabular.SheetTransactionDetails,
		tabular.SheetSharePnL,
		tabular.SheetDailyPnL,
		tabular.SheetTaxation,
	}, names)

	taxation, err := store.Read(context.Background(), "unit-1", tabular.SheetTaxation)
	require.NoError(t, err)
	require.Len(t, taxation.Rows, 1)
	require.Equal(t, "TCS", taxation.Rows[0][0])
	require.Equal(t, "FY 2022-23", taxation.Rows[0][1])
}

func TestRunnerFailsWithoutPartialWrite(t *testing.T) {
	store := tabular.NewMemoryStore()
	oracle := &stubOracle{err: errs.New("test", errs.CodeTransientIO, errs.WithMessage("oracle down"))}
	runner := NewRunner(store, oracle)

	rows := []ledger.EnrichedTransaction{
		enriched("TCS", day(10), ledger.TradeBuy, 10, 100),
	}
	_, err := runner.Run(context.Background(), "unit-1", rows)
	require.Error(t, err)

	_, err = store.SheetNames(context.Background(), "unit-1")
	require.Error(t, err)
}

func TestTransactionStyle(t *testing.T) {
	table := TransactionTable([]ledger.EnrichedTransaction{
		enriched("TCS", day(10), ledger.TradeBuy, 10, 100),
		enriched("TCS", day(11), ledger.TradeSell, 4, 150),
	})
	style := TransactionStyle(table)
	typeCol := table.ColumnIndex("Type")

	require.True(t, style(0, 0, "Date").Bold)
	require.Equal(t, colorBuy, style(1, typeCol, table.Rows[0][typeCol]).Background)
	require.Equal(t, colorSell, style(2, typeCol, table.Rows[1][typeCol]).Background)
	require.Empty(t, style(1, 0, table.Rows[0][0]).Background)
}

func TestProfitStyle(t *testing.T) {
	table := SharePnLTable([]SharePnLRow{
		{Symbol: "TCS", NetProfit: decimal.NewFromInt(200)},
		{Symbol: "OLDCO", NetProfit: decimal.NewFromInt(-50)},
	})
	style := ProfitStyle(table, "Net Profit")
	col := table.ColumnIndex("Net Profit")

	require.Equal(t, colorProfit, style(1, col, table.Rows[0][col]).FontColor)
	require.Equal(t, colorLoss, style(2, col, table.Rows[1][col]).FontColor)
	require.Empty(t, style(1, 0, "TCS").FontColor)
}
