package reports

import (
	"context"
	"time"

	concpool "github.com/sourcegraph/conc/pool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/foliostack/tradeledger/internal/capitalgains"
	"github.com/foliostack/tradeledger/internal/ledger"
	"github.com/foliostack/tradeledger/internal/marketdata"
	"github.com/foliostack/tradeledger/internal/observability"
	"github.com/foliostack/tradeledger/internal/tabular"
	"github.com/foliostack/tradeledger/internal/telemetry"
)

// Output carries the computed reports for one unit before write-back.
type Output struct {
	SharePnL []SharePnLRow
	DailyPnL []DailyPnLRow
	Taxation capitalgains.Result
}

// Runner computes the derived sheets for a unit and writes them back in
// one pass. Aggregators run concurrently; if any fails the unit fails and
// nothing is written.
type Runner struct {
	store     tabular.Store
	oracle    marketdata.Oracle
	sheetRows metric.Int64Counter
}

func NewRunner(store tabular.Store, oracle marketdata.Oracle) *Runner {
	runner := new(Runner)
	runner.store = store
	runner.oracle = oracle
	runner.sheetRows, _ = otel.Meter("reports").Int64Counter("sheet.rows",
		metric.WithDescription("Rows written back per report sheet"),
		metric.WithUnit("{row}"))
	return runner
}

// Run builds all reports from the enriched ledger and writes the four
// derived sheets. Write-back happens only after every aggregator succeeds.
func (r *Runner) Run(ctx context.Context, unitID string, rows []ledger.EnrichedTransaction) (*Output, error) {
	output := new(Output)

	workers := concpool.New().WithContext(ctx).WithCancelOnError().WithMaxGoroutines(3)
	workers.Go(func(ctx context.Context) error {
		return observeStage(telemetry.StageSecurityPnl, func() error {
			sharePnL, err := BuildSharePnL(ctx, rows, r.oracle)
			if err != nil {
				return err
			}
			output.SharePnL = sharePnL
			return nil
		})
	})
	workers.Go(func(ctx context.Context) error {
		return observeStage(telemetry.StageDailyPnl, func() error {
			dailyPnL, err := BuildDailyPnL(ctx, rows, r.oracle)
			if err != nil {
				return err
			}
			output.DailyPnL = dailyPnL
			return nil
		})
	})
	workers.Go(func(ctx context.Context) error {
		return observeStage(telemetry.StageCapitalGains, func() error {
			output.Taxation = BuildTaxation(rows)
			return nil
		})
	})
	if err := workers.Wait(); err != nil {
		observability.Log().Error("report aggregation failed",
			observability.Field{Key: "unit_id", Value: unitID},
			observability.Field{Key: "error", Value: err.Error()})
		return nil, err
	}

	if r.store != nil {
		if err := r.writeBack(ctx, unitID, rows, output); err != nil {
			return nil, err
		}
	}
	return output, nil
}

func observeStage(stage string, fn func() error) error {
	start := time.Now()
	err := fn()
	observability.Telemetry().ObserveHistogram("stage.duration",
		float64(time.Since(start).Milliseconds()), map[string]string{"stage": stage})
	return err
}

func (r *Runner) writeBack(ctx context.Context, unitID string, rows []ledger.EnrichedTransaction, output *Output) error {
	transactions := TransactionTable(rows)
	sharePnL := SharePnLTable(output.SharePnL)
	dailyPnL := DailyPnLTable(output.DailyPnL)
	taxation := TaxationTable(output.Taxation)

	write := func(sheet string, table tabular.Table, style tabular.StyleFunc) error {
		r.sheetRows.Add(ctx, int64(len(table.Rows)),
			metric.WithAttributes(telemetry.SheetAttributes(telemetry.Environment(), sheet)...))
		return r.store.Write(ctx, unitID, sheet, table, style)
	}
	writeErrs := []error{
		write(tabular.SheetTransactionDetails, transactions, TransactionStyle(transactions)),
		write(tabular.SheetSharePnL, sharePnL, ProfitStyle(sharePnL, "Net Profit")),
		write(tabular.SheetDailyPnL, dailyPnL, ProfitStyle(dailyPnL, "Daily Spend")),
		write(tabular.SheetTaxation, taxation, ProfitStyle(taxation, "Total")),
	}
	return observability.AggregateErrors("report write-back", writeErrs,
		observability.Field{Key: "unit_id", Value: unitID})
}
