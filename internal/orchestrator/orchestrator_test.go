package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/foliostack/tradeledger/errs"
	"github.com/foliostack/tradeledger/internal/feeschedule"
	"github.com/foliostack/tradeledger/internal/marketdata"
	"github.com/foliostack/tradeledger/internal/observability"
	"github.com/foliostack/tradeledger/internal/tabular"
	"github.com/foliostack/tradeledger/internal/tracker"
	"github.com/foliostack/tradeledger/internal/workqueue"
)

const scheduleYAML = `
participants:
  zerodha:
    stt_rates:
      delivery: 0.001
      intraday: 0.00025
    brokerage:
      mode: percent
      rate: 0.0003
      cap: 20
    stamp_duty:
      delivery: 0.00015
      intraday: 0.00003
    dp_charges: 13.5
    gst_rate: 0.18
    sebi_charges: 0.000001
    exchange_transaction_charges:
      NSE: 0.0000345
`

type testOracle struct {
	prices map[string]decimal.Decimal
	err    error
}

func (o *testOracle) BatchQuote(ctx context.Context, symbol string, dates []time.Time) (map[string]marketdata.Quote, error) {
	if o.err != nil {
		return nil, o.err
	}
	return map[string]marketdata.Quote{}, nil
}

func (o *testOracle) BatchCurrentPrice(ctx context.Context, symbols []string) (map[string]decimal.Decimal, error) {
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

type fixture struct {
	sheets       *tabular.MemoryStore
	trackerStore *tracker.MemoryStore
	queue        *workqueue.MemoryQueue
	dlq          *observability.DeadLetterQueue
	bus          *observability.InMemoryTelemetryBus
	orch         *Orchestrator
}

func newFixture(t *testing.T, oracle marketdata.Oracle, cfg Config) *fixture {
	t.Helper()
	fees, err := feeschedule.Parse([]byte(scheduleYAML))
	require.NoError(t, err)

	f := &fixture{
		sheets:       tabular.NewMemoryStore(),
		trackerStore: tracker.NewMemoryStore(),
		queue:        workqueue.NewMemoryQueue(workqueue.MemoryConfig{BufferSize: 16}),
		dlq:          observability.NewDeadLetterQueue(16),
		bus:          observability.NewInMemoryTelemetryBus(64),
	}
	pipeline := NewPipeline(f.sheets, fees, f.trackerStore, oracle, time.Minute, f.bus, "zerodha")
	f.orch = New(cfg, f.queue, pipeline, f.trackerStore, f.dlq, f.bus, nil)
	t.Cleanup(func() {
		f.queue.Close()
		f.bus.Close()
	})
	return f
}

func seedRawData(t *testing.T, sheets *tabular.MemoryStore, unitID string) {
	t.Helper()
	table := tabular.Table{
		Header: []string{"Date", "Symbol", "Type", "Quantity", "Price"},
		Rows: [][]string{
			{"2023-01-10", "TCS", "BUY", "10", "100"},
			{"2023-01-11", "TCS", "SELL", "4", "150"},
		},
	}
	require.NoError(t, sheets.Write(context.Background(), unitID, tabular.SheetRawData, table, nil))
}

func publishTask(t *testing.T, queue *workqueue.MemoryQueue, unitID string) {
	t.Helper()
	msg := workqueue.Message{
		ID:       "msg-" + unitID,
		Tasks:    []workqueue.Task{{UnitID: unitID, BackendType: "sheets"}},
		IssuedAt: time.Now().UTC(),
	}
	require.NoError(t, queue.Publish(context.Background(), msg))
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for {
		if cond() {
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestOrchestratorCompletesTask(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	oracle := &testOracle{prices: map[string]decimal.Decimal{"TCS": decimal.NewFromInt(3500)}}
	f := newFixture(t, oracle, Config{WorkerID: "worker-test"})
	seedRawData(t, f.sheets, "unit-1")
	publishTask(t, f.queue, "unit-1")

	require.NoError(t, f.orch.Start(ctx))

	waitFor(t, 5*time.Second, func() bool {
		latest, err := f.trackerStore.LatestCompleted(ctx, "unit-1")
		return err == nil && latest != nil
	})

	latest, err := f.trackerStore.LatestCompleted(ctx, "unit-1")
	require.NoError(t, err)
	require.Equal(t, tracker.StatusCompleted, latest.Status)
	require.NotEmpty(t, latest.DataHash)
	require.Equal(t, "worker-test", latest.WorkerID)
	require.Equal(t, 1, latest.Attempts)

	names, err := f.sheets.SheetNames(ctx, "unit-1")
	require.NoError(t, err)
	require.Contains(t, names, tabular.SheetTransactionDetails)
	require.Contains(t, names, tabular.SheetSharePnL)
	require.Contains(t, names, tabular.SheetDailyPnL)
	require.Contains(t, names, tabular.SheetTaxation)

	require.Zero(t, f.dlq.Len())
	cancel()
	require.NoError(t, f.orch.Shutdown(context.Background()))
}

func TestOrchestratorSkipsDuplicateData(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	oracle := &testOracle{prices: map[string]decimal.Decimal{"TCS": decimal.NewFromInt(3500)}}
	f := newFixture(t, oracle, Config{})
	seedRawData(t, f.sheets, "unit-1")

	events, err := f.bus.Subscribe(ctx)
	require.NoError(t, err)

	publishTask(t, f.queue, "unit-1")
	require.NoError(t, f.orch.Start(ctx))

	waitFor(t, 5*time.Second, func() bool {
		latest, err := f.trackerStore.LatestCompleted(ctx, "unit-1")
		return err == nil && latest != nil
	})

	publishTask(t, f.queue, "unit-1")
	waitFor(t, 5*time.Second, func() bool {
		stats, err := f.trackerStore.Stats(ctx)
		return err == nil && stats.ByStatus[tracker.StatusCompleted] == 2
	})

	var skipped bool
	timeout := time.After(2 * time.Second)
	for !skipped {
		select {
		case event := <-events:
			if event.Type == observability.TelemetryEventTaskSkipped {
				skipped = true
			}
		case <-timeout:
			t.Fatal("expected skip telemetry event")
		}
	}

	history, err := f.trackerStore.History(ctx, "unit-1", 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, history[0].DataHash, history[1].DataHash)

	cancel()
	require.NoError(t, f.orch.Shutdown(context.Background()))
}

func TestOrchestratorMergesImportedRows(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	oracle := &testOracle{prices: map[string]decimal.Decimal{"TCS": decimal.NewFromInt(3500)}}
	f := newFixture(t, oracle, Config{})
	seedRawData(t, f.sheets, "unit-1")

	// One row already present, one genuinely new.
	importTable := tabular.Table{
		Header: []string{"Date", "Symbol", "Type", "Quantity", "Price"},
		Rows: [][]string{
			{"2023-01-11", "TCS", "SELL", "4", "150"},
			{"2023-01-12", "TCS", "SELL", "2", "160"},
		},
	}
	require.NoError(t, f.sheets.Write(ctx, "unit-1", tabular.SheetRawDataImport, importTable, nil))

	publishTask(t, f.queue, "unit-1")
	require.NoError(t, f.orch.Start(ctx))

	waitFor(t, 5*time.Second, func() bool {
		latest, err := f.trackerStore.LatestCompleted(ctx, "unit-1")
		return err == nil && latest != nil
	})

	raw, err := f.sheets.Read(ctx, "unit-1", tabular.SheetRawData)
	require.NoError(t, err)
	require.Len(t, raw.Rows, 3)
	require.Equal(t, "2023-01-12", raw.Rows[2][0])

	transactions, err := f.sheets.Read(ctx, "unit-1", tabular.SheetTransactionDetails)
	require.NoError(t, err)
	require.Len(t, transactions.Rows, 3)

	// A second run sees the import fully contained and skips reprocessing.
	publishTask(t, f.queue, "unit-1")
	waitFor(t, 5*time.Second, func() bool {
		stats, err := f.trackerStore.Stats(ctx)
		return err == nil && stats.ByStatus[tracker.StatusCompleted] == 2
	})
	raw, err = f.sheets.Read(ctx, "unit-1", tabular.SheetRawData)
	require.NoError(t, err)
	require.Len(t, raw.Rows, 3)

	cancel()
	require.NoError(t, f.orch.Shutdown(context.Background()))
}

func TestOrchestratorValidationFailureIsTerminal(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f := newFixture(t, &testOracle{}, Config{MaxRetries: 3, InitialInterval: time.Millisecond})
	// No raw data seeded: ingest fails validation.
	publishTask(t, f.queue, "unit-missing")
	require.NoError(t, f.orch.Start(ctx))

	waitFor(t, 5*time.Second, func() bool {
		history, err := f.trackerStore.History(ctx, "unit-missing", 10)
		return err == nil && len(history) == 1 && history[0].Status == tracker.StatusFailed
	})

	history, err := f.trackerStore.History(ctx, "unit-missing", 10)
	require.NoError(t, err)
	require.Equal(t, tracker.StatusFailed, history[0].Status)
	require.Equal(t, string(errs.CodeValidation), history[0].ErrorCode)
	require.Equal(t, 1, history[0].Attempts)

	// Validation failures never retry and never dead-letter.
	require.Zero(t, f.queue.Len())
	require.Zero(t, f.dlq.Len())

	cancel()
	require.NoError(t, f.orch.Shutdown(context.Background()))
}

func TestOrchestratorRetriesThenDeadLetters(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	oracle := &testOracle{err: errs.New("marketdata/http", errs.CodeTransientIO, errs.WithMessage("oracle down"))}
	f := newFixture(t, oracle, Config{
		MaxRetries:      2,
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
	})
	seedRawData(t, f.sheets, "unit-1")
	publishTask(t, f.queue, "unit-1")
	require.NoError(t, f.orch.Start(ctx))

	waitFor(t, 10*time.Second, func() bool {
		history, err := f.trackerStore.History(ctx, "unit-1", 10)
		return err == nil && len(history) == 1 && history[0].Status == tracker.StatusFailed
	})

	// All three attempts settle into one record carried across retries.
	history, err := f.trackerStore.History(ctx, "unit-1", 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, tracker.StatusFailed, history[0].Status)
	require.Equal(t, string(errs.CodeTransientIO), history[0].ErrorCode)
	require.Equal(t, 3, history[0].Attempts)

	require.Equal(t, 1, f.dlq.Len())
	letters := f.dlq.Drain()
	require.Equal(t, "unit-1", letters[0].UnitID)
	require.Equal(t, string(errs.CodeTransientIO), letters[0].Code)
	require.Equal(t, 3, letters[0].Attempts)

	cancel()
	require.NoError(t, f.orch.Shutdown(context.Background()))
}

func TestRetryDelayGrows(t *testing.T) {
	o := New(Config{
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     time.Second,
		Multiplier:      2,
	}, nil, nil, nil, nil, nil, nil)

	first := o.retryDelay(0)
	third := o.retryDelay(2)
	require.Greater(t, third, first)
	require.LessOrEqual(t, third, 2*time.Second)
}
