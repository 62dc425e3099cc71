// Package orchestrator drives task processing: it consumes queued tasks,
// runs the ledger pipeline and settles each task into a terminal state.
package orchestrator

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/foliostack/tradeledger/errs"
	"github.com/foliostack/tradeledger/internal/feeschedule"
	"github.com/foliostack/tradeledger/internal/ledger"
	"github.com/foliostack/tradeledger/internal/marketdata"
	"github.com/foliostack/tradeledger/internal/observability"
	"github.com/foliostack/tradeledger/internal/reports"
	"github.com/foliostack/tradeledger/internal/tabular"
	"github.com/foliostack/tradeledger/internal/telemetry"
	"github.com/foliostack/tradeledger/internal/tracker"
	"github.com/foliostack/tradeledger/internal/workqueue"
)

// metadataParticipant selects the fee schedule for a task.
const metadataParticipant = "participant"

// Pipeline executes the processing stages for one task.
type Pipeline struct {
	sheets             tabular.Store
	fees               *feeschedule.Provider
	trackerStore       tracker.Store
	oracle             marketdata.Oracle
	oracleTTL          time.Duration
	bus                observability.TelemetryBus
	defaultParticipant string

	stageDuration metric.Float64Histogram
}

// PipelineResult reports what a pipeline run did with the unit.
type PipelineResult struct {
	// Skipped is true when the unit's data matches its last completed run.
	Skipped bool
	Hash    string
	Rows    int
}

// NewPipeline wires the pipeline stages. bus may be nil to disable
// telemetry events. defaultParticipant is used when a task carries no
// participant metadata.
func NewPipeline(sheets tabular.Store, fees *feeschedule.Provider, trackerStore tracker.Store,
	oracle marketdata.Oracle, oracleTTL time.Duration, bus observability.TelemetryBus,
	defaultParticipant string) *Pipeline {
	pipeline := new(Pipeline)
	pipeline.sheets = sheets
	pipeline.fees = fees
	pipeline.trackerStore = trackerStore
	pipeline.oracle = oracle
	pipeline.oracleTTL = oracleTTL
	pipeline.bus = bus
	pipeline.defaultParticipant = defaultParticipant
	pipeline.stageDuration, _ = otel.Meter("pipeline").Float64Histogram("stage.duration",
		metric.WithDescription("Wall-clock duration per pipeline stage"),
		metric.WithUnit("ms"))
	return pipeline
}

// Process runs ingest, duplicate detection, enrichment and report
// generation for the task's unit.
func (p *Pipeline) Process(ctx context.Context, task workqueue.Task) (PipelineResult, error) {
	var raw tabular.Table
	err := p.stage(ctx, telemetry.StageIngest, task.UnitID, func() error {
		table, err := p.sheets.Read(ctx, task.UnitID, tabular.SheetRawData)
		if err != nil {
			if errs.CodeOf(err) == errs.CodeNotFound {
				return errs.New("orchestrator/ingest", errs.CodeValidation,
					errs.WithMessage("raw data sheet missing"),
					errs.WithField("unit_id", task.UnitID),
					errs.WithCause(err))
			}
			return err
		}
		raw = table
		return p.mergeImport(ctx, task.UnitID, &raw)
	})
	if err != nil {
		return PipelineResult{}, err
	}

	hash, err := tracker.HashTable(raw)
	if err != nil {
		return PipelineResult{}, err
	}
	latest, err := p.trackerStore.LatestCompleted(ctx, task.UnitID)
	if err != nil {
		return PipelineResult{}, err
	}
	if !tracker.DataHasChanged(latest, hash) {
		return PipelineResult{Skipped: true, Hash: hash}, nil
	}

	var enriched []ledger.EnrichedTransaction
	err = p.stage(ctx, telemetry.StageEnrich, task.UnitID, func() error {
		rows, err := p.enrich(raw, task)
		if err != nil {
			return err
		}
		enriched = rows
		return nil
	})
	if err != nil {
		return PipelineResult{}, err
	}

	oracle := p.oracle
	if oracle != nil {
		oracle = marketdata.NewCachedOracle(oracle, p.oracleTTL)
	}
	runner := reports.NewRunner(p.sheets, oracle)
	if _, err := runner.Run(ctx, task.UnitID, enriched); err != nil {
		p.stageFailed(ctx, telemetry.StageCapitalGains, task.UnitID, err)
		return PipelineResult{}, err
	}

	return PipelineResult{Hash: hash, Rows: len(enriched)}, nil
}

// mergeImport folds freshly fetched export rows into the raw table. The
// producer drops them on the import sheet; only rows not already present
// are appended, and an all-duplicate import leaves the table untouched.
func (p *Pipeline) mergeImport(ctx context.Context, unitID string, raw *tabular.Table) error {
	incoming, err := p.sheets.Read(ctx, unitID, tabular.SheetRawDataImport)
	if err != nil {
		if errs.CodeOf(err) == errs.CodeNotFound {
			return nil
		}
		return err
	}
	if ledger.ContainsAll(*raw, incoming) {
		observability.Log().Debug("import rows already present",
			observability.Field{Key: "unit_id", Value: unitID},
			observability.Field{Key: "rows", Value: len(incoming.Rows)})
		return nil
	}
	merged, added := ledger.MergeNewRows(*raw, incoming)
	if err := p.sheets.Write(ctx, unitID, tabular.SheetRawData, merged, reports.HeaderStyle()); err != nil {
		return err
	}
	observability.Log().Info("merged imported rows",
		observability.Field{Key: "unit_id", Value: unitID},
		observability.Field{Key: "added", Value: added})
	*raw = merged
	return nil
}

func (p *Pipeline) enrich(raw tabular.Table, task workqueue.Task) ([]ledger.EnrichedTransaction, error) {
	normalizer := ledger.NewNormalizer()
	txs, err := normalizer.Normalize(raw)
	if err != nil {
		return nil, err
	}

	participant := task.Metadata[metadataParticipant]
	if participant == "" {
		participant = p.defaultParticipant
	}
	schedule, err := p.fees.Resolve(participant)
	if err != nil {
		return nil, err
	}

	enriched := ledger.Enrich(txs)
	ledger.ClassifyIntraday(enriched)
	ledger.NewCalculator(schedule).Apply(enriched, ledger.NewDPLedger())
	return enriched, nil
}

func (p *Pipeline) stage(ctx context.Context, name, unitID string, fn func() error) error {
	start := time.Now()
	err := fn()
	elapsed := time.Since(start)
	observability.Telemetry().ObserveHistogram("stage.duration",
		float64(elapsed.Milliseconds()), map[string]string{"stage": name})
	p.stageDuration.Record(ctx, float64(elapsed.Milliseconds()),
		metric.WithAttributes(telemetry.StageAttributes(telemetry.Environment(), name)...))
	if err != nil {
		p.stageFailed(ctx, name, unitID, err)
	}
	return err
}

func (p *Pipeline) stageFailed(ctx context.Context, stage, unitID string, err error) {
	observability.Log().Error("pipeline stage failed",
		observability.Field{Key: "stage", Value: stage},
		observability.Field{Key: "unit_id", Value: unitID},
		observability.Field{Key: "error", Value: err.Error()})
	if p.bus == nil {
		return
	}
	_ = p.bus.Publish(ctx, observability.TelemetryEvent{
		EventID:   uuid.NewString(),
		Type:      observability.TelemetryEventStageFailed,
		Severity:  observability.TelemetrySeverityError,
		Timestamp: time.Now().UTC(),
		UnitID:    unitID,
		Metadata: map[string]any{
			"stage": stage,
			"code":  string(errs.CodeOf(err)),
		},
	})
}
