package observability_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/foliostack/tradeledger/errs"
	"github.com/foliostack/tradeledger/internal/observability"
)

type recordingLogger struct {
	debugs int
	infos  int
	warns  int
	errors int
}

func (r *recordingLogger) Debug(string, ...observability.Field) { r.debugs++ }
func (r *recordingLogger) Info(string, ...observability.Field)  { r.infos++ }
func (r *recordingLogger) Warn(string, ...observability.Field)  { r.warns++ }
func (r *recordingLogger) Error(string, ...observability.Field) { r.errors++ }

func TestSetLoggerOverridesGlobal(t *testing.T) {
	recorder := new(recordingLogger)
	observability.SetLogger(recorder)

	observability.Log().Debug("test")
	observability.Log().Warn("test")
	require.Equal(t, 1, recorder.debugs)
	require.Equal(t, 1, recorder.warns)

	observability.SetLogger(nil)
	observability.Log().Info("noop")
	require.Equal(t, 0, recorder.infos)
}

type recordingMetrics struct {
	counters   int
	histograms int
	gauges     int
}

func (m *recordingMetrics) IncCounter(string, float64, map[string]string)       { m.counters++ }
func (m *recordingMetrics) ObserveHistogram(string, float64, map[string]string) { m.histograms++ }
func (m *recordingMetrics) SetGauge(string, float64, map[string]string)         { m.gauges++ }

func TestMetricsOverrides(t *testing.T) {
	recorder := new(recordingMetrics)
	observability.SetMetrics(recorder)

	metrics := observability.Telemetry()
	metrics.IncCounter("events", 1, nil)
	metrics.ObserveHistogram("latency", 2, nil)
	metrics.SetGauge("depth", 3, nil)

	require.Equal(t, 1, recorder.counters)
	require.Equal(t, 1, recorder.histograms)
	require.Equal(t, 1, recorder.gauges)

	observability.SetMetrics(nil)
	observability.Telemetry().IncCounter("noop", 1, nil)
	require.Equal(t, 1, recorder.counters)
}

func TestRuntimeMetricsSnapshot(t *testing.T) {
	metrics := observability.NewRuntimeMetrics()
	metrics.RecordTaskState("completed")
	metrics.RecordTaskState("completed")
	metrics.IncrementRetries("transient_io")
	metrics.AddStageMillis("enrich", 5)

	snapshot := metrics.Snapshot()
	require.Equal(t, 2, snapshot.TasksByState["completed"])
	require.Equal(t, 1, snapshot.RetriesByCode["transient_io"])
	require.EqualValues(t, 5, snapshot.StageMillis["enrich"])
}

func TestRuntimeMetricsCollectsGlobalInstruments(t *testing.T) {
	metrics := observability.NewRuntimeMetrics()
	observability.SetMetrics(metrics)
	defer observability.SetMetrics(nil)

	collector := observability.Telemetry()
	collector.IncCounter("task.state", 1, map[string]string{"state": "completed"})
	collector.IncCounter("task.state", 1, map[string]string{"state": "completed"})
	collector.IncCounter("task.retry", 1, map[string]string{"code": "transient_io"})
	collector.ObserveHistogram("stage.duration", 7, map[string]string{"stage": "enrich"})
	collector.ObserveHistogram("stage.duration", 3, map[string]string{"stage": "enrich"})
	// Unknown instruments and gauges are dropped.
	collector.IncCounter("pool.rejected", 1, nil)
	collector.SetGauge("pool.queue_depth", 4, nil)

	snapshot := metrics.Snapshot()
	require.Equal(t, 2, snapshot.TasksByState["completed"])
	require.Equal(t, 1, snapshot.RetriesByCode["transient_io"])
	require.EqualValues(t, 10, snapshot.StageMillis["enrich"])
	require.Len(t, snapshot.TasksByState, 1)
}

func TestAggregateErrorsClassifies(t *testing.T) {
	require.NoError(t, observability.AggregateErrors("writeback", []error{nil, nil}))

	transient := errs.New("store/write", errs.CodeTransientIO, errs.WithMessage("timeout"))
	err := observability.AggregateErrors("writeback", []error{nil, transient})
	require.Error(t, err)
	require.Equal(t, errs.CodeTransientIO, errs.CodeOf(err))

	invalid := errs.New("store/write", errs.CodeValidation, errs.WithMessage("bad sheet"))
	err = observability.AggregateErrors("writeback", []error{transient, invalid})
	require.Equal(t, errs.CodeValidation, errs.CodeOf(err))
	require.False(t, errs.Retryable(err))
}

func TestInMemoryTelemetryBusPublishSubscribe(t *testing.T) {
	bus := observability.NewInMemoryTelemetryBus(1)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	ch, err := bus.Subscribe(ctx)
	require.NoError(t, err)

	event := observability.TelemetryEvent{
		EventID:  "evt-1",
		Type:     observability.TelemetryEventTaskReceived,
		UnitID:   "unit-1",
		Metadata: map[string]any{"k": "v"},
	}
	require.NoError(t, bus.Publish(ctx, event))

	select {
	case got := <-ch:
		require.Equal(t, event.EventID, got.EventID)
		event.Metadata["k"] = "changed"
		require.Equal(t, "v", got.Metadata["k"])
	case <-ctx.Done():
		t.Fatal("did not receive telemetry event")
	}

	bus.Close()
	require.NoError(t, bus.Publish(ctx, event))
}

func TestDeadLetterQueueOfferAndDrain(t *testing.T) {
	queue := observability.NewDeadLetterQueue(2)

	queue.Offer(observability.DeadLetter{UnitID: "1"})
	queue.Offer(observability.DeadLetter{UnitID: "2"})
	queue.Offer(observability.DeadLetter{UnitID: "3"})

	require.Equal(t, 2, queue.Len())

	letters := queue.Drain()
	require.Len(t, letters, 2)
	require.Equal(t, "2", letters[0].UnitID)
	require.Equal(t, "3", letters[1].UnitID)
	require.Equal(t, 0, queue.Len())
}
