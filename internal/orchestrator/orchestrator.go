package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"github.com/sourcegraph/conc"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/foliostack/tradeledger/errs"
	"github.com/foliostack/tradeledger/internal/observability"
	"github.com/foliostack/tradeledger/internal/telemetry"
	"github.com/foliostack/tradeledger/internal/tracker"
	"github.com/foliostack/tradeledger/internal/workqueue"
	"github.com/foliostack/tradeledger/lib/async"
)

// Config tunes retry and identification behaviour for one worker.
type Config struct {
	WorkerID        string
	QueueName       string
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
}

func (c Config) normalize() Config {
	if c.WorkerID == "" {
		c.WorkerID = "worker-" + uuid.NewString()
	}
	if c.QueueName == "" {
		c.QueueName = "tradeledger.tasks"
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.InitialInterval <= 0 {
		c.InitialInterval = 500 * time.Millisecond
	}
	if c.MaxInterval <= 0 {
		c.MaxInterval = 30 * time.Second
	}
	if c.Multiplier <= 1 {
		c.Multiplier = 2
	}
	return c
}

// Orchestrator consumes task messages and settles every task into a
// terminal state: completed, failed, or re-enqueued with backoff.
type Orchestrator struct {
	cfg          Config
	queue        workqueue.Queue
	pipeline     *Pipeline
	trackerStore tracker.Store
	dlq          *observability.DeadLetterQueue
	bus          observability.TelemetryBus
	pool         *async.Pool

	loops   conc.WaitGroup
	retryWG sync.WaitGroup

	taskDuration metric.Float64Histogram
	retryCount   metric.Int64Histogram
	batchSize    metric.Int64Histogram
	errorCount   metric.Int64Counter
	queuePublish metric.Int64Counter
}

// New wires an orchestrator. dlq, bus and pool may be nil; a nil pool
// processes messages inline.
func New(cfg Config, queue workqueue.Queue, pipeline *Pipeline, trackerStore tracker.Store,
	dlq *observability.DeadLetterQueue, bus observability.TelemetryBus, pool *async.Pool) *Orchestrator {
	o := new(Orchestrator)
	o.cfg = cfg.normalize()
	o.queue = queue
	o.pipeline = pipeline
	o.trackerStore = trackerStore
	o.dlq = dlq
	o.bus = bus
	o.pool = pool

	meter := otel.Meter("orchestrator")
	o.taskDuration, _ = meter.Float64Histogram("task.processing.duration",
		metric.WithDescription("End-to-end task processing duration"),
		metric.WithUnit("ms"))
	o.retryCount, _ = meter.Int64Histogram("task.retry.count",
		metric.WithDescription("Retries consumed before a task settled"),
		metric.WithUnit("{retry}"))
	o.batchSize, _ = meter.Int64Histogram("ledger.batch.size",
		metric.WithDescription("Enriched ledger rows per completed unit"),
		metric.WithUnit("{row}"))
	o.errorCount, _ = meter.Int64Counter("task.errors",
		metric.WithDescription("Tasks settled as failed, by error class"))
	o.queuePublish, _ = meter.Int64Counter("queue.publish.count",
		metric.WithDescription("Retry republish attempts, by outcome"))
	return o
}

// Start begins consuming the queue. It returns once the consume loop is
// running; processing continues until ctx is done or Shutdown is called.
func (o *Orchestrator) Start(ctx context.Context) error {
	deliveries, err := o.queue.Consume(ctx)
	if err != nil {
		return fmt.Errorf("consume queue: %w", err)
	}
	o.loops.Go(func() {
		for delivery := range deliveries {
			o.dispatch(ctx, delivery)
		}
	})
	return nil
}

// Shutdown waits for in-flight work and pending retries to settle.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.loops.Wait()
	o.retryWG.Wait()
	if o.pool != nil {
		return o.pool.Shutdown(ctx)
	}
	return nil
}

func (o *Orchestrator) dispatch(ctx context.Context, delivery workqueue.Delivery) {
	handle := func(context.Context) error {
		o.processMessage(ctx, delivery)
		return nil
	}
	if o.pool == nil {
		_ = handle(ctx)
		return
	}
	if err := o.pool.Submit(ctx, handle); err != nil {
		observability.Log().Error("submit message to worker pool",
			observability.Field{Key: "message_id", Value: delivery.Message.ID},
			observability.Field{Key: "error", Value: err.Error()})
		delivery.Nack()
	}
}

// processMessage settles every task in the message and acknowledges the
// delivery once all of them are terminal.
func (o *Orchestrator) processMessage(ctx context.Context, delivery workqueue.Delivery) {
	for _, task := range delivery.Message.Tasks {
		o.processTask(ctx, task)
	}
	delivery.Ack()
}

func (o *Orchestrator) processTask(ctx context.Context, task workqueue.Task) {
	start := time.Now()
	attempt := task.RetryCount()

	o.emit(ctx, observability.TelemetryEventTaskReceived, observability.TelemetrySeverityInfo, task.UnitID,
		map[string]any{"attempt": attempt})
	o.observeState(telemetry.TaskStateReceived, task)
	o.observeState(telemetry.TaskStateRunning, task)

	record := tracker.NewRecord(task.UnitID, task.BackendType, o.cfg.WorkerID)
	if id := task.RecordID(); id != "" {
		record.ID = id
	}
	record.Title = task.Title
	record.Attempts = attempt + 1
	record.Status = tracker.StatusRunning
	o.persistRecord(ctx, record)

	result, err := o.pipeline.Process(ctx, task)
	elapsed := time.Since(start)
	if err != nil {
		o.settleFailure(ctx, task, record, err, elapsed)
		return
	}

	record.Status = tracker.StatusCompleted
	record.DataHash = result.Hash
	record.Duration = elapsed
	o.persistRecord(ctx, record)
	o.observeState(telemetry.TaskStateCompleted, task)
	o.taskDuration.Record(ctx, float64(elapsed.Milliseconds()),
		metric.WithAttributes(o.taskAttrs(task, telemetry.TaskStateCompleted)...))
	o.retryCount.Record(ctx, int64(attempt),
		metric.WithAttributes(o.taskAttrs(task, telemetry.TaskStateCompleted)...))

	if result.Skipped {
		observability.Log().Info("unit data unchanged, skipping reprocess",
			observability.Field{Key: "unit_id", Value: task.UnitID},
			observability.Field{Key: "data_hash", Value: result.Hash})
		o.emit(ctx, observability.TelemetryEventTaskSkipped, observability.TelemetrySeverityInfo, task.UnitID,
			map[string]any{"data_hash": result.Hash})
		return
	}

	o.batchSize.Record(ctx, int64(result.Rows),
		metric.WithAttributes(o.taskAttrs(task, telemetry.TaskStateCompleted)...))
	observability.Log().Info("task completed",
		observability.Field{Key: "unit_id", Value: task.UnitID},
		observability.Field{Key: "rows", Value: result.Rows},
		observability.Field{Key: "duration_ms", Value: elapsed.Milliseconds()})
	o.emit(ctx, observability.TelemetryEventTaskCompleted, observability.TelemetrySeverityInfo, task.UnitID,
		map[string]any{"rows": result.Rows, "data_hash": result.Hash})
}

func (o *Orchestrator) settleFailure(ctx context.Context, task workqueue.Task, record tracker.ExecutionRecord, cause error, elapsed time.Duration) {
	code := errs.CodeOf(cause)
	attempt := task.RetryCount()

	if errs.Retryable(cause) && attempt < o.cfg.MaxRetries {
		o.scheduleRetry(ctx, task, record, cause)
		return
	}

	record.Status = tracker.StatusFailed
	record.ErrorCode = string(code)
	record.ErrorMessage = cause.Error()
	record.Duration = elapsed
	o.persistRecord(ctx, record)
	o.observeState(telemetry.TaskStateFailed, task)
	o.taskDuration.Record(ctx, float64(elapsed.Milliseconds()),
		metric.WithAttributes(o.taskAttrs(task, telemetry.TaskStateFailed)...))
	o.retryCount.Record(ctx, int64(attempt),
		metric.WithAttributes(o.taskAttrs(task, telemetry.TaskStateFailed)...))
	reason := "non_retryable"
	if errs.Retryable(cause) {
		reason = "retries_exhausted"
	}
	o.errorCount.Add(ctx, 1,
		metric.WithAttributes(telemetry.ErrorAttributes(telemetry.Environment(), string(code), reason)...))

	observability.Log().Error("task failed",
		observability.Field{Key: "unit_id", Value: task.UnitID},
		observability.Field{Key: "code", Value: string(code)},
		observability.Field{Key: "attempts", Value: attempt + 1},
		observability.Field{Key: "error", Value: cause.Error()})

	// Validation failures are caller errors; they never reach the DLQ.
	if code == errs.CodeValidation || code == errs.CodeInvalid {
		return
	}
	o.publishDeadLetter(ctx, task, code, cause, attempt+1)
}

func (o *Orchestrator) scheduleRetry(ctx context.Context, task workqueue.Task, record tracker.ExecutionRecord, cause error) {
	attempt := task.RetryCount()
	delay := o.retryDelay(attempt)

	// The record goes back to received while the task waits for redelivery.
	record.Status = tracker.StatusReceived
	o.persistRecord(ctx, record)
	observability.Telemetry().IncCounter("task.retry",
		1, map[string]string{"code": string(errs.CodeOf(cause))})

	observability.Log().Warn("retry scheduled",
		observability.Field{Key: "unit_id", Value: task.UnitID},
		observability.Field{Key: "attempt", Value: attempt + 1},
		observability.Field{Key: "delay_ms", Value: delay.Milliseconds()},
		observability.Field{Key: "code", Value: string(errs.CodeOf(cause))})
	o.emit(ctx, observability.TelemetryEventRetryScheduled, observability.TelemetrySeverityWarn, task.UnitID,
		map[string]any{
			"attempt":  attempt + 1,
			"delay_ms": delay.Milliseconds(),
			"code":     string(errs.CodeOf(cause)),
		})

	retried := task.WithRetryCount(attempt + 1).WithRecordID(record.ID)
	o.retryWG.Add(1)
	go func() {
		defer o.retryWG.Done()
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
		msg := workqueue.Message{
			ID:       uuid.NewString(),
			Tasks:    []workqueue.Task{retried},
			IssuedAt: time.Now().UTC(),
		}
		if err := o.queue.Publish(ctx, msg); err != nil {
			o.queuePublish.Add(ctx, 1, metric.WithAttributes(
				telemetry.QueueAttributes(telemetry.Environment(), o.cfg.QueueName, "error")...))
			observability.Log().Error("retry publish failed",
				observability.Field{Key: "unit_id", Value: task.UnitID},
				observability.Field{Key: "error", Value: err.Error()})
			record.Status = tracker.StatusFailed
			record.ErrorCode = string(errs.CodeOf(err))
			record.ErrorMessage = err.Error()
			o.persistRecord(ctx, record)
			o.publishDeadLetter(ctx, retried, errs.CodeOf(err), err, attempt+1)
			return
		}
		o.queuePublish.Add(ctx, 1, metric.WithAttributes(
			telemetry.QueueAttributes(telemetry.Environment(), o.cfg.QueueName, "ok")...))
	}()
}

// retryDelay derives the delay for the next attempt from an exponential
// schedule. attempt is zero-based.
func (o *Orchestrator) retryDelay(attempt int) time.Duration {
	schedule := backoff.NewExponentialBackOff()
	schedule.InitialInterval = o.cfg.InitialInterval
	schedule.MaxInterval = o.cfg.MaxInterval
	schedule.Multiplier = o.cfg.Multiplier
	schedule.Reset()

	delay := schedule.NextBackOff()
	for i := 0; i < attempt; i++ {
		delay = schedule.NextBackOff()
	}
	return delay
}

func (o *Orchestrator) persistRecord(ctx context.Context, record tracker.ExecutionRecord) {
	if o.trackerStore == nil {
		return
	}
	if err := o.trackerStore.Record(ctx, record); err != nil {
		observability.Log().Error("persist execution record",
			observability.Field{Key: "unit_id", Value: record.UnitID},
			observability.Field{Key: "status", Value: string(record.Status)},
			observability.Field{Key: "error", Value: err.Error()})
	}
}

func (o *Orchestrator) publishDeadLetter(ctx context.Context, task workqueue.Task, code errs.Code, cause error, attempts int) {
	if o.dlq == nil {
		return
	}
	o.dlq.Offer(observability.DeadLetter{
		UnitID:   task.UnitID,
		Code:     string(code),
		Reason:   cause.Error(),
		Attempts: attempts,
		FailedAt: time.Now().UTC(),
		Payload: map[string]any{
			"backend_type": task.BackendType,
			"title":        task.Title,
			"metadata":     task.Metadata,
		},
	})
	o.emit(ctx, observability.TelemetryEventDLQPublished, observability.TelemetrySeverityError, task.UnitID,
		map[string]any{"code": string(code), "attempts": attempts})
}

func (o *Orchestrator) emit(ctx context.Context, eventType observability.TelemetryEventType,
	severity observability.TelemetrySeverity, unitID string, metadata map[string]any) {
	if o.bus == nil {
		return
	}
	_ = o.bus.Publish(ctx, observability.TelemetryEvent{
		EventID:   uuid.NewString(),
		Type:      eventType,
		Severity:  severity,
		Timestamp: time.Now().UTC(),
		UnitID:    unitID,
		Metadata:  metadata,
	})
}

func (o *Orchestrator) observeState(state string, task workqueue.Task) {
	observability.Telemetry().IncCounter("task.state",
		1, map[string]string{"state": state, "backend_type": task.BackendType})
}

func (o *Orchestrator) taskAttrs(task workqueue.Task, state string) []attribute.KeyValue {
	return telemetry.TaskAttributes(telemetry.Environment(), task.BackendType, state)
}
