package observability

import "sync"

// Metrics provides counters, gauges, and histogram recording primitives.
type Metrics interface {
	IncCounter(name string, value float64, labels map[string]string)
	ObserveHistogram(name string, value float64, labels map[string]string)
	SetGauge(name string, value float64, labels map[string]string)
}

var defaultMetrics Metrics = noopMetrics{}

// SetMetrics overrides the global metrics implementation used by the system.
func SetMetrics(metrics Metrics) {
	if metrics == nil {
		defaultMetrics = noopMetrics{}
		return
	}
	defaultMetrics = metrics
}

// Telemetry returns the current global metrics collector.
func Telemetry() Metrics {
	return defaultMetrics
}

type noopMetrics struct{}

func (noopMetrics) IncCounter(string, float64, map[string]string)       {}
func (noopMetrics) ObserveHistogram(string, float64, map[string]string) {}
func (noopMetrics) SetGauge(string, float64, map[string]string)         {}

// PipelineMetricsSnapshot captures pipeline-focused runtime counters.
type PipelineMetricsSnapshot struct {
	TasksByState  map[string]int   `json:"tasks_by_state"`
	RetriesByCode map[string]int   `json:"retries_by_code"`
	StageMillis   map[string]int64 `json:"stage_ms"`
}

// RuntimeMetrics accumulates pipeline metrics in-memory for periodic export.
type RuntimeMetrics struct {
	mu       sync.Mutex
	pipeline PipelineMetricsSnapshot
}

// NewRuntimeMetrics constructs a metrics accumulator with empty maps.
func NewRuntimeMetrics() *RuntimeMetrics {
	metrics := new(RuntimeMetrics)
	metrics.pipeline = PipelineMetricsSnapshot{
		TasksByState:  make(map[string]int),
		RetriesByCode: make(map[string]int),
		StageMillis:   make(map[string]int64),
	}
	return metrics
}

// RecordTaskState increments the counter for a terminal or transitional task state.
func (m *RuntimeMetrics) RecordTaskState(state string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pipeline.TasksByState[state]++
}

// IncrementRetries increments the retry counter for an error code.
func (m *RuntimeMetrics) IncrementRetries(code string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pipeline.RetriesByCode[code]++
}

// AddStageMillis accumulates wall-clock time spent in a pipeline stage.
func (m *RuntimeMetrics) AddStageMillis(stage string, delta int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pipeline.StageMillis[stage] += delta
}

// RuntimeMetrics doubles as the global Metrics collector: the pipeline
// instruments it recognises feed the snapshot, everything else is dropped.
const (
	metricTaskState     = "task.state"
	metricTaskRetry     = "task.retry"
	metricStageDuration = "stage.duration"
)

// IncCounter routes task-state and retry counters into the snapshot.
func (m *RuntimeMetrics) IncCounter(name string, value float64, labels map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch name {
	case metricTaskState:
		m.pipeline.TasksByState[labels["state"]] += int(value)
	case metricTaskRetry:
		m.pipeline.RetriesByCode[labels["code"]] += int(value)
	}
}

// ObserveHistogram accumulates stage durations into the snapshot.
func (m *RuntimeMetrics) ObserveHistogram(name string, value float64, labels map[string]string) {
	if name != metricStageDuration {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pipeline.StageMillis[labels["stage"]] += int64(value)
}

// SetGauge is accepted and dropped; the snapshot carries no gauges.
func (m *RuntimeMetrics) SetGauge(string, float64, map[string]string) {}

var _ Metrics = (*RuntimeMetrics)(nil)

// Snapshot copies the current pipeline metrics state for reporting.
func (m *RuntimeMetrics) Snapshot() PipelineMetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	snapshot := PipelineMetricsSnapshot{
		TasksByState:  make(map[string]int, len(m.pipeline.TasksByState)),
		RetriesByCode: make(map[string]int, len(m.pipeline.RetriesByCode)),
		StageMillis:   make(map[string]int64, len(m.pipeline.StageMillis)),
	}
	for k, v := range m.pipeline.TasksByState {
		snapshot.TasksByState[k] = v
	}
	for k, v := range m.pipeline.RetriesByCode {
		snapshot.RetriesByCode[k] = v
	}
	for k, v := range m.pipeline.StageMillis {
		snapshot.StageMillis[k] = v
	}
	return snapshot
}
