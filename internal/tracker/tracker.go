// Package tracker records task executions so reprocessing can be skipped
// when the underlying export has not changed.
package tracker

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of one task execution.
type Status string

const (
	StatusReceived  Status = "received"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// ExecutionRecord is one processing attempt for a unit.
type ExecutionRecord struct {
	ID            string
	UnitID        string
	Status        Status
	BackendType   string
	Title         string
	WorkerID      string
	DataHash      string
	ErrorCode     string
	ErrorMessage  string
	Attempts      int
	ExecutionTime time.Time
	Duration      time.Duration
	CreatedAt     time.Time
}

// NewRecord builds a record with a fresh identifier and timestamp.
func NewRecord(unitID, backendType, workerID string) ExecutionRecord {
	now := time.Now().UTC()
	return ExecutionRecord{
		ID:            uuid.NewString(),
		UnitID:        unitID,
		Status:        StatusReceived,
		BackendType:   backendType,
		WorkerID:      workerID,
		ExecutionTime: now,
		CreatedAt:     now,
	}
}

// Stats summarizes the execution history.
type Stats struct {
	TotalExecutions int64
	ByStatus        map[Status]int64
	DistinctUnits   int64
}

// Store persists execution records.
type Store interface {
	// Record upserts one execution record keyed by its id.
	Record(ctx context.Context, record ExecutionRecord) error
	// LatestCompleted returns the most recent completed execution for the
	// unit, or nil when none exists.
	LatestCompleted(ctx context.Context, unitID string) (*ExecutionRecord, error)
	// History lists executions for the unit, newest first.
	History(ctx context.Context, unitID string, limit int) ([]ExecutionRecord, error)
	// Stats aggregates counts across all recorded executions.
	Stats(ctx context.Context) (Stats, error)
}

// DataHasChanged reports whether the unit's data differs from its last
// completed execution. A unit with no completed run always counts as
// changed.
func DataHasChanged(latest *ExecutionRecord, hash string) bool {
	if latest == nil {
		return true
	}
	return latest.DataHash != hash
}
