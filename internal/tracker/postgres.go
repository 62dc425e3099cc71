package tracker

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists execution records in Postgres.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore constructs a store backed by the provided pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

const (
	executionInsertSQL = `
INSERT INTO execution_records (
    id,
    unit_id,
    status,
    backend_type,
    title,
    worker_id,
    data_hash,
    error_code,
    error_message,
    attempts,
    execution_time,
    duration_ms,
    created_at
)
VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), NULLIF($9, ''), $10, $11, $12, $13)
ON CONFLICT (id) DO UPDATE SET
    status = EXCLUDED.status,
    data_hash = EXCLUDED.data_hash,
    error_code = EXCLUDED.error_code,
    error_message = EXCLUDED.error_message,
    attempts = EXCLUDED.attempts,
    execution_time = EXCLUDED.execution_time,
    duration_ms = EXCLUDED.duration_ms;
`

	executionSelectColumns = `
    id,
    unit_id,
    status,
    backend_type,
    title,
    worker_id,
    data_hash,
    error_code,
    error_message,
    attempts,
    execution_time,
    duration_ms,
    created_at`

	executionLatestCompletedSQL = `
SELECT` + executionSelectColumns + `
FROM execution_records
WHERE unit_id = $1
  AND status = 'completed'
ORDER BY execution_time DESC
LIMIT 1;
`

	executionHistorySQL = `
SELECT` + executionSelectColumns + `
FROM execution_records
WHERE unit_id = $1
ORDER BY execution_time DESC
LIMIT $2;
`

	executionStatsSQL = `
SELECT status, COUNT(*)
FROM execution_records
GROUP BY status;
`

	executionDistinctUnitsSQL = `
SELECT COUNT(DISTINCT unit_id)
FROM execution_records;
`
)

// Record upserts one execution record keyed by id, so a record moves
// through its lifecycle states as a single row.
func (s *PostgresStore) Record(ctx context.Context, record ExecutionRecord) error {
	if s.pool == nil {
		return fmt.Errorf("tracker store: nil pool")
	}
	if strings.TrimSpace(record.ID) == "" {
		return fmt.Errorf("tracker store: record id required")
	}
	if strings.TrimSpace(record.UnitID) == "" {
		return fmt.Errorf("tracker store: unit id required")
	}
	executionTime := record.ExecutionTime
	if executionTime.IsZero() {
		executionTime = time.Now()
	}
	createdAt := record.CreatedAt
	if createdAt.IsZero() {
		createdAt = executionTime
	}
	_, err := s.pool.Exec(ctx, executionInsertSQL,
		record.ID,
		record.UnitID,
		string(record.Status),
		record.BackendType,
		record.Title,
		record.WorkerID,
		record.DataHash,
		record.ErrorCode,
		record.ErrorMessage,
		record.Attempts,
		executionTime,
		record.Duration.Milliseconds(),
		createdAt,
	)
	if err != nil {
		return fmt.Errorf("tracker store: insert record: %w", err)
	}
	return nil
}

// LatestCompleted returns the most recent completed execution for the unit.
func (s *PostgresStore) LatestCompleted(ctx context.Context, unitID string) (*ExecutionRecord, error) {
	if s.pool == nil {
		return nil, fmt.Errorf("tracker store: nil pool")
	}
	rows, err := s.pool.Query(ctx, executionLatestCompletedSQL, unitID)
	if err != nil {
		return nil, fmt.Errorf("tracker store: latest completed: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("tracker store: latest completed: %w", err)
		}
		return nil, nil
	}
	record, err := scanExecutionRecord(rows)
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// History lists executions for the unit, newest first.
func (s *PostgresStore) History(ctx context.Context, unitID string, limit int) ([]ExecutionRecord, error) {
	if s.pool == nil {
		return nil, fmt.Errorf("tracker store: nil pool")
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	} else if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	rows, err := s.pool.Query(ctx, executionHistorySQL, unitID, limit)
	if err != nil {
		return nil, fmt.Errorf("tracker store: history: %w", err)
	}
	defer rows.Close()

	var records []ExecutionRecord
	for rows.Next() {
		record, err := scanExecutionRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("tracker store: iterate history: %w", err)
	}
	return records, nil
}

// Stats aggregates execution counts across all units.
func (s *PostgresStore) Stats(ctx context.Context) (Stats, error) {
	if s.pool == nil {
		return Stats{}, fmt.Errorf("tracker store: nil pool")
	}
	stats := Stats{ByStatus: make(map[Status]int64)}

	rows, err := s.pool.Query(ctx, executionStatsSQL)
	if err != nil {
		return Stats{}, fmt.Errorf("tracker store: stats: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return Stats{}, fmt.Errorf("tracker store: scan stats: %w", err)
		}
		stats.ByStatus[Status(status)] = count
		stats.TotalExecutions += count
	}
	if err := rows.Err(); err != nil {
		return Stats{}, fmt.Errorf("tracker store: iterate stats: %w", err)
	}

	if err := s.pool.QueryRow(ctx, executionDistinctUnitsSQL).Scan(&stats.DistinctUnits); err != nil {
		return Stats{}, fmt.Errorf("tracker store: distinct units: %w", err)
	}
	return stats, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExecutionRecord(row rowScanner) (ExecutionRecord, error) {
	var (
		record       ExecutionRecord
		status       string
		errorCode    pgtype.Text
		errorMessage pgtype.Text
		durationMs   int64
	)
	if err := row.Scan(
		&record.ID,
		&record.UnitID,
		&status,
		&record.BackendType,
		&record.Title,
		&record.WorkerID,
		&record.DataHash,
		&errorCode,
		&errorMessage,
		&record.Attempts,
		&record.ExecutionTime,
		&durationMs,
		&record.CreatedAt,
	); err != nil {
		return ExecutionRecord{}, fmt.Errorf("tracker store: scan record: %w", err)
	}
	record.Status = Status(status)
	if errorCode.Valid {
		record.ErrorCode = errorCode.String
	}
	if errorMessage.Valid {
		record.ErrorMessage = errorMessage.String
	}
	record.Duration = time.Duration(durationMs) * time.Millisecond
	return record, nil
}

var _ Store = (*PostgresStore)(nil)
