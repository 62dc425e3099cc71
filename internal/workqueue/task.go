// Package workqueue defines the task transport between export producers
// and the processing workers.
package workqueue

import (
	"strconv"
	"strings"
	"time"

	"github.com/foliostack/tradeledger/errs"
)

// Metadata keys carried across re-enqueues.
const (
	// metadataRetryCount tracks how many times a task has been re-enqueued.
	metadataRetryCount = "retry_count"
	// metadataRecordID pins the execution record across retry attempts so
	// the tracker shows one row per unit execution, not one per attempt.
	metadataRecordID = "record_id"
)

// Task identifies one unit of work: a single broker export to process.
type Task struct {
	UnitID         string            `json:"unit_id"`
	BackendType    string            `json:"backend_type"`
	CredentialsRef string            `json:"credentials_ref,omitempty"`
	Title          string            `json:"title,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// RetryCount reads the retry counter from metadata, zero when absent.
func (t Task) RetryCount() int {
	raw, ok := t.Metadata[metadataRetryCount]
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// WithRetryCount returns a copy of the task with the retry counter set.
// The original metadata map is left untouched.
func (t Task) WithRetryCount(n int) Task {
	return t.withMetadata(metadataRetryCount, strconv.Itoa(n))
}

// RecordID reads the pinned execution record id, empty when absent.
func (t Task) RecordID() string {
	return t.Metadata[metadataRecordID]
}

// WithRecordID returns a copy of the task pinned to an execution record.
func (t Task) WithRecordID(id string) Task {
	return t.withMetadata(metadataRecordID, id)
}

func (t Task) withMetadata(key, value string) Task {
	metadata := make(map[string]string, len(t.Metadata)+1)
	for k, v := range t.Metadata {
		metadata[k] = v
	}
	metadata[key] = value
	t.Metadata = metadata
	return t
}

// Validate rejects tasks that cannot be routed to a worker.
func (t Task) Validate() error {
	if strings.TrimSpace(t.UnitID) == "" {
		return errs.New("workqueue/task", errs.CodeInvalid, errs.WithMessage("unit id required"))
	}
	if strings.TrimSpace(t.BackendType) == "" {
		return errs.New("workqueue/task", errs.CodeInvalid,
			errs.WithMessage("backend type required"), errs.WithField("unit_id", t.UnitID))
	}
	return nil
}

// Message is one queue payload. A message may batch several tasks; the
// consumer acknowledges it only once every task reached a terminal state.
type Message struct {
	ID       string    `json:"id"`
	Tasks    []Task    `json:"tasks"`
	IssuedAt time.Time `json:"issued_at"`
}

// Validate rejects empty messages and delegates to per-task validation.
func (m Message) Validate() error {
	if len(m.Tasks) == 0 {
		return errs.New("workqueue/message", errs.CodeInvalid, errs.WithMessage("message has no tasks"))
	}
	for _, task := range m.Tasks {
		if err := task.Validate(); err != nil {
			return err
		}
	}
	return nil
}
