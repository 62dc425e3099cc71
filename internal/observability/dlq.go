package observability

import (
	"sync"
	"time"
)

// DeadLetter records a task that exhausted its retry budget or failed
// without retry eligibility.
type DeadLetter struct {
	UnitID     string         `json:"unit_id"`
	Code       string         `json:"code"`
	Reason     string         `json:"reason"`
	Attempts   int            `json:"attempts"`
	ReceivedAt time.Time      `json:"received_at"`
	FailedAt   time.Time      `json:"failed_at"`
	Payload    map[string]any `json:"payload"`
}

// DeadLetterQueue stores tasks that permanently failed processing.
type DeadLetterQueue struct {
	mu       sync.Mutex
	capacity int
	letters  []DeadLetter
}

// NewDeadLetterQueue creates a DLQ with the provided capacity. Capacity <=0 implies unbounded.
func NewDeadLetterQueue(capacity int) *DeadLetterQueue {
	queue := new(DeadLetterQueue)
	queue.capacity = capacity
	queue.letters = make([]DeadLetter, 0)
	return queue
}

// Offer records a dead letter in the DLQ.
func (q *DeadLetterQueue) Offer(letter DeadLetter) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.capacity > 0 && len(q.letters) >= q.capacity {
		// Drop oldest letter to make space for new record.
		copy(q.letters[0:], q.letters[1:])
		q.letters[len(q.letters)-1] = cloneDeadLetter(letter)
		return
	}
	q.letters = append(q.letters, cloneDeadLetter(letter))
}

// Drain retrieves and clears all queued dead letters.
func (q *DeadLetterQueue) Drain() []DeadLetter {
	q.mu.Lock()
	defer q.mu.Unlock()
	drained := make([]DeadLetter, len(q.letters))
	copy(drained, q.letters)
	q.letters = q.letters[:0]
	return drained
}

// Len returns the number of queued dead letters.
func (q *DeadLetterQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.letters)
}

func cloneDeadLetter(letter DeadLetter) DeadLetter {
	clone := letter
	if len(letter.Payload) > 0 {
		payloadCopy := make(map[string]any, len(letter.Payload))
		for k, v := range letter.Payload {
			payloadCopy[k] = v
		}
		clone.Payload = payloadCopy
	}
	return clone
}
