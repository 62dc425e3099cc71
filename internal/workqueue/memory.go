package workqueue

import (
	"context"
	"fmt"
	"sync"

	"github.com/foliostack/tradeledger/errs"
)

// MemoryConfig configures the in-memory queue buffers.
type MemoryConfig struct {
	BufferSize int
}

func (c MemoryConfig) normalize() MemoryConfig {
	if c.BufferSize <= 0 {
		c.BufferSize = 64
	}
	return c
}

// MemoryQueue is a bounded in-process queue. Messages round-trip through
// the wire codec so the memory transport exercises the same payload shape
// as a broker-backed one.
type MemoryQueue struct {
	cfg MemoryConfig

	ctx    context.Context
	cancel context.CancelFunc

	ch   chan []byte
	once sync.Once
}

// NewMemoryQueue constructs a memory-backed queue.
func NewMemoryQueue(cfg MemoryConfig) *MemoryQueue {
	cfg = cfg.normalize()
	ctx, cancel := context.WithCancel(context.Background())
	queue := new(MemoryQueue)
	queue.cfg = cfg
	queue.ctx = ctx
	queue.cancel = cancel
	queue.ch = make(chan []byte, cfg.BufferSize)
	return queue
}

// Publish validates, encodes and enqueues the message without blocking.
func (q *MemoryQueue) Publish(ctx context.Context, msg Message) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	payload, err := EncodeMessage(msg)
	if err != nil {
		return err
	}
	select {
	case <-q.ctx.Done():
		return errs.New("workqueue/memory", errs.CodeUnavailable, errs.WithMessage("queue closed"))
	case <-ctx.Done():
		return fmt.Errorf("publish context: %w", ctx.Err())
	case q.ch <- payload:
		return nil
	default:
		return errs.New("workqueue/memory", errs.CodeUnavailable, errs.WithMessage("queue full"))
	}
}

// Consume starts a pump that decodes queued payloads into deliveries.
// Consumption stops when the passed context or the queue is done.
func (q *MemoryQueue) Consume(ctx context.Context) (<-chan Delivery, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	out := make(chan Delivery)
	go q.pump(ctx, out)
	return out, nil
}

// Close shuts down the queue. Pending payloads are dropped.
func (q *MemoryQueue) Close() {
	q.once.Do(q.cancel)
}

// Len reports the number of buffered messages.
func (q *MemoryQueue) Len() int {
	return len(q.ch)
}

func (q *MemoryQueue) pump(ctx context.Context, out chan<- Delivery) {
	defer close(out)
	for {
		select {
		case <-q.ctx.Done():
			return
		case <-ctx.Done():
			return
		case payload := <-q.ch:
			msg, err := DecodeMessage(payload)
			if err != nil {
				// Undecodable payloads cannot be retried; drop them.
				continue
			}
			delivery := q.wrap(payload, msg)
			select {
			case <-q.ctx.Done():
				return
			case <-ctx.Done():
				return
			case out <- delivery:
			}
		}
	}
}

func (q *MemoryQueue) wrap(payload []byte, msg Message) Delivery {
	var settle sync.Once
	return Delivery{
		Message: msg,
		Ack:     func() { settle.Do(func() {}) },
		Nack: func() {
			settle.Do(func() {
				select {
				case <-q.ctx.Done():
				case q.ch <- payload:
				default:
				}
			})
		},
	}
}

var _ Queue = (*MemoryQueue)(nil)
