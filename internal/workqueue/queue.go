package workqueue

import "context"

// Delivery hands one decoded message to a consumer. Ack removes the
// message from the queue; Nack redelivers it. Both are idempotent.
type Delivery struct {
	Message Message
	Ack     func()
	Nack    func()
}

// Queue moves task messages between producers and workers.
type Queue interface {
	Publish(ctx context.Context, msg Message) error
	Consume(ctx context.Context) (<-chan Delivery, error)
	Close()
}
