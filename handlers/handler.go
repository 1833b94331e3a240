package handlers

import (
	"context"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Channel is the subset of amqp.Channel that handlers operate on. It is
// satisfied by *amqp.Channel. AMQP channels are not safe for concurrent use,
// so callers invoking a handler from multiple goroutines must serialize
// access to the channel themselves.
type Channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Ack(tag uint64, multiple bool) error
	Reject(tag uint64, requeue bool) error
}

// Handler disposes of one delivery. Exactly one method is called per
// delivery; all broker I/O errors are surfaced to the caller unretried.
type Handler interface {
	// Acknowledge acknowledges a successfully processed delivery.
	Acknowledge(ctx context.Context, d amqp.Delivery) error

	// Reject disposes of a failed delivery. With requeue set the delivery is
	// always rejected back to the broker with requeue, bypassing any retry
	// accounting.
	Reject(ctx context.Context, d amqp.Delivery, requeue bool) error

	// Error disposes of a delivery whose processing returned an error.
	Error(ctx context.Context, d amqp.Delivery, reason error) error

	// Timeout disposes of a delivery whose processing timed out.
	Timeout(ctx context.Context, d amqp.Delivery) error

	// Noop takes no broker action; used when the delivery has already been
	// disposed of elsewhere.
	Noop(ctx context.Context, d amqp.Delivery) error
}

// Factory builds one handler per worker queue. The channel is owned by the
// caller and already open; the queue is already declared.
type Factory func(ch Channel, queue string) (Handler, error)

// Disposition is the outcome of one disposition decision. It is transient
// output, never stored.
type Disposition int

const (
	// DispositionAck removes the delivery from the worker queue.
	DispositionAck Disposition = iota

	// DispositionRetry rejects the delivery so the broker routes it through
	// the retry topology.
	DispositionRetry

	// DispositionDeadLetter parks the delivery on the error exchange and
	// acknowledges the original.
	DispositionDeadLetter
)

// String returns the disposition name used in logs and metric names.
func (d Disposition) String() string {
	switch d {
	case DispositionAck:
		return "ack"
	case DispositionRetry:
		return "retry"
	case DispositionDeadLetter:
		return "dead-letter"
	default:
		return "unknown"
	}
}
