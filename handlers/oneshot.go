package handlers

import (
	"context"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Oneshot is the minimal handler: acknowledge on success, plain broker
// reject on failure. It declares no topology and keeps no retry accounting;
// what happens to a rejected message is entirely up to the worker queue's
// own dead-letter configuration, if any.
type Oneshot struct {
	ch     Channel
	queue  string
	logger *slog.Logger
}

// NewOneshot creates a one-shot handler for the worker queue.
func NewOneshot(ch Channel, queue string) *Oneshot {
	return &Oneshot{
		ch:     ch,
		queue:  queue,
		logger: slog.Default(),
	}
}

// OneshotFactory is a Factory producing Oneshot handlers.
func OneshotFactory(ch Channel, queue string) (Handler, error) {
	return NewOneshot(ch, queue), nil
}

// Acknowledge implements Handler.
func (h *Oneshot) Acknowledge(ctx context.Context, d amqp.Delivery) error {
	return h.ch.Ack(d.DeliveryTag, false)
}

// Reject implements Handler.
func (h *Oneshot) Reject(ctx context.Context, d amqp.Delivery, requeue bool) error {
	return h.ch.Reject(d.DeliveryTag, requeue)
}

// Error implements Handler.
func (h *Oneshot) Error(ctx context.Context, d amqp.Delivery, reason error) error {
	h.logger.Debug("rejecting failed message",
		"queue", h.queue,
		"routingKey", d.RoutingKey,
		"error", reason)
	return h.ch.Reject(d.DeliveryTag, false)
}

// Timeout implements Handler.
func (h *Oneshot) Timeout(ctx context.Context, d amqp.Delivery) error {
	return h.ch.Reject(d.DeliveryTag, false)
}

// Noop implements Handler.
func (h *Oneshot) Noop(ctx context.Context, d amqp.Delivery) error {
	return nil
}
