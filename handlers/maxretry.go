package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/getdreams/sneakers/metrics"
)

const (
	// DefaultRetryTimeout is how long a rejected message waits in the retry
	// queue before being routed back onto the worker queue.
	DefaultRetryTimeout = 60 * time.Second

	// DefaultMaxRetries is the retry budget before a message is parked on
	// the error queue.
	DefaultMaxRetries = 5

	// matchAll is the topic binding pattern used for every binding this
	// handler creates, so any routing key reaches the bound queue.
	matchAll = "#"
)

// MaxRetry implements bounded retries on top of the broker's dead-letter
// mechanics. Construction declares three topic exchanges and two queues:
//
//	<queue>-retry          delay buffer; TTL + DLX back to the requeue exchange
//	<queue>-error          terminal parking lot for exhausted messages
//	<queue>-retry-requeue  routes expired retry messages back onto the queue
//
// The worker queue itself must already exist and must carry an
// x-dead-letter-exchange argument naming the retry exchange, so that a plain
// broker reject lands the message in the retry queue.
type MaxRetry struct {
	ch              Channel
	queue           string
	retryExchange   string
	errorExchange   string
	requeueExchange string
	retryTimeout    time.Duration
	maxRetries      int
	durable         bool
	logger          *slog.Logger
	metrics         metrics.Client
	sink            errorSink
}

// MaxRetryOption configures a MaxRetry handler.
type MaxRetryOption func(*MaxRetry)

// WithRetryExchange overrides the retry exchange and queue name.
func WithRetryExchange(name string) MaxRetryOption {
	return func(h *MaxRetry) {
		h.retryExchange = name
	}
}

// WithErrorExchange overrides the error exchange and queue name.
func WithErrorExchange(name string) MaxRetryOption {
	return func(h *MaxRetry) {
		h.errorExchange = name
	}
}

// WithRequeueExchange overrides the requeue exchange name.
func WithRequeueExchange(name string) MaxRetryOption {
	return func(h *MaxRetry) {
		h.requeueExchange = name
	}
}

// WithRetryTimeout sets the retry queue message TTL.
func WithRetryTimeout(timeout time.Duration) MaxRetryOption {
	return func(h *MaxRetry) {
		h.retryTimeout = timeout
	}
}

// WithMaxRetries sets the retry budget before dead-lettering.
func WithMaxRetries(retries int) MaxRetryOption {
	return func(h *MaxRetry) {
		h.maxRetries = retries
	}
}

// WithDurable sets the durability flag applied to all created exchanges and
// queues.
func WithDurable(durable bool) MaxRetryOption {
	return func(h *MaxRetry) {
		h.durable = durable
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) MaxRetryOption {
	return func(h *MaxRetry) {
		h.logger = logger
	}
}

// WithMetrics sets the metrics client.
func WithMetrics(client metrics.Client) MaxRetryOption {
	return func(h *MaxRetry) {
		h.metrics = client
	}
}

// NewMaxRetry creates a max-retry handler for the named worker queue and
// declares its retry topology. Declaration is idempotent: redeclaring with
// identical parameters matches the existing entities. Any declare or bind
// failure is returned and the handler must not be used.
func NewMaxRetry(ch Channel, queue string, options ...MaxRetryOption) (*MaxRetry, error) {
	if ch == nil {
		return nil, fmt.Errorf("maxretry: channel is required")
	}
	if queue == "" {
		return nil, fmt.Errorf("maxretry: worker queue name is required")
	}

	h := &MaxRetry{
		ch:           ch,
		queue:        queue,
		retryTimeout: DefaultRetryTimeout,
		maxRetries:   DefaultMaxRetries,
		durable:      true,
		logger:       slog.Default(),
		metrics:      metrics.NoOp{},
	}

	for _, opt := range options {
		opt(h)
	}

	if h.retryExchange == "" {
		h.retryExchange = queue + "-retry"
	}
	if h.errorExchange == "" {
		h.errorExchange = queue + "-error"
	}
	if h.requeueExchange == "" {
		h.requeueExchange = queue + "-retry-requeue"
	}

	if h.retryTimeout <= 0 {
		return nil, fmt.Errorf("maxretry: retry timeout must be positive, got %v", h.retryTimeout)
	}
	if h.maxRetries < 0 {
		return nil, fmt.Errorf("maxretry: max retries must not be negative, got %d", h.maxRetries)
	}

	h.sink = errorSink{
		ch:       ch,
		exchange: h.errorExchange,
		durable:  h.durable,
	}

	if err := h.declareTopology(); err != nil {
		return nil, err
	}

	return h, nil
}

// MaxRetryQueueArgs returns the declaration arguments a worker queue needs
// to participate in the retry loop: a broker reject dead-letters the message
// into the retry exchange. The worker queue is declared by the caller, not by
// this handler.
func MaxRetryQueueArgs(retryExchange string) amqp.Table {
	return amqp.Table{
		"x-dead-letter-exchange": retryExchange,
	}
}

// MaxRetryFactory returns a Factory that builds a MaxRetry handler with the
// given options for each worker queue.
func MaxRetryFactory(options ...MaxRetryOption) Factory {
	return func(ch Channel, queue string) (Handler, error) {
		return NewMaxRetry(ch, queue, options...)
	}
}

// RetryExchange returns the retry exchange name. The worker queue must name
// it in its own x-dead-letter-exchange argument.
func (h *MaxRetry) RetryExchange() string { return h.retryExchange }

// ErrorExchange returns the error exchange name.
func (h *MaxRetry) ErrorExchange() string { return h.errorExchange }

// RequeueExchange returns the requeue exchange name.
func (h *MaxRetry) RequeueExchange() string { return h.requeueExchange }

// declareTopology wires the retry loop: worker queue rejects dead-letter into
// the retry queue, sit there for the TTL, expire onto the requeue exchange,
// and land back on the worker queue. The error exchange is outside the loop.
func (h *MaxRetry) declareTopology() error {
	// Retry exchange and its TTL delay queue.
	if err := h.ch.ExchangeDeclare(h.retryExchange, "topic", h.durable, false, false, false, nil); err != nil {
		return fmt.Errorf("maxretry: failed to declare retry exchange %s: %w", h.retryExchange, err)
	}
	retryArgs := amqp.Table{
		"x-dead-letter-exchange": h.requeueExchange,
		"x-message-ttl":          h.retryTimeout.Milliseconds(),
	}
	if _, err := h.ch.QueueDeclare(h.retryExchange, h.durable, false, false, false, retryArgs); err != nil {
		return fmt.Errorf("maxretry: failed to declare retry queue %s: %w", h.retryExchange, err)
	}
	if err := h.ch.QueueBind(h.retryExchange, matchAll, h.retryExchange, false, nil); err != nil {
		return fmt.Errorf("maxretry: failed to bind retry queue %s: %w", h.retryExchange, err)
	}

	// Error exchange and its parking queue.
	if err := h.ch.ExchangeDeclare(h.errorExchange, "topic", h.durable, false, false, false, nil); err != nil {
		return fmt.Errorf("maxretry: failed to declare error exchange %s: %w", h.errorExchange, err)
	}
	if _, err := h.ch.QueueDeclare(h.errorExchange, h.durable, false, false, false, nil); err != nil {
		return fmt.Errorf("maxretry: failed to declare error queue %s: %w", h.errorExchange, err)
	}
	if err := h.ch.QueueBind(h.errorExchange, matchAll, h.errorExchange, false, nil); err != nil {
		return fmt.Errorf("maxretry: failed to bind error queue %s: %w", h.errorExchange, err)
	}

	// Requeue exchange closes the loop back onto the worker queue.
	if err := h.ch.ExchangeDeclare(h.requeueExchange, "topic", h.durable, false, false, false, nil); err != nil {
		return fmt.Errorf("maxretry: failed to declare requeue exchange %s: %w", h.requeueExchange, err)
	}
	if err := h.ch.QueueBind(h.queue, matchAll, h.requeueExchange, false, nil); err != nil {
		return fmt.Errorf("maxretry: failed to bind worker queue %s to requeue exchange %s: %w", h.queue, h.requeueExchange, err)
	}

	h.logger.Debug("declared retry topology",
		"queue", h.queue,
		"retryExchange", h.retryExchange,
		"errorExchange", h.errorExchange,
		"requeueExchange", h.requeueExchange,
		"retryTimeout", h.retryTimeout,
		"maxRetries", h.maxRetries)

	return nil
}

// Acknowledge implements Handler. It never consults failure history.
func (h *MaxRetry) Acknowledge(ctx context.Context, d amqp.Delivery) error {
	h.metrics.Increment("work." + h.queue + ".handler.ack")
	return h.ch.Ack(d.DeliveryTag, false)
}

// Reject implements Handler. A forced requeue always goes straight back to
// the broker with requeue set, regardless of failure history. Otherwise the
// delivery is rejected into the retry queue while the budget lasts, and
// parked on the error exchange once it is spent.
func (h *MaxRetry) Reject(ctx context.Context, d amqp.Delivery, requeue bool) error {
	if requeue {
		h.metrics.Increment("work." + h.queue + ".handler.requeue")
		return h.ch.Reject(d.DeliveryTag, true)
	}
	return h.retryOrDeadLetter(ctx, d)
}

// Error implements Handler. The error value itself does not influence
// routing; every processing error goes through the standard retry decision.
func (h *MaxRetry) Error(ctx context.Context, d amqp.Delivery, reason error) error {
	h.logger.Debug("handling processing error",
		"queue", h.queue,
		"routingKey", d.RoutingKey,
		"error", reason)
	return h.retryOrDeadLetter(ctx, d)
}

// Timeout implements Handler. A timeout is treated identically to an error.
func (h *MaxRetry) Timeout(ctx context.Context, d amqp.Delivery) error {
	return h.retryOrDeadLetter(ctx, d)
}

// Noop implements Handler.
func (h *MaxRetry) Noop(ctx context.Context, d amqp.Delivery) error {
	h.metrics.Increment("work." + h.queue + ".handler.noop")
	return nil
}

// decide computes the disposition for a failed delivery. The recorded
// failure count covers prior deliveries only, so the current failure is
// added before comparing against the budget.
func (h *MaxRetry) decide(failures int) Disposition {
	if failures+1 <= h.maxRetries {
		return DispositionRetry
	}
	return DispositionDeadLetter
}

// retryOrDeadLetter applies the retry budget.
func (h *MaxRetry) retryOrDeadLetter(ctx context.Context, d amqp.Delivery) error {
	failures := FailureCount(d.Headers, h.queue)
	disposition := h.decide(failures)
	h.metrics.Increment("work." + h.queue + ".handler." + disposition.String())

	if disposition == DispositionRetry {
		h.logger.Debug("rejecting message for retry",
			"queue", h.queue,
			"routingKey", d.RoutingKey,
			"failures", failures,
			"maxRetries", h.maxRetries)
		// Requeue is deliberately false: the worker queue's dead-letter
		// exchange routes the reject into the retry queue.
		return h.ch.Reject(d.DeliveryTag, false)
	}

	h.logger.Info("retries exhausted, dead-lettering message",
		"queue", h.queue,
		"routingKey", d.RoutingKey,
		"failures", failures,
		"maxRetries", h.maxRetries,
		"errorExchange", h.errorExchange)

	if err := h.sink.Publish(ctx, d); err != nil {
		return fmt.Errorf("maxretry: failed to publish to error exchange %s: %w", h.errorExchange, err)
	}

	// Ack only after the error publish succeeded, so the message is never
	// lost between the worker queue and the error queue.
	return h.ch.Ack(d.DeliveryTag, false)
}

// errorSink publishes an exhausted message, unmodified, onto the error
// exchange with its original routing key.
type errorSink struct {
	ch       Channel
	exchange string
	durable  bool
}

// Publish forwards the delivery payload with its original routing key. The
// payload is not transformed or wrapped; the message arrives on the error
// queue ready for manual inspection or replay.
func (s errorSink) Publish(ctx context.Context, d amqp.Delivery) error {
	pub := amqp.Publishing{
		ContentType: d.ContentType,
		Body:        d.Body,
	}
	if s.durable {
		pub.DeliveryMode = amqp.Persistent
	}
	return s.ch.PublishWithContext(ctx, s.exchange, d.RoutingKey, false, false, pub)
}
