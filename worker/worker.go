// Package worker consumes a single queue and drives a disposition handler.
//
// Each worker owns one AMQP channel. Deliveries are processed by a bounded
// pool of goroutines, but handler and channel access is serialized because
// AMQP channels are not safe for concurrent use.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/getdreams/sneakers/handlers"
	"github.com/getdreams/sneakers/metrics"
)

var (
	// ErrRequeue is returned by a Work function to send the delivery
	// straight back to the broker with requeue, bypassing retry accounting.
	ErrRequeue = errors.New("worker: requeue delivery")

	// ErrNoop is returned by a Work function when the delivery has already
	// been disposed of and the worker must take no broker action.
	ErrNoop = errors.New("worker: delivery already disposed")
)

// Work processes one delivery. A nil return acknowledges the delivery; an
// error routes it through the handler's failure disposition. The context
// carries the per-message deadline.
type Work func(ctx context.Context, d amqp.Delivery) error

// Channel is the subset of amqp.Channel a worker needs. It is satisfied by
// *amqp.Channel.
type Channel interface {
	handlers.Channel
	Qos(prefetchCount, prefetchSize int, global bool) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
}

// Worker consumes one queue and invokes exactly one handler disposition per
// delivery.
type Worker struct {
	ch          Channel
	queue       string
	work        Work
	handler     handlers.Handler
	threads     int
	prefetch    int
	timeout     time.Duration
	consumerTag string
	logger      *slog.Logger
	metrics     metrics.Client

	// mu serializes all channel operations issued through the handler.
	mu sync.Mutex
}

// Option configures a worker.
type Option func(*Worker)

// WithThreads sets the number of goroutines processing deliveries.
func WithThreads(threads int) Option {
	return func(w *Worker) {
		w.threads = threads
	}
}

// WithPrefetch sets the channel prefetch count.
func WithPrefetch(count int) Option {
	return func(w *Worker) {
		w.prefetch = count
	}
}

// WithTimeout sets the per-message processing deadline.
func WithTimeout(timeout time.Duration) Option {
	return func(w *Worker) {
		w.timeout = timeout
	}
}

// WithConsumerTag sets the consumer tag. A random tag is generated when
// unset.
func WithConsumerTag(tag string) Option {
	return func(w *Worker) {
		w.consumerTag = tag
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Worker) {
		w.logger = logger
	}
}

// WithMetrics sets the metrics client.
func WithMetrics(client metrics.Client) Option {
	return func(w *Worker) {
		w.metrics = client
	}
}

// New creates a worker for the named queue. The handler is built from the
// factory immediately, so any retry topology it declares is fully
// established before the first delivery is accepted. The queue itself must
// already be declared.
func New(ch Channel, queue string, work Work, factory handlers.Factory, options ...Option) (*Worker, error) {
	if ch == nil {
		return nil, fmt.Errorf("worker: channel is required")
	}
	if queue == "" {
		return nil, fmt.Errorf("worker: queue name is required")
	}
	if work == nil {
		return nil, fmt.Errorf("worker: work function is required")
	}
	if factory == nil {
		factory = handlers.OneshotFactory
	}

	w := &Worker{
		ch:       ch,
		queue:    queue,
		work:     work,
		threads:  1,
		prefetch: 10,
		timeout:  30 * time.Second,
		logger:   slog.Default(),
		metrics:  metrics.NoOp{},
	}

	for _, opt := range options {
		opt(w)
	}

	if w.threads < 1 {
		return nil, fmt.Errorf("worker: threads must be at least 1, got %d", w.threads)
	}
	if w.consumerTag == "" {
		w.consumerTag = queue + "-" + uuid.NewString()
	}

	handler, err := factory(ch, queue)
	if err != nil {
		return nil, fmt.Errorf("worker: failed to build handler for queue %s: %w", queue, err)
	}
	w.handler = handler

	return w, nil
}

// Run consumes the queue until the context is cancelled or the delivery
// channel closes. It blocks; cancellation is the only way to stop a healthy
// worker.
func (w *Worker) Run(ctx context.Context) error {
	if err := w.ch.Qos(w.prefetch, 0, false); err != nil {
		return fmt.Errorf("worker: failed to set QoS on queue %s: %w", w.queue, err)
	}

	deliveries, err := w.ch.Consume(w.queue, w.consumerTag, false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("worker: failed to consume from queue %s: %w", w.queue, err)
	}

	w.logger.Info("worker started",
		"queue", w.queue,
		"consumerTag", w.consumerTag,
		"threads", w.threads,
		"prefetch", w.prefetch)

	var wg sync.WaitGroup
	for i := 0; i < w.threads; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case d, ok := <-deliveries:
					if !ok {
						return
					}
					w.handle(ctx, d)
				}
			}
		}()
	}

	wg.Wait()
	w.logger.Info("worker stopped", "queue", w.queue)

	if ctx.Err() != nil {
		return ctx.Err()
	}
	return nil
}

// handle runs the work function for one delivery and issues exactly one
// disposition.
func (w *Worker) handle(ctx context.Context, d amqp.Delivery) {
	workCtx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	var err error
	w.metrics.Timing("work."+w.queue+".time", func() {
		err = w.invoke(workCtx, d)
	})

	w.dispose(ctx, d, workCtx, err)
}

// invoke calls the work function, converting a panic into an error so a
// misbehaving work function cannot take down the worker or leak an
// unacknowledged delivery until channel close.
func (w *Worker) invoke(ctx context.Context, d amqp.Delivery) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("worker: work function panicked: %v", r)
			w.logger.Error("work function panicked",
				"queue", w.queue,
				"routingKey", d.RoutingKey,
				"panic", r)
		}
	}()
	return w.work(ctx, d)
}

// dispose maps the work outcome onto the handler. The disposition context is
// the worker context, not the expired work context, so broker calls for a
// timed-out message still go through.
func (w *Worker) dispose(ctx context.Context, d amqp.Delivery, workCtx context.Context, workErr error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	var err error
	switch {
	case workErr == nil:
		w.metrics.Increment("work." + w.queue + ".handled.ack")
		err = w.handler.Acknowledge(ctx, d)

	case errors.Is(workErr, ErrNoop):
		w.metrics.Increment("work." + w.queue + ".handled.noop")
		err = w.handler.Noop(ctx, d)

	case errors.Is(workErr, ErrRequeue):
		w.metrics.Increment("work." + w.queue + ".handled.requeue")
		err = w.handler.Reject(ctx, d, true)

	case errors.Is(workErr, context.DeadlineExceeded) && workCtx.Err() != nil:
		w.metrics.Increment("work." + w.queue + ".handled.timeout")
		w.logger.Warn("work timed out",
			"queue", w.queue,
			"routingKey", d.RoutingKey,
			"timeout", w.timeout)
		err = w.handler.Timeout(ctx, d)

	default:
		w.metrics.Increment("work." + w.queue + ".handled.error")
		err = w.handler.Error(ctx, d, workErr)
	}

	if err != nil {
		w.logger.Error("failed to dispose delivery",
			"queue", w.queue,
			"routingKey", d.RoutingKey,
			"deliveryTag", d.DeliveryTag,
			"error", err)
	}
}
