package sneakers

import (
	"context"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/getdreams/sneakers/handlers"
	"github.com/getdreams/sneakers/internal/rabbitmq"
	"github.com/getdreams/sneakers/metrics"
	"github.com/getdreams/sneakers/worker"
)

// Client is the entry point for building workers. It owns the broker
// connection; each worker it creates gets a dedicated channel.
type Client struct {
	conn    *rabbitmq.ConnectionManager
	logger  *slog.Logger
	metrics metrics.Client
	durable bool
}

// NewClient creates a client for the given AMQP URL. Connect must be called
// before declaring queues or creating workers.
func NewClient(url string, options ...ClientOption) (*Client, error) {
	if url == "" {
		return nil, fmt.Errorf("sneakers: AMQP URL is required")
	}

	cfg := &clientConfig{
		logger:        slog.Default(),
		metrics:       metrics.NoOp{},
		durable:       true,
		maxReconnects: -1,
	}

	for _, opt := range options {
		opt(cfg)
	}

	return &Client{
		conn:    rabbitmq.NewConnectionManager(url, cfg.connectionOptions()...),
		logger:  cfg.logger,
		metrics: cfg.metrics,
		durable: cfg.durable,
	}, nil
}

// Connect establishes the broker connection.
func (c *Client) Connect(ctx context.Context) error {
	return c.conn.Connect(ctx)
}

// DeclareWorkQueue declares a worker queue. For queues served by a MaxRetry
// handler, pass handlers.MaxRetryQueueArgs so broker rejects dead-letter into
// the retry exchange.
func (c *Client) DeclareWorkQueue(queue string, args amqp.Table) error {
	ch, err := c.conn.Channel()
	if err != nil {
		return fmt.Errorf("sneakers: failed to open channel: %w", err)
	}
	defer ch.Close()

	if _, err := ch.QueueDeclare(queue, c.durable, false, false, false, args); err != nil {
		return fmt.Errorf("sneakers: failed to declare queue %s: %w", queue, err)
	}

	return nil
}

// NewWorker creates a worker for the named queue on its own channel. The
// handler factory runs immediately, so any retry topology is established
// before Run consumes the first delivery. A nil factory gets the Oneshot
// handler.
func (c *Client) NewWorker(queue string, work worker.Work, factory handlers.Factory, options ...worker.Option) (*worker.Worker, error) {
	ch, err := c.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("sneakers: failed to open channel for queue %s: %w", queue, err)
	}

	workerOptions := append([]worker.Option{
		worker.WithLogger(c.logger),
		worker.WithMetrics(c.metrics),
	}, options...)

	w, err := worker.New(ch, queue, work, factory, workerOptions...)
	if err != nil {
		ch.Close()
		return nil, err
	}

	return w, nil
}

// IsConnected reports whether the broker connection is up.
func (c *Client) IsConnected() bool {
	return c.conn.IsConnected()
}

// Close closes the broker connection and every channel on it.
func (c *Client) Close() error {
	return c.conn.Close()
}
