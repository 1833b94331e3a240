package sneakers

import (
	"log/slog"
	"time"

	"github.com/getdreams/sneakers/internal/rabbitmq"
	"github.com/getdreams/sneakers/metrics"
)

// clientConfig holds client construction settings.
type clientConfig struct {
	logger  *slog.Logger
	metrics metrics.Client
	durable bool

	reconnectDelay time.Duration
	maxReconnects  int
	dialTimeout    time.Duration
}

// ClientOption configures a Client.
type ClientOption func(*clientConfig)

// WithLogger sets the logger propagated to the connection and every worker.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(cfg *clientConfig) {
		cfg.logger = logger
	}
}

// WithMetrics sets the metrics client propagated to every worker.
func WithMetrics(client metrics.Client) ClientOption {
	return func(cfg *clientConfig) {
		cfg.metrics = client
	}
}

// WithDurable sets the durability flag used when declaring work queues.
func WithDurable(durable bool) ClientOption {
	return func(cfg *clientConfig) {
		cfg.durable = durable
	}
}

// WithReconnectDelay sets the base delay between reconnection attempts.
func WithReconnectDelay(delay time.Duration) ClientOption {
	return func(cfg *clientConfig) {
		cfg.reconnectDelay = delay
	}
}

// WithMaxReconnects caps reconnection attempts. Negative retries forever.
func WithMaxReconnects(retries int) ClientOption {
	return func(cfg *clientConfig) {
		cfg.maxReconnects = retries
	}
}

// WithDialTimeout sets the per-attempt dial timeout.
func WithDialTimeout(timeout time.Duration) ClientOption {
	return func(cfg *clientConfig) {
		cfg.dialTimeout = timeout
	}
}

// connectionOptions translates client settings into connection manager
// options.
func (cfg *clientConfig) connectionOptions() []rabbitmq.ConnectionOption {
	options := []rabbitmq.ConnectionOption{
		rabbitmq.WithLogger(cfg.logger),
		rabbitmq.WithMaxRetries(cfg.maxReconnects),
	}
	if cfg.reconnectDelay > 0 {
		options = append(options, rabbitmq.WithReconnectDelay(cfg.reconnectDelay))
	}
	if cfg.dialTimeout > 0 {
		options = append(options, rabbitmq.WithDialTimeout(cfg.dialTimeout))
	}
	return options
}
