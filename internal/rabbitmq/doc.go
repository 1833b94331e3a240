// Package rabbitmq manages the broker connection for sneakers workers.
//
// It provides:
//   - ConnectionManager: dials RabbitMQ with a context deadline and
//     reconnects automatically with exponential backoff and jitter
//   - Channel provisioning: one channel per worker, since AMQP channels are
//     not safe for concurrent use
//
// Topology declaration and message disposition live in the handlers package;
// this package only keeps the connection alive underneath them.
package rabbitmq
