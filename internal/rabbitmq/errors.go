package rabbitmq

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrConnectionClosed is returned when the connection has been closed.
	ErrConnectionClosed = errors.New("rabbitmq: connection is closed")

	// ErrConnectionNotReady is returned when no connection is established.
	ErrConnectionNotReady = errors.New("rabbitmq: connection not ready")

	// ErrConnectionTimeout is returned when dialing exceeds its deadline.
	ErrConnectionTimeout = errors.New("rabbitmq: connection timeout")

	// ErrMaxRetriesExceeded is returned when reconnection gives up.
	ErrMaxRetriesExceeded = errors.New("rabbitmq: maximum reconnection attempts exceeded")
)

// ConnectionError represents a connection-related error.
type ConnectionError struct {
	Op        string    // Operation that failed
	URL       string    // Connection URL (sanitized)
	Err       error     // Underlying error
	Timestamp time.Time // When the error occurred
	Attempts  int       // Number of attempts made
}

func (e *ConnectionError) Error() string {
	if e.Attempts > 0 {
		return fmt.Sprintf("rabbitmq connection error: %s failed after %d attempts: %v", e.Op, e.Attempts, e.Err)
	}
	return fmt.Sprintf("rabbitmq connection error: %s failed: %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// SanitizeURL removes credential material from connection URLs before they
// reach logs or error messages.
func SanitizeURL(url string) string {
	if len(url) > 20 {
		return url[:10] + "***" + url[len(url)-10:]
	}
	return "***"
}
