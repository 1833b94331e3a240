package metrics

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoOp(t *testing.T) {
	var client Client = NoOp{}

	client.Increment("work.orders.handled.ack")

	ran := false
	client.Timing("work.orders.time", func() { ran = true })
	assert.True(t, ran, "Timing must run the function even when discarding the measurement")
}

func TestLog(t *testing.T) {
	t.Run("nil logger falls back to default", func(t *testing.T) {
		client := NewLog(nil)
		require.NotNil(t, client)
		client.Increment("work.orders.handled.ack")
	})

	t.Run("writes increments and timings at debug level", func(t *testing.T) {
		var buf bytes.Buffer
		logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
		client := NewLog(logger)

		client.Increment("work.orders.handled.ack")

		ran := false
		client.Timing("work.orders.time", func() { ran = true })

		assert.True(t, ran)
		out := buf.String()
		assert.Contains(t, out, "work.orders.handled.ack")
		assert.Contains(t, out, "work.orders.time")
	})
}
