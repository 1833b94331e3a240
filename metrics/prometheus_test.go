package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPrometheus(t *testing.T) {
	t.Run("registers collectors", func(t *testing.T) {
		registry := prometheus.NewRegistry()

		client, err := NewPrometheus(registry)
		require.NoError(t, err)
		require.NotNil(t, client)
	})

	t.Run("fails on duplicate registration", func(t *testing.T) {
		registry := prometheus.NewRegistry()

		_, err := NewPrometheus(registry)
		require.NoError(t, err)

		_, err = NewPrometheus(registry)
		assert.Error(t, err)
	})
}

func TestPrometheusIncrement(t *testing.T) {
	registry := prometheus.NewRegistry()
	client, err := NewPrometheus(registry)
	require.NoError(t, err)

	client.Increment("work.orders.handled.ack")
	client.Increment("work.orders.handled.ack")
	client.Increment("work.orders.handler.retry")

	ack := client.events.WithLabelValues("work.orders.handled.ack")
	assert.Equal(t, float64(2), testutil.ToFloat64(ack))

	retry := client.events.WithLabelValues("work.orders.handler.retry")
	assert.Equal(t, float64(1), testutil.ToFloat64(retry))
}

func TestPrometheusTiming(t *testing.T) {
	registry := prometheus.NewRegistry()
	client, err := NewPrometheus(registry)
	require.NoError(t, err)

	ran := false
	client.Timing("work.orders.time", func() { ran = true })

	assert.True(t, ran)
	assert.Equal(t, 1, testutil.CollectAndCount(client.timings, "sneakers_timing_seconds"))
}
