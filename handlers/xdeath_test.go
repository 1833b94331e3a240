package handlers

import (
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDeaths(t *testing.T) {
	t.Run("returns nil for nil headers", func(t *testing.T) {
		assert.Nil(t, ParseDeaths(nil))
	})

	t.Run("returns nil when x-death is absent", func(t *testing.T) {
		assert.Nil(t, ParseDeaths(amqp.Table{"content-type": "text/plain"}))
	})

	t.Run("returns nil when x-death is not a list", func(t *testing.T) {
		assert.Nil(t, ParseDeaths(amqp.Table{"x-death": "bogus"}))
	})

	t.Run("parses complete records", func(t *testing.T) {
		headers := amqp.Table{
			"x-death": []interface{}{
				amqp.Table{
					"queue":        "orders",
					"exchange":     "orders-retry",
					"reason":       "expired",
					"count":        int64(3),
					"routing-keys": []interface{}{"order.created"},
				},
			},
		}

		deaths := ParseDeaths(headers)
		require.Len(t, deaths, 1)
		assert.Equal(t, "orders", deaths[0].Queue)
		assert.Equal(t, "orders-retry", deaths[0].Exchange)
		assert.Equal(t, "expired", deaths[0].Reason)
		assert.Equal(t, int64(3), deaths[0].Count)
		assert.Equal(t, []string{"order.created"}, deaths[0].RoutingKeys)
	})

	t.Run("skips malformed entries", func(t *testing.T) {
		headers := amqp.Table{
			"x-death": []interface{}{
				"not a table",
				int64(42),
				amqp.Table{"queue": "orders"},
			},
		}

		deaths := ParseDeaths(headers)
		require.Len(t, deaths, 1)
		assert.Equal(t, "orders", deaths[0].Queue)
	})

	t.Run("tolerates missing and mistyped fields", func(t *testing.T) {
		headers := amqp.Table{
			"x-death": []interface{}{
				amqp.Table{
					"queue": int64(9),
					"count": "three",
				},
			},
		}

		deaths := ParseDeaths(headers)
		require.Len(t, deaths, 1)
		assert.Empty(t, deaths[0].Queue)
		assert.Zero(t, deaths[0].Count)
	})

	t.Run("accepts alternate count integer widths", func(t *testing.T) {
		headers := amqp.Table{
			"x-death": []interface{}{
				amqp.Table{"queue": "a", "count": int32(2)},
				amqp.Table{"queue": "b", "count": 4},
				amqp.Table{"queue": "c", "count": float64(6)},
			},
		}

		deaths := ParseDeaths(headers)
		require.Len(t, deaths, 3)
		assert.Equal(t, int64(2), deaths[0].Count)
		assert.Equal(t, int64(4), deaths[1].Count)
		assert.Equal(t, int64(6), deaths[2].Count)
	})
}

func TestFailureCount(t *testing.T) {
	t.Run("zero for nil headers", func(t *testing.T) {
		assert.Equal(t, 0, FailureCount(nil, "orders"))
	})

	t.Run("zero for empty history", func(t *testing.T) {
		assert.Equal(t, 0, FailureCount(amqp.Table{"x-death": []interface{}{}}, "orders"))
	})

	t.Run("zero when no record matches the worker queue", func(t *testing.T) {
		headers := amqp.Table{
			"x-death": []interface{}{
				amqp.Table{"queue": "orders-retry", "reason": "expired"},
				amqp.Table{"queue": "payments", "reason": "rejected"},
			},
		}
		assert.Equal(t, 0, FailureCount(headers, "orders"))
	})

	t.Run("counts only matching records in mixed histories", func(t *testing.T) {
		headers := amqp.Table{
			"x-death": []interface{}{
				amqp.Table{"queue": "orders", "reason": "rejected"},
				amqp.Table{"queue": "orders-retry", "reason": "expired"},
				amqp.Table{"queue": "payments", "reason": "rejected"},
			},
		}
		assert.Equal(t, 1, FailureCount(headers, "orders"))
	})

	t.Run("counts every matching record", func(t *testing.T) {
		records := make([]interface{}, 0, 4)
		for i := 0; i < 4; i++ {
			records = append(records, amqp.Table{"queue": "orders", "reason": "rejected"})
		}
		headers := amqp.Table{"x-death": records}

		assert.Equal(t, 4, FailureCount(headers, "orders"))
	})

	t.Run("malformed records count as non-matching", func(t *testing.T) {
		headers := amqp.Table{
			"x-death": []interface{}{
				"garbage",
				amqp.Table{"queue": int64(1)},
				amqp.Table{"queue": "orders"},
			},
		}
		assert.Equal(t, 1, FailureCount(headers, "orders"))
	})
}
