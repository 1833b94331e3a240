package handlers

import (
	"context"
	"errors"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestOneshot(t *testing.T) {
	ctx := context.Background()

	t.Run("acknowledge acks the delivery", func(t *testing.T) {
		ch := &mockChannel{}
		ch.On("Ack", uint64(1), false).Return(nil)

		h := NewOneshot(ch, "orders")
		require.NoError(t, h.Acknowledge(ctx, amqp.Delivery{DeliveryTag: 1}))
		ch.AssertExpectations(t)
	})

	t.Run("reject passes the requeue flag through", func(t *testing.T) {
		ch := &mockChannel{}
		ch.On("Reject", uint64(2), true).Return(nil)
		ch.On("Reject", uint64(3), false).Return(nil)

		h := NewOneshot(ch, "orders")
		require.NoError(t, h.Reject(ctx, amqp.Delivery{DeliveryTag: 2}, true))
		require.NoError(t, h.Reject(ctx, amqp.Delivery{DeliveryTag: 3}, false))
		ch.AssertExpectations(t)
	})

	t.Run("error rejects without requeue", func(t *testing.T) {
		ch := &mockChannel{}
		ch.On("Reject", uint64(4), false).Return(nil)

		h := NewOneshot(ch, "orders")
		require.NoError(t, h.Error(ctx, amqp.Delivery{DeliveryTag: 4}, errors.New("boom")))
		ch.AssertExpectations(t)
	})

	t.Run("timeout rejects without requeue", func(t *testing.T) {
		ch := &mockChannel{}
		ch.On("Reject", uint64(5), false).Return(nil)

		h := NewOneshot(ch, "orders")
		require.NoError(t, h.Timeout(ctx, amqp.Delivery{DeliveryTag: 5}))
		ch.AssertExpectations(t)
	})

	t.Run("noop takes no broker action", func(t *testing.T) {
		ch := &mockChannel{}

		h := NewOneshot(ch, "orders")
		require.NoError(t, h.Noop(ctx, amqp.Delivery{DeliveryTag: 6}))

		ch.AssertNotCalled(t, "Ack", mock.Anything, mock.Anything)
		ch.AssertNotCalled(t, "Reject", mock.Anything, mock.Anything)
	})

	t.Run("surfaces broker errors", func(t *testing.T) {
		ch := &mockChannel{}
		ch.On("Ack", uint64(7), false).Return(errors.New("channel closed"))

		h := NewOneshot(ch, "orders")
		assert.Error(t, h.Acknowledge(ctx, amqp.Delivery{DeliveryTag: 7}))
	})

	t.Run("factory builds a handler", func(t *testing.T) {
		ch := &mockChannel{}
		h, err := OneshotFactory(ch, "orders")
		require.NoError(t, err)
		assert.IsType(t, &Oneshot{}, h)
	})
}
