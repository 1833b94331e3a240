// Package handlers decides the fate of delivered messages.
//
// A Handler is invoked by a worker exactly once per delivery with the
// processing outcome, and translates that outcome into broker operations:
//   - Oneshot: acknowledge on success, plain broker reject on failure
//   - MaxRetry: broker-scheduled retries with a bounded retry budget and a
//     terminal error queue for exhausted messages
//
// MaxRetry delegates all retry delay to RabbitMQ itself. At construction it
// declares a retry queue with a message TTL and a dead-letter-exchange
// argument, so a rejected message sits in the retry queue until the TTL
// expires and is then routed back onto the worker queue. No in-process timers
// are involved, which means retry scheduling survives worker restarts.
//
// Example usage:
//
//	handler, err := handlers.NewMaxRetry(ch, "orders",
//	    handlers.WithMaxRetries(5),
//	    handlers.WithRetryTimeout(60*time.Second),
//	)
//	if err != nil {
//	    return err
//	}
//	// on processing failure:
//	err = handler.Error(ctx, delivery, processingErr)
package handlers
