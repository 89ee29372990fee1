// Package stream maintains a long-lived WebSocket connection to the
// Knocki event stream and fans inbound events out to registered
// listeners.
//
// The client handles:
//   - Automatic reconnection with exponential backoff
//   - Protocol-level heartbeat pings so the server keeps the idle
//     connection open
//   - Per-kind listener registration with ordered, panic-isolated
//     dispatch
//   - Graceful shutdown via context cancellation or Stop
//
// Basic usage:
//
//	c, err := stream.New(stream.Config{Token: token})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	remove := c.On(knocki.EventTriggered, stream.ListenerFunc(
//	    func(_ context.Context, event knocki.Event) {
//	        fmt.Printf("knock on %s\n", event.Payload.DeviceID)
//	    }))
//	defer remove()
//
//	// Start blocks until the context is cancelled or Stop is called.
//	if err := c.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// Listeners run on the receive goroutine, in registration order, and the
// next frame is not read until every listener for the current event has
// returned. A slow listener therefore throttles the stream; that
// backpressure is intentional. Wrap a listener with Async to move its
// work off the receive loop.
package stream
