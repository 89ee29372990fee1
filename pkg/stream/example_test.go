package stream_test

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/swan-solutions/knocki-homeassistant/pkg/knocki"
	"github.com/swan-solutions/knocki-homeassistant/pkg/stream"
)

func ExampleClient() {
	c, err := stream.New(stream.Config{
		Token: "token-from-login",
	})
	if err != nil {
		log.Fatal(err)
	}

	remove := c.On(knocki.EventTriggered, stream.ListenerFunc(
		func(_ context.Context, event knocki.Event) {
			fmt.Printf("knock on %s: %s\n", event.Payload.DeviceID, event.Payload.Details.Name)
		}))
	defer remove()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	// Start blocks until the context is cancelled or Stop is called.
	if err := c.Start(ctx); err != nil {
		log.Printf("event stream stopped: %v", err)
	}
}

func ExampleClient_gracefulShutdown() {
	c, err := stream.New(stream.Config{Token: "token-from-login"})
	if err != nil {
		log.Fatal(err)
	}

	go func() {
		if err := c.Start(context.Background()); err != nil {
			log.Printf("event stream error: %v", err)
		}
	}()

	// Do some work...
	time.Sleep(10 * time.Second)

	// Gracefully stop the client.
	c.Stop()
}
