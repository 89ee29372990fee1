package stream

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/swan-solutions/knocki-homeassistant/pkg/knocki"
)

func testEvent(kind knocki.EventKind) knocki.Event {
	return knocki.Event{
		Kind: kind,
		Payload: knocki.Trigger{
			DeviceID: "dev-1",
			Details:  knocki.TriggerDetails{TriggerID: "7", Name: "porch light"},
		},
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDispatchInvokesMatchingListener(t *testing.T) {
	reg := newRegistry(discardLogger())

	var got []knocki.Event
	reg.add(knocki.EventTriggered, ListenerFunc(func(_ context.Context, event knocki.Event) {
		got = append(got, event)
	}))

	reg.dispatch(context.Background(), testEvent(knocki.EventTriggered))

	if len(got) != 1 {
		t.Fatalf("expected 1 invocation, got %d", len(got))
	}
	if got[0].Payload.Details.Name != "porch light" {
		t.Errorf("listener received wrong event: %+v", got[0])
	}
}

func TestDispatchSkipsOtherKinds(t *testing.T) {
	reg := newRegistry(discardLogger())

	invoked := false
	reg.add(knocki.EventDeleted, ListenerFunc(func(context.Context, knocki.Event) {
		invoked = true
	}))

	reg.dispatch(context.Background(), testEvent(knocki.EventTriggered))

	if invoked {
		t.Error("listener for a different kind must not be invoked")
	}
}

func TestDispatchPreservesRegistrationOrder(t *testing.T) {
	reg := newRegistry(discardLogger())

	var order []string
	reg.add(knocki.EventTriggered, ListenerFunc(func(context.Context, knocki.Event) {
		order = append(order, "a")
	}))
	reg.add(knocki.EventTriggered, ListenerFunc(func(context.Context, knocki.Event) {
		order = append(order, "b")
	}))

	reg.dispatch(context.Background(), testEvent(knocki.EventTriggered))

	if len(order) != 2 || order[0] != "a" || order[1] != "b" {
		t.Errorf("expected [a b], got %v", order)
	}
}

func TestUnregisterBeforeDispatch(t *testing.T) {
	reg := newRegistry(discardLogger())

	invoked := false
	remove := reg.add(knocki.EventTriggered, ListenerFunc(func(context.Context, knocki.Event) {
		invoked = true
	}))

	remove()
	reg.dispatch(context.Background(), testEvent(knocki.EventTriggered))

	if invoked {
		t.Error("removed listener must not be invoked")
	}

	// Removing again is a no-op.
	remove()
}

func TestUnregisterRemovesExactlyOne(t *testing.T) {
	reg := newRegistry(discardLogger())

	counts := make(map[string]int)
	reg.add(knocki.EventTriggered, ListenerFunc(func(context.Context, knocki.Event) {
		counts["a"]++
	}))
	removeB := reg.add(knocki.EventTriggered, ListenerFunc(func(context.Context, knocki.Event) {
		counts["b"]++
	}))
	reg.add(knocki.EventTriggered, ListenerFunc(func(context.Context, knocki.Event) {
		counts["c"]++
	}))

	removeB()
	reg.dispatch(context.Background(), testEvent(knocki.EventTriggered))

	if counts["a"] != 1 || counts["c"] != 1 {
		t.Errorf("surviving listeners not invoked: %v", counts)
	}
	if counts["b"] != 0 {
		t.Errorf("removed listener was invoked: %v", counts)
	}
}

func TestPanickingListenerDoesNotBlockOthers(t *testing.T) {
	reg := newRegistry(discardLogger())

	reg.add(knocki.EventTriggered, ListenerFunc(func(context.Context, knocki.Event) {
		panic("boom")
	}))
	invoked := false
	reg.add(knocki.EventTriggered, ListenerFunc(func(context.Context, knocki.Event) {
		invoked = true
	}))

	reg.dispatch(context.Background(), testEvent(knocki.EventTriggered))

	if !invoked {
		t.Error("listener after a panicking one must still be invoked")
	}
}

func TestRegisterDuringDispatch(t *testing.T) {
	reg := newRegistry(discardLogger())

	// A listener that mutates the registry mid-dispatch must not
	// deadlock or corrupt the list.
	reg.add(knocki.EventTriggered, ListenerFunc(func(context.Context, knocki.Event) {
		reg.add(knocki.EventTriggered, ListenerFunc(func(context.Context, knocki.Event) {}))
	}))

	reg.dispatch(context.Background(), testEvent(knocki.EventTriggered))
	reg.dispatch(context.Background(), testEvent(knocki.EventTriggered))
}

func TestConcurrentRegistrationAndDispatch(t *testing.T) {
	reg := newRegistry(discardLogger())

	var wg sync.WaitGroup
	stop := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				reg.dispatch(context.Background(), testEvent(knocki.EventTriggered))
			}
		}
	}()

	for range 100 {
		remove := reg.add(knocki.EventTriggered, ListenerFunc(func(context.Context, knocki.Event) {}))
		remove()
	}

	close(stop)
	wg.Wait()
}

func TestAsyncListener(t *testing.T) {
	reg := newRegistry(discardLogger())

	done := make(chan knocki.Event, 1)
	reg.add(knocki.EventTriggered, Async(ListenerFunc(func(_ context.Context, event knocki.Event) {
		done <- event
	})))

	reg.dispatch(context.Background(), testEvent(knocki.EventTriggered))

	select {
	case event := <-done:
		if event.Kind != knocki.EventTriggered {
			t.Errorf("unexpected event kind %q", event.Kind)
		}
	case <-time.After(time.Second):
		t.Fatal("async listener never ran")
	}
}

func TestAsyncListenerPanicIsContained(t *testing.T) {
	reg := newRegistry(discardLogger())

	ran := make(chan struct{}, 1)
	reg.add(knocki.EventTriggered, Async(ListenerFunc(func(context.Context, knocki.Event) {
		defer func() { ran <- struct{}{} }()
		panic("boom")
	})))

	reg.dispatch(context.Background(), testEvent(knocki.EventTriggered))

	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("async listener never ran")
	}
	// Give the recover path a moment; the test fails by crashing the
	// process if the panic escapes the goroutine.
	time.Sleep(10 * time.Millisecond)
}
