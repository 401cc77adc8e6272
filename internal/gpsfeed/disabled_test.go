package gpsfeed

import (
	"context"
	"errors"
	"testing"
	"time"
)

// Subscription channels close synchronously, so a bounded select is enough
// to observe it; a still-open channel trips the timeout arm.
func TestDisabledFeed_UnsubscribeClosesChannel(t *testing.T) {
	d := NewDisabledFeed()
	id, ch := d.Subscribe()
	d.Unsubscribe(id)

	select {
	case _, ok := <-ch:
		if ok {
			t.Error("Unsubscribe delivered a value instead of closing the channel")
		}
	case <-time.After(time.Second):
		t.Fatal("channel still open after Unsubscribe")
	}

	// A second Unsubscribe of the same id must stay a no-op.
	d.Unsubscribe(id)
}

func TestDisabledFeed_CloseClosesAllChannels(t *testing.T) {
	d := NewDisabledFeed()
	id1, ch1 := d.Subscribe()
	_, ch2 := d.Subscribe()

	if err := d.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}

	for name, ch := range map[string]chan string{"first": ch1, "second": ch2} {
		select {
		case _, ok := <-ch:
			if ok {
				t.Errorf("%s subscriber got a value instead of a closed channel", name)
			}
		case <-time.After(time.Second):
			t.Fatalf("%s subscriber channel still open after Close", name)
		}
	}

	// Unsubscribing after Close must not panic on the emptied table.
	d.Unsubscribe(id1)
}

func TestDisabledFeed_SubscribeAfterClose(t *testing.T) {
	d := NewDisabledFeed()
	if err := d.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}

	_, ch := d.Subscribe()
	select {
	case _, ok := <-ch:
		if ok {
			t.Error("expected a closed channel from Subscribe after Close")
		}
	case <-time.After(1 * time.Second):
		t.Fatal("timeout reading from post-close subscription")
	}
}

func TestDisabledFeed_ReopenAlwaysFails(t *testing.T) {
	if err := NewDisabledFeed().Reopen(); !errors.Is(err, ErrNoReopen) {
		t.Errorf("Reopen() = %v, want ErrNoReopen", err)
	}
}

func TestDisabledFeed_MonitorBlocksUntilCancel(t *testing.T) {
	d := NewDisabledFeed()

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- d.Monitor(ctx)
	}()

	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(1 * time.Second):
		t.Fatal("Monitor did not exit after context cancellation")
	}
}
