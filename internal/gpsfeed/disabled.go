package gpsfeed

import (
	"context"
	"io"
	"net/http"
	"sync"
)

// DisabledFeed satisfies FeedInterface when no GNSS receiver is configured,
// so the HTTP server and admin routes still come up. Subscribers are tracked
// only so Close can hand every reader a closed channel instead of leaving it
// blocked.
type DisabledFeed struct {
	mu          sync.Mutex
	subscribers map[string]chan string
	closing     bool
}

func NewDisabledFeed() *DisabledFeed {
	return &DisabledFeed{
		subscribers: make(map[string]chan string),
	}
}

func (d *DisabledFeed) Subscribe() (string, chan string) {
	id := randomID()
	ch := make(chan string)

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closing {
		// Late subscribers get a closed channel rather than one that
		// will never deliver.
		close(ch)
		return id, ch
	}
	d.subscribers[id] = ch
	return id, ch
}

func (d *DisabledFeed) Unsubscribe(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if ch, ok := d.subscribers[id]; ok {
		close(ch)
		delete(d.subscribers, id)
	}
}

// SendSentence drops the write; there is no device to configure.
func (d *DisabledFeed) SendSentence(string) error { return nil }

// Monitor parks until the context ends.
func (d *DisabledFeed) Monitor(ctx context.Context) error { <-ctx.Done(); return ctx.Err() }

// Reopen always fails, which keeps RunFeed from spinning on a feed that
// has no device behind it.
func (d *DisabledFeed) Reopen() error { return ErrNoReopen }

func (d *DisabledFeed) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closing {
		return nil
	}
	d.closing = true
	for id, ch := range d.subscribers {
		close(ch)
		delete(d.subscribers, id)
	}
	return nil
}

func (d *DisabledFeed) AttachAdminRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/debug/gps-disabled", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "gps disabled\n")
	})
}
