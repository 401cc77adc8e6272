// Package gpsfeed provides an abstraction over a GNSS serial port with the
// ability for multiple clients to subscribe to NMEA sentences from the port
// and send configuration sentences to a single receiver.
package gpsfeed

import (
	"bufio"
	"bytes"
	"context"
	crand "crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/banshee-data/pathframe/internal/monitoring"
	"github.com/banshee-data/pathframe/internal/timeutil"
)

var ErrWriteFailed = fmt.Errorf("failed to write to serial port")

// ErrNoReopen is returned by Reopen on feeds that have no backing device to
// reopen, such as replay and test feeds.
var ErrNoReopen = fmt.Errorf("feed port cannot be reopened")

var errFeedClosing = errors.New("feed is closing")

// Feed is a generic serial line multiplexer that allows multiple clients to
// subscribe to sentences from a single GNSS receiver.
type Feed[T Porter] struct {
	port         T
	reopen       func() (T, error)
	subscribers  map[string]chan string
	subscriberMu sync.Mutex
	commandMu    sync.Mutex
	closing      bool
	closingMu    sync.Mutex
}

// FeedInterface defines the interface for the Feed type.
type FeedInterface interface {
	// Subscribe creates a new channel for receiving sentences from the
	// port. The channel ID identifies the channel when unsubscribing.
	Subscribe() (string, chan string)
	// Unsubscribe removes a channel from the list of subscribers.
	Unsubscribe(string)
	// SendSentence writes the provided configuration sentence to the port.
	SendSentence(string) error
	// Monitor reads sentences from the port and fans them out to the
	// subscribed channels.
	Monitor(context.Context) error
	// Reopen replaces a failed port with a fresh one at the same device.
	// Subscriptions survive the swap. Call only after Monitor has
	// returned.
	Reopen() error
	// Close closes all subscribed channels and closes the port.
	Close() error

	// AttachAdminRoutes attaches admin debugging endpoints to the given
	// HTTP mux served at /debug/. These routes are accessible only over
	// localhost/via Tailscale and are not publicly accessible.
	AttachAdminRoutes(*http.ServeMux)
}

// NewFeed creates a Feed backed by the given port.
func NewFeed[T Porter](port T) *Feed[T] {
	return &Feed[T]{
		port:         port,
		subscribers:  make(map[string]chan string),
		subscriberMu: sync.Mutex{},
		commandMu:    sync.Mutex{},
	}
}

// randomID generates a random channel ID (8 byte random hex encoded value)
func randomID() string {
	b := make([]byte, 8)
	crand.Read(b)
	return hex.EncodeToString(b)
}

func (f *Feed[T]) Subscribe() (string, chan string) {
	id := randomID()
	ch := make(chan string)
	f.subscriberMu.Lock()
	defer f.subscriberMu.Unlock()
	f.subscribers[id] = ch
	return id, ch
}

// Unsubscribe removes a subscriber from the feed.
func (f *Feed[T]) Unsubscribe(id string) {
	f.subscriberMu.Lock()
	defer f.subscriberMu.Unlock()
	if ch, ok := f.subscribers[id]; ok {
		close(ch)
		delete(f.subscribers, id)
	}
}

// SendSentence writes a configuration sentence to the receiver.
func (f *Feed[T]) SendSentence(sentence string) error {
	f.commandMu.Lock()
	defer f.commandMu.Unlock()
	if !bytes.HasSuffix([]byte(sentence), []byte("\r\n")) {
		sentence += "\r\n" // NMEA sentences are CRLF terminated
	}
	n, err := f.port.Write([]byte(sentence))
	if err != nil {
		return err
	}
	if n != len(sentence) {
		return ErrWriteFailed
	}
	return nil
}

// Monitor reads sentences from the port and fans them out to subscribers.
func (f *Feed[T]) Monitor(ctx context.Context) error {
	scan := bufio.NewScanner(f.port)

	lineChan := make(chan string)
	scanErrChan := make(chan error, 1)

	// start a goroutine to read from the port & send any scanned sentences
	// to lineChan, and any errors to scanErrChan.
	//
	// the blocking scan.Scan will not interfere with our outer loop awaiting
	// lines & context cancellation.
	go func() {
		defer close(lineChan)
		for scan.Scan() {
			select {
			case lineChan <- scan.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := scan.Err(); err != nil {
			select {
			case scanErrChan <- err:
			case <-ctx.Done():
			}
		}
	}()

	for {
		select {
		// check if the context is done
		// and exit the loop if so
		case <-ctx.Done():
			return ctx.Err()

		case err := <-scanErrChan:
			return err

		case line, ok := <-lineChan:
			// if the channel is closed, we're done reading from the port
			if !ok {
				if err := scan.Err(); err != nil {
					return err
				}
				return nil
			}
			// Check if we're closing
			f.closingMu.Lock()
			if f.closing {
				f.closingMu.Unlock()
				return nil
			}
			f.closingMu.Unlock()

			f.subscriberMu.Lock()
			for _, ch := range f.subscribers {
				select {
				case ch <- line:
				default:
					// if the channel is full/blocking skip so as not to block the outer loop
				}
			}
			f.subscriberMu.Unlock()
		}
	}
}

func (f *Feed[T]) Close() error {
	f.closingMu.Lock()
	f.closing = true
	f.closingMu.Unlock()

	f.subscriberMu.Lock()
	defer f.subscriberMu.Unlock()
	for id, ch := range f.subscribers {
		close(ch)
		delete(f.subscribers, id)
	}
	return f.port.Close()
}

// Reopen closes the current port and opens a fresh one at the same device.
// Feeds without a backing device return ErrNoReopen.
func (f *Feed[T]) Reopen() error {
	if f.reopen == nil {
		return ErrNoReopen
	}

	f.closingMu.Lock()
	if f.closing {
		f.closingMu.Unlock()
		return errFeedClosing
	}
	f.closingMu.Unlock()

	f.commandMu.Lock()
	defer f.commandMu.Unlock()
	f.port.Close()
	port, err := f.reopen()
	if err != nil {
		return err
	}
	f.port = port
	return nil
}

// RunFeed drives Monitor and keeps the feed alive across port failures:
// after an error it waits out the backoff, reopens the port, and resumes.
// Subscribers keep their channels through the whole cycle. It returns when
// ctx is canceled, the feed shuts down cleanly, or the feed cannot be
// reopened. A nil logf falls back to the package diagnostic logger.
func RunFeed(ctx context.Context, f FeedInterface, clock timeutil.Clock, backoff time.Duration, logf func(format string, v ...any)) error {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	if backoff <= 0 {
		backoff = 2 * time.Second
	}
	if logf == nil {
		// Indirect so a later monitoring.SetLogger still takes effect.
		logf = func(format string, v ...any) { monitoring.Logf(format, v...) }
	}

	for {
		err := f.Monitor(ctx)
		if err == nil || ctx.Err() != nil {
			return err
		}

		logf("gps: feed error: %v; reopening port in %s", err, backoff)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-clock.After(backoff):
		}

		if rerr := f.Reopen(); rerr != nil {
			if errors.Is(rerr, ErrNoReopen) || errors.Is(rerr, errFeedClosing) {
				return err
			}
			// Device still absent. The next Monitor pass fails fast and
			// the loop paces itself on the backoff.
			logf("gps: reopen failed: %v", rerr)
		}
	}
}
