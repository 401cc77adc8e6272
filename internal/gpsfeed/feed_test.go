package gpsfeed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/banshee-data/pathframe/internal/timeutil"
)

// TestNewFeed tests creation of a new Feed
func TestNewFeed(t *testing.T) {
	port := NewTestablePort()
	feed := NewFeed(port)

	if feed == nil {
		t.Fatal("NewFeed returned nil")
	}
	if feed.port != port {
		t.Error("Feed port not set correctly")
	}
	if feed.subscribers == nil {
		t.Error("Feed subscribers map not initialized")
	}
}

// TestFeed_Subscribe tests subscribing to the feed
func TestFeed_Subscribe(t *testing.T) {
	feed := NewFeed(NewTestablePort())

	id1, ch1 := feed.Subscribe()
	id2, ch2 := feed.Subscribe()

	if id1 == "" {
		t.Error("First subscription returned empty ID")
	}
	if id2 == "" {
		t.Error("Second subscription returned empty ID")
	}
	if id1 == id2 {
		t.Error("Subscription IDs should be unique")
	}
	if ch1 == nil {
		t.Error("First subscription returned nil channel")
	}
	if ch2 == nil {
		t.Error("Second subscription returned nil channel")
	}

	feed.subscriberMu.Lock()
	if len(feed.subscribers) != 2 {
		t.Errorf("Expected 2 subscribers, got %d", len(feed.subscribers))
	}
	feed.subscriberMu.Unlock()
}

// TestFeed_Unsubscribe tests unsubscribing from the feed
func TestFeed_Unsubscribe(t *testing.T) {
	feed := NewFeed(NewTestablePort())

	id, ch := feed.Subscribe()

	done := make(chan bool)
	go func() {
		_, ok := <-ch
		if ok {
			t.Error("Expected channel to be closed")
		}
		done <- true
	}()

	time.Sleep(10 * time.Millisecond)

	feed.Unsubscribe(id)

	select {
	case <-done:
	case <-time.After(1 * time.Second):
		t.Fatal("Timeout waiting for channel closure")
	}

	feed.subscriberMu.Lock()
	if len(feed.subscribers) != 0 {
		t.Errorf("Expected 0 subscribers, got %d", len(feed.subscribers))
	}
	feed.subscriberMu.Unlock()
}

// TestFeed_Unsubscribe_NonExistent tests unsubscribing with invalid ID
func TestFeed_Unsubscribe_NonExistent(t *testing.T) {
	feed := NewFeed(NewTestablePort())

	// Should not panic
	feed.Unsubscribe("non-existent-id")
}

// TestFeed_SendSentence tests sending configuration sentences to the port
func TestFeed_SendSentence(t *testing.T) {
	port := NewTestablePort()
	feed := NewFeed(port)

	tests := []struct {
		name     string
		sentence string
		expected string
	}{
		{"sentence without terminator", "$PMTK220,1000*1F", "$PMTK220,1000*1F\r\n"},
		{"sentence with terminator", "$PMTK314,0,1,0,1*2C\r\n", "$PMTK314,0,1,0,1*2C\r\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := feed.SendSentence(tt.sentence); err != nil {
				t.Errorf("SendSentence returned error: %v", err)
			}
		})
	}

	written := string(port.GetWrittenData())
	if !strings.Contains(written, "$PMTK220,1000*1F\r\n") {
		t.Error("Expected rate sentence to be written with CRLF")
	}
	if strings.Contains(written, "\r\n\r\n") {
		t.Error("Terminator should not be doubled")
	}
}

// TestFeed_SendSentence_WriteError tests error handling in SendSentence
func TestFeed_SendSentence_WriteError(t *testing.T) {
	port := NewTestablePort()
	feed := NewFeed(port)

	port.WriteError = errors.New("write failed")

	if err := feed.SendSentence("$PMTK220,1000*1F"); err == nil {
		t.Error("Expected error when write fails")
	}
}

// TestFeed_SendSentence_PartialWrite tests handling of partial writes
func TestFeed_SendSentence_PartialWrite(t *testing.T) {
	port := &PartialWritePort{maxWrite: 1}
	feed := NewFeed(port)

	err := feed.SendSentence("$PMTK220,1000*1F")
	if !errors.Is(err, ErrWriteFailed) {
		t.Errorf("Expected ErrWriteFailed for partial write, got %v", err)
	}
}

// TestFeed_Monitor tests fan-out of scanned sentences to subscribers
func TestFeed_Monitor(t *testing.T) {
	port := NewTestablePort()
	feed := NewFeed(port)

	_, ch1 := feed.Subscribe()
	_, ch2 := feed.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- feed.Monitor(ctx)
	}()

	// Fan-out skips subscribers that are not ready, so keep pushing until
	// both readers have seen a line.
	sentence := FormatSentence("GPGGA,123519,4807.038,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,")
	stopPushing := make(chan struct{})
	defer close(stopPushing)
	go func() {
		for {
			select {
			case <-stopPushing:
				return
			case <-time.After(5 * time.Millisecond):
				port.PushSentence(sentence)
			}
		}
	}()

	for i, ch := range []chan string{ch1, ch2} {
		select {
		case line := <-ch:
			if line != sentence {
				t.Errorf("Subscriber %d got %q, want %q", i+1, line, sentence)
			}
		case <-time.After(1 * time.Second):
			t.Fatalf("Timeout waiting for subscriber %d", i+1)
		}
	}

	// Closing the feed closes the port and ends the monitor loop
	if err := feed.Close(); err != nil {
		t.Errorf("Close returned error: %v", err)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Monitor returned error after close: %v", err)
		}
	case <-time.After(1 * time.Second):
		t.Fatal("Monitor did not exit after Close")
	}
}

// TestFeed_Monitor_ContextCancel tests Monitor exit on context cancellation
func TestFeed_Monitor_ContextCancel(t *testing.T) {
	feed := NewFeed(NewTestablePort())

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- feed.Monitor(ctx)
	}()

	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Expected context.Canceled, got %v", err)
		}
	case <-time.After(1 * time.Second):
		t.Fatal("Monitor did not exit after context cancellation")
	}
}

// TestFeed_Monitor_ScanError tests Monitor with a failing port
func TestFeed_Monitor_ScanError(t *testing.T) {
	port := NewTestablePort()
	feed := NewFeed(port)

	port.ReadError = errors.New("simulated read error")

	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	err := feed.Monitor(ctx)
	if err == nil || errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected read error from Monitor, got %v", err)
	}
}

// TestFeed_Monitor_SlowSubscriber tests that an unread subscriber channel
// does not block delivery to other subscribers
func TestFeed_Monitor_SlowSubscriber(t *testing.T) {
	port := NewTestablePort()
	feed := NewFeed(port)

	// First subscriber never reads its channel
	feed.Subscribe()
	_, ch := feed.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go feed.Monitor(ctx)

	sentence := FormatSentence("GPRMC,123519,A,4807.038,N,01131.000,E,022.4,084.4,230394,003.1,W")
	stopPushing := make(chan struct{})
	defer close(stopPushing)
	go func() {
		for {
			select {
			case <-stopPushing:
				return
			case <-time.After(5 * time.Millisecond):
				port.PushSentence(sentence)
			}
		}
	}()

	select {
	case <-ch:
	case <-time.After(1 * time.Second):
		t.Fatal("Reading subscriber starved by a slow subscriber")
	}
}

// TestFeed_Close tests closing the feed
func TestFeed_Close(t *testing.T) {
	port := NewTestablePort()
	feed := NewFeed(port)

	id1, ch1 := feed.Subscribe()
	_, ch2 := feed.Subscribe()

	done1 := make(chan bool)
	done2 := make(chan bool)

	go func() {
		_, ok := <-ch1
		if ok {
			t.Error("Expected channel 1 to be closed")
		}
		done1 <- true
	}()

	go func() {
		_, ok := <-ch2
		if ok {
			t.Error("Expected channel 2 to be closed")
		}
		done2 <- true
	}()

	time.Sleep(10 * time.Millisecond)

	if err := feed.Close(); err != nil {
		t.Errorf("Close returned error: %v", err)
	}

	select {
	case <-done1:
	case <-time.After(1 * time.Second):
		t.Fatal("Timeout waiting for channel 1 closure")
	}

	select {
	case <-done2:
	case <-time.After(1 * time.Second):
		t.Fatal("Timeout waiting for channel 2 closure")
	}

	feed.subscriberMu.Lock()
	if len(feed.subscribers) != 0 {
		t.Errorf("Expected 0 subscribers after close, got %d", len(feed.subscribers))
	}
	feed.subscriberMu.Unlock()

	feed.closingMu.Lock()
	if !feed.closing {
		t.Error("Expected closing flag to be true after Close")
	}
	feed.closingMu.Unlock()

	if !port.Closed {
		t.Error("Expected port to be closed")
	}

	// Unsubscribing after close should be safe
	feed.Unsubscribe(id1)
}

func TestFeed_Reopen(t *testing.T) {
	port1 := NewTestablePort()
	port2 := NewTestablePort()
	feed := NewFeed(port1)

	if err := feed.Reopen(); !errors.Is(err, ErrNoReopen) {
		t.Errorf("Expected ErrNoReopen without a backing device, got %v", err)
	}

	feed.reopen = func() (*TestablePort, error) { return port2, nil }
	if err := feed.Reopen(); err != nil {
		t.Fatalf("Reopen returned error: %v", err)
	}
	if !port1.Closed {
		t.Error("Expected Reopen to close the old port")
	}

	// Writes land on the replacement port.
	if err := feed.SendSentence("$PMTK220,1000*1F"); err != nil {
		t.Fatalf("SendSentence after Reopen returned error: %v", err)
	}
	if got := string(port2.GetWrittenData()); !strings.Contains(got, "PMTK220") {
		t.Errorf("Expected the sentence on the new port, got %q", got)
	}

	if err := feed.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}
	if err := feed.Reopen(); err == nil {
		t.Error("Expected an error reopening a closed feed")
	}
}

// TestRunFeed_ReopensAfterPortError exercises the full recovery cycle: a
// subscriber keeps its channel while the port fails, the backoff elapses,
// and a fresh port takes over.
func TestRunFeed_ReopensAfterPortError(t *testing.T) {
	port1 := NewTestablePort()
	port2 := NewTestablePort()
	feed := NewFeed(port1)

	swapped := make(chan struct{})
	feed.reopen = func() (*TestablePort, error) {
		close(swapped)
		return port2, nil
	}

	clock := timeutil.NewMockClock(time.Date(2026, 6, 2, 8, 0, 0, 0, time.UTC))

	var logMu sync.Mutex
	var logged []string
	logf := func(format string, v ...any) {
		logMu.Lock()
		logged = append(logged, fmt.Sprintf(format, v...))
		logMu.Unlock()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, ch := feed.Subscribe()

	done := make(chan error, 1)
	go func() {
		done <- RunFeed(ctx, feed, clock, time.Second, logf)
	}()

	sentence := FormatSentence("GPGGA,123519,4807.038,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,")

	// Fan-out skips a subscriber that is not ready, so push until the line
	// arrives.
	receiveFrom := func(port *TestablePort, what string) {
		deadline := time.After(2 * time.Second)
		for {
			select {
			case line := <-ch:
				if line != sentence {
					t.Fatalf("Got %q from %s, want %q", line, what, sentence)
				}
				return
			case <-deadline:
				t.Fatalf("Timeout waiting for a line from %s", what)
			case <-time.After(5 * time.Millisecond):
				port.PushSentence(sentence)
			}
		}
	}
	receiveFrom(port1, "the first port")

	// Fail the first port: the queued sentence wakes the blocked reader and
	// the following read reports the error.
	port1.SetReadError(errors.New("device unplugged"))
	port1.PushSentence(sentence)

	// RunFeed now waits out the backoff on the mock clock.
	deadline := time.After(2 * time.Second)
	for waiting := true; waiting; {
		select {
		case <-swapped:
			waiting = false
		case <-deadline:
			t.Fatal("Timeout waiting for the port swap")
		case <-time.After(time.Millisecond):
			clock.Advance(time.Second)
		}
	}

	// The subscription survives the swap.
	receiveFrom(port2, "the replacement port")

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("RunFeed did not exit after cancellation")
	}

	logMu.Lock()
	defer logMu.Unlock()
	found := false
	for _, line := range logged {
		if strings.Contains(line, "reopening port") {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected a reopen log line, got %v", logged)
	}
}

// TestRunFeed_NoReopenReturnsFeedError covers feeds without a backing
// device: the original feed error comes back instead of a retry loop.
func TestRunFeed_NoReopenReturnsFeedError(t *testing.T) {
	port := NewTestablePort()
	feed := NewFeed(port)

	readErr := errors.New("gone for good")
	port.ReadError = readErr

	clock := timeutil.NewMockClock(time.Date(2026, 6, 2, 8, 0, 0, 0, time.UTC))

	done := make(chan error, 1)
	go func() {
		done <- RunFeed(context.Background(), feed, clock, time.Second, func(string, ...any) {})
	}()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case err := <-done:
			if !errors.Is(err, readErr) {
				t.Errorf("Expected the port read error, got %v", err)
			}
			return
		case <-deadline:
			t.Fatal("Timeout waiting for RunFeed to give up")
		case <-time.After(time.Millisecond):
			clock.Advance(time.Second)
		}
	}
}

// TestRandomID tests the randomID helper function
func TestRandomID(t *testing.T) {
	ids := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := randomID()
		if len(id) != 16 { // 8 bytes hex encoded = 16 chars
			t.Errorf("Expected ID length 16, got %d", len(id))
		}
		if ids[id] {
			t.Errorf("Duplicate ID generated: %s", id)
		}
		ids[id] = true
	}
}

// PartialWritePort is a test port that only writes a limited number of bytes
type PartialWritePort struct {
	maxWrite int
	written  []byte
	closed   bool
}

func (p *PartialWritePort) Read(buf []byte) (int, error) {
	return 0, io.EOF
}

func (p *PartialWritePort) Write(data []byte) (int, error) {
	if p.maxWrite > 0 && len(data) > p.maxWrite {
		p.written = append(p.written, data[:p.maxWrite]...)
		return p.maxWrite, nil
	}
	p.written = append(p.written, data...)
	return len(data), nil
}

func (p *PartialWritePort) Close() error {
	p.closed = true
	return nil
}

// TestFeed_AttachAdminRoutes tests the admin routes attachment
func TestFeed_AttachAdminRoutes(t *testing.T) {
	feed := NewFeed(NewTestablePort())

	httpMux := http.NewServeMux()
	feed.AttachAdminRoutes(httpMux)

	// Debug routes may be guarded by tsweb auth; registered routes respond
	// with something other than 404.
	t.Run("send-sentence_registered", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/debug/send-sentence", strings.NewReader("sentence=%24PMTK220%2C1000%2A1F"))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		w := httptest.NewRecorder()
		httpMux.ServeHTTP(w, req)

		if w.Code == http.StatusNotFound {
			t.Errorf("Route /debug/send-sentence should be registered, got 404")
		}
	})

	t.Run("tail_registered", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/debug/tail", nil)
		w := httptest.NewRecorder()
		httpMux.ServeHTTP(w, req)

		if w.Code == http.StatusNotFound {
			t.Errorf("Route /debug/tail should be registered, got 404")
		}
	})
}

// TestReplayFeed tests that the canned replay feed produces valid sentences
func TestReplayFeed(t *testing.T) {
	feed := NewReplayFeed(nil, 5*time.Millisecond)
	defer feed.Close()

	_, ch := feed.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go feed.Monitor(ctx)

	select {
	case line := <-ch:
		fix, err := ParseSentence(line)
		if err != nil {
			t.Fatalf("Replay emitted unparseable sentence %q: %v", line, err)
		}
		if !fix.Valid {
			t.Errorf("Replay fix should be valid, got %+v", fix)
		}
	case <-time.After(1 * time.Second):
		t.Fatal("Timeout waiting for replayed sentence")
	}
}
