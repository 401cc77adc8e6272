package gpsfeed

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"
)

// ReplayPort implements Porter over a canned sentence stream. Writes are
// accepted and ignored, like a receiver that takes configuration sentences
// it does not understand.
type ReplayPort struct {
	io.Reader
	closer io.Closer
}

func (p *ReplayPort) Write(b []byte) (int, error) {
	return len(b), nil
}

func (p *ReplayPort) Close() error {
	return p.closer.Close()
}

// NewReplayFeed creates a Feed that loops over the given sentences, emitting
// one per interval. It stands in for GNSS hardware during development; pass
// nil sentences to replay a built-in synthetic drive.
func NewReplayFeed(sentences []string, interval time.Duration) *Feed[*ReplayPort] {
	if len(sentences) == 0 {
		sentences = replaySentences()
	}
	r, w := io.Pipe()
	port := &ReplayPort{Reader: r, closer: r}

	go func() {
		defer w.Close()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for i := 0; ; i++ {
			<-ticker.C
			// Closing the feed closes the pipe and ends the replay.
			if _, err := w.Write([]byte(sentences[i%len(sentences)] + "\r\n")); err != nil {
				return
			}
		}
	}()

	return NewFeed(port)
}

// replaySentences is a synthetic drive heading due north from Munich at
// roughly 18m per fix.
func replaySentences() []string {
	out := make([]string, 0, 30)
	for i := 0; i < 30; i++ {
		body := fmt.Sprintf("GPGGA,120%03d,4807.%03d,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,", i, 38+i*10)
		out = append(out, FormatSentence(body))
	}
	return out
}

// TestablePort implements Porter with configurable behaviour for tests:
// scripted reads, captured writes, injectable errors, and optional blocking
// reads so a Monitor goroutine does not spin on an empty buffer.
type TestablePort struct {
	mu sync.Mutex

	// Buffers backing Read and Write.
	ReadBuffer  *bytes.Buffer
	WriteBuffer *bytes.Buffer

	// One-shot errors for the next matching call; Close keeps its error.
	ReadError  error
	WriteError error
	CloseError error

	Closed     bool
	ReadCalls  int
	WriteCalls int

	// BlockReads parks Read on an empty buffer until data arrives or the
	// port closes.
	BlockReads bool

	readCond *sync.Cond
}

// NewTestablePort creates a TestablePort with blocking reads enabled.
func NewTestablePort() *TestablePort {
	tp := &TestablePort{
		ReadBuffer:  bytes.NewBuffer(nil),
		WriteBuffer: bytes.NewBuffer(nil),
		BlockReads:  true,
	}
	tp.readCond = sync.NewCond(&tp.mu)
	return tp
}

// Read reads from the read buffer, blocking for data if BlockReads is set.
func (t *TestablePort) Read(p []byte) (n int, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.ReadCalls++

	// A closed port reads as EOF so a scanner shuts down cleanly.
	if t.Closed {
		return 0, io.EOF
	}

	if t.ReadError != nil {
		err := t.ReadError
		t.ReadError = nil
		return 0, err
	}

	if t.BlockReads && t.ReadBuffer.Len() == 0 {
		for !t.Closed && t.ReadBuffer.Len() == 0 {
			t.readCond.Wait()
		}
		if t.Closed {
			return 0, io.EOF
		}
	}

	return t.ReadBuffer.Read(p)
}

// Write writes to the write buffer.
func (t *TestablePort) Write(p []byte) (n int, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.WriteCalls++

	if t.Closed {
		return 0, errors.New("write on closed port")
	}

	if t.WriteError != nil {
		err := t.WriteError
		t.WriteError = nil
		return 0, err
	}

	return t.WriteBuffer.Write(p)
}

// Close marks the port as closed and wakes any blocked readers.
func (t *TestablePort) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.Closed = true
	t.readCond.Broadcast()

	return t.CloseError
}

// PushSentence appends one sentence plus CRLF to the read buffer.
func (t *TestablePort) PushSentence(line string) {
	t.AddReadData([]byte(line + "\r\n"))
}

// SetReadError arranges for an upcoming Read to fail with err. Safe to call
// while a reader is blocked on the port.
func (t *TestablePort) SetReadError(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.ReadError = err
}

// AddReadData adds raw bytes to be returned by subsequent Read calls.
func (t *TestablePort) AddReadData(data []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.ReadBuffer.Write(data)
	t.readCond.Signal()
}

// GetWrittenData returns all data written to the port.
func (t *TestablePort) GetWrittenData() []byte {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.WriteBuffer.Bytes()
}

// Reset clears all buffers and resets state.
func (t *TestablePort) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.ReadBuffer.Reset()
	t.WriteBuffer.Reset()
	t.ReadCalls = 0
	t.WriteCalls = 0
	t.Closed = false
	t.ReadError = nil
	t.WriteError = nil
	t.CloseError = nil
}
