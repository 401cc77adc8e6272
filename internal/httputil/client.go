package httputil

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
)

// Doer is the request surface the deploy and health tooling uses, so
// tests can script responses without a listener. StandardClient backs it
// in production.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
	Get(url string) (*http.Response, error)
}

// StandardClient adapts *http.Client to Doer.
type StandardClient struct {
	*http.Client
}

// NewStandardClient wraps c; a nil c uses http.DefaultClient.
func NewStandardClient(c *http.Client) *StandardClient {
	if c == nil {
		c = http.DefaultClient
	}
	return &StandardClient{Client: c}
}

// MockClient replays a queue of scripted responses in order and records
// every request it sees. Requests past the end of the queue fail, so a
// test that issues more requests than it scripted breaks loudly.
type MockClient struct {
	mu       sync.Mutex
	requests []*http.Request
	queue    []scripted
}

type scripted struct {
	status int
	body   string
	err    error
}

// Respond queues a response with the given status and body.
func (m *MockClient) Respond(status int, body string) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, scripted{status: status, body: body})
	return m
}

// Fail queues a transport error.
func (m *MockClient) Fail(err error) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, scripted{err: err})
	return m
}

func (m *MockClient) Do(req *http.Request) (*http.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.requests = append(m.requests, req)
	if len(m.queue) == 0 {
		return nil, fmt.Errorf("mock client: no response scripted for %s %s", req.Method, req.URL)
	}
	next := m.queue[0]
	m.queue = m.queue[1:]

	if next.err != nil {
		return nil, next.err
	}
	return &http.Response{
		Status:     fmt.Sprintf("%d %s", next.status, http.StatusText(next.status)),
		StatusCode: next.status,
		Body:       io.NopCloser(strings.NewReader(next.body)),
		Header:     make(http.Header),
		Request:    req,
	}, nil
}

func (m *MockClient) Get(url string) (*http.Response, error) {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	return m.Do(req)
}

// Requests returns a copy of the recorded requests in arrival order.
func (m *MockClient) Requests() []*http.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*http.Request, len(m.requests))
	copy(out, m.requests)
	return out
}

var (
	_ Doer = (*StandardClient)(nil)
	_ Doer = (*MockClient)(nil)
)
