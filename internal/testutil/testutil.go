// Package testutil holds the assertion and HTTP helpers shared by tests
// across packages.
package testutil

import (
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
)

// AssertStatusCode fails the test when a handler answered with the wrong
// HTTP status.
func AssertStatusCode(t *testing.T, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("status code = %d, want %d", got, want)
	}
}

// AssertNoError stops the test on an unexpected error.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertInDelta checks that got is within delta of want. NaN values always
// fail, so a transform that silently produced NaN cannot slip through.
func AssertInDelta(t *testing.T, got, want, delta float64) {
	t.Helper()
	if math.IsNaN(got) || math.IsNaN(want) {
		t.Errorf("value = %v, want %v (NaN is never accepted)", got, want)
		return
	}
	if math.Abs(got-want) > delta {
		t.Errorf("value = %v, want %v (within %v)", got, want, delta)
	}
}

// NewTestRequest builds a bodyless request for handler tests.
func NewTestRequest(method, path string) *http.Request {
	return httptest.NewRequest(method, path, nil)
}

// NewTestRecorder returns a fresh response recorder.
func NewTestRecorder() *httptest.ResponseRecorder {
	return httptest.NewRecorder()
}
