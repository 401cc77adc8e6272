package timeutil

import (
	"sync"
	"testing"
	"time"
)

var captureStart = time.Date(2026, 5, 12, 8, 0, 0, 0, time.UTC)

func TestRealClockNow(t *testing.T) {
	before := time.Now()
	now := RealClock{}.Now()
	after := time.Now()

	if now.Before(before) || now.After(after) {
		t.Errorf("Now() = %v, want between %v and %v", now, before, after)
	}
}

func TestRealClockAfter(t *testing.T) {
	select {
	case <-RealClock{}.After(time.Millisecond):
	case <-time.After(time.Second):
		t.Fatal("After(1ms) did not fire")
	}
}

func TestMockClockSetAndAdvance(t *testing.T) {
	clock := NewMockClock(captureStart)
	if got := clock.Now(); !got.Equal(captureStart) {
		t.Errorf("Now() = %v, want %v", got, captureStart)
	}

	clock.Advance(3 * time.Second)
	if got := clock.Now(); !got.Equal(captureStart.Add(3 * time.Second)) {
		t.Errorf("Now() after Advance = %v, want %v", got, captureStart.Add(3*time.Second))
	}

	// A capture replay jumps the clock straight to each fix timestamp.
	fixTime := captureStart.Add(42 * time.Minute)
	clock.Set(fixTime)
	if got := clock.Now(); !got.Equal(fixTime) {
		t.Errorf("Now() after Set = %v, want %v", got, fixTime)
	}
}

func TestMockClockAfterFiresOnAdvance(t *testing.T) {
	clock := NewMockClock(captureStart)

	// The requested durations do not matter; the next Advance releases
	// every waiter.
	short := clock.After(time.Second)
	long := clock.After(time.Hour)

	select {
	case <-short:
		t.Fatal("After fired before Advance")
	default:
	}

	clock.Advance(2 * time.Second)
	want := captureStart.Add(2 * time.Second)
	for name, ch := range map[string]<-chan time.Time{"short": short, "long": long} {
		select {
		case got := <-ch:
			if !got.Equal(want) {
				t.Errorf("%s waiter got %v, want %v", name, got, want)
			}
		default:
			t.Errorf("%s waiter did not fire on Advance", name)
		}
	}
}

func TestMockClockAfterFiresOnce(t *testing.T) {
	clock := NewMockClock(captureStart)
	ch := clock.After(time.Second)

	clock.Advance(time.Second)
	<-ch

	clock.Advance(time.Second)
	select {
	case got := <-ch:
		t.Errorf("waiter fired a second time with %v", got)
	default:
	}
}

func TestMockClockConcurrentWaiters(t *testing.T) {
	clock := NewMockClock(captureStart)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-clock.After(time.Second)
		}()
	}

	// Advance until every waiter has registered and been released.
	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case <-done:
			return
		case <-deadline:
			t.Fatal("waiters still blocked after repeated Advance")
		case <-time.After(time.Millisecond):
			clock.Advance(time.Second)
		}
	}
}
