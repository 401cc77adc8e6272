package monitoring

import (
	"fmt"
	"strings"
	"testing"
)

func TestSetLoggerCapturesOutput(t *testing.T) {
	var lines []string
	prev := SetLogger(func(format string, v ...any) {
		lines = append(lines, fmt.Sprintf(format, v...))
	})
	defer SetLogger(prev)

	Logf("gps: feed error: %v; reopening port in %s", "device unplugged", "2s")

	if len(lines) != 1 {
		t.Fatalf("captured %d lines, want 1", len(lines))
	}
	want := "gps: feed error: device unplugged; reopening port in 2s"
	if lines[0] != want {
		t.Errorf("captured %q, want %q", lines[0], want)
	}
}

func TestSetLoggerNilMutes(t *testing.T) {
	var lines []string
	prev := SetLogger(func(format string, v ...any) {
		lines = append(lines, fmt.Sprintf(format, v...))
	})
	defer SetLogger(prev)

	SetLogger(nil)
	Logf("http: failed to encode json response: %v", "broken pipe")

	if len(lines) != 0 {
		t.Errorf("muted sink still captured %q", lines)
	}
	if Logf == nil {
		t.Error("Logf is nil after SetLogger(nil)")
	}
}

func TestSetLoggerReturnsPreviousSink(t *testing.T) {
	var first, second []string
	prev := SetLogger(func(format string, v ...any) {
		first = append(first, fmt.Sprintf(format, v...))
	})
	defer SetLogger(prev)

	firstSink := SetLogger(func(format string, v ...any) {
		second = append(second, fmt.Sprintf(format, v...))
	})
	Logf("recorder: wrote %d sentences", 42)

	SetLogger(firstSink)
	Logf("recorder: closed %s", "capture_20260512.nmea")

	if len(second) != 1 || !strings.Contains(second[0], "42 sentences") {
		t.Errorf("second sink captured %v", second)
	}
	if len(first) != 1 || !strings.Contains(first[0], "capture_20260512.nmea") {
		t.Errorf("first sink captured %v", first)
	}
}
