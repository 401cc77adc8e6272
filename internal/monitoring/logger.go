// Package monitoring carries the process-wide diagnostic sink. Long-running
// components log through Logf when their caller injects no logger of its own,
// and tests swap the sink out to capture or mute that output.
package monitoring

import "log"

// Logf is the diagnostic sink, log.Printf until SetLogger swaps it.
// Components holding a logf closure should wrap Logf in an indirection so a
// later swap still takes effect.
var Logf = log.Printf

// SetLogger points Logf at fn and returns the previous sink so the caller
// can restore it. A nil fn mutes diagnostics.
func SetLogger(fn func(format string, v ...any)) func(format string, v ...any) {
	prev := Logf
	if fn == nil {
		fn = func(string, ...any) {}
	}
	Logf = fn
	return prev
}
