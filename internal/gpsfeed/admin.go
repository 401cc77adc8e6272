package gpsfeed

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"tailscale.com/tsweb"
)

// AttachAdminRoutes exposes receiver debugging endpoints under /debug/:
// send-sentence posts a raw configuration sentence to the device, and tail
// streams everything the receiver emits as server-sent events.
func (f *Feed[T]) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)

	debug.HandleSilentFunc("send-sentence", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		sentence := strings.TrimSpace(r.FormValue("sentence"))
		if sentence == "" {
			http.Error(w, "Missing sentence", http.StatusBadRequest)
			return
		}
		if err := f.SendSentence(sentence); err != nil {
			http.Error(w, "Failed to write sentence", http.StatusInternalServerError)
			return
		}
		fmt.Fprintf(w, "Wrote sentence %q to serial port", sentence)
	})

	debug.HandleSilentFunc("tail", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		// Proxies must not buffer the stream.
		w.Header().Set("X-Accel-Buffering", "no")

		id, c := f.Subscribe()
		defer f.Unsubscribe(id)

		// A comment line opens the stream, so clients see a live
		// connection before the first sentence arrives.
		io.WriteString(w, ": ping\n\n")
		flusher.Flush()

		for {
			select {
			case sentence, ok := <-c:
				if !ok {
					return
				}
				if _, err := fmt.Fprintf(w, "data: %s\n\n", sentence); err != nil {
					return
				}
				flusher.Flush()
			case <-r.Context().Done():
				return
			}
		}
	})
}
