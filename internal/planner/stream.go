package planner

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// Sink receives incremental gateway output for delivery to the client.
type Sink interface {
	// Delta forwards a chunk of model text.
	Delta(text string)
	// Event forwards a named structured event (plan, saved, error, done).
	Event(name string, payload any)
}

// SSEWriter streams gateway output as server-sent events. Construct it with
// NewSSEWriter, which sends the response headers immediately so the client
// can start rendering before generation completes.
type SSEWriter struct {
	w  http.ResponseWriter
	rc *http.ResponseController
}

func NewSSEWriter(w http.ResponseWriter) *SSEWriter {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	// ResponseController reaches the underlying Flusher through any
	// middleware wrapper that implements Unwrap.
	return &SSEWriter{w: w, rc: http.NewResponseController(w)}
}

func (s *SSEWriter) Delta(text string) {
	s.Event("delta", map[string]string{"text": text})
}

func (s *SSEWriter) Event(name string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", name, data)
	_ = s.rc.Flush()
}
