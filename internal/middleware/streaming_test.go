package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The global middleware wraps every ResponseWriter in statusWriter. SSE
// handlers flush after each event, so the wrapper must keep the underlying
// Flusher reachable or streamed deltas buffer until the handler returns.
func TestStatusWriter_PreservesFlusher(t *testing.T) {
	chains := map[string]func(http.Handler) http.Handler{
		"logging": Logging,
		"metrics": Metrics,
		"logging+metrics": func(next http.Handler) http.Handler {
			return Logging(Metrics(next))
		},
	}

	for name, wrap := range chains {
		t.Run(name, func(t *testing.T) {
			var flushable, controllerFlushed bool

			handler := wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, flushable = w.(http.Flusher)

				w.WriteHeader(http.StatusOK)
				w.Write([]byte("event: delta\ndata: {}\n\n"))
				controllerFlushed = http.NewResponseController(w).Flush() == nil
			}))

			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/chat", nil))

			assert.True(t, flushable, "wrapped writer must still satisfy http.Flusher")
			assert.True(t, controllerFlushed, "ResponseController must reach the underlying Flusher")
			assert.True(t, rec.Flushed, "flush must propagate to the underlying writer")
		})
	}
}

func TestStatusWriter_Unwrap(t *testing.T) {
	rec := httptest.NewRecorder()
	sw := &statusWriter{ResponseWriter: rec, status: http.StatusOK}

	require.Equal(t, http.ResponseWriter(rec), sw.Unwrap())
}
