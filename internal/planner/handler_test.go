package planner

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wayfarer-travel/wayfarer/internal/auth"
	"github.com/wayfarer-travel/wayfarer/internal/config"
	"github.com/wayfarer-travel/wayfarer/internal/ratelimit"
	"github.com/wayfarer-travel/wayfarer/internal/trips"
)

func newTestHandler(t *testing.T, client Client) (*Handler, *trips.Service) {
	t.Helper()
	svc := trips.NewService(newMemRepo(), nil)
	gateway := NewGateway(client, svc)
	limiter := ratelimit.New()

	cfg := config.RateLimitConfig{ChatMaxPerWindow: 3, ReplanMaxPerWindow: 2}
	return NewHandler(gateway, svc, limiter, cfg), svc
}

func authedRequest(method, target, body, userID string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	claims := &auth.AccessClaims{UserID: userID}
	return req.WithContext(context.WithValue(req.Context(), auth.UserClaimsKey, claims))
}

func replanRequest(body, userID, tripID string) *http.Request {
	req := authedRequest(http.MethodPost, "/api/v1/trips/"+tripID+"/replan", body, userID)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("tripID", tripID)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func TestHandler_Chat_RequiresAuth(t *testing.T) {
	h, _ := newTestHandler(t, &fakeClient{turn: &Turn{Text: "hi"}})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", strings.NewReader(`{}`))
	w := httptest.NewRecorder()
	h.Chat(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestHandler_Chat_RateLimited(t *testing.T) {
	h, _ := newTestHandler(t, &fakeClient{turn: &Turn{Text: "hi"}})
	userID := uuid.NewString()
	body := `{"messages":[{"role":"user","content":"Plan Rome"}]}`

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		h.Chat(w, authedRequest(http.MethodPost, "/api/v1/chat", body, userID))
		require.Equal(t, http.StatusOK, w.Code, "request %d should be allowed", i+1)
	}

	w := httptest.NewRecorder()
	h.Chat(w, authedRequest(http.MethodPost, "/api/v1/chat", body, userID))

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	retryAfter := w.Header().Get("Retry-After")
	require.NotEmpty(t, retryAfter)
	assert.NotEqual(t, "0", retryAfter)

	// The denial is cheap: the model client must not have been called a 4th time.
	w = httptest.NewRecorder()
	h.Chat(w, authedRequest(http.MethodPost, "/api/v1/chat", body, uuid.NewString()))
	assert.Equal(t, http.StatusOK, w.Code, "other users are unaffected")
}

func TestHandler_Chat_BadJSON(t *testing.T) {
	h, _ := newTestHandler(t, &fakeClient{turn: &Turn{Text: "hi"}})

	w := httptest.NewRecorder()
	h.Chat(w, authedRequest(http.MethodPost, "/api/v1/chat", `{not json`, uuid.NewString()))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandler_Chat_ValidationFailures(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"empty messages", `{"messages":[]}`},
		{"missing content", `{"messages":[{"role":"user"}]}`},
		{"bad role", `{"messages":[{"role":"robot","content":"hi"}]}`},
		{"malformed trip id", `{"messages":[{"role":"user","content":"hi"}],"trip_id":"not-a-uuid"}`},
	}

	h, _ := newTestHandler(t, &fakeClient{turn: &Turn{Text: "hi"}})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			h.Chat(w, authedRequest(http.MethodPost, "/api/v1/chat", tt.body, uuid.NewString()))
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestHandler_MessageCountBounds(t *testing.T) {
	longBody := func(n int) string {
		var sb strings.Builder
		sb.WriteString(`{"messages":[`)
		for i := 0; i < n; i++ {
			if i > 0 {
				sb.WriteString(",")
			}
			sb.WriteString(`{"role":"user","content":"turn"}`)
		}
		sb.WriteString(`]}`)
		return sb.String()
	}

	t.Run("chat accepts a long history", func(t *testing.T) {
		h, _ := newTestHandler(t, &fakeClient{turn: &Turn{Text: "hi"}})

		w := httptest.NewRecorder()
		h.Chat(w, authedRequest(http.MethodPost, "/api/v1/chat", longBody(60), uuid.NewString()))
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("replan caps at 50 messages", func(t *testing.T) {
		h, svc := newTestHandler(t, &fakeClient{turn: &Turn{Text: "hi"}})
		owner := uuid.New()
		trip, err := svc.Create(context.Background(), owner,
			&trips.CreateTripRequest{Title: "Rome", Destination: "Rome, Italy"})
		require.NoError(t, err)

		w := httptest.NewRecorder()
		h.Replan(w, replanRequest(longBody(51), owner.String(), trip.ID.String()))
		assert.Equal(t, http.StatusBadRequest, w.Code)

		w = httptest.NewRecorder()
		h.Replan(w, replanRequest(longBody(50), owner.String(), trip.ID.String()))
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestHandler_Chat_ForeignTripIs404(t *testing.T) {
	h, svc := newTestHandler(t, &fakeClient{turn: &Turn{Text: "hi"}})

	owner := uuid.New()
	trip, err := svc.Create(context.Background(), owner,
		&trips.CreateTripRequest{Title: "Rome", Destination: "Rome, Italy"})
	require.NoError(t, err)

	body := `{"messages":[{"role":"user","content":"hi"}],"trip_id":"` + trip.ID.String() + `"}`

	w := httptest.NewRecorder()
	h.Chat(w, authedRequest(http.MethodPost, "/api/v1/chat", body, uuid.NewString()))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = httptest.NewRecorder()
	h.Chat(w, authedRequest(http.MethodPost, "/api/v1/chat", body, owner.String()))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHandler_Chat_StreamsSSE(t *testing.T) {
	client := &fakeClient{
		deltas: []string{"Hello"},
		turn:   &Turn{Text: "Hello"},
	}
	h, _ := newTestHandler(t, client)

	w := httptest.NewRecorder()
	h.Chat(w, authedRequest(http.MethodPost, "/api/v1/chat",
		`{"messages":[{"role":"user","content":"hi"}]}`, uuid.NewString()))

	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	body := w.Body.String()
	assert.Contains(t, body, "event: delta")
	assert.Contains(t, body, `{"text":"Hello"}`)
	assert.Contains(t, body, "event: done")
	assert.Contains(t, body, `{"persisted":false}`)
}

func TestHandler_Replan_TripResolution(t *testing.T) {
	h, svc := newTestHandler(t, &fakeClient{turn: &Turn{Text: "hi"}})

	owner := uuid.New()
	trip, err := svc.Create(context.Background(), owner,
		&trips.CreateTripRequest{Title: "Rome", Destination: "Rome, Italy"})
	require.NoError(t, err)

	body := `{"messages":[{"role":"user","content":"cheaper"}]}`

	t.Run("malformed trip id", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.Replan(w, replanRequest(body, uuid.NewString(), "not-a-uuid"))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unknown trip", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.Replan(w, replanRequest(body, uuid.NewString(), uuid.NewString()))
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("foreign trip answers 404", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.Replan(w, replanRequest(body, uuid.NewString(), trip.ID.String()))
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("owner streams", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.Replan(w, replanRequest(body, owner.String(), trip.ID.String()))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	})
}

func TestHandler_Replan_RateLimitIndependentOfChat(t *testing.T) {
	h, svc := newTestHandler(t, &fakeClient{turn: &Turn{Text: "hi"}})
	userID := uuid.New()

	trip, err := svc.Create(context.Background(), userID,
		&trips.CreateTripRequest{Title: "Rome", Destination: "Rome, Italy"})
	require.NoError(t, err)

	body := `{"messages":[{"role":"user","content":"cheaper"}]}`
	replan := func() *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		h.Replan(w, replanRequest(body, userID.String(), trip.ID.String()))
		return w
	}

	// Exhaust the chat budget first; replan has its own counter.
	chatBody := `{"messages":[{"role":"user","content":"hi"}]}`
	for i := 0; i < 3; i++ {
		h.Chat(httptest.NewRecorder(), authedRequest(http.MethodPost, "/api/v1/chat", chatBody, userID.String()))
	}

	assert.Equal(t, http.StatusOK, replan().Code)
	assert.Equal(t, http.StatusOK, replan().Code)
	assert.Equal(t, http.StatusTooManyRequests, replan().Code)
}

func TestHandler_Replan_RateCheckPrecedesTripLookup(t *testing.T) {
	h, svc := newTestHandler(t, &fakeClient{turn: &Turn{Text: "hi"}})
	userID := uuid.New()

	foreign, err := svc.Create(context.Background(), uuid.New(),
		&trips.CreateTripRequest{Title: "Foreign", Destination: "Elsewhere"})
	require.NoError(t, err)

	body := `{"messages":[{"role":"user","content":"cheaper"}]}`

	// Each denied-by-ownership request still consumes replan quota.
	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		h.Replan(w, replanRequest(body, userID.String(), foreign.ID.String()))
		require.Equal(t, http.StatusNotFound, w.Code)
	}

	// Budget exhausted: the answer becomes 429 before any trip lookup.
	w := httptest.NewRecorder()
	h.Replan(w, replanRequest(body, userID.String(), foreign.ID.String()))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
}
