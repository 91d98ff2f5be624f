package planner

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/wayfarer-travel/wayfarer/internal/api"
	"github.com/wayfarer-travel/wayfarer/internal/auth"
	"github.com/wayfarer-travel/wayfarer/internal/config"
	"github.com/wayfarer-travel/wayfarer/internal/metrics"
	"github.com/wayfarer-travel/wayfarer/internal/ratelimit"
	"github.com/wayfarer-travel/wayfarer/internal/trips"
)

// Handler runs the per-request state machine for the chat and replan
// endpoints: authenticate, rate-check, validate, then hand off to the
// gateway. Failures are detected in that order so a denied request never
// reaches the metered model API.
type Handler struct {
	gateway  *Gateway
	trips    *trips.Service
	limiter  *ratelimit.Limiter
	cfg      config.RateLimitConfig
	validate *validator.Validate
}

func NewHandler(gateway *Gateway, tripsSvc *trips.Service, limiter *ratelimit.Limiter, cfg config.RateLimitConfig) *Handler {
	return &Handler{
		gateway:  gateway,
		trips:    tripsSvc,
		limiter:  limiter,
		cfg:      cfg,
		validate: validator.New(),
	}
}

func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserClaims(r.Context())
	if claims == nil {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	if !h.allow(w, claims.UserID, "chat", h.cfg.ChatMaxPerWindow) {
		return
	}

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.NewValidationError(err.Error()))
		return
	}

	// A referenced trip must belong to the caller; foreign trips answer 404.
	if req.TripID != "" {
		tripID, err := uuid.Parse(req.TripID)
		if err != nil {
			api.HandleError(w, api.NewBadRequestError("invalid trip ID"))
			return
		}
		ownerID, err := uuid.Parse(claims.UserID)
		if err != nil {
			api.HandleError(w, api.ErrUnauthorized)
			return
		}
		trip, err := h.trips.GetOwned(r.Context(), tripID, ownerID)
		if err != nil {
			slog.Error("resolving trip for chat", "error", err)
			api.HandleError(w, api.ErrInternalServer)
			return
		}
		if trip == nil {
			api.HandleError(w, api.NewNotFoundError("trip not found"))
			return
		}
	}

	sink := NewSSEWriter(w)
	if err := h.gateway.Chat(r.Context(), &req, sink); err != nil {
		slog.Error("chat generation", "error", err, "user_id", claims.UserID)
	}
}

// Replan resolves the trip itself rather than running behind the ownership
// middleware: the rate check must come before any trip lookup, so a denied
// caller gets 429 without costing a DB read.
func (h *Handler) Replan(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserClaims(r.Context())
	if claims == nil {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	if !h.allow(w, claims.UserID, "replan", h.cfg.ReplanMaxPerWindow) {
		return
	}

	var req ReplanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.NewValidationError(err.Error()))
		return
	}

	tripID, err := uuid.Parse(chi.URLParam(r, "tripID"))
	if err != nil {
		api.HandleError(w, api.NewBadRequestError("invalid trip ID"))
		return
	}
	ownerID, err := uuid.Parse(claims.UserID)
	if err != nil {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}
	trip, err := h.trips.GetOwned(r.Context(), tripID, ownerID)
	if err != nil {
		slog.Error("resolving trip for replan", "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}
	if trip == nil {
		api.HandleError(w, api.NewNotFoundError("trip not found"))
		return
	}

	sink := NewSSEWriter(w)
	if err := h.gateway.Replan(r.Context(), trip, &req, sink); err != nil {
		slog.Error("replan generation", "error", err, "trip_id", trip.ID)
	}
}

// allow runs the per-user fixed-window check and, on denial, answers 429
// with a Retry-After hint in whole seconds.
func (h *Handler) allow(w http.ResponseWriter, userID, action string, maxRequests int) bool {
	res := h.limiter.Check(userID, action, maxRequests)
	if res.Allowed {
		return true
	}

	metrics.RateLimitedTotal.WithLabelValues(action).Inc()

	retryAfter := int(res.RetryAfter / time.Second)
	if retryAfter < 1 {
		retryAfter = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	api.HandleError(w, api.ErrRateLimited)
	return false
}
