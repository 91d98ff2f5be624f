package trips

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/wayfarer-travel/wayfarer/internal/api"
	"github.com/wayfarer-travel/wayfarer/internal/auth"
)

type Handler struct {
	svc      *Service
	validate *validator.Validate
}

func NewHandler(svc *Service) *Handler {
	return &Handler{
		svc:      svc,
		validate: validator.New(),
	}
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserClaims(r.Context())
	if claims == nil {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	var req CreateTripRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}

	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.NewValidationError(err.Error()))
		return
	}

	ownerID, err := uuid.Parse(claims.UserID)
	if err != nil {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	trip, err := h.svc.Create(r.Context(), ownerID, &req)
	if err != nil {
		slog.Error("creating trip", "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	api.JSON(w, http.StatusCreated, trip)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserClaims(r.Context())
	if claims == nil {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	ownerID, err := uuid.Parse(claims.UserID)
	if err != nil {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	params := DefaultListParams()
	if p := r.URL.Query().Get("page"); p != "" {
		if page, err := strconv.Atoi(p); err == nil && page > 0 {
			params.Page = page
		}
	}
	if ps := r.URL.Query().Get("page_size"); ps != "" {
		if pageSize, err := strconv.Atoi(ps); err == nil && pageSize > 0 && pageSize <= 100 {
			params.PageSize = pageSize
		}
	}

	list, totalCount, err := h.svc.ListByOwner(r.Context(), ownerID, params)
	if err != nil {
		slog.Error("listing trips", "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	api.JSONPaginated(w, http.StatusOK, list, totalCount, params.Page, params.PageSize)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	trip := GetTripFromContext(r.Context())
	if trip == nil {
		api.HandleError(w, api.ErrNotFound)
		return
	}

	detail, err := h.svc.Detail(r.Context(), trip)
	if err != nil {
		slog.Error("loading trip detail", "error", err, "trip_id", trip.ID)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	api.JSON(w, http.StatusOK, detail)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	trip := GetTripFromContext(r.Context())
	if trip == nil {
		api.HandleError(w, api.ErrNotFound)
		return
	}

	if err := h.svc.Delete(r.Context(), trip.ID); err != nil {
		slog.Error("deleting trip", "error", err, "trip_id", trip.ID)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	api.JSONMessage(w, http.StatusOK, "trip deleted successfully")
}

// OwnershipMiddleware resolves the trip from the URL and verifies the caller
// owns it. A foreign or missing trip answers 404 in both cases so the
// endpoint never confirms another user's trip exists.
func (h *Handler) OwnershipMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := auth.GetUserClaims(r.Context())
		if claims == nil {
			api.HandleError(w, api.ErrUnauthorized)
			return
		}

		tripIDStr := chi.URLParam(r, "tripID")
		tripID, err := uuid.Parse(tripIDStr)
		if err != nil {
			api.HandleError(w, api.NewBadRequestError("invalid trip ID"))
			return
		}

		ownerID, err := uuid.Parse(claims.UserID)
		if err != nil {
			api.HandleError(w, api.ErrUnauthorized)
			return
		}

		trip, err := h.svc.GetOwned(r.Context(), tripID, ownerID)
		if err != nil {
			slog.Error("fetching trip for ownership check", "error", err)
			api.HandleError(w, api.ErrInternalServer)
			return
		}
		if trip == nil {
			api.HandleError(w, api.NewNotFoundError("trip not found"))
			return
		}

		ctx := SetTripInContext(r.Context(), trip)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
