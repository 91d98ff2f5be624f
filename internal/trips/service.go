package trips

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/wayfarer-travel/wayfarer/internal/events"
	"github.com/wayfarer-travel/wayfarer/internal/metrics"
)

// Service owns trip lifecycle and the plan/conversation persistence writers.
type Service struct {
	repo      Repository
	publisher *events.Publisher
}

// NewService creates a trip Service. publisher may be nil when NATS is not
// configured; plan-saved events are then skipped.
func NewService(repo Repository, publisher *events.Publisher) *Service {
	return &Service{repo: repo, publisher: publisher}
}

func (s *Service) Create(ctx context.Context, ownerID uuid.UUID, req *CreateTripRequest) (*Trip, error) {
	now := time.Now()
	trip := &Trip{
		ID:          uuid.New(),
		OwnerUserID: ownerID,
		Title:       req.Title,
		Destination: req.Destination,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Create(ctx, trip); err != nil {
		return nil, err
	}
	return trip, nil
}

// GetOwned returns the trip only when it exists and belongs to ownerID.
// A foreign trip comes back nil, indistinguishable from a missing one, so
// handlers answer 404 either way and never reveal another user's trips.
func (s *Service) GetOwned(ctx context.Context, tripID, ownerID uuid.UUID) (*Trip, error) {
	trip, err := s.repo.GetByID(ctx, tripID)
	if err != nil {
		return nil, err
	}
	if trip == nil {
		return nil, nil
	}
	if trip.OwnerUserID != ownerID {
		slog.Warn("trip ownership mismatch",
			"trip_id", tripID,
			"trip_owner", trip.OwnerUserID,
			"requester", ownerID,
		)
		return nil, nil
	}
	return trip, nil
}

func (s *Service) ListByOwner(ctx context.Context, ownerID uuid.UUID, params ListTripsParams) ([]*Trip, int64, error) {
	offset := (params.Page - 1) * params.PageSize

	list, err := s.repo.ListByOwner(ctx, ownerID, params.PageSize, offset)
	if err != nil {
		return nil, 0, err
	}

	total, err := s.repo.CountByOwner(ctx, ownerID)
	if err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

func (s *Service) Delete(ctx context.Context, tripID uuid.UUID) error {
	return s.repo.Delete(ctx, tripID)
}

// Detail loads the trip's current plan graph and transcript.
func (s *Service) Detail(ctx context.Context, trip *Trip) (*TripDetail, error) {
	plan, err := s.repo.GetPlan(ctx, trip.ID)
	if err != nil {
		return nil, err
	}
	conversation, err := s.repo.GetConversation(ctx, trip.ID)
	if err != nil {
		return nil, err
	}
	return &TripDetail{Trip: *trip, Plan: plan, Conversation: conversation}, nil
}

// CurrentPlan returns the committed plan for a trip, or nil when none exists.
func (s *Service) CurrentPlan(ctx context.Context, tripID uuid.UUID) (*TripPlan, error) {
	return s.repo.GetPlan(ctx, tripID)
}

// SavePlan validates and commits a generated plan, replacing the trip's
// entire day/activity/accommodation graph. A plan re-emitting fewer days
// than currently stored is accepted (replace semantics are destructive)
// but logged, since it usually means the model ignored the re-emit-all-days
// instruction.
func (s *Service) SavePlan(ctx context.Context, tripID uuid.UUID, plan *TripPlan) error {
	if err := ValidatePlan(plan); err != nil {
		return fmt.Errorf("invalid plan: %w", err)
	}

	prior, err := s.repo.GetPlan(ctx, tripID)
	if err != nil {
		slog.Warn("reading prior plan before save", "error", err, "trip_id", tripID)
	} else if prior != nil && len(plan.Days) < len(prior.Days) {
		slog.Warn("replan shrinks day count, dropped days will be destroyed",
			"trip_id", tripID,
			"prior_days", len(prior.Days),
			"new_days", len(plan.Days),
		)
	}

	if err := s.repo.SaveTripPlan(ctx, tripID, plan); err != nil {
		slog.Error("saving trip plan", "error", err, "trip_id", tripID)
		return fmt.Errorf("failed to save trip plan")
	}

	metrics.PlansSavedTotal.Inc()

	if s.publisher != nil {
		event := events.PlanSavedEvent{
			TripID:      tripID.String(),
			Destination: plan.Destination,
			DayCount:    len(plan.Days),
			TotalBudget: plan.BudgetBreakdown.Total,
			Timestamp:   time.Now().UTC(),
		}
		if err := s.publisher.PublishPlanSaved(ctx, event); err != nil {
			// Best effort: a lost event never fails the save.
			slog.Warn("publishing plan-saved event", "error", err, "trip_id", tripID)
		}
	}
	return nil
}

// SaveConversation replaces the trip's transcript with the filtered message
// list. Only non-empty user/assistant turns survive; the replacement is
// last-writer-wins with no merge path.
func (s *Service) SaveConversation(ctx context.Context, tripID uuid.UUID, messages []ConversationMessage) error {
	filtered := FilterConversation(messages)
	if err := s.repo.ReplaceConversation(ctx, tripID, filtered); err != nil {
		slog.Error("saving conversation", "error", err, "trip_id", tripID)
		return fmt.Errorf("failed to save conversation")
	}
	return nil
}
