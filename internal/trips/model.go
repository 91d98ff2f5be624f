package trips

import (
	"time"

	"github.com/google/uuid"
)

// Trip is the persisted parent entity a plan and conversation belong to.
type Trip struct {
	ID          uuid.UUID `json:"id"`
	OwnerUserID uuid.UUID `json:"owner_user_id"`
	Title       string    `json:"title"`
	Destination string    `json:"destination"`
	TotalBudget float64   `json:"total_budget"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TripPlan is the structured unit the model must produce. A replan never
// mutates a plan in place: it produces a complete new plan that replaces
// the prior one.
type TripPlan struct {
	Title           string              `json:"title"`
	Destination     string              `json:"destination"`
	Days            []TripDay           `json:"days"`
	Accommodations  []TripAccommodation `json:"accommodations"`
	BudgetBreakdown BudgetBreakdown     `json:"budget_breakdown"`
}

type TripDay struct {
	DayNumber  int            `json:"day_number"`
	Title      string         `json:"title"`
	Activities []TripActivity `json:"activities"`
}

type TripActivity struct {
	TimeSlot        string  `json:"time_slot"`
	Title           string  `json:"title"`
	Description     string  `json:"description"`
	LocationName    string  `json:"location_name"`
	Latitude        float64 `json:"latitude"`
	Longitude       float64 `json:"longitude"`
	EstimatedCost   float64 `json:"estimated_cost"`
	CostCategory    string  `json:"cost_category"`
	DurationMinutes int     `json:"duration_minutes"`
}

type TripAccommodation struct {
	Name             string  `json:"name"`
	PricePerNight    float64 `json:"price_per_night"`
	Rating           float64 `json:"rating"`
	PriceTier        string  `json:"price_tier"`
	BookingURL       string  `json:"booking_url"`
	Latitude         float64 `json:"latitude"`
	Longitude        float64 `json:"longitude"`
	DistanceToCenter string  `json:"distance_to_center"`
}

// BudgetBreakdown totals are model-estimated. Total SHOULD equal the sum of
// the other five fields but that is not enforced arithmetically.
type BudgetBreakdown struct {
	Accommodation float64 `json:"accommodation"`
	Food          float64 `json:"food"`
	Activities    float64 `json:"activities"`
	Transport     float64 `json:"transport"`
	Other         float64 `json:"other"`
	Total         float64 `json:"total"`
}

// ConversationMessage is one persisted turn of the trip's transcript.
type ConversationMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// TripDetail is the read model returned by GET /trips/{id}: header plus the
// current plan graph and transcript.
type TripDetail struct {
	Trip         Trip                  `json:"trip"`
	Plan         *TripPlan             `json:"plan,omitempty"`
	Conversation []ConversationMessage `json:"conversation,omitempty"`
}

type CreateTripRequest struct {
	Title       string `json:"title" validate:"required,min=1,max=255"`
	Destination string `json:"destination" validate:"required,min=1,max=255"`
}

type ListTripsParams struct {
	Page     int
	PageSize int
}

func DefaultListParams() ListTripsParams {
	return ListTripsParams{
		Page:     1,
		PageSize: 20,
	}
}
