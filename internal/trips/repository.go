package trips

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository interface {
	Create(ctx context.Context, trip *Trip) error
	GetByID(ctx context.Context, id uuid.UUID) (*Trip, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]*Trip, error)
	CountByOwner(ctx context.Context, ownerID uuid.UUID) (int64, error)
	Delete(ctx context.Context, id uuid.UUID) error

	SaveTripPlan(ctx context.Context, tripID uuid.UUID, plan *TripPlan) error
	GetPlan(ctx context.Context, tripID uuid.UUID) (*TripPlan, error)

	ReplaceConversation(ctx context.Context, tripID uuid.UUID, messages []ConversationMessage) error
	GetConversation(ctx context.Context, tripID uuid.UUID) ([]ConversationMessage, error)
}

type postgresRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &postgresRepository{pool: pool}
}

func (r *postgresRepository) Create(ctx context.Context, trip *Trip) error {
	query := `
		INSERT INTO trips (id, owner_user_id, title, destination, total_budget, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.pool.Exec(ctx, query,
		trip.ID, trip.OwnerUserID, trip.Title, trip.Destination,
		trip.TotalBudget, trip.CreatedAt, trip.UpdatedAt)
	if err != nil {
		return fmt.Errorf("inserting trip: %w", err)
	}
	return nil
}

func (r *postgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*Trip, error) {
	query := `
		SELECT id, owner_user_id, title, destination, total_budget, created_at, updated_at
		FROM trips
		WHERE id = $1`

	trip := &Trip{}
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&trip.ID, &trip.OwnerUserID, &trip.Title, &trip.Destination,
		&trip.TotalBudget, &trip.CreatedAt, &trip.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying trip by id: %w", err)
	}
	return trip, nil
}

func (r *postgresRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]*Trip, error) {
	query := `
		SELECT id, owner_user_id, title, destination, total_budget, created_at, updated_at
		FROM trips
		WHERE owner_user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	rows, err := r.pool.Query(ctx, query, ownerID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing trips: %w", err)
	}
	defer rows.Close()

	var list []*Trip
	for rows.Next() {
		trip := &Trip{}
		err := rows.Scan(
			&trip.ID, &trip.OwnerUserID, &trip.Title, &trip.Destination,
			&trip.TotalBudget, &trip.CreatedAt, &trip.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("scanning trip row: %w", err)
		}
		list = append(list, trip)
	}
	return list, rows.Err()
}

func (r *postgresRepository) CountByOwner(ctx context.Context, ownerID uuid.UUID) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM trips WHERE owner_user_id = $1`, ownerID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting trips: %w", err)
	}
	return count, nil
}

func (r *postgresRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM trips WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting trip: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("trip not found")
	}
	return nil
}

// SaveTripPlan replaces the trip's header fields and its whole
// day/activity/accommodation graph in one call. The fan-out happens inside
// the save_trip_plan SQL function, so the replace is atomic from here.
func (r *postgresRepository) SaveTripPlan(ctx context.Context, tripID uuid.UUID, plan *TripPlan) error {
	payload, err := json.Marshal(plan)
	if err != nil {
		return fmt.Errorf("marshaling plan: %w", err)
	}

	_, err = r.pool.Exec(ctx, `SELECT save_trip_plan($1, $2::jsonb)`, tripID, payload)
	if err != nil {
		return fmt.Errorf("calling save_trip_plan: %w", err)
	}
	return nil
}

func (r *postgresRepository) GetPlan(ctx context.Context, tripID uuid.UUID) (*TripPlan, error) {
	trip, err := r.GetByID(ctx, tripID)
	if err != nil {
		return nil, err
	}
	if trip == nil {
		return nil, nil
	}

	days, err := r.getDays(ctx, tripID)
	if err != nil {
		return nil, err
	}
	if len(days) == 0 {
		// Header exists but no plan has been committed yet.
		return nil, nil
	}

	accommodations, err := r.getAccommodations(ctx, tripID)
	if err != nil {
		return nil, err
	}

	breakdown, err := r.getBudgetBreakdown(ctx, tripID)
	if err != nil {
		return nil, err
	}

	return &TripPlan{
		Title:           trip.Title,
		Destination:     trip.Destination,
		Days:            days,
		Accommodations:  accommodations,
		BudgetBreakdown: breakdown,
	}, nil
}

func (r *postgresRepository) getDays(ctx context.Context, tripID uuid.UUID) ([]TripDay, error) {
	query := `
		SELECT id, day_number, title
		FROM trip_days
		WHERE trip_id = $1
		ORDER BY day_number`

	rows, err := r.pool.Query(ctx, query, tripID)
	if err != nil {
		return nil, fmt.Errorf("querying trip days: %w", err)
	}
	defer rows.Close()

	var days []TripDay
	var dayIDs []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		var day TripDay
		if err := rows.Scan(&id, &day.DayNumber, &day.Title); err != nil {
			return nil, fmt.Errorf("scanning trip day: %w", err)
		}
		days = append(days, day)
		dayIDs = append(dayIDs, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i, dayID := range dayIDs {
		activities, err := r.getActivities(ctx, dayID)
		if err != nil {
			return nil, err
		}
		days[i].Activities = activities
	}
	return days, nil
}

func (r *postgresRepository) getActivities(ctx context.Context, dayID uuid.UUID) ([]TripActivity, error) {
	query := `
		SELECT time_slot, title, description, location_name, latitude, longitude,
		       estimated_cost, cost_category, duration_minutes
		FROM trip_activities
		WHERE day_id = $1
		ORDER BY position`

	rows, err := r.pool.Query(ctx, query, dayID)
	if err != nil {
		return nil, fmt.Errorf("querying activities: %w", err)
	}
	defer rows.Close()

	var activities []TripActivity
	for rows.Next() {
		var a TripActivity
		err := rows.Scan(&a.TimeSlot, &a.Title, &a.Description, &a.LocationName,
			&a.Latitude, &a.Longitude, &a.EstimatedCost, &a.CostCategory, &a.DurationMinutes)
		if err != nil {
			return nil, fmt.Errorf("scanning activity: %w", err)
		}
		activities = append(activities, a)
	}
	return activities, rows.Err()
}

func (r *postgresRepository) getAccommodations(ctx context.Context, tripID uuid.UUID) ([]TripAccommodation, error) {
	query := `
		SELECT name, price_per_night, rating, price_tier, booking_url,
		       latitude, longitude, distance_to_center
		FROM trip_accommodations
		WHERE trip_id = $1
		ORDER BY position`

	rows, err := r.pool.Query(ctx, query, tripID)
	if err != nil {
		return nil, fmt.Errorf("querying accommodations: %w", err)
	}
	defer rows.Close()

	var accommodations []TripAccommodation
	for rows.Next() {
		var a TripAccommodation
		err := rows.Scan(&a.Name, &a.PricePerNight, &a.Rating, &a.PriceTier,
			&a.BookingURL, &a.Latitude, &a.Longitude, &a.DistanceToCenter)
		if err != nil {
			return nil, fmt.Errorf("scanning accommodation: %w", err)
		}
		accommodations = append(accommodations, a)
	}
	return accommodations, rows.Err()
}

func (r *postgresRepository) getBudgetBreakdown(ctx context.Context, tripID uuid.UUID) (BudgetBreakdown, error) {
	query := `
		SELECT budget_breakdown
		FROM trips
		WHERE id = $1`

	var raw []byte
	if err := r.pool.QueryRow(ctx, query, tripID).Scan(&raw); err != nil {
		return BudgetBreakdown{}, fmt.Errorf("querying budget breakdown: %w", err)
	}

	var b BudgetBreakdown
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &b); err != nil {
			return BudgetBreakdown{}, fmt.Errorf("unmarshaling budget breakdown: %w", err)
		}
	}
	return b, nil
}

// ReplaceConversation deletes the trip's stored transcript and inserts the
// given messages in order, in one transaction. Last writer wins.
func (r *postgresRepository) ReplaceConversation(ctx context.Context, tripID uuid.UUID, messages []ConversationMessage) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM trip_messages WHERE trip_id = $1`, tripID); err != nil {
		return fmt.Errorf("deleting old messages: %w", err)
	}

	for i, msg := range messages {
		_, err := tx.Exec(ctx,
			`INSERT INTO trip_messages (trip_id, position, role, content) VALUES ($1, $2, $3, $4)`,
			tripID, i, msg.Role, msg.Content)
		if err != nil {
			return fmt.Errorf("inserting message %d: %w", i, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing conversation: %w", err)
	}
	return nil
}

func (r *postgresRepository) GetConversation(ctx context.Context, tripID uuid.UUID) ([]ConversationMessage, error) {
	query := `
		SELECT role, content
		FROM trip_messages
		WHERE trip_id = $1
		ORDER BY position`

	rows, err := r.pool.Query(ctx, query, tripID)
	if err != nil {
		return nil, fmt.Errorf("querying conversation: %w", err)
	}
	defer rows.Close()

	var messages []ConversationMessage
	for rows.Next() {
		var m ConversationMessage
		if err := rows.Scan(&m.Role, &m.Content); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}
