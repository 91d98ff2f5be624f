package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"
)

// PlanSavedEvent is published after a trip plan commit so downstream
// consumers (analytics, notifications) can react without polling.
type PlanSavedEvent struct {
	TripID      string    `json:"trip_id"`
	Destination string    `json:"destination"`
	DayCount    int       `json:"day_count"`
	TotalBudget float64   `json:"total_budget"`
	Timestamp   time.Time `json:"timestamp"`
}

// Publisher provides typed publishing to the trips event stream.
type Publisher struct {
	js jetstream.JetStream
}

// NewPublisher creates a new Publisher.
func NewPublisher(js jetstream.JetStream) *Publisher {
	return &Publisher{js: js}
}

// PublishPlanSaved publishes a plan-saved event.
func (p *Publisher) PublishPlanSaved(ctx context.Context, event PlanSavedEvent) error {
	return p.publish(ctx, SubjectPlanSaved, event)
}

func (p *Publisher) publish(ctx context.Context, subject string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshaling event for %s: %w", subject, err)
	}
	if _, err := p.js.Publish(ctx, subject, payload); err != nil {
		return fmt.Errorf("publishing to %s: %w", subject, err)
	}
	return nil
}
