package planner

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/wayfarer-travel/wayfarer/internal/metrics"
	"github.com/wayfarer-travel/wayfarer/internal/trips"
)

type ChatMessage struct {
	Role    string `json:"role" validate:"required,oneof=user assistant system"`
	Content string `json:"content" validate:"required"`
}

// ChatRequest carries a fresh-chat turn. Only replan bounds the message
// count; a long exploratory chat history is allowed here.
type ChatRequest struct {
	Messages []ChatMessage `json:"messages" validate:"required,min=1,dive"`
	TripID   string        `json:"trip_id" validate:"omitempty,uuid"`
}

type ReplanRequest struct {
	Messages []ChatMessage `json:"messages" validate:"required,min=1,max=50,dive"`
}

// Gateway turns a validated chat turn into either a clarifying-question
// stream or a committed structured plan. The model only ever returns data;
// persistence is decided here, as an explicit step.
type Gateway struct {
	client Client
	trips  *trips.Service
}

func NewGateway(client Client, tripsSvc *trips.Service) *Gateway {
	return &Gateway{client: client, trips: tripsSvc}
}

// Chat handles a fresh-chat turn. When the model produces a plan it is
// validated and streamed back, but never persisted: a new chat may produce
// several drafts before the user commits one through the trips API.
func (g *Gateway) Chat(ctx context.Context, req *ChatRequest, sink Sink) error {
	turn, err := g.generate(ctx, "chat", GenerateRequest{
		System:   chatSystemPrompt,
		Messages: toMessages(req.Messages),
	}, sink)
	if err != nil {
		sink.Event("error", map[string]string{"error": "plan generation failed"})
		return err
	}

	if turn.Plan != nil {
		if err := trips.ValidatePlan(turn.Plan); err != nil {
			sink.Event("error", map[string]string{"error": "plan generation failed"})
			return fmt.Errorf("generated plan failed validation: %w", err)
		}
		sink.Event("plan", turn.Plan)
	}

	sink.Event("done", map[string]bool{"persisted": false})
	return nil
}

// Replan handles an edit turn for an existing trip. The committed plan is
// serialized verbatim into the system instructions so the model edits it,
// and a successful tool call is persisted synchronously before the stream
// completes.
func (g *Gateway) Replan(ctx context.Context, trip *trips.Trip, req *ReplanRequest, sink Sink) error {
	current, err := g.trips.CurrentPlan(ctx, trip.ID)
	if err != nil {
		sink.Event("error", map[string]string{"error": "plan generation failed"})
		return fmt.Errorf("loading current plan: %w", err)
	}

	system, err := replanSystem(current)
	if err != nil {
		sink.Event("error", map[string]string{"error": "plan generation failed"})
		return err
	}

	turn, err := g.generate(ctx, "replan", GenerateRequest{
		System:   system,
		Messages: toMessages(req.Messages),
	}, sink)
	if err != nil {
		sink.Event("error", map[string]string{"error": "plan generation failed"})
		return err
	}

	if turn.Plan == nil {
		// Clarifying question: nothing to commit.
		sink.Event("done", map[string]bool{"persisted": false})
		return nil
	}

	if err := trips.ValidatePlan(turn.Plan); err != nil {
		sink.Event("error", map[string]string{"error": "plan generation failed"})
		return fmt.Errorf("generated plan failed validation: %w", err)
	}

	sink.Event("plan", turn.Plan)

	if err := g.trips.SavePlan(ctx, trip.ID, turn.Plan); err != nil {
		// The client already saw the plan; the save failure is surfaced but
		// the stream is not rolled back.
		sink.Event("error", map[string]string{"error": err.Error()})
		return err
	}

	transcript := make([]trips.ConversationMessage, 0, len(req.Messages)+1)
	for _, m := range req.Messages {
		transcript = append(transcript, trips.ConversationMessage{Role: m.Role, Content: m.Content})
	}
	transcript = append(transcript, trips.ConversationMessage{Role: "assistant", Content: turn.Text})

	if err := g.trips.SaveConversation(ctx, trip.ID, transcript); err != nil {
		// Best effort: the plan is committed, a lost transcript is logged only.
		slog.Warn("replan transcript not saved", "error", err, "trip_id", trip.ID)
	}

	sink.Event("saved", map[string]any{"trip_id": trip.ID, "days": len(turn.Plan.Days)})
	sink.Event("done", map[string]bool{"persisted": true})
	return nil
}

func (g *Gateway) generate(ctx context.Context, action string, req GenerateRequest, sink Sink) (*Turn, error) {
	start := time.Now()
	turn, err := g.client.Generate(ctx, req, sink.Delta)
	metrics.GenerationDuration.Observe(time.Since(start).Seconds())

	switch {
	case err != nil:
		metrics.GenerationsTotal.WithLabelValues(action, "error").Inc()
	case turn.Plan != nil:
		metrics.GenerationsTotal.WithLabelValues(action, "plan").Inc()
	default:
		metrics.GenerationsTotal.WithLabelValues(action, "text").Inc()
	}
	return turn, err
}

func toMessages(in []ChatMessage) []Message {
	out := make([]Message, 0, len(in))
	for _, m := range in {
		out = append(out, Message{Role: m.Role, Content: m.Content})
	}
	return out
}
