package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/wayfarer-travel/wayfarer/internal/config"
	"github.com/wayfarer-travel/wayfarer/internal/trips"
)

// maxSteps caps the tool-calling exchange at one tool-call turn plus one
// follow-up, preventing runaway loops against a metered API.
const maxSteps = 2

// Message is one chat turn sent to the model.
type Message struct {
	Role    string
	Content string
}

// GenerateRequest carries everything one bounded generation exchange needs.
type GenerateRequest struct {
	System   string
	Messages []Message
}

// Turn is the outcome of a bounded generation exchange. Plan is non-nil
// exactly when the model invoked generate_trip_plan with decodable
// arguments; the caller decides what, if anything, to persist.
type Turn struct {
	Text string
	Plan *trips.TripPlan
}

// Client abstracts the hosted model so the gateway is unit-testable without
// a live API.
type Client interface {
	Generate(ctx context.Context, req GenerateRequest, onDelta func(string)) (*Turn, error)
}

// GeminiClient implements Client against the Gemini API.
type GeminiClient struct {
	client  *genai.Client
	model   string
	timeout time.Duration
}

// NewGeminiClient creates a Gemini-backed model client.
func NewGeminiClient(ctx context.Context, cfg config.GeminiConfig) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}

	return &GeminiClient{
		client:  client,
		model:   cfg.Model,
		timeout: cfg.Timeout,
	}, nil
}

// Generate runs the two-step tool-calling protocol. Text deltas are handed
// to onDelta as they arrive. When the model calls generate_trip_plan the
// arguments are decoded into a TripPlan and one follow-up turn is granted
// for the wrap-up message; further tool calls inside that follow-up are
// ignored.
func (c *GeminiClient) Generate(ctx context.Context, req GenerateRequest, onDelta func(string)) (*Turn, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	contents := make([]*genai.Content, 0, len(req.Messages)+2)
	for _, m := range req.Messages {
		var role genai.Role = genai.RoleUser
		if m.Role == "assistant" {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Content, role))
	}

	genCfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(req.System, genai.RoleUser),
		Tools: []*genai.Tool{
			{FunctionDeclarations: []*genai.FunctionDeclaration{planToolDeclaration()}},
		},
		Temperature: genai.Ptr[float32](0.7),
		// Thinking adds latency and tokens without improving structured
		// tool output for this task.
		ThinkingConfig: &genai.ThinkingConfig{ThinkingBudget: genai.Ptr[int32](0)},
	}

	turn := &Turn{}
	var text strings.Builder

	for step := 0; step < maxSteps; step++ {
		var call *genai.FunctionCall

		for resp, err := range c.client.Models.GenerateContentStream(ctx, c.model, contents, genCfg) {
			if err != nil {
				return nil, fmt.Errorf("model stream: %w", err)
			}
			if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
				continue
			}
			for _, part := range resp.Candidates[0].Content.Parts {
				if part.Text != "" {
					text.WriteString(part.Text)
					if onDelta != nil {
						onDelta(part.Text)
					}
				}
				if part.FunctionCall != nil && call == nil && turn.Plan == nil {
					call = part.FunctionCall
				}
			}
		}

		if call == nil {
			break
		}

		plan, err := decodePlanArgs(call.Args)
		if err != nil {
			return nil, fmt.Errorf("decoding %s arguments: %w", call.Name, err)
		}
		turn.Plan = plan

		// Grant the follow-up turn: echo the call back with a success
		// response so the model can produce its wrap-up text.
		contents = append(contents,
			genai.NewContentFromParts([]*genai.Part{{FunctionCall: call}}, genai.RoleModel),
			genai.NewContentFromParts([]*genai.Part{
				genai.NewPartFromFunctionResponse(call.Name, map[string]any{"status": "ok"}),
			}, genai.RoleUser),
		)
	}

	turn.Text = text.String()
	return turn, nil
}

func decodePlanArgs(args map[string]any) (*trips.TripPlan, error) {
	raw, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("re-marshaling args: %w", err)
	}
	var plan trips.TripPlan
	if err := json.Unmarshal(raw, &plan); err != nil {
		return nil, fmt.Errorf("unmarshaling plan: %w", err)
	}
	return &plan, nil
}
