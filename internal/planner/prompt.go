package planner

import (
	"encoding/json"
	"fmt"

	"github.com/wayfarer-travel/wayfarer/internal/trips"
)

const chatSystemPrompt = `You are Wayfarer, a pragmatic travel-planning assistant.

Conversation policy:
- Ask at most 3 clarifying questions before attempting a plan. If the user has
  given a destination and trip length, that is usually enough context.
- When enough context exists, call the generate_trip_plan tool with a complete
  plan: every day populated with concrete activities, realistic coordinates,
  cost estimates, and 2-4 accommodation options spanning price tiers.
- Keep free-text replies short. Never describe the plan in prose and then
  call the tool; the tool call is the plan.`

const replanSystemPrompt = chatSystemPrompt + `

You are editing an existing trip. The current committed plan follows below.
Apply the user's requested change and call generate_trip_plan with the FULL
updated plan: re-emit every day, changed or not. Days you omit are destroyed.
Keep everything the user did not ask to change exactly as it is.`

// replanSystem serializes the committed plan verbatim into the system
// instructions so the model edits it rather than inventing a new trip.
func replanSystem(plan *trips.TripPlan) (string, error) {
	if plan == nil {
		return replanSystemPrompt + "\n\nCurrent plan: none committed yet.", nil
	}
	raw, err := json.MarshalIndent(plan, "", "  ")
	if err != nil {
		return "", fmt.Errorf("serializing current plan: %w", err)
	}
	return fmt.Sprintf("%s\n\nCurrent plan:\n%s", replanSystemPrompt, raw), nil
}
