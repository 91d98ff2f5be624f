package planner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wayfarer-travel/wayfarer/internal/trips"
)

func TestDecodePlanArgs(t *testing.T) {
	args := map[string]any{
		"title":       "Two Days in Porto",
		"destination": "Porto, Portugal",
		"days": []any{
			map[string]any{
				"day_number": float64(1),
				"title":      "Ribeira",
				"activities": []any{
					map[string]any{
						"time_slot":        "morning",
						"title":            "Livraria Lello",
						"estimated_cost":   float64(8),
						"cost_category":    "activity",
						"duration_minutes": float64(60),
					},
				},
			},
		},
		"budget_breakdown": map[string]any{"total": float64(400)},
	}

	plan, err := decodePlanArgs(args)
	require.NoError(t, err)

	assert.Equal(t, "Two Days in Porto", plan.Title)
	require.Len(t, plan.Days, 1)
	assert.Equal(t, 1, plan.Days[0].DayNumber)
	require.Len(t, plan.Days[0].Activities, 1)
	assert.Equal(t, "morning", plan.Days[0].Activities[0].TimeSlot)
	assert.Equal(t, 60, plan.Days[0].Activities[0].DurationMinutes)
	assert.Equal(t, float64(400), plan.BudgetBreakdown.Total)
}

func TestDecodePlanArgs_TypeMismatch(t *testing.T) {
	_, err := decodePlanArgs(map[string]any{"days": "not an array"})
	assert.Error(t, err)
}

func TestReplanSystem(t *testing.T) {
	t.Run("includes serialized plan", func(t *testing.T) {
		plan := &trips.TripPlan{Title: "Original Porto Plan", Destination: "Porto"}
		system, err := replanSystem(plan)
		require.NoError(t, err)
		assert.Contains(t, system, "Original Porto Plan")
		assert.Contains(t, system, "re-emit every day")
	})

	t.Run("nil plan still instructs", func(t *testing.T) {
		system, err := replanSystem(nil)
		require.NoError(t, err)
		assert.Contains(t, system, "none committed yet")
	})
}
