package trips

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validPlan() *TripPlan {
	return &TripPlan{
		Title:       "Long Weekend in Lisbon",
		Destination: "Lisbon, Portugal",
		Days: []TripDay{
			{
				DayNumber: 1,
				Title:     "Alfama and the castle",
				Activities: []TripActivity{
					{
						TimeSlot:        "morning",
						Title:           "Castelo de São Jorge",
						LocationName:    "Alfama",
						Latitude:        38.7139,
						Longitude:       -9.1335,
						EstimatedCost:   15,
						CostCategory:    "activity",
						DurationMinutes: 120,
					},
					{
						TimeSlot:      "evening",
						Title:         "Fado dinner",
						EstimatedCost: 45,
						CostCategory:  "food",
					},
				},
			},
			{DayNumber: 2, Title: "Belém"},
		},
		Accommodations: []TripAccommodation{
			{Name: "Hotel da Baixa", PricePerNight: 140, Rating: 4.5, PriceTier: "mid-range"},
		},
		BudgetBreakdown: BudgetBreakdown{
			Accommodation: 420,
			Food:          200,
			Activities:    100,
			Transport:     60,
			Other:         20,
			Total:         800,
		},
	}
}

func TestValidatePlan_Valid(t *testing.T) {
	require.NoError(t, ValidatePlan(validPlan()))
}

func TestValidatePlan_Nil(t *testing.T) {
	assert.Error(t, ValidatePlan(nil))
}

func TestValidatePlan_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*TripPlan)
		wantErr string
	}{
		{
			name:    "empty title",
			mutate:  func(p *TripPlan) { p.Title = "" },
			wantErr: "title",
		},
		{
			name:    "empty destination",
			mutate:  func(p *TripPlan) { p.Destination = "" },
			wantErr: "destination",
		},
		{
			name:    "no days",
			mutate:  func(p *TripPlan) { p.Days = nil },
			wantErr: "no days",
		},
		{
			name:    "zero day number",
			mutate:  func(p *TripPlan) { p.Days[0].DayNumber = 0 },
			wantErr: "day_number",
		},
		{
			name:    "duplicate day number",
			mutate:  func(p *TripPlan) { p.Days[1].DayNumber = 1 },
			wantErr: "duplicate day_number",
		},
		{
			name:    "invalid time slot",
			mutate:  func(p *TripPlan) { p.Days[0].Activities[0].TimeSlot = "night" },
			wantErr: "time_slot",
		},
		{
			name:    "invalid cost category",
			mutate:  func(p *TripPlan) { p.Days[0].Activities[0].CostCategory = "misc" },
			wantErr: "cost_category",
		},
		{
			name:    "negative estimated cost",
			mutate:  func(p *TripPlan) { p.Days[0].Activities[0].EstimatedCost = -5 },
			wantErr: "estimated_cost",
		},
		{
			name:    "negative duration",
			mutate:  func(p *TripPlan) { p.Days[0].Activities[0].DurationMinutes = -1 },
			wantErr: "duration_minutes",
		},
		{
			name:    "latitude out of range",
			mutate:  func(p *TripPlan) { p.Days[0].Activities[0].Latitude = 91 },
			wantErr: "latitude",
		},
		{
			name:    "longitude out of range",
			mutate:  func(p *TripPlan) { p.Days[0].Activities[0].Longitude = -181 },
			wantErr: "longitude",
		},
		{
			name:    "accommodation without name",
			mutate:  func(p *TripPlan) { p.Accommodations[0].Name = "" },
			wantErr: "name is empty",
		},
		{
			name:    "invalid price tier",
			mutate:  func(p *TripPlan) { p.Accommodations[0].PriceTier = "cheap" },
			wantErr: "price_tier",
		},
		{
			name:    "negative price per night",
			mutate:  func(p *TripPlan) { p.Accommodations[0].PricePerNight = -1 },
			wantErr: "price_per_night",
		},
		{
			name:    "negative budget field",
			mutate:  func(p *TripPlan) { p.BudgetBreakdown.Food = -10 },
			wantErr: "negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := validPlan()
			tt.mutate(plan)

			err := ValidatePlan(plan)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidatePlan_DayWithoutActivities(t *testing.T) {
	plan := validPlan()
	plan.Days[0].Activities = nil
	assert.NoError(t, ValidatePlan(plan))
}

func TestFilterConversation(t *testing.T) {
	in := []ConversationMessage{
		{Role: "system", Content: "You are a trip planner."},
		{Role: "user", Content: "Plan me three days in Rome"},
		{Role: "assistant", Content: ""},
		{Role: "assistant", Content: "Here is your plan."},
		{Role: "tool", Content: `{"status":"ok"}`},
		{Role: "user", Content: "Make day two cheaper"},
	}

	got := FilterConversation(in)

	require.Len(t, got, 3)
	assert.Equal(t, "user", got[0].Role)
	assert.Equal(t, "Plan me three days in Rome", got[0].Content)
	assert.Equal(t, "assistant", got[1].Role)
	assert.Equal(t, "user", got[2].Role)
	assert.Equal(t, "Make day two cheaper", got[2].Content)
}

func TestFilterConversation_Empty(t *testing.T) {
	assert.Empty(t, FilterConversation(nil))
	assert.Empty(t, FilterConversation([]ConversationMessage{{Role: "system", Content: "x"}}))
}
