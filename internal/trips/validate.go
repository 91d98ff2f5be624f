package trips

import "fmt"

// Valid enum values for plan fields. The tool schema declares the same sets;
// this check is the gateway's own gate before anything reaches storage.
var (
	validTimeSlots = map[string]bool{
		"morning": true, "afternoon": true, "evening": true,
	}
	validCostCategories = map[string]bool{
		"food": true, "activity": true, "transport": true, "shopping": true, "other": true,
	}
	validPriceTiers = map[string]bool{
		"budget": true, "mid-range": true, "luxury": true,
	}
)

// ValidatePlan checks the structural contract a generated plan must satisfy
// before it is persisted. A plan that fails here is a hard failure: the
// persistence writer never observes it.
func ValidatePlan(plan *TripPlan) error {
	if plan == nil {
		return fmt.Errorf("plan is nil")
	}
	if plan.Title == "" {
		return fmt.Errorf("plan title is empty")
	}
	if plan.Destination == "" {
		return fmt.Errorf("plan destination is empty")
	}
	if len(plan.Days) == 0 {
		return fmt.Errorf("plan has no days")
	}

	seen := make(map[int]bool, len(plan.Days))
	for i, day := range plan.Days {
		if day.DayNumber < 1 {
			return fmt.Errorf("day %d: day_number must be positive, got %d", i, day.DayNumber)
		}
		if seen[day.DayNumber] {
			return fmt.Errorf("duplicate day_number %d", day.DayNumber)
		}
		seen[day.DayNumber] = true

		for j, act := range day.Activities {
			if !validTimeSlots[act.TimeSlot] {
				return fmt.Errorf("day %d activity %d: invalid time_slot %q", day.DayNumber, j, act.TimeSlot)
			}
			if !validCostCategories[act.CostCategory] {
				return fmt.Errorf("day %d activity %d: invalid cost_category %q", day.DayNumber, j, act.CostCategory)
			}
			if act.EstimatedCost < 0 {
				return fmt.Errorf("day %d activity %d: negative estimated_cost", day.DayNumber, j)
			}
			if act.DurationMinutes < 0 {
				return fmt.Errorf("day %d activity %d: negative duration_minutes", day.DayNumber, j)
			}
			if act.Latitude < -90 || act.Latitude > 90 {
				return fmt.Errorf("day %d activity %d: latitude %v out of range", day.DayNumber, j, act.Latitude)
			}
			if act.Longitude < -180 || act.Longitude > 180 {
				return fmt.Errorf("day %d activity %d: longitude %v out of range", day.DayNumber, j, act.Longitude)
			}
		}
	}

	for i, acc := range plan.Accommodations {
		if acc.Name == "" {
			return fmt.Errorf("accommodation %d: name is empty", i)
		}
		if !validPriceTiers[acc.PriceTier] {
			return fmt.Errorf("accommodation %d: invalid price_tier %q", i, acc.PriceTier)
		}
		if acc.PricePerNight < 0 {
			return fmt.Errorf("accommodation %d: negative price_per_night", i)
		}
	}

	b := plan.BudgetBreakdown
	for name, v := range map[string]float64{
		"accommodation": b.Accommodation,
		"food":          b.Food,
		"activities":    b.Activities,
		"transport":     b.Transport,
		"other":         b.Other,
		"total":         b.Total,
	} {
		if v < 0 {
			return fmt.Errorf("budget_breakdown.%s is negative", name)
		}
	}

	return nil
}

// FilterConversation keeps only user/assistant turns with non-empty content,
// preserving relative order. System and tool-scaffolding turns never reach
// storage.
func FilterConversation(messages []ConversationMessage) []ConversationMessage {
	filtered := make([]ConversationMessage, 0, len(messages))
	for _, m := range messages {
		if m.Content == "" {
			continue
		}
		if m.Role != "user" && m.Role != "assistant" {
			continue
		}
		filtered = append(filtered, m)
	}
	return filtered
}
