package planner

import "google.golang.org/genai"

// planToolDeclaration describes the generate_trip_plan tool. The same
// declaration serves first-time generation and replans so one client-side
// consumer can render both.
func planToolDeclaration() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name: "generate_trip_plan",
		Description: "Commit a complete, structured trip plan. Call this only once " +
			"enough context exists; otherwise reply with a clarifying question instead.",
		Parameters: planSchema(),
	}
}

func planSchema() *genai.Schema {
	return &genai.Schema{
		Type:     genai.TypeObject,
		Required: []string{"title", "destination", "days", "accommodations", "budget_breakdown"},
		Properties: map[string]*genai.Schema{
			"title": {
				Type:        genai.TypeString,
				Description: "Short display title for the trip.",
			},
			"destination": {
				Type:        genai.TypeString,
				Description: "Primary destination city or region.",
			},
			"days": {
				Type:  genai.TypeArray,
				Items: daySchema(),
			},
			"accommodations": {
				Type:  genai.TypeArray,
				Items: accommodationSchema(),
			},
			"budget_breakdown": budgetSchema(),
		},
	}
}

func daySchema() *genai.Schema {
	return &genai.Schema{
		Type:     genai.TypeObject,
		Required: []string{"day_number", "title", "activities"},
		Properties: map[string]*genai.Schema{
			"day_number": {
				Type:        genai.TypeInteger,
				Description: "Chronological day number starting at 1, unique within the plan.",
			},
			"title": {Type: genai.TypeString},
			"activities": {
				Type:  genai.TypeArray,
				Items: activitySchema(),
			},
		},
	}
}

func activitySchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Required: []string{
			"time_slot", "title", "description", "location_name",
			"latitude", "longitude", "estimated_cost", "cost_category", "duration_minutes",
		},
		Properties: map[string]*genai.Schema{
			"time_slot": {
				Type: genai.TypeString,
				Enum: []string{"morning", "afternoon", "evening"},
			},
			"title":         {Type: genai.TypeString},
			"description":   {Type: genai.TypeString},
			"location_name": {Type: genai.TypeString},
			"latitude":      {Type: genai.TypeNumber},
			"longitude":     {Type: genai.TypeNumber},
			"estimated_cost": {
				Type:        genai.TypeNumber,
				Description: "Estimated cost in the trip currency, non-negative.",
			},
			"cost_category": {
				Type: genai.TypeString,
				Enum: []string{"food", "activity", "transport", "shopping", "other"},
			},
			"duration_minutes": {Type: genai.TypeInteger},
		},
	}
}

func accommodationSchema() *genai.Schema {
	return &genai.Schema{
		Type:     genai.TypeObject,
		Required: []string{"name", "price_per_night", "rating", "price_tier"},
		Properties: map[string]*genai.Schema{
			"name":            {Type: genai.TypeString},
			"price_per_night": {Type: genai.TypeNumber},
			"rating": {
				Type:        genai.TypeNumber,
				Description: "Guest rating from 0 to 5.",
			},
			"price_tier": {
				Type: genai.TypeString,
				Enum: []string{"budget", "mid-range", "luxury"},
			},
			"booking_url":        {Type: genai.TypeString},
			"latitude":           {Type: genai.TypeNumber},
			"longitude":          {Type: genai.TypeNumber},
			"distance_to_center": {Type: genai.TypeString},
		},
	}
}

func budgetSchema() *genai.Schema {
	return &genai.Schema{
		Type:     genai.TypeObject,
		Required: []string{"accommodation", "food", "activities", "transport", "other", "total"},
		Properties: map[string]*genai.Schema{
			"accommodation": {Type: genai.TypeNumber},
			"food":          {Type: genai.TypeNumber},
			"activities":    {Type: genai.TypeNumber},
			"transport":     {Type: genai.TypeNumber},
			"other":         {Type: genai.TypeNumber},
			"total": {
				Type:        genai.TypeNumber,
				Description: "Sum of the other five categories.",
			},
		},
	}
}
