package trips

import "context"

type contextKey string

const tripCtxKey contextKey = "trip"

func SetTripInContext(ctx context.Context, trip *Trip) context.Context {
	return context.WithValue(ctx, tripCtxKey, trip)
}

func GetTripFromContext(ctx context.Context) *Trip {
	trip, _ := ctx.Value(tripCtxKey).(*Trip)
	return trip
}
