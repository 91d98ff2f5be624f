package planner

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wayfarer-travel/wayfarer/internal/trips"
)

// fakeClient returns a scripted Turn and streams the scripted deltas.
type fakeClient struct {
	turn   *Turn
	err    error
	deltas []string

	gotSystem   string
	gotMessages []Message
}

func (f *fakeClient) Generate(_ context.Context, req GenerateRequest, onDelta func(string)) (*Turn, error) {
	f.gotSystem = req.System
	f.gotMessages = req.Messages
	for _, d := range f.deltas {
		onDelta(d)
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.turn, nil
}

// recordingSink captures everything the gateway emits, in order.
type recordingSink struct {
	deltas []string
	events []sinkEvent
}

type sinkEvent struct {
	name    string
	payload any
}

func (r *recordingSink) Delta(text string) { r.deltas = append(r.deltas, text) }
func (r *recordingSink) Event(name string, payload any) {
	r.events = append(r.events, sinkEvent{name: name, payload: payload})
}

func (r *recordingSink) eventNames() []string {
	names := make([]string, 0, len(r.events))
	for _, e := range r.events {
		names = append(names, e.name)
	}
	return names
}

// memRepo is a minimal in-memory trips.Repository for gateway tests.
type memRepo struct {
	trips         map[uuid.UUID]*trips.Trip
	plans         map[uuid.UUID]*trips.TripPlan
	conversations map[uuid.UUID][]trips.ConversationMessage
	savePlanErr   error
}

func newMemRepo() *memRepo {
	return &memRepo{
		trips:         make(map[uuid.UUID]*trips.Trip),
		plans:         make(map[uuid.UUID]*trips.TripPlan),
		conversations: make(map[uuid.UUID][]trips.ConversationMessage),
	}
}

func (m *memRepo) Create(_ context.Context, trip *trips.Trip) error {
	m.trips[trip.ID] = trip
	return nil
}

func (m *memRepo) GetByID(_ context.Context, id uuid.UUID) (*trips.Trip, error) {
	return m.trips[id], nil
}

func (m *memRepo) ListByOwner(_ context.Context, _ uuid.UUID, _, _ int) ([]*trips.Trip, error) {
	return nil, nil
}

func (m *memRepo) CountByOwner(_ context.Context, _ uuid.UUID) (int64, error) { return 0, nil }

func (m *memRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(m.trips, id)
	return nil
}

func (m *memRepo) SaveTripPlan(_ context.Context, tripID uuid.UUID, plan *trips.TripPlan) error {
	if m.savePlanErr != nil {
		return m.savePlanErr
	}
	m.plans[tripID] = plan
	return nil
}

func (m *memRepo) GetPlan(_ context.Context, tripID uuid.UUID) (*trips.TripPlan, error) {
	return m.plans[tripID], nil
}

func (m *memRepo) ReplaceConversation(_ context.Context, tripID uuid.UUID, messages []trips.ConversationMessage) error {
	m.conversations[tripID] = messages
	return nil
}

func (m *memRepo) GetConversation(_ context.Context, tripID uuid.UUID) ([]trips.ConversationMessage, error) {
	return m.conversations[tripID], nil
}

func testPlan() *trips.TripPlan {
	return &trips.TripPlan{
		Title:       "Three Days in Rome",
		Destination: "Rome, Italy",
		Days: []trips.TripDay{
			{DayNumber: 1, Title: "Ancient Rome"},
			{DayNumber: 2, Title: "Vatican"},
			{DayNumber: 3, Title: "Trastevere"},
		},
		BudgetBreakdown: trips.BudgetBreakdown{Total: 900},
	}
}

func TestGateway_Chat_NeverPersists(t *testing.T) {
	repo := newMemRepo()
	svc := trips.NewService(repo, nil)
	client := &fakeClient{
		deltas: []string{"Here is ", "your plan."},
		turn:   &Turn{Text: "Here is your plan.", Plan: testPlan()},
	}
	g := NewGateway(client, svc)
	sink := &recordingSink{}

	err := g.Chat(context.Background(), &ChatRequest{
		Messages: []ChatMessage{{Role: "user", Content: "Plan Rome"}},
	}, sink)
	require.NoError(t, err)

	assert.Equal(t, []string{"Here is ", "your plan."}, sink.deltas)
	assert.Equal(t, []string{"plan", "done"}, sink.eventNames())
	assert.Empty(t, repo.plans, "fresh chat must not persist")

	done := sink.events[len(sink.events)-1]
	assert.Equal(t, map[string]bool{"persisted": false}, done.payload)
}

func TestGateway_Chat_TextOnlyTurn(t *testing.T) {
	g := NewGateway(&fakeClient{turn: &Turn{Text: "How many days?"}}, trips.NewService(newMemRepo(), nil))
	sink := &recordingSink{}

	err := g.Chat(context.Background(), &ChatRequest{
		Messages: []ChatMessage{{Role: "user", Content: "Plan something"}},
	}, sink)
	require.NoError(t, err)

	assert.Equal(t, []string{"done"}, sink.eventNames())
}

func TestGateway_Chat_InvalidPlanIsRejected(t *testing.T) {
	plan := testPlan()
	plan.Days[1].DayNumber = 1

	g := NewGateway(&fakeClient{turn: &Turn{Plan: plan}}, trips.NewService(newMemRepo(), nil))
	sink := &recordingSink{}

	err := g.Chat(context.Background(), &ChatRequest{
		Messages: []ChatMessage{{Role: "user", Content: "Plan Rome"}},
	}, sink)
	require.Error(t, err)
	assert.Equal(t, []string{"error"}, sink.eventNames())
}

func TestGateway_Chat_GenerationError(t *testing.T) {
	g := NewGateway(&fakeClient{err: errors.New("model unavailable")}, trips.NewService(newMemRepo(), nil))
	sink := &recordingSink{}

	err := g.Chat(context.Background(), &ChatRequest{
		Messages: []ChatMessage{{Role: "user", Content: "Plan Rome"}},
	}, sink)
	require.Error(t, err)

	require.Len(t, sink.events, 1)
	assert.Equal(t, "error", sink.events[0].name)
	// The raw model error never reaches the client.
	assert.Equal(t, map[string]string{"error": "plan generation failed"}, sink.events[0].payload)
}

func newReplanFixture(t *testing.T, client Client) (*Gateway, *memRepo, *trips.Trip) {
	t.Helper()
	repo := newMemRepo()
	svc := trips.NewService(repo, nil)

	trip, err := svc.Create(context.Background(), uuid.New(),
		&trips.CreateTripRequest{Title: "Rome", Destination: "Rome, Italy"})
	require.NoError(t, err)

	return NewGateway(client, svc), repo, trip
}

func TestGateway_Replan_PersistsPlanAndTranscript(t *testing.T) {
	client := &fakeClient{turn: &Turn{Text: "Updated day two.", Plan: testPlan()}}
	g, repo, trip := newReplanFixture(t, client)
	sink := &recordingSink{}

	err := g.Replan(context.Background(), trip, &ReplanRequest{
		Messages: []ChatMessage{{Role: "user", Content: "Make day two cheaper"}},
	}, sink)
	require.NoError(t, err)

	assert.Equal(t, []string{"plan", "saved", "done"}, sink.eventNames())

	stored := repo.plans[trip.ID]
	require.NotNil(t, stored)
	assert.Len(t, stored.Days, 3)

	transcript := repo.conversations[trip.ID]
	require.Len(t, transcript, 2)
	assert.Equal(t, "user", transcript[0].Role)
	assert.Equal(t, "assistant", transcript[1].Role)
	assert.Equal(t, "Updated day two.", transcript[1].Content)

	done := sink.events[len(sink.events)-1]
	assert.Equal(t, map[string]bool{"persisted": true}, done.payload)
}

func TestGateway_Replan_ClarifyingQuestionCommitsNothing(t *testing.T) {
	client := &fakeClient{turn: &Turn{Text: "Cheaper food, or cheaper hotels?"}}
	g, repo, trip := newReplanFixture(t, client)
	sink := &recordingSink{}

	err := g.Replan(context.Background(), trip, &ReplanRequest{
		Messages: []ChatMessage{{Role: "user", Content: "Make it cheaper"}},
	}, sink)
	require.NoError(t, err)

	assert.Equal(t, []string{"done"}, sink.eventNames())
	assert.Empty(t, repo.plans)
	assert.Empty(t, repo.conversations)
	assert.Equal(t, map[string]bool{"persisted": false}, sink.events[0].payload)
}

func TestGateway_Replan_CurrentPlanReachesSystemPrompt(t *testing.T) {
	client := &fakeClient{turn: &Turn{Text: "ok", Plan: testPlan()}}
	g, repo, trip := newReplanFixture(t, client)

	prior := testPlan()
	prior.Title = "Original Rome Plan"
	repo.plans[trip.ID] = prior

	err := g.Replan(context.Background(), trip, &ReplanRequest{
		Messages: []ChatMessage{{Role: "user", Content: "Swap day one and two"}},
	}, &recordingSink{})
	require.NoError(t, err)

	assert.Contains(t, client.gotSystem, "Original Rome Plan")
}

func TestGateway_Replan_SaveFailureSurfacesError(t *testing.T) {
	client := &fakeClient{turn: &Turn{Text: "done", Plan: testPlan()}}
	g, repo, trip := newReplanFixture(t, client)
	repo.savePlanErr = errors.New("disk full")
	sink := &recordingSink{}

	err := g.Replan(context.Background(), trip, &ReplanRequest{
		Messages: []ChatMessage{{Role: "user", Content: "Make day two cheaper"}},
	}, sink)
	require.Error(t, err)

	// The plan was already streamed; the failure arrives as a trailing event.
	assert.Equal(t, []string{"plan", "error"}, sink.eventNames())
	assert.Empty(t, repo.conversations, "transcript must not be saved when the plan save fails")
}

func TestGateway_Replan_TranscriptFiltersScaffolding(t *testing.T) {
	client := &fakeClient{turn: &Turn{Text: "Updated.", Plan: testPlan()}}
	g, repo, trip := newReplanFixture(t, client)

	err := g.Replan(context.Background(), trip, &ReplanRequest{
		Messages: []ChatMessage{
			{Role: "system", Content: "internal scaffolding"},
			{Role: "user", Content: "Add a museum"},
		},
	}, &recordingSink{})
	require.NoError(t, err)

	transcript := repo.conversations[trip.ID]
	require.Len(t, transcript, 2)
	assert.Equal(t, "user", transcript[0].Role)
	assert.Equal(t, "assistant", transcript[1].Role)
}
