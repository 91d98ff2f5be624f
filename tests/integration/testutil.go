//go:build integration

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/wayfarer-travel/wayfarer/internal/api"
	"github.com/wayfarer-travel/wayfarer/internal/auth"
	"github.com/wayfarer-travel/wayfarer/internal/config"
	"github.com/wayfarer-travel/wayfarer/internal/planner"
	"github.com/wayfarer-travel/wayfarer/internal/ratelimit"
	"github.com/wayfarer-travel/wayfarer/internal/trips"
	"github.com/wayfarer-travel/wayfarer/internal/users"
)

// ScriptedModel stands in for the Gemini client. Tests script the next turn
// before making a chat or replan request.
type ScriptedModel struct {
	mu   sync.Mutex
	turn *planner.Turn
	err  error
}

func (s *ScriptedModel) Script(turn *planner.Turn, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turn = turn
	s.err = err
}

func (s *ScriptedModel) Generate(_ context.Context, _ planner.GenerateRequest, onDelta func(string)) (*planner.Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	if s.turn == nil {
		return &planner.Turn{Text: "scripted default"}, nil
	}
	if s.turn.Text != "" && onDelta != nil {
		onDelta(s.turn.Text)
	}
	return s.turn, nil
}

type TestEnv struct {
	Pool        *pgxpool.Pool
	RedisClient *redis.Client
	Server      *httptest.Server
	AuthSvc     *auth.Service
	UserSvc     *users.Service
	TripSvc     *trips.Service
	Model       *ScriptedModel
}

var testEnv *TestEnv

func SetupTestEnv(t *testing.T) *TestEnv {
	t.Helper()
	if testEnv != nil {
		return testEnv
	}

	ctx := context.Background()

	// Start PostgreSQL container
	pgContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "test",
				"POSTGRES_PASSWORD": "test",
				"POSTGRES_DB":       "wayfarer_test",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("starting postgres container: %v", err)
	}
	t.Cleanup(func() { pgContainer.Terminate(ctx) })

	pgHost, _ := pgContainer.Host(ctx)
	pgPort, _ := pgContainer.MappedPort(ctx, "5432")

	// Start Redis container
	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("starting redis container: %v", err)
	}
	t.Cleanup(func() { redisContainer.Terminate(ctx) })

	redisHost, _ := redisContainer.Host(ctx)
	redisPort, _ := redisContainer.MappedPort(ctx, "6379")

	// Connect to PostgreSQL
	dsn := fmt.Sprintf("postgres://test:test@%s:%s/wayfarer_test?sslmode=disable", pgHost, pgPort.Port())
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connecting to postgres: %v", err)
	}
	t.Cleanup(func() { pool.Close() })

	// Run migrations
	migrationsPath := getMigrationsPath()
	m, err := migrate.New(
		fmt.Sprintf("file://%s", migrationsPath),
		dsn,
	)
	if err != nil {
		t.Fatalf("creating migrator: %v", err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		t.Fatalf("running migrations: %v", err)
	}

	// Connect to Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr: fmt.Sprintf("%s:%s", redisHost, redisPort.Port()),
	})
	t.Cleanup(func() { redisClient.Close() })

	// Setup services
	jwtManager := auth.NewJWTManager("test-access-secret-32-chars-long!!", "test-refresh-secret-32-chars-long!!", 15*time.Minute, 7*24*time.Hour)
	authSvc := auth.NewService(jwtManager, redisClient)
	userRepo := users.NewRepository(pool)
	userSvc := users.NewService(userRepo)
	authHandler := auth.NewHandler(authSvc, userSvc)

	tripRepo := trips.NewRepository(pool)
	tripSvc := trips.NewService(tripRepo, nil)
	tripHandler := trips.NewHandler(tripSvc)

	model := &ScriptedModel{}
	gateway := planner.NewGateway(model, tripSvc)

	limiter := ratelimit.New(ratelimit.WithWindow(time.Hour))
	limiter.Start()
	t.Cleanup(limiter.Stop)

	// Generous ceilings; the rate-limit test uses its own user and counts
	// against these.
	rlCfg := config.RateLimitConfig{ChatMaxPerWindow: 20, ReplanMaxPerWindow: 10}
	plannerHandler := planner.NewHandler(gateway, tripSvc, limiter, rlCfg)

	router := api.NewRouter(pool, nil,
		api.RouterConfig{},
		api.HandlerSet{
			Register: authHandler.Register,
			Login:    authHandler.Login,
			Refresh:  authHandler.Refresh,
			Logout:   authHandler.Logout,

			CreateTrip:          tripHandler.Create,
			ListTrips:           tripHandler.List,
			GetTrip:             tripHandler.Get,
			DeleteTrip:          tripHandler.Delete,
			OwnershipMiddleware: tripHandler.OwnershipMiddleware,

			Chat:   plannerHandler.Chat,
			Replan: plannerHandler.Replan,

			AuthMiddleware: auth.Middleware(authSvc),
		})

	server := httptest.NewServer(router)
	t.Cleanup(func() { server.Close() })

	testEnv = &TestEnv{
		Pool:        pool,
		RedisClient: redisClient,
		Server:      server,
		AuthSvc:     authSvc,
		UserSvc:     userSvc,
		TripSvc:     tripSvc,
		Model:       model,
	}

	return testEnv
}

func getMigrationsPath() string {
	// Try relative paths from test directory
	paths := []string{
		"../../migrations",
		"../../../migrations",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	log.Fatal("migrations directory not found")
	return ""
}

// Helper functions

func RegisterUser(t *testing.T, env *TestEnv, email, password string) map[string]any {
	t.Helper()
	body := map[string]string{"email": email, "password": password}
	resp := DoRequest(t, env, "POST", "/api/v1/auth/register", body, "")
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register failed: status %d", resp.StatusCode)
	}
	return ParseResponse(t, resp)
}

func LoginUser(t *testing.T, env *TestEnv, email, password string) string {
	t.Helper()
	body := map[string]string{"email": email, "password": password}
	resp := DoRequest(t, env, "POST", "/api/v1/auth/login", body, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login failed: status %d", resp.StatusCode)
	}
	result := ParseResponse(t, resp)
	data := result["data"].(map[string]any)
	return data["access_token"].(string)
}

func CreateTrip(t *testing.T, env *TestEnv, token, title, destination string) string {
	t.Helper()
	body := map[string]string{"title": title, "destination": destination}
	resp := DoRequest(t, env, "POST", "/api/v1/trips", body, token)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create trip failed: status %d", resp.StatusCode)
	}
	result := ParseResponse(t, resp)
	data := result["data"].(map[string]any)
	return data["id"].(string)
}

func DoRequest(t *testing.T, env *TestEnv, method, path string, body any, token string) *http.Response {
	t.Helper()
	var bodyReader io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		bodyReader = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, env.Server.URL+path, bodyReader)
	if err != nil {
		t.Fatalf("creating request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("doing request: %v", err)
	}
	return resp
}

func ParseResponse(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var result map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("parsing response: %v", err)
	}
	return result
}

// ReadSSE drains an SSE response body and returns event name -> raw data
// lines, in arrival order per event name.
func ReadSSE(t *testing.T, resp *http.Response) map[string][]string {
	t.Helper()
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("reading sse body: %v", err)
	}

	events := make(map[string][]string)
	var current string
	for _, line := range bytes.Split(raw, []byte("\n")) {
		s := string(line)
		switch {
		case len(s) > 7 && s[:7] == "event: ":
			current = s[7:]
		case len(s) > 6 && s[:6] == "data: ":
			events[current] = append(events[current], s[6:])
		}
	}
	return events
}
