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
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/draftwise/draftwise/internal/api"
	"github.com/draftwise/draftwise/internal/auth"
	"github.com/draftwise/draftwise/internal/cache"
	"github.com/draftwise/draftwise/internal/generation"
	"github.com/draftwise/draftwise/internal/history"
	inats "github.com/draftwise/draftwise/internal/nats"
	"github.com/draftwise/draftwise/internal/providers"
	"github.com/draftwise/draftwise/internal/quota"
	"github.com/draftwise/draftwise/internal/resolver"
	"github.com/draftwise/draftwise/internal/sharedkeys"
	"github.com/draftwise/draftwise/internal/tiers"
	"github.com/draftwise/draftwise/internal/users"
)

type TestEnv struct {
	Pool        *pgxpool.Pool
	RedisClient *redis.Client
	Server      *httptest.Server
	AuthSvc     *auth.Service
	UserSvc     *users.Service
	TierSvc     *tiers.Service
	Engine      *quota.Engine
	HistoryRepo history.Repository
}

var testEnv *TestEnv

// SetupTestEnv starts the backing containers once and wires the full service
// graph behind an httptest server. Provider HTTP calls are replaced with
// in-process stubs; the history trail writes straight to Postgres instead of
// going through JetStream. Containers are reaped by ryuk when the test
// process exits, so the shared environment survives across test functions.
func SetupTestEnv(t *testing.T) *TestEnv {
	t.Helper()
	if testEnv != nil {
		return testEnv
	}

	ctx := context.Background()

	pgContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "test",
				"POSTGRES_PASSWORD": "test",
				"POSTGRES_DB":       "draftwise_test",
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

	pgHost, _ := pgContainer.Host(ctx)
	pgPort, _ := pgContainer.MappedPort(ctx, "5432")

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

	redisHost, _ := redisContainer.Host(ctx)
	redisPort, _ := redisContainer.MappedPort(ctx, "6379")

	dsn := fmt.Sprintf("postgres://test:test@%s:%s/draftwise_test?sslmode=disable", pgHost, pgPort.Port())
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connecting to postgres: %v", err)
	}

	m, err := migrate.New(fmt.Sprintf("file://%s", getMigrationsPath()), dsn)
	if err != nil {
		t.Fatalf("creating migrator: %v", err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		t.Fatalf("running migrations: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr: fmt.Sprintf("%s:%s", redisHost, redisPort.Port()),
	})

	encryptor, err := auth.NewEncryptor("0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef")
	if err != nil {
		t.Fatalf("creating encryptor: %v", err)
	}

	jwtManager := auth.NewJWTManager("test-access-secret-32-chars-long!!", "test-refresh-secret-32-chars-long!!", 15*time.Minute, 7*24*time.Hour)
	authSvc := auth.NewService(jwtManager, redisClient)
	userSvc := users.NewService(users.NewRepository(pool), encryptor)
	authHandler := auth.NewHandler(authSvc, userSvc)
	userHandler := users.NewHandler(userSvc)

	policyCache := cache.New[tiers.Policy](cache.Options{DefaultTTL: 5 * time.Minute})
	tierSvc := tiers.NewService(tiers.NewRepository(pool), policyCache)
	tierHandler := tiers.NewHandler(tierSvc)

	modelListCache := cache.New[sharedkeys.ModelList](cache.Options{DefaultTTL: 5 * time.Minute})
	catalogCache := cache.New[[]providers.CatalogModel](cache.Options{DefaultTTL: 5 * time.Minute})
	sharedPool := sharedkeys.NewPool(sharedkeys.NewRepository(pool), encryptor, stubCatalog{}, modelListCache, catalogCache)
	sharedHandler := sharedkeys.NewHandler(sharedPool)

	engine := quota.NewEngine(quota.NewRepository(pool), tierSvc)
	quotaHandler := quota.NewHandler(engine)

	historyRepo := history.NewRepository(pool)
	historyHandler := history.NewHandler(historyRepo)

	genSvc := generation.NewService(
		resolver.New(sharedPool, userSvc),
		engine,
		stubGenerator{},
		&dbTrail{repo: historyRepo},
	)
	genHandler := generation.NewHandler(genSvc)

	router := api.NewRouter(pool, nil, api.RouterConfig{}, api.HandlerSet{
		Register: authHandler.Register,
		Login:    authHandler.Login,
		Refresh:  authHandler.Refresh,
		Logout:   authHandler.Logout,

		Me:                userHandler.Me,
		SetProviderKey:    userHandler.SetProviderKey,
		DeleteProviderKey: userHandler.DeleteProviderKey,
		Generate:          genHandler.Generate,
		RecordActivity:    genHandler.RecordActivity,
		Usage:             quotaHandler.Usage,
		ListSharedModels:  sharedHandler.ListModels,
		ListHistory:       historyHandler.List,

		ListTierPolicies: tierHandler.List,
		GetTierPolicy:    tierHandler.Get,
		UpsertTierPolicy: tierHandler.Upsert,
		CreateSharedKey:  sharedHandler.Create,
		ListSharedKeys:   sharedHandler.List,
		ToggleSharedKey:  sharedHandler.Toggle,
		DeleteSharedKey:  sharedHandler.Delete,

		AuthMiddleware:  auth.Middleware(authSvc),
		AdminMiddleware: auth.RequireAdmin,
	})

	server := httptest.NewServer(router)

	testEnv = &TestEnv{
		Pool:        pool,
		RedisClient: redisClient,
		Server:      server,
		AuthSvc:     authSvc,
		UserSvc:     userSvc,
		TierSvc:     tierSvc,
		Engine:      engine,
		HistoryRepo: historyRepo,
	}

	return testEnv
}

// stubCatalog stands in for the provider model-listing endpoints.
type stubCatalog struct{}

func (stubCatalog) ListModels(_ context.Context, provider providers.Provider, _ string) ([]providers.CatalogModel, error) {
	switch provider {
	case providers.OpenAI:
		return []providers.CatalogModel{
			{ID: "gpt-4o", DisplayName: "GPT-4o"},
			{ID: "gpt-4o-mini", DisplayName: "GPT-4o mini"},
		}, nil
	case providers.Anthropic:
		return []providers.CatalogModel{
			{ID: "claude-sonnet-4-20250514", DisplayName: "Claude Sonnet 4"},
		}, nil
	case providers.Gemini:
		return []providers.CatalogModel{
			{ID: "gemini-2.0-flash", DisplayName: "Gemini 2.0 Flash"},
		}, nil
	}
	return nil, fmt.Errorf("unknown provider %q", provider)
}

// stubGenerator stands in for the provider generation endpoints.
type stubGenerator struct{}

func (stubGenerator) Generate(_ context.Context, _ providers.Provider, _, model, prompt string) (string, error) {
	return fmt.Sprintf("generated by %s: %s", model, prompt), nil
}

// dbTrail persists history events synchronously, bypassing JetStream so
// tests can read the trail back without waiting on a consumer.
type dbTrail struct {
	repo history.Repository
}

func (tr *dbTrail) TryPublish(ctx context.Context, evt *inats.HistoryEvent) {
	if evt.ID == uuid.Nil {
		evt.ID = uuid.New()
	}
	if evt.OccurredAt.IsZero() {
		evt.OccurredAt = time.Now().UTC()
	}
	_ = tr.repo.Insert(ctx, &history.Entry{
		ID:            evt.ID,
		UserID:        evt.UserID,
		Kind:          evt.Kind,
		Model:         evt.Model,
		Provider:      evt.Provider,
		UsedSharedKey: evt.UsedSharedKey,
		Followup:      evt.Followup,
		Success:       evt.Success,
		Detail:        evt.Detail,
		OccurredAt:    evt.OccurredAt,
	})
}

func getMigrationsPath() string {
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

// PromoteUser changes a user's tier directly and returns a fresh token whose
// claims carry the new tier.
func PromoteUser(t *testing.T, env *TestEnv, email, password string, tier tiers.Tier) string {
	t.Helper()
	user, err := env.UserSvc.GetByEmail(context.Background(), email)
	if err != nil || user == nil {
		t.Fatalf("looking up %s: %v", email, err)
	}
	if err := env.UserSvc.UpdateTier(context.Background(), user.ID, tier); err != nil {
		t.Fatalf("updating tier: %v", err)
	}
	return LoginUser(t, env, email, password)
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

var _uniqueCounter int64

func uniqueID() int64 {
	_uniqueCounter++
	return _uniqueCounter
}
