//go:build integration

package integration

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/draftwise/draftwise/internal/history"
	inats "github.com/draftwise/draftwise/internal/nats"
)

func TestHistory_RecordsGenerationsAndActivities(t *testing.T) {
	env := SetupTestEnv(t)

	email := fmt.Sprintf("trail-%d@test.com", uniqueID())
	RegisterUser(t, env, email, "password123")
	token := LoginUser(t, env, email, "password123")

	resp := DoRequest(t, env, "PUT", "/api/v1/keys/openai", map[string]string{"api_key": "sk-test-own-key-1234"}, token)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = DoRequest(t, env, "POST", "/api/v1/generate", map[string]any{"model": "gpt-4o", "prompt": "write a haiku"}, token)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = DoRequest(t, env, "POST", "/api/v1/activities", map[string]any{"model": "gpt-4o"}, token)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = DoRequest(t, env, "GET", "/api/v1/history", nil, token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	page := ParseResponse(t, resp)["data"].(map[string]any)
	require.Equal(t, float64(2), page["total"])

	kinds := map[string]map[string]any{}
	for _, e := range page["entries"].([]any) {
		entry := e.(map[string]any)
		kinds[entry["kind"].(string)] = entry
	}

	gen, ok := kinds["generation"]
	require.True(t, ok, "generation entry missing")
	assert.Equal(t, "gpt-4o", gen["model"])
	assert.Equal(t, "openai", gen["provider"])
	assert.Equal(t, false, gen["used_shared_key"])
	assert.Equal(t, true, gen["success"])

	act, ok := kinds["activity"]
	require.True(t, ok, "activity entry missing")
	assert.Equal(t, true, act["success"])
}

func TestHistory_IsScopedToTheCaller(t *testing.T) {
	env := SetupTestEnv(t)

	email1 := fmt.Sprintf("trailowner1-%d@test.com", uniqueID())
	email2 := fmt.Sprintf("trailowner2-%d@test.com", uniqueID())
	RegisterUser(t, env, email1, "password123")
	RegisterUser(t, env, email2, "password123")
	token1 := LoginUser(t, env, email1, "password123")
	token2 := LoginUser(t, env, email2, "password123")

	resp := DoRequest(t, env, "POST", "/api/v1/activities", map[string]any{"model": "gpt-4o"}, token1)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = DoRequest(t, env, "GET", "/api/v1/history", nil, token2)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	page := ParseResponse(t, resp)["data"].(map[string]any)
	assert.Equal(t, float64(0), page["total"])
}

func TestHistory_PaginatesNewestFirst(t *testing.T) {
	env := SetupTestEnv(t)
	ctx := context.Background()

	email := fmt.Sprintf("trailpage-%d@test.com", uniqueID())
	RegisterUser(t, env, email, "password123")
	token := LoginUser(t, env, email, "password123")

	user, err := env.UserSvc.GetByEmail(ctx, email)
	require.NoError(t, err)

	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		entry := &history.Entry{
			ID:         uuid.New(),
			UserID:     user.ID,
			Kind:       inats.KindGeneration,
			Model:      fmt.Sprintf("model-%d", i),
			Provider:   "openai",
			Success:    true,
			OccurredAt: base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, env.HistoryRepo.Insert(ctx, entry))
	}

	resp := DoRequest(t, env, "GET", "/api/v1/history?limit=2", nil, token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	page := ParseResponse(t, resp)["data"].(map[string]any)
	assert.Equal(t, float64(3), page["total"])
	entries := page["entries"].([]any)
	require.Len(t, entries, 2)
	assert.Equal(t, "model-2", entries[0].(map[string]any)["model"])
	assert.Equal(t, "model-1", entries[1].(map[string]any)["model"])

	resp = DoRequest(t, env, "GET", "/api/v1/history?limit=2&offset=2", nil, token)
	page = ParseResponse(t, resp)["data"].(map[string]any)
	entries = page["entries"].([]any)
	require.Len(t, entries, 1)
	assert.Equal(t, "model-0", entries[0].(map[string]any)["model"])
}

func TestHistory_InsertIsIdempotent(t *testing.T) {
	env := SetupTestEnv(t)
	ctx := context.Background()

	email := fmt.Sprintf("trailidem-%d@test.com", uniqueID())
	RegisterUser(t, env, email, "password123")
	user, err := env.UserSvc.GetByEmail(ctx, email)
	require.NoError(t, err)

	entry := &history.Entry{
		ID:         uuid.New(),
		UserID:     user.ID,
		Kind:       inats.KindActivity,
		Success:    true,
		OccurredAt: time.Now().UTC(),
	}

	// Redelivery of the same event must not duplicate the row.
	require.NoError(t, env.HistoryRepo.Insert(ctx, entry))
	require.NoError(t, env.HistoryRepo.Insert(ctx, entry))

	page, err := env.HistoryRepo.ListByUser(ctx, user.ID, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)
}
