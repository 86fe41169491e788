//go:build integration

package integration

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUsage_FreshUserGetsSeededFreeLimits(t *testing.T) {
	env := SetupTestEnv(t)

	email := fmt.Sprintf("usage-%d@test.com", uniqueID())
	RegisterUser(t, env, email, "password123")
	token := LoginUser(t, env, email, "password123")

	resp := DoRequest(t, env, "GET", "/api/v1/usage", nil, token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	data := ParseResponse(t, resp)["data"].(map[string]any)

	assert.Equal(t, "FREE", data["tier"])

	activities := data["activities"].(map[string]any)
	assert.Equal(t, true, activities["allowed"])
	assert.Equal(t, float64(0), activities["current"])
	assert.Equal(t, float64(10), activities["limit"])
	assert.NotEmpty(t, activities["resets_at"])

	generations := data["generations"].(map[string]any)
	assert.Equal(t, float64(20), generations["limit"])

	followups := data["followup_generations"].(map[string]any)
	assert.Equal(t, float64(5), followups["limit"])
}

func TestActivities_CountedAndDeniedAtLimit(t *testing.T) {
	env := SetupTestEnv(t)

	email := fmt.Sprintf("actlimit-%d@test.com", uniqueID())
	RegisterUser(t, env, email, "password123")
	token := LoginUser(t, env, email, "password123")

	body := map[string]any{"model": "gpt-4o"}
	for i := 0; i < 10; i++ {
		resp := DoRequest(t, env, "POST", "/api/v1/activities", body, token)
		require.Equal(t, http.StatusCreated, resp.StatusCode, "activity %d", i+1)
	}

	// The 11th activity hits the FREE ceiling and must carry reset details.
	resp := DoRequest(t, env, "POST", "/api/v1/activities", body, token)
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	result := ParseResponse(t, resp)
	details := result["details"].(map[string]any)
	assert.Equal(t, "activities", details["counter"])
	assert.Equal(t, float64(10), details["current"])
	assert.Equal(t, float64(10), details["limit"])
	assert.NotEmpty(t, details["resets_at"])
	assert.Contains(t, details, "days_until_reset")

	resp = DoRequest(t, env, "GET", "/api/v1/usage", nil, token)
	data := ParseResponse(t, resp)["data"].(map[string]any)
	activities := data["activities"].(map[string]any)
	assert.Equal(t, float64(10), activities["current"])
	assert.Equal(t, false, activities["allowed"])
}

func TestGenerate_OwnKeyIsNotMetered(t *testing.T) {
	env := SetupTestEnv(t)

	email := fmt.Sprintf("ownkey-%d@test.com", uniqueID())
	RegisterUser(t, env, email, "password123")
	token := LoginUser(t, env, email, "password123")

	resp := DoRequest(t, env, "PUT", "/api/v1/keys/openai", map[string]string{"api_key": "sk-test-own-key-1234"}, token)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	genBody := map[string]any{"model": "gpt-4o", "prompt": "write a haiku"}
	resp = DoRequest(t, env, "POST", "/api/v1/generate", genBody, token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	data := ParseResponse(t, resp)["data"].(map[string]any)
	assert.Equal(t, false, data["used_shared_key"])
	assert.Equal(t, "gpt-4o", data["model"])
	assert.NotEmpty(t, data["content"])

	// Own-key generations never touch the pooled-credential counters.
	resp = DoRequest(t, env, "GET", "/api/v1/usage", nil, token)
	usage := ParseResponse(t, resp)["data"].(map[string]any)
	generations := usage["generations"].(map[string]any)
	assert.Equal(t, float64(0), generations["current"])
}

func TestGenerate_MissingOwnKey(t *testing.T) {
	env := SetupTestEnv(t)

	email := fmt.Sprintf("nokey-%d@test.com", uniqueID())
	RegisterUser(t, env, email, "password123")
	token := LoginUser(t, env, email, "password123")

	genBody := map[string]any{"model": "gemini-2.0-flash", "prompt": "write a haiku"}
	resp := DoRequest(t, env, "POST", "/api/v1/generate", genBody, token)
	assert.Equal(t, http.StatusPreconditionFailed, resp.StatusCode)
}

func TestGenerate_SharedPoolRequiresPaidTier(t *testing.T) {
	env := SetupTestEnv(t)

	email := fmt.Sprintf("freeshared-%d@test.com", uniqueID())
	RegisterUser(t, env, email, "password123")
	token := LoginUser(t, env, email, "password123")

	genBody := map[string]any{"model": "shared:gpt-4o", "prompt": "write a haiku"}
	resp := DoRequest(t, env, "POST", "/api/v1/generate", genBody, token)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestGenerate_SharedPathIsMetered(t *testing.T) {
	env := SetupTestEnv(t)

	adminEmail := fmt.Sprintf("pooladmin-%d@test.com", uniqueID())
	RegisterUser(t, env, adminEmail, "password123")
	adminToken := PromoteUser(t, env, adminEmail, "password123", "ADMIN")

	keyBody := map[string]any{
		"provider":          "openai",
		"api_key":           "sk-pool-credential-1",
		"authorized_models": []string{"gpt-4o"},
	}
	resp := DoRequest(t, env, "POST", "/api/v1/admin/shared-keys", keyBody, adminToken)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	email := fmt.Sprintf("plusshared-%d@test.com", uniqueID())
	RegisterUser(t, env, email, "password123")
	token := PromoteUser(t, env, email, "password123", "PLUS")

	genBody := map[string]any{"model": "shared:gpt-4o", "prompt": "write a haiku"}
	resp = DoRequest(t, env, "POST", "/api/v1/generate", genBody, token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	data := ParseResponse(t, resp)["data"].(map[string]any)
	assert.Equal(t, true, data["used_shared_key"])
	assert.Equal(t, "gpt-4o", data["model"])

	followupBody := map[string]any{"model": "shared:gpt-4o", "prompt": "make it shorter", "followup": true}
	resp = DoRequest(t, env, "POST", "/api/v1/generate", followupBody, token)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = DoRequest(t, env, "GET", "/api/v1/usage", nil, token)
	usage := ParseResponse(t, resp)["data"].(map[string]any)
	generations := usage["generations"].(map[string]any)
	assert.Equal(t, float64(1), generations["current"])
	// PLUS main generations are unlimited on the wire (limit 0).
	assert.Equal(t, float64(0), generations["limit"])
	assert.Equal(t, true, generations["allowed"])

	followups := usage["followup_generations"].(map[string]any)
	assert.Equal(t, float64(1), followups["current"])
	assert.Equal(t, float64(50), followups["limit"])
}

func TestWindowRoll_LazyOnRead(t *testing.T) {
	env := SetupTestEnv(t)
	ctx := context.Background()

	email := fmt.Sprintf("lazyroll-%d@test.com", uniqueID())
	RegisterUser(t, env, email, "password123")
	token := LoginUser(t, env, email, "password123")

	resp := DoRequest(t, env, "POST", "/api/v1/activities", map[string]any{"model": "gpt-4o"}, token)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	user, err := env.UserSvc.GetByEmail(ctx, email)
	require.NoError(t, err)
	_, err = env.Pool.Exec(ctx,
		`UPDATE user_usage SET monthly_reset_at = NOW() - INTERVAL '31 days' WHERE user_id = $1`, user.ID)
	require.NoError(t, err)

	// The next read rolls the elapsed window and reports fresh counters.
	resp = DoRequest(t, env, "GET", "/api/v1/usage", nil, token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	data := ParseResponse(t, resp)["data"].(map[string]any)
	activities := data["activities"].(map[string]any)
	assert.Equal(t, float64(0), activities["current"])

	var count int
	err = env.Pool.QueryRow(ctx,
		`SELECT activity_count FROM user_usage WHERE user_id = $1`, user.ID).Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestWindowRoll_BatchSweepIsIdempotent(t *testing.T) {
	env := SetupTestEnv(t)
	ctx := context.Background()

	email := fmt.Sprintf("sweep-%d@test.com", uniqueID())
	RegisterUser(t, env, email, "password123")
	token := LoginUser(t, env, email, "password123")

	resp := DoRequest(t, env, "POST", "/api/v1/activities", map[string]any{"model": "gpt-4o"}, token)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	user, err := env.UserSvc.GetByEmail(ctx, email)
	require.NoError(t, err)
	_, err = env.Pool.Exec(ctx,
		`UPDATE user_usage SET monthly_reset_at = NOW() - INTERVAL '31 days' WHERE user_id = $1`, user.ID)
	require.NoError(t, err)

	rolled, err := env.Engine.ResetExpiredWindows(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, rolled, 1)

	var count int
	require.NoError(t, env.Pool.QueryRow(ctx,
		`SELECT activity_count FROM user_usage WHERE user_id = $1`, user.ID).Scan(&count))
	assert.Equal(t, 0, count)

	// A second sweep finds nothing left to roll.
	rolled, err = env.Engine.ResetExpiredWindows(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, rolled)
}

func TestAdmin_IsExemptFromQuota(t *testing.T) {
	env := SetupTestEnv(t)

	email := fmt.Sprintf("adminquota-%d@test.com", uniqueID())
	RegisterUser(t, env, email, "password123")
	token := PromoteUser(t, env, email, "password123", "ADMIN")

	resp := DoRequest(t, env, "GET", "/api/v1/usage", nil, token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	data := ParseResponse(t, resp)["data"].(map[string]any)
	activities := data["activities"].(map[string]any)
	assert.Equal(t, true, activities["allowed"])
	assert.Equal(t, float64(0), activities["limit"])

	// Admin activity is not tracked at all.
	resp = DoRequest(t, env, "POST", "/api/v1/activities", map[string]any{"model": "gpt-4o"}, token)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	ctx := context.Background()
	user, err := env.UserSvc.GetByEmail(ctx, email)
	require.NoError(t, err)
	var rows int
	require.NoError(t, env.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM user_usage WHERE user_id = $1`, user.ID).Scan(&rows))
	assert.Equal(t, 0, rows)
}
