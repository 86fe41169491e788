//go:build integration

package integration

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuth_RegisterAndMe(t *testing.T) {
	env := SetupTestEnv(t)

	email := fmt.Sprintf("register-%d@test.com", uniqueID())
	result := RegisterUser(t, env, email, "password123")
	data := result["data"].(map[string]any)
	assert.NotEmpty(t, data["access_token"])
	assert.NotEmpty(t, data["refresh_token"])

	token := LoginUser(t, env, email, "password123")
	resp := DoRequest(t, env, "GET", "/api/v1/me", nil, token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	me := ParseResponse(t, resp)["data"].(map[string]any)
	user := me["user"].(map[string]any)
	assert.Equal(t, email, user["email"])
	assert.Equal(t, "FREE", user["tier"])
	assert.Empty(t, me["configured_keys"])
}

func TestAuth_DuplicateEmailRejected(t *testing.T) {
	env := SetupTestEnv(t)

	email := fmt.Sprintf("dup-%d@test.com", uniqueID())
	RegisterUser(t, env, email, "password123")

	body := map[string]string{"email": email, "password": "password123"}
	resp := DoRequest(t, env, "POST", "/api/v1/auth/register", body, "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestAuth_WrongPassword(t *testing.T) {
	env := SetupTestEnv(t)

	email := fmt.Sprintf("wrongpw-%d@test.com", uniqueID())
	RegisterUser(t, env, email, "password123")

	body := map[string]string{"email": email, "password": "not-the-password"}
	resp := DoRequest(t, env, "POST", "/api/v1/auth/login", body, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAuth_RefreshIssuesNewPair(t *testing.T) {
	env := SetupTestEnv(t)

	email := fmt.Sprintf("refresh-%d@test.com", uniqueID())
	result := RegisterUser(t, env, email, "password123")
	data := result["data"].(map[string]any)
	refreshToken := data["refresh_token"].(string)

	resp := DoRequest(t, env, "POST", "/api/v1/auth/refresh", map[string]string{"refresh_token": refreshToken}, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	refreshed := ParseResponse(t, resp)["data"].(map[string]any)
	assert.NotEmpty(t, refreshed["access_token"])
	assert.NotEmpty(t, refreshed["refresh_token"])
}

func TestAuth_ProtectedRoutesRequireToken(t *testing.T) {
	env := SetupTestEnv(t)

	for _, path := range []string{"/api/v1/me", "/api/v1/usage", "/api/v1/history", "/api/v1/models/shared"} {
		resp := DoRequest(t, env, "GET", path, nil, "")
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, "path %s", path)
	}
}

func TestAuth_ProviderKeyRoundTrip(t *testing.T) {
	env := SetupTestEnv(t)

	email := fmt.Sprintf("provkey-%d@test.com", uniqueID())
	RegisterUser(t, env, email, "password123")
	token := LoginUser(t, env, email, "password123")

	resp := DoRequest(t, env, "PUT", "/api/v1/keys/openai", map[string]string{"api_key": "sk-test-own-key-1234"}, token)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = DoRequest(t, env, "GET", "/api/v1/me", nil, token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	me := ParseResponse(t, resp)["data"].(map[string]any)
	configured := me["configured_keys"].([]any)
	require.Len(t, configured, 1)
	assert.Equal(t, "openai", configured[0])

	resp = DoRequest(t, env, "DELETE", "/api/v1/keys/openai", nil, token)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = DoRequest(t, env, "GET", "/api/v1/me", nil, token)
	me = ParseResponse(t, resp)["data"].(map[string]any)
	assert.Empty(t, me["configured_keys"])
}

func TestAuth_UnknownProviderRejected(t *testing.T) {
	env := SetupTestEnv(t)

	email := fmt.Sprintf("badprov-%d@test.com", uniqueID())
	RegisterUser(t, env, email, "password123")
	token := LoginUser(t, env, email, "password123")

	resp := DoRequest(t, env, "PUT", "/api/v1/keys/mistral", map[string]string{"api_key": "sk-test-own-key-1234"}, token)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
