package auth

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRequestID() string {
	return "test-request-id"
}

// newValidationStub 构造一个模拟验证服务
func newValidationStub(t *testing.T, valid, rateLimited bool) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "server-key", r.Header.Get("X-API-Key"))
		assert.Equal(t, "test-request-id", r.Header.Get("X-Request-ID"))

		if r.Method == http.MethodGet {
			w.WriteHeader(http.StatusOK)
			return
		}

		var details RequestDetails
		require.NoError(t, json.NewDecoder(r.Body).Decode(&details))
		assert.NotEmpty(t, details.APIKey)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(ValidationResponse{
			Valid:       valid,
			RateLimited: rateLimited,
		})
	}))
}

func TestValidateAllowed(t *testing.T) {
	server := newValidationStub(t, true, false)
	defer server.Close()

	v := NewValidator(server.URL, "server-key", http.DefaultClient, testRequestID, slog.Default())
	resp, err := v.Validate(context.Background(), RequestDetails{
		APIKey:   "test-api-key",
		Model:    "gemma3:1b",
		Endpoint: "/api/generate",
	})
	require.NoError(t, err)
	assert.True(t, resp.Allowed())
}

func TestValidateInvalidKey(t *testing.T) {
	server := newValidationStub(t, false, false)
	defer server.Close()

	v := NewValidator(server.URL, "server-key", http.DefaultClient, testRequestID, slog.Default())
	resp, err := v.Validate(context.Background(), RequestDetails{APIKey: "wrong-key"})
	require.NoError(t, err)
	assert.False(t, resp.Allowed())
}

func TestValidateRateLimited(t *testing.T) {
	server := newValidationStub(t, true, true)
	defer server.Close()

	v := NewValidator(server.URL, "server-key", http.DefaultClient, testRequestID, slog.Default())
	resp, err := v.Validate(context.Background(), RequestDetails{APIKey: "rate-limited-key"})
	require.NoError(t, err)
	// 限流的密钥即使有效也要拒绝
	assert.False(t, resp.Allowed())
}

func TestValidateNonOKStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	v := NewValidator(server.URL, "server-key", http.DefaultClient, testRequestID, slog.Default())
	_, err := v.Validate(context.Background(), RequestDetails{APIKey: "test-api-key"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

func TestValidateUnreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	v := NewValidator(server.URL, "server-key", http.DefaultClient, testRequestID, slog.Default())
	_, err := v.Validate(context.Background(), RequestDetails{APIKey: "test-api-key"})
	require.Error(t, err)
}

func TestValidateMalformedResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not-json"))
	}))
	defer server.Close()

	v := NewValidator(server.URL, "server-key", http.DefaultClient, testRequestID, slog.Default())
	_, err := v.Validate(context.Background(), RequestDetails{APIKey: "test-api-key"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "解析验证响应失败")
}

func TestPing(t *testing.T) {
	server := newValidationStub(t, true, false)
	defer server.Close()

	v := NewValidator(server.URL, "server-key", http.DefaultClient, testRequestID, slog.Default())
	require.NoError(t, v.Ping(context.Background()))
}

func TestPingUnreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	v := NewValidator(server.URL, "server-key", http.DefaultClient, testRequestID, slog.Default())
	require.Error(t, v.Ping(context.Background()))
}
