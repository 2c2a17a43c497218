package metrics

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

func TestReport(t *testing.T) {
	var received Data
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "server-key", r.Header.Get("X-API-Key"))
		assert.Equal(t, "test-request-id", r.Header.Get("X-Request-ID"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	r := NewReporter(server.URL, "server-key", http.DefaultClient, testRequestID, slog.Default())
	r.Report(context.Background(), Data{
		APIKey:            "test-api-key",
		Model:             "gemma3:1b",
		InputTokenLength:  7,
		OutputTokenLength: 3,
		RequestDurationMs: 120,
		Endpoint:          "/api/generate",
	})

	assert.Equal(t, "test-api-key", received.APIKey)
	assert.Equal(t, "gemma3:1b", received.Model)
	assert.Equal(t, 7, received.InputTokenLength)
	assert.Equal(t, 3, received.OutputTokenLength)
	assert.Equal(t, int64(120), received.RequestDurationMs)
	assert.Equal(t, "/api/generate", received.Endpoint)
}

func TestReportNonOKStatusDoesNotPanic(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	r := NewReporter(server.URL, "server-key", http.DefaultClient, testRequestID, slog.Default())
	// 上报失败只记录日志，不影响调用方
	r.Report(context.Background(), Data{Model: "gemma3:1b"})
}

func TestReportUnreachableDoesNotPanic(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	r := NewReporter(server.URL, "server-key", http.DefaultClient, testRequestID, slog.Default())
	r.Report(context.Background(), Data{Model: "gemma3:1b"})
}

func TestPing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	r := NewReporter(server.URL, "server-key", http.DefaultClient, testRequestID, slog.Default())
	require.NoError(t, r.Ping(context.Background()))
}

func TestPingNonOK(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	r := NewReporter(server.URL, "server-key", http.DefaultClient, testRequestID, slog.Default())
	require.Error(t, r.Ping(context.Background()))
}
