package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newOllamaStub 构造一个模拟 Ollama /api/generate 流式响应的测试服务
func newOllamaStub(t *testing.T, tokens []string, requestCount *atomic.Int64) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requestCount != nil {
			requestCount.Add(1)
		}
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/generate", r.URL.Path)

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)

		var req map[string]any
		require.NoError(t, json.Unmarshal(body, &req))
		assert.Equal(t, "gemma3:1b", req["model"])
		assert.Equal(t, "What is the capital of France?", req["prompt"])

		// API 密钥头必须以配置的名称恰好出现一次
		assert.Equal(t, []string{"test-api-key"}, r.Header.Values("X-API-Key"))

		w.Header().Set("Content-Type", "application/x-ndjson")
		for _, token := range tokens {
			fmt.Fprintf(w, `{"model":"gemma3:1b","response":%q,"done":false}`+"\n", token)
		}
		fmt.Fprintln(w, `{"model":"gemma3:1b","response":"","done":true,"prompt_eval_count":7,"eval_count":3}`)
	}))
}

func TestGenerateStreamsTokens(t *testing.T) {
	server := newOllamaStub(t, []string{"Pa", "ris", "."}, nil)
	defer server.Close()

	var streamed []string
	llm := New(Options{
		BaseURL: server.URL,
		Model:   "gemma3:1b",
		Headers: map[string]string{"X-API-Key": "test-api-key"},
		Handler: func(token string) {
			streamed = append(streamed, token)
		},
	})

	response, err := llm.Generate(context.Background(), "What is the capital of France?")
	require.NoError(t, err)
	assert.Equal(t, "Paris.", response)
	assert.Equal(t, []string{"Pa", "ris", "."}, streamed)
}

func TestGenerateWithoutHandler(t *testing.T) {
	server := newOllamaStub(t, []string{"Paris"}, nil)
	defer server.Close()

	llm := New(Options{
		BaseURL: server.URL,
		Model:   "gemma3:1b",
		Headers: map[string]string{"X-API-Key": "test-api-key"},
	})

	response, err := llm.Generate(context.Background(), "What is the capital of France?")
	require.NoError(t, err)
	assert.Equal(t, "Paris", response)
}

func TestGenerateTwoInvocationsTwoRequests(t *testing.T) {
	var requestCount atomic.Int64
	server := newOllamaStub(t, []string{"Paris"}, &requestCount)
	defer server.Close()

	llm := New(Options{
		BaseURL: server.URL,
		Model:   "gemma3:1b",
		Headers: map[string]string{"X-API-Key": "test-api-key"},
	})

	_, err := llm.Generate(context.Background(), "What is the capital of France?")
	require.NoError(t, err)
	_, err = llm.Generate(context.Background(), "What is the capital of France?")
	require.NoError(t, err)

	// 无缓存、无去重：两次调用就是两次独立请求
	assert.Equal(t, int64(2), requestCount.Load())
}

func TestGenerateUnreachableEndpoint(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	llm := New(Options{
		BaseURL: server.URL,
		Model:   "gemma3:1b",
	})

	_, err := llm.Generate(context.Background(), "What is the capital of France?")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "请求失败")
}

func TestGenerateNonSuccessStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"无效的 API 密钥"}`, http.StatusUnauthorized)
	}))
	defer server.Close()

	llm := New(Options{
		BaseURL: server.URL,
		Model:   "gemma3:1b",
	})

	_, err := llm.Generate(context.Background(), "What is the capital of France?")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestGenerateMalformedChunk(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, "not-json")
	}))
	defer server.Close()

	llm := New(Options{
		BaseURL: server.URL,
		Model:   "gemma3:1b",
	})

	_, err := llm.Generate(context.Background(), "What is the capital of France?")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "解析响应分块失败")
}

func TestChatStreamsTokens(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/chat", r.URL.Path)

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gemma3:1b", req.Model)
		require.Len(t, req.Messages, 1)
		assert.Equal(t, "user", req.Messages[0].Role)

		fmt.Fprintln(w, `{"message":{"role":"assistant","content":"Pa"},"done":false}`)
		fmt.Fprintln(w, `{"message":{"role":"assistant","content":"ris"},"done":false}`)
		fmt.Fprintln(w, `{"message":{"role":"assistant","content":""},"done":true}`)
	}))
	defer server.Close()

	var streamed []string
	llm := New(Options{
		BaseURL: server.URL,
		Model:   "gemma3:1b",
		Handler: func(token string) {
			streamed = append(streamed, token)
		},
	})

	response, err := llm.Chat(context.Background(), []Message{
		{Role: "user", Content: "What is the capital of France?"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Paris", response)
	assert.Equal(t, []string{"Pa", "ris"}, streamed)
}
