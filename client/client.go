// Package client 提供一个精简的 Ollama 客户端，用于通过网关发起生成请求。
//
// 客户端支持自定义请求头（如 API 密钥头）和流式回调，每次调用都是一次
// 独立的 HTTP 请求，不做缓存和重试。
package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// 默认请求超时时间
const defaultTimeout = 120 * time.Second

// StreamHandler 流式回调，每收到一个 token 调用一次
type StreamHandler func(token string)

// StdoutStreamHandler 返回一个将 token 实时写入标准输出的回调
func StdoutStreamHandler() StreamHandler {
	return func(token string) {
		fmt.Fprint(os.Stdout, token)
	}
}

// Options 客户端配置
type Options struct {
	// BaseURL 服务地址，例如 http://localhost:8080
	BaseURL string
	// Model 模型名称，例如 gemma3:1b
	Model string
	// Headers 附加到每个请求的自定义请求头（如 X-API-Key）
	Headers map[string]string
	// Timeout 单次请求超时，零值使用默认值
	Timeout time.Duration
	// Handler 流式回调，nil 则不进行流式输出
	Handler StreamHandler
	// HTTPClient 自定义 HTTP 客户端，nil 则按 Timeout 创建
	HTTPClient *http.Client
}

// Client Ollama 客户端
type Client struct {
	baseURL    string
	model      string
	headers    map[string]string
	handler    StreamHandler
	httpClient *http.Client
}

// New 创建客户端实例
func New(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout == 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	headers := make(map[string]string, len(opts.Headers))
	for k, v := range opts.Headers {
		headers[k] = v
	}

	return &Client{
		baseURL:    strings.TrimSuffix(opts.BaseURL, "/"),
		model:      opts.Model,
		headers:    headers,
		handler:    opts.Handler,
		httpClient: httpClient,
	}
}

// Message 聊天消息
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// generateRequest /api/generate 请求体
type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

// generateChunk /api/generate 流式响应的单个分块
type generateChunk struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// chatRequest /api/chat 请求体
type chatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Stream   bool      `json:"stream"`
}

// chatChunk /api/chat 流式响应的单个分块
type chatChunk struct {
	Message Message `json:"message"`
	Done    bool    `json:"done"`
}

// Generate 发起一次生成请求并返回完整响应文本
//
// 响应以 NDJSON 流式返回，每个 token 都会触发流式回调；
// 连接失败、非 2xx 状态码和响应解析失败均以错误返回。
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	body := generateRequest{
		Model:  c.model,
		Prompt: prompt,
		Stream: true,
	}

	var sb strings.Builder
	err := c.stream(ctx, "/api/generate", body, func(line []byte) (bool, error) {
		var chunk generateChunk
		if err := json.Unmarshal(line, &chunk); err != nil {
			return false, fmt.Errorf("解析响应分块失败：%w", err)
		}
		if chunk.Response != "" {
			sb.WriteString(chunk.Response)
			if c.handler != nil {
				c.handler(chunk.Response)
			}
		}
		return chunk.Done, nil
	})
	if err != nil {
		return "", err
	}
	return sb.String(), nil
}

// Chat 发起一次聊天请求并返回完整响应文本
func (c *Client) Chat(ctx context.Context, messages []Message) (string, error) {
	body := chatRequest{
		Model:    c.model,
		Messages: messages,
		Stream:   true,
	}

	var sb strings.Builder
	err := c.stream(ctx, "/api/chat", body, func(line []byte) (bool, error) {
		var chunk chatChunk
		if err := json.Unmarshal(line, &chunk); err != nil {
			return false, fmt.Errorf("解析响应分块失败：%w", err)
		}
		if chunk.Message.Content != "" {
			sb.WriteString(chunk.Message.Content)
			if c.handler != nil {
				c.handler(chunk.Message.Content)
			}
		}
		return chunk.Done, nil
	})
	if err != nil {
		return "", err
	}
	return sb.String(), nil
}

// stream 发送请求并逐行消费 NDJSON 响应
func (c *Client) stream(ctx context.Context, path string, body any, consume func(line []byte) (done bool, err error)) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("序列化请求体失败：%w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("创建请求失败：%w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("请求失败：%w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("服务返回状态 %d：%s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		done, err := consume(line)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("读取响应流失败：%w", err)
	}

	return nil
}
