// Package relay 实现请求向上游 Ollama 服务的转发。
package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

var hopByHopHeaders = map[string]struct{}{
	"connection":          {},
	"proxy-authenticate":  {},
	"proxy-authorization": {},
	"te":                  {},
	"trailer":             {},
	"transfer-encoding":   {},
	"upgrade":             {},
	"keep-alive":          {},
}

// Service 上游转发服务
type Service struct {
	upstream   *url.URL
	httpClient *http.Client
	userAgent  string
	logger     *slog.Logger
}

// NewService 创建上游转发服务
//
// 参数：
//   - upstreamURL: Ollama 服务地址
//   - userAgent: 转发请求时复写的 User-Agent，空则透传
//   - logger: 日志记录器
func NewService(upstreamURL, userAgent string, logger *slog.Logger) (*Service, error) {
	target, err := url.Parse(upstreamURL)
	if err != nil {
		return nil, fmt.Errorf("解析上游地址失败：%w", err)
	}

	// 流式响应持续时间不可预估，因此客户端不设整体超时，
	// 仅限制响应头等待时间
	httpClient := &http.Client{
		Transport: &http.Transport{
			ResponseHeaderTimeout: 60 * time.Second,
		},
	}

	return &Service{
		upstream:   target,
		httpClient: httpClient,
		userAgent:  userAgent,
		logger:     logger,
	}, nil
}

// Do 将请求转发到上游并返回响应
//
// 保留原始路径和查询参数，剔除逐跳头；响应体由调用方负责关闭。
func (s *Service) Do(ctx context.Context, method, path, rawQuery string, header http.Header, body []byte) (*http.Response, error) {
	target := *s.upstream
	target.Path = singleJoiningSlash(s.upstream.Path, path)
	if s.upstream.RawQuery == "" || rawQuery == "" {
		target.RawQuery = s.upstream.RawQuery + rawQuery
	} else {
		target.RawQuery = s.upstream.RawQuery + "&" + rawQuery
	}

	var bodyReader *bytes.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	} else {
		bodyReader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, target.String(), bodyReader)
	if err != nil {
		return nil, fmt.Errorf("创建上游请求失败：%w", err)
	}

	for key, values := range header {
		if IsHopByHopHeader(key) {
			continue
		}
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}
	req.Host = target.Host

	if s.userAgent != "" {
		req.Header.Set("User-Agent", s.userAgent)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("上游请求失败：%w", err)
	}
	return resp, nil
}

// Ping 检查上游 Ollama 服务是否可达
func (s *Service) Ping(ctx context.Context) error {
	target := *s.upstream
	target.Path = singleJoiningSlash(s.upstream.Path, "/api/tags")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return fmt.Errorf("创建上游探测请求失败：%w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("无法连接 Ollama 服务：%w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("Ollama 服务返回状态 %d", resp.StatusCode)
	}
	return nil
}

// ExtractModel 根据请求路径从请求体中提取模型名称
func ExtractModel(path string, body []byte) string {
	switch {
	case strings.HasSuffix(path, "/api/chat"):
		var req ChatRequest
		if err := json.Unmarshal(body, &req); err == nil {
			return req.Model
		}
	case strings.HasSuffix(path, "/api/generate"):
		var req GenerateRequest
		if err := json.Unmarshal(body, &req); err == nil {
			return req.Model
		}
	case strings.HasSuffix(path, "/api/embed"):
		var req EmbedRequest
		if err := json.Unmarshal(body, &req); err == nil {
			return req.Model
		}
	case strings.HasSuffix(path, "/api/create"):
		var req CreateRequest
		if err := json.Unmarshal(body, &req); err == nil {
			return req.Model
		}
	}
	return ""
}

// IsStream 判断请求是否为流式请求
//
// chat、generate 和 create 接口在未显式指定 stream 字段时默认流式。
func IsStream(path string, body []byte) bool {
	var probe struct {
		Stream *bool `json:"stream"`
	}

	switch {
	case strings.HasSuffix(path, "/api/chat"),
		strings.HasSuffix(path, "/api/generate"),
		strings.HasSuffix(path, "/api/create"):
		if err := json.Unmarshal(body, &probe); err != nil {
			return true
		}
		if probe.Stream == nil {
			return true
		}
		return *probe.Stream
	default:
		return false
	}
}

// TokenCounts 从响应（或流式响应的最后一个分块）中解析 token 统计
func TokenCounts(path string, body []byte) (inputTokens, outputTokens int) {
	switch {
	case strings.HasSuffix(path, "/api/chat"):
		var resp ChatResponse
		if err := json.Unmarshal(body, &resp); err == nil {
			return resp.PromptEvalCount, resp.EvalCount
		}
	case strings.HasSuffix(path, "/api/generate"):
		var resp GenerateResponse
		if err := json.Unmarshal(body, &resp); err == nil {
			return resp.PromptEvalCount, resp.EvalCount
		}
	case strings.HasSuffix(path, "/api/embed"):
		var resp EmbedResponse
		if err := json.Unmarshal(body, &resp); err == nil {
			// 嵌入接口没有输出 token
			return resp.PromptEvalCount, 0
		}
	}
	return 0, 0
}

// singleJoiningSlash 拼接路径并保证恰好一个斜杠
func singleJoiningSlash(a, b string) string {
	aslash := strings.HasSuffix(a, "/")
	bslash := strings.HasPrefix(b, "/")
	switch {
	case aslash && bslash:
		return a + b[1:]
	case !aslash && !bslash:
		return a + "/" + b
	}
	return a + b
}

// IsHopByHopHeader 判断是否为逐跳头，转发时需要剔除
func IsHopByHopHeader(key string) bool {
	_, exists := hopByHopHeaders[strings.ToLower(key)]
	return exists
}
