// Package auth 实现基于外部验证服务的 API 密钥校验。
package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
)

// RequestDetails 发送给验证服务的请求详情
type RequestDetails struct {
	APIKey    string            `json:"apiKey"`
	IPAddress string            `json:"ipAddress"`
	UserAgent string            `json:"userAgent"`
	Headers   map[string]string `json:"headers"`
	Model     string            `json:"model"`
	Endpoint  string            `json:"endpoint"`
}

// ValidationResponse 验证服务的响应
type ValidationResponse struct {
	Valid       bool `json:"valid"`
	RateLimited bool `json:"rateLimited"`
}

// Allowed 判断请求是否放行
func (r *ValidationResponse) Allowed() bool {
	return r.Valid && !r.RateLimited
}

// Validator 外部验证服务客户端
type Validator struct {
	url        string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
	requestID  func() string
}

// NewValidator 创建验证服务客户端
//
// 参数：
//   - url: 验证服务地址
//   - apiKey: 访问验证服务时携带的 API 密钥
//   - httpClient: 带 TLS 配置的 HTTP 客户端
//   - requestID: X-Request-ID 生成函数
//   - logger: 日志记录器
func NewValidator(url, apiKey string, httpClient *http.Client, requestID func() string, logger *slog.Logger) *Validator {
	return &Validator{
		url:        url,
		apiKey:     apiKey,
		httpClient: httpClient,
		logger:     logger,
		requestID:  requestID,
	}
}

// Validate 向验证服务提交请求详情并返回验证结果
//
// 任何传输或解析失败都返回错误，调用方应将错误视为拒绝。
func (v *Validator) Validate(ctx context.Context, details RequestDetails) (*ValidationResponse, error) {
	payload, err := json.Marshal(details)
	if err != nil {
		return nil, fmt.Errorf("序列化验证请求失败：%w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("创建验证请求失败：%w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", v.apiKey)
	req.Header.Set("X-Request-ID", v.requestID())

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("请求验证服务失败：%w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("验证服务返回状态 %d", resp.StatusCode)
	}

	var result ValidationResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("解析验证响应失败：%w", err)
	}

	return &result, nil
}

// Ping 检查验证服务是否可达
func (v *Validator) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.url, nil)
	if err != nil {
		return fmt.Errorf("创建验证服务探测请求失败：%w", err)
	}
	req.Header.Set("X-API-Key", v.apiKey)
	req.Header.Set("X-Request-ID", v.requestID())

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("无法连接验证服务：%w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("验证服务返回状态 %d", resp.StatusCode)
	}
	return nil
}
