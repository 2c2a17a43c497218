// Package metrics 实现请求指标向外部指标服务的异步上报。
package metrics

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
)

// Data 上报给指标服务的单条请求指标
type Data struct {
	APIKey            string `json:"apiKey"`
	Model             string `json:"model"`
	InputTokenLength  int    `json:"inputTokenLength"`
	OutputTokenLength int    `json:"outputTokenLength"`
	RequestDurationMs int64  `json:"requestDurationMs"`
	Endpoint          string `json:"endpoint"`
}

// Reporter 指标服务客户端
type Reporter struct {
	url        string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
	requestID  func() string
}

// NewReporter 创建指标服务客户端
func NewReporter(url, apiKey string, httpClient *http.Client, requestID func() string, logger *slog.Logger) *Reporter {
	return &Reporter{
		url:        url,
		apiKey:     apiKey,
		httpClient: httpClient,
		logger:     logger,
		requestID:  requestID,
	}
}

// Report 上报一条指标
//
// 上报失败只记录日志，不向调用方传播；调用方通常在独立协程中调用。
func (r *Reporter) Report(ctx context.Context, data Data) {
	payload, err := json.Marshal(data)
	if err != nil {
		r.logger.Error("序列化指标失败", "error", err, "model", data.Model, "endpoint", data.Endpoint)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(payload))
	if err != nil {
		r.logger.Error("创建指标请求失败", "error", err, "endpoint", data.Endpoint)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", r.apiKey)
	req.Header.Set("X-Request-ID", r.requestID())

	resp, err := r.httpClient.Do(req)
	if err != nil {
		r.logger.Error("上报指标失败", "error", err, "endpoint", data.Endpoint)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		r.logger.Warn("指标服务返回非 OK 状态",
			"status_code", resp.StatusCode,
			"model", data.Model,
			"endpoint", data.Endpoint,
		)
	}
}

// Ping 检查指标服务是否可达
func (r *Reporter) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.url, nil)
	if err != nil {
		return fmt.Errorf("创建指标服务探测请求失败：%w", err)
	}
	req.Header.Set("X-API-Key", r.apiKey)
	req.Header.Set("X-Request-ID", r.requestID())

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("无法连接指标服务：%w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("指标服务返回状态 %d", resp.StatusCode)
	}
	return nil
}
