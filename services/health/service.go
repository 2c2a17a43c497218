// Package health 实现网关及其依赖服务的健康检查。
package health

import (
	"context"
	"log/slog"
	"time"
)

// 单项检查超时时间
const checkTimeout = 5 * time.Second

// Pinger 可被探测的依赖服务
type Pinger interface {
	Ping(ctx context.Context) error
}

// Status 单个依赖的健康状态
type Status struct {
	Healthy bool   `json:"healthy"`
	Error   string `json:"error,omitempty"`
}

// Report 健康检查结果
type Report struct {
	Healthy    bool   `json:"healthy"`
	Ollama     Status `json:"ollama"`
	Validation Status `json:"validation"`
	Metrics    Status `json:"metrics"`
}

// Service 健康检查服务
type Service struct {
	ollama     Pinger
	validation Pinger
	metrics    Pinger
	logger     *slog.Logger
}

// NewService 创建健康检查服务
func NewService(ollama, validation, metrics Pinger, logger *slog.Logger) *Service {
	return &Service{
		ollama:     ollama,
		validation: validation,
		metrics:    metrics,
		logger:     logger,
	}
}

// Check 依次探测所有依赖服务并汇总结果
func (s *Service) Check(ctx context.Context) *Report {
	report := &Report{
		Ollama:     s.check(ctx, "ollama", s.ollama),
		Validation: s.check(ctx, "validation", s.validation),
		Metrics:    s.check(ctx, "metrics", s.metrics),
	}
	report.Healthy = report.Ollama.Healthy && report.Validation.Healthy && report.Metrics.Healthy
	return report
}

func (s *Service) check(ctx context.Context, name string, p Pinger) Status {
	checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	if err := p.Ping(checkCtx); err != nil {
		s.logger.Warn("依赖服务不可达", "service", name, "error", err)
		return Status{Healthy: false, Error: err.Error()}
	}
	return Status{Healthy: true}
}
