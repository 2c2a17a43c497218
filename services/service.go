// Package services 负责初始化并持有所有服务实例。
package services

import (
	"context"
	"log/slog"

	"github.com/ollamagate/ollamagate/config"
	"github.com/ollamagate/ollamagate/database"
	"github.com/ollamagate/ollamagate/services/auth"
	"github.com/ollamagate/ollamagate/services/external"
	"github.com/ollamagate/ollamagate/services/health"
	"github.com/ollamagate/ollamagate/services/metrics"
	"github.com/ollamagate/ollamagate/services/relay"
	"github.com/ollamagate/ollamagate/services/stats"
)

// Services 持有所有服务实例的结构体
type Services struct {
	RelayService   *relay.Service
	AuthService    *auth.Validator
	MetricsService *metrics.Reporter
	StatsService   stats.ServiceInterface
	HealthService  *health.Service
}

// NewServices 初始化所有服务并返回 Services 实例
//
// 参数：
//   - ctx: 上下文，用于服务的初始化
//   - logger: 日志记录器，传递给各服务
//   - cfg: 应用配置
func NewServices(ctx context.Context, logger *slog.Logger, cfg *config.Config) (*Services, error) {
	// 初始化实时采集器
	stats.InitCollector(logger.WithGroup("collector"))

	// 外部服务共用一个带 TLS 配置的 HTTP 客户端
	externalClient := external.NewClient(external.ClientOptions{
		SkipTLSVerify: cfg.SkipTLSVerify,
		CertFile:      cfg.UpstreamCert,
	}, logger.WithGroup("external"))

	// 初始化上游转发服务
	relayService, err := relay.NewService(cfg.OllamaURL, cfg.UserAgent, logger.WithGroup("relay"))
	if err != nil {
		return nil, err
	}

	// 初始化验证服务客户端
	authService := auth.NewValidator(
		cfg.ValidationURL,
		cfg.UpstreamAPIKey,
		externalClient,
		external.RequestID,
		logger.WithGroup("auth"),
	)

	// 初始化指标上报客户端
	metricsService := metrics.NewReporter(
		cfg.MetricsURL,
		cfg.UpstreamAPIKey,
		externalClient,
		external.RequestID,
		logger.WithGroup("metrics"),
	)

	// 初始化统计服务
	statsService := stats.NewService(database.DB, logger.WithGroup("stats"))

	// 初始化健康检查服务
	healthService := health.NewService(relayService, authService, metricsService, logger.WithGroup("health"))

	return &Services{
		RelayService:   relayService,
		AuthService:    authService,
		MetricsService: metricsService,
		StatsService:   statsService,
		HealthService:  healthService,
	}, nil
}
