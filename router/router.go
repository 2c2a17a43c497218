package router

import (
	"crypto/subtle"
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	healthHandler "github.com/ollamagate/ollamagate/handlers/health"
	relayHandler "github.com/ollamagate/ollamagate/handlers/relay"
	statsHandler "github.com/ollamagate/ollamagate/handlers/stats"
	"github.com/ollamagate/ollamagate/services"
	statsService "github.com/ollamagate/ollamagate/services/stats"
)

// Config 路由配置
type Config struct {
	APIKeyHeader string
	AdminToken   string
}

// SetupRoutes 配置 API 路由
//
// /api/* 为业务转发接口，由外部验证服务鉴权；
// /admin/* 为管理接口，由本地管理 Token 鉴权。
func SetupRoutes(web *fiber.App, svcs *services.Services, config Config, logger *slog.Logger) error {
	web.Use(cors.New())

	// 业务转发接口
	relayAPI := web.Group("/api")
	relayAPI.Use(createStatsCollectorMiddleware())

	handler := relayHandler.New(
		svcs.RelayService,
		svcs.AuthService,
		svcs.MetricsService,
		svcs.StatsService,
		config.APIKeyHeader,
		logger.WithGroup("relay"),
	)
	relayHandler.SetupRelayRoutes(relayAPI, handler)

	// 管理接口
	adminAPI := web.Group("/admin")
	if config.AdminToken != "" {
		adminAPI.Use(createAdminAuthMiddleware(config.AdminToken))
	}

	adminAPI.Get("/ping", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"message": "pong",
		})
	})

	statsHandler.SetupStatsRoutes(adminAPI, svcs.StatsService, logger)
	healthHandler.SetupHealthRoutes(adminAPI, svcs.HealthService)

	return nil
}

// createAdminAuthMiddleware 创建管理接口身份验证中间件
func createAdminAuthMiddleware(validToken string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		// 获取 Authorization 头
		authHeader := c.Get(fiber.HeaderAuthorization)
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "缺少 Authorization 头",
			})
		}

		// 验证 Bearer token 格式
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Authorization 头格式无效，应为：Bearer <token>",
			})
		}

		// 验证 token
		token := parts[1]
		if subtle.ConstantTimeCompare([]byte(token), []byte(validToken)) != 1 {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "无效的管理 token",
			})
		}

		return c.Next()
	}
}

// createStatsCollectorMiddleware 创建统计数据采集中间件
//
// 该中间件用于采集业务接口的请求数据和活动连接数
//
// 注意：
//   - 对于非流式响应，在请求完成后自动减少连接数
//   - 对于流式响应（NDJSON），连接数由流式处理器在流结束时减少，以确保统计准确性
func createStatsCollectorMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		collector := statsService.GetCollector()

		// 记录请求
		collector.RecordRequest()

		// 增加活动连接数
		collector.IncrementConnection()

		// 对于非流式响应，请求完成后减少活动连接数；
		// 流式响应的连接数将在流结束时由流式处理器减少
		defer func() {
			contentType := string(c.Response().Header.Peek(fiber.HeaderContentType))
			if !strings.Contains(contentType, "application/x-ndjson") {
				collector.DecrementConnection()
			}
		}()

		return c.Next()
	}
}
