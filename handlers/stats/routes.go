package stats

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/ollamagate/ollamagate/services/stats"
)

// SetupStatsRoutes 配置统计相关路由
func SetupStatsRoutes(router fiber.Router, statsService stats.ServiceInterface, logger *slog.Logger) {
	handler := New(statsService, logger.WithGroup("stats"))

	statsAPI := router.Group("/stats")
	statsAPI.Get("/overview", handler.Overview)
	statsAPI.Get("/realtime", handler.Realtime)
	statsAPI.Get("/requests", handler.Records)
}
