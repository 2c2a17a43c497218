package health

import (
	"github.com/gofiber/fiber/v2"
	"github.com/ollamagate/ollamagate/services/health"
)

// SetupHealthRoutes 配置健康检查路由
func SetupHealthRoutes(router fiber.Router, healthService *health.Service) {
	handler := New(healthService)
	router.Get("/health", handler.Check)
}
