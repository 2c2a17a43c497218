package health

import (
	"github.com/gofiber/fiber/v2"
	"github.com/ollamagate/ollamagate/services/health"
)

// Handler 健康检查接口处理器
type Handler struct {
	health *health.Service
}

// New 创建健康检查接口处理器
func New(healthService *health.Service) *Handler {
	return &Handler{health: healthService}
}

// Check 返回网关及其依赖服务的健康状态
//
// 任一依赖不可达时返回 503
func (h *Handler) Check(c *fiber.Ctx) error {
	report := h.health.Check(c.Context())

	status := fiber.StatusOK
	if !report.Healthy {
		status = fiber.StatusServiceUnavailable
	}
	return c.Status(status).JSON(report)
}
