package relay

import (
	"github.com/gofiber/fiber/v2"
)

// SetupRelayRoutes 配置转发相关路由
//
// 所有 Ollama API 路径都由同一个处理器透传
func SetupRelayRoutes(router fiber.Router, handler *Handler) {
	router.All("/*", handler.Relay)
}
