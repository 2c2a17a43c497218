package stats

import (
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/ollamagate/ollamagate/services/stats"
)

// Handler 统计接口处理器
type Handler struct {
	stats  stats.ServiceInterface
	logger *slog.Logger
}

// New 创建统计接口处理器
func New(statsService stats.ServiceInterface, logger *slog.Logger) *Handler {
	return &Handler{
		stats:  statsService,
		logger: logger,
	}
}

// Overview 返回指定时间范围内的全局概览数据
//
// 查询参数 duration 接受 Go 时长格式（如 24h、30m），默认 24h。
func (h *Handler) Overview(c *fiber.Ctx) error {
	var duration time.Duration
	if raw := c.Query("duration"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "无效的 duration 参数",
			})
		}
		duration = parsed
	}

	overview, err := h.stats.GetOverview(c.Context(), duration)
	if err != nil {
		h.logger.Error("获取概览数据失败", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "获取概览数据失败",
		})
	}

	return c.JSON(overview)
}

// Realtime 返回实时数据（RPM 与活动连接数）
func (h *Handler) Realtime(c *fiber.Ctx) error {
	realtime, err := h.stats.GetRealtime(c.Context())
	if err != nil {
		h.logger.Error("获取实时数据失败", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "获取实时数据失败",
		})
	}

	return c.JSON(realtime)
}

// Records 返回分页的请求记录列表
func (h *Handler) Records(c *fiber.Ctx) error {
	opts := stats.ListRecordsOptions{
		Page:     c.QueryInt("page", 1),
		PageSize: c.QueryInt("page_size", 20),
	}

	if raw := c.Query("success"); raw != "" {
		success := raw == "true"
		opts.Success = &success
	}
	if raw := c.Query("request_type"); raw != "" {
		opts.RequestType = &raw
	}
	if raw := c.Query("model"); raw != "" {
		opts.Model = &raw
	}
	if raw := c.Query("start_time"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "无效的 start_time 参数",
			})
		}
		opts.StartTime = &t
	}
	if raw := c.Query("end_time"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "无效的 end_time 参数",
			})
		}
		opts.EndTime = &t
	}

	records, total, err := h.stats.ListRecords(c.Context(), opts)
	if err != nil {
		h.logger.Error("获取请求记录失败", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "获取请求记录失败",
		})
	}

	return c.JSON(fiber.Map{
		"total":   total,
		"records": records,
	})
}
