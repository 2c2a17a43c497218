package relay

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/ollamagate/ollamagate/database/types"
	"github.com/ollamagate/ollamagate/services/auth"
	"github.com/ollamagate/ollamagate/services/metrics"
	relayService "github.com/ollamagate/ollamagate/services/relay"
	"github.com/ollamagate/ollamagate/services/stats"
	"github.com/valyala/fasthttp"
)

const (
	// 非流式响应体大小上限
	maxResponseBodyBytes = 20 << 20

	// 流式结束后持久化记录与上报指标的超时时间
	finalizeTimeout = 10 * time.Second
)

// Handler 负责处理转发请求
type Handler struct {
	relay        *relayService.Service
	auth         *auth.Validator
	metrics      *metrics.Reporter
	stats        stats.ServiceInterface
	apiKeyHeader string
	logger       *slog.Logger
}

// New 创建转发处理器实例
func New(relay *relayService.Service, authValidator *auth.Validator, reporter *metrics.Reporter, statsService stats.ServiceInterface, apiKeyHeader string, logger *slog.Logger) *Handler {
	return &Handler{
		relay:        relay,
		auth:         authValidator,
		metrics:      reporter,
		stats:        statsService,
		apiKeyHeader: apiKeyHeader,
		logger:       logger,
	}
}

// Relay 处理发往上游 Ollama 的请求
//
// 流程：提取 API 密钥 → 外部验证 → 转发 → 透传响应（流式或非流式）→
// 持久化请求记录并异步上报指标。
func (h *Handler) Relay(c *fiber.Ctx) error {
	startTime := time.Now()
	endpoint := c.Path()

	logger := h.logger.With(
		"endpoint", endpoint,
		"method", c.Method(),
		"user_agent", c.Get(fiber.HeaderUserAgent),
	)

	// 提取 API 密钥
	apiKey := c.Get(h.apiKeyHeader)
	if apiKey == "" {
		logger.Warn("请求缺少 API 密钥")
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "缺少 API 密钥",
		})
	}

	// fasthttp 会复用缓冲区，请求体需要复制后才能跨越流式写入边界使用
	body := append([]byte(nil), c.Body()...)
	model := relayService.ExtractModel(endpoint, body)
	logger = logger.With("model", model)

	// 外部验证
	details := auth.RequestDetails{
		APIKey:    apiKey,
		IPAddress: c.IP(),
		UserAgent: c.Get(fiber.HeaderUserAgent),
		Headers:   firstHeaderValues(c.GetReqHeaders()),
		Model:     model,
		Endpoint:  endpoint,
	}
	validation, err := h.auth.Validate(c.Context(), details)
	if err != nil {
		logger.Error("验证请求失败", "error", err)
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "请求验证失败",
		})
	}
	if !validation.Allowed() {
		logger.Warn("请求被验证服务拒绝", "rate_limited", validation.RateLimited)
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "无效的 API 密钥",
		})
	}

	// 转发到上游
	upstreamResp, err := h.relay.Do(c.Context(), c.Method(), endpoint, string(c.Request().URI().QueryString()), requestHeaders(c), body)
	if err != nil {
		logger.Error("上游请求失败", "error", err)
		h.finalize(record{
			apiKey:      apiKey,
			model:       model,
			endpoint:    endpoint,
			clientIP:    details.IPAddress,
			userAgent:   details.UserAgent,
			requestType: types.RequestTypeNonStream,
			startTime:   startTime,
			statusCode:  fiber.StatusBadGateway,
			errMsg:      err.Error(),
		})
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "上游请求失败",
		})
	}

	// 复制响应头，剔除逐跳头
	for key, values := range upstreamResp.Header {
		if relayService.IsHopByHopHeader(key) {
			continue
		}
		for _, value := range values {
			c.Append(key, value)
		}
	}
	c.Status(upstreamResp.StatusCode)

	// 仅当请求要求流式且上游成功时走流式透传
	if relayService.IsStream(endpoint, body) && upstreamResp.StatusCode == http.StatusOK {
		return h.relayStream(c, upstreamResp, record{
			apiKey:      apiKey,
			model:       model,
			endpoint:    endpoint,
			clientIP:    details.IPAddress,
			userAgent:   details.UserAgent,
			requestType: types.RequestTypeStream,
			startTime:   startTime,
			statusCode:  upstreamResp.StatusCode,
		}, logger)
	}

	return h.relayBuffered(c, upstreamResp, record{
		apiKey:      apiKey,
		model:       model,
		endpoint:    endpoint,
		clientIP:    details.IPAddress,
		userAgent:   details.UserAgent,
		requestType: types.RequestTypeNonStream,
		startTime:   startTime,
		statusCode:  upstreamResp.StatusCode,
	}, logger)
}

// relayBuffered 读取完整上游响应后一次性返回
func (h *Handler) relayBuffered(c *fiber.Ctx, upstreamResp *http.Response, rec record, logger *slog.Logger) error {
	defer upstreamResp.Body.Close()

	limitedBody := io.LimitReader(upstreamResp.Body, maxResponseBodyBytes+1)
	bodyBytes, err := io.ReadAll(limitedBody)
	if err != nil {
		logger.Error("读取上游响应失败", "error", err)
		rec.statusCode = fiber.StatusBadGateway
		rec.errMsg = err.Error()
		h.finalize(rec)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "读取上游响应失败",
		})
	}
	if len(bodyBytes) > maxResponseBodyBytes {
		logger.Warn("上游响应过大", "size", len(bodyBytes))
		rec.statusCode = fiber.StatusBadGateway
		rec.errMsg = "上游响应过大"
		h.finalize(rec)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "上游响应过大，已超过限制",
		})
	}

	rec.inputTokens, rec.outputTokens = relayService.TokenCounts(rec.endpoint, bodyBytes)
	h.finalize(rec)

	return c.Send(bodyBytes)
}

// relayStream 将上游的 NDJSON 流逐行透传给客户端
//
// 透传过程中保留最后一行，流结束后从中解析 token 统计。
// 活动连接数在流结束时由本方法减少（见路由中间件的流式豁免）。
func (h *Handler) relayStream(c *fiber.Ctx, upstreamResp *http.Response, rec record, logger *slog.Logger) error {
	// 统一流式响应的 Content-Type，路由中间件据此豁免连接数递减
	c.Set(fiber.HeaderContentType, "application/x-ndjson")

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer upstreamResp.Body.Close()
		defer stats.GetCollector().DecrementConnection()

		var lastLine []byte
		scanner := bufio.NewScanner(upstreamResp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

		for scanner.Scan() {
			line := scanner.Bytes()
			if trimmed := bytes.TrimSpace(line); len(trimmed) > 0 {
				lastLine = append(lastLine[:0], trimmed...)
			}

			if _, err := w.Write(line); err != nil {
				logger.Error("写入流式响应失败", "error", err)
				rec.errMsg = err.Error()
				break
			}
			if _, err := w.Write([]byte("\n")); err != nil {
				rec.errMsg = err.Error()
				break
			}
			if err := w.Flush(); err != nil {
				// 客户端可能已断开连接
				logger.Warn("刷新流式响应失败", "error", err)
				rec.errMsg = err.Error()
				break
			}
		}
		if err := scanner.Err(); err != nil {
			logger.Error("读取上游流失败", "error", err)
			rec.errMsg = err.Error()
		}

		rec.inputTokens, rec.outputTokens = relayService.TokenCounts(rec.endpoint, lastLine)
		h.finalize(rec)
	}))

	return nil
}

// record 聚合单次请求的记录信息
type record struct {
	apiKey       string
	model        string
	endpoint     string
	clientIP     string
	userAgent    string
	requestType  string
	startTime    time.Time
	statusCode   int
	inputTokens  int
	outputTokens int
	errMsg       string
}

// finalize 持久化请求记录并异步上报指标
//
// 流式响应结束时请求上下文已失效，这里使用独立的超时上下文。
func (h *Handler) finalize(rec record) {
	duration := time.Since(rec.startTime)

	ctx, cancel := context.WithTimeout(context.Background(), finalizeTimeout)

	var errMsg *string
	if rec.errMsg != "" {
		errMsg = &rec.errMsg
	}

	dbRecord := &types.RequestRecord{
		ID:           uuid.NewString(),
		Timestamp:    rec.startTime,
		APIKey:       rec.apiKey,
		Model:        rec.model,
		Endpoint:     rec.endpoint,
		RequestType:  rec.requestType,
		ClientIP:     rec.clientIP,
		UserAgent:    rec.userAgent,
		InputTokens:  rec.inputTokens,
		OutputTokens: rec.outputTokens,
		Duration:     duration.Microseconds(),
		StatusCode:   rec.statusCode,
		Success:      rec.errMsg == "" && rec.statusCode < 400,
		ErrorMsg:     errMsg,
	}
	if err := h.stats.Record(ctx, dbRecord); err != nil {
		h.logger.Error("持久化请求记录失败", "error", err, "endpoint", rec.endpoint)
	}

	// 指标上报不阻塞请求路径
	go func() {
		defer cancel()
		h.metrics.Report(ctx, metrics.Data{
			APIKey:            rec.apiKey,
			Model:             rec.model,
			InputTokenLength:  rec.inputTokens,
			OutputTokenLength: rec.outputTokens,
			RequestDurationMs: duration.Milliseconds(),
			Endpoint:          rec.endpoint,
		})
	}()
}

// firstHeaderValues 将请求头压平为单值映射
func firstHeaderValues(headers map[string][]string) map[string]string {
	result := make(map[string]string, len(headers))
	for key, values := range headers {
		if len(values) > 0 {
			result[key] = values[0]
		}
	}
	return result
}

// requestHeaders 将 fiber 请求头转换为 http.Header
func requestHeaders(c *fiber.Ctx) http.Header {
	header := make(http.Header)
	c.Request().Header.VisitAll(func(key, value []byte) {
		header.Add(string(key), string(value))
	})
	return header
}
