package server

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/ollamagate/ollamagate/config"
	"github.com/ollamagate/ollamagate/database"
	"github.com/ollamagate/ollamagate/logger"
	"github.com/ollamagate/ollamagate/router"
	"github.com/ollamagate/ollamagate/services"
	slogfiber "github.com/samber/slog-fiber"
)

// 启动时外部服务检查的超时时间
const startupCheckTimeout = 10 * time.Second

// Run 启动服务器
func Run(cfg *config.Config) {
	// 初始化日志记录器
	appLogger, fileHandler := logger.InitLogger(cfg.LogLevel)
	if fileHandler != nil {
		defer fileHandler.Close()
	}

	// 创建日志组
	fiberLogger := appLogger.WithGroup("fiber")
	gormLogger := appLogger.WithGroup("gorm")
	routerLogger := appLogger.WithGroup("router")

	slog.SetDefault(appLogger)

	// 连接数据库
	db, err := database.Connect(database.Options{
		Type:        cfg.DBType,
		Host:        cfg.DBHost,
		Port:        cfg.DBPort,
		User:        cfg.DBUser,
		Password:    cfg.DBPass,
		Name:        cfg.DBName,
		SSLMode:     cfg.DBSSLMode,
		TLSConfig:   cfg.DBTLSConfig,
		ReplicaHost: cfg.DBReplicaHost,
		ReplicaPort: cfg.DBReplicaPort,
	}, gormLogger)
	if err != nil {
		appLogger.Error("数据库连接失败", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// 初始化服务
	appContext := context.Background()
	svcs, err := services.NewServices(appContext, appLogger.WithGroup("services"), cfg)
	if err != nil {
		appLogger.Error("服务初始化失败", "error", err)
		os.Exit(1)
	}

	// 启动前检查外部服务可达性
	if !cfg.SkipStartupCheck {
		checkCtx, cancel := context.WithTimeout(appContext, startupCheckTimeout)
		report := svcs.HealthService.Check(checkCtx)
		cancel()
		if !report.Healthy {
			appLogger.Error("外部服务检查失败",
				"ollama", report.Ollama,
				"validation", report.Validation,
				"metrics", report.Metrics,
			)
			os.Exit(1)
		}
		appLogger.Info("外部服务检查通过")
	}

	// 创建 fiber 应用
	fiberApp := fiber.New(fiber.Config{
		Prefork: cfg.Prod,
	})

	// 中间件
	fiberApp.Use(recover.New(recover.Config{
		EnableStackTrace: true,
		StackTraceHandler: func(c *fiber.Ctx, e any) {
			stack := debug.Stack()
			// 将堆栈信息按行分割，以数组形式记录，提高 JSON 日志可读性
			stackLines := strings.Split(strings.TrimSpace(string(stack)), "\n")
			fiberLogger.Error("发生 panic",
				"panic", e,
				"path", c.Path(),
				"method", c.Method(),
				"stack", stackLines,
			)
		},
	}))
	fiberApp.Use(slogfiber.NewWithConfig(fiberLogger, slogfiber.Config{
		Filters: []slogfiber.Filter{
			// 忽略转发路径下的请求，避免干扰流式传输
			slogfiber.IgnorePathContains("/api/chat"),
			slogfiber.IgnorePathContains("/api/generate"),
		},
	}))

	// 设置路由
	routerConfig := router.Config{
		APIKeyHeader: cfg.APIKeyHeader,
		AdminToken:   cfg.AdminToken,
	}
	if err := router.SetupRoutes(fiberApp, svcs, routerConfig, routerLogger); err != nil {
		appLogger.Error("路由设置失败", "error", err)
		os.Exit(1)
	}

	// 启动 Web 服务
	go func() {
		if err := fiberApp.Listen(cfg.Port); err != nil {
			fiberLogger.Error("无法启动 Web 服务", "error", err)
			os.Exit(1)
		}
	}()

	appLogger.Info("网关已启动",
		"port", cfg.Port,
		"ollama_url", cfg.OllamaURL,
		"api_key_header", cfg.APIKeyHeader,
	)

	// 等待关闭信号
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	<-c
	appLogger.Info("收到关闭信号，正在关闭应用...")

	// 关闭 Web 服务
	if err := fiberApp.Shutdown(); err != nil {
		fiberLogger.Error("关闭 Web 服务失败", "error", err)
	} else {
		fiberLogger.Info("Web 服务已成功关闭")
	}

	// 关闭数据库连接
	if err := db.Close(); err != nil {
		appLogger.Error("关闭数据库连接失败", "error", err)
	} else {
		appLogger.Info("数据库连接已成功关闭")
	}
	appLogger.Info("应用已成功关闭")
}
