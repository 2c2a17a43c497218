package config

import (
	"flag"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
)

// Config 应用配置
type Config struct {
	// 服务器配置
	Port string
	Prod bool

	// 上游与外部服务配置
	OllamaURL     string
	ValidationURL string
	MetricsURL    string

	// API 密钥配置
	APIKeyHeader   string
	UpstreamAPIKey string
	UpstreamCert   string
	SkipTLSVerify  bool
	AdminToken     string

	// 启动检查配置
	SkipStartupCheck bool

	// 数据库配置
	DBType        string
	DBHost        string
	DBPort        string
	DBUser        string
	DBPass        string
	DBName        string
	DBSSLMode     string
	DBTLSConfig   string
	DBReplicaHost string
	DBReplicaPort string

	// 日志配置
	LogLevel string

	// User-Agent 配置
	UserAgent string
}

// LoadConfig 加载配置
//
// 优先级：命令行参数 > 环境变量 > .env 文件 > 默认值
func LoadConfig() *Config {
	// 开发环境下加载 .env 文件
	if os.Getenv("GO_ENV") != "production" {
		if err := godotenv.Load(); err != nil {
			slog.Debug("未找到 .env 文件", "error", err)
		}
	}

	// 从环境变量加载默认值
	env := LoadEnv()

	cfg := &Config{
		Port:             env.Port,
		Prod:             env.Prod,
		OllamaURL:        env.OllamaURL,
		ValidationURL:    env.ValidationURL,
		MetricsURL:       env.MetricsURL,
		APIKeyHeader:     env.APIKeyHeader,
		UpstreamAPIKey:   env.UpstreamAPIKey,
		UpstreamCert:     env.UpstreamCert,
		SkipTLSVerify:    env.SkipTLSVerify,
		AdminToken:       env.AdminToken,
		SkipStartupCheck: env.SkipStartupCheck,
		DBType:           env.DBType,
		DBHost:           env.DBHost,
		DBPort:           env.DBPort,
		DBUser:           env.DBUser,
		DBPass:           env.DBPass,
		DBName:           env.DBName,
		DBSSLMode:        env.DBSSLMode,
		DBTLSConfig:      env.DBTLSConfig,
		DBReplicaHost:    env.DBReplicaHost,
		DBReplicaPort:    env.DBReplicaPort,
		LogLevel:         env.LogLevel,
		UserAgent:        env.UserAgent,
	}

	// 从命令行参数加载配置
	cfg.loadFlags()

	return cfg
}

// loadFlags 从命令行参数加载配置
func (c *Config) loadFlags() {
	flag.StringVar(&c.Port, "port", c.Port, "监听端口")
	flag.BoolVar(&c.Prod, "prod", c.Prod, "在生产环境中启用 prefork")

	// 上游与外部服务参数
	flag.StringVar(&c.OllamaURL, "ollama-url", c.OllamaURL, "Ollama 服务地址")
	flag.StringVar(&c.ValidationURL, "validation-url", c.ValidationURL, "外部验证服务地址")
	flag.StringVar(&c.MetricsURL, "metrics-url", c.MetricsURL, "外部指标服务地址")

	// API 密钥参数
	flag.StringVar(&c.APIKeyHeader, "api-key-header", c.APIKeyHeader, "客户端 API 密钥请求头名称")
	flag.StringVar(&c.UpstreamAPIKey, "upstream-api-key", c.UpstreamAPIKey, "访问验证/指标服务时携带的 API 密钥")
	flag.StringVar(&c.UpstreamCert, "upstream-cert", c.UpstreamCert, "访问外部服务时使用的客户端证书路径")
	flag.BoolVar(&c.SkipTLSVerify, "skip-tls-verify", c.SkipTLSVerify, "跳过外部服务的 TLS 证书校验")
	flag.StringVar(&c.AdminToken, "admin-token", c.AdminToken, "管理 API Token，如果为空则不开放管理接口鉴权")

	// 启动检查参数
	flag.BoolVar(&c.SkipStartupCheck, "skip-startup-check", c.SkipStartupCheck, "跳过启动时的外部服务可达性检查")

	// 数据库相关参数
	flag.StringVar(&c.DBType, "db-type", c.DBType, "数据库类型 (sqlite, mysql, postgres)")
	flag.StringVar(&c.DBHost, "db-host", c.DBHost, "数据库主机地址")
	flag.StringVar(&c.DBPort, "db-port", c.DBPort, "数据库端口")
	flag.StringVar(&c.DBUser, "db-user", c.DBUser, "数据库用户名")
	flag.StringVar(&c.DBPass, "db-pass", c.DBPass, "数据库密码")
	flag.StringVar(&c.DBName, "db-name", c.DBName, "数据库名称")
	flag.StringVar(&c.DBSSLMode, "db-ssl-mode", c.DBSSLMode, "PostgreSQL SSL 模式 (disable, require, verify-ca, verify-full)")
	flag.StringVar(&c.DBTLSConfig, "db-tls-config", c.DBTLSConfig, "MySQL TLS 配置 (true, false, skip-verify, preferred)")
	flag.StringVar(&c.DBReplicaHost, "db-replica-host", c.DBReplicaHost, "只读副本主机地址，空则不启用读写分离")
	flag.StringVar(&c.DBReplicaPort, "db-replica-port", c.DBReplicaPort, "只读副本端口")

	// 日志等级参数
	flag.StringVar(&c.LogLevel, "log-level", c.LogLevel, "日志输出等级 (DEBUG, INFO, WARN, ERROR)")

	// User-Agent 参数
	flag.StringVar(&c.UserAgent, "user-agent", c.UserAgent, "转发请求时复写的 User-Agent，空则透传客户端 UA")

	flag.Parse()
}
