package config

import "os"

// Env 环境变量配置
type Env struct {
	Port string
	Prod bool

	// 上游与外部服务配置
	OllamaURL     string
	ValidationURL string
	MetricsURL    string

	// API 密钥配置
	APIKeyHeader   string
	UpstreamAPIKey string // 访问验证/指标服务时携带的密钥
	UpstreamCert   string // 访问外部服务时使用的客户端证书路径
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
	DBSSLMode     string // PostgreSQL SSL 模式
	DBTLSConfig   string // MySQL TLS 配置
	DBReplicaHost string // 只读副本主机地址
	DBReplicaPort string // 只读副本端口

	LogLevel  string // 日志输出等级
	UserAgent string // 转发请求时复写的 User-Agent，空则透传
}

// LoadEnv 从环境变量加载配置
func LoadEnv() *Env {
	return &Env{
		Port:             getEnvOrDefault("PORT", ":8080"),
		Prod:             getEnvOrDefault("PROD", "") == "true",
		OllamaURL:        getEnvOrDefault("OLLAMA_URL", "http://localhost:11434"),
		ValidationURL:    getEnvOrDefault("VALIDATION_URL", "http://external-server.com/validate"),
		MetricsURL:       getEnvOrDefault("METRICS_URL", "http://external-server.com/log_metrics"),
		APIKeyHeader:     getEnvOrDefault("API_KEY_HEADER", "X-API-Key"),
		UpstreamAPIKey:   getEnvOrDefault("UPSTREAM_API_KEY", ""),
		UpstreamCert:     getEnvOrDefault("UPSTREAM_CERT", ""),
		SkipTLSVerify:    getEnvOrDefault("SKIP_TLS_VERIFY", "") == "true",
		AdminToken:       getEnvOrDefault("ADMIN_TOKEN", ""),
		SkipStartupCheck: getEnvOrDefault("SKIP_STARTUP_CHECK", "") == "true",
		DBType:           getEnvOrDefault("DB_TYPE", "sqlite"),
		DBHost:           getEnvOrDefault("DB_HOST", ""),
		DBPort:           getEnvOrDefault("DB_PORT", ""),
		DBUser:           getEnvOrDefault("DB_USER", ""),
		DBPass:           getEnvOrDefault("DB_PASS", ""),
		DBName:           getEnvOrDefault("DB_NAME", ""),
		DBSSLMode:        getEnvOrDefault("DB_SSL_MODE", ""),
		DBTLSConfig:      getEnvOrDefault("DB_TLS_CONFIG", ""),
		DBReplicaHost:    getEnvOrDefault("DB_REPLICA_HOST", ""),
		DBReplicaPort:    getEnvOrDefault("DB_REPLICA_PORT", ""),
		LogLevel:         getEnvOrDefault("LOG_LEVEL", "INFO"),
		UserAgent:        getEnvOrDefault("USER_AGENT", ""),
	}
}

// getEnvOrDefault 获取环境变量，如果不存在则返回默认值
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
