// Package external 提供访问外部验证/指标服务的 HTTP 客户端构造。
package external

import (
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// 外部服务请求超时时间
const requestTimeout = 10 * time.Second

// ClientOptions 外部服务客户端选项
type ClientOptions struct {
	// SkipTLSVerify 跳过 TLS 证书校验
	SkipTLSVerify bool
	// CertFile 客户端证书路径（证书与私钥合并在同一文件中）
	CertFile string
}

// NewClient 创建带 TLS 配置的外部服务 HTTP 客户端
func NewClient(opts ClientOptions, logger *slog.Logger) *http.Client {
	transport := &http.Transport{
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: opts.SkipTLSVerify,
		},
	}

	if opts.CertFile != "" {
		cert, err := tls.LoadX509KeyPair(opts.CertFile, opts.CertFile)
		if err != nil {
			logger.Warn("加载客户端证书失败", "error", err, "cert", opts.CertFile)
		} else {
			transport.TLSClientConfig.Certificates = []tls.Certificate{cert}
		}
	}

	return &http.Client{
		Transport: transport,
		Timeout:   requestTimeout,
	}
}

// RequestID 生成用于 X-Request-ID 头的请求标识
func RequestID() string {
	return fmt.Sprintf("%d", time.Now().UnixNano())
}
