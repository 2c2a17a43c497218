package types

import (
	"time"
)

// 请求类型常量
const (
	RequestTypeStream    = "stream"
	RequestTypeNonStream = "non-stream"
)

// RequestRecord 表示经网关转发的单个请求的记录
type RequestRecord struct {
	ID string `gorm:"primaryKey" json:"id"` // 唯一标识符

	// 请求基本信息
	Timestamp   time.Time `gorm:"index" json:"timestamp"`    // 请求时间
	APIKey      string    `gorm:"index" json:"api_key"`      // 客户端 API 密钥
	Model       string    `gorm:"index" json:"model"`        // 模型名称
	Endpoint    string    `gorm:"index" json:"endpoint"`     // 请求路径
	RequestType string    `gorm:"index" json:"request_type"` // 请求类型：stream 或 non-stream
	ClientIP    string    `json:"client_ip"`                 // 客户端地址
	UserAgent   string    `json:"user_agent"`                // 客户端 User-Agent

	// Token 统计
	InputTokens  int `json:"input_tokens"`  // 输入 token 数
	OutputTokens int `json:"output_tokens"` // 输出 token 数

	// 耗时与结果状态
	Duration   int64   `json:"duration"`             // 总用时 (微秒)
	StatusCode int     `json:"status_code"`          // 上游响应状态码
	Success    bool    `gorm:"index" json:"success"` // 是否成功
	ErrorMsg   *string `json:"error_msg,omitempty"`  // 错误信息（失败时）

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
