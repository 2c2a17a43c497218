// Package stats 实现请求记录的持久化与统计查询。
package stats

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ollamagate/ollamagate/database/types"
	"gorm.io/gorm"
)

// OverviewResponse 全局概览数据
type OverviewResponse struct {
	TotalRequests int64   `json:"total_requests"` // 总请求量
	SuccessRate   float64 `json:"success_rate"`   // 成功率
	AvgDuration   float64 `json:"avg_duration"`   // 平均用时 (微秒)
	InputTokens   int64   `json:"input_tokens"`   // 输入 token 总数
	OutputTokens  int64   `json:"output_tokens"`  // 输出 token 总数
}

// RealtimeResponse 实时数据
type RealtimeResponse struct {
	RPM               int64 `json:"rpm"`                // 每分钟请求数
	ActiveConnections int64 `json:"active_connections"` // 活动连接数
}

// ListRecordsOptions 请求记录列表的筛选选项
type ListRecordsOptions struct {
	// 时间范围筛选
	StartTime *time.Time `json:"start_time,omitempty"`
	EndTime   *time.Time `json:"end_time,omitempty"`

	// 结果状态筛选
	Success *bool `json:"success,omitempty"`

	// 请求类型筛选
	RequestType *string `json:"request_type,omitempty"`

	// 模型名称筛选
	Model *string `json:"model,omitempty"`

	// 分页参数
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
}

// ServiceInterface 统计服务接口
type ServiceInterface interface {
	// Record 持久化一条请求记录
	Record(ctx context.Context, record *types.RequestRecord) error

	// GetOverview 获取全局概览数据
	GetOverview(ctx context.Context, duration time.Duration) (*OverviewResponse, error)

	// GetRealtime 获取实时数据
	GetRealtime(ctx context.Context) (*RealtimeResponse, error)

	// ListRecords 获取请求记录列表
	ListRecords(ctx context.Context, opts ListRecordsOptions) ([]*types.RequestRecord, int64, error)
}

// service 是 ServiceInterface 的具体实现
type service struct {
	db     *gorm.DB
	logger *slog.Logger
}

// NewService 创建统计服务实例
func NewService(db *gorm.DB, logger *slog.Logger) ServiceInterface {
	return &service{db: db, logger: logger}
}

// Record 持久化一条请求记录
func (s *service) Record(ctx context.Context, record *types.RequestRecord) error {
	if err := s.db.WithContext(ctx).Create(record).Error; err != nil {
		return fmt.Errorf("写入请求记录失败：%w", err)
	}
	return nil
}

// GetOverview 实现获取全局概览数据的业务逻辑
func (s *service) GetOverview(ctx context.Context, duration time.Duration) (*OverviewResponse, error) {
	// 设置默认时间范围为 24 小时
	if duration == 0 {
		duration = 24 * time.Hour
	}
	startTime := time.Now().Add(-duration)

	base := s.db.WithContext(ctx).Model(&types.RequestRecord{}).
		Where("timestamp >= ?", startTime)

	var totalRequests int64
	if err := base.Session(&gorm.Session{}).Count(&totalRequests).Error; err != nil {
		return nil, fmt.Errorf("获取总请求数失败：%w", err)
	}

	var successRequests int64
	if err := base.Session(&gorm.Session{}).Where("success = ?", true).Count(&successRequests).Error; err != nil {
		return nil, fmt.Errorf("获取成功请求数失败：%w", err)
	}

	var successRate float64
	if totalRequests > 0 {
		successRate = float64(successRequests) / float64(totalRequests)
	}

	// 聚合耗时与 token 统计
	var agg struct {
		AvgDuration  float64
		InputTokens  int64
		OutputTokens int64
	}
	err := base.Session(&gorm.Session{}).
		Select("COALESCE(AVG(duration), 0) AS avg_duration, COALESCE(SUM(input_tokens), 0) AS input_tokens, COALESCE(SUM(output_tokens), 0) AS output_tokens").
		Scan(&agg).Error
	if err != nil {
		return nil, fmt.Errorf("获取聚合统计失败：%w", err)
	}

	return &OverviewResponse{
		TotalRequests: totalRequests,
		SuccessRate:   successRate,
		AvgDuration:   agg.AvgDuration,
		InputTokens:   agg.InputTokens,
		OutputTokens:  agg.OutputTokens,
	}, nil
}

// GetRealtime 实现获取实时数据的业务逻辑
func (s *service) GetRealtime(ctx context.Context) (*RealtimeResponse, error) {
	collector := GetCollector()
	return &RealtimeResponse{
		RPM:               collector.GetRPM(),
		ActiveConnections: collector.GetActiveConnections(),
	}, nil
}

// ListRecords 实现获取请求记录列表的业务逻辑
func (s *service) ListRecords(ctx context.Context, opts ListRecordsOptions) ([]*types.RequestRecord, int64, error) {
	query := s.db.WithContext(ctx).Model(&types.RequestRecord{})

	// 时间范围筛选
	if opts.StartTime != nil {
		query = query.Where("timestamp >= ?", *opts.StartTime)
	}
	if opts.EndTime != nil {
		query = query.Where("timestamp <= ?", *opts.EndTime)
	}

	// 结果状态筛选
	if opts.Success != nil {
		query = query.Where("success = ?", *opts.Success)
	}

	// 请求类型筛选
	if opts.RequestType != nil {
		query = query.Where("request_type = ?", *opts.RequestType)
	}

	// 模型名称筛选
	if opts.Model != nil {
		query = query.Where("model = ?", *opts.Model)
	}

	var count int64
	if err := query.Session(&gorm.Session{}).Count(&count).Error; err != nil {
		return nil, 0, fmt.Errorf("获取请求记录总数失败：%w", err)
	}

	// 分页参数兜底
	if opts.Page < 1 {
		opts.Page = 1
	}
	if opts.PageSize < 1 {
		opts.PageSize = 20
	}
	offset := (opts.Page - 1) * opts.PageSize

	var records []*types.RequestRecord
	err := query.Order("timestamp DESC").
		Offset(offset).
		Limit(opts.PageSize).
		Find(&records).Error
	if err != nil {
		return nil, 0, fmt.Errorf("获取请求记录列表失败：%w", err)
	}

	return records, count, nil
}
