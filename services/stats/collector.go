package stats

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Collector 实时数据采集器
//
// 在请求入口处采集请求速率和活动连接数，避免从数据库查询实时数据
type Collector struct {
	// 请求计数器 - 使用滑动窗口记录每秒的请求数
	requestCounts []int64
	currentSecond int64
	mu            sync.RWMutex

	// 活动连接计数器
	activeConnections int64

	logger *slog.Logger
}

// globalCollector 全局采集器实例
var globalCollector *Collector
var once sync.Once

// InitCollector 初始化全局采集器
func InitCollector(logger *slog.Logger) {
	globalCollector = &Collector{
		requestCounts: make([]int64, 60), // 保存过去 60 秒的数据
		currentSecond: time.Now().Unix(),
		logger:        logger,
	}
}

// GetCollector 获取全局采集器实例
func GetCollector() *Collector {
	once.Do(func() {
		if globalCollector == nil {
			logger := slog.Default()
			logger.Warn("采集器未预初始化，使用默认日志记录器进行延迟初始化")
			InitCollector(logger)
		}
	})
	return globalCollector
}

// RecordRequest 记录一次请求
func (c *Collector) RecordRequest() {
	now := time.Now().Unix()
	c.mu.Lock()
	defer c.mu.Unlock()

	// 计算当前秒在数组中的索引
	index := now % 60

	// 如果进入了新的秒，清空上次更新到现在之间的旧数据
	if now != c.currentSecond {
		for i := c.currentSecond + 1; i <= now && i-c.currentSecond <= 60; i++ {
			c.requestCounts[i%60] = 0
		}
		c.currentSecond = now
	}

	c.requestCounts[index]++
}

// IncrementConnection 增加活动连接数
func (c *Collector) IncrementConnection() {
	atomic.AddInt64(&c.activeConnections, 1)
}

// DecrementConnection 减少活动连接数
func (c *Collector) DecrementConnection() {
	atomic.AddInt64(&c.activeConnections, -1)
}

// GetRPM 获取过去 1 分钟的请求数
func (c *Collector) GetRPM() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	now := time.Now().Unix()
	var total int64

	// 只统计仍在窗口内的秒
	for i := int64(0); i < 60; i++ {
		secondTimestamp := now - i
		if secondTimestamp > c.currentSecond {
			continue
		}
		if c.currentSecond-secondTimestamp >= 60 {
			break
		}
		total += c.requestCounts[secondTimestamp%60]
	}

	return total
}

// GetActiveConnections 获取当前活动连接数
func (c *Collector) GetActiveConnections() int64 {
	return atomic.LoadInt64(&c.activeConnections)
}
