package stats

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newTestCollector() *Collector {
	return &Collector{
		requestCounts: make([]int64, 60),
		currentSecond: time.Now().Unix(),
		logger:        slog.Default(),
	}
}

func TestCollectorRPM(t *testing.T) {
	c := newTestCollector()

	assert.Equal(t, int64(0), c.GetRPM())

	c.RecordRequest()
	c.RecordRequest()
	c.RecordRequest()

	assert.Equal(t, int64(3), c.GetRPM())
}

func TestCollectorConnections(t *testing.T) {
	c := newTestCollector()

	assert.Equal(t, int64(0), c.GetActiveConnections())

	c.IncrementConnection()
	c.IncrementConnection()
	assert.Equal(t, int64(2), c.GetActiveConnections())

	c.DecrementConnection()
	assert.Equal(t, int64(1), c.GetActiveConnections())
}

func TestCollectorStaleWindow(t *testing.T) {
	c := newTestCollector()

	// 模拟 2 分钟前的请求：窗口外的数据不计入 RPM
	c.currentSecond = time.Now().Unix() - 120
	c.requestCounts[c.currentSecond%60] = 10

	assert.Equal(t, int64(0), c.GetRPM())
}

func TestGetCollectorLazyInit(t *testing.T) {
	collector := GetCollector()
	assert.NotNil(t, collector)
	// 再次获取返回同一实例
	assert.Same(t, collector, GetCollector())
}
