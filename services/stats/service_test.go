package stats

import (
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/ollamagate/ollamagate/database/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestDB 创建内存数据库并迁移表结构
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + strings.ReplaceAll(t.Name(), "/", "_") + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(types.Types...))
	return db
}

func newTestRecord(success bool, model string, age time.Duration) *types.RequestRecord {
	return &types.RequestRecord{
		ID:           uuid.NewString(),
		Timestamp:    time.Now().Add(-age),
		APIKey:       "test-api-key",
		Model:        model,
		Endpoint:     "/api/generate",
		RequestType:  types.RequestTypeStream,
		InputTokens:  7,
		OutputTokens: 3,
		Duration:     1500,
		StatusCode:   200,
		Success:      success,
	}
}

func TestRecordAndOverview(t *testing.T) {
	svc := NewService(newTestDB(t), slog.Default())
	ctx := context.Background()

	require.NoError(t, svc.Record(ctx, newTestRecord(true, "gemma3:1b", time.Minute)))
	require.NoError(t, svc.Record(ctx, newTestRecord(true, "gemma3:1b", time.Minute)))
	require.NoError(t, svc.Record(ctx, newTestRecord(false, "llama3:8b", time.Minute)))

	overview, err := svc.GetOverview(ctx, 0)
	require.NoError(t, err)

	assert.Equal(t, int64(3), overview.TotalRequests)
	assert.InDelta(t, 2.0/3.0, overview.SuccessRate, 0.001)
	assert.Equal(t, int64(21), overview.InputTokens)
	assert.Equal(t, int64(9), overview.OutputTokens)
	assert.InDelta(t, 1500, overview.AvgDuration, 0.001)
}

func TestOverviewRespectsDuration(t *testing.T) {
	svc := NewService(newTestDB(t), slog.Default())
	ctx := context.Background()

	require.NoError(t, svc.Record(ctx, newTestRecord(true, "gemma3:1b", time.Minute)))
	require.NoError(t, svc.Record(ctx, newTestRecord(true, "gemma3:1b", 48*time.Hour)))

	overview, err := svc.GetOverview(ctx, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), overview.TotalRequests)
}

func TestListRecordsFilters(t *testing.T) {
	svc := NewService(newTestDB(t), slog.Default())
	ctx := context.Background()

	require.NoError(t, svc.Record(ctx, newTestRecord(true, "gemma3:1b", time.Minute)))
	require.NoError(t, svc.Record(ctx, newTestRecord(false, "gemma3:1b", time.Minute)))
	require.NoError(t, svc.Record(ctx, newTestRecord(true, "llama3:8b", time.Minute)))

	// 模型筛选
	model := "gemma3:1b"
	records, total, err := svc.ListRecords(ctx, ListRecordsOptions{Model: &model})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, records, 2)

	// 结果状态筛选
	success := false
	records, total, err = svc.ListRecords(ctx, ListRecordsOptions{Success: &success})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, records, 1)
	assert.Equal(t, "gemma3:1b", records[0].Model)
}

func TestListRecordsPagination(t *testing.T) {
	svc := NewService(newTestDB(t), slog.Default())
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, svc.Record(ctx, newTestRecord(true, "gemma3:1b", time.Duration(i)*time.Minute)))
	}

	records, total, err := svc.ListRecords(ctx, ListRecordsOptions{Page: 1, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	require.Len(t, records, 2)

	// 按时间倒序：第一页为最新记录
	assert.True(t, records[0].Timestamp.After(records[1].Timestamp))

	records, _, err = svc.ListRecords(ctx, ListRecordsOptions{Page: 3, PageSize: 2})
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestGetRealtime(t *testing.T) {
	InitCollector(slog.Default())
	svc := NewService(newTestDB(t), slog.Default())

	GetCollector().RecordRequest()
	GetCollector().IncrementConnection()

	realtime, err := svc.GetRealtime(context.Background())
	require.NoError(t, err)
	assert.GreaterOrEqual(t, realtime.RPM, int64(1))
	assert.GreaterOrEqual(t, realtime.ActiveConnections, int64(1))
}
