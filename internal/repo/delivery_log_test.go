package repo

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/go-redis/redismock/v8"
	"github.com/richardliu001/hotel-sync/internal/logger"
	"github.com/richardliu001/hotel-sync/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.DeliveryLog{}))
	return db
}

func TestRecord_InsertsAndMirrors(t *testing.T) {
	db := newTestDB(t)
	rdb, mock := redismock.NewClientMock()
	r := NewDeliveryLogRepository(db, rdb, 0, must(logger.NewLogger("error", "test")))
	ctx := context.Background()

	ts := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	row := &model.DeliveryLog{
		EventID:        "evt-1",
		EventType:      "checkin",
		SourceSystem:   "hotel-pms",
		TargetSystems:  []string{"hotel-pms", "hotel-member"},
		DeliveryStatus: model.DeliverySuccess,
		DeliveryTimeMs: 4,
		Stream:         "hotel-events",
		DeliveryID:     "1-0",
		Timestamp:      ts,
	}
	mock.ExpectHSet(MirrorKey("evt-1"), MirrorFields(row)...).SetVal(11)
	mock.ExpectExpire(MirrorKey("evt-1"), DefaultRetention).SetVal(true)

	require.NoError(t, r.Record(ctx, row))
	assert.NoError(t, mock.ExpectationsWereMet())
	assert.Equal(t, ts.Add(DefaultRetention), row.ExpiresAt)

	rows, err := r.ListByEvent(ctx, "evt-1")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, []string{"hotel-pms", "hotel-member"}, rows[0].TargetSystems)
	assert.Equal(t, model.DeliverySuccess, rows[0].DeliveryStatus)
}

func TestRecord_NoMirror(t *testing.T) {
	db := newTestDB(t)
	r := NewDeliveryLogRepository(db, nil, time.Hour, must(logger.NewLogger("error", "test")))
	msg := "broker down"

	err := r.Record(context.Background(), &model.DeliveryLog{
		EventID: "evt-2", EventType: "room", SourceSystem: "hotel-pms",
		DeliveryStatus: model.DeliveryFailed, ErrorMessage: &msg,
	})
	require.NoError(t, err)

	rows, err := r.ListByEvent(context.Background(), "evt-2")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.NotNil(t, rows[0].ErrorMessage)
	assert.Equal(t, "broker down", *rows[0].ErrorMessage)
}

func TestPurgeExpired(t *testing.T) {
	db := newTestDB(t)
	r := NewDeliveryLogRepository(db, nil, time.Hour, must(logger.NewLogger("error", "test")))
	ctx := context.Background()
	now := time.Now()

	old := &model.DeliveryLog{EventID: "old", EventType: "room", SourceSystem: "s",
		DeliveryStatus: model.DeliverySuccess, Timestamp: now.Add(-2 * time.Hour)}
	fresh := &model.DeliveryLog{EventID: "fresh", EventType: "room", SourceSystem: "s",
		DeliveryStatus: model.DeliverySuccess, Timestamp: now}
	require.NoError(t, r.Record(ctx, old))
	require.NoError(t, r.Record(ctx, fresh))

	n, err := r.PurgeExpired(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	rows, _ := r.ListByEvent(ctx, "fresh")
	assert.Len(t, rows, 1)
	rows, _ = r.ListByEvent(ctx, "old")
	assert.Empty(t, rows)
}

func must(l *zap.SugaredLogger, err error) *zap.SugaredLogger {
	if err != nil {
		panic(err)
	}
	return l
}
