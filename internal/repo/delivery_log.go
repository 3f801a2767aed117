package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/richardliu001/hotel-sync/internal/model"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DefaultRetention is how long audit rows and their Redis mirror live.
const DefaultRetention = 7 * 24 * time.Hour

// MirrorKey is the Redis hash holding the latest audit state of an event.
func MirrorKey(eventID string) string {
	return "event-delivery-log:" + eventID
}

// AuditRepository restricts DeliveryLogRepository methods (handy for unit-test fakes).
type AuditRepository interface {
	Record(ctx context.Context, row *model.DeliveryLog) error
	ListByEvent(ctx context.Context, eventID string) ([]model.DeliveryLog, error)
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

// DeliveryLogRepository persists audit rows in the relational store and
// mirrors them into a per-event Redis hash.
type DeliveryLogRepository struct {
	db        *gorm.DB
	rdb       *redis.Client
	retention time.Duration
	log       *zap.SugaredLogger
}

// NewDeliveryLogRepository constructs repo. rdb may be nil to skip the mirror.
func NewDeliveryLogRepository(db *gorm.DB, rdb *redis.Client, retention time.Duration, logger *zap.SugaredLogger) *DeliveryLogRepository {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &DeliveryLogRepository{db: db, rdb: rdb, retention: retention, log: logger}
}

// AutoMigrate creates the audit table.
func (r *DeliveryLogRepository) AutoMigrate() error {
	return r.db.AutoMigrate(&model.DeliveryLog{})
}

// Record appends one row. Rows are never updated afterwards.
func (r *DeliveryLogRepository) Record(ctx context.Context, row *model.DeliveryLog) error {
	if row.Timestamp.IsZero() {
		row.Timestamp = time.Now()
	}
	if row.ExpiresAt.IsZero() {
		row.ExpiresAt = row.Timestamp.Add(r.retention)
	}
	var errs []error
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		errs = append(errs, fmt.Errorf("insert delivery log: %w", err))
	}
	if err := r.mirror(ctx, row); err != nil {
		errs = append(errs, fmt.Errorf("mirror delivery log: %w", err))
	}
	return errors.Join(errs...)
}

func (r *DeliveryLogRepository) mirror(ctx context.Context, row *model.DeliveryLog) error {
	if r.rdb == nil {
		return nil
	}
	key := MirrorKey(row.EventID)
	if err := r.rdb.HSet(ctx, key, MirrorFields(row)...).Err(); err != nil {
		return err
	}
	return r.rdb.Expire(ctx, key, r.retention).Err()
}

// MirrorFields flattens row into HSET field/value pairs.
func MirrorFields(row *model.DeliveryLog) []interface{} {
	targets, _ := json.Marshal(row.TargetSystems)
	errMsg := ""
	if row.ErrorMessage != nil {
		errMsg = *row.ErrorMessage
	}
	return []interface{}{
		"event_id", row.EventID,
		"event_type", row.EventType,
		"source_system", row.SourceSystem,
		"target_systems", string(targets),
		"delivery_status", string(row.DeliveryStatus),
		"delivery_time_ms", row.DeliveryTimeMs,
		"retry_count", row.RetryCount,
		"error_message", errMsg,
		"stream", row.Stream,
		"delivery_id", row.DeliveryID,
		"timestamp", row.Timestamp.UTC().Format(time.RFC3339Nano),
	}
}

// ListByEvent returns every row for eventID, oldest first.
func (r *DeliveryLogRepository) ListByEvent(ctx context.Context, eventID string) ([]model.DeliveryLog, error) {
	var rows []model.DeliveryLog
	err := r.db.WithContext(ctx).Where("event_id = ?", eventID).Order("id asc").Find(&rows).Error
	return rows, err
}

// PurgeExpired deletes rows past their retention window.
func (r *DeliveryLogRepository) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("expires_at < ?", now).Delete(&model.DeliveryLog{})
	return res.RowsAffected, res.Error
}
