package model

import "time"

type DeliveryStatus string

const (
	DeliverySuccess  DeliveryStatus = "success"
	DeliveryFailed   DeliveryStatus = "failed"
	DeliveryRetrying DeliveryStatus = "retrying"
	DeliveryPending  DeliveryStatus = "pending"
)

// DeliveryLog is one append-only audit row per publish or consume attempt.
type DeliveryLog struct {
	ID             uint64         `gorm:"primaryKey"`
	EventID        string         `gorm:"size:64;not null;index"`
	EventType      string         `gorm:"size:32;not null"`
	SourceSystem   string         `gorm:"size:64;not null"`
	TargetSystems  []string       `gorm:"serializer:json;type:text"`
	DeliveryStatus DeliveryStatus `gorm:"size:16;not null"`
	DeliveryTimeMs int64          `gorm:"not null;default:0"`
	RetryCount     int            `gorm:"not null;default:0"`
	ErrorMessage   *string        `gorm:"type:text"`
	Stream         string         `gorm:"size:64"`
	DeliveryID     string         `gorm:"size:64"`
	Timestamp      time.Time      `gorm:"not null"`
	ExpiresAt      time.Time      `gorm:"not null;index"`
}

func (DeliveryLog) TableName() string { return "event_delivery_log" }
