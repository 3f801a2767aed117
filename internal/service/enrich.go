package service

import (
	"fmt"
	"time"

	"github.com/richardliu001/hotel-sync/internal/model"
)

// Enrich validates ev and fills its defaults in place. It has no other side effects.
func Enrich(ev *model.Event, now time.Time) error {
	switch {
	case ev.Type == "":
		return fmt.Errorf("%w: type", ErrMissingField)
	case ev.Action == "":
		return fmt.Errorf("%w: action", ErrMissingField)
	case !hasTargets(ev.Targets):
		return fmt.Errorf("%w: targets", ErrMissingField)
	case ev.TenantID == "":
		return fmt.Errorf("%w: tenant_id", ErrMissingField)
	}
	if ev.OriginSystem == "" {
		return fmt.Errorf("%w: origin_system", ErrMissingSourceTracking)
	}
	if ev.UpdatedBySystem == "" {
		return fmt.Errorf("%w: updated_by_system", ErrMissingSourceTracking)
	}
	if !ev.Type.Known() {
		return fmt.Errorf("%w: type %q is not defined", ErrMissingField, ev.Type)
	}
	if !model.ValidAction(ev.Type, ev.Action) {
		return fmt.Errorf("%w: action %q is not defined for %s", ErrMissingField, ev.Action, ev.Type)
	}
	if ev.Data != nil && !model.PayloadMatches(ev.Type, ev.Data) {
		return fmt.Errorf("%w: data for %s has shape %T", ErrMissingField, ev.Type, ev.Data)
	}

	if ev.SyncMode == "" {
		ev.SyncMode = model.SyncRealtime
		if ev.Type == model.TypeAnalytics {
			ev.SyncMode = model.SyncBatch
		}
	}
	if ev.SyncMode == model.SyncBatch && ev.Schedule == "" {
		return fmt.Errorf("%w: schedule", ErrMissingField)
	}

	if ev.EventID == "" {
		ev.EventID = newEventID(now)
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = now
	}
	if ev.SyncedAt.IsZero() {
		ev.SyncedAt = now
	}
	if ev.Priority == "" {
		ev.Priority = model.DefaultPriority(ev.Type)
	}
	if ev.DeliveryGuarantee == "" {
		ev.DeliveryGuarantee = model.DefaultGuarantee(ev.Priority)
	}
	ev.RetryCount = 0
	if ev.CorrelationID == "" {
		ev.CorrelationID = newCorrelationID()
	}
	return nil
}

func hasTargets(targets []string) bool {
	if len(targets) == 0 {
		return false
	}
	for _, t := range targets {
		if t == "" {
			return false
		}
	}
	return true
}
