package service

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/richardliu001/hotel-sync/internal/model"
)

// StreamValues flattens ev into the XADD field list.
func StreamValues(ev *model.Event) ([]interface{}, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("encode event %s: %w", ev.EventID, err)
	}
	targets, err := json.Marshal(ev.Targets)
	if err != nil {
		return nil, fmt.Errorf("encode targets %s: %w", ev.EventID, err)
	}
	return []interface{}{
		"event_type", string(ev.Type),
		"event_action", string(ev.Action),
		"event_data", string(data),
		"priority", string(ev.Priority),
		"sync_mode", string(ev.SyncMode),
		"targets", string(targets),
		"origin_system", ev.OriginSystem,
		"tenant_id", ev.TenantID,
		"timestamp", ev.Timestamp.UTC().Format(time.RFC3339Nano),
	}, nil
}

// DecodeEntry rebuilds the event carried in a stream entry's event_data field.
func DecodeEntry(values map[string]interface{}) (*model.Event, error) {
	raw, ok := values["event_data"]
	if !ok {
		return nil, fmt.Errorf("%w: event_data", ErrMissingField)
	}
	var b []byte
	switch v := raw.(type) {
	case string:
		b = []byte(v)
	case []byte:
		b = v
	default:
		return nil, fmt.Errorf("event_data has type %T", raw)
	}
	var ev model.Event
	if err := json.Unmarshal(b, &ev); err != nil {
		return nil, fmt.Errorf("decode event_data: %w", err)
	}
	return &ev, nil
}

func errorValues(ev *model.Event, stream string, cause error, now time.Time) []interface{} {
	return []interface{}{
		"event_id", ev.EventID,
		"event_type", string(ev.Type),
		"event_action", string(ev.Action),
		"failed_stream", stream,
		"error", cause.Error(),
		"origin_system", ev.OriginSystem,
		"tenant_id", ev.TenantID,
		"timestamp", now.UTC().Format(time.RFC3339Nano),
	}
}
