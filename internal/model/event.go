package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventType is the first half of an event's discriminant.
type EventType string

const (
	TypeReservation EventType = "reservation"
	TypeCustomer    EventType = "customer"
	TypeRoom        EventType = "room"
	TypeCheckIn     EventType = "checkin"
	TypeCheckOut    EventType = "checkout"
	TypeAnalytics   EventType = "analytics"
	TypeSystem      EventType = "system"
)

// Action is the second half of the discriminant. Its vocabulary depends on the type.
type Action string

const (
	ActionCreated       Action = "created"
	ActionUpdated       Action = "updated"
	ActionCancelled     Action = "cancelled"
	ActionConfirmed     Action = "confirmed"
	ActionNoShow        Action = "no_show"
	ActionDeleted       Action = "deleted"
	ActionTierChanged   Action = "tier_changed"
	ActionPointsUpdated Action = "points_updated"
	ActionStatusChanged Action = "status_changed"
	ActionMaintenance   Action = "maintenance"
	ActionCleaned       Action = "cleaned"
	ActionBlocked       Action = "blocked"
	ActionStarted       Action = "started"
	ActionCompleted     Action = "completed"
	ActionExpress       Action = "express"
	ActionDailyReport   Action = "daily_report"
	ActionWeeklyReport  Action = "weekly_report"
	ActionMonthlyReport Action = "monthly_report"
	ActionOccupancy     Action = "occupancy_snapshot"
	ActionRevenue       Action = "revenue_summary"
	ActionHealthCheck   Action = "health_check"
	ActionConfigChanged Action = "config_changed"
	ActionError         Action = "error"
	ActionSyncRequested Action = "sync_requested"
)

var actions = map[EventType][]Action{
	TypeReservation: {ActionCreated, ActionUpdated, ActionCancelled, ActionConfirmed, ActionNoShow},
	TypeCustomer:    {ActionCreated, ActionUpdated, ActionDeleted, ActionTierChanged, ActionPointsUpdated},
	TypeRoom:        {ActionStatusChanged, ActionMaintenance, ActionCleaned, ActionBlocked},
	TypeCheckIn:     {ActionStarted, ActionCompleted},
	TypeCheckOut:    {ActionStarted, ActionCompleted, ActionExpress},
	TypeAnalytics:   {ActionDailyReport, ActionWeeklyReport, ActionMonthlyReport, ActionOccupancy, ActionRevenue},
	TypeSystem:      {ActionHealthCheck, ActionConfigChanged, ActionError, ActionSyncRequested},
}

// ActionsFor returns the action vocabulary of t, or nil for an unknown type.
func ActionsFor(t EventType) []Action {
	return actions[t]
}

// Known reports whether t is one of the defined event types.
func (t EventType) Known() bool {
	_, ok := actions[t]
	return ok
}

// ValidAction reports whether a belongs to t's vocabulary.
func ValidAction(t EventType, a Action) bool {
	for _, v := range actions[t] {
		if v == a {
			return true
		}
	}
	return false
}

type Priority string

const (
	PriorityLow      Priority = "LOW"
	PriorityMedium   Priority = "MEDIUM"
	PriorityHigh     Priority = "HIGH"
	PriorityCritical Priority = "CRITICAL"
)

type SyncMode string

const (
	SyncRealtime SyncMode = "realtime"
	SyncBatch    SyncMode = "batch"
)

type DeliveryGuarantee string

const (
	AtMostOnce  DeliveryGuarantee = "at_most_once"
	AtLeastOnce DeliveryGuarantee = "at_least_once"
	ExactlyOnce DeliveryGuarantee = "exactly_once"
)

// DefaultPriority derives the priority an event of type t gets when none is set.
func DefaultPriority(t EventType) Priority {
	switch t {
	case TypeCheckIn, TypeCheckOut:
		return PriorityCritical
	case TypeReservation, TypeCustomer, TypeRoom:
		return PriorityHigh
	case TypeAnalytics:
		return PriorityMedium
	default:
		return PriorityLow
	}
}

// DefaultGuarantee derives the delivery guarantee from the priority.
func DefaultGuarantee(p Priority) DeliveryGuarantee {
	if p == PriorityCritical {
		return ExactlyOnce
	}
	return AtLeastOnce
}

// Kind is the (type, action) discriminant pair.
type Kind struct {
	Type   EventType
	Action Action
}

func (k Kind) String() string { return fmt.Sprintf("%s.%s", k.Type, k.Action) }

// Event is the envelope shared by every hotel domain event. Data holds the
// variant payload selected by Type.
type Event struct {
	EventID           string            `json:"event_id"`
	Type              EventType         `json:"type"`
	Action            Action            `json:"action"`
	Timestamp         time.Time         `json:"timestamp"`
	SyncedAt          time.Time         `json:"synced_at"`
	Priority          Priority          `json:"priority"`
	SyncMode          SyncMode          `json:"sync_mode"`
	Targets           []string          `json:"targets"`
	DeliveryGuarantee DeliveryGuarantee `json:"delivery_guarantee"`
	OriginSystem      string            `json:"origin_system"`
	UpdatedBySystem   string            `json:"updated_by_system"`
	TenantID          string            `json:"tenant_id"`
	UserID            string            `json:"user_id,omitempty"`
	CorrelationID     string            `json:"correlation_id,omitempty"`
	RetryCount        int               `json:"retry_count"`
	CreatedOffline    bool              `json:"created_offline,omitempty"`
	// Schedule is only meaningful for analytics events.
	Schedule string  `json:"schedule,omitempty"`
	Data     Payload `json:"data,omitempty"`
}

// Kind returns the event's discriminant.
func (e *Event) Kind() Kind { return Kind{Type: e.Type, Action: e.Action} }

// Clone returns a copy that shares no slices with e. Data is shared; payloads
// are treated as immutable once attached.
func (e *Event) Clone() *Event {
	c := *e
	c.Targets = append([]string(nil), e.Targets...)
	return &c
}

// UnmarshalJSON decodes the envelope and then data into the payload variant for type.
func (e *Event) UnmarshalJSON(b []byte) error {
	type alias Event
	aux := struct {
		*alias
		Data json.RawMessage `json:"data,omitempty"`
	}{alias: (*alias)(e)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	e.Data = nil
	if len(aux.Data) == 0 || string(aux.Data) == "null" {
		return nil
	}
	p := NewPayload(e.Type)
	if p == nil {
		return fmt.Errorf("event %q: no payload shape for type %q", e.EventID, e.Type)
	}
	if err := json.Unmarshal(aux.Data, p); err != nil {
		return fmt.Errorf("event %q: decode %s payload: %w", e.EventID, e.Type, err)
	}
	e.Data = p
	return nil
}
