package model

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventUnmarshal_SelectsPayloadByType(t *testing.T) {
	raw := `{
		"event_id": "evt-1",
		"type": "checkout",
		"action": "completed",
		"tenant_id": "hotel-42",
		"targets": ["hotel-pms"],
		"data": {"reservation_id": "R-9", "room_number": "1204", "final_bill": "389.50"}
	}`
	var ev Event
	require.NoError(t, json.Unmarshal([]byte(raw), &ev))

	stay, ok := ev.Data.(*StayData)
	require.True(t, ok, "checkout must decode into StayData, got %T", ev.Data)
	assert.Equal(t, "1204", stay.RoomNumber)
	assert.True(t, stay.FinalBill.Equal(decimal.RequireFromString("389.50")))
	assert.Equal(t, Kind{Type: TypeCheckOut, Action: ActionCompleted}, ev.Kind())
}

func TestEventUnmarshal_NoData(t *testing.T) {
	var ev Event
	require.NoError(t, json.Unmarshal([]byte(`{"type":"system","action":"health_check","data":null}`), &ev))
	assert.Nil(t, ev.Data)
}

func TestEventUnmarshal_UnknownTypeWithData(t *testing.T) {
	var ev Event
	err := json.Unmarshal([]byte(`{"type":"spa","action":"booked","data":{"x":1}}`), &ev)
	assert.Error(t, err)
}

func TestDefaults(t *testing.T) {
	cases := map[EventType]Priority{
		TypeCheckIn:     PriorityCritical,
		TypeCheckOut:    PriorityCritical,
		TypeReservation: PriorityHigh,
		TypeCustomer:    PriorityHigh,
		TypeRoom:        PriorityHigh,
		TypeAnalytics:   PriorityMedium,
		TypeSystem:      PriorityLow,
	}
	for typ, want := range cases {
		assert.Equal(t, want, DefaultPriority(typ), typ)
	}
	assert.Equal(t, ExactlyOnce, DefaultGuarantee(PriorityCritical))
	assert.Equal(t, AtLeastOnce, DefaultGuarantee(PriorityHigh))
}

func TestPayloadMatches(t *testing.T) {
	assert.True(t, PayloadMatches(TypeCheckIn, &StayData{}))
	assert.True(t, PayloadMatches(TypeCheckOut, &StayData{}))
	assert.False(t, PayloadMatches(TypeRoom, &StayData{}))
	assert.True(t, ValidAction(TypeCheckOut, ActionExpress))
	assert.False(t, ValidAction(TypeCheckIn, ActionExpress))
}

func TestClone_DoesNotShareTargets(t *testing.T) {
	ev := &Event{Targets: []string{"a", "b"}}
	c := ev.Clone()
	c.Targets[0] = "z"
	assert.Equal(t, "a", ev.Targets[0])
}
