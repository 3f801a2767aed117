package service

import (
	"context"
	"errors"
	"testing"

	"github.com/richardliu001/hotel-sync/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRouter_DispatchesByType(t *testing.T) {
	var stays, rooms int
	r := NewRouter("hotel-pms", Routes{
		Stay: func(_ context.Context, ev *model.Event, d *model.StayData) error {
			stays++
			assert.Equal(t, "1204", d.RoomNumber)
			return nil
		},
		Room: func(_ context.Context, _ *model.Event, d *model.RoomData) error {
			rooms++
			return errors.New("room service down")
		},
	}, zap.NewNop().Sugar())

	require.NoError(t, r.Handle(context.Background(), checkinEvent(), "1-0"))
	assert.EqualError(t, r.Handle(context.Background(), roomEvent(), "2-0"), "room service down")
	assert.Equal(t, 1, stays)
	assert.Equal(t, 1, rooms)
}

func TestRouter_SkipsOtherTargets(t *testing.T) {
	called := false
	r := NewRouter("hotel-analytics", Routes{
		Room: func(context.Context, *model.Event, *model.RoomData) error {
			called = true
			return nil
		},
	}, zap.NewNop().Sugar())

	require.NoError(t, r.Handle(context.Background(), roomEvent(), "1-0"))
	assert.False(t, called)
}

func TestRouter_NilRouteAcceptsAndUnknownTypeFails(t *testing.T) {
	r := NewRouter("", Routes{}, zap.NewNop().Sugar())
	assert.NoError(t, r.Handle(context.Background(), analyticsEvent(ScheduleDaily), "1-0"))

	ev := roomEvent()
	ev.Type = "spa"
	err := r.Handle(context.Background(), ev, "2-0")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "spa.cleaned")
}
