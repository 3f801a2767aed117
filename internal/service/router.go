package service

import (
	"context"
	"fmt"

	"github.com/richardliu001/hotel-sync/internal/model"
	"go.uber.org/zap"
)

// Routes holds one callback per payload shape. A nil callback accepts the
// event without doing anything.
type Routes struct {
	Reservation func(ctx context.Context, ev *model.Event, d *model.ReservationData) error
	Customer    func(ctx context.Context, ev *model.Event, d *model.CustomerData) error
	Room        func(ctx context.Context, ev *model.Event, d *model.RoomData) error
	Stay        func(ctx context.Context, ev *model.Event, d *model.StayData) error
	Analytics   func(ctx context.Context, ev *model.Event, d *model.AnalyticsData) error
	System      func(ctx context.Context, ev *model.Event, d *model.SystemData) error
}

// Router is a Handler that drops events not addressed to its system and
// dispatches the rest on the event type.
type Router struct {
	system string
	routes Routes
	log    *zap.SugaredLogger
}

// NewRouter returns a router for system. An empty system accepts every event.
func NewRouter(system string, routes Routes, log *zap.SugaredLogger) *Router {
	return &Router{system: system, routes: routes, log: log}
}

// Handle implements Handler.
func (r *Router) Handle(ctx context.Context, ev *model.Event, entryID string) error {
	if r.system != "" && !addressedTo(ev, r.system) {
		r.log.Debugw("event not addressed to this system", "entry_id", entryID,
			"event_id", ev.EventID, "system", r.system)
		return nil
	}

	switch ev.Type {
	case model.TypeReservation:
		d, _ := ev.Data.(*model.ReservationData)
		return call(ctx, r.routes.Reservation, ev, d)
	case model.TypeCustomer:
		d, _ := ev.Data.(*model.CustomerData)
		return call(ctx, r.routes.Customer, ev, d)
	case model.TypeRoom:
		d, _ := ev.Data.(*model.RoomData)
		return call(ctx, r.routes.Room, ev, d)
	case model.TypeCheckIn, model.TypeCheckOut:
		d, _ := ev.Data.(*model.StayData)
		return call(ctx, r.routes.Stay, ev, d)
	case model.TypeAnalytics:
		d, _ := ev.Data.(*model.AnalyticsData)
		return call(ctx, r.routes.Analytics, ev, d)
	case model.TypeSystem:
		d, _ := ev.Data.(*model.SystemData)
		return call(ctx, r.routes.System, ev, d)
	default:
		return fmt.Errorf("no route for event kind %s", ev.Kind())
	}
}

func call[T any](ctx context.Context, fn func(context.Context, *model.Event, T) error, ev *model.Event, d T) error {
	if fn == nil {
		return nil
	}
	return fn(ctx, ev, d)
}

func addressedTo(ev *model.Event, system string) bool {
	for _, t := range ev.Targets {
		if t == system {
			return true
		}
	}
	return false
}
