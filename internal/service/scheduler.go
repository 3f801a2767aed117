package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/richardliu001/hotel-sync/internal/metrics"
	"github.com/richardliu001/hotel-sync/internal/model"
	"go.uber.org/zap"
)

// firingTimeout bounds one scheduled publish.
const firingTimeout = 30 * time.Second

// Timer is the part of *time.Timer the scheduler uses.
type Timer interface {
	Stop() bool
}

// AfterFunc arms f to run once after d.
type AfterFunc func(d time.Duration, f func()) Timer

func realAfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

// ScheduleKey identifies a recurring batch: one armed timer per key.
func ScheduleKey(ev *model.Event) string {
	return string(ev.Type) + ":" + ev.Schedule
}

type scheduleHandle struct {
	key   string
	ev    *model.Event
	next  time.Time
	timer Timer
}

// Scheduler holds recurring batch timers. On each firing the event is
// published and the timer re-armed for the next occurrence.
type Scheduler struct {
	publish   func(ctx context.Context, ev *model.Event) (string, error)
	afterFunc AfterFunc
	now       func() time.Time
	loc       *time.Location
	log       *zap.SugaredLogger

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	handles map[string]*scheduleHandle
	closed  bool
	firing  sync.WaitGroup
}

func newScheduler(publish func(context.Context, *model.Event) (string, error), afterFunc AfterFunc,
	now func() time.Time, loc *time.Location, log *zap.SugaredLogger) *Scheduler {
	if afterFunc == nil {
		afterFunc = realAfterFunc
	}
	if loc == nil {
		loc = time.Local
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		publish:   publish,
		afterFunc: afterFunc,
		now:       now,
		loc:       loc,
		log:       log,
		ctx:       ctx,
		cancel:    cancel,
		handles:   make(map[string]*scheduleHandle),
	}
}

// Schedule arms (or re-arms) the timer for ev's key and returns immediately
// with a synthetic batch id.
func (s *Scheduler) Schedule(ev *model.Event) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", ErrSchedulerClosed
	}
	// the handle owns its copy; callers may reuse ev
	h := s.armLocked(ev.Clone())
	metrics.BatchesScheduled.Inc()
	s.log.Infow("batch scheduled", "key", h.key, "event_id", ev.EventID, "next_run", h.next)
	return newBatchID(s.now()), nil
}

// armLocked replaces any handle under the same key. Callers hold s.mu.
func (s *Scheduler) armLocked(ev *model.Event) *scheduleHandle {
	key := ScheduleKey(ev)
	if old, ok := s.handles[key]; ok {
		old.timer.Stop()
	}
	now := s.now().In(s.loc)
	h := &scheduleHandle{key: key, ev: ev, next: NextRun(ev.Schedule, now)}
	h.timer = s.afterFunc(h.next.Sub(now), func() { s.fire(h) })
	s.handles[key] = h
	metrics.ArmedSchedules.Set(float64(len(s.handles)))
	return h
}

func (s *Scheduler) fire(h *scheduleHandle) {
	s.mu.Lock()
	if s.closed || s.handles[h.key] != h {
		s.mu.Unlock()
		return
	}
	s.firing.Add(1)
	s.mu.Unlock()
	defer s.firing.Done()

	now := s.now()
	ev := h.ev.Clone()
	ev.EventID = newEventID(now)
	ev.SyncedAt = now

	ctx, cancel := context.WithTimeout(s.ctx, firingTimeout)
	id, err := s.publish(ctx, ev)
	cancel()
	if err != nil {
		metrics.BatchFirings.WithLabelValues("failed").Inc()
		s.log.Errorw("batch publish failed", "key", h.key, "event_id", ev.EventID, "err", err)
	} else {
		metrics.BatchFirings.WithLabelValues("success").Inc()
		s.log.Infow("batch published", "key", h.key, "event_id", ev.EventID, "delivery_id", id)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// rescheduled or shut down while publishing
	if s.closed || s.handles[h.key] != h {
		return
	}
	s.armLocked(h.ev)
}

// Keys lists armed schedule keys in sorted order.
func (s *Scheduler) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.handles))
	for k := range s.handles {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// NextRunOf returns when key fires next.
func (s *Scheduler) NextRunOf(key string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.handles[key]
	if !ok {
		return time.Time{}, false
	}
	return h.next, true
}

// Shutdown cancels every armed timer and waits for in-flight firings.
func (s *Scheduler) Shutdown() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	for k, h := range s.handles {
		h.timer.Stop()
		delete(s.handles, k)
	}
	metrics.ArmedSchedules.Set(0)
	s.mu.Unlock()

	s.firing.Wait()
	s.cancel()
}
