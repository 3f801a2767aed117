package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/richardliu001/hotel-sync/internal/broadcast"
	"github.com/richardliu001/hotel-sync/internal/broker"
	"github.com/richardliu001/hotel-sync/internal/deadletter"
	"github.com/richardliu001/hotel-sync/internal/model"
	"go.uber.org/zap"
)

// memBroker is an in-memory stand-in for Redis Streams with consumer-group
// semantics: each read hands new entries to one consumer and tracks them as
// pending until acked.
type memBroker struct {
	mu        sync.Mutex
	seq       int
	streams   map[string][]broker.Entry
	cursor    map[string]int               // stream|group -> next index
	pending   map[string]map[string]string // stream|group -> id -> consumer
	acked     map[string][]string          // stream -> ids
	appendErr map[string]error
	readErrs  []error
	groupErr  error
	pingErr   error
	connected bool
	idleReads int
	onIdle    func(n int) // called on every empty read
}

func newMemBroker() *memBroker {
	return &memBroker{
		streams:   map[string][]broker.Entry{},
		cursor:    map[string]int{},
		pending:   map[string]map[string]string{},
		acked:     map[string][]string{},
		appendErr: map[string]error{},
		connected: true,
	}
}

func gk(stream, group string) string { return stream + "|" + group }

func (m *memBroker) Append(_ context.Context, stream string, values []interface{}) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.appendErr[stream]; err != nil {
		return "", err
	}
	m.seq++
	id := fmt.Sprintf("%d-0", m.seq)
	vals := map[string]interface{}{}
	for i := 0; i+1 < len(values); i += 2 {
		vals[values[i].(string)] = values[i+1]
	}
	m.streams[stream] = append(m.streams[stream], broker.Entry{ID: id, Values: vals})
	return id, nil
}

func (m *memBroker) EnsureGroup(_ context.Context, stream, group string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.groupErr != nil {
		return m.groupErr
	}
	k := gk(stream, group)
	if _, ok := m.pending[k]; !ok {
		m.pending[k] = map[string]string{}
		m.cursor[k] = len(m.streams[stream])
	}
	return nil
}

func (m *memBroker) ReadGroup(_ context.Context, stream, group, consumer string, count int64, _ time.Duration) ([]broker.Entry, error) {
	m.mu.Lock()
	if len(m.readErrs) > 0 {
		err := m.readErrs[0]
		m.readErrs = m.readErrs[1:]
		m.mu.Unlock()
		return nil, err
	}
	k := gk(stream, group)
	all := m.streams[stream]
	var out []broker.Entry
	for m.cursor[k] < len(all) && int64(len(out)) < count {
		e := all[m.cursor[k]]
		m.cursor[k]++
		m.pending[k][e.ID] = consumer
		out = append(out, e)
	}
	var idle func(int)
	if len(out) == 0 {
		m.idleReads++
		idle = m.onIdle
	}
	n := m.idleReads
	m.mu.Unlock()
	if idle != nil {
		idle(n)
	}
	return out, nil
}

func (m *memBroker) Pending(_ context.Context, stream, group, consumer string, count int64) ([]broker.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for id, c := range m.pending[gk(stream, group)] {
		if c == consumer {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	var out []broker.Entry
	for _, id := range ids {
		if int64(len(out)) >= count {
			break
		}
		out = append(out, m.lookup(stream, id))
	}
	return out, nil
}

func (m *memBroker) lookup(stream, id string) broker.Entry {
	for _, e := range m.streams[stream] {
		if e.ID == id {
			return e
		}
	}
	return broker.Entry{ID: id}
}

func (m *memBroker) Ack(_ context.Context, stream, group string, ids ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		delete(m.pending[gk(stream, group)], id)
		m.acked[stream] = append(m.acked[stream], id)
	}
	return nil
}

func (m *memBroker) Len(_ context.Context, stream string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.streams[stream])), nil
}

func (m *memBroker) PendingCount(_ context.Context, stream, group string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.pending[gk(stream, group)])), nil
}

func (m *memBroker) Ping(context.Context) error { return m.pingErr }

func (m *memBroker) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *memBroker) disconnect() {
	m.mu.Lock()
	m.connected = false
	m.mu.Unlock()
}

func (m *memBroker) entries(stream string) []broker.Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]broker.Entry(nil), m.streams[stream]...)
}

func (m *memBroker) ackedIDs(stream string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.acked[stream]...)
}

// pendingIDs lists unacked ids in (stream, group).
func (m *memBroker) pendingIDs(stream, group string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for id := range m.pending[gk(stream, group)] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

type memAudit struct {
	mu   sync.Mutex
	rows []model.DeliveryLog
	err  error
}

func (a *memAudit) Record(_ context.Context, row *model.DeliveryLog) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.rows = append(a.rows, *row)
	return a.err
}

func (a *memAudit) all() []model.DeliveryLog {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]model.DeliveryLog(nil), a.rows...)
}

func (a *memAudit) reset() {
	a.mu.Lock()
	a.rows = nil
	a.mu.Unlock()
}

func (a *memAudit) statuses() []model.DeliveryStatus {
	var out []model.DeliveryStatus
	for _, r := range a.all() {
		out = append(out, r.DeliveryStatus)
	}
	return out
}

type sentBroadcast struct {
	target string
	msg    broadcast.Message
}

type memBroadcast struct {
	mu      sync.Mutex
	sent    []sentBroadcast
	failFor map[string]bool
}

func (b *memBroadcast) Send(_ context.Context, target string, msg broadcast.Message) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sent = append(b.sent, sentBroadcast{target: target, msg: msg})
	if b.failFor[target] {
		return errors.New("socket closed")
	}
	return nil
}

type memDeadLetter struct {
	mu   sync.Mutex
	recs []deadletter.Record
}

func (d *memDeadLetter) Send(_ context.Context, rec deadletter.Record) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.recs = append(d.recs, rec)
	return nil
}

// fakeTimer records arming so tests can fire timers by hand.
type fakeTimer struct {
	d       time.Duration
	f       func()
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	was := !t.stopped
	t.stopped = true
	return was
}

type fakeTimers struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

func (ft *fakeTimers) afterFunc(d time.Duration, f func()) Timer {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	t := &fakeTimer{d: d, f: f}
	ft.timers = append(ft.timers, t)
	return t
}

func (ft *fakeTimers) active() []*fakeTimer {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	var out []*fakeTimer
	for _, t := range ft.timers {
		if !t.stopped {
			out = append(out, t)
		}
	}
	return out
}

// clock is a settable time source.
type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}

type harness struct {
	bus         *Bus
	broker      *memBroker
	audit       *memAudit
	timers      *fakeTimers
	clock       *clock
	deadLetters *memDeadLetter
}

func newHarness(b broadcast.Broadcaster) *harness {
	h := &harness{
		broker:      newMemBroker(),
		audit:       &memAudit{},
		timers:      &fakeTimers{},
		clock:       &clock{t: time.Date(2024, 5, 15, 10, 0, 0, 0, time.UTC)},
		deadLetters: &memDeadLetter{},
	}
	deps := Deps{
		Streams:    h.broker,
		Audit:      h.audit,
		DeadLetter: h.deadLetters,
		Log:        zap.NewNop().Sugar(),
	}
	if b != nil {
		deps.Broadcaster = b
	}
	h.bus = NewBus(deps, Options{
		MaxRetries: 3,
		RetryDelay: 100 * time.Millisecond,
		Location:   time.UTC,
		Now:        h.clock.now,
		AfterFunc:  h.timers.afterFunc,
	})
	return h
}

func checkinEvent() *model.Event {
	return &model.Event{
		Type:            model.TypeCheckIn,
		Action:          model.ActionCompleted,
		Targets:         []string{"hotel-pms", "hotel-member"},
		OriginSystem:    "hotel-frontdesk",
		UpdatedBySystem: "hotel-frontdesk",
		TenantID:        "hotel-42",
		Data:            &model.StayData{ReservationID: "R-1", RoomNumber: "1204"},
	}
}

func roomEvent() *model.Event {
	return &model.Event{
		Type:            model.TypeRoom,
		Action:          model.ActionCleaned,
		Targets:         []string{"hotel-pms"},
		OriginSystem:    "hotel-housekeeping",
		UpdatedBySystem: "hotel-housekeeping",
		TenantID:        "hotel-42",
		Data:            &model.RoomData{RoomNumber: "1204", Status: "clean"},
	}
}

func analyticsEvent(schedule string) *model.Event {
	return &model.Event{
		Type:            model.TypeAnalytics,
		Action:          model.ActionMonthlyReport,
		Targets:         []string{"hotel-analytics"},
		OriginSystem:    "hotel-reporting",
		UpdatedBySystem: "hotel-reporting",
		TenantID:        "hotel-42",
		Schedule:        schedule,
		Data:            &model.AnalyticsData{ReportType: "occupancy"},
	}
}
