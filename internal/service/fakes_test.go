package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/crucial707/aquamarine/internal/gpio"
	"github.com/crucial707/aquamarine/internal/models"
	"github.com/crucial707/aquamarine/internal/mqtt"
	"github.com/crucial707/aquamarine/internal/repo"
	"github.com/crucial707/aquamarine/internal/scheduler"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type memDevices struct {
	mu      sync.Mutex
	rows    map[string]models.Device
	order   []string
	clock   time.Time
	findErr error
	// createErr is returned by Create after the pre-check, simulating a lost race.
	createErr error
}

func newMemDevices() *memDevices {
	return &memDevices{rows: map[string]models.Device{}, clock: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (m *memDevices) tick() time.Time {
	m.clock = m.clock.Add(time.Second)
	return m.clock
}

func (m *memDevices) Create(_ context.Context, id, name string, pin int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	for _, d := range m.rows {
		if d.GPIONumber == pin {
			return repo.ErrPinInUse
		}
	}
	now := m.tick()
	m.rows[id] = models.Device{DeviceID: id, DeviceName: name, GPIONumber: pin, CreatedAt: now, UpdatedAt: now}
	m.order = append(m.order, id)
	return nil
}

func (m *memDevices) FindAll(context.Context) ([]models.Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Device
	for _, id := range m.order {
		if d, ok := m.rows[id]; ok {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *memDevices) FindByID(_ context.Context, id string) (*models.Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return nil, m.findErr
	}
	d, ok := m.rows[id]
	if !ok {
		return nil, nil
	}
	return &d, nil
}

func (m *memDevices) Update(_ context.Context, id string, name *string, pin *int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.rows[id]
	if !ok {
		return false, nil
	}
	if name != nil {
		d.DeviceName = *name
	}
	if pin != nil {
		d.GPIONumber = *pin
	}
	d.UpdatedAt = m.tick()
	m.rows[id] = d
	return true, nil
}

func (m *memDevices) Delete(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[id]; !ok {
		return false, nil
	}
	delete(m.rows, id)
	return true, nil
}

func (m *memDevices) UpdateTimestamp(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d, ok := m.rows[id]; ok {
		d.UpdatedAt = m.tick()
		m.rows[id] = d
	}
	return nil
}

type memSchedules struct {
	mu      sync.Mutex
	rows    map[string]models.Schedule
	saveErr error
}

func newMemSchedules() *memSchedules {
	return &memSchedules{rows: map[string]models.Schedule{}}
}

func (m *memSchedules) Save(_ context.Context, s models.Schedule) (*models.Schedule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return nil, m.saveErr
	}
	m.rows[s.ScheduleID] = s
	return &s, nil
}

func (m *memSchedules) sorted(keep func(models.Schedule) bool) []models.Schedule {
	var out []models.Schedule
	for _, s := range m.rows {
		if keep(s) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Schedule != out[j].Schedule {
			return out[i].Schedule < out[j].Schedule
		}
		return out[i].ScheduleID < out[j].ScheduleID
	})
	return out
}

func (m *memSchedules) FindByDevice(_ context.Context, deviceID string) ([]models.Schedule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sorted(func(s models.Schedule) bool { return s.DeviceID == deviceID }), nil
}

func (m *memSchedules) FindAll(context.Context) ([]models.Schedule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sorted(func(models.Schedule) bool { return true }), nil
}

func (m *memSchedules) FindByID(_ context.Context, id string) (*models.Schedule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.rows[id]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (m *memSchedules) Delete(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[id]; !ok {
		return false, nil
	}
	delete(m.rows, id)
	return true, nil
}

func (m *memSchedules) DeleteByDevice(_ context.Context, deviceID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, s := range m.rows {
		if s.DeviceID == deviceID {
			delete(m.rows, id)
			n++
		}
	}
	return n, nil
}

type auditRecord struct {
	action, resourceType, resourceID, details string
}

type memAudit struct {
	mu      sync.Mutex
	entries []auditRecord
}

func (m *memAudit) Log(_ context.Context, action, resourceType, resourceID, details string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, auditRecord{action, resourceType, resourceID, details})
	return nil
}

func (m *memAudit) actions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, e := range m.entries {
		out = append(out, e.action)
	}
	return out
}

// interleavedSchedules runs hooks between a caller's schedule-store steps so
// tests can land a concurrent request in the middle of a cascade.
type interleavedSchedules struct {
	*memSchedules
	afterFindByDevice    func()
	beforeDeleteByDevice func()
}

func (m *interleavedSchedules) FindByDevice(ctx context.Context, deviceID string) ([]models.Schedule, error) {
	list, err := m.memSchedules.FindByDevice(ctx, deviceID)
	if hook := m.afterFindByDevice; hook != nil {
		m.afterFindByDevice = nil
		hook()
	}
	return list, err
}

func (m *interleavedSchedules) DeleteByDevice(ctx context.Context, deviceID string) (int64, error) {
	if hook := m.beforeDeleteByDevice; hook != nil {
		m.beforeDeleteByDevice = nil
		hook()
	}
	return m.memSchedules.DeleteByDevice(ctx, deviceID)
}

type memEvents struct {
	mu     sync.Mutex
	states []mqtt.DeviceState
	err    error
}

func (m *memEvents) PublishState(_ context.Context, s mqtt.DeviceState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.states = append(m.states, s)
	return nil
}

func (m *memEvents) Close() {}

// brokenScheduler fails every Add; the rest is delegated.
type brokenScheduler struct {
	*scheduler.Executor
	err error
}

func (b *brokenScheduler) Add(context.Context, string, string, string, bool) (bool, error) {
	return false, b.err
}

var errArm = errors.New("cron rejected entry")

type fixture struct {
	devices   *memDevices
	schedules *memSchedules
	pins      *gpio.Mock
	exec      *scheduler.Executor
	audit     *memAudit
	events    *memEvents
	deviceSvc *DeviceService
	schedSvc  *ScheduleService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	f := &fixture{
		devices:   newMemDevices(),
		schedules: newMemSchedules(),
		pins:      gpio.NewMock(),
		audit:     &memAudit{},
		events:    &memEvents{},
	}
	f.exec = scheduler.New(f.devices, f.pins, loc, scheduler.WithLogger(discard))
	f.deviceSvc = &DeviceService{
		Devices:   f.devices,
		Schedules: f.schedules,
		Pins:      f.pins,
		Scheduler: f.exec,
		Audit:     f.audit,
		Events:    f.events,
		Logger:    discard,
	}
	f.schedSvc = &ScheduleService{
		Devices:   f.devices,
		Schedules: f.schedules,
		Scheduler: f.exec,
		Audit:     f.audit,
		Logger:    discard,
	}
	return f
}

func (f *fixture) register(t *testing.T, name string, pin int) *models.Device {
	t.Helper()
	d, err := f.deviceSvc.Register(context.Background(), name, pin)
	if err != nil {
		t.Fatalf("Register(%s, %d): %v", name, pin, err)
	}
	return d
}
