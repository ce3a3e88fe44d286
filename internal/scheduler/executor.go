// Package scheduler keeps the live table of daily schedule triggers and fires
// pin actions at their configured wall-clock time.
//
// The trigger table is a cache of the persisted schedules: callers arm a
// trigger after the row is stored and disarm it after the row is deleted, and
// rebuild the whole table from storage when the process starts.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"
	_ "time/tzdata"

	"github.com/robfig/cron/v3"

	"github.com/crucial707/aquamarine/internal/gpio"
	"github.com/crucial707/aquamarine/internal/metrics"
	"github.com/crucial707/aquamarine/internal/models"
)

var (
	ErrDeviceNotFound    = errors.New("device not found")
	ErrInvalidTimeFormat = errors.New("invalid time format")
	ErrScheduleNotFound  = errors.New("schedule not found")
)

// DeviceFinder resolves a device id. A nil device with a nil error means absent.
type DeviceFinder interface {
	FindByID(ctx context.Context, id string) (*models.Device, error)
}

// Trigger is one armed daily action.
type Trigger struct {
	ScheduleID string    `json:"schedule_id"`
	DeviceID   string    `json:"device_id"`
	GPIONumber int       `json:"gpio_number"`
	Hour       int       `json:"hour"`
	Minute     int       `json:"minute"`
	IsOn       bool      `json:"is_on"`
	NextRun    time.Time `json:"next_run"`
}

// Time returns the trigger's time of day as HH:MM.
func (t Trigger) Time() string {
	return FormatTime(t.Hour, t.Minute)
}

// FireEvent describes one executed (or failed) scheduled action.
type FireEvent struct {
	ScheduleID string
	DeviceID   string
	DeviceName string
	GPIONumber int
	IsOn       bool
	At         time.Time
	Err        error
}

// FireHook observes firings. It runs on the cron goroutine after the pin call.
type FireHook func(ctx context.Context, ev FireEvent)

type entry struct {
	trigger  Trigger
	schedule cron.Schedule
	cronID   cron.EntryID
	gen      uint64
}

// Executor owns the trigger table. Construct it once per process.
type Executor struct {
	cron    *cron.Cron
	loc     *time.Location
	devices DeviceFinder
	pins    gpio.Controller
	logger  *slog.Logger
	hooks   []FireHook
	now     func() time.Time

	// lookupTimeout bounds the display-name lookup done at fire time.
	lookupTimeout time.Duration

	mu      sync.Mutex
	entries map[string]*entry
	gen     uint64
	running bool
	stopped bool
}

// Option configures an Executor.
type Option func(*Executor)

// WithLogger sets the logger (default slog.Default()).
func WithLogger(l *slog.Logger) Option {
	return func(e *Executor) { e.logger = l }
}

// WithFireHook registers a hook called after every firing.
func WithFireHook(h FireHook) Option {
	return func(e *Executor) { e.hooks = append(e.hooks, h) }
}

// New returns a stopped Executor that evaluates every trigger in loc.
func New(devices DeviceFinder, pins gpio.Controller, loc *time.Location, opts ...Option) *Executor {
	e := &Executor{
		cron:          cron.New(cron.WithLocation(loc)),
		loc:           loc,
		devices:       devices,
		pins:          pins,
		logger:        slog.Default(),
		now:           time.Now,
		lookupTimeout: 2 * time.Second,
		entries:       make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Location returns the zone triggers are evaluated in.
func (e *Executor) Location() *time.Location {
	return e.loc
}

// Start begins firing armed triggers. Calling it again, or after Stop, is a no-op.
func (e *Executor) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running || e.stopped {
		return
	}
	e.cron.Start()
	e.running = true
	e.logger.Info("scheduler started", "timezone", e.loc.String(), "triggers", len(e.entries))
}

// Stop halts firing for good and waits until in-flight actions return or ctx
// expires. The trigger table is kept for inspection.
func (e *Executor) Stop(ctx context.Context) error {
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return nil
	}
	e.stopped = true
	wasRunning := e.running
	e.running = false
	e.mu.Unlock()

	if !wasRunning {
		return nil
	}
	done := e.cron.Stop()
	select {
	case <-done.Done():
		e.logger.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Running reports whether the executor is firing triggers.
func (e *Executor) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// Add arms a daily trigger for scheduleID at hhmm that switches deviceID's pin
// on or off. The pin is resolved now and kept for every later firing. An
// existing trigger with the same id is replaced; replaced reports whether that
// happened.
func (e *Executor) Add(ctx context.Context, scheduleID, deviceID, hhmm string, isOn bool) (replaced bool, err error) {
	return e.arm(ctx, scheduleID, deviceID, hhmm, isOn, false)
}

// Rearm replaces scheduleID's trigger so it captures the device's current pin.
// It arms nothing when scheduleID is not armed at the moment of replacement,
// so a trigger removed concurrently stays removed. rearmed reports whether a
// trigger was replaced.
func (e *Executor) Rearm(ctx context.Context, scheduleID, deviceID, hhmm string, isOn bool) (rearmed bool, err error) {
	return e.arm(ctx, scheduleID, deviceID, hhmm, isOn, true)
}

func (e *Executor) arm(ctx context.Context, scheduleID, deviceID, hhmm string, isOn, existingOnly bool) (bool, error) {
	hour, minute, err := ParseTime(hhmm)
	if err != nil {
		return false, err
	}

	device, err := e.devices.FindByID(ctx, deviceID)
	if err != nil {
		return false, fmt.Errorf("scheduler: resolve device %s: %w", deviceID, err)
	}
	if device == nil {
		return false, fmt.Errorf("%w: %s", ErrDeviceNotFound, deviceID)
	}

	sched, err := cron.ParseStandard(fmt.Sprintf("%d %d * * *", minute, hour))
	if err != nil {
		return false, fmt.Errorf("scheduler: build schedule %s: %w", scheduleID, err)
	}

	t := Trigger{
		ScheduleID: scheduleID,
		DeviceID:   deviceID,
		GPIONumber: device.GPIONumber,
		Hour:       hour,
		Minute:     minute,
		IsOn:       isOn,
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	old, replaced := e.entries[scheduleID]
	if existingOnly && !replaced {
		return false, nil
	}

	e.gen++
	gen := e.gen
	cronID := e.cron.Schedule(sched, cron.FuncJob(func() { e.fire(gen, t) }))
	if replaced {
		e.cron.Remove(old.cronID)
	}
	e.entries[scheduleID] = &entry{trigger: t, schedule: sched, cronID: cronID, gen: gen}
	metrics.SetTriggersArmed(len(e.entries))

	e.logger.Info("schedule armed",
		"schedule_id", scheduleID,
		"device_id", deviceID,
		"gpio", t.GPIONumber,
		"time", t.Time(),
		"is_on", isOn,
		"replaced", replaced)
	return replaced, nil
}

// Remove disarms scheduleID. A firing already in progress may still complete.
func (e *Executor) Remove(scheduleID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	ent, ok := e.entries[scheduleID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrScheduleNotFound, scheduleID)
	}
	e.cron.Remove(ent.cronID)
	delete(e.entries, scheduleID)
	metrics.SetTriggersArmed(len(e.entries))

	e.logger.Info("schedule disarmed", "schedule_id", scheduleID, "device_id", ent.trigger.DeviceID)
	return nil
}

// RemoveByDevice disarms every trigger of deviceID, including ones armed after
// the caller last listed the device's schedules. It returns the removed ids.
func (e *Executor) RemoveByDevice(deviceID string) []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	var removed []string
	for id, ent := range e.entries {
		if ent.trigger.DeviceID != deviceID {
			continue
		}
		e.cron.Remove(ent.cronID)
		delete(e.entries, id)
		removed = append(removed, id)
	}
	sort.Strings(removed)
	if len(removed) > 0 {
		metrics.SetTriggersArmed(len(e.entries))
		e.logger.Info("device schedules disarmed", "device_id", deviceID, "count", len(removed))
	}
	return removed
}

// Trigger returns the armed trigger for scheduleID.
func (e *Executor) Trigger(scheduleID string) (Trigger, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ent, ok := e.entries[scheduleID]
	if !ok {
		return Trigger{}, false
	}
	return e.view(ent), true
}

// Triggers returns a snapshot of every armed trigger ordered by time of day.
func (e *Executor) Triggers() []Trigger {
	e.mu.Lock()
	out := make([]Trigger, 0, len(e.entries))
	for _, ent := range e.entries {
		out = append(out, e.view(ent))
	}
	e.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Hour != out[j].Hour {
			return out[i].Hour < out[j].Hour
		}
		if out[i].Minute != out[j].Minute {
			return out[i].Minute < out[j].Minute
		}
		return out[i].ScheduleID < out[j].ScheduleID
	})
	return out
}

// Len returns the number of armed triggers.
func (e *Executor) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.entries)
}

// view fills NextRun. Caller holds e.mu.
func (e *Executor) view(ent *entry) Trigger {
	t := ent.trigger
	t.NextRun = ent.schedule.Next(e.now().In(e.loc))
	return t
}

// current reports whether gen is still the armed generation for id.
func (e *Executor) current(id string, gen uint64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	ent, ok := e.entries[id]
	return ok && ent.gen == gen
}

// fire runs one scheduled action. Errors and panics stop here: the trigger
// stays armed and the next occurrence is the only retry.
func (e *Executor) fire(gen uint64, t Trigger) {
	defer func() {
		if r := recover(); r != nil {
			metrics.IncFirings("error")
			e.logger.Error("scheduled action panicked",
				"schedule_id", t.ScheduleID,
				"device_id", t.DeviceID,
				"gpio", t.GPIONumber,
				"panic", r)
		}
	}()

	if !e.current(t.ScheduleID, gen) {
		metrics.IncFirings("skipped")
		e.logger.Debug("stale trigger skipped", "schedule_id", t.ScheduleID)
		return
	}

	var err error
	if t.IsOn {
		err = e.pins.TurnOn(t.GPIONumber)
	} else {
		err = e.pins.TurnOff(t.GPIONumber)
	}

	ev := FireEvent{
		ScheduleID: t.ScheduleID,
		DeviceID:   t.DeviceID,
		DeviceName: e.deviceName(t.DeviceID),
		GPIONumber: t.GPIONumber,
		IsOn:       t.IsOn,
		At:         e.now().In(e.loc),
		Err:        err,
	}

	if err != nil {
		metrics.IncFirings("error")
		e.logger.Warn("scheduled action failed",
			"schedule_id", t.ScheduleID,
			"device_id", t.DeviceID,
			"device_name", ev.DeviceName,
			"gpio", t.GPIONumber,
			"is_on", t.IsOn,
			"error", err)
	} else {
		metrics.IncFirings("ok")
		metrics.IncPinWrites("schedule", t.IsOn)
		e.logger.Info("scheduled action executed",
			"schedule_id", t.ScheduleID,
			"device_id", t.DeviceID,
			"device_name", ev.DeviceName,
			"gpio", t.GPIONumber,
			"is_on", t.IsOn)
	}

	if len(e.hooks) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, h := range e.hooks {
		h(ctx, ev)
	}
}

// deviceName looks the name up for log output only; failures fall back to the id.
func (e *Executor) deviceName(deviceID string) string {
	ctx, cancel := context.WithTimeout(context.Background(), e.lookupTimeout)
	defer cancel()
	d, err := e.devices.FindByID(ctx, deviceID)
	if err != nil || d == nil {
		return deviceID
	}
	return d.DeviceName
}
