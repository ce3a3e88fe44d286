// Package service holds the device, schedule and raw GPIO operations behind the
// HTTP handlers. It keeps the persisted tables and the live trigger table in
// step: schedules are stored first and armed second, and a failed arm deletes
// the stored row again.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/crucial707/aquamarine/internal/models"
	"github.com/crucial707/aquamarine/internal/scheduler"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidInput = errors.New("invalid input")

	ErrDeviceNotFound   = fmt.Errorf("device %w", ErrNotFound)
	ErrScheduleNotFound = fmt.Errorf("schedule %w", ErrNotFound)
)

// PinInUseError reports a GPIO number already bound to another device.
type PinInUseError struct {
	GPIONumber int
}

func (e *PinInUseError) Error() string {
	return fmt.Sprintf("GPIO %d is already in use", e.GPIONumber)
}

func (e *PinInUseError) Is(target error) bool { return target == ErrConflict }

// DeviceStore is the device persistence used by the services.
type DeviceStore interface {
	Create(ctx context.Context, id, name string, pin int) error
	FindAll(ctx context.Context) ([]models.Device, error)
	FindByID(ctx context.Context, id string) (*models.Device, error)
	Update(ctx context.Context, id string, name *string, pin *int) (bool, error)
	Delete(ctx context.Context, id string) (bool, error)
	UpdateTimestamp(ctx context.Context, id string) error
}

// ScheduleStore is the schedule persistence used by the services.
type ScheduleStore interface {
	Save(ctx context.Context, s models.Schedule) (*models.Schedule, error)
	FindByDevice(ctx context.Context, deviceID string) ([]models.Schedule, error)
	FindAll(ctx context.Context) ([]models.Schedule, error)
	FindByID(ctx context.Context, id string) (*models.Schedule, error)
	Delete(ctx context.Context, id string) (bool, error)
	DeleteByDevice(ctx context.Context, deviceID string) (int64, error)
}

// Scheduler is the live trigger table.
type Scheduler interface {
	Add(ctx context.Context, scheduleID, deviceID, hhmm string, isOn bool) (bool, error)
	Rearm(ctx context.Context, scheduleID, deviceID, hhmm string, isOn bool) (bool, error)
	Remove(scheduleID string) error
	RemoveByDevice(deviceID string) []string
	Trigger(scheduleID string) (scheduler.Trigger, bool)
	Triggers() []scheduler.Trigger
}

// AuditLogger records mutations.
type AuditLogger interface {
	Log(ctx context.Context, action, resourceType, resourceID, details string) error
}

func logger(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.Default()
	}
	return l
}

// audit writes an entry and logs a failure instead of returning it; the
// mutation it describes has already happened.
func audit(ctx context.Context, a AuditLogger, l *slog.Logger, action, resourceType, resourceID, details string) {
	if a == nil {
		return
	}
	if err := a.Log(ctx, action, resourceType, resourceID, details); err != nil {
		logger(l).Warn("audit log write failed", "action", action, "resource_id", resourceID, "error", err)
	}
}
