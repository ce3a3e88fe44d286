package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/crucial707/aquamarine/internal/models"
	"github.com/crucial707/aquamarine/internal/scheduler"
)

// ScheduleService stores schedules and keeps the trigger table in step with them.
type ScheduleService struct {
	Devices   DeviceStore
	Schedules ScheduleStore
	Scheduler Scheduler
	Audit     AuditLogger
	Logger    *slog.Logger
	// Now defaults to time.Now in UTC.
	Now func() time.Time
}

func (s *ScheduleService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

// Create stores a schedule and arms its trigger. If arming fails the stored
// row is deleted again and the arm error is returned.
func (s *ScheduleService) Create(ctx context.Context, deviceID, hhmm string, isOn bool) (*models.Schedule, error) {
	normalized, err := scheduler.NormalizeTime(hhmm)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	d, err := s.Devices.FindByID(ctx, deviceID)
	if err != nil {
		return nil, fmt.Errorf("find device: %w", err)
	}
	if d == nil {
		return nil, ErrDeviceNotFound
	}

	saved, err := s.Schedules.Save(ctx, models.Schedule{
		ScheduleID: uuid.New().String(),
		DeviceID:   deviceID,
		Schedule:   normalized,
		IsOn:       isOn,
		CreatedAt:  s.now(),
	})
	if err != nil {
		return nil, fmt.Errorf("save schedule: %w", err)
	}

	if _, err := s.Scheduler.Add(ctx, saved.ScheduleID, deviceID, normalized, isOn); err != nil {
		if _, derr := s.Schedules.Delete(ctx, saved.ScheduleID); derr != nil {
			logger(s.Logger).Error("compensating delete failed; stored schedule has no trigger",
				"schedule_id", saved.ScheduleID, "device_id", deviceID, "error", derr)
		}
		return nil, armError(err)
	}

	audit(ctx, s.Audit, s.Logger, models.AuditScheduleCreate, "schedule", saved.ScheduleID,
		fmt.Sprintf("device=%s time=%s is_on=%t", deviceID, normalized, isOn))
	logger(s.Logger).Info("schedule created", "schedule_id", saved.ScheduleID, "device_id", deviceID, "time", normalized, "is_on", isOn)
	return saved, nil
}

func armError(err error) error {
	switch {
	case errors.Is(err, scheduler.ErrDeviceNotFound):
		return ErrDeviceNotFound
	case errors.Is(err, scheduler.ErrInvalidTimeFormat):
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	return fmt.Errorf("arm schedule: %w", err)
}

// ListByDevice returns the device's schedules ordered by time of day.
func (s *ScheduleService) ListByDevice(ctx context.Context, deviceID string) ([]models.Schedule, error) {
	d, err := s.Devices.FindByID(ctx, deviceID)
	if err != nil {
		return nil, fmt.Errorf("find device: %w", err)
	}
	if d == nil {
		return nil, ErrDeviceNotFound
	}
	list, err := s.Schedules.FindByDevice(ctx, deviceID)
	if err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	if list == nil {
		list = []models.Schedule{}
	}
	return list, nil
}

// Get returns one schedule.
func (s *ScheduleService) Get(ctx context.Context, id string) (*models.Schedule, error) {
	sc, err := s.Schedules.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("find schedule: %w", err)
	}
	if sc == nil {
		return nil, ErrScheduleNotFound
	}
	return sc, nil
}

// Delete removes the stored schedule, then its trigger. A trigger that was
// already gone is logged and does not fail the delete.
func (s *ScheduleService) Delete(ctx context.Context, id string) error {
	ok, err := s.Schedules.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("delete schedule: %w", err)
	}
	if !ok {
		return ErrScheduleNotFound
	}
	if err := s.Scheduler.Remove(id); err != nil {
		logger(s.Logger).Warn("schedule deleted but trigger removal failed", "schedule_id", id, "error", err)
	}
	audit(ctx, s.Audit, s.Logger, models.AuditScheduleDelete, "schedule", id, "")
	logger(s.Logger).Info("schedule deleted", "schedule_id", id)
	return nil
}

// Triggers returns the live trigger table.
func (s *ScheduleService) Triggers() []scheduler.Trigger {
	return s.Scheduler.Triggers()
}

// ReconcileResult counts the outcome of Reconcile.
type ReconcileResult struct {
	Armed   int `json:"armed"`
	Skipped int `json:"skipped"`
}

// Reconcile arms a trigger for every stored schedule. Rows that cannot be
// armed, such as schedules whose device is gone, are logged and skipped.
func (s *ScheduleService) Reconcile(ctx context.Context) (ReconcileResult, error) {
	var res ReconcileResult
	list, err := s.Schedules.FindAll(ctx)
	if err != nil {
		return res, fmt.Errorf("load schedules: %w", err)
	}
	for _, sc := range list {
		if _, err := s.Scheduler.Add(ctx, sc.ScheduleID, sc.DeviceID, sc.Schedule, sc.IsOn); err != nil {
			res.Skipped++
			logger(s.Logger).Warn("failed to restore schedule",
				"schedule_id", sc.ScheduleID, "device_id", sc.DeviceID, "time", sc.Schedule, "error", err)
			continue
		}
		res.Armed++
	}
	logger(s.Logger).Info("schedules restored", "armed", res.Armed, "skipped", res.Skipped)
	return res, nil
}
