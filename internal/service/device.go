package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/crucial707/aquamarine/internal/gpio"
	"github.com/crucial707/aquamarine/internal/metrics"
	"github.com/crucial707/aquamarine/internal/models"
	"github.com/crucial707/aquamarine/internal/mqtt"
	"github.com/crucial707/aquamarine/internal/repo"
)

// DeviceService manages devices and switches their pins.
type DeviceService struct {
	Devices   DeviceStore
	Schedules ScheduleStore
	Pins      gpio.Controller
	Scheduler Scheduler
	Audit     AuditLogger
	Events    mqtt.Publisher
	Logger    *slog.Logger
}

// Register creates a device bound to pin and initialises the pin to off.
func (s *DeviceService) Register(ctx context.Context, name string, pin int) (*models.Device, error) {
	if err := s.checkPinFree(ctx, pin, ""); err != nil {
		return nil, err
	}

	id := uuid.New().String()
	if err := s.Devices.Create(ctx, id, name, pin); err != nil {
		if errors.Is(err, repo.ErrPinInUse) {
			return nil, &PinInUseError{GPIONumber: pin}
		}
		return nil, fmt.Errorf("create device: %w", err)
	}
	if err := s.Pins.Setup(pin); err != nil {
		logger(s.Logger).Warn("gpio setup failed", "device_id", id, "gpio", pin, "error", err)
	}

	d, err := s.Devices.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load device: %w", err)
	}
	if d == nil {
		return nil, ErrDeviceNotFound
	}
	audit(ctx, s.Audit, s.Logger, models.AuditRegister, "device", id, fmt.Sprintf("name=%s gpio=%d", name, pin))
	logger(s.Logger).Info("device registered", "device_id", id, "device_name", name, "gpio", pin)
	return d, nil
}

// List returns every device with the live state of its pin.
func (s *DeviceService) List(ctx context.Context) ([]models.DeviceStatus, error) {
	devices, err := s.Devices.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	out := make([]models.DeviceStatus, 0, len(devices))
	for _, d := range devices {
		on, err := s.Pins.Status(d.GPIONumber)
		if err != nil {
			return nil, fmt.Errorf("read gpio %d: %w", d.GPIONumber, err)
		}
		out = append(out, models.DeviceStatus{Device: d, IsOn: on})
	}
	return out, nil
}

// Get returns one device.
func (s *DeviceService) Get(ctx context.Context, id string) (*models.Device, error) {
	d, err := s.Devices.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("find device: %w", err)
	}
	if d == nil {
		return nil, ErrDeviceNotFound
	}
	return d, nil
}

// Status returns the device with the live state of its pin.
func (s *DeviceService) Status(ctx context.Context, id string) (*models.DeviceStatus, error) {
	d, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	on, err := s.Pins.Status(d.GPIONumber)
	if err != nil {
		return nil, fmt.Errorf("read gpio %d: %w", d.GPIONumber, err)
	}
	return &models.DeviceStatus{Device: *d, IsOn: on}, nil
}

// TurnOn switches the device's pin on.
func (s *DeviceService) TurnOn(ctx context.Context, id string) (*models.DeviceStatus, error) {
	return s.set(ctx, id, true)
}

// TurnOff switches the device's pin off.
func (s *DeviceService) TurnOff(ctx context.Context, id string) (*models.DeviceStatus, error) {
	return s.set(ctx, id, false)
}

func (s *DeviceService) set(ctx context.Context, id string, on bool) (*models.DeviceStatus, error) {
	d, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if on {
		err = s.Pins.TurnOn(d.GPIONumber)
	} else {
		err = s.Pins.TurnOff(d.GPIONumber)
	}
	if err != nil {
		return nil, fmt.Errorf("switch gpio %d: %w", d.GPIONumber, err)
	}
	metrics.IncPinWrites("device", on)

	if err := s.Devices.UpdateTimestamp(ctx, id); err != nil {
		return nil, fmt.Errorf("touch device: %w", err)
	}
	if fresh, err := s.Devices.FindByID(ctx, id); err == nil && fresh != nil {
		d = fresh
	}

	action := models.AuditTurnOff
	if on {
		action = models.AuditTurnOn
	}
	audit(ctx, s.Audit, s.Logger, action, "device", id, fmt.Sprintf("gpio=%d", d.GPIONumber))
	s.publish(ctx, *d, on, "device")
	return &models.DeviceStatus{Device: *d, IsOn: on}, nil
}

// Update renames the device and/or moves it to another pin. At least one of
// name and pin must be set. Moving the pin re-arms the device's schedules so
// later firings drive the new pin.
func (s *DeviceService) Update(ctx context.Context, id string, name *string, pin *int) (*models.Device, error) {
	if name == nil && pin == nil {
		return nil, fmt.Errorf("%w: nothing to update", ErrInvalidInput)
	}
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	pinChanged := pin != nil && *pin != current.GPIONumber
	if pinChanged {
		if err := s.checkPinFree(ctx, *pin, id); err != nil {
			return nil, err
		}
	}

	ok, err := s.Devices.Update(ctx, id, name, pin)
	if errors.Is(err, repo.ErrPinInUse) && pin != nil {
		return nil, &PinInUseError{GPIONumber: *pin}
	}
	if err != nil {
		return nil, fmt.Errorf("update device: %w", err)
	}
	if !ok {
		return nil, ErrDeviceNotFound
	}

	if pinChanged {
		if err := s.Pins.Setup(*pin); err != nil {
			logger(s.Logger).Warn("gpio setup failed", "device_id", id, "gpio", *pin, "error", err)
		}
		s.rearm(ctx, id)
	}

	d, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	audit(ctx, s.Audit, s.Logger, models.AuditUpdate, "device", id, fmt.Sprintf("name=%s gpio=%d", d.DeviceName, d.GPIONumber))
	return d, nil
}

// rearm replaces the triggers of the device's schedules so they capture the
// device's current pin. Only still-armed triggers are replaced. Failures are
// logged; the rows stay stored.
func (s *DeviceService) rearm(ctx context.Context, deviceID string) {
	if s.Scheduler == nil || s.Schedules == nil {
		return
	}
	list, err := s.Schedules.FindByDevice(ctx, deviceID)
	if err != nil {
		logger(s.Logger).Warn("re-arm: list schedules failed", "device_id", deviceID, "error", err)
		return
	}
	for _, sc := range list {
		if _, err := s.Scheduler.Rearm(ctx, sc.ScheduleID, sc.DeviceID, sc.Schedule, sc.IsOn); err != nil {
			logger(s.Logger).Warn("re-arm failed", "schedule_id", sc.ScheduleID, "device_id", deviceID, "error", err)
		}
	}
}

// Delete removes the device together with its schedules and their triggers.
// Rows go first; triggers are then disarmed by device, not by the rows listed.
func (s *DeviceService) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}

	if s.Schedules != nil {
		if _, err := s.Schedules.DeleteByDevice(ctx, id); err != nil {
			return fmt.Errorf("delete schedules: %w", err)
		}
	}

	ok, err := s.Devices.Delete(ctx, id)
	// The rows are gone even when the device delete fails, so disarm either way.
	if s.Scheduler != nil {
		if removed := s.Scheduler.RemoveByDevice(id); len(removed) > 0 {
			logger(s.Logger).Info("device triggers disarmed", "device_id", id, "schedule_ids", removed)
		}
	}
	if err != nil {
		return fmt.Errorf("delete device: %w", err)
	}
	if !ok {
		return ErrDeviceNotFound
	}
	audit(ctx, s.Audit, s.Logger, models.AuditDelete, "device", id, "")
	logger(s.Logger).Info("device deleted", "device_id", id)
	return nil
}

// checkPinFree fails with a PinInUseError when another device than exceptID owns pin.
func (s *DeviceService) checkPinFree(ctx context.Context, pin int, exceptID string) error {
	devices, err := s.Devices.FindAll(ctx)
	if err != nil {
		return fmt.Errorf("list devices: %w", err)
	}
	for _, d := range devices {
		if d.GPIONumber == pin && d.DeviceID != exceptID {
			return &PinInUseError{GPIONumber: pin}
		}
	}
	return nil
}

func (s *DeviceService) publish(ctx context.Context, d models.Device, on bool, source string) {
	if s.Events == nil {
		return
	}
	err := s.Events.PublishState(ctx, mqtt.DeviceState{
		DeviceID:   d.DeviceID,
		DeviceName: d.DeviceName,
		GPIONumber: d.GPIONumber,
		IsOn:       on,
		Source:     source,
		Timestamp:  time.Now().UTC(),
	})
	if err != nil {
		logger(s.Logger).Warn("state publish failed", "device_id", d.DeviceID, "error", err)
	}
}
