package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/crucial707/aquamarine/internal/models"
	"github.com/crucial707/aquamarine/internal/mqtt"
	"github.com/crucial707/aquamarine/internal/scheduler"
)

// NewFireRecorder returns an executor hook that audits every firing and
// publishes the new state of successful ones.
func NewFireRecorder(a AuditLogger, events mqtt.Publisher, l *slog.Logger) scheduler.FireHook {
	return func(ctx context.Context, ev scheduler.FireEvent) {
		details := fmt.Sprintf("device=%s gpio=%d is_on=%t", ev.DeviceID, ev.GPIONumber, ev.IsOn)
		if ev.Err != nil {
			details += " error=" + ev.Err.Error()
		}
		audit(ctx, a, l, models.AuditScheduleFire, "schedule", ev.ScheduleID, details)

		if ev.Err != nil || events == nil {
			return
		}
		err := events.PublishState(ctx, mqtt.DeviceState{
			DeviceID:   ev.DeviceID,
			DeviceName: ev.DeviceName,
			GPIONumber: ev.GPIONumber,
			IsOn:       ev.IsOn,
			Source:     "schedule",
			Timestamp:  ev.At.UTC(),
		})
		if err != nil {
			logger(l).Warn("state publish failed", "device_id", ev.DeviceID, "schedule_id", ev.ScheduleID, "error", err)
		}
	}
}
