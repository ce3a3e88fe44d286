package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/crucial707/aquamarine/internal/gpio"
	"github.com/crucial707/aquamarine/internal/metrics"
	"github.com/crucial707/aquamarine/internal/models"
)

// PinState is the result of a raw pin operation.
type PinState struct {
	GPIONumber int  `json:"gpio_number"`
	IsOn       bool `json:"is_on"`
}

// GPIOService drives pins directly, without a registered device.
type GPIOService struct {
	Pins   gpio.Controller
	Audit  AuditLogger
	Logger *slog.Logger
}

// On switches pin on.
func (s *GPIOService) On(ctx context.Context, pin int) (*PinState, error) {
	return s.set(ctx, pin, true)
}

// Off switches pin off.
func (s *GPIOService) Off(ctx context.Context, pin int) (*PinState, error) {
	return s.set(ctx, pin, false)
}

// Status reads pin; a pin never used before reads off.
func (s *GPIOService) Status(_ context.Context, pin int) (*PinState, error) {
	on, err := s.Pins.Status(pin)
	if err != nil {
		return nil, fmt.Errorf("read gpio %d: %w", pin, err)
	}
	return &PinState{GPIONumber: pin, IsOn: on}, nil
}

func (s *GPIOService) set(ctx context.Context, pin int, on bool) (*PinState, error) {
	var err error
	if on {
		err = s.Pins.TurnOn(pin)
	} else {
		err = s.Pins.TurnOff(pin)
	}
	if err != nil {
		return nil, fmt.Errorf("switch gpio %d: %w", pin, err)
	}
	metrics.IncPinWrites("gpio", on)

	action := models.AuditTurnOff
	if on {
		action = models.AuditTurnOn
	}
	audit(ctx, s.Audit, s.Logger, action, "gpio", fmt.Sprint(pin), "")
	return &PinState{GPIONumber: pin, IsOn: on}, nil
}
