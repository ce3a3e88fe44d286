package gpio

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// Driver names accepted by New.
const (
	DriverAuto   = "auto"
	DriverMock   = "mock"
	DriverPeriph = "periph"
)

var cpuinfoPath = "/proc/cpuinfo"

// New returns the Controller for driver. "auto" selects periph.io on a
// Raspberry Pi and the in-memory mock elsewhere.
func New(driver string, logger *slog.Logger) (Controller, error) {
	switch strings.ToLower(driver) {
	case DriverMock:
		logger.Info("gpio controller selected", "driver", DriverMock)
		return NewMock(), nil
	case DriverPeriph:
		logger.Info("gpio controller selected", "driver", DriverPeriph)
		return NewPeriph(logger), nil
	case DriverAuto, "":
		if IsRaspberryPi() {
			logger.Info("gpio controller selected", "driver", DriverPeriph, "reason", "raspberry pi detected")
			return NewPeriph(logger), nil
		}
		logger.Info("gpio controller selected", "driver", DriverMock, "reason", "not a raspberry pi")
		return NewMock(), nil
	default:
		return nil, fmt.Errorf("gpio: unknown driver %q", driver)
	}
}

// IsRaspberryPi reports whether /proc/cpuinfo names a BCM SoC or a Raspberry Pi.
func IsRaspberryPi() bool {
	b, err := os.ReadFile(cpuinfoPath)
	if err != nil {
		return false
	}
	info := string(b)
	return strings.Contains(info, "Raspberry Pi") || strings.Contains(info, "BCM")
}
