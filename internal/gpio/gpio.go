// Package gpio drives numbered binary output pins.
//
// Two controllers satisfy the same interface: Mock keeps pin state in memory
// and Periph drives real hardware through periph.io. New picks one at startup.
package gpio

import (
	"errors"
	"fmt"
)

var (
	// ErrHardware wraps failures reported by the pin driver.
	ErrHardware = errors.New("gpio hardware error")
	// ErrInvalidPin is returned for negative pin numbers.
	ErrInvalidPin = errors.New("invalid gpio pin")
)

// Controller switches output pins on and off.
//
// Setup is idempotent. Pins that were never set up are initialised to off on
// first use. Calls on the same pin are not serialised against each other.
type Controller interface {
	Setup(pin int) error
	TurnOn(pin int) error
	TurnOff(pin int) error
	Status(pin int) (bool, error)
}

func checkPin(pin int) error {
	if pin < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidPin, pin)
	}
	return nil
}
