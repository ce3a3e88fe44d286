package gpio

import (
	"fmt"
	"log/slog"
	"sync"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// Periph drives BCM-numbered pins through periph.io.
//
// Pins the host cannot resolve (or every pin, when host init failed) fall back
// to in-memory state so the API keeps working on boards without a driver.
type Periph struct {
	mu       sync.Mutex
	pins     map[int]gpio.PinOut
	state    map[int]bool
	fallback *Mock
	hwReady  bool
	logger   *slog.Logger
	warned   map[int]bool

	lookup func(name string) gpio.PinIO
}

// NewPeriph initialises the periph.io host drivers. Initialisation failure is
// logged and leaves the controller in fallback mode rather than failing.
func NewPeriph(logger *slog.Logger) *Periph {
	p := &Periph{
		pins:     make(map[int]gpio.PinOut),
		state:    make(map[int]bool),
		fallback: NewMock(),
		logger:   logger,
		warned:   make(map[int]bool),
		lookup:   gpioreg.ByName,
	}
	if _, err := host.Init(); err != nil {
		logger.Warn("periph host init failed, gpio runs in simulation", "error", err)
		return p
	}
	p.hwReady = true
	return p
}

// Hardware reports whether the periph.io host drivers loaded.
func (p *Periph) Hardware() bool {
	return p.hwReady
}

func (p *Periph) Setup(pin int) error {
	if err := checkPin(pin); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	out, ok := p.resolve(pin)
	if !ok {
		return p.fallback.Setup(pin)
	}
	return p.initLow(pin, out)
}

// initLow drives a pin seen for the first time low. Caller holds p.mu.
func (p *Periph) initLow(pin int, out gpio.PinOut) error {
	if _, seen := p.state[pin]; seen {
		return nil
	}
	if err := out.Out(gpio.Low); err != nil {
		return fmt.Errorf("%w: setup pin %d: %v", ErrHardware, pin, err)
	}
	p.state[pin] = false
	return nil
}

func (p *Periph) TurnOn(pin int) error  { return p.write(pin, true) }
func (p *Periph) TurnOff(pin int) error { return p.write(pin, false) }

func (p *Periph) Status(pin int) (bool, error) {
	if err := checkPin(pin); err != nil {
		return false, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	out, ok := p.resolve(pin)
	if !ok {
		return p.fallback.Status(pin)
	}
	if err := p.initLow(pin, out); err != nil {
		return false, err
	}
	return p.state[pin], nil
}

func (p *Periph) write(pin int, on bool) error {
	if err := checkPin(pin); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	out, ok := p.resolve(pin)
	if !ok {
		return p.fallback.set(pin, on)
	}
	level := gpio.Low
	if on {
		level = gpio.High
	}
	if err := out.Out(level); err != nil {
		return fmt.Errorf("%w: pin %d: %v", ErrHardware, pin, err)
	}
	p.state[pin] = on
	return nil
}

// resolve returns the cached pin handle. Caller holds p.mu.
func (p *Periph) resolve(pin int) (gpio.PinOut, bool) {
	if out, ok := p.pins[pin]; ok {
		return out, true
	}
	if !p.hwReady {
		return nil, false
	}
	name := fmt.Sprintf("GPIO%d", pin)
	io := p.lookup(name)
	if io == nil {
		if !p.warned[pin] {
			p.logger.Warn("gpio pin not found on host, simulating", "pin", pin, "name", name)
			p.warned[pin] = true
		}
		return nil, false
	}
	p.pins[pin] = io
	return io, true
}
