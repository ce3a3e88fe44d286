package gpio

import "sync"

// Mock is an in-memory Controller for tests and machines without GPIO.
type Mock struct {
	mu    sync.Mutex
	state map[int]bool
}

// NewMock returns a Mock with no pins set up.
func NewMock() *Mock {
	return &Mock{state: make(map[int]bool)}
}

func (m *Mock) Setup(pin int) error {
	if err := checkPin(pin); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.state[pin]; !ok {
		m.state[pin] = false
	}
	return nil
}

func (m *Mock) TurnOn(pin int) error  { return m.set(pin, true) }
func (m *Mock) TurnOff(pin int) error { return m.set(pin, false) }

func (m *Mock) Status(pin int) (bool, error) {
	if err := checkPin(pin); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state[pin], nil
}

// Pins returns the pins that have been touched, with their state.
func (m *Mock) Pins() map[int]bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[int]bool, len(m.state))
	for p, on := range m.state {
		out[p] = on
	}
	return out
}

func (m *Mock) set(pin int, on bool) error {
	if err := checkPin(pin); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state[pin] = on
	return nil
}
