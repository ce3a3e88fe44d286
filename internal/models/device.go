package models

import "time"

// Device is a named output bound to exactly one GPIO pin.
type Device struct {
	DeviceID   string    `json:"device_id"`
	DeviceName string    `json:"device_name"`
	GPIONumber int       `json:"gpio_number"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// DeviceStatus is a device together with the live state of its pin.
type DeviceStatus struct {
	Device
	IsOn bool `json:"is_on"`
}
