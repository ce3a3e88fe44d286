package models

import "time"

// Schedule is a daily rule: at Schedule ("HH:MM") set the device's pin to IsOn.
type Schedule struct {
	ScheduleID string    `json:"schedule_id"`
	DeviceID   string    `json:"device_id"`
	Schedule   string    `json:"schedule"`
	IsOn       bool      `json:"is_on"`
	CreatedAt  time.Time `json:"created_at"`
}
