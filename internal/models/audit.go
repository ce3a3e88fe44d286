package models

import "time"

// Audit actions.
const (
	AuditRegister       = "register"
	AuditUpdate         = "update"
	AuditDelete         = "delete"
	AuditTurnOn         = "turn_on"
	AuditTurnOff        = "turn_off"
	AuditScheduleCreate = "schedule_create"
	AuditScheduleDelete = "schedule_delete"
	AuditScheduleFire   = "schedule_fire"
)

// AuditEntry represents one audit log row.
type AuditEntry struct {
	ID           string    `json:"id"`
	Action       string    `json:"action"`
	ResourceType string    `json:"resource_type"` // device, schedule, gpio
	ResourceID   string    `json:"resource_id"`
	Details      string    `json:"details,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}
