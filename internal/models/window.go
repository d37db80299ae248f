package models

import "time"

// Window is a staffed counter. A window device binds to exactly one
// window row; the row survives the device going offline.
type Window struct {
	ID        int64     `json:"id"`
	ServiceID *int64    `json:"service_id,omitempty"`
	DeviceID  *string   `json:"device_id,omitempty"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
