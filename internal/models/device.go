package models

import "time"

// DeviceType classifies a terminal on the LAN.
type DeviceType string

const (
	DeviceDisplay  DeviceType = "display"
	DeviceCustomer DeviceType = "customer"
	DeviceWindow   DeviceType = "window"
	DeviceAdmin    DeviceType = "admin"
)

func ValidDeviceType(t DeviceType) bool {
	switch t {
	case DeviceDisplay, DeviceCustomer, DeviceWindow, DeviceAdmin:
		return true
	}
	return false
}

type DeviceStatus string

const (
	DeviceOnline  DeviceStatus = "online"
	DeviceOffline DeviceStatus = "offline"
	DeviceError   DeviceStatus = "error"
)

type Device struct {
	ID         int64        `json:"id"`
	DeviceID   string       `json:"device_id"`
	Name       string       `json:"name"`
	IPAddress  string       `json:"ip_address"`
	DeviceType DeviceType   `json:"device_type"`
	Status     DeviceStatus `json:"status"`
	LastSeen   time.Time    `json:"last_seen"`
	CreatedAt  time.Time    `json:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at"`
}

// DevicePrinter is a printer a device reported as locally reachable.
type DevicePrinter struct {
	ID          int64     `json:"id"`
	DeviceID    string    `json:"device_id"`
	PrinterID   string    `json:"printer_id"`
	PrinterName string    `json:"printer_name"`
	IsDefault   bool      `json:"is_default"`
	CreatedAt   time.Time `json:"created_at"`
}
