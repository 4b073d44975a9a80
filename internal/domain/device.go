package domain

import "time"

// DeviceStatus represents the connectivity of a tap terminal.
type DeviceStatus string

const (
	DeviceStatusOnline  DeviceStatus = "online"
	DeviceStatusOffline DeviceStatus = "offline"
)

// Device is a physical RFID terminal mounted in exactly one vehicle.
type Device struct {
	ID        string
	VehicleID string
	Status    DeviceStatus
}

// DevicePresence records when a terminal was last heard from.
type DevicePresence struct {
	DeviceID   string
	LastSeenAt time.Time
}
