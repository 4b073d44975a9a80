package domain

// DriverStatus represents the activation status of a driver.
type DriverStatus string

const (
	DriverStatusActive   DriverStatus = "active"
	DriverStatusInactive DriverStatus = "inactive"
)

// Driver represents a driver who clocks in and out with an RFID card.
type Driver struct {
	ID       string
	Name     string
	RFIDCode string
	Status   DriverStatus
}

// IsActive reports whether the driver may open sessions.
func (d *Driver) IsActive() bool {
	return d.Status == DriverStatusActive
}
