package domain

// VehicleStatus represents the activation status of a vehicle.
type VehicleStatus string

const (
	VehicleStatusActive      VehicleStatus = "active"
	VehicleStatusMaintenance VehicleStatus = "maintenance"
)

// Vehicle represents a fleet vehicle.
type Vehicle struct {
	ID          string
	PlateNumber string
	Status      VehicleStatus
}

// IsActive reports whether the vehicle is in service.
func (v *Vehicle) IsActive() bool {
	return v.Status == VehicleStatusActive
}
