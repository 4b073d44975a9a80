package memory

import (
	"context"

	"fleettrack/internal/domain"
	"fleettrack/internal/repository"
)

// DriverRepository is an in-memory repository.DriverRepository.
type DriverRepository struct {
	s *Store
}

// GetByID retrieves a driver by ID.
func (r *DriverRepository) GetByID(_ context.Context, id string) (*domain.Driver, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	d, ok := r.s.data.drivers[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &d, nil
}

// GetByRFIDCode retrieves a driver by RFID credential.
func (r *DriverRepository) GetByRFIDCode(_ context.Context, rfidCode string) (*domain.Driver, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, d := range r.s.data.drivers {
		if d.RFIDCode == rfidCode {
			d := d
			return &d, nil
		}
	}
	return nil, repository.ErrNotFound
}

// LockByID is GetByID; the transaction lock already serializes writers.
func (r *DriverRepository) LockByID(ctx context.Context, id string) (*domain.Driver, error) {
	return r.GetByID(ctx, id)
}

// LockByRFIDCode is GetByRFIDCode; the transaction lock already serializes writers.
func (r *DriverRepository) LockByRFIDCode(ctx context.Context, rfidCode string) (*domain.Driver, error) {
	return r.GetByRFIDCode(ctx, rfidCode)
}

// VehicleRepository is an in-memory repository.VehicleRepository.
type VehicleRepository struct {
	s *Store
}

// GetByID retrieves a vehicle by ID.
func (r *VehicleRepository) GetByID(_ context.Context, id string) (*domain.Vehicle, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	v, ok := r.s.data.vehicles[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &v, nil
}

// LockByID is GetByID; the transaction lock already serializes writers.
func (r *VehicleRepository) LockByID(ctx context.Context, id string) (*domain.Vehicle, error) {
	return r.GetByID(ctx, id)
}

// DeviceRepository is an in-memory repository.DeviceRepository.
type DeviceRepository struct {
	s *Store
}

// GetByID retrieves a device by ID.
func (r *DeviceRepository) GetByID(_ context.Context, id string) (*domain.Device, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	d, ok := r.s.data.devices[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &d, nil
}

var (
	_ repository.DriverRepository  = (*DriverRepository)(nil)
	_ repository.VehicleRepository = (*VehicleRepository)(nil)
	_ repository.DeviceRepository  = (*DeviceRepository)(nil)
)
