package domain

import (
	"time"

	"fleettrack/internal/clock"
)

// DayCount is the number of passenger events on one local calendar date.
type DayCount struct {
	Date  clock.Date
	Count int
}

// SessionDetail is a work session joined with the names shown on reports.
type SessionDetail struct {
	SessionID      string
	DriverID       string
	DriverName     string
	VehicleID      string
	PlateNumber    string
	StartedAt      time.Time
	EndedAt        time.Time
	PassengerCount int
	Status         SessionStatus
}

// Hours returns the elapsed hours of a completed session, or nil while open.
func (d *SessionDetail) Hours() *float64 {
	if d.EndedAt.IsZero() {
		return nil
	}
	h := d.EndedAt.Sub(d.StartedAt).Hours()
	return &h
}

// SessionCount is the number of passenger events attributed to a session
// within a reporting window.
type SessionCount struct {
	SessionID   string
	DriverID    string
	DriverName  string
	VehicleID   string
	PlateNumber string
	Count       int
}

// ReportFilter restricts a report to one driver or one vehicle.
// Empty fields do not filter.
type ReportFilter struct {
	DriverID  string
	VehicleID string
}

// DailyReport aggregates one local calendar date.
type DailyReport struct {
	Date            clock.Date
	TotalPassengers int
	BySession       []SessionCount
	Sessions        []SessionDetail
	Degraded        bool
}

// RangeReport aggregates an inclusive range of local calendar dates.
type RangeReport struct {
	Start           clock.Date
	End             clock.Date
	Days            []DayCount
	TotalPassengers int
	Sessions        []SessionDetail
	Degraded        bool
}

// DriverReport is a RangeReport restricted to one driver.
type DriverReport struct {
	Driver     Driver
	Range      RangeReport
	TotalHours float64
}

// VehicleReport is a RangeReport restricted to one vehicle.
type VehicleReport struct {
	Vehicle    Vehicle
	Range      RangeReport
	TotalHours float64
}
