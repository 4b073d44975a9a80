package handler

import (
	"math"

	"fleettrack/internal/domain"
)

// SessionResponse is the HTTP representation of a work session.
type SessionResponse struct {
	ID             string `json:"id"`
	DriverID       string `json:"driver_id"`
	VehicleID      string `json:"vehicle_id"`
	Status         string `json:"status"`
	StartedAt      string `json:"started_at"`
	EndedAt        string `json:"ended_at,omitempty"`
	PassengerCount int    `json:"passenger_count"`
}

func newSessionResponse(s *domain.WorkSession) SessionResponse {
	return SessionResponse{
		ID:             s.ID,
		DriverID:       s.DriverID,
		VehicleID:      s.VehicleID,
		Status:         string(s.Status),
		StartedAt:      formatTime(s.StartedAt),
		EndedAt:        formatTime(s.EndedAt),
		PassengerCount: s.PassengerCount,
	}
}

// SessionDetailResponse is a session row on a report.
// Hours is null while the session is open.
type SessionDetailResponse struct {
	SessionID      string   `json:"session_id"`
	DriverID       string   `json:"driver_id"`
	DriverName     string   `json:"driver_name"`
	VehicleID      string   `json:"vehicle_id"`
	PlateNumber    string   `json:"plate_number"`
	Status         string   `json:"status"`
	StartedAt      string   `json:"started_at"`
	EndedAt        *string  `json:"ended_at"`
	PassengerCount int      `json:"passenger_count"`
	Hours          *float64 `json:"hours"`
}

func newSessionDetails(in []domain.SessionDetail) []SessionDetailResponse {
	out := make([]SessionDetailResponse, 0, len(in))
	for i := range in {
		d := &in[i]
		row := SessionDetailResponse{
			SessionID:      d.SessionID,
			DriverID:       d.DriverID,
			DriverName:     d.DriverName,
			VehicleID:      d.VehicleID,
			PlateNumber:    d.PlateNumber,
			Status:         string(d.Status),
			StartedAt:      formatTime(d.StartedAt),
			PassengerCount: d.PassengerCount,
		}
		if !d.EndedAt.IsZero() {
			ended := formatTime(d.EndedAt)
			row.EndedAt = &ended
		}
		if h := d.Hours(); h != nil {
			rounded := round2(*h)
			row.Hours = &rounded
		}
		out = append(out, row)
	}
	return out
}

// SessionCountResponse is a per-session passenger count on a daily report.
type SessionCountResponse struct {
	SessionID   string `json:"session_id"`
	DriverID    string `json:"driver_id"`
	DriverName  string `json:"driver_name"`
	VehicleID   string `json:"vehicle_id"`
	PlateNumber string `json:"plate_number"`
	Passengers  int    `json:"passengers"`
}

// DayCountResponse is one calendar date of a range report.
type DayCountResponse struct {
	Date       string `json:"date"`
	Passengers int    `json:"passengers"`
}

// DailyReportResponse is the HTTP response for a daily report.
type DailyReportResponse struct {
	Date            string                  `json:"date"`
	TotalPassengers int                     `json:"total_passengers"`
	BySession       []SessionCountResponse  `json:"by_session"`
	Sessions        []SessionDetailResponse `json:"sessions"`
	Degraded        bool                    `json:"degraded"`
}

func newDailyReportResponse(r *domain.DailyReport) DailyReportResponse {
	bySession := make([]SessionCountResponse, 0, len(r.BySession))
	for _, c := range r.BySession {
		bySession = append(bySession, SessionCountResponse{
			SessionID:   c.SessionID,
			DriverID:    c.DriverID,
			DriverName:  c.DriverName,
			VehicleID:   c.VehicleID,
			PlateNumber: c.PlateNumber,
			Passengers:  c.Count,
		})
	}

	return DailyReportResponse{
		Date:            r.Date.String(),
		TotalPassengers: r.TotalPassengers,
		BySession:       bySession,
		Sessions:        newSessionDetails(r.Sessions),
		Degraded:        r.Degraded,
	}
}

// RangeReportResponse is the HTTP response for range, weekly and monthly reports.
type RangeReportResponse struct {
	Start           string                  `json:"start"`
	End             string                  `json:"end"`
	Days            []DayCountResponse      `json:"days"`
	TotalPassengers int                     `json:"total_passengers"`
	Sessions        []SessionDetailResponse `json:"sessions"`
	Degraded        bool                    `json:"degraded"`
}

func newRangeReportResponse(r *domain.RangeReport) RangeReportResponse {
	days := make([]DayCountResponse, 0, len(r.Days))
	for _, d := range r.Days {
		days = append(days, DayCountResponse{Date: d.Date.String(), Passengers: d.Count})
	}

	return RangeReportResponse{
		Start:           r.Start.String(),
		End:             r.End.String(),
		Days:            days,
		TotalPassengers: r.TotalPassengers,
		Sessions:        newSessionDetails(r.Sessions),
		Degraded:        r.Degraded,
	}
}

// DriverReportResponse is the HTTP response for a per-driver report.
type DriverReportResponse struct {
	DriverID   string `json:"driver_id"`
	DriverName string `json:"driver_name"`
	RangeReportResponse
	TotalHours float64 `json:"total_hours"`
}

// VehicleReportResponse is the HTTP response for a per-vehicle report.
type VehicleReportResponse struct {
	VehicleID   string `json:"vehicle_id"`
	PlateNumber string `json:"plate_number"`
	RangeReportResponse
	TotalHours float64 `json:"total_hours"`
}

// round2 rounds to two decimals for display.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
