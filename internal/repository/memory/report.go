package memory

import (
	"context"
	"sort"

	"fleettrack/internal/clock"
	"fleettrack/internal/domain"
	"fleettrack/internal/repository"
)

// ReportRepository is an in-memory repository.ReportRepository.
type ReportRepository struct {
	s *Store
}

func matches(ws domain.WorkSession, f domain.ReportFilter) bool {
	if f.DriverID != "" && ws.DriverID != f.DriverID {
		return false
	}
	if f.VehicleID != "" && ws.VehicleID != f.VehicleID {
		return false
	}
	return true
}

// CountEventsByDay returns passenger event counts per local date.
func (r *ReportRepository) CountEventsByDay(_ context.Context, w clock.Window, f domain.ReportFilter) ([]domain.DayCount, error) {
	if err := r.s.takeFailure(OpCountEventsByDay); err != nil {
		return nil, err
	}

	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	byDay := make(map[clock.Date]int)
	for _, e := range r.s.data.events {
		ws, ok := r.s.data.sessions[e.SessionID]
		if !ok || !matches(ws, f) || !w.Contains(e.CreatedAt) {
			continue
		}
		byDay[w.DateOf(e.CreatedAt)]++
	}

	out := make([]domain.DayCount, 0, len(byDay))
	for d, n := range byDay {
		out = append(out, domain.DayCount{Date: d, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

// CountEventsBySession returns passenger event counts per owning session.
func (r *ReportRepository) CountEventsBySession(_ context.Context, w clock.Window, f domain.ReportFilter) ([]domain.SessionCount, error) {
	if err := r.s.takeFailure(OpCountEventsBySession); err != nil {
		return nil, err
	}

	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	bySession := make(map[string]int)
	for _, e := range r.s.data.events {
		ws, ok := r.s.data.sessions[e.SessionID]
		if !ok || !matches(ws, f) || !w.Contains(e.CreatedAt) {
			continue
		}
		bySession[e.SessionID]++
	}

	out := make([]domain.SessionCount, 0, len(bySession))
	for id, n := range bySession {
		ws := r.s.data.sessions[id]
		out = append(out, domain.SessionCount{
			SessionID:   ws.ID,
			DriverID:    ws.DriverID,
			DriverName:  r.s.data.drivers[ws.DriverID].Name,
			VehicleID:   ws.VehicleID,
			PlateNumber: r.s.data.vehicles[ws.VehicleID].PlateNumber,
			Count:       n,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		return r.s.data.sessions[out[i].SessionID].StartedAt.Before(r.s.data.sessions[out[j].SessionID].StartedAt)
	})
	return out, nil
}

// ListOverlappingSessions returns sessions overlapping the window.
func (r *ReportRepository) ListOverlappingSessions(_ context.Context, w clock.Window, f domain.ReportFilter) ([]domain.SessionDetail, error) {
	if err := r.s.takeFailure(OpListOverlappingSessions); err != nil {
		return nil, err
	}

	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []domain.SessionDetail
	for _, ws := range r.s.data.sessions {
		if !matches(ws, f) || !w.Overlaps(ws.StartedAt, ws.EndedAt) {
			continue
		}
		out = append(out, domain.SessionDetail{
			SessionID:      ws.ID,
			DriverID:       ws.DriverID,
			DriverName:     r.s.data.drivers[ws.DriverID].Name,
			VehicleID:      ws.VehicleID,
			PlateNumber:    r.s.data.vehicles[ws.VehicleID].PlateNumber,
			StartedAt:      ws.StartedAt,
			EndedAt:        ws.EndedAt,
			PassengerCount: ws.PassengerCount,
			Status:         ws.Status,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out, nil
}

var _ repository.ReportRepository = (*ReportRepository)(nil)
