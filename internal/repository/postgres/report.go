package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"fleettrack/internal/clock"
	"fleettrack/internal/domain"
	"fleettrack/internal/repository"
)

// ReportRepository is a PostgreSQL implementation of repository.ReportRepository.
// Date ranges arrive as instant bounds and the local offset as a parameter;
// nothing caller-supplied is interpolated into query text.
type ReportRepository struct {
	db *sql.DB
}

// NewReportRepository creates a new PostgreSQL report repository.
func NewReportRepository(db *sql.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

// localDateExpr converts a timestamptz column to the local calendar date
// using an offset in seconds bound at $3.
const localDateExpr = `((pe.created_at AT TIME ZONE 'UTC') + $3::int * INTERVAL '1 second')::date`

// filterClause restricts rows to a driver and/or vehicle, binding the
// driver id at $n and the vehicle id at $n+1. Empty ids match everything.
func filterClause(n int) string {
	return fmt.Sprintf(`
		AND ($%[1]d::text = '' OR ws.driver_id = $%[1]d::text)
		AND ($%[2]d::text = '' OR ws.vehicle_id = $%[2]d::text)
	`, n, n+1)
}

func offsetSeconds(w clock.Window) int {
	_, offset := w.From.Zone()
	return offset
}

// CountEventsByDay returns passenger event counts per local date.
func (r *ReportRepository) CountEventsByDay(ctx context.Context, window clock.Window, filter domain.ReportFilter) ([]domain.DayCount, error) {
	query := `
		SELECT ` + localDateExpr + ` AS day, COUNT(*)
		FROM passenger_events pe
		JOIN work_sessions ws ON ws.id = pe.session_id
		WHERE pe.created_at >= $1 AND pe.created_at < $2
		` + filterClause(4) + `
		GROUP BY day
		ORDER BY day
	`

	rows, err := querier(ctx, r.db).QueryContext(ctx, query,
		window.From, window.To, offsetSeconds(window), filter.DriverID, filter.VehicleID,
	)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var counts []domain.DayCount
	for rows.Next() {
		var day time.Time
		var count int
		if err := rows.Scan(&day, &count); err != nil {
			return nil, classify(err)
		}
		y, m, d := day.Date()
		counts = append(counts, domain.DayCount{Date: clock.NewDate(y, m, d), Count: count})
	}

	return counts, classify(rows.Err())
}

// CountEventsBySession returns passenger event counts per owning session.
func (r *ReportRepository) CountEventsBySession(ctx context.Context, window clock.Window, filter domain.ReportFilter) ([]domain.SessionCount, error) {
	query := `
		SELECT ws.id, ws.driver_id, COALESCE(d.name, ''), ws.vehicle_id, COALESCE(v.plate_number, ''), COUNT(pe.id)
		FROM passenger_events pe
		JOIN work_sessions ws ON ws.id = pe.session_id
		LEFT JOIN drivers d ON d.id = ws.driver_id
		LEFT JOIN vehicles v ON v.id = ws.vehicle_id
		WHERE pe.created_at >= $1 AND pe.created_at < $2
		` + filterClause(3) + `
		GROUP BY ws.id, ws.driver_id, d.name, ws.vehicle_id, v.plate_number, ws.started_at
		ORDER BY ws.started_at
	`

	rows, err := querier(ctx, r.db).QueryContext(ctx, query,
		window.From, window.To, filter.DriverID, filter.VehicleID,
	)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var counts []domain.SessionCount
	for rows.Next() {
		var c domain.SessionCount
		if err := rows.Scan(&c.SessionID, &c.DriverID, &c.DriverName, &c.VehicleID, &c.PlateNumber, &c.Count); err != nil {
			return nil, classify(err)
		}
		counts = append(counts, c)
	}

	return counts, classify(rows.Err())
}

// ListOverlappingSessions returns sessions overlapping the window.
func (r *ReportRepository) ListOverlappingSessions(ctx context.Context, window clock.Window, filter domain.ReportFilter) ([]domain.SessionDetail, error) {
	query := `
		SELECT ws.id, ws.driver_id, COALESCE(d.name, ''), ws.vehicle_id, COALESCE(v.plate_number, ''),
		       ws.started_at, ws.ended_at, ws.passenger_count, ws.status
		FROM work_sessions ws
		LEFT JOIN drivers d ON d.id = ws.driver_id
		LEFT JOIN vehicles v ON v.id = ws.vehicle_id
		WHERE ws.started_at < $2
		AND (ws.ended_at IS NULL OR ws.ended_at >= $1)
		` + filterClause(3) + `
		ORDER BY ws.started_at
	`

	rows, err := querier(ctx, r.db).QueryContext(ctx, query,
		window.From, window.To, filter.DriverID, filter.VehicleID,
	)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var sessions []domain.SessionDetail
	for rows.Next() {
		var s domain.SessionDetail
		var endedAt sql.NullTime
		if err := rows.Scan(
			&s.SessionID,
			&s.DriverID,
			&s.DriverName,
			&s.VehicleID,
			&s.PlateNumber,
			&s.StartedAt,
			&endedAt,
			&s.PassengerCount,
			&s.Status,
		); err != nil {
			return nil, classify(err)
		}
		if endedAt.Valid {
			s.EndedAt = endedAt.Time
		}
		sessions = append(sessions, s)
	}

	return sessions, classify(rows.Err())
}

// Ensure ReportRepository implements repository.ReportRepository.
var _ repository.ReportRepository = (*ReportRepository)(nil)
