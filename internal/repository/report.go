package repository

import (
	"context"

	"fleettrack/internal/clock"
	"fleettrack/internal/domain"
)

// ReportRepository defines the read-only queries behind the reports.
// All methods bound their scan by the half-open instant range of the window
// and bucket instants by the window's local calendar date.
type ReportRepository interface {
	// CountEventsByDay returns passenger event counts per local date.
	// Dates without events may be omitted.
	CountEventsByDay(ctx context.Context, window clock.Window, filter domain.ReportFilter) ([]domain.DayCount, error)

	// CountEventsBySession returns passenger event counts per owning session.
	CountEventsBySession(ctx context.Context, window clock.Window, filter domain.ReportFilter) ([]domain.SessionCount, error)

	// ListOverlappingSessions returns sessions that overlap the window:
	// started before the window ends and either still open or ended on or
	// after the window's first date.
	ListOverlappingSessions(ctx context.Context, window clock.Window, filter domain.ReportFilter) ([]domain.SessionDetail, error)
}
