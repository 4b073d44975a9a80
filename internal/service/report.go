package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"fleettrack/internal/clock"
	"fleettrack/internal/domain"
	"fleettrack/internal/metrics"
	"fleettrack/internal/redis"
	"fleettrack/internal/repository"
)

// MaxReportDays bounds the span of a range report.
const MaxReportDays = 366

// ReportServiceDeps contains the collaborators of ReportService.
// Cache, Metrics and Logger are optional.
type ReportServiceDeps struct {
	Reports  repository.ReportRepository
	Drivers  repository.DriverRepository
	Vehicles repository.VehicleRepository
	Clock    *clock.Provider
	Cache    redis.ReportCacheInterface
	CacheTTL time.Duration
	Metrics  metrics.Recorder
	Logger   *slog.Logger
}

// ReportService aggregates passenger events and sessions over local
// calendar dates. Reads never block writers; a transient read failure yields
// a zero-filled report marked Degraded instead of an error.
type ReportService struct {
	reports  repository.ReportRepository
	drivers  repository.DriverRepository
	vehicles repository.VehicleRepository
	clock    *clock.Provider
	cache    redis.ReportCacheInterface
	cacheTTL time.Duration
	metrics  metrics.Recorder
	logger   *slog.Logger
}

// NewReportService creates a new ReportService.
func NewReportService(deps ReportServiceDeps) *ReportService {
	if deps.Metrics == nil {
		deps.Metrics = metrics.Nop{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Clock == nil {
		deps.Clock = clock.NewProvider(clock.DefaultOffsetHours)
	}

	return &ReportService{
		reports:  deps.Reports,
		drivers:  deps.Drivers,
		vehicles: deps.Vehicles,
		clock:    deps.Clock,
		cache:    deps.Cache,
		cacheTTL: deps.CacheTTL,
		metrics:  deps.Metrics,
		logger:   deps.Logger,
	}
}

// DailyReport returns per-session passenger counts for one local date and
// the sessions active on it. Past dates are served from the cache when one
// is configured.
func (s *ReportService) DailyReport(ctx context.Context, date clock.Date) (*domain.DailyReport, error) {
	if date.IsZero() {
		return nil, ErrInvalidDate
	}

	cacheable := s.cache != nil && date.Before(s.clock.Today())
	if cacheable {
		cached, err := s.cache.GetDaily(ctx, date)
		if err != nil {
			s.logger.Warn("report cache read failed", slog.String("date", date.String()), slog.String("error", err.Error()))
		} else if cached != nil {
			return cached, nil
		}
	}

	window := s.clock.Window(date, date)
	report := &domain.DailyReport{
		Date:      date,
		BySession: []domain.SessionCount{},
		Sessions:  []domain.SessionDetail{},
	}

	bySession, err := s.reports.CountEventsBySession(ctx, window, domain.ReportFilter{})
	if err != nil {
		return s.degradeDaily(report, "daily", err)
	}

	sessions, err := s.reports.ListOverlappingSessions(ctx, window, domain.ReportFilter{})
	if err != nil {
		return s.degradeDaily(report, "daily", err)
	}

	for _, c := range bySession {
		report.TotalPassengers += c.Count
	}
	if bySession != nil {
		report.BySession = bySession
	}
	if sessions != nil {
		report.Sessions = sessions
	}

	if cacheable {
		if err := s.cache.SetDaily(ctx, report, s.cacheTTL); err != nil {
			s.logger.Warn("report cache write failed", slog.String("date", date.String()), slog.String("error", err.Error()))
		}
	}

	return report, nil
}

// RangeReport returns one zero-filled row per local date in [start, end],
// their sum and the sessions overlapping the range.
func (s *ReportService) RangeReport(ctx context.Context, start, end clock.Date) (*domain.RangeReport, error) {
	if err := validateRange(start, end); err != nil {
		return nil, err
	}
	return s.rangeReport(ctx, "range", start, end, domain.ReportFilter{})
}

// WeeklyReport is RangeReport over the Monday-to-Sunday week containing date.
func (s *ReportService) WeeklyReport(ctx context.Context, date clock.Date) (*domain.RangeReport, error) {
	if date.IsZero() {
		return nil, ErrInvalidDate
	}
	start := date.StartOfWeek()
	return s.rangeReport(ctx, "weekly", start, start.AddDays(6), domain.ReportFilter{})
}

// MonthlyReport is RangeReport over one calendar month.
func (s *ReportService) MonthlyReport(ctx context.Context, year int, month time.Month) (*domain.RangeReport, error) {
	if year < 1 || month < time.January || month > time.December {
		return nil, ErrInvalidDate
	}
	start := clock.NewDate(year, month, 1)
	return s.rangeReport(ctx, "monthly", start, start.EndOfMonth(), domain.ReportFilter{})
}

// DriverReport restricts RangeReport to one driver and totals the hours of
// the driver's completed sessions.
func (s *ReportService) DriverReport(ctx context.Context, driverID string, start, end clock.Date) (*domain.DriverReport, error) {
	driverID = strings.TrimSpace(driverID)
	if driverID == "" {
		return nil, ErrInvalidDriverID
	}
	if err := validateRange(start, end); err != nil {
		return nil, err
	}

	report := &domain.DriverReport{Driver: domain.Driver{ID: driverID}}

	driver, err := s.drivers.GetByID(ctx, driverID)
	switch {
	case err == nil:
		report.Driver = *driver
	case isRetryable(err):
		report.Range = *s.degradedRange("driver", start, end, err)
		return report, nil
	default:
		return nil, classify(notFoundAs(err, ErrDriverNotFound))
	}

	rng, err := s.rangeReport(ctx, "driver", start, end, domain.ReportFilter{DriverID: driverID})
	if err != nil {
		return nil, err
	}
	report.Range = *rng
	report.TotalHours = totalHours(rng.Sessions)

	return report, nil
}

// VehicleReport restricts RangeReport to one vehicle and totals the hours of
// its completed sessions.
func (s *ReportService) VehicleReport(ctx context.Context, vehicleID string, start, end clock.Date) (*domain.VehicleReport, error) {
	vehicleID = strings.TrimSpace(vehicleID)
	if vehicleID == "" {
		return nil, ErrInvalidVehicleID
	}
	if err := validateRange(start, end); err != nil {
		return nil, err
	}

	report := &domain.VehicleReport{Vehicle: domain.Vehicle{ID: vehicleID}}

	vehicle, err := s.vehicles.GetByID(ctx, vehicleID)
	switch {
	case err == nil:
		report.Vehicle = *vehicle
	case isRetryable(err):
		report.Range = *s.degradedRange("vehicle", start, end, err)
		return report, nil
	default:
		return nil, classify(notFoundAs(err, ErrVehicleNotFound))
	}

	rng, err := s.rangeReport(ctx, "vehicle", start, end, domain.ReportFilter{VehicleID: vehicleID})
	if err != nil {
		return nil, err
	}
	report.Range = *rng
	report.TotalHours = totalHours(rng.Sessions)

	return report, nil
}

func (s *ReportService) rangeReport(ctx context.Context, name string, start, end clock.Date, filter domain.ReportFilter) (*domain.RangeReport, error) {
	window := s.clock.Window(start, end)

	counts, err := s.reports.CountEventsByDay(ctx, window, filter)
	if err != nil {
		return s.degradeRange(name, start, end, err)
	}

	sessions, err := s.reports.ListOverlappingSessions(ctx, window, filter)
	if err != nil {
		return s.degradeRange(name, start, end, err)
	}

	report := zeroFilled(window)
	byDate := make(map[clock.Date]int, len(counts))
	for _, c := range counts {
		byDate[c.Date] += c.Count
	}
	for i := range report.Days {
		n := byDate[report.Days[i].Date]
		report.Days[i].Count = n
		report.TotalPassengers += n
	}
	if sessions != nil {
		report.Sessions = sessions
	}

	return report, nil
}

func (s *ReportService) degradeDaily(report *domain.DailyReport, name string, err error) (*domain.DailyReport, error) {
	if !isRetryable(err) {
		return nil, classify(err)
	}
	s.markDegraded(name, err)
	report.Degraded = true
	return report, nil
}

func (s *ReportService) degradeRange(name string, start, end clock.Date, err error) (*domain.RangeReport, error) {
	if !isRetryable(err) {
		return nil, classify(err)
	}
	return s.degradedRange(name, start, end, err), nil
}

func (s *ReportService) degradedRange(name string, start, end clock.Date, err error) *domain.RangeReport {
	s.markDegraded(name, err)
	report := zeroFilled(s.clock.Window(start, end))
	report.Degraded = true
	return report
}

func (s *ReportService) markDegraded(name string, err error) {
	s.metrics.RecordReportDegraded(name)
	s.logger.Warn("report degraded after transient read failure",
		slog.String("report", name),
		slog.String("error", err.Error()),
	)
}

func zeroFilled(window clock.Window) *domain.RangeReport {
	dates := window.Dates()
	days := make([]domain.DayCount, len(dates))
	for i, d := range dates {
		days[i] = domain.DayCount{Date: d}
	}
	return &domain.RangeReport{
		Start:    window.Start,
		End:      window.End,
		Days:     days,
		Sessions: []domain.SessionDetail{},
	}
}

// totalHours sums the unrounded hours of completed sessions.
func totalHours(sessions []domain.SessionDetail) float64 {
	var total float64
	for i := range sessions {
		if h := sessions[i].Hours(); h != nil {
			total += *h
		}
	}
	return total
}

func validateRange(start, end clock.Date) error {
	if start.IsZero() || end.IsZero() {
		return ErrInvalidDate
	}
	if end.Before(start) {
		return ErrInvalidDateRange
	}
	if end.Sub(start) >= MaxReportDays {
		return ErrInvalidDateRange
	}
	return nil
}
