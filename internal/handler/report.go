package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"fleettrack/internal/clock"
	"fleettrack/internal/service"
)

// ReportHandler handles HTTP requests for passenger and session reports.
// Dates are local calendar dates in YYYY-MM-DD form.
type ReportHandler struct {
	reportService *service.ReportService
	clock         *clock.Provider
}

// NewReportHandler creates a new ReportHandler. The provider supplies
// today's date when a request omits one.
func NewReportHandler(reportService *service.ReportService, provider *clock.Provider) *ReportHandler {
	if provider == nil {
		provider = clock.NewProvider(clock.DefaultOffsetHours)
	}
	return &ReportHandler{reportService: reportService, clock: provider}
}

// Daily handles GET /v1/reports/daily?date=YYYY-MM-DD
func (h *ReportHandler) Daily(c *gin.Context) {
	date, ok := h.dateParam(c, "date")
	if !ok {
		return
	}

	report, err := h.reportService.DailyReport(c.Request.Context(), date)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, newDailyReportResponse(report))
}

// Range handles GET /v1/reports/range?start=YYYY-MM-DD&end=YYYY-MM-DD
func (h *ReportHandler) Range(c *gin.Context) {
	start, end, ok := rangeParams(c)
	if !ok {
		return
	}

	report, err := h.reportService.RangeReport(c.Request.Context(), start, end)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, newRangeReportResponse(report))
}

// Weekly handles GET /v1/reports/weekly?date=YYYY-MM-DD
func (h *ReportHandler) Weekly(c *gin.Context) {
	date, ok := h.dateParam(c, "date")
	if !ok {
		return
	}

	report, err := h.reportService.WeeklyReport(c.Request.Context(), date)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, newRangeReportResponse(report))
}

// Monthly handles GET /v1/reports/monthly?month=YYYY-MM
func (h *ReportHandler) Monthly(c *gin.Context) {
	today := h.clock.Today()
	year, month := today.Year, today.Month
	if raw := c.Query("month"); raw != "" {
		t, err := time.Parse("2006-01", raw)
		if err != nil {
			respondBadRequest(c, service.ErrInvalidDate, "month must be YYYY-MM")
			return
		}
		year, month = t.Year(), t.Month()
	}

	report, err := h.reportService.MonthlyReport(c.Request.Context(), year, month)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, newRangeReportResponse(report))
}

// Driver handles GET /v1/reports/drivers/:id?start=YYYY-MM-DD&end=YYYY-MM-DD
func (h *ReportHandler) Driver(c *gin.Context) {
	start, end, ok := rangeParams(c)
	if !ok {
		return
	}

	report, err := h.reportService.DriverReport(c.Request.Context(), c.Param("id"), start, end)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, DriverReportResponse{
		DriverID:            report.Driver.ID,
		DriverName:          report.Driver.Name,
		RangeReportResponse: newRangeReportResponse(&report.Range),
		TotalHours:          round2(report.TotalHours),
	})
}

// Vehicle handles GET /v1/reports/vehicles/:id?start=YYYY-MM-DD&end=YYYY-MM-DD
func (h *ReportHandler) Vehicle(c *gin.Context) {
	start, end, ok := rangeParams(c)
	if !ok {
		return
	}

	report, err := h.reportService.VehicleReport(c.Request.Context(), c.Param("id"), start, end)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, VehicleReportResponse{
		VehicleID:           report.Vehicle.ID,
		PlateNumber:         report.Vehicle.PlateNumber,
		RangeReportResponse: newRangeReportResponse(&report.Range),
		TotalHours:          round2(report.TotalHours),
	})
}

// dateParam parses an optional date query parameter, defaulting to today.
func (h *ReportHandler) dateParam(c *gin.Context, name string) (clock.Date, bool) {
	raw := c.Query(name)
	if raw == "" {
		return h.clock.Today(), true
	}
	d, err := clock.ParseDate(raw)
	if err != nil {
		respondBadRequest(c, service.ErrInvalidDate, "")
		return clock.Date{}, false
	}
	return d, true
}

func rangeParams(c *gin.Context) (clock.Date, clock.Date, bool) {
	start, err := clock.ParseDate(c.Query("start"))
	if err != nil {
		respondBadRequest(c, service.ErrInvalidDate, "start must be YYYY-MM-DD")
		return clock.Date{}, clock.Date{}, false
	}
	end, err := clock.ParseDate(c.Query("end"))
	if err != nil {
		respondBadRequest(c, service.ErrInvalidDate, "end must be YYYY-MM-DD")
		return clock.Date{}, clock.Date{}, false
	}
	return start, end, true
}
