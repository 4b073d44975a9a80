package app

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"fleettrack/internal/clock"
	"fleettrack/internal/domain"
	"fleettrack/internal/handler"
	"fleettrack/internal/logger"
	"fleettrack/internal/metrics"
	"fleettrack/internal/middleware"
	"fleettrack/internal/repository/memory"
	"fleettrack/internal/service"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := memory.NewStore()
	store.AddDriver(domain.Driver{ID: "D", Name: "Dewi", RFIDCode: "D-RFID", Status: domain.DriverStatusActive})
	store.AddVehicle(domain.Vehicle{ID: "V", PlateNumber: "B 1234 CD", Status: domain.VehicleStatusActive})
	store.AddDevice(domain.Device{ID: "Dev1", VehicleID: "V", Status: domain.DeviceStatusOnline})

	log := logger.Discard()
	provider := clock.NewProvider(clock.DefaultOffsetHours)
	registry := prometheus.NewRegistry()
	recorder := metrics.NewCollector(registry)

	sessions := service.NewSessionService(service.SessionServiceDeps{
		Tx:       store,
		Devices:  store.Devices(),
		Vehicles: store.Vehicles(),
		Drivers:  store.Drivers(),
		Sessions: store.WorkSessions(),
		Calendar: provider,
		Metrics:  recorder,
		Logger:   log,
	}, service.SessionConfig{})
	boarding := service.NewBoardingService(service.BoardingServiceDeps{
		Tx:       store,
		Devices:  store.Devices(),
		Sessions: store.WorkSessions(),
		Events:   store.PassengerEvents(),
		Clock:    provider,
		Metrics:  recorder,
		Logger:   log,
	}, service.SessionConfig{})
	reports := service.NewReportService(service.ReportServiceDeps{
		Reports:  store.Reports(),
		Drivers:  store.Drivers(),
		Vehicles: store.Vehicles(),
		Clock:    provider,
		Metrics:  recorder,
		Logger:   log,
	})

	limiter := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig(), log)
	t.Cleanup(limiter.Stop)

	return NewRouter(RouterDeps{
		TapHandler:     handler.NewTapHandler(sessions, boarding),
		SessionHandler: handler.NewSessionHandler(sessions),
		ReportHandler:  handler.NewReportHandler(reports, provider),
		DeviceHandler:  handler.NewDeviceHandler(service.NewDeviceService(store.Devices(), nil, provider)),
		RateLimiter:    limiter,
		Gatherer:       registry,
		Logger:         log,
	})
}

func TestRouter_HealthAndMetrics(t *testing.T) {
	t.Parallel()
	r := newTestRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("health status = %d", w.Code)
	}

	tap := httptest.NewRequest(http.MethodPost, "/v1/taps", strings.NewReader(`{"rfid_code":"D-RFID","device_id":"Dev1"}`))
	tap.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, tap)
	if w.Code != http.StatusCreated {
		t.Fatalf("tap status = %d, body %s", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("metrics status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `fleettrack_taps_total{action="started"} 1`) {
		t.Errorf("metrics missing tap counter:\n%s", w.Body.String())
	}
}

func TestRouter_UnknownRouteIs404(t *testing.T) {
	t.Parallel()
	r := newTestRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/rides", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}
