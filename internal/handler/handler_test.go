package handler_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"fleettrack/internal/clock"
	"fleettrack/internal/domain"
	"fleettrack/internal/handler"
	"fleettrack/internal/logger"
	"fleettrack/internal/repository"
	"fleettrack/internal/repository/memory"
	"fleettrack/internal/service"
)

// ──────────────────────────────────────────────
// SETUP
// ──────────────────────────────────────────────

// now is 2025-07-10 10:00 local.
var now = time.Date(2025, 7, 10, 3, 0, 0, 0, time.UTC)

type testServer struct {
	store  *memory.Store
	router *gin.Engine
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := memory.NewStore()
	store.AddDriver(domain.Driver{ID: "D", Name: "Dewi", RFIDCode: "D-RFID", Status: domain.DriverStatusActive})
	store.AddDriver(domain.Driver{ID: "E", Name: "Eko", RFIDCode: "E-RFID", Status: domain.DriverStatusActive})
	store.AddDriver(domain.Driver{ID: "X", Name: "Xena", RFIDCode: "X-RFID", Status: domain.DriverStatusInactive})
	store.AddVehicle(domain.Vehicle{ID: "V", PlateNumber: "B 1234 CD", Status: domain.VehicleStatusActive})
	store.AddVehicle(domain.Vehicle{ID: "V2", PlateNumber: "B 5678 EF", Status: domain.VehicleStatusActive})
	store.AddDevice(domain.Device{ID: "Dev1", VehicleID: "V", Status: domain.DeviceStatusOnline})
	store.AddDevice(domain.Device{ID: "Dev2", VehicleID: "V2", Status: domain.DeviceStatusOnline})

	provider := clock.NewFixed(clock.DefaultOffsetHours, now)
	log := logger.Discard()

	sessions := service.NewSessionService(service.SessionServiceDeps{
		Tx:       store,
		Devices:  store.Devices(),
		Vehicles: store.Vehicles(),
		Drivers:  store.Drivers(),
		Sessions: store.WorkSessions(),
		Clock:    provider,
		Logger:   log,
	}, service.SessionConfig{})
	boarding := service.NewBoardingService(service.BoardingServiceDeps{
		Tx:       store,
		Devices:  store.Devices(),
		Sessions: store.WorkSessions(),
		Events:   store.PassengerEvents(),
		Clock:    provider,
		Logger:   log,
	}, service.SessionConfig{})
	reports := service.NewReportService(service.ReportServiceDeps{
		Reports:  store.Reports(),
		Drivers:  store.Drivers(),
		Vehicles: store.Vehicles(),
		Clock:    provider,
		Logger:   log,
	})
	devices := service.NewDeviceService(store.Devices(), nil, provider)

	taps := handler.NewTapHandler(sessions, boarding)
	sessionHandler := handler.NewSessionHandler(sessions)
	reportHandler := handler.NewReportHandler(reports, provider)
	deviceHandler := handler.NewDeviceHandler(devices)

	r := gin.New()
	v1 := r.Group("/v1")
	v1.POST("/taps", taps.HandleTap)
	v1.POST("/boardings", taps.RecordBoarding)
	v1.POST("/sessions", sessionHandler.StartSession)
	v1.GET("/sessions", sessionHandler.ListActiveSessions)
	v1.GET("/sessions/:id", sessionHandler.GetSession)
	v1.POST("/sessions/:id/end", sessionHandler.EndSession)
	v1.GET("/reports/daily", reportHandler.Daily)
	v1.GET("/reports/range", reportHandler.Range)
	v1.GET("/reports/weekly", reportHandler.Weekly)
	v1.GET("/reports/monthly", reportHandler.Monthly)
	v1.GET("/reports/drivers/:id", reportHandler.Driver)
	v1.GET("/reports/vehicles/:id", reportHandler.Vehicle)
	v1.GET("/devices/online", deviceHandler.ListOnline)
	v1.GET("/devices/:id/presence", deviceHandler.GetPresence)

	return &testServer{store: store, router: r}
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %s: %v", w.Body.String(), err)
	}
	return v
}

func assertError(t *testing.T, w *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	if w.Code != status {
		t.Fatalf("status = %d, want %d (body %s)", w.Code, status, w.Body.String())
	}
	resp := decode[handler.ErrorResponse](t, w)
	if resp.Code != code {
		t.Errorf("code = %q, want %q", resp.Code, code)
	}
}

func tap(rfid, device string) handler.TapRequest {
	return handler.TapRequest{RFIDCode: rfid, DeviceID: device}
}

// ──────────────────────────────────────────────
// 1. TAPS AND BOARDINGS
// ──────────────────────────────────────────────

func TestHandleTap_StartsThenEnds(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/v1/taps", tap("D-RFID", "Dev1"))
	if w.Code != http.StatusCreated {
		t.Fatalf("first tap status = %d, body %s", w.Code, w.Body.String())
	}
	started := decode[handler.TapResponse](t, w)
	if started.Action != "started" || started.Session.Status != "active" {
		t.Errorf("first tap = %+v", started)
	}
	if started.Session.VehicleID != "V" || started.Session.DriverID != "D" {
		t.Errorf("session = %+v", started.Session)
	}
	if started.Session.EndedAt != "" {
		t.Errorf("active session has ended_at %q", started.Session.EndedAt)
	}

	w = s.do(t, http.MethodPost, "/v1/taps", tap("D-RFID", "Dev1"))
	if w.Code != http.StatusOK {
		t.Fatalf("second tap status = %d, body %s", w.Code, w.Body.String())
	}
	ended := decode[handler.TapResponse](t, w)
	if ended.Action != "ended" || ended.Session.ID != started.Session.ID {
		t.Errorf("second tap = %+v", ended)
	}
	if ended.Session.Status != "completed" || ended.Session.EndedAt == "" {
		t.Errorf("ended session = %+v", ended.Session)
	}
}

func TestHandleTap_Errors(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name   string
		setup  func(t *testing.T, s *testServer)
		body   any
		status int
		code   string
	}{
		{
			name:   "missing device",
			body:   map[string]string{"rfid_code": "D-RFID"},
			status: http.StatusBadRequest,
			code:   "INVALID_DEVICE_ID",
		},
		{
			name:   "missing card",
			body:   map[string]string{"device_id": "Dev1"},
			status: http.StatusBadRequest,
			code:   "INVALID_RFID_CODE",
		},
		{
			name:   "unknown device",
			body:   tap("D-RFID", "nope"),
			status: http.StatusNotFound,
			code:   "DEVICE_NOT_FOUND",
		},
		{
			name:   "inactive driver",
			body:   tap("X-RFID", "Dev1"),
			status: http.StatusConflict,
			code:   "DRIVER_NOT_FOUND_OR_INACTIVE",
		},
		{
			name: "vehicle held by another driver",
			setup: func(t *testing.T, s *testServer) {
				s.do(t, http.MethodPost, "/v1/taps", tap("E-RFID", "Dev1"))
			},
			body:   tap("D-RFID", "Dev1"),
			status: http.StatusConflict,
			code:   "VEHICLE_ALREADY_IN_USE",
		},
		{
			name: "store unavailable",
			setup: func(t *testing.T, s *testServer) {
				for i := 0; i <= service.DefaultMaxRetries; i++ {
					s.store.Fail(memory.OpCommit, errors.Join(repository.ErrTransient, errors.New("lock timeout")))
				}
			},
			body:   tap("D-RFID", "Dev1"),
			status: http.StatusServiceUnavailable,
			code:   "TRANSIENT_STORE_ERROR",
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			s := newTestServer(t)
			if tc.setup != nil {
				tc.setup(t, s)
			}
			w := s.do(t, http.MethodPost, "/v1/taps", tc.body)
			assertError(t, w, tc.status, tc.code)
		})
	}
}

func TestRecordBoarding(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/v1/boardings", map[string]string{"rfid_code": "P-1"})
	assertError(t, w, http.StatusBadRequest, "INVALID_DEVICE_ID")

	w = s.do(t, http.MethodPost, "/v1/boardings", tap("P-1", "Dev1"))
	assertError(t, w, http.StatusConflict, "NO_ACTIVE_SESSION_FOR_VEHICLE")

	s.do(t, http.MethodPost, "/v1/taps", tap("D-RFID", "Dev1"))

	for i := 1; i <= 2; i++ {
		w = s.do(t, http.MethodPost, "/v1/boardings", tap("P-1", "Dev1"))
		if w.Code != http.StatusCreated {
			t.Fatalf("boarding %d status = %d, body %s", i, w.Code, w.Body.String())
		}
		resp := decode[handler.BoardingResponse](t, w)
		if resp.PassengerCount != i || resp.VehicleID != "V" || resp.EventID == "" {
			t.Errorf("boarding %d = %+v", i, resp)
		}
	}
}

// ──────────────────────────────────────────────
// 2. SESSIONS
// ──────────────────────────────────────────────

func TestSessionEndpoints(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/v1/sessions", handler.StartSessionRequest{DriverID: "D", VehicleID: "V2"})
	if w.Code != http.StatusCreated {
		t.Fatalf("start status = %d, body %s", w.Code, w.Body.String())
	}
	created := decode[handler.SessionResponse](t, w)

	w = s.do(t, http.MethodPost, "/v1/sessions", handler.StartSessionRequest{DriverID: "D", VehicleID: "V"})
	assertError(t, w, http.StatusConflict, "DRIVER_HAS_ACTIVE_SESSION")

	w = s.do(t, http.MethodGet, "/v1/sessions/"+created.ID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	if got := decode[handler.SessionResponse](t, w); got.VehicleID != "V2" {
		t.Errorf("get = %+v", got)
	}

	w = s.do(t, http.MethodGet, "/v1/sessions?state=active", nil)
	list := decode[handler.ListSessionsResponse](t, w)
	if len(list.Sessions) != 1 || list.Sessions[0].ID != created.ID {
		t.Errorf("active list = %+v", list)
	}

	w = s.do(t, http.MethodGet, "/v1/sessions?state=completed", nil)
	assertError(t, w, http.StatusBadRequest, "INVALID_STATE")

	w = s.do(t, http.MethodPost, "/v1/sessions/"+created.ID+"/end", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("end status = %d, body %s", w.Code, w.Body.String())
	}
	if got := decode[handler.SessionResponse](t, w); got.Status != "completed" {
		t.Errorf("ended = %+v", got)
	}

	w = s.do(t, http.MethodPost, "/v1/sessions/"+created.ID+"/end", nil)
	assertError(t, w, http.StatusConflict, "SESSION_ALREADY_COMPLETED")

	w = s.do(t, http.MethodGet, "/v1/sessions/missing", nil)
	assertError(t, w, http.StatusNotFound, "SESSION_NOT_FOUND")
}

// ──────────────────────────────────────────────
// 3. REPORTS
// ──────────────────────────────────────────────

// seedReports stores a completed 8h session on 2025-07-09 with three
// boardings and a session opened on 2025-07-10 that is still active.
func seedReports(s *testServer) {
	s.store.PutSession(domain.WorkSession{
		ID: "A", DriverID: "D", VehicleID: "V",
		StartedAt:      time.Date(2025, 7, 9, 1, 0, 0, 0, time.UTC),
		EndedAt:        time.Date(2025, 7, 9, 9, 0, 0, 0, time.UTC),
		PassengerCount: 3,
		Status:         domain.SessionStatusCompleted,
	})
	for i, id := range []string{"e1", "e2", "e3"} {
		s.store.PutEvent(domain.PassengerEvent{
			ID: id, SessionID: "A", RFIDCode: "P",
			CreatedAt: time.Date(2025, 7, 9, 2+i, 0, 0, 0, time.UTC),
		})
	}
	s.store.PutSession(domain.WorkSession{
		ID: "B", DriverID: "E", VehicleID: "V2",
		StartedAt: time.Date(2025, 7, 10, 1, 0, 0, 0, time.UTC),
		Status:    domain.SessionStatusActive,
	})
}

func TestReport_Daily(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)
	seedReports(s)

	w := s.do(t, http.MethodGet, "/v1/reports/daily?date=2025-07-09", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	day := decode[handler.DailyReportResponse](t, w)
	if day.Date != "2025-07-09" || day.TotalPassengers != 3 || day.Degraded {
		t.Errorf("daily = %+v", day)
	}
	if len(day.BySession) != 1 || day.BySession[0].Passengers != 3 || day.BySession[0].PlateNumber != "B 1234 CD" {
		t.Errorf("by_session = %+v", day.BySession)
	}
	if len(day.Sessions) != 1 || day.Sessions[0].Hours == nil || *day.Sessions[0].Hours != 8 {
		t.Errorf("sessions = %+v", day.Sessions)
	}

	// Defaults to today, where only the open session is present.
	w = s.do(t, http.MethodGet, "/v1/reports/daily", nil)
	today := decode[handler.DailyReportResponse](t, w)
	if today.Date != "2025-07-10" || len(today.Sessions) != 1 {
		t.Fatalf("today = %+v", today)
	}
	if today.Sessions[0].Hours != nil || today.Sessions[0].EndedAt != nil {
		t.Errorf("open session must have null hours and ended_at: %+v", today.Sessions[0])
	}

	w = s.do(t, http.MethodGet, "/v1/reports/daily?date=2025-7-9", nil)
	assertError(t, w, http.StatusBadRequest, "INVALID_DATE")
}

func TestReport_RangeWeeklyMonthly(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)
	seedReports(s)

	w := s.do(t, http.MethodGet, "/v1/reports/range?start=2025-07-08&end=2025-07-10", nil)
	rng := decode[handler.RangeReportResponse](t, w)
	if len(rng.Days) != 3 || rng.TotalPassengers != 3 {
		t.Fatalf("range = %+v", rng)
	}
	if rng.Days[0].Passengers != 0 || rng.Days[1].Passengers != 3 || rng.Days[2].Passengers != 0 {
		t.Errorf("days = %+v", rng.Days)
	}

	w = s.do(t, http.MethodGet, "/v1/reports/range?start=2025-07-10&end=2025-07-08", nil)
	assertError(t, w, http.StatusBadRequest, "INVALID_DATE_RANGE")

	w = s.do(t, http.MethodGet, "/v1/reports/weekly?date=2025-07-10", nil)
	week := decode[handler.RangeReportResponse](t, w)
	if week.Start != "2025-07-07" || week.End != "2025-07-13" || len(week.Days) != 7 {
		t.Errorf("weekly = %s..%s (%d days)", week.Start, week.End, len(week.Days))
	}

	w = s.do(t, http.MethodGet, "/v1/reports/monthly?month=2025-07", nil)
	month := decode[handler.RangeReportResponse](t, w)
	if len(month.Days) != 31 || month.TotalPassengers != 3 {
		t.Errorf("monthly days = %d total = %d", len(month.Days), month.TotalPassengers)
	}

	w = s.do(t, http.MethodGet, "/v1/reports/monthly?month=July", nil)
	assertError(t, w, http.StatusBadRequest, "INVALID_DATE")
}

func TestReport_DriverAndVehicle(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)
	seedReports(s)

	w := s.do(t, http.MethodGet, "/v1/reports/drivers/D?start=2025-07-01&end=2025-07-10", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	driver := decode[handler.DriverReportResponse](t, w)
	if driver.DriverName != "Dewi" || driver.TotalHours != 8 || driver.TotalPassengers != 3 {
		t.Errorf("driver report = %+v", driver)
	}

	w = s.do(t, http.MethodGet, "/v1/reports/vehicles/V2?start=2025-07-01&end=2025-07-10", nil)
	vehicle := decode[handler.VehicleReportResponse](t, w)
	if vehicle.PlateNumber != "B 5678 EF" || vehicle.TotalHours != 0 || len(vehicle.Sessions) != 1 {
		t.Errorf("vehicle report = %+v", vehicle)
	}

	w = s.do(t, http.MethodGet, "/v1/reports/drivers/nobody?start=2025-07-01&end=2025-07-10", nil)
	assertError(t, w, http.StatusNotFound, "DRIVER_NOT_FOUND")

	w = s.do(t, http.MethodGet, "/v1/reports/vehicles/V?start=2025-07-01", nil)
	assertError(t, w, http.StatusBadRequest, "INVALID_DATE")
}

// ──────────────────────────────────────────────
// 4. DEVICES
// ──────────────────────────────────────────────

func TestGetPresence(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/v1/devices/Dev1/presence", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if got := decode[handler.PresenceResponse](t, w); got.DeviceID != "Dev1" || got.LastSeenAt != "" {
		t.Errorf("presence = %+v", got)
	}

	w = s.do(t, http.MethodGet, "/v1/devices/nope/presence", nil)
	assertError(t, w, http.StatusNotFound, "DEVICE_NOT_FOUND")

	w = s.do(t, http.MethodGet, "/v1/devices/online?within=10m", nil)
	if got := decode[handler.ListOnlineResponse](t, w); w.Code != http.StatusOK || len(got.Devices) != 0 {
		t.Errorf("online = %d %+v", w.Code, got)
	}

	w = s.do(t, http.MethodGet, "/v1/devices/online?within=soon", nil)
	assertError(t, w, http.StatusBadRequest, "INVALID_DURATION")
}
