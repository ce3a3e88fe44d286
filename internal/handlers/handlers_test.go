package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/crucial707/aquamarine/internal/db"
	"github.com/crucial707/aquamarine/internal/gpio"
	"github.com/crucial707/aquamarine/internal/repo"
	"github.com/crucial707/aquamarine/internal/scheduler"
	"github.com/crucial707/aquamarine/internal/service"
)

// requestWithChiURLParams returns a request with chi route context and URL params set.
func requestWithChiURLParams(method, path string, body []byte, params map[string]string) *http.Request {
	var r *http.Request
	if body != nil {
		r = httptest.NewRequest(method, path, bytes.NewReader(body))
	} else {
		r = httptest.NewRequest(method, path, nil)
	}
	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

type testEnv struct {
	pins     *gpio.Mock
	exec     *scheduler.Executor
	devices  *DeviceHandler
	schedule *ScheduleHandler
	gpio     *GPIOHandler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	database, err := db.OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	if err := db.RunSQLite(database); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	deviceRepo := repo.NewDeviceRepo(database)
	scheduleRepo := repo.NewScheduleRepo(database)
	auditRepo := repo.NewAuditRepo(database)
	pins := gpio.NewMock()
	exec := scheduler.New(deviceRepo, pins, time.UTC, scheduler.WithLogger(logger))

	return &testEnv{
		pins: pins,
		exec: exec,
		devices: &DeviceHandler{Logger: logger, Service: &service.DeviceService{
			Devices: deviceRepo, Schedules: scheduleRepo, Pins: pins, Scheduler: exec, Audit: auditRepo, Logger: logger,
		}},
		schedule: &ScheduleHandler{Logger: logger, Service: &service.ScheduleService{
			Devices: deviceRepo, Schedules: scheduleRepo, Scheduler: exec, Audit: auditRepo, Logger: logger,
		}},
		gpio: &GPIOHandler{Logger: logger, Service: &service.GPIOService{Pins: pins, Audit: auditRepo, Logger: logger}},
	}
}

func (e *testEnv) registerDevice(t *testing.T, name string, pin int) string {
	t.Helper()
	body, _ := json.Marshal(map[string]any{"device_name": name, "gpio_number": pin})
	rr := httptest.NewRecorder()
	e.devices.Register(rr, httptest.NewRequest(http.MethodPost, "/device/register", bytes.NewReader(body)))
	if rr.Code != http.StatusOK {
		t.Fatalf("register status: got %d, body %s", rr.Code, rr.Body.String())
	}
	var out struct {
		DeviceID string `json:"device_id"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&out); err != nil || out.DeviceID == "" {
		t.Fatalf("decode register response: %v", err)
	}
	return out.DeviceID
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) (string, map[string]string) {
	t.Helper()
	var out struct {
		Error  string            `json:"error"`
		Fields map[string]string `json:"fields"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&out); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return out.Error, out.Fields
}
