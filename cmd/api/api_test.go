package main

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

	"github.com/crucial707/aquamarine/internal/config"
	"github.com/crucial707/aquamarine/internal/db"
	"github.com/crucial707/aquamarine/internal/gpio"
	"github.com/crucial707/aquamarine/internal/middleware"
	"github.com/crucial707/aquamarine/internal/models"
	"github.com/crucial707/aquamarine/internal/mqtt"
	"github.com/crucial707/aquamarine/internal/repo"
)

func testConfig() config.Config {
	return config.Config{
		DBType:             config.DBTypeSQLite,
		DBPath:             ":memory:",
		GPIODriver:         config.GPIODriverMock,
		ScheduleTimezone:   "Asia/Tokyo",
		RateLimitPerMinute: 6000,
	}
}

// newTestApp wires the real stack on a migrated in-memory sqlite database.
func newTestApp(t *testing.T, cfg config.Config) (*app, *gpio.Mock) {
	t.Helper()
	database, err := db.OpenSQLite(cfg.DBPath)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	if err := db.Migrate(database, cfg); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	pins := gpio.NewMock()
	a, err := newApp(database, cfg, pins, mqtt.Nop{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("newApp: %v", err)
	}
	return a, pins
}

func doJSON(t *testing.T, srv *httptest.Server, method, path string, body any, token string) *http.Response {
	t.Helper()
	var rdr io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, srv.URL+path, rdr)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return v
}

// TestAPI_ScheduleLifecycle registers a device on pin 18, schedules it for
// 14:30, checks the trigger table, then deletes the schedule.
func TestAPI_ScheduleLifecycle(t *testing.T) {
	a, _ := newTestApp(t, testConfig())
	srv := httptest.NewServer(newRouter(a))
	defer srv.Close()

	resp := doJSON(t, srv, http.MethodPost, "/device/register", map[string]any{"device_name": "pump", "gpio_number": 18}, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("register: got %d", resp.StatusCode)
	}
	device := decode[models.Device](t, resp)

	resp = doJSON(t, srv, http.MethodPost, "/device/"+device.DeviceID+"/schedule", map[string]any{"schedule": "14:30", "is_on": true}, "")
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create schedule: got %d", resp.StatusCode)
	}
	sched := decode[models.Schedule](t, resp)

	resp = doJSON(t, srv, http.MethodGet, "/schedule/triggers", nil, "")
	trs := decode[struct {
		Triggers []struct {
			ScheduleID string    `json:"schedule_id"`
			GPIONumber int       `json:"gpio_number"`
			Hour       int       `json:"hour"`
			Minute     int       `json:"minute"`
			IsOn       bool      `json:"is_on"`
			NextRun    time.Time `json:"next_run"`
		} `json:"triggers"`
	}](t, resp)
	if len(trs.Triggers) != 1 {
		t.Fatalf("expected 1 trigger, got %d", len(trs.Triggers))
	}
	tr := trs.Triggers[0]
	if tr.ScheduleID != sched.ScheduleID || tr.GPIONumber != 18 || tr.Hour != 14 || tr.Minute != 30 || !tr.IsOn {
		t.Errorf("unexpected trigger: %+v", tr)
	}
	tokyo, _ := time.LoadLocation("Asia/Tokyo")
	if next := tr.NextRun.In(tokyo); next.Hour() != 14 || next.Minute() != 30 {
		t.Errorf("next run %v is not 14:30 Tokyo time", next)
	}

	resp = doJSON(t, srv, http.MethodDelete, "/schedule/"+sched.ScheduleID, nil, "")
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete schedule: got %d", resp.StatusCode)
	}
	if a.exec.Len() != 0 {
		t.Errorf("trigger table not empty after delete: %d", a.exec.Len())
	}
	resp = doJSON(t, srv, http.MethodDelete, "/schedule/"+sched.ScheduleID, nil, "")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("second delete: got %d, want 404", resp.StatusCode)
	}
}

// TestAPI_ReconcileOnRestart stores schedules directly, one of them for a
// device that no longer exists, and checks a fresh process arms only the
// live one.
func TestAPI_ReconcileOnRestart(t *testing.T) {
	a, _ := newTestApp(t, testConfig())
	ctx := context.Background()

	if _, err := a.devices.Register(ctx, "pump", 18); err != nil {
		t.Fatalf("Register: %v", err)
	}
	list, _ := a.devices.List(ctx)
	deviceID := list[0].DeviceID

	scheduleRepo := repo.NewScheduleRepo(a.db)
	if _, err := scheduleRepo.Save(ctx, models.Schedule{ScheduleID: "live", DeviceID: deviceID, Schedule: "14:30", IsOn: true}); err != nil {
		t.Fatalf("Save live: %v", err)
	}
	// The orphan row needs its device to exist while it is inserted.
	if _, err := a.db.ExecContext(ctx, `INSERT INTO devices (device_id, device_name, gpio_number, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
		"ghost", "ghost", 99, time.Now().UTC(), time.Now().UTC()); err != nil {
		t.Fatalf("insert ghost: %v", err)
	}
	if _, err := scheduleRepo.Save(ctx, models.Schedule{ScheduleID: "orphan", DeviceID: "ghost", Schedule: "08:00"}); err != nil {
		t.Fatalf("Save orphan: %v", err)
	}
	if _, err := a.db.ExecContext(ctx, `PRAGMA foreign_keys = OFF`); err != nil {
		t.Fatalf("pragma: %v", err)
	}
	if _, err := a.db.ExecContext(ctx, `DELETE FROM devices WHERE device_id = $1`, "ghost"); err != nil {
		t.Fatalf("delete ghost: %v", err)
	}

	// A restarted process builds a new executor over the same database.
	restarted, err := newApp(a.db, a.cfg, gpio.NewMock(), mqtt.Nop{}, a.logger)
	if err != nil {
		t.Fatalf("newApp: %v", err)
	}
	res, err := restarted.schedules.Reconcile(ctx)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if res.Armed != 1 || res.Skipped != 1 {
		t.Errorf("unexpected result: %+v", res)
	}
	trs := restarted.exec.Triggers()
	if len(trs) != 1 || trs[0].ScheduleID != "live" || trs[0].GPIONumber != 18 {
		t.Errorf("unexpected triggers: %+v", trs)
	}
}

func TestAPI_DeviceCascade(t *testing.T) {
	a, pins := newTestApp(t, testConfig())
	srv := httptest.NewServer(newRouter(a))
	defer srv.Close()

	device := decode[models.Device](t, doJSON(t, srv, http.MethodPost, "/device", map[string]any{"device_name": "lamp", "gpio_number": 23}, ""))
	for _, hhmm := range []string{"06:00", "22:00"} {
		if resp := doJSON(t, srv, http.MethodPost, "/device/"+device.DeviceID+"/schedule", map[string]any{"schedule": hhmm, "is_on": hhmm == "06:00"}, ""); resp.StatusCode != http.StatusCreated {
			t.Fatalf("schedule %s: got %d", hhmm, resp.StatusCode)
		}
	}

	if resp := doJSON(t, srv, http.MethodPost, "/device/"+device.DeviceID+"/on", nil, ""); resp.StatusCode != http.StatusOK {
		t.Fatalf("on: got %d", resp.StatusCode)
	}
	if on, _ := pins.Status(23); !on {
		t.Error("pin 23 should be on")
	}

	resp := doJSON(t, srv, http.MethodDelete, "/device/"+device.DeviceID, nil, "")
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete device: got %d", resp.StatusCode)
	}
	if a.exec.Len() != 0 {
		t.Errorf("triggers left after device delete: %d", a.exec.Len())
	}
	resp = doJSON(t, srv, http.MethodGet, "/device/"+device.DeviceID+"/status", nil, "")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status after delete: got %d, want 404", resp.StatusCode)
	}

	resp = doJSON(t, srv, http.MethodGet, "/audit", nil, "")
	entries := decode[[]models.AuditEntry](t, resp)
	if len(entries) < 5 {
		t.Errorf("expected audit entries for register, schedules, on and delete, got %d", len(entries))
	}
}

func TestAPI_WritesRequireTokenWhenSecretSet(t *testing.T) {
	cfg := testConfig()
	cfg.JWTSecret = "integration-secret"
	a, _ := newTestApp(t, cfg)
	srv := httptest.NewServer(newRouter(a))
	defer srv.Close()

	body := map[string]any{"device_name": "pump", "gpio_number": 18}
	if resp := doJSON(t, srv, http.MethodPost, "/device/register", body, ""); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("without token: got %d, want 401", resp.StatusCode)
	}
	if resp := doJSON(t, srv, http.MethodGet, "/device/list", nil, ""); resp.StatusCode != http.StatusOK {
		t.Errorf("reads stay open: got %d", resp.StatusCode)
	}

	token, err := middleware.IssueToken([]byte(cfg.JWTSecret), "operator", time.Minute)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	if resp := doJSON(t, srv, http.MethodPost, "/device/register", body, token); resp.StatusCode != http.StatusOK {
		t.Errorf("with token: got %d, want 200", resp.StatusCode)
	}
}

func TestAPI_HealthReadyMetrics(t *testing.T) {
	a, _ := newTestApp(t, testConfig())
	srv := httptest.NewServer(newRouter(a))
	defer srv.Close()

	if resp := doJSON(t, srv, http.MethodGet, "/health", nil, ""); resp.StatusCode != http.StatusOK {
		t.Errorf("health: got %d", resp.StatusCode)
	}
	if resp := doJSON(t, srv, http.MethodGet, "/ready", nil, ""); resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("ready before scheduler start: got %d, want 503", resp.StatusCode)
	}
	a.exec.Start()
	defer a.exec.Stop(context.Background())
	if resp := doJSON(t, srv, http.MethodGet, "/ready", nil, ""); resp.StatusCode != http.StatusOK {
		t.Errorf("ready: got %d", resp.StatusCode)
	}

	resp := doJSON(t, srv, http.MethodGet, "/metrics", nil, "")
	b, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || !bytes.Contains(b, []byte("schedule_triggers_armed")) {
		t.Errorf("metrics: got %d without scheduler gauge", resp.StatusCode)
	}
}
