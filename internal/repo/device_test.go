package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
)

var deviceColumns = []string{"device_id", "device_name", "gpio_number", "created_at", "updated_at"}

func newDeviceRepo(t *testing.T) (*DeviceRepo, sqlmock.Sqlmock, time.Time) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	r := NewDeviceRepo(db)
	r.Now = func() time.Time { return now }
	return r, mock, now
}

func TestDeviceRepo_Create(t *testing.T) {
	r, mock, now := newDeviceRepo(t)

	mock.ExpectExec(`INSERT INTO devices`).
		WithArgs("d1", "Lamp", 18, now, now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := r.Create(context.Background(), "d1", "Lamp", 18); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}

func TestDeviceRepo_Create_PinInUse(t *testing.T) {
	r, mock, now := newDeviceRepo(t)

	mock.ExpectExec(`INSERT INTO devices`).
		WithArgs("d2", "Fan", 18, now, now).
		WillReturnError(&pq.Error{Code: "23505"})

	err := r.Create(context.Background(), "d2", "Fan", 18)
	if !errors.Is(err, ErrPinInUse) {
		t.Fatalf("Create: got %v, want ErrPinInUse", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}

func TestDeviceRepo_FindAll(t *testing.T) {
	r, mock, now := newDeviceRepo(t)

	mock.ExpectQuery(`SELECT device_id, device_name, gpio_number, created_at, updated_at`).
		WillReturnRows(sqlmock.NewRows(deviceColumns).
			AddRow("d1", "Lamp", 18, now, now).
			AddRow("d2", "Fan", 19, now, now))

	list, err := r.FindAll(context.Background())
	if err != nil {
		t.Fatalf("FindAll: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 devices, got %d", len(list))
	}
	if list[0].DeviceID != "d1" || list[0].GPIONumber != 18 || list[1].DeviceName != "Fan" {
		t.Errorf("unexpected devices: %+v", list)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}

func TestDeviceRepo_FindByID(t *testing.T) {
	r, mock, now := newDeviceRepo(t)

	mock.ExpectQuery(`SELECT device_id, device_name, gpio_number, created_at, updated_at`).
		WithArgs("d1").
		WillReturnRows(sqlmock.NewRows(deviceColumns).AddRow("d1", "Lamp", 18, now, now))

	d, err := r.FindByID(context.Background(), "d1")
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if d == nil || d.DeviceName != "Lamp" || d.GPIONumber != 18 || !d.CreatedAt.Equal(now) {
		t.Errorf("unexpected device: %+v", d)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}

func TestDeviceRepo_FindByID_NotFound(t *testing.T) {
	r, mock, _ := newDeviceRepo(t)

	mock.ExpectQuery(`SELECT device_id, device_name, gpio_number, created_at, updated_at`).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(deviceColumns))

	d, err := r.FindByID(context.Background(), "missing")
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if d != nil {
		t.Errorf("expected nil, got %+v", d)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}

func TestDeviceRepo_Update(t *testing.T) {
	r, mock, now := newDeviceRepo(t)
	pin := 19

	mock.ExpectExec(`UPDATE devices SET device_name = COALESCE`).
		WithArgs(nil, 19, now, "d1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	ok, err := r.Update(context.Background(), "d1", nil, &pin)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if !ok {
		t.Error("expected Update to report a changed row")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}

func TestDeviceRepo_Update_Missing(t *testing.T) {
	r, mock, now := newDeviceRepo(t)
	name := "Heater"

	mock.ExpectExec(`UPDATE devices SET device_name = COALESCE`).
		WithArgs("Heater", nil, now, "nope").
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := r.Update(context.Background(), "nope", &name, nil)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if ok {
		t.Error("expected Update to report no row")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}

func TestDeviceRepo_Delete(t *testing.T) {
	r, mock, _ := newDeviceRepo(t)

	mock.ExpectExec(`DELETE FROM devices WHERE device_id`).
		WithArgs("d1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM devices WHERE device_id`).
		WithArgs("d1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if ok, err := r.Delete(context.Background(), "d1"); err != nil || !ok {
		t.Fatalf("Delete: ok=%v err=%v", ok, err)
	}
	if ok, err := r.Delete(context.Background(), "d1"); err != nil || ok {
		t.Fatalf("second Delete: ok=%v err=%v", ok, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}

func TestDeviceRepo_UpdateTimestamp(t *testing.T) {
	r, mock, now := newDeviceRepo(t)

	mock.ExpectExec(`UPDATE devices SET updated_at`).
		WithArgs(now, "d1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := r.UpdateTimestamp(context.Background(), "d1"); err != nil {
		t.Fatalf("UpdateTimestamp: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}
