package repo

import (
	"context"
	"database/sql"
	"time"

	"github.com/crucial707/aquamarine/internal/models"
)

// ScheduleRepo persists device schedules.
type ScheduleRepo struct {
	DB *sql.DB
}

// NewScheduleRepo returns a new ScheduleRepo.
func NewScheduleRepo(db *sql.DB) *ScheduleRepo {
	return &ScheduleRepo{DB: db}
}

// Save inserts s as given; the caller assigns ScheduleID and CreatedAt.
func (r *ScheduleRepo) Save(ctx context.Context, s models.Schedule) (*models.Schedule, error) {
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO schedules (schedule_id, device_id, schedule, is_on, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		s.ScheduleID, s.DeviceID, s.Schedule, s.IsOn, s.CreatedAt, s.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// FindByDevice returns the device's schedules ordered by time of day.
// Times are stored zero-padded so text order is chronological.
func (r *ScheduleRepo) FindByDevice(ctx context.Context, deviceID string) ([]models.Schedule, error) {
	return r.query(ctx, `
		SELECT schedule_id, device_id, schedule, is_on, created_at
		FROM schedules
		WHERE device_id = $1
		ORDER BY schedule, schedule_id
	`, deviceID)
}

// FindAll returns every schedule (used to rebuild triggers at startup).
func (r *ScheduleRepo) FindAll(ctx context.Context) ([]models.Schedule, error) {
	return r.query(ctx, `
		SELECT schedule_id, device_id, schedule, is_on, created_at
		FROM schedules
		ORDER BY created_at, schedule_id
	`)
}

// FindByID returns one schedule, or nil when it does not exist.
func (r *ScheduleRepo) FindByID(ctx context.Context, id string) (*models.Schedule, error) {
	s := &models.Schedule{}
	err := r.DB.QueryRowContext(ctx, `
		SELECT schedule_id, device_id, schedule, is_on, created_at
		FROM schedules
		WHERE schedule_id = $1
	`, id).Scan(&s.ScheduleID, &s.DeviceID, &s.Schedule, &s.IsOn, &s.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Delete removes a schedule. Returns false when no schedule has that id.
func (r *ScheduleRepo) Delete(ctx context.Context, id string) (bool, error) {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM schedules WHERE schedule_id = $1`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// DeleteByDevice removes all schedules of a device and returns how many were removed.
func (r *ScheduleRepo) DeleteByDevice(ctx context.Context, deviceID string) (int64, error) {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM schedules WHERE device_id = $1`, deviceID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *ScheduleRepo) query(ctx context.Context, query string, args ...any) ([]models.Schedule, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.Schedule
	for rows.Next() {
		var s models.Schedule
		if err := rows.Scan(&s.ScheduleID, &s.DeviceID, &s.Schedule, &s.IsOn, &s.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, s)
	}
	return list, rows.Err()
}
