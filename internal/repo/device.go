package repo

import (
	"context"
	"database/sql"
	"time"

	"github.com/crucial707/aquamarine/internal/models"
)

// DeviceRepo persists devices.
type DeviceRepo struct {
	DB *sql.DB
	// Now is the clock used for timestamps; defaults to time.Now in UTC.
	Now func() time.Time
}

// NewDeviceRepo returns a new DeviceRepo.
func NewDeviceRepo(db *sql.DB) *DeviceRepo {
	return &DeviceRepo{DB: db, Now: func() time.Time { return time.Now().UTC() }}
}

// Create inserts a device. A duplicate gpio_number yields ErrPinInUse.
func (r *DeviceRepo) Create(ctx context.Context, id, name string, pin int) error {
	now := r.Now()
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO devices (device_id, device_name, gpio_number, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
		id, name, pin, now, now,
	)
	if isUniqueViolation(err) {
		return ErrPinInUse
	}
	return err
}

// FindAll returns every device, oldest first.
func (r *DeviceRepo) FindAll(ctx context.Context) ([]models.Device, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT device_id, device_name, gpio_number, created_at, updated_at
		FROM devices
		ORDER BY created_at, device_id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.Device
	for rows.Next() {
		var d models.Device
		if err := rows.Scan(&d.DeviceID, &d.DeviceName, &d.GPIONumber, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, d)
	}
	return list, rows.Err()
}

// FindByID returns one device, or nil when it does not exist.
func (r *DeviceRepo) FindByID(ctx context.Context, id string) (*models.Device, error) {
	d := &models.Device{}
	err := r.DB.QueryRowContext(ctx, `
		SELECT device_id, device_name, gpio_number, created_at, updated_at
		FROM devices
		WHERE device_id = $1
	`, id).Scan(&d.DeviceID, &d.DeviceName, &d.GPIONumber, &d.CreatedAt, &d.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return d, nil
}

// Update changes the name and/or pin; nil leaves a column as is.
// Returns false when no device has that id.
func (r *DeviceRepo) Update(ctx context.Context, id string, name *string, pin *int) (bool, error) {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE devices SET device_name = COALESCE($1, device_name), gpio_number = COALESCE($2, gpio_number), updated_at = $3 WHERE device_id = $4`,
		name, pin, r.Now(), id,
	)
	if isUniqueViolation(err) {
		return false, ErrPinInUse
	}
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// Delete removes a device. Returns false when no device has that id.
func (r *DeviceRepo) Delete(ctx context.Context, id string) (bool, error) {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM devices WHERE device_id = $1`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// UpdateTimestamp bumps updated_at, e.g. after the device was toggled.
func (r *DeviceRepo) UpdateTimestamp(ctx context.Context, id string) error {
	_, err := r.DB.ExecContext(ctx, `UPDATE devices SET updated_at = $1 WHERE device_id = $2`, r.Now(), id)
	return err
}
