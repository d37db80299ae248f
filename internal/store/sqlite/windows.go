package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jeogo/casnos-sub000/internal/models"
	"github.com/jeogo/casnos-sub000/internal/store"
)

const windowColumns = "id, service_id, device_id, active, created_at, updated_at"

func scanWindow(row rowScanner) (models.Window, error) {
	var (
		w         models.Window
		serviceID sql.NullInt64
		deviceID  sql.NullString
		createdAt string
		updatedAt string
	)
	if err := row.Scan(&w.ID, &serviceID, &deviceID, &w.Active, &createdAt, &updatedAt); err != nil {
		return models.Window{}, mapBusy(err)
	}
	if serviceID.Valid {
		w.ServiceID = &serviceID.Int64
	}
	if deviceID.Valid {
		w.DeviceID = &deviceID.String
	}
	w.CreatedAt = parseTime(createdAt)
	w.UpdatedAt = parseTime(updatedAt)
	return w, nil
}

func (s *Store) CreateWindow(ctx context.Context, serviceID *int64) (models.Window, error) {
	if serviceID != nil {
		if _, err := s.GetService(ctx, *serviceID); err != nil {
			return models.Window{}, err
		}
	}
	now := fmtTime(time.Now())
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO windows (service_id, active, created_at, updated_at)
		VALUES (?, 1, ?, ?)
		RETURNING `+windowColumns, nullInt64(serviceID), now, now)
	return scanWindow(row)
}

func (s *Store) GetWindow(ctx context.Context, id int64) (models.Window, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+windowColumns+" FROM windows WHERE id = ?", id)
	window, err := scanWindow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Window{}, store.ErrWindowNotFound
	}
	if err != nil {
		return models.Window{}, err
	}
	return window, nil
}

func (s *Store) ListWindows(ctx context.Context) ([]models.Window, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+windowColumns+" FROM windows ORDER BY id ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	windows := []models.Window{}
	for rows.Next() {
		window, err := scanWindow(rows)
		if err != nil {
			return nil, err
		}
		windows = append(windows, window)
	}
	return windows, rows.Err()
}

// UpdateWindow patches the service assignment and/or active flag. Nil
// fields are left unchanged.
func (s *Store) UpdateWindow(ctx context.Context, id int64, serviceID *int64, active *bool) (models.Window, error) {
	window, err := s.GetWindow(ctx, id)
	if err != nil {
		return models.Window{}, err
	}
	if serviceID != nil {
		if _, err := s.GetService(ctx, *serviceID); err != nil {
			return models.Window{}, err
		}
		window.ServiceID = serviceID
	}
	if active != nil {
		window.Active = *active
	}

	row := s.db.QueryRowContext(ctx, `
		UPDATE windows SET service_id = ?, active = ?, updated_at = ?
		WHERE id = ?
		RETURNING `+windowColumns,
		nullInt64(window.ServiceID), window.Active, fmtTime(time.Now()), id)
	return scanWindow(row)
}

func (s *Store) DeleteWindow(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM windows WHERE id = ?", id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrWindowNotFound
	}
	return nil
}

// EnsureWindowForDevice binds a window row to a window-class device,
// creating one on first registration and reactivating it after.
func (s *Store) EnsureWindowForDevice(ctx context.Context, deviceID string) (models.Window, error) {
	now := fmtTime(time.Now())
	row := s.db.QueryRowContext(ctx, `
		UPDATE windows SET active = 1, updated_at = ?
		WHERE device_id = ?
		RETURNING `+windowColumns, now, deviceID)

	window, err := scanWindow(row)
	if err == nil {
		return window, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return models.Window{}, err
	}

	row = s.db.QueryRowContext(ctx, `
		INSERT INTO windows (device_id, active, created_at, updated_at)
		VALUES (?, 1, ?, ?)
		RETURNING `+windowColumns, deviceID, now, now)
	return scanWindow(row)
}

// DeactivateWindowForDevice marks the bound window inactive when its
// device drops. Reports whether a row changed.
func (s *Store) DeactivateWindowForDevice(ctx context.Context, deviceID string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE windows SET active = 0, updated_at = ?
		WHERE device_id = ? AND active = 1`,
		fmtTime(time.Now()), deviceID)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func nullInt64(value *int64) interface{} {
	if value == nil {
		return nil
	}
	return *value
}
