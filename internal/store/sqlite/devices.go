package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jeogo/casnos-sub000/internal/models"
	"github.com/jeogo/casnos-sub000/internal/store"
)

const deviceColumns = "id, device_id, name, ip_address, device_type, status, last_seen, created_at, updated_at"

func scanDevice(row rowScanner) (models.Device, error) {
	var (
		d         models.Device
		lastSeen  string
		createdAt string
		updatedAt string
	)
	err := row.Scan(&d.ID, &d.DeviceID, &d.Name, &d.IPAddress, &d.DeviceType, &d.Status,
		&lastSeen, &createdAt, &updatedAt)
	if err != nil {
		return models.Device{}, mapBusy(err)
	}
	d.LastSeen = parseTime(lastSeen)
	d.CreatedAt = parseTime(createdAt)
	d.UpdatedAt = parseTime(updatedAt)
	return d, nil
}

// UpsertDevice registers or refreshes a device row and marks it online.
func (s *Store) UpsertDevice(ctx context.Context, input store.RegisterDeviceInput) (models.Device, error) {
	now := fmtTime(input.SeenAt)
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO devices (device_id, name, ip_address, device_type, status, last_seen, created_at, updated_at)
		VALUES (?, ?, ?, ?, 'online', ?, ?, ?)
		ON CONFLICT(device_id) DO UPDATE SET
			name = excluded.name,
			ip_address = excluded.ip_address,
			device_type = excluded.device_type,
			status = 'online',
			last_seen = excluded.last_seen,
			updated_at = excluded.updated_at
		RETURNING `+deviceColumns,
		input.DeviceID, input.Name, input.IPAddress, input.DeviceType, now, now, now)

	return scanDevice(row)
}

func (s *Store) GetDevice(ctx context.Context, deviceID string) (models.Device, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+deviceColumns+" FROM devices WHERE device_id = ?", deviceID)
	device, err := scanDevice(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Device{}, store.ErrDeviceNotFound
	}
	if err != nil {
		return models.Device{}, err
	}
	return device, nil
}

func (s *Store) ListDevices(ctx context.Context) ([]models.Device, error) {
	return s.queryDevices(ctx, "SELECT "+deviceColumns+" FROM devices ORDER BY device_id ASC")
}

func (s *Store) ListOnlineDevices(ctx context.Context) ([]models.Device, error) {
	return s.queryDevices(ctx, "SELECT "+deviceColumns+" FROM devices WHERE status = 'online' ORDER BY device_id ASC")
}

func (s *Store) queryDevices(ctx context.Context, query string, args ...interface{}) ([]models.Device, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	devices := []models.Device{}
	for rows.Next() {
		device, err := scanDevice(rows)
		if err != nil {
			return nil, err
		}
		devices = append(devices, device)
	}
	return devices, rows.Err()
}

// TouchDevice refreshes last_seen for a heartbeat. Unknown devices are
// not created here; heartbeats only extend an existing registration.
func (s *Store) TouchDevice(ctx context.Context, deviceID string, seenAt time.Time) (models.Device, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE devices SET status = 'online', last_seen = ?, updated_at = ?
		WHERE device_id = ?
		RETURNING `+deviceColumns,
		fmtTime(seenAt), fmtTime(seenAt), deviceID)

	device, err := scanDevice(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Device{}, store.ErrDeviceNotFound
	}
	if err != nil {
		return models.Device{}, err
	}
	return device, nil
}

// MarkOffline is idempotent: it reports whether the row actually flipped,
// so the disconnect path and the stale sweep converge on one eviction.
func (s *Store) MarkOffline(ctx context.Context, deviceID string, at time.Time) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE devices SET status = 'offline', updated_at = ?
		WHERE device_id = ? AND status != 'offline'`,
		fmtTime(at), deviceID)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// MarkStaleOffline flips every online device not seen since cutoff and
// returns the affected device ids.
func (s *Store) MarkStaleOffline(ctx context.Context, cutoff time.Time) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		UPDATE devices SET status = 'offline', updated_at = ?
		WHERE status = 'online' AND last_seen < ?
		RETURNING device_id`,
		fmtTime(time.Now()), fmtTime(cutoff))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func scanPrinter(row rowScanner) (models.DevicePrinter, error) {
	var (
		p         models.DevicePrinter
		createdAt string
	)
	if err := row.Scan(&p.ID, &p.DeviceID, &p.PrinterID, &p.PrinterName, &p.IsDefault, &createdAt); err != nil {
		return models.DevicePrinter{}, mapBusy(err)
	}
	p.CreatedAt = parseTime(createdAt)
	return p, nil
}

func (s *Store) AddPrinter(ctx context.Context, input store.AddPrinterInput) (models.DevicePrinter, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM devices WHERE device_id = ?)", input.DeviceID).Scan(&exists)
	if err != nil {
		return models.DevicePrinter{}, err
	}
	if !exists {
		return models.DevicePrinter{}, store.ErrDeviceNotFound
	}

	if input.IsDefault {
		if _, err := s.db.ExecContext(ctx,
			"UPDATE device_printers SET is_default = 0 WHERE device_id = ?", input.DeviceID); err != nil {
			return models.DevicePrinter{}, err
		}
	}

	row := s.db.QueryRowContext(ctx, `
		INSERT INTO device_printers (device_id, printer_id, printer_name, is_default, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(device_id, printer_id) DO UPDATE SET
			printer_name = excluded.printer_name,
			is_default = excluded.is_default
		RETURNING id, device_id, printer_id, printer_name, is_default, created_at`,
		input.DeviceID, input.PrinterID, input.PrinterName, input.IsDefault, fmtTime(time.Now()))

	return scanPrinter(row)
}

func (s *Store) ListPrinters(ctx context.Context, deviceID string) ([]models.DevicePrinter, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, device_id, printer_id, printer_name, is_default, created_at
		FROM device_printers WHERE device_id = ? ORDER BY id ASC`, deviceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	printers := []models.DevicePrinter{}
	for rows.Next() {
		printer, err := scanPrinter(rows)
		if err != nil {
			return nil, err
		}
		printers = append(printers, printer)
	}
	return printers, rows.Err()
}

func (s *Store) RemovePrinter(ctx context.Context, deviceID, printerID string) error {
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM device_printers WHERE device_id = ? AND printer_id = ?", deviceID, printerID)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrPrinterNotFound
	}
	return nil
}

// PruneOrphanPrinters drops printer rows whose device row is gone.
// The FK cascade normally covers this; the daily reset calls it as a
// safety net for rows written before the cascade existed.
func (s *Store) PruneOrphanPrinters(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM device_printers
		WHERE device_id NOT IN (SELECT device_id FROM devices)`)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
