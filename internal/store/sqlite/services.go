package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/jeogo/casnos-sub000/internal/models"
	"github.com/jeogo/casnos-sub000/internal/store"
)

func scanService(row rowScanner) (models.Service, error) {
	var (
		svc       models.Service
		createdAt string
		updatedAt string
	)
	if err := row.Scan(&svc.ID, &svc.Name, &createdAt, &updatedAt); err != nil {
		return models.Service{}, mapBusy(err)
	}
	svc.CreatedAt = parseTime(createdAt)
	svc.UpdatedAt = parseTime(updatedAt)
	return svc, nil
}

func (s *Store) CreateService(ctx context.Context, name string) (models.Service, error) {
	now := fmtTime(time.Now())
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO services (name, created_at, updated_at) VALUES (?, ?, ?)
		RETURNING id, name, created_at, updated_at`, name, now, now)

	svc, err := scanService(row)
	if err != nil {
		if isUniqueViolation(err) {
			return models.Service{}, store.ErrDuplicate
		}
		return models.Service{}, err
	}
	return svc, nil
}

func (s *Store) GetService(ctx context.Context, id int64) (models.Service, error) {
	row := s.db.QueryRowContext(ctx, "SELECT id, name, created_at, updated_at FROM services WHERE id = ?", id)
	svc, err := scanService(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Service{}, store.ErrServiceNotFound
	}
	if err != nil {
		return models.Service{}, err
	}
	return svc, nil
}

func (s *Store) ListServices(ctx context.Context) ([]models.Service, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, name, created_at, updated_at FROM services ORDER BY id ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	services := []models.Service{}
	for rows.Next() {
		svc, err := scanService(rows)
		if err != nil {
			return nil, err
		}
		services = append(services, svc)
	}
	return services, rows.Err()
}

func (s *Store) DeleteService(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM services WHERE id = ?", id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrServiceNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
