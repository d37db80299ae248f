package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jeogo/casnos-sub000/internal/models"
	"github.com/jeogo/casnos-sub000/internal/store"
)

const resetColumns = "id, last_reset_date, last_reset_timestamp, tickets_reset, files_reset, cache_reset, created_at"

func scanReset(row rowScanner) (models.DailyResetRecord, error) {
	var (
		r         models.DailyResetRecord
		timestamp string
		createdAt string
	)
	err := row.Scan(&r.ID, &r.LastResetDate, &timestamp, &r.TicketsReset, &r.FilesReset, &r.CacheReset, &createdAt)
	if err != nil {
		return models.DailyResetRecord{}, mapBusy(err)
	}
	r.LastResetTime = parseTime(timestamp)
	r.CreatedAt = parseTime(createdAt)
	return r, nil
}

func (s *Store) GetResetRecord(ctx context.Context, date string) (models.DailyResetRecord, bool, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+resetColumns+" FROM daily_resets WHERE last_reset_date = ?", date)
	record, err := scanReset(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.DailyResetRecord{}, false, nil
	}
	if err != nil {
		return models.DailyResetRecord{}, false, err
	}
	return record, true, nil
}

// WriteResetRecord records a completed reset. The UNIQUE date column
// turns a concurrent double-run into ErrDuplicate.
func (s *Store) WriteResetRecord(ctx context.Context, input store.ResetLedgerInput) (models.DailyResetRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO daily_resets (last_reset_date, last_reset_timestamp, tickets_reset, files_reset, cache_reset, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING `+resetColumns,
		input.Date, fmtTime(input.Timestamp), input.TicketsReset, input.FilesReset, input.CacheReset, fmtTime(time.Now()))

	record, err := scanReset(row)
	if err != nil {
		if isUniqueViolation(err) {
			return models.DailyResetRecord{}, store.ErrDuplicate
		}
		return models.DailyResetRecord{}, err
	}
	return record, nil
}

func (s *Store) DeleteResetRecord(ctx context.Context, date string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM daily_resets WHERE last_reset_date = ?", date)
	return err
}

func (s *Store) LastResetRecord(ctx context.Context) (models.DailyResetRecord, bool, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+resetColumns+" FROM daily_resets ORDER BY last_reset_date DESC LIMIT 1")
	record, err := scanReset(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.DailyResetRecord{}, false, nil
	}
	if err != nil {
		return models.DailyResetRecord{}, false, err
	}
	return record, true, nil
}

func (s *Store) PurgeResetRecords(ctx context.Context, before time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM daily_resets WHERE created_at < ?", fmtTime(before))
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
