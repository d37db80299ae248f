package models

import "time"

// DailyResetRecord is the ledger row proving the reset ran for a given
// local date. The UNIQUE last_reset_date column is the idempotency guard.
type DailyResetRecord struct {
	ID            int64     `json:"id"`
	LastResetDate string    `json:"last_reset_date"`
	LastResetTime time.Time `json:"last_reset_timestamp"`
	TicketsReset  bool      `json:"tickets_reset"`
	FilesReset    bool      `json:"files_reset"`
	CacheReset    bool      `json:"cache_reset"`
	CreatedAt     time.Time `json:"created_at"`
}
