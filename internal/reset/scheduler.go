// Package reset clears the queue once per local day: purge tickets,
// restart numbering, sweep generated files and stale cache rows, then
// compact the database. A ledger row keyed by date makes the reset
// idempotent across restarts and double-fires.
package reset

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/jeogo/casnos-sub000/internal/models"
	"github.com/jeogo/casnos-sub000/internal/store"
)

type Broadcaster interface {
	EmitToAll(event string, data interface{})
}

// Store is the persistence slice the scheduler drives.
type Store interface {
	GetResetRecord(ctx context.Context, date string) (models.DailyResetRecord, bool, error)
	WriteResetRecord(ctx context.Context, input store.ResetLedgerInput) (models.DailyResetRecord, error)
	DeleteResetRecord(ctx context.Context, date string) error
	LastResetRecord(ctx context.Context) (models.DailyResetRecord, bool, error)
	PurgeResetRecords(ctx context.Context, before time.Time) (int64, error)
	DeleteAllTickets(ctx context.Context) (int64, error)
	ResetTicketSequence(ctx context.Context) error
	PruneOrphanPrinters(ctx context.Context) (int64, error)
	Maintain(ctx context.Context) error
}

type Config struct {
	// Enabled gates the scheduled and safety-check runs. Force ignores
	// it, an admin asking for a reset gets one.
	Enabled bool
	// ResetTime is local "HH:MM".
	ResetTime      string
	TicketsEnabled bool
	FilesEnabled   bool
	CacheEnabled   bool
	// ArtifactDirs are scanned for generated .pdf slips.
	ArtifactDirs  []string
	RetentionDays int
	// SafetyInterval is the catch-up check cadence. Defaults to 1h.
	SafetyInterval time.Duration
}

// Scheduler owns one timer and one notion of the next run. Force and
// config updates go through the same rearm path, so there is a single
// source of truth for when the reset fires next.
type Scheduler struct {
	store Store
	bus   Broadcaster
	now   func() time.Time

	mu      sync.Mutex
	cfg     Config
	nextRun time.Time
	rearm   chan struct{}
}

func NewScheduler(st Store, bus Broadcaster, cfg Config) *Scheduler {
	if cfg.ResetTime == "" {
		cfg.ResetTime = "00:00"
	}
	if cfg.RetentionDays <= 0 {
		cfg.RetentionDays = 30
	}
	if cfg.SafetyInterval <= 0 {
		cfg.SafetyInterval = time.Hour
	}
	return &Scheduler{
		store: st,
		bus:   bus,
		now:   time.Now,
		cfg:   cfg,
		rearm: make(chan struct{}, 1),
	}
}

// Run blocks until ctx is cancelled. It checks once at startup (catch
// up after downtime), then fires at the configured time, with an hourly
// safety check behind it.
func (s *Scheduler) Run(ctx context.Context) {
	if _, err := s.RunIfNeeded(ctx); err != nil {
		log.Printf("daily reset startup check: %v", err)
	}

	s.mu.Lock()
	interval := s.cfg.SafetyInterval
	s.mu.Unlock()

	timer := time.NewTimer(s.armNext())
	defer timer.Stop()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			if _, err := s.RunIfNeeded(ctx); err != nil {
				log.Printf("daily reset: %v", err)
			}
			timer.Reset(s.armNext())
		case <-ticker.C:
			if _, err := s.RunIfNeeded(ctx); err != nil {
				log.Printf("daily reset safety check: %v", err)
			}
		case <-s.rearm:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(s.armNext())
		}
	}
}

// armNext computes the duration until the next configured reset and
// records it as the scheduler's next run.
func (s *Scheduler) armNext() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := nextRunTime(s.now(), s.cfg.ResetTime)
	s.nextRun = next
	return time.Until(next)
}

func nextRunTime(from time.Time, resetTime string) time.Time {
	hour, minute := 0, 0
	if _, err := fmt.Sscanf(resetTime, "%d:%d", &hour, &minute); err != nil {
		hour, minute = 0, 0
	}
	next := time.Date(from.Year(), from.Month(), from.Day(), hour, minute, 0, 0, from.Location())
	if !next.After(from) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// RunIfNeeded performs the reset unless the feature is disabled or the
// ledger already has a row for today. Returns whether a reset ran.
func (s *Scheduler) RunIfNeeded(ctx context.Context) (bool, error) {
	s.mu.Lock()
	enabled := s.cfg.Enabled
	s.mu.Unlock()
	if !enabled {
		return false, nil
	}

	date := s.now().Format("2006-01-02")
	if _, done, err := s.store.GetResetRecord(ctx, date); err != nil {
		return false, err
	} else if done {
		return false, nil
	}
	if err := s.perform(ctx, date); err != nil {
		return false, err
	}
	return true, nil
}

// Force deletes today's ledger row and reruns the reset, then rearms
// the timer so the scheduled fire moves with any config change.
func (s *Scheduler) Force(ctx context.Context) error {
	date := s.now().Format("2006-01-02")
	if err := s.store.DeleteResetRecord(ctx, date); err != nil {
		return err
	}
	if err := s.perform(ctx, date); err != nil {
		return err
	}
	s.requestRearm()
	return nil
}

// perform runs the enabled actions in order. The ledger row is written
// only when every enabled action succeeded; a partial failure leaves no
// row, so the hourly safety check retries.
func (s *Scheduler) perform(ctx context.Context, date string) error {
	s.mu.Lock()
	cfg := s.cfg
	s.mu.Unlock()

	started := s.now()

	if cfg.TicketsEnabled {
		deleted, err := s.store.DeleteAllTickets(ctx)
		if err != nil {
			return fmt.Errorf("delete tickets: %w", err)
		}
		if err := s.store.ResetTicketSequence(ctx); err != nil {
			return fmt.Errorf("reset sequence: %w", err)
		}
		log.Printf("daily reset date=%s tickets_deleted=%d", date, deleted)
	}

	if cfg.FilesEnabled {
		removed, err := removeArtifacts(cfg.ArtifactDirs)
		if err != nil {
			return fmt.Errorf("remove artifacts: %w", err)
		}
		log.Printf("daily reset date=%s files_removed=%d", date, removed)
	}

	if cfg.CacheEnabled {
		if _, err := s.store.PruneOrphanPrinters(ctx); err != nil {
			return fmt.Errorf("prune printers: %w", err)
		}
		cutoff := s.now().AddDate(0, 0, -cfg.RetentionDays)
		if _, err := s.store.PurgeResetRecords(ctx, cutoff); err != nil {
			return fmt.Errorf("purge ledger: %w", err)
		}
	}

	if err := s.store.Maintain(ctx); err != nil {
		return fmt.Errorf("maintain: %w", err)
	}

	_, err := s.store.WriteResetRecord(ctx, store.ResetLedgerInput{
		Date:         date,
		Timestamp:    started,
		TicketsReset: cfg.TicketsEnabled,
		FilesReset:   cfg.FilesEnabled,
		CacheReset:   cfg.CacheEnabled,
	})
	if err != nil && !errors.Is(err, store.ErrDuplicate) {
		return fmt.Errorf("write ledger: %w", err)
	}

	s.bus.EmitToAll("system-reset", map[string]interface{}{
		"date":    date,
		"tickets": cfg.TicketsEnabled,
		"files":   cfg.FilesEnabled,
		"cache":   cfg.CacheEnabled,
	})
	return nil
}

// removeArtifacts deletes generated .pdf slips under the configured
// directories. Missing directories are not an error.
func removeArtifacts(dirs []string) (int, error) {
	removed := 0
	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return removed, err
		}
		for _, entry := range entries {
			if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".pdf") {
				continue
			}
			if err := os.Remove(filepath.Join(dir, entry.Name())); err != nil {
				return removed, err
			}
			removed++
		}
	}
	return removed, nil
}

type Status struct {
	NextRun    time.Time                `json:"next_run"`
	LastRecord *models.DailyResetRecord `json:"last_record,omitempty"`
	Config     Config                   `json:"config"`
}

func (s *Scheduler) Status(ctx context.Context) (Status, error) {
	record, found, err := s.store.LastResetRecord(ctx)
	if err != nil {
		return Status{}, err
	}
	s.mu.Lock()
	status := Status{NextRun: s.nextRun, Config: s.cfg}
	s.mu.Unlock()
	if found {
		status.LastRecord = &record
	}
	return status, nil
}

// UpdateConfig patches the reset configuration and moves the timer.
func (s *Scheduler) UpdateConfig(apply func(*Config)) Config {
	s.mu.Lock()
	apply(&s.cfg)
	if s.cfg.ResetTime == "" {
		s.cfg.ResetTime = "00:00"
	}
	cfg := s.cfg
	s.mu.Unlock()
	s.requestRearm()
	return cfg
}

func (s *Scheduler) requestRearm() {
	select {
	case s.rearm <- struct{}{}:
	default:
	}
}
