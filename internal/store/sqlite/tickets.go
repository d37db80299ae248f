package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jeogo/casnos-sub000/internal/models"
	"github.com/jeogo/casnos-sub000/internal/store"
)

const ticketColumns = "id, ticket_number, service_id, status, print_status, created_at, called_at, served_at, window_id, printer_id, target_device"

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTicket(row rowScanner) (models.Ticket, error) {
	var (
		t         models.Ticket
		createdAt string
		calledAt  sql.NullString
		servedAt  sql.NullString
		windowID  sql.NullInt64
		printerID sql.NullString
		target    sql.NullString
	)
	err := row.Scan(&t.ID, &t.TicketNumber, &t.ServiceID, &t.Status, &t.PrintStatus,
		&createdAt, &calledAt, &servedAt, &windowID, &printerID, &target)
	if err != nil {
		return models.Ticket{}, mapBusy(err)
	}
	t.CreatedAt = parseTime(createdAt)
	t.CalledAt = parseNullTime(calledAt)
	t.ServedAt = parseNullTime(servedAt)
	if windowID.Valid {
		t.WindowID = &windowID.Int64
	}
	t.PrinterID = printerID.String
	t.TargetDevice = target.String
	return t, nil
}

func (s *Store) CreateTicket(ctx context.Context, input store.CreateTicketInput) (models.Ticket, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM services WHERE id = ?)", input.ServiceID).Scan(&exists)
	if err != nil {
		return models.Ticket{}, fmt.Errorf("check service: %w", err)
	}
	if !exists {
		return models.Ticket{}, store.ErrServiceNotFound
	}

	printStatus := input.PrintStatus
	if printStatus == "" {
		printStatus = models.PrintPending
	}

	// Numbering and insert happen in one statement so concurrent creates
	// cannot observe the same MAX(id).
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO tickets (ticket_number, service_id, status, print_status, created_at, printer_id, target_device)
		SELECT CAST(COALESCE(MAX(id), 0) + 1 AS TEXT), ?, 'pending', ?, ?, ?, ? FROM tickets
		RETURNING `+ticketColumns,
		input.ServiceID, printStatus,
		fmtTime(input.CreatedAt), nullString(input.PrinterID), nullString(input.TargetDevice))

	ticket, err := scanTicket(row)
	if err != nil {
		if isUniqueViolation(err) {
			return models.Ticket{}, store.ErrDuplicate
		}
		return models.Ticket{}, fmt.Errorf("insert ticket: %w", err)
	}
	return ticket, nil
}

func (s *Store) GetTicket(ctx context.Context, id int64) (models.Ticket, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+ticketColumns+" FROM tickets WHERE id = ?", id)
	ticket, err := scanTicket(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Ticket{}, store.ErrTicketNotFound
	}
	if err != nil {
		return models.Ticket{}, err
	}
	return ticket, nil
}

func (s *Store) ListTickets(ctx context.Context, limit int) ([]models.Ticket, error) {
	if limit <= 0 {
		limit = 500
	}
	rows, err := s.db.QueryContext(ctx, "SELECT "+ticketColumns+" FROM tickets ORDER BY id DESC LIMIT ?", limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTickets(rows)
}

// ListPendingTickets returns pending tickets in FIFO order. serviceID 0
// means all services.
func (s *Store) ListPendingTickets(ctx context.Context, serviceID int64) ([]models.Ticket, error) {
	query := "SELECT " + ticketColumns + " FROM tickets WHERE status = 'pending'"
	args := []interface{}{}
	if serviceID > 0 {
		query += " AND service_id = ?"
		args = append(args, serviceID)
	}
	query += " ORDER BY id ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTickets(rows)
}

func collectTickets(rows *sql.Rows) ([]models.Ticket, error) {
	tickets := []models.Ticket{}
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		tickets = append(tickets, ticket)
	}
	return tickets, rows.Err()
}

// CallTicket moves a pending ticket to called. The status precondition
// in the WHERE clause makes the transition a compare-and-set.
func (s *Store) CallTicket(ctx context.Context, input store.CallTicketInput) (models.Ticket, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE tickets SET status = 'called', called_at = ?, window_id = ?
		WHERE id = ? AND status = 'pending'
		RETURNING `+ticketColumns,
		fmtTime(input.CalledAt), input.WindowID, input.TicketID)

	ticket, err := scanTicket(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Ticket{}, s.ticketConflict(ctx, input.TicketID)
	}
	if err != nil {
		return models.Ticket{}, err
	}
	return ticket, nil
}

func (s *Store) ServeTicket(ctx context.Context, input store.ServeTicketInput) (models.Ticket, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE tickets SET status = 'served', served_at = ?, window_id = ?
		WHERE id = ? AND status = 'called'
		RETURNING `+ticketColumns,
		fmtTime(input.ServedAt), input.WindowID, input.TicketID)

	ticket, err := scanTicket(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Ticket{}, s.ticketConflict(ctx, input.TicketID)
	}
	if err != nil {
		return models.Ticket{}, err
	}
	return ticket, nil
}

// CallNext calls the oldest pending ticket, optionally filtered by
// service. Returns ErrNoTicket when the queue is empty.
func (s *Store) CallNext(ctx context.Context, windowID, serviceID int64, calledAt time.Time) (models.Ticket, error) {
	sub := "SELECT id FROM tickets WHERE status = 'pending'"
	args := []interface{}{fmtTime(calledAt), windowID}
	if serviceID > 0 {
		sub += " AND service_id = ?"
		args = append(args, serviceID)
	}
	sub += " ORDER BY id ASC LIMIT 1"

	row := s.db.QueryRowContext(ctx, `
		UPDATE tickets SET status = 'called', called_at = ?, window_id = ?
		WHERE id = (`+sub+`) AND status = 'pending'
		RETURNING `+ticketColumns, args...)

	ticket, err := scanTicket(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Ticket{}, store.ErrNoTicket
	}
	if err != nil {
		return models.Ticket{}, err
	}
	return ticket, nil
}

func (s *Store) UpdatePrintStatus(ctx context.Context, id int64, from, to models.PrintStatus) (models.Ticket, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE tickets SET print_status = ?
		WHERE id = ? AND print_status = ?
		RETURNING `+ticketColumns, to, id, from)

	ticket, err := scanTicket(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Ticket{}, s.ticketConflict(ctx, id)
	}
	if err != nil {
		return models.Ticket{}, err
	}
	return ticket, nil
}

func (s *Store) DeleteTicket(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM tickets WHERE id = ?", id)
	if err != nil {
		return mapBusy(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrTicketNotFound
	}
	return nil
}

// QueuePosition reports the 1-based position among pending tickets.
func (s *Store) QueuePosition(ctx context.Context, id int64) (int, error) {
	ticket, err := s.GetTicket(ctx, id)
	if err != nil {
		return 0, err
	}
	if ticket.Status != models.TicketPending {
		return 0, store.ErrInvalidState
	}
	var ahead int
	err = s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM tickets WHERE status = 'pending' AND id < ?", id).Scan(&ahead)
	if err != nil {
		return 0, err
	}
	return ahead + 1, nil
}

func (s *Store) Statistics(ctx context.Context, dayStart time.Time) (models.QueueStatistics, error) {
	var stats models.QueueStatistics
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
			COALESCE(SUM(status = 'pending'), 0),
			COALESCE(SUM(status = 'called'), 0),
			COALESCE(SUM(status = 'served'), 0),
			COALESCE(SUM(created_at >= ?), 0)
		FROM tickets`, fmtTime(dayStart)).
		Scan(&stats.Total, &stats.Pending, &stats.Called, &stats.Served, &stats.Today)
	if err != nil {
		return models.QueueStatistics{}, err
	}
	return stats, nil
}

func (s *Store) DeleteAllTickets(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx, "DELETE FROM tickets")
	if err != nil {
		return 0, mapBusy(err)
	}
	return result.RowsAffected()
}

// ResetTicketSequence restarts numbering at 1 after a full purge.
func (s *Store) ResetTicketSequence(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM sqlite_sequence WHERE name = 'tickets'")
	return err
}

// ticketConflict distinguishes a missing ticket from a state conflict
// after a conditional update matched zero rows.
func (s *Store) ticketConflict(ctx context.Context, id int64) error {
	var exists bool
	if err := s.db.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM tickets WHERE id = ?)", id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return store.ErrTicketNotFound
	}
	return store.ErrInvalidState
}

func nullString(value string) interface{} {
	if value == "" {
		return nil
	}
	return value
}
