// Package queue owns the ticket lifecycle: creation, calling, serving
// and print tracking. Every transition is committed to the store before
// any event is broadcast.
package queue

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/jeogo/casnos-sub000/internal/models"
	"github.com/jeogo/casnos-sub000/internal/store"
)

// Broadcaster is the slice of the hub the manager needs.
type Broadcaster interface {
	EmitToAll(event string, data interface{})
	EmitToRoom(room, event string, data interface{})
}

type Manager struct {
	store store.TicketStore
	bus   Broadcaster

	printTimeout time.Duration

	mu          sync.Mutex
	printTimers map[int64]*time.Timer
}

type Options struct {
	PrintTimeout time.Duration
}

func NewManager(st store.TicketStore, bus Broadcaster, opts Options) *Manager {
	timeout := opts.PrintTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Manager{
		store:        st,
		bus:          bus,
		printTimeout: timeout,
		printTimers:  make(map[int64]*time.Timer),
	}
}

// IsNetworkPrinter reports whether a printer identifier names a shared
// printer that another device must drive.
func IsNetworkPrinter(printerID string) bool {
	lower := strings.ToLower(printerID)
	return strings.Contains(lower, "network") || strings.Contains(lower, "remote")
}

// CreateTicket issues the next ticket number. The slip starts pending
// and is routed to the display terminals unless the requester named a
// local printer it drives itself.
func (m *Manager) CreateTicket(ctx context.Context, serviceID int64, printerID string) (models.Ticket, error) {
	input := store.CreateTicketInput{
		ServiceID:   serviceID,
		PrinterID:   printerID,
		PrintStatus: models.PrintPending,
		CreatedAt:   time.Now().UTC(),
	}
	local := printerID != "" && !IsNetworkPrinter(printerID)
	if local {
		input.PrintStatus = models.PrintPrinted
	} else {
		input.TargetDevice = "display"
	}

	ticket, err := m.store.CreateTicket(ctx, input)
	if err != nil {
		return models.Ticket{}, err
	}

	m.bus.EmitToAll("ticket:created", ticket)
	if !local {
		m.bus.EmitToRoom("type:display", "print:pending-instant", map[string]interface{}{
			"ticket":    ticket,
			"printerId": printerID,
		})
	}
	m.emitQueueUpdate(ctx)
	return ticket, nil
}

func (m *Manager) CallTicket(ctx context.Context, ticketID, windowID int64) (models.Ticket, error) {
	ticket, err := m.store.CallTicket(ctx, store.CallTicketInput{
		TicketID: ticketID,
		WindowID: windowID,
		CalledAt: time.Now().UTC(),
	})
	if err != nil {
		return models.Ticket{}, err
	}
	m.announceCalled(ctx, ticket)
	return ticket, nil
}

func (m *Manager) ServeTicket(ctx context.Context, ticketID, windowID int64) (models.Ticket, error) {
	ticket, err := m.store.ServeTicket(ctx, store.ServeTicketInput{
		TicketID: ticketID,
		WindowID: windowID,
		ServedAt: time.Now().UTC(),
	})
	if err != nil {
		return models.Ticket{}, err
	}
	m.bus.EmitToAll("ticket:served", ticket)
	m.emitQueueUpdate(ctx)
	return ticket, nil
}

// CallNextForWindow finishes the window's current ticket, if any, then
// calls the oldest pending ticket. A current ticket already past the
// called state is left alone rather than failing the whole call.
func (m *Manager) CallNextForWindow(ctx context.Context, windowID, serviceID, currentTicketID int64) (models.Ticket, error) {
	if currentTicketID > 0 {
		served, err := m.store.ServeTicket(ctx, store.ServeTicketInput{
			TicketID: currentTicketID,
			WindowID: windowID,
			ServedAt: time.Now().UTC(),
		})
		switch {
		case err == nil:
			m.bus.EmitToAll("ticket:served", served)
		case errors.Is(err, store.ErrInvalidState), errors.Is(err, store.ErrTicketNotFound):
			log.Printf("call-next: current ticket %d not serveable: %v", currentTicketID, err)
		default:
			return models.Ticket{}, err
		}
	}

	ticket, err := m.store.CallNext(ctx, windowID, serviceID, time.Now().UTC())
	if err != nil {
		return models.Ticket{}, err
	}
	m.announceCalled(ctx, ticket)
	return ticket, nil
}

func (m *Manager) announceCalled(ctx context.Context, ticket models.Ticket) {
	m.bus.EmitToAll("ticket:called", ticket)
	m.bus.EmitToRoom("type:display", "display:ticket-called", ticket)
	m.bus.EmitToRoom("type:display", "display:play-sound", map[string]interface{}{
		"ticketNumber": ticket.TicketNumber,
		"windowId":     ticket.WindowID,
	})
	m.emitQueueUpdate(ctx)
}

// UpdatePrintStatus advances the print state machine. Entering printing
// arms a watchdog that fails the job if no terminal acknowledgment
// arrives in time.
func (m *Manager) UpdatePrintStatus(ctx context.Context, ticketID int64, to models.PrintStatus) (models.Ticket, error) {
	if !store.ValidPrintStatus(to) {
		return models.Ticket{}, store.ErrInvalidState
	}
	current, err := m.store.GetTicket(ctx, ticketID)
	if err != nil {
		return models.Ticket{}, err
	}
	if !store.CanTransitionPrint(current.PrintStatus, to) {
		return models.Ticket{}, store.ErrInvalidState
	}

	ticket, err := m.store.UpdatePrintStatus(ctx, ticketID, current.PrintStatus, to)
	if err != nil {
		return models.Ticket{}, err
	}

	switch to {
	case models.PrintPrinting:
		m.armPrintWatchdog(ticket.ID)
	case models.PrintPrinted, models.PrintFailed:
		m.cancelPrintWatchdog(ticket.ID)
	}

	m.bus.EmitToAll("print:status-updated", ticket)
	return ticket, nil
}

func (m *Manager) armPrintWatchdog(ticketID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if timer, ok := m.printTimers[ticketID]; ok {
		timer.Stop()
	}
	m.printTimers[ticketID] = time.AfterFunc(m.printTimeout, func() {
		m.printTimedOut(ticketID)
	})
}

func (m *Manager) cancelPrintWatchdog(ticketID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if timer, ok := m.printTimers[ticketID]; ok {
		timer.Stop()
		delete(m.printTimers, ticketID)
	}
}

func (m *Manager) printTimedOut(ticketID int64) {
	m.mu.Lock()
	delete(m.printTimers, ticketID)
	m.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// The conditional update loses harmlessly to a terminal ack that
	// raced the timer.
	ticket, err := m.store.UpdatePrintStatus(ctx, ticketID, models.PrintPrinting, models.PrintFailed)
	if err != nil {
		if !errors.Is(err, store.ErrInvalidState) && !errors.Is(err, store.ErrTicketNotFound) {
			log.Printf("print watchdog ticket %d: %v", ticketID, err)
		}
		return
	}
	log.Printf("print timeout ticket=%d number=%s", ticket.ID, ticket.TicketNumber)
	m.bus.EmitToAll("print:timeout", ticket)
	m.bus.EmitToAll("print:status-updated", ticket)
}

func (m *Manager) DeleteTicket(ctx context.Context, ticketID int64) error {
	if err := m.store.DeleteTicket(ctx, ticketID); err != nil {
		return err
	}
	m.cancelPrintWatchdog(ticketID)
	m.emitQueueUpdate(ctx)
	return nil
}

func (m *Manager) Ticket(ctx context.Context, ticketID int64) (models.Ticket, error) {
	return m.store.GetTicket(ctx, ticketID)
}

func (m *Manager) AllTickets(ctx context.Context, limit int) ([]models.Ticket, error) {
	return m.store.ListTickets(ctx, limit)
}

func (m *Manager) PendingTickets(ctx context.Context, serviceID int64) ([]models.Ticket, error) {
	return m.store.ListPendingTickets(ctx, serviceID)
}

func (m *Manager) QueuePosition(ctx context.Context, ticketID int64) (int, error) {
	return m.store.QueuePosition(ctx, ticketID)
}

func (m *Manager) Statistics(ctx context.Context) (models.QueueStatistics, error) {
	now := time.Now()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return m.store.Statistics(ctx, dayStart)
}

// QueueSnapshot is the payload for queue:update and realtime:update.
func (m *Manager) QueueSnapshot(ctx context.Context) (map[string]interface{}, error) {
	pending, err := m.store.ListPendingTickets(ctx, 0)
	if err != nil {
		return nil, err
	}
	stats, err := m.Statistics(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"pendingTickets": pending,
		"pendingCount":   len(pending),
		"totalCount":     stats.Total,
	}, nil
}

func (m *Manager) emitQueueUpdate(ctx context.Context) {
	snapshot, err := m.QueueSnapshot(ctx)
	if err != nil {
		log.Printf("queue snapshot error: %v", err)
		return
	}
	m.bus.EmitToAll("queue:update", snapshot)
}
