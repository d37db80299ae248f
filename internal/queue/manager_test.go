package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jeogo/casnos-sub000/internal/models"
	"github.com/jeogo/casnos-sub000/internal/store"
	"github.com/jeogo/casnos-sub000/internal/store/sqlite"
)

type fakeBus struct {
	mu     sync.Mutex
	events []emitted
}

type emitted struct {
	room  string
	event string
	data  interface{}
}

func (b *fakeBus) EmitToAll(event string, data interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, emitted{event: event, data: data})
}

func (b *fakeBus) EmitToRoom(room, event string, data interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, emitted{room: room, event: event, data: data})
}

func (b *fakeBus) has(event string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, e := range b.events {
		if e.event == event {
			return true
		}
	}
	return false
}

func (b *fakeBus) roomFor(event string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, e := range b.events {
		if e.event == event {
			return e.room
		}
	}
	return ""
}

func newTestManager(t *testing.T, opts Options) (*Manager, *fakeBus, store.Store) {
	t.Helper()
	st, err := sqlite.Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	bus := &fakeBus{}
	return NewManager(st, bus, opts), bus, st
}

func seedService(t *testing.T, st store.Store) int64 {
	t.Helper()
	svc, err := st.CreateService(context.Background(), "reception")
	if err != nil {
		t.Fatalf("seed service: %v", err)
	}
	return svc.ID
}

func TestIsNetworkPrinter(t *testing.T) {
	cases := map[string]bool{
		"Network-HP-201":   true,
		"REMOTE_EPSON":     true,
		"usb-local-printer": false,
		"":                 false,
	}
	for printer, want := range cases {
		if got := IsNetworkPrinter(printer); got != want {
			t.Errorf("IsNetworkPrinter(%q) = %v, want %v", printer, got, want)
		}
	}
}

func TestCreateTicketLocalPrinter(t *testing.T) {
	mgr, bus, st := newTestManager(t, Options{})
	serviceID := seedService(t, st)

	ticket, err := mgr.CreateTicket(context.Background(), serviceID, "usb-hp")
	if err != nil {
		t.Fatalf("create ticket: %v", err)
	}
	if ticket.PrintStatus != models.PrintPrinted {
		t.Fatalf("local printer should start printed, got %s", ticket.PrintStatus)
	}
	if !bus.has("ticket:created") || !bus.has("queue:update") {
		t.Fatalf("expected ticket:created and queue:update, got %+v", bus.events)
	}
	if bus.has("print:pending-instant") {
		t.Fatal("local printer must not route to display room")
	}
}

func TestCreateTicketNetworkPrinter(t *testing.T) {
	mgr, bus, st := newTestManager(t, Options{})
	serviceID := seedService(t, st)

	ticket, err := mgr.CreateTicket(context.Background(), serviceID, "network-hp-201")
	if err != nil {
		t.Fatalf("create ticket: %v", err)
	}
	if ticket.PrintStatus != models.PrintPending {
		t.Fatalf("network printer should start pending, got %s", ticket.PrintStatus)
	}
	if room := bus.roomFor("print:pending-instant"); room != "type:display" {
		t.Fatalf("expected print job routed to type:display, got %q", room)
	}
}

func TestCreateTicketWithoutPrinterStartsPending(t *testing.T) {
	mgr, bus, st := newTestManager(t, Options{})
	serviceID := seedService(t, st)

	ticket, err := mgr.CreateTicket(context.Background(), serviceID, "")
	if err != nil {
		t.Fatalf("create ticket: %v", err)
	}
	if ticket.PrintStatus != models.PrintPending {
		t.Fatalf("no requested printer should start pending, got %s", ticket.PrintStatus)
	}
	if ticket.TargetDevice != "display" {
		t.Fatalf("expected display routing, got %q", ticket.TargetDevice)
	}
	if room := bus.roomFor("print:pending-instant"); room != "type:display" {
		t.Fatalf("expected print job routed to type:display, got %q", room)
	}
}

func TestCallTicketAnnouncesDisplay(t *testing.T) {
	mgr, bus, st := newTestManager(t, Options{})
	serviceID := seedService(t, st)
	ctx := context.Background()

	ticket, err := mgr.CreateTicket(ctx, serviceID, "")
	if err != nil {
		t.Fatalf("create ticket: %v", err)
	}
	if _, err := mgr.CallTicket(ctx, ticket.ID, 1); err != nil {
		t.Fatalf("call ticket: %v", err)
	}

	if room := bus.roomFor("display:ticket-called"); room != "type:display" {
		t.Fatalf("expected display announcement, got room %q", room)
	}
	if !bus.has("display:play-sound") || !bus.has("ticket:called") {
		t.Fatalf("missing call events, got %+v", bus.events)
	}
}

func TestCallNextForWindowAutoServes(t *testing.T) {
	mgr, _, st := newTestManager(t, Options{})
	serviceID := seedService(t, st)
	ctx := context.Background()

	current, err := mgr.CreateTicket(ctx, serviceID, "")
	if err != nil {
		t.Fatalf("create current: %v", err)
	}
	next, err := mgr.CreateTicket(ctx, serviceID, "")
	if err != nil {
		t.Fatalf("create next: %v", err)
	}
	if _, err := mgr.CallTicket(ctx, current.ID, 1); err != nil {
		t.Fatalf("call current: %v", err)
	}

	called, err := mgr.CallNextForWindow(ctx, 1, 0, current.ID)
	if err != nil {
		t.Fatalf("call next: %v", err)
	}
	if called.ID != next.ID {
		t.Fatalf("expected next ticket %d, got %d", next.ID, called.ID)
	}

	finished, err := mgr.Ticket(ctx, current.ID)
	if err != nil {
		t.Fatalf("reload current: %v", err)
	}
	if finished.Status != models.TicketServed {
		t.Fatalf("expected current auto-served, got %s", finished.Status)
	}
}

func TestCallNextForWindowEmptyQueue(t *testing.T) {
	mgr, _, _ := newTestManager(t, Options{})

	_, err := mgr.CallNextForWindow(context.Background(), 1, 0, 0)
	if !errors.Is(err, store.ErrNoTicket) {
		t.Fatalf("expected ErrNoTicket, got %v", err)
	}
}

func TestUpdatePrintStatusRejectsBackwards(t *testing.T) {
	mgr, _, st := newTestManager(t, Options{})
	serviceID := seedService(t, st)
	ctx := context.Background()

	ticket, err := mgr.CreateTicket(ctx, serviceID, "network-printer")
	if err != nil {
		t.Fatalf("create ticket: %v", err)
	}
	if _, err := mgr.UpdatePrintStatus(ctx, ticket.ID, models.PrintPrinted); err != nil {
		t.Fatalf("mark printed: %v", err)
	}
	if _, err := mgr.UpdatePrintStatus(ctx, ticket.ID, models.PrintPrinting); !errors.Is(err, store.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState on backwards transition, got %v", err)
	}
}

func TestPrintWatchdogTimesOut(t *testing.T) {
	mgr, bus, st := newTestManager(t, Options{PrintTimeout: 30 * time.Millisecond})
	serviceID := seedService(t, st)
	ctx := context.Background()

	ticket, err := mgr.CreateTicket(ctx, serviceID, "network-printer")
	if err != nil {
		t.Fatalf("create ticket: %v", err)
	}
	if _, err := mgr.UpdatePrintStatus(ctx, ticket.ID, models.PrintPrinting); err != nil {
		t.Fatalf("mark printing: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for {
		reloaded, err := mgr.Ticket(ctx, ticket.ID)
		if err != nil {
			t.Fatalf("reload ticket: %v", err)
		}
		if reloaded.PrintStatus == models.PrintFailed {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("watchdog never fired, status %s", reloaded.PrintStatus)
		case <-time.After(10 * time.Millisecond):
		}
	}
	if !bus.has("print:timeout") {
		t.Fatal("expected print:timeout broadcast")
	}
}

func TestPrintWatchdogCancelledByAck(t *testing.T) {
	mgr, bus, st := newTestManager(t, Options{PrintTimeout: 40 * time.Millisecond})
	serviceID := seedService(t, st)
	ctx := context.Background()

	ticket, err := mgr.CreateTicket(ctx, serviceID, "network-printer")
	if err != nil {
		t.Fatalf("create ticket: %v", err)
	}
	if _, err := mgr.UpdatePrintStatus(ctx, ticket.ID, models.PrintPrinting); err != nil {
		t.Fatalf("mark printing: %v", err)
	}
	if _, err := mgr.UpdatePrintStatus(ctx, ticket.ID, models.PrintPrinted); err != nil {
		t.Fatalf("mark printed: %v", err)
	}

	time.Sleep(100 * time.Millisecond)
	reloaded, err := mgr.Ticket(ctx, ticket.ID)
	if err != nil {
		t.Fatalf("reload ticket: %v", err)
	}
	if reloaded.PrintStatus != models.PrintPrinted {
		t.Fatalf("ack should win over watchdog, got %s", reloaded.PrintStatus)
	}
	if bus.has("print:timeout") {
		t.Fatal("watchdog fired despite terminal ack")
	}
}

func TestQueueSnapshotCounts(t *testing.T) {
	mgr, _, st := newTestManager(t, Options{})
	serviceID := seedService(t, st)
	ctx := context.Background()

	first, err := mgr.CreateTicket(ctx, serviceID, "")
	if err != nil {
		t.Fatalf("create first: %v", err)
	}
	if _, err := mgr.CreateTicket(ctx, serviceID, ""); err != nil {
		t.Fatalf("create second: %v", err)
	}
	if _, err := mgr.CallTicket(ctx, first.ID, 1); err != nil {
		t.Fatalf("call first: %v", err)
	}

	snapshot, err := mgr.QueueSnapshot(ctx)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snapshot["pendingCount"] != 1 {
		t.Fatalf("expected pendingCount 1, got %v", snapshot["pendingCount"])
	}
	if snapshot["totalCount"] != 2 {
		t.Fatalf("expected totalCount 2, got %v", snapshot["totalCount"])
	}
}

func TestStatisticsCountsToday(t *testing.T) {
	mgr, _, st := newTestManager(t, Options{})
	serviceID := seedService(t, st)
	ctx := context.Background()

	if _, err := mgr.CreateTicket(ctx, serviceID, ""); err != nil {
		t.Fatalf("create ticket: %v", err)
	}

	stats, err := mgr.Statistics(ctx)
	if err != nil {
		t.Fatalf("statistics: %v", err)
	}
	if stats.Total != 1 || stats.Pending != 1 || stats.Today != 1 {
		t.Fatalf("unexpected statistics: %+v", stats)
	}
}
