package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jeogo/casnos-sub000/internal/models"
	"github.com/jeogo/casnos-sub000/internal/store"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func mustService(t *testing.T, st *Store, name string) models.Service {
	t.Helper()
	svc, err := st.CreateService(context.Background(), name)
	if err != nil {
		t.Fatalf("create service: %v", err)
	}
	return svc
}

func mustTicket(t *testing.T, st *Store, serviceID int64) models.Ticket {
	t.Helper()
	ticket, err := st.CreateTicket(context.Background(), store.CreateTicketInput{
		ServiceID:   serviceID,
		PrintStatus: models.PrintPending,
		CreatedAt:   time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("create ticket: %v", err)
	}
	return ticket
}

func TestCreateTicketNumbering(t *testing.T) {
	st := openTestStore(t)
	svc := mustService(t, st, "reception")

	first := mustTicket(t, st, svc.ID)
	second := mustTicket(t, st, svc.ID)

	if first.TicketNumber != "1" || second.TicketNumber != "2" {
		t.Fatalf("expected numbers 1 and 2, got %s and %s", first.TicketNumber, second.TicketNumber)
	}
	if first.Status != models.TicketPending {
		t.Fatalf("expected pending status, got %s", first.Status)
	}
}

func TestConcurrentCreatesGetDistinctNumbers(t *testing.T) {
	st := openTestStore(t)
	svc := mustService(t, st, "reception")

	const workers = 20
	numbers := make(chan string, workers)
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		go func() {
			ticket, err := st.CreateTicket(context.Background(), store.CreateTicketInput{
				ServiceID:   svc.ID,
				PrintStatus: models.PrintPending,
				CreatedAt:   time.Now().UTC(),
			})
			if err != nil {
				errs <- err
				return
			}
			numbers <- ticket.TicketNumber
		}()
	}

	seen := make(map[string]bool)
	for i := 0; i < workers; i++ {
		select {
		case err := <-errs:
			t.Fatalf("concurrent create: %v", err)
		case number := <-numbers:
			if seen[number] {
				t.Fatalf("duplicate ticket number %s", number)
			}
			seen[number] = true
		}
	}
	if len(seen) != workers {
		t.Fatalf("expected %d distinct numbers, got %d", workers, len(seen))
	}
}

func TestMapBusyProducesSentinel(t *testing.T) {
	err := mapBusy(errors.New("database is locked (5) (SQLITE_BUSY)"))
	if !errors.Is(err, store.ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}
	plain := errors.New("UNIQUE constraint failed: services.name")
	if got := mapBusy(plain); got != plain {
		t.Fatalf("non-busy error must pass through, got %v", got)
	}
	if mapBusy(nil) != nil {
		t.Fatal("nil must stay nil")
	}
}

func TestCreateTicketUnknownService(t *testing.T) {
	st := openTestStore(t)

	_, err := st.CreateTicket(context.Background(), store.CreateTicketInput{ServiceID: 42, CreatedAt: time.Now()})
	if !errors.Is(err, store.ErrServiceNotFound) {
		t.Fatalf("expected ErrServiceNotFound, got %v", err)
	}
}

func TestCallAndServeTicket(t *testing.T) {
	st := openTestStore(t)
	svc := mustService(t, st, "reception")
	ticket := mustTicket(t, st, svc.ID)
	ctx := context.Background()

	called, err := st.CallTicket(ctx, store.CallTicketInput{TicketID: ticket.ID, WindowID: 1, CalledAt: time.Now()})
	if err != nil {
		t.Fatalf("call ticket: %v", err)
	}
	if called.Status != models.TicketCalled || called.CalledAt == nil {
		t.Fatalf("expected called with timestamp, got %+v", called)
	}

	// Calling twice must conflict, not double-transition.
	if _, err := st.CallTicket(ctx, store.CallTicketInput{TicketID: ticket.ID, WindowID: 1, CalledAt: time.Now()}); !errors.Is(err, store.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState on second call, got %v", err)
	}

	served, err := st.ServeTicket(ctx, store.ServeTicketInput{TicketID: ticket.ID, WindowID: 1, ServedAt: time.Now()})
	if err != nil {
		t.Fatalf("serve ticket: %v", err)
	}
	if served.Status != models.TicketServed || served.ServedAt == nil {
		t.Fatalf("expected served with timestamp, got %+v", served)
	}
}

func TestServePendingTicketConflicts(t *testing.T) {
	st := openTestStore(t)
	svc := mustService(t, st, "reception")
	ticket := mustTicket(t, st, svc.ID)

	_, err := st.ServeTicket(context.Background(), store.ServeTicketInput{TicketID: ticket.ID, WindowID: 1, ServedAt: time.Now()})
	if !errors.Is(err, store.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
}

func TestCallUnknownTicket(t *testing.T) {
	st := openTestStore(t)

	_, err := st.CallTicket(context.Background(), store.CallTicketInput{TicketID: 99, WindowID: 1, CalledAt: time.Now()})
	if !errors.Is(err, store.ErrTicketNotFound) {
		t.Fatalf("expected ErrTicketNotFound, got %v", err)
	}
}

func TestCallNextIsFIFO(t *testing.T) {
	st := openTestStore(t)
	svc := mustService(t, st, "reception")
	first := mustTicket(t, st, svc.ID)
	mustTicket(t, st, svc.ID)
	ctx := context.Background()

	called, err := st.CallNext(ctx, 1, 0, time.Now())
	if err != nil {
		t.Fatalf("call next: %v", err)
	}
	if called.ID != first.ID {
		t.Fatalf("expected oldest ticket %d, got %d", first.ID, called.ID)
	}
}

func TestCallNextEmptyQueue(t *testing.T) {
	st := openTestStore(t)

	_, err := st.CallNext(context.Background(), 1, 0, time.Now())
	if !errors.Is(err, store.ErrNoTicket) {
		t.Fatalf("expected ErrNoTicket, got %v", err)
	}
}

func TestCallNextFiltersByService(t *testing.T) {
	st := openTestStore(t)
	svcA := mustService(t, st, "reception")
	svcB := mustService(t, st, "billing")
	mustTicket(t, st, svcA.ID)
	wanted := mustTicket(t, st, svcB.ID)

	called, err := st.CallNext(context.Background(), 1, svcB.ID, time.Now())
	if err != nil {
		t.Fatalf("call next: %v", err)
	}
	if called.ID != wanted.ID {
		t.Fatalf("expected ticket %d from billing, got %d", wanted.ID, called.ID)
	}
}

func TestUpdatePrintStatusCompareAndSet(t *testing.T) {
	st := openTestStore(t)
	svc := mustService(t, st, "reception")
	ticket := mustTicket(t, st, svc.ID)
	ctx := context.Background()

	updated, err := st.UpdatePrintStatus(ctx, ticket.ID, models.PrintPending, models.PrintPrinting)
	if err != nil {
		t.Fatalf("update print status: %v", err)
	}
	if updated.PrintStatus != models.PrintPrinting {
		t.Fatalf("expected printing, got %s", updated.PrintStatus)
	}

	// Stale precondition loses.
	if _, err := st.UpdatePrintStatus(ctx, ticket.ID, models.PrintPending, models.PrintPrinted); !errors.Is(err, store.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
}

func TestQueuePosition(t *testing.T) {
	st := openTestStore(t)
	svc := mustService(t, st, "reception")
	mustTicket(t, st, svc.ID)
	second := mustTicket(t, st, svc.ID)

	position, err := st.QueuePosition(context.Background(), second.ID)
	if err != nil {
		t.Fatalf("queue position: %v", err)
	}
	if position != 2 {
		t.Fatalf("expected position 2, got %d", position)
	}
}

func TestStatistics(t *testing.T) {
	st := openTestStore(t)
	svc := mustService(t, st, "reception")
	ticket := mustTicket(t, st, svc.ID)
	mustTicket(t, st, svc.ID)
	ctx := context.Background()

	if _, err := st.CallTicket(ctx, store.CallTicketInput{TicketID: ticket.ID, WindowID: 1, CalledAt: time.Now()}); err != nil {
		t.Fatalf("call ticket: %v", err)
	}

	stats, err := st.Statistics(ctx, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("statistics: %v", err)
	}
	if stats.Total != 2 || stats.Pending != 1 || stats.Called != 1 || stats.Today != 2 {
		t.Fatalf("unexpected statistics: %+v", stats)
	}
}

func TestResetTicketSequence(t *testing.T) {
	st := openTestStore(t)
	svc := mustService(t, st, "reception")
	mustTicket(t, st, svc.ID)
	mustTicket(t, st, svc.ID)
	ctx := context.Background()

	deleted, err := st.DeleteAllTickets(ctx)
	if err != nil {
		t.Fatalf("delete all: %v", err)
	}
	if deleted != 2 {
		t.Fatalf("expected 2 deleted, got %d", deleted)
	}
	if err := st.ResetTicketSequence(ctx); err != nil {
		t.Fatalf("reset sequence: %v", err)
	}

	fresh := mustTicket(t, st, svc.ID)
	if fresh.TicketNumber != "1" {
		t.Fatalf("expected numbering restart at 1, got %s", fresh.TicketNumber)
	}
}

func TestServiceDuplicateName(t *testing.T) {
	st := openTestStore(t)
	mustService(t, st, "reception")

	_, err := st.CreateService(context.Background(), "reception")
	if !errors.Is(err, store.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
}

func TestDeviceUpsertAndOffline(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	device, err := st.UpsertDevice(ctx, store.RegisterDeviceInput{
		DeviceID:   "kiosk-1",
		Name:       "Front kiosk",
		DeviceType: models.DeviceCustomer,
		SeenAt:     time.Now(),
	})
	if err != nil {
		t.Fatalf("upsert device: %v", err)
	}
	if device.Status != models.DeviceOnline {
		t.Fatalf("expected online after register, got %s", device.Status)
	}

	// Re-register keeps one row.
	again, err := st.UpsertDevice(ctx, store.RegisterDeviceInput{
		DeviceID:   "kiosk-1",
		Name:       "Front kiosk renamed",
		DeviceType: models.DeviceCustomer,
		SeenAt:     time.Now(),
	})
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if again.ID != device.ID || again.Name != "Front kiosk renamed" {
		t.Fatalf("expected same row updated, got %+v", again)
	}

	flipped, err := st.MarkOffline(ctx, "kiosk-1", time.Now())
	if err != nil || !flipped {
		t.Fatalf("expected first offline flip, got flipped=%v err=%v", flipped, err)
	}
	flipped, err = st.MarkOffline(ctx, "kiosk-1", time.Now())
	if err != nil || flipped {
		t.Fatalf("expected idempotent second flip, got flipped=%v err=%v", flipped, err)
	}
}

func TestHeartbeatUnknownDevice(t *testing.T) {
	st := openTestStore(t)

	_, err := st.TouchDevice(context.Background(), "ghost", time.Now())
	if !errors.Is(err, store.ErrDeviceNotFound) {
		t.Fatalf("expected ErrDeviceNotFound, got %v", err)
	}
}

func TestMarkStaleOffline(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	old := time.Now().Add(-5 * time.Minute)
	if _, err := st.UpsertDevice(ctx, store.RegisterDeviceInput{DeviceID: "stale", DeviceType: models.DeviceDisplay, SeenAt: old}); err != nil {
		t.Fatalf("upsert stale: %v", err)
	}
	if _, err := st.UpsertDevice(ctx, store.RegisterDeviceInput{DeviceID: "fresh", DeviceType: models.DeviceDisplay, SeenAt: time.Now()}); err != nil {
		t.Fatalf("upsert fresh: %v", err)
	}

	ids, err := st.MarkStaleOffline(ctx, time.Now().Add(-time.Minute))
	if err != nil {
		t.Fatalf("mark stale: %v", err)
	}
	if len(ids) != 1 || ids[0] != "stale" {
		t.Fatalf("expected only stale device, got %v", ids)
	}
}

func TestPrinterUpsertUniquePerDevice(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	if _, err := st.UpsertDevice(ctx, store.RegisterDeviceInput{DeviceID: "kiosk-1", DeviceType: models.DeviceCustomer, SeenAt: time.Now()}); err != nil {
		t.Fatalf("upsert device: %v", err)
	}

	if _, err := st.AddPrinter(ctx, store.AddPrinterInput{DeviceID: "kiosk-1", PrinterID: "hp-1", PrinterName: "HP"}); err != nil {
		t.Fatalf("add printer: %v", err)
	}
	if _, err := st.AddPrinter(ctx, store.AddPrinterInput{DeviceID: "kiosk-1", PrinterID: "hp-1", PrinterName: "HP LaserJet"}); err != nil {
		t.Fatalf("re-add printer: %v", err)
	}

	printers, err := st.ListPrinters(ctx, "kiosk-1")
	if err != nil {
		t.Fatalf("list printers: %v", err)
	}
	if len(printers) != 1 || printers[0].PrinterName != "HP LaserJet" {
		t.Fatalf("expected one updated printer, got %+v", printers)
	}
}

func TestEnsureWindowForDevice(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	if _, err := st.UpsertDevice(ctx, store.RegisterDeviceInput{DeviceID: "win-1", DeviceType: models.DeviceWindow, SeenAt: time.Now()}); err != nil {
		t.Fatalf("upsert device: %v", err)
	}

	window, err := st.EnsureWindowForDevice(ctx, "win-1")
	if err != nil {
		t.Fatalf("ensure window: %v", err)
	}
	if !window.Active || window.DeviceID == nil || *window.DeviceID != "win-1" {
		t.Fatalf("unexpected window: %+v", window)
	}

	deactivated, err := st.DeactivateWindowForDevice(ctx, "win-1")
	if err != nil || !deactivated {
		t.Fatalf("expected deactivate, got %v err=%v", deactivated, err)
	}

	// Re-register reactivates the same row.
	again, err := st.EnsureWindowForDevice(ctx, "win-1")
	if err != nil {
		t.Fatalf("ensure window again: %v", err)
	}
	if again.ID != window.ID || !again.Active {
		t.Fatalf("expected same window reactivated, got %+v", again)
	}
}

func TestResetLedgerUniqueDate(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	record, err := st.WriteResetRecord(ctx, store.ResetLedgerInput{Date: "2026-09-01", Timestamp: time.Now(), TicketsReset: true})
	if err != nil {
		t.Fatalf("write ledger: %v", err)
	}
	if record.LastResetDate != "2026-09-01" || !record.TicketsReset {
		t.Fatalf("unexpected record: %+v", record)
	}

	if _, err := st.WriteResetRecord(ctx, store.ResetLedgerInput{Date: "2026-09-01", Timestamp: time.Now()}); !errors.Is(err, store.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	_, found, err := st.GetResetRecord(ctx, "2026-09-01")
	if err != nil || !found {
		t.Fatalf("expected record found, got found=%v err=%v", found, err)
	}
	if err := st.DeleteResetRecord(ctx, "2026-09-01"); err != nil {
		t.Fatalf("delete record: %v", err)
	}
	_, found, err = st.GetResetRecord(ctx, "2026-09-01")
	if err != nil || found {
		t.Fatalf("expected record gone, got found=%v err=%v", found, err)
	}
}
