package socketapi

import (
	"context"
	"encoding/json"
	"errors"
	"log"

	"github.com/jeogo/casnos-sub000/internal/hub"
	"github.com/jeogo/casnos-sub000/internal/models"
	"github.com/jeogo/casnos-sub000/internal/store"
)

type ticketCreateRequest struct {
	ServiceID int64  `json:"serviceId"`
	PrinterID string `json:"printerId"`
}

func (d *Dispatcher) handleTicketCreate(ctx context.Context, client *hub.Client, data json.RawMessage) {
	var req ticketCreateRequest
	if err := json.Unmarshal(data, &req); err != nil || req.ServiceID <= 0 {
		d.emitError(client.ID, "ticket:create", "invalid_payload", "serviceId is required")
		return
	}
	if _, err := d.queue.CreateTicket(ctx, req.ServiceID, req.PrinterID); err != nil {
		d.emitError(client.ID, "ticket:create", codeFor(err), "ticket creation failed")
	}
}

type ticketActionRequest struct {
	TicketID int64 `json:"ticketId"`
	WindowID int64 `json:"windowId"`
}

func (d *Dispatcher) handleTicketCall(ctx context.Context, client *hub.Client, data json.RawMessage) {
	var req ticketActionRequest
	if err := json.Unmarshal(data, &req); err != nil || req.TicketID <= 0 || req.WindowID <= 0 {
		d.emitError(client.ID, "ticket:call", "invalid_payload", "ticketId and windowId are required")
		return
	}
	if _, err := d.queue.CallTicket(ctx, req.TicketID, req.WindowID); err != nil {
		d.emitError(client.ID, "ticket:call", codeFor(err), "call failed")
	}
}

func (d *Dispatcher) handleTicketServe(ctx context.Context, client *hub.Client, data json.RawMessage) {
	var req ticketActionRequest
	if err := json.Unmarshal(data, &req); err != nil || req.TicketID <= 0 || req.WindowID <= 0 {
		d.emitError(client.ID, "ticket:serve", "invalid_payload", "ticketId and windowId are required")
		return
	}
	if _, err := d.queue.ServeTicket(ctx, req.TicketID, req.WindowID); err != nil {
		d.emitError(client.ID, "ticket:serve", codeFor(err), "serve failed")
	}
}

type serveAndNextRequest struct {
	WindowID        int64 `json:"windowId"`
	ServiceID       int64 `json:"serviceId"`
	CurrentTicketID int64 `json:"currentTicketId"`
}

func (d *Dispatcher) handleServeAndNext(ctx context.Context, client *hub.Client, data json.RawMessage) {
	var req serveAndNextRequest
	if err := json.Unmarshal(data, &req); err != nil || req.WindowID <= 0 {
		d.emitError(client.ID, "ticket:serve-and-next", "invalid_payload", "windowId is required")
		return
	}
	_, err := d.queue.CallNextForWindow(ctx, req.WindowID, req.ServiceID, req.CurrentTicketID)
	if errors.Is(err, store.ErrNoTicket) {
		// Nothing waiting is a normal outcome for the window terminal.
		d.hub.EmitToClient(client.ID, "queue:empty", map[string]interface{}{
			"windowId": req.WindowID,
		})
		return
	}
	if err != nil {
		d.emitError(client.ID, "ticket:serve-and-next", codeFor(err), "call-next failed")
	}
}

func (d *Dispatcher) handleQueueStatus(ctx context.Context, client *hub.Client) {
	snapshot, err := d.queue.QueueSnapshot(ctx)
	if err != nil {
		d.emitError(client.ID, "get-queue-status", codeFor(err), "queue lookup failed")
		return
	}
	d.hub.EmitToClient(client.ID, "queue:update", snapshot)
}

func (d *Dispatcher) handleAllTickets(ctx context.Context, client *hub.Client) {
	tickets, err := d.queue.AllTickets(ctx, 0)
	if err != nil {
		d.emitError(client.ID, "get-all-tickets", codeFor(err), "ticket lookup failed")
		return
	}
	d.hub.EmitToClient(client.ID, "all-tickets", map[string]interface{}{"tickets": tickets})
}

type printJobRequest struct {
	TicketID int64 `json:"ticketId"`
	Success  *bool `json:"success"`
}

// handlePrintJobReceived marks the slip as printing, which arms the
// print watchdog.
func (d *Dispatcher) handlePrintJobReceived(ctx context.Context, client *hub.Client, data json.RawMessage) {
	var req printJobRequest
	if err := json.Unmarshal(data, &req); err != nil || req.TicketID <= 0 {
		d.emitError(client.ID, "print-job-received", "invalid_payload", "ticketId is required")
		return
	}
	if _, err := d.queue.UpdatePrintStatus(ctx, req.TicketID, models.PrintPrinting); err != nil {
		d.emitError(client.ID, "print-job-received", codeFor(err), "print status update failed")
	}
}

func (d *Dispatcher) handlePrintJobCompleted(ctx context.Context, client *hub.Client, data json.RawMessage) {
	var req printJobRequest
	if err := json.Unmarshal(data, &req); err != nil || req.TicketID <= 0 {
		d.emitError(client.ID, "print-job-completed", "invalid_payload", "ticketId is required")
		return
	}
	target := models.PrintPrinted
	if req.Success != nil && !*req.Success {
		target = models.PrintFailed
	}
	ticket, err := d.queue.UpdatePrintStatus(ctx, req.TicketID, target)
	if err != nil {
		d.emitError(client.ID, "print-job-completed", codeFor(err), "print status update failed")
		return
	}
	log.Printf("print job completed ticket=%d status=%s", ticket.ID, ticket.PrintStatus)
}
