package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/jeogo/casnos-sub000/internal/models"
	"github.com/jeogo/casnos-sub000/internal/store"
)

type createTicketRequest struct {
	ServiceID int64  `json:"service_id"`
	PrinterID string `json:"printer_id"`
}

func (h *Handler) handleTickets(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		limit := 0
		if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed <= 0 {
				writeError(w, http.StatusBadRequest, "limit must be a positive integer")
				return
			}
			limit = parsed
		}
		tickets, err := h.queue.AllTickets(r.Context(), limit)
		if err != nil {
			h.fail(w, err)
			return
		}
		writeData(w, http.StatusOK, tickets)
	case http.MethodPost:
		var req createTicketRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if req.ServiceID <= 0 {
			writeError(w, http.StatusBadRequest, "service_id is required")
			return
		}
		ticket, err := h.queue.CreateTicket(r.Context(), req.ServiceID, strings.TrimSpace(req.PrinterID))
		if err != nil {
			h.fail(w, err)
			return
		}
		writeData(w, http.StatusCreated, ticket)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handlePendingTickets(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var serviceID int64
	if raw := strings.TrimSpace(r.URL.Query().Get("service_id")); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "service_id must be a positive integer")
			return
		}
		serviceID = parsed
	}
	tickets, err := h.queue.PendingTickets(r.Context(), serviceID)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeData(w, http.StatusOK, tickets)
}

func (h *Handler) handleStatistics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	stats, err := h.queue.Statistics(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	writeData(w, http.StatusOK, stats)
}

type ticketWindowRequest struct {
	TicketID int64 `json:"ticket_id"`
	WindowID int64 `json:"window_id"`
}

func (h *Handler) handleCallTicket(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req ticketWindowRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.TicketID <= 0 || req.WindowID <= 0 {
		writeError(w, http.StatusBadRequest, "ticket_id and window_id are required")
		return
	}
	ticket, err := h.queue.CallTicket(r.Context(), req.TicketID, req.WindowID)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeData(w, http.StatusOK, ticket)
}

func (h *Handler) handleServeTicket(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req ticketWindowRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.TicketID <= 0 || req.WindowID <= 0 {
		writeError(w, http.StatusBadRequest, "ticket_id and window_id are required")
		return
	}
	ticket, err := h.queue.ServeTicket(r.Context(), req.TicketID, req.WindowID)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeData(w, http.StatusOK, ticket)
}

type callNextRequest struct {
	WindowID        int64 `json:"window_id"`
	ServiceID       int64 `json:"service_id"`
	CurrentTicketID int64 `json:"current_ticket_id"`
}

func (h *Handler) handleCallNext(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req callNextRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.WindowID <= 0 {
		writeError(w, http.StatusBadRequest, "window_id is required")
		return
	}
	ticket, err := h.queue.CallNextForWindow(r.Context(), req.WindowID, req.ServiceID, req.CurrentTicketID)
	if errors.Is(err, store.ErrNoTicket) {
		// An empty queue is a normal outcome, not a failure.
		writeJSON(w, http.StatusOK, envelope{Message: "no pending tickets"})
		return
	}
	if err != nil {
		h.fail(w, err)
		return
	}
	writeData(w, http.StatusOK, ticket)
}

type printStatusRequest struct {
	PrintStatus string `json:"print_status"`
}

// handleTicketByID routes /api/tickets/{id}[/print-status|/position].
func (h *Handler) handleTicketByID(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/tickets/"), "/")
	parts := strings.Split(path, "/")

	ticketID, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || ticketID <= 0 {
		writeError(w, http.StatusBadRequest, "ticket id must be a positive integer")
		return
	}

	switch {
	case len(parts) == 1 && r.Method == http.MethodGet:
		ticket, err := h.queue.Ticket(r.Context(), ticketID)
		if err != nil {
			h.fail(w, err)
			return
		}
		writeData(w, http.StatusOK, ticket)
	case len(parts) == 1 && r.Method == http.MethodDelete:
		if err := h.queue.DeleteTicket(r.Context(), ticketID); err != nil {
			h.fail(w, err)
			return
		}
		writeMessage(w, http.StatusOK, nil, "ticket deleted")
	case len(parts) == 2 && parts[1] == "print-status" && r.Method == http.MethodPatch:
		var req printStatusRequest
		if !decodeBody(w, r, &req) {
			return
		}
		status := models.PrintStatus(strings.TrimSpace(req.PrintStatus))
		if status == "" {
			writeError(w, http.StatusBadRequest, "print_status is required")
			return
		}
		ticket, err := h.queue.UpdatePrintStatus(r.Context(), ticketID, status)
		if err != nil {
			h.fail(w, err)
			return
		}
		writeData(w, http.StatusOK, ticket)
	case len(parts) == 2 && parts[1] == "position" && r.Method == http.MethodGet:
		position, err := h.queue.QueuePosition(r.Context(), ticketID)
		if err != nil {
			h.fail(w, err)
			return
		}
		writeData(w, http.StatusOK, map[string]int{"position": position})
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}
