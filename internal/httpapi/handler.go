package httpapi

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/jeogo/casnos-sub000/internal/presence"
	"github.com/jeogo/casnos-sub000/internal/queue"
	"github.com/jeogo/casnos-sub000/internal/reset"
	"github.com/jeogo/casnos-sub000/internal/store"
)

type Handler struct {
	store    store.Store
	queue    *queue.Manager
	presence *presence.Registry
	reset    *reset.Scheduler
	env      string
}

type Options struct {
	// Env "production" suppresses error details in responses.
	Env string
}

func NewHandler(st store.Store, mgr *queue.Manager, reg *presence.Registry, sched *reset.Scheduler, options Options) *Handler {
	return &Handler{
		store:    st,
		queue:    mgr,
		presence: reg,
		reset:    sched,
		env:      options.Env,
	}
}

func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", h.handleHealth)
	mux.HandleFunc("/api/services", h.handleServices)
	mux.HandleFunc("/api/services/", h.handleServiceByID)
	mux.HandleFunc("/api/tickets", h.handleTickets)
	mux.HandleFunc("/api/tickets/pending", h.handlePendingTickets)
	mux.HandleFunc("/api/tickets/statistics", h.handleStatistics)
	mux.HandleFunc("/api/tickets/call", h.handleCallTicket)
	mux.HandleFunc("/api/tickets/serve", h.handleServeTicket)
	mux.HandleFunc("/api/tickets/call-next", h.handleCallNext)
	mux.HandleFunc("/api/tickets/", h.handleTicketByID)
	mux.HandleFunc("/api/devices", h.handleDevices)
	mux.HandleFunc("/api/devices/online", h.handleOnlineDevices)
	mux.HandleFunc("/api/devices/register", h.handleRegisterDevice)
	mux.HandleFunc("/api/devices/", h.handleDeviceSubroutes)
	mux.HandleFunc("/api/windows", h.handleWindows)
	mux.HandleFunc("/api/windows/", h.handleWindowByID)
	mux.HandleFunc("/api/daily-reset/status", h.handleResetStatus)
	mux.HandleFunc("/api/daily-reset/force", h.handleResetForce)
	mux.HandleFunc("/api/daily-reset/config", h.handleResetConfig)
	return mux
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeData(w, http.StatusOK, map[string]string{"status": "ok"})
}

// envelope is the response frame for every API endpoint:
// {success, data|error, message?}.
type envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Message string      `json:"message,omitempty"`
}

func writeData(w http.ResponseWriter, status int, data interface{}) {
	writeJSON(w, status, envelope{Success: true, Data: data})
}

func writeMessage(w http.ResponseWriter, status int, data interface{}, message string) {
	writeJSON(w, status, envelope{Success: true, Data: data, Message: message})
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, envelope{Success: false, Error: message})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// fail maps a service error to a status code and writes the envelope.
// Unknown errors are logged server-side and reported sanitized.
func (h *Handler) fail(w http.ResponseWriter, err error) {
	status, message := h.mapError(err)
	writeError(w, status, message)
}

func (h *Handler) mapError(err error) (int, string) {
	switch {
	case errors.Is(err, store.ErrServiceNotFound):
		return http.StatusNotFound, "service not found"
	case errors.Is(err, store.ErrTicketNotFound):
		return http.StatusNotFound, "ticket not found"
	case errors.Is(err, store.ErrDeviceNotFound):
		return http.StatusNotFound, "device not found"
	case errors.Is(err, store.ErrWindowNotFound):
		return http.StatusNotFound, "window not found"
	case errors.Is(err, store.ErrPrinterNotFound):
		return http.StatusNotFound, "printer not found"
	case errors.Is(err, store.ErrInvalidState):
		return http.StatusConflict, "state does not allow this action"
	case errors.Is(err, store.ErrDuplicate):
		return http.StatusConflict, "duplicate record"
	case errors.Is(err, store.ErrBusy):
		return http.StatusServiceUnavailable, "server busy, retry shortly"
	default:
		log.Printf("internal error: %v", err)
		if h.env == "production" {
			return http.StatusInternalServerError, "internal server error"
		}
		return http.StatusInternalServerError, sanitize(err.Error())
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, target interface{}) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(target); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return false
	}
	return true
}
