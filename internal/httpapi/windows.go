package httpapi

import (
	"net/http"
	"strconv"
	"strings"
)

type createWindowRequest struct {
	ServiceID *int64 `json:"service_id"`
}

func (h *Handler) handleWindows(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		windows, err := h.store.ListWindows(r.Context())
		if err != nil {
			h.fail(w, err)
			return
		}
		writeData(w, http.StatusOK, windows)
	case http.MethodPost:
		var req createWindowRequest
		if !decodeBody(w, r, &req) {
			return
		}
		window, err := h.store.CreateWindow(r.Context(), req.ServiceID)
		if err != nil {
			h.fail(w, err)
			return
		}
		writeData(w, http.StatusCreated, window)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

type updateWindowRequest struct {
	ServiceID *int64 `json:"service_id"`
	Active    *bool  `json:"active"`
}

func (h *Handler) handleWindowByID(w http.ResponseWriter, r *http.Request) {
	raw := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/windows/"), "/")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "window id must be a positive integer")
		return
	}

	switch r.Method {
	case http.MethodGet:
		window, err := h.store.GetWindow(r.Context(), id)
		if err != nil {
			h.fail(w, err)
			return
		}
		writeData(w, http.StatusOK, window)
	case http.MethodPatch:
		var req updateWindowRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if req.ServiceID == nil && req.Active == nil {
			writeError(w, http.StatusBadRequest, "service_id or active is required")
			return
		}
		window, err := h.store.UpdateWindow(r.Context(), id, req.ServiceID, req.Active)
		if err != nil {
			h.fail(w, err)
			return
		}
		writeData(w, http.StatusOK, window)
	case http.MethodDelete:
		if err := h.store.DeleteWindow(r.Context(), id); err != nil {
			h.fail(w, err)
			return
		}
		writeMessage(w, http.StatusOK, nil, "window deleted")
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}
