package httpapi

import (
	"net/http"
	"strconv"
	"strings"
)

type createServiceRequest struct {
	Name string `json:"name"`
}

func (h *Handler) handleServices(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		services, err := h.store.ListServices(r.Context())
		if err != nil {
			h.fail(w, err)
			return
		}
		writeData(w, http.StatusOK, services)
	case http.MethodPost:
		var req createServiceRequest
		if !decodeBody(w, r, &req) {
			return
		}
		req.Name = strings.TrimSpace(req.Name)
		if req.Name == "" {
			writeError(w, http.StatusBadRequest, "name is required")
			return
		}
		service, err := h.store.CreateService(r.Context(), req.Name)
		if err != nil {
			h.fail(w, err)
			return
		}
		writeData(w, http.StatusCreated, service)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handleServiceByID(w http.ResponseWriter, r *http.Request) {
	raw := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/services/"), "/")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "service id must be a positive integer")
		return
	}

	switch r.Method {
	case http.MethodGet:
		service, err := h.store.GetService(r.Context(), id)
		if err != nil {
			h.fail(w, err)
			return
		}
		writeData(w, http.StatusOK, service)
	case http.MethodDelete:
		if err := h.store.DeleteService(r.Context(), id); err != nil {
			h.fail(w, err)
			return
		}
		writeMessage(w, http.StatusOK, nil, "service deleted")
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}
