package httpapi

import (
	"net/http"
	"strings"

	"github.com/jeogo/casnos-sub000/internal/models"
	"github.com/jeogo/casnos-sub000/internal/presence"
	"github.com/jeogo/casnos-sub000/internal/store"
)

func (h *Handler) handleDevices(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	devices, err := h.presence.AllDevices(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	writeData(w, http.StatusOK, devices)
}

func (h *Handler) handleOnlineDevices(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	devices, err := h.presence.OnlineDevices(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	writeData(w, http.StatusOK, devices)
}

type registerDeviceRequest struct {
	DeviceID   string `json:"device_id"`
	Name       string `json:"name"`
	IPAddress  string `json:"ip_address"`
	DeviceType string `json:"device_type"`
}

// handleRegisterDevice is the HTTP registration path for devices that
// poll instead of holding a realtime connection.
func (h *Handler) handleRegisterDevice(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req registerDeviceRequest
	if !decodeBody(w, r, &req) {
		return
	}
	req.DeviceID = strings.TrimSpace(req.DeviceID)
	deviceType := models.DeviceType(strings.TrimSpace(req.DeviceType))
	if req.DeviceID == "" {
		writeError(w, http.StatusBadRequest, "device_id is required")
		return
	}
	if !models.ValidDeviceType(deviceType) {
		writeError(w, http.StatusBadRequest, "device_type must be one of display, customer, window, admin")
		return
	}
	if req.IPAddress == "" {
		req.IPAddress = clientIP(r)
	}

	device, window, err := h.presence.Register(r.Context(), "", presence.RegisterInput{
		DeviceID:   req.DeviceID,
		Name:       strings.TrimSpace(req.Name),
		IPAddress:  strings.TrimSpace(req.IPAddress),
		DeviceType: deviceType,
	})
	if err != nil {
		h.fail(w, err)
		return
	}
	payload := map[string]interface{}{"device": device}
	if window != nil {
		payload["window"] = window
	}
	writeData(w, http.StatusCreated, payload)
}

// handleDeviceSubroutes routes
// /api/devices/{deviceId}/heartbeat|printers[/{printerId}].
func (h *Handler) handleDeviceSubroutes(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/devices/"), "/")
	parts := strings.Split(path, "/")
	if len(parts) < 2 || parts[0] == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	deviceID := parts[0]

	switch {
	case len(parts) == 2 && parts[1] == "heartbeat" && r.Method == http.MethodPost:
		device, err := h.presence.Heartbeat(r.Context(), deviceID)
		if err != nil {
			h.fail(w, err)
			return
		}
		writeData(w, http.StatusOK, device)
	case len(parts) == 2 && parts[1] == "printers" && r.Method == http.MethodGet:
		printers, err := h.store.ListPrinters(r.Context(), deviceID)
		if err != nil {
			h.fail(w, err)
			return
		}
		writeData(w, http.StatusOK, printers)
	case len(parts) == 2 && parts[1] == "printers" && r.Method == http.MethodPost:
		h.handleAddPrinter(w, r, deviceID)
	case len(parts) == 3 && parts[1] == "printers" && r.Method == http.MethodDelete:
		if err := h.store.RemovePrinter(r.Context(), deviceID, parts[2]); err != nil {
			h.fail(w, err)
			return
		}
		writeMessage(w, http.StatusOK, nil, "printer removed")
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

type addPrinterRequest struct {
	PrinterID   string `json:"printer_id"`
	PrinterName string `json:"printer_name"`
	IsDefault   bool   `json:"is_default"`
}

func (h *Handler) handleAddPrinter(w http.ResponseWriter, r *http.Request, deviceID string) {
	var req addPrinterRequest
	if !decodeBody(w, r, &req) {
		return
	}
	req.PrinterID = strings.TrimSpace(req.PrinterID)
	if req.PrinterID == "" {
		writeError(w, http.StatusBadRequest, "printer_id is required")
		return
	}
	printer, err := h.store.AddPrinter(r.Context(), store.AddPrinterInput{
		DeviceID:    deviceID,
		PrinterID:   req.PrinterID,
		PrinterName: strings.TrimSpace(req.PrinterName),
		IsDefault:   req.IsDefault,
	})
	if err != nil {
		h.fail(w, err)
		return
	}
	writeData(w, http.StatusCreated, printer)
}
