package socketapi

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"strings"

	"github.com/jeogo/casnos-sub000/internal/hub"
	"github.com/jeogo/casnos-sub000/internal/models"
	"github.com/jeogo/casnos-sub000/internal/presence"
	"github.com/jeogo/casnos-sub000/internal/store"
)

type deviceRegisterRequest struct {
	DeviceID   string `json:"deviceId"`
	Name       string `json:"name"`
	DeviceType string `json:"deviceType"`
	IPAddress  string `json:"ipAddress"`
}

func (d *Dispatcher) handleDeviceRegister(ctx context.Context, client *hub.Client, data json.RawMessage) {
	var req deviceRegisterRequest
	if err := json.Unmarshal(data, &req); err != nil {
		d.emitError(client.ID, "device:register", "invalid_payload", "invalid register payload")
		return
	}
	req.DeviceID = strings.TrimSpace(req.DeviceID)
	deviceType := models.DeviceType(strings.TrimSpace(req.DeviceType))
	if req.DeviceID == "" || !models.ValidDeviceType(deviceType) {
		d.emitError(client.ID, "device:register", "invalid_payload", "deviceId and a valid deviceType are required")
		return
	}

	device, window, err := d.presence.Register(ctx, client.ID, presence.RegisterInput{
		DeviceID:   req.DeviceID,
		Name:       req.Name,
		IPAddress:  strings.TrimSpace(req.IPAddress),
		DeviceType: deviceType,
	})
	if err != nil {
		d.emitError(client.ID, "device:register", codeFor(err), "registration failed")
		return
	}

	d.hub.Join(client.ID, "device:"+device.DeviceID)
	d.hub.Join(client.ID, "type:"+string(device.DeviceType))
	if device.DeviceType == models.DeviceAdmin {
		d.hub.Join(client.ID, "admins")
	}

	payload := map[string]interface{}{"device": device}
	if window != nil {
		payload["window"] = window
	}
	d.hub.EmitToClient(client.ID, "device:registered", payload)
}

type deviceHeartbeatRequest struct {
	DeviceID string `json:"deviceId"`
}

func (d *Dispatcher) handleDeviceHeartbeat(ctx context.Context, client *hub.Client, data json.RawMessage) {
	var req deviceHeartbeatRequest
	if err := json.Unmarshal(data, &req); err != nil || strings.TrimSpace(req.DeviceID) == "" {
		d.emitError(client.ID, "device:heartbeat", "invalid_payload", "deviceId is required")
		return
	}
	if _, err := d.presence.Heartbeat(ctx, strings.TrimSpace(req.DeviceID)); err != nil {
		d.emitError(client.ID, "device:heartbeat", codeFor(err), "heartbeat failed")
	}
}

// codeFor maps store sentinels to wire error codes.
func codeFor(err error) string {
	switch {
	case errors.Is(err, store.ErrServiceNotFound):
		return "service_not_found"
	case errors.Is(err, store.ErrTicketNotFound):
		return "ticket_not_found"
	case errors.Is(err, store.ErrDeviceNotFound):
		return "device_not_found"
	case errors.Is(err, store.ErrWindowNotFound):
		return "window_not_found"
	case errors.Is(err, store.ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, store.ErrDuplicate):
		return "duplicate"
	case errors.Is(err, store.ErrBusy):
		return "store_busy"
	default:
		var netErr net.Error
		if errors.As(err, &netErr) {
			return "network_error"
		}
		return "internal_error"
	}
}
