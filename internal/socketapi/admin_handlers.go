package socketapi

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/jeogo/casnos-sub000/internal/hub"
)

// dispatchAdmin gates every admin:* event on admins room membership,
// which only device:register with an admin device type grants.
func (d *Dispatcher) dispatchAdmin(ctx context.Context, client *hub.Client, event inboundEvent) {
	if !d.hub.InRoom(client.ID, "admins") {
		d.hub.EmitToClient(client.ID, "admin:unauthorized", map[string]interface{}{
			"event":   event.Event,
			"message": "admin registration required",
		})
		return
	}

	switch event.Event {
	case "admin:get-system-status":
		d.handleSystemStatus(ctx, client)
	case "admin:get-statistics":
		d.handleStatistics(ctx, client)
	case "admin:get-devices":
		d.handleGetDevices(ctx, client)
	case "admin:message-device":
		d.handleMessageDevice(client, event.Data)
	case "admin:system-reset":
		d.handleSystemReset(ctx, client)
	default:
		d.emitError(client.ID, event.Event, "unknown_event", "unknown admin event")
	}
}

func (d *Dispatcher) handleSystemStatus(ctx context.Context, client *hub.Client) {
	stats, err := d.queue.Statistics(ctx)
	if err != nil {
		d.emitError(client.ID, "admin:get-system-status", codeFor(err), "status lookup failed")
		return
	}
	connected, err := d.presence.ConnectedIDs(ctx)
	if err != nil {
		d.emitError(client.ID, "admin:get-system-status", codeFor(err), "status lookup failed")
		return
	}
	d.hub.EmitToClient(client.ID, "admin:system-status", map[string]interface{}{
		"statistics":       stats,
		"connectedDevices": connected,
		"connectedClients": d.hub.ClientCount(),
		"uptimeSeconds":    int64(time.Since(d.started).Seconds()),
	})
}

func (d *Dispatcher) handleStatistics(ctx context.Context, client *hub.Client) {
	stats, err := d.queue.Statistics(ctx)
	if err != nil {
		d.emitError(client.ID, "admin:get-statistics", codeFor(err), "statistics lookup failed")
		return
	}
	d.hub.EmitToClient(client.ID, "admin:statistics", stats)
}

func (d *Dispatcher) handleGetDevices(ctx context.Context, client *hub.Client) {
	devices, err := d.presence.AllDevices(ctx)
	if err != nil {
		d.emitError(client.ID, "admin:get-devices", codeFor(err), "device lookup failed")
		return
	}
	d.hub.EmitToClient(client.ID, "admin:devices", map[string]interface{}{"devices": devices})
}

type messageDeviceRequest struct {
	DeviceID string          `json:"deviceId"`
	Message  json.RawMessage `json:"message"`
}

func (d *Dispatcher) handleMessageDevice(client *hub.Client, data json.RawMessage) {
	var req messageDeviceRequest
	if err := json.Unmarshal(data, &req); err != nil || strings.TrimSpace(req.DeviceID) == "" {
		d.emitError(client.ID, "admin:message-device", "invalid_payload", "deviceId is required")
		return
	}
	d.hub.EmitToDevice(strings.TrimSpace(req.DeviceID), "admin:message", map[string]interface{}{
		"from":    "admin",
		"message": req.Message,
	})
	d.hub.EmitToClient(client.ID, "admin:message-sent", map[string]interface{}{"deviceId": req.DeviceID})
}

func (d *Dispatcher) handleSystemReset(ctx context.Context, client *hub.Client) {
	if err := d.reset.Force(ctx); err != nil {
		d.emitError(client.ID, "admin:system-reset", codeFor(err), "reset failed")
		return
	}
	d.hub.EmitToClient(client.ID, "admin:reset-complete", nil)
}
