// Package presence tracks which devices are alive, over both the
// realtime transport and UDP heartbeats, and evicts the ones that
// go quiet.
package presence

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/jeogo/casnos-sub000/internal/models"
	"github.com/jeogo/casnos-sub000/internal/store"
)

type Broadcaster interface {
	EmitToAll(event string, data interface{})
	EmitToRoom(room, event string, data interface{})
}

// Store is the persistence slice the registry depends on.
type Store interface {
	UpsertDevice(ctx context.Context, input store.RegisterDeviceInput) (models.Device, error)
	GetDevice(ctx context.Context, deviceID string) (models.Device, error)
	ListOnlineDevices(ctx context.Context) ([]models.Device, error)
	ListDevices(ctx context.Context) ([]models.Device, error)
	TouchDevice(ctx context.Context, deviceID string, seenAt time.Time) (models.Device, error)
	MarkOffline(ctx context.Context, deviceID string, at time.Time) (bool, error)
	MarkStaleOffline(ctx context.Context, cutoff time.Time) ([]string, error)
	EnsureWindowForDevice(ctx context.Context, deviceID string) (models.Window, error)
	DeactivateWindowForDevice(ctx context.Context, deviceID string) (bool, error)
}

// Registry maps realtime connections to devices. A device may hold
// several connections; it goes offline when the last one drops or when
// the sweep finds it stale.
type Registry struct {
	store      Store
	bus        Broadcaster
	staleAfter time.Duration

	mu     sync.Mutex
	byConn map[string]string
	conns  map[string]map[string]struct{}
}

func NewRegistry(st Store, bus Broadcaster, staleAfter time.Duration) *Registry {
	if staleAfter <= 0 {
		staleAfter = 60 * time.Second
	}
	return &Registry{
		store:      st,
		bus:        bus,
		staleAfter: staleAfter,
		byConn:     make(map[string]string),
		conns:      make(map[string]map[string]struct{}),
	}
}

type RegisterInput struct {
	DeviceID   string
	Name       string
	IPAddress  string
	DeviceType models.DeviceType
}

// Register upserts the device, binds it to the connection and, for
// window-class devices, ensures an active window row.
func (r *Registry) Register(ctx context.Context, connID string, input RegisterInput) (models.Device, *models.Window, error) {
	device, err := r.store.UpsertDevice(ctx, store.RegisterDeviceInput{
		DeviceID:   input.DeviceID,
		Name:       input.Name,
		IPAddress:  input.IPAddress,
		DeviceType: input.DeviceType,
		SeenAt:     time.Now().UTC(),
	})
	if err != nil {
		return models.Device{}, nil, err
	}

	if connID != "" {
		r.mu.Lock()
		r.byConn[connID] = device.DeviceID
		members, ok := r.conns[device.DeviceID]
		if !ok {
			members = make(map[string]struct{})
			r.conns[device.DeviceID] = members
		}
		members[connID] = struct{}{}
		r.mu.Unlock()
	}

	var window *models.Window
	if device.DeviceType == models.DeviceWindow {
		w, err := r.store.EnsureWindowForDevice(ctx, device.DeviceID)
		if err != nil {
			return models.Device{}, nil, err
		}
		window = &w
		r.bus.EmitToAll("window:status", map[string]interface{}{
			"windowId": w.ID,
			"deviceId": device.DeviceID,
			"active":   true,
		})
	}

	r.bus.EmitToAll("device:connected", device)
	r.bus.EmitToAll("device:status-update", device)
	return device, window, nil
}

// Heartbeat refreshes last_seen and re-broadcasts the device status so
// subscribers see it stay alive. Unknown devices are rejected so a
// heartbeat never creates a half-registered row.
func (r *Registry) Heartbeat(ctx context.Context, deviceID string) (models.Device, error) {
	device, err := r.store.TouchDevice(ctx, deviceID, time.Now().UTC())
	if err != nil {
		return models.Device{}, err
	}
	r.bus.EmitToAll("device:status-update", device)
	return device, nil
}

// Disconnect unbinds the connection and evicts the device if that was
// its last one.
func (r *Registry) Disconnect(ctx context.Context, connID string) {
	r.mu.Lock()
	deviceID, ok := r.byConn[connID]
	if !ok {
		r.mu.Unlock()
		return
	}
	delete(r.byConn, connID)
	members := r.conns[deviceID]
	delete(members, connID)
	remaining := len(members)
	if remaining == 0 {
		delete(r.conns, deviceID)
	}
	r.mu.Unlock()

	if remaining > 0 {
		return
	}
	r.evict(ctx, deviceID)
}

// Sweep marks devices not seen within the stale window offline. Called
// from the periodic health loop.
func (r *Registry) Sweep(ctx context.Context, now time.Time) {
	ids, err := r.store.MarkStaleOffline(ctx, now.Add(-r.staleAfter))
	if err != nil {
		log.Printf("presence sweep error: %v", err)
		return
	}
	for _, deviceID := range ids {
		r.dropBindings(deviceID)
		r.announceOffline(ctx, deviceID)
	}
}

// evict flips the device offline. MarkOffline reports whether the row
// changed, so a disconnect racing the sweep announces only once.
func (r *Registry) evict(ctx context.Context, deviceID string) {
	flipped, err := r.store.MarkOffline(ctx, deviceID, time.Now().UTC())
	if err != nil {
		log.Printf("presence evict %s: %v", deviceID, err)
		return
	}
	if !flipped {
		return
	}
	r.announceOffline(ctx, deviceID)
}

func (r *Registry) announceOffline(ctx context.Context, deviceID string) {
	device, err := r.store.GetDevice(ctx, deviceID)
	if err != nil {
		if !errors.Is(err, store.ErrDeviceNotFound) {
			log.Printf("presence lookup %s: %v", deviceID, err)
		}
		return
	}

	if device.DeviceType == models.DeviceWindow {
		deactivated, err := r.store.DeactivateWindowForDevice(ctx, deviceID)
		if err != nil {
			log.Printf("deactivate window for %s: %v", deviceID, err)
		} else if deactivated {
			r.bus.EmitToAll("window:status", map[string]interface{}{
				"deviceId": deviceID,
				"active":   false,
			})
		}
	}

	r.bus.EmitToAll("device:disconnected", device)
	r.bus.EmitToAll("device:status-update", device)
}

func (r *Registry) dropBindings(deviceID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for connID := range r.conns[deviceID] {
		delete(r.byConn, connID)
	}
	delete(r.conns, deviceID)
}

// DeviceForConn resolves the device a connection registered as.
func (r *Registry) DeviceForConn(connID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	deviceID, ok := r.byConn[connID]
	return deviceID, ok
}

func (r *Registry) OnlineDevices(ctx context.Context) ([]models.Device, error) {
	return r.store.ListOnlineDevices(ctx)
}

func (r *Registry) AllDevices(ctx context.Context) ([]models.Device, error) {
	return r.store.ListDevices(ctx)
}

func (r *Registry) ConnectedIDs(ctx context.Context) ([]string, error) {
	devices, err := r.store.ListOnlineDevices(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(devices))
	for _, device := range devices {
		ids = append(ids, device.DeviceID)
	}
	return ids, nil
}
