package socketapi

import (
	"context"
	"log"
	"time"
)

type BroadcastConfig struct {
	// QueueInterval drives realtime:update. Defaults to 5s.
	QueueInterval time.Duration
	// SweepInterval drives the presence health sweep. Defaults to 30s.
	SweepInterval time.Duration
	// DeviceListInterval drives devices:list. Defaults to 60s.
	DeviceListInterval time.Duration
}

// RunBroadcasts owns the periodic loops: queue snapshots keep slow or
// reconnected clients converged, the sweep evicts stale devices, and
// the device list refresh keeps admin views honest.
func (d *Dispatcher) RunBroadcasts(ctx context.Context, cfg BroadcastConfig) {
	if cfg.QueueInterval <= 0 {
		cfg.QueueInterval = 5 * time.Second
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = 30 * time.Second
	}
	if cfg.DeviceListInterval <= 0 {
		cfg.DeviceListInterval = 60 * time.Second
	}

	queueTicker := time.NewTicker(cfg.QueueInterval)
	defer queueTicker.Stop()
	sweepTicker := time.NewTicker(cfg.SweepInterval)
	defer sweepTicker.Stop()
	deviceTicker := time.NewTicker(cfg.DeviceListInterval)
	defer deviceTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-queueTicker.C:
			d.broadcastQueue(ctx)
		case <-sweepTicker.C:
			d.presence.Sweep(ctx, time.Now())
		case <-deviceTicker.C:
			d.broadcastDevices(ctx)
		}
	}
}

func (d *Dispatcher) broadcastQueue(ctx context.Context) {
	if d.hub.ClientCount() == 0 {
		return
	}
	snapshot, err := d.queue.QueueSnapshot(ctx)
	if err != nil {
		log.Printf("realtime update error: %v", err)
		return
	}
	d.hub.EmitToAll("realtime:update", snapshot)
}

func (d *Dispatcher) broadcastDevices(ctx context.Context) {
	if d.hub.ClientCount() == 0 {
		return
	}
	devices, err := d.presence.AllDevices(ctx)
	if err != nil {
		log.Printf("device list error: %v", err)
		return
	}
	d.hub.EmitToAll("devices:list", map[string]interface{}{"devices": devices})
}
