// Package socketapi turns sockjs sessions into dispatched events. Each
// connection runs one receive loop; everything it parses funnels into
// the single dispatch switch below, so event handling has one entry
// point instead of callbacks scattered per handler.
package socketapi

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"time"

	"github.com/jeogo/casnos-sub000/internal/hub"
	"github.com/jeogo/casnos-sub000/internal/presence"
	"github.com/jeogo/casnos-sub000/internal/queue"

	"github.com/google/uuid"
	"github.com/igm/sockjs-go/sockjs"
)

// Resetter is the slice of the reset scheduler exposed to admins.
type Resetter interface {
	Force(ctx context.Context) error
}

type Dispatcher struct {
	hub      *hub.Hub
	presence *presence.Registry
	queue    *queue.Manager
	reset    Resetter
	started  time.Time
}

func NewDispatcher(h *hub.Hub, reg *presence.Registry, mgr *queue.Manager, rst Resetter) *Dispatcher {
	return &Dispatcher{
		hub:      h,
		presence: reg,
		queue:    mgr,
		reset:    rst,
		started:  time.Now(),
	}
}

// inboundEvent is the frame clients send: {"event": "...", "data": {...}}.
type inboundEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// HandleSession owns one connection for its whole life: register,
// initial snapshot, writer goroutine, receive loop, cleanup.
func (d *Dispatcher) HandleSession(session sockjs.Session) {
	client := &hub.Client{ID: uuid.NewString(), Send: make(chan []byte, 32)}
	d.hub.Register(client)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		d.presence.Disconnect(ctx, client.ID)
		d.hub.Unregister(client)
	}()

	go func() {
		for msg := range client.Send {
			if err := session.Send(string(msg)); err != nil {
				return
			}
		}
	}()

	d.sendInitialData(client.ID)

	for {
		msg, err := session.Recv()
		if err != nil {
			return
		}
		var event inboundEvent
		if err := json.Unmarshal([]byte(msg), &event); err != nil || event.Event == "" {
			continue
		}
		d.dispatch(client, event)
	}
}

// sendInitialData gives a fresh (or reconnecting) client the full
// picture so any events it missed while away do not matter.
func (d *Dispatcher) sendInitialData(clientID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pending, err := d.queue.PendingTickets(ctx, 0)
	if err != nil {
		log.Printf("initial-data pending: %v", err)
	}
	all, err := d.queue.AllTickets(ctx, 0)
	if err != nil {
		log.Printf("initial-data tickets: %v", err)
	}
	connected, err := d.presence.ConnectedIDs(ctx)
	if err != nil {
		log.Printf("initial-data devices: %v", err)
	}

	d.hub.EmitToClient(clientID, "initial-data", map[string]interface{}{
		"pendingTickets":   pending,
		"allTickets":       all,
		"connectedDevices": connected,
		"serverTime":       time.Now().UTC().Format(time.RFC3339),
	})
}

func (d *Dispatcher) dispatch(client *hub.Client, event inboundEvent) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("panic handling %s: %v", event.Event, r)
			d.emitError(client.ID, event.Event, "internal_error", "internal server error")
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	switch event.Event {
	case "device:register":
		d.handleDeviceRegister(ctx, client, event.Data)
	case "device:heartbeat":
		d.handleDeviceHeartbeat(ctx, client, event.Data)
	case "ticket:create":
		d.handleTicketCreate(ctx, client, event.Data)
	case "ticket:call":
		d.handleTicketCall(ctx, client, event.Data)
	case "ticket:serve":
		d.handleTicketServe(ctx, client, event.Data)
	case "ticket:serve-and-next":
		d.handleServeAndNext(ctx, client, event.Data)
	case "get-queue-status":
		d.handleQueueStatus(ctx, client)
	case "get-all-tickets":
		d.handleAllTickets(ctx, client)
	case "print-job-received":
		d.handlePrintJobReceived(ctx, client, event.Data)
	case "print-job-completed":
		d.handlePrintJobCompleted(ctx, client, event.Data)
	case "ping":
		d.hub.EmitToClient(client.ID, "pong", nil)
	default:
		if strings.HasPrefix(event.Event, "admin:") {
			d.dispatchAdmin(ctx, client, event)
			return
		}
		log.Printf("unknown event %q from client %s", event.Event, client.ID)
	}
}

// emitError scopes the error event to the failing domain, e.g. a
// ticket:call failure comes back as ticket:error.
func (d *Dispatcher) emitError(clientID, event, code, message string) {
	scope := event
	if idx := strings.IndexAny(event, ":-"); idx > 0 {
		scope = event[:idx]
	}
	d.hub.EmitToClient(clientID, scope+":error", map[string]interface{}{
		"event":   event,
		"code":    code,
		"message": message,
	})
}
