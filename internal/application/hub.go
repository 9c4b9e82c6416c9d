package application

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/vishnuvardhanreddy8653/smart-home/internal/domain"
)

// PollIdle is the sentinel returned to pollers when no command is pending.
const PollIdle = "none"

// Hub owns the state store and the live connection registry, and routes
// every resolved intent into a consistent set of broadcasts. A single
// mutex makes each update-then-broadcast sequence atomic, so concurrent
// handlers can never interleave a mutation with another intent's fan-out.
type Hub struct {
	mu      sync.Mutex
	store   *StateStore
	clients map[string]Conn
	devices map[string]Conn
	pending string
	logger  *slog.Logger
}

func NewHub(store *StateStore, logger *slog.Logger) *Hub {
	return &Hub{
		store:   store,
		clients: make(map[string]Conn),
		devices: make(map[string]Conn),
		pending: PollIdle,
		logger:  logger,
	}
}

// AddClient registers a UI client and immediately replays the current
// state of every canonical device, so the client starts consistent with
// the world before any other traffic reaches it.
func (h *Hub) AddClient(id string, conn Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[id] = conn

	snapshot := h.store.Snapshot()
	for _, d := range domain.CanonicalDevices() {
		action := domain.ActionTurnOff
		if snapshot[d] == domain.StateOn {
			action = domain.ActionTurnOn
		}
		if err := conn.Send(clientFrame(action, string(d))); err != nil {
			h.logger.Warn("snapshot replay failed", "client", id, "error", err)
			return
		}
	}
}

func (h *Hub) RemoveClient(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, id)
}

func (h *Hub) AddDevice(id string, conn Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.devices[id] = conn
}

func (h *Hub) RemoveDevice(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.devices, id)
}

func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) DeviceCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.devices)
}

// Apply turns a resolved intent into state transitions and broadcasts,
// returning the intent as the acknowledgement for the original caller.
// Non-actionable intents (none, error) and unknown device names are
// no-ops: state and connections are left untouched.
func (h *Hub) Apply(intent domain.Intent) domain.Intent {
	if !intent.Action.Actionable() {
		return intent
	}

	device, ok := domain.NormalizeDevice(intent.DeviceType)
	if !ok {
		h.logger.Warn("ignoring command for unknown device", "device", intent.DeviceType)
		return intent
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.applyLocked(intent.Action, device)

	return intent
}

// applyLocked mutates the store and fans the transition out. Callers
// must hold h.mu.
func (h *Hub) applyLocked(action domain.Action, device domain.DeviceType) {
	h.store.Update(string(device), action)
	h.fanOut(action, device)
}

// fanOut pushes one state transition to every connected client and device.
// Callers must hold h.mu: the store mutation always completes before any
// frame referencing the new state is sent.
func (h *Hub) fanOut(action domain.Action, device domain.DeviceType) {
	targets := []domain.DeviceType{device}
	if device == domain.DeviceTypeAll {
		targets = domain.AllTargets(action)
	}

	for _, t := range targets {
		h.sendClients(clientFrame(action, string(t)))
	}
	if device == domain.DeviceTypeAll {
		// Convenience frame so simple UIs can flip everything at once.
		h.sendClients(clientFrame(action, string(domain.DeviceTypeAll)))
	}

	// Every device endpoint receives every command; firmware ignores
	// pins it does not own.
	for _, t := range targets {
		frame := deviceFrame(action, string(t))
		h.sendDevices(frame)
		h.pending = frame
	}
}

func (h *Hub) sendClients(frame string) {
	for id, conn := range h.clients {
		if err := conn.Send(frame); err != nil {
			h.logger.Debug("client send failed", "client", id, "error", err)
		}
	}
}

func (h *Hub) sendDevices(frame string) {
	for id, conn := range h.devices {
		if err := conn.Send(frame); err != nil {
			h.logger.Debug("device send failed", "device", id, "error", err)
		}
	}
}

// HandleClientFrame processes an already-formatted command from a UI
// client: "ACTION:<action>:<device>" or the "toggle:<device>" shorthand.
// toggle reads and flips the state under a single lock acquisition, so
// concurrent toggles of the same device serialize instead of both
// observing the same pre-state. Malformed frames are dropped silently
// and the connection stays open.
func (h *Hub) HandleClientFrame(raw string) {
	raw = strings.TrimSpace(raw)

	if name, ok := strings.CutPrefix(raw, "toggle:"); ok {
		device, ok := domain.NormalizeDevice(name)
		if !ok {
			h.logger.Warn("ignoring toggle for unknown device", "device", name)
			return
		}

		h.mu.Lock()
		defer h.mu.Unlock()
		action := domain.ActionTurnOn
		if h.store.Get(device) == domain.StateOn {
			action = domain.ActionTurnOff
		}
		h.applyLocked(action, device)
		return
	}

	parts := strings.SplitN(raw, ":", 3)
	if len(parts) < 3 || parts[0] != "ACTION" {
		h.logger.Debug("dropping malformed frame", "frame", raw)
		return
	}

	h.Apply(domain.Intent{
		Action:     domain.Action(parts[1]),
		DeviceType: parts[2],
	})
}

// PollCommand returns the single most recent pending device command and
// atomically resets it to the idle sentinel. Delivery is at most once: a
// command missed by a slow poller is lost, never redelivered.
func (h *Hub) PollCommand() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	cmd := h.pending
	h.pending = PollIdle
	return cmd
}

func clientFrame(action domain.Action, device string) string {
	return fmt.Sprintf("ACTION:%s:%s", action, device)
}

func deviceFrame(action domain.Action, device string) string {
	return fmt.Sprintf("%s:%s", action, device)
}
