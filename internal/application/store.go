package application

import (
	"sync"

	"github.com/vishnuvardhanreddy8653/smart-home/internal/domain"
)

// StateStore is the canonical last-known on/off state of every device.
// It is in-memory only: a restart resets everything to off.
type StateStore struct {
	mu     sync.RWMutex
	states map[domain.DeviceType]domain.State
}

func NewStateStore() *StateStore {
	states := make(map[domain.DeviceType]domain.State, 6)
	for _, d := range domain.CanonicalDevices() {
		states[d] = domain.StateOff
	}
	return &StateStore{states: states}
}

// Update applies an action to the named device. Synonyms normalize first;
// names outside the canonical set leave the store unchanged. "all" expands
// through domain.AllTargets, which enforces the essential-appliance rule.
// Update is idempotent.
func (s *StateStore) Update(device string, action domain.Action) {
	if !action.Actionable() {
		return
	}

	d, ok := domain.NormalizeDevice(device)
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if d == domain.DeviceTypeAll {
		for _, t := range domain.AllTargets(action) {
			s.states[t] = action.State()
		}
		return
	}
	s.states[d] = action.State()
}

func (s *StateStore) Get(device domain.DeviceType) domain.State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if state, ok := s.states[device]; ok {
		return state
	}
	return domain.StateOff
}

// Snapshot returns a copy of the full mapping for replay to new clients.
func (s *StateStore) Snapshot() map[domain.DeviceType]domain.State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snapshot := make(map[domain.DeviceType]domain.State, len(s.states))
	for d, state := range s.states {
		snapshot[d] = state
	}
	return snapshot
}
