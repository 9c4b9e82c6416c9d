package application

import "sync"

// Session is the per-source conversational context: at most one pending
// offer awaiting a yes/no answer in the next input. A new offer overwrites
// a stale one. Sessions are explicit values so concurrent command sources
// never share hidden state.
type Session struct {
	mu           sync.Mutex
	pendingOffer string
}

func NewSession() *Session {
	return &Session{}
}

// SetOffer records the command text to run if the next input affirms.
func (s *Session) SetOffer(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pendingOffer = text
}

// Offer returns the pending offer without consuming it.
func (s *Session) Offer() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pendingOffer, s.pendingOffer != ""
}

// Clear drops the pending offer, if any.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pendingOffer = ""
}
