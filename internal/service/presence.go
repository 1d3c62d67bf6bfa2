package service

import "sync/atomic"

// Presence is the workspace presence flag: true while the one view that
// renders live task results is active. The presenter reads it to suppress
// toasts the user would already be seeing. Constructed explicitly and passed
// by reference so tests get a fresh instance; only the workspace surface may
// set it.
type Presence struct {
	active atomic.Bool
}

// NewPresence creates a Presence flag, initially inactive.
func NewPresence() *Presence {
	return &Presence{}
}

// Set records whether the workspace view is active.
func (p *Presence) Set(active bool) {
	p.active.Store(active)
}

// Active reports whether the workspace view is currently active.
func (p *Presence) Active() bool {
	return p.active.Load()
}
