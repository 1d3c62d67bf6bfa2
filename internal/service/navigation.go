package service

import (
	"sync"

	"github.com/lexhq/tasktrack/internal/domain/navigation"
)

// NavigationResolver bridges the moment a user acts on a completion
// notification to the moment the workspace view initializes and restores
// context. It is a single-slot mailbox, not a queue: setting a new pending
// navigation before the previous one is consumed replaces it (last-click-wins;
// only one destination view exists to receive the handoff).
type NavigationResolver struct {
	mu      sync.Mutex
	pending *navigation.Pending
}

// NewNavigationResolver creates an empty resolver.
func NewNavigationResolver() *NavigationResolver {
	return &NavigationResolver{}
}

// Set stores a pending navigation, overwriting any unconsumed one.
func (r *NavigationResolver) Set(p navigation.Pending) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending = &p
}

// Take returns the stored pending navigation and atomically clears it.
// A second call returns nil until a new navigation is set, so a view that
// re-initializes for unrelated reasons never re-applies stale context.
func (r *NavigationResolver) Take() *navigation.Pending {
	r.mu.Lock()
	defer r.mu.Unlock()

	p := r.pending
	r.pending = nil
	return p
}

// Pending reports whether a navigation is waiting, without consuming it.
func (r *NavigationResolver) Pending() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pending != nil
}
