// Package shutdown coordinates graceful shutdown of a digitizer run:
// signal handling, then cleanup steps in priority order.
package shutdown

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"digitizer/core"
)

// Cleanup priorities used by the CLI. Lower runs first.
const (
	PriorityStopTracking = 10
	PriorityDrainHistory = 20
	PriorityCloseHistory = 30
	PrioritySyncLogger   = 40
)

type entry struct {
	name     string
	priority int
	fn       core.ShutdownFunc
	seq      int
}

// Registry holds cleanup steps and runs them once, in priority order.
// Steps with equal priority run in registration order.
type Registry struct {
	mu      sync.Mutex
	entries []entry
	ran     bool
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a cleanup step. Registrations after Run are ignored.
func (r *Registry) Register(name string, priority int, fn core.ShutdownFunc) {
	if fn == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ran {
		return
	}
	r.entries = append(r.entries, entry{name: name, priority: priority, fn: fn, seq: len(r.entries)})
}

// Run executes every step, even when earlier ones fail, and returns the
// failures joined. A second Run does nothing.
func (r *Registry) Run(ctx context.Context) error {
	r.mu.Lock()
	if r.ran {
		r.mu.Unlock()
		return nil
	}
	r.ran = true
	steps := r.sorted()
	r.mu.Unlock()

	var errs []error
	for _, step := range steps {
		if err := step.fn(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", step.name, err))
		}
	}
	return errors.Join(errs...)
}

// Names returns step names in execution order.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	steps := r.sorted()
	names := make([]string, len(steps))
	for i, step := range steps {
		names[i] = step.name
	}
	return names
}

// sorted must be called with mu held.
func (r *Registry) sorted() []entry {
	steps := make([]entry, len(r.entries))
	copy(steps, r.entries)
	sort.Slice(steps, func(i, j int) bool {
		if steps[i].priority != steps[j].priority {
			return steps[i].priority < steps[j].priority
		}
		return steps[i].seq < steps[j].seq
	})
	return steps
}
