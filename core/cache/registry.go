package cache

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/multierr"
)

// Managed is the lifecycle surface a Registry tracks. *Cache satisfies it
// for every key/value instantiation.
type Managed interface {
	Name() string
	Shutdown(ctx context.Context) error
}

// Registry tracks every cache constructed against it so the process can
// drain them all in one call. Hold one in your composition root and pass it
// via Config.Registry.
type Registry struct {
	mu     sync.Mutex
	caches []Managed
}

func NewRegistry() *Registry {
	return &Registry{}
}

func (r *Registry) register(c Managed) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.caches = append(r.caches, c)
}

// Caches returns the registered caches in registration order.
func (r *Registry) Caches() []Managed {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Managed, len(r.caches))
	copy(out, r.caches)
	return out
}

// ShutdownAll shuts down every registered cache, aggregating their settle
// failures. Caches that were already shut down individually are skipped.
func (r *Registry) ShutdownAll(ctx context.Context) error {
	var errs error
	for _, c := range r.Caches() {
		if err := c.Shutdown(ctx); err != nil && !errors.Is(err, ErrClosed) {
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}
