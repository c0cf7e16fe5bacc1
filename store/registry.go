package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/KBesada24/test-suite-manager/models"
	"golang.org/x/sync/singleflight"
)

// DefaultLoadTimeout bounds a shared tenant load
const DefaultLoadTimeout = 30 * time.Second

// LoadFunc fetches the persisted tree and id sequences of a tenant
type LoadFunc func(ctx context.Context, tenantID string) ([]models.TestSuite, Sequences, error)

// SetupFunc runs once for every store the registry creates, before it is
// handed out. It is typically used to subscribe observers.
type SetupFunc func(tenantID string, s *Store)

// Registry owns one Store per tenant and loads it on first use
type Registry struct {
	mu      sync.RWMutex
	stores  map[string]*Store
	evicted map[string]uint64
	load    LoadFunc
	setup   []SetupFunc
	opts    []Option
	loading singleflight.Group

	// LoadTimeout bounds one shared load. It is detached from the
	// context of the caller that started it.
	LoadTimeout time.Duration
}

// NewRegistry creates a registry. A nil load function starts every tenant empty.
func NewRegistry(load LoadFunc, opts ...Option) *Registry {
	return &Registry{
		stores:  make(map[string]*Store),
		evicted: make(map[string]uint64),
		load:    load,
		opts:    opts,

		LoadTimeout: DefaultLoadTimeout,
	}
}

// OnCreate registers a setup hook applied to stores created from now on
func (r *Registry) OnCreate(fn SetupFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.setup = append(r.setup, fn)
}

// Get returns the tenant's store, loading it when not cached.
// Concurrent first requests for one tenant share a single load, which keeps
// running when the caller that started it gives up. Each caller waits at
// most until its own ctx is done.
func (r *Registry) Get(ctx context.Context, tenantID string) (*Store, error) {
	r.mu.RLock()
	s, ok := r.stores[tenantID]
	r.mu.RUnlock()
	if ok {
		return s, nil
	}

	loadCtx := context.WithoutCancel(ctx)
	ch := r.loading.DoChan(tenantID, func() (interface{}, error) {
		ctx, cancel := context.WithTimeout(loadCtx, r.LoadTimeout)
		defer cancel()

		r.mu.RLock()
		cached, ok := r.stores[tenantID]
		r.mu.RUnlock()
		if ok {
			return cached, nil
		}

		r.mu.RLock()
		opts := append([]Option{WithVersion(r.evicted[tenantID])}, r.opts...)
		r.mu.RUnlock()

		created := New(opts...)
		if r.load != nil {
			suites, seq, err := r.load(ctx, tenantID)
			if err != nil {
				return nil, fmt.Errorf("failed to load test suites for tenant %s: %w", tenantID, err)
			}
			created.Restore(suites, seq)
		}

		r.mu.Lock()
		defer r.mu.Unlock()
		for _, fn := range r.setup {
			fn(tenantID, created)
		}
		r.stores[tenantID] = created
		return created, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Store), nil
	}
}

// Evict drops the cached store so the next Get reloads it. The reloaded
// store continues the version numbering of the evicted one.
func (r *Registry) Evict(tenantID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.stores[tenantID]; ok {
		r.evicted[tenantID] = s.Snapshot().Version
		delete(r.stores, tenantID)
	}
}

// Tenants returns the ids of all cached tenants, sorted
func (r *Registry) Tenants() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.stores))
	for id := range r.stores {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
