// Package config wires docstore declaratively: settings are assigned once,
// entities are registered once per container, and Start opens the client
// only after the whole module validates.
package config

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jacentio/docstore/schema"
	"github.com/jacentio/docstore/store"
)

// Setting keys, as used in files, environment variables and errors.
const (
	KeyEndpoint               = "endpoint"
	KeyKey                    = "key"
	KeySecret                 = "secret"
	KeyDatabase               = "database"
	KeyPreferredRegions       = "preferred_regions"
	KeySlowOperationThreshold = "slow_operation_threshold"
	KeyTooManyRowsThreshold   = "too_many_rows_threshold"
	keyEntities               = "entities"
)

var requiredKeys = []string{KeyEndpoint, KeyKey, KeySecret, KeyDatabase, KeyPreferredRegions}

// Module collects settings and entity registrations for one client.
type Module struct {
	mu       sync.Mutex
	cfg      store.Config
	set      map[string]bool
	registry *store.Registry
	client   *store.Client
	started  bool
}

// New creates an empty module. opts are passed to the underlying client.
func New(opts ...store.Option) *Module {
	return &Module{
		cfg:      store.DefaultConfig(),
		set:      make(map[string]bool),
		registry: store.NewRegistry(),
		client:   store.NewClient(opts...),
	}
}

// assign runs apply under the lock unless key was already set or the module
// has started.
func (m *Module) assign(key string, apply func(*store.Config)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started {
		return &store.ConfigurationError{Key: key, Reason: "module already started"}
	}
	if m.set[key] {
		return &store.ConfigurationError{Key: key, Reason: "already set"}
	}
	apply(&m.cfg)
	m.set[key] = true
	return nil
}

func (m *Module) Endpoint(v string) error {
	return m.assign(KeyEndpoint, func(c *store.Config) { c.Endpoint = v })
}

func (m *Module) Key(v string) error {
	return m.assign(KeyKey, func(c *store.Config) { c.Key = v })
}

func (m *Module) Secret(v string) error {
	return m.assign(KeySecret, func(c *store.Config) { c.Secret = v })
}

func (m *Module) Database(v string) error {
	return m.assign(KeyDatabase, func(c *store.Config) { c.Database = v })
}

// PreferredRegions sets the ordered region list; the first entry is the
// client region.
func (m *Module) PreferredRegions(regions ...string) error {
	regions = append([]string(nil), regions...)
	return m.assign(KeyPreferredRegions, func(c *store.Config) { c.PreferredRegions = regions })
}

func (m *Module) SlowOperationThreshold(d time.Duration) error {
	return m.assign(KeySlowOperationThreshold, func(c *store.Config) { c.SlowOperationThreshold = d })
}

func (m *Module) TooManyRowsThreshold(n int) error {
	return m.assign(KeyTooManyRowsThreshold, func(c *store.Config) { c.TooManyRowsThreshold = n })
}

// Apply assigns every non-zero field of cfg through the set-once setters.
func (m *Module) Apply(cfg store.Config) error {
	steps := []struct {
		present bool
		set     func() error
	}{
		{cfg.Endpoint != "", func() error { return m.Endpoint(cfg.Endpoint) }},
		{cfg.Key != "", func() error { return m.Key(cfg.Key) }},
		{cfg.Secret != "", func() error { return m.Secret(cfg.Secret) }},
		{cfg.Database != "", func() error { return m.Database(cfg.Database) }},
		{len(cfg.PreferredRegions) > 0, func() error { return m.PreferredRegions(cfg.PreferredRegions...) }},
		{cfg.SlowOperationThreshold > 0, func() error { return m.SlowOperationThreshold(cfg.SlowOperationThreshold) }},
		{cfg.TooManyRowsThreshold > 0, func() error { return m.TooManyRowsThreshold(cfg.TooManyRowsThreshold) }},
	}
	for _, s := range steps {
		if !s.present {
			continue
		}
		if err := s.set(); err != nil {
			return err
		}
	}
	return nil
}

// Entity registers s and returns a repository for it bound to the module's
// client. Each container may be registered once.
func Entity[T any](m *Module, s *schema.Type) (*store.Repository[T], error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started {
		return nil, &store.ConfigurationError{Key: keyEntities, Reason: "module already started"}
	}
	if err := m.registry.Register(s); err != nil {
		return nil, err
	}
	return store.NewRepository[T](m.client, s)
}

// Validate reports the first missing required setting, or a missing entity.
func (m *Module) Validate() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.validate()
}

func (m *Module) validate() error {
	for _, key := range requiredKeys {
		if !m.set[key] {
			return &store.ConfigurationError{Key: key, Reason: "required setting is missing"}
		}
	}
	if m.registry.Len() == 0 {
		return &store.ConfigurationError{Key: keyEntities, Reason: "at least one entity must be registered"}
	}
	return nil
}

// Start validates the module and opens its client.
func (m *Module) Start(ctx context.Context) (*store.Database, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started {
		return nil, &store.ConfigurationError{Key: "module", Reason: "already started"}
	}
	if err := m.validate(); err != nil {
		return nil, err
	}
	db, err := m.client.Open(ctx, m.cfg)
	if err != nil {
		return nil, fmt.Errorf("start docstore module: %w", err)
	}
	m.started = true
	return db, nil
}

// Stop closes the client. Stopping a module that is not started is a no-op.
func (m *Module) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.started {
		return nil
	}
	m.started = false
	return m.client.Close()
}

func (m *Module) Client() *store.Client { return m.client }

func (m *Module) Registry() *store.Registry { return m.registry }

// Config returns a copy of the assigned settings.
func (m *Module) Config() store.Config {
	m.mu.Lock()
	defer m.mu.Unlock()
	cfg := m.cfg
	cfg.PreferredRegions = append([]string(nil), cfg.PreferredRegions...)
	return cfg
}
