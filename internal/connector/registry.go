package connector

import (
	"fmt"
	"sort"
	"sync"
)

// Factory is a function that creates a new Connector instance.
type Factory func() Connector

// Registry manages connector factories and the live connection of each
// named source. The CLI and the HTTP explorer share one registry.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	active    map[string]Connector // keyed by source name
}

// NewRegistry creates a new empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
		active:    make(map[string]Connector),
	}
}

// RegisterDriver registers a connector factory for a driver type.
func (r *Registry) RegisterDriver(driver string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[driver] = factory
}

// New creates an unconnected connector for driver.
func (r *Registry) New(driver string) (Connector, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	factory, ok := r.factories[driver]
	if !ok {
		return nil, fmt.Errorf("unsupported driver: %s (available: %v)", driver, sortedKeys(r.factories))
	}
	return factory(), nil
}

// Connect creates a connector for cfg.Driver, connects it and stores it under
// sourceName, closing any connector previously stored there.
func (r *Registry) Connect(sourceName string, cfg ConnectionConfig) (Connector, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	factory, ok := r.factories[cfg.Driver]
	if !ok {
		return nil, fmt.Errorf("unsupported driver: %s (available: %v)", cfg.Driver, sortedKeys(r.factories))
	}

	conn := factory()
	if err := conn.Connect(cfg); err != nil {
		return nil, fmt.Errorf("connect source %q: %w", sourceName, err)
	}

	if existing, ok := r.active[sourceName]; ok {
		existing.Disconnect()
	}

	r.active[sourceName] = conn
	return conn, nil
}

// Get returns the connector for a source.
func (r *Registry) Get(sourceName string) (Connector, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conn, ok := r.active[sourceName]
	if !ok {
		return nil, fmt.Errorf("source %q not connected (available: %v)", sourceName, sortedKeys(r.active))
	}
	return conn, nil
}

// Disconnect removes and disconnects a source.
func (r *Registry) Disconnect(sourceName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.active[sourceName]
	if !ok {
		return fmt.Errorf("source %q not connected", sourceName)
	}

	err := conn.Disconnect()
	delete(r.active, sourceName)
	return err
}

// CloseAll disconnects all sources.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for name, conn := range r.active {
		conn.Disconnect()
		delete(r.active, name)
	}
}

// Sources returns the names of connected sources, sorted.
func (r *Registry) Sources() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.active)
}

// Drivers returns the registered driver names, sorted.
func (r *Registry) Drivers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.factories)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
