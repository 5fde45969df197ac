package adapter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"graphwatch/internal/domain"
)

// ErrNoAdapters is returned by Poll when no enabled adapter is registered
var ErrNoAdapters = errors.New("no enabled adapters")

// ReconcileFunc is called when an adapter produces a graph to be applied
type ReconcileFunc func(ctx context.Context, source string, graph *domain.Graph) error

// Registry manages all registered adapters and their lifecycle
type Registry struct {
	mu        sync.RWMutex
	adapters  map[string]Adapter
	configs   map[string]AdapterConfig
	reconcile ReconcileFunc
	logger    *slog.Logger
	started   bool
}

// NewRegistry creates a new adapter registry
func NewRegistry(reconcile ReconcileFunc, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		adapters:  make(map[string]Adapter),
		configs:   make(map[string]AdapterConfig),
		reconcile: reconcile,
		logger:    logger.With("component", "adapters"),
	}
}

// Register adds an adapter to the registry
func (r *Registry) Register(adapter Adapter, config AdapterConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := adapter.Name()
	if _, exists := r.adapters[name]; exists {
		return fmt.Errorf("adapter %s already registered", name)
	}

	r.adapters[name] = adapter
	r.configs[name] = config
	r.logger.Info("registered adapter",
		"name", name, "type", adapter.Type(), "priority", config.Priority, "enabled", config.Enabled)

	return nil
}

// Start initializes all enabled adapters
func (r *Registry) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for name, adapter := range r.adapters {
		config := r.configs[name]
		if !config.Enabled {
			r.logger.Info("adapter disabled, skipping", "name", name)
			continue
		}

		if err := adapter.Start(ctx); err != nil {
			r.logger.Warn("failed to start adapter", "name", name, "error", err)
			config.Enabled = false
			r.configs[name] = config
			continue
		}
	}
	r.started = true

	return nil
}

// Stop gracefully shuts down all adapters
func (r *Registry) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.started {
		return nil
	}
	r.started = false

	for name, adapter := range r.adapters {
		if err := adapter.Stop(); err != nil {
			r.logger.Warn("error stopping adapter", "name", name, "error", err)
		}
	}

	return nil
}

// TriggerSync manually triggers a sync for a specific adapter
func (r *Registry) TriggerSync(ctx context.Context, name string) error {
	r.mu.RLock()
	adapter, exists := r.adapters[name]
	config := r.configs[name]
	r.mu.RUnlock()

	if !exists {
		return fmt.Errorf("adapter %s not found", name)
	}

	if !config.Enabled {
		return fmt.Errorf("adapter %s is disabled", name)
	}

	return r.runSync(ctx, name, adapter)
}

// TriggerSyncAll syncs every enabled adapter in ascending priority order, so
// the most authoritative source is applied last.
func (r *Registry) TriggerSyncAll(ctx context.Context) error {
	infos := r.ListAdapters()

	r.mu.RLock()
	adapters := make([]Adapter, 0, len(infos))
	for _, info := range infos {
		if info.Enabled {
			adapters = append(adapters, r.adapters[info.Name])
		}
	}
	r.mu.RUnlock()

	if len(adapters) == 0 {
		return ErrNoAdapters
	}

	var errs []error
	for _, adapter := range adapters {
		if err := r.runSync(ctx, adapter.Name(), adapter); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", adapter.Name(), err))
		}
	}

	return errors.Join(errs...)
}

// Poll implements the live channel's polling fallback: one full refresh
// from every enabled source.
func (r *Registry) Poll(ctx context.Context) error {
	return r.TriggerSyncAll(ctx)
}

// ListAdapters returns information about registered adapters, ordered by
// ascending priority then name
func (r *Registry) ListAdapters() []AdapterInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]AdapterInfo, 0, len(r.adapters))
	for name, adapter := range r.adapters {
		config := r.configs[name]
		infos = append(infos, AdapterInfo{
			Name:     name,
			Type:     adapter.Type(),
			Priority: config.Priority,
			Enabled:  config.Enabled,
		})
	}
	sort.Slice(infos, func(i, j int) bool {
		if infos[i].Priority != infos[j].Priority {
			return infos[i].Priority < infos[j].Priority
		}
		return infos[i].Name < infos[j].Name
	})
	return infos
}

// AdapterInfo provides read-only information about an adapter
type AdapterInfo struct {
	Name     string      `json:"name"`
	Type     AdapterType `json:"type"`
	Priority int         `json:"priority"`
	Enabled  bool        `json:"enabled"`
}

// runSync executes a sync operation and reconciles the result
func (r *Registry) runSync(ctx context.Context, name string, adapter Adapter) error {
	r.logger.Debug("running sync", "name", name)

	graph, err := adapter.Sync(ctx)
	if err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}

	if graph == nil || len(graph.Nodes) == 0 {
		r.logger.Info("adapter returned empty graph, keeping current state", "name", name)
		return nil
	}

	if err := r.reconcile(ctx, name, graph); err != nil {
		return fmt.Errorf("reconcile failed: %w", err)
	}

	r.logger.Debug("sync complete", "name", name,
		"nodes", len(graph.Nodes), "connections", len(graph.Connections))

	return nil
}
