package service

import (
	"context"
	"fmt"
	"log/slog"

	"graphwatch/internal/domain"
	"graphwatch/internal/incident"
	"graphwatch/internal/store"
)

// Reconciler applies complete graphs produced by adapter syncs to the store
type Reconciler struct {
	store    *store.Store
	eventBus *EventBus
	logger   *slog.Logger
}

// NewReconciler creates a new reconciler
func NewReconciler(st *store.Store, eventBus *EventBus, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		store:    st,
		eventBus: eventBus,
		logger:   logger.With("component", "reconcile"),
	}
}

// ReplaceNote is the payload of EventGraphReplaced
type ReplaceNote struct {
	Source string            `json:"source"`
	Stats  domain.GraphStats `json:"stats"`
}

// ReconcileGraph replaces the live graph with g. It matches
// adapter.ReconcileFunc. A graph that fails validation is rejected and the
// last known graph stays in place.
func (r *Reconciler) ReconcileGraph(ctx context.Context, source string, g *domain.Graph) error {
	if g == nil {
		return fmt.Errorf("%s produced no graph", source)
	}
	if err := incident.ValidateChains(g); err != nil {
		// unknown chain endpoints are rendered with a fallback label
		r.logger.Warn("graph has dangling causality links", "source", source, "error", err)
	}

	if err := r.store.ReplaceAll(g); err != nil {
		return fmt.Errorf("reconcile %s: %w", source, err)
	}

	live := r.store.Live()
	r.logger.Info("graph synced", "source", source, "nodes", len(live.Nodes), "connections", len(live.Connections))
	if r.eventBus != nil {
		r.eventBus.Publish(Event{
			Type:    EventGraphReplaced,
			Payload: ReplaceNote{Source: source, Stats: live.Stats},
		})
	}
	return nil
}
