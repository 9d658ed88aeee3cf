// Copyright (C) 2025 PitCrew AI (eng@pitcrew.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package entity

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/singleflight"
)

// =============================================================================
// Prometheus Metrics
// =============================================================================

var snapshotRefreshTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "insight",
	Subsystem: "entity",
	Name:      "snapshot_refresh_total",
	Help:      "Snapshot refresh outcomes: fresh_cache, fetched, stale_fallback, persisted_fallback, empty",
}, []string{"outcome"})

// =============================================================================
// CompanyLister: the entity store collaborator
// =============================================================================

// CompanyLister is the entity store collaborator interface.
//
// Thread Safety: Implementations must be safe for concurrent use.
type CompanyLister interface {
	// ListKnownCompanies fetches the current company listing.
	ListKnownCompanies(ctx context.Context) ([]Company, error)
}

// StaticLister is a fixed in-memory CompanyLister for tests and dev.
type StaticLister []Company

// ListKnownCompanies returns the fixed listing.
func (s StaticLister) ListKnownCompanies(ctx context.Context) ([]Company, error) {
	return s, nil
}

// =============================================================================
// SnapshotProvider
// =============================================================================

// defaultFreshness is how long a fetched snapshot is served without
// re-contacting the entity store.
const defaultFreshness = 5 * time.Minute

// SnapshotProvider serves known-company snapshots to the classifier.
//
// Description:
//
//	Per request the classifier needs a read-only company snapshot. The
//	provider caches the last listing for a freshness window, deduplicates
//	concurrent refreshes with singleflight, and degrades in order:
//	fresh cache → store fetch → stale cache → persisted snapshot → empty.
//	An unavailable entity store therefore behaves as zero known entities
//	for the affected requests and never fails a classification.
//
//	Snapshots handed out are shared and must be treated as read-only by
//	callers (the resolver only reads).
//
// Thread Safety: Safe for concurrent use.
type SnapshotProvider struct {
	lister    CompanyLister
	store     SnapshotStore // nil disables persistence
	freshness time.Duration
	logger    *slog.Logger

	sf singleflight.Group

	mu        sync.RWMutex
	cached    []Company
	fetchedAt time.Time
}

// NewSnapshotProvider creates a SnapshotProvider.
//
// Inputs:
//
//	lister - The entity store client. Must not be nil.
//	store - Optional persistence. Nil runs in-memory-only.
//	freshness - Cache window. Zero uses the default (5m).
//	logger - Logger instance. May be nil.
//
// Outputs:
//
//	*SnapshotProvider - The constructed provider. Never nil.
func NewSnapshotProvider(lister CompanyLister, store SnapshotStore, freshness time.Duration, logger *slog.Logger) *SnapshotProvider {
	if lister == nil {
		panic("NewSnapshotProvider: lister must not be nil")
	}
	if freshness <= 0 {
		freshness = defaultFreshness
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SnapshotProvider{
		lister:    lister,
		store:     store,
		freshness: freshness,
		logger:    logger,
	}
}

// Companies returns the current known-company snapshot.
//
// Description:
//
//	Never returns an error: every failure mode degrades to the best
//	available snapshot, down to an empty one. Concurrent callers during
//	a refresh share one store fetch.
//
// Inputs:
//
//	ctx - Context for cancellation of the underlying fetch.
//
// Outputs:
//
//	[]Company - The snapshot. Possibly empty, never nil-unsafe to range.
//
// Thread Safety: Safe for concurrent use.
func (p *SnapshotProvider) Companies(ctx context.Context) []Company {
	p.mu.RLock()
	if p.cached != nil && time.Since(p.fetchedAt) < p.freshness {
		companies := p.cached
		p.mu.RUnlock()
		snapshotRefreshTotal.WithLabelValues("fresh_cache").Inc()
		return companies
	}
	p.mu.RUnlock()

	v, _, _ := p.sf.Do("refresh", func() (any, error) {
		return p.refresh(ctx), nil
	})
	companies, _ := v.([]Company)
	return companies
}

// Invalidate drops the in-memory snapshot so the next call re-fetches.
//
// Thread Safety: Safe for concurrent use.
func (p *SnapshotProvider) Invalidate() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cached = nil
	p.fetchedAt = time.Time{}
}

// refresh fetches from the store and falls back through the degradation
// chain on failure. Always returns a usable (possibly empty) snapshot.
func (p *SnapshotProvider) refresh(ctx context.Context) []Company {
	companies, err := p.lister.ListKnownCompanies(ctx)
	if err == nil {
		p.mu.Lock()
		p.cached = companies
		p.fetchedAt = time.Now()
		p.mu.Unlock()

		if p.store != nil {
			if saveErr := p.store.Save(ctx, companies); saveErr != nil {
				p.logger.Warn("entity snapshot persist failed",
					slog.String("error", saveErr.Error()),
				)
			}
		}
		snapshotRefreshTotal.WithLabelValues("fetched").Inc()
		return companies
	}

	p.logger.Warn("entity store unavailable",
		slog.String("error", err.Error()),
	)

	// Stale in-memory snapshot beats nothing.
	p.mu.RLock()
	stale := p.cached
	p.mu.RUnlock()
	if stale != nil {
		snapshotRefreshTotal.WithLabelValues("stale_fallback").Inc()
		return stale
	}

	// Persisted snapshot from a previous process.
	if p.store != nil {
		persisted, loadErr := p.store.Load(ctx)
		if loadErr != nil {
			p.logger.Warn("entity snapshot load failed",
				slog.String("error", loadErr.Error()),
			)
		} else if persisted != nil {
			p.mu.Lock()
			p.cached = persisted
			p.fetchedAt = time.Now() // avoid hammering a down store
			p.mu.Unlock()
			snapshotRefreshTotal.WithLabelValues("persisted_fallback").Inc()
			return persisted
		}
	}

	snapshotRefreshTotal.WithLabelValues("empty").Inc()
	return nil
}
