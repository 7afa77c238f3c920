package service

import (
	"context"
	"sync"
	"time"

	"pickup-market/internal/common/contextx"
	"pickup-market/internal/general/logger"
	"pickup-market/internal/ports"
)

// ListRefresher re-reads the contact list on a schedule so the seller sees new
// requests and counterparty moves without asking.
type ListRefresher struct {
	svc    ports.ReservationService
	logger *logger.Logger

	mu        sync.RWMutex
	views     []ports.ContactView
	refreshed time.Time
	ok        bool
	gen       uint64 // bumped by Invalidate; a Refresh that started earlier is discarded
}

// NewListRefresher wraps svc.
func NewListRefresher(svc ports.ReservationService, logger *logger.Logger) *ListRefresher {
	return &ListRefresher{svc: svc, logger: logger}
}

// Refresh is the scheduler task. A failed read keeps the previous snapshot.
func (r *ListRefresher) Refresh(ctx context.Context) error {
	ctx = contextx.WithNewRequestID(ctx)

	r.mu.RLock()
	gen := r.gen
	r.mu.RUnlock()

	views, err := r.svc.List(ctx)
	if err != nil {
		return err
	}

	r.mu.Lock()
	if gen != r.gen {
		r.mu.Unlock()
		r.logger.Debug(ctx, "contacts_refresh_discarded", "Contact list changed during refresh, result dropped", nil)
		return nil
	}
	changed := !r.ok || len(views) != len(r.views)
	r.views = views
	r.refreshed = time.Now().UTC()
	r.ok = true
	r.mu.Unlock()

	if changed {
		r.logger.Debug(ctx, "contacts_refreshed", "Contact list refreshed", map[string]any{"count": len(views)})
	}
	return nil
}

// Snapshot returns the last successful read.
func (r *ListRefresher) Snapshot() ([]ports.ContactView, time.Time, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ports.ContactView, len(r.views))
	copy(out, r.views)
	return out, r.refreshed, r.ok
}

// Invalidate drops the snapshot so the next read goes to the server. A refresh already
// in flight will not repopulate it.
func (r *ListRefresher) Invalidate() {
	r.mu.Lock()
	r.views = nil
	r.ok = false
	r.gen++
	r.mu.Unlock()
}
