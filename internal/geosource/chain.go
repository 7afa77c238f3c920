package geosource

import (
	"context"
	"errors"
	"sync"
	"time"

	"pickup-market/internal/domain/geo"
	"pickup-market/internal/general/logger"
	"pickup-market/internal/general/metrics"
)

// Chain tries its backends in order. Callers only learn which one answered through
// Position.Source.
type Chain struct {
	backends []Backend
	logger   *logger.Logger

	mu      sync.Mutex
	lastFix *geo.Position
}

// NewChain builds a chain. Nil backends are dropped.
func NewChain(log *logger.Logger, backends ...Backend) *Chain {
	c := &Chain{logger: log}
	for _, b := range backends {
		if b != nil {
			c.backends = append(c.backends, b)
		}
	}
	return c
}

// Backends returns the names of the configured backends in order.
func (c *Chain) Backends() []string {
	out := make([]string, 0, len(c.backends))
	for _, b := range c.backends {
		out = append(out, b.Name())
	}
	return out
}

// CurrentPosition returns the first successful reading. When every backend fails the
// last backend's error is returned; when none is available, geo.ErrPositionUnavailable.
func (c *Chain) CurrentPosition(ctx context.Context, opts Options) (geo.Position, error) {
	opts = opts.withDefaults()

	if cached, ok := c.cached(opts.MaximumAge); ok {
		return cached, nil
	}

	var lastErr error
	for _, b := range c.backends {
		if !b.Available() {
			continue
		}

		readCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
		pos, err := b.CurrentPosition(readCtx, opts)
		cancel()

		if err == nil {
			err = pos.Validate()
		}
		if err != nil {
			lastErr = geo.Normalize(err)
			metrics.GeoReads.WithLabelValues(b.Name(), metrics.OutcomeFailed).Inc()
			c.log(ctx, "geo_backend_failed", "Location backend failed, trying next", lastErr, b.Name())
			if ctx.Err() != nil {
				break
			}
			continue
		}

		pos.Source = b.Name()
		metrics.GeoReads.WithLabelValues(b.Name(), metrics.OutcomeOK).Inc()
		c.remember(pos)
		return pos, nil
	}

	if lastErr == nil {
		return geo.Position{}, geo.ErrPositionUnavailable
	}
	return geo.Position{}, lastErr
}

func (c *Chain) cached(maxAge time.Duration) (geo.Position, bool) {
	if maxAge <= 0 {
		return geo.Position{}, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lastFix == nil || time.Since(c.lastFix.CapturedAt) > maxAge {
		return geo.Position{}, false
	}
	return *c.lastFix, true
}

func (c *Chain) remember(pos geo.Position) {
	c.mu.Lock()
	if c.lastFix == nil || pos.NewerThan(*c.lastFix) {
		p := pos
		c.lastFix = &p
	}
	c.mu.Unlock()
}

// Watch opens a watch on the first backend that accepts one. A watchdog fails over to
// the next backend when no update arrives within TickTimeout or the active backend
// reports an error. When the last backend fails, onError is called exactly once.
func (c *Chain) Watch(ctx context.Context, opts Options, onUpdate func(geo.Position), onError func(error)) (Subscription, error) {
	w := &chainWatch{
		chain:    c,
		ctx:      context.WithoutCancel(ctx),
		opts:     opts.withDefaults(),
		onUpdate: onUpdate,
		onError:  onError,
		next:     0,
	}

	w.mu.Lock()
	err := w.startNextLocked(nil)
	w.mu.Unlock()
	if err != nil {
		return nil, err
	}

	return newSubscription(w.stop), nil
}

// chainWatch walks the backend list for one Watch call.
type chainWatch struct {
	chain    *Chain
	ctx      context.Context
	opts     Options
	onUpdate func(geo.Position)
	onError  func(error)

	mu       sync.Mutex
	next     int // index of the next backend to try
	gen      int // bumps on every failover; stale callbacks compare against it
	active   Subscription
	activeBE Backend
	watchdog *time.Timer
	done     bool
}

// startNextLocked opens a watch on the next available backend. It returns the final
// normalized error when no backend could be started.
func (w *chainWatch) startNextLocked(lastErr error) error {
	for w.next < len(w.chain.backends) {
		b := w.chain.backends[w.next]
		w.next++
		if !b.Available() {
			continue
		}

		w.gen++
		gen := w.gen
		sub, err := b.Watch(w.ctx, w.opts,
			func(pos geo.Position) { w.handleUpdate(gen, b, pos) },
			func(err error) { w.handleError(gen, b, err) },
		)
		if err != nil {
			lastErr = geo.Normalize(err)
			metrics.GeoReads.WithLabelValues(b.Name(), metrics.OutcomeFailed).Inc()
			w.chain.log(w.ctx, "geo_watch_start_failed", "Location backend refused watch, trying next", lastErr, b.Name())
			continue
		}

		w.active = sub
		w.activeBE = b
		w.armLocked(gen)
		return nil
	}

	if lastErr == nil {
		lastErr = geo.ErrPositionUnavailable
	}
	return lastErr
}

func (w *chainWatch) armLocked(gen int) {
	if w.watchdog != nil {
		w.watchdog.Stop()
	}
	w.watchdog = time.AfterFunc(w.opts.TickTimeout, func() {
		w.handleError(gen, nil, geo.ErrTimeout)
	})
}

func (w *chainWatch) handleUpdate(gen int, b Backend, pos geo.Position) {
	if err := pos.Validate(); err != nil {
		w.handleError(gen, b, errors.Join(geo.ErrPositionUnavailable, err))
		return
	}

	w.mu.Lock()
	if w.done || gen != w.gen {
		w.mu.Unlock()
		return
	}
	w.armLocked(gen)
	w.mu.Unlock()

	pos.Source = b.Name()
	metrics.GeoReads.WithLabelValues(b.Name(), metrics.OutcomeOK).Inc()
	w.chain.remember(pos)
	w.onUpdate(pos)
}

// handleError fails over from the backend of generation gen. b is nil for watchdog expiry.
func (w *chainWatch) handleError(gen int, b Backend, err error) {
	w.mu.Lock()
	if w.done || gen != w.gen {
		w.mu.Unlock()
		return
	}

	failed := w.activeBE
	if b != nil {
		failed = b
	}
	err = geo.Normalize(err)
	metrics.GeoReads.WithLabelValues(failed.Name(), metrics.OutcomeFailed).Inc()
	w.chain.log(w.ctx, "geo_watch_failover", "Location watch failed, failing over", err, failed.Name())

	w.stopActiveLocked()
	startErr := w.startNextLocked(err)
	if startErr == nil {
		w.mu.Unlock()
		return
	}

	w.done = true
	w.mu.Unlock()

	if w.onError != nil {
		w.onError(startErr)
	}
}

func (w *chainWatch) stopActiveLocked() {
	if w.watchdog != nil {
		w.watchdog.Stop()
		w.watchdog = nil
	}
	if w.active != nil {
		// Clear may run on the backend's own goroutine; backends must tolerate that
		w.active.Clear()
		w.active = nil
	}
	w.gen++
}

func (w *chainWatch) stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.done {
		return
	}
	w.done = true
	w.stopActiveLocked()
}

func (c *Chain) log(ctx context.Context, action, msg string, err error, backend string) {
	if c.logger == nil {
		return
	}
	c.logger.Error(ctx, action, msg, err, map[string]any{"backend": backend})
}
