// Package tracker keeps the driver's latest position and mirrors it upstream on a fixed
// period, only when a new reading has arrived since the previous flush.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"pickup-market/internal/common/contextx"
	"pickup-market/internal/domain/geo"
	"pickup-market/internal/general/logger"
	"pickup-market/internal/general/metrics"
	"pickup-market/internal/general/scheduler"
	"pickup-market/internal/geosource"
	"pickup-market/internal/ports"
)

const (
	flushTaskName        = "location_flush"
	DefaultFlushInterval = 5 * time.Second

	// a lost watch is reopened after 1, 2, 4 ... flush ticks, at most this many
	maxReopenTicks = 12
)

var (
	ErrAlreadyStarted = errors.New("tracker already started")
	ErrStopped        = errors.New("tracker stopped")
)

type lifecycle int

const (
	idle lifecycle = iota
	running
	stopped
)

// Config tunes a Tracker.
type Config struct {
	FlushInterval time.Duration
	Options       geosource.Options
}

// Tracker owns exactly one watch on a geosource.Source. Watch callbacks only touch
// in-memory state; network calls happen on the scheduler goroutine.
type Tracker struct {
	source  geosource.Source
	sched   *scheduler.Scheduler
	mirrors []ports.LocationMirror
	logger  *logger.Logger
	cfg     Config

	mu         sync.Mutex
	state      lifecycle
	latest     geo.Position
	hasLatest  bool
	dirty      bool
	sub        geosource.Subscription
	watchLost  bool
	reopenIn   int // flush ticks left before the next automatic reopen; 0 means none pending
	reopenStep int
	unregister func()
	stream     chan geo.Position

	gate        ports.GateState
	gateErr     error
	gateChanged chan struct{}
}

// New wires a tracker. Mirrors receive every flushed position in order.
func New(source geosource.Source, sched *scheduler.Scheduler, log *logger.Logger, cfg Config, mirrors ...ports.LocationMirror) *Tracker {
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = DefaultFlushInterval
	}
	return &Tracker{
		source:      source,
		sched:       sched,
		mirrors:     mirrors,
		logger:      log,
		cfg:         cfg,
		gate:        ports.GateWaiting,
		gateChanged: make(chan struct{}),
	}
}

// Start opens the watch and registers the flush task. The returned stream always holds
// the newest reading; slow readers miss intermediate ones. A watch that cannot be opened
// blocks the gate instead of failing Start.
func (t *Tracker) Start(ctx context.Context) (<-chan geo.Position, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch t.state {
	case running:
		return nil, ErrAlreadyStarted
	case stopped:
		return nil, ErrStopped
	}

	unregister, err := t.sched.Register(flushTaskName, t.cfg.FlushInterval, t.flush)
	if err != nil {
		return nil, fmt.Errorf("register flush task: %w", err)
	}
	t.unregister = unregister
	t.stream = make(chan geo.Position, 1)
	t.state = running

	t.openWatchLocked(ctx)

	t.logger.Info(ctx, "tracker_started", "Location tracking started", map[string]any{
		"flush_interval": t.cfg.FlushInterval.String(),
		"mirrors":        t.mirrorNames(),
	})
	return t.stream, nil
}

// Stop clears the watch, unregisters the flush task and closes the stream.
// Safe to call any number of times; nothing is flushed afterwards.
func (t *Tracker) Stop() {
	t.mu.Lock()
	if t.state == stopped {
		t.mu.Unlock()
		return
	}
	wasRunning := t.state == running
	t.state = stopped

	sub := t.sub
	t.sub = nil
	unregister := t.unregister
	t.unregister = nil
	if t.stream != nil {
		close(t.stream)
	}
	t.mu.Unlock()

	if sub != nil {
		sub.Clear()
	}
	if unregister != nil {
		unregister()
	}
	if wasRunning {
		t.logger.Info(context.Background(), "tracker_stopped", "Location tracking stopped", nil)
	}
}

// Latest returns the newest reading, if any.
func (t *Tracker) Latest() (geo.Position, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.latest, t.hasLatest
}

// openWatchLocked opens the single watch. Caller holds t.mu.
func (t *Tracker) openWatchLocked(ctx context.Context) {
	sub, err := t.source.Watch(ctx, t.cfg.Options, t.onUpdate, t.onError)
	if err != nil {
		t.logger.Error(ctx, "tracker_watch_failed", "Could not open location watch", err, nil)
		t.loseWatchLocked(err)
		return
	}
	t.sub = sub
	t.watchLost = false
	t.reopenIn = 0
}

// loseWatchLocked blocks the gate unless the user chose to go on without a position. The
// last reading stays readable. An automatic reopen is scheduled unless the user has to
// act first.
func (t *Tracker) loseWatchLocked(err error) {
	t.sub = nil
	t.watchLost = true
	if t.gate != ports.GateSkipped {
		t.blockLocked(err)
	}

	if errors.Is(err, geo.ErrPermissionDenied) {
		t.reopenIn = 0
		return
	}
	switch {
	case t.reopenStep == 0:
		t.reopenStep = 1
	case t.reopenStep < maxReopenTicks:
		t.reopenStep = min(t.reopenStep*2, maxReopenTicks)
	}
	t.reopenIn = t.reopenStep
}

// maintainWatch counts down and reopens a lost watch. Runs on the flush tick.
func (t *Tracker) maintainWatch(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != running || !t.watchLost || t.reopenIn == 0 {
		return
	}
	t.reopenIn--
	if t.reopenIn > 0 {
		return
	}

	t.logger.Info(ctx, "tracker_watch_reopen", "Reopening location watch", map[string]any{
		"step_ticks": t.reopenStep,
	})
	t.openWatchLocked(ctx)
}

func (t *Tracker) onUpdate(pos geo.Position) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.acceptLocked(pos)
}

// acceptLocked records pos when it is not older than the current reading.
func (t *Tracker) acceptLocked(pos geo.Position) {
	if t.state == stopped {
		return
	}
	if t.hasLatest && t.latest.NewerThan(pos) {
		return
	}

	t.latest = pos
	t.hasLatest = true
	t.dirty = true
	t.reopenStep = 0
	t.setGateLocked(ports.GateReady, nil)

	if t.stream == nil {
		return
	}
	// keep only the newest value in the buffer
	select {
	case t.stream <- pos:
	default:
		select {
		case <-t.stream:
		default:
		}
		select {
		case t.stream <- pos:
		default:
		}
	}
}

func (t *Tracker) onError(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != running {
		return
	}
	t.logger.Error(context.Background(), "tracker_watch_lost", "Location watch ended", err, map[string]any{
		"gate":       string(t.gate),
		"had_fix":    t.hasLatest,
		"retry_tick": t.reopenStep,
	})
	t.loseWatchLocked(err)
}

// flush reopens a lost watch when due, then mirrors the latest reading if a new one
// arrived since the previous flush. Failures are logged and swallowed; the next tick
// sends whatever is newest then.
func (t *Tracker) flush(ctx context.Context) error {
	t.maintainWatch(ctx)

	t.mu.Lock()
	if t.state != running || !t.dirty {
		t.mu.Unlock()
		return nil
	}
	pos := t.latest
	t.dirty = false
	t.mu.Unlock()

	ctx = contextx.WithNewRequestID(ctx)
	failed := false
	for _, m := range t.mirrors {
		err := m.PushPosition(ctx, pos)
		metrics.LocationFlushes.WithLabelValues(m.Name(), metrics.Outcome(err)).Inc()
		if err != nil {
			failed = true
			t.logger.Error(ctx, "location_flush_failed", "Failed to mirror driver position", err, map[string]any{
				"mirror": m.Name(),
			})
			continue
		}
		t.logger.Debug(ctx, "location_flushed", "Driver position mirrored", map[string]any{
			"mirror":      m.Name(),
			"captured_at": pos.CapturedAt,
		})
	}

	if failed {
		t.mu.Lock()
		if t.state == running {
			t.dirty = true
		}
		t.mu.Unlock()
	}
	return nil
}

func (t *Tracker) mirrorNames() []string {
	out := make([]string, 0, len(t.mirrors))
	for _, m := range t.mirrors {
		out = append(out, m.Name())
	}
	return out
}

// BackendMirror adapts the backend's driver-location endpoint to a LocationMirror.
func BackendMirror(w ports.DriverLocationWriter) ports.LocationMirror {
	return backendMirror{w: w}
}

type backendMirror struct{ w ports.DriverLocationWriter }

func (backendMirror) Name() string { return "backend" }

func (m backendMirror) PushPosition(ctx context.Context, pos geo.Position) error {
	return m.w.UpdateDriverLocation(ctx, pos.Point())
}
