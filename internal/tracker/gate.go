package tracker

import (
	"context"
	"errors"

	"pickup-market/internal/domain/geo"
	"pickup-market/internal/ports"
)

// Status reports the gate together with the latest reading.
func (t *Tracker) Status() ports.LocationStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.statusLocked()
}

// Gate returns the current gate state and, when blocked, the error behind it.
func (t *Tracker) Gate() (ports.GateState, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.gate, t.gateErr
}

// Retry makes one explicit read and reopens the watch if it was lost.
func (t *Tracker) Retry(ctx context.Context) (ports.LocationStatus, error) {
	t.mu.Lock()
	if t.state == stopped {
		t.mu.Unlock()
		return ports.LocationStatus{}, ErrStopped
	}
	t.mu.Unlock()

	pos, err := t.source.CurrentPosition(ctx, t.cfg.Options)

	t.mu.Lock()
	defer t.mu.Unlock()
	if err != nil {
		err = geo.Normalize(err)
		t.blockLocked(err)
		t.logger.Error(ctx, "location_retry_failed", "Explicit location read failed", err, nil)
		return t.statusLocked(), err
	}

	t.acceptLocked(pos)
	if t.state == running && t.watchLost {
		t.openWatchLocked(ctx)
	}
	return t.statusLocked(), nil
}

// ProceedWithout lets the user continue without a live position. No-op while ready.
func (t *Tracker) ProceedWithout() ports.LocationStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.gate != ports.GateReady {
		t.setGateLocked(ports.GateSkipped, nil)
	}
	return t.statusLocked()
}

// AwaitFirstFix blocks until the gate leaves waiting or ctx ends.
func (t *Tracker) AwaitFirstFix(ctx context.Context) (ports.LocationStatus, error) {
	for {
		t.mu.Lock()
		if t.gate != ports.GateWaiting {
			st := t.statusLocked()
			t.mu.Unlock()
			return st, nil
		}
		changed := t.gateChanged
		t.mu.Unlock()

		select {
		case <-ctx.Done():
			return t.Status(), ctx.Err()
		case <-changed:
		}
	}
}

func (t *Tracker) blockLocked(err error) {
	if !geo.UserActionable(err) {
		err = errors.Join(geo.ErrPositionUnavailable, err)
	}
	t.setGateLocked(ports.GateBlocked, err)
}

func (t *Tracker) setGateLocked(state ports.GateState, err error) {
	if t.gate == state && errors.Is(t.gateErr, err) {
		return
	}
	t.gate = state
	t.gateErr = err
	close(t.gateChanged)
	t.gateChanged = make(chan struct{})
}

func (t *Tracker) statusLocked() ports.LocationStatus {
	st := ports.LocationStatus{Gate: t.gate, WatchLost: t.watchLost}
	if t.gateErr != nil {
		st.Error = t.gateErr.Error()
	}
	if t.hasLatest {
		pos := t.latest
		st.Position = &pos
	}
	return st
}
