// Package geosource acquires device positions from an ordered list of backends with a
// single error contract: every failure is one of geo.ErrPermissionDenied,
// geo.ErrPositionUnavailable or geo.ErrTimeout.
package geosource

import (
	"context"
	"sync"
	"time"

	"pickup-market/internal/domain/geo"
)

// Options tune a single read or a watch.
type Options struct {
	HighAccuracy bool
	Timeout      time.Duration // single reads
	TickTimeout  time.Duration // max silence between watch updates before failing over
	MaximumAge   time.Duration // accept a cached fix this old for single reads
	PollInterval time.Duration // polling backends only
}

// DefaultOptions mirrors the device defaults: high accuracy, 60s single read, 15s per watch tick.
func DefaultOptions() Options {
	return Options{
		HighAccuracy: true,
		Timeout:      60 * time.Second,
		TickTimeout:  15 * time.Second,
		PollInterval: 3 * time.Second,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.Timeout <= 0 {
		o.Timeout = def.Timeout
	}
	if o.TickTimeout <= 0 {
		o.TickTimeout = def.TickTimeout
	}
	if o.PollInterval <= 0 {
		o.PollInterval = def.PollInterval
	}
	return o
}

// Subscription stops a watch. Clear is idempotent.
type Subscription interface {
	Clear()
}

// Source is what the tracker consumes.
type Source interface {
	CurrentPosition(ctx context.Context, opts Options) (geo.Position, error)
	Watch(ctx context.Context, opts Options, onUpdate func(geo.Position), onError func(error)) (Subscription, error)
}

// Backend is one way of reading the device position.
// A backend reports at most one error per watch and delivers nothing after Clear.
// Watch and Clear never invoke the callbacks synchronously, and Clear does not block
// on in-flight callbacks.
type Backend interface {
	Source
	Name() string
	Available() bool
}

// clearOnce adapts a stop func into an idempotent Subscription.
type clearOnce struct {
	once sync.Once
	stop func()
}

func newSubscription(stop func()) *clearOnce { return &clearOnce{stop: stop} }

func (s *clearOnce) Clear() { s.once.Do(s.stop) }
