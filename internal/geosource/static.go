package geosource

import (
	"context"
	"time"

	"pickup-market/internal/domain/geo"
)

// Static reports a fixed position. Used for development and kiosk installs.
type Static struct {
	point *geo.Point
	now   func() time.Time
}

// NewStatic returns a static backend; a nil point makes it unavailable.
func NewStatic(point *geo.Point) *Static {
	return &Static{point: point, now: time.Now}
}

func (s *Static) Name() string { return "static" }

func (s *Static) Available() bool { return s.point != nil && s.point.Valid() }

func (s *Static) CurrentPosition(ctx context.Context, _ Options) (geo.Position, error) {
	if !s.Available() {
		return geo.Position{}, geo.ErrPositionUnavailable
	}
	if err := ctx.Err(); err != nil {
		return geo.Position{}, err
	}
	return s.reading(), nil
}

// Watch re-emits the fixed point every PollInterval so the chain watchdog stays quiet.
func (s *Static) Watch(ctx context.Context, opts Options, onUpdate func(geo.Position), _ func(error)) (Subscription, error) {
	if !s.Available() {
		return nil, geo.ErrPositionUnavailable
	}
	opts = opts.withDefaults()

	stop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(opts.PollInterval)
		defer ticker.Stop()

		onUpdate(s.reading())
		for {
			select {
			case <-stop:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				select {
				case <-stop:
					return
				default:
				}
				onUpdate(s.reading())
			}
		}
	}()

	return newSubscription(func() { close(stop) }), nil
}

func (s *Static) reading() geo.Position {
	return geo.Position{Lat: s.point.Lat, Lng: s.point.Lng, CapturedAt: s.now().UTC()}
}
