package service

import (
	"context"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"pickup-market/internal/domain/geo"
	"pickup-market/internal/general/logger"
	"pickup-market/internal/general/rabbitmq"
)

// Feed keeps the newest fanout position per driver.
type Feed struct {
	logger *logger.Logger

	mu     sync.RWMutex
	latest map[string]geo.Position
}

// NewFeed returns an empty feed.
func NewFeed(logger *logger.Logger) *Feed {
	return &Feed{logger: logger, latest: make(map[string]geo.Position)}
}

// Apply records pos for driverID unless an equal or newer reading is already held.
func (f *Feed) Apply(driverID string, pos geo.Position) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if cur, ok := f.latest[driverID]; ok && !pos.NewerThan(cur) {
		return false
	}
	f.latest[driverID] = pos
	return true
}

// Latest returns the newest position held for driverID.
func (f *Feed) Latest(driverID string) (geo.Position, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	pos, ok := f.latest[driverID]
	return pos, ok
}

// HandleDelivery is the fanout consumer callback. Malformed messages are dropped.
func (f *Feed) HandleDelivery(ctx context.Context, d amqp.Delivery) error {
	msg, err := rabbitmq.DecodeLocationUpdate(d.Body)
	if err != nil {
		f.logger.Error(ctx, "location_update_invalid", "Dropping malformed location update", err, nil)
		return err
	}

	pos := geo.Position{
		Lat:        msg.Location.Lat,
		Lng:        msg.Location.Lng,
		Accuracy:   msg.AccuracyM,
		CapturedAt: msg.CapturedAt,
		Source:     "fanout",
	}
	if pos.CapturedAt.IsZero() {
		pos.CapturedAt = msg.SentAt
	}
	if pos.CapturedAt.IsZero() {
		pos.CapturedAt = time.Now().UTC()
	}

	if f.Apply(msg.DriverID, pos) {
		f.logger.Debug(ctx, "location_update_received", "Driver position received from fanout", map[string]any{
			"driver_id":   msg.DriverID,
			"captured_at": pos.CapturedAt,
		})
	}
	return nil
}
