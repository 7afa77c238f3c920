package service

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"pickup-market/internal/common/contextx"
	"pickup-market/internal/domain/contact"
	"pickup-market/internal/domain/geo"
	"pickup-market/internal/general/logger"
	"pickup-market/internal/ports"
	"pickup-market/internal/proximity"
)

// DefaultMaxFeedAge is how old a fanout reading may be before the backend is asked instead.
const DefaultMaxFeedAge = 2 * time.Minute

type liveLocationService struct {
	logger     *logger.Logger
	contacts   ports.ContactAPI
	reader     ports.DriverLocationReader
	feed       *Feed
	maxFeedAge time.Duration
	now        func() time.Time
}

// NewLiveLocationService wires the seller's view of a committed driver. feed may be nil.
func NewLiveLocationService(
	logger *logger.Logger,
	contacts ports.ContactAPI,
	reader ports.DriverLocationReader,
	feed *Feed,
	maxFeedAge time.Duration,
) ports.LiveLocationService {
	if maxFeedAge <= 0 {
		maxFeedAge = DefaultMaxFeedAge
	}
	return &liveLocationService{
		logger:     logger,
		contacts:   contacts,
		reader:     reader,
		feed:       feed,
		maxFeedAge: maxFeedAge,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// DriverLocation is only shared once the seller confirmed the driver and until the pickup closes.
func (s *liveLocationService) DriverLocation(ctx context.Context, contactID int64) (ports.DriverLocationView, error) {
	ctx = contextx.WithContactID(ctx, strconv.FormatInt(contactID, 10))

	c, err := s.contacts.GetContact(ctx, contactID)
	if err != nil {
		return ports.DriverLocationView{}, fmt.Errorf("get contact %d: %w", contactID, err)
	}
	if c.Status != contact.StatusConfirmed && c.Status != contact.StatusWaitComplete {
		return ports.DriverLocationView{}, fmt.Errorf("%w: driver location is not shared while contact is %s",
			contact.ErrConflictingState, c.Status)
	}

	view := ports.DriverLocationView{ContactID: c.ID, DriverID: c.DriverID}

	pos, live := s.fromFeed(c.DriverID)
	if !live {
		pos, err = s.reader.DriverLocation(ctx, c.DriverID)
		if err != nil {
			s.logger.Error(ctx, "driver_location_read_failed", "Failed to read driver location", err, map[string]any{
				"driver_id": c.DriverID,
			})
			return ports.DriverLocationView{}, fmt.Errorf("driver %s location: %w", c.DriverID, err)
		}
	}
	view.Position = &pos
	view.Live = live

	if c.Post != nil {
		if target, ok := c.Post.Address.Point(); ok {
			km := proximity.DistanceKM(&pos, target)
			if !math.IsInf(km, 0) {
				view.DistanceKM = &km
			}
		}
	}
	return view, nil
}

func (s *liveLocationService) fromFeed(driverID string) (geo.Position, bool) {
	if s.feed == nil {
		return geo.Position{}, false
	}
	pos, ok := s.feed.Latest(driverID)
	if !ok || s.now().Sub(pos.CapturedAt) > s.maxFeedAge {
		return geo.Position{}, false
	}
	return pos, true
}
