package service

import (
	"context"
	"fmt"
	"math"

	"pickup-market/internal/domain/geo"
	"pickup-market/internal/domain/posting"
	"pickup-market/internal/general/logger"
	"pickup-market/internal/ports"
	"pickup-market/internal/proximity"
)

// Policies are the two discovery rankings. Both go through proximity.Rank.
type Policies struct {
	Items proximity.Policy
	Trash proximity.Policy
}

// DefaultPolicies: trash within 10 km, items closest 20.
func DefaultPolicies() Policies {
	return Policies{
		Items: proximity.Policy{Limit: 20},
		Trash: proximity.Policy{RadiusKM: 10},
	}
}

type discoveryService struct {
	logger   *logger.Logger
	postings ports.PostingSource
	location ports.LocationService
	cart     ports.CartService
	policies Policies
}

// NewDiscoveryService wires the discovery service. cart may be nil.
func NewDiscoveryService(
	logger *logger.Logger,
	postings ports.PostingSource,
	location ports.LocationService,
	cart ports.CartService,
	policies Policies,
) ports.DiscoveryService {
	return &discoveryService{
		logger:   logger,
		postings: postings,
		location: location,
		cart:     cart,
		policies: policies,
	}
}

// Items lists item-sale postings, closest first.
func (s *discoveryService) Items(ctx context.Context) (ports.DiscoveryResult, error) {
	observer := s.observer()

	var near *geo.Point
	if observer != nil {
		p := observer.Point()
		near = &p
	}

	postings, err := s.postings.NearbyItems(ctx, near)
	if err != nil {
		s.logger.Error(ctx, "discovery_items_failed", "Failed to fetch item postings", err, nil)
		return ports.DiscoveryResult{}, fmt.Errorf("fetch item postings: %w", err)
	}
	return s.build(ctx, observer, postings, s.policies.Items)
}

// Trash lists trash postings within the configured radius, closest first.
// Without a position nothing is provably within the radius, so the list is empty.
func (s *discoveryService) Trash(ctx context.Context) (ports.DiscoveryResult, error) {
	postings, err := s.postings.TrashPostings(ctx)
	if err != nil {
		s.logger.Error(ctx, "discovery_trash_failed", "Failed to fetch trash postings", err, nil)
		return ports.DiscoveryResult{}, fmt.Errorf("fetch trash postings: %w", err)
	}
	return s.build(ctx, s.observer(), postings, s.policies.Trash)
}

func (s *discoveryService) observer() *geo.Position {
	if s.location == nil {
		return nil
	}
	pos, ok := s.location.Latest()
	if !ok {
		return nil
	}
	return &pos
}

func (s *discoveryService) build(ctx context.Context, observer *geo.Position, postings []posting.Posting, policy proximity.Policy) (ports.DiscoveryResult, error) {
	// closed postings are never offered
	open := make([]posting.Posting, 0, len(postings))
	for _, post := range postings {
		if post.Status == posting.StatusWaiting {
			open = append(open, post)
		}
	}

	ranked := proximity.Rank(observer, open, policy)

	out := ports.DiscoveryResult{
		Observer: observer,
		Postings: make([]ports.RankedPosting, 0, len(ranked)),
		InCart:   []int64{},
	}
	for _, r := range ranked {
		out.Postings = append(out.Postings, ports.RankedPosting{
			Posting:    r.Posting,
			DistanceKM: finite(r.DistanceKM),
		})
	}

	if s.cart != nil {
		ids, err := s.cart.List(ctx)
		if err != nil {
			// the listing is still useful without cart markers
			s.logger.Error(ctx, "discovery_cart_read_failed", "Failed to read cart", err, nil)
		} else {
			out.InCart = ids
		}
	}

	s.logger.Debug(ctx, "discovery_ranked", "Postings ranked", map[string]any{
		"fetched":      len(postings),
		"returned":     len(out.Postings),
		"has_observer": observer != nil,
	})
	return out, nil
}

// finite turns +Inf into nil so the value survives JSON encoding.
func finite(km float64) *float64 {
	if math.IsInf(km, 0) || math.IsNaN(km) {
		return nil
	}
	return &km
}
