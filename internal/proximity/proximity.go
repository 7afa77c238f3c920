// Package proximity ranks postings by great-circle distance from an observer.
// Everything here is pure: no I/O, no shared state, inputs are never mutated.
package proximity

import (
	"math"
	"slices"

	"pickup-market/internal/domain/geo"
	"pickup-market/internal/domain/posting"
)

const earthRadiusKM = 6371.0

// HaversineKM returns the great-circle distance between a and b in kilometers.
func HaversineKM(a, b geo.Point) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)

	// rounding can push h slightly outside [0,1] near the poles and antipodes
	h = math.Min(1, math.Max(0, h))

	return 2 * earthRadiusKM * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// Ranked is a posting with its distance from the observer attached.
// DistanceKM is +Inf when either side had no usable coordinates.
type Ranked struct {
	Posting    posting.Posting
	DistanceKM float64
}

// Reachable reports whether the distance is finite.
func (ranked Ranked) Reachable() bool {
	return !math.IsInf(ranked.DistanceKM, 1)
}

// Policy constrains a ranking after the sort. Zero values mean "no constraint".
type Policy struct {
	RadiusKM float64 // drop anything farther than this (inclusive boundary) and anything unreachable
	Limit    int     // keep only the closest N
}

// RankByDistance attaches distances and sorts ascending. The sort is stable, so
// equal distances (including the +Inf group) keep their input order.
func RankByDistance(observer *geo.Position, postings []posting.Posting) []Ranked {
	ranked := make([]Ranked, len(postings))
	for i, post := range postings {
		ranked[i] = Ranked{Posting: post, DistanceKM: distanceTo(observer, post)}
	}

	slices.SortStableFunc(ranked, func(a, b Ranked) int {
		switch {
		case a.DistanceKM < b.DistanceKM:
			return -1
		case a.DistanceKM > b.DistanceKM:
			return 1
		default:
			return 0
		}
	})
	return ranked
}

// FilterWithinRadius keeps postings at most radiusKM away.
func FilterWithinRadius(ranked []Ranked, radiusKM float64) []Ranked {
	out := make([]Ranked, 0, len(ranked))
	for _, r := range ranked {
		if r.Reachable() && r.DistanceKM <= radiusKM {
			out = append(out, r)
		}
	}
	return out
}

// Rank is RankByDistance followed by the policy's radius and limit.
func Rank(observer *geo.Position, postings []posting.Posting, policy Policy) []Ranked {
	ranked := RankByDistance(observer, postings)
	if policy.RadiusKM > 0 {
		ranked = FilterWithinRadius(ranked, policy.RadiusKM)
	}
	if policy.Limit > 0 && len(ranked) > policy.Limit {
		ranked = ranked[:policy.Limit]
	}
	return ranked
}

// DistanceKM is the observer-to-point distance, +Inf when unknown.
func DistanceKM(observer *geo.Position, point geo.Point) float64 {
	if observer == nil || !observer.Point().Valid() || !point.Valid() {
		return math.Inf(1)
	}
	return HaversineKM(observer.Point(), point)
}

func distanceTo(observer *geo.Position, post posting.Posting) float64 {
	point, ok := post.Address.Point()
	if !ok {
		return math.Inf(1)
	}
	return DistanceKM(observer, point)
}
