package proximity

import (
	"math"
	"testing"
	"time"

	"pickup-market/internal/domain/geo"
	"pickup-market/internal/domain/posting"
)

func at(lat, lng float64) posting.AddressSnapshot {
	return posting.AddressSnapshot{Lat: &lat, Lng: &lng, FormattedAddress: "somewhere"}
}

// offsetNorth returns a latitude d kilometers north of lat along a meridian.
func offsetNorth(lat, d float64) float64 {
	return lat + d/earthRadiusKM*180/math.Pi
}

func TestHaversineZeroAndSymmetry(t *testing.T) {
	points := []geo.Point{
		{Lat: 13.70, Lng: 100.50},
		{Lat: 90, Lng: 0},
		{Lat: -90, Lng: 180},
		{Lat: 0, Lng: -180},
		{Lat: 51.5, Lng: -0.12},
	}
	for _, a := range points {
		if d := HaversineKM(a, a); d != 0 {
			t.Errorf("HaversineKM(%v,%v) = %v, want 0", a, a, d)
		}
		for _, b := range points {
			ab, ba := HaversineKM(a, b), HaversineKM(b, a)
			if math.IsNaN(ab) || math.Abs(ab-ba) > 1e-9 {
				t.Errorf("asymmetric or NaN: %v->%v=%v, %v->%v=%v", a, b, ab, b, a, ba)
			}
		}
	}
}

func TestHaversineAntipodalAndPoles(t *testing.T) {
	half := math.Pi * earthRadiusKM
	cases := [][2]geo.Point{
		{{Lat: 0, Lng: 0}, {Lat: 0, Lng: 180}},
		{{Lat: 90, Lng: 0}, {Lat: -90, Lng: 0}},
		{{Lat: 13.7, Lng: 100.5}, {Lat: -13.7, Lng: -79.5}},
	}
	for _, c := range cases {
		d := HaversineKM(c[0], c[1])
		if math.IsNaN(d) || math.Abs(d-half) > 1 {
			t.Errorf("antipodal %v %v: got %v, want ~%v", c[0], c[1], d, half)
		}
	}
	if d := HaversineKM(geo.Point{Lat: 90, Lng: 10}, geo.Point{Lat: 90, Lng: -170}); math.IsNaN(d) || d > 1e-6 {
		t.Errorf("same pole different longitudes: got %v", d)
	}
}

func TestRankByDistanceIsStable(t *testing.T) {
	obs := &geo.Position{Lat: 0, Lng: 0, CapturedAt: time.Now()}
	p1 := posting.Posting{ID: 1, Address: at(offsetNorth(0, 5), 0)}
	p2 := posting.Posting{ID: 2, Address: at(offsetNorth(0, 5), 0)}
	p3 := posting.Posting{ID: 3, Address: at(offsetNorth(0, 3), 0)}

	ranked := RankByDistance(obs, []posting.Posting{p1, p2, p3})
	got := []int64{ranked[0].Posting.ID, ranked[1].Posting.ID, ranked[2].Posting.ID}
	want := []int64{3, 1, 2}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}

func TestInvalidCoordinatesSortLast(t *testing.T) {
	obs := &geo.Position{Lat: 13.70, Lng: 100.50, CapturedAt: time.Now()}
	var in []posting.Posting
	// many unreachable postings first, then a far but valid one
	for i := int64(1); i <= 5; i++ {
		in = append(in, posting.Posting{ID: i})
	}
	lat := math.NaN()
	in = append(in, posting.Posting{ID: 6, Address: posting.AddressSnapshot{Lat: &lat, Lng: &lat}})
	in = append(in, posting.Posting{ID: 7, Address: at(-33.86, 151.2)})

	ranked := RankByDistance(obs, in)
	if ranked[0].Posting.ID != 7 || !ranked[0].Reachable() {
		t.Fatalf("valid posting should be first, got %d", ranked[0].Posting.ID)
	}
	for i, r := range ranked[1:] {
		if r.Reachable() {
			t.Fatalf("posting %d should be unreachable", r.Posting.ID)
		}
		if r.Posting.ID != int64(i+1) {
			t.Fatalf("unreachable group lost input order at %d: got %d", i, r.Posting.ID)
		}
	}
}

func TestNilObserverKeepsInputOrder(t *testing.T) {
	in := []posting.Posting{{ID: 3, Address: at(1, 1)}, {ID: 1, Address: at(2, 2)}, {ID: 2}}
	ranked := RankByDistance(nil, in)
	for i, r := range ranked {
		if r.Posting.ID != in[i].ID || r.Reachable() {
			t.Fatalf("index %d: got %d reachable=%v", i, r.Posting.ID, r.Reachable())
		}
	}
}

func TestRankDoesNotMutateInput(t *testing.T) {
	obs := &geo.Position{Lat: 0, Lng: 0, CapturedAt: time.Now()}
	in := []posting.Posting{{ID: 1, Address: at(offsetNorth(0, 9), 0)}, {ID: 2, Address: at(offsetNorth(0, 1), 0)}}
	_ = Rank(obs, in, Policy{Limit: 1})
	if in[0].ID != 1 || in[1].ID != 2 {
		t.Fatalf("input reordered: %+v", in)
	}
}

func TestFilterWithinRadiusBoundary(t *testing.T) {
	ranked := []Ranked{
		{Posting: posting.Posting{ID: 1}, DistanceKM: 9.99},
		{Posting: posting.Posting{ID: 2}, DistanceKM: 10},
		{Posting: posting.Posting{ID: 3}, DistanceKM: 10.0001},
		{Posting: posting.Posting{ID: 4}, DistanceKM: math.Inf(1)},
	}
	out := FilterWithinRadius(ranked, 10)
	if len(out) != 2 || out[0].Posting.ID != 1 || out[1].Posting.ID != 2 {
		t.Fatalf("unexpected filter result: %+v", out)
	}
}

func TestTrashDiscoveryScenario(t *testing.T) {
	driver := &geo.Position{Lat: 13.70, Lng: 100.50, CapturedAt: time.Now()}
	far := posting.Posting{ID: 30, Kind: posting.KindTrash, Address: at(offsetNorth(13.70, 12), 100.50)}
	near := posting.Posting{ID: 10, Kind: posting.KindTrash, Address: at(offsetNorth(13.70, 1), 100.50)}
	mid := posting.Posting{ID: 20, Kind: posting.KindTrash, Address: at(offsetNorth(13.70, 4), 100.50)}

	out := Rank(driver, []posting.Posting{far, mid, near}, Policy{RadiusKM: 10})
	if len(out) != 2 {
		t.Fatalf("expected 2 postings within 10 km, got %d", len(out))
	}
	if out[0].Posting.ID != 10 || out[1].Posting.ID != 20 {
		t.Fatalf("expected nearest first [10 20], got [%d %d]", out[0].Posting.ID, out[1].Posting.ID)
	}
	if math.Abs(out[0].DistanceKM-1) > 0.01 || math.Abs(out[1].DistanceKM-4) > 0.01 {
		t.Fatalf("unexpected distances %.3f %.3f", out[0].DistanceKM, out[1].DistanceKM)
	}
}

func TestItemPolicyTakesClosestN(t *testing.T) {
	obs := &geo.Position{Lat: 0, Lng: 0, CapturedAt: time.Now()}
	var in []posting.Posting
	for i := 25; i >= 1; i-- {
		in = append(in, posting.Posting{ID: int64(i), Address: at(offsetNorth(0, float64(i)*50), 0)})
	}
	out := Rank(obs, in, Policy{Limit: 20})
	if len(out) != 20 {
		t.Fatalf("expected 20, got %d", len(out))
	}
	if out[0].Posting.ID != 1 || out[19].Posting.ID != 20 {
		t.Fatalf("expected closest 20, got first=%d last=%d", out[0].Posting.ID, out[19].Posting.ID)
	}
}
