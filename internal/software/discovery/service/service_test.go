package service

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"pickup-market/internal/domain/geo"
	"pickup-market/internal/domain/posting"
	"pickup-market/internal/general/logger"
	"pickup-market/internal/ports"
)

type fakePostings struct {
	items, trash []posting.Posting
	err          error
	near         *geo.Point
}

func (f *fakePostings) NearbyItems(_ context.Context, near *geo.Point) ([]posting.Posting, error) {
	f.near = near
	return f.items, f.err
}

func (f *fakePostings) TrashPostings(context.Context) ([]posting.Posting, error) {
	return f.trash, f.err
}

type fakeLocation struct {
	pos *geo.Position
}

func (f fakeLocation) Status() ports.LocationStatus { return ports.LocationStatus{} }
func (f fakeLocation) Retry(context.Context) (ports.LocationStatus, error) { return ports.LocationStatus{}, nil }
func (f fakeLocation) ProceedWithout() ports.LocationStatus { return ports.LocationStatus{} }
func (f fakeLocation) Latest() (geo.Position, bool) {
	if f.pos == nil {
		return geo.Position{}, false
	}
	return *f.pos, true
}

type fakeCart struct{ ids []int64 }

func (f fakeCart) Add(context.Context, int64) error { return nil }
func (f fakeCart) Remove(context.Context, int64) error { return nil }
func (f fakeCart) Contains(context.Context, int64) (bool, error) { return false, nil }
func (f fakeCart) List(context.Context) ([]int64, error) { return f.ids, nil }
func (f fakeCart) Clear(context.Context) error { return nil }

// kmNorth is roughly one kilometer of latitude.
const kmNorth = 1 / 111.195

func at(id int64, kind posting.Kind, lat, lng float64) posting.Posting {
	return posting.Posting{
		ID:       id,
		Kind:     kind,
		SellerID: "seller",
		Status:   posting.StatusWaiting,
		Address:  posting.AddressSnapshot{Lat: &lat, Lng: &lng},
	}
}

func newService(src *fakePostings, pos *geo.Position, cart ports.CartService) ports.DiscoveryService {
	return NewDiscoveryService(logger.NewWithWriter("test", io.Discard), src, fakeLocation{pos: pos}, cart, DefaultPolicies())
}

func TestTrashWithinRadiusNearestFirst(t *testing.T) {
	src := &fakePostings{trash: []posting.Posting{
		at(3, posting.KindTrash, 13.70+12*kmNorth, 100.50),
		at(1, posting.KindTrash, 13.70+1*kmNorth, 100.50),
		at(2, posting.KindTrash, 13.70+4*kmNorth, 100.50),
	}}
	driver := &geo.Position{Lat: 13.70, Lng: 100.50, CapturedAt: time.Now()}

	res, err := newService(src, driver, fakeCart{ids: []int64{2}}).Trash(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Postings) != 2 || res.Postings[0].Posting.ID != 1 || res.Postings[1].Posting.ID != 2 {
		t.Fatalf("postings = %+v", res.Postings)
	}
	if res.Postings[0].DistanceKM == nil || *res.Postings[0].DistanceKM > 1.01 {
		t.Fatalf("distance = %v", res.Postings[0].DistanceKM)
	}
	if len(res.InCart) != 1 || res.InCart[0] != 2 {
		t.Fatalf("in cart = %v", res.InCart)
	}
}

func TestTrashWithoutPositionIsEmpty(t *testing.T) {
	src := &fakePostings{trash: []posting.Posting{at(1, posting.KindTrash, 13.7, 100.5)}}
	res, err := newService(src, nil, nil).Trash(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Postings) != 0 || res.Observer != nil {
		t.Fatalf("res = %+v", res)
	}
}

func TestItemsLimitAndUnknownDistanceLast(t *testing.T) {
	var items []posting.Posting
	noCoords := posting.Posting{ID: 999, Kind: posting.KindItem, SellerID: "s", Status: posting.StatusWaiting}
	items = append(items, noCoords)
	for i := 0; i < 25; i++ {
		items = append(items, at(int64(i+1), posting.KindItem, 13.70+float64(25-i)*kmNorth, 100.50))
	}
	src := &fakePostings{items: items}
	driver := &geo.Position{Lat: 13.70, Lng: 100.50}

	res, err := newService(src, driver, nil).Items(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Postings) != 20 {
		t.Fatalf("got %d postings, want 20", len(res.Postings))
	}
	if res.Postings[0].Posting.ID != 25 {
		t.Fatalf("nearest = %d", res.Postings[0].Posting.ID)
	}
	for _, p := range res.Postings {
		if p.Posting.ID == 999 {
			t.Fatal("posting without coordinates ranked inside the limit")
		}
	}
	if src.near == nil || src.near.Lat != 13.70 {
		t.Fatalf("near hint = %v", src.near)
	}
}

func TestItemsWithoutPositionKeepOrderWithNilDistance(t *testing.T) {
	src := &fakePostings{items: []posting.Posting{
		at(1, posting.KindItem, 13.8, 100.5),
		at(2, posting.KindItem, 13.7, 100.5),
	}}
	res, err := newService(src, nil, nil).Items(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Postings) != 2 || res.Postings[0].Posting.ID != 1 || res.Postings[0].DistanceKM != nil {
		t.Fatalf("res = %+v", res.Postings)
	}
	if src.near != nil {
		t.Fatal("near hint sent without a position")
	}
}

func TestClosedPostingsAreHidden(t *testing.T) {
	taken := at(2, posting.KindItem, 13.7, 100.5)
	taken.Status = posting.StatusPending
	src := &fakePostings{items: []posting.Posting{at(1, posting.KindItem, 13.7, 100.5), taken}}

	res, _ := newService(src, nil, nil).Items(context.Background())
	if len(res.Postings) != 1 || res.Postings[0].Posting.ID != 1 {
		t.Fatalf("res = %+v", res.Postings)
	}
}

func TestFetchFailureSurfaces(t *testing.T) {
	boom := errors.New("backend down")
	_, err := newService(&fakePostings{err: boom}, nil, nil).Trash(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
}
