package ports

import (
	"context"
	"time"

	"pickup-market/internal/domain/contact"
	"pickup-market/internal/domain/geo"
	"pickup-market/internal/domain/posting"
)

// ----- Location gate -----

// GateState is the position gate shown before position-dependent screens.
type GateState string

const (
	GateWaiting GateState = "waiting"
	GateReady   GateState = "ready"
	GateBlocked GateState = "blocked"
	GateSkipped GateState = "skipped"
)

// LocationStatus is the response DTO for GET /v1/location.
type LocationStatus struct {
	Gate      GateState     `json:"gate"`
	Error     string        `json:"error,omitempty"`
	WatchLost bool          `json:"watch_lost"`
	Position  *geo.Position `json:"position,omitempty"` // last reading, possibly stale when watch_lost
}

// LocationService is the part of the tracker the local API drives.
type LocationService interface {
	Status() LocationStatus
	Retry(ctx context.Context) (LocationStatus, error)
	ProceedWithout() LocationStatus
	Latest() (geo.Position, bool)
}

// ----- Discovery -----

// RankedPosting is a posting annotated with its distance from the driver.
// DistanceKM is nil when either side has no usable coordinates.
type RankedPosting struct {
	Posting    posting.Posting `json:"posting"`
	DistanceKM *float64        `json:"distance_km"`
}

// DiscoveryResult is the response DTO for the discovery endpoints.
type DiscoveryResult struct {
	Observer *geo.Position   `json:"observer,omitempty"`
	Postings []RankedPosting `json:"postings"`
	InCart   []int64         `json:"in_cart"`
}

// DiscoveryService ranks postings against the driver's latest position.
type DiscoveryService interface {
	Items(ctx context.Context) (DiscoveryResult, error)
	Trash(ctx context.Context) (DiscoveryResult, error)
}

// ----- Cart -----

// CartView is the response DTO for the cart endpoints.
type CartView struct {
	PostIDs []int64 `json:"post_ids"`
}

// CartService is the driver's reservation cart.
type CartService interface {
	Add(ctx context.Context, postID int64) error
	Remove(ctx context.Context, postID int64) error
	Contains(ctx context.Context, postID int64) (bool, error)
	List(ctx context.Context) ([]int64, error)
	Clear(ctx context.Context) error
}

// ----- Reservations -----

// ContactView is a freshly fetched contact with everything the UI needs to act on it.
type ContactView struct {
	Contact   contact.Contact         `json:"contact"`
	Post      posting.Posting         `json:"post"`
	Siblings  []contact.Contact       `json:"siblings"`
	Effective contact.EffectiveStatus `json:"effective_status"`
	CancelVia contact.CancelPath      `json:"cancel_path,omitempty"`
	Actions   []contact.Action        `json:"actions"`
	FetchedAt time.Time               `json:"fetched_at"`
}

// ReservationService drives the contact lifecycle for one role.
type ReservationService interface {
	Commit(ctx context.Context) ([]contact.Contact, error)
	Get(ctx context.Context, id int64) (ContactView, error)
	List(ctx context.Context) ([]ContactView, error)
	Confirm(ctx context.Context, id int64) (ContactView, error)
	MarkComplete(ctx context.Context, id int64) (ContactView, error)
	ConfirmComplete(ctx context.Context, id int64) (ContactView, error)
	Cancel(ctx context.Context, id int64, reason string) (ContactView, error)
}

// ----- Seller live view -----

// DriverLocationView is the response DTO for GET /v1/contacts/:id/driver-location.
type DriverLocationView struct {
	ContactID  int64         `json:"contact_id"`
	DriverID   string        `json:"driver_id"`
	Position   *geo.Position `json:"position,omitempty"`
	DistanceKM *float64      `json:"distance_km"` // to the posting's address snapshot
	Live       bool          `json:"live"`        // true when the position came from the fanout
}

// LiveLocationService serves the seller's read-only view of a confirmed driver.
type LiveLocationService interface {
	DriverLocation(ctx context.Context, contactID int64) (DriverLocationView, error)
}
