package ports

import (
	"context"

	"pickup-market/internal/domain/contact"
	"pickup-market/internal/domain/geo"
	"pickup-market/internal/domain/posting"
)

// KVStore is a single-namespace byte store. The cart keeps one slot in it.
type KVStore interface {
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// PostingSource lists postings visible to a driver.
type PostingSource interface {
	// NearbyItems passes the observer (when known) as a server-side hint.
	NearbyItems(ctx context.Context, near *geo.Point) ([]posting.Posting, error)
	TrashPostings(ctx context.Context) ([]posting.Posting, error)
}

// ContactAPI is the server side of the reservation lifecycle.
type ContactAPI interface {
	CreateContacts(ctx context.Context, postIDs []int64) ([]contact.Contact, error)
	ListContacts(ctx context.Context) ([]contact.Contact, error)
	ContactsForPost(ctx context.Context, postID int64) ([]contact.Contact, error)
	GetContact(ctx context.Context, id int64) (contact.Contact, error)
	UpdateContactStatus(ctx context.Context, id int64, status contact.Status) error
	DeleteContact(ctx context.Context, id int64) error
	RequestCancel(ctx context.Context, id int64, reason string) error
}

// DriverLocationWriter stores the driver's own position server-side.
type DriverLocationWriter interface {
	UpdateDriverLocation(ctx context.Context, point geo.Point) error
}

// DriverLocationReader reads a counterparty driver's last stored position.
type DriverLocationReader interface {
	DriverLocation(ctx context.Context, driverID string) (geo.Position, error)
}

// LocationMirror receives every flushed driver position.
type LocationMirror interface {
	Name() string
	PushPosition(ctx context.Context, pos geo.Position) error
}

// ContactCreator is the single batch call a cart commit makes.
type ContactCreator interface {
	CreateContacts(ctx context.Context, postIDs []int64) ([]contact.Contact, error)
}
