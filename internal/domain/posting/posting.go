package posting

import (
	"errors"
	"strings"
	"time"

	"pickup-market/internal/domain/geo"
)

// Kind separates item sales from trash-disposal requests.
type Kind string

const (
	KindItem  Kind = "item"
	KindTrash Kind = "trash"
)

var (
	ErrInvalidKind      = errors.New("invalid posting kind")
	ErrMissingID        = errors.New("posting id is required")
	ErrMissingSeller    = errors.New("posting seller id is required")
	ErrCategoriesOnItem = errors.New("categories are only allowed on item postings")
	ErrTrashFields      = errors.New("coins_offered and bag_count are only allowed on trash postings")
	ErrNegativeAmount   = errors.New("coins_offered and bag_count cannot be negative")
)

// ParseKind normalizes (lowercases+trims) and validates a kind string.
func ParseKind(in string) (Kind, error) {
	kind := Kind(strings.ToLower(strings.TrimSpace(in)))
	if kind.Valid() {
		return kind, nil
	}
	return "", ErrInvalidKind
}

// Valid reports whether kind is one of the allowed kinds.
func (kind Kind) Valid() bool {
	return kind == KindItem || kind == KindTrash
}

func (kind Kind) String() string { return string(kind) }

// AddressSnapshot is the copy of the seller's address taken when the posting was
// created. It is never re-resolved from a live address book entry.
type AddressSnapshot struct {
	Lat              *float64 `json:"lat,omitempty"`
	Lng              *float64 `json:"lng,omitempty"`
	FormattedAddress string   `json:"formatted_address"`
	Phone            string   `json:"phone,omitempty"`
	Label            string   `json:"label,omitempty"`
}

// Point returns the snapshot coordinates when both are present and valid.
func (snapshot AddressSnapshot) Point() (geo.Point, bool) {
	if snapshot.Lat == nil || snapshot.Lng == nil {
		return geo.Point{}, false
	}
	point := geo.Point{Lat: *snapshot.Lat, Lng: *snapshot.Lng}
	if !point.Valid() {
		return geo.Point{}, false
	}
	return point, true
}

// Posting is an item-sale or trash-disposal request as returned by the backend.
type Posting struct {
	ID           int64           `json:"id"`
	Kind         Kind            `json:"kind"`
	SellerID     string          `json:"seller_id"`
	Images       []string        `json:"images,omitempty"`
	Categories   []string        `json:"categories,omitempty"`
	CoinsOffered int             `json:"coins_offered,omitempty"`
	BagCount     int             `json:"bag_count,omitempty"`
	Address      AddressSnapshot `json:"address_snapshot"`
	Status       Status          `json:"status"`
	CreatedAt    time.Time       `json:"created_at"`
}

// Validate checks the kind-specific field rules.
func (post Posting) Validate() error {
	if post.ID == 0 {
		return ErrMissingID
	}
	if strings.TrimSpace(post.SellerID) == "" {
		return ErrMissingSeller
	}
	if !post.Kind.Valid() {
		return ErrInvalidKind
	}
	if !post.Status.Valid() {
		return ErrInvalidStatus
	}
	if post.CoinsOffered < 0 || post.BagCount < 0 {
		return ErrNegativeAmount
	}
	switch post.Kind {
	case KindItem:
		if post.CoinsOffered != 0 || post.BagCount != 0 {
			return ErrTrashFields
		}
	case KindTrash:
		if len(post.Categories) > 0 {
			return ErrCategoriesOnItem
		}
	}
	return nil
}

// Editable reports whether the seller may still change the posting.
func (post Posting) Editable() bool {
	return post.Status == StatusWaiting || post.Status == StatusPending
}
