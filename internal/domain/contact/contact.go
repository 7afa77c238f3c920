package contact

import (
	"errors"
	"strings"
	"time"

	"pickup-market/internal/domain/posting"
)

var (
	ErrConflictingState = errors.New("contact is no longer in a state that allows this action")
	ErrReasonRequired   = errors.New("a cancellation reason is required")
	ErrRoleForbidden    = errors.New("role is not allowed to take this action")
	ErrMissingPostID    = errors.New("contact post id is required")
	ErrMissingDriverID  = errors.New("contact driver id is required")
)

// Party carries the display fields the backend denormalizes onto a contact.
type Party struct {
	ID        string `json:"id"`
	Name      string `json:"name,omitempty"`
	Phone     string `json:"phone,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// Contact is the reservation linking one driver's claim to one posting.
type Contact struct {
	ID           int64            `json:"id"`
	PostID       int64            `json:"post_id"`
	SellerID     string           `json:"seller_id"`
	DriverID     string           `json:"driver_id"`
	ChatID       string           `json:"chat_id,omitempty"`
	Status       Status           `json:"status"`
	CancelReason *string          `json:"cancel_reason,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
	Post         *posting.Posting `json:"post,omitempty"`
	Seller       *Party           `json:"seller,omitempty"`
	Driver       *Party           `json:"driver,omitempty"`
}

// Validate checks the minimal invariants a contact from the server must satisfy.
func (c Contact) Validate() error {
	if c.PostID == 0 {
		return ErrMissingPostID
	}
	if strings.TrimSpace(c.DriverID) == "" {
		return ErrMissingDriverID
	}
	if !c.Status.Valid() {
		return ErrInvalidStatus
	}
	return nil
}

// Siblings returns the other contacts on the same posting as c.
func Siblings(c Contact, all []Contact) []Contact {
	out := make([]Contact, 0, len(all))
	for _, other := range all {
		if other.ID == c.ID || other.PostID != c.PostID {
			continue
		}
		out = append(out, other)
	}
	return out
}
