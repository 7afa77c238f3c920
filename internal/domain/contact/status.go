package contact

import (
	"errors"
	"strings"
)

// Status is the raw, server-stored status of a single contact.
type Status string

const (
	StatusPending      Status = "pending"
	StatusConfirmed    Status = "confirmed"
	StatusWaitComplete Status = "wait_complete"
	StatusCompleted    Status = "completed"
	StatusCancelled    Status = "cancelled"
)

var ErrInvalidStatus = errors.New("invalid contact status")

// ParseStatus normalizes (lowercases+trims) and validates a status string.
func ParseStatus(in string) (Status, error) {
	status := Status(strings.ToLower(strings.TrimSpace(in)))
	if status.Valid() {
		return status, nil
	}
	return "", ErrInvalidStatus
}

// Valid reports whether status is one of the allowed contact statuses.
func (status Status) Valid() bool {
	switch status {
	case StatusPending, StatusConfirmed, StatusWaitComplete, StatusCompleted, StatusCancelled:
		return true
	default:
		return false
	}
}

// String returns the string representation of the Status.
func (status Status) String() string {
	return string(status)
}

// CanTransitionTo specifies if the status can transition to the next status.
func (status Status) CanTransitionTo(next Status) bool {
	switch status {
	case StatusPending:
		return next == StatusConfirmed || next == StatusCancelled

	case StatusConfirmed:
		return next == StatusWaitComplete || next == StatusCancelled

	case StatusWaitComplete:
		return next == StatusCompleted || next == StatusCancelled

	case StatusCompleted, StatusCancelled:
		return false

	default:
		return false
	}
}

// Terminal indicates if the status is completed or cancelled.
func (status Status) Terminal() bool {
	return status == StatusCompleted || status == StatusCancelled
}

// claimsPosting reports whether a contact in this status holds the posting,
// which supersedes every pending sibling.
func (status Status) claimsPosting() bool {
	return status == StatusConfirmed || status == StatusWaitComplete || status == StatusCompleted
}
