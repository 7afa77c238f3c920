package posting

import (
	"errors"
	"strings"
)

// Status is the posting-level rollup of its most advanced contact.
type Status string

const (
	StatusWaiting      Status = "waiting"       // open; nobody committed yet
	StatusPending      Status = "pending"       // a driver is committed (a contact was confirmed)
	StatusWaitComplete Status = "wait_complete" // driver reported the pickup done
	StatusCompleted    Status = "completed"
	StatusCancelled    Status = "cancelled"
)

var ErrInvalidStatus = errors.New("invalid posting status")

// ParseStatus normalizes (lowercases+trims) and validates a status string.
func ParseStatus(in string) (Status, error) {
	status := Status(strings.ToLower(strings.TrimSpace(in)))
	if status.Valid() {
		return status, nil
	}
	return "", ErrInvalidStatus
}

// Valid reports whether status is one of the allowed posting statuses.
func (status Status) Valid() bool {
	switch status {
	case StatusWaiting, StatusPending, StatusWaitComplete, StatusCompleted, StatusCancelled:
		return true
	default:
		return false
	}
}

func (status Status) String() string { return string(status) }

// Committed reports whether a driver has already committed resources to the posting.
func (status Status) Committed() bool {
	return status == StatusPending || status == StatusWaitComplete
}

// Terminal indicates the posting is closed for good.
func (status Status) Terminal() bool {
	return status == StatusCompleted || status == StatusCancelled
}

// rank orders statuses by how far along the posting is.
func (status Status) rank() int {
	switch status {
	case StatusWaiting:
		return 0
	case StatusPending:
		return 1
	case StatusWaitComplete:
		return 2
	case StatusCompleted:
		return 3
	default:
		return -1
	}
}

// Rollup returns the posting status implied by the most advanced of the given
// contact statuses. Raw contact statuses are plain strings here so the posting
// package does not depend on the contact package.
func Rollup(contactStatuses ...string) Status {
	best := StatusWaiting
	for _, cs := range contactStatuses {
		var implied Status
		switch cs {
		case "confirmed":
			implied = StatusPending
		case "wait_complete":
			implied = StatusWaitComplete
		case "completed":
			implied = StatusCompleted
		default:
			continue // pending and cancelled contacts don't move the posting
		}
		if implied.rank() > best.rank() {
			best = implied
		}
	}
	return best
}
