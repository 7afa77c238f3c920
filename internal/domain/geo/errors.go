package geo

import (
	"context"
	"errors"
)

// Location acquisition failures. Every GeoSource backend reports one of these three.
var (
	ErrPermissionDenied    = errors.New("location permission denied")
	ErrPositionUnavailable = errors.New("position unavailable")
	ErrTimeout             = errors.New("location request timed out")

	ErrMissingTimestamp = errors.New("position captured_at is required")
)

// Normalize maps an arbitrary backend error onto the three location error kinds.
// Errors that already match one of them are returned unchanged so wrapping context survives.
func Normalize(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrPermissionDenied), errors.Is(err, ErrPositionUnavailable), errors.Is(err, ErrTimeout):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return errors.Join(ErrTimeout, err)
	default:
		return errors.Join(ErrPositionUnavailable, err)
	}
}

// UserActionable reports whether err should gate the UI (grant permission, enable GPS, retry).
func UserActionable(err error) bool {
	return errors.Is(err, ErrPermissionDenied) || errors.Is(err, ErrPositionUnavailable) || errors.Is(err, ErrTimeout)
}
