package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"pickup-market/internal/common/contextx"
	"pickup-market/internal/domain/contact"
	"pickup-market/internal/domain/user"
	"pickup-market/internal/general/backend"
	"pickup-market/internal/general/metrics"
	"pickup-market/internal/ports"
)

const opCancel = "cancel"

// Commit sends every cart entry in one batch. On failure the cart is untouched.
func (s *reservationService) Commit(ctx context.Context) ([]contact.Contact, error) {
	if s.role != user.RoleDriver || s.cart == nil {
		return nil, fmt.Errorf("%w: %s cannot commit a cart", contact.ErrRoleForbidden, s.role)
	}

	// a commit the backend already received must not be abandoned with the request
	ctx = context.WithoutCancel(ctx)

	created, err := s.cart.Commit(ctx, s.api)
	metrics.ContactTransitions.WithLabelValues("commit", metrics.Outcome(err)).Inc()
	if err != nil {
		s.logger.Error(ctx, "cart_commit_failed", "Failed to create contacts from cart", err, nil)
		return nil, err
	}

	ids := make([]int64, 0, len(created))
	for _, c := range created {
		ids = append(ids, c.ID)
	}
	s.logger.Info(ctx, "cart_committed", "Contacts created from cart", map[string]any{"contact_ids": ids})
	return created, nil
}

// Confirm accepts a driver's pending contact. Sellers only.
func (s *reservationService) Confirm(ctx context.Context, id int64) (ports.ContactView, error) {
	return s.transition(ctx, id, string(contact.ActionConfirm), "", func(ports.ContactView) contact.Action {
		return contact.ActionConfirm
	})
}

// MarkComplete reports the pickup done. Drivers only.
func (s *reservationService) MarkComplete(ctx context.Context, id int64) (ports.ContactView, error) {
	return s.transition(ctx, id, string(contact.ActionMarkComplete), "", func(ports.ContactView) contact.Action {
		return contact.ActionMarkComplete
	})
}

// ConfirmComplete closes the contact. Sellers only.
func (s *reservationService) ConfirmComplete(ctx context.Context, id int64) (ports.ContactView, error) {
	return s.transition(ctx, id, string(contact.ActionConfirmComplete), "", func(ports.ContactView) contact.Action {
		return contact.ActionConfirmComplete
	})
}

// Cancel takes the path implied by the posting status: a plain delete while the posting
// is still waiting, a cancel request with a reason once somebody committed.
func (s *reservationService) Cancel(ctx context.Context, id int64, reason string) (ports.ContactView, error) {
	return s.transition(ctx, id, opCancel, reason, func(view ports.ContactView) contact.Action {
		if view.CancelVia == contact.CancelDirect {
			return contact.ActionCancelDirect
		}
		return contact.ActionCancelWithReason
	})
}

// transition runs fresh read, local check, one backend call and a refetch.
func (s *reservationService) transition(
	ctx context.Context,
	id int64,
	op string,
	reason string,
	pick func(ports.ContactView) contact.Action,
) (ports.ContactView, error) {
	release, err := s.acquire(id, op)
	if err != nil {
		metrics.ContactTransitions.WithLabelValues(op, metrics.OutcomeRejected).Inc()
		return ports.ContactView{}, fmt.Errorf("contact %d %s: %w", id, op, err)
	}
	defer release()

	ctx = contextx.WithContactID(context.WithoutCancel(ctx), strconv.FormatInt(id, 10))

	before, err := s.fetchView(ctx, id)
	if err != nil {
		metrics.ContactTransitions.WithLabelValues(op, metrics.OutcomeFailed).Inc()
		s.logger.Error(ctx, "contact_"+op+"_failed", "Fresh read before transition failed", err, nil)
		return ports.ContactView{}, err
	}

	action := pick(before)
	if err := contact.Check(s.role, action, before.Post, before.Contact, before.Siblings, reason); err != nil {
		metrics.ContactTransitions.WithLabelValues(string(action), metrics.OutcomeRejected).Inc()
		s.logger.Info(ctx, "contact_"+op+"_rejected", "Transition not allowed on the latest server state", map[string]any{
			"action":    string(action),
			"effective": string(before.Effective),
			"error":     err.Error(),
		})
		return before, err
	}

	err = s.apply(ctx, id, action, reason)
	metrics.ContactTransitions.WithLabelValues(string(action), metrics.Outcome(err)).Inc()
	if err != nil {
		s.logger.Error(ctx, "contact_"+op+"_failed", "Transition call failed", err, map[string]any{
			"action": string(action),
		})
		if errors.Is(err, contact.ErrConflictingState) {
			// somebody else moved first; hand back what the server holds now
			if after, refetchErr := s.fetchView(ctx, id); refetchErr == nil {
				return after, err
			}
		}
		return before, err
	}

	s.logger.Info(ctx, "contact_"+op+"_applied", "Contact transition applied", map[string]any{
		"action": string(action),
		"from":   string(before.Contact.Status),
	})

	after, err := s.fetchView(ctx, id)
	if err != nil {
		if action == contact.ActionCancelDirect && notFound(err) {
			return s.deletedView(before), nil
		}
		s.logger.Error(ctx, "contact_refresh_failed", "Refetch after transition failed", err, nil)
		return ports.ContactView{}, fmt.Errorf("%s applied to contact %d, refresh failed: %w", action, id, err)
	}
	return after, nil
}

func (s *reservationService) apply(ctx context.Context, id int64, action contact.Action, reason string) error {
	if target, ok := action.TargetStatus(); ok {
		return s.api.UpdateContactStatus(ctx, id, target)
	}
	switch action {
	case contact.ActionCancelDirect:
		return s.api.DeleteContact(ctx, id)
	case contact.ActionCancelWithReason:
		return s.api.RequestCancel(ctx, id, strings.TrimSpace(reason))
	default:
		return fmt.Errorf("unsupported action %q", action)
	}
}

// deletedView reports a directly cancelled contact. The record no longer exists server-side.
func (s *reservationService) deletedView(before ports.ContactView) ports.ContactView {
	view := before
	view.Contact.Status = contact.StatusCancelled
	view.Effective = contact.EffectiveCancelled
	view.CancelVia = contact.CancelNone
	view.Actions = []contact.Action{}
	view.FetchedAt = s.now()
	return view
}

func notFound(err error) bool {
	if errors.Is(err, ports.ErrNotFound) {
		return true
	}
	var apiErr *backend.APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}
