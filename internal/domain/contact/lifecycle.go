package contact

import (
	"fmt"
	"slices"
	"strings"

	"pickup-market/internal/domain/posting"
	"pickup-market/internal/domain/user"
)

// EffectiveStatus is what the UI may act on. It differs from the raw status
// only for pending contacts whose posting went to somebody else.
type EffectiveStatus string

const (
	EffectivePending      EffectiveStatus = "pending"
	EffectiveSuperseded   EffectiveStatus = "superseded"
	EffectiveConfirmed    EffectiveStatus = "confirmed"
	EffectiveWaitComplete EffectiveStatus = "wait_complete"
	EffectiveCompleted    EffectiveStatus = "completed"
	EffectiveCancelled    EffectiveStatus = "cancelled"
)

// DeriveEffectiveStatus is the single place where posting status, contact status
// and sibling supersession are combined.
func DeriveEffectiveStatus(post posting.Posting, c Contact, siblings []Contact) EffectiveStatus {
	switch c.Status {
	case StatusCompleted:
		return EffectiveCompleted
	case StatusCancelled:
		return EffectiveCancelled
	case StatusConfirmed:
		return EffectiveConfirmed
	case StatusWaitComplete:
		return EffectiveWaitComplete
	}

	// raw pending from here on
	for _, sibling := range siblings {
		if sibling.ID != c.ID && sibling.PostID == c.PostID && sibling.Status.claimsPosting() {
			return EffectiveSuperseded
		}
	}
	if post.Status.Committed() || post.Status.Terminal() {
		return EffectiveSuperseded
	}
	return EffectivePending
}

// CancelPath is how a contact gets cancelled.
type CancelPath string

const (
	CancelNone       CancelPath = ""
	CancelDirect     CancelPath = "direct"      // DELETE the contact, no reason
	CancelWithReason CancelPath = "with_reason" // keep the record, status cancelled, reason retained
)

// CancelPathFor decides the cancel path from the posting status alone.
func CancelPathFor(postStatus posting.Status) CancelPath {
	switch postStatus {
	case posting.StatusWaiting:
		return CancelDirect
	case posting.StatusPending, posting.StatusWaitComplete:
		return CancelWithReason
	default:
		return CancelNone
	}
}

// Action is a user-triggered lifecycle transition.
type Action string

const (
	ActionConfirm          Action = "confirm"
	ActionMarkComplete     Action = "mark_complete"
	ActionConfirmComplete  Action = "confirm_complete"
	ActionCancelDirect     Action = "cancel_direct"
	ActionCancelWithReason Action = "cancel_with_reason"
)

// TargetStatus is the status a PATCH-style action moves the contact to.
// Cancel actions have no PATCH target.
func (action Action) TargetStatus() (Status, bool) {
	switch action {
	case ActionConfirm:
		return StatusConfirmed, true
	case ActionMarkComplete:
		return StatusWaitComplete, true
	case ActionConfirmComplete:
		return StatusCompleted, true
	default:
		return "", false
	}
}

// allowedRole reports whether role may ever take the action.
func (action Action) allowedRole(role user.Role) bool {
	switch action {
	case ActionConfirm, ActionConfirmComplete:
		return role == user.RoleSeller
	case ActionMarkComplete:
		return role == user.RoleDriver
	case ActionCancelDirect, ActionCancelWithReason:
		return role.Valid()
	default:
		return false
	}
}

// AvailableActions lists what a viewer with the given role can do right now.
// Terminal and superseded contacts have no actions.
func AvailableActions(role user.Role, post posting.Posting, c Contact, siblings []Contact) []Action {
	var candidates []Action
	switch DeriveEffectiveStatus(post, c, siblings) {
	case EffectivePending:
		candidates = append(candidates, ActionConfirm)
	case EffectiveConfirmed:
		candidates = append(candidates, ActionMarkComplete)
	case EffectiveWaitComplete:
		candidates = append(candidates, ActionConfirmComplete)
	default:
		return nil
	}

	switch CancelPathFor(post.Status) {
	case CancelDirect:
		candidates = append(candidates, ActionCancelDirect)
	case CancelWithReason:
		candidates = append(candidates, ActionCancelWithReason)
	}

	out := candidates[:0]
	for _, action := range candidates {
		if action.allowedRole(role) {
			out = append(out, action)
		}
	}
	return out
}

// Check validates an attempted action against the last server view.
// reason is only inspected for ActionCancelWithReason.
func Check(role user.Role, action Action, post posting.Posting, c Contact, siblings []Contact, reason string) error {
	if c.Status.Terminal() {
		return fmt.Errorf("%w: contact %d is %s", ErrConflictingState, c.ID, c.Status)
	}
	if !action.allowedRole(role) {
		return fmt.Errorf("%w: %s cannot %s", ErrRoleForbidden, role, action)
	}
	if !slices.Contains(AvailableActions(role, post, c, siblings), action) {
		return fmt.Errorf("%w: %s not available while contact is %s and posting is %s",
			ErrConflictingState, action, DeriveEffectiveStatus(post, c, siblings), post.Status)
	}
	if action == ActionCancelWithReason && strings.TrimSpace(reason) == "" {
		return ErrReasonRequired
	}
	return nil
}
