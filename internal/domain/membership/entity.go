// Package membership contains the group-membership consistency engine: the
// invariants, state transitions, and cascading side effects that govern how
// a membership and its group's derived state evolve together.
//
// Every mutation re-derives global consistency locally: a write passes the
// validator, updates the group's accepted counter, recomputes the group
// status, and on acceptance destroys the user's competing memberships in the
// same transaction. There is no central scheduler.
package membership

import (
	"strings"
	"time"

	"github.com/meonBot/master-vesta-2/internal/domain/shared"
)

// Status represents a user's commitment level to a group.
type Status string

const (
	// StatusRequested - the user asked to join the group.
	StatusRequested Status = "requested"

	// StatusInvited - the group's leader invited the user.
	StatusInvited Status = "invited"

	// StatusAccepted - the user committed to the group. Terminal: once
	// persisted, status never changes again.
	StatusAccepted Status = "accepted"
)

// IsValid reports whether the status is a known value.
func (s Status) IsValid() bool {
	switch s {
	case StatusRequested, StatusInvited, StatusAccepted:
		return true
	}
	return false
}

// Accepted reports whether the status is the terminal positive state.
func (s Status) Accepted() bool { return s == StatusAccepted }

// String returns the string representation of the status.
func (s Status) String() string { return string(s) }

// Record-level validation messages. These are externally observed strings
// rendered to end users; do not reword them.
const (
	MsgCannotChangeAssociation = "Cannot change group or user associated with this membership"
	MsgCannotChangeStatus      = "Cannot change membership status after acceptance"
	MsgCannotEditLocked        = "Cannot edit locked membership"
	MsgCannotDestroyLocked     = "Cannot destroy locked membership"

	MsgDuplicateMembership = "User already has a membership in this group"
	MsgDrawMismatch        = "User and group must belong to the same draw"
	MsgGroupNotOpen        = "Cannot create a membership in a group that is not open"
	MsgIntentRequired      = "User must have on-campus intent to join a group"
	MsgAlreadyCommitted    = "User already has an accepted membership in this draw"
	MsgInvalidStatus       = "Membership status is invalid"
	MsgLockedInvalid       = "Locked memberships must be accepted and belong to a finalizing group"
)

// Domain errors.
var (
	ErrMembershipNotFound = shared.NewDomainError("membership", "Find", shared.ErrNotFound, "membership not found")
	ErrUserNotInDraw      = shared.NewDomainError("membership", "Validate", shared.ErrInvalidState, "user is not assigned to a draw")
)

// ValidationError aggregates record-level validation messages. Invariant
// violations are reported this way (a failed save), never as raised faults,
// so callers can render them to end users.
type ValidationError struct {
	Messages []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return "membership validation failed: " + strings.Join(e.Messages, "; ")
}

// Is matches shared.ErrValidation so callers can classify with errors.Is.
func (e *ValidationError) Is(target error) bool {
	return target == shared.ErrValidation
}

// add appends a message, ignoring duplicates.
func (e *ValidationError) add(msg string) {
	for _, m := range e.Messages {
		if m == msg {
			return
		}
	}
	e.Messages = append(e.Messages, msg)
}

// orNil returns the error if it carries any messages.
func (e *ValidationError) orNil() error {
	if len(e.Messages) == 0 {
		return nil
	}
	return e
}

// Membership binds one user to one group within one draw.
type Membership struct {
	// ID is the unique identifier (UUID string).
	ID string

	// GroupID and UserID form the natural key: exactly one membership
	// per (group, user) pair. Immutable once the row exists.
	GroupID string
	UserID  string

	// DrawID denormalizes the scoping draw; always equals both the
	// user's and the group's draw.
	DrawID string

	// Status is the commitment level. Immutable once accepted.
	Status Status

	// Locked freezes the row permanently during group finalization.
	// A locked membership cannot be mutated or destroyed through the
	// normal paths.
	Locked bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Clone returns a deep copy of the membership.
func (m *Membership) Clone() *Membership {
	if m == nil {
		return nil
	}
	out := *m
	return &out
}

// Changes describes a requested mutation to a persisted membership. Nil
// fields are left untouched. GroupID/UserID are present only so that
// attempts to reassign the row can be rejected with the exact
// record-level message.
type Changes struct {
	GroupID *string
	UserID  *string
	Status  *Status
	Locked  *bool
}

// Empty reports whether no field is being changed.
func (c Changes) Empty() bool {
	return c.GroupID == nil && c.UserID == nil && c.Status == nil && c.Locked == nil
}

// apply returns a copy of m with the changes applied. Association changes
// are applied too; the validator rejects them by diffing against m.
func (c Changes) apply(m *Membership) *Membership {
	out := m.Clone()
	if c.GroupID != nil {
		out.GroupID = *c.GroupID
	}
	if c.UserID != nil {
		out.UserID = *c.UserID
	}
	if c.Status != nil {
		out.Status = *c.Status
	}
	if c.Locked != nil {
		out.Locked = *c.Locked
	}
	out.UpdatedAt = time.Now().UTC()
	return out
}
