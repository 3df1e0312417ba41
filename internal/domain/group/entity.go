// Package group contains the domain model for housing groups.
// A group is a self-formed unit of students targeting a shared suite. Its
// status and accepted-member counter are derived from its memberships; the
// membership engine is the only writer of both.
package group

import (
	"time"

	"github.com/meonBot/master-vesta-2/internal/domain/shared"
)

// Status represents the lifecycle state of a group.
type Status string

const (
	// StatusOpen - the group is accepting new memberships.
	StatusOpen Status = "open"

	// StatusClosed - accepted count has reached size; no new memberships.
	StatusClosed Status = "closed"

	// StatusFull is a legacy alias for StatusClosed still present in old
	// rows; it normalizes to closed on read.
	StatusFull Status = "full"

	// StatusFinalizing - the group is in the suite-selection phase.
	// Entered by the suite-selection flow, not by the membership engine.
	StatusFinalizing Status = "finalizing"

	// StatusLocked - terminal; every accepted membership is locked.
	StatusLocked Status = "locked"
)

// IsValid reports whether the status is a known value.
func (s Status) IsValid() bool {
	switch s {
	case StatusOpen, StatusClosed, StatusFull, StatusFinalizing, StatusLocked:
		return true
	}
	return false
}

// Normalize maps legacy values onto their canonical form.
func (s Status) Normalize() Status {
	if s == StatusFull {
		return StatusClosed
	}
	return s
}

// AcceptsMembers reports whether new memberships may be created against a
// group in this status.
func (s Status) AcceptsMembers() bool {
	return s.Normalize() == StatusOpen
}

// Terminal reports whether the status is final.
func (s Status) Terminal() bool {
	return s == StatusLocked
}

// String returns the string representation of the status.
func (s Status) String() string { return string(s) }

// Domain errors.
var (
	ErrGroupNotFound     = shared.NewDomainError("group", "Find", shared.ErrNotFound, "group not found")
	ErrInvalidSize       = shared.NewDomainError("group", "Validate", shared.ErrInvalidInput, "group size must be positive")
	ErrNotClosed         = shared.NewDomainError("group", "Finalize", shared.ErrStateTransition, "group must be closed to begin finalizing")
	ErrNotFinalizing     = shared.NewDomainError("group", "Lock", shared.ErrStateTransition, "group must be finalizing to lock")
	ErrAlreadyDisbanded  = shared.NewDomainError("group", "Disband", shared.ErrInvalidState, "group has already been disbanded")
	ErrNotSelectingSuite = shared.NewDomainError("group", "AssignSuite", shared.ErrStateTransition, "group must be finalizing or locked to take a suite")
)

// Group represents one housing group within a draw.
type Group struct {
	// ID is the unique identifier (UUID string).
	ID string

	// DrawID is the draw this group belongs to.
	DrawID string

	// LeaderID is the user leading the group.
	LeaderID string

	// Size is the target member count (equals the suite sizes the group
	// is eligible for).
	Size int

	// SuiteID is the assigned suite, set by the suite-selection flow.
	// Empty until a suite is assigned.
	SuiteID string

	// Status is the derived lifecycle state.
	Status Status

	// MembershipsCount is the cached count of accepted memberships.
	// Maintained by the membership engine; always equals the number of
	// membership rows with status accepted.
	MembershipsCount int

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewGroupParams contains the data required to create a group.
type NewGroupParams struct {
	ID       string
	DrawID   string
	LeaderID string
	Size     int
}

// NewGroup creates a validated Group in the open state with a zero counter.
// The leader's own accepted membership is created separately by the engine.
func NewGroup(params NewGroupParams) (*Group, error) {
	if params.Size < 1 {
		return nil, ErrInvalidSize
	}
	if params.DrawID == "" {
		return nil, shared.NewDomainError("group", "Create", shared.ErrEmptyValue, "draw id is required")
	}
	if params.LeaderID == "" {
		return nil, shared.NewDomainError("group", "Create", shared.ErrEmptyValue, "leader id is required")
	}

	now := time.Now().UTC()
	return &Group{
		ID:        params.ID,
		DrawID:    params.DrawID,
		LeaderID:  params.LeaderID,
		Size:      params.Size,
		Status:    StatusOpen,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Full reports whether the accepted count has reached the target size.
func (g *Group) Full() bool {
	return g.MembershipsCount >= g.Size
}

// CapacityTransition computes the status the group should hold after its
// accepted count changes to newCount. Only the open<->closed edge is derived
// from capacity; finalizing and locked are never left by counter movement.
// The second return reports whether the status changed.
func (g *Group) CapacityTransition(newCount int) (Status, bool) {
	current := g.Status.Normalize()
	switch current {
	case StatusOpen:
		if newCount >= g.Size {
			return StatusClosed, true
		}
	case StatusClosed:
		if newCount < g.Size {
			return StatusOpen, true
		}
	}
	return current, current != g.Status
}

// BeginFinalizing transitions closed -> finalizing. Driven by the external
// suite-selection flow.
func (g *Group) BeginFinalizing() error {
	if g.Status.Normalize() != StatusClosed {
		return ErrNotClosed
	}
	g.Status = StatusFinalizing
	g.UpdatedAt = time.Now().UTC()
	return nil
}

// Lock transitions finalizing -> locked. Called by the engine when the last
// accepted membership has been locked.
func (g *Group) Lock() error {
	if g.Status != StatusFinalizing {
		return ErrNotFinalizing
	}
	g.Status = StatusLocked
	g.UpdatedAt = time.Now().UTC()
	return nil
}
