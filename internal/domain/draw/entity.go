// Package draw contains the domain model for housing draws.
// A draw is a housing-allocation cycle: it scopes users and groups, and all
// membership invariants (uniqueness, single accepted commitment) are
// evaluated within one draw.
package draw

import (
	"time"

	"github.com/meonBot/master-vesta-2/internal/domain/shared"
)

// Status represents the lifecycle phase of a draw.
type Status string

const (
	// StatusDraft - draw is being configured, not visible to students.
	StatusDraft Status = "draft"

	// StatusPreLottery - group formation phase.
	StatusPreLottery Status = "pre_lottery"

	// StatusLottery - lottery numbers are being assigned.
	StatusLottery Status = "lottery"

	// StatusSuiteSelection - groups pick suites in lottery order.
	StatusSuiteSelection Status = "suite_selection"

	// StatusResults - draw is over, assignments are final.
	StatusResults Status = "results"
)

// IsValid reports whether the status is a known value.
func (s Status) IsValid() bool {
	switch s {
	case StatusDraft, StatusPreLottery, StatusLottery, StatusSuiteSelection, StatusResults:
		return true
	}
	return false
}

// String returns the string representation of the status.
func (s Status) String() string { return string(s) }

// phaseOrder positions each status in the draw lifecycle.
var phaseOrder = map[Status]int{
	StatusDraft:          0,
	StatusPreLottery:     1,
	StatusLottery:        2,
	StatusSuiteSelection: 3,
	StatusResults:        4,
}

// Domain errors.
var (
	ErrDrawNotFound      = shared.NewDomainError("draw", "Find", shared.ErrNotFound, "draw not found")
	ErrInvalidName       = shared.NewDomainError("draw", "Validate", shared.ErrInvalidInput, "draw name must be 1-100 chars")
	ErrInvalidTransition = shared.NewDomainError("draw", "Advance", shared.ErrStateTransition, "draw status can only move forward")
)

// Draw represents one housing-allocation cycle.
type Draw struct {
	// ID is the unique identifier (UUID string).
	ID string

	// Name is the display name, e.g. "Sophomore Draw 2026".
	Name string

	// Status is the lifecycle phase.
	Status Status

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewDraw creates a validated Draw in the draft phase.
func NewDraw(id, name string) (*Draw, error) {
	if name == "" || len(name) > 100 {
		return nil, ErrInvalidName
	}
	now := time.Now().UTC()
	return &Draw{
		ID:        id,
		Name:      name,
		Status:    StatusDraft,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Advance moves the draw to the next lifecycle phase. Phases only move
// forward; skipping phases is allowed, going back is not.
func (d *Draw) Advance(next Status) error {
	if !next.IsValid() {
		return shared.NewDomainError("draw", "Advance", shared.ErrInvalidInput, "unknown draw status")
	}
	if phaseOrder[next] <= phaseOrder[d.Status] {
		return ErrInvalidTransition
	}
	d.Status = next
	d.UpdatedAt = time.Now().UTC()
	return nil
}
