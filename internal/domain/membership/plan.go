package membership

import (
	"github.com/meonBot/master-vesta-2/internal/domain/group"
)

// Plan is the full set of side effects a single membership write entails,
// computed as a pure function of (previous row, new row, group snapshot)
// before anything is persisted. The engine applies the plan atomically in
// one transaction; nothing here touches storage.
type Plan struct {
	// CounterDelta is the change to the group's accepted counter:
	// -1, 0 or +1.
	CounterDelta int

	// NewCount is the group's accepted counter after the write.
	NewCount int

	// GroupStatus is the status the group must hold after the write.
	GroupStatus group.Status

	// StatusChanged reports whether GroupStatus differs from the
	// group's current status.
	StatusChanged bool

	// Cascade reports that the write is an acceptance: the user's other
	// requested/invited memberships in the draw must be destroyed as
	// part of the same operation.
	Cascade bool

	// LockApplied reports that the write sets the locked flag; the
	// engine must then check whether the group's last unlocked accepted
	// membership just locked.
	LockApplied bool
}

// PlanChange computes the plan for a membership write. before is nil for a
// create, after is nil for a destroy; both non-nil for an update. g is the
// group snapshot read under lock in the current transaction.
func PlanChange(before, after *Membership, g *group.Group) Plan {
	wasAccepted := before != nil && before.Status.Accepted()
	isAccepted := after != nil && after.Status.Accepted()

	var delta int
	switch {
	case isAccepted && !wasAccepted:
		delta = 1
	case wasAccepted && !isAccepted:
		// Covers destroy-while-accepted; an accepted -> non-accepted
		// edit never passes validation.
		delta = -1
	}

	newCount := g.MembershipsCount + delta
	if newCount < 0 {
		newCount = 0
	}
	status, changed := g.CapacityTransition(newCount)

	return Plan{
		CounterDelta:  delta,
		NewCount:      newCount,
		GroupStatus:   status,
		StatusChanged: changed,
		Cascade:       isAccepted && !wasAccepted,
		LockApplied:   after != nil && after.Locked && (before == nil || !before.Locked),
	}
}
