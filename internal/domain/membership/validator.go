package membership

import (
	"github.com/meonBot/master-vesta-2/internal/domain/group"
	"github.com/meonBot/master-vesta-2/internal/domain/user"
)

// The validator decides accept/reject for a candidate membership before any
// persistence. It is a pure function of the candidate row, the previously
// committed row (for updates), the group snapshot, and the user's sibling
// memberships within the draw. All rejections are record-level: they come
// back as a *ValidationError carrying human-readable messages, never as a
// panic or a field-scoped error.

// ValidateNew checks a membership that does not exist yet.
// siblings is the set of the user's memberships across the draw, read under
// lock in the same transaction.
func ValidateNew(m *Membership, u *user.User, g *group.Group, siblings []*Membership) error {
	verr := &ValidationError{}

	if !m.Status.IsValid() {
		verr.add(MsgInvalidStatus)
	}
	if !u.OnCampus() {
		verr.add(MsgIntentRequired)
	}
	if u.DrawID == "" || u.DrawID != g.DrawID {
		verr.add(MsgDrawMismatch)
	}
	if !g.Status.AcceptsMembers() {
		verr.add(MsgGroupNotOpen)
	}

	for _, s := range siblings {
		if s.GroupID == m.GroupID {
			verr.add(MsgDuplicateMembership)
		}
		if m.Status.Accepted() && s.Status.Accepted() {
			verr.add(MsgAlreadyCommitted)
		}
	}

	validateLockedField(verr, m, g)
	return verr.orNil()
}

// ValidateUpdate checks a mutation against the previously committed row.
// persisted must be the row as read inside the current transaction, not a
// stale caller-supplied copy.
func ValidateUpdate(persisted, updated *Membership, g *group.Group, siblings []*Membership) error {
	verr := &ValidationError{}

	// A locked row rejects every edit, including no-op writes of
	// already-correct values.
	if persisted.Locked {
		verr.add(MsgCannotEditLocked)
		return verr
	}

	if updated.GroupID != persisted.GroupID || updated.UserID != persisted.UserID {
		verr.add(MsgCannotChangeAssociation)
	}
	if persisted.Status.Accepted() && updated.Status != persisted.Status {
		verr.add(MsgCannotChangeStatus)
	}
	if !updated.Status.IsValid() {
		verr.add(MsgInvalidStatus)
	}

	// Transition into accepted re-checks the single-commitment rule.
	if updated.Status.Accepted() && !persisted.Status.Accepted() {
		for _, s := range siblings {
			if s.GroupID == persisted.GroupID && s.UserID == persisted.UserID {
				continue
			}
			if s.Status.Accepted() {
				verr.add(MsgAlreadyCommitted)
			}
		}
	}

	validateLockedField(verr, updated, g)
	return verr.orNil()
}

// ValidateDestroy checks that a row may leave through the normal destroy
// path. The force path used by trusted lifecycle code bypasses this.
func ValidateDestroy(persisted *Membership) error {
	if persisted.Locked {
		verr := &ValidationError{}
		verr.add(MsgCannotDestroyLocked)
		return verr
	}
	return nil
}

// validateLockedField enforces the locked-flag invariant on every save:
// locked requires an accepted status and a finalizing group.
func validateLockedField(verr *ValidationError, m *Membership, g *group.Group) {
	if m.Locked && !(m.Status.Accepted() && g.Status == group.StatusFinalizing) {
		verr.add(MsgLockedInvalid)
	}
}
