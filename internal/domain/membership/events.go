package membership

import (
	"github.com/meonBot/master-vesta-2/internal/domain/group"
	"github.com/meonBot/master-vesta-2/internal/domain/shared"
)

// CreatedEvent fires when a membership row is persisted.
type CreatedEvent struct {
	shared.BaseEvent
	GroupID string
	UserID  string
	DrawID  string
	Status  Status
}

// Payload returns the event data for serialization.
func (e CreatedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"group_id": e.GroupID,
		"user_id":  e.UserID,
		"draw_id":  e.DrawID,
		"status":   string(e.Status),
	}
}

// AcceptedEvent fires when a membership transitions into accepted, whether
// on create (leader join) or on update.
type AcceptedEvent struct {
	shared.BaseEvent
	GroupID string
	UserID  string
	DrawID  string
}

// Payload returns the event data for serialization.
func (e AcceptedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"group_id": e.GroupID,
		"user_id":  e.UserID,
		"draw_id":  e.DrawID,
	}
}

// LockedEvent fires when a membership's locked flag is set.
type LockedEvent struct {
	shared.BaseEvent
	GroupID string
	UserID  string
}

// Payload returns the event data for serialization.
func (e LockedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"group_id": e.GroupID,
		"user_id":  e.UserID,
	}
}

// DestroyedEvent fires when a membership row is removed. Cascaded marks
// destructions performed by the reconciler on acceptance elsewhere.
type DestroyedEvent struct {
	shared.BaseEvent
	GroupID  string
	UserID   string
	DrawID   string
	Status   Status
	Cascaded bool
	Forced   bool
}

// Payload returns the event data for serialization.
func (e DestroyedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"group_id": e.GroupID,
		"user_id":  e.UserID,
		"draw_id":  e.DrawID,
		"status":   string(e.Status),
		"cascaded": e.Cascaded,
		"forced":   e.Forced,
	}
}

// GroupCreatedEvent fires when a group is created together with its
// leader's membership.
type GroupCreatedEvent struct {
	shared.BaseEvent
	GroupID  string
	DrawID   string
	LeaderID string
	Size     int
}

// Payload returns the event data for serialization.
func (e GroupCreatedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"group_id":  e.GroupID,
		"draw_id":   e.DrawID,
		"leader_id": e.LeaderID,
		"size":      e.Size,
	}
}

// GroupStatusChangedEvent fires when a write moves the owning group between
// lifecycle states.
type GroupStatusChangedEvent struct {
	shared.BaseEvent
	GroupID string
	DrawID  string
	From    group.Status
	To      group.Status
	Count   int
}

// Payload returns the event data for serialization.
func (e GroupStatusChangedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"group_id": e.GroupID,
		"draw_id":  e.DrawID,
		"from":     string(e.From),
		"to":       string(e.To),
		"count":    e.Count,
	}
}

// GroupDisbandedEvent fires when a group and all of its memberships are
// removed through the force path.
type GroupDisbandedEvent struct {
	shared.BaseEvent
	GroupID string
	DrawID  string
}

// Payload returns the event data for serialization.
func (e GroupDisbandedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"group_id": e.GroupID,
		"draw_id":  e.DrawID,
	}
}
