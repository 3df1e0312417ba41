package draw

import (
	"github.com/meonBot/master-vesta-2/internal/domain/shared"
)

// TornDownEvent fires when a draw's group structure has been dismantled:
// every group disbanded and every membership destroyed.
type TornDownEvent struct {
	shared.BaseEvent
	DrawID         string
	GroupsRemoved  int
	MembersRemoved int
}

// Payload returns the event data for serialization.
func (e TornDownEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"draw_id":         e.DrawID,
		"groups_removed":  e.GroupsRemoved,
		"members_removed": e.MembersRemoved,
	}
}
