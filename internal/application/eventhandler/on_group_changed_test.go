package eventhandler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meonBot/master-vesta-2/internal/domain/draw"
	"github.com/meonBot/master-vesta-2/internal/domain/group"
	"github.com/meonBot/master-vesta-2/internal/domain/membership"
	"github.com/meonBot/master-vesta-2/internal/domain/shared"
)

// recordingCache captures invalidation calls.
type recordingCache struct {
	invalidated      []string
	invalidatedDraws []string
}

func (c *recordingCache) GetRoster(ctx context.Context, groupID string) (*group.Roster, error) {
	return nil, shared.ErrNotFound
}

func (c *recordingCache) SetRoster(ctx context.Context, roster *group.Roster, ttl time.Duration) error {
	return nil
}

func (c *recordingCache) Invalidate(ctx context.Context, groupID string) error {
	c.invalidated = append(c.invalidated, groupID)
	return nil
}

func (c *recordingCache) InvalidateDraw(ctx context.Context, drawID string) error {
	c.invalidatedDraws = append(c.invalidatedDraws, drawID)
	return nil
}

func TestHandleInvalidatesGroupRoster(t *testing.T) {
	cache := &recordingCache{}
	h := NewOnGroupChangedHandler(cache, nil)

	ev := membership.DestroyedEvent{
		BaseEvent: shared.NewBaseEvent(shared.EventMembershipDestroyed, "m1"),
		GroupID:   "g1",
		UserID:    "u1",
		DrawID:    "d1",
		Status:    membership.StatusRequested,
	}
	require.NoError(t, h.Handle(ev))

	assert.Equal(t, []string{"g1"}, cache.invalidated)
	assert.Empty(t, cache.invalidatedDraws)
}

func TestHandleDrawTeardownInvalidatesWholeDraw(t *testing.T) {
	cache := &recordingCache{}
	h := NewOnGroupChangedHandler(cache, nil)

	ev := draw.TornDownEvent{
		BaseEvent:     shared.NewBaseEvent(shared.EventDrawTornDown, "d1"),
		DrawID:        "d1",
		GroupsRemoved: 3,
	}
	require.NoError(t, h.Handle(ev))

	assert.Equal(t, []string{"d1"}, cache.invalidatedDraws)
	assert.Empty(t, cache.invalidated)
}

// bareEvent carries no payload at all.
type bareEvent struct {
	shared.BaseEvent
}

func (e bareEvent) Payload() map[string]interface{} {
	return map[string]interface{}{}
}

func TestHandleIgnoresEventsWithoutGroup(t *testing.T) {
	cache := &recordingCache{}
	h := NewOnGroupChangedHandler(cache, nil)

	ev := bareEvent{BaseEvent: shared.NewBaseEvent(shared.EventGroupCreated, "g1")}
	require.NoError(t, h.Handle(ev))
	assert.Empty(t, cache.invalidated)
}
