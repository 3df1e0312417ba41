// Package eventhandler contains subscribers for domain events. Handlers
// run after the transaction that produced the event has committed; they
// drive side effects like cache invalidation and audit logging, never
// further domain writes.
package eventhandler

import (
	"context"
	"log/slog"

	"github.com/meonBot/master-vesta-2/internal/domain/group"
	"github.com/meonBot/master-vesta-2/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ON GROUP CHANGED HANDLER
// Drops the cached roster of every group a membership write touched. The
// cache is repopulated lazily by the next GetGroup query, so losing an
// event only costs a stale read until the TTL expires.
// ══════════════════════════════════════════════════════════════════════════════

// OnGroupChangedHandler invalidates roster cache entries.
type OnGroupChangedHandler struct {
	cache  group.Cache
	logger *slog.Logger
}

// NewOnGroupChangedHandler creates a new OnGroupChangedHandler.
func NewOnGroupChangedHandler(cache group.Cache, logger *slog.Logger) *OnGroupChangedHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &OnGroupChangedHandler{cache: cache, logger: logger}
}

// Register subscribes the handler to every event type that changes what a
// roster read would return.
func (h *OnGroupChangedHandler) Register(bus shared.EventBus) error {
	types := []shared.EventType{
		shared.EventMembershipCreated,
		shared.EventMembershipAccepted,
		shared.EventMembershipLocked,
		shared.EventMembershipDestroyed,
		shared.EventGroupCreated,
		shared.EventGroupStatusChanged,
		shared.EventGroupDisbanded,
		shared.EventDrawTornDown,
	}
	for _, t := range types {
		if err := bus.Subscribe(t, h.Handle); err != nil {
			return err
		}
	}
	return nil
}

// Handle invalidates the roster of the group named in the event payload.
// A draw teardown drops every cached roster of the draw in one sweep.
func (h *OnGroupChangedHandler) Handle(event shared.Event) error {
	if event.EventType() == shared.EventDrawTornDown {
		drawID, _ := event.Payload()["draw_id"].(string)
		if drawID == "" {
			return nil
		}
		if err := h.cache.InvalidateDraw(context.Background(), drawID); err != nil {
			h.logger.Warn("draw roster invalidation failed",
				"draw_id", drawID,
				"error", err,
			)
		}
		return nil
	}

	groupID, _ := event.Payload()["group_id"].(string)
	if groupID == "" {
		return nil
	}

	if err := h.cache.Invalidate(context.Background(), groupID); err != nil {
		// Stale reads are bounded by the roster TTL; log and move on.
		h.logger.Warn("roster invalidation failed",
			"group_id", groupID,
			"event", string(event.EventType()),
			"error", err,
		)
	}
	return nil
}
