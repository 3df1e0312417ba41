package eventhandler

import (
	"context"
	"log/slog"

	"github.com/meonBot/master-vesta-2/internal/domain/membership"
	"github.com/meonBot/master-vesta-2/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ON MEMBERSHIP DESTROYED HANDLER
// Audit trail for destructions. Cascaded and forced destructions happen
// without the affected student acting, so they are the rows someone will
// eventually ask about.
// ══════════════════════════════════════════════════════════════════════════════

// OnMembershipDestroyedHandler writes an audit log line per destruction.
type OnMembershipDestroyedHandler struct {
	logger *slog.Logger
}

// NewOnMembershipDestroyedHandler creates a new OnMembershipDestroyedHandler.
func NewOnMembershipDestroyedHandler(logger *slog.Logger) *OnMembershipDestroyedHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &OnMembershipDestroyedHandler{logger: logger}
}

// Register subscribes the handler.
func (h *OnMembershipDestroyedHandler) Register(bus shared.EventBus) error {
	return bus.Subscribe(shared.EventMembershipDestroyed, h.Handle)
}

// Handle logs the destruction.
func (h *OnMembershipDestroyedHandler) Handle(event shared.Event) error {
	ev, ok := event.(membership.DestroyedEvent)
	if !ok {
		return nil
	}

	level := slog.LevelInfo
	if ev.Cascaded || ev.Forced {
		level = slog.LevelWarn
	}
	h.logger.Log(context.Background(), level, "membership destroyed",
		"group_id", ev.GroupID,
		"user_id", ev.UserID,
		"draw_id", ev.DrawID,
		"status", string(ev.Status),
		"cascaded", ev.Cascaded,
		"forced", ev.Forced,
	)
	return nil
}
