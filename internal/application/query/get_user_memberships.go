package query

import (
	"context"
	"errors"
	"fmt"

	"github.com/meonBot/master-vesta-2/internal/domain/group"
	"github.com/meonBot/master-vesta-2/internal/domain/membership"
	"github.com/meonBot/master-vesta-2/internal/domain/user"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET USER MEMBERSHIPS QUERY
// Returns a student's standing across their draw: every membership row
// with the owning group's snapshot attached. At most one entry is
// accepted.
// ══════════════════════════════════════════════════════════════════════════════

// GetUserMembershipsQuery contains the parameters of the lookup.
type GetUserMembershipsQuery struct {
	// UserID is the student to fetch memberships for.
	UserID string
}

// Validate validates the query.
func (q GetUserMembershipsQuery) Validate() error {
	if q.UserID == "" {
		return errors.New("get_user_memberships: user_id is required")
	}
	return nil
}

// UserMembershipDTO is one membership line with its group attached.
type UserMembershipDTO struct {
	// GroupID is the owning group.
	GroupID string `json:"group_id"`

	// GroupStatus is the group's lifecycle state.
	GroupStatus string `json:"group_status"`

	// LeaderID is the group's leader.
	LeaderID string `json:"leader_id"`

	// Status is the commitment level of this row.
	Status string `json:"status"`

	// Locked reports whether the row is frozen.
	Locked bool `json:"locked"`
}

// GetUserMembershipsResult contains the user's memberships.
type GetUserMembershipsResult struct {
	// UserID echoes the queried user.
	UserID string `json:"user_id"`

	// DrawID is the user's draw.
	DrawID string `json:"draw_id"`

	// Memberships are the user's rows across the draw.
	Memberships []UserMembershipDTO `json:"memberships"`

	// AcceptedGroupID is the group the user has committed to, empty if
	// none.
	AcceptedGroupID string `json:"accepted_group_id,omitempty"`
}

// GetUserMembershipsHandler handles the GetUserMembershipsQuery.
type GetUserMembershipsHandler struct {
	userRepo    user.Repository
	groupRepo   group.Repository
	memberships membership.Reader
}

// NewGetUserMembershipsHandler creates a new GetUserMembershipsHandler.
func NewGetUserMembershipsHandler(
	userRepo user.Repository,
	groupRepo group.Repository,
	memberships membership.Reader,
) *GetUserMembershipsHandler {
	return &GetUserMembershipsHandler{
		userRepo:    userRepo,
		groupRepo:   groupRepo,
		memberships: memberships,
	}
}

// Handle executes the get user memberships query.
func (h *GetUserMembershipsHandler) Handle(ctx context.Context, q GetUserMembershipsQuery) (*GetUserMembershipsResult, error) {
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("get_user_memberships: validation failed: %w", err)
	}

	u, err := h.userRepo.GetByID(ctx, q.UserID)
	if err != nil {
		return nil, err
	}

	rows, err := h.memberships.ListByUser(ctx, u.DrawID, u.ID)
	if err != nil {
		return nil, fmt.Errorf("get_user_memberships: listing failed: %w", err)
	}

	result := &GetUserMembershipsResult{
		UserID:      u.ID,
		DrawID:      u.DrawID,
		Memberships: make([]UserMembershipDTO, 0, len(rows)),
	}
	for _, m := range rows {
		dto := UserMembershipDTO{
			GroupID: m.GroupID,
			Status:  m.Status.String(),
			Locked:  m.Locked,
		}
		if g, err := h.groupRepo.GetByID(ctx, m.GroupID); err == nil {
			dto.GroupStatus = g.Status.Normalize().String()
			dto.LeaderID = g.LeaderID
		}
		if m.Status.Accepted() {
			result.AcceptedGroupID = m.GroupID
		}
		result.Memberships = append(result.Memberships, dto)
	}
	return result, nil
}
