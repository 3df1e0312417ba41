package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/meonBot/master-vesta-2/internal/application/command"
	"github.com/meonBot/master-vesta-2/internal/application/query"
)

// actorHeader carries the acting user's identity. Authentication sits in
// front of this service; the gateway injects the header.
const actorHeader = "X-User-ID"

func (s *Server) actorID(w http.ResponseWriter, r *http.Request) (string, bool) {
	actor := r.Header.Get(actorHeader)
	if actor == "" {
		s.respondJSON(w, http.StatusBadRequest, errorResponse{
			Error:   "missing_actor",
			Message: "X-User-ID header is required",
		})
		return "", false
	}
	return actor, true
}

func (s *Server) badRequest(w http.ResponseWriter, err error) {
	s.respondJSON(w, http.StatusBadRequest, errorResponse{
		Error:   "bad_request",
		Message: err.Error(),
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// GROUP ENDPOINTS
// ══════════════════════════════════════════════════════════════════════════════

// handleCreateGroup handles POST /api/v1/draws/{drawID}/groups.
// The acting user becomes the group's leader.
func (s *Server) handleCreateGroup(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actorID(w, r)
	if !ok {
		return
	}

	var body struct {
		Size int `json:"size"`
	}
	if err := decodeJSON(r, &body); err != nil {
		s.respondError(w, r, err)
		return
	}

	cmd := command.CreateGroupCommand{
		DrawID:   chi.URLParam(r, "drawID"),
		LeaderID: actor,
		Size:     body.Size,
	}
	if err := cmd.Validate(); err != nil {
		s.badRequest(w, err)
		return
	}

	res, err := s.deps.CreateGroup.Handle(r.Context(), cmd)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, map[string]any{
		"group_id":      res.Group.ID,
		"status":        res.Group.Status.String(),
		"size":          res.Group.Size,
		"cascaded_from": res.CascadedFrom,
	})
}

// handleGetGroup handles GET /api/v1/groups/{groupID}.
func (s *Server) handleGetGroup(w http.ResponseWriter, r *http.Request) {
	res, err := s.deps.GetGroup.Handle(r.Context(), query.GetGroupQuery{
		GroupID: chi.URLParam(r, "groupID"),
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, res.Roster)
}

// handleBeginFinalizing handles POST /api/v1/groups/{groupID}/finalize.
func (s *Server) handleBeginFinalizing(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actorID(w, r)
	if !ok {
		return
	}

	res, err := s.deps.BeginFinalizing.Handle(r.Context(), command.BeginFinalizingCommand{
		GroupID: chi.URLParam(r, "groupID"),
		ActorID: actor,
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{
		"group_id": res.Group.ID,
		"status":   res.Group.Status.String(),
	})
}

// handleAssignSuite handles POST /api/v1/groups/{groupID}/suite.
func (s *Server) handleAssignSuite(w http.ResponseWriter, r *http.Request) {
	var body struct {
		SuiteID string `json:"suite_id"`
	}
	if err := decodeJSON(r, &body); err != nil {
		s.respondError(w, r, err)
		return
	}

	cmd := command.AssignSuiteCommand{
		GroupID: chi.URLParam(r, "groupID"),
		SuiteID: body.SuiteID,
	}
	if err := cmd.Validate(); err != nil {
		s.badRequest(w, err)
		return
	}

	res, err := s.deps.AssignSuite.Handle(r.Context(), cmd)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{
		"group_id": res.Group.ID,
		"suite_id": res.Group.SuiteID,
		"status":   res.Group.Status.String(),
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// MEMBERSHIP ENDPOINTS
// ══════════════════════════════════════════════════════════════════════════════

// handleRequestMembership handles POST /api/v1/groups/{groupID}/requests.
// The acting user asks to join the group.
func (s *Server) handleRequestMembership(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actorID(w, r)
	if !ok {
		return
	}

	res, err := s.deps.RequestMembership.Handle(r.Context(), command.RequestMembershipCommand{
		GroupID: chi.URLParam(r, "groupID"),
		UserID:  actor,
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, map[string]any{
		"group_id": res.Membership.GroupID,
		"user_id":  res.Membership.UserID,
		"status":   res.Membership.Status.String(),
	})
}

// handleInviteMember handles POST /api/v1/groups/{groupID}/invitations.
// The acting user must be the group's leader.
func (s *Server) handleInviteMember(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actorID(w, r)
	if !ok {
		return
	}

	var body struct {
		UserID string `json:"user_id"`
	}
	if err := decodeJSON(r, &body); err != nil {
		s.respondError(w, r, err)
		return
	}

	cmd := command.InviteMemberCommand{
		GroupID:   chi.URLParam(r, "groupID"),
		InviterID: actor,
		UserID:    body.UserID,
	}
	if err := cmd.Validate(); err != nil {
		s.badRequest(w, err)
		return
	}

	res, err := s.deps.InviteMember.Handle(r.Context(), cmd)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, map[string]any{
		"group_id": res.Membership.GroupID,
		"user_id":  res.Membership.UserID,
		"status":   res.Membership.Status.String(),
	})
}

// handleAcceptMembership handles
// POST /api/v1/groups/{groupID}/members/{userID}/accept.
func (s *Server) handleAcceptMembership(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actorID(w, r)
	if !ok {
		return
	}

	res, err := s.deps.AcceptMembership.Handle(r.Context(), command.AcceptMembershipCommand{
		GroupID: chi.URLParam(r, "groupID"),
		UserID:  chi.URLParam(r, "userID"),
		ActorID: actor,
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{
		"group_id":      res.Membership.GroupID,
		"user_id":       res.Membership.UserID,
		"status":        res.Membership.Status.String(),
		"group_status":  res.Group.Status.String(),
		"member_count":  res.Group.MembershipsCount,
		"cascaded_from": res.CascadedFrom,
	})
}

// handleLeaveGroup handles DELETE /api/v1/groups/{groupID}/members/{userID}.
func (s *Server) handleLeaveGroup(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actorID(w, r)
	if !ok {
		return
	}

	res, err := s.deps.LeaveGroup.Handle(r.Context(), command.LeaveGroupCommand{
		GroupID: chi.URLParam(r, "groupID"),
		UserID:  chi.URLParam(r, "userID"),
		ActorID: actor,
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	resp := map[string]any{"disbanded": res.Disbanded}
	if res.Group != nil {
		resp["group_status"] = res.Group.Status.String()
		resp["member_count"] = res.Group.MembershipsCount
	}
	s.respondJSON(w, http.StatusOK, resp)
}

// handleLockMembership handles
// POST /api/v1/groups/{groupID}/members/{userID}/lock.
func (s *Server) handleLockMembership(w http.ResponseWriter, r *http.Request) {
	res, err := s.deps.LockMembership.Handle(r.Context(), command.LockMembershipCommand{
		GroupID: chi.URLParam(r, "groupID"),
		UserID:  chi.URLParam(r, "userID"),
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{
		"group_id":     res.Membership.GroupID,
		"user_id":      res.Membership.UserID,
		"locked":       res.Membership.Locked,
		"group_locked": res.GroupLocked,
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// DRAW AND USER ENDPOINTS
// ══════════════════════════════════════════════════════════════════════════════

// handleCreateDraw handles POST /api/v1/draws.
func (s *Server) handleCreateDraw(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name string `json:"name"`
	}
	if err := decodeJSON(r, &body); err != nil {
		s.respondError(w, r, err)
		return
	}

	cmd := command.CreateDrawCommand{Name: body.Name}
	if err := cmd.Validate(); err != nil {
		s.badRequest(w, err)
		return
	}

	res, err := s.deps.CreateDraw.Handle(r.Context(), cmd)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, map[string]any{
		"draw_id": res.Draw.ID,
		"name":    res.Draw.Name,
		"status":  res.Draw.Status.String(),
	})
}

// handleAdvanceDraw handles POST /api/v1/draws/{drawID}/status.
func (s *Server) handleAdvanceDraw(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Status string `json:"status"`
	}
	if err := decodeJSON(r, &body); err != nil {
		s.respondError(w, r, err)
		return
	}

	cmd := command.AdvanceDrawCommand{
		DrawID: chi.URLParam(r, "drawID"),
		Status: body.Status,
	}
	if err := cmd.Validate(); err != nil {
		s.badRequest(w, err)
		return
	}

	res, err := s.deps.AdvanceDraw.Handle(r.Context(), cmd)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{
		"draw_id": res.Draw.ID,
		"status":  res.Draw.Status.String(),
	})
}

// handleRegisterUser handles POST /api/v1/draws/{drawID}/users.
func (s *Server) handleRegisterUser(w http.ResponseWriter, r *http.Request) {
	var body struct {
		DisplayName string `json:"display_name"`
		Email       string `json:"email"`
		Intent      string `json:"intent"`
	}
	if err := decodeJSON(r, &body); err != nil {
		s.respondError(w, r, err)
		return
	}

	cmd := command.RegisterUserCommand{
		DrawID:      chi.URLParam(r, "drawID"),
		DisplayName: body.DisplayName,
		Email:       body.Email,
		Intent:      body.Intent,
	}
	if err := cmd.Validate(); err != nil {
		s.badRequest(w, err)
		return
	}

	res, err := s.deps.RegisterUser.Handle(r.Context(), cmd)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, map[string]any{
		"user_id":      res.User.ID,
		"draw_id":      res.User.DrawID,
		"display_name": res.User.DisplayName,
		"intent":       string(res.User.Intent),
	})
}

// handleTeardownDraw handles DELETE /api/v1/draws/{drawID}/groups.
func (s *Server) handleTeardownDraw(w http.ResponseWriter, r *http.Request) {
	res, err := s.deps.TeardownDraw.Handle(r.Context(), command.TeardownDrawCommand{
		DrawID: chi.URLParam(r, "drawID"),
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{
		"groups_removed":  res.GroupsRemoved,
		"members_removed": res.MembersRemoved,
	})
}

// handleGetUserMemberships handles GET /api/v1/users/{userID}/memberships.
func (s *Server) handleGetUserMemberships(w http.ResponseWriter, r *http.Request) {
	res, err := s.deps.GetUserMemberships.Handle(r.Context(), query.GetUserMembershipsQuery{
		UserID: chi.URLParam(r, "userID"),
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, res)
}

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH
// ══════════════════════════════════════════════════════════════════════════════

// handleHealth handles GET /healthz, probing every registered dependency.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	healthy := true
	checks := make(map[string]string, len(s.deps.HealthChecks))
	for name, check := range s.deps.HealthChecks {
		if err := check(ctx); err != nil {
			healthy = false
			checks[name] = err.Error()
			continue
		}
		checks[name] = "ok"
	}

	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}
	s.respondJSON(w, status, map[string]any{
		"healthy":   healthy,
		"checks":    checks,
		"timestamp": time.Now().UTC(),
	})
}
