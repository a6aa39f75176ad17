package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/gatehouse/pkg/httputil"
	"github.com/platinummonkey/gatehouse/pkg/identity"
	"github.com/platinummonkey/gatehouse/pkg/observability"
	"github.com/platinummonkey/gatehouse/pkg/storage"
)

type updateRoleRequest struct {
	Role string `json:"role"`
}

type assignOrganizationRequest struct {
	OrganizationID string `json:"organization_id"`
}

// updateUserRole sets a user's role. Admin only by policy.
func (s *Server) updateUserRole(w http.ResponseWriter, r *http.Request) {
	var req updateRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteBadRequest(w, "invalid request body")
		return
	}
	role, ok := identity.ParseRole(req.Role)
	if !ok {
		httputil.WriteBadRequest(w, "unknown role")
		return
	}

	s.applyUserUpdate(w, r, identity.UserUpdate{Role: &role}, "role updated")
}

// assignUserOrganization moves a user into an organization. Organization
// membership only changes through this explicit path.
func (s *Server) assignUserOrganization(w http.ResponseWriter, r *http.Request) {
	var req assignOrganizationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteBadRequest(w, "invalid request body")
		return
	}
	if req.OrganizationID == "" {
		httputil.WriteBadRequest(w, "organization_id is required")
		return
	}

	// Reject assignment to an organization that does not exist.
	if _, err := s.store.FindOrganization(r.Context(), req.OrganizationID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			httputil.WriteBadRequest(w, "unknown organization")
			return
		}
		observability.FromContext(r.Context()).WithError(err).Error("organization lookup failed")
		httputil.WriteServiceUnavailable(w, "organization lookup unavailable")
		return
	}

	s.applyUserUpdate(w, r, identity.UserUpdate{OrganizationID: &req.OrganizationID}, "organization assigned")
}

// deactivateUser soft-disables an account. The record is kept; there is
// no hard delete.
func (s *Server) deactivateUser(w http.ResponseWriter, r *http.Request) {
	inactive := false
	s.applyUserUpdate(w, r, identity.UserUpdate{IsActive: &inactive}, "user deactivated")
}

// reactivateUser re-enables a previously deactivated account.
func (s *Server) reactivateUser(w http.ResponseWriter, r *http.Request) {
	active := true
	s.applyUserUpdate(w, r, identity.UserUpdate{IsActive: &active}, "user reactivated")
}

// applyUserUpdate applies a typed patch to the user named in the route and
// writes the updated record.
func (s *Server) applyUserUpdate(w http.ResponseWriter, r *http.Request, update identity.UserUpdate, action string) {
	userID := mux.Vars(r)["id"]
	logger := observability.FromContext(r.Context()).WithField("target_user_id", userID)

	updated, err := s.store.UpdateUser(r.Context(), userID, update)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			httputil.WriteNotFound(w, "user not found")
			return
		}
		logger.WithError(err).Error("user update failed")
		httputil.WriteServiceUnavailable(w, "user update unavailable")
		return
	}

	logger.Info(action)
	httputil.WriteSuccess(w, updated)
}
