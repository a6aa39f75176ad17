package api

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/gatehouse/pkg/guard"
	"github.com/platinummonkey/gatehouse/pkg/httputil"
	"github.com/platinummonkey/gatehouse/pkg/identity"
	"github.com/platinummonkey/gatehouse/pkg/observability"
	"github.com/platinummonkey/gatehouse/pkg/storage"
)

// getOrganization returns the caller's organization. The scoper pins the
// route's {id} to the caller's own organization: cross-tenant reads get
// the same 403 as a role denial.
func (s *Server) getOrganization(w http.ResponseWriter, r *http.Request) {
	authCtx := guard.GetAuthorizedContext(r)
	orgID, err := s.scoper.Scope(authCtx, mux.Vars(r)["id"])
	if err != nil {
		httputil.WriteForbidden(w, "insufficient permissions")
		return
	}

	org, err := s.store.FindOrganization(r.Context(), orgID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			httputil.WriteNotFound(w, "organization not found")
			return
		}
		observability.FromContext(r.Context()).WithError(err).Error("organization lookup failed")
		httputil.WriteServiceUnavailable(w, "organization lookup unavailable")
		return
	}
	httputil.WriteSuccess(w, org)
}

// listOrganizationMembers lists the users in the caller's organization.
func (s *Server) listOrganizationMembers(w http.ResponseWriter, r *http.Request) {
	authCtx := guard.GetAuthorizedContext(r)
	orgID, err := s.scoper.Scope(authCtx, mux.Vars(r)["id"])
	if err != nil {
		httputil.WriteForbidden(w, "insufficient permissions")
		return
	}

	members, err := s.store.ListUsersByOrganization(r.Context(), orgID)
	if err != nil {
		observability.FromContext(r.Context()).WithError(err).Error("member listing failed")
		httputil.WriteServiceUnavailable(w, "member listing unavailable")
		return
	}
	if members == nil {
		members = []*identity.User{}
	}
	httputil.WriteSuccess(w, members)
}
