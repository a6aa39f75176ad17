package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/gatehouse/pkg/identity"
)

func TestGetOrganization(t *testing.T) {
	t.Run("member reads own organization", func(t *testing.T) {
		ts := newTestServer(t)
		ts.store.putOrg(&identity.Organization{ID: "org-a", Name: "Alpha"})
		_, token := ts.seedUser(t, "user-1", identity.RoleMember, "org-a")

		rec := ts.get(t, "/api/v1/organizations/org-a", token)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		got := decodeBody[identity.Organization](t, rec)
		assert.Equal(t, "Alpha", got.Name)
	})

	t.Run("cross-tenant read forbidden even for admins", func(t *testing.T) {
		ts := newTestServer(t)
		ts.store.putOrg(&identity.Organization{ID: "org-a", Name: "Alpha"})
		ts.store.putOrg(&identity.Organization{ID: "org-b", Name: "Beta"})
		_, token := ts.seedUser(t, "admin-1", identity.RoleAdmin, "org-a")

		rec := ts.get(t, "/api/v1/organizations/org-b", token)
		assert.Equal(t, http.StatusForbidden, rec.Code)
		// The body matches a role denial; the caller cannot tell which
		// check failed.
		assert.Contains(t, rec.Body.String(), "insufficient permissions")
	})

	t.Run("caller without organization forbidden", func(t *testing.T) {
		ts := newTestServer(t)
		ts.store.putOrg(&identity.Organization{ID: "org-a", Name: "Alpha"})
		_, token := ts.seedUser(t, "user-1", identity.RoleMember, "")

		rec := ts.get(t, "/api/v1/organizations/org-a", token)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}

func TestListOrganizationMembers(t *testing.T) {
	t.Run("manager lists own organization", func(t *testing.T) {
		ts := newTestServer(t)
		ts.store.putOrg(&identity.Organization{ID: "org-a", Name: "Alpha"})
		_, token := ts.seedUser(t, "manager-1", identity.RoleManager, "org-a")
		ts.seedUser(t, "crew-1", identity.RoleCrew, "org-a")
		ts.seedUser(t, "outsider", identity.RoleMember, "org-b")

		rec := ts.get(t, "/api/v1/organizations/org-a/members", token)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		members := decodeBody[[]identity.User](t, rec)
		require.Len(t, members, 2)
		for _, m := range members {
			require.NotNil(t, m.OrganizationID)
			assert.Equal(t, "org-a", *m.OrganizationID)
		}
	})

	t.Run("crew role not permitted", func(t *testing.T) {
		ts := newTestServer(t)
		_, token := ts.seedUser(t, "crew-1", identity.RoleCrew, "org-a")

		rec := ts.get(t, "/api/v1/organizations/org-a/members", token)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("cross-tenant listing forbidden", func(t *testing.T) {
		ts := newTestServer(t)
		_, token := ts.seedUser(t, "manager-1", identity.RoleManager, "org-a")
		ts.seedUser(t, "user-b", identity.RoleMember, "org-b")

		rec := ts.get(t, "/api/v1/organizations/org-b/members", token)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("empty organization returns empty list", func(t *testing.T) {
		ts := newTestServer(t)
		_, token := ts.seedUser(t, "leader-1", identity.RoleLeader, "org-lonely")

		rec := ts.get(t, "/api/v1/organizations/org-lonely/members", token)
		require.Equal(t, http.StatusOK, rec.Code)
		// The leader is a member of the organization themselves.
		members := decodeBody[[]identity.User](t, rec)
		assert.Len(t, members, 1)
	})
}
