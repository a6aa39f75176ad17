// Package tenant derives the mandatory organization scope for protected
// operations and rejects cross-tenant access.
package tenant

import (
	"github.com/platinummonkey/gatehouse/pkg/identity"
	"github.com/platinummonkey/gatehouse/pkg/observability"
)

// Scoper enforces organization boundaries. The organization id always
// comes from the caller's authorized context, never from request input,
// so parameter tampering cannot cross tenants.
type Scoper struct {
	metrics *observability.Metrics
}

// New creates a scoper. metrics may be nil.
func New(metrics *observability.Metrics) *Scoper {
	return &Scoper{metrics: metrics}
}

// Scope authorizes access to a record owned by targetOrganizationID and
// returns the caller's organization id. It fails with
// identity.ErrForbidden when the caller has no organization or when the
// target belongs to a different one. A cross-tenant miss is reported
// exactly like a role denial, never as not-found, so probing cannot
// reveal whether a foreign record exists.
func (s *Scoper) Scope(authCtx *identity.AuthorizedContext, targetOrganizationID string) (string, error) {
	orgID, err := s.Filter(authCtx)
	if err != nil {
		return "", err
	}
	if targetOrganizationID != orgID {
		s.recordDenial()
		return "", identity.ErrForbidden
	}
	return orgID, nil
}

// Filter returns the caller's organization id for use as the mandatory
// filter on listings and the assigned owner on creations. A caller not
// yet assigned to an organization is denied.
func (s *Scoper) Filter(authCtx *identity.AuthorizedContext) (string, error) {
	if authCtx == nil || authCtx.OrganizationID == nil || *authCtx.OrganizationID == "" {
		s.recordDenial()
		return "", identity.ErrForbidden
	}
	return *authCtx.OrganizationID, nil
}

func (s *Scoper) recordDenial() {
	if s.metrics != nil {
		s.metrics.TenantScopeDenialsTotal.Inc()
	}
}
