// Package guard makes the per-request authorization decision: session
// verification, live user re-validation, and role check.
package guard

import (
	"context"
	"errors"
	"fmt"

	"github.com/platinummonkey/gatehouse/pkg/identity"
	"github.com/platinummonkey/gatehouse/pkg/session"
	"github.com/platinummonkey/gatehouse/pkg/storage"
)

// Guard authorizes requests against session tokens and the live user store.
type Guard struct {
	sessions *session.Issuer
	store    storage.Store
}

// New creates a guard.
func New(sessions *session.Issuer, store storage.Store) *Guard {
	return &Guard{sessions: sessions, store: store}
}

// Authorize verifies the session token, re-fetches the live user record,
// and checks the role requirement.
//
// The live record is authoritative: a role change, deactivation or
// organization reassignment takes effect on the very next request, without
// waiting for the token snapshot to expire. That costs one store lookup
// per request.
//
// Failures: identity.ErrUnauthenticated for a missing/invalid token, an
// unknown subject, or a deactivated user; identity.ErrForbidden when the
// live role is not in requiredRoles. Store errors other than not-found are
// surfaced unchanged so operators can tell denial from backend failure.
// A nil requiredRoles set means any authenticated, active user.
func (g *Guard) Authorize(ctx context.Context, rawToken string, requiredRoles identity.RoleSet) (*identity.AuthorizedContext, error) {
	claims, err := g.sessions.Verify(rawToken)
	if err != nil {
		return nil, identity.ErrUnauthenticated
	}

	user, err := g.store.FindUserByID(ctx, claims.Subject)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, identity.ErrUnauthenticated
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user for authorization: %w", err)
	}
	if !user.IsActive {
		return nil, identity.ErrUnauthenticated
	}

	if requiredRoles != nil && !requiredRoles.Contains(user.Role) {
		return nil, identity.ErrForbidden
	}

	return &identity.AuthorizedContext{
		UserID:         user.ID,
		Role:           user.Role,
		OrganizationID: user.OrganizationID,
	}, nil
}
