// Package resolver maps verified external identities to internal users,
// provisioning them just-in-time on first login.
package resolver

import (
	"context"
	"errors"
	"fmt"

	"github.com/platinummonkey/gatehouse/pkg/identity"
	"github.com/platinummonkey/gatehouse/pkg/observability"
	"github.com/platinummonkey/gatehouse/pkg/storage"
)

// Resolver resolves verified identities against the user store.
type Resolver struct {
	store   storage.Store
	logger  *observability.Logger
	metrics *observability.Metrics
}

// New creates a resolver. metrics may be nil.
func New(store storage.Store, logger *observability.Logger, metrics *observability.Metrics) *Resolver {
	return &Resolver{store: store, logger: logger, metrics: metrics}
}

// Resolve returns the internal user for a verified identity, creating one
// on first sight. New users start as an active MEMBER with no organization.
//
// Creation is at-most-once per external subject: when two logins race, the
// loser's insert fails the uniqueness constraint and is retried exactly
// once as a fetch.
func (r *Resolver) Resolve(ctx context.Context, vi identity.VerifiedIdentity) (*identity.User, error) {
	user, err := r.store.FindUserByExternalID(ctx, vi.Subject)
	switch {
	case err == nil:
		return r.refresh(ctx, user, vi)
	case errors.Is(err, storage.ErrNotFound):
		return r.provision(ctx, vi)
	default:
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
}

// provision creates the user record for a previously unseen subject.
func (r *Resolver) provision(ctx context.Context, vi identity.VerifiedIdentity) (*identity.User, error) {
	subject := vi.Subject
	created, err := r.store.CreateUser(ctx, &identity.User{
		ExternalID: &subject,
		Email:      vi.Email,
		Role:       identity.RoleMember,
		IsActive:   true,
	})
	if err == nil {
		if r.metrics != nil {
			r.metrics.UsersProvisionedTotal.Inc()
		}
		r.logger.WithFields(map[string]interface{}{
			"user_id": created.ID,
			"subject": subject,
		}).Info("provisioned user on first login")
		return created, nil
	}
	if !errors.Is(err, storage.ErrDuplicate) {
		return nil, fmt.Errorf("failed to provision user: %w", err)
	}

	// Lost the create race: a concurrent first login inserted the row.
	user, err := r.store.FindUserByExternalID(ctx, vi.Subject)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user after create race: %w", err)
	}
	return r.refresh(ctx, user, vi)
}

// refresh applies provider-sourced updates to an existing user. The
// provider is the source of truth for email identity.
func (r *Resolver) refresh(ctx context.Context, user *identity.User, vi identity.VerifiedIdentity) (*identity.User, error) {
	if !user.IsActive {
		return nil, identity.ErrAccountDeactivated
	}
	if user.Email == vi.Email {
		return user, nil
	}

	email := vi.Email
	updated, err := r.store.UpdateUser(ctx, user.ID, identity.UserUpdate{Email: &email})
	if err != nil {
		return nil, fmt.Errorf("failed to sync email: %w", err)
	}
	r.logger.WithFields(map[string]interface{}{
		"user_id":   user.ID,
		"old_email": user.Email,
	}).Info("synced user email from provider")
	return updated, nil
}
