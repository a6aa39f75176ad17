// Package storage defines the persistence interface consumed by the
// identity resolver, access guard and tenant scoper, plus its errors.
package storage

import (
	"context"
	"errors"

	"github.com/platinummonkey/gatehouse/pkg/identity"
)

// ErrNotFound indicates the requested record does not exist. It is always
// distinguishable from transport and connectivity errors so callers can
// separate "no such user" from "backend unavailable".
var ErrNotFound = errors.New("record not found")

// ErrDuplicate indicates an insert violated a uniqueness constraint.
// The resolver relies on this to detect a lost create race.
var ErrDuplicate = errors.New("duplicate record")

// Store is the persistence collaborator. Implementations must honor
// context cancellation on every call.
type Store interface {
	// FindUserByExternalID looks up a user by identity-provider subject id.
	FindUserByExternalID(ctx context.Context, externalID string) (*identity.User, error)

	// FindUserByID looks up a user by internal id.
	FindUserByID(ctx context.Context, id string) (*identity.User, error)

	// CreateUser inserts a new user. The ID, CreatedAt and UpdatedAt fields
	// are assigned by the store. Returns ErrDuplicate when the external id
	// is already taken.
	CreateUser(ctx context.Context, user *identity.User) (*identity.User, error)

	// UpdateUser applies the patch to the stored user and returns the
	// updated record.
	UpdateUser(ctx context.Context, id string, update identity.UserUpdate) (*identity.User, error)

	// FindOrganization looks up an organization by id.
	FindOrganization(ctx context.Context, id string) (*identity.Organization, error)

	// ListUsersByOrganization returns all users belonging to the
	// organization, ordered by creation time.
	ListUsersByOrganization(ctx context.Context, organizationID string) ([]*identity.User, error)
}
