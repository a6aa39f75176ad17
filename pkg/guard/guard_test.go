package guard

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/gatehouse/pkg/identity"
	"github.com/platinummonkey/gatehouse/pkg/session"
	"github.com/platinummonkey/gatehouse/pkg/storage"
)

// fakeStore is an in-memory storage.Store for guard tests.
type fakeStore struct {
	mu    sync.Mutex
	users map[string]*identity.User
	orgs  map[string]*identity.Organization
	err   error // when set, every call fails with it
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users: make(map[string]*identity.User),
		orgs:  make(map[string]*identity.Organization),
	}
}

func (f *fakeStore) put(user *identity.User) {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *user
	f.users[user.ID] = &copied
}

func (f *fakeStore) FindUserByID(_ context.Context, id string) (*identity.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	user, ok := f.users[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	copied := *user
	return &copied, nil
}

func (f *fakeStore) FindUserByExternalID(_ context.Context, externalID string) (*identity.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	for _, user := range f.users {
		if user.ExternalID != nil && *user.ExternalID == externalID {
			copied := *user
			return &copied, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (f *fakeStore) CreateUser(_ context.Context, user *identity.User) (*identity.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	for _, existing := range f.users {
		if existing.ExternalID != nil && user.ExternalID != nil && *existing.ExternalID == *user.ExternalID {
			return nil, storage.ErrDuplicate
		}
	}
	created := *user
	created.ID = "user-" + *user.ExternalID
	created.CreatedAt = time.Now()
	created.UpdatedAt = created.CreatedAt
	f.users[created.ID] = &created
	copied := created
	return &copied, nil
}

func (f *fakeStore) UpdateUser(_ context.Context, id string, update identity.UserUpdate) (*identity.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	user, ok := f.users[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	updated := update.Apply(*user)
	updated.UpdatedAt = time.Now()
	f.users[id] = &updated
	copied := updated
	return &copied, nil
}

func (f *fakeStore) FindOrganization(_ context.Context, id string) (*identity.Organization, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	org, ok := f.orgs[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	copied := *org
	return &copied, nil
}

func (f *fakeStore) ListUsersByOrganization(_ context.Context, organizationID string) ([]*identity.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	var users []*identity.User
	for _, user := range f.users {
		if user.OrganizationID != nil && *user.OrganizationID == organizationID {
			copied := *user
			users = append(users, &copied)
		}
	}
	return users, nil
}

func newTestIssuer(t *testing.T) *session.Issuer {
	issuer, err := session.NewIssuer([]byte("test-secret"), "gatehouse", time.Hour)
	require.NoError(t, err)
	return issuer
}

func memberUser(orgID string) *identity.User {
	extID := "ext-1"
	user := &identity.User{
		ID:         "user-ext-1",
		ExternalID: &extID,
		Email:      "alice@example.com",
		Role:       identity.RoleMember,
		IsActive:   true,
	}
	if orgID != "" {
		user.OrganizationID = &orgID
	}
	return user
}

func TestAuthorize(t *testing.T) {
	ctx := context.Background()

	t.Run("grants matching role", func(t *testing.T) {
		store := newFakeStore()
		issuer := newTestIssuer(t)
		g := New(issuer, store)

		user := memberUser("org-a")
		store.put(user)
		token, _, err := issuer.Issue(user)
		require.NoError(t, err)

		authCtx, err := g.Authorize(ctx, token, identity.NewRoleSet(identity.RoleMember, identity.RoleManager))
		require.NoError(t, err)
		assert.Equal(t, user.ID, authCtx.UserID)
		assert.Equal(t, identity.RoleMember, authCtx.Role)
		require.NotNil(t, authCtx.OrganizationID)
		assert.Equal(t, "org-a", *authCtx.OrganizationID)
	})

	t.Run("nil role set means any authenticated user", func(t *testing.T) {
		store := newFakeStore()
		issuer := newTestIssuer(t)
		g := New(issuer, store)

		user := memberUser("")
		store.put(user)
		token, _, err := issuer.Issue(user)
		require.NoError(t, err)

		authCtx, err := g.Authorize(ctx, token, nil)
		require.NoError(t, err)
		assert.Nil(t, authCtx.OrganizationID)
	})

	t.Run("missing token", func(t *testing.T) {
		g := New(newTestIssuer(t), newFakeStore())
		_, err := g.Authorize(ctx, "", nil)
		assert.ErrorIs(t, err, identity.ErrUnauthenticated)
	})

	t.Run("forged token", func(t *testing.T) {
		store := newFakeStore()
		g := New(newTestIssuer(t), store)

		other, err := session.NewIssuer([]byte("attacker-secret"), "gatehouse", time.Hour)
		require.NoError(t, err)
		user := memberUser("org-a")
		store.put(user)
		token, _, err := other.Issue(user)
		require.NoError(t, err)

		_, err = g.Authorize(ctx, token, nil)
		assert.ErrorIs(t, err, identity.ErrUnauthenticated)
	})

	t.Run("unknown subject", func(t *testing.T) {
		issuer := newTestIssuer(t)
		g := New(issuer, newFakeStore())

		token, _, err := issuer.Issue(memberUser("org-a"))
		require.NoError(t, err)

		_, err = g.Authorize(ctx, token, nil)
		assert.ErrorIs(t, err, identity.ErrUnauthenticated)
	})

	t.Run("role not in required set", func(t *testing.T) {
		store := newFakeStore()
		issuer := newTestIssuer(t)
		g := New(issuer, store)

		user := memberUser("org-a")
		store.put(user)
		token, _, err := issuer.Issue(user)
		require.NoError(t, err)

		_, err = g.Authorize(ctx, token, identity.NewRoleSet(identity.RoleAdmin))
		assert.ErrorIs(t, err, identity.ErrForbidden)
	})

	t.Run("role change takes effect on next request with same token", func(t *testing.T) {
		store := newFakeStore()
		issuer := newTestIssuer(t)
		g := New(issuer, store)

		user := memberUser("org-a")
		store.put(user)
		token, _, err := issuer.Issue(user) // token snapshots role=member
		require.NoError(t, err)

		managerOnly := identity.NewRoleSet(identity.RoleManager)
		_, err = g.Authorize(ctx, token, managerOnly)
		assert.ErrorIs(t, err, identity.ErrForbidden)

		// Administrative promotion, same still-valid token.
		role := identity.RoleManager
		_, err = store.UpdateUser(ctx, user.ID, identity.UserUpdate{Role: &role})
		require.NoError(t, err)

		authCtx, err := g.Authorize(ctx, token, managerOnly)
		require.NoError(t, err)
		assert.Equal(t, identity.RoleManager, authCtx.Role)
	})

	t.Run("stale token snapshot never outranks live role", func(t *testing.T) {
		store := newFakeStore()
		issuer := newTestIssuer(t)
		g := New(issuer, store)

		user := memberUser("org-a")
		user.Role = identity.RoleAdmin
		store.put(user)
		token, _, err := issuer.Issue(user) // token snapshots role=admin
		require.NoError(t, err)

		// Demotion after issuance.
		role := identity.RoleReadOnly
		_, err = store.UpdateUser(ctx, user.ID, identity.UserUpdate{Role: &role})
		require.NoError(t, err)

		_, err = g.Authorize(ctx, token, identity.NewRoleSet(identity.RoleAdmin))
		assert.ErrorIs(t, err, identity.ErrForbidden)
	})

	t.Run("deactivated user with valid token", func(t *testing.T) {
		store := newFakeStore()
		issuer := newTestIssuer(t)
		g := New(issuer, store)

		user := memberUser("org-a")
		store.put(user)
		token, _, err := issuer.Issue(user)
		require.NoError(t, err)

		active := false
		_, err = store.UpdateUser(ctx, user.ID, identity.UserUpdate{IsActive: &active})
		require.NoError(t, err)

		_, err = g.Authorize(ctx, token, nil)
		assert.ErrorIs(t, err, identity.ErrUnauthenticated)
	})

	t.Run("store failure is surfaced, not a denial", func(t *testing.T) {
		store := newFakeStore()
		issuer := newTestIssuer(t)
		g := New(issuer, store)

		user := memberUser("org-a")
		store.put(user)
		token, _, err := issuer.Issue(user)
		require.NoError(t, err)

		store.err = errors.New("connection refused")
		_, err = g.Authorize(ctx, token, nil)
		require.Error(t, err)
		assert.NotErrorIs(t, err, identity.ErrUnauthenticated)
		assert.NotErrorIs(t, err, identity.ErrForbidden)
	})
}
