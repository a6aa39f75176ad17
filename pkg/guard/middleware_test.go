package guard

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/gatehouse/pkg/identity"
)

func testMiddleware(t *testing.T, store *fakeStore) *Middleware {
	issuer := newTestIssuer(t)
	policy := NewPolicy(map[string]identity.RoleSet{
		"users.list":   identity.NewRoleSet(identity.RoleAdmin, identity.RoleManager),
		"profile.read": nil, // any authenticated user
	})
	return NewMiddleware(New(issuer, store), policy, nil)
}

func issueFor(t *testing.T, user *identity.User) string {
	issuer := newTestIssuer(t)
	token, _, err := issuer.Issue(user)
	require.NoError(t, err)
	return token
}

func errorBody(t *testing.T, rec *httptest.ResponseRecorder) string {
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body["error"]
}

func TestMiddlewareProtect(t *testing.T) {
	okHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	t.Run("missing authorization header", func(t *testing.T) {
		m := testMiddleware(t, newFakeStore())
		rec := httptest.NewRecorder()
		m.Protect("profile.read", okHandler).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/me", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "authentication required", errorBody(t, rec))
	})

	t.Run("malformed authorization header", func(t *testing.T) {
		m := testMiddleware(t, newFakeStore())
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
		rec := httptest.NewRecorder()
		m.Protect("profile.read", okHandler).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("forged token gets the same generic body", func(t *testing.T) {
		store := newFakeStore()
		user := memberUser("org-a")
		store.put(user)
		m := testMiddleware(t, store)

		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", "Bearer not.a.token")
		rec := httptest.NewRecorder()
		m.Protect("profile.read", okHandler).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "authentication required", errorBody(t, rec))
	})

	t.Run("insufficient role", func(t *testing.T) {
		store := newFakeStore()
		user := memberUser("org-a")
		store.put(user)
		m := testMiddleware(t, store)

		req := httptest.NewRequest(http.MethodGet, "/users", nil)
		req.Header.Set("Authorization", "Bearer "+issueFor(t, user))
		rec := httptest.NewRecorder()
		m.Protect("users.list", okHandler).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, "insufficient permissions", errorBody(t, rec))
	})

	t.Run("undeclared operation denied", func(t *testing.T) {
		store := newFakeStore()
		user := memberUser("org-a")
		store.put(user)
		m := testMiddleware(t, store)

		req := httptest.NewRequest(http.MethodGet, "/things", nil)
		req.Header.Set("Authorization", "Bearer "+issueFor(t, user))
		rec := httptest.NewRecorder()
		m.Protect("things.list", okHandler).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("store failure reported as unavailable", func(t *testing.T) {
		store := newFakeStore()
		user := memberUser("org-a")
		store.put(user)
		m := testMiddleware(t, store)
		token := issueFor(t, user)
		store.err = assert.AnError

		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		m.Protect("profile.read", okHandler).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Equal(t, "authorization unavailable", errorBody(t, rec))
	})

	t.Run("grants and attaches authorized context", func(t *testing.T) {
		store := newFakeStore()
		user := memberUser("org-a")
		store.put(user)
		m := testMiddleware(t, store)

		var seen *identity.AuthorizedContext
		handler := m.ProtectFunc("profile.read", func(w http.ResponseWriter, r *http.Request) {
			seen = GetAuthorizedContext(r)
			w.WriteHeader(http.StatusOK)
		})

		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", "Bearer "+issueFor(t, user))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		require.NotNil(t, seen)
		assert.Equal(t, user.ID, seen.UserID)
		assert.Equal(t, identity.RoleMember, seen.Role)
	})
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		name   string
		header string
		token  string
		ok     bool
	}{
		{"valid", "Bearer abc123", "abc123", true},
		{"empty", "", "", false},
		{"wrong scheme", "Basic abc123", "", false},
		{"no token", "Bearer ", "", false},
		{"no space", "Bearerabc123", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			token, ok := BearerToken(req)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.token, token)
		})
	}
}
