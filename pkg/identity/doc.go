// Package identity defines the core domain types for Gatehouse: users,
// organizations, roles, and the error taxonomy used by every authorization
// decision.
//
// # Roles
//
// Roles are a flat enumeration with no hierarchy; an operation declares the
// exact set of roles allowed to invoke it:
//
//	RoleAdmin    - full administrative access
//	RoleManager  - manages teams and assignments
//	RoleLeader   - leads a crew
//	RoleMember   - regular member (default on first login)
//	RoleCrew     - field crew account
//	RoleReadOnly - read-only access
//
// # Users and tenancy
//
// A User belongs to at most one Organization. OrganizationID is nil until an
// administrator assigns one; an unassigned user can authenticate but is
// denied every organization-scoped operation. Once set, the organization is
// only changed through the explicit administrative reassignment path
// (UserUpdate), never as a side effect of login.
//
// # Mutation
//
// UserUpdate is the single closed struct through which user fields change:
//
//	role := identity.RoleManager
//	updated := identity.UserUpdate{Role: &role}.Apply(user)
//
// # Errors
//
// The five sentinel errors (ErrCredentialInvalid, ErrAccountDeactivated,
// ErrSessionInvalid, ErrUnauthenticated, ErrForbidden) cover every
// authorization failure. Storage and connectivity errors are a separate
// class (see pkg/storage) and must never be collapsed into these.
//
// # Related Packages
//
//   - pkg/verifier: validates identity-provider credentials
//   - pkg/resolver: maps verified identities to Users
//   - pkg/session: internal session tokens
//   - pkg/guard: per-request authorization
//   - pkg/tenant: organization scoping
package identity
