package identity

import (
	"strings"
	"time"
)

// Role represents organization-level roles
type Role string

const (
	RoleAdmin    Role = "admin"    // Full administrative access
	RoleManager  Role = "manager"  // Manages teams and assignments
	RoleLeader   Role = "leader"   // Leads a crew, limited management
	RoleMember   Role = "member"   // Regular member (provisioning default)
	RoleCrew     Role = "crew"     // Field crew account
	RoleReadOnly Role = "readonly" // Read-only access
)

// ParseRole normalizes a wire-format role string. ok is false for
// unknown roles.
func ParseRole(s string) (Role, bool) {
	role := Role(strings.ToLower(strings.TrimSpace(s)))
	return role, role.IsValid()
}

// IsValid reports whether the role is one of the known roles.
func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleLeader, RoleMember, RoleCrew, RoleReadOnly:
		return true
	}
	return false
}

// RoleSet is the set of roles permitted to invoke an operation.
// Membership is a flat check; there is no role hierarchy.
type RoleSet map[Role]struct{}

// NewRoleSet builds a RoleSet from the given roles.
func NewRoleSet(roles ...Role) RoleSet {
	set := make(RoleSet, len(roles))
	for _, r := range roles {
		set[r] = struct{}{}
	}
	return set
}

// Contains reports whether the role is a member of the set.
func (s RoleSet) Contains(role Role) bool {
	_, ok := s[role]
	return ok
}

// User represents an internal user account
type User struct {
	ID             string    `json:"id"`
	ExternalID     *string   `json:"external_id,omitempty"` // Subject id at the identity provider; set on first login
	Email          string    `json:"email"`
	Role           Role      `json:"role"`
	OrganizationID *string   `json:"organization_id,omitempty"`
	IsActive       bool      `json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Organization represents a tenant
type Organization struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// VerifiedIdentity is the outcome of validating an identity-provider
// credential. It is transient: consumed by the resolver and discarded,
// never persisted.
type VerifiedIdentity struct {
	Subject       string
	Email         string
	EmailVerified bool
	IssuedAt      time.Time
	ExpiresAt     time.Time
}

// AuthorizedContext holds the authenticated caller's identity for the
// duration of one request. Role and OrganizationID reflect the live user
// record at authorization time, not the token snapshot.
type AuthorizedContext struct {
	UserID         string  `json:"user_id"`
	Role           Role    `json:"role"`
	OrganizationID *string `json:"organization_id,omitempty"`
}
