package identity

// UserUpdate is an explicit patch for the mutable User fields. A nil field
// leaves the stored value untouched. All administrative mutations (role
// changes, organization assignment, deactivation) go through this struct so
// the set of writable fields is closed at compile time.
type UserUpdate struct {
	Email          *string
	Role           *Role
	OrganizationID *string
	IsActive       *bool
}

// IsZero reports whether the update would change nothing.
func (u UserUpdate) IsZero() bool {
	return u.Email == nil && u.Role == nil && u.OrganizationID == nil && u.IsActive == nil
}

// Apply merges the update into a copy of the user and returns it. The
// input is not modified.
func (u UserUpdate) Apply(user User) User {
	if u.Email != nil {
		user.Email = *u.Email
	}
	if u.Role != nil {
		user.Role = *u.Role
	}
	if u.OrganizationID != nil {
		user.OrganizationID = u.OrganizationID
	}
	if u.IsActive != nil {
		user.IsActive = *u.IsActive
	}
	return user
}
