// Package api exposes the HTTP surface: credential exchange on the auth
// routes, the caller's own profile, administrative user management, and
// tenant-scoped organization reads. Every protected route passes through
// the access guard middleware with a named operation; the policy table in
// DefaultPolicy is the single place roles are granted.
package api
