package guard

import (
	"errors"
	"net/http"
	"strings"

	"github.com/platinummonkey/gatehouse/pkg/contextkeys"
	"github.com/platinummonkey/gatehouse/pkg/httputil"
	"github.com/platinummonkey/gatehouse/pkg/identity"
	"github.com/platinummonkey/gatehouse/pkg/observability"
)

// Middleware wraps protected handlers with the full authorization chain:
// bearer extraction, session verification, live role check. Each stage
// returns early on failure; the handler never runs partially authorized.
type Middleware struct {
	guard   *Guard
	policy  *Policy
	metrics *observability.Metrics
}

// NewMiddleware creates the authorization middleware. metrics may be nil.
func NewMiddleware(guard *Guard, policy *Policy, metrics *observability.Metrics) *Middleware {
	return &Middleware{guard: guard, policy: policy, metrics: metrics}
}

// Protect wraps a handler for a named operation. The operation's required
// roles come from the policy table; operations missing from the policy are
// denied.
func (m *Middleware) Protect(operation string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := BearerToken(r)
		if !ok {
			m.record(operation, "unauthenticated")
			httputil.WriteUnauthorized(w, "authentication required")
			return
		}

		requiredRoles, declared := m.policy.RequiredRoles(operation)
		if !declared {
			observability.FromContext(r.Context()).
				WithField("operation", operation).
				Error("operation missing from access policy, denying")
			m.record(operation, "forbidden")
			httputil.WriteForbidden(w, "insufficient permissions")
			return
		}

		authCtx, err := m.guard.Authorize(r.Context(), token, requiredRoles)
		if err != nil {
			m.deny(w, r, operation, err)
			return
		}

		m.record(operation, "granted")
		ctx := contextkeys.WithAuth(r.Context(), authCtx)
		ctx = contextkeys.WithUserID(ctx, authCtx.UserID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ProtectFunc is Protect for handler functions.
func (m *Middleware) ProtectFunc(operation string, next http.HandlerFunc) http.Handler {
	return m.Protect(operation, next)
}

// deny writes the failure response. Authentication failures share one
// generic body regardless of cause; store failures are 503, never a
// denial.
func (m *Middleware) deny(w http.ResponseWriter, r *http.Request, operation string, err error) {
	switch {
	case errors.Is(err, identity.ErrUnauthenticated):
		m.record(operation, "unauthenticated")
		httputil.WriteUnauthorized(w, "authentication required")
	case errors.Is(err, identity.ErrForbidden):
		m.record(operation, "forbidden")
		httputil.WriteForbidden(w, "insufficient permissions")
	default:
		observability.FromContext(r.Context()).WithError(err).
			WithField("operation", operation).
			Error("authorization backend failure")
		m.record(operation, "error")
		httputil.WriteServiceUnavailable(w, "authorization unavailable")
	}
}

func (m *Middleware) record(operation, decision string) {
	if m.metrics == nil {
		return
	}
	m.metrics.AuthorizationDecisionsTotal.WithLabelValues(operation, decision).Inc()
}

// BearerToken extracts the bearer token from the Authorization header.
// Format: "Bearer <token>"
func BearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", false
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// GetAuthorizedContext extracts the authorized context from a request.
// Returns nil when the request did not pass through Protect.
func GetAuthorizedContext(r *http.Request) *identity.AuthorizedContext {
	v := r.Context().Value(contextkeys.AuthKey)
	if v == nil {
		return nil
	}
	authCtx, ok := v.(*identity.AuthorizedContext)
	if !ok {
		return nil
	}
	return authCtx
}
