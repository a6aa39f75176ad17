package api

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/gatehouse/pkg/guard"
	"github.com/platinummonkey/gatehouse/pkg/httputil"
	"github.com/platinummonkey/gatehouse/pkg/identity"
	"github.com/platinummonkey/gatehouse/pkg/observability"
	"github.com/platinummonkey/gatehouse/pkg/ratelimit"
	"github.com/platinummonkey/gatehouse/pkg/resolver"
	"github.com/platinummonkey/gatehouse/pkg/session"
	"github.com/platinummonkey/gatehouse/pkg/storage"
	"github.com/platinummonkey/gatehouse/pkg/tenant"
)

// Operation names used in the access policy and authorization metrics.
const (
	OpMeRead         = "me.read"
	OpUserRoleUpdate = "users.role.update"
	OpUserOrgAssign  = "users.organization.assign"
	OpUserDeactivate = "users.deactivate"
	OpUserReactivate = "users.reactivate"
	OpOrgRead        = "organizations.read"
	OpOrgMembersList = "organizations.members.list"
)

// DefaultPolicy is the operation → allowed-roles table. A nil set means
// any active authenticated user; operations absent from the table are
// denied outright.
func DefaultPolicy() *guard.Policy {
	return guard.NewPolicy(map[string]identity.RoleSet{
		OpMeRead:         nil,
		OpUserRoleUpdate: identity.NewRoleSet(identity.RoleAdmin),
		OpUserOrgAssign:  identity.NewRoleSet(identity.RoleAdmin),
		OpUserDeactivate: identity.NewRoleSet(identity.RoleAdmin),
		OpUserReactivate: identity.NewRoleSet(identity.RoleAdmin),
		OpOrgRead:        nil,
		OpOrgMembersList: identity.NewRoleSet(identity.RoleAdmin, identity.RoleManager, identity.RoleLeader),
	})
}

// CredentialVerifier validates identity-provider credentials. Satisfied by
// verifier.Verifier; faked in tests.
type CredentialVerifier interface {
	Verify(ctx context.Context, rawCredential string) (*identity.VerifiedIdentity, error)
	ExchangeCode(ctx context.Context, code string) (*identity.VerifiedIdentity, error)
	AuthCodeURL(state string) string
}

// Server is the HTTP API server.
type Server struct {
	router   *mux.Router
	store    storage.Store
	verifier CredentialVerifier
	resolver *resolver.Resolver
	sessions *session.Issuer
	guardMW  *guard.Middleware
	scoper   *tenant.Scoper
	metrics  *observability.Metrics
	logger   *observability.Logger
	limiter  *ratelimit.Middleware
}

// Options collects the server's dependencies.
type Options struct {
	Store    storage.Store
	Verifier CredentialVerifier
	Resolver *resolver.Resolver
	Sessions *session.Issuer
	Guard    *guard.Guard
	Policy   *guard.Policy
	Scoper   *tenant.Scoper
	Metrics  *observability.Metrics
	Logger   *observability.Logger
	// Limiter throttles the unauthenticated login routes. Optional.
	Limiter *ratelimit.Middleware
}

// NewServer creates the API server and wires its routes.
func NewServer(opts Options) *Server {
	if opts.Policy == nil {
		opts.Policy = DefaultPolicy()
	}
	s := &Server{
		router:   mux.NewRouter(),
		store:    opts.Store,
		verifier: opts.Verifier,
		resolver: opts.Resolver,
		sessions: opts.Sessions,
		guardMW:  guard.NewMiddleware(opts.Guard, opts.Policy, opts.Metrics),
		scoper:   opts.Scoper,
		metrics:  opts.Metrics,
		logger:   opts.Logger,
		limiter:  opts.Limiter,
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all the API routes
func (s *Server) setupRoutes() {
	// Auth routes are unauthenticated; they front the identity provider
	// and are rate limited per client IP.
	s.router.Handle("/api/v1/auth/login", s.throttled(http.HandlerFunc(s.login))).Methods("POST")
	s.router.Handle("/api/v1/auth/authorize", s.throttled(http.HandlerFunc(s.authorize))).Methods("GET")
	s.router.Handle("/api/v1/auth/callback", s.throttled(http.HandlerFunc(s.callback))).Methods("GET")

	s.router.Handle("/api/v1/me", s.guardMW.ProtectFunc(OpMeRead, s.me)).Methods("GET")

	// Administrative user management
	s.router.Handle("/api/v1/users/{id}/role", s.guardMW.ProtectFunc(OpUserRoleUpdate, s.updateUserRole)).Methods("PUT")
	s.router.Handle("/api/v1/users/{id}/organization", s.guardMW.ProtectFunc(OpUserOrgAssign, s.assignUserOrganization)).Methods("PUT")
	s.router.Handle("/api/v1/users/{id}/deactivate", s.guardMW.ProtectFunc(OpUserDeactivate, s.deactivateUser)).Methods("POST")
	s.router.Handle("/api/v1/users/{id}/reactivate", s.guardMW.ProtectFunc(OpUserReactivate, s.reactivateUser)).Methods("POST")

	// Tenant-scoped organization reads
	s.router.Handle("/api/v1/organizations/{id}", s.guardMW.ProtectFunc(OpOrgRead, s.getOrganization)).Methods("GET")
	s.router.Handle("/api/v1/organizations/{id}/members", s.guardMW.ProtectFunc(OpOrgMembersList, s.listOrganizationMembers)).Methods("GET")
}

func (s *Server) throttled(next http.Handler) http.Handler {
	if s.limiter == nil {
		return next
	}
	return s.limiter.Handler(next)
}

// Router returns the server's router for mounting under outer middleware.
func (s *Server) Router() *mux.Router {
	return s.router
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Handler wraps the router with the generic middleware chain: request id,
// request logging, panic recovery, body limits, and per-route metrics.
func (s *Server) Handler() http.Handler {
	chain := httputil.Chain(
		httputil.RequestIDMiddleware,
		httputil.LoggingMiddleware(s.logger),
		httputil.RecoveryMiddleware(s.logger),
		httputil.MaxBytesMiddleware(1<<20),
	)
	if s.metrics != nil {
		return chain(s.metrics.InstrumentHandler("api", s.router))
	}
	return chain(s.router)
}
