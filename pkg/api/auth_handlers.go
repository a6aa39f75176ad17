package api

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"net/http"
	"time"

	"github.com/platinummonkey/gatehouse/pkg/guard"
	"github.com/platinummonkey/gatehouse/pkg/httputil"
	"github.com/platinummonkey/gatehouse/pkg/identity"
	"github.com/platinummonkey/gatehouse/pkg/observability"
	"github.com/platinummonkey/gatehouse/pkg/storage"
)

// LoginResponse is the login/callback response body.
type LoginResponse struct {
	Token     string         `json:"token"`
	ExpiresAt time.Time      `json:"expires_at"`
	User      *identity.User `json:"user"`
}

// login exchanges an identity-provider credential, sent as a bearer token,
// for a session token. Unknown subjects are provisioned on the spot.
func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	credential, ok := guard.BearerToken(r)
	if !ok {
		s.recordLogin("rejected")
		httputil.WriteUnauthorized(w, "credential required")
		return
	}

	vi, err := s.verifier.Verify(r.Context(), credential)
	if err != nil {
		s.recordVerification("rejected")
		s.recordLogin("rejected")
		// One body for every verification failure; details go to the log.
		observability.FromContext(r.Context()).WithError(err).Info("credential rejected")
		httputil.WriteUnauthorized(w, "invalid credential")
		return
	}
	s.recordVerification("verified")

	s.completeLogin(w, r, vi)
}

// stateCookieName holds the anti-forgery state between the authorize
// redirect and the provider callback.
const stateCookieName = "auth_state"

// authorize starts the browser authorization-code flow. A random state is
// bound to the client in a short-lived cookie and echoed back by the
// provider, so a callback that was not initiated here is rejected.
func (s *Server) authorize(w http.ResponseWriter, r *http.Request) {
	stateBytes := make([]byte, 32)
	if _, err := rand.Read(stateBytes); err != nil {
		observability.FromContext(r.Context()).WithError(err).Error("state generation failed")
		httputil.WriteInternalError(w, "failed to generate state")
		return
	}
	state := base64.URLEncoding.EncodeToString(stateBytes)

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     "/api/v1/auth",
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   600, // 10 minutes
	})
	http.Redirect(w, r, s.verifier.AuthCodeURL(state), http.StatusFound)
}

// callback finishes the OIDC authorization-code flow. The provider
// redirects here with a one-time code that is exchanged for an ID token.
// The state parameter must match the cookie set by authorize.
func (s *Server) callback(w http.ResponseWriter, r *http.Request) {
	stateCookie, err := r.Cookie(stateCookieName)
	if err != nil {
		s.recordLogin("rejected")
		httputil.WriteBadRequest(w, "missing state cookie")
		return
	}
	state := r.URL.Query().Get("state")
	if state == "" || state != stateCookie.Value {
		s.recordLogin("rejected")
		httputil.WriteBadRequest(w, "invalid state parameter")
		return
	}
	// State is single use.
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Path:     "/api/v1/auth",
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})

	code := r.URL.Query().Get("code")
	if code == "" {
		s.recordLogin("rejected")
		httputil.WriteBadRequest(w, "missing authorization code")
		return
	}

	vi, err := s.verifier.ExchangeCode(r.Context(), code)
	if err != nil {
		s.recordVerification("rejected")
		s.recordLogin("rejected")
		observability.FromContext(r.Context()).WithError(err).Info("code exchange rejected")
		httputil.WriteUnauthorized(w, "invalid credential")
		return
	}
	s.recordVerification("verified")

	s.completeLogin(w, r, vi)
}

// completeLogin resolves the verified identity and issues a session.
func (s *Server) completeLogin(w http.ResponseWriter, r *http.Request, vi *identity.VerifiedIdentity) {
	logger := observability.FromContext(r.Context())

	user, err := s.resolver.Resolve(r.Context(), *vi)
	if err != nil {
		switch {
		case errors.Is(err, identity.ErrAccountDeactivated):
			s.recordLogin("deactivated")
			httputil.WriteForbidden(w, "account deactivated")
		default:
			s.recordLogin("error")
			logger.WithError(err).Error("identity resolution failed")
			httputil.WriteServiceUnavailable(w, "identity resolution unavailable")
		}
		return
	}

	token, expiresAt, err := s.sessions.Issue(user)
	if err != nil {
		s.recordLogin("error")
		logger.WithError(err).Error("session issuance failed")
		httputil.WriteErrorMessage(w, http.StatusInternalServerError, "session issuance failed")
		return
	}

	if s.metrics != nil {
		s.metrics.SessionsIssuedTotal.Inc()
	}
	s.recordLogin("success")
	logger.WithField("user_id", user.ID).Info("login succeeded")

	httputil.WriteSuccess(w, LoginResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		User:      user,
	})
}

// me returns the live user record behind the caller's session.
func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	authCtx := guard.GetAuthorizedContext(r)
	if authCtx == nil {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}

	user, err := s.store.FindUserByID(r.Context(), authCtx.UserID)
	if errors.Is(err, storage.ErrNotFound) {
		// The subject vanished between authorization and this lookup; the
		// session no longer names anyone.
		observability.FromContext(r.Context()).WithField("user_id", authCtx.UserID).Warn("session subject no longer exists")
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}
	if err != nil {
		observability.FromContext(r.Context()).WithError(err).Error("user lookup failed")
		httputil.WriteServiceUnavailable(w, "user lookup unavailable")
		return
	}
	httputil.WriteSuccess(w, user)
}

func (s *Server) recordLogin(result string) {
	if s.metrics != nil {
		s.metrics.LoginsTotal.WithLabelValues(result).Inc()
	}
}

func (s *Server) recordVerification(result string) {
	if s.metrics != nil {
		s.metrics.CredentialVerificationsTotal.WithLabelValues(result).Inc()
	}
}
