// Package verifier validates external identity-provider credentials.
//
// The verifier is a pure function of the presented credential and the
// provider's public-key set. The key set is discovered and cached by
// go-oidc; a key rotation at the provider may cause a short burst of
// credential failures until the cache refreshes, which is acceptable.
package verifier

import (
	"context"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/platinummonkey/gatehouse/pkg/identity"
)

// Config holds the trusted provider settings.
type Config struct {
	// IssuerURL is the provider's issuer, used for OIDC discovery and
	// matched against the credential's iss claim.
	IssuerURL string
	// ClientID is matched against the credential's audience.
	ClientID string
	// ClientSecret and RedirectURL enable the authorization-code exchange
	// login path. Optional; bearer-credential login works without them.
	ClientSecret string
	RedirectURL  string
	// Scopes requested during code exchange. Must include "openid".
	Scopes []string
}

// Validate checks the provider configuration.
func (c Config) Validate() error {
	if c.IssuerURL == "" {
		return fmt.Errorf("issuer_url is required")
	}
	if c.ClientID == "" {
		return fmt.Errorf("client_id is required")
	}
	return nil
}

// Verifier validates identity-provider credentials against the provider's
// current key set.
type Verifier struct {
	verifier     *oidc.IDTokenVerifier
	oauth2Config *oauth2.Config
}

// New discovers the provider and builds a verifier backed by its remote
// key set. The configured issuer must match the discovered one.
func New(ctx context.Context, config Config) (*Verifier, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	provider, err := oidc.NewProvider(ctx, config.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("failed to discover OIDC provider: %w", err)
	}

	v := &Verifier{
		verifier: provider.Verifier(&oidc.Config{ClientID: config.ClientID}),
	}
	if config.ClientSecret != "" && config.RedirectURL != "" {
		v.oauth2Config = &oauth2.Config{
			ClientID:     config.ClientID,
			ClientSecret: config.ClientSecret,
			Endpoint:     provider.Endpoint(),
			RedirectURL:  config.RedirectURL,
			Scopes:       config.Scopes,
		}
	}
	return v, nil
}

// NewWithKeySet builds a verifier over a fixed key set, bypassing
// discovery. Used when the provider's JWKS is supplied out of band.
func NewWithKeySet(issuerURL, clientID string, keySet oidc.KeySet) *Verifier {
	return &Verifier{
		verifier: oidc.NewVerifier(issuerURL, keySet, &oidc.Config{ClientID: clientID}),
	}
}

// providerClaims are the claims extracted from a verified credential.
type providerClaims struct {
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
}

// Verify validates the raw credential and returns the verified identity.
// Signature failure, expiry, issuer or audience mismatch and malformed
// input all report identity.ErrCredentialInvalid.
func (v *Verifier) Verify(ctx context.Context, rawCredential string) (*identity.VerifiedIdentity, error) {
	idToken, err := v.verifier.Verify(ctx, rawCredential)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", identity.ErrCredentialInvalid, err)
	}

	var claims providerClaims
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("%w: failed to parse claims: %v", identity.ErrCredentialInvalid, err)
	}
	if idToken.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject claim", identity.ErrCredentialInvalid)
	}
	if claims.Email == "" {
		return nil, fmt.Errorf("%w: missing email claim", identity.ErrCredentialInvalid)
	}

	return &identity.VerifiedIdentity{
		Subject:       idToken.Subject,
		Email:         claims.Email,
		EmailVerified: claims.EmailVerified,
		IssuedAt:      idToken.IssuedAt,
		ExpiresAt:     idToken.Expiry,
	}, nil
}

// ExchangeCode completes the authorization-code login path: it exchanges
// the code for tokens and verifies the returned ID token. Requires the
// client secret and redirect URL to be configured.
func (v *Verifier) ExchangeCode(ctx context.Context, code string) (*identity.VerifiedIdentity, error) {
	if v.oauth2Config == nil {
		return nil, fmt.Errorf("code exchange is not configured")
	}
	if code == "" {
		return nil, fmt.Errorf("%w: missing authorization code", identity.ErrCredentialInvalid)
	}

	oauth2Token, err := v.oauth2Config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange authorization code: %w", err)
	}
	rawIDToken, ok := oauth2Token.Extra("id_token").(string)
	if !ok {
		return nil, fmt.Errorf("%w: missing id_token in token response", identity.ErrCredentialInvalid)
	}
	return v.Verify(ctx, rawIDToken)
}

// AuthCodeURL returns the provider's authorization endpoint URL for the
// given state. Empty when code exchange is not configured.
func (v *Verifier) AuthCodeURL(state string) string {
	if v.oauth2Config == nil {
		return ""
	}
	return v.oauth2Config.AuthCodeURL(state, oauth2.AccessTypeOffline)
}
