// Package session mints and verifies Gatehouse session tokens.
//
// A session token is a self-contained HS256 JWT carrying the user id, a
// snapshot of the user's role and organization, and an expiry. Nothing is
// persisted server-side; a token dies by expiry and re-authentication
// through the credential verifier is the only renewal path.
package session

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/platinummonkey/gatehouse/pkg/identity"
)

// DefaultTTL is the session lifetime used when none is configured.
const DefaultTTL = 12 * time.Hour

// Claims are the session token claims.
type Claims struct {
	Role           identity.Role `json:"role"`
	OrganizationID *string       `json:"org,omitempty"`
	jwt.RegisteredClaims
}

// Issuer mints and verifies session tokens with a server-held secret.
type Issuer struct {
	secret []byte
	name   string
	ttl    time.Duration
	now    func() time.Time
}

// NewIssuer creates an issuer. The secret must be non-empty; name is the
// JWT issuer claim.
func NewIssuer(secret []byte, name string, ttl time.Duration) (*Issuer, error) {
	if len(secret) == 0 {
		return nil, errors.New("session secret is required")
	}
	if name == "" {
		return nil, errors.New("issuer name is required")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Issuer{secret: secret, name: name, ttl: ttl, now: time.Now}, nil
}

// Issue signs a session token for the user. The embedded role and
// organization are a snapshot at issuance time; the access guard
// re-validates against the live record on every request.
func (i *Issuer) Issue(user *identity.User) (string, time.Time, error) {
	if user == nil || user.ID == "" {
		return "", time.Time{}, errors.New("user id is required")
	}
	now := i.now().UTC()
	expiresAt := now.Add(i.ttl)
	claims := Claims{
		Role:           user.Role,
		OrganizationID: user.OrganizationID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.name,
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify checks signature, expiry and well-formedness. Every failure is
// reported as identity.ErrSessionInvalid; callers must not learn whether a
// token was expired, malformed or forged.
func (i *Issuer) Verify(raw string) (*Claims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, identity.ErrSessionInvalid
	}

	parsed, err := jwt.ParseWithClaims(raw, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, identity.ErrSessionInvalid
		}
		return i.secret, nil
	}, jwt.WithTimeFunc(func() time.Time { return i.now() }))
	if err != nil {
		return nil, identity.ErrSessionInvalid
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, identity.ErrSessionInvalid
	}
	if claims.Issuer != i.name || claims.Subject == "" {
		return nil, identity.ErrSessionInvalid
	}
	if claims.IssuedAt == nil || claims.ExpiresAt == nil {
		return nil, identity.ErrSessionInvalid
	}
	if !claims.Role.IsValid() {
		return nil, identity.ErrSessionInvalid
	}
	return claims, nil
}
