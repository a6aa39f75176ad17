package identity

import "errors"

// Authorization failure taxonomy. Every error here is recoverable by the
// caller (retry login or accept denial); persistence and connectivity
// failures are a separate class and are never mapped onto these.
var (
	// ErrCredentialInvalid indicates the identity-provider credential failed
	// validation: bad signature, expired, wrong issuer, or unparseable.
	ErrCredentialInvalid = errors.New("credential invalid")

	// ErrAccountDeactivated indicates the user exists but has been
	// soft-deactivated.
	ErrAccountDeactivated = errors.New("account deactivated")

	// ErrSessionInvalid indicates the session token failed verification.
	// Expiry, malformation and bad signature are deliberately collapsed
	// into this one error.
	ErrSessionInvalid = errors.New("session invalid")

	// ErrUnauthenticated indicates the request carries no usable identity.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrForbidden indicates the authenticated caller may not perform the
	// operation. Role mismatch and tenant mismatch both report this.
	ErrForbidden = errors.New("forbidden")
)
