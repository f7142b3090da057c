package auth

import (
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// Text codes exposed to API clients alongside the error category
const (
	TextCodeInvalidCreds      = "INVALID_CREDENTIALS"
	TextCodeAccountLocked     = "ACCOUNT_LOCKED"
	TextCodeDuplicateIdentity = "DUPLICATE_IDENTITY"
	TextCodeTokenExpired      = "TOKEN_EXPIRED"
	TextCodeTokenMalformed    = "TOKEN_MALFORMED"
	TextCodeTokenSignature    = "TOKEN_BAD_SIGNATURE"
	TextCodeIdentityNotFound  = "IDENTITY_NOT_FOUND"
	TextCodeRoleNotFound      = "ROLE_NOT_FOUND"
	TextCodeForbidden         = "FORBIDDEN"
)

// ErrMismatchedHashAndPassword covers both a wrong password and an unknown
// identifier: callers must not be able to tell the two apart.
var ErrMismatchedHashAndPassword = goerrors.New("the credentials provided are invalid", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidCreds)

// ErrAccountLocked is returned while the lockout window is active. Metadata
// carries a retry-after hint but never the failure count.
var ErrAccountLocked = goerrors.New("account is temporarily locked", goerrors.CategoryRateLimit).
	WithTextCode(TextCodeAccountLocked)

// ErrDuplicateIdentity rejects registrations reusing a username or email
var ErrDuplicateIdentity = goerrors.New("username or email is already in use", goerrors.CategoryConflict).
	WithTextCode(TextCodeDuplicateIdentity)

// ErrTokenExpired means the token verified but its validity window has passed
var ErrTokenExpired = goerrors.New("authentication token is expired", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired)

// ErrTokenMalformed means the token could not be parsed as a JWT
var ErrTokenMalformed = goerrors.New("authentication token is malformed", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenMalformed)

// ErrTokenSignature means the signature did not verify under the current key
var ErrTokenSignature = goerrors.New("authentication token signature is invalid", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenSignature)

// ErrIdentityNotFound is returned when a token subject no longer resolves to
// a live account, e.g. the user was deleted after the token was issued.
var ErrIdentityNotFound = goerrors.New("identity not found", goerrors.CategoryNotFound).
	WithTextCode(TextCodeIdentityNotFound)

// ErrRoleNotFound signals missing role reference data. Roles are seeded at
// bootstrap, so this is a fatal configuration error, not a per-request one.
var ErrRoleNotFound = goerrors.New("role reference data is missing", goerrors.CategoryInternal).
	WithTextCode(TextCodeRoleNotFound)

// ErrForbidden is returned by the authorization gate when the token is valid
// but the subject lacks every required role.
var ErrForbidden = goerrors.New("insufficient role for this operation", goerrors.CategoryAuthz).
	WithTextCode(TextCodeForbidden)

// ErrNoEmptyString rejects empty plaintext passwords before hashing
var ErrNoEmptyString = goerrors.New("password must not be empty", goerrors.CategoryValidation)

// decorate attaches metadata to a copy of a catalog error. WithMetadata
// mutates its receiver, so decorating the shared sentinel directly would leak
// one caller's metadata into every other caller's error.
func decorate(catalog *goerrors.Error, metadata map[string]any) *goerrors.Error {
	clone := catalog.Clone()
	if clone == nil {
		return catalog
	}
	clone.Source = catalog
	return clone.WithMetadata(metadata)
}

// LockedError decorates ErrAccountLocked with a retry-after hint derived from
// the lock expiry. The failure count is deliberately withheld.
func LockedError(lockedUntil time.Time, now time.Time) *goerrors.Error {
	retryAfter := lockedUntil.Sub(now)
	if retryAfter < 0 {
		retryAfter = 0
	}
	return decorate(ErrAccountLocked, map[string]any{
		"locked_until": lockedUntil.UTC().Format(time.RFC3339),
		"retry_after":  retryAfter.Round(time.Second).String(),
	})
}

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && richErr.TextCode == TextCodeTokenExpired {
		return true
	}
	return strings.Contains(err.Error(), "token is expired")
}

// IsMalformedError will check for error message
func IsMalformedError(err error) bool {
	if err == nil {
		return false
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && richErr.TextCode == TextCodeTokenMalformed {
		return true
	}
	return strings.Contains(err.Error(), "token is malformed") ||
		strings.Contains(err.Error(), "missing or malformed JWT")
}

// IsAccountLockedError will check for the lockout rejection
func IsAccountLockedError(err error) bool {
	if err == nil {
		return false
	}
	var richErr *goerrors.Error
	return goerrors.As(err, &richErr) && richErr.TextCode == TextCodeAccountLocked
}

// IsDuplicateIdentityError will check for registration conflicts
func IsDuplicateIdentityError(err error) bool {
	if err == nil {
		return false
	}
	var richErr *goerrors.Error
	return goerrors.As(err, &richErr) && richErr.TextCode == TextCodeDuplicateIdentity
}
