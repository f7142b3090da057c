// Package auth provides bearer-token authentication primitives (bcrypt
// credential verification, JWT issuance and validation, stateful repositories,
// HTTP helpers) plus account lockout handling for brute force protection.
//
// Credential verification:
//   - UserProvider owns the login state machine: identifier lookup, lock
//     check, password comparison, and failure accounting. Unknown identifiers
//     and wrong passwords both resolve to ErrMismatchedHashAndPassword so the
//     response never reveals whether an account exists.
//   - LockoutPolicy counts consecutive failures and arms an absolute
//     locked_until expiry once the threshold is reached. A successful login
//     resets the counter atomically with the last-login stamp.
//
// Tokens:
//   - TokenServiceImpl signs HS256 tokens carrying the subject, a uid claim,
//     and the role set. Validation maps signature, expiry, and parse failures
//     to the typed catalog errors so transports can answer precisely.
//   - WithTimeFunc injects the clock used for both signing and validation,
//     which keeps expiry behavior deterministic under test.
//
// HTTP glue:
//   - RouteAuthenticator wires the token service into go-router middleware:
//     ProtectedRoute for authentication, RequireRoles for role gates, and a
//     JSON error surface keyed off error categories.
package auth
