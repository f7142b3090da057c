package auth

import "time"

// Lockout policy defaults: five consecutive failures lock the account for
// thirty minutes. Locking is per account, not per source address.
const (
	DefaultMaxAttempts = 5
	DefaultLockWindow  = 30 * time.Minute
)

// LockoutState is the slice of a user record the policy decides over
type LockoutState struct {
	FailedAttempts int
	LockedUntil    *time.Time
}

// LockoutPolicy is pure decision logic over failed-attempt counters. The
// threshold and window live here, not in the authentication service, so they
// can become configuration without touching orchestration.
type LockoutPolicy struct {
	MaxAttempts int
	LockWindow  time.Duration
}

// DefaultLockoutPolicy returns the stock policy constants
func DefaultLockoutPolicy() LockoutPolicy {
	return LockoutPolicy{
		MaxAttempts: DefaultMaxAttempts,
		LockWindow:  DefaultLockWindow,
	}
}

// IsLocked reports whether the account is locked at the given instant
func (p LockoutPolicy) IsLocked(state LockoutState, now time.Time) bool {
	return state.LockedUntil != nil && now.Before(*state.LockedUntil)
}

// OnFailure increments the failure counter and arms the lock expiry once the
// incremented count reaches the threshold.
func (p LockoutPolicy) OnFailure(state LockoutState, now time.Time) LockoutState {
	next := LockoutState{
		FailedAttempts: state.FailedAttempts + 1,
		LockedUntil:    state.LockedUntil,
	}

	if next.FailedAttempts >= p.maxAttempts() {
		until := now.Add(p.lockWindow())
		next.LockedUntil = &until
	}

	return next
}

// OnSuccess resets the counter and clears the lock expiry unconditionally
func (p LockoutPolicy) OnSuccess(state LockoutState) LockoutState {
	return LockoutState{FailedAttempts: 0, LockedUntil: nil}
}

func (p LockoutPolicy) maxAttempts() int {
	if p.MaxAttempts <= 0 {
		return DefaultMaxAttempts
	}
	return p.MaxAttempts
}

func (p LockoutPolicy) lockWindow() time.Duration {
	if p.LockWindow <= 0 {
		return DefaultLockWindow
	}
	return p.LockWindow
}
