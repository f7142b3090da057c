package auth

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// UserTracker is the slice of the credential store the provider needs
type UserTracker interface {
	GetByIdentifier(ctx context.Context, identifier string) (*User, error)
	TrackAttemptedLogin(ctx context.Context, user *User, state LockoutState) error
	TrackSuccessfulLogin(ctx context.Context, user *User, origin string) error
}

// UserProvider resolves identifiers to identities and enforces the lockout
// policy around password verification.
type UserProvider struct {
	store    UserTracker
	policy   LockoutPolicy
	logger   Logger
	activity ActivitySink
	now      func() time.Time
}

// NewUserProvider will create a new UserProvider
func NewUserProvider(store UserTracker) *UserProvider {
	return &UserProvider{
		store:    store,
		policy:   DefaultLockoutPolicy(),
		logger:   defLogger{},
		activity: noopActivitySink{},
		now:      time.Now,
	}
}

// WithActivitySink forwards login outcomes to an audit consumer. Sink errors
// are logged, never surfaced to the caller.
func (u *UserProvider) WithActivitySink(sink ActivitySink) *UserProvider {
	u.activity = normalizeActivitySink(sink)
	return u
}

func (u *UserProvider) WithLogger(l Logger) *UserProvider {
	if l != nil {
		u.logger = l
	}
	return u
}

// WithLockoutPolicy overrides the stock threshold and lock window
func (u *UserProvider) WithLockoutPolicy(policy LockoutPolicy) *UserProvider {
	u.policy = policy
	return u
}

// WithTimeFunc overrides the time source used for lockout decisions
func (u *UserProvider) WithTimeFunc(now func() time.Time) *UserProvider {
	if now != nil {
		u.now = now
	}
	return u
}

// VerifyIdentity runs the login state machine: resolve the identifier, check
// the lock, compare the password, and persist the counter transition. An
// unknown identifier and a wrong password are indistinguishable to callers.
func (u *UserProvider) VerifyIdentity(ctx context.Context, identifier, password string) (Identity, error) {
	user, err := u.store.GetByIdentifier(ctx, identifier)
	if err != nil {
		if goerrors.IsNotFound(err) {
			return nil, ErrMismatchedHashAndPassword
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user during verification")
	}

	if err := ensureAuthenticatableUser(user); err != nil {
		return nil, err
	}

	now := u.now()

	// A locked attempt is rejected before the password is even looked at and
	// must not advance the failure counter.
	if u.policy.IsLocked(user.LockoutState(), now) {
		return nil, LockedError(*user.LockedUntil, now)
	}

	if err := ComparePasswordAndHash(password, user.PasswordHash); err != nil {
		state := u.policy.OnFailure(user.LockoutState(), now)
		if err2 := u.store.TrackAttemptedLogin(ctx, user, state); err2 != nil {
			return nil, goerrors.Wrap(err2, goerrors.CategoryInternal, "failed to track login attempt")
		}

		eventType := ActivityEventLoginFailure
		if state.LockedUntil != nil {
			eventType = ActivityEventAccountLocked
		}
		u.record(ctx, ActivityEvent{
			EventType:  eventType,
			UserID:     user.ID.String(),
			OccurredAt: now,
			Metadata: map[string]any{
				"failed_attempts": state.FailedAttempts,
			},
		})

		return nil, ErrMismatchedHashAndPassword
	}

	origin := RemoteAddrFromContext(ctx)
	if err := u.store.TrackSuccessfulLogin(ctx, user, origin); err != nil {
		u.logger.Error("failed to track successful login", "error", err)
	}

	u.record(ctx, ActivityEvent{
		EventType:  ActivityEventLoginSuccess,
		UserID:     user.ID.String(),
		Origin:     origin,
		OccurredAt: now,
	})

	return identityFromUser(user), nil
}

func (u *UserProvider) record(ctx context.Context, event ActivityEvent) {
	if err := u.activity.Record(ctx, event); err != nil {
		u.logger.Error("activity sink error", "error", err, "event", string(event.EventType))
	}
}

// FindIdentityByIdentifier resolves without a password check; used by the
// refresh flow after the token itself has been validated.
func (u *UserProvider) FindIdentityByIdentifier(ctx context.Context, identifier string) (Identity, error) {
	user, err := u.store.GetByIdentifier(ctx, identifier)
	if err != nil {
		if goerrors.IsNotFound(err) {
			return nil, ErrIdentityNotFound
		}
		return nil, err
	}

	if err := ensureAuthenticatableUser(user); err != nil {
		return nil, err
	}

	return identityFromUser(user), nil
}

type authIdentity struct {
	id       string
	username string
	email    string
	roles    []string
}

func (a authIdentity) ID() string       { return a.id }
func (a authIdentity) Username() string { return a.username }
func (a authIdentity) Email() string    { return a.email }
func (a authIdentity) Roles() []string  { return a.roles }

var _ Identity = authIdentity{}

func identityFromUser(user *User) authIdentity {
	return authIdentity{
		id:       user.ID.String(),
		username: user.Username,
		email:    user.Email,
		roles:    user.RoleNames(),
	}
}

func ensureAuthenticatableUser(user *User) error {
	if user == nil {
		return ErrIdentityNotFound
	}

	if !user.Enabled {
		// Disabled accounts render the same generic rejection as bad
		// credentials so their existence is not observable.
		return ErrMismatchedHashAndPassword
	}

	return nil
}
