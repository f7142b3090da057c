package auth_test

import (
	"context"
	"sync"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	auth "github.com/secureplatform/platform-auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testPassword = "correct horse battery staple"

var (
	testHashOnce sync.Once
	testHash     string
)

// testPasswordHash hashes once per test binary; bcrypt at production cost is
// too slow to re-run per case.
func testPasswordHash(t *testing.T) string {
	t.Helper()
	testHashOnce.Do(func() {
		hash, err := auth.HashPassword(testPassword)
		if err != nil {
			t.Fatalf("hash test password: %v", err)
		}
		testHash = hash
	})
	return testHash
}

func newTestUser(t *testing.T) *auth.User {
	t.Helper()
	return &auth.User{
		ID:           uuid.New(),
		Username:     "tester",
		Email:        "tester@example.com",
		PasswordHash: testPasswordHash(t),
		Enabled:      true,
		Roles:        []*auth.Role{{ID: uuid.New(), Name: auth.RoleStandard}},
	}
}

func TestVerifyIdentitySuccess(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	user := newTestUser(t)

	store := new(MockUserTracker)
	store.On("GetByIdentifier", mock.Anything, "tester@example.com").Return(user, nil)
	store.On("TrackSuccessfulLogin", mock.Anything, user, "203.0.113.7").Return(nil)

	provider := auth.NewUserProvider(store).WithTimeFunc(func() time.Time { return now })

	ctx := auth.WithRemoteAddr(context.Background(), "203.0.113.7")
	identity, err := provider.VerifyIdentity(ctx, "tester@example.com", testPassword)

	require.NoError(t, err)
	assert.Equal(t, user.ID.String(), identity.ID())
	assert.Equal(t, "tester", identity.Username())
	assert.Equal(t, []string{auth.RoleStandard}, identity.Roles())
	store.AssertExpectations(t)
	store.AssertNotCalled(t, "TrackAttemptedLogin", mock.Anything, mock.Anything, mock.Anything)
}

func TestVerifyIdentityWrongPasswordAdvancesCounter(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	user := newTestUser(t)
	user.FailedAttempts = 2

	store := new(MockUserTracker)
	store.On("GetByIdentifier", mock.Anything, "tester").Return(user, nil)
	store.On("TrackAttemptedLogin", mock.Anything, user, auth.LockoutState{FailedAttempts: 3}).Return(nil)

	provider := auth.NewUserProvider(store).WithTimeFunc(func() time.Time { return now })

	_, err := provider.VerifyIdentity(context.Background(), "tester", "not the password")

	require.Error(t, err)
	assert.ErrorIs(t, err, auth.ErrMismatchedHashAndPassword)
	store.AssertExpectations(t)
}

func TestVerifyIdentityFifthFailureArmsLock(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	until := now.Add(auth.DefaultLockWindow)

	user := newTestUser(t)
	user.FailedAttempts = auth.DefaultMaxAttempts - 1

	store := new(MockUserTracker)
	store.On("GetByIdentifier", mock.Anything, "tester").Return(user, nil)
	store.On("TrackAttemptedLogin", mock.Anything, user, auth.LockoutState{
		FailedAttempts: auth.DefaultMaxAttempts,
		LockedUntil:    &until,
	}).Return(nil)

	provider := auth.NewUserProvider(store).WithTimeFunc(func() time.Time { return now })

	_, err := provider.VerifyIdentity(context.Background(), "tester", "not the password")

	// The response stays a generic credential rejection even on the attempt
	// that arms the lock.
	assert.ErrorIs(t, err, auth.ErrMismatchedHashAndPassword)
	store.AssertExpectations(t)
}

func TestVerifyIdentityLockedAccount(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	until := now.Add(10 * time.Minute)

	user := newTestUser(t)
	user.FailedAttempts = auth.DefaultMaxAttempts
	user.LockedUntil = &until

	store := new(MockUserTracker)
	store.On("GetByIdentifier", mock.Anything, "tester").Return(user, nil)

	provider := auth.NewUserProvider(store).WithTimeFunc(func() time.Time { return now })

	// Even the correct password is rejected while the lock holds, and the
	// counter must not move.
	_, err := provider.VerifyIdentity(context.Background(), "tester", testPassword)

	require.Error(t, err)
	assert.True(t, auth.IsAccountLockedError(err))
	store.AssertNotCalled(t, "TrackAttemptedLogin", mock.Anything, mock.Anything, mock.Anything)
	store.AssertNotCalled(t, "TrackSuccessfulLogin", mock.Anything, mock.Anything, mock.Anything)
}

func TestVerifyIdentityLockExpiresAtBoundary(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	until := now // lock expires exactly at the current instant

	user := newTestUser(t)
	user.FailedAttempts = auth.DefaultMaxAttempts
	user.LockedUntil = &until

	store := new(MockUserTracker)
	store.On("GetByIdentifier", mock.Anything, "tester").Return(user, nil)
	store.On("TrackSuccessfulLogin", mock.Anything, user, "").Return(nil)

	provider := auth.NewUserProvider(store).WithTimeFunc(func() time.Time { return now })

	_, err := provider.VerifyIdentity(context.Background(), "tester", testPassword)
	assert.NoError(t, err)
}

func TestVerifyIdentityUnknownUser(t *testing.T) {
	store := new(MockUserTracker)
	store.On("GetByIdentifier", mock.Anything, "ghost").Return(nil, auth.ErrIdentityNotFound)

	provider := auth.NewUserProvider(store)

	_, err := provider.VerifyIdentity(context.Background(), "ghost", "whatever")

	// Unknown identifier and wrong password are indistinguishable.
	assert.ErrorIs(t, err, auth.ErrMismatchedHashAndPassword)
}

func TestVerifyIdentityDisabledUser(t *testing.T) {
	user := newTestUser(t)
	user.Enabled = false

	store := new(MockUserTracker)
	store.On("GetByIdentifier", mock.Anything, "tester").Return(user, nil)

	provider := auth.NewUserProvider(store)

	_, err := provider.VerifyIdentity(context.Background(), "tester", testPassword)

	assert.ErrorIs(t, err, auth.ErrMismatchedHashAndPassword)
}

func TestVerifyIdentityStoreFailure(t *testing.T) {
	store := new(MockUserTracker)
	store.On("GetByIdentifier", mock.Anything, "tester").
		Return(nil, goerrors.New("connection refused", goerrors.CategoryInternal))

	provider := auth.NewUserProvider(store)

	_, err := provider.VerifyIdentity(context.Background(), "tester", testPassword)

	require.Error(t, err)
	assert.NotErrorIs(t, err, auth.ErrMismatchedHashAndPassword)
}

func TestVerifyIdentityActivityEvents(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("success emits login event with origin", func(t *testing.T) {
		user := newTestUser(t)
		store := newMemoryUserTracker(user)

		var events []auth.ActivityEvent
		provider := auth.NewUserProvider(store).
			WithTimeFunc(func() time.Time { return now }).
			WithActivitySink(auth.ActivitySinkFunc(func(ctx context.Context, e auth.ActivityEvent) error {
				events = append(events, e)
				return nil
			}))

		ctx := auth.WithRemoteAddr(context.Background(), "198.51.100.4")
		_, err := provider.VerifyIdentity(ctx, user.Email, testPassword)
		require.NoError(t, err)

		require.Len(t, events, 1)
		assert.Equal(t, auth.ActivityEventLoginSuccess, events[0].EventType)
		assert.Equal(t, user.ID.String(), events[0].UserID)
		assert.Equal(t, "198.51.100.4", events[0].Origin)
	})

	t.Run("lockout emits locked event", func(t *testing.T) {
		user := newTestUser(t)
		user.FailedAttempts = auth.DefaultMaxAttempts - 1
		store := newMemoryUserTracker(user)

		var events []auth.ActivityEvent
		provider := auth.NewUserProvider(store).
			WithTimeFunc(func() time.Time { return now }).
			WithActivitySink(auth.ActivitySinkFunc(func(ctx context.Context, e auth.ActivityEvent) error {
				events = append(events, e)
				return nil
			}))

		_, err := provider.VerifyIdentity(context.Background(), user.Email, "wrong")
		require.Error(t, err)

		require.Len(t, events, 1)
		assert.Equal(t, auth.ActivityEventAccountLocked, events[0].EventType)
	})

	t.Run("sink errors never surface", func(t *testing.T) {
		user := newTestUser(t)
		store := newMemoryUserTracker(user)

		provider := auth.NewUserProvider(store).
			WithTimeFunc(func() time.Time { return now }).
			WithActivitySink(auth.ActivitySinkFunc(func(ctx context.Context, e auth.ActivityEvent) error {
				return goerrors.New("sink down", goerrors.CategoryOperation)
			}))

		_, err := provider.VerifyIdentity(context.Background(), user.Email, testPassword)
		assert.NoError(t, err)
	})
}

func TestFindIdentityByIdentifier(t *testing.T) {
	user := newTestUser(t)
	store := newMemoryUserTracker(user)
	provider := auth.NewUserProvider(store)

	t.Run("resolves without password", func(t *testing.T) {
		identity, err := provider.FindIdentityByIdentifier(context.Background(), user.ID.String())
		require.NoError(t, err)
		assert.Equal(t, user.Username, identity.Username())
	})

	t.Run("unknown identifier", func(t *testing.T) {
		_, err := provider.FindIdentityByIdentifier(context.Background(), "nope")
		assert.ErrorIs(t, err, auth.ErrIdentityNotFound)
	})

	t.Run("disabled account", func(t *testing.T) {
		disabled := newTestUser(t)
		disabled.ID = uuid.New()
		disabled.Username = "disabled"
		disabled.Email = "disabled@example.com"
		disabled.Enabled = false
		store.Add(disabled)

		_, err := provider.FindIdentityByIdentifier(context.Background(), "disabled")
		assert.ErrorIs(t, err, auth.ErrMismatchedHashAndPassword)
	})
}
