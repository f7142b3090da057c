package auth_test

import (
	"context"

	auth "github.com/secureplatform/platform-auth"
	"github.com/stretchr/testify/mock"
)

// MockUserTracker mocks the credential store slice the provider depends on.
type MockUserTracker struct {
	mock.Mock
}

func (m *MockUserTracker) GetByIdentifier(ctx context.Context, identifier string) (*auth.User, error) {
	args := m.Called(ctx, identifier)
	if user := args.Get(0); user != nil {
		return user.(*auth.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUserTracker) TrackAttemptedLogin(ctx context.Context, user *auth.User, state auth.LockoutState) error {
	args := m.Called(ctx, user, state)
	return args.Error(0)
}

func (m *MockUserTracker) TrackSuccessfulLogin(ctx context.Context, user *auth.User, origin string) error {
	args := m.Called(ctx, user, origin)
	return args.Error(0)
}

// memoryUserTracker is a minimal in-memory credential store for end to end
// style tests of the login state machine.
type memoryUserTracker struct {
	users map[string]*auth.User
}

func newMemoryUserTracker(users ...*auth.User) *memoryUserTracker {
	store := &memoryUserTracker{users: map[string]*auth.User{}}
	for _, user := range users {
		store.Add(user)
	}
	return store
}

func (s *memoryUserTracker) Add(user *auth.User) {
	s.users[user.ID.String()] = user
}

func (s *memoryUserTracker) GetByIdentifier(ctx context.Context, identifier string) (*auth.User, error) {
	if user, ok := s.users[identifier]; ok {
		return user, nil
	}
	for _, user := range s.users {
		if user.Email == identifier || user.Username == identifier {
			return user, nil
		}
	}
	return nil, auth.ErrIdentityNotFound
}

func (s *memoryUserTracker) TrackAttemptedLogin(ctx context.Context, user *auth.User, state auth.LockoutState) error {
	user.ApplyLockoutState(state)
	return nil
}

func (s *memoryUserTracker) TrackSuccessfulLogin(ctx context.Context, user *auth.User, origin string) error {
	user.ApplyLockoutState(auth.LockoutState{})
	user.LastLoginIP = origin
	return nil
}
