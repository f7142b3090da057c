package auth_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	auth "github.com/secureplatform/platform-auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testIdentity = testIdentityImpl{
	id:       "b2c3d4e5-0000-4000-8000-000000000042",
	username: "testuser",
	email:    "test@example.com",
	roles:    []string{auth.RoleStandard, auth.RoleModerator},
}

type testIdentityImpl struct {
	id       string
	username string
	email    string
	roles    []string
}

func (i testIdentityImpl) ID() string       { return i.id }
func (i testIdentityImpl) Username() string { return i.username }
func (i testIdentityImpl) Email() string    { return i.email }
func (i testIdentityImpl) Roles() []string  { return i.roles }

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

func newTestTokenService(key []byte, at time.Time) *auth.TokenServiceImpl {
	return auth.NewTokenService(key, 1, 24, "test-issuer", jwt.ClaimStrings{"test-audience"}, nil).
		WithTimeFunc(fixedClock(at))
}

func TestTokenServiceGenerateAndValidate(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	ts := newTestTokenService([]byte("test-signing-key-of-32-bytes-min"), now)

	token, err := ts.Generate(testIdentity)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := ts.Validate(token)
	require.NoError(t, err)

	assert.Equal(t, testIdentity.ID(), claims.Subject())
	assert.Equal(t, testIdentity.ID(), claims.UserID())
	assert.Equal(t, testIdentity.Roles(), claims.Roles())
	assert.True(t, claims.HasRole(auth.RoleModerator))
	assert.False(t, claims.HasRole(auth.RoleAdministrator))
	assert.Equal(t, now.Add(time.Hour), claims.Expires())
	assert.Equal(t, now, claims.IssuedAt())
}

func TestTokenServiceValidateAtExpiryBoundary(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	key := []byte("test-signing-key-of-32-bytes-min")

	ts := newTestTokenService(key, now)
	token, err := ts.Generate(testIdentity)
	require.NoError(t, err)

	t.Run("valid just before expiry", func(t *testing.T) {
		later := newTestTokenService(key, now.Add(time.Hour-time.Second))
		_, err := later.Validate(token)
		assert.NoError(t, err)
	})

	t.Run("expired after the window", func(t *testing.T) {
		later := newTestTokenService(key, now.Add(time.Hour+time.Second))
		_, err := later.Validate(token)
		require.Error(t, err)
		assert.True(t, auth.IsTokenExpiredError(err))
		assert.False(t, auth.IsMalformedError(err))
	})
}

func TestTokenServiceValidateRejectsWrongKey(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	ts := newTestTokenService([]byte("test-signing-key-of-32-bytes-min"), now)
	token, err := ts.Generate(testIdentity)
	require.NoError(t, err)

	other := newTestTokenService([]byte("another-signing-key-32-bytes-ok!"), now)
	_, err = other.Validate(token)

	require.Error(t, err)
	assert.ErrorIs(t, err, auth.ErrTokenSignature)
}

func TestTokenServiceValidateRejectsGarbage(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	ts := newTestTokenService([]byte("test-signing-key-of-32-bytes-min"), now)

	tests := []string{
		"",
		"not-a-token",
		"aaaa.bbbb.cccc",
		"header.payload",
	}

	for _, tokenString := range tests {
		_, err := ts.Validate(tokenString)
		require.Error(t, err, "token %q should not validate", tokenString)
		assert.True(t, auth.IsMalformedError(err), "token %q should map to malformed", tokenString)
	}
}

func TestTokenServiceValidateRejectsTamperedClaims(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	key := []byte("test-signing-key-of-32-bytes-min")
	ts := newTestTokenService(key, now)

	token, err := ts.Generate(testIdentity)
	require.NoError(t, err)

	// Re-sign the same claims under a different key to simulate tampering.
	forged := jwt.NewWithClaims(jwt.SigningMethodHS256, &auth.JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "test-issuer",
			Subject:   testIdentity.ID(),
			Audience:  jwt.ClaimStrings{"test-audience"},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
		UID:       testIdentity.ID(),
		UserRoles: []string{auth.RoleAdministrator},
	})
	forgedString, err := forged.SignedString([]byte("attacker-controlled-key-32-bytes"))
	require.NoError(t, err)
	require.NotEqual(t, token, forgedString)

	_, err = ts.Validate(forgedString)
	assert.ErrorIs(t, err, auth.ErrTokenSignature)
}

func TestTokenServiceGenerateRefreshUsesLongerWindow(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	key := []byte("test-signing-key-of-32-bytes-min")
	ts := newTestTokenService(key, now)

	refresh, err := ts.GenerateRefresh(testIdentity)
	require.NoError(t, err)

	// Past the access window but inside the refresh window.
	later := newTestTokenService(key, now.Add(6*time.Hour))
	claims, err := later.Validate(refresh)
	require.NoError(t, err)
	assert.Equal(t, now.Add(24*time.Hour), claims.Expires())
}

func TestTokenServiceSubjectOf(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	ts := newTestTokenService([]byte("test-signing-key-of-32-bytes-min"), now)

	token, err := ts.Generate(testIdentity)
	require.NoError(t, err)

	t.Run("extracts subject without verification", func(t *testing.T) {
		subject, err := ts.SubjectOf(token)
		require.NoError(t, err)
		assert.Equal(t, testIdentity.ID(), subject)
	})

	t.Run("works on expired tokens", func(t *testing.T) {
		later := newTestTokenService([]byte("test-signing-key-of-32-bytes-min"), now.Add(48*time.Hour))
		subject, err := later.SubjectOf(token)
		require.NoError(t, err)
		assert.Equal(t, testIdentity.ID(), subject)
	})

	t.Run("rejects garbage", func(t *testing.T) {
		_, err := ts.SubjectOf("not-a-token")
		require.Error(t, err)
		assert.True(t, auth.IsMalformedError(err))
	})
}

func TestTokenServiceAssignsUniqueTokenIDs(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	ts := newTestTokenService([]byte("test-signing-key-of-32-bytes-min"), now)

	t1, err := ts.Generate(testIdentity)
	require.NoError(t, err)
	t2, err := ts.Generate(testIdentity)
	require.NoError(t, err)

	// Same identity, same instant, still distinct tokens thanks to jti.
	assert.NotEqual(t, t1, t2)
}
