package auth_test

import (
	"context"
	"testing"

	auth "github.com/secureplatform/platform-auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserContextRoundTrip(t *testing.T) {
	user := newTestUser(t)

	ctx := auth.WithContext(context.Background(), user)
	got, ok := auth.FromContext(ctx)

	require.True(t, ok)
	assert.Same(t, user, got)

	_, ok = auth.FromContext(context.Background())
	assert.False(t, ok)
}

func TestClaimsContextRoundTrip(t *testing.T) {
	claims := &auth.JWTClaims{UID: "abc", UserRoles: []string{auth.RoleStandard}}

	ctx := auth.WithClaimsContext(context.Background(), claims)
	got, ok := auth.GetClaims(ctx)

	require.True(t, ok)
	assert.Equal(t, "abc", got.UserID())

	_, ok = auth.GetClaims(context.Background())
	assert.False(t, ok)
}

func TestRemoteAddrContext(t *testing.T) {
	ctx := auth.WithRemoteAddr(context.Background(), "192.0.2.10")

	assert.Equal(t, "192.0.2.10", auth.RemoteAddrFromContext(ctx))
	assert.Empty(t, auth.RemoteAddrFromContext(context.Background()))
}
