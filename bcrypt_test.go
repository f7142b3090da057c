package auth_test

import (
	"testing"

	auth "github.com/secureplatform/platform-auth"
	"github.com/stretchr/testify/assert"
)

func TestHashPassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		wantErr  bool
	}{
		{
			name:     "Valid password",
			password: "securePassword123!",
			wantErr:  false,
		},
		{
			name:     "Empty password",
			password: "",
			wantErr:  true, // bcrypt can hash empty strings!
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hash, err := auth.HashPassword(tt.password)

			if tt.wantErr {
				assert.Error(t, err)
				return
			}

			assert.NoError(t, err)
			assert.NotEmpty(t, hash)
			assert.NotEqual(t, tt.password, hash)

			err = auth.ComparePasswordAndHash(tt.password, hash)
			assert.NoError(t, err)
		})
	}
}

func TestComparePasswordAndHash(t *testing.T) {
	password := "testPassword123!"
	hash, err := auth.HashPassword(password)
	assert.NoError(t, err)

	tests := []struct {
		name     string
		password string
		hash     string
		wantErr  bool
	}{
		{
			name:     "Matching password",
			password: password,
			hash:     hash,
			wantErr:  false,
		},
		{
			name:     "Wrong password",
			password: "wrongPassword",
			hash:     hash,
			wantErr:  true,
		},
		{
			name:     "Invalid hash fails closed",
			password: password,
			hash:     "invalidhash",
			wantErr:  true,
		},
		{
			name:     "Empty hash fails closed",
			password: password,
			hash:     "",
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := auth.ComparePasswordAndHash(tt.password, tt.hash)

			if tt.wantErr {
				// Malformed storage and wrong passwords are indistinguishable
				// to the caller.
				assert.Error(t, err)
				assert.Contains(t, err.Error(), auth.ErrMismatchedHashAndPassword.Message)
				return
			}

			assert.NoError(t, err)
		})
	}
}

func TestHashPasswordProducesUniqueSalts(t *testing.T) {
	h1, err := auth.HashPassword("same-password")
	assert.NoError(t, err)

	h2, err := auth.HashPassword("same-password")
	assert.NoError(t, err)

	assert.NotEqual(t, h1, h2)
}

func TestComparePasswordAndHashDoesNotMutateCatalog(t *testing.T) {
	err := auth.ComparePasswordAndHash("any password", "not-a-bcrypt-hash")
	assert.Error(t, err)

	// The unreadable-hash detail stays on the returned copy; the shared
	// sentinel must never pick it up.
	assert.Empty(t, auth.ErrMismatchedHashAndPassword.Metadata)
	assert.ErrorIs(t, err, auth.ErrMismatchedHashAndPassword)
}
