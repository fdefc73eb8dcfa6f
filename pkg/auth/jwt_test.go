package auth_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/shashiranjanraj/orderdesk/pkg/auth"
)

func TestTokenRoundTrip(t *testing.T) {
	token, err := auth.GenerateToken("staff", "Manager")
	require.NoError(t, err)

	claims, err := auth.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "staff", claims.StaffID)
	assert.Equal(t, "Manager", claims.Role)
}

func TestValidateToken_RejectsTampered(t *testing.T) {
	token, err := auth.GenerateToken("staff", "Manager")
	require.NoError(t, err)

	_, err = auth.ValidateToken(token + "x")
	assert.Error(t, err)
}

func TestBcryptVerifier(t *testing.T) {
	v := auth.BcryptVerifier{Cost: bcrypt.MinCost}

	hash, err := v.Hash("password")
	require.NoError(t, err)
	assert.NotEqual(t, "password", hash)

	assert.NoError(t, v.Verify(hash, "password"))
	assert.ErrorIs(t, v.Verify(hash, "wrong"), auth.ErrMismatch)
}

func TestClaimsContext(t *testing.T) {
	_, ok := auth.ClaimsFromCtx(context.Background())
	assert.False(t, ok)

	ctx := auth.WithClaims(context.Background(), &auth.Claims{StaffID: "s1"})
	c, ok := auth.ClaimsFromCtx(ctx)
	require.True(t, ok)
	assert.Equal(t, "s1", c.StaffID)
}
