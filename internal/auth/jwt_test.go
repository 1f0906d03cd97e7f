package auth_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kortekstream/kortekstream/internal/auth"
)

func newService() *auth.Service {
	return auth.NewService(auth.Config{
		SigningKey: "test-secret-key-for-testing-only",
	})
}

func TestService_GenerateAndValidate(t *testing.T) {
	service := newService()

	token, expiresAt, err := service.GenerateToken("ops@kortekstream.online")
	require.NoError(t, err)
	require.NotEmpty(t, token)
	assert.WithinDuration(t, time.Now().Add(auth.TokenExpiry), expiresAt, time.Minute)

	claims, err := service.ValidateToken(token)
	require.NoError(t, err)

	assert.Equal(t, "ops@kortekstream.online", claims.Operator)
	assert.Equal(t, "ops@kortekstream.online", claims.Subject)
	assert.Equal(t, "kortekstream", claims.Issuer)
	assert.NotEmpty(t, claims.ID)
}

func TestService_ValidateToken_Garbage(t *testing.T) {
	service := newService()

	_, err := service.ValidateToken("not.a.jwt")
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestService_ValidateToken_WrongKey(t *testing.T) {
	service := newService()
	other := auth.NewService(auth.Config{SigningKey: "a-different-key"})

	token, _, err := other.GenerateToken("mallory")
	require.NoError(t, err)

	_, err = service.ValidateToken(token)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestService_ValidateToken_WrongIssuer(t *testing.T) {
	service := newService()
	other := auth.NewService(auth.Config{
		SigningKey: "test-secret-key-for-testing-only",
		Issuer:     "someone-else",
	})

	token, _, err := other.GenerateToken("ops")
	require.NoError(t, err)

	_, err = service.ValidateToken(token)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestService_ValidateToken_WrongAudience(t *testing.T) {
	service := newService()
	other := auth.NewService(auth.Config{
		SigningKey: "test-secret-key-for-testing-only",
		Audience:   "another-service",
	})

	token, _, err := other.GenerateToken("ops")
	require.NoError(t, err)

	_, err = service.ValidateToken(token)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestService_TokenIDsUnique(t *testing.T) {
	service := newService()

	a, _, err := service.GenerateToken("ops")
	require.NoError(t, err)
	b, _, err := service.GenerateToken("ops")
	require.NoError(t, err)

	claimsA, err := service.ValidateToken(a)
	require.NoError(t, err)
	claimsB, err := service.ValidateToken(b)
	require.NoError(t, err)

	assert.NotEqual(t, claimsA.ID, claimsB.ID)
}
