package identity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "regbook/pkg/domain"
)

func TestValidateTokenRoundTrip(t *testing.T) {
	svc := NewJWTService("test-key")
	userID := id.NewUserID()

	token, err := svc.GenerateToken(userID, "actor@example.com", time.Hour)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, "actor@example.com", claims.Email)
}

func TestValidateTokenRejections(t *testing.T) {
	svc := NewJWTService("test-key")

	t.Run("expired token", func(t *testing.T) {
		token, err := svc.GenerateToken(id.NewUserID(), "actor@example.com", -time.Minute)
		require.NoError(t, err)

		_, err = svc.ValidateToken(token)
		require.Error(t, err)
	})

	t.Run("wrong signing key", func(t *testing.T) {
		other := NewJWTService("different-key")
		token, err := other.GenerateToken(id.NewUserID(), "actor@example.com", time.Hour)
		require.NoError(t, err)

		_, err = svc.ValidateToken(token)
		require.Error(t, err)
	})

	t.Run("garbage token", func(t *testing.T) {
		_, err := svc.ValidateToken("not.a.jwt")
		require.Error(t, err)
	})

	t.Run("missing email claim", func(t *testing.T) {
		token, err := svc.GenerateToken(id.NewUserID(), "", time.Hour)
		require.NoError(t, err)

		_, err = svc.ValidateToken(token)
		require.Error(t, err)
	})
}
