package auth

import (
	"testing"
	"time"

	"chat-sync/errors"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func signedToken(t *testing.T, claims SessionClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &claims)
	signed, err := token.SignedString([]byte("test_secret"))
	require.NoError(t, err)
	return signed
}

func TestIdentityFromToken(t *testing.T) {
	t.Run("should extract user id and role", func(t *testing.T) {
		req := require.New(t)
		token := signedToken(t, SessionClaims{
			UserID: "user-42",
			Role:   "member",
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
		})

		identity, err := IdentityFromToken(token)

		req.NoError(err)
		req.Equal("user-42", identity.UserID)
		req.Equal("member", identity.Role)
	})

	t.Run("should reject an expired token", func(t *testing.T) {
		token := signedToken(t, SessionClaims{
			UserID: "user-42",
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
			},
		})

		_, err := IdentityFromToken(token)
		require.ErrorIs(t, err, errors.ErrTokenExpired)
	})

	t.Run("should reject a token without user id", func(t *testing.T) {
		token := signedToken(t, SessionClaims{Role: "member"})

		_, err := IdentityFromToken(token)
		require.ErrorIs(t, err, errors.ErrInvalidToken)
	})

	t.Run("should reject garbage", func(t *testing.T) {
		_, err := IdentityFromToken("not-a-jwt")
		require.ErrorIs(t, err, errors.ErrInvalidToken)
	})
}
