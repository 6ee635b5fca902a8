package auth

import (
	stderrors "errors"
	"time"

	"chat-sync/domain/chat"
	"chat-sync/errors"

	"github.com/golang-jwt/jwt/v5"
)

// SessionClaims is the structure of the data stored inside the session
// token issued by the auth collaborator.
type SessionClaims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// IdentityFromToken extracts the {userId, role} pair used for the
// identify handshake. Token issuance and signature verification belong
// to the auth collaborator; the sync core only needs the claims and an
// expiry check, so the token is parsed without verifying the signature.
func IdentityFromToken(tokenString string) (chat.Identity, error) {
	var claims SessionClaims
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(tokenString, &claims); err != nil {
		return chat.Identity{}, stderrors.Join(errors.ErrInvalidToken, err)
	}

	if claims.UserID == "" {
		return chat.Identity{}, errors.ErrInvalidToken
	}

	if claims.ExpiresAt != nil && claims.ExpiresAt.Before(time.Now()) {
		return chat.Identity{}, errors.ErrTokenExpired
	}

	return chat.Identity{UserID: claims.UserID, Role: claims.Role}, nil
}
