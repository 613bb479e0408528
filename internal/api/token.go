package api

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// IssueToken signs an HS256 token the auth middleware accepts for runnerID.
// Production tokens come from the identity service; this is for operators
// and local development.
func IssueToken(secret string, runnerID primitive.ObjectID, ttl time.Duration, now time.Time) (string, error) {
	if secret == "" {
		return "", errors.New("jwt secret is empty")
	}
	if ttl <= 0 {
		ttl = time.Hour // Default to 1 hour if not set properly
	}
	claims := &jwtClaims{
		UserID: runnerID.Hex(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   runnerID.Hex(),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "stride-planner",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}
