package auth

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the payload inside an operator token. Tokens are minted by the
// deployment tooling, not by this service; the mirror only verifies them.
type Claims struct {
	Operator string `json:"operator"`
	jwt.RegisteredClaims
}

// ParseToken validates a JWT string and extracts the claims. It verifies the
// HMAC signature, the expiry, and that the signing method really is HMAC so
// an attacker cannot switch the algorithm.
func ParseToken(tokenString, secret string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return []byte(secret), nil
		},
	)
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}

	return claims, nil
}
