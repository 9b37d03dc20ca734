package types

import "github.com/golang-jwt/jwt/v5"

// TokenClaims represents the claims in an auth token
type TokenClaims struct {
	jwt.RegisteredClaims
	UserID   uint   `json:"user_id"`
	Username string `json:"username"`
}
