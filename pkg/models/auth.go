package models

import (
	"github.com/golang-jwt/jwt/v5"
)

// JWTClaims carries the authenticated shopper identity.
type JWTClaims struct {
	UserID string `json:"user_id"`
	Tier   string `json:"tier"`
	jwt.RegisteredClaims
}
