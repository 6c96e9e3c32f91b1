package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Session is the verified identity of a shop owner. TenantID is the owner's shop id.
type Session struct {
	UserID    string
	Email     string
	TenantID  string
	ExpiresAt time.Time
}

// sessionClaims mirrors the token issued by the account service.
type sessionClaims struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	ShopID string `json:"shopId"`
	jwt.RegisteredClaims
}
