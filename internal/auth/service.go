package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/abduss/shopdrop/internal/config"
	"github.com/golang-jwt/jwt/v5"
)

// Verifier validates HS256 session tokens issued by the account service.
type Verifier struct {
	secret  []byte
	nowFunc func() time.Time
	parser  *jwt.Parser
}

// NewVerifier creates a Verifier for the configured secret.
func NewVerifier(cfg config.AuthConfig) *Verifier {
	v := &Verifier{
		secret:  []byte(cfg.TokenSecret),
		nowFunc: time.Now,
	}
	v.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return v.nowFunc() }),
	)
	return v
}

// Verify checks the token signature and expiry and extracts the session.
func (v *Verifier) Verify(tokenString string) (Session, error) {
	if strings.TrimSpace(tokenString) == "" {
		return Session{}, ErrUnauthorized
	}

	var claims sessionClaims
	parsed, err := v.parser.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil || !parsed.Valid {
		return Session{}, ErrUnauthorized
	}

	userID := claims.UserID
	if userID == "" {
		userID = claims.Subject
	}
	if userID == "" {
		return Session{}, ErrUnauthorized
	}
	if strings.TrimSpace(claims.ShopID) == "" {
		return Session{}, errors.Join(ErrUnauthorized, ErrMissingShop)
	}

	session := Session{
		UserID:   userID,
		Email:    claims.Email,
		TenantID: claims.ShopID,
	}
	if claims.ExpiresAt != nil {
		session.ExpiresAt = claims.ExpiresAt.Time
	}
	return session, nil
}

// Sign issues a token for the session valid for ttl. The account service normally does
// this; it is exported for local tooling and tests.
func (v *Verifier) Sign(session Session, ttl time.Duration) (string, error) {
	now := v.nowFunc()
	claims := sessionClaims{
		UserID: session.UserID,
		Email:  session.Email,
		ShopID: session.TenantID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   session.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return signed, nil
}
