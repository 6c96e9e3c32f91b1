package auth

import "errors"

var (
	// ErrUnauthorized represents missing or invalid session tokens.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrMissingShop is returned for a valid token that carries no shop id.
	ErrMissingShop = errors.New("session has no shop")
)
