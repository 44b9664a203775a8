package security

import "errors"

var (
	ErrPasswordTooShort = errors.New("password too short")
	ErrInvalidToken     = errors.New("invalid token")
	ErrTokenExpired     = errors.New("token expired")
	ErrInvalidIssuer    = errors.New("invalid token issuer")
	ErrInvalidSubject   = errors.New("invalid token subject")
)
