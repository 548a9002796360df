package auth

import "errors"

var (
	// ErrInvalidToken indicates the token failed validation.
	ErrInvalidToken = errors.New("invalid token")
	// ErrUnauthorized indicates no authenticated principal is present.
	ErrUnauthorized = errors.New("auth: unauthorized")
	// ErrForbidden indicates the principal may not perform the operation.
	ErrForbidden = errors.New("auth: forbidden")
)
