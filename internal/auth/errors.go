package auth

import "errors"

var (
	ErrMalformedToken    = errors.New("auth: malformed token")
	ErrExpiredToken      = errors.New("auth: expired token")
	ErrRevokedToken      = errors.New("auth: revoked token")
	ErrPrincipalNotFound = errors.New("auth: principal not found")
	ErrUnauthorized      = errors.New("auth: unauthorized")
)
