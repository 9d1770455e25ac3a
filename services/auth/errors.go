package auth

import "errors"

var (
	// ErrInvalidRequest rejects malformed requests (bad content type,
	// missing fields) before any store access.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrInvalidOrigin rejects requests from origins outside the allow-list.
	ErrInvalidOrigin = errors.New("origin not allowed")
	// ErrTokenReuse fires when an already rotated token is presented again.
	ErrTokenReuse = errors.New("refresh token reuse detected")
	// ErrInvalidRefreshToken covers unknown or revoked tokens.
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	// ErrRefreshTokenExpired covers tokens found past their expiry.
	ErrRefreshTokenExpired = errors.New("refresh token expired")
	// ErrInvalidTokenType fires when the presented credential is not a
	// refresh token or fails signature verification.
	ErrInvalidTokenType = errors.New("invalid token type")
	// ErrOriginMismatch fires when a token pinned to one origin is
	// presented from another. Handled like reuse.
	ErrOriginMismatch = errors.New("token origin mismatch")
)
