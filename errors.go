package jwtauth

import "errors"

var (
	// ErrInvalidCredentials means the username or password did not match.
	ErrInvalidCredentials = errors.New("no active account found with the given credentials")
	// ErrAccountInactive means the credentials matched an inactive account.
	ErrAccountInactive = errors.New("user is inactive")
	// ErrUserNotFound is returned by a UserProvider for unknown users.
	ErrUserNotFound = errors.New("user not found")
	// ErrDuplicateUser is returned by a UserProvider when a username is taken.
	ErrDuplicateUser = errors.New("user already exists")

	// ErrTokenInvalid covers bad signatures, malformed tokens and wrong types.
	ErrTokenInvalid = errors.New("token is invalid")
	// ErrTokenExpired is wrapped together with ErrTokenInvalid.
	ErrTokenExpired = errors.New("token is expired")
	// ErrTokenBlacklisted means the token id has been revoked.
	ErrTokenBlacklisted = errors.New("token is blacklisted")

	// ErrRefreshInvalid means the refresh token could not be used.
	ErrRefreshInvalid = errors.New("refresh token is invalid")
	// ErrRefreshReuse means a refresh token was presented after it had been
	// rotated.
	ErrRefreshReuse = errors.New("refresh token reuse detected")

	ErrLoginRateLimited   = errors.New("login rate limited")
	ErrRefreshRateLimited = errors.New("refresh rate limited")

	// ErrBackendUnavailable wraps store and Redis outages.
	ErrBackendUnavailable = errors.New("token backend unavailable")
	// ErrInvalidMode is returned for an unknown ValidationMode.
	ErrInvalidMode = errors.New("invalid validation mode")
	// ErrEngineNotReady is returned when an Engine was not built by Builder.
	ErrEngineNotReady = errors.New("engine not initialized")
)
