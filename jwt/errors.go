package jwt

import "errors"

var (
	// ErrInvalid is returned for any token that fails verification.
	ErrInvalid = errors.New("token is invalid")
	// ErrExpired accompanies ErrInvalid when the token is past exp.
	ErrExpired = errors.New("token is expired")
	// ErrWrongType accompanies ErrInvalid when token_type does not match.
	ErrWrongType = errors.New("token has wrong type")
	// ErrInvalidLifetime is returned when exp does not follow iat.
	ErrInvalidLifetime = errors.New("token expiry must be after issued-at")
	// ErrVerifyOnly is returned by Issue on a manager without a signing key.
	ErrVerifyOnly = errors.New("manager has no signing key")
)
