package blacklist

import "errors"

var (
	// ErrAlreadyBlacklisted is returned by Rotate when the old token was
	// already revoked, which means the refresh token is being replayed.
	ErrAlreadyBlacklisted = errors.New("token already blacklisted")
	// ErrUnavailable wraps backend failures.
	ErrUnavailable = errors.New("blacklist backend unavailable")
	// ErrInvalidEntry is returned for entries without a token id.
	ErrInvalidEntry = errors.New("blacklist entry requires a token id")
)
