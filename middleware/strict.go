package middleware

import (
	"net/http"

	"github.com/MrEthical07/jwtauth"
)

// RequireStrict also rejects access tokens that were blacklisted on logout.
func RequireStrict(verifier Verifier) func(http.Handler) http.Handler {
	return Guard(verifier, jwtauth.ModeStrict)
}
