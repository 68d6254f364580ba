package jwtauth_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/MrEthical07/jwtauth"
	"github.com/MrEthical07/jwtauth/middleware"
	"github.com/gin-gonic/gin"
)

// Compile-time guard on the exported surface.
func TestPublicAPISurfaceCompile(t *testing.T) {
	_ = jwtauth.New
	_ = jwtauth.DefaultConfig

	var _ *jwtauth.Engine
	var _ jwtauth.Config
	var _ jwtauth.AuthResult
	var _ jwtauth.TokenPair
	var _ jwtauth.UserProvider
	var _ jwtauth.BlacklistStore
	var _ jwtauth.AuditSink

	var _ error = jwtauth.ErrInvalidCredentials
	var _ error = jwtauth.ErrTokenInvalid
	var _ error = jwtauth.ErrTokenBlacklisted
	var _ error = jwtauth.ErrRefreshInvalid
	var _ error = jwtauth.ErrRefreshReuse
	var _ error = jwtauth.ErrBackendUnavailable

	var _ middleware.Verifier = (*jwtauth.Engine)(nil)
	var _ func(middleware.Verifier, jwtauth.ValidationMode) func(http.Handler) http.Handler = middleware.Guard
	var _ func(middleware.Verifier) func(http.Handler) http.Handler = middleware.RequireStateless
	var _ func(middleware.Verifier) func(http.Handler) http.Handler = middleware.RequireStrict
	var _ func(middleware.Verifier) gin.HandlerFunc = middleware.GinGuard

	var _ func(*jwtauth.Engine, context.Context, string, string) (*jwtauth.TokenPair, error) = (*jwtauth.Engine).ObtainPair
	var _ func(*jwtauth.Engine, context.Context, string) (*jwtauth.TokenPair, error) = (*jwtauth.Engine).Refresh
	var _ func(*jwtauth.Engine, context.Context, string) (*jwtauth.AuthResult, error) = (*jwtauth.Engine).Verify
	var _ func(*jwtauth.Engine, context.Context, string, jwtauth.ValidationMode) (*jwtauth.AuthResult, error) = (*jwtauth.Engine).VerifyWithMode
	var _ func(*jwtauth.Engine, context.Context, string) error = (*jwtauth.Engine).Blacklist
	var _ func(*jwtauth.Engine, context.Context, string) (int, error) = (*jwtauth.Engine).RevokeUser
}
