package jwtauth

import (
	"context"
	"time"

	"github.com/MrEthical07/jwtauth/blacklist"
	"github.com/MrEthical07/jwtauth/jwt"
)

// UserRecord is the account view the engine needs.
type UserRecord struct {
	UserID       string
	Username     string
	Email        string
	PasswordHash string
	Active       bool
	Staff        bool
}

// UserProvider is implemented by the application's user store.
//
// GetUserByUsername and GetUserByID must return an error matching
// [ErrUserNotFound] for unknown users.
type UserProvider interface {
	GetUserByUsername(ctx context.Context, username string) (UserRecord, error)
	GetUserByID(ctx context.Context, userID string) (UserRecord, error)
	UpdateLastLogin(ctx context.Context, userID string, at time.Time) error
	UpdatePasswordHash(ctx context.Context, userID, hash string) error
}

// BlacklistStore persists outstanding and revoked token ids. See
// [blacklist.RedisStore] and the Postgres TokenStore.
type BlacklistStore = blacklist.Store

// TokenType is "access" or "refresh".
type TokenType = jwt.TokenType

const (
	TokenAccess  = jwt.TypeAccess
	TokenRefresh = jwt.TypeRefresh
)

// TokenPair is the result of ObtainPair and Refresh. Refresh is empty when a
// refresh call runs without rotation.
type TokenPair struct {
	Access           string
	Refresh          string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// AuthResult describes a verified token.
type AuthResult struct {
	UserID    string
	TokenType TokenType
	TokenID   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

func authResultFromClaims(c *jwt.Claims) *AuthResult {
	r := &AuthResult{
		UserID:    c.UserID,
		TokenType: c.TokenType,
		TokenID:   c.ID,
	}
	if c.IssuedAt != nil {
		r.IssuedAt = c.IssuedAt.Time
	}
	if c.ExpiresAt != nil {
		r.ExpiresAt = c.ExpiresAt.Time
	}
	return r
}
