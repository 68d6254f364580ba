package flows

import (
	"context"
	"time"

	"github.com/MrEthical07/jwtauth/blacklist"
	"github.com/MrEthical07/jwtauth/jwt"
)

// Deps groups the dependency sets of every flow. The root engine builds it
// once in Build.
type Deps struct {
	Obtain    ObtainDeps
	Refresh   RefreshDeps
	Verify    VerifyDeps
	Blacklist BlacklistDeps
}

// TokenCodec issues and parses signed tokens. *jwt.Manager implements it.
type TokenCodec interface {
	Issue(kind jwt.TokenType, userID string) (string, *jwt.Claims, error)
	Parse(token string, expect jwt.TokenType) (*jwt.Claims, error)
}

// User is the flow-local view of an account.
type User struct {
	UserID       string
	Username     string
	PasswordHash string
	Active       bool
}

// IssuedToken is a signed token together with the claims encoded into it.
type IssuedToken struct {
	Token  string
	Claims *jwt.Claims
}

func issue(codec TokenCodec, kind jwt.TokenType, userID string) (*IssuedToken, error) {
	token, claims, err := codec.Issue(kind, userID)
	if err != nil {
		return nil, err
	}
	return &IssuedToken{Token: token, Claims: claims}, nil
}

// EntryFor converts token claims into a blacklist entry created at now. The
// entry is retained until exp plus leeway, the last instant Parse still
// accepts the token.
func EntryFor(c *jwt.Claims, now time.Time, leeway time.Duration) blacklist.Entry {
	e := blacklist.Entry{
		TokenID:   c.ID,
		UserID:    c.UserID,
		TokenType: string(c.TokenType),
		CreatedAt: now,
	}
	if c.ExpiresAt != nil {
		e.ExpiresAt = c.ExpiresAt.Time.Add(leeway)
	}
	return e
}

func nopWarn(string, ...any) {}

func orNow(now func() time.Time) func() time.Time {
	if now == nil {
		return time.Now
	}
	return now
}

func orWarn(warn func(string, ...any)) func(string, ...any) {
	if warn == nil {
		return nopWarn
	}
	return warn
}

type ctxFunc func(context.Context) string

func (f ctxFunc) get(ctx context.Context) string {
	if f == nil {
		return ""
	}
	return f(ctx)
}
