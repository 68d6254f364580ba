package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/jwtauth/blacklist"
	"github.com/MrEthical07/jwtauth/jwt"
)

// RefreshFailureKind classifies refresh flow failures for root-level mapping.
type RefreshFailureKind int

const (
	RefreshFailureNone RefreshFailureKind = iota
	RefreshFailureDecode
	RefreshFailureRateLimited
	RefreshFailureBlacklisted
	RefreshFailureUserMissing
	RefreshFailureInactive
	RefreshFailureIssue
	RefreshFailureReuse
	RefreshFailureBackend
)

// RefreshResult carries the new tokens or failure metadata.
type RefreshResult struct {
	Failure RefreshFailureKind
	Err     error
	UserID  string
	// TokenID is the jti of the presented refresh token.
	TokenID string
	Access  *IssuedToken
	// Refresh is nil when rotation is disabled.
	Refresh *IssuedToken
	// Revoked counts tokens blacklisted because of reuse.
	Revoked int
}

// RefreshDeps captures refresh flow dependencies.
type RefreshDeps struct {
	Now    func() time.Time
	Leeway time.Duration
	Codec  TokenCodec
	Store  blacklist.Store

	CheckRefreshRate func(ctx context.Context, tokenID string) error
	RateLimited      error

	CheckUserActive bool
	GetUserByID     func(ctx context.Context, userID string) (User, error)
	UserNotFound    error

	RotateRefreshTokens    bool
	BlacklistAfterRotation bool
	RevokeOnReuse          bool

	Warn func(string, ...any)
}

// RunRefresh validates a refresh token and issues a new access token,
// rotating the refresh token when configured.
func RunRefresh(ctx context.Context, refreshToken string, deps RefreshDeps) RefreshResult {
	now := orNow(deps.Now)
	warn := orWarn(deps.Warn)

	claims, err := deps.Codec.Parse(refreshToken, jwt.TypeRefresh)
	if err != nil {
		return RefreshResult{Failure: RefreshFailureDecode, Err: err}
	}
	base := RefreshResult{UserID: claims.UserID, TokenID: claims.ID}
	failed := func(kind RefreshFailureKind, err error) RefreshResult {
		r := base
		r.Failure = kind
		r.Err = err
		return r
	}

	if deps.CheckRefreshRate != nil {
		if err := deps.CheckRefreshRate(ctx, claims.ID); err != nil {
			if deps.RateLimited != nil && errors.Is(err, deps.RateLimited) {
				return failed(RefreshFailureRateLimited, err)
			}
			return failed(RefreshFailureBackend, err)
		}
	}

	if deps.Store != nil {
		revoked, err := deps.Store.IsBlacklisted(ctx, claims.ID)
		if err != nil {
			return failed(RefreshFailureBackend, err)
		}
		if revoked {
			return failed(RefreshFailureBlacklisted, nil)
		}
	}

	if deps.CheckUserActive && deps.GetUserByID != nil {
		user, err := deps.GetUserByID(ctx, claims.UserID)
		if err != nil {
			if deps.UserNotFound != nil && errors.Is(err, deps.UserNotFound) {
				return failed(RefreshFailureUserMissing, err)
			}
			return failed(RefreshFailureBackend, err)
		}
		if !user.Active {
			return failed(RefreshFailureInactive, nil)
		}
	}

	access, err := issue(deps.Codec, jwt.TypeAccess, claims.UserID)
	if err != nil {
		return failed(RefreshFailureIssue, err)
	}
	res := base
	res.Access = access
	if !deps.RotateRefreshTokens {
		return res
	}

	next, err := issue(deps.Codec, jwt.TypeRefresh, claims.UserID)
	if err != nil {
		return failed(RefreshFailureIssue, err)
	}
	res.Refresh = next
	if deps.Store == nil {
		return res
	}

	at := now()
	if !deps.BlacklistAfterRotation {
		if err := deps.Store.Outstanding(ctx, EntryFor(next.Claims, at, deps.Leeway)); err != nil {
			return failed(RefreshFailureBackend, err)
		}
		return res
	}

	err = deps.Store.Rotate(ctx, EntryFor(claims, at, deps.Leeway), EntryFor(next.Claims, at, deps.Leeway))
	switch {
	case err == nil:
		return res
	case errors.Is(err, blacklist.ErrAlreadyBlacklisted):
		out := failed(RefreshFailureReuse, err)
		if deps.RevokeOnReuse {
			n, revokeErr := deps.Store.RevokeUser(ctx, claims.UserID)
			if revokeErr != nil {
				warn("jwtauth: revoke on refresh reuse failed")
			}
			out.Revoked = n
		}
		return out
	default:
		return failed(RefreshFailureBackend, err)
	}
}
