package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/jwtauth/blacklist"
	"github.com/MrEthical07/jwtauth/jwt"
)

// ObtainFailureKind classifies obtain failures for root-level mapping.
type ObtainFailureKind int

const (
	ObtainFailureNone ObtainFailureKind = iota
	ObtainFailureRateLimited
	ObtainFailureInvalidCredentials
	ObtainFailureInactive
	ObtainFailureIssue
	ObtainFailureBackend
)

// ObtainResult carries the issued pair or failure metadata.
type ObtainResult struct {
	Failure ObtainFailureKind
	Err     error
	UserID  string
	IP      string
	Access  *IssuedToken
	Refresh *IssuedToken
	// HashUpgraded is set when the stored password hash was replaced.
	HashUpgraded bool
}

// ObtainDeps captures credential-issue dependencies. Optional hooks may be nil.
type ObtainDeps struct {
	ClientIPFromContext func(context.Context) string
	Now                 func() time.Time
	Leeway              time.Duration

	CheckLoginRate     func(ctx context.Context, username, ip string) error
	IncrementLoginRate func(ctx context.Context, username, ip string) error
	ResetLoginRate     func(ctx context.Context, username string) error
	RateLimited        error

	GetUserByUsername  func(ctx context.Context, username string) (User, error)
	UserNotFound       error
	UpdateLastLogin    func(ctx context.Context, userID string, at time.Time) error
	UpdatePasswordHash func(ctx context.Context, userID, hash string) error

	VerifyPassword      func(plain, encoded string) (bool, error)
	VerifyDummy         func(plain string)
	PasswordNeedsRehash func(encoded string) (bool, error)
	HashPassword        func(plain string) (string, error)

	Codec TokenCodec
	Store blacklist.Store
	Warn  func(string, ...any)
}

// RunObtain checks username/password and issues an access/refresh pair.
func RunObtain(ctx context.Context, username, password string, deps ObtainDeps) ObtainResult {
	now := orNow(deps.Now)
	warn := orWarn(deps.Warn)
	ip := ctxFunc(deps.ClientIPFromContext).get(ctx)

	if deps.CheckLoginRate != nil {
		if err := deps.CheckLoginRate(ctx, username, ip); err != nil {
			if deps.RateLimited != nil && errors.Is(err, deps.RateLimited) {
				return ObtainResult{Failure: ObtainFailureRateLimited, Err: err, IP: ip}
			}
			return ObtainResult{Failure: ObtainFailureBackend, Err: err, IP: ip}
		}
	}

	fail := func(kind ObtainFailureKind, userID string, cause error) ObtainResult {
		res := ObtainResult{Failure: kind, Err: cause, UserID: userID, IP: ip}
		if deps.IncrementLoginRate == nil {
			return res
		}
		if err := deps.IncrementLoginRate(ctx, username, ip); err != nil {
			if deps.RateLimited != nil && errors.Is(err, deps.RateLimited) {
				// still an invalid-credentials answer; the next attempt is blocked
				return res
			}
			warn("jwtauth: login failure counter update failed")
		}
		return res
	}

	user, err := deps.GetUserByUsername(ctx, username)
	if err != nil {
		if deps.UserNotFound != nil && errors.Is(err, deps.UserNotFound) {
			if deps.VerifyDummy != nil {
				deps.VerifyDummy(password)
			}
			return fail(ObtainFailureInvalidCredentials, "", err)
		}
		return ObtainResult{Failure: ObtainFailureBackend, Err: err, IP: ip}
	}

	ok, err := deps.VerifyPassword(password, user.PasswordHash)
	if err != nil || !ok {
		return fail(ObtainFailureInvalidCredentials, user.UserID, err)
	}
	if !user.Active {
		return fail(ObtainFailureInactive, user.UserID, nil)
	}

	access, err := issue(deps.Codec, jwt.TypeAccess, user.UserID)
	if err != nil {
		return ObtainResult{Failure: ObtainFailureIssue, Err: err, UserID: user.UserID, IP: ip}
	}
	refresh, err := issue(deps.Codec, jwt.TypeRefresh, user.UserID)
	if err != nil {
		return ObtainResult{Failure: ObtainFailureIssue, Err: err, UserID: user.UserID, IP: ip}
	}

	if deps.Store != nil {
		if err := deps.Store.Outstanding(ctx, EntryFor(refresh.Claims, now(), deps.Leeway)); err != nil {
			return ObtainResult{Failure: ObtainFailureBackend, Err: err, UserID: user.UserID, IP: ip}
		}
	}

	if deps.ResetLoginRate != nil {
		if err := deps.ResetLoginRate(ctx, username); err != nil {
			warn("jwtauth: login counter reset failed")
		}
	}
	if deps.UpdateLastLogin != nil {
		if err := deps.UpdateLastLogin(ctx, user.UserID, now()); err != nil {
			warn("jwtauth: last login update failed")
		}
	}

	res := ObtainResult{UserID: user.UserID, IP: ip, Access: access, Refresh: refresh}
	res.HashUpgraded = upgradeHash(ctx, password, user, deps, warn)
	return res
}

func upgradeHash(ctx context.Context, password string, user User, deps ObtainDeps, warn func(string, ...any)) bool {
	if deps.PasswordNeedsRehash == nil || deps.HashPassword == nil || deps.UpdatePasswordHash == nil {
		return false
	}
	stale, err := deps.PasswordNeedsRehash(user.PasswordHash)
	if err != nil || !stale {
		return false
	}
	hash, err := deps.HashPassword(password)
	if err != nil {
		warn("jwtauth: password rehash failed")
		return false
	}
	if err := deps.UpdatePasswordHash(ctx, user.UserID, hash); err != nil {
		warn("jwtauth: password hash upgrade failed")
		return false
	}
	return true
}
