package jwtauth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	internalaudit "github.com/MrEthical07/jwtauth/internal/audit"
	"github.com/MrEthical07/jwtauth/internal/flows"
	"github.com/MrEthical07/jwtauth/internal/rate"
	"github.com/MrEthical07/jwtauth/jwt"
	"github.com/MrEthical07/jwtauth/password"
)

// Engine issues, refreshes, verifies and revokes tokens.
//
// Engine is immutable after Build and safe for concurrent use.
type Engine struct {
	config       Config
	jwtManager   *jwt.Manager
	passwordHash *password.Hasher
	userProvider UserProvider
	store        BlacklistStore
	rateLimiter  *rate.Limiter
	audit        *internalaudit.Dispatcher
	metrics      *Metrics
	flow         flows.Service
	warn         func(string, ...any)
	clock        func() time.Time
}

// reuseTracker is implemented by stores that count refresh replays per user.
type reuseTracker interface {
	TrackReuse(ctx context.Context, userID string, window time.Duration) (int64, error)
}

// Close flushes pending audit events. The engine must not be used after.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.audit.Close()
}

// AuditDropped returns the number of audit events dropped on a full buffer.
func (e *Engine) AuditDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.audit.Dropped()
}

func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// HashPassword hashes plain with the engine's Argon2id parameters. Use it
// when creating users so that ObtainPair can verify them.
func (e *Engine) HashPassword(plain string) (string, error) {
	if e == nil || e.passwordHash == nil {
		return "", ErrEngineNotReady
	}
	return e.passwordHash.Hash(plain)
}

// ObtainPair exchanges username and password for an access/refresh pair.
//
// Unknown users and wrong passwords both return ErrInvalidCredentials after
// one Argon2 derivation, so the two cases take the same time.
func (e *Engine) ObtainPair(ctx context.Context, username, password string) (*TokenPair, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	start := time.Now()
	defer e.observeSince(MetricObtainLatency, start)

	res := e.flow.Obtain(ctx, username, password)

	switch res.Failure {
	case flows.ObtainFailureNone:
	case flows.ObtainFailureRateLimited:
		e.metricInc(MetricObtainRateLimited)
		e.emitAudit(ctx, AuditEventObtainFailure, false, "", "", ErrLoginRateLimited, func() map[string]string {
			return map[string]string{"username": username}
		})
		e.emitRateLimit(ctx, "login", func() map[string]string {
			return map[string]string{"username": username}
		})
		return nil, ErrLoginRateLimited
	case flows.ObtainFailureInvalidCredentials, flows.ObtainFailureInactive:
		err := ErrInvalidCredentials
		reason := "invalid_credentials"
		if res.Failure == flows.ObtainFailureInactive {
			err = ErrAccountInactive
			reason = "inactive"
		} else if res.UserID == "" {
			reason = "user_not_found"
		}
		e.metricInc(MetricObtainFailure)
		e.emitAudit(ctx, AuditEventObtainFailure, false, res.UserID, "", err, func() map[string]string {
			return map[string]string{"username": username, "reason": reason}
		})
		return nil, err
	default:
		err := e.backendError(res.Err)
		e.metricInc(MetricObtainFailure)
		e.emitAudit(ctx, AuditEventObtainFailure, false, res.UserID, "", err, func() map[string]string {
			return map[string]string{"username": username}
		})
		return nil, err
	}

	e.metricInc(MetricObtainSuccess)
	e.emitAudit(ctx, AuditEventObtainSuccess, true, res.UserID, res.Refresh.Claims.ID, nil, func() map[string]string {
		m := map[string]string{"username": username}
		if res.HashUpgraded {
			m["password_rehashed"] = "true"
		}
		return m
	})

	return &TokenPair{
		Access:           res.Access.Token,
		Refresh:          res.Refresh.Token,
		AccessExpiresAt:  res.Access.Claims.ExpiresAt.Time,
		RefreshExpiresAt: res.Refresh.Claims.ExpiresAt.Time,
	}, nil
}

// Refresh validates refreshToken and issues a new access token. With
// rotation enabled the returned pair also carries a new refresh token.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	start := time.Now()
	defer e.observeSince(MetricRefreshLatency, start)

	res := e.flow.Refresh(ctx, refreshToken)
	if res.Failure != flows.RefreshFailureNone {
		return nil, e.refreshFailed(ctx, res)
	}

	e.metricInc(MetricRefreshSuccess)
	pair := &TokenPair{
		Access:          res.Access.Token,
		AccessExpiresAt: res.Access.Claims.ExpiresAt.Time,
	}
	if res.Refresh != nil {
		e.metricInc(MetricRefreshRotated)
		pair.Refresh = res.Refresh.Token
		pair.RefreshExpiresAt = res.Refresh.Claims.ExpiresAt.Time
	}
	e.emitAudit(ctx, AuditEventRefreshSuccess, true, res.UserID, res.TokenID, nil, func() map[string]string {
		return map[string]string{"rotated": strconv.FormatBool(res.Refresh != nil)}
	})
	return pair, nil
}

func (e *Engine) refreshFailed(ctx context.Context, res flows.RefreshResult) error {
	var err error
	switch res.Failure {
	case flows.RefreshFailureDecode:
		err = ErrRefreshInvalid
		if errors.Is(res.Err, jwt.ErrExpired) {
			err = fmt.Errorf("%w: %w", ErrRefreshInvalid, ErrTokenExpired)
		}
	case flows.RefreshFailureRateLimited:
		e.metricInc(MetricRefreshRateLimited)
		e.emitRateLimit(ctx, "refresh", func() map[string]string {
			return map[string]string{"token_id": res.TokenID}
		})
		err = ErrRefreshRateLimited
	case flows.RefreshFailureBlacklisted:
		e.metricInc(MetricBlacklistHit)
		err = ErrTokenBlacklisted
	case flows.RefreshFailureUserMissing:
		err = ErrRefreshInvalid
	case flows.RefreshFailureInactive:
		err = ErrAccountInactive
	case flows.RefreshFailureReuse:
		e.metricInc(MetricRefreshReuseDetected)
		if res.Revoked > 0 {
			e.metricInc(MetricUserRevoked)
		}
		reuseCount := e.trackReuse(ctx, res.UserID)
		e.emitAudit(ctx, AuditEventRefreshReuseDetected, false, res.UserID, res.TokenID, ErrRefreshReuse, func() map[string]string {
			m := map[string]string{"revoked": strconv.Itoa(res.Revoked)}
			if reuseCount > 0 {
				m["reuse_count"] = strconv.FormatInt(reuseCount, 10)
			}
			return m
		})
		e.metricInc(MetricRefreshFailure)
		return ErrRefreshReuse
	default:
		err = e.backendError(res.Err)
	}

	e.metricInc(MetricRefreshFailure)
	e.emitAudit(ctx, AuditEventRefreshFailure, false, res.UserID, res.TokenID, err, nil)
	return err
}

func (e *Engine) trackReuse(ctx context.Context, userID string) int64 {
	tracker, ok := e.store.(reuseTracker)
	if !ok || userID == "" {
		return 0
	}
	n, err := tracker.TrackReuse(ctx, userID, e.config.JWT.RefreshTTL)
	if err != nil {
		e.warnf("jwtauth: refresh reuse tracking failed")
		return 0
	}
	return n
}

// Verify validates an access token using the engine's ValidationMode.
func (e *Engine) Verify(ctx context.Context, accessToken string) (*AuthResult, error) {
	return e.VerifyWithMode(ctx, accessToken, ModeInherit)
}

// VerifyWithMode validates an access token. ModeInherit uses the engine
// default; ModeStrict additionally rejects blacklisted tokens.
func (e *Engine) VerifyWithMode(ctx context.Context, accessToken string, mode ValidationMode) (*AuthResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	resolved, ok := flows.ResolveMode(int(mode), int(e.config.ValidationMode), flows.ModeResolverConfig{
		ModeInherit:   int(ModeInherit),
		ModeStateless: int(ModeStateless),
		ModeStrict:    int(ModeStrict),
	})
	if !ok {
		return nil, ErrInvalidMode
	}
	return e.verify(ctx, accessToken, jwt.TypeAccess, ValidationMode(resolved) == ModeStrict)
}

// VerifyToken validates a token of either type and always consults the
// blacklist when a store is configured.
func (e *Engine) VerifyToken(ctx context.Context, token string) (*AuthResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	return e.verify(ctx, token, "", true)
}

func (e *Engine) verify(ctx context.Context, token string, expect jwt.TokenType, checkBlacklist bool) (*AuthResult, error) {
	start := time.Now()
	defer e.observeSince(MetricVerifyLatency, start)

	res := e.flow.Verify(ctx, token, expect, checkBlacklist)
	if err := e.verifyError(res.Failure, res.Err); err != nil {
		if res.Failure == flows.VerifyFailureBlacklisted {
			e.metricInc(MetricBlacklistHit)
		}
		e.metricInc(MetricVerifyFailure)
		return nil, err
	}
	e.metricInc(MetricVerifySuccess)
	return authResultFromClaims(res.Claims), nil
}

func (e *Engine) verifyError(kind flows.VerifyFailureKind, cause error) error {
	switch kind {
	case flows.VerifyFailureNone:
		return nil
	case flows.VerifyFailureExpired:
		return fmt.Errorf("%w: %w", ErrTokenInvalid, ErrTokenExpired)
	case flows.VerifyFailureInvalid:
		if cause == nil {
			return ErrTokenInvalid
		}
		return fmt.Errorf("%w: %v", ErrTokenInvalid, cause)
	case flows.VerifyFailureBlacklisted:
		return ErrTokenBlacklisted
	default:
		return e.backendError(cause)
	}
}

// Blacklist revokes token (access or refresh) until it expires. Revoking an
// already revoked token succeeds.
func (e *Engine) Blacklist(ctx context.Context, token string) error {
	if !e.ready() || e.store == nil {
		return ErrEngineNotReady
	}
	res := e.flow.Blacklist(ctx, token)
	if err := e.verifyError(res.Failure, res.Err); err != nil {
		return err
	}
	if res.Added {
		e.metricInc(MetricTokenBlacklisted)
		e.emitAudit(ctx, AuditEventTokenBlacklisted, true, res.Entry.UserID, res.Entry.TokenID, nil, func() map[string]string {
			return map[string]string{"token_type": res.Entry.TokenType}
		})
	}
	return nil
}

// RevokeUser blacklists every outstanding refresh token of userID and
// returns how many were revoked.
func (e *Engine) RevokeUser(ctx context.Context, userID string) (int, error) {
	if !e.ready() || e.store == nil {
		return 0, ErrEngineNotReady
	}
	n, err := e.flow.RevokeUser(ctx, userID)
	if err != nil {
		return 0, e.backendError(err)
	}
	e.metricInc(MetricUserRevoked)
	e.emitAudit(ctx, AuditEventUserRevoked, true, userID, "", nil, func() map[string]string {
		return map[string]string{"revoked": strconv.Itoa(n)}
	})
	return n, nil
}

func (e *Engine) ready() bool {
	return e != nil && e.flow.Initialized()
}

func (e *Engine) backendError(err error) error {
	if err == nil {
		return ErrBackendUnavailable
	}
	if errors.Is(err, ErrBackendUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
}

func (e *Engine) warnf(format string, args ...any) {
	if e.warn != nil {
		e.warn(format, args...)
	}
}

func (e *Engine) flowDeps() flows.Deps {
	now := e.now
	codec := e.jwtManager
	store := e.store

	obtain := flows.ObtainDeps{
		ClientIPFromContext: clientIPFromContext,
		Now:                 now,
		Leeway:              e.config.JWT.Leeway,
		RateLimited:         rate.ErrRateLimited,
		UserNotFound:        ErrUserNotFound,
		VerifyPassword:      e.passwordHash.Verify,
		VerifyDummy:         e.passwordHash.VerifyDummy,
		Codec:               codec,
		Store:               store,
		Warn:                e.warnf,
	}
	obtain.GetUserByUsername = func(ctx context.Context, username string) (flows.User, error) {
		u, err := e.userProvider.GetUserByUsername(ctx, username)
		return flowUser(u), err
	}
	if e.rateLimiter != nil {
		obtain.CheckLoginRate = e.rateLimiter.CheckLogin
		obtain.IncrementLoginRate = e.rateLimiter.IncrementLogin
		obtain.ResetLoginRate = e.rateLimiter.ResetLogin
	}
	if e.config.Security.UpdateLastLogin {
		obtain.UpdateLastLogin = e.userProvider.UpdateLastLogin
	}
	if e.config.Password.UpgradeOnLogin {
		obtain.PasswordNeedsRehash = e.passwordHash.NeedsRehash
		obtain.HashPassword = e.passwordHash.Hash
		obtain.UpdatePasswordHash = e.userProvider.UpdatePasswordHash
	}

	refresh := flows.RefreshDeps{
		Now:                    now,
		Leeway:                 e.config.JWT.Leeway,
		Codec:                  codec,
		Store:                  store,
		RateLimited:            rate.ErrRateLimited,
		UserNotFound:           ErrUserNotFound,
		CheckUserActive:        e.config.Refresh.CheckUserActive,
		RotateRefreshTokens:    e.config.Refresh.RotateRefreshTokens,
		BlacklistAfterRotation: e.config.Refresh.BlacklistAfterRotation,
		RevokeOnReuse:          e.config.Refresh.RevokeOnReuse,
		Warn:                   e.warnf,
	}
	refresh.GetUserByID = func(ctx context.Context, userID string) (flows.User, error) {
		u, err := e.userProvider.GetUserByID(ctx, userID)
		return flowUser(u), err
	}
	if e.rateLimiter != nil {
		refresh.CheckRefreshRate = e.rateLimiter.CheckRefresh
	}

	return flows.Deps{
		Obtain:    obtain,
		Refresh:   refresh,
		Verify:    flows.VerifyDeps{Codec: codec, Store: store},
		Blacklist: flows.BlacklistDeps{Now: now, Leeway: e.config.JWT.Leeway, Codec: codec, Store: store},
	}
}

func flowUser(u UserRecord) flows.User {
	return flows.User{
		UserID:       u.UserID,
		Username:     u.Username,
		PasswordHash: u.PasswordHash,
		Active:       u.Active,
	}
}
