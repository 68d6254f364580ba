package flows

import (
	"context"
	"errors"

	"github.com/MrEthical07/jwtauth/blacklist"
	"github.com/MrEthical07/jwtauth/jwt"
)

// ModeResolverConfig lets the root package pass its mode enum values without
// this package importing them.
type ModeResolverConfig struct {
	ModeInherit   int
	ModeStateless int
	ModeStrict    int
}

// ResolveMode resolves a per-call mode against the engine default.
func ResolveMode(callMode, engineMode int, cfg ModeResolverConfig) (int, bool) {
	switch callMode {
	case cfg.ModeInherit:
		switch engineMode {
		case cfg.ModeStateless, cfg.ModeStrict:
			return engineMode, true
		default:
			return 0, false
		}
	case cfg.ModeStateless, cfg.ModeStrict:
		return callMode, true
	default:
		return 0, false
	}
}

// VerifyFailureKind classifies verification failures.
type VerifyFailureKind int

const (
	VerifyFailureNone VerifyFailureKind = iota
	VerifyFailureInvalid
	VerifyFailureExpired
	VerifyFailureBlacklisted
	VerifyFailureBackend
)

// VerifyResult carries the verified claims or a classified failure.
type VerifyResult struct {
	Failure VerifyFailureKind
	Err     error
	Claims  *jwt.Claims
}

// VerifyDeps captures verification dependencies.
type VerifyDeps struct {
	Codec TokenCodec
	Store blacklist.Store
}

// RunVerify parses token as expect (empty accepts any type) and, when
// checkBlacklist is set, rejects revoked token ids.
func RunVerify(ctx context.Context, token string, expect jwt.TokenType, checkBlacklist bool, deps VerifyDeps) VerifyResult {
	claims, err := deps.Codec.Parse(token, expect)
	if err != nil {
		if errors.Is(err, jwt.ErrExpired) {
			return VerifyResult{Failure: VerifyFailureExpired, Err: err}
		}
		return VerifyResult{Failure: VerifyFailureInvalid, Err: err}
	}
	if !checkBlacklist || deps.Store == nil {
		return VerifyResult{Claims: claims}
	}

	revoked, err := deps.Store.IsBlacklisted(ctx, claims.ID)
	if err != nil {
		return VerifyResult{Failure: VerifyFailureBackend, Err: err, Claims: claims}
	}
	if revoked {
		return VerifyResult{Failure: VerifyFailureBlacklisted, Claims: claims}
	}
	return VerifyResult{Claims: claims}
}
