package flows

import (
	"context"
	"time"

	"github.com/MrEthical07/jwtauth/blacklist"
)

// BlacklistDeps captures logout and revocation dependencies.
type BlacklistDeps struct {
	Now    func() time.Time
	Leeway time.Duration
	Codec  TokenCodec
	Store  blacklist.Store
}

// BlacklistResult reports a logout outcome.
type BlacklistResult struct {
	Failure VerifyFailureKind
	Err     error
	Entry   blacklist.Entry
	// Added is false when the token was already blacklisted.
	Added bool
}

// RunBlacklist revokes token until its expiry plus the codec leeway. Any token type is accepted.
func RunBlacklist(ctx context.Context, token string, deps BlacklistDeps) BlacklistResult {
	v := RunVerify(ctx, token, "", false, VerifyDeps{Codec: deps.Codec})
	if v.Failure != VerifyFailureNone {
		return BlacklistResult{Failure: v.Failure, Err: v.Err}
	}

	entry := EntryFor(v.Claims, orNow(deps.Now)(), deps.Leeway)
	added, err := deps.Store.Blacklist(ctx, entry)
	if err != nil {
		return BlacklistResult{Failure: VerifyFailureBackend, Err: err, Entry: entry}
	}
	return BlacklistResult{Entry: entry, Added: added}
}

// RunRevokeUser blacklists every outstanding token of userID.
func RunRevokeUser(ctx context.Context, userID string, deps BlacklistDeps) (int, error) {
	return deps.Store.RevokeUser(ctx, userID)
}
