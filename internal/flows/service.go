package flows

import (
	"context"

	"github.com/MrEthical07/jwtauth/jwt"
)

// Service is the flow runner built once by the root engine.
type Service struct {
	deps Deps
}

// New returns a flow service with immutable dependency wiring.
func New(deps Deps) Service {
	return Service{deps: deps}
}

// Initialized reports whether the service has been wired.
func (s Service) Initialized() bool {
	return s.deps.Verify.Codec != nil
}

func (s Service) Obtain(ctx context.Context, username, password string) ObtainResult {
	return RunObtain(ctx, username, password, s.deps.Obtain)
}

func (s Service) Refresh(ctx context.Context, refreshToken string) RefreshResult {
	return RunRefresh(ctx, refreshToken, s.deps.Refresh)
}

func (s Service) Verify(ctx context.Context, token string, expect jwt.TokenType, checkBlacklist bool) VerifyResult {
	return RunVerify(ctx, token, expect, checkBlacklist, s.deps.Verify)
}

func (s Service) Blacklist(ctx context.Context, token string) BlacklistResult {
	return RunBlacklist(ctx, token, s.deps.Blacklist)
}

func (s Service) RevokeUser(ctx context.Context, userID string) (int, error) {
	return RunRevokeUser(ctx, userID, s.deps.Blacklist)
}
