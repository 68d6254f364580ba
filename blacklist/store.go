package blacklist

import "context"

// Store persists outstanding and revoked token ids. Implementations must
// make Rotate atomic: of any number of concurrent Rotate calls for the same
// old entry, exactly one succeeds.
type Store interface {
	Outstanding(ctx context.Context, e Entry) error
	Blacklist(ctx context.Context, e Entry) (bool, error)
	IsBlacklisted(ctx context.Context, tokenID string) (bool, error)
	Rotate(ctx context.Context, old, next Entry) error
	RevokeUser(ctx context.Context, userID string) (int, error)
}

var _ Store = (*RedisStore)(nil)
