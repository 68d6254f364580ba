package blacklist

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const outstandingScript = `
redis.call("SET", KEYS[1], ARGV[1], "PX", ARGV[2])
redis.call("SADD", KEYS[2], ARGV[3])
local ttl = redis.call("PTTL", KEYS[2])
if ttl < tonumber(ARGV[2]) then
  redis.call("PEXPIRE", KEYS[2], ARGV[2])
end
return 1
`

var outstandingLua = redis.NewScript(outstandingScript)

// KEYS: old blacklist key, old outstanding key, new outstanding key, user set
// ARGV: user id, old ttl ms, new ttl ms, old jti, new jti
const rotateScript = `
if redis.call("EXISTS", KEYS[1]) == 1 then
  return 0
end
redis.call("SET", KEYS[1], ARGV[1], "PX", ARGV[2])
redis.call("DEL", KEYS[2])
redis.call("SREM", KEYS[4], ARGV[4])

local new_ttl = tonumber(ARGV[3])
redis.call("SET", KEYS[3], ARGV[1], "PX", new_ttl)
redis.call("SADD", KEYS[4], ARGV[5])
local set_ttl = redis.call("PTTL", KEYS[4])
if set_ttl < new_ttl then
  redis.call("PEXPIRE", KEYS[4], new_ttl)
end
return 1
`

var rotateLua = redis.NewScript(rotateScript)

// KEYS: user set, outstanding key per id, then blacklist key per id
// ARGV: user id, then the ids in KEYS order
const revokeUserScript = `
local n = (#KEYS - 1) / 2
local revoked = 0
for i = 1, n do
  local okey = KEYS[1 + i]
  local ttl = redis.call("PTTL", okey)
  if ttl > 0 then
    redis.call("SET", KEYS[1 + n + i], ARGV[1], "PX", ttl)
    redis.call("DEL", okey)
    revoked = revoked + 1
  end
  redis.call("SREM", KEYS[1], ARGV[1 + i])
end
if redis.call("SCARD", KEYS[1]) == 0 then
  redis.call("DEL", KEYS[1])
end
return revoked
`

var revokeUserLua = redis.NewScript(revokeUserScript)

// minRetention is the shortest TTL Rotate writes for the rotated token, so a
// token at the very edge of its lifetime is still marked.
const minRetention = time.Second

// RedisStore is the Redis implementation of the token blacklist.
//
// Rotate and RevokeUser touch keys of several token ids in one script. Those
// keys do not share a hash slot, so the store needs a single-node or
// sentinel-managed client; Redis Cluster is not supported.
type RedisStore struct {
	redis  redis.UniversalClient
	prefix string
	now    func() time.Time
}

// NewRedisStore returns a store that namespaces its keys under prefix.
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "jb"
	}
	return &RedisStore{
		redis:  client,
		prefix: prefix,
		now:    time.Now,
	}
}

func (s *RedisStore) blacklistKey(jti string) string {
	return s.prefix + ":bl:" + jti
}

func (s *RedisStore) outstandingKey(jti string) string {
	return s.prefix + ":ot:" + jti
}

func (s *RedisStore) userKey(userID string) string {
	return s.prefix + ":bu:" + userID
}

func (s *RedisStore) reuseKey(userID string) string {
	return s.prefix + ":rr:" + userID
}

// Outstanding records an issued refresh token so it can later be revoked in
// bulk. Entries that are already expired are ignored.
func (s *RedisStore) Outstanding(ctx context.Context, e Entry) error {
	if e.TokenID == "" {
		return ErrInvalidEntry
	}
	ttl := e.Remaining(s.now())
	if ttl <= 0 {
		return nil
	}

	err := outstandingLua.Run(
		ctx,
		s.redis,
		[]string{s.outstandingKey(e.TokenID), s.userKey(e.UserID)},
		e.UserID,
		ttl.Milliseconds(),
		e.TokenID,
	).Err()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Blacklist revokes the token until its expiry. It reports whether the entry
// was newly added; revoking twice is not an error.
func (s *RedisStore) Blacklist(ctx context.Context, e Entry) (bool, error) {
	if e.TokenID == "" {
		return false, ErrInvalidEntry
	}
	ttl := e.Remaining(s.now())
	if ttl <= 0 {
		return false, nil
	}

	var added *redis.BoolCmd
	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		added = pipe.SetNX(ctx, s.blacklistKey(e.TokenID), e.UserID, ttl)
		pipe.Del(ctx, s.outstandingKey(e.TokenID))
		if e.UserID != "" {
			pipe.SRem(ctx, s.userKey(e.UserID), e.TokenID)
		}
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return added.Val(), nil
}

// IsBlacklisted reports whether the token id has been revoked.
func (s *RedisStore) IsBlacklisted(ctx context.Context, tokenID string) (bool, error) {
	n, err := s.redis.Exists(ctx, s.blacklistKey(tokenID)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return n == 1, nil
}

// Rotate blacklists old and records next in one atomic step. When old is
// already blacklisted nothing is written and ErrAlreadyBlacklisted is
// returned, so exactly one of any set of concurrent rotations wins. The old
// id is always written, for at least minRetention.
func (s *RedisStore) Rotate(ctx context.Context, old, next Entry) error {
	if old.TokenID == "" || next.TokenID == "" {
		return ErrInvalidEntry
	}
	now := s.now()
	nextTTL := next.Remaining(now)
	if nextTTL <= 0 {
		return fmt.Errorf("rotate: replacement token %s already expired", next.TokenID)
	}

	res, err := rotateLua.Run(
		ctx,
		s.redis,
		[]string{
			s.blacklistKey(old.TokenID),
			s.outstandingKey(old.TokenID),
			s.outstandingKey(next.TokenID),
			s.userKey(old.UserID),
		},
		old.UserID,
		max(old.Remaining(now), minRetention).Milliseconds(),
		nextTTL.Milliseconds(),
		old.TokenID,
		next.TokenID,
	).Int64()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if res == 0 {
		return ErrAlreadyBlacklisted
	}
	return nil
}

// RevokeUser blacklists every outstanding token of userID and returns how
// many were revoked. Ids indexed after the member listing stay outstanding.
func (s *RedisStore) RevokeUser(ctx context.Context, userID string) (int, error) {
	ids, err := s.OutstandingIDs(ctx, userID)
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}

	keys := make([]string, 0, 1+2*len(ids))
	keys = append(keys, s.userKey(userID))
	for _, id := range ids {
		keys = append(keys, s.outstandingKey(id))
	}
	for _, id := range ids {
		keys = append(keys, s.blacklistKey(id))
	}
	args := make([]any, 0, 1+len(ids))
	args = append(args, userID)
	for _, id := range ids {
		args = append(args, id)
	}

	n, err := revokeUserLua.Run(ctx, s.redis, keys, args...).Int64()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return int(n), nil
}

// OutstandingIDs lists the outstanding token ids recorded for userID.
func (s *RedisStore) OutstandingIDs(ctx context.Context, userID string) ([]string, error) {
	ids, err := s.redis.SMembers(ctx, s.userKey(userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return ids, nil
}

// TrackReuse increments the refresh reuse counter for userID and returns the
// new count. The counter resets after window.
func (s *RedisStore) TrackReuse(ctx context.Context, userID string, window time.Duration) (int64, error) {
	if window <= 0 {
		window = 24 * time.Hour
	}

	key := s.reuseKey(userID)
	count, err := s.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if count == 1 {
		if err := s.redis.Expire(ctx, key, window).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}
	return count, nil
}

// FlushExpired is a no-op for Redis: every key carries the token's TTL.
func (s *RedisStore) FlushExpired(context.Context) (int64, error) {
	return 0, nil
}
