//go:build integration

package blacklist

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type redisMode struct {
	name  string
	setup func(t *testing.T) redis.UniversalClient
}

// redisModes always includes miniredis; REDIS_ADDR adds a real server.
func redisModes(t *testing.T) []redisMode {
	t.Helper()
	modes := []redisMode{{
		name: "miniredis",
		setup: func(t *testing.T) redis.UniversalClient {
			mr := miniredis.RunT(t)
			rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
			t.Cleanup(func() { _ = rdb.Close() })
			return rdb
		},
	}}

	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		modes = append(modes, redisMode{
			name: "standalone:" + addr,
			setup: func(t *testing.T) redis.UniversalClient {
				rdb := redis.NewClient(&redis.Options{Addr: addr})
				ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
				defer cancel()
				if err := rdb.Ping(ctx).Err(); err != nil {
					t.Skipf("cannot connect to Redis at %s: %v", addr, err)
				}
				rdb.FlushDB(context.Background())
				t.Cleanup(func() { rdb.FlushDB(context.Background()); _ = rdb.Close() })
				return rdb
			},
		})
	}
	return modes
}

func TestRedisCompatLuaScripts(t *testing.T) {
	for _, mode := range redisModes(t) {
		t.Run(mode.name, func(t *testing.T) {
			store := NewRedisStore(mode.setup(t), "compat")
			ctx := context.Background()

			old := testEntry("old", time.Hour)
			if err := store.Outstanding(ctx, old); err != nil {
				t.Fatalf("Outstanding failed: %v", err)
			}
			if err := store.Rotate(ctx, old, testEntry("new", time.Hour)); err != nil {
				t.Fatalf("Rotate failed: %v", err)
			}
			if err := store.Rotate(ctx, old, testEntry("other", time.Hour)); !errors.Is(err, ErrAlreadyBlacklisted) {
				t.Fatalf("expected ErrAlreadyBlacklisted, got %v", err)
			}

			n, err := store.RevokeUser(ctx, "u1")
			if err != nil || n != 1 {
				t.Fatalf("RevokeUser: n=%d err=%v", n, err)
			}
			for _, jti := range []string{"old", "new"} {
				if ok, err := store.IsBlacklisted(ctx, jti); err != nil || !ok {
					t.Fatalf("expected %s blacklisted, ok=%v err=%v", jti, ok, err)
				}
			}
		})
	}
}
