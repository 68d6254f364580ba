package rate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds limiter budgets. A zero MaxLoginAttempts or MaxRefreshAttempts
// disables that limit.
type Config struct {
	Prefix             string
	MaxLoginAttempts   int
	LoginWindow        time.Duration
	ThrottleByIP       bool
	MaxRefreshAttempts int
	RefreshWindow      time.Duration
}

// Limiter counts login failures per username and per client IP, and refresh
// attempts per refresh token id, in fixed Redis windows.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
}

// New returns a Limiter over client. An empty prefix defaults to "jr".
func New(client redis.UniversalClient, cfg Config) *Limiter {
	if cfg.Prefix == "" {
		cfg.Prefix = "jr"
	}
	return &Limiter{redis: client, config: cfg}
}

// hitScript increments KEYS[1] and starts the window on the first hit.
const hitScript = `
local n = redis.call("INCR", KEYS[1])
if n == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return n
`

var hitLua = redis.NewScript(hitScript)

func (l *Limiter) loginUserKey(username string) string {
	return l.config.Prefix + ":lu:" + username
}

func (l *Limiter) loginIPKey(ip string) string {
	return l.config.Prefix + ":li:" + ip
}

func (l *Limiter) refreshKey(tokenID string) string {
	return l.config.Prefix + ":rf:" + tokenID
}

// CheckLogin returns ErrRateLimited once username or ip has used up its
// failure budget. It does not count the attempt.
func (l *Limiter) CheckLogin(ctx context.Context, username, ip string) error {
	if l.config.MaxLoginAttempts <= 0 {
		return nil
	}
	for _, key := range l.loginKeys(username, ip) {
		count, err := l.redis.Get(ctx, key).Int64()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
		if count >= int64(l.config.MaxLoginAttempts) {
			return ErrRateLimited
		}
	}
	return nil
}

// IncrementLogin records a failed login. It returns ErrRateLimited when the
// failure exhausts the budget.
func (l *Limiter) IncrementLogin(ctx context.Context, username, ip string) error {
	if l.config.MaxLoginAttempts <= 0 {
		return nil
	}
	limited := false
	for _, key := range l.loginKeys(username, ip) {
		count, err := l.hit(ctx, key, l.config.LoginWindow)
		if err != nil {
			return err
		}
		if count >= int64(l.config.MaxLoginAttempts) {
			limited = true
		}
	}
	if limited {
		return ErrRateLimited
	}
	return nil
}

// ResetLogin clears the username counter after a successful login. The IP
// counter is left alone so one valid account cannot launder an IP's failures.
func (l *Limiter) ResetLogin(ctx context.Context, username string) error {
	if err := l.redis.Del(ctx, l.loginUserKey(username)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// LoginAttempts returns the failure count recorded for username.
func (l *Limiter) LoginAttempts(ctx context.Context, username string) (int, error) {
	count, err := l.redis.Get(ctx, l.loginUserKey(username)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return int(count), nil
}

// CheckRefresh counts one refresh attempt against tokenID and returns
// ErrRateLimited once the budget is exceeded.
func (l *Limiter) CheckRefresh(ctx context.Context, tokenID string) error {
	if l.config.MaxRefreshAttempts <= 0 {
		return nil
	}
	count, err := l.hit(ctx, l.refreshKey(tokenID), l.config.RefreshWindow)
	if err != nil {
		return err
	}
	if count > int64(l.config.MaxRefreshAttempts) {
		return ErrRateLimited
	}
	return nil
}

func (l *Limiter) loginKeys(username, ip string) []string {
	keys := []string{l.loginUserKey(username)}
	if l.config.ThrottleByIP && ip != "" {
		keys = append(keys, l.loginIPKey(ip))
	}
	return keys
}

func (l *Limiter) hit(ctx context.Context, key string, window time.Duration) (int64, error) {
	if window <= 0 {
		window = time.Minute
	}
	count, err := hitLua.Run(ctx, l.redis, []string{key}, window.Milliseconds()).Int64()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return count, nil
}
