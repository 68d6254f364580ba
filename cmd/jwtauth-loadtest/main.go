// Command jwtauth-loadtest measures verify and rotating-refresh latency
// against Redis, or an embedded miniredis when no address is given.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/jwtauth"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type userState struct {
	id      string
	access  string
	refresh string
	mu      sync.Mutex
}

// memUsers serves every seeded account with one shared password hash.
type memUsers struct {
	hash  string
	count int
}

func (m *memUsers) lookup(id string) (jwtauth.UserRecord, error) {
	n, err := strconv.Atoi(id)
	if err != nil || n < 0 || n >= m.count {
		return jwtauth.UserRecord{}, jwtauth.ErrUserNotFound
	}
	return jwtauth.UserRecord{UserID: id, Username: "user" + id, PasswordHash: m.hash, Active: true}, nil
}

func (m *memUsers) GetUserByUsername(_ context.Context, username string) (jwtauth.UserRecord, error) {
	if len(username) < 5 {
		return jwtauth.UserRecord{}, jwtauth.ErrUserNotFound
	}
	return m.lookup(username[4:])
}

func (m *memUsers) GetUserByID(_ context.Context, id string) (jwtauth.UserRecord, error) {
	return m.lookup(id)
}

func (m *memUsers) UpdateLastLogin(context.Context, string, time.Time) error { return nil }

func (m *memUsers) UpdatePasswordHash(context.Context, string, string) error { return nil }

const loadPassword = "load-test-password"

func main() {
	var (
		users       = flag.Int("users", 1000, "number of accounts to log in")
		concurrency = flag.Int("concurrency", 64, "number of concurrent workers")
		ops         = flag.Int("ops", 50000, "operations per phase (verify + refresh)")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		strict      = flag.Bool("strict", true, "verify access tokens against the blacklist")
	)
	flag.Parse()

	if *users <= 0 || *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "users, concurrency, and ops must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var (
		cleanup func()
		client  redis.UniversalClient
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", mr.Addr())
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	cfg := jwtauth.DefaultConfig()
	cfg.JWT.PrivateKey = []byte("load-test-signing-secret-0123456789")
	cfg.Refresh.RotateRefreshTokens = true
	cfg.Refresh.BlacklistAfterRotation = true
	cfg.Security.MaxLoginAttempts = 0
	cfg.Security.MaxRefreshAttempts = 0
	cfg.Audit.Enabled = false
	if *strict {
		cfg.ValidationMode = jwtauth.ModeStrict
	}

	provider := &memUsers{count: *users}
	engine, err := jwtauth.New().WithConfig(cfg).WithRedis(client).WithUserProvider(provider).Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "build engine: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	provider.hash, err = engine.HashPassword(loadPassword)
	if err != nil {
		fmt.Fprintf(os.Stderr, "hash password: %v\n", err)
		os.Exit(1)
	}

	states := make([]userState, *users)
	fmt.Printf("logging in %d users...\n", *users)
	startSeed := time.Now()
	for i := range states {
		id := strconv.Itoa(i)
		pair, err := engine.ObtainPair(ctx, "user"+id, loadPassword)
		if err != nil {
			fmt.Fprintf(os.Stderr, "obtain failed: %v\n", err)
			os.Exit(1)
		}
		states[i].id = id
		states[i].access = pair.Access
		states[i].refresh = pair.Refresh
	}
	fmt.Printf("seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	verifyStats := runPhase(*ops, *concurrency, len(states), func(idx, _ int) error {
		s := &states[idx]
		s.mu.Lock()
		token := s.access
		s.mu.Unlock()
		_, err := engine.Verify(ctx, token)
		return err
	})
	refreshStats := runPhase(*ops, *concurrency, len(states), func(idx, _ int) error {
		s := &states[idx]
		s.mu.Lock()
		defer s.mu.Unlock()
		pair, err := engine.Refresh(ctx, s.refresh)
		if err != nil {
			return err
		}
		s.access, s.refresh = pair.Access, pair.Refresh
		return nil
	})

	fmt.Println("---- results ----")
	printStats("verify", verifyStats)
	printStats("refresh", refreshStats)
}

// runPhase runs ops calls of fn across concurrency workers, each call on a
// random state index.
func runPhase(ops, concurrency, states int, fn func(idx, op int) error) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				t0 := time.Now()
				err := fn(r.Intn(states), i)
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, failures)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	return samples[(len(samples)-1)*p/100]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}
