package jwtauth_test

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/jwtauth"
	"github.com/redis/go-redis/v9"
)

// ExampleNew builds an engine with Redis-backed blacklist and throttling.
func ExampleNew() {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:6379"})

	cfg := jwtauth.DefaultConfig()
	cfg.JWT.PrivateKey = []byte("a-signing-secret-of-at-least-32-bytes")
	cfg.Refresh.RotateRefreshTokens = true
	cfg.Refresh.BlacklistAfterRotation = true

	engine, err := jwtauth.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithUserProvider(&exampleUserProvider{}).
		Build()
	if err != nil {
		return
	}
	defer engine.Close()
}

// ExampleEngine_Refresh shows how callers tell a revoked token from an
// invalid one.
func ExampleEngine_Refresh() {
	var engine *jwtauth.Engine
	_, err := engine.Refresh(context.Background(), "refresh-token")
	switch {
	case errors.Is(err, jwtauth.ErrTokenBlacklisted):
		fmt.Println("revoked")
	case errors.Is(err, jwtauth.ErrRefreshInvalid):
		fmt.Println("invalid")
	case errors.Is(err, jwtauth.ErrEngineNotReady):
		fmt.Println("not ready")
	}
	// Output: not ready
}

// ExampleEngine_MetricsSnapshot reads the in-process counters.
func ExampleEngine_MetricsSnapshot() {
	var engine *jwtauth.Engine
	snapshot := engine.MetricsSnapshot()
	fmt.Println(snapshot.Counters[jwtauth.MetricObtainSuccess])
	// Output: 0
}

type exampleUserProvider struct{}

func (e *exampleUserProvider) GetUserByUsername(context.Context, string) (jwtauth.UserRecord, error) {
	return jwtauth.UserRecord{}, jwtauth.ErrUserNotFound
}

func (e *exampleUserProvider) GetUserByID(context.Context, string) (jwtauth.UserRecord, error) {
	return jwtauth.UserRecord{}, jwtauth.ErrUserNotFound
}

func (e *exampleUserProvider) UpdateLastLogin(context.Context, string, time.Time) error { return nil }

func (e *exampleUserProvider) UpdatePasswordHash(context.Context, string, string) error { return nil }
