// Package app wires configuration, storage, the token engine and the HTTP
// server into a runnable jwtauthd process.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/MrEthical07/jwtauth"
	"github.com/MrEthical07/jwtauth/internal/config"
	"github.com/MrEthical07/jwtauth/internal/logging"
	"github.com/MrEthical07/jwtauth/internal/server"
	"github.com/MrEthical07/jwtauth/internal/store/postgres"
	otelexport "github.com/MrEthical07/jwtauth/metrics/export/otel"
	promexport "github.com/MrEthical07/jwtauth/metrics/export/prometheus"
	"github.com/redis/go-redis/v9"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

const (
	flushInterval   = time.Hour
	collectInterval = time.Minute
)

type App struct {
	config *config.Config
	log    *logging.Logger

	db     *sql.DB
	redis  redis.UniversalClient
	users  *postgres.Users
	tokens *postgres.TokenStore
	engine *jwtauth.Engine
	server *server.Server

	reader   *sdkmetric.ManualReader
	provider *sdkmetric.MeterProvider
	otel     *otelexport.Exporter
}

// New connects to Postgres and, when enabled, Redis, then builds the engine
// and HTTP server. Close releases everything New opened.
func New(ctx context.Context, cfg *config.Config, log *logging.Logger) (*App, error) {
	app := &App{config: cfg, log: log}
	if err := app.init(ctx); err != nil {
		app.Close()
		return nil, err
	}
	return app, nil
}

func (a *App) init(ctx context.Context) error {
	cfg := a.config

	db, err := postgres.Open(ctx, cfg.Database.URL, postgres.PoolConfig{
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.MaxLifetime,
	})
	if err != nil {
		return fmt.Errorf("db init error: %w", err)
	}
	a.db = db
	if cfg.Database.AutoMigrate {
		if err := postgres.Migrate(ctx, db); err != nil {
			return err
		}
	}
	a.users = postgres.NewUsers(db)
	a.tokens = postgres.NewTokenStore(db)

	if cfg.Redis.Enabled {
		a.redis = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:        []string{cfg.Redis.Addr},
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		})
		if err := a.redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis ping: %w", err)
		}
	}

	engineCfg, err := cfg.ToEngineConfig()
	if err != nil {
		return err
	}
	b := jwtauth.New().
		WithConfig(engineCfg).
		WithUserProvider(a.users).
		WithAuditSink(logging.NewAuditSink(a.log)).
		WithLogger(a.log.WithComponent("engine"))
	if a.redis != nil {
		b = b.WithRedis(a.redis)
	}
	if cfg.Security.BlacklistBackend == "postgres" {
		b = b.WithBlacklistStore(a.tokens)
	}
	a.engine, err = b.Build()
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}

	var metricsHandler http.Handler
	switch cfg.Metrics.Exporter {
	case "prometheus":
		metricsHandler = promexport.New(a.engine).Handler()
	case "otel":
		a.reader = sdkmetric.NewManualReader()
		a.provider = sdkmetric.NewMeterProvider(sdkmetric.WithReader(a.reader))
		a.otel, err = otelexport.New(a.provider.Meter("jwtauth"), a.engine)
		if err != nil {
			return err
		}
	}

	a.server = server.New(a.engine, a.users, postgres.NewPosts(db), a.log, server.Options{
		Addr:            cfg.Address(),
		Mode:            cfg.Server.Mode,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		IdleTimeout:     cfg.Server.IdleTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		Metrics:         metricsHandler,
	})
	return nil
}

// Run serves HTTP until ctx is cancelled. Background loops stop with it.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	if a.config.Security.BlacklistBackend == "postgres" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.every(ctx, flushInterval, a.flushExpired)
		}()
	}
	if a.reader != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.every(ctx, collectInterval, a.collect)
		}()
	}

	a.log.WithField("config", a.config.Redacted()).Infof("starting jwtauthd")
	err := a.server.Run(ctx)
	cancel()
	wg.Wait()
	return err
}

func (a *App) every(ctx context.Context, interval time.Duration, fn func(context.Context)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn(ctx)
		}
	}
}

func (a *App) flushExpired(ctx context.Context) {
	n, err := a.tokens.FlushExpired(ctx)
	if err != nil {
		a.log.Warnf("flush expired tokens: %v", err)
		return
	}
	a.log.Debugf("flushed %d expired token rows", n)
}

// collect drains the OTel reader into the log. No OTLP endpoint is wired;
// the collection keeps instruments and the log in step.
func (a *App) collect(ctx context.Context) {
	var rm metricdata.ResourceMetrics
	if err := a.reader.Collect(ctx, &rm); err != nil {
		a.log.Warnf("collect metrics: %v", err)
		return
	}
	fields := map[string]any{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if sum, ok := m.Data.(metricdata.Sum[int64]); ok && len(sum.DataPoints) > 0 {
				fields[m.Name] = sum.DataPoints[0].Value
			}
		}
	}
	a.log.WithComponent("metrics").WithFields(fields).Infof("metrics collected")
}

// FlushExpired removes expired rows from the Postgres token tables.
func (a *App) FlushExpired(ctx context.Context) (int64, error) {
	return a.tokens.FlushExpired(ctx)
}

// CreateUser hashes password with the engine's parameters and stores the
// account.
func (a *App) CreateUser(ctx context.Context, username, email, password string, staff bool) (jwtauth.UserRecord, error) {
	hash, err := a.engine.HashPassword(password)
	if err != nil {
		return jwtauth.UserRecord{}, err
	}
	return a.users.Create(ctx, postgres.NewUser{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Staff:        staff,
	})
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() {
	if a.otel != nil {
		_ = a.otel.Close()
	}
	if a.provider != nil {
		_ = a.provider.Shutdown(context.Background())
	}
	if a.engine != nil {
		a.engine.Close()
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil && !errors.Is(err, sql.ErrConnDone) {
			a.log.Warnf("close db: %v", err)
		}
	}
}
