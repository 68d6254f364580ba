package jwtauth

import (
	"errors"
	"time"

	"github.com/MrEthical07/jwtauth/blacklist"
	internalaudit "github.com/MrEthical07/jwtauth/internal/audit"
	"github.com/MrEthical07/jwtauth/internal/flows"
	"github.com/MrEthical07/jwtauth/internal/rate"
	"github.com/MrEthical07/jwtauth/jwt"
	"github.com/MrEthical07/jwtauth/password"
	"github.com/redis/go-redis/v9"
)

// Logger receives best-effort warnings. *logrus.Logger and *logrus.Entry
// satisfy it.
type Logger interface {
	Warnf(format string, args ...any)
}

// Builder assembles an Engine. A Builder can be built once.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	userProvider UserProvider
	store        BlacklistStore
	auditSink    AuditSink
	logger       Logger
	clock        func() time.Time

	built bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis enables login and refresh throttling and, unless
// WithBlacklistStore is used, the Redis blacklist store.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

func (b *Builder) WithUserProvider(up UserProvider) *Builder {
	b.userProvider = up
	return b
}

// WithBlacklistStore overrides the store derived from WithRedis.
func (b *Builder) WithBlacklistStore(store BlacklistStore) *Builder {
	b.store = store
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

func (b *Builder) WithLogger(l Logger) *Builder {
	b.logger = l
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// withClock is used by tests to pin token timestamps.
func (b *Builder) withClock(now func() time.Time) *Builder {
	b.clock = now
	return b
}

// Build validates the configuration and wires the engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.userProvider == nil {
		return nil, errors.New("user provider required")
	}

	store := b.store
	if store == nil && b.redis != nil {
		store = blacklist.NewRedisStore(b.redis, cfg.Blacklist.RedisPrefix)
	}
	if store == nil {
		if cfg.ValidationMode == ModeStrict {
			return nil, errors.New("Strict mode requires a blacklist store")
		}
		if cfg.Refresh.BlacklistAfterRotation {
			return nil, errors.New("BlacklistAfterRotation requires a blacklist store")
		}
	}

	engine := &Engine{
		config:       cfg,
		userProvider: b.userProvider,
		store:        store,
		clock:        b.clock,
		audit: internalaudit.NewDispatcher(internalaudit.Config{
			Enabled:    cfg.Audit.Enabled,
			BufferSize: cfg.Audit.BufferSize,
			DropIfFull: cfg.Audit.DropIfFull,
		}, b.auditSink),
		metrics: NewMetrics(cfg.Metrics),
	}
	if b.logger != nil {
		engine.warn = b.logger.Warnf
	}

	if b.redis != nil {
		engine.rateLimiter = rate.New(b.redis, rate.Config{
			Prefix:             cfg.Security.RateLimitPrefix,
			MaxLoginAttempts:   cfg.Security.MaxLoginAttempts,
			LoginWindow:        cfg.Security.LoginCooldownDuration,
			ThrottleByIP:       cfg.Security.EnableIPThrottle,
			MaxRefreshAttempts: cfg.Security.MaxRefreshAttempts,
			RefreshWindow:      cfg.Security.RefreshCooldown,
		})
	}

	ph, err := password.NewHasher(password.Params{
		Memory:      cfg.Password.Memory,
		Iterations:  cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
	})
	if err != nil {
		return nil, err
	}
	engine.passwordHash = ph

	jm, err := jwt.NewManager(jwt.Config{
		AccessTTL:     cfg.JWT.AccessTTL,
		RefreshTTL:    cfg.JWT.RefreshTTL,
		SigningMethod: jwt.SigningMethod(cfg.JWT.SigningMethod),
		PrivateKey:    cloneBytes(cfg.JWT.PrivateKey),
		PublicKey:     cloneBytes(cfg.JWT.PublicKey),
		Issuer:        cfg.JWT.Issuer,
		Audience:      cfg.JWT.Audience,
		Leeway:        cfg.JWT.Leeway,
		RequireIAT:    true,
		MaxFutureIAT:  cfg.JWT.MaxFutureIAT,
		KeyID:         cfg.JWT.KeyID,
		VerifyKeys:    cfg.JWT.VerifyKeys,
	})
	if err != nil {
		return nil, err
	}
	if b.clock != nil {
		jm = jm.WithClock(b.clock)
	}
	engine.jwtManager = jm

	engine.flow = flows.New(engine.flowDeps())
	b.built = true

	return engine, nil
}
