package jwtauth

import (
	"errors"
	"fmt"
	"time"
)

// Config is the full engine configuration. Start from [DefaultConfig].
type Config struct {
	JWT            JWTConfig
	Refresh        RefreshConfig
	Password       PasswordConfig
	Security       SecurityConfig
	Blacklist      BlacklistConfig
	Audit          AuditConfig
	Metrics        MetricsConfig
	ValidationMode ValidationMode
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig controls token signing and lifetimes.
type JWTConfig struct {
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	SigningMethod string // "hs256" (default) or "ed25519"
	PrivateKey    []byte // HMAC secret for hs256
	PublicKey     []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
	MaxFutureIAT  time.Duration
	KeyID         string
	VerifyKeys    map[string][]byte
}

/*
====================================
REFRESH CONFIG
====================================
*/

// RefreshConfig controls refresh-token rotation.
type RefreshConfig struct {
	// RotateRefreshTokens returns a new refresh token from every refresh.
	RotateRefreshTokens bool
	// BlacklistAfterRotation revokes the presented refresh token when it is
	// rotated. Requires RotateRefreshTokens.
	BlacklistAfterRotation bool
	// RevokeOnReuse blacklists every outstanding token of a user whose
	// rotated refresh token is replayed.
	RevokeOnReuse bool
	// CheckUserActive reloads the user on refresh and rejects inactive ones.
	CheckUserActive bool
}

// PasswordConfig holds the Argon2id cost parameters.
type PasswordConfig struct {
	Memory         uint32 // in KB
	Time           uint32
	Parallelism    uint8
	SaltLength     uint32
	KeyLength      uint32
	UpgradeOnLogin bool
}

// SecurityConfig holds throttling and login bookkeeping.
type SecurityConfig struct {
	MaxLoginAttempts      int
	LoginCooldownDuration time.Duration
	EnableIPThrottle      bool
	MaxRefreshAttempts    int
	RefreshCooldown       time.Duration
	UpdateLastLogin       bool
	RateLimitPrefix       string
}

// BlacklistConfig names the Redis key prefix for the built-in store.
type BlacklistConfig struct {
	RedisPrefix string
}

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig toggles in-process metrics.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// ValidationMode selects whether Verify consults the blacklist for access
// tokens.
type ValidationMode int

const (
	// ModeInherit defers to the engine's configured mode. Only valid per call.
	ModeInherit ValidationMode = iota
	// ModeStateless checks signature, expiry and type only.
	ModeStateless
	// ModeStrict also rejects blacklisted access tokens.
	ModeStrict
)

func (m ValidationMode) String() string {
	switch m {
	case ModeInherit:
		return "inherit"
	case ModeStateless:
		return "stateless"
	case ModeStrict:
		return "strict"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// DefaultConfig returns a configuration with five-minute access tokens,
// one-day refresh tokens and no rotation. A signing key must still be set.
func DefaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTTL:     5 * time.Minute,
			RefreshTTL:    24 * time.Hour,
			SigningMethod: "hs256",
			MaxFutureIAT:  10 * time.Minute,
		},
		Refresh: RefreshConfig{
			RotateRefreshTokens:    false,
			BlacklistAfterRotation: false,
			RevokeOnReuse:          false,
			CheckUserActive:        true,
		},
		Password: PasswordConfig{
			Memory:         65536,
			Time:           3,
			Parallelism:    2,
			SaltLength:     16,
			KeyLength:      32,
			UpgradeOnLogin: true,
		},
		Security: SecurityConfig{
			MaxLoginAttempts:      5,
			LoginCooldownDuration: 15 * time.Minute,
			EnableIPThrottle:      false,
			MaxRefreshAttempts:    20,
			RefreshCooldown:       time.Minute,
			UpdateLastLogin:       false,
			RateLimitPrefix:       "jr",
		},
		Blacklist: BlacklistConfig{
			RedisPrefix: "jb",
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
		ValidationMode: ModeStateless,
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.PrivateKey = cloneBytes(cfg.JWT.PrivateKey)
	out.JWT.PublicKey = cloneBytes(cfg.JWT.PublicKey)
	if cfg.JWT.VerifyKeys != nil {
		out.JWT.VerifyKeys = make(map[string][]byte, len(cfg.JWT.VerifyKeys))
		for kid, key := range cfg.JWT.VerifyKeys {
			out.JWT.VerifyKeys[kid] = cloneBytes(key)
		}
	}
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate checks cross-field constraints. Key material is parsed later by
// the token codec.
func (c *Config) Validate() error {
	// JWT
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT AccessTTL must be > 0")
	}
	if c.JWT.RefreshTTL <= 0 {
		return errors.New("JWT RefreshTTL must be > 0")
	}
	if c.JWT.RefreshTTL < c.JWT.AccessTTL {
		return errors.New("JWT RefreshTTL must be >= AccessTTL")
	}
	switch c.JWT.SigningMethod {
	case "hs256":
		if len(c.JWT.PrivateKey) < 32 {
			return errors.New("hs256 requires a secret of at least 32 bytes")
		}
	case "ed25519":
		if len(c.JWT.PrivateKey) == 0 {
			return errors.New("ed25519 requires PrivateKey")
		}
		if len(c.JWT.PublicKey) == 0 && len(c.JWT.VerifyKeys) == 0 {
			return errors.New("ed25519 requires PublicKey or VerifyKeys")
		}
	default:
		return errors.New("unsupported JWT signing method")
	}

	// Refresh
	if c.Refresh.BlacklistAfterRotation && !c.Refresh.RotateRefreshTokens {
		return errors.New("Refresh BlacklistAfterRotation requires RotateRefreshTokens")
	}
	if c.Refresh.RevokeOnReuse && !c.Refresh.BlacklistAfterRotation {
		return errors.New("Refresh RevokeOnReuse requires BlacklistAfterRotation")
	}

	// Password
	if c.Password.Memory < 8*1024 {
		return errors.New("Password Memory must be >= 8192 KB")
	}
	if c.Password.Time < 1 {
		return errors.New("Password Time must be >= 1")
	}
	if c.Password.Parallelism < 1 {
		return errors.New("Password Parallelism must be >= 1")
	}
	if c.Password.SaltLength < 16 {
		return errors.New("Password SaltLength must be >= 16")
	}
	if c.Password.KeyLength < 16 {
		return errors.New("Password KeyLength must be >= 16")
	}

	// Security
	if c.Security.MaxLoginAttempts < 0 || c.Security.MaxRefreshAttempts < 0 {
		return errors.New("Security attempt limits must be >= 0")
	}
	if c.Security.MaxLoginAttempts > 0 && c.Security.LoginCooldownDuration <= 0 {
		return errors.New("Security LoginCooldownDuration must be > 0 when login throttling is on")
	}
	if c.Security.MaxRefreshAttempts > 0 && c.Security.RefreshCooldown <= 0 {
		return errors.New("Security RefreshCooldown must be > 0 when refresh throttling is on")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	switch c.ValidationMode {
	case ModeStateless, ModeStrict:
	default:
		return errors.New("ValidationMode must be ModeStateless or ModeStrict")
	}
	return nil
}
