// Package config loads jwtauthd settings from defaults, an optional YAML
// file, a .env file and JWTAUTH_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/MrEthical07/jwtauth"
	"github.com/MrEthical07/jwtauth/internal/logging"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix namespaces environment overrides: jwt.secret is read from
// JWTAUTH_JWT_SECRET.
const EnvPrefix = "JWTAUTH"

// Config is the complete service configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Refresh  RefreshConfig  `mapstructure:"refresh"`
	Password PasswordConfig `mapstructure:"password"`
	Security SecurityConfig `mapstructure:"security"`
	Audit    AuditConfig    `mapstructure:"audit"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Logging  logging.Config `mapstructure:"logging"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            string        `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"` // gin mode: debug, release, test
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	URL          string        `mapstructure:"url"`
	MaxOpenConns int           `mapstructure:"max_open_conns"`
	MaxIdleConns int           `mapstructure:"max_idle_conns"`
	MaxLifetime  time.Duration `mapstructure:"max_lifetime"`
	AutoMigrate  bool          `mapstructure:"auto_migrate"`
}

type RedisConfig struct {
	Addr         string        `mapstructure:"addr"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	Enabled      bool          `mapstructure:"enabled"`
}

type JWTConfig struct {
	SigningMethod  string        `mapstructure:"signing_method"` // hs256, ed25519
	Secret         string        `mapstructure:"secret"`
	PrivateKeyFile string        `mapstructure:"private_key_file"`
	PublicKeyFile  string        `mapstructure:"public_key_file"`
	KeyID          string        `mapstructure:"key_id"`
	AccessTTL      time.Duration `mapstructure:"access_ttl"`
	RefreshTTL     time.Duration `mapstructure:"refresh_ttl"`
	Issuer         string        `mapstructure:"issuer"`
	Audience       string        `mapstructure:"audience"`
	Leeway         time.Duration `mapstructure:"leeway"`
}

type RefreshConfig struct {
	Rotate                 bool `mapstructure:"rotate"`
	BlacklistAfterRotation bool `mapstructure:"blacklist_after_rotation"`
	RevokeOnReuse          bool `mapstructure:"revoke_on_reuse"`
	CheckUserActive        bool `mapstructure:"check_user_active"`
}

type PasswordConfig struct {
	Memory         uint32 `mapstructure:"memory"`
	Time           uint32 `mapstructure:"time"`
	Parallelism    uint8  `mapstructure:"parallelism"`
	UpgradeOnLogin bool   `mapstructure:"upgrade_on_login"`
}

type SecurityConfig struct {
	ValidationMode     string        `mapstructure:"validation_mode"` // stateless, strict
	MaxLoginAttempts   int           `mapstructure:"max_login_attempts"`
	LoginCooldown      time.Duration `mapstructure:"login_cooldown"`
	IPThrottle         bool          `mapstructure:"ip_throttle"`
	MaxRefreshAttempts int           `mapstructure:"max_refresh_attempts"`
	RefreshCooldown    time.Duration `mapstructure:"refresh_cooldown"`
	UpdateLastLogin    bool          `mapstructure:"update_last_login"`
	// BlacklistBackend selects where token ids live: redis or postgres.
	BlacklistBackend string `mapstructure:"blacklist_backend"`
}

type AuditConfig struct {
	Enabled    bool `mapstructure:"enabled"`
	BufferSize int  `mapstructure:"buffer_size"`
	DropIfFull bool `mapstructure:"drop_if_full"`
}

type MetricsConfig struct {
	Enabled           bool   `mapstructure:"enabled"`
	LatencyHistograms bool   `mapstructure:"latency_histograms"`
	Exporter          string `mapstructure:"exporter"` // prometheus, otel, none
}

// Load reads configuration. A missing config file or .env file is not an
// error; any other read failure is.
func Load(configPath string, envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("error reading env file %s: %v", f, err)
		}
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("error reading config file: %v", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %v", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "8000")
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.idle_timeout", "60s")
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("database.url", "")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.max_lifetime", "5m")
	v.SetDefault("database.auto_migrate", false)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.dial_timeout", "5s")
	v.SetDefault("redis.read_timeout", "3s")
	v.SetDefault("redis.write_timeout", "3s")
	v.SetDefault("redis.enabled", true)

	d := jwtauth.DefaultConfig()
	v.SetDefault("jwt.signing_method", d.JWT.SigningMethod)
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.private_key_file", "")
	v.SetDefault("jwt.public_key_file", "")
	v.SetDefault("jwt.key_id", "")
	v.SetDefault("jwt.access_ttl", d.JWT.AccessTTL)
	v.SetDefault("jwt.refresh_ttl", d.JWT.RefreshTTL)
	v.SetDefault("jwt.issuer", "")
	v.SetDefault("jwt.audience", "")
	v.SetDefault("jwt.leeway", "0s")

	v.SetDefault("refresh.rotate", false)
	v.SetDefault("refresh.blacklist_after_rotation", false)
	v.SetDefault("refresh.revoke_on_reuse", false)
	v.SetDefault("refresh.check_user_active", d.Refresh.CheckUserActive)

	v.SetDefault("password.memory", d.Password.Memory)
	v.SetDefault("password.time", d.Password.Time)
	v.SetDefault("password.parallelism", d.Password.Parallelism)
	v.SetDefault("password.upgrade_on_login", d.Password.UpgradeOnLogin)

	v.SetDefault("security.validation_mode", "stateless")
	v.SetDefault("security.max_login_attempts", d.Security.MaxLoginAttempts)
	v.SetDefault("security.login_cooldown", d.Security.LoginCooldownDuration)
	v.SetDefault("security.ip_throttle", false)
	v.SetDefault("security.max_refresh_attempts", d.Security.MaxRefreshAttempts)
	v.SetDefault("security.refresh_cooldown", d.Security.RefreshCooldown)
	v.SetDefault("security.update_last_login", true)
	v.SetDefault("security.blacklist_backend", "redis")

	v.SetDefault("audit.enabled", true)
	v.SetDefault("audit.buffer_size", d.Audit.BufferSize)
	v.SetDefault("audit.drop_if_full", true)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.latency_histograms", true)
	v.SetDefault("metrics.exporter", "prometheus")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.file", "")
	v.SetDefault("logging.max_size", 100)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age", 28)
	v.SetDefault("logging.compress", true)
}

// Validate checks the service-level settings. Engine settings are checked
// again by jwtauth.Config.Validate when the engine is built.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Database.URL == "" {
		return fmt.Errorf("database url is required")
	}

	switch c.JWT.SigningMethod {
	case "hs256":
		if len(c.JWT.Secret) < 32 {
			return fmt.Errorf("jwt secret must be at least 32 characters")
		}
	case "ed25519":
		if c.JWT.PrivateKeyFile == "" || c.JWT.PublicKeyFile == "" {
			return fmt.Errorf("ed25519 requires private_key_file and public_key_file")
		}
	default:
		return fmt.Errorf("unsupported jwt signing method %q", c.JWT.SigningMethod)
	}

	if _, err := parseMode(c.Security.ValidationMode); err != nil {
		return err
	}
	switch c.Security.BlacklistBackend {
	case "redis":
		if !c.Redis.Enabled {
			return fmt.Errorf("redis blacklist backend requires redis.enabled")
		}
	case "postgres":
	default:
		return fmt.Errorf("unsupported blacklist backend %q", c.Security.BlacklistBackend)
	}
	switch c.Metrics.Exporter {
	case "prometheus", "otel", "none":
	default:
		return fmt.Errorf("unsupported metrics exporter %q", c.Metrics.Exporter)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("unsupported logging format %q", c.Logging.Format)
	}
	return nil
}

func parseMode(s string) (jwtauth.ValidationMode, error) {
	switch strings.ToLower(s) {
	case "stateless":
		return jwtauth.ModeStateless, nil
	case "strict":
		return jwtauth.ModeStrict, nil
	default:
		return jwtauth.ModeInherit, fmt.Errorf("unsupported validation mode %q", s)
	}
}

// Address is host:port for the HTTP listener.
func (c *Config) Address() string {
	return c.Server.Host + ":" + c.Server.Port
}

// ToEngineConfig maps the service settings onto jwtauth.Config, reading key
// files for ed25519.
func (c *Config) ToEngineConfig() (jwtauth.Config, error) {
	cfg := jwtauth.DefaultConfig()

	cfg.JWT.SigningMethod = c.JWT.SigningMethod
	cfg.JWT.AccessTTL = c.JWT.AccessTTL
	cfg.JWT.RefreshTTL = c.JWT.RefreshTTL
	cfg.JWT.Issuer = c.JWT.Issuer
	cfg.JWT.Audience = c.JWT.Audience
	cfg.JWT.Leeway = c.JWT.Leeway
	cfg.JWT.KeyID = c.JWT.KeyID
	switch c.JWT.SigningMethod {
	case "hs256":
		cfg.JWT.PrivateKey = []byte(c.JWT.Secret)
	case "ed25519":
		priv, err := os.ReadFile(c.JWT.PrivateKeyFile)
		if err != nil {
			return jwtauth.Config{}, fmt.Errorf("read private key: %w", err)
		}
		pub, err := os.ReadFile(c.JWT.PublicKeyFile)
		if err != nil {
			return jwtauth.Config{}, fmt.Errorf("read public key: %w", err)
		}
		cfg.JWT.PrivateKey = priv
		cfg.JWT.PublicKey = pub
	}

	cfg.Refresh.RotateRefreshTokens = c.Refresh.Rotate
	cfg.Refresh.BlacklistAfterRotation = c.Refresh.BlacklistAfterRotation
	cfg.Refresh.RevokeOnReuse = c.Refresh.RevokeOnReuse
	cfg.Refresh.CheckUserActive = c.Refresh.CheckUserActive

	cfg.Password.Memory = c.Password.Memory
	cfg.Password.Time = c.Password.Time
	cfg.Password.Parallelism = c.Password.Parallelism
	cfg.Password.UpgradeOnLogin = c.Password.UpgradeOnLogin

	mode, err := parseMode(c.Security.ValidationMode)
	if err != nil {
		return jwtauth.Config{}, err
	}
	cfg.ValidationMode = mode
	cfg.Security.MaxLoginAttempts = c.Security.MaxLoginAttempts
	cfg.Security.LoginCooldownDuration = c.Security.LoginCooldown
	cfg.Security.EnableIPThrottle = c.Security.IPThrottle
	cfg.Security.MaxRefreshAttempts = c.Security.MaxRefreshAttempts
	cfg.Security.RefreshCooldown = c.Security.RefreshCooldown
	cfg.Security.UpdateLastLogin = c.Security.UpdateLastLogin

	cfg.Audit.Enabled = c.Audit.Enabled
	cfg.Audit.BufferSize = c.Audit.BufferSize
	cfg.Audit.DropIfFull = c.Audit.DropIfFull
	cfg.Metrics.Enabled = c.Metrics.Enabled
	cfg.Metrics.EnableLatencyHistograms = c.Metrics.LatencyHistograms

	if err := cfg.Validate(); err != nil {
		return jwtauth.Config{}, err
	}
	return cfg, nil
}

// Redacted returns a copy safe to log.
func (c Config) Redacted() Config {
	if c.JWT.Secret != "" {
		c.JWT.Secret = "***"
	}
	if c.Redis.Password != "" {
		c.Redis.Password = "***"
	}
	if c.Database.URL != "" {
		c.Database.URL = "***"
	}
	return c
}
