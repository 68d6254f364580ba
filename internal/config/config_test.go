package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/MrEthical07/jwtauth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "config-test-secret-0123456789abcdef"

func noEnvFile(t *testing.T) string {
	return filepath.Join(t.TempDir(), "missing.env")
}

func TestLoadDefaultsWithEnv(t *testing.T) {
	t.Setenv("JWTAUTH_JWT_SECRET", testSecret)
	t.Setenv("JWTAUTH_DATABASE_URL", "postgres://localhost/jwtauth")

	cfg, err := Load("", noEnvFile(t))
	require.NoError(t, err)

	assert.Equal(t, "8000", cfg.Server.Port)
	assert.Equal(t, "hs256", cfg.JWT.SigningMethod)
	assert.Equal(t, 5*time.Minute, cfg.JWT.AccessTTL)
	assert.Equal(t, 24*time.Hour, cfg.JWT.RefreshTTL)
	assert.Equal(t, "stateless", cfg.Security.ValidationMode)
	assert.Equal(t, "prometheus", cfg.Metrics.Exporter)
	assert.Equal(t, "0.0.0.0:8000", cfg.Address())
}

func TestLoadYAMLFileAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "jwtauthd.yaml")
	yaml := strings.Join([]string{
		"server:",
		"  port: \"9090\"",
		"database:",
		"  url: postgres://db/jwtauth",
		"jwt:",
		"  secret: " + testSecret,
		"  access_ttl: 2m",
		"refresh:",
		"  rotate: true",
		"  blacklist_after_rotation: true",
		"security:",
		"  validation_mode: strict",
		"logging:",
		"  format: json",
	}, "\n")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))
	t.Setenv("JWTAUTH_SERVER_PORT", "7070")

	cfg, err := Load(path, noEnvFile(t))
	require.NoError(t, err)

	assert.Equal(t, "7070", cfg.Server.Port, "env overrides file")
	assert.Equal(t, 2*time.Minute, cfg.JWT.AccessTTL)
	assert.True(t, cfg.Refresh.Rotate)
	assert.Equal(t, "json", cfg.Logging.Format)

	engineCfg, err := cfg.ToEngineConfig()
	require.NoError(t, err)
	assert.Equal(t, jwtauth.ModeStrict, engineCfg.ValidationMode)
	assert.True(t, engineCfg.Refresh.BlacklistAfterRotation)
	assert.Equal(t, []byte(testSecret), engineCfg.JWT.PrivateKey)
}

func TestLoadDotEnvFile(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), ".env")
	content := "JWTAUTH_JWT_SECRET=" + testSecret + "\nJWTAUTH_DATABASE_URL=postgres://dotenv/jwtauth\n"
	require.NoError(t, os.WriteFile(envFile, []byte(content), 0o600))
	t.Cleanup(func() {
		_ = os.Unsetenv("JWTAUTH_JWT_SECRET")
		_ = os.Unsetenv("JWTAUTH_DATABASE_URL")
	})

	cfg, err := Load("", envFile)
	require.NoError(t, err)
	assert.Equal(t, "postgres://dotenv/jwtauth", cfg.Database.URL)
}

func TestValidateRejects(t *testing.T) {
	base := func() Config {
		return Config{
			Server:   ServerConfig{Port: "8000"},
			Database: DatabaseConfig{URL: "postgres://x"},
			Redis:    RedisConfig{Enabled: true},
			JWT:      JWTConfig{SigningMethod: "hs256", Secret: testSecret},
			Security: SecurityConfig{ValidationMode: "stateless", BlacklistBackend: "redis"},
			Metrics:  MetricsConfig{Exporter: "none"},
		}
	}
	ok := base()
	ok.Logging.Format = "text"
	require.NoError(t, ok.Validate())

	cases := map[string]func(*Config){
		"short secret":       func(c *Config) { c.JWT.Secret = "short" },
		"no database":        func(c *Config) { c.Database.URL = "" },
		"bad method":         func(c *Config) { c.JWT.SigningMethod = "rs256" },
		"ed25519 no keys":    func(c *Config) { c.JWT.SigningMethod = "ed25519" },
		"bad mode":           func(c *Config) { c.Security.ValidationMode = "hybrid" },
		"redis disabled":     func(c *Config) { c.Redis.Enabled = false },
		"bad backend":        func(c *Config) { c.Security.BlacklistBackend = "memcached" },
		"bad exporter":       func(c *Config) { c.Metrics.Exporter = "statsd" },
		"bad logging format": func(c *Config) { c.Logging.Format = "xml" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := base()
			c.Logging.Format = "text"
			mutate(&c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestToEngineConfigReadsEd25519Keys(t *testing.T) {
	dir := t.TempDir()
	priv := filepath.Join(dir, "priv.pem")
	pub := filepath.Join(dir, "pub.pem")
	require.NoError(t, os.WriteFile(priv, []byte("private"), 0o600))
	require.NoError(t, os.WriteFile(pub, []byte("public"), 0o600))

	c := Config{
		JWT: JWTConfig{
			SigningMethod:  "ed25519",
			PrivateKeyFile: priv,
			PublicKeyFile:  pub,
			AccessTTL:      time.Minute,
			RefreshTTL:     time.Hour,
		},
		Password: PasswordConfig{Memory: 8192, Time: 1, Parallelism: 1},
		Security: SecurityConfig{ValidationMode: "stateless", MaxLoginAttempts: 5, LoginCooldown: time.Minute},
	}
	cfg, err := c.ToEngineConfig()
	require.NoError(t, err)
	assert.Equal(t, []byte("private"), cfg.JWT.PrivateKey)
	assert.Equal(t, []byte("public"), cfg.JWT.PublicKey)

	c.JWT.PublicKeyFile = filepath.Join(dir, "absent.pem")
	_, err = c.ToEngineConfig()
	assert.Error(t, err)
}

func TestRedacted(t *testing.T) {
	c := Config{JWT: JWTConfig{Secret: testSecret}, Database: DatabaseConfig{URL: "postgres://u:p@h/db"}}
	r := c.Redacted()
	assert.Equal(t, "***", r.JWT.Secret)
	assert.Equal(t, "***", r.Database.URL)
	assert.Equal(t, testSecret, c.JWT.Secret)
}
