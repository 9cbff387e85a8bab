package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies ADJUDICATOR_* environment variable overrides,
// and returns the final Config. The returned Config has NOT been validated;
// the caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known ADJUDICATOR_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e.
// not empty). This lets operators inject secrets at deploy time without
// touching the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Gateway ──
	setStr(&cfg.Gateway.BaseURL, "ADJUDICATOR_GATEWAY_BASE_URL")
	setStr(&cfg.Gateway.ApiKey, "ADJUDICATOR_GATEWAY_API_KEY")
	setStr(&cfg.Gateway.ApiSecret, "ADJUDICATOR_GATEWAY_API_SECRET")
	setStr(&cfg.Gateway.EncryptedSecretPath, "ADJUDICATOR_GATEWAY_ENCRYPTED_SECRET_PATH")
	setStr(&cfg.Gateway.SecretPassword, "ADJUDICATOR_GATEWAY_SECRET_PASSWORD")
	setDuration(&cfg.Gateway.Timeout, "ADJUDICATOR_GATEWAY_TIMEOUT")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "ADJUDICATOR_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "ADJUDICATOR_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "ADJUDICATOR_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "ADJUDICATOR_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "ADJUDICATOR_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "ADJUDICATOR_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "ADJUDICATOR_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "ADJUDICATOR_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "ADJUDICATOR_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "ADJUDICATOR_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "ADJUDICATOR_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "ADJUDICATOR_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "ADJUDICATOR_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "ADJUDICATOR_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "ADJUDICATOR_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "ADJUDICATOR_REDIS_TLS_ENABLED")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "ADJUDICATOR_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "ADJUDICATOR_S3_REGION")
	setStr(&cfg.S3.Bucket, "ADJUDICATOR_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "ADJUDICATOR_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "ADJUDICATOR_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "ADJUDICATOR_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "ADJUDICATOR_S3_FORCE_PATH_STYLE")

	// ── Finalizer ──
	setBool(&cfg.Finalizer.Enabled, "ADJUDICATOR_FINALIZER_ENABLED")
	setDuration(&cfg.Finalizer.PollInterval, "ADJUDICATOR_FINALIZER_POLL_INTERVAL")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "ADJUDICATOR_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "ADJUDICATOR_SERVER_PORT")
	setStr(&cfg.Server.APIKey, "ADJUDICATOR_SERVER_API_KEY")
	setStringSlice(&cfg.Server.CORSOrigins, "ADJUDICATOR_SERVER_CORS_ORIGINS")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "ADJUDICATOR_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "ADJUDICATOR_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "ADJUDICATOR_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "ADJUDICATOR_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Manager, "ADJUDICATOR_MANAGER")
	setStr(&cfg.Mode, "ADJUDICATOR_MODE")
	setStr(&cfg.LogLevel, "ADJUDICATOR_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
