package goSession

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// LoadConfigFromEnv overlays environment variables named prefix+KEY on base.
// Unset or unparsable variables keep the base value. An empty prefix means
// "GOSESSION_".
//
//	ISSUER_URL, AUTH_PATH, PROFILE_PATH, ISSUER_TIMEOUT
//	LOGIN_MODE, DEV_ROLE, CALLBACK_ADDR, CALLBACK_TIMEOUT
//	STORAGE, CREDENTIALS_FILE, REDIS_ADDR, REDIS_PREFIX, REDIS_TTL, DATABASE_URL, CREDENTIALS_TABLE
//	REFRESH_WINDOW, REFRESH_PROACTIVE, REFRESH_TIMEOUT
//	RATE_PER_MINUTE, RATE_BURST, REQUEST_TIMEOUT, USER_AGENT
//	LOGIN_PATH, LANDING_PATH
//	AUDIT, METRICS, LOG_LEVEL, LOG_FORMAT
func LoadConfigFromEnv(prefix string, base Config) Config {
	if prefix == "" {
		prefix = "GOSESSION_"
	}
	e := envReader{prefix: prefix}
	cfg := cloneConfig(base)

	cfg.Issuer.APIBaseURL = e.str("ISSUER_URL", cfg.Issuer.APIBaseURL)
	cfg.Issuer.AuthPath = e.str("AUTH_PATH", cfg.Issuer.AuthPath)
	cfg.Issuer.ProfilePath = e.str("PROFILE_PATH", cfg.Issuer.ProfilePath)
	cfg.Issuer.Timeout = e.duration("ISSUER_TIMEOUT", cfg.Issuer.Timeout)

	cfg.Login.Mode = LoginMode(strings.ToLower(e.str("LOGIN_MODE", string(cfg.Login.Mode))))
	cfg.Login.DevRole = e.str("DEV_ROLE", cfg.Login.DevRole)
	cfg.Login.CallbackAddr = e.str("CALLBACK_ADDR", cfg.Login.CallbackAddr)
	cfg.Login.CallbackTimeout = e.duration("CALLBACK_TIMEOUT", cfg.Login.CallbackTimeout)

	cfg.Storage.Backend = strings.ToLower(e.str("STORAGE", cfg.Storage.Backend))
	cfg.Storage.FilePath = e.str("CREDENTIALS_FILE", cfg.Storage.FilePath)
	cfg.Storage.RedisAddr = e.str("REDIS_ADDR", cfg.Storage.RedisAddr)
	cfg.Storage.RedisPrefix = e.str("REDIS_PREFIX", cfg.Storage.RedisPrefix)
	cfg.Storage.RedisTTL = e.duration("REDIS_TTL", cfg.Storage.RedisTTL)
	cfg.Storage.DatabaseURL = e.str("DATABASE_URL", cfg.Storage.DatabaseURL)
	cfg.Storage.Table = e.str("CREDENTIALS_TABLE", cfg.Storage.Table)

	cfg.Refresh.ProactiveWindow = e.duration("REFRESH_WINDOW", cfg.Refresh.ProactiveWindow)
	cfg.Refresh.DisableProactive = !e.boolean("REFRESH_PROACTIVE", !cfg.Refresh.DisableProactive)
	cfg.Refresh.Timeout = e.duration("REFRESH_TIMEOUT", cfg.Refresh.Timeout)

	cfg.Pipeline.RequestsPerMinute = e.integer("RATE_PER_MINUTE", cfg.Pipeline.RequestsPerMinute)
	cfg.Pipeline.Burst = e.integer("RATE_BURST", cfg.Pipeline.Burst)
	cfg.Pipeline.RequestTimeout = e.duration("REQUEST_TIMEOUT", cfg.Pipeline.RequestTimeout)
	cfg.Pipeline.UserAgent = e.str("USER_AGENT", cfg.Pipeline.UserAgent)

	cfg.Navigation.LoginPath = e.str("LOGIN_PATH", cfg.Navigation.LoginPath)
	cfg.Navigation.LandingPath = e.str("LANDING_PATH", cfg.Navigation.LandingPath)

	cfg.Audit.Enabled = e.boolean("AUDIT", cfg.Audit.Enabled)
	cfg.Metrics.Enabled = e.boolean("METRICS", cfg.Metrics.Enabled)
	cfg.Logging.Level = e.str("LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.Format = e.str("LOG_FORMAT", cfg.Logging.Format)

	return cfg
}

type envReader struct {
	prefix string
}

func (e envReader) lookup(key string) string {
	return strings.TrimSpace(os.Getenv(e.prefix + key))
}

func (e envReader) str(key, def string) string {
	if v := e.lookup(key); v != "" {
		return v
	}
	return def
}

func (e envReader) boolean(key string, def bool) bool {
	v := e.lookup(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func (e envReader) integer(key string, def int) int {
	v := e.lookup(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}

func (e envReader) duration(key string, def time.Duration) time.Duration {
	v := e.lookup(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		return def
	}
	return d
}
