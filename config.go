package goSession

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Config configures a Manager and the collaborators built around it.
type Config struct {
	Issuer     IssuerConfig
	Login      LoginConfig
	Storage    StorageConfig
	Refresh    RefreshConfig
	Pipeline   PipelineConfig
	Navigation NavigationConfig
	Audit      AuditConfig
	Metrics    MetricsConfig
	Logging    LoggingConfig
}

/*
====================================
ISSUER CONFIG
====================================
*/

// IssuerConfig locates the portal API and its authentication issuer.
type IssuerConfig struct {
	// APIBaseURL is the portal API root, e.g. http://localhost:8000/api/v1.
	APIBaseURL string
	// AuthPath is appended to APIBaseURL to form the issuer root.
	AuthPath string
	// ProfilePath is the current-user endpoint, relative to APIBaseURL.
	ProfilePath string
	// Timeout bounds each issuer exchange at the transport level.
	Timeout time.Duration
}

// IssuerURL returns the issuer root.
func (c IssuerConfig) IssuerURL() string {
	return strings.TrimRight(c.APIBaseURL, "/") + "/" + strings.Trim(c.AuthPath, "/")
}

/*
====================================
LOGIN CONFIG
====================================
*/

// LoginConfig selects the login handshake.
type LoginConfig struct {
	Mode LoginMode
	// DevRole is requested from the direct login endpoint when set.
	DevRole string
	// CallbackAddr is where redirect mode listens for the browser callback.
	CallbackAddr string
	// CallbackTimeout bounds how long redirect mode waits for the browser.
	CallbackTimeout time.Duration
}

/*
====================================
STORAGE CONFIG
====================================
*/

// StorageConfig selects the persistent medium of the credential pair.
type StorageConfig struct {
	Backend     string // "memory" (default), "file", "redis", "sql"
	FilePath    string
	RedisAddr   string
	RedisPrefix string
	RedisTTL    time.Duration
	DatabaseURL string
	Table       string
	AccessKey   string
	RefreshKey  string
}

/*
====================================
REFRESH CONFIG
====================================
*/

// RefreshConfig tunes credential renewal.
type RefreshConfig struct {
	// ProactiveWindow renews a JWT access credential this long before its exp.
	ProactiveWindow time.Duration
	// DisableProactive turns expiry-driven renewal off; renewal then only
	// follows a 401.
	DisableProactive bool
	// Timeout optionally bounds a refresh exchange. Zero leaves timeouts to
	// the issuer transport.
	Timeout time.Duration
}

/*
====================================
PIPELINE CONFIG
====================================
*/

// PipelineConfig tunes the authenticated request pipeline.
type PipelineConfig struct {
	// RequestsPerMinute paces outbound API calls. Zero disables pacing.
	RequestsPerMinute int
	Burst             int
	UserAgent         string
	RequestTimeout    time.Duration
}

/*
====================================
NAVIGATION CONFIG
====================================
*/

// NavigationConfig names the routes the session core navigates to.
type NavigationConfig struct {
	LoginPath    string
	LandingPath  string
	MaxRedirects int
}

// AuditConfig controls the asynchronous audit queue.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// LoggingConfig controls the default slog logger.
type LoggingConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, text
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the configuration used when none is supplied.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Issuer: IssuerConfig{
			APIBaseURL:  "http://localhost:8000/api/v1",
			AuthPath:    "/auth",
			ProfilePath: "/auth/me",
			Timeout:     15 * time.Second,
		},
		Login: LoginConfig{
			Mode:            LoginModeDirect,
			DevRole:         "",
			CallbackAddr:    "127.0.0.1:0",
			CallbackTimeout: 5 * time.Minute,
		},
		Storage: StorageConfig{
			Backend:     "memory",
			FilePath:    "",
			RedisPrefix: "gs",
			Table:       "session_credentials",
			AccessKey:   "access_token",
			RefreshKey:  "refresh_token",
		},
		Refresh: RefreshConfig{
			ProactiveWindow: 30 * time.Second,
		},
		Pipeline: PipelineConfig{
			RequestsPerMinute: 0,
			Burst:             10,
			UserAgent:         "goSession",
			RequestTimeout:    30 * time.Second,
		},
		Navigation: NavigationConfig{
			LoginPath:    "/login",
			LandingPath:  "/dashboard",
			MaxRedirects: 5,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

func cloneConfig(cfg Config) Config {
	return cfg
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first invalid setting, wrapped in ErrInvalidConfig.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("%w: nil config", ErrInvalidConfig)
	}
	if err := validateHTTPURL("Issuer.APIBaseURL", c.Issuer.APIBaseURL); err != nil {
		return err
	}
	if strings.Trim(c.Issuer.AuthPath, "/ ") == "" {
		return invalid("Issuer.AuthPath must not be empty")
	}
	if !strings.HasPrefix(c.Issuer.ProfilePath, "/") {
		return invalid("Issuer.ProfilePath must start with /")
	}
	if c.Issuer.Timeout < 0 {
		return invalid("Issuer.Timeout must be >= 0")
	}

	switch c.Login.Mode {
	case LoginModeDirect:
	case LoginModeRedirect:
		if c.Login.CallbackTimeout <= 0 {
			return invalid("Login.CallbackTimeout must be > 0 in redirect mode")
		}
	default:
		return invalid(fmt.Sprintf("Login.Mode %q must be direct or redirect", c.Login.Mode))
	}
	if c.Login.DevRole != "" {
		if _, err := ParseRole(c.Login.DevRole); err != nil {
			return invalid("Login.DevRole: " + err.Error())
		}
	}

	switch c.Storage.Backend {
	case "memory":
	case "file":
		if strings.TrimSpace(c.Storage.FilePath) == "" {
			return invalid("Storage.FilePath required for file backend")
		}
	case "redis":
		if strings.TrimSpace(c.Storage.RedisAddr) == "" {
			return invalid("Storage.RedisAddr required for redis backend")
		}
	case "sql":
		if strings.TrimSpace(c.Storage.DatabaseURL) == "" {
			return invalid("Storage.DatabaseURL required for sql backend")
		}
	default:
		return invalid(fmt.Sprintf("Storage.Backend %q is not supported", c.Storage.Backend))
	}
	if c.Storage.RedisTTL < 0 {
		return invalid("Storage.RedisTTL must be >= 0")
	}
	if c.Storage.AccessKey == "" || c.Storage.RefreshKey == "" || c.Storage.AccessKey == c.Storage.RefreshKey {
		return invalid("Storage.AccessKey and Storage.RefreshKey must be distinct and non-empty")
	}

	if c.Refresh.ProactiveWindow < 0 || c.Refresh.ProactiveWindow > 10*time.Minute {
		return invalid("Refresh.ProactiveWindow must be within [0, 10m]")
	}
	if c.Refresh.Timeout < 0 {
		return invalid("Refresh.Timeout must be >= 0")
	}

	if c.Pipeline.RequestsPerMinute < 0 {
		return invalid("Pipeline.RequestsPerMinute must be >= 0")
	}
	if c.Pipeline.RequestsPerMinute > 0 && c.Pipeline.Burst <= 0 {
		return invalid("Pipeline.Burst must be > 0 when pacing is enabled")
	}
	if c.Pipeline.RequestTimeout < 0 {
		return invalid("Pipeline.RequestTimeout must be >= 0")
	}

	if !strings.HasPrefix(c.Navigation.LoginPath, "/") || !strings.HasPrefix(c.Navigation.LandingPath, "/") {
		return invalid("Navigation paths must be absolute")
	}
	if c.Navigation.LoginPath == c.Navigation.LandingPath {
		return invalid("Navigation.LoginPath and Navigation.LandingPath must differ")
	}
	if c.Navigation.MaxRedirects < 1 {
		return invalid("Navigation.MaxRedirects must be >= 1")
	}

	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return invalid("Audit.BufferSize must be > 0 when audit is enabled")
	}
	if c.Metrics.EnableLatencyHistograms && !c.Metrics.Enabled {
		return invalid("Metrics.EnableLatencyHistograms requires Metrics.Enabled")
	}

	if _, err := parseLevel(c.Logging.Level); err != nil {
		return invalid("Logging.Level: " + err.Error())
	}
	switch c.Logging.Format {
	case "", "json", "text":
	default:
		return invalid(fmt.Sprintf("Logging.Format %q must be json or text", c.Logging.Format))
	}
	return nil
}

func invalid(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, msg)
}

func validateHTTPURL(field, raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return invalid(fmt.Sprintf("%s %q must be an absolute http(s) url", field, raw))
	}
	return nil
}
