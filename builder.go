package goSession

import (
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/MrEthical07/goSession/credential"
	"github.com/MrEthical07/goSession/internal/flows"
	"github.com/MrEthical07/goSession/issuer"
	"github.com/MrEthical07/goSession/pipeline"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// Builder assembles a Manager. A Builder builds once.
type Builder struct {
	config Config
	logger *slog.Logger

	storage   credential.Storage
	issuer    Issuer
	profiles  ProfileSource
	navigator Navigator
	callbacks CallbackSource
	auditSink AuditSink

	baseTransport http.RoundTripper
	pipelineOpts  []pipeline.Option
	now           func() time.Time

	built bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithStorage sets the persistent medium of the credential pair, overriding
// Config.Storage.Backend.
func (b *Builder) WithStorage(s credential.Storage) *Builder {
	b.storage = s
	return b
}

// WithIssuer replaces the HTTP issuer client built from Config.Issuer.
func (b *Builder) WithIssuer(iss Issuer) *Builder {
	b.issuer = iss
	return b
}

// WithProfileSource replaces the default GET of Config.Issuer.ProfilePath.
func (b *Builder) WithProfileSource(p ProfileSource) *Builder {
	b.profiles = p
	return b
}

func (b *Builder) WithNavigator(n Navigator) *Builder {
	b.navigator = n
	return b
}

// WithCallbackSource sets the redirect-mode receiver. When it implements
// io.Closer the Manager closes it on Close.
func (b *Builder) WithCallbackSource(c CallbackSource) *Builder {
	b.callbacks = c
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithHTTPTransport sets the RoundTripper under both the request pipeline
// and the issuer client.
func (b *Builder) WithHTTPTransport(rt http.RoundTripper) *Builder {
	b.baseTransport = rt
	return b
}

// WithPipelineOptions appends request pipeline options such as hooks.
func (b *Builder) WithPipelineOptions(opts ...pipeline.Option) *Builder {
	b.pipelineOpts = append(b.pipelineOpts, opts...)
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

// WithClock overrides the time source used for expiry checks.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// Build validates the configuration and wires the Manager. Build performs no
// network or storage I/O; call Manager.Restore to load a persisted session.
func (b *Builder) Build() (*Manager, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	m := &Manager{
		config:    cfg,
		logger:    b.logger,
		navigator: b.navigator,
		callbacks: b.callbacks,
		validator: &profileValidator{},
		now:       b.now,
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	if m.now == nil {
		m.now = time.Now
	}

	// -------- CREDENTIAL STORE --------
	storage := b.storage
	if storage == nil {
		s, closer, err := storageFromConfig(cfg.Storage)
		if err != nil {
			return nil, err
		}
		storage = s
		if closer != nil {
			m.closers = append(m.closers, closer)
		}
	}
	m.storage = storage
	m.store = credential.NewStore(storage,
		credential.WithKeys(cfg.Storage.AccessKey, cfg.Storage.RefreshKey),
		credential.WithLogger(m.logger),
		credential.WithDegradeHook(func(error) { m.metricInc(MetricStorageDegraded) }),
	)

	// -------- ISSUER --------
	m.issuer = b.issuer
	if m.issuer == nil {
		hc := &http.Client{Timeout: cfg.Issuer.Timeout}
		if b.baseTransport != nil {
			hc.Transport = b.baseTransport
		}
		ic, err := issuer.New(issuer.Config{
			BaseURL:    cfg.Issuer.IssuerURL(),
			HTTPClient: hc,
			DevRole:    cfg.Login.DevRole,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
		m.issuer = ic
	}

	// -------- REQUEST PIPELINE --------
	opts := []pipeline.Option{
		pipeline.WithBase(b.baseTransport),
		pipeline.WithObserver(m),
	}
	if cfg.Pipeline.RequestsPerMinute > 0 {
		every := time.Minute / time.Duration(cfg.Pipeline.RequestsPerMinute)
		opts = append(opts, pipeline.WithLimiter(rate.NewLimiter(rate.Every(every), cfg.Pipeline.Burst)))
	}
	opts = append(opts, b.pipelineOpts...)
	m.transport = pipeline.NewTransport(m, opts...)

	api, err := pipeline.NewClient(cfg.Issuer.APIBaseURL, m.transport,
		pipeline.WithTimeout(cfg.Pipeline.RequestTimeout),
		pipeline.WithUserAgent(cfg.Pipeline.UserAgent),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	m.api = api

	m.profiles = b.profiles
	if m.profiles == nil {
		m.profiles = apiProfileSource{client: api, path: cfg.Issuer.ProfilePath}
	}

	// -------- FLOWS --------
	m.flows = flows.Deps{
		Login: flows.LoginDeps{
			Mode:            flows.LoginDirect,
			DirectLogin:     m.issuer.DirectLogin,
			AuthorizeURL:    m.issuer.AuthorizeURL,
			CallbackTimeout: cfg.Login.CallbackTimeout,
			IncompleteGrant: issuer.ErrIncompleteGrant,
		},
		Refresh: flows.RefreshDeps{
			Exchange:        m.issuer.Refresh,
			Timeout:         cfg.Refresh.Timeout,
			Rejected:        issuer.ErrRejected,
			IncompleteGrant: issuer.ErrIncompleteGrant,
			Now:             m.now,
		},
		Logout: flows.LogoutDeps{
			Revoke:  m.issuer.Logout,
			Timeout: cfg.Issuer.Timeout,
		},
	}
	if cfg.Login.Mode == LoginModeRedirect {
		m.flows.Login.Mode = flows.LoginRedirect
	}
	if b.navigator != nil {
		m.flows.Login.Navigate = b.navigator.HardNavigate
	}
	if b.callbacks != nil {
		m.flows.Login.AwaitCallback = b.callbacks.Await
		if c, ok := b.callbacks.(io.Closer); ok {
			m.closers = append(m.closers, c)
		}
	}

	// -------- OBSERVABILITY --------
	m.metrics = NewMetrics(cfg.Metrics)
	m.audit = newAuditQueue(cfg.Audit, b.auditSink,
		withAuditClock(m.now),
		withAuditStamp(m.stampAudit),
		withAuditDropHook(func(ev AuditEvent) {
			m.metricInc(MetricAuditDropped)
			m.logger.Debug("goSession: audit event dropped", slog.String("event", ev.EventType))
		}),
	)

	b.built = true

	return m, nil
}

// storageFromConfig opens the configured backend. Clients are created lazily
// by their drivers, so no connection is made here.
func storageFromConfig(cfg StorageConfig) (credential.Storage, io.Closer, error) {
	switch cfg.Backend {
	case "", "memory":
		return credential.NewMemoryStorage(), nil, nil
	case "file":
		return credential.NewFileStorage(cfg.FilePath), nil, nil
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		return credential.NewRedisStorage(client, cfg.RedisPrefix, cfg.RedisTTL), client, nil
	case "sql":
		db, err := sql.Open("pgx", cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: open database: %w", ErrInvalidConfig, err)
		}
		s, err := credential.NewSQLStorage(db, cfg.Table)
		if err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
		return s, db, nil
	default:
		return nil, nil, fmt.Errorf("%w: storage backend %q", ErrInvalidConfig, cfg.Backend)
	}
}
