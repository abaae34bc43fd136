package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/guard"
	"github.com/MrEthical07/goSession/issuer"
	promexport "github.com/MrEthical07/goSession/metrics/export/prometheus"
	"github.com/alicebob/miniredis/v2"
	"github.com/joho/godotenv"
)

const usage = `usage: portalctl [flags] <command> [args]

commands:
  login              sign in and persist the credential pair
  whoami             print the signed-in profile
  refresh            force a credential refresh
  logout             revoke and clear the session
  get <path>         GET an API path through the request pipeline
  navigate <path>    run a guarded navigation and print where it lands
  serve-metrics      serve Prometheus metrics until interrupted

flags:
`

func main() {
	os.Exit(run())
}

func run() int {
	_ = godotenv.Load() // a missing .env is fine

	var (
		envPrefix   = flag.String("env-prefix", "GOSESSION_", "environment variable prefix")
		role        = flag.String("role", "", "role requested from the dev login endpoint")
		embedded    = flag.Bool("miniredis", false, "use an embedded redis for the redis backend")
		metricsAddr = flag.String("metrics-addr", "127.0.0.1:9464", "listen address for serve-metrics")
		timeout     = flag.Duration("timeout", 2*time.Minute, "overall command timeout")
	)
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		return 2
	}

	cfg := goSession.LoadConfigFromEnv(*envPrefix, defaultCLIConfig())
	if *role != "" {
		cfg.Login.DevRole = *role
	}

	logger := goSession.NewLogger(cfg.Logging, os.Stderr)
	slog.SetDefault(logger)

	if cfg.Storage.Backend == "redis" && *embedded {
		mr, err := miniredis.Run()
		if err != nil {
			logger.Error("start embedded redis failed", "error", err)
			return 1
		}
		defer mr.Close()
		cfg.Storage.RedisAddr = mr.Addr()
		logger.Warn("embedded redis does not outlive this process", "addr", mr.Addr())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := newApp(cfg, logger)
	if err != nil {
		logger.Error("initialize session failed", "error", err)
		return 1
	}
	defer app.close()

	cmd, args := flag.Arg(0), flag.Args()[1:]
	if cmd == "serve-metrics" {
		return app.serveMetrics(ctx, *metricsAddr)
	}

	cmdCtx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()
	if err := app.manager.Restore(cmdCtx); err != nil {
		logger.Warn("restore session", "error", err)
	}

	switch cmd {
	case "login":
		err = app.login(cmdCtx)
	case "whoami":
		err = app.whoami()
	case "refresh":
		err = app.manager.Refresh(cmdCtx)
	case "logout":
		app.manager.Logout(cmdCtx)
	case "get":
		if len(args) != 1 {
			flag.Usage()
			return 2
		}
		err = app.get(cmdCtx, args[0])
	case "navigate":
		if len(args) != 1 {
			flag.Usage()
			return 2
		}
		err = app.navigate(cmdCtx, args[0])
	default:
		flag.Usage()
		return 2
	}
	if err != nil {
		logger.Error(cmd+" failed", "error", err)
		return 1
	}
	return 0
}

// defaultCLIConfig persists credentials to a file so that separate
// invocations share one session.
func defaultCLIConfig() goSession.Config {
	cfg := goSession.DefaultConfig()
	cfg.Logging.Format = "text"
	if dir, err := os.UserConfigDir(); err == nil {
		cfg.Storage.Backend = "file"
		cfg.Storage.FilePath = filepath.Join(dir, "portalctl", "credentials.json")
	}
	return cfg
}

type app struct {
	cfg      goSession.Config
	logger   *slog.Logger
	manager  *goSession.Manager
	router   *guard.Router
	callback *issuer.CallbackServer
}

func newApp(cfg goSession.Config, logger *slog.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}

	b := goSession.New().
		WithConfig(cfg).
		WithLogger(logger).
		WithAuditSink(goSession.LogSink{Logger: logger}).
		WithNavigator(goSession.NavigatorFunc(func(ctx context.Context, target string) error {
			return a.router.HardNavigate(ctx, target)
		}))

	if cfg.Login.Mode == goSession.LoginModeRedirect {
		a.callback = issuer.NewCallbackServer(nil, "")
		callbackURL, err := a.callback.Start(cfg.Login.CallbackAddr)
		if err != nil {
			return nil, err
		}
		client, err := issuer.New(issuer.Config{
			BaseURL:     cfg.Issuer.IssuerURL(),
			HTTPClient:  &http.Client{Timeout: cfg.Issuer.Timeout},
			DevRole:     cfg.Login.DevRole,
			CallbackURL: callbackURL,
		})
		if err != nil {
			_ = a.callback.Close()
			return nil, err
		}
		a.callback.SetExchanger(client)
		b = b.WithIssuer(client).WithCallbackSource(a.callback)
	}

	m, err := b.Build()
	if err != nil {
		if a.callback != nil {
			_ = a.callback.Close()
		}
		return nil, err
	}
	a.manager = m

	g := guard.New(m, guard.NewPortalTable(),
		guard.WithLoginPath(cfg.Navigation.LoginPath),
		guard.WithLandingPath(cfg.Navigation.LandingPath),
		guard.WithObserver(m),
	)
	a.router = guard.NewRouter(g,
		guard.WithMaxRedirects(cfg.Navigation.MaxRedirects),
		guard.WithExternalNavigator(func(_ context.Context, target string) error {
			fmt.Fprintf(os.Stderr, "Open this URL in your browser to sign in:\n  %s\n", target)
			return nil
		}),
	)
	return a, nil
}

func (a *app) close() {
	a.manager.Close()
}

func (a *app) login(ctx context.Context) error {
	if err := a.manager.Login(ctx); err != nil {
		return err
	}
	info := a.manager.Info()
	if !info.Authenticated {
		return fmt.Errorf("login did not complete: %s", info.LastLoginError)
	}
	loc, err := a.router.ResumeAfterLogin(ctx)
	if err != nil {
		return err
	}
	a.logger.Info("signed in", "session_id", info.SessionID, "landing", loc)
	return a.whoami()
}

func (a *app) whoami() error {
	p, ok := a.manager.Profile()
	if !ok {
		if a.manager.IsAuthenticated() {
			return errors.New("signed in but profile unavailable")
		}
		return goSession.ErrNotAuthenticated
	}
	return printJSON(p)
}

func (a *app) get(ctx context.Context, path string) error {
	var out json.RawMessage
	if err := a.manager.API().Get(ctx, path, nil, &out); err != nil {
		return err
	}
	return printJSON(out)
}

func (a *app) navigate(ctx context.Context, path string) error {
	loc, err := a.router.Push(ctx, path)
	if err != nil {
		return err
	}
	fmt.Println(loc)
	return nil
}

func (a *app) serveMetrics(ctx context.Context, addr string) int {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promexport.NewExporter(a.manager).Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	a.logger.Info("serving metrics", "addr", addr)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return 0
	case err := <-errCh:
		a.logger.Error("metrics server stopped", "error", err)
		return 1
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
