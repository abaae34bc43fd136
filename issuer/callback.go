package issuer

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"github.com/MrEthical07/goSession/credential"
	"github.com/gofiber/fiber/v3"
)

// DefaultCallbackPath is the route served by CallbackServer.
const DefaultCallbackPath = "/auth/callback"

// ErrCallbackDenied is delivered when the browser redirect carries an error
// instead of a grant.
var ErrCallbackDenied = errors.New("issuer: callback denied")

// CodeExchanger trades an authorization code for a credential pair.
type CodeExchanger interface {
	ExchangeCode(ctx context.Context, code string) (credential.Pair, error)
}

type callbackResult struct {
	pair credential.Pair
	err  error
}

// CallbackServer receives the browser redirect that ends a redirect-mode
// login. The first completed callback is delivered to Await; later ones are
// answered with 409.
type CallbackServer struct {
	app       *fiber.App
	exchanger CodeExchanger
	path      string
	results   chan callbackResult
	received  atomic.Bool

	mu  sync.Mutex
	url string
	ln  net.Listener
}

// NewCallbackServer returns a CallbackServer. exchanger may be nil when the
// issuer redirects with the pair itself instead of a code.
func NewCallbackServer(exchanger CodeExchanger, path string) *CallbackServer {
	if path == "" {
		path = DefaultCallbackPath
	}
	s := &CallbackServer{
		app:       fiber.New(fiber.Config{AppName: "goSession callback"}),
		exchanger: exchanger,
		path:      path,
		results:   make(chan callbackResult, 1),
	}
	s.app.Get(path, s.handle)
	return s
}

// App exposes the fiber application, mainly for in-process tests.
func (s *CallbackServer) App() *fiber.App {
	return s.app
}

// Start listens on addr (for example 127.0.0.1:0) and serves in the
// background. It returns the absolute callback URL.
func (s *CallbackServer) Start(addr string) (string, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return "", fmt.Errorf("issuer: callback listen: %w", err)
	}
	s.mu.Lock()
	s.ln = ln
	s.url = "http://" + ln.Addr().String() + s.path
	u := s.url
	s.mu.Unlock()

	go func() {
		_ = s.app.Listener(ln, fiber.ListenConfig{DisableStartupMessage: true})
	}()
	return u, nil
}

// SetExchanger sets the code exchanger. The issuer client usually needs the
// callback URL from Start, so it can only be attached afterwards.
func (s *CallbackServer) SetExchanger(exchanger CodeExchanger) {
	s.mu.Lock()
	s.exchanger = exchanger
	s.mu.Unlock()
}

// URL returns the callback URL once Start has been called.
func (s *CallbackServer) URL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.url
}

// Await blocks until a callback completes or ctx ends.
func (s *CallbackServer) Await(ctx context.Context) (credential.Pair, error) {
	select {
	case r := <-s.results:
		return r.pair, r.err
	case <-ctx.Done():
		return credential.Pair{}, ctx.Err()
	}
}

// Close stops the listener.
func (s *CallbackServer) Close() error {
	return s.app.Shutdown()
}

func (s *CallbackServer) handle(c fiber.Ctx) error {
	if c.Query("error") == "" && c.Query("access_token") == "" && c.Query("refresh_token") == "" && c.Query("code") == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "missing grant"})
	}
	if !s.received.CompareAndSwap(false, true) {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "callback already received"})
	}

	var r callbackResult
	switch {
	case c.Query("error") != "":
		r.err = fmt.Errorf("%w: %s", ErrCallbackDenied, c.Query("error"))
	case c.Query("access_token") != "" || c.Query("refresh_token") != "":
		r.pair, r.err = TokenResponse{
			AccessToken:  c.Query("access_token"),
			RefreshToken: c.Query("refresh_token"),
		}.Pair()
	case c.Query("code") != "":
		s.mu.Lock()
		exchanger := s.exchanger
		s.mu.Unlock()
		if exchanger == nil {
			r.err = errors.New("issuer: callback code received without exchanger")
			break
		}
		r.pair, r.err = exchanger.ExchangeCode(c.Context(), c.Query("code"))
	}
	s.results <- r

	if r.err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "login failed"})
	}
	return c.JSON(fiber.Map{"status": "authenticated", "message": "You can close this window."})
}
