// Package proxy serves the storefront feed: per-shop widget settings, the
// recent-orders list the widget polls, the order-created webhook and a small
// admin surface for saving settings.
package proxy

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	corslib "github.com/rs/cors"

	"github.com/mishka20003-proger/live-sales-notifications/internal/feedapi"
	"github.com/mishka20003-proger/live-sales-notifications/internal/storage"
	"github.com/mishka20003-proger/live-sales-notifications/internal/synth"
	logx "github.com/mishka20003-proger/live-sales-notifications/pkg/logx"
)

// Config controls the HTTP listener.
type Config struct {
	Addr           string
	AllowedOrigins []string

	// RateLimit is the per-IP budget per RateWindow. 0 disables limiting.
	RateLimit  int
	RateWindow time.Duration

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration

	// Profiler mounts net/http/pprof under /debug. Keep it off on public
	// listeners.
	Profiler bool
}

type Server struct {
	cfg   Config
	store storage.Store
	gen   *synth.Generator
	log   logx.Logger
	now   func() time.Time
}

type Option func(*Server)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option { return func(s *Server) { s.now = now } }

// WithGenerator replaces the runtime-seeded order generator.
func WithGenerator(g *synth.Generator) Option { return func(s *Server) { s.gen = g } }

func New(cfg Config, store storage.Store, log logx.Logger, opts ...Option) (*Server, error) {
	if store == nil {
		return nil, errors.New("proxy: a store is required")
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Server{cfg: cfg, store: store, log: log.With(logx.String("comp", "proxy")), now: time.Now}
	for _, o := range opts {
		o(s)
	}
	if s.gen == nil {
		s.gen = synth.NewGenerator(nil, s.now)
	}
	return s, nil
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(accessLog(s.log))
	r.Use(middleware.Recoverer)
	r.Use(timing)

	origins := s.cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := corslib.New(corslib.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Shop-Domain", "X-Shopify-Shop-Domain"},
		ExposedHeaders: []string{"X-Process-Time", "Retry-After"},
		MaxAge:         300,
	})
	r.Use(c.Handler)

	r.Get("/healthz", s.handleHealth)
	if s.cfg.Profiler {
		r.Mount("/debug", middleware.Profiler())
	}

	r.Group(func(r chi.Router) {
		r.Use(rateLimit(s.cfg.RateLimit, s.cfg.RateWindow))
		r.Get(feedapi.SettingsPath, s.handleSettings)
		r.Get(feedapi.OrdersPath, s.handleRecentOrders)
		r.Post("/webhooks/orders/create", s.handleOrderWebhook)
		r.Route("/admin", func(r chi.Router) {
			r.Get("/settings", s.handleGetAdminSettings)
			r.Put("/settings", s.handlePutAdminSettings)
		})
	})
	return r
}

// Run listens on cfg.Addr until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       s.cfg.ReadTimeout,
		WriteTimeout:      s.cfg.WriteTimeout,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	s.log.Info("proxy listening", logx.String("addr", ln.Addr().String()))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	grace := s.cfg.ShutdownTimeout
	if grace <= 0 {
		grace = 5 * time.Second
	}
	sctx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		_ = srv.Close()
		return err
	}
	s.log.Info("proxy stopped")
	return nil
}
