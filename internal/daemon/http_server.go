package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	ferrors "git.home.luguber.info/inful/careradius/internal/foundation/errors"
	"git.home.luguber.info/inful/careradius/internal/logfields"
	"git.home.luguber.info/inful/careradius/internal/metrics"
	"git.home.luguber.info/inful/careradius/internal/server/handlers"
	smw "git.home.luguber.info/inful/careradius/internal/server/middleware"
)

const requestTimeout = 30 * time.Second

// HTTPServer serves the admin API.
type HTTPServer struct {
	addr   string
	router http.Handler
	server *http.Server
	ln     net.Listener
}

// NewHTTPServer builds the chi router for d. Nothing listens until Start.
func NewHTTPServer(addr string, d *Daemon) *HTTPServer {
	adapter := ferrors.NewHTTPErrorAdapter(slog.Default())

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(smw.Chain(slog.Default(), adapter))
	r.Use(chimw.Timeout(requestTimeout))

	handlers.Routes{
		Zones:       handlers.NewZoneHandlers(d.app.Zones, &d.zones),
		Transitions: handlers.NewTransitionHandlers(d.app.Handler, d.app),
		Monitoring:  handlers.NewMonitoringHandlers(d),
		Metrics:     metrics.HTTPHandler(d.app.Registry),
	}.Mount(r)

	return &HTTPServer{addr: addr, router: r}
}

// Handler exposes the router, mostly for tests.
func (s *HTTPServer) Handler() http.Handler { return s.router }

// Start binds the address before serving so a port conflict fails startup
// instead of surfacing later in a goroutine.
func (s *HTTPServer) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryDaemon, "http startup failed").
			WithContext("addr", s.addr).
			Build()
	}
	s.ln = ln
	s.server = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Admin API server failed", logfields.Error(err))
		}
	}()

	slog.Info("Admin API listening", slog.String("addr", ln.Addr().String()))
	return nil
}

// Addr is the bound address; it resolves port 0.
func (s *HTTPServer) Addr() string {
	if s.ln == nil {
		return s.addr
	}
	return s.ln.Addr().String()
}

// Stop gracefully shuts the server down.
func (s *HTTPServer) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("admin server shutdown: %w", err)
	}
	slog.Info("Admin API stopped")
	return nil
}
