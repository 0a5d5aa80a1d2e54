package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"marpro/internal/config"
	"marpro/internal/domain"

	"github.com/rs/zerolog"
)

// BookingExporter writes the admin XLSX export; *export.BookingExporter
// implements it.
type BookingExporter interface {
	Export(ctx context.Context, from, to string, w io.Writer) error
}

// Pinger reports storage readiness; *database.DB implements it.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Services bundles what the HTTP handlers call into.
type Services struct {
	Orders           domain.OrderService
	Bookings         domain.BookingService
	WorkApplications domain.WorkApplicationService
	Auth             domain.AuthService
	Catalog          domain.CatalogService
	Exporter         BookingExporter
	Storage          Pinger
}

// HTTPServer serves the public forms, the admin area and health probes.
type HTTPServer struct {
	cfg      config.APIConfig
	services Services
	server   *http.Server
	limiter  *rateLimiter
	logger   *zerolog.Logger
}

func NewHTTPServer(cfg config.APIConfig, services Services, logger *zerolog.Logger) *HTTPServer {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	srv := &HTTPServer{
		cfg:      cfg,
		services: services,
		limiter:  newRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst),
		logger:   logger,
	}

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
	}
	return srv
}

// Handler builds the routed handler with the full middleware chain.
func (s *HTTPServer) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("GET /api/v1/catalog/{serviceType}", s.handleCatalog)
	mux.HandleFunc("GET /api/v1/availability", s.handleAvailability)
	mux.Handle("POST /api/v1/orders", s.rateLimit(http.HandlerFunc(s.handleCreateOrder)))
	mux.Handle("POST /api/v1/work-applications", s.rateLimit(http.HandlerFunc(s.handleCreateWorkApplication)))

	mux.Handle("POST /api/v1/admin/login", s.rateLimit(http.HandlerFunc(s.handleLogin)))
	mux.HandleFunc("POST /api/v1/admin/logout", s.handleLogout)

	admin := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, s.requireAdmin(h))
	}
	admin("GET /api/v1/admin/bookings", s.handleListBookings)
	admin("GET /api/v1/admin/bookings/export", s.handleExportBookings)
	admin("PATCH /api/v1/admin/bookings/{id}/status", s.handleBookingStatus)
	admin("GET /api/v1/admin/orders", s.handleListOrders)
	admin("GET /api/v1/admin/orders/{id}", s.handleGetOrder)
	admin("PATCH /api/v1/admin/orders/{id}/status", s.handleOrderStatus)
	admin("PATCH /api/v1/admin/orders/{id}/notes", s.handleOrderNotes)
	admin("GET /api/v1/admin/work-applications", s.handleListWorkApplications)

	return requestIDMiddleware(corsMiddleware(s.cfg.HTTP.AllowedOrigins, accessLogMiddleware(s.logger, mux)))
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.services.Storage != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.services.Storage.PingContext(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("readiness check failed")
			writeError(w, http.StatusServiceUnavailable, "storage unavailable")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
