package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"marpro/internal/api"
	"marpro/internal/catalog"
	"marpro/internal/config"
	"marpro/internal/database"
	"marpro/internal/domain"
	"marpro/internal/events"
	"marpro/internal/export"
	"marpro/internal/google"
	"marpro/internal/logging"
	"marpro/internal/metrics"
	"marpro/internal/notify"
	"marpro/internal/repository"
	"marpro/internal/service"
	"marpro/internal/worker"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func(c io.Closer) { _ = c.Close() })(closer)
	}

	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		logger.Error().Err(err).Str("catalog_path", cfg.CatalogPath).Msg("load catalog")
		return err
	}

	db, err := initDatabase(cfg, &logger)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisClient, sessions := initSessions(ctx, cfg, &logger)
	if redisClient != nil {
		defer func() { _ = repository.Close(redisClient) }()
	}

	eventBus := events.NewEventBus()
	initTelegram(cfg, eventBus, &logger)

	syncWorker := initSyncWorker(ctx, cfg, db, redisClient, &logger)
	go syncWorker.Start(ctx)

	dispatcher, err := initMail(cfg, &logger)
	if err != nil {
		return err
	}

	if cfg.Backup.Enabled {
		backupService := database.NewBackupService(db, cfg.Backup, logging.Component(&logger, "backup"))
		go backupService.Start(ctx)
	}

	// business services
	orderService := service.NewOrderService(db, cat, dispatcher, eventBus, syncWorker, logging.Component(&logger, "orders"))
	bookingService := service.NewBookingService(db, dispatcher, eventBus, syncWorker, cfg.Location(), logging.Component(&logger, "bookings"))
	applicationService := service.NewWorkApplicationService(db, eventBus, logging.Component(&logger, "work-applications"))
	authService := service.NewAuthService(sessions, cfg.Admin, logging.Component(&logger, "auth"))
	catalogService := service.NewCatalogService(cat)

	httpServer := api.NewHTTPServer(cfg.API, api.Services{
		Orders:           orderService,
		Bookings:         bookingService,
		WorkApplications: applicationService,
		Auth:             authService,
		Catalog:          catalogService,
		Exporter:         export.NewBookingExporter(db, cfg.Exports.MaxRangeDays, logging.Component(&logger, "export")),
		Storage:          db,
	}, logging.Component(&logger, "http"))

	var grpcServer *api.GRPCServer
	if cfg.API.GRPC.Enabled {
		grpcServer, err = api.NewGRPCServer(&cfg.API, api.NewAvailabilityService(bookingService, catalogService), &logger)
		if err != nil {
			logger.Error().Err(err).Msg("create grpc server")
			return err
		}
	}

	startMetrics(ctx, cfg, &logger)

	return startServers(ctx, grpcServer, httpServer, cfg, &logger)
}

func loadConfigAndLogger() (*config.Config, zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("init logger: %w", err)
	}
	logger := baseLogger.With().Str("component", "main").Logger()

	return cfg, logger, closer, nil
}

func initDatabase(cfg *config.Config, logger *zerolog.Logger) (*database.DB, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		logger.Error().Err(err).Msg("Ошибка создания директории для базы данных")
		return nil, err
	}

	db, err := database.NewDB(cfg.Database.Path, logging.Component(logger, "database"), database.WithBusyTimeout(cfg.Database.BusyTimeout))
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
		return nil, err
	}
	return db, nil
}

// initSessions prefers Redis and falls back to process memory while Redis
// is unreachable.
func initSessions(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*redis.Client, domain.SessionRepository) {
	fallback := repository.NewMemorySessionRepository()
	if cfg.Redis.Address == "" {
		logger.Warn().Msg("redis address not set, admin sessions kept in memory")
		return nil, fallback
	}

	redisClient := repository.NewRedisClient(cfg.Redis)
	if err := repository.Ping(ctx, redisClient); err != nil {
		logger.Warn().Err(err).Msg("Redis unavailable")
	} else {
		logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	}

	primary := repository.NewRedisSessionRepository(redisClient)
	return redisClient, repository.NewFailoverSessionRepository(primary, fallback, logging.Component(logger, "sessions"))
}

func initTelegram(cfg *config.Config, bus *events.EventBus, logger *zerolog.Logger) {
	if cfg.Telegram.BotToken == "" || len(cfg.Telegram.OperatorChatIDs) == 0 {
		logger.Info().Msg("telegram notifications disabled")
		return
	}

	botAPI, err := tgbotapi.NewBotAPI(cfg.Telegram.BotToken)
	if err != nil {
		logger.Warn().Err(err).Msg("Ошибка создания BotAPI, уведомления в Telegram отключены")
		return
	}
	botAPI.Debug = cfg.Telegram.Debug

	notifier := notify.NewTelegramNotifier(botAPI, cfg.Telegram.OperatorChatIDs, logging.Component(logger, "telegram"))
	notifier.Register(bus)
	logger.Info().Str("bot", botAPI.Self.UserName).Int("chats", len(cfg.Telegram.OperatorChatIDs)).Msg("telegram notifications enabled")
}

// initSyncWorker wires whichever Google integrations are configured. A
// failing integration is skipped so orders keep flowing.
func initSyncWorker(ctx context.Context, cfg *config.Config, db *database.DB, redisClient *redis.Client, logger *zerolog.Logger) *worker.SyncWorker {
	var (
		calendar worker.CalendarClient
		sheet    worker.SheetClient
	)

	if cfg.Google.CalendarEnabled() {
		cal, err := google.NewCalendarService(ctx, cfg.Google.CredentialsFile, cfg.Google.CalendarID, cfg.Location())
		if err != nil {
			logger.Warn().Err(err).Msg("google calendar init failed, continuing without calendar")
		} else {
			calendar = cal
			logger.Info().Msg("google calendar connected")
		}
	}

	if cfg.Google.SheetsEnabled() {
		if s, err := initOrdersSheet(ctx, cfg); err != nil {
			logger.Warn().Err(err).Msg("google sheets init failed, continuing without sheets")
		} else {
			sheet = s
			logger.Info().Msg("google sheets connected")
		}
	}

	if calendar != nil || sheet != nil {
		if email, err := google.ServiceAccountEmail(cfg.Google.CredentialsFile); err == nil {
			logger.Info().Str("service_account", email).Msg("share the calendar and the orders sheet with this account")
		}
		if failed, err := db.GetFailedSyncTasks(ctx); err == nil && len(failed) > 0 {
			logger.Warn().Int("count", len(failed)).Msg("failed sync tasks need attention")
		}
	}

	return worker.NewSyncWorker(db, calendar, sheet, redisClient, worker.RetryPolicy{}, logging.Component(logger, "sync"))
}

func initOrdersSheet(ctx context.Context, cfg *config.Config) (*google.OrdersSheet, error) {
	s, err := google.NewOrdersSheet(ctx, cfg.Google.CredentialsFile, cfg.Google.OrdersSpreadsheetID)
	if err != nil {
		return nil, err
	}
	if err := s.TestConnection(ctx); err != nil {
		return nil, fmt.Errorf("test connection: %w", err)
	}
	if err := s.EnsureHeader(ctx); err != nil {
		return nil, fmt.Errorf("ensure header: %w", err)
	}
	if err := s.WarmUpCache(ctx); err != nil {
		return nil, fmt.Errorf("warm up cache: %w", err)
	}
	return s, nil
}

func initMail(cfg *config.Config, logger *zerolog.Logger) (*notify.Dispatcher, error) {
	mailLogger := logging.Component(logger, "mail")

	var transport notify.Transport
	if cfg.Mail.Enabled {
		transport = notify.NewSMTPTransport(cfg.Mail, mailLogger)
	} else {
		logger.Warn().Msg("mail disabled, customer notifications are only logged")
		transport = notify.NewLogTransport(mailLogger)
	}

	signature := cfg.Mail.FromName
	if signature == "" {
		signature = cfg.App.Name
	}
	dispatcher, err := notify.NewDispatcher(transport, signature, mailLogger)
	if err != nil {
		logger.Error().Err(err).Msg("init mail dispatcher")
		return nil, err
	}
	return dispatcher, nil
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	metrics.Register()
	go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, logger)
}

func startServers(
	ctx context.Context,
	grpcServer *api.GRPCServer,
	httpServer *api.HTTPServer,
	cfg *config.Config,
	logger *zerolog.Logger,
) error {
	errCh := make(chan error, 2)

	if grpcServer != nil {
		go func() {
			if err := grpcServer.Serve(); err != nil {
				errCh <- fmt.Errorf("grpc server: %w", err)
			}
		}()
	}

	go func() {
		if err := httpServer.Start(); err != nil {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	event := logger.Info().Int("http_port", cfg.API.HTTP.Port)
	if grpcServer != nil {
		event = event.Str("grpc_addr", grpcServer.Addr())
	}
	event.Msg("API server started")

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	case runErr = <-errCh:
		logger.Error().Err(runErr).Msg("server stopped unexpectedly")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if grpcServer != nil {
		grpcServer.Shutdown(shutdownCtx)
	}
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("http shutdown")
	}

	logger.Info().Msg("Shutdown complete.")
	return runErr
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
