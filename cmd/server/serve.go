package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Skotchmaster/hospital_portal/internal/db"
	"github.com/Skotchmaster/hospital_portal/internal/es"
	"github.com/Skotchmaster/hospital_portal/internal/google"
	"github.com/Skotchmaster/hospital_portal/internal/handlers"
	"github.com/Skotchmaster/hospital_portal/internal/metrics"
	"github.com/Skotchmaster/hospital_portal/internal/mykafka"
	"github.com/Skotchmaster/hospital_portal/internal/repo"
	"github.com/Skotchmaster/hospital_portal/internal/service"
	"github.com/Skotchmaster/hospital_portal/internal/service/search"
	"github.com/Skotchmaster/hospital_portal/internal/tokens"
	"github.com/Skotchmaster/hospital_portal/internal/tracer"
	httpserver "github.com/Skotchmaster/hospital_portal/internal/transport/http"
)

type eventProducer interface {
	service.EventPublisher
	Close() error
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}
}

func runServer(ctx context.Context) error {
	cfg, logger, gdb, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(gdb); err != nil {
			logger.Error().Err(err).Msg("db close error")
		}
	}()

	tp, err := tracer.Init(ctx, cfg.AppName, cfg.Tracing)
	if err != nil {
		logger.Error().Err(err).Msg("tracer init failed")
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("tracer shutdown error")
		}
	}()

	if err := db.Migrate(ctx, gdb); err != nil {
		logger.Error().Err(err).Msg("migration failed")
		return err
	}

	issuer, err := tokens.NewIssuer(cfg.JWT)
	if err != nil {
		return err
	}
	store := repo.New(gdb)

	var producer eventProducer = mykafka.Noop{}
	if len(cfg.Kafka.Brokers) > 0 {
		producer = mykafka.NewProducer(cfg.Kafka.Brokers)
		logger.Info().Strs("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.UserTopic).Msg("kafka producer ready")
	}
	defer func() {
		if err := producer.Close(); err != nil {
			logger.Error().Err(err).Msg("kafka close error")
		}
	}()

	var (
		index         service.UserIndexer
		searchHandler *handlers.SearchHandler
	)
	if cfg.Search.URL != "" {
		esClient, err := es.NewClient(ctx, cfg.Search)
		if err != nil {
			logger.Error().Err(err).Msg("elasticsearch unavailable")
			return err
		}
		dir := search.NewDirectory(esClient, cfg.Search.UserIndex)
		index = dir
		searchHandler = handlers.NewSearchHandler(dir)
	}

	var verifier service.GoogleVerifier
	if cfg.Google.ClientID != "" {
		verifier = google.NewVerifier(cfg.Google)
	} else {
		logger.Warn().Msg("GOOGLE_CLIENT_ID not set, google login disabled")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewCollector(cfg.AppName, reg)

	svc := service.NewAuthService(service.Deps{
		Users:     store,
		Tokens:    store,
		Issuer:    issuer,
		Google:    verifier,
		Events:    producer,
		Index:     index,
		Metrics:   m,
		UserTopic: cfg.Kafka.UserTopic,
	})

	e := httpserver.New(&httpserver.Deps{
		DB: gdb,
		AuthHandler: &handlers.AuthHandler{
			Svc:     svc,
			Cookies: handlers.CookieConfig{Secure: cfg.IsProduction(), MaxAge: issuer.RefreshTTL()},
		},
		UsersHandler:  &handlers.UsersHandler{Svc: svc},
		SearchHandler: searchHandler,
		Issuer:        issuer,
		Metrics:       m,
		Logger:        logger,
		RateLimit:     cfg.Limits,
		AllowOrigins:  cfg.Server.AllowedOrigins,
		Dev:           cfg.IsDevelopment(),
	})

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      e,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	logger.Info().Str("addr", srv.Addr).Str("env", cfg.AppEnv).Msg("http server listening")
	serveErr := listenAndWait(srv, quit, logger)
	if serveErr == nil {
		go func() {
			<-quit
			logger.Warn().Msg("force exit")
			os.Exit(1)
		}()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown error")
	}

	logger.Info().Msg("shutdown complete")
	return serveErr
}

// listenAndWait serves until the listener fails or a signal arrives on quit.
// A signal yields nil; the caller shuts srv down either way.
func listenAndWait(srv *http.Server, quit <-chan os.Signal, logger zerolog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		logger.Error().Err(err).Msg("http server error")
		return err
	case sig := <-quit:
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
		return nil
	}
}
