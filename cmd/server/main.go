package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"querydesk/internal/auth"
	"querydesk/internal/config"
	"querydesk/internal/crypto"
	"querydesk/internal/metrics"
	"querydesk/internal/providers"
	"querydesk/internal/providers/registry"
	"querydesk/internal/ratelimit"
	"querydesk/internal/search"
	"querydesk/internal/session"
	"querydesk/internal/storage"
	"querydesk/internal/web"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	setupLogger(cfg.Log.Level)
	log.Info().
		Str("env", cfg.Env).
		Str("db_driver", cfg.DB.Driver).
		Str("completion", cfg.Completion.Kind).
		Str("pdf_folder", cfg.Assets.PDFFolder).
		Msg("starting querydesk")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, err := storage.Open(ctx, cfg.DB.Driver, cfg.DB.DSN, cfg.DB.AutoMigrate)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize storage")
	}
	defer store.Close()
	if users, err := store.CountUsers(ctx); err != nil {
		log.Warn().Err(err).Msg("failed to count users")
	} else {
		log.Info().Str("driver", store.Driver()).Int64("users", users).Msg("storage ready")
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatal().Err(err).Msg("failed to connect redis")
	}
	defer rdb.Close()

	sealer, err := newSealer(cfg.Session)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize session sealer")
	}

	completer, err := registry.Build(registry.BuildOptions{
		Kind:       cfg.Completion.Kind,
		Endpoint:   cfg.Completion.Endpoint,
		APIKey:     cfg.Completion.APIKey,
		Deployment: cfg.Completion.Deployment,
		APIVersion: cfg.Completion.APIVersion,
		Model:      cfg.Completion.Model,
		Params:     providers.DefaultParams(),
		HTTPClient: &http.Client{Timeout: cfg.Completion.Timeout},
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build completion client")
	}

	pdfs, err := search.OpenPDFDir(cfg.Assets.PDFFolder)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open pdf folder")
	}
	defer pdfs.Close()

	keywords := search.DefaultKeywordTable()
	log.Info().Int("keywords", keywords.Len()).Msg("keyword table loaded")

	m := metrics.Global()
	orchestrator := search.NewOrchestrator(search.Config{
		Completer: completer,
		Chats:     store,
		Keywords:  keywords,
		PDFs:      pdfs,
		Logger:    log.Logger.With().Str("component", "search").Logger(),
		Metrics:   m,
	})
	authService := auth.NewService(auth.Config{
		Users:    store,
		Throttle: ratelimit.NewLoginLimiter(rdb, cfg.Session.LoginAttemptsPerHour),
		Logger:   log.Logger.With().Str("component", "auth").Logger(),
		Metrics:  m,
	})
	sessions := session.NewManager(session.NewStore(rdb, cfg.Session.TTL), sealer, cfg.Session.CookieSecure)

	srv, err := web.NewServer(web.Config{
		Auth:     authService,
		Sessions: sessions,
		Users:    store,
		Search:   orchestrator,
		History:  store,
		PDFs:     pdfs,
		DB:       store,
		Logger:   log.Logger.With().Str("component", "http").Logger(),
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize web server")
	}

	errCh := make(chan error, 1)
	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
		// Completion calls may take minutes; leave room for them.
		WriteTimeout: cfg.Completion.Timeout + 30*time.Second,
	}
	go func() {
		log.Info().Str("addr", cfg.ListenAddr).Msg("http server started")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		log.Error().Err(err).Msg("runtime error")
		cancel()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("failed to stop http server")
	}

	log.Info().Msg("stopped")
}

func newSealer(cfg config.SessionConfig) (*crypto.Sealer, error) {
	if len(cfg.Keys) == 0 {
		log.Warn().Msg("no session key configured; using a per-process key, sessions will not survive restarts")
		return crypto.NewEphemeral()
	}
	return crypto.NewSealer(cfg.CurrentKeyID, cfg.Keys)
}

func setupLogger(level string) {
	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.SetGlobalLevel(parseLogLevel(level))
	log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func parseLogLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
