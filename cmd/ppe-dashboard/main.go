package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v3"

	"ppe-dashboard/internal/backend"
	"ppe-dashboard/internal/config"
	httphandler "ppe-dashboard/internal/http"
	"ppe-dashboard/internal/logger"
	"ppe-dashboard/internal/service"
	"ppe-dashboard/internal/storage"
)

func main() {
	cmd := &cli.Command{
		Name:  "ppe-dashboard",
		Usage: "PPE compliance dashboard for the detection backend",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to an env file; defaults to app.env in ., ./config or ./deploy",
				Sources: cli.EnvVars("PPE_CONFIG"),
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Overrides LOG_LEVEL",
			},
		},
		Action: serve,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the dashboard server",
				Action: serve,
			},
			{
				Name:   "check",
				Usage:  "Probe the backend once and print the system status",
				Action: check,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

// setup loads configuration and builds the logger shared by all commands.
func setup(cmd *cli.Command) (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("failed to load config: %w", err)
	}
	if level := cmd.String("log-level"); level != "" {
		cfg.Log.Level = level
	}
	return cfg, logger.New(cfg.Environment, cfg.Log.Level, cfg.Log.File), nil
}

func newAPI(cfg *config.Config, policy backend.Policy, store backend.Store, log zerolog.Logger) *backend.API {
	transport := backend.NewHTTPTransport(cfg.Backend.BaseURL, &http.Client{})
	client := backend.NewClient(backend.Options{
		BaseURL:       cfg.Backend.BaseURL,
		Timeout:       cfg.Backend.Timeout,
		UploadTimeout: cfg.Backend.UploadTimeout,
		Policy:        policy,
		Store:         store,
	}, transport, log)
	return backend.NewAPI(client)
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, appLogger, err := setup(cmd)
	if err != nil {
		return err
	}

	store, err := openStore(ctx, cfg, appLogger)
	if err != nil {
		appLogger.Error().Err(err).Str("cache_backend", cfg.Cache.Backend).Msg("failed to open fallback cache")
		return err
	}
	defer store.Close()

	policy := backend.Policy{
		Mode:    backend.FallbackMode(cfg.Fallback.Mode),
		Methods: cfg.Fallback.Methods,
	}
	api := newAPI(cfg, policy, store, appLogger)

	// Archiving is optional; uploads still work without it.
	var archiver service.Archiver
	archive, err := storage.NewArchive(cfg.Storage)
	switch {
	case err == nil:
		archiver = archive
	case errors.Is(err, storage.ErrNotConfigured):
		appLogger.Warn().Msg("archive storage not configured, uploaded clips will not be kept")
	default:
		appLogger.Error().Err(err).Msg("failed to initialize archive storage")
		return err
	}

	appCtx, cancelApp := context.WithCancel(context.Background())
	defer cancelApp()

	session := service.NewSession(api, service.SessionConfig{
		LogsInterval:   cfg.Poll.LogsInterval,
		FeedInterval:   cfg.Poll.FeedInterval,
		StatusInterval: cfg.Poll.StatusInterval,
	}, appLogger)
	settings := service.NewSettingsService(api, appLogger)
	cameras := service.NewCameraService(api, appLogger)
	uploads := service.NewUploadService(api, service.UploadOptions{
		MaxBytes: cfg.Upload.MaxBytes,
		Dir:      cfg.Upload.Dir,
		Archiver: archiver,
	}, appLogger)

	if err := settings.Load(ctx); err != nil {
		appLogger.Warn().Err(err).Msg("failed to load detector settings")
	}
	if err := session.Start(appCtx); err != nil {
		return err
	}

	handler := httphandler.NewHandler(session, settings, cameras, uploads, api, cfg, appLogger)
	router := httphandler.NewRouter(handler, cfg.Environment, appLogger, store.Ready)

	appLogger.Info().
		Str("addr", cfg.Addr()).
		Str("backend_url", cfg.Backend.BaseURL).
		Str("fallback_mode", cfg.Fallback.Mode).
		Str("cache_backend", cfg.Cache.Backend).
		Msg("starting PPE dashboard")

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serveErr:
		if err != nil {
			appLogger.Error().Err(err).Msg("failed to start server")
			session.Close()
			uploads.Close()
			return err
		}
	}

	appLogger.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Error().Err(err).Msg("server forced to shutdown")
	}
	session.Close()
	uploads.Close()

	appLogger.Info().Msg("server exited")
	return nil
}
