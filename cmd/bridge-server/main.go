package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/jwtauth"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/tendant/editor-bridge/pkg/editorbridge/api"
	"github.com/tendant/editor-bridge/pkg/editorbridge/config"
	"github.com/tendant/editor-bridge/pkg/editorbridge/fixtures"
	"github.com/tendant/editor-bridge/pkg/editorbridge/telemetry"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("Failed to load .env file", "err", err)
	}

	var env EnvConfig
	if err := cleanenv.ReadEnv(&env); err != nil {
		slog.Error("Failed to read configuration", "err", err)
		os.Exit(1)
	}
	logger := newLogger(env.Environment, env.LogLevel)
	slog.SetDefault(logger)

	if err := run(env, logger); err != nil {
		logger.Error("Server failed", "err", err)
		os.Exit(1)
	}
}

func newLogger(environment, level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if environment == "production" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

func run(env EnvConfig, logger *slog.Logger) error {
	serverConfig, err := config.Load(env.Options()...)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Init(ctx, env.Telemetry(), logger)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			logger.Warn("Failed to flush traces", "err", err)
		}
	}()

	rt, err := serverConfig.BuildService(ctx, logger)
	if err != nil {
		return fmt.Errorf("failed to build service: %w", err)
	}
	defer func() {
		if err := rt.Close(); err != nil {
			logger.Warn("Failed to release resources", "err", err)
		}
	}()

	if serverConfig.SeedFile != "" {
		ids, err := fixtures.SeedFile(ctx, rt.Repository, serverConfig.SeedFile, logger)
		if err != nil {
			return fmt.Errorf("failed to seed %s: %w", serverConfig.SeedFile, err)
		}
		logger.Info("Repository seeded", "file", serverConfig.SeedFile, "nodes", len(ids))
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics, err := api.NewMetrics(reg, reg)
	if err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}

	routerConfig := api.RouterConfig{
		Service:        rt.Service,
		Logger:         logger,
		MountPath:      serverConfig.MountPath,
		AllowedOrigins: serverConfig.AllowedOrigins,
		MaxUploadSize:  serverConfig.MaxUploadSize,
		Metrics:        metrics,
		Wrap: func(h http.Handler) http.Handler {
			return telemetry.Handler(h, "editor-bridge")
		},
	}
	if serverConfig.JWTSecret != "" {
		routerConfig.Principal = api.JWTPrincipal(jwtauth.New("HS256", []byte(serverConfig.JWTSecret), nil))
	}

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%s", serverConfig.Port),
		Handler:           api.NewRouter(routerConfig),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Editor bridge starting",
			"port", serverConfig.Port,
			"env", serverConfig.Environment,
			"mount", serverConfig.MountPath,
			"database", serverConfig.DatabaseType,
			"storage", serverConfig.Storage.Type,
			"events", serverConfig.EventBus,
			"auth", authMode(serverConfig),
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	logger.Info("Server exiting")
	return nil
}

func authMode(c *config.ServerConfig) string {
	if strings.TrimSpace(c.JWTSecret) != "" {
		return "jwt"
	}
	return "header"
}
