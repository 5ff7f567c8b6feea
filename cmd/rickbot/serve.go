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

	"github.com/dgraph-io/badger/v4"
	"github.com/spf13/cobra"

	"github.com/derailed-dash/rickbot/internal/agent"
	"github.com/derailed-dash/rickbot/internal/artifacts"
	"github.com/derailed-dash/rickbot/internal/auth"
	"github.com/derailed-dash/rickbot/internal/config"
	"github.com/derailed-dash/rickbot/internal/httpapi"
	"github.com/derailed-dash/rickbot/internal/personas"
	"github.com/derailed-dash/rickbot/internal/ratelimit"
	"github.com/derailed-dash/rickbot/internal/rbac"
	"github.com/derailed-dash/rickbot/internal/roles"
	"github.com/derailed-dash/rickbot/internal/sessions"
)

const shutdownTimeout = 15 * time.Second

func buildServeCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the chat gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to configuration file")
	return cmd
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		path = os.Getenv("RICKBOT_CONFIG")
	}
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

func runServe(ctx context.Context, cfg *config.Config) error {
	logger, err := buildLogger(cfg.Logging)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	verifier := buildVerifier(cfg, logger)

	roleStore, closeRoles, err := buildRoleStore(cfg, logger)
	if err != nil {
		return err
	}
	defer closeRoles()

	artifactStore, err := buildArtifactStore(cfg)
	if err != nil {
		return err
	}

	personalities, err := personas.Load(personas.LoadConfig{
		Path:                cfg.Personas.Path,
		PromptsDir:          cfg.Personas.PromptsDir,
		AllowMissingPrompts: cfg.Personas.AllowMissingPrompts,
	})
	if err != nil {
		return fmt.Errorf("load personalities: %w", err)
	}
	factory := agent.NewFactory(agent.Defaults{
		Model:   cfg.Agent.Model,
		Timeout: cfg.Agent.Timeout,
		APIKey:  cfg.Agent.APIKey,
	})
	registry, err := personas.NewRegistry(personalities, factory, cfg.Personas.Default, logger)
	if err != nil {
		return err
	}
	logger.Info("personalities loaded", "count", len(personalities), "names", personas.Names(personalities))

	server := httpapi.New(httpapi.Options{
		Logger:    logger,
		Verifier:  verifier,
		Roles:     roleStore,
		Guard:     rbac.NewGuard(roleStore, cfg.Personas.Default, logger),
		Sessions:  sessions.NewMemoryStore(),
		Personas:  registry,
		Runner:    agent.EchoRunner{},
		Artifacts: artifactStore,
		AppID:     cfg.Sessions.AppID,
		GlobalLimit: ratelimit.Config{
			Limit:   cfg.RateLimit.Global.Limit,
			Window:  cfg.RateLimit.Global.Window,
			Enabled: cfg.RateLimit.Enabled,
		},
		ChatLimit: ratelimit.Config{
			Limit:   cfg.RateLimit.Chat.Limit,
			Window:  cfg.RateLimit.Chat.Window,
			Enabled: cfg.RateLimit.Enabled,
		},
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           server,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("gateway listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func buildLogger(cfg config.LoggingConfig) (*slog.Logger, error) {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "", "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return nil, fmt.Errorf("unknown log level %q", cfg.Level)
	}

	opts := &slog.HandlerOptions{Level: level}
	switch strings.ToLower(cfg.Format) {
	case "text":
		return slog.New(slog.NewTextHandler(os.Stderr, opts)), nil
	case "", "json":
		return slog.New(slog.NewJSONHandler(os.Stderr, opts)), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}
}

func buildVerifier(cfg *config.Config, logger *slog.Logger) *auth.Service {
	authCfg := auth.Config{AllowMock: cfg.Auth.AllowMock}
	if cfg.Auth.Google.ClientID != "" {
		authCfg.Google = auth.NewGoogleVerifier(auth.GoogleConfig{
			ClientID: cfg.Auth.Google.ClientID,
			JWKSURL:  cfg.Auth.Google.JWKSURL,
		})
	}
	if cfg.Auth.GitHub.Enabled {
		authCfg.GitHub = auth.NewGitHubVerifier(auth.GitHubConfig{
			APIBase: cfg.Auth.GitHub.APIBase,
		})
	}
	if cfg.Auth.AllowMock {
		logger.Warn("mock tokens enabled; do not use in production")
	}
	return auth.NewService(authCfg, logger)
}

func buildRoleStore(cfg *config.Config, logger *slog.Logger) (roles.Store, func(), error) {
	switch cfg.Roles.Backend {
	case "memory":
		return roles.NewMemoryStore(), func() {}, nil
	case "badger":
		opts := badger.DefaultOptions(cfg.Roles.Path).WithLogger(nil)
		db, err := badger.Open(opts)
		if err != nil {
			return nil, nil, fmt.Errorf("open role database: %w", err)
		}
		closer := func() {
			if err := db.Close(); err != nil {
				logger.Error("close role database", "error", err)
			}
		}
		return roles.NewBadgerStore(db, logger), closer, nil
	default:
		return nil, nil, fmt.Errorf("unknown roles backend %q", cfg.Roles.Backend)
	}
}

func buildArtifactStore(cfg *config.Config) (artifacts.Store, error) {
	switch cfg.Artifacts.Backend {
	case "memory":
		return artifacts.NewMemoryStore(), nil
	case "local":
		return artifacts.NewLocalStore(cfg.Artifacts.Dir)
	default:
		return nil, fmt.Errorf("unknown artifacts backend %q", cfg.Artifacts.Backend)
	}
}
