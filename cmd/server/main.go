// Command server runs the party game relay: a WebSocket endpoint that turns
// each player's roll, draw and chat actions into events broadcast to every
// connected player.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Tyrowin/partyrelay/internal/logging"
	"github.com/Tyrowin/partyrelay/internal/metrics"
	"github.com/Tyrowin/partyrelay/internal/server"
	"github.com/dustin/go-humanize"
	"github.com/hashicorp/go-multierror"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

const (
	appName         = "partyrelay"
	version         = "1.0.0"
	shutdownTimeout = 10 * time.Second
)

func main() {
	// Missing .env is fine; real environment variables still apply.
	envErr := godotenv.Load()

	cmd := newCommand(envErr)
	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", appName, err)
		os.Exit(1)
	}
}

func newCommand(envErr error) *cli.Command {
	return &cli.Command{
		Name:    appName,
		Usage:   "real-time broadcast relay for party games",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "host", Value: "0.0.0.0", Usage: "interface to bind", Sources: cli.EnvVars("HOST")},
			&cli.StringFlag{Name: "port", Value: "8000", Usage: "port to listen on", Sources: cli.EnvVars("PORT")},
			&cli.StringFlag{Name: "questions", Value: "questions.json", Usage: "question file (.json, .yaml, .yml)", Sources: cli.EnvVars("QUESTIONS_FILE")},
			&cli.StringSliceFlag{Name: "allowed-origins", Usage: "origins allowed to connect (* for any)", Sources: cli.EnvVars("ALLOWED_ORIGINS")},
			&cli.Int64Flag{Name: "max-message-size", Value: 4096, Usage: "largest inbound frame in bytes"},
			&cli.DurationFlag{Name: "write-timeout", Value: 10 * time.Second, Usage: "per-write deadline for a connection"},
			&cli.StringFlag{Name: "log-level", Value: "info", Usage: "debug, info, warn or error", Sources: cli.EnvVars("LOG_LEVEL")},
			&cli.StringFlag{Name: "log-format", Value: "console", Usage: "console or json", Sources: cli.EnvVars("LOG_FORMAT")},
			&cli.StringFlag{Name: "log-file", Usage: "also write logs to this rotated file", Sources: cli.EnvVars("LOG_FILE")},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			logger := logging.New(logging.Options{
				Level:  cmd.String("log-level"),
				Format: cmd.String("log-format"),
				File:   cmd.String("log-file"),
			})
			defer func() { _ = logger.Sync() }()

			if envErr != nil && !os.IsNotExist(envErr) {
				logger.Warn("error loading .env file", zap.Error(envErr))
			}

			return run(ctx, configFromCommand(cmd), logger)
		},
	}
}

// configFromCommand layers explicitly set flags over the environment defaults.
func configFromCommand(cmd *cli.Command) server.Config {
	cfg := *server.NewConfigFromEnv()

	if cmd.IsSet("host") {
		cfg.Host = cmd.String("host")
	}
	if cmd.IsSet("port") {
		cfg.Port = cmd.String("port")
	}
	if cmd.IsSet("questions") {
		cfg.QuestionsFile = cmd.String("questions")
	}
	if cmd.IsSet("allowed-origins") {
		cfg.AllowedOrigins = cmd.StringSlice("allowed-origins")
	}
	if cmd.IsSet("max-message-size") {
		cfg.MaxMessageSize = cmd.Int64("max-message-size")
	}
	if cmd.IsSet("write-timeout") {
		cfg.WriteTimeout = cmd.Duration("write-timeout")
	}

	return cfg.Sanitize()
}

func run(ctx context.Context, cfg server.Config, logger *zap.Logger) error {
	logger.Info("starting relay",
		zap.String("version", version),
		zap.String("addr", cfg.Addr()),
		zap.String("max_message_size", humanize.Bytes(uint64(cfg.MaxMessageSize))),
	)

	pool := server.LoadQuestionPool(cfg.QuestionsFile, logger)

	reg := metrics.NewRegistry()
	hub := server.NewHub(cfg, pool, metrics.NewRelay(reg), logger)
	httpServer := server.CreateServer(cfg.Addr(), server.SetupRoutes(hub, reg))

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.StartServer(httpServer, logger)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		logger.Info("received shutdown signal")
	}

	var result *multierror.Error
	if err := server.ShutdownServer(httpServer, shutdownTimeout, logger); err != nil {
		result = multierror.Append(result, fmt.Errorf("http server shutdown: %w", err))
	}
	if err := hub.Shutdown(shutdownTimeout); err != nil {
		result = multierror.Append(result, fmt.Errorf("hub shutdown: %w", err))
	}

	logger.Info("relay stopped")
	return result.ErrorOrNil()
}
