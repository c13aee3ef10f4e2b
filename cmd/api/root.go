package main

import (
	"log/slog"
	"os"
	"strings"

	"github.com/BradenHooton/accord/internal/config"
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for the accord CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "accord",
		Short: "Accord identity and session service",
		Long: `Accord signs users in with Google or emailed one-time codes and
keeps them signed in with rotating JWT sessions.`,
		SilenceUsage: true,
	}

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())

	return cmd
}

// bootstrap loads configuration and builds the process logger.
func bootstrap() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", slog.Any("error", err))
		return nil, nil, err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(cfg.Server.LogLevel)}))
	slog.SetDefault(logger)
	logger.Info("configuration loaded",
		slog.String("env", cfg.Server.Env),
		slog.String("store", cfg.Store.Driver),
		slog.String("mail", cfg.Mail.Driver))

	return cfg, logger, nil
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
