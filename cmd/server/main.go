package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/wirechat-lobby/internal/app"
	"github.com/vovakirdan/wirechat-lobby/internal/config"
	"github.com/vovakirdan/wirechat-lobby/internal/log"
)

var (
	cfgFile  string
	addr     string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:           "wirechat-lobby",
	Short:         "Single-room chat server with sessions, presence and history",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		bootLogger := log.New(logLevel)

		cfg, path, err := config.Load(bootLogger, cfgFile)
		if err != nil {
			return err
		}
		// Flags win over file and environment.
		cfg.UpdateFrom(config.Config{Addr: addr, LogLevel: logLevel})
		if err := cfg.Validate(); err != nil {
			return err
		}

		logger := log.New(cfg.LogLevel)
		logger.Info().Str("config", path).Msg("configuration loaded")

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		application, err := app.New(&cfg, logger)
		if err != nil {
			return fmt.Errorf("init app: %w", err)
		}

		logger.Info().Str("addr", cfg.Addr).Msg("starting wirechat server")
		if err := application.Run(ctx); err != nil {
			return fmt.Errorf("server exited with error: %w", err)
		}
		logger.Info().Msg("server stopped")
		return nil
	},
}

func init() {
	rootCmd.Flags().StringVar(&cfgFile, "config", "", "config file (default ./config.yaml or $WIRECHAT_CONFIG_DEFAULT_PATH)")
	rootCmd.Flags().StringVar(&addr, "addr", "", "HTTP listen address")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
