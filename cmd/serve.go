package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/devroom/devroom/internal/api"
	"github.com/devroom/devroom/internal/devai"
	"github.com/devroom/devroom/internal/piston"
	"github.com/devroom/devroom/internal/webhook"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Short:   "Run the HTTP and WebSocket server",
	GroupID: "server",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			cfg.ListenAddr = addr
		}
		slog.SetDefault(newLogger(cfg, os.Stderr))

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return serve(ctx, cfg)
	},
}

func serve(ctx context.Context, cfg api.Config) error {
	store, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	// Sockets from a previous process are gone.
	if n, err := store.ClearPresence(); err != nil {
		return fmt.Errorf("clear presence: %w", err)
	} else if n > 0 {
		slog.Info("cleared stale presence", "sockets", n)
	}

	deps := api.Deps{
		Executor: piston.New(cfg.PistonURL, cfg.PistonTimeout),
		Notifier: webhook.NewNotifier(cfg.WebhookURL, cfg.WebhookSecret, slog.Default()),
	}
	if cfg.GoogleAPIKey != "" {
		assistant, err := devai.New(ctx, cfg.GoogleAPIKey, cfg.DevAIModel)
		if err != nil {
			return fmt.Errorf("devai: %w", err)
		}
		deps.Assistant = assistant
		slog.Info("devai enabled", "model", assistant.ModelName())
	} else {
		slog.Warn("GOOGLE_API_KEY not set, devai chat disabled")
	}

	srv, err := api.NewServer(cfg, store, deps)
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}

	err = srv.Run(ctx)
	slog.Info("server stopped")
	return err
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (overrides PORT and config)")
	addDBFlags(serveCmd.Flags())
	rootCmd.AddCommand(serveCmd)
}
