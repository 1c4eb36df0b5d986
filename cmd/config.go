package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/devroom/devroom/internal/api"
	"github.com/devroom/devroom/internal/serverdb"
)

// addDBFlags registers database overrides shared by every command that
// opens the store.
func addDBFlags(fs *pflag.FlagSet) {
	fs.String("db", "", "path to the database (default: from config or DEVROOM_DB_PATH)")
	fs.String("db-driver", "", `database driver: "sqlite" (pure Go) or "sqlite3" (cgo)`)
}

// loadConfig builds the server configuration, applying flag overrides.
func loadConfig(cmd *cobra.Command) (api.Config, error) {
	cfg, err := api.LoadConfig(configPath)
	if err != nil {
		return cfg, err
	}
	if f := cmd.Flags().Lookup("db"); f != nil && f.Changed {
		cfg.DBPath = f.Value.String()
	}
	if f := cmd.Flags().Lookup("db-driver"); f != nil && f.Changed {
		cfg.DBDriver = f.Value.String()
	}
	return cfg, nil
}

// openStore loads the configuration and opens the database it names.
func openStore(cmd *cobra.Command) (*serverdb.ServerDB, api.Config, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, cfg, err
	}
	store, err := openDB(cfg)
	return store, cfg, err
}

func openDB(cfg api.Config) (*serverdb.ServerDB, error) {
	store, err := serverdb.Open(cfg.DBDriver, cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return store, nil
}

// newLogger builds the process logger from the configured level and format.
func newLogger(cfg api.Config, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	var handler slog.Handler
	if strings.ToLower(cfg.LogFormat) == "text" {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}
	return slog.New(handler)
}
