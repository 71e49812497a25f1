package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ritzau/thoughtgraph/pkg/config"
	"github.com/ritzau/thoughtgraph/pkg/layout"
	"github.com/ritzau/thoughtgraph/pkg/logging"
	"github.com/ritzau/thoughtgraph/pkg/records"
	"github.com/ritzau/thoughtgraph/pkg/store"
	"github.com/spf13/cobra"
)

// app carries what every subcommand needs once configuration is loaded
type app struct {
	cfg *config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "thoughtgraph",
		Short: "Knowledge connection graph",
		Long: "thoughtgraph links content, memos and tags into a graph, lays it out\n" +
			"with a force simulation and finds patterns and suggested connections.",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cmd.Flags())
			if err != nil {
				return err
			}
			a.cfg = cfg
			logging.Configure(os.Stderr, logging.ParseLevel(cfg.Verbosity), cfg.JSONLogs)
			return nil
		},
	}

	f := rootCmd.PersistentFlags()
	f.String("config", config.DefaultFile, "Path to a TOML config file")
	f.String("library", "library.yaml", "Library file with content, memos and tags (YAML or JSON)")
	f.String("verbosity", "", "Log level: trace, debug, info, warn, error")
	f.Bool("json-logs", false, "Log as JSON instead of compact console output")
	f.String("store-driver", "memory", "Connection store: memory, sqlite or redis")
	f.String("store-path", "thoughtgraph.db", "SQLite database file")
	f.String("store-redis-addr", "localhost:6379", "Redis address")

	rootCmd.AddCommand(
		a.serveCmd(),
		a.graphCmd(),
		a.statsCmd(),
		a.patternsCmd(),
		a.suggestCmd(),
		a.connectCmd(),
	)
	return rootCmd
}

// openStore builds the connection adapter for the configured backend
func (a *app) openStore(ctx context.Context) (*store.Connections, error) {
	var backend store.Backend
	switch a.cfg.Store.Driver {
	case "sqlite":
		b, err := store.NewSQLiteBackend(a.cfg.Store.Path)
		if err != nil {
			return nil, err
		}
		backend = b
	case "redis":
		b, err := store.NewRedisBackend(ctx, a.cfg.Store.RedisAddr)
		if err != nil {
			return nil, err
		}
		backend = b
	default:
		backend = store.NewMemoryBackend()
	}
	logging.Debug("connection store opened", "driver", backend.Name())
	return store.New(backend), nil
}

// openSource loads the library file. A missing file yields empty records so
// a fresh install can still serve and accept connections.
func (a *app) openSource() (*records.Source, error) {
	source := records.NewSource(a.cfg.Library)
	if err := source.Load(); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logging.Warn("library file not found, starting empty", "path", a.cfg.Library)
			return source, nil
		}
		return nil, fmt.Errorf("load library: %w", err)
	}
	return source, nil
}

func (a *app) layoutConfig() layout.Config {
	cfg := layout.DefaultConfig()
	cfg.Width = a.cfg.Layout.Width
	cfg.Height = a.cfg.Layout.Height
	cfg.Charge = a.cfg.Layout.Charge
	cfg.FrameInterval = time.Duration(a.cfg.Layout.FrameMS) * time.Millisecond
	return cfg
}
