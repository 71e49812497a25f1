package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/ritzau/thoughtgraph/pkg/logging"
	"github.com/ritzau/thoughtgraph/pkg/web"
	"github.com/spf13/cobra"
)

func (a *app) serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the graph over HTTP with live updates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx)
		},
	}

	f := cmd.Flags()
	f.Int("port", 8080, "Port for the web server")
	f.Bool("watch", false, "Reload the library file when it changes")
	f.Float64("layout-width", 800, "Layout container width")
	f.Float64("layout-height", 600, "Layout container height")
	f.Float64("layout-charge", -300, "Many-body charge strength (negative repels)")
	f.Int("layout-frame-ms", 16, "Milliseconds between simulation frames")
	return cmd
}

func (a *app) serve(ctx context.Context) error {
	source, err := a.openSource()
	if err != nil {
		return err
	}
	conns, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer conns.Close()

	server := web.NewServer(ctx, source, conns, web.WithLayoutConfig(a.layoutConfig()))
	if err := server.Refresh(ctx); err != nil {
		return err
	}

	if a.cfg.Watch {
		if err := source.Watch(ctx); err != nil {
			logging.Warn("not watching library", "path", source.Path(), "error", err)
		} else {
			logging.Info("watching library for changes", "path", source.Path())
		}
	}

	return server.Start(ctx, a.cfg.Port)
}
