package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/ritzau/thoughtgraph/pkg/model"
	"github.com/ritzau/thoughtgraph/pkg/output"
	"github.com/ritzau/thoughtgraph/pkg/patterns"
	"github.com/ritzau/thoughtgraph/pkg/projector"
	"github.com/ritzau/thoughtgraph/pkg/store"
	"github.com/ritzau/thoughtgraph/pkg/suggest"
	"github.com/spf13/cobra"
)

// snapshot reads the library and the stored connections once
func (a *app) snapshot(ctx context.Context) (model.Snapshot, error) {
	source, err := a.openSource()
	if err != nil {
		return model.Snapshot{}, err
	}
	conns, err := a.openStore(ctx)
	if err != nil {
		return model.Snapshot{}, err
	}
	defer conns.Close()

	snap := source.Snapshot()
	if snap.Connections, err = conns.List(ctx); err != nil {
		return model.Snapshot{}, err
	}
	return snap, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (a *app) graphCmd() *cobra.Command {
	var focus string
	var depth int

	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Print the projected graph as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := a.snapshot(cmd.Context())
			if err != nil {
				return err
			}
			g := projector.Project(snap)
			if focus != "" {
				g = projector.Focus(g, focus, depth)
			}
			return writeJSON(cmd.OutOrStdout(), g)
		},
	}
	cmd.Flags().StringVar(&focus, "focus", "", "Only include nodes near this node id")
	cmd.Flags().IntVar(&depth, "depth", 2, "Hops from the focus node")
	return cmd
}

func (a *app) statsCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Summarise the graph",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := a.snapshot(cmd.Context())
			if err != nil {
				return err
			}
			stats := projector.ComputeStats(projector.Project(snap))
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), stats)
			}
			output.PrintStatsReport(cmd.OutOrStdout(), stats)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of a report")
	return cmd
}

func (a *app) patternsCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "patterns",
		Short: "Detect tag clusters and repeated connections",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := a.snapshot(cmd.Context())
			if err != nil {
				return err
			}
			found := patterns.NewDetector().Detect(snap)
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), found)
			}
			output.PrintPatternReport(cmd.OutOrStdout(), found)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of a report")
	return cmd
}

func (a *app) suggestCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "suggest <content-id>",
		Short: "Suggest connections for a content item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := a.snapshot(cmd.Context())
			if err != nil {
				return err
			}
			suggestions := suggest.For(snap, args[0])
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), suggestions)
			}
			output.PrintSuggestionReport(cmd.OutOrStdout(), args[0], suggestions)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of a report")
	return cmd
}

func (a *app) connectCmd() *cobra.Command {
	var sourceType, targetType, relationship string
	var strength int

	cmd := &cobra.Command{
		Use:   "connect <source-id> <target-id>",
		Short: "Add a connection, or strengthen an existing one",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			conns, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer conns.Close()

			req := store.AddRequest{
				SourceID:     args[0],
				TargetID:     args[1],
				SourceType:   model.EntityKind(sourceType),
				TargetType:   model.EntityKind(targetType),
				Relationship: model.Relationship(relationship),
			}
			if cmd.Flags().Changed("strength") {
				req.Strength = &strength
			}

			conn, err := conns.Add(ctx, req)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s -[%s:%d]-> %s\n",
				conn.ID, conn.SourceID, conn.Relationship, conn.Strength, conn.TargetID)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&sourceType, "source-type", string(model.KindContent), "Kind of the source: content, memo or tag")
	f.StringVar(&targetType, "target-type", string(model.KindContent), "Kind of the target: content, memo or tag")
	f.StringVar(&relationship, "relationship", string(model.RelRelated), "Relationship label")
	f.IntVar(&strength, "strength", model.DefaultStrength, "Initial strength (1-10) for a new connection")
	return cmd
}
