// Copyright (c) 2025 drowolath
// Licensed under the MIT License.
// See the LICENSE file in the repository root for details.

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/renameio/v2"
	"github.com/spf13/cobra"

	"github.com/drowolath/dvbboxes/internal/api"
	"github.com/drowolath/dvbboxes/internal/health"
	"github.com/drowolath/dvbboxes/internal/listing"
	xglog "github.com/drowolath/dvbboxes/internal/log"
	"github.com/drowolath/dvbboxes/internal/schedule"
)

// withApp loads the configuration, builds the app and closes it after run.
func withApp(g *globalFlags, run func(cmd *cobra.Command, a *app, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := g.load(cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		a, err := newApp(cfg)
		if err != nil {
			return err
		}
		defer func() {
			if cerr := a.Close(); cerr != nil {
				a.logger.Warn().Err(cerr).Msg("closing stores")
			}
		}()
		return run(cmd, a, args)
	}
}

func newServeCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Args:  cobra.NoArgs,
		RunE: withApp(g, func(cmd *cobra.Command, a *app, _ []string) error {
			apiLogger := xglog.WithComponent("api")
			srv := api.New(api.Deps{
				Media:      a.media,
				Programs:   a.programs,
				Replicator: a.replicator,
				Channels:   a.cfg,
				Health:     a.topo.Default(),
				Ready:      health.ForTopology(health.NewManager(version, a.cfg.Timeouts.Dial), a.topo),
			}, api.Options{
				Location:    a.loc,
				Anchor:      a.anchor,
				Concurrency: a.cfg.Concurrency,
				RateLimit:   a.cfg.API.RateLimit,
				RateWindow:  a.cfg.API.RateWindow,
				Logger:      &apiLogger,
			})
			a.logger.Info().
				Str(xglog.FieldEvent, "startup").
				Str("version", version).
				Str("commit", commit).
				Strs("sites", a.cfg.SiteNames()).
				Msg("starting dvbboxes")
			return srv.Run(cmd.Context(), a.cfg.API.Listen)
		}),
	}
}

func newListingCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "listing",
		Short: "Compile and apply listings",
	}

	var out string
	compile := &cobra.Command{
		Use:   "compile FILE",
		Short: "Compile a listing into day documents (JSON)",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(g, func(cmd *cobra.Command, a *app, args []string) error {
			docs, err := compileFile(cmd, a, args[0])
			if err != nil {
				return err
			}
			if out == "" {
				return printJSON(cmd.OutOrStdout(), docs)
			}
			return writeDocuments(out, docs)
		}),
	}
	compile.Flags().StringVarP(&out, "output", "o", "", "write documents to this file instead of stdout")

	var (
		channel  string
		sites    []string
		fromJSON bool
	)
	apply := &cobra.Command{
		Use:   "apply FILE",
		Short: "Compile a listing and write it to every replica",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(g, func(cmd *cobra.Command, a *app, args []string) error {
			serviceID, err := a.cfg.ResolveChannel(channel)
			if err != nil {
				return err
			}
			var docs []schedule.Document
			if fromJSON {
				docs, err = readDocuments(args[0])
			} else {
				docs, err = compileFile(cmd, a, args[0])
			}
			if err != nil {
				return err
			}
			report, err := a.replicator.Apply(cmd.Context(), docs, serviceID, sites...)
			if err != nil {
				return err
			}
			if err := printJSON(cmd.OutOrStdout(), report); err != nil {
				return err
			}
			if failures := report.Failures(); len(failures) > 0 {
				return fmt.Errorf("%d replica writes failed", len(failures))
			}
			return nil
		}),
	}
	apply.Flags().StringVar(&channel, "channel", "", "channel name or service id")
	apply.Flags().StringSliceVar(&sites, "site", nil, "restrict to these sites (repeatable)")
	apply.Flags().BoolVar(&fromJSON, "from-json", false, "FILE holds documents produced by 'listing compile'")
	_ = apply.MarkFlagRequired("channel")

	cmd.AddCommand(compile, apply)
	return cmd
}

func compileFile(cmd *cobra.Command, a *app, path string) ([]schedule.Document, error) {
	var src io.Reader = cmd.InOrStdin()
	if path != "-" {
		// #nosec G304 -- listing paths are provided by the operator
		f, err := os.Open(filepath.Clean(path))
		if err != nil {
			return nil, fmt.Errorf("open listing: %w", err)
		}
		defer f.Close()
		src = f
	}
	l, err := listing.Compile(cmd.Context(), src, a.media, a.listingOptions())
	if err != nil {
		return nil, err
	}
	return l.Documents()
}

// writeDocuments replaces path atomically.
func writeDocuments(path string, docs []schedule.Document) error {
	pending, err := renameio.NewPendingFile(path)
	if err != nil {
		return fmt.Errorf("create pending file: %w", err)
	}
	defer func() { _ = pending.Cleanup() }()

	if err := printJSON(pending, docs); err != nil {
		return err
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("atomically replace %s: %w", path, err)
	}
	return nil
}

func readDocuments(path string) ([]schedule.Document, error) {
	// #nosec G304 -- document paths are provided by the operator
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read documents: %w", err)
	}
	var docs []schedule.Document
	if err := json.Unmarshal(data, &docs); err != nil {
		return nil, fmt.Errorf("decode documents: %w", err)
	}
	return docs, nil
}

func newProgramCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "program",
		Short: "Show reconciled schedules",
	}

	var (
		at    float64
		sites []string
	)
	reference := func(a *app) time.Time {
		if at == 0 {
			return time.Time{}
		}
		return schedule.Time(at, a.loc)
	}

	show := &cobra.Command{
		Use:   "show DAY CHANNEL",
		Short: "Print the schedule of CHANNEL on DAY (DDMMYYYY)",
		Args:  cobra.ExactArgs(2),
		RunE: withApp(g, func(cmd *cobra.Command, a *app, args []string) error {
			day, channel, err := dayAndChannel(a, args[0], args[1])
			if err != nil {
				return err
			}
			sched, err := a.programs.Query(cmd.Context(), day, channel, reference(a), sites...)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), sched)
		}),
	}

	starts := &cobra.Command{
		Use:   "starts DAY CHANNEL ASSET",
		Short: "Print when ASSET airs on CHANNEL on DAY",
		Args:  cobra.ExactArgs(3),
		RunE: withApp(g, func(cmd *cobra.Command, a *app, args []string) error {
			day, channel, err := dayAndChannel(a, args[0], args[1])
			if err != nil {
				return err
			}
			times, err := a.programs.StartTimesOf(cmd.Context(), args[2], day, channel, reference(a), sites...)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), times)
		}),
	}

	for _, c := range []*cobra.Command{show, starts} {
		c.Flags().Float64Var(&at, "at", 0, "reference time in unix seconds (default: the day's anchor)")
		c.Flags().StringSliceVar(&sites, "site", nil, "restrict to these sites (repeatable)")
	}
	cmd.AddCommand(show, starts)
	return cmd
}

func dayAndChannel(a *app, rawDay, rawChannel string) (schedule.Day, string, error) {
	day, err := schedule.ParseDay(rawDay)
	if err != nil {
		return schedule.Day{}, "", err
	}
	channel, err := a.cfg.ResolveChannel(rawChannel)
	if err != nil {
		return schedule.Day{}, "", err
	}
	return day, channel, nil
}

func newMediaCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "media",
		Short: "Look up media assets",
	}

	info := &cobra.Command{
		Use:   "info NAME",
		Short: "Resolve the duration of NAME and the sites that hold it",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(g, func(cmd *cobra.Command, a *app, args []string) error {
			asset, err := a.media.Resolve(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), asset)
		}),
	}

	var sites []string
	search := &cobra.Command{
		Use:   "search EXPR",
		Short: "List assets whose name contains EXPR",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(g, func(cmd *cobra.Command, a *app, args []string) error {
			matches, err := a.media.Search(cmd.Context(), args[0], sites...)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), matches)
		}),
	}
	search.Flags().StringSliceVar(&sites, "site", nil, "restrict to these sites (repeatable)")

	sched := &cobra.Command{
		Use:   "schedule NAME",
		Short: "List every start time of NAME per channel",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(g, func(cmd *cobra.Command, a *app, args []string) error {
			asset, err := a.media.Resolve(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			byChannel, err := a.media.Schedule(cmd.Context(), asset)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), byChannel)
		}),
	}

	cmd.AddCommand(info, search, sched)
	return cmd
}
