// Copyright (c) 2025 drowolath
// Licensed under the MIT License.
// See the LICENSE file in the repository root for details.

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/drowolath/dvbboxes/internal/config"
	xglog "github.com/drowolath/dvbboxes/internal/log"
)

type globalFlags struct {
	configPath string
	logLevel   string
	envFiles   []string
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:           "dvbboxes",
		Short:         "Playout schedule replication across DVB controller sites",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&g.configPath, "config", "c", "", "path to config file (YAML), defaults to $"+config.EnvConfigPath+" or "+config.DefaultPath)
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "override the configured log level")
	root.PersistentFlags().StringSliceVar(&g.envFiles, "env-file", nil, "dotenv file(s) exported before the configuration is read")

	root.AddCommand(
		newServeCmd(g),
		newListingCmd(g),
		newProgramCmd(g),
		newMediaCmd(g),
		newVersionCmd(),
	)
	return root
}

// resolveConfigPath: --config, then the environment, then the default path
// when it exists.
func (g *globalFlags) resolveConfigPath() string {
	if p := strings.TrimSpace(g.configPath); p != "" {
		return p
	}
	if p := strings.TrimSpace(os.Getenv(config.EnvConfigPath)); p != "" {
		return p
	}
	if _, err := os.Stat(config.DefaultPath); err == nil {
		return config.DefaultPath
	}
	return ""
}

func (g *globalFlags) load(w io.Writer) (config.Config, error) {
	if err := config.LoadEnvFiles(g.envFiles...); err != nil {
		return config.Config{}, err
	}
	path := g.resolveConfigPath()
	if path == "" {
		return config.Config{}, errors.New("no configuration: pass --config or set " + config.EnvConfigPath)
	}
	cfg, err := config.NewLoader(path, version).Load()
	if err != nil {
		return cfg, err
	}
	level := cfg.Log.Level
	if g.logLevel != "" {
		level = g.logLevel
	}
	xglog.Configure(xglog.Config{
		Level:   level,
		Service: cfg.Log.Service,
		Version: version,
		Output:  w,
	})
	return cfg, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s (commit: %s, built: %s)\n", version, commit, buildDate)
		},
	}
}
