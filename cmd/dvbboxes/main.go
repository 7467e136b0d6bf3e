// Copyright (c) 2025 drowolath
// Licensed under the MIT License.
// See the LICENSE file in the repository root for details.

// Command dvbboxes compiles listings, replicates schedules to playout
// controllers and answers what is on air.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	xglog "github.com/drowolath/dvbboxes/internal/log"
)

var (
	version   = "v0.1.0"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		logger := xglog.WithComponent("cli")
		logger.Error().Err(err).Str(xglog.FieldEvent, "cli.failed").Msg("command failed")
		stop()
		os.Exit(1)
	}
}
