// Copyright (c) 2025 drowolath
// Licensed under the MIT License.
// See the LICENSE file in the repository root for details.

// Package notify tells a playout controller to reload its schedule after it
// was rewritten.
package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/drowolath/dvbboxes/internal/cluster"
	"github.com/drowolath/dvbboxes/internal/log"
	"github.com/drowolath/dvbboxes/internal/schedule"
)

var ErrEmptyCommand = errors.New("notify: empty command")

// Nop discards every notification.
type Nop struct{}

func (Nop) Notify(context.Context, cluster.Replica, schedule.Day, string) error { return nil }

// Command runs an argv template per notification. Placeholders {replica},
// {site}, {host}, {day} and {channel} are substituted in every argument.
type Command struct {
	argv    []string
	timeout time.Duration
	logger  zerolog.Logger
}

// NewCommand validates argv. A zero timeout leaves the command unbounded.
func NewCommand(argv []string, timeout time.Duration, logger zerolog.Logger) (*Command, error) {
	if len(argv) == 0 || strings.TrimSpace(argv[0]) == "" {
		return nil, ErrEmptyCommand
	}
	return &Command{
		argv:    append([]string(nil), argv...),
		timeout: timeout,
		logger:  logger.With().Str(log.FieldComponent, "notify").Logger(),
	}, nil
}

// Expand returns the argv for one notification.
func (c *Command) Expand(r cluster.Replica, day schedule.Day, channel string) []string {
	rep := strings.NewReplacer(
		"{replica}", r.Name,
		"{site}", r.Site,
		"{host}", r.Host(),
		"{day}", day.String(),
		"{channel}", channel,
	)
	out := make([]string, len(c.argv))
	for i, a := range c.argv {
		out[i] = rep.Replace(a)
	}
	return out
}

// Notify runs the command to completion.
func (c *Command) Notify(ctx context.Context, r cluster.Replica, day schedule.Day, channel string) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	argv := c.Expand(r, day, channel)

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	ev := c.logger.Debug()
	if err != nil {
		ev = c.logger.Warn().Err(err).Str("stderr", strings.TrimSpace(stderr.String()))
	}
	ev.Str(log.FieldEvent, "notify.run").
		Str(log.FieldReplica, r.ID()).
		Str(log.FieldDay, day.String()).
		Str(log.FieldChannel, channel).
		Dur("duration", time.Since(start)).
		Msg("refresh command finished")
	if err != nil {
		return fmt.Errorf("notify %s: %w", r.ID(), err)
	}
	return nil
}
