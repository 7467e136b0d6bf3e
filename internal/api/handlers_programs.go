// Copyright (c) 2025 drowolath
// Licensed under the MIT License.
// See the LICENSE file in the repository root for details.

package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/drowolath/dvbboxes/internal/cluster"
	"github.com/drowolath/dvbboxes/internal/program"
	"github.com/drowolath/dvbboxes/internal/schedule"
)

type programRequest struct {
	day     schedule.Day
	channel string
	at      time.Time
	sites   []string
}

// parseProgramRequest reads {day}, {channel}, ?at= and ?site=. It writes the
// error response itself and reports false on failure.
func (s *Server) parseProgramRequest(w http.ResponseWriter, r *http.Request) (programRequest, bool) {
	var req programRequest
	day, err := schedule.ParseDay(chi.URLParam(r, "day"))
	if err != nil {
		writeBadRequest(w, codeInvalidDay, err)
		return req, false
	}
	req.day = day

	channel := chi.URLParam(r, "channel")
	if s.deps.Channels != nil {
		if channel, err = s.deps.Channels.ResolveChannel(channel); err != nil {
			writeBadRequest(w, codeUnknownChannel, err)
			return req, false
		}
	}
	req.channel = channel

	if req.at, err = parseAt(r.URL.Query().Get("at"), s.opts.Location); err != nil {
		writeBadRequest(w, codeBadRequest, err)
		return req, false
	}
	req.sites = r.URL.Query()["site"]
	return req, true
}

// parseAt accepts unix seconds or RFC 3339. Empty means the day's anchor.
func parseAt(raw string, loc *time.Location) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return schedule.Time(f, loc), nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("at: expected unix seconds or RFC 3339, got %q", raw)
	}
	return t, nil
}

func (s *Server) writeQueryError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, program.ErrNoSchedule):
		writeNotFound(w, codeNoSchedule, err)
	case errors.Is(err, cluster.ErrUnknownSite):
		writeBadRequest(w, codeUnknownSite, err)
	default:
		s.logger.Error().Err(err).Msg("schedule query failed")
		writeError(w, http.StatusInternalServerError, codeInternal, nil)
	}
}

func (s *Server) handleProgram(w http.ResponseWriter, r *http.Request) {
	req, ok := s.parseProgramRequest(w, r)
	if !ok {
		return
	}
	sched, err := s.deps.Programs.Query(r.Context(), req.day, req.channel, req.at, req.sites...)
	if err != nil {
		s.writeQueryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sched)
}

type assetStarts struct {
	Asset   string    `json:"asset"`
	Day     string    `json:"day"`
	Channel string    `json:"channel"`
	Starts  []float64 `json:"starts"`
}

func (s *Server) handleProgramAsset(w http.ResponseWriter, r *http.Request) {
	req, ok := s.parseProgramRequest(w, r)
	if !ok {
		return
	}
	name := chi.URLParam(r, "name")
	starts, err := s.deps.Programs.StartTimesOf(r.Context(), name, req.day, req.channel, req.at, req.sites...)
	if err != nil {
		s.writeQueryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, assetStarts{
		Asset:   name,
		Day:     req.day.String(),
		Channel: req.channel,
		Starts:  starts,
	})
}
