// Copyright (c) 2025 drowolath
// Licensed under the MIT License.
// See the LICENSE file in the repository root for details.

package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/drowolath/dvbboxes/internal/cluster"
	"github.com/drowolath/dvbboxes/internal/media"
)

func (s *Server) handleMediaSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	matches, err := s.deps.Media.Search(r.Context(), q.Get("q"), q["site"]...)
	if err != nil {
		if errors.Is(err, cluster.ErrUnknownSite) {
			writeBadRequest(w, codeUnknownSite, err)
			return
		}
		s.logger.Error().Err(err).Msg("media search failed")
		writeError(w, http.StatusInternalServerError, codeInternal, nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"matches": matches})
}

// resolve writes the error response itself and reports false on failure.
func (s *Server) resolve(w http.ResponseWriter, r *http.Request) (media.Asset, bool) {
	asset, err := s.deps.Media.Resolve(r.Context(), chi.URLParam(r, "name"))
	switch {
	case err == nil:
		return asset, true
	case errors.Is(err, media.ErrAssetNotFound):
		writeNotFound(w, codeAssetNotFound, err)
	case errors.Is(err, media.ErrUnavailable):
		writeServiceUnavailable(w, err)
	case errors.Is(err, media.ErrEmptyName):
		writeBadRequest(w, codeBadRequest, err)
	default:
		s.logger.Error().Err(err).Msg("media resolution failed")
		writeError(w, http.StatusInternalServerError, codeInternal, nil)
	}
	return media.Asset{}, false
}

func (s *Server) handleMediaInfo(w http.ResponseWriter, r *http.Request) {
	asset, ok := s.resolve(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, asset)
}

type mediaSchedule struct {
	media.Asset
	Schedule map[string][]float64 `json:"schedule"` // channel -> start times
}

func (s *Server) handleMediaSchedule(w http.ResponseWriter, r *http.Request) {
	asset, ok := s.resolve(w, r)
	if !ok {
		return
	}
	sched, err := s.deps.Media.Schedule(r.Context(), asset)
	if err != nil {
		s.logger.Error().Err(err).Msg("media schedule scan failed")
		writeError(w, http.StatusInternalServerError, codeInternal, nil)
		return
	}
	writeJSON(w, http.StatusOK, mediaSchedule{Asset: asset, Schedule: sched})
}
