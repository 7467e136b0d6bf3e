// Copyright (c) 2025 drowolath
// Licensed under the MIT License.
// See the LICENSE file in the repository root for details.

package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/drowolath/dvbboxes/internal/cluster"
	"github.com/drowolath/dvbboxes/internal/listing"
	"github.com/drowolath/dvbboxes/internal/media"
	"github.com/drowolath/dvbboxes/internal/replicate"
	"github.com/drowolath/dvbboxes/internal/schedule"
)

type listingRejection struct {
	Error      string   `json:"error"`
	Detail     string   `json:"detail"`
	Invalid    []string `json:"invalid,omitempty"`
	Unresolved []string `json:"unresolved,omitempty"`
}

type listingResult struct {
	Channel   string              `json:"channel,omitempty"`
	DryRun    bool                `json:"dry_run"`
	Documents []schedule.Document `json:"documents"`
	Report    replicate.Report    `json:"report,omitempty"`
	Failures  []replicate.Failure `json:"failures,omitempty"`
}

// handleListing compiles the request body as a listing and, unless
// dry_run is set, replicates it to ?site= (default all) for ?channel=.
func (s *Server) handleListing(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	dryRun, _ := strconv.ParseBool(q.Get("dry_run"))

	var channel string
	if !dryRun {
		raw := q.Get("channel")
		if raw == "" {
			writeBadRequest(w, codeUnknownChannel, errors.New("channel is required"))
			return
		}
		var err error
		channel = raw
		if s.deps.Channels != nil {
			if channel, err = s.deps.Channels.ResolveChannel(raw); err != nil {
				writeBadRequest(w, codeUnknownChannel, err)
				return
			}
		}
	}

	body := http.MaxBytesReader(w, r.Body, s.opts.MaxListingBytes)
	compiled, err := listing.Compile(r.Context(), body, s.deps.Media, listing.Options{
		Now:         s.opts.Now,
		Location:    s.opts.Location,
		Anchor:      s.opts.Anchor,
		Concurrency: s.opts.Concurrency,
	})
	if err != nil {
		s.writeListingError(w, err)
		return
	}
	docs, err := compiled.Documents()
	if err != nil {
		s.writeListingError(w, err)
		return
	}

	res := listingResult{Channel: channel, DryRun: dryRun, Documents: docs}
	if dryRun {
		writeJSON(w, http.StatusOK, res)
		return
	}

	report, err := s.deps.Replicator.Apply(r.Context(), docs, channel, q["site"]...)
	if err != nil {
		if errors.Is(err, cluster.ErrUnknownSite) {
			writeBadRequest(w, codeUnknownSite, err)
			return
		}
		writeBadRequest(w, codeBadRequest, err)
		return
	}
	res.Report = report
	res.Failures = report.Failures()
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) writeListingError(w http.ResponseWriter, err error) {
	var (
		lerr   *listing.ListingError
		dayErr *listing.DayLabelError
		tooBig *http.MaxBytesError
	)
	switch {
	case errors.Is(err, media.ErrUnavailable):
		writeServiceUnavailable(w, err)
	case errors.As(err, &lerr):
		writeJSON(w, http.StatusUnprocessableEntity, listingRejection{
			Error:      codeListingRejected,
			Detail:     lerr.Error(),
			Invalid:    lerr.Invalid,
			Unresolved: lerr.Unresolved,
		})
	case errors.As(err, &tooBig):
		writeError(w, http.StatusRequestEntityTooLarge, codeInvalidListing, err)
	case errors.As(err, &dayErr),
		errors.Is(err, listing.ErrNoDays),
		errors.Is(err, listing.ErrOrphanItem):
		writeBadRequest(w, codeInvalidListing, err)
	default:
		s.logger.Error().Err(err).Msg("listing compilation failed")
		writeError(w, http.StatusInternalServerError, codeInternal, nil)
	}
}
