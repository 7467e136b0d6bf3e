// SPDX-License-Identifier: MIT

package api

import (
	"encoding/json"
	"net/http"
)

// Error codes returned in the "error" field.
const (
	codeBadRequest      = "bad_request"
	codeInvalidDay      = "invalid_day"
	codeUnknownChannel  = "unknown_channel"
	codeUnknownSite     = "unknown_site"
	codeNoSchedule      = "no_schedule"
	codeAssetNotFound   = "asset_not_found"
	codeInvalidListing  = "invalid_listing"
	codeListingRejected = "listing_rejected"
	codeUnavailable     = "unavailable"
	codeInternal        = "internal_error"
)

// writeJSON writes a JSON response with the given status code
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes {"error": code, "detail": err}.
func writeError(w http.ResponseWriter, status int, code string, err error) {
	body := map[string]string{"error": code}
	if err != nil {
		body["detail"] = err.Error()
	}
	writeJSON(w, status, body)
}

// writeBadRequest writes a 400 with the given code.
func writeBadRequest(w http.ResponseWriter, code string, err error) {
	writeError(w, http.StatusBadRequest, code, err)
}

// writeNotFound writes a 404 Not Found response
func writeNotFound(w http.ResponseWriter, code string, err error) {
	writeError(w, http.StatusNotFound, code, err)
}

// writeServiceUnavailable writes a 503 Service Unavailable response
func writeServiceUnavailable(w http.ResponseWriter, err error) {
	writeError(w, http.StatusServiceUnavailable, codeUnavailable, err)
}
