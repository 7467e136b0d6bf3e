// Copyright (c) 2025 drowolath
// Licensed under the MIT License.
// See the LICENSE file in the repository root for details.

package listing

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNoDays is returned for a source without any [day] section.
	ErrNoDays = errors.New("listing declares no days")
	// ErrOrphanItem is returned for an asset line preceding every day marker.
	ErrOrphanItem = errors.New("asset listed before any day marker")
)

// DayLabelError reports a day marker that does not name a calendar day.
type DayLabelError struct {
	Label string
	Line  int // 1-based, 0 when unknown
	Err   error
}

func (e *DayLabelError) Error() string {
	msg := fmt.Sprintf("wrong format for day %q", e.Label)
	if e.Line > 0 {
		msg = fmt.Sprintf("line %d: %s", e.Line, msg)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DayLabelError) Unwrap() error { return e.Err }

// ListingError rejects a whole listing because some of its asset names are
// malformed or cannot be resolved.
type ListingError struct {
	Invalid    []string // names that are not [0-9a-z_]+
	Unresolved []string // names no replica knows a duration for
	Errs       []error  // underlying resolution errors
}

func (e *ListingError) Error() string {
	var parts []string
	if len(e.Invalid) > 0 {
		parts = append(parts, "invalid asset names: "+strings.Join(e.Invalid, ", "))
	}
	if len(e.Unresolved) > 0 {
		parts = append(parts, "unresolvable assets: "+strings.Join(e.Unresolved, ", "))
	}
	return "listing rejected: " + strings.Join(parts, "; ")
}

func (e *ListingError) Unwrap() []error { return e.Errs }
