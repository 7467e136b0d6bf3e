// Copyright (c) 2025 drowolath
// Licensed under the MIT License.
// See the LICENSE file in the repository root for details.

package replicate

import "sort"

// Outcome is the result of rewriting one day on one replica.
type Outcome struct {
	Deleted  bool   `json:"deleted"`  // the previous key was dropped
	Inserted bool   `json:"inserted"` // every item was written
	Removed  int64  `json:"removed"`
	Items    int    `json:"items"`
	Err      string `json:"error,omitempty"`
}

// OK reports whether the replica now holds the full day.
func (o Outcome) OK() bool { return o.Err == "" && o.Deleted && o.Inserted }

// Report maps site -> day (DDMMYYYY) -> replica name -> outcome.
type Report map[string]map[string]map[string]Outcome

// Failure locates one replica write that did not fully apply.
type Failure struct {
	Site    string `json:"site"`
	Day     string `json:"day"`
	Replica string `json:"replica"`
	Err     string `json:"error"`
}

func (r Report) set(site, day, replica string, o Outcome) {
	days, ok := r[site]
	if !ok {
		days = make(map[string]map[string]Outcome)
		r[site] = days
	}
	replicas, ok := days[day]
	if !ok {
		replicas = make(map[string]Outcome)
		days[day] = replicas
	}
	replicas[replica] = o
}

// Failures lists every failed write ordered by site, day and replica.
func (r Report) Failures() []Failure {
	var out []Failure
	for site, days := range r {
		for day, replicas := range days {
			for name, o := range replicas {
				if !o.OK() {
					out = append(out, Failure{Site: site, Day: day, Replica: name, Err: o.Err})
				}
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Site != b.Site {
			return a.Site < b.Site
		}
		if a.Day != b.Day {
			return a.Day < b.Day
		}
		return a.Replica < b.Replica
	})
	return out
}
