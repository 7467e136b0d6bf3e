// SPDX-License-Identifier: MIT

// Package health reports whether the stores the service depends on are
// reachable.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/drowolath/dvbboxes/internal/cluster"
	"github.com/drowolath/dvbboxes/internal/store"
)

// Status represents the overall health/readiness status
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// CheckResult represents the result of a component health check
type CheckResult struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Response is the readiness report.
type Response struct {
	Status    Status                 `json:"status"`
	Version   string                 `json:"version,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
}

// Checker defines the interface for health checks
type Checker interface {
	Name() string
	Check(ctx context.Context) CheckResult
}

// Manager runs every registered checker.
type Manager struct {
	version  string
	timeout  time.Duration
	checkers []Checker
}

// NewManager creates a manager whose checks are bounded by timeout
// (default 3s).
func NewManager(version string, timeout time.Duration) *Manager {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Manager{version: version, timeout: timeout}
}

// RegisterChecker adds a health checker to the manager
func (m *Manager) RegisterChecker(checker Checker) {
	m.checkers = append(m.checkers, checker)
}

// Check runs all checkers concurrently. The result is unhealthy if any
// checker is, else degraded if any checker is.
func (m *Manager) Check(ctx context.Context) Response {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	resp := Response{
		Status:    StatusHealthy,
		Version:   m.version,
		Timestamp: time.Now(),
		Checks:    make(map[string]CheckResult, len(m.checkers)),
	}
	results := make([]CheckResult, len(m.checkers))
	var wg sync.WaitGroup
	for i, c := range m.checkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = c.Check(ctx)
		}()
	}
	wg.Wait()

	for i, c := range m.checkers {
		r := results[i]
		resp.Checks[c.Name()] = r
		switch {
		case r.Status == StatusUnhealthy:
			resp.Status = StatusUnhealthy
		case r.Status == StatusDegraded && resp.Status == StatusHealthy:
			resp.Status = StatusDegraded
		}
	}
	return resp
}

// ServeHTTP writes the report; 503 when unhealthy.
func (m *Manager) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	resp := m.Check(r.Context())
	code := http.StatusOK
	if resp.Status == StatusUnhealthy {
		code = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(resp)
}

// StoreChecker pings one store.
type StoreChecker struct {
	Label string
	Store store.Store
}

func (c StoreChecker) Name() string { return c.Label }

func (c StoreChecker) Check(ctx context.Context) CheckResult {
	if err := c.Store.Ping(ctx); err != nil {
		return CheckResult{Status: StatusUnhealthy, Error: err.Error()}
	}
	return CheckResult{Status: StatusHealthy}
}

// SiteChecker pings the read endpoint of every replica of a site. A site
// with some replicas down is degraded; with all of them down, unhealthy.
type SiteChecker struct {
	Site cluster.Site
}

func (c SiteChecker) Name() string { return "site:" + c.Site.Name }

func (c SiteChecker) Check(ctx context.Context) CheckResult {
	var (
		mu   sync.Mutex
		down []string
		wg   sync.WaitGroup
	)
	for _, rep := range c.Site.Replicas {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := rep.Programs.Ping(ctx); err != nil {
				mu.Lock()
				down = append(down, rep.Name)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	sort.Strings(down)

	switch {
	case len(down) == 0:
		return CheckResult{Status: StatusHealthy}
	case len(down) == len(c.Site.Replicas):
		return CheckResult{Status: StatusUnhealthy, Error: "no replica reachable"}
	default:
		return CheckResult{Status: StatusDegraded, Message: "unreachable: " + strings.Join(down, ", ")}
	}
}

// ForTopology registers the default store and one check per site.
func ForTopology(m *Manager, topo *cluster.Topology) *Manager {
	if def := topo.Default(); def != nil {
		m.RegisterChecker(StoreChecker{Label: "default_store", Store: def})
	}
	for _, s := range topo.Sites() {
		m.RegisterChecker(SiteChecker{Site: s})
	}
	return m
}
