// SPDX-License-Identifier: MIT

package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drowolath/dvbboxes/internal/testutil"
)

func TestManager_SiteStatus(t *testing.T) {
	c := testutil.NewCluster(t,
		testutil.SiteLayout{Name: "tana", Replicas: []string{"box1", "box2"}},
		testutil.SiteLayout{Name: "majunga", Replicas: []string{"box3"}},
	)
	m := ForTopology(NewManager("test", 0), c.Topology)

	resp := m.Check(context.Background())
	assert.Equal(t, StatusHealthy, resp.Status)
	assert.Len(t, resp.Checks, 3)

	c.Disconnect("tana/box2")
	resp = m.Check(context.Background())
	assert.Equal(t, StatusDegraded, resp.Status)
	assert.Equal(t, "unreachable: box2", resp.Checks["site:tana"].Message)

	c.Disconnect("majunga/box3")
	resp = m.Check(context.Background())
	assert.Equal(t, StatusUnhealthy, resp.Status)
	assert.Equal(t, StatusUnhealthy, resp.Checks["site:majunga"].Status)

	w := httptest.NewRecorder()
	m.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"unhealthy"`)
}

func TestManager_NoCheckersIsHealthy(t *testing.T) {
	resp := NewManager("v", 0).Check(context.Background())
	assert.Equal(t, StatusHealthy, resp.Status)
	assert.Equal(t, "v", resp.Version)
}
