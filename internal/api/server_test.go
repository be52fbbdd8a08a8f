package api

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/require"

	"github.com/csouto/channel-scout/internal/crawl"
	"github.com/csouto/channel-scout/internal/scout"
)

type fakeController struct {
	stops    atomic.Int64
	snapshot crawl.Snapshot
}

func (f *fakeController) Status() crawl.Snapshot { return f.snapshot }
func (f *fakeController) Stop()                  { f.stops.Add(1) }

func newTestServer(t *testing.T, ctrl Controller) *httptest.Server {
	t.Helper()
	s := NewServer("127.0.0.1:0", ctrl, nil)
	server := httptest.NewServer(s.http.Handler)
	t.Cleanup(server.Close)
	return server
}

func TestHealthz(t *testing.T) {
	t.Parallel()
	server := newTestServer(t, &fakeController{})

	resp, err := http.Get(server.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestStatus(t *testing.T) {
	t.Parallel()
	ctrl := &fakeController{snapshot: crawl.Snapshot{
		State:       scout.StateRunning,
		SessionID:   "abc",
		Fraction:    0.25,
		Channels:    12,
		SearchCalls: 3,
		QuotaUsed:   312,
	}}
	server := newTestServer(t, ctrl)

	resp, err := http.Get(server.URL + "/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var snapshot crawl.Snapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snapshot))
	require.Equal(t, ctrl.snapshot, snapshot)
}

func TestStop(t *testing.T) {
	t.Parallel()
	ctrl := &fakeController{}
	server := newTestServer(t, ctrl)

	resp, err := http.Post(server.URL+"/stop", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	require.Equal(t, int64(1), ctrl.stops.Load())

	// Stop is POST-only.
	getResp, err := http.Get(server.URL + "/stop")
	require.NoError(t, err)
	defer getResp.Body.Close()
	require.Equal(t, http.StatusMethodNotAllowed, getResp.StatusCode)
}
