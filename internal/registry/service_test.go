package registry

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var baseTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// fakeClock is a settable wall clock
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: baseTime}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newService(t *testing.T) (*Service, *fakeClock) {
	clock := newFakeClock()
	return NewService(WithClock(clock.Now)), clock
}

func TestCreate(t *testing.T) {
	svc, _ := newService(t)

	info, err := svc.Create("/landing", "<h1>hi</h1>", 300)
	require.NoError(t, err)
	assert.Len(t, info.ServerID, 8)
	assert.Equal(t, "/landing", info.PageURI)
	assert.Equal(t, int64(300), info.TimeRemaining)
	assert.Equal(t, fmt.Sprintf("/server/%s/landing", info.ServerID), info.AccessPath)
}

func TestCreateTTLBounds(t *testing.T) {
	svc, _ := newService(t)

	_, err := svc.Create("/p", "x", MinTTLSeconds-1)
	assert.Error(t, err)

	_, err = svc.Create("/p", "x", MaxTTLSeconds+1)
	assert.Error(t, err)

	_, err = svc.Create("/p", "x", MinTTLSeconds)
	assert.NoError(t, err)

	_, err = svc.Create("/p", "x", MaxTTLSeconds)
	assert.NoError(t, err)
}

func TestCreateEmptyURI(t *testing.T) {
	svc, _ := newService(t)
	_, err := svc.Create("", "x", 300)
	assert.Error(t, err)
}

func TestHandleRequestHit(t *testing.T) {
	svc, _ := newService(t)
	info, err := svc.Create("/landing", "payload", 300)
	require.NoError(t, err)

	status, body, err := svc.HandleRequest(info.ServerID, "/landing", "10.0.0.1", "GET", "curl/8", nil)
	require.NoError(t, err)
	assert.Equal(t, 200, status)
	assert.Equal(t, "payload", body)
}

func TestHandleRequestMissLogsAnyway(t *testing.T) {
	svc, _ := newService(t)
	info, err := svc.Create("/landing", "payload", 300)
	require.NoError(t, err)

	status, body, err := svc.HandleRequest(info.ServerID, "/other", "10.0.0.1", "GET", "curl/8", nil)
	require.NoError(t, err)
	assert.Equal(t, 404, status)
	assert.Equal(t, "Page not found. Available: /landing", body)

	// The miss is still in the access log
	report, err := svc.Logs(info.ServerID)
	require.NoError(t, err)
	assert.Equal(t, 1, report.TotalRequests)
	assert.Equal(t, "/other", report.TrackingLogs[0].Path)
}

func TestHandleRequestUnknownID(t *testing.T) {
	svc, _ := newService(t)
	_, _, err := svc.HandleRequest("deadbeef", "/x", "10.0.0.1", "GET", "", nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestExpiryAndLazyEviction(t *testing.T) {
	svc, clock := newService(t)
	info, err := svc.Create("/landing", "payload", 60)
	require.NoError(t, err)

	clock.Advance(61 * time.Second)

	_, err = svc.Lookup(info.ServerID)
	assert.ErrorIs(t, err, ErrNotFound)

	// Evicted together with its log: a second create may even reuse the id
	_, _, err = svc.HandleRequest(info.ServerID, "/landing", "10.0.0.1", "GET", "", nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestExpiryBoundaryIsInclusive(t *testing.T) {
	svc, clock := newService(t)
	info, err := svc.Create("/p", "x", 60)
	require.NoError(t, err)

	// Exactly at expires_at the endpoint is still alive
	clock.Advance(60 * time.Second)
	_, err = svc.Lookup(info.ServerID)
	assert.NoError(t, err)

	clock.Advance(time.Nanosecond)
	_, err = svc.Lookup(info.ServerID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLogsReport(t *testing.T) {
	svc, _ := newService(t)
	info, err := svc.Create("/landing", "payload", 300)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, _, err := svc.HandleRequest(info.ServerID, "/landing",
			fmt.Sprintf("10.0.0.%d", i%2), "GET", "curl/8", map[string]string{"n": fmt.Sprint(i)})
		require.NoError(t, err)
	}

	report, err := svc.Logs(info.ServerID)
	require.NoError(t, err)
	assert.Equal(t, 3, report.TotalRequests)
	assert.Equal(t, 2, report.UniqueClients)
	require.NotNil(t, report.LatestRequest)
	assert.Equal(t, map[string]string{"n": "2"}, report.LatestRequest.QueryParams)
}

func TestSweepExpired(t *testing.T) {
	svc, clock := newService(t)

	_, err := svc.Create("/short", "x", 60)
	require.NoError(t, err)
	long, err := svc.Create("/long", "x", 3600)
	require.NoError(t, err)

	clock.Advance(2 * time.Minute)

	assert.Equal(t, 1, svc.SweepExpired())
	assert.Equal(t, 0, svc.SweepExpired())

	_, err = svc.Lookup(long.ServerID)
	assert.NoError(t, err)
}

func TestListAllSkipsExpired(t *testing.T) {
	svc, clock := newService(t)

	short, err := svc.Create("/short", "x", 60)
	require.NoError(t, err)
	long, err := svc.Create("/long", "x", 3600)
	require.NoError(t, err)

	_, _, err = svc.HandleRequest(long.ServerID, "/long", "10.0.0.1", "GET", "", nil)
	require.NoError(t, err)

	clock.Advance(2 * time.Minute)

	out := svc.ListAll()
	assert.Equal(t, 1, out.Summary.ActiveServers)
	assert.Equal(t, 1, out.Summary.TotalRequests)
	assert.Equal(t, 1, out.Summary.UniqueClients)
	assert.Contains(t, out.Servers, long.ServerID)
	assert.NotContains(t, out.Servers, short.ServerID)
}

func TestListAllRecentLogsWindow(t *testing.T) {
	svc, _ := newService(t)
	info, err := svc.Create("/p", "x", 300)
	require.NoError(t, err)

	for i := 0; i < 8; i++ {
		_, _, err := svc.HandleRequest(info.ServerID, "/p", "10.0.0.1", "GET", "", nil)
		require.NoError(t, err)
	}

	out := svc.ListAll()
	summary := out.Servers[info.ServerID]
	assert.Equal(t, 8, summary.RequestCount)
	assert.Len(t, summary.RecentLogs, 5)
}

func TestConcurrentRequestsAllLogged(t *testing.T) {
	svc, _ := newService(t)
	info, err := svc.Create("/landing", "payload", 300)
	require.NoError(t, err)

	const n = 100
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, err := svc.HandleRequest(info.ServerID, "/landing",
				fmt.Sprintf("10.0.%d.%d", i/256, i%256), "GET", "", nil)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	report, err := svc.Logs(info.ServerID)
	require.NoError(t, err)
	assert.Equal(t, n, report.TotalRequests)
	assert.Equal(t, n, report.UniqueClients)
}
