package probe

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ohadgu/api-agent/internal/task"
)

func TestBuildURL(t *testing.T) {
	tests := []struct {
		domain string
		port   int
		path   string
		want   string
	}{
		{"example.com", 80, "/", "http://example.com/"},
		{"example.com", 443, "/login", "https://example.com/login"},
		{"example.com", 8080, "/api", "http://example.com:8080/api"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, BuildURL(tt.domain, tt.port, tt.path))
	}
}

func TestDNSQueryLocalhost(t *testing.T) {
	res, err := DNSQuery(context.Background(), "localhost")
	require.NoError(t, err)
	assert.Equal(t, "localhost", res.Domain)
	assert.NotEmpty(t, res.IPs)
	assert.Equal(t, len(res.IPs), res.IPCount)
}

func TestDNSQueryInvalidDomain(t *testing.T) {
	_, err := DNSQuery(context.Background(), "definitely-not-a-real-domain.invalid")
	assert.Error(t, err)
}

func TestPortScanFindsOpenPort(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	port := ln.Addr().(*net.TCPAddr).Port

	open, err := PortScan(context.Background(), "127.0.0.1", port, port, 500*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, []int{port}, open)
}

func TestPortScanInvalidRange(t *testing.T) {
	_, err := PortScan(context.Background(), "127.0.0.1", 100, 50, time.Second)
	assert.Error(t, err)

	_, err = PortScan(context.Background(), "127.0.0.1", 0, 10, time.Second)
	assert.Error(t, err)
}

func TestPortScanCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := PortScan(ctx, "127.0.0.1", 1, 100, time.Second)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestHTTPRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/hello", r.URL.Path)
		assert.Equal(t, "world", r.URL.Query().Get("q"))
		w.Write([]byte("pong"))
	}))
	defer srv.Close()

	host, portStr, err := net.SplitHostPort(strings.TrimPrefix(srv.URL, "http://"))
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	body, err := HTTPRequest(context.Background(), HTTPParams{
		Method:  "GET",
		Domain:  host,
		Port:    port,
		Path:    "/hello",
		Params:  map[string]string{"q": "world"},
		Timeout: 5,
	})
	require.NoError(t, err)
	assert.Equal(t, "pong", body)
}

func TestHTTPRequestErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	host, portStr, _ := net.SplitHostPort(strings.TrimPrefix(srv.URL, "http://"))
	port, _ := strconv.Atoi(portStr)

	_, err := HTTPRequest(context.Background(), HTTPParams{
		Method: "GET", Domain: host, Port: port, Path: "/", Timeout: 5,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP error 500")
}

func TestProcessTreeSelf(t *testing.T) {
	tree, err := ProcessTree(context.Background(), int32(os.Getpid()))
	require.NoError(t, err)
	require.NotEmpty(t, tree)

	// Root-first ordering: the last entry is this test process
	assert.Equal(t, int32(os.Getpid()), tree[len(tree)-1].PID)
}

func TestProcessTreeInvalidPID(t *testing.T) {
	_, err := ProcessTree(context.Background(), -1)
	assert.Error(t, err)
}

func TestRegisterAll(t *testing.T) {
	reg := task.NewRegistry()
	require.NoError(t, RegisterAll(reg))

	assert.ElementsMatch(t, []string{
		OpDNSQuery, OpPortScan, OpHTTPRequest, OpProcessTree, OpRegistryAction,
	}, reg.Names())

	// Registering twice must fail on the duplicate names
	assert.Error(t, RegisterAll(reg))
}

func TestDNSHandlerArgValidation(t *testing.T) {
	reg := task.NewRegistry()
	require.NoError(t, RegisterAll(reg))

	_, err := reg.Execute(context.Background(), OpDNSQuery, []byte(`[]`), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exactly one domain")

	_, err = reg.Execute(context.Background(), OpDNSQuery, []byte(`["a","b"]`), nil)
	assert.Error(t, err)
}
