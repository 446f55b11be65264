package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/GriffinCanCode/observable/internal/infrastructure/config"
	"github.com/GriffinCanCode/observable/internal/infrastructure/logging"
	"github.com/GriffinCanCode/observable/internal/infrastructure/tracing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const objectUUID = "7f3c6d1e-2b4a-4c8e-9f10-3a5b6c7d8e9f"

func testConfig(t *testing.T, backend string) *config.Config {
	t.Helper()

	cfg := config.Default()
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.MaxConnections = 8
	cfg.RateLimit.Enabled = false
	cfg.Archive.Backend = backend
	cfg.Archive.Path = t.TempDir()
	if backend == "sqlite" {
		cfg.Archive.Path = filepath.Join(cfg.Archive.Path, "objects.db")
	}
	return cfg
}

// start serves srv on a random port and returns its base URL
func start(t *testing.T, srv *Server) (string, <-chan error) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	served := make(chan error, 1)
	go func() { served <- srv.Serve(ln) }()

	return "http://" + ln.Addr().String(), served
}

func do(t *testing.T, method, target, body string) (*http.Response, map[string]any) {
	t.Helper()

	req, err := http.NewRequest(method, target, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(tracing.TraceHeader, "trace-server-test")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp, out
}

func TestServerLifecycle(t *testing.T) {
	for _, backend := range []string{"file", "sqlite"} {
		t.Run(backend, func(t *testing.T) {
			srv, err := NewServer(testConfig(t, backend), logging.NewNop())
			require.NoError(t, err)

			base, served := start(t, srv)

			resp, body := do(t, http.MethodGet, base+"/health", "")
			assert.Equal(t, http.StatusOK, resp.StatusCode)
			assert.Equal(t, "healthy", body["status"])
			assert.Equal(t, "trace-server-test", resp.Header.Get(tracing.TraceHeader))

			resp, body = do(t, http.MethodPost, base+"/objects",
				`{"uuid":"`+objectUUID+`","properties":{"name":"sensor","reading":1}}`)
			require.Equal(t, http.StatusCreated, resp.StatusCode, body)
			assert.Equal(t, objectUUID, body["uuid"])
			assert.Equal(t, true, body["archived"])

			// Property changes are mirrored to the object's topics
			resp, _ = do(t, http.MethodPut, base+"/objects/"+objectUUID+"/properties/reading", `{"value":2}`)
			require.Equal(t, http.StatusOK, resp.StatusCode)

			name := url.PathEscape("objects/" + objectUUID + "/reading")
			resp, body = do(t, http.MethodGet, base+"/topics/"+name, "")
			require.Equal(t, http.StatusOK, resp.StatusCode, body)
			assert.EqualValues(t, 1, body["messages"])

			resp, body = do(t, http.MethodGet, base+"/archives", "")
			require.Equal(t, http.StatusOK, resp.StatusCode)
			assert.Len(t, body["archives"], 1)

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			require.NoError(t, srv.Shutdown(ctx))
			require.NoError(t, <-served)

			// Idempotent
			assert.NoError(t, srv.Shutdown(ctx))
		})
	}
}

func TestServerArchiveSurvivesRestart(t *testing.T) {
	cfg := testConfig(t, "sqlite")
	ctx := context.Background()

	first, err := NewServer(cfg, logging.NewNop())
	require.NoError(t, err)
	base, served := start(t, first)

	resp, _ := do(t, http.MethodPost, base+"/objects", `{"uuid":"`+objectUUID+`","properties":{"level":3}}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp, _ = do(t, http.MethodPut, base+"/objects/"+objectUUID+"/properties/level", `{"value":4}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, first.Shutdown(ctx))
	require.NoError(t, <-served)

	second, err := NewServer(cfg, logging.NewNop())
	require.NoError(t, err)
	base, served = start(t, second)

	resp, body := do(t, http.MethodPost, base+"/objects/"+objectUUID+"/restore", "")
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.EqualValues(t, 4, body["properties"].(map[string]any)["level"])

	require.NoError(t, second.Shutdown(ctx))
	require.NoError(t, <-served)
}

func TestNewServerRejectsBadArchive(t *testing.T) {
	cfg := testConfig(t, "file")
	cfg.Archive.Codec = "xml"

	_, err := NewServer(cfg, logging.NewNop())
	assert.Error(t, err)
}

func TestRouterServesMetrics(t *testing.T) {
	srv, err := NewServer(testConfig(t, "file"), logging.NewNop())
	require.NoError(t, err)
	base, served := start(t, srv)
	t.Cleanup(func() {
		_ = srv.Shutdown(context.Background())
		<-served
	})

	resp, err := http.Get(base + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/plain")
	assert.NotNil(t, srv.Router())
}
