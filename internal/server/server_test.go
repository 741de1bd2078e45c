package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/weft/internal/build"
	"github.com/conneroisu/weft/internal/config"
	"github.com/conneroisu/weft/internal/graph"
	"github.com/conneroisu/weft/internal/websocket"
)

func testConfig(hotReload bool) *config.Config {
	return &config.Config{
		Paths:       config.DefaultPaths(),
		Server:      config.ServerConfig{Host: "127.0.0.1", Port: 0},
		Development: config.DevelopmentConfig{HotReload: hotReload},
	}
}

func newTestServer(t *testing.T, hotReload bool, files map[string]string) (*Server, *graph.Report) {
	t.Helper()
	fs := afero.NewMemMapFs()
	for name, body := range files {
		require.NoError(t, afero.WriteFile(fs, name, []byte(body), 0o644))
	}
	hub := websocket.NewHub(nil, nil)
	t.Cleanup(func() { hub.Shutdown(context.Background()) })
	report := graph.NewReport()
	metrics := build.NewMetrics()
	metrics.Record("js", time.Millisecond, nil)
	return New(testConfig(hotReload), Options{FS: fs, Hub: hub, Report: report, Metrics: metrics}), report
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestInjectScript(t *testing.T) {
	testCases := []struct {
		name     string
		doc      string
		expected string
	}{
		{
			name:     "before closing body",
			doc:      "<html><body><p>hi</p></body></html>",
			expected: "<html><body><p>hi</p>SNIP</body></html>",
		},
		{
			name:     "last body tag wins",
			doc:      "<body><script>var s = '</body>';</script></body>",
			expected: "<body><script>var s = '</body>';</script>SNIP</body>",
		},
		{
			name:     "upper case tag",
			doc:      "<HTML><BODY>x</BODY></HTML>",
			expected: "<HTML><BODY>xSNIP</BODY></HTML>",
		},
		{
			name:     "no body appends",
			doc:      "<p>fragment</p>",
			expected: "<p>fragment</p>SNIP",
		},
		{
			name:     "empty document",
			doc:      "",
			expected: "SNIP",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, string(InjectScript([]byte(tc.doc), "SNIP")))
		})
	}
}

func TestStaticServesHTMLWithReloadScript(t *testing.T) {
	srv, _ := newTestServer(t, true, map[string]string{
		"www/index.html":       "<html><body><h1>Home</h1></body></html>",
		"www/about/index.html": "<html><body>About</body></html>",
	})
	h := srv.Handler()

	rec := get(t, h, "/")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "<h1>Home</h1>")
	assert.Contains(t, body, "data-weft-reload")
	assert.Contains(t, body, WebSocketPath)
	assert.True(t, strings.HasSuffix(body, "</body></html>"))
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")

	rec = get(t, h, "/about/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "About")
}

func TestStaticServesAssetsUntouched(t *testing.T) {
	srv, _ := newTestServer(t, true, map[string]string{
		"www/assets/css/main.css": "body{margin:0}",
	})

	rec := get(t, srv.Handler(), "/assets/css/main.css")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "body{margin:0}", rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/css")
}

func TestStaticWithoutHotReload(t *testing.T) {
	srv, _ := newTestServer(t, false, map[string]string{
		"www/index.html": "<html><body>plain</body></html>",
	})
	h := srv.Handler()

	rec := get(t, h, "/index.html")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "<html><body>plain</body></html>", rec.Body.String())

	rec = get(t, h, WebSocketPath)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStaticRejections(t *testing.T) {
	srv, _ := newTestServer(t, true, map[string]string{
		"www/.stage/vendor/grid.css": ".row{}",
		"www/index.html":             "<body></body>",
		"src/secret.txt":             "nope",
	})
	h := srv.Handler()

	testCases := []struct {
		name   string
		target string
		code   int
	}{
		{"staging dir", "/.stage/vendor/grid.css", http.StatusNotFound},
		{"missing file", "/missing.html", http.StatusNotFound},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.code, get(t, h, tc.target).Code)
		})
	}

	rec := get(t, h, "/../src/secret.txt")
	assert.NotEqual(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "nope")

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/index.html", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestStatusPage(t *testing.T) {
	srv, report := newTestServer(t, true, nil)
	hooks := report.Hooks()
	hooks.OnSuccess(context.Background(), graph.Event{Node: "js", Status: graph.StatusCompleted, Duration: 12 * time.Millisecond})
	hooks.OnFailure(context.Background(), graph.Event{Node: "styles", Status: graph.StatusFailed, Err: errors.New(`main.css: unexpected "<"`)})

	rec := get(t, srv.Handler(), StatusPath)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "<td>js</td>")
	assert.Contains(t, body, `class="completed"`)
	assert.Contains(t, body, `class="failed"`)
	assert.Contains(t, body, "&lt;")
	assert.NotContains(t, body, `"<"`)
}

func TestHealth(t *testing.T) {
	srv, report := newTestServer(t, true, nil)
	h := srv.Handler()

	var health map[string]interface{}
	rec := get(t, h, HealthPath)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "healthy", health["status"])
	assert.Equal(t, []interface{}{}, health["failed_tasks"])
	runs := health["runs"].(map[string]interface{})
	assert.Equal(t, float64(1), runs["total_runs"])
	assert.Equal(t, float64(100), health["success_rate"])

	report.Hooks().OnFailure(context.Background(), graph.Event{Node: "js", Status: graph.StatusFailed})
	rec = get(t, h, HealthPath)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "degraded", health["status"])
	assert.Equal(t, []interface{}{"js"}, health["failed_tasks"])
}

func TestServeShutsDownOnCancel(t *testing.T) {
	srv, _ := newTestServer(t, true, map[string]string{"www/index.html": "<body>up</body>"})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Contains(t, string(body), "up")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
