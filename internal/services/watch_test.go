package services

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/weft/internal/build"
	"github.com/conneroisu/weft/internal/websocket"
)

type messages struct {
	mu  sync.Mutex
	got []websocket.UpdateMessage
}

func (m *messages) record(msg websocket.UpdateMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.got = append(m.got, msg)
}

func (m *messages) all() []websocket.UpdateMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]websocket.UpdateMessage(nil), m.got...)
}

func TestTriggerMessages(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFiles(t, fs, sampleFiles(t))

	svc, err := NewWatchService(testConfig(), fs, nil)
	require.NoError(t, err)
	ctx := context.Background()

	msg := svc.Trigger(ctx, build.TaskJS)
	assert.Equal(t, websocket.MessageFullReload, msg.Type)
	assert.Equal(t, build.TaskJS, msg.Target)

	msg = svc.Trigger(ctx, build.TaskCSS)
	assert.Equal(t, websocket.MessageCSSUpdate, msg.Type)
	assert.Equal(t, "/assets/css/", msg.Target)

	require.NoError(t, afero.WriteFile(fs, "src/styles/main.css", []byte("@import \"./missing.css\";\n"), 0o644))
	msg = svc.Trigger(ctx, build.TaskCSS)
	assert.Equal(t, websocket.MessageBuildError, msg.Type)
	assert.Equal(t, build.TaskCSS, msg.Target)
	assert.NotEmpty(t, msg.Content)
}

func TestTriggerWithoutCSSInjection(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFiles(t, fs, sampleFiles(t))
	cfg := testConfig()
	cfg.Development.CSSInjection = false

	svc, err := NewWatchService(cfg, fs, nil)
	require.NoError(t, err)

	msg := svc.Trigger(context.Background(), build.TaskCSS)
	assert.Equal(t, websocket.MessageFullReload, msg.Type)
}

func TestBindings(t *testing.T) {
	cfg := testConfig()
	cfg.Paths.FontWatch = ""

	svc, err := NewWatchService(cfg, afero.NewMemMapFs(), nil)
	require.NoError(t, err)

	var tasks []string
	for _, b := range svc.Bindings() {
		tasks = append(tasks, b.Task)
	}
	assert.Equal(t, []string{build.TaskCSS, build.TaskJS, build.TaskHTML, build.TaskHTML, build.TaskImage}, tasks)
	assert.Contains(t, svc.Bindings(), Binding{Pattern: cfg.Paths.MarkupData, Task: build.TaskHTML})
}

// TestStartWatchRerunsOnlyTheChangedTask drives the real watcher: one edited
// script must cause one js run and one notification, and nothing else.
func TestStartWatchRerunsOnlyTheChangedTask(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	fs := afero.NewOsFs()
	writeFiles(t, fs, sampleFiles(t))

	svc, err := NewWatchService(testConfig(), fs, nil)
	require.NoError(t, err)
	report := svc.Runner().Report()

	var got messages
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- svc.StartWatch(ctx, WatchOptions{OnNotify: got.record})
	}()
	defer func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(10 * time.Second):
			t.Error("watch did not stop")
		}
	}()

	// The initial build runs every task once before anything is watched.
	require.Eventually(t, func() bool {
		return report.Status(build.TaskBuild) == "completed"
	}, 10*time.Second, 20*time.Millisecond)
	// Give the watcher time to register its directories.
	time.Sleep(300 * time.Millisecond)

	baseline := map[string]int{}
	for _, name := range []string{build.TaskJS, build.TaskStyles, build.TaskHTML, build.TaskImage} {
		baseline[name] = report.Runs(name)
	}

	script := filepath.Join("src", "scripts", "app.js")
	require.NoError(t, os.WriteFile(script, []byte("console.log(2)\n"), 0o644))

	require.Eventually(t, func() bool {
		return report.Runs(build.TaskJS) == baseline[build.TaskJS]+1
	}, 5*time.Second, 20*time.Millisecond)
	time.Sleep(500 * time.Millisecond)

	assert.Equal(t, baseline[build.TaskJS]+1, report.Runs(build.TaskJS))
	assert.Equal(t, baseline[build.TaskStyles], report.Runs(build.TaskStyles))
	assert.Equal(t, baseline[build.TaskHTML], report.Runs(build.TaskHTML))
	assert.Equal(t, baseline[build.TaskImage], report.Runs(build.TaskImage))

	msgs := got.all()
	require.Len(t, msgs, 1)
	assert.Equal(t, websocket.MessageFullReload, msgs[0].Type)
	assert.Equal(t, build.TaskJS, msgs[0].Target)

	out, err := os.ReadFile(filepath.Join("www", "assets", "js", "app.js"))
	require.NoError(t, err)
	assert.Contains(t, string(out), "console.log(2)")
}
