package services

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/weft/internal/build"
	"github.com/conneroisu/weft/internal/config"
	"github.com/conneroisu/weft/internal/errors"
)

func testConfig() *config.Config {
	return &config.Config{
		Paths:  config.DefaultPaths(),
		Server: config.ServerConfig{Host: "127.0.0.1", Port: 0},
		Development: config.DevelopmentConfig{
			HotReload:    true,
			CSSInjection: true,
			Debounce:     50 * time.Millisecond,
		},
		Transform: config.TransformConfig{
			ScriptTarget: "es2015",
			StyleTargets: []string{"chrome58", "firefox57", "safari11", "edge16"},
			MinifyStyles: true,
			StrictStyles: true,
			JPEGQuality:  85,
		},
	}
}

func tinyPNG(t *testing.T) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 2, 2))))
	return buf.String()
}

func writeFiles(t *testing.T, fs afero.Fs, files map[string]string) {
	t.Helper()
	for name, body := range files {
		require.NoError(t, afero.WriteFile(fs, name, []byte(body), 0o644))
	}
}

func sampleFiles(t *testing.T) map[string]string {
	return map[string]string{
		"src/templates/index.template": "<html><body><h1>{{.title}}</h1></body></html>",
		"src/data.yaml":                "title: Hello\n",
		"src/styles/main.css":          "a { color: blue; }\n",
		"src/scripts/app.js":           "console.log(1)\n",
		"src/image/dot.png":            tinyPNG(t),
	}
}

func TestBuildServiceFullBuild(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFiles(t, fs, sampleFiles(t))

	svc, err := NewBuildService(testConfig(), fs, nil)
	require.NoError(t, err)

	result, err := svc.Build(context.Background(), BuildOptions{})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Empty(t, result.Failed)
	assert.Equal(t, 4, result.Outputs)

	html, err := afero.ReadFile(fs, "www/index.html")
	require.NoError(t, err)
	assert.Contains(t, string(html), "<h1>Hello</h1>")
}

func TestBuildServiceSingleTask(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFiles(t, fs, sampleFiles(t))

	svc, err := NewBuildService(testConfig(), fs, nil)
	require.NoError(t, err)

	result, err := svc.Build(context.Background(), BuildOptions{Task: build.TaskJS})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Outputs)
	assert.Equal(t, 0, svc.Runner().Report().Runs(build.TaskHTML))
}

func TestBuildServiceReportsFailures(t *testing.T) {
	fs := afero.NewMemMapFs()
	files := sampleFiles(t)
	files["src/scripts/app.js"] = "const = ;\n"
	writeFiles(t, fs, files)

	svc, err := NewBuildService(testConfig(), fs, nil)
	require.NoError(t, err)

	result, err := svc.Build(context.Background(), BuildOptions{})
	require.Error(t, err)
	assert.True(t, errors.IsTransformError(err))
	assert.False(t, result.Success)
	assert.Equal(t, []string{build.TaskJS}, result.Failed)
}

func TestBuildServiceUnknownTask(t *testing.T) {
	svc, err := NewBuildService(testConfig(), afero.NewMemMapFs(), nil)
	require.NoError(t, err)

	result, err := svc.Build(context.Background(), BuildOptions{Task: "deploy"})
	require.Error(t, err)
	assert.False(t, result.Success)
}
