package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/weft/internal/config"
)

// execute runs the root command in a fresh working directory holding files.
func execute(t *testing.T, files map[string]string, args ...string) (string, string, error) {
	t.Helper()
	t.Chdir(t.TempDir())
	for name, body := range files {
		require.NoError(t, os.MkdirAll(filepath.Dir(name), 0o755))
		require.NoError(t, os.WriteFile(name, []byte(body), 0o644))
	}

	viper.Reset()
	cfgFile = ""
	resetFlags(rootCmd)
	resetFlags(listCmd)
	resetFlags(watchCmd)
	resetFlags(versionCmd)
	appFS = afero.NewOsFs()

	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	if args == nil {
		// nil makes cobra fall back to os.Args.
		args = []string{}
	}
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	err := Execute()
	return stdout.String(), stderr.String(), err
}

func site() map[string]string {
	return map[string]string{
		"src/templates/index.template": "<html><body><h1>{{.title}}</h1></body></html>",
		"src/data.yaml":                "title: From The CLI\n",
		"src/styles/main.css":          "main { display: grid; }\n",
		"src/scripts/app.ts":           "let n: number = 1;\nconsole.log(n);\n",
	}
}

func TestBuildCommand(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"no subcommand", nil},
		{"build subcommand", []string{"build"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stdout, _, err := execute(t, site(), tt.args...)
			require.NoError(t, err)
			assert.Contains(t, stdout, "build: 3 file(s)")

			html, err := os.ReadFile("www/index.html")
			require.NoError(t, err)
			assert.Contains(t, string(html), "From The CLI")
			assert.FileExists(t, "www/assets/css/main.css")
			assert.FileExists(t, "www/assets/js/app.js")
		})
	}
}

func TestBuildCommandFailure(t *testing.T) {
	files := site()
	files["src/scripts/app.ts"] = "let = ;\n"

	_, stderr, err := execute(t, files, "build")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 task(s) failed: js")
	assert.Contains(t, stderr, "Transform failed")
	assert.FileExists(t, "www/index.html")
}

func TestTaskCommand(t *testing.T) {
	stdout, _, err := execute(t, site(), "js")
	require.NoError(t, err)
	assert.Contains(t, stdout, "js: 1 file(s)")
	assert.FileExists(t, "www/assets/js/app.js")
	assert.NoFileExists(t, "www/index.html")
}

func TestCleanCommand(t *testing.T) {
	files := site()
	files["www/stale.html"] = "old"

	_, _, err := execute(t, files, "clean")
	require.NoError(t, err)
	assert.NoFileExists(t, "www/stale.html")
	assert.DirExists(t, "www")
}

func TestConfigFileAndEnvironment(t *testing.T) {
	files := site()
	files[".weft.yml"] = "paths:\n  buildRoot: public\n"

	t.Setenv("WEFT_LOG_LEVEL", "error")
	stdout, _, err := execute(t, files, "config")
	require.NoError(t, err)

	var cfg map[string]interface{}
	require.NoError(t, yaml.Unmarshal([]byte(stdout), &cfg))
	paths := cfg["paths"].(map[string]interface{})
	assert.Equal(t, "public", paths["buildRoot"])
	assert.Equal(t, "public/assets/css", paths["styleOut"])
	assert.Equal(t, "error", cfg["log"].(map[string]interface{})["level"])
}

func TestListCommand(t *testing.T) {
	stdout, _, err := execute(t, nil, "list")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Vendor Css")
	assert.Contains(t, stdout, "vendor-css -> styles")
	assert.Contains(t, stdout, "www/assets/js")

	stdout, _, err = execute(t, nil, "list", "--format", "json")
	require.NoError(t, err)
	var listings []taskListing
	require.NoError(t, json.Unmarshal([]byte(stdout), &listings))
	byName := make(map[string]taskListing)
	for _, l := range listings {
		byName[l.Name] = l
	}
	assert.Equal(t, []string{"src/scripts/**/*.{js,jsx,ts,tsx}"}, byName["js"].Sources)
	assert.Equal(t, "www/assets/css", byName["styles"].Output)

	_, _, err = execute(t, nil, "list", "--format", "csv")
	assert.Error(t, err)
}

func TestVersionCommand(t *testing.T) {
	stdout, _, err := execute(t, nil, "version", "--format", "json")
	require.NoError(t, err)
	var info map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(stdout), &info))
	assert.Contains(t, info, "version")
	assert.Contains(t, info, "go_version")

	_, _, err = execute(t, nil, "version", "--format", "xml")
	assert.Error(t, err)
}

func TestUnknownCommand(t *testing.T) {
	_, stderr, err := execute(t, nil, "deploy")
	require.Error(t, err)
	assert.Contains(t, stderr, "Error:")
}

func TestServerFlagsApply(t *testing.T) {
	cfg := &config.Config{Server: config.ServerConfig{Host: "localhost", Port: 8080}}

	var flags ServerFlags
	fs := pflag.NewFlagSet("watch", pflag.ContinueOnError)
	addServerFlags(fs, &flags)
	require.NoError(t, fs.Parse([]string{"--host", "0.0.0.0"}))
	require.NoError(t, flags.apply(fs, cfg))
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port, "unset flags leave config alone")

	fs = pflag.NewFlagSet("watch", pflag.ContinueOnError)
	addServerFlags(fs, &flags)
	require.NoError(t, fs.Parse([]string{"-p", "3000"}))
	require.NoError(t, flags.apply(fs, cfg))
	assert.Equal(t, 3000, cfg.Server.Port)

	fs = pflag.NewFlagSet("watch", pflag.ContinueOnError)
	addServerFlags(fs, &flags)
	require.NoError(t, fs.Parse([]string{"--port", "70000"}))
	assert.Error(t, flags.apply(fs, cfg))
}
