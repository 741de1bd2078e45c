package version

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func withVars(t *testing.T, v, commit, built string) {
	t.Helper()
	oldV, oldC, oldB := Version, GitCommit, BuildTime
	Version, GitCommit, BuildTime = v, commit, built
	t.Cleanup(func() { Version, GitCommit, BuildTime = oldV, oldC, oldB })
}

func TestGetShortVersion(t *testing.T) {
	tests := []struct {
		name     string
		version  string
		commit   string
		expected string
	}{
		{"release with commit", "v1.2.3", "abcdef0123456", "v1.2.3 (abcdef0)"},
		{"dev with commit", "dev", "abcdef0123456", "dev-abcdef0"},
		{"short commit ignored", "v1.2.3", "abc", "v1.2.3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			withVars(t, tt.version, tt.commit, "unknown")
			assert.Equal(t, tt.expected, GetShortVersion())
		})
	}
}

func TestGetDetailedVersion(t *testing.T) {
	withVars(t, "v0.4.0", "0123456789abcdef", "2026-01-02T03:04:05Z")

	out := GetDetailedVersion()
	lines := strings.Split(out, "\n")
	assert.Equal(t, "weft v0.4.0", lines[0])
	assert.Contains(t, out, "Commit: 0123456789abcdef")
	assert.Contains(t, out, "Built: 2026-01-02T03:04:05Z")
	assert.Contains(t, out, "Go: go")
}

func TestParseBuildTime(t *testing.T) {
	assert.Equal(t, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), parseBuildTime("2026-01-02T03:04:05Z"))
	assert.Equal(t, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), parseBuildTime("2026-01-02T03:04:05"))
	assert.True(t, parseBuildTime("unknown").IsZero())
	assert.True(t, parseBuildTime("").IsZero())
}

func TestGetBuildInfo(t *testing.T) {
	withVars(t, "v1.0.0", "fedcba9876543", "unknown")

	info := GetBuildInfo()
	assert.Equal(t, "v1.0.0", info.Version)
	assert.Equal(t, "fedcba9876543", info.GitCommit)
	assert.True(t, info.BuildTime.IsZero())
	assert.NotEmpty(t, info.Platform)
}
