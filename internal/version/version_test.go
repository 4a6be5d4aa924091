package version

import (
	"runtime/debug"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func withBuildInfo(t *testing.T, info *debug.BuildInfo) {
	t.Helper()
	orig := readBuildInfo
	readBuildInfo = func() (*debug.BuildInfo, bool) { return info, info != nil }
	t.Cleanup(func() { readBuildInfo = orig })
}

func withLinkerVars(t *testing.T, v, commit, built string) {
	t.Helper()
	ov, oc, ob := Version, GitCommit, BuildTime
	Version, GitCommit, BuildTime = v, commit, built
	t.Cleanup(func() { Version, GitCommit, BuildTime = ov, oc, ob })
}

func TestLinkerValuesWin(t *testing.T) {
	withLinkerVars(t, "v1.2.3", "0123456789abcdef", "2026-01-02T03:04:05Z")
	withBuildInfo(t, &debug.BuildInfo{Main: debug.Module{Version: "v9.9.9"}})

	info := GetBuildInfo()
	assert.Equal(t, "v1.2.3", info.Version)
	assert.Equal(t, "0123456789abcdef", info.GitCommit)
	assert.Equal(t, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), info.BuildTime)
	assert.NotEmpty(t, info.GoVersion)
	assert.Contains(t, info.Platform, "/")
	assert.Equal(t, "v1.2.3 (0123456)", GetShortVersion())
}

func TestFallsBackToBuildInfo(t *testing.T) {
	withLinkerVars(t, "dev", "unknown", "unknown")
	withBuildInfo(t, &debug.BuildInfo{
		Main: debug.Module{Version: "(devel)"},
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "abcdef0123456789"},
			{Key: "vcs.time", Value: "2026-10-01T00:00:00Z"},
			{Key: "vcs.modified", Value: "true"},
		},
	})

	info := GetBuildInfo()
	assert.Equal(t, "dev-abcdef0", info.Version)
	assert.Equal(t, "abcdef0123456789", info.GitCommit)
	assert.Equal(t, 2026, info.BuildTime.Year())
	assert.True(t, info.Dirty)
	assert.Equal(t, "dev-abcdef0", GetShortVersion())
}

func TestNoBuildInfo(t *testing.T) {
	withLinkerVars(t, "dev", "unknown", "unknown")
	withBuildInfo(t, nil)

	assert.Equal(t, "dev", GetVersion())
	assert.Equal(t, "unknown", GetGitCommit())
	assert.Equal(t, "dev", GetShortVersion())
	assert.True(t, GetBuildInfo().BuildTime.IsZero())
}
