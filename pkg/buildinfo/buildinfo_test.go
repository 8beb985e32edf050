package buildinfo

import (
	"runtime/debug"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func reset(t *testing.T) {
	t.Helper()
	once = sync.Once{}
	Set("", "", "")
	t.Cleanup(func() {
		once = sync.Once{}
		Set("", "", "")
	})
}

func TestGetWithoutLdflags(t *testing.T) {
	reset(t)
	info := Get()
	assert.NotEmpty(t, info.GoVer)
	// Test binaries carry no module version tag.
	assert.Equal(t, "dev", info.Version)
}

func TestResolveFromVCS(t *testing.T) {
	reset(t)
	info := resolve(&debug.BuildInfo{
		GoVersion: "go1.26.1",
		Main:      debug.Module{Version: "v0.4.0"},
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "0123456789abcdef0123"},
			{Key: "vcs.time", Value: "2026-09-01T10:00:00Z"},
			{Key: "vcs.modified", Value: "true"},
		},
	}, true)
	assert.Equal(t, "v0.4.0", info.Version)
	assert.Equal(t, "0123456789ab", info.ShortCommit())
	assert.Equal(t, "keysync v0.4.0 (commit 0123456789ab-dirty, built 2026-09-01T10:00:00Z, go1.26.1)", info.String())

	info = resolve(nil, false)
	assert.Equal(t, Info{Version: "dev", Commit: "unknown", Date: "unknown"}, info)
}

func TestLdflagsOverrideVCS(t *testing.T) {
	reset(t)
	Set("v1.2.3", "abc123def456", "2026-02-25T00:00:00Z")
	info := resolve(&debug.BuildInfo{
		GoVersion: "go1.26.1",
		Main:      debug.Module{Version: "(devel)"},
		Settings:  []debug.BuildSetting{{Key: "vcs.revision", Value: "fff"}},
	}, true)
	assert.Equal(t, "v1.2.3", info.Version)
	assert.Equal(t, "abc123def456", info.Commit)
	assert.Equal(t, "2026-02-25T00:00:00Z", info.Date)
	assert.Equal(t, "go1.26.1", info.GoVer)

	// Only the version is injected; the commit comes from VCS.
	Set("v3.0.0", "", "")
	info = resolve(&debug.BuildInfo{Settings: []debug.BuildSetting{{Key: "vcs.revision", Value: "fff"}}}, true)
	assert.Equal(t, "v3.0.0", info.Version)
	assert.Equal(t, "fff", info.Commit)
}
