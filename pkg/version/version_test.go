package version

import (
	"encoding/json"
	"runtime/debug"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGet(t *testing.T) {
	info := Get()

	assert.Equal(t, Version, info.Version)
	assert.NotEmpty(t, info.GitCommit)
	assert.True(t, strings.HasPrefix(info.GoVersion, "go"))
}

func TestFillFromBuildSettings(t *testing.T) {
	settings := []debug.BuildSetting{
		{Key: "vcs.revision", Value: "abc1234def"},
		{Key: "vcs.time", Value: "2026-10-19T09:00:00Z"},
	}

	t.Run("unset values", func(t *testing.T) {
		info := Info{GitCommit: "unknown", BuildTime: "unknown"}
		info.fillFromBuildSettings(settings)
		assert.Equal(t, "abc1234def", info.GitCommit)
		assert.Equal(t, "2026-10-19T09:00:00Z", info.BuildTime)
	})

	t.Run("ldflags win", func(t *testing.T) {
		info := Info{GitCommit: "fedcba9", BuildTime: "yesterday"}
		info.fillFromBuildSettings(settings)
		assert.Equal(t, "fedcba9", info.GitCommit)
		assert.Equal(t, "yesterday", info.BuildTime)
	})
}

func TestInfoString(t *testing.T) {
	info := Info{Version: "0.3.0", GitCommit: "abc1234def", BuildTime: "2026-10-19T09:00:00Z", GoVersion: "go1.25.1"}
	assert.Equal(t, "docsync 0.3.0 (abc1234, built 2026-10-19T09:00:00Z, go1.25.1)", info.String())
}

func TestInfoJSON(t *testing.T) {
	info := Info{Version: "0.3.0", GitCommit: "abc123", BuildTime: "2026-10-19T09:00:00Z", GoVersion: "go1.25.1"}

	out, err := info.JSON()
	require.NoError(t, err)

	var decoded Info
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Equal(t, info, decoded)
	assert.Contains(t, out, `"gitCommit": "abc123"`)
}
