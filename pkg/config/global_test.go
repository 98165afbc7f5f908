//go:build testing
// +build testing

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitialize_GlobalAccessors(t *testing.T) {
	ResetGlobalManager()
	t.Cleanup(ResetGlobalManager)

	assert.False(t, IsInitialized())
	assert.Nil(t, GetSessions())
	assert.Nil(t, GetBrowser())
	assert.Nil(t, GetLibrary())

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `version: "1"
sections:
  sessions:
    max_sessions: 4
    idle_timeout: 5m
  library:
    db_path: /tmp/custom.db
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv(EnvPrefix+"SESSIONS_STABLE_POLLS", "5")

	require.NoError(t, Initialize(path))
	require.True(t, IsInitialized())

	sessions := GetSessions().Snapshot()
	assert.Equal(t, 4, sessions.MaxSessions)
	assert.Equal(t, 5*time.Minute, sessions.IdleTimeout)
	assert.Equal(t, 5, sessions.StablePolls)

	assert.Equal(t, "/tmp/custom.db", GetLibrary().ResolveDBPath("/unused"))
	assert.True(t, GetBrowser().Snapshot("/base").Headless)
}

func TestGlobal_PanicsWhenUninitialized(t *testing.T) {
	ResetGlobalManager()
	assert.Panics(t, func() { Global() })
}
