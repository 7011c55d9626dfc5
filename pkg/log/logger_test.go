package log

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestDebugModeLifecycle(t *testing.T) {
	dir := t.TempDir()

	assert.False(t, IsDebugMode())
	require.NoError(t, InitDebugMode(dir))
	assert.True(t, IsDebugMode())

	path := GetDebugLogPath()
	assert.True(t, strings.HasPrefix(path, dir), "log path %s should live under %s", path, dir)

	LogDebug("connected", zap.String("url", "ws://localhost"))
	CloseDebugLog()
	assert.False(t, IsDebugMode())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "session started")
	assert.Contains(t, string(data), "connected")
	assert.Contains(t, string(data), "ws://localhost")
	assert.Contains(t, string(data), "session ended")
}

func TestSetLoggerNil(t *testing.T) {
	SetLogger(nil)
	assert.NotNil(t, L())
	LogDebug("dropped")
}
