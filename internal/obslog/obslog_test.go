package obslog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, parseLevel(" DEBUG "))
	assert.Equal(t, zapcore.WarnLevel, parseLevel("warning"))
	assert.Equal(t, zapcore.InfoLevel, parseLevel("nonsense"))
}

func TestNewWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "server.log")
	l, err := New(Options{Level: "info", Format: "json", ToFile: true, File: path})
	require.NoError(t, err)
	l.Info("room_create", zap.String("room", "R-ABC123"))
	require.NoError(t, l.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"room_create"`)
	assert.Contains(t, string(data), `"room":"R-ABC123"`)
}

func TestSetNilResetsToNop(t *testing.T) {
	prev := L()
	t.Cleanup(func() { Set(prev) })

	Set(nil)
	require.NotNil(t, L())
	L().Info("dropped")
}
