package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewLogger_InvalidLevel(t *testing.T) {
	_, err := NewLogger(Options{Level: "loud"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level")
}

func TestNewLogger_UnknownFormat(t *testing.T) {
	_, err := NewLogger(Options{Format: "xml"})
	require.Error(t, err)
}

func TestNewLogger_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scenestream.log")
	logger, err := NewLogger(Options{Level: "debug", File: path, Color: true})
	require.NoError(t, err)

	logger.ComponentInfo(ComponentStream, "Sent 12.00 KB")
	require.NoError(t, logger.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	line := string(data)
	assert.Contains(t, line, "[STREAM] Sent 12.00 KB")
	assert.False(t, strings.Contains(line, "\033["), "file output must not carry ANSI codes")
}

func TestComponentTagging(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := Wrap(zap.New(core))

	logger.ComponentWarn(ComponentConnection, "disconnect wait expired")
	logger.ComponentDebug(ComponentDiscovery, "browse round")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "[CONNECTION] disconnect wait expired", entries[0].Message)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	assert.Equal(t, "[DISCOVERY] browse round", entries[1].Message)
}

func TestStandardLogger_Write(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	std := NewStandardLogger(Wrap(zap.New(core)), ComponentGateway)

	n, err := std.Write([]byte("http: TLS handshake error\n"))
	require.NoError(t, err)
	assert.Equal(t, len("http: TLS handshake error\n"), n)
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "[GATEWAY] http: TLS handshake error", logs.All()[0].Message)
}

func TestNewNop(t *testing.T) {
	logger := NewNop()
	logger.ComponentError(ComponentGeneral, "nothing")
	assert.NotNil(t, logger.Logger)
}
