package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestZapLogger_WritesModuleAndDetails(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := NewWithCore(core)

	l.Info("Timeline", "New messages detected", map[string]interface{}{"client_id": "c1"})
	l.Warn("Timeline", "Polling refresh failed", nil)
	l.Error("Hub", "Send failed", map[string]interface{}{"error": "boom"})

	entries := logs.All()
	require.Len(t, entries, 3)

	assert.Equal(t, "New messages detected", entries[0].Message)
	ctx := entries[0].ContextMap()
	assert.Equal(t, "Timeline", ctx["module"])
	assert.Equal(t, map[string]interface{}{"client_id": "c1"}, ctx["details"])

	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, map[string]interface{}{}, entries[1].ContextMap()["details"])

	assert.Equal(t, "boom", entries[2].ContextMap()["error_ref"])
}
