package logger

import (
	"context"
	"testing"

	sqldblogger "github.com/simukti/sqldb-logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestWithRequestID(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := NewWithZap(zap.New(core))

	ctx := WithRequestID(context.Background(), "req-42")
	l.With(ctx, "order_id", 7).Info("hello")

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "req-42", fields["request_id"])
	assert.EqualValues(t, 7, fields["order_id"])
}

func TestWithoutRequestID(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := NewWithZap(zap.New(core))

	l.With(context.Background()).Info("hello")

	require.Equal(t, 1, logs.Len())
	_, found := logs.All()[0].ContextMap()["request_id"]
	assert.False(t, found)
}

func TestLogLevels(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := NewWithZap(zap.New(core))

	l.Log(context.Background(), sqldblogger.LevelError, "exec", map[string]interface{}{"query": "SELECT 1"})
	l.Log(context.Background(), sqldblogger.LevelInfo, "exec", nil)
	l.Log(context.Background(), sqldblogger.LevelDebug, "exec", nil)

	entries := logs.All()
	require.Len(t, entries, 3)
	assert.Equal(t, zapcore.ErrorLevel, entries[0].Level)
	assert.Equal(t, "SELECT 1", entries[0].ContextMap()["query"])
	assert.Equal(t, zapcore.InfoLevel, entries[1].Level)
	assert.Equal(t, zapcore.DebugLevel, entries[2].Level)
}
