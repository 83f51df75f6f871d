package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLoggerAppendsRequestID(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	lg := NewFromZap(zap.New(core))

	ctx := CtxWithRequestID(context.Background(), "req-42")
	lg.Warn(ctx, "member skipped", zap.String("key", "beats/a.mp3"))
	lg.Info(context.Background(), "no request id")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "req-42", entries[0].ContextMap()[RequestID])
	assert.Equal(t, "beats/a.mp3", entries[0].ContextMap()["key"])
	assert.NotContains(t, entries[1].ContextMap(), RequestID)
}

func TestGetLoggerFromCtxSafe(t *testing.T) {
	assert.NotNil(t, GetLoggerFromCtxSafe(context.Background()))

	lg := NewNop()
	ctx := CtxWWithLogger(context.Background(), lg)
	assert.Same(t, lg, GetLoggerFromCtxSafe(ctx))
	assert.Same(t, lg, GetLoggerFromCtx(ctx))
}
