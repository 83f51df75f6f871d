package logger

import (
	"context"
	"fmt"

	"beatstore-media-service/config"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type ctxKey string

const (
	RequestID = "RequestID"

	requestIDKey ctxKey = RequestID
	loggerKey    ctxKey = "logger"
)

type Logger struct {
	l *zap.Logger
}

func New(cfg *config.Config) (*Logger, error) {
	// Добавляем энкодер времени вручную
	// Это функция, поэтому из yml его не достать
	cfg.Logger.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.Logger.EncoderConfig.EncodeLevel = zapcore.LowercaseLevelEncoder

	logger, err := cfg.Logger.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	return &Logger{l: logger}, nil
}

// NewFromZap оборачивает готовый zap логгер (используется в тестах)
func NewFromZap(l *zap.Logger) *Logger {
	return &Logger{l: l}
}

// NewNop логгер, который ничего не пишет
func NewNop() *Logger {
	return &Logger{l: zap.NewNop()}
}

func CtxWWithLogger(ctx context.Context, lg *Logger) context.Context {
	return context.WithValue(ctx, loggerKey, lg)
}

// CtxWithRequestID сохраняет идентификатор запроса в контексте
func CtxWithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromCtx возвращает идентификатор запроса или пустую строку
func RequestIDFromCtx(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

func GetLoggerFromCtx(ctx context.Context) *Logger {
	return ctx.Value(loggerKey).(*Logger)
}

// GetLoggerFromCtxSafe не паникует, если логгера в контексте нет
func GetLoggerFromCtxSafe(ctx context.Context) *Logger {
	lg, ok := ctx.Value(loggerKey).(*Logger)
	if !ok || lg == nil {
		return NewNop()
	}
	return lg
}

func (l *Logger) withRequestID(ctx context.Context, fields []zap.Field) []zap.Field {
	if id := RequestIDFromCtx(ctx); id != "" {
		fields = append(fields, zap.String(RequestID, id))
	}
	return fields
}

func (l *Logger) Info(ctx context.Context, msg string, fields ...zap.Field) {
	l.l.Info(msg, l.withRequestID(ctx, fields)...)
}

func (l *Logger) Debug(ctx context.Context, msg string, fields ...zap.Field) {
	l.l.Debug(msg, l.withRequestID(ctx, fields)...)
}

func (l *Logger) Error(ctx context.Context, msg string, fields ...zap.Field) {
	l.l.Error(msg, l.withRequestID(ctx, fields)...)
}

func (l *Logger) Warn(ctx context.Context, msg string, fields ...zap.Field) {
	l.l.Warn(msg, l.withRequestID(ctx, fields)...)
}

// With возвращает логгер с постоянными полями
func (l *Logger) With(fields ...zap.Field) *Logger {
	return &Logger{l: l.l.With(fields...)}
}

// Sync сбрасывает буферы zap
func (l *Logger) Sync() error {
	return l.l.Sync()
}
