package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssetErrorError(t *testing.T) {
	err := NewTransformError(ErrCodeStylesheet, "unexpected token", fmt.Errorf("parse"))
	err.WithTask("styles").WithLocation("src/styles/main.css", 12, 4)

	msg := err.Error()
	assert.Contains(t, msg, "[ERR_STYLESHEET]")
	assert.Contains(t, msg, "task:styles")
	assert.Contains(t, msg, "src/styles/main.css:12:4")
	assert.Contains(t, msg, "unexpected token: parse")
}

func TestAssetErrorLocationWithoutColumn(t *testing.T) {
	err := NewTransformError(ErrCodeTemplate, "bad", nil).WithLocation("index.template", 3, 0)
	assert.Contains(t, err.Error(), "index.template:3 bad")
}

func TestAssetErrorTypes(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		source      bool
		transform   bool
		write       bool
		conflict    bool
		recoverable bool
	}{
		{"source", NewSourceReadError("src/*.css"), true, false, false, false, true},
		{"transform", NewTransformError(ErrCodeScript, "x", nil), false, true, false, false, true},
		{"write", NewWriteError(ErrCodeWriteFailed, "x", nil), false, false, true, false, false},
		{"conflict", NewConflictError("www/a.css", "a", "b"), false, false, false, true, false},
		{"wrapped transform", fmt.Errorf("task js: %w", NewTransformError(ErrCodeScript, "x", nil)), false, true, false, false, true},
		{"plain", errors.New("boom"), false, false, false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.source, IsSourceReadError(tt.err))
			assert.Equal(t, tt.transform, IsTransformError(tt.err))
			assert.Equal(t, tt.write, IsWriteError(tt.err))
			assert.Equal(t, tt.conflict, IsConflictError(tt.err))
			assert.Equal(t, tt.recoverable, IsRecoverable(tt.err))
		})
	}
}

func TestAssetErrorIs(t *testing.T) {
	err := NewTransformError(ErrCodeScript, "one", nil)
	same := NewTransformError(ErrCodeScript, "two", nil)
	other := NewTransformError(ErrCodeStylesheet, "one", nil)

	assert.True(t, errors.Is(err, same))
	assert.False(t, errors.Is(err, other))
}

func TestAssetErrorJoined(t *testing.T) {
	joined := errors.Join(
		NewWriteError(ErrCodeWriteFailed, "disk full", nil),
		NewTransformError(ErrCodeStylesheet, "bad css", nil),
	)

	assert.True(t, IsTransformError(joined))
	var ae *AssetError
	require.True(t, errors.As(joined, &ae))
	assert.Equal(t, ErrorTypeWrite, ae.Type)
}

func TestConflictErrorContext(t *testing.T) {
	err := NewConflictError("www/assets/image/sprite.svg", "image", "sprite")
	assert.Equal(t, "www/assets/image/sprite.svg", err.Context["path"])
	assert.Contains(t, err.Error(), "image and sprite")
}

type recordingLogger struct {
	debug, warn, error int
}

func (l *recordingLogger) Debug(ctx context.Context, msg string, fields ...interface{}) {
	l.debug++
}

func (l *recordingLogger) Warn(ctx context.Context, err error, msg string, fields ...interface{}) {
	l.warn++
}

func (l *recordingLogger) Error(ctx context.Context, err error, msg string, fields ...interface{}) {
	l.error++
}

func TestErrorHandlerLevels(t *testing.T) {
	logger := &recordingLogger{}
	h := NewErrorHandler(logger)
	ctx := context.Background()

	h.Handle(ctx, nil)
	h.Handle(ctx, NewSourceReadError("src/*.js"))
	h.Handle(ctx, NewConfigError(ErrCodeConfigInvalid, "bad"))
	h.Handle(ctx, NewTransformError(ErrCodeScript, "bad", nil))
	h.Handle(ctx, errors.New("plain"))

	assert.Equal(t, 1, logger.debug)
	assert.Equal(t, 1, logger.warn)
	assert.Equal(t, 2, logger.error)
}

func TestErrorHandlerSplitsJoinedErrors(t *testing.T) {
	logger := &recordingLogger{}
	h := NewErrorHandler(logger)

	joined := errors.Join(
		NewTransformError(ErrCodeStylesheet, "bad css", nil).WithTask("styles"),
		errors.Join(NewWriteError(ErrCodeWriteFailed, "disk full", nil), NewSourceReadError("src/*.png")),
	)
	h.Handle(context.Background(), joined)

	assert.Equal(t, 2, logger.error)
	assert.Equal(t, 1, logger.debug)
}
