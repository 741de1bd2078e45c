package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents different categories of errors.
type ErrorType string

const (
	ErrorTypeSource    ErrorType = "source"
	ErrorTypeTransform ErrorType = "transform"
	ErrorTypeWrite     ErrorType = "write"
	ErrorTypeConfig    ErrorType = "config"
	ErrorTypeConflict  ErrorType = "conflict"
	ErrorTypeInternal  ErrorType = "internal"
)

// AssetError is a structured error type with context.
type AssetError struct {
	Type        ErrorType
	Code        string
	Message     string
	Cause       error
	Context     map[string]interface{}
	Task        string
	FilePath    string
	Line        int
	Column      int
	Recoverable bool
}

// Error implements the error interface.
func (e *AssetError) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}

	if e.Task != "" {
		parts = append(parts, "task:"+e.Task)
	}

	if e.FilePath != "" {
		location := e.FilePath
		if e.Line > 0 {
			location += fmt.Sprintf(":%d", e.Line)
			if e.Column > 0 {
				location += fmt.Sprintf(":%d", e.Column)
			}
		}
		parts = append(parts, location)
	}

	parts = append(parts, e.Message)

	result := strings.Join(parts, " ")

	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *AssetError) Unwrap() error {
	return e.Cause
}

// Is implements error comparison.
func (e *AssetError) Is(target error) bool {
	var t *AssetError
	if errors.As(target, &t) {
		return e.Type == t.Type && e.Code == t.Code
	}

	return false
}

// WithContext adds context information to the error.
func (e *AssetError) WithContext(key string, value interface{}) *AssetError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value

	return e
}

// WithLocation adds file location information.
func (e *AssetError) WithLocation(filePath string, line, column int) *AssetError {
	e.FilePath = filePath
	e.Line = line
	e.Column = column

	return e
}

// WithTask records the task the error was raised in.
func (e *AssetError) WithTask(task string) *AssetError {
	e.Task = task

	return e
}

// Error creation functions

// NewSourceReadError reports a source glob that matched nothing. The task
// treats it as a no-op.
func NewSourceReadError(pattern string) *AssetError {
	return &AssetError{
		Type:        ErrorTypeSource,
		Code:        ErrCodeNoMatches,
		Message:     "no files match " + pattern,
		Recoverable: true,
	}
}

// NewTransformError creates an error for a transform step that rejected its input.
func NewTransformError(code, message string, cause error) *AssetError {
	return &AssetError{
		Type:        ErrorTypeTransform,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: true,
	}
}

// NewWriteError creates an error for an output that could not be written.
func NewWriteError(code, message string, cause error) *AssetError {
	return &AssetError{
		Type:        ErrorTypeWrite,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: false,
	}
}

// NewConfigError creates a configuration error.
func NewConfigError(code, message string) *AssetError {
	return &AssetError{
		Type:        ErrorTypeConfig,
		Code:        code,
		Message:     message,
		Recoverable: false,
	}
}

// NewConflictError reports two tasks writing the same output path.
func NewConflictError(path string, tasks ...string) *AssetError {
	return &AssetError{
		Type:    ErrorTypeConflict,
		Code:    ErrCodeOutputConflict,
		Message: fmt.Sprintf("%s written by %s", path, strings.Join(tasks, " and ")),
		Context: map[string]interface{}{"path": path, "tasks": tasks},
	}
}

// NewInternalError creates an internal error.
func NewInternalError(code, message string, cause error) *AssetError {
	return &AssetError{
		Type:        ErrorTypeInternal,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: false,
	}
}

// Error recovery and handling utilities

// IsRecoverable checks if an error is recoverable.
func IsRecoverable(err error) bool {
	var ae *AssetError
	if errors.As(err, &ae) {
		return ae.Recoverable
	}

	return false
}

// IsSourceReadError checks if an error reports an empty source set.
func IsSourceReadError(err error) bool {
	return hasType(err, ErrorTypeSource)
}

// IsTransformError checks if an error came from a transform step.
func IsTransformError(err error) bool {
	return hasType(err, ErrorTypeTransform)
}

// IsWriteError checks if an error came from writing an output.
func IsWriteError(err error) bool {
	return hasType(err, ErrorTypeWrite)
}

// IsConflictError checks if an error reports overlapping task outputs.
func IsConflictError(err error) bool {
	return hasType(err, ErrorTypeConflict)
}

func hasType(err error, t ErrorType) bool {
	var ae *AssetError
	if errors.As(err, &ae) {
		return ae.Type == t
	}

	return false
}

// ErrorHandler provides centralized error handling.
type ErrorHandler struct {
	logger Logger
}

// Logger interface for error logging.
type Logger interface {
	Debug(ctx context.Context, msg string, fields ...interface{})
	Error(ctx context.Context, err error, msg string, fields ...interface{})
	Warn(ctx context.Context, err error, msg string, fields ...interface{})
}

// NewErrorHandler creates a new error handler.
func NewErrorHandler(logger Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// Handle reports an error at a level matching its type.
func (h *ErrorHandler) Handle(ctx context.Context, err error) {
	if err == nil || h.logger == nil {
		return
	}

	// A joined error reports each member on its own line.
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		for _, member := range joined.Unwrap() {
			h.Handle(ctx, member)
		}
		return
	}

	var ae *AssetError
	if !errors.As(err, &ae) {
		h.logger.Error(ctx, err, "Unhandled error occurred")
		return
	}

	switch ae.Type {
	case ErrorTypeSource:
		h.logger.Debug(ctx, "Source set is empty",
			"task", ae.Task,
			"code", ae.Code,
			"message", ae.Message)
	case ErrorTypeTransform:
		h.logger.Error(ctx, err, "Transform failed",
			"task", ae.Task,
			"code", ae.Code,
			"file", ae.FilePath)
	case ErrorTypeWrite:
		h.logger.Error(ctx, err, "Write failed",
			"task", ae.Task,
			"code", ae.Code,
			"file", ae.FilePath)
	case ErrorTypeConfig:
		h.logger.Warn(ctx, err, "Configuration error",
			"code", ae.Code)
	default:
		h.logger.Error(ctx, err, "Error occurred",
			"type", ae.Type,
			"code", ae.Code,
			"task", ae.Task)
	}
}

// Common error codes.
const (
	ErrCodeNoMatches      = "ERR_NO_MATCHES"
	ErrCodeInvalidPath    = "ERR_INVALID_PATH"
	ErrCodePathTraversal  = "ERR_PATH_TRAVERSAL"
	ErrCodeOutsideRoot    = "ERR_OUTSIDE_ROOT"
	ErrCodeConfigInvalid  = "ERR_CONFIG_INVALID"
	ErrCodeTemplate       = "ERR_TEMPLATE"
	ErrCodeStylesheet     = "ERR_STYLESHEET"
	ErrCodeScript         = "ERR_SCRIPT"
	ErrCodeImage          = "ERR_IMAGE"
	ErrCodeSprite         = "ERR_SPRITE"
	ErrCodeReadFailed     = "ERR_READ_FAILED"
	ErrCodeWriteFailed    = "ERR_WRITE_FAILED"
	ErrCodeCleanFailed    = "ERR_CLEAN_FAILED"
	ErrCodeOutputConflict = "ERR_OUTPUT_CONFLICT"
	ErrCodeUnknownTask    = "ERR_UNKNOWN_TASK"
	ErrCodeInternalError  = "ERR_INTERNAL"
)

// Helper functions for common errors

// ErrInvalidPath creates a path validation error.
func ErrInvalidPath(path string) *AssetError {
	return NewConfigError(ErrCodeInvalidPath, "invalid path: "+path)
}

// ErrPathTraversal creates a path traversal error.
func ErrPathTraversal(path string) *AssetError {
	return NewConfigError(ErrCodePathTraversal, "path traversal attempt: "+path)
}

// ErrOutsideRoot reports a write outside the build root.
func ErrOutsideRoot(path, root string) *AssetError {
	return NewWriteError(ErrCodeOutsideRoot,
		fmt.Sprintf("%s is outside build root %s", path, root), nil)
}

// ErrUnknownTask reports a task name that is not registered.
func ErrUnknownTask(name string) *AssetError {
	return NewConfigError(ErrCodeUnknownTask, "unknown task: "+name)
}
