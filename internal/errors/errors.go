package errors

import (
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"
)

// ErrorType represents different categories of errors
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeUserInput  ErrorType = "user_input"
	ErrorTypeIO         ErrorType = "io"
	ErrorTypeNetwork    ErrorType = "network"
	ErrorTypeTransport  ErrorType = "transport"
	ErrorTypeBackend    ErrorType = "backend"
	ErrorTypeProtocol   ErrorType = "protocol"
	ErrorTypeConfig     ErrorType = "config"
	ErrorTypeInternal   ErrorType = "internal"
)

// AppError represents a structured application error
type AppError struct {
	Type    ErrorType      `json:"type"`
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Cause   error          `json:"cause,omitempty"`
	Context map[string]any `json:"context,omitempty"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is matches another AppError by code, so sentinel AppErrors work with errors.Is.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Code != "" && t.Code == e.Code
}

func newAppError(typ ErrorType, code, message string, cause error) *AppError {
	return &AppError{
		Type:    typ,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

func NewValidationError(code, message string, cause error) *AppError {
	return newAppError(ErrorTypeValidation, code, message, cause)
}

// NewUserInputError reports input rejected before any network call is made.
func NewUserInputError(code, message string, cause error) *AppError {
	return newAppError(ErrorTypeUserInput, code, message, cause)
}

func NewIOError(code, message string, cause error) *AppError {
	return newAppError(ErrorTypeIO, code, message, cause)
}

func NewNetworkError(code, message string, cause error) *AppError {
	return newAppError(ErrorTypeNetwork, code, message, cause)
}

// NewTransportError reports a streaming channel that failed to open or closed unexpectedly.
func NewTransportError(code, message string, cause error) *AppError {
	return newAppError(ErrorTypeTransport, code, message, cause)
}

// NewBackendError reports an explicit error message sent by the backend.
func NewBackendError(code, message string, cause error) *AppError {
	return newAppError(ErrorTypeBackend, code, message, cause)
}

// NewProtocolError reports a frame or payload that could not be understood.
func NewProtocolError(code, message string, cause error) *AppError {
	return newAppError(ErrorTypeProtocol, code, message, cause)
}

func NewConfigError(code, message string, cause error) *AppError {
	return newAppError(ErrorTypeConfig, code, message, cause)
}

func NewInternalError(code, message string, cause error) *AppError {
	return newAppError(ErrorTypeInternal, code, message, cause)
}

// WithContext adds context to an error
func (e *AppError) WithContext(key string, value any) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// TypeOf returns the ErrorType of the first AppError in err's chain, or "" if there is none.
func TypeOf(err error) ErrorType {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Type
	}
	return ""
}

// UserMessage returns the text a user should see for err.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var appErr *AppError
	if stderrors.As(err, &appErr) && appErr.Message != "" {
		return appErr.Message
	}
	return err.Error()
}

// Logger wraps slog with application-specific methods
type Logger struct {
	logger *slog.Logger
}

// NewLogger creates a new structured logger writing JSON to stderr.
func NewLogger(level slog.Level) *Logger {
	return NewLoggerTo(os.Stderr, level)
}

// NewLoggerTo creates a structured logger writing JSON to w.
func NewLoggerTo(w io.Writer, level slog.Level) *Logger {
	opts := &slog.HandlerOptions{
		Level: level,
	}

	handler := slog.NewJSONHandler(w, opts)
	return &Logger{logger: slog.New(handler)}
}

// NewNopLogger returns a logger that discards everything. Handy in tests.
func NewNopLogger() *Logger {
	return NewLoggerTo(io.Discard, slog.LevelError)
}

// LogError logs an application error with appropriate level and context
func (l *Logger) LogError(err error, message string, args ...any) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		logArgs := []any{
			"error_type", appErr.Type,
			"error_code", appErr.Code,
			"error_message", appErr.Message,
		}
		if appErr.Cause != nil {
			logArgs = append(logArgs, "cause", appErr.Cause.Error())
		}

		for key, value := range appErr.Context {
			logArgs = append(logArgs, key, value)
		}

		logArgs = append(logArgs, args...)

		l.logger.Error(message, logArgs...)
	} else {
		logArgs := append([]any{"error", err.Error()}, args...)
		l.logger.Error(message, logArgs...)
	}
}

func (l *Logger) Info(message string, args ...any) {
	l.logger.Info(message, args...)
}

func (l *Logger) Debug(message string, args ...any) {
	l.logger.Debug(message, args...)
}

func (l *Logger) Warn(message string, args ...any) {
	l.logger.Warn(message, args...)
}

// With returns a logger that always includes the given attributes.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{logger: l.logger.With(args...)}
}

// New creates a new logger instance
func New(level string) (*Logger, error) {
	var slogLevel slog.Level
	switch level {
	case "debug":
		slogLevel = slog.LevelDebug
	case "info":
		slogLevel = slog.LevelInfo
	case "warn":
		slogLevel = slog.LevelWarn
	case "error":
		slogLevel = slog.LevelError
	default:
		return nil, fmt.Errorf("invalid log level: %s", level)
	}

	return NewLogger(slogLevel), nil
}

// Common error codes
const (
	ErrCodeFileNotFound     = "FILE_NOT_FOUND"
	ErrCodeFileNotReadable  = "FILE_NOT_READABLE"
	ErrCodeFileWriteFailed  = "FILE_WRITE_FAILED"
	ErrCodeFileTooLarge     = "FILE_TOO_LARGE"
	ErrCodeInvalidFormat    = "INVALID_FORMAT"
	ErrCodeInvalidRequest   = "INVALID_REQUEST"
	ErrCodeNetworkTimeout   = "NETWORK_TIMEOUT"
	ErrCodeInvalidConfig    = "INVALID_CONFIG"
	ErrCodeNoFile           = "NO_FILE"
	ErrCodeEmptyFile        = "EMPTY_FILE"
	ErrCodeJobTooShort      = "JOB_DESCRIPTION_TOO_SHORT"
	ErrCodeInvalidStage     = "INVALID_STAGE"
	ErrCodeScoreTooLow      = "SCORE_TOO_LOW"
	ErrCodeIncompleteStep   = "INCOMPLETE_STEP"
	ErrCodeNotConnected     = "NOT_CONNECTED"
	ErrCodeConnectBusy      = "CONNECT_IN_PROGRESS"
	ErrCodeConnectFailed    = "CONNECT_FAILED"
	ErrCodeConnectionLost   = "CONNECTION_LOST"
	ErrCodeBackendFailed    = "BACKEND_FAILED"
	ErrCodeParseFailed      = "PARSE_FAILED"
	ErrCodeMalformedMessage = "MALFORMED_MESSAGE"
	ErrCodeCircuitOpen      = "CIRCUIT_OPEN"
	ErrCodeDraftCorrupt     = "DRAFT_CORRUPT"
	ErrCodeSuperseded       = "SUPERSEDED"
	ErrCodeOperationFailed  = "OPERATION_FAILED"
)
