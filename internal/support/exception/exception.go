// Package exception provides the custom error type and error classification
// utilities used across standwatch. Errors carry the module they originated
// in plus retry/skip policy flags, and well-known failure categories are
// registered as sentinel errors so callers can match them by name.
package exception

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"reflect"
	"runtime"
	"strings"
	"sync"
)

// errorRegistry maps error names to sentinel error instances for errors.Is comparison.
var errorRegistry = make(map[string]error)

// registryMutex protects access to errorRegistry.
var registryMutex sync.RWMutex

// RegisterErrorType registers a sentinel error under a unique name.
// Registered errors are matched by IsErrorOfType. Panics on an empty name
// or nil prototype.
func RegisterErrorType(name string, prototype error) {
	registryMutex.Lock()
	defer registryMutex.Unlock()

	if name == "" {
		panic("Error type name cannot be empty")
	}
	if prototype == nil {
		panic(fmt.Sprintf("Cannot register nil prototype for name: %s", name))
	}

	errorRegistry[name] = prototype
}

// IsErrorTypeRegistered reports whether the given error type name is registered.
func IsErrorTypeRegistered(name string) bool {
	registryMutex.RLock()
	defer registryMutex.RUnlock()
	_, ok := errorRegistry[name]
	return ok
}

// AppError is the standwatch error type. It holds the module where the error
// occurred, a message, the wrapped original error, and flags indicating
// whether the failure is retryable or skippable.
type AppError struct {
	// Module indicates where the error occurred (e.g., "weather", "trainer", "finder").
	Module string
	// Message is a concise description of the error.
	Message string
	// OriginalErr is the wrapped original error.
	OriginalErr error
	// isRetryable indicates whether this error is retryable.
	isRetryable bool
	// isSkippable indicates whether this error is skippable.
	isSkippable bool
	// StackTrace is the stack trace at the time of the error (for debugging).
	StackTrace string
}

// NewAppError creates a new AppError instance.
func NewAppError(module, message string, originalErr error, isSkippable, isRetryable bool) *AppError {
	buf := make([]byte, 2048)
	n := runtime.Stack(buf, false)
	stackTrace := string(buf[:n])

	return &AppError{
		Module:      module,
		Message:     message,
		OriginalErr: originalErr,
		isRetryable: isRetryable,
		isSkippable: isSkippable,
		StackTrace:  stackTrace,
	}
}

// NewAppErrorf creates a new AppError using a format string. Optional flags
// and an error are extracted from the end of the variadic arguments in the
// order: [isSkippable bool], [isRetryable bool], [originalErr error]. The
// remaining arguments feed fmt.Sprintf.
//
// Example:
// NewAppErrorf("weather", "fetch failed for %s", "archive", true, io.EOF)
// -> message: "fetch failed for archive", isRetryable: true, originalErr: io.EOF
func NewAppErrorf(module, format string, a ...interface{}) *AppError {
	var originalErr error
	isRetryable := false
	isSkippable := false
	args := a

	if len(args) > 0 {
		if err, ok := args[len(args)-1].(error); ok {
			originalErr = err
			args = args[:len(args)-1]
		}
	}

	if len(args) > 0 {
		if b, ok := args[len(args)-1].(bool); ok {
			isRetryable = b
			args = args[:len(args)-1]
		}
	}

	if len(args) > 0 {
		if b, ok := args[len(args)-1].(bool); ok {
			isSkippable = b
			args = args[:len(args)-1]
		}
	}

	message := fmt.Sprintf(format, args...)

	buf := make([]byte, 2048)
	n := runtime.Stack(buf, false)
	stackTrace := string(buf[:n])

	return &AppError{
		Module:      module,
		Message:     message,
		OriginalErr: originalErr,
		isRetryable: isRetryable,
		isSkippable: isSkippable,
		StackTrace:  stackTrace,
	}
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.OriginalErr != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Module, e.Message, e.OriginalErr)
	}
	return fmt.Sprintf("[%s] %s", e.Module, e.Message)
}

// Unwrap returns the original error for errors.Unwrap.
func (e *AppError) Unwrap() error {
	return e.OriginalErr
}

// IsRetryable returns whether this error is retryable.
func (e *AppError) IsRetryable() bool {
	return e.isRetryable
}

// IsSkippable returns whether this error is skippable.
func (e *AppError) IsSkippable() bool {
	return e.isSkippable
}

// IsAppError reports whether the given error is an *AppError.
func IsAppError(err error) bool {
	if err == nil {
		return false
	}
	_, ok := err.(*AppError)
	return ok
}

// IsTemporary determines if an error is temporary (network failure, upstream
// 5xx, temporary DB connection issue). AppError's IsRetryable flag takes
// precedence.
func IsTemporary(err error) bool {
	if err == nil {
		return false
	}
	if ae, ok := err.(*AppError); ok {
		return ae.IsRetryable()
	}
	errStr := err.Error()
	return strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "EOF")
}

// IsFatal determines if an error is fatal (neither retryable nor skippable).
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	if ae, ok := err.(*AppError); ok {
		return !ae.IsRetryable() && !ae.IsSkippable()
	}
	errStr := err.Error()
	return strings.Contains(errStr, "invalid argument") ||
		strings.Contains(errStr, "permission denied") ||
		strings.Contains(errStr, "data corruption")
}

// IsErrorOfType checks if an error matches a named type. It checks, in order:
// registered sentinel errors via errors.Is, message substring, and type name
// comparison through the wrap chain using reflection.
func IsErrorOfType(err error, errorTypeName string) bool {
	if err == nil {
		return false
	}

	registryMutex.RLock()
	targetError, ok := errorRegistry[errorTypeName]
	registryMutex.RUnlock()

	if ok {
		if errors.Is(err, targetError) {
			return true
		}
	}

	currentErr := err
	for currentErr != nil {
		if strings.Contains(currentErr.Error(), errorTypeName) {
			return true
		}

		errType := reflect.TypeOf(currentErr)
		if errType != nil {
			if errType.String() == errorTypeName || (errType.Kind() == reflect.Ptr && errType.Elem().String() == errorTypeName) {
				return true
			}
		}

		currentErr = errors.Unwrap(currentErr)
	}

	return false
}

// Sentinel errors for the failure categories the weather layer and the
// training pipeline report. Wrap these in an AppError so callers can match
// the category with errors.Is while keeping module/message context.
var (
	// ErrMissingData indicates the interpolator was asked for an instant the
	// hourly table does not cover. A coverage-contract violation by the caller.
	ErrMissingData = errors.New("MissingDataError")
	// ErrWeatherFetch indicates an upstream weather provider failed for a sub-range.
	ErrWeatherFetch = errors.New("WeatherFetchError")
	// ErrCacheCorruption indicates the weather cache could not be deserialized.
	ErrCacheCorruption = errors.New("CacheCorruptionError")
	// ErrCoverageNotEnsured indicates a point query before coverage was ensured.
	ErrCoverageNotEnsured = errors.New("CoverageNotEnsuredError")
	// ErrDependencyLoad indicates the dependency-load stage returned nothing.
	ErrDependencyLoad = errors.New("DependencyLoadError")
	// ErrNoPositiveSamples indicates a camera had no positive-count training samples.
	ErrNoPositiveSamples = errors.New("NoPositiveSamplesError")
	// ErrRunInFlight indicates a trainer was started while a run was active.
	ErrRunInFlight = errors.New("RunInFlightError")
	// ErrNotTrained indicates a prediction was requested before any estimator
	// was fitted, typically after a failed training run.
	ErrNotTrained = errors.New("NotTrainedError")
	// ErrPostTrain indicates the post-train stage failed.
	ErrPostTrain = errors.New("PostTrainError")
	// ErrOptimisticLock indicates a versioned update hit a concurrent modification.
	ErrOptimisticLock = errors.New("OptimisticLockingError")
)

func init() {
	RegisterErrorType("MissingDataError", ErrMissingData)
	RegisterErrorType("WeatherFetchError", ErrWeatherFetch)
	RegisterErrorType("CacheCorruptionError", ErrCacheCorruption)
	RegisterErrorType("CoverageNotEnsuredError", ErrCoverageNotEnsured)
	RegisterErrorType("DependencyLoadError", ErrDependencyLoad)
	RegisterErrorType("NoPositiveSamplesError", ErrNoPositiveSamples)
	RegisterErrorType("RunInFlightError", ErrRunInFlight)
	RegisterErrorType("NotTrainedError", ErrNotTrained)
	RegisterErrorType("PostTrainError", ErrPostTrain)
	RegisterErrorType("OptimisticLockingError", ErrOptimisticLock)

	// Common error names matched by IsErrorOfType.
	RegisterErrorType("io.EOF", errors.New("io.EOF"))
	RegisterErrorType("net.OpError", errors.New("net.OpError"))
	RegisterErrorType("context.DeadlineExceeded", context.DeadlineExceeded)
	RegisterErrorType("context.Canceled", context.Canceled)
	RegisterErrorType("sql.ErrNoRows", sql.ErrNoRows)
}

// ExtractErrorMessage extracts a display message from an error. For AppError
// it returns the cleaner Message field; otherwise the standard Error() string.
func ExtractErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	if ae, ok := err.(*AppError); ok {
		return ae.Message
	}
	return err.Error()
}
