// Package exception defines the error taxonomy of the chunk engine.
// Every error raised by a reader, processor, writer or the engine itself is a *BatchError
// wrapping one of the sentinel errors below, so skip and retry policies can classify it
// either with errors.Is or by the registered name.
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

// Names under which the sentinel errors are registered. Fault policies in YAML refer to these.
const (
	SourceUnavailable          = "SourceUnavailable"
	ReadError                  = "ReadError"
	ProcessError               = "ProcessError"
	WriteError                 = "WriteError"
	DirtyWorkingSetError       = "DirtyWorkingSetError"
	VerificationMismatch       = "VerificationMismatch"
	JobInstanceAlreadyComplete = "JobInstanceAlreadyComplete"
	OptimisticLockingFailure   = "OptimisticLockingFailure"
)

var (
	// ErrSourceUnavailable reports a backing-store failure while fetching a page.
	// It fails the chunk attempt and is only recovered by a retry.
	ErrSourceUnavailable = errors.New(SourceUnavailable)
	// ErrRead reports a failure attributable to a single read item.
	ErrRead = errors.New(ReadError)
	// ErrProcess reports a failure while processing a single item.
	ErrProcess = errors.New(ProcessError)
	// ErrWrite reports a failure of a whole chunk write.
	ErrWrite = errors.New(WriteError)
	// ErrDirtyWorkingSet reports a non-empty working set at a chunk start. Never recovered.
	ErrDirtyWorkingSet = errors.New(DirtyWorkingSetError)
	// ErrVerificationMismatch reports that the target store does not hold the expected identities.
	ErrVerificationMismatch = errors.New(VerificationMismatch)
	// ErrJobInstanceAlreadyComplete is returned when relaunching a completed job instance.
	ErrJobInstanceAlreadyComplete = errors.New(JobInstanceAlreadyComplete)
	// ErrOptimisticLockingFailure reports a concurrent modification of an execution record.
	ErrOptimisticLockingFailure = errors.New(OptimisticLockingFailure)
)

// errorRegistry maps names used in configuration to sentinel errors.
var errorRegistry = make(map[string]error)

var registryMutex sync.RWMutex

// RegisterErrorType registers prototype under name so that IsErrorOfType can match it with errors.Is.
// It panics on an empty name or a nil prototype.
func RegisterErrorType(name string, prototype error) {
	registryMutex.Lock()
	defer registryMutex.Unlock()

	if name == "" {
		panic("error type name cannot be empty")
	}
	if prototype == nil {
		panic(fmt.Sprintf("cannot register nil prototype for name: %s", name))
	}
	errorRegistry[name] = prototype
}

// IsErrorTypeRegistered reports whether name is known to the registry.
func IsErrorTypeRegistered(name string) bool {
	registryMutex.RLock()
	defer registryMutex.RUnlock()
	_, ok := errorRegistry[name]
	return ok
}

// BatchError is the error type raised by engine components.
type BatchError struct {
	// Module is the component that raised the error ("reader", "processor", "writer", "chunk", ...).
	Module string
	// Message is a short description.
	Message string
	// OriginalErr is the wrapped cause, usually one of the sentinels joined with a driver error.
	OriginalErr error
	// Item is the item the error is about, when one is known.
	Item        interface{}
	isRetryable bool
	isSkippable bool
	// StackTrace is captured when the error is created.
	StackTrace string
}

// NewBatchError creates a BatchError.
func NewBatchError(module, message string, originalErr error, isSkippable, isRetryable bool) *BatchError {
	return &BatchError{
		Module:      module,
		Message:     message,
		OriginalErr: originalErr,
		isRetryable: isRetryable,
		isSkippable: isSkippable,
		StackTrace:  captureStack(),
	}
}

// NewBatchErrorf creates a BatchError with a formatted message.
// Trailing optional arguments are consumed from the end in this order:
// [originalErr error], then [isRetryable bool], then [isSkippable bool].
//
//	NewBatchErrorf("reader", "page %d failed", 3, true, cause)
//	-> message "page 3 failed", retryable, not skippable, wrapping cause
func NewBatchErrorf(module, format string, a ...interface{}) *BatchError {
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

	return &BatchError{
		Module:      module,
		Message:     fmt.Sprintf(format, args...),
		OriginalErr: originalErr,
		isRetryable: isRetryable,
		isSkippable: isSkippable,
		StackTrace:  captureStack(),
	}
}

func captureStack() string {
	buf := make([]byte, 2048)
	n := runtime.Stack(buf, false)
	return string(buf[:n])
}

// NewSourceUnavailable wraps a backing-store failure. Retryable, not skippable.
func NewSourceUnavailable(module, message string, cause error) *BatchError {
	return NewBatchError(module, message, join(ErrSourceUnavailable, cause), false, true)
}

// NewReadError reports a failure for one read item. Skippable.
func NewReadError(module, message string, cause error) *BatchError {
	return NewBatchError(module, message, join(ErrRead, cause), true, false)
}

// NewProcessError reports a failure for one processed item. Skippable.
func NewProcessError(module, message string, cause error) *BatchError {
	return NewBatchError(module, message, join(ErrProcess, cause), true, false)
}

// NewWriteError reports a failure of a chunk write. Skippable.
func NewWriteError(module, message string, cause error) *BatchError {
	return NewBatchError(module, message, join(ErrWrite, cause), true, false)
}

// NewDirtyWorkingSetError reports a violated chunk-start precondition. Fatal.
func NewDirtyWorkingSetError(module string, pending int) *BatchError {
	return NewBatchError(module, fmt.Sprintf("expected an empty working set at chunk start, found %d pending entries", pending), ErrDirtyWorkingSet, false, false)
}

// NewVerificationMismatch reports a difference between expected and actual identities. Fatal.
func NewVerificationMismatch(module, message string) *BatchError {
	return NewBatchError(module, message, ErrVerificationMismatch, false, false)
}

// NewOptimisticLockingFailureException creates a fatal BatchError for a concurrent modification.
func NewOptimisticLockingFailureException(module, message string, originalErr error) *BatchError {
	return NewBatchError(module, message, join(ErrOptimisticLockingFailure, originalErr), false, false)
}

// WithItem attaches the item the error is about and returns e.
func (e *BatchError) WithItem(item interface{}) *BatchError {
	e.Item = item
	return e
}

// ItemOf returns the item attached to the first BatchError in err's chain that carries one.
func ItemOf(err error) (interface{}, bool) {
	for err != nil {
		var be *BatchError
		if !errors.As(err, &be) {
			return nil, false
		}
		if be.Item != nil {
			return be.Item, true
		}
		err = be.OriginalErr
	}
	return nil, false
}

func join(sentinel, cause error) error {
	if cause == nil {
		return sentinel
	}
	return errors.Join(sentinel, cause)
}

// Error implements the error interface.
func (e *BatchError) Error() string {
	if e.OriginalErr != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Module, e.Message, e.OriginalErr)
	}
	return fmt.Sprintf("[%s] %s", e.Module, e.Message)
}

// Unwrap returns the wrapped cause.
func (e *BatchError) Unwrap() error {
	return e.OriginalErr
}

// IsRetryable reports whether the error was raised as retryable.
func (e *BatchError) IsRetryable() bool {
	return e.isRetryable
}

// IsSkippable reports whether the error was raised as skippable.
func (e *BatchError) IsSkippable() bool {
	return e.isSkippable
}

// IsBatchError reports whether err is, or wraps, a *BatchError.
func IsBatchError(err error) bool {
	var be *BatchError
	return errors.As(err, &be)
}

// IsFatal reports whether err must abort the run regardless of the configured fault policy.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrDirtyWorkingSet) ||
		errors.Is(err, ErrVerificationMismatch) ||
		errors.Is(err, ErrOptimisticLockingFailure)
}

// IsSourceUnavailable reports whether err is a backing-store failure.
func IsSourceUnavailable(err error) bool {
	return err != nil && errors.Is(err, ErrSourceUnavailable)
}

// IsTemporary reports whether err looks transient. The retryable flag of a BatchError wins.
func IsTemporary(err error) bool {
	if err == nil {
		return false
	}
	var be *BatchError
	if errors.As(err, &be) {
		return be.IsRetryable()
	}
	errStr := err.Error()
	return strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "connection refused")
}

// IsErrorOfType reports whether err matches errorTypeName. It checks, in order, the registered
// sentinel (errors.Is), a substring of any message in the chain, and the Go type name in the chain.
func IsErrorOfType(err error, errorTypeName string) bool {
	if err == nil {
		return false
	}

	registryMutex.RLock()
	target, ok := errorRegistry[errorTypeName]
	registryMutex.RUnlock()
	if ok && errors.Is(err, target) {
		return true
	}

	for current := err; current != nil; current = errors.Unwrap(current) {
		if strings.Contains(current.Error(), errorTypeName) {
			return true
		}
		if errType := reflect.TypeOf(current); errType != nil {
			if errType.String() == errorTypeName || (errType.Kind() == reflect.Ptr && errType.Elem().String() == errorTypeName) {
				return true
			}
		}
	}
	return false
}

// ExtractErrorMessage returns the Message of a BatchError or the Error() string otherwise.
func ExtractErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var be *BatchError
	if errors.As(err, &be) {
		return be.Message
	}
	return err.Error()
}

func init() {
	RegisterErrorType(SourceUnavailable, ErrSourceUnavailable)
	RegisterErrorType(ReadError, ErrRead)
	RegisterErrorType(ProcessError, ErrProcess)
	RegisterErrorType(WriteError, ErrWrite)
	RegisterErrorType(DirtyWorkingSetError, ErrDirtyWorkingSet)
	RegisterErrorType(VerificationMismatch, ErrVerificationMismatch)
	RegisterErrorType(JobInstanceAlreadyComplete, ErrJobInstanceAlreadyComplete)
	RegisterErrorType(OptimisticLockingFailure, ErrOptimisticLockingFailure)

	RegisterErrorType("context.DeadlineExceeded", context.DeadlineExceeded)
	RegisterErrorType("context.Canceled", context.Canceled)
	RegisterErrorType("sql.ErrNoRows", sql.ErrNoRows)
}
