package exception_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tigerroll/chunkbatch/pkg/batch/support/util/exception"
)

type customError struct {
	Msg string
}

func (e *customError) Error() string {
	return fmt.Sprintf("customError: %s", e.Msg)
}

func TestNewBatchError(t *testing.T) {
	cause := errors.New("db connection refused")
	be := exception.NewBatchError("db", "failed to connect", cause, false, true)

	assert.Equal(t, "db", be.Module)
	assert.Equal(t, "failed to connect", be.Message)
	assert.Equal(t, cause, be.Unwrap())
	assert.True(t, be.IsRetryable())
	assert.False(t, be.IsSkippable())
	assert.Contains(t, be.Error(), "[db] failed to connect: db connection refused")
	assert.NotEmpty(t, be.StackTrace)
}

func TestNewBatchErrorf(t *testing.T) {
	be1 := exception.NewBatchErrorf("reader", "item %d not found", 10)
	assert.False(t, be1.IsRetryable())
	assert.False(t, be1.IsSkippable())
	assert.Nil(t, be1.Unwrap())
	assert.Contains(t, be1.Error(), "[reader] item 10 not found")

	// A single trailing bool is the retryable flag.
	be2 := exception.NewBatchErrorf("net", "timeout occurred", true)
	assert.True(t, be2.IsRetryable())
	assert.False(t, be2.IsSkippable())

	be3 := exception.NewBatchErrorf("item", "data error in item %d", 5, true, false)
	assert.False(t, be3.IsRetryable())
	assert.True(t, be3.IsSkippable())
	assert.Equal(t, "data error in item 5", be3.Message)

	cause := errors.New("data format error")
	be4 := exception.NewBatchErrorf("proc", "format error", true, true, cause)
	assert.True(t, be4.IsRetryable())
	assert.True(t, be4.IsSkippable())
	assert.Equal(t, cause, be4.Unwrap())
}

func TestTaxonomyConstructors(t *testing.T) {
	cause := errors.New("disk I/O error")

	su := exception.NewSourceUnavailable("reader", "page 3", cause)
	assert.True(t, errors.Is(su, exception.ErrSourceUnavailable))
	assert.True(t, errors.Is(su, cause))
	assert.True(t, su.IsRetryable())
	assert.False(t, su.IsSkippable())
	assert.True(t, exception.IsSourceUnavailable(su))

	re := exception.NewReadError("reader", "id 15", nil)
	assert.True(t, errors.Is(re, exception.ErrRead))
	assert.True(t, re.IsSkippable())

	pe := exception.NewProcessError("processor", "id 5", nil)
	assert.True(t, errors.Is(pe, exception.ErrProcess))
	assert.False(t, exception.IsFatal(pe))

	we := exception.NewWriteError("writer", "ids 10,11,12", nil)
	assert.True(t, errors.Is(we, exception.ErrWrite))

	dirty := exception.NewDirtyWorkingSetError("reader", 2)
	assert.True(t, errors.Is(dirty, exception.ErrDirtyWorkingSet))
	assert.True(t, exception.IsFatal(dirty))
	assert.Contains(t, dirty.Error(), "found 2 pending entries")

	mismatch := exception.NewVerificationMismatch("verify", "expected [1 2] got [1]")
	assert.True(t, exception.IsFatal(fmt.Errorf("step verify: %w", mismatch)))
}

func TestNewOptimisticLockingFailureException(t *testing.T) {
	be := exception.NewOptimisticLockingFailureException("repo", "version mismatch", nil)

	assert.False(t, be.IsRetryable())
	assert.False(t, be.IsSkippable())
	assert.True(t, errors.Is(be, exception.ErrOptimisticLockingFailure))
	assert.Contains(t, be.Error(), "version mismatch")
}

func TestIsTemporary(t *testing.T) {
	retryable := exception.NewBatchError("net", "timeout", errors.New("timeout"), false, true)
	assert.True(t, exception.IsTemporary(retryable))

	skippable := exception.NewBatchError("item", "bad record", errors.New("timeout"), true, false)
	assert.False(t, exception.IsTemporary(skippable), "the BatchError flag wins over the message")

	assert.True(t, exception.IsTemporary(errors.New("connection timeout")))
	assert.False(t, exception.IsTemporary(errors.New("permission denied")))
	assert.False(t, exception.IsTemporary(nil))
}

func TestIsErrorOfType(t *testing.T) {
	exception.RegisterErrorType("customErrorType", &customError{})

	pe := exception.NewProcessError("processor", "id 7", errors.New("boom"))
	assert.True(t, exception.IsErrorOfType(pe, exception.ProcessError))
	assert.False(t, exception.IsErrorOfType(pe, exception.WriteError))

	wrapped := exception.NewBatchError("proc", "custom failure", &customError{Msg: "test"}, false, false)
	assert.True(t, exception.IsErrorOfType(wrapped, "*exception_test.customError"))
	assert.True(t, exception.IsErrorOfType(wrapped, "custom failure"))
	assert.True(t, exception.IsErrorOfType(wrapped, "customError: test"))

	deep := fmt.Errorf("level 2: %w", wrapped)
	assert.True(t, exception.IsErrorOfType(deep, "*exception_test.customError"))
	assert.False(t, exception.IsErrorOfType(deep, exception.OptimisticLockingFailure))
	assert.False(t, exception.IsErrorOfType(deep, "NonExistentError"))

	assert.False(t, exception.IsErrorOfType(nil, "any"))
}

func TestRegistry(t *testing.T) {
	assert.True(t, exception.IsErrorTypeRegistered(exception.SourceUnavailable))
	assert.True(t, exception.IsErrorTypeRegistered("context.Canceled"))
	assert.False(t, exception.IsErrorTypeRegistered("NoSuchError"))

	assert.Panics(t, func() { exception.RegisterErrorType("", errors.New("x")) })
	assert.Panics(t, func() { exception.RegisterErrorType("nilPrototype", nil) })
}

func TestExtractErrorMessage(t *testing.T) {
	assert.Equal(t, "", exception.ExtractErrorMessage(nil))
	assert.Equal(t, "short", exception.ExtractErrorMessage(exception.NewBatchError("m", "short", errors.New("long cause"), false, false)))
	assert.Equal(t, "plain", exception.ExtractErrorMessage(errors.New("plain")))
}
