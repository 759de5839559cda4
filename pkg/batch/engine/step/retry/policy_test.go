package retry_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/chunkbatch/pkg/batch/engine/step/retry"
	"github.com/tigerroll/chunkbatch/pkg/batch/support/util/exception"
)

func TestNeverRetry(t *testing.T) {
	p := retry.NewNeverRetry()
	assert.False(t, p.ShouldRetry(exception.NewSourceUnavailable("reader", "page 0", nil), 1))
	assert.Equal(t, 1, p.GetMaxAttempts())
}

func TestSimpleRetryPolicy(t *testing.T) {
	p := retry.NewSimpleRetryPolicy(3, 50*time.Millisecond, []string{exception.WriteError})

	unavailable := exception.NewSourceUnavailable("reader", "page 0", errors.New("connection refused"))
	assert.True(t, p.ShouldRetry(unavailable, 1))
	assert.True(t, p.ShouldRetry(unavailable, 2))
	assert.False(t, p.ShouldRetry(unavailable, 3), "third failed attempt exhausts the policy")

	assert.True(t, p.ShouldRetry(exception.NewWriteError("writer", "batch", nil), 1), "configured name")
	assert.False(t, p.ShouldRetry(exception.NewProcessError("processor", "id 5", nil), 1))
	assert.False(t, p.ShouldRetry(nil, 0))

	assert.Equal(t, 50*time.Millisecond, p.GetBackoffInterval(2))
}

func TestDefaultRetryPolicyFactory(t *testing.T) {
	f := retry.NewDefaultRetryPolicyFactory()

	p, err := f.Create("", 1, 0, nil)
	require.NoError(t, err)
	assert.IsType(t, &retry.NeverRetry{}, p)

	p, err = f.Create("", 3, time.Second, []string{exception.SourceUnavailable})
	require.NoError(t, err)
	assert.Equal(t, 3, p.GetMaxAttempts())

	_, err = f.Create("simple", 0, 0, nil)
	assert.Error(t, err)

	_, err = f.Create("simple", 2, 0, []string{"NoSuchError"})
	assert.Error(t, err)

	_, err = f.Create("exponential", 2, 0, nil)
	assert.Error(t, err)
}
