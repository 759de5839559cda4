package processor_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/chunkbatch/pkg/batch/component/step/processor"
	"github.com/tigerroll/chunkbatch/pkg/batch/support/util/exception"
)

func TestFuncProcessor(t *testing.T) {
	ctx := context.Background()
	odd := func(ctx context.Context, n int) error {
		if n%2 == 1 {
			return errors.New("odd")
		}
		return nil
	}
	p := processor.NewFuncProcessor("double", func(ctx context.Context, n int) (string, error) {
		if n == 4 {
			return "", errors.New("four")
		}
		return string(rune('a' + n)), nil
	}, odd)

	out, err := p.Process(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, "c", out)

	_, err = p.Process(ctx, 3)
	assert.ErrorIs(t, err, exception.ErrProcess)

	_, err = p.Process(ctx, 4)
	assert.ErrorIs(t, err, exception.ErrProcess)
	assert.ErrorContains(t, err, "four")
}

func TestPassThroughProcessor(t *testing.T) {
	p := processor.NewPassThroughProcessor[int]()
	out, err := p.Process(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, 7, out)
}
