package tx_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tigerroll/chunkbatch/pkg/batch/core/tx"
	testutil "github.com/tigerroll/chunkbatch/pkg/batch/test"
)

func TestTxContextRoundTrip(t *testing.T) {
	_, ok := tx.FromContext(context.Background())
	assert.False(t, ok)

	mockTx := &testutil.MockTx{}
	ctx := tx.WithTx(context.Background(), mockTx)

	got, ok := tx.FromContext(ctx)
	assert.True(t, ok)
	assert.Same(t, mockTx, got)
}
