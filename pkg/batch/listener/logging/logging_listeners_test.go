package logging_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"

	model "github.com/tigerroll/chunkbatch/pkg/batch/core/domain/model"
	"github.com/tigerroll/chunkbatch/pkg/batch/listener/logging"
	logger "github.com/tigerroll/chunkbatch/pkg/batch/support/util/logger"
)

func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	buf := &bytes.Buffer{}
	logger.SetOutput(buf)
	logger.SetLogLevel("INFO")
	t.Cleanup(func() {
		logger.SetOutput(os.Stderr)
	})
	return buf
}

func TestLoggingChunkListener(t *testing.T) {
	buf := captureOutput(t)
	l := logging.NewLoggingChunkListener()
	se := model.NewStepExecution("copyCustomer")

	l.BeforeChunk(context.Background(), se)
	l.AfterChunk(context.Background(), se)
	l.AfterChunkError(context.Background(), se, errors.New("simulated failure: WRITE error on items: [10 11 12]"))

	out := buf.String()
	assert.Contains(t, out, "Starting chunk (transaction started)")
	assert.Contains(t, out, "Chunk OK (transaction committed)")
	assert.Contains(t, out, "Chunk FAILED (transaction rolled back)")
	assert.Contains(t, out, "WRITE error on items: [10 11 12]")
}

func TestLoggingJobAndSkipListeners(t *testing.T) {
	buf := captureOutput(t)
	ctx := context.Background()

	je := model.NewJobExecution("instance", "customerCopyJob", model.NewJobParameters())
	jl := logging.NewLoggingJobListener()
	jl.BeforeJob(ctx, je)
	je.MarkAsStarted()
	je.MarkAsFailed(errors.New("verify failed"))
	jl.AfterJob(ctx, je)

	sl := logging.NewLoggingSkipListener()
	sl.OnSkipWrite(ctx, []interface{}{10, 11, 12}, errors.New("boom"))

	out := buf.String()
	assert.Contains(t, out, "BeforeJob - JobName: customerCopyJob")
	assert.Contains(t, out, "Status: FAILED")
	assert.Contains(t, out, "Failure: verify failed")
	assert.Contains(t, out, "Skipping 3 items")
}
