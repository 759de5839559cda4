package simulation_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/chunkbatch/pkg/batch/component/simulation"
	"github.com/tigerroll/chunkbatch/pkg/batch/component/step/processor"
	"github.com/tigerroll/chunkbatch/pkg/batch/core/config"
	"github.com/tigerroll/chunkbatch/pkg/batch/support/util/exception"
)

type row struct{ ID int64 }

func (r row) ItemID() int64 { return r.ID }

func newScenarioInjector() *simulation.FaultInjector {
	return simulation.NewFaultInjector([]int64{15}, []int64{5, 7, 8, 9}, []int64{10, 11, 12})
}

func TestFaultInjector_Triggers(t *testing.T) {
	f := newScenarioInjector()

	assert.NoError(t, f.TriggerOnRead(14))
	err := f.TriggerOnRead(15)
	require.Error(t, err)
	assert.ErrorIs(t, err, simulation.ErrSimulated)
	assert.Contains(t, err.Error(), "READ error on item: 15")

	assert.NoError(t, f.TriggerOnProcess(6))
	assert.ErrorIs(t, f.TriggerOnProcess(5), simulation.ErrSimulated)

	assert.NoError(t, f.TriggerOnWrite([]int64{13, 14}))
	err = f.TriggerOnWrite([]int64{4, 10})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "[4 10]")
}

func TestFaultInjector_FromConfig(t *testing.T) {
	cfg := config.NewConfig()
	cfg.ChunkBatch.Simulation.ProcessErrorIDs = []int64{3}

	f := simulation.NewFaultInjectorFromConfig(cfg)
	assert.Error(t, f.TriggerOnProcess(3))
	assert.NoError(t, f.TriggerOnRead(3))
	assert.NoError(t, f.TriggerOnWrite([]int64{3}))
}

func TestFaultInjector_ComponentChecks(t *testing.T) {
	ctx := context.Background()
	f := newScenarioInjector()

	read := simulation.ReadValidator[row](f)
	assert.NoError(t, read(ctx, row{ID: 1}))
	assert.Error(t, read(ctx, row{ID: 15}))

	p := processor.NewPassThroughProcessor(simulation.ProcessCheck[row](f))
	_, err := p.Process(ctx, row{ID: 7})
	require.Error(t, err)
	assert.True(t, exception.IsErrorOfType(err, exception.ProcessError))
	out, err := p.Process(ctx, row{ID: 6})
	require.NoError(t, err)
	assert.Equal(t, int64(6), out.ID)

	write := simulation.WriteCheck[row](f)
	assert.NoError(t, write(ctx, []row{{ID: 13}, {ID: 14}}))
	assert.Error(t, write(ctx, []row{{ID: 10}, {ID: 11}, {ID: 12}}))
}
