// Package simulation injects item failures by id into the read, process and write phases
// of a chunk step.
package simulation

import (
	"context"
	"errors"
	"fmt"

	"github.com/samber/lo"

	"github.com/tigerroll/chunkbatch/pkg/batch/component/step/processor"
	"github.com/tigerroll/chunkbatch/pkg/batch/component/step/reader"
	"github.com/tigerroll/chunkbatch/pkg/batch/component/step/writer"
	"github.com/tigerroll/chunkbatch/pkg/batch/core/application/port"
	"github.com/tigerroll/chunkbatch/pkg/batch/core/config"
)

// ErrSimulated is wrapped by every injected failure.
var ErrSimulated = errors.New("simulated failure")

type idSet map[int64]struct{}

func newIDSet(ids []int64) idSet {
	return lo.SliceToMap(ids, func(id int64) (int64, struct{}) { return id, struct{}{} })
}

func (s idSet) has(id int64) bool {
	_, ok := s[id]
	return ok
}

// FaultInjector decides which items fail in which phase. It holds no global state; each
// job gets its own instance and hands its checks to the components under test.
type FaultInjector struct {
	readErrors    idSet
	processErrors idSet
	writeErrors   idSet
}

// NewFaultInjector creates an injector failing the given ids on read, process and write.
func NewFaultInjector(readErrorIDs, processErrorIDs, writeErrorIDs []int64) *FaultInjector {
	return &FaultInjector{
		readErrors:    newIDSet(readErrorIDs),
		processErrors: newIDSet(processErrorIDs),
		writeErrors:   newIDSet(writeErrorIDs),
	}
}

// NewFaultInjectorFromConfig creates an injector from the simulation section of cfg.
func NewFaultInjectorFromConfig(cfg *config.Config) *FaultInjector {
	sim := cfg.ChunkBatch.Simulation
	return NewFaultInjector(sim.ReadErrorIDs, sim.ProcessErrorIDs, sim.WriteErrorIDs)
}

// TriggerOnRead fails when id is a read fault.
func (f *FaultInjector) TriggerOnRead(id int64) error {
	if f.readErrors.has(id) {
		return fmt.Errorf("%w: READ error on item: %d", ErrSimulated, id)
	}
	return nil
}

// TriggerOnProcess fails when id is a process fault.
func (f *FaultInjector) TriggerOnProcess(id int64) error {
	if f.processErrors.has(id) {
		return fmt.Errorf("%w: PROCESS error on item: %d", ErrSimulated, id)
	}
	return nil
}

// TriggerOnWrite fails when any of ids is a write fault.
func (f *FaultInjector) TriggerOnWrite(ids []int64) error {
	if lo.ContainsBy(ids, f.writeErrors.has) {
		return fmt.Errorf("%w: WRITE error on items: %v", ErrSimulated, ids)
	}
	return nil
}

// ReadValidator returns a reader validator failing the read faults.
func ReadValidator[I port.Identifiable](f *FaultInjector) reader.ItemValidator[I] {
	return func(ctx context.Context, item I) error {
		return f.TriggerOnRead(item.ItemID())
	}
}

// ProcessCheck returns a processor check failing the process faults.
func ProcessCheck[I port.Identifiable](f *FaultInjector) processor.ItemCheck[I] {
	return func(ctx context.Context, item I) error {
		return f.TriggerOnProcess(item.ItemID())
	}
}

// WriteCheck returns a writer check failing any batch holding a write fault.
func WriteCheck[O port.Identifiable](f *FaultInjector) writer.BatchCheck[O] {
	return func(ctx context.Context, items []O) error {
		return f.TriggerOnWrite(lo.Map(items, func(it O, _ int) int64 { return it.ItemID() }))
	}
}
