// Package recording provides listeners that keep what a step did for later steps to check.
package recording

import (
	"context"
	"slices"
	"sync"

	"github.com/samber/lo"

	port "github.com/tigerroll/chunkbatch/pkg/batch/core/application/port"
	model "github.com/tigerroll/chunkbatch/pkg/batch/core/domain/model"
	"github.com/tigerroll/chunkbatch/pkg/batch/support/util/exception"
	"github.com/tigerroll/chunkbatch/pkg/batch/support/util/logger"
)

// SkippedItems records the ids of the items a chunk step skipped in any phase. Register it
// as both the step and the skip listener of the step: the record starts over with every
// execution of the step. Items that are not port.Identifiable are not recorded.
type SkippedItems struct {
	mu  sync.Mutex
	ids map[int64]struct{}
}

func NewSkippedItems() *SkippedItems {
	return &SkippedItems{ids: make(map[int64]struct{})}
}

// BeforeStep implements port.StepExecutionListener.
func (r *SkippedItems) BeforeStep(ctx context.Context, se *model.StepExecution) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = make(map[int64]struct{})
}

// AfterStep implements port.StepExecutionListener.
func (r *SkippedItems) AfterStep(ctx context.Context, se *model.StepExecution) {}

// OnSkipRead records the item carried by err. Read failures without an item cannot be attributed.
func (r *SkippedItems) OnSkipRead(ctx context.Context, err error) {
	item, ok := exception.ItemOf(err)
	if !ok {
		logger.Warnf("Skipped read cannot be attributed to an item: %v", err)
		return
	}
	r.add(item)
}

func (r *SkippedItems) OnSkipProcess(ctx context.Context, item interface{}, err error) {
	r.add(item)
}

func (r *SkippedItems) OnSkipWrite(ctx context.Context, items []interface{}, err error) {
	for _, item := range items {
		r.add(item)
	}
}

func (r *SkippedItems) add(item interface{}) {
	identifiable, ok := item.(port.Identifiable)
	if !ok {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids[identifiable.ItemID()] = struct{}{}
}

// IDs returns the recorded ids, sorted.
func (r *SkippedItems) IDs() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := lo.Keys(r.ids)
	slices.Sort(ids)
	return ids
}

// Survivors returns the ids of sourceIDs that were not skipped, sorted. It fits
// generic.ExpectedIDs.
func (r *SkippedItems) Survivors(sourceIDs []int64) []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := lo.Reject(sourceIDs, func(id int64, _ int) bool {
		_, skipped := r.ids[id]
		return skipped
	})
	slices.Sort(out)
	return out
}

var (
	_ port.SkipListener          = (*SkippedItems)(nil)
	_ port.StepExecutionListener = (*SkippedItems)(nil)
)
