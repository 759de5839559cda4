// Package processor provides ItemProcessor implementations built from plain functions.
package processor

import (
	"context"
	"fmt"

	"github.com/tigerroll/chunkbatch/pkg/batch/core/application/port"
	"github.com/tigerroll/chunkbatch/pkg/batch/support/util/exception"
	"github.com/tigerroll/chunkbatch/pkg/batch/support/util/logger"
)

const moduleName = "processor"

// ItemCheck inspects an item before it is transformed. A non-nil error fails that item.
type ItemCheck[I any] func(ctx context.Context, item I) error

// FuncProcessor runs its checks and then fn on every item. Any failure is returned as a
// ProcessError for that item alone.
type FuncProcessor[I, O any] struct {
	name   string
	fn     func(ctx context.Context, item I) (O, error)
	checks []ItemCheck[I]
}

// NewFuncProcessor creates a processor named name.
func NewFuncProcessor[I, O any](name string, fn func(ctx context.Context, item I) (O, error), checks ...ItemCheck[I]) *FuncProcessor[I, O] {
	return &FuncProcessor[I, O]{name: name, fn: fn, checks: checks}
}

// Process implements port.ItemProcessor.
func (p *FuncProcessor[I, O]) Process(ctx context.Context, item I) (O, error) {
	logger.Infof("  [PROCESS] item: %v", item)
	var zero O
	for _, check := range p.checks {
		if err := check(ctx, item); err != nil {
			return zero, exception.NewProcessError(moduleName, fmt.Sprintf("processor '%s' rejected item %v", p.name, item), err)
		}
	}
	out, err := p.fn(ctx, item)
	if err != nil {
		if exception.IsErrorOfType(err, exception.ProcessError) {
			return zero, err
		}
		return zero, exception.NewProcessError(moduleName, fmt.Sprintf("processor '%s' failed on item %v", p.name, item), err)
	}
	return out, nil
}

// NewPassThroughProcessor returns a processor handing every item on unchanged.
func NewPassThroughProcessor[T any](checks ...ItemCheck[T]) *FuncProcessor[T, T] {
	return NewFuncProcessor("passThrough", func(ctx context.Context, item T) (T, error) {
		return item, nil
	}, checks...)
}

var _ port.ItemProcessor[any, any] = (*FuncProcessor[any, any])(nil)
