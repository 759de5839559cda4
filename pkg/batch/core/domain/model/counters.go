package model

import "fmt"

// ExecutionCounters are the per-step item and transaction counters.
// Only the chunk executor mutates them; everything else reads copies.
type ExecutionCounters struct {
	ItemsRead             int
	ItemsSkippedOnRead    int
	ItemsProcessed        int
	ItemsSkippedOnProcess int
	ItemsWritten          int
	ItemsSkippedOnWrite   int
	CommitCount           int
	RollbackCount         int
}

// TotalSkipped is the sum of the three skip counters.
func (c ExecutionCounters) TotalSkipped() int {
	return c.ItemsSkippedOnRead + c.ItemsSkippedOnProcess + c.ItemsSkippedOnWrite
}

// TotalSeen is every item the reader delivered or failed on.
func (c ExecutionCounters) TotalSeen() int {
	return c.ItemsRead + c.ItemsSkippedOnRead
}

// Add returns the field-wise sum of c and o.
func (c ExecutionCounters) Add(o ExecutionCounters) ExecutionCounters {
	return ExecutionCounters{
		ItemsRead:             c.ItemsRead + o.ItemsRead,
		ItemsSkippedOnRead:    c.ItemsSkippedOnRead + o.ItemsSkippedOnRead,
		ItemsProcessed:        c.ItemsProcessed + o.ItemsProcessed,
		ItemsSkippedOnProcess: c.ItemsSkippedOnProcess + o.ItemsSkippedOnProcess,
		ItemsWritten:          c.ItemsWritten + o.ItemsWritten,
		ItemsSkippedOnWrite:   c.ItemsSkippedOnWrite + o.ItemsSkippedOnWrite,
		CommitCount:           c.CommitCount + o.CommitCount,
		RollbackCount:         c.RollbackCount + o.RollbackCount,
	}
}

// String implements fmt.Stringer.
func (c ExecutionCounters) String() string {
	return fmt.Sprintf("read=%d readSkip=%d processed=%d processSkip=%d written=%d writeSkip=%d commits=%d rollbacks=%d",
		c.ItemsRead, c.ItemsSkippedOnRead, c.ItemsProcessed, c.ItemsSkippedOnProcess,
		c.ItemsWritten, c.ItemsSkippedOnWrite, c.CommitCount, c.RollbackCount)
}
