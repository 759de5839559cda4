package model

// BatchStatus is the lifecycle state of a job or step execution.
type BatchStatus string

const (
	BatchStatusStarting  BatchStatus = "STARTING"
	BatchStatusStarted   BatchStatus = "STARTED"
	BatchStatusCompleted BatchStatus = "COMPLETED"
	BatchStatusFailed    BatchStatus = "FAILED"
	BatchStatusAbandoned BatchStatus = "ABANDONED"
)

// String implements fmt.Stringer.
func (s BatchStatus) String() string {
	return string(s)
}

// IsFinished reports whether s is terminal.
func (s BatchStatus) IsFinished() bool {
	switch s {
	case BatchStatusCompleted, BatchStatusFailed, BatchStatusAbandoned:
		return true
	default:
		return false
	}
}

// ExitStatus refines a terminal BatchStatus for reporting.
type ExitStatus string

const (
	ExitStatusUnknown   ExitStatus = "UNKNOWN"
	ExitStatusExecuting ExitStatus = "EXECUTING"
	ExitStatusCompleted ExitStatus = "COMPLETED"
	// ExitStatusCompletedWithSkips marks a successful execution that tolerated item failures.
	ExitStatusCompletedWithSkips ExitStatus = "COMPLETED_WITH_SKIPS"
	// ExitStatusNoop marks a step that was not re-executed because it had already completed.
	ExitStatusNoop   ExitStatus = "NOOP"
	ExitStatusFailed ExitStatus = "FAILED"
)

// String implements fmt.Stringer.
func (s ExitStatus) String() string {
	return string(s)
}

// isValidTransition encodes the allowed status moves for both job and step executions.
func isValidTransition(current, next BatchStatus) bool {
	switch current {
	case BatchStatusStarting:
		return next == BatchStatusStarted || next == BatchStatusFailed || next == BatchStatusAbandoned
	case BatchStatusStarted:
		return next == BatchStatusCompleted || next == BatchStatusFailed || next == BatchStatusAbandoned
	case BatchStatusFailed:
		// A failed execution is abandoned when its instance is relaunched.
		return next == BatchStatusAbandoned
	default:
		return false
	}
}
