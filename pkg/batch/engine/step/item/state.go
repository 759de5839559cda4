package item

// ChunkState is the position of a ChunkStep in its per-chunk state machine:
// IDLE -> READING -> PROCESSING -> WRITING -> COMMITTING -> COMMITTED | ROLLED_BACK -> IDLE.
type ChunkState int

const (
	StateIdle ChunkState = iota
	StateReading
	StateProcessing
	StateWriting
	StateCommitting
	StateCommitted
	StateRolledBack
)

func (s ChunkState) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateReading:
		return "READING"
	case StateProcessing:
		return "PROCESSING"
	case StateWriting:
		return "WRITING"
	case StateCommitting:
		return "COMMITTING"
	case StateCommitted:
		return "COMMITTED"
	case StateRolledBack:
		return "ROLLED_BACK"
	default:
		return "UNKNOWN"
	}
}
