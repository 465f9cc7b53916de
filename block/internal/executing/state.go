package executing

// State is the phase of the execute-settle loop.
type State int32

const (
	StateIdle State = iota
	StateAwaitingExecutionResult
	StateCheckpointingHeight
	StateSettlingIfEnabled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingExecutionResult:
		return "awaiting_execution_result"
	case StateCheckpointingHeight:
		return "checkpointing_height"
	case StateSettlingIfEnabled:
		return "settling_if_enabled"
	default:
		return "unknown"
	}
}
