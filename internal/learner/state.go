package learner

// State is the controller's position within one learning step.
type State int32

const (
	StateAwaitingBatch State = iota
	StateProcessingAgents
	StateReplying
	StateMaybeTargetSync
	StateMaybePublish
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateAwaitingBatch:
		return "awaiting_batch"
	case StateProcessingAgents:
		return "processing_agents"
	case StateReplying:
		return "replying"
	case StateMaybeTargetSync:
		return "maybe_target_sync"
	case StateMaybePublish:
		return "maybe_publish"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}
