package crawler

// State is a crawl loop state.
type State int

const (
	// StateIdle waits to pop the next key.
	StateIdle State = iota

	// StateFetching has at least one fetch in flight.
	StateFetching

	// StateMerging is committing a finished fetch to the store.
	StateMerging

	// StateCheckpointing is writing a checkpoint.
	StateCheckpointing

	// StateDrained means the frontier emptied with nothing in flight.
	StateDrained

	// StateCancelled means the run context was cancelled.
	StateCancelled

	// StateStopped means the cycle budget was reached.
	StateStopped
)

var stateNames = map[State]string{
	StateIdle:          "idle",
	StateFetching:      "fetching",
	StateMerging:       "merging",
	StateCheckpointing: "checkpointing",
	StateDrained:       "drained",
	StateCancelled:     "cancelled",
	StateStopped:       "stopped",
}

// String returns the lower-case state name.
func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// Terminal reports whether the loop has finished in this state.
func (s State) Terminal() bool {
	return s == StateDrained || s == StateCancelled || s == StateStopped
}
