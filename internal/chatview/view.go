package chatview

import (
	"fmt"

	"github.com/vovakirdan/wirechat-client/internal/core"
)

// State is the lifecycle phase of the displayed conversation.
type State int

const (
	// StateIdle means no conversation is selected.
	StateIdle State = iota
	// StateLoading means history for the selected conversation is pending.
	StateLoading
	// StateReady means history was applied.
	StateReady
	// StateFailed means the history request was rejected.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// View is a copy of the displayed conversation. Messages are ordered newest
// first and contain each message id once.
type View struct {
	Key      core.ConversationKey
	Active   bool
	State    State
	Loading  bool
	Messages []core.Message
	Err      error
}

// Stats counts internal bookkeeping events since the synchronizer started.
type Stats struct {
	Sessions     int
	LiveMerged   int
	InboxClaimed int
	Routed       int
	Rerouted     int
	Duplicates   int
	StaleResults int
	Malformed    int
}

// Observer is notified on the synchronizer goroutine. Implementations must
// not block and must not call back into the synchronizer synchronously.
type Observer interface {
	ViewChanged(View)
	HistoryFailed(key core.ConversationKey, err error)
}

// ObserverFuncs adapts plain functions to Observer. Nil fields are skipped.
type ObserverFuncs struct {
	OnViewChanged   func(View)
	OnHistoryFailed func(core.ConversationKey, error)
}

// ViewChanged implements Observer.
func (o ObserverFuncs) ViewChanged(v View) {
	if o.OnViewChanged != nil {
		o.OnViewChanged(v)
	}
}

// HistoryFailed implements Observer.
func (o ObserverFuncs) HistoryFailed(key core.ConversationKey, err error) {
	if o.OnHistoryFailed != nil {
		o.OnHistoryFailed(key, err)
	}
}
