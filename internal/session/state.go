package session

import "fmt"

// State is the mutually exclusive lifecycle phase of a session. A session
// owns exactly one State at a time and transitions are atomic with respect
// to readers.
type State int

const (
	// StateUnbound means no syncing is taking place; the local store handle
	// and credentials are retained for a later start.
	StateUnbound State = iota
	// StateBinding means credentials are being exchanged and the remote
	// binding negotiated.
	StateBinding
	// StateBound means the session identifier was accepted; changesets flow
	// in both directions.
	StateBound
	// StateErrorPaused means an error stopped syncing. Recoverable errors
	// resume once new credentials or tokens are supplied; fatal ones require
	// an explicit restart with a fresh configuration.
	StateErrorPaused
	// StateStopped is terminal. All native resources have been released.
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateUnbound:
		return "UNBOUND"
	case StateBinding:
		return "BINDING"
	case StateBound:
		return "BOUND"
	case StateErrorPaused:
		return "ERROR_PAUSED"
	case StateStopped:
		return "STOPPED"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// action is an input to the state machine.
type action int

const (
	actionStart action = iota
	actionBind
	actionUnbind
	actionStop
	actionError
)

func (a action) String() string {
	switch a {
	case actionStart:
		return "start"
	case actionBind:
		return "bind"
	case actionUnbind:
		return "unbind"
	case actionStop:
		return "stop"
	case actionError:
		return "error"
	default:
		return fmt.Sprintf("action(%d)", int(a))
	}
}

// transition returns the state reached by applying an action, and whether the
// action is permitted in the current state. Stopped is terminal: nothing
// leaves it.
func transition(s State, a action) (State, bool) {
	if s == StateStopped {
		return s, false
	}
	switch a {
	case actionStart:
		if s == StateUnbound || s == StateErrorPaused {
			return StateBinding, true
		}
	case actionBind:
		if s == StateBinding {
			return StateBound, true
		}
	case actionUnbind:
		if s == StateBound {
			return StateUnbound, true
		}
	case actionStop:
		return StateStopped, true
	case actionError:
		// Fatal and recoverable errors both pause; Info never reaches the
		// state machine.
		return StateErrorPaused, true
	}
	return s, false
}
