package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTransitionTable(t *testing.T) {
	tests := []struct {
		from State
		act  action
		want State
		ok   bool
	}{
		{StateUnbound, actionStart, StateBinding, true},
		{StateUnbound, actionBind, StateUnbound, false},
		{StateUnbound, actionUnbind, StateUnbound, false},
		{StateUnbound, actionStop, StateStopped, true},
		{StateUnbound, actionError, StateErrorPaused, true},

		{StateBinding, actionStart, StateBinding, false},
		{StateBinding, actionBind, StateBound, true},
		{StateBinding, actionUnbind, StateBinding, false},
		{StateBinding, actionStop, StateStopped, true},
		{StateBinding, actionError, StateErrorPaused, true},

		{StateBound, actionStart, StateBound, false},
		{StateBound, actionBind, StateBound, false},
		{StateBound, actionUnbind, StateUnbound, true},
		{StateBound, actionStop, StateStopped, true},
		{StateBound, actionError, StateErrorPaused, true},

		{StateErrorPaused, actionStart, StateBinding, true},
		{StateErrorPaused, actionBind, StateErrorPaused, false},
		{StateErrorPaused, actionUnbind, StateErrorPaused, false},
		{StateErrorPaused, actionStop, StateStopped, true},
		{StateErrorPaused, actionError, StateErrorPaused, true},
	}
	for _, tt := range tests {
		got, ok := transition(tt.from, tt.act)
		assert.Equal(t, tt.ok, ok, "%s + %s", tt.from, tt.act)
		assert.Equal(t, tt.want, got, "%s + %s", tt.from, tt.act)
	}
}

func TestStoppedIsTerminal(t *testing.T) {
	for _, a := range []action{actionStart, actionBind, actionUnbind, actionStop, actionError} {
		got, ok := transition(StateStopped, a)
		assert.False(t, ok, "stopped must reject %s", a)
		assert.Equal(t, StateStopped, got)
	}
}

func TestStateStrings(t *testing.T) {
	assert.Equal(t, "UNBOUND", StateUnbound.String())
	assert.Equal(t, "BINDING", StateBinding.String())
	assert.Equal(t, "BOUND", StateBound.String())
	assert.Equal(t, "ERROR_PAUSED", StateErrorPaused.String())
	assert.Equal(t, "STOPPED", StateStopped.String())
	assert.Equal(t, "State(42)", State(42).String())
}
