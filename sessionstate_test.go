package ensemble

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionStateMachineStartsConnecting(t *testing.T) {
	m := newSessionStateMachine()
	assert.Equal(t, StateConnecting, m.Current())
}

func TestSessionStateMachineAllowedTransition(t *testing.T) {
	m := newSessionStateMachine()
	require.NoError(t, m.Transition(StateConnected))
	assert.Equal(t, StateConnected, m.Current())
}

func TestSessionStateMachineRejectsIllegalTransition(t *testing.T) {
	m := newSessionStateMachine()
	require.NoError(t, m.Transition(StateConnected))
	err := m.Transition(StateReadOnly)
	assert.Error(t, err, "connected -> read_only is not in the allowed table")
}

func TestSessionStateMachineTerminalNeverTransitionsAgain(t *testing.T) {
	m := newSessionStateMachine()
	require.NoError(t, m.Transition(StateClosed))
	assert.True(t, m.Current().Terminal())
	assert.Error(t, m.Transition(StateConnecting))
}

func TestSessionStateMachineSubscribeDeliversNextTransition(t *testing.T) {
	m := newSessionStateMachine()
	ch := m.Subscribe()
	require.NoError(t, m.Transition(StateConnected))
	got, ok := <-ch
	require.True(t, ok)
	assert.Equal(t, StateConnected, got)
}

func TestSessionStateMachineSubscribeOnTerminalReturnsImmediately(t *testing.T) {
	m := newSessionStateMachine()
	require.NoError(t, m.Transition(StateExpiredSession))
	ch := m.Subscribe()
	got, ok := <-ch
	require.True(t, ok)
	assert.Equal(t, StateExpiredSession, got)
}

func TestSessionStateStringAndTerminal(t *testing.T) {
	assert.Equal(t, "connecting", StateConnecting.String())
	assert.Equal(t, "read_only", StateReadOnly.String())
	assert.True(t, StateAuthFailed.Terminal())
	assert.False(t, StateReadOnly.Terminal())
}
