package tests

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/alkonosst/StateForge"
)

// Step is one dispatch and what the machine must report after it.
type Step[S, E comparable] struct {
	Event  E
	Result stateforge.Result
	State  S
}

// Run dispatches each step in order and stops the test at the first mismatch.
func Run[S, E comparable](t testing.TB, sm *stateforge.Machine[S, E], steps ...Step[S, E]) {
	t.Helper()
	for i, step := range steps {
		result := sm.Dispatch(step.Event)
		require.Equalf(t, step.Result, result, "step %d: result of %v", i, step.Event)
		require.Equalf(t, step.State, sm.State(), "step %d: state after %v", i, step.Event)
	}
}
