package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHireAndFire(t *testing.T) {
	st := New(0)
	st.Period = 4
	w := st.HireWorker("Dana", RoleRestocker, 800)

	require.NotEmpty(t, w.ID)
	assert.True(t, w.Active)
	assert.Equal(t, 4, w.HiredAtPeriod)

	st.Period = 7
	require.NoError(t, st.FireWorker(w.ID))
	assert.False(t, w.Active)
	require.NotNil(t, w.FiredAtPeriod)
	assert.Equal(t, 7, *w.FiredAtPeriod)

	// Firing twice is rejected.
	assert.Equal(t, "INACTIVE_WORKER", validationCode(t, st.FireWorker(w.ID)))
	// As is firing nobody.
	assert.Equal(t, "UNKNOWN_WORKER", validationCode(t, st.FireWorker("ghost")))
}

func TestActiveExecutionFor(t *testing.T) {
	st := New(0)
	w := st.HireWorker("Dana", RoleAnalyst, 800)
	assert.Nil(t, st.ActiveExecutionFor(w.ID))

	e := st.NewExecution(w.ID, "review prices", 8)
	assert.Same(t, e, st.ActiveExecutionFor(w.ID))

	e.Status = ExecCompleted
	assert.Nil(t, st.ActiveExecutionFor(w.ID))
}

func TestArchiveExecution(t *testing.T) {
	st := New(0)
	w := st.HireWorker("Dana", RoleClerk, 800)
	e := st.NewExecution(w.ID, "email the supplier", 8)

	// Live executions cannot be archived.
	var inv *InvariantViolation
	require.ErrorAs(t, st.ArchiveExecution(e), &inv)

	e.Status = ExecCompleted
	e.Result = "supplier emailed"
	require.NoError(t, st.ArchiveExecution(e))

	assert.Empty(t, st.Executions)
	require.Len(t, st.TaskHistory, 1)
	assert.Equal(t, e.ID, st.TaskHistory[0].ExecutionID)
	assert.Equal(t, "supplier emailed", st.TaskHistory[0].Result)
	assert.Equal(t, 1, w.TasksCompleted)
}
