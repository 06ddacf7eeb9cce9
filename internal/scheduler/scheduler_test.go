package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/vendsim/internal/state"
)

// fakeBackend answers every step with a scripted function. Steps run on tick
// goroutines, so call recording is guarded.
type fakeBackend struct {
	mu    sync.Mutex
	step  func(req StepRequest) (StepOutcome, error)
	calls []StepRequest
}

func (b *fakeBackend) Step(_ context.Context, req StepRequest) (StepOutcome, error) {
	b.mu.Lock()
	b.calls = append(b.calls, req)
	b.mu.Unlock()
	return b.step(req)
}

func progress(text string) func(StepRequest) (StepOutcome, error) {
	return func(StepRequest) (StepOutcome, error) {
		return StepOutcome{Kind: OutcomeProgress, Text: text}, nil
	}
}

func newScheduler(st *state.State, b Backend) *Scheduler {
	return New(st, b, Options{TaskFee: 150, MaxSteps: 4})
}

func TestAssignChargesFeeUpfront(t *testing.T) {
	st := state.New(1_000)
	w := st.HireWorker("Dana", state.RoleRestocker, 800)
	s := newScheduler(st, &fakeBackend{step: progress("ok")})

	e, err := s.Assign(w.ID, "refill slot 0")
	require.NoError(t, err)

	assert.Equal(t, state.Cents(850), st.Balance)
	assert.Equal(t, state.Cents(150), w.TotalCostPaid)
	assert.Equal(t, state.ExecRunning, e.Status)
	require.Len(t, st.Ledger, 1)
	assert.Equal(t, state.TxTaskFee, st.Ledger[0].Kind)
}

func TestAssignRejections(t *testing.T) {
	st := state.New(1_000)
	w := st.HireWorker("Dana", state.RoleRestocker, 800)
	s := newScheduler(st, &fakeBackend{step: progress("ok")})

	_, err := s.Assign("ghost", "anything")
	var ve *state.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "UNKNOWN_WORKER", ve.Code)

	_, err = s.Assign(w.ID, "first task")
	require.NoError(t, err)
	_, err = s.Assign(w.ID, "second task")
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "DUPLICATE_ASSIGNMENT", ve.Code)

	require.NoError(t, st.FireWorker(w.ID))
	_, err = s.Assign(w.ID, "third task")
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "INACTIVE_WORKER", ve.Code)
}

func TestAssignRejectsWhenFeeUncovered(t *testing.T) {
	st := state.New(100) // below the 150 fee
	w := st.HireWorker("Dana", state.RoleRestocker, 800)
	s := newScheduler(st, &fakeBackend{step: progress("ok")})

	_, err := s.Assign(w.ID, "refill slot 0")
	var funds *state.InsufficientFundsError
	require.ErrorAs(t, err, &funds)
	assert.Empty(t, st.Executions, "no execution on a rejected fee")
	assert.Equal(t, state.Cents(100), st.Balance)
}

func TestTickRecordsProgressSteps(t *testing.T) {
	st := state.New(1_000)
	w := st.HireWorker("Dana", state.RoleRestocker, 800)
	b := &fakeBackend{step: progress("checked storage")}
	s := newScheduler(st, b)

	e, err := s.Assign(w.ID, "refill slot 0")
	require.NoError(t, err)

	s.Tick(context.Background())

	require.Len(t, e.Steps, 1)
	assert.Equal(t, "refill slot 0", e.Steps[0].Input, "first step gets the task verbatim")
	assert.Equal(t, "checked storage", e.Steps[0].Output)
	assert.Equal(t, state.ExecRunning, e.Status)

	s.Tick(context.Background())
	require.Len(t, e.Steps, 2)
	assert.Equal(t, "Continue working on your task.", e.Steps[1].Input)
	assert.Equal(t, 1, b.calls[1].StepIndex)
}

func TestTickCompletesOnResult(t *testing.T) {
	st := state.New(1_000)
	w := st.HireWorker("Dana", state.RoleAnalyst, 800)
	b := &fakeBackend{step: func(StepRequest) (StepOutcome, error) {
		return StepOutcome{Kind: OutcomeResult, Text: "prices reviewed, all sane"}, nil
	}}
	s := newScheduler(st, b)

	_, err := s.Assign(w.ID, "review prices")
	require.NoError(t, err)
	s.Tick(context.Background())

	assert.Empty(t, st.Executions, "completed executions are archived")
	require.Len(t, st.TaskHistory, 1)
	assert.Equal(t, state.ExecCompleted, st.TaskHistory[0].Status)
	assert.Equal(t, "prices reviewed, all sane", st.TaskHistory[0].Result)
	assert.Equal(t, 1, w.TasksCompleted)
}

func TestTickFailsOnBackendError(t *testing.T) {
	st := state.New(1_000)
	w := st.HireWorker("Dana", state.RoleClerk, 800)
	b := &fakeBackend{step: func(StepRequest) (StepOutcome, error) {
		return StepOutcome{}, errors.New("model unavailable")
	}}
	s := newScheduler(st, b)

	_, err := s.Assign(w.ID, "email the supplier")
	require.NoError(t, err)
	s.Tick(context.Background())

	require.Len(t, st.TaskHistory, 1)
	assert.Equal(t, state.ExecFailed, st.TaskHistory[0].Status)
	assert.Equal(t, "model unavailable", st.TaskHistory[0].Result)
	// The task fee is not refunded.
	assert.Equal(t, state.Cents(850), st.Balance)
}

func TestTickFailsOnApprovalWithoutRequest(t *testing.T) {
	st := state.New(1_000)
	w := st.HireWorker("Dana", state.RoleClerk, 800)
	b := &fakeBackend{step: func(StepRequest) (StepOutcome, error) {
		return StepOutcome{Kind: OutcomeApproval}, nil
	}}
	s := newScheduler(st, b)

	_, err := s.Assign(w.ID, "order more cans")
	require.NoError(t, err)
	s.Tick(context.Background())

	assert.Empty(t, st.Executions)
	require.Len(t, st.TaskHistory, 1)
	assert.Equal(t, state.ExecFailed, st.TaskHistory[0].Status)
	assert.Contains(t, st.TaskHistory[0].Result, "without a request payload")

	// The worker is free again and the next tick never runs for the dead
	// execution.
	_, err = s.Assign(w.ID, "try again")
	require.NoError(t, err)
}

func TestStepBudgetExhaustion(t *testing.T) {
	st := state.New(1_000)
	w := st.HireWorker("Dana", state.RoleRestocker, 800)
	s := newScheduler(st, &fakeBackend{step: progress("still going")})

	_, err := s.Assign(w.ID, "refill slot 0")
	require.NoError(t, err)

	for i := 0; i < 6; i++ {
		s.Tick(context.Background())
	}

	require.Len(t, st.TaskHistory, 1)
	done := st.TaskHistory[0]
	assert.Equal(t, state.ExecCompleted, done.Status)
	assert.Equal(t, 4, done.Steps, "budget caps at MaxSteps")
	assert.Contains(t, done.Result, "step budget exhausted")
}

func TestApprovalRoundTrip(t *testing.T) {
	st := state.New(1_000)
	w := st.HireWorker("Dana", state.RoleRestocker, 800)

	asked := false
	b := &fakeBackend{}
	b.step = func(req StepRequest) (StepOutcome, error) {
		if !asked {
			asked = true
			return StepOutcome{Kind: OutcomeApproval, Approval: &state.ApprovalRequest{
				Kind:        "payment",
				Description: "buy 24 cola cans for $14.40",
				Amount:      1_440,
			}}, nil
		}
		return StepOutcome{Kind: OutcomeResult, Text: "order placed"}, nil
	}
	s := newScheduler(st, b)

	e, err := s.Assign(w.ID, "restock cola")
	require.NoError(t, err)

	s.Tick(context.Background())
	assert.Equal(t, state.ExecWaitingApproval, e.Status)
	require.NotNil(t, e.Pending)
	assert.False(t, e.Pending.RequestedAt.IsZero())

	// Waiting executions are skipped by ticks.
	calls := len(b.calls)
	s.Tick(context.Background())
	assert.Len(t, b.calls, calls)

	require.NoError(t, s.Approve(e.ID, "go ahead"))
	assert.Equal(t, state.ExecRunning, e.Status)
	assert.Nil(t, e.Pending)
	assert.Contains(t, e.Feedback, "APPROVED")
	assert.Contains(t, e.Feedback, "go ahead")

	// The resumed step sees the verdict in its prompt, exactly once.
	s.Tick(context.Background())
	last := b.calls[len(b.calls)-1]
	assert.Contains(t, last.Prompt, "APPROVED")
	assert.Empty(t, st.Executions)
	assert.Equal(t, "order placed", st.TaskHistory[0].Result)
}

func TestDenyResumesExecution(t *testing.T) {
	st := state.New(1_000)
	w := st.HireWorker("Dana", state.RoleClerk, 800)

	b := &fakeBackend{}
	b.step = func(req StepRequest) (StepOutcome, error) {
		if req.StepIndex == 0 && req.Prompt == "negotiate a bulk discount" {
			return StepOutcome{Kind: OutcomeApproval, Approval: &state.ApprovalRequest{
				Kind: "payment", Description: "prepay $50", Amount: 5_000,
			}}, nil
		}
		return StepOutcome{Kind: OutcomeResult, Text: "closed out without prepaying"}, nil
	}
	s := newScheduler(st, b)

	e, err := s.Assign(w.ID, "negotiate a bulk discount")
	require.NoError(t, err)
	s.Tick(context.Background())
	require.Equal(t, state.ExecWaitingApproval, e.Status)

	require.NoError(t, s.Deny(e.ID, "too rich for us"))
	assert.Equal(t, state.ExecRunning, e.Status)
	assert.Contains(t, e.Feedback, "DENIED")

	s.Tick(context.Background())
	assert.Equal(t, "closed out without prepaying", st.TaskHistory[0].Result)
}

func TestDecideRequiresWaitingStatus(t *testing.T) {
	st := state.New(1_000)
	w := st.HireWorker("Dana", state.RoleRestocker, 800)
	s := newScheduler(st, &fakeBackend{step: progress("ok")})

	e, err := s.Assign(w.ID, "refill slot 0")
	require.NoError(t, err)

	var ve *state.ValidationError
	require.ErrorAs(t, s.Approve(e.ID, ""), &ve)
	assert.Equal(t, "NOT_WAITING", ve.Code)
	require.ErrorAs(t, s.Approve("ghost", ""), &ve)
	assert.Equal(t, "UNKNOWN_EXECUTION", ve.Code)
}

func TestFinalizeAtPeriodBoundary(t *testing.T) {
	st := state.New(2_000)
	w1 := st.HireWorker("Dana", state.RoleRestocker, 800)
	w2 := st.HireWorker("Riley", state.RoleClerk, 800)

	b := &fakeBackend{}
	b.step = func(req StepRequest) (StepOutcome, error) {
		if req.Task == "restock" {
			return StepOutcome{Kind: OutcomeApproval, Approval: &state.ApprovalRequest{
				Kind: "payment", Description: "spend", Amount: 900,
			}}, nil
		}
		return StepOutcome{Kind: OutcomeProgress, Text: "working"}, nil
	}
	s := newScheduler(st, b)

	_, err := s.Assign(w1.ID, "restock")
	require.NoError(t, err)
	_, err = s.Assign(w2.ID, "write mail")
	require.NoError(t, err)
	s.Tick(context.Background())

	cut := s.FinalizeAtPeriodBoundary()
	assert.Equal(t, 2, cut)
	assert.Empty(t, st.Executions)
	require.Len(t, st.TaskHistory, 2)
	for _, done := range st.TaskHistory {
		assert.Equal(t, state.ExecCompleted, done.Status)
		assert.Contains(t, done.Result, "ended at period boundary")
	}

	// Both workers are free for fresh assignments.
	_, err = s.Assign(w1.ID, "restock again")
	require.NoError(t, err)
}

func TestStaleApprovalSweep(t *testing.T) {
	st := state.New(1_000)
	w := st.HireWorker("Dana", state.RoleRestocker, 800)

	b := &fakeBackend{}
	b.step = func(req StepRequest) (StepOutcome, error) {
		if req.StepIndex == 0 && req.Prompt == "restock cola" {
			return StepOutcome{Kind: OutcomeApproval, Approval: &state.ApprovalRequest{
				Kind: "payment", Description: "spend", Amount: 900,
			}}, nil
		}
		return StepOutcome{Kind: OutcomeResult, Text: "wrapped up"}, nil
	}
	s := New(st, b, Options{TaskFee: 150, MaxSteps: 4, ApprovalTimeout: time.Minute})

	e, err := s.Assign(w.ID, "restock cola")
	require.NoError(t, err)
	s.Tick(context.Background())
	require.Equal(t, state.ExecWaitingApproval, e.Status)

	// Not stale yet: the sweep leaves it alone.
	s.Tick(context.Background())
	assert.Equal(t, state.ExecWaitingApproval, e.Status)

	// Backdate the request past the timeout; the next tick auto-denies and
	// the resumed step runs in the same tick.
	e.Pending.RequestedAt = time.Now().UTC().Add(-2 * time.Minute)
	s.Tick(context.Background())
	require.Len(t, st.TaskHistory, 1)
	assert.Equal(t, "wrapped up", st.TaskHistory[0].Result)
}

func TestRoleProfiles(t *testing.T) {
	p := ProfileFor(state.RoleRestocker)
	assert.True(t, p.Allows(CapRestock))
	assert.True(t, p.Allows(CapCollect))
	assert.False(t, p.Allows(CapSendMail))

	p = ProfileFor(state.RoleClerk)
	assert.True(t, p.Allows(CapSendMail))
	assert.True(t, p.Allows(CapPayment))
	assert.False(t, p.Allows(CapRestock))

	p = ProfileFor(state.RoleAnalyst)
	assert.True(t, p.Allows(CapSetPrice))
	assert.Positive(t, p.ApprovalThreshold)
}
