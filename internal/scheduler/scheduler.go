package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/talgya/vendsim/internal/state"
)

// OutcomeKind classifies what a sub-agent step produced.
type OutcomeKind uint8

const (
	// OutcomeProgress means the step did work but the task continues.
	OutcomeProgress OutcomeKind = iota
	// OutcomeResult means the step produced a terminal textual result.
	OutcomeResult
	// OutcomeApproval means the step requests a gated action.
	OutcomeApproval
)

// StepRequest carries everything a backend needs to advance one execution by
// one unit of work.
type StepRequest struct {
	ExecutionID string
	Role        state.Role
	Task        string
	StepIndex   int
	Prompt      string       // opening instruction or continuation cue
	History     []state.Step // prior steps, oldest first
}

// StepOutcome is the backend's answer for one step.
type StepOutcome struct {
	Kind     OutcomeKind
	Text     string
	Approval *state.ApprovalRequest // set when Kind is OutcomeApproval
}

// Backend is the language-model contract for sub-agent steps. It may fail at
// any call; the scheduler converts failures into failed executions and never
// lets them escape.
type Backend interface {
	Step(ctx context.Context, req StepRequest) (StepOutcome, error)
}

// Options configure a scheduler.
type Options struct {
	// TaskFee is charged per assignment, win or lose.
	TaskFee state.Cents
	// MaxSteps bounds each execution's step budget.
	MaxSteps int
	// TickTimeout caps one backend call during a tick. Zero disables.
	TickTimeout time.Duration
	// ApprovalTimeout auto-denies approvals left pending longer than this.
	// Zero (the default) disables the sweep: a pending approval blocks its
	// worker until the principal decides or a period boundary cuts it off.
	ApprovalTimeout time.Duration
}

// Scheduler steps delegate worker executions cooperatively. It never runs
// concurrently with the period advancer or itself — the orchestrator
// serializes all entry points.
type Scheduler struct {
	st      *state.State
	backend Backend
	opts    Options
}

// New creates a scheduler over the aggregate.
func New(st *state.State, backend Backend, opts Options) *Scheduler {
	return &Scheduler{st: st, backend: backend, opts: opts}
}

// Assign creates a running execution for a worker. The task fee is charged
// immediately and is not refunded if the task later fails. Fails without
// mutating state when the worker is inactive, already executing, or the fee
// cannot be covered.
func (s *Scheduler) Assign(workerID, task string) (*state.Execution, error) {
	w, err := s.st.FindWorker(workerID)
	if err != nil {
		return nil, err
	}
	if !w.Active {
		return nil, state.Validationf("INACTIVE_WORKER", "worker %s (%s) is not active", w.ID, w.Name)
	}
	if live := s.st.ActiveExecutionFor(w.ID); live != nil {
		return nil, state.Validationf("DUPLICATE_ASSIGNMENT",
			"worker %s already has execution %s in status %s", w.ID, live.ID, live.Status)
	}

	if err := s.st.Debit(state.TxTaskFee, s.opts.TaskFee,
		fmt.Sprintf("task fee for %s (%s)", w.Name, w.Role)); err != nil {
		return nil, err
	}
	w.TotalCostPaid += s.opts.TaskFee

	e := s.st.NewExecution(w.ID, task, s.opts.MaxSteps)
	slog.Info("task assigned",
		"execution", e.ID, "worker", w.Name, "role", w.Role.String(), "task", task)
	return e, nil
}

// Tick advances every running execution by exactly one step. Steps run as
// independent goroutines joined before Tick returns; state mutation happens
// only after the join, on the calling goroutine. Executions in
// waiting_approval or a terminal status are skipped.
func (s *Scheduler) Tick(ctx context.Context) {
	s.sweepStaleApprovals()

	var running []*state.Execution
	for _, e := range s.st.Executions {
		if e.Status == state.ExecRunning {
			running = append(running, e)
		}
	}
	if len(running) == 0 {
		return
	}

	type stepReply struct {
		exec    *state.Execution
		outcome StepOutcome
		err     error
	}

	replies := make([]stepReply, len(running))
	var wg sync.WaitGroup
	for i, e := range running {
		req := StepRequest{
			ExecutionID: e.ID,
			Role:        s.roleOf(e),
			Task:        e.Task,
			StepIndex:   len(e.Steps),
			Prompt:      s.buildPrompt(e),
			History:     append([]state.Step(nil), e.Steps...),
		}
		wg.Add(1)
		go func(i int, e *state.Execution, req StepRequest) {
			defer wg.Done()
			stepCtx := ctx
			if s.opts.TickTimeout > 0 {
				var cancel context.CancelFunc
				stepCtx, cancel = context.WithTimeout(ctx, s.opts.TickTimeout)
				defer cancel()
			}
			outcome, err := s.backend.Step(stepCtx, req)
			replies[i] = stepReply{exec: e, outcome: outcome, err: err}
		}(i, e, req)
	}
	wg.Wait()

	for _, r := range replies {
		s.applyStep(r.exec, r.outcome, r.err)
	}
}

// applyStep folds one backend reply into the execution's state machine.
func (s *Scheduler) applyStep(e *state.Execution, outcome StepOutcome, err error) {
	prompt := s.buildPrompt(e)
	e.Feedback = "" // consumed by this step

	if err != nil {
		s.finish(e, state.ExecFailed, err.Error())
		return
	}

	switch outcome.Kind {
	case OutcomeApproval:
		if outcome.Approval == nil {
			s.finish(e, state.ExecFailed, "backend requested approval without a request payload")
			return
		}
		e.Status = state.ExecWaitingApproval
		e.Pending = outcome.Approval
		if e.Pending.RequestedAt.IsZero() {
			e.Pending.RequestedAt = time.Now().UTC()
		}
		slog.Info("execution awaiting approval",
			"execution", e.ID, "kind", outcome.Approval.Kind, "amount", outcome.Approval.Amount)

	case OutcomeResult:
		s.finish(e, state.ExecCompleted, outcome.Text)

	default:
		e.Steps = append(e.Steps, state.Step{
			Index:  len(e.Steps),
			Input:  prompt,
			Output: outcome.Text,
			At:     time.Now().UTC(),
		})
		if len(e.Steps) >= e.MaxSteps {
			s.finish(e, state.ExecCompleted,
				fmt.Sprintf("step budget exhausted after %d steps; last progress: %s", len(e.Steps), outcome.Text))
		}
	}
}

// sweepStaleApprovals auto-denies approvals pending longer than the
// configured timeout. Disabled by default, letting an outstanding approval
// block its worker indefinitely.
func (s *Scheduler) sweepStaleApprovals() {
	if s.opts.ApprovalTimeout <= 0 {
		return
	}
	cutoff := time.Now().UTC().Add(-s.opts.ApprovalTimeout)
	for _, e := range s.st.Executions {
		if e.Status == state.ExecWaitingApproval && e.Pending != nil && e.Pending.RequestedAt.Before(cutoff) {
			slog.Warn("approval timed out, auto-denying", "execution", e.ID, "kind", e.Pending.Kind)
			if err := s.Deny(e.ID, "request timed out with no principal decision"); err != nil {
				slog.Error("auto-deny failed", "execution", e.ID, "error", err)
			}
		}
	}
}

// Approve resolves a pending approval positively and resumes the execution.
// Valid only in waiting_approval.
func (s *Scheduler) Approve(execID, note string) error {
	return s.decide(execID, true, note)
}

// Deny resolves a pending approval negatively and resumes the execution so
// it can wrap up without the gated action. Valid only in waiting_approval.
func (s *Scheduler) Deny(execID, note string) error {
	return s.decide(execID, false, note)
}

func (s *Scheduler) decide(execID string, approved bool, note string) error {
	e, err := s.st.FindExecution(execID)
	if err != nil {
		return err
	}
	if e.Status != state.ExecWaitingApproval {
		return state.Validationf("NOT_WAITING", "execution %s is %s, not waiting_approval", e.ID, e.Status)
	}

	verdict := "DENIED"
	if approved {
		verdict = "APPROVED"
	}
	desc := ""
	if e.Pending != nil {
		desc = e.Pending.Description
	}
	e.Feedback = fmt.Sprintf("Your request (%s) was %s.", desc, verdict)
	if note != "" {
		e.Feedback += " Principal's note: " + note
	}
	e.Pending = nil
	e.Status = state.ExecRunning

	slog.Info("approval resolved", "execution", e.ID, "approved", approved)
	return nil
}

// FinalizeAtPeriodBoundary force-completes every live execution with a
// synthetic result and discards pending approvals. Hard cutoff: no draining,
// no grace period. Workers never carry unfinished work across periods.
func (s *Scheduler) FinalizeAtPeriodBoundary() int {
	live := append([]*state.Execution(nil), s.st.Executions...)
	cut := 0
	for _, e := range live {
		if e.Status.Terminal() {
			continue
		}
		e.Pending = nil
		e.Feedback = ""
		s.finish(e, state.ExecCompleted,
			fmt.Sprintf("task ended at period boundary after %d steps", len(e.Steps)))
		cut++
	}
	return cut
}

// finish applies a terminal transition and archives the execution. A
// transition out of a terminal status is an orchestration bug and panics via
// InvariantViolation in the archive path.
func (s *Scheduler) finish(e *state.Execution, status state.ExecStatus, result string) {
	if e.Status.Terminal() {
		panic(&state.InvariantViolation{
			Msg: fmt.Sprintf("terminal transition on execution %s already in %s", e.ID, e.Status),
		})
	}
	e.Status = status
	e.Result = result

	if err := s.st.ArchiveExecution(e); err != nil {
		panic(err)
	}

	workerName := e.WorkerID
	if w, findErr := s.st.FindWorker(e.WorkerID); findErr == nil {
		workerName = w.Name
	}
	s.st.AddEvent("worker", fmt.Sprintf("%s %s task: %s", workerName, status, result))
	slog.Info("execution finished",
		"execution", e.ID, "worker", workerName, "status", status.String(), "steps", len(e.Steps))
}

func (s *Scheduler) roleOf(e *state.Execution) state.Role {
	if w, err := s.st.FindWorker(e.WorkerID); err == nil {
		return w.Role
	}
	return state.RoleRestocker
}

// buildPrompt produces the opening instruction on the first step and a
// continuation cue afterwards, carrying any approve/deny feedback exactly
// once.
func (s *Scheduler) buildPrompt(e *state.Execution) string {
	if len(e.Steps) == 0 && e.Feedback == "" {
		return e.Task
	}
	prompt := "Continue working on your task."
	if e.Feedback != "" {
		prompt = e.Feedback + " " + prompt
	}
	return prompt
}
