package state

import (
	"fmt"

	"github.com/google/uuid"
)

// HireWorker adds an active worker with the given role and per-period wage.
func (s *State) HireWorker(name string, role Role, wage Cents) *Worker {
	w := &Worker{
		ID:            uuid.NewString(),
		Name:          name,
		Role:          role,
		Wage:          wage,
		Active:        true,
		HiredAtPeriod: s.Period,
	}
	s.Workers = append(s.Workers, w)
	return w
}

// FireWorker deactivates a worker. Any in-flight execution keeps running
// until it terminates or the period boundary cuts it off; no new assignments
// are accepted.
func (s *State) FireWorker(id string) error {
	w, err := s.FindWorker(id)
	if err != nil {
		return err
	}
	if !w.Active {
		return Validationf("INACTIVE_WORKER", "worker %s already fired", id)
	}
	w.Active = false
	period := s.Period
	w.FiredAtPeriod = &period
	return nil
}

// FindWorker returns the worker with the given id.
func (s *State) FindWorker(id string) (*Worker, error) {
	for _, w := range s.Workers {
		if w.ID == id {
			return w, nil
		}
	}
	return nil, Validationf("UNKNOWN_WORKER", "no worker with id %s", id)
}

// ActiveExecutionFor returns the worker's live execution, or nil.
func (s *State) ActiveExecutionFor(workerID string) *Execution {
	for _, e := range s.Executions {
		if e.WorkerID == workerID && !e.Status.Terminal() {
			return e
		}
	}
	return nil
}

// FindExecution returns the live execution with the given id.
func (s *State) FindExecution(id string) (*Execution, error) {
	for _, e := range s.Executions {
		if e.ID == id {
			return e, nil
		}
	}
	return nil, Validationf("UNKNOWN_EXECUTION", "no active execution with id %s", id)
}

// NewExecution creates a running execution for a worker. Callers validate
// eligibility first; this only constructs and registers it.
func (s *State) NewExecution(workerID, task string, maxSteps int) *Execution {
	e := &Execution{
		ID:              uuid.NewString(),
		WorkerID:        workerID,
		Task:            task,
		Status:          ExecRunning,
		MaxSteps:        maxSteps,
		StartedAtPeriod: s.Period,
	}
	s.Executions = append(s.Executions, e)
	return e
}

// ArchiveExecution moves a terminal execution into immutable history and
// updates the worker's counters. Returns an InvariantViolation if the
// execution is still live.
func (s *State) ArchiveExecution(e *Execution) error {
	if !e.Status.Terminal() {
		return &InvariantViolation{Msg: fmt.Sprintf("archiving execution %s in status %s", e.ID, e.Status)}
	}

	s.TaskHistory = append(s.TaskHistory, CompletedTask{
		ExecutionID: e.ID,
		WorkerID:    e.WorkerID,
		Task:        e.Task,
		Status:      e.Status,
		Steps:       len(e.Steps),
		Result:      e.Result,
		Period:      s.Period,
	})

	if w, err := s.FindWorker(e.WorkerID); err == nil {
		w.TasksCompleted++
	}

	kept := s.Executions[:0]
	for _, other := range s.Executions {
		if other.ID != e.ID {
			kept = append(kept, other)
		}
	}
	s.Executions = kept
	return nil
}
