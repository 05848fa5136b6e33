package orchestrator

import (
	"context"

	"github.com/salesops/salesops/pkg/telemetry"
)

// DeadLetterReasonRetryLimit is the reason recorded when a task exhausts its
// bounded retries.
const DeadLetterReasonRetryLimit = "retry_limit_exhausted"

// transitionEdge is one allowed (current, target) lifecycle edge.
type transitionEdge struct {
	from TaskStatus
	to   TaskStatus
}

// allowedTransitions is the complete lifecycle edge set. success and
// deadletter are terminal.
var allowedTransitions = map[transitionEdge]struct{}{
	{TaskStatusQueued, TaskStatusRunning}:    {},
	{TaskStatusRunning, TaskStatusSuccess}:   {},
	{TaskStatusRunning, TaskStatusFailed}:    {},
	{TaskStatusFailed, TaskStatusRetrying}:   {},
	{TaskStatusRetrying, TaskStatusQueued}:   {},
	{TaskStatusFailed, TaskStatusDeadLetter}: {},
}

// StateMachineConfig configures a task state machine. Audit and DeadLetters
// are required; the state machine cannot report a transition it cannot journal.
type StateMachineConfig struct {
	// Audit receives a (before, after) journal record for every transition.
	Audit AuditLog

	// DeadLetters captures tasks promoted to the deadletter status.
	DeadLetters DeadLetterSink

	// Metrics records transitions and dead-letter promotions. Optional.
	Metrics *telemetry.Metrics
}

// TaskStateMachine guards task lifecycle transitions and applies the bounded
// retry policy. It owns no task identity: every operation returns a new Task
// value. Concurrent transitions on the same task id are a caller concern; the
// state machine only guarantees that the edge it records is legal.
type TaskStateMachine struct {
	audit       AuditLog
	deadLetters DeadLetterSink
	metrics     *telemetry.Metrics
}

// NewTaskStateMachine creates a state machine from the given configuration.
func NewTaskStateMachine(cfg StateMachineConfig) *TaskStateMachine {
	return &TaskStateMachine{
		audit:       cfg.Audit,
		deadLetters: cfg.DeadLetters,
		metrics:     cfg.Metrics,
	}
}

// CanTransition reports whether the (current, target) edge is allowed.
func (m *TaskStateMachine) CanTransition(current, target TaskStatus) bool {
	_, ok := allowedTransitions[transitionEdge{current, target}]
	return ok
}

// Transition validates the lifecycle edge and returns a new Task with the
// target status. The (before, after) pair is journaled under
// "orchestrator.transition"; an illegal edge fails without emitting an audit
// record, and a journaling failure fails the transition.
func (m *TaskStateMachine) Transition(ctx context.Context, task Task, target TaskStatus) (Task, error) {
	if !m.CanTransition(task.Status, target) {
		m.metrics.RecordInvalidTransition()
		return Task{}, NewTransitionError(task.Status, target).WithTask(task.TaskID)
	}

	next := task.WithStatus(target)
	input := map[string]any{
		"task":          task.ToMap(),
		"target_status": string(target),
	}
	output := map[string]any{"task": next.ToMap()}
	if err := m.audit.Append(ctx, "orchestrator.transition", input, output); err != nil {
		return Task{}, NewPersistenceError("failed to journal transition", err).WithTask(task.TaskID)
	}
	m.metrics.RecordTransition(string(task.Status), string(target))

	return next, nil
}

// RecordFailure moves a running task to failed.
func (m *TaskStateMachine) RecordFailure(ctx context.Context, task Task) (Task, error) {
	return m.Transition(ctx, task, TaskStatusFailed)
}

// Requeue moves a retrying task back to queued.
func (m *TaskStateMachine) Requeue(ctx context.Context, task Task) (Task, error) {
	return m.Transition(ctx, task, TaskStatusQueued)
}

// ScheduleRetry applies the bounded retry policy to a failed task. The retry
// count increments by exactly one. If the pre-increment count is below
// maxRetries the task moves to retrying; otherwise it moves to deadletter and
// is appended to the dead-letter store with reason "retry_limit_exhausted".
// With maxRetries zero the first failure dead-letters immediately.
func (m *TaskStateMachine) ScheduleRetry(ctx context.Context, task Task, maxRetries int) (Task, error) {
	if task.Status != TaskStatusFailed {
		return Task{}, NewPreconditionError("task must be in failed state to schedule retry").
			WithTask(task.TaskID).
			WithDetail("current_status", string(task.Status))
	}

	next := task.WithRetryCount(task.RetryCount + 1)
	if task.RetryCount < maxRetries {
		return m.Transition(ctx, next, TaskStatusRetrying)
	}

	deadlettered, err := m.Transition(ctx, next, TaskStatusDeadLetter)
	if err != nil {
		return Task{}, err
	}
	if err := m.deadLetters.AppendDeadLetter(ctx, deadlettered, DeadLetterReasonRetryLimit); err != nil {
		return Task{}, NewPersistenceError("failed to dead-letter task", err).WithTask(task.TaskID)
	}
	m.metrics.RecordDeadLetter(task.TaskType)

	return deadlettered, nil
}
