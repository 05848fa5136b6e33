package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newTestStateMachine(audit *memAudit, sink *memSink) *TaskStateMachine {
	return NewTaskStateMachine(StateMachineConfig{
		Audit:       audit,
		DeadLetters: sink,
	})
}

func queuedTask() Task {
	return Task{
		TaskID:         "task-1",
		IntentID:       "intent-1",
		TaskType:       "search_companies",
		Status:         TaskStatusQueued,
		RetryCount:     0,
		IdempotencyKey: "intent-1:search_companies:none",
		Payload:        map[string]any{},
		CreatedAt:      time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC),
	}
}

// TestCanTransition tests the complete lifecycle edge set
func TestCanTransition(t *testing.T) {
	m := newTestStateMachine(&memAudit{}, &memSink{})

	allowed := []struct{ from, to TaskStatus }{
		{TaskStatusQueued, TaskStatusRunning},
		{TaskStatusRunning, TaskStatusSuccess},
		{TaskStatusRunning, TaskStatusFailed},
		{TaskStatusFailed, TaskStatusRetrying},
		{TaskStatusRetrying, TaskStatusQueued},
		{TaskStatusFailed, TaskStatusDeadLetter},
	}
	allowedSet := map[[2]TaskStatus]bool{}
	for _, edge := range allowed {
		allowedSet[[2]TaskStatus{edge.from, edge.to}] = true
		if !m.CanTransition(edge.from, edge.to) {
			t.Errorf("expected %s -> %s to be allowed", edge.from, edge.to)
		}
	}

	// Every edge outside the allowed set must be rejected, including
	// self-transitions and edges out of terminal states.
	statuses := []TaskStatus{
		TaskStatusQueued, TaskStatusRunning, TaskStatusSuccess,
		TaskStatusFailed, TaskStatusRetrying, TaskStatusDeadLetter,
	}
	for _, from := range statuses {
		for _, to := range statuses {
			if allowedSet[[2]TaskStatus{from, to}] {
				continue
			}
			if m.CanTransition(from, to) {
				t.Errorf("expected %s -> %s to be rejected", from, to)
			}
		}
	}
}

// TestTransition tests a legal transition with its audit record
func TestTransition(t *testing.T) {
	audit := &memAudit{}
	m := newTestStateMachine(audit, &memSink{})

	task := queuedTask()
	next, err := m.Transition(context.Background(), task, TaskStatusRunning)
	if err != nil {
		t.Fatalf("failed to transition: %v", err)
	}

	if next.Status != TaskStatusRunning {
		t.Errorf("expected running, got %s", next.Status)
	}
	if task.Status != TaskStatusQueued {
		t.Error("transition mutated the input task")
	}

	if len(audit.records) != 1 {
		t.Fatalf("expected 1 audit record, got %d", len(audit.records))
	}
	record := audit.records[0]
	if record.triggerSource != "orchestrator.transition" {
		t.Errorf("unexpected trigger source %s", record.triggerSource)
	}
	input, ok := record.input.(map[string]any)
	if !ok {
		t.Fatalf("unexpected input type %T", record.input)
	}
	if input["target_status"] != "running" {
		t.Errorf("expected target_status running, got %v", input["target_status"])
	}
	before, ok := input["task"].(map[string]any)
	if !ok || before["status"] != "queued" {
		t.Errorf("expected before snapshot with queued status, got %v", input["task"])
	}
}

// TestTransitionIllegalEdge tests that illegal edges fail without an audit record
func TestTransitionIllegalEdge(t *testing.T) {
	audit := &memAudit{}
	m := newTestStateMachine(audit, &memSink{})

	task := queuedTask().WithStatus(TaskStatusSuccess)
	_, err := m.Transition(context.Background(), task, TaskStatusRunning)
	if err == nil {
		t.Fatal("expected error for illegal edge")
	}
	if !IsTransitionError(err) {
		t.Errorf("expected transition error, got %v", err)
	}
	if len(audit.records) != 0 {
		t.Errorf("expected no audit records for illegal edge, got %d", len(audit.records))
	}

	var classified *Error
	if !errors.As(err, &classified) {
		t.Fatalf("expected classified error, got %T", err)
	}
	if classified.Details["current_status"] != "success" || classified.Details["target_status"] != "running" {
		t.Errorf("unexpected error details %v", classified.Details)
	}
	if classified.TaskID != "task-1" {
		t.Errorf("expected task context on error, got %q", classified.TaskID)
	}
}

// TestTransitionAuditFailure tests that a journaling failure fails the transition
func TestTransitionAuditFailure(t *testing.T) {
	audit := &memAudit{failErr: errors.New("disk full")}
	m := newTestStateMachine(audit, &memSink{})

	_, err := m.Transition(context.Background(), queuedTask(), TaskStatusRunning)
	if err == nil {
		t.Fatal("expected error when audit append fails")
	}
	if !IsPersistenceError(err) {
		t.Errorf("expected persistence error, got %v", err)
	}
}

// TestScheduleRetryBelowLimit tests the failure, retry, requeue cycle
func TestScheduleRetryBelowLimit(t *testing.T) {
	audit := &memAudit{}
	sink := &memSink{}
	m := newTestStateMachine(audit, sink)
	ctx := context.Background()

	task := queuedTask()
	task, err := m.Transition(ctx, task, TaskStatusRunning)
	if err != nil {
		t.Fatalf("failed to start task: %v", err)
	}
	task, err = m.RecordFailure(ctx, task)
	if err != nil {
		t.Fatalf("failed to record failure: %v", err)
	}

	task, err = m.ScheduleRetry(ctx, task, 3)
	if err != nil {
		t.Fatalf("failed to schedule retry: %v", err)
	}
	if task.Status != TaskStatusRetrying {
		t.Errorf("expected retrying, got %s", task.Status)
	}
	if task.RetryCount != 1 {
		t.Errorf("expected retry count 1, got %d", task.RetryCount)
	}

	task, err = m.Requeue(ctx, task)
	if err != nil {
		t.Fatalf("failed to requeue: %v", err)
	}
	if task.Status != TaskStatusQueued {
		t.Errorf("expected queued, got %s", task.Status)
	}
	if task.RetryCount != 1 {
		t.Errorf("requeue changed retry count: %d", task.RetryCount)
	}

	if len(sink.tasks) != 0 {
		t.Errorf("expected no dead-letters, got %d", len(sink.tasks))
	}
}

// TestScheduleRetryExhaustion tests dead-lettering at the retry limit
func TestScheduleRetryExhaustion(t *testing.T) {
	audit := &memAudit{}
	sink := &memSink{}
	m := newTestStateMachine(audit, sink)
	ctx := context.Background()

	maxRetries := 2
	task := queuedTask()
	for cycle := 0; ; cycle++ {
		var err error
		task, err = m.Transition(ctx, task, TaskStatusRunning)
		if err != nil {
			t.Fatalf("cycle %d: failed to start: %v", cycle, err)
		}
		task, err = m.RecordFailure(ctx, task)
		if err != nil {
			t.Fatalf("cycle %d: failed to fail: %v", cycle, err)
		}
		task, err = m.ScheduleRetry(ctx, task, maxRetries)
		if err != nil {
			t.Fatalf("cycle %d: failed to schedule retry: %v", cycle, err)
		}

		if task.Status == TaskStatusDeadLetter {
			break
		}
		task, err = m.Requeue(ctx, task)
		if err != nil {
			t.Fatalf("cycle %d: failed to requeue: %v", cycle, err)
		}
		if cycle > maxRetries {
			t.Fatal("task never dead-lettered")
		}
	}

	// Two retries are granted before the third failure quarantines the task.
	if task.RetryCount != maxRetries+1 {
		t.Errorf("expected final retry count %d, got %d", maxRetries+1, task.RetryCount)
	}
	if len(sink.tasks) != 1 {
		t.Fatalf("expected 1 dead-letter, got %d", len(sink.tasks))
	}
	if sink.reasons[0] != DeadLetterReasonRetryLimit {
		t.Errorf("expected reason %s, got %s", DeadLetterReasonRetryLimit, sink.reasons[0])
	}
	if sink.tasks[0].Status != TaskStatusDeadLetter {
		t.Errorf("expected quarantined task in deadletter status, got %s", sink.tasks[0].Status)
	}
}

// TestScheduleRetryZeroBudget tests that maxRetries zero dead-letters immediately
func TestScheduleRetryZeroBudget(t *testing.T) {
	sink := &memSink{}
	m := newTestStateMachine(&memAudit{}, sink)

	task := queuedTask().WithStatus(TaskStatusFailed)
	task, err := m.ScheduleRetry(context.Background(), task, 0)
	if err != nil {
		t.Fatalf("failed to schedule retry: %v", err)
	}
	if task.Status != TaskStatusDeadLetter {
		t.Errorf("expected deadletter, got %s", task.Status)
	}
	if task.RetryCount != 1 {
		t.Errorf("expected retry count 1, got %d", task.RetryCount)
	}
	if len(sink.tasks) != 1 {
		t.Errorf("expected 1 dead-letter, got %d", len(sink.tasks))
	}
}

// TestScheduleRetryPrecondition tests rejection of non-failed tasks
func TestScheduleRetryPrecondition(t *testing.T) {
	m := newTestStateMachine(&memAudit{}, &memSink{})

	for _, status := range []TaskStatus{TaskStatusQueued, TaskStatusRunning, TaskStatusSuccess, TaskStatusRetrying, TaskStatusDeadLetter} {
		task := queuedTask().WithStatus(status)
		_, err := m.ScheduleRetry(context.Background(), task, 3)
		if err == nil {
			t.Errorf("%s: expected precondition error", status)
			continue
		}
		if !IsPreconditionError(err) {
			t.Errorf("%s: expected precondition error, got %v", status, err)
		}
	}
}

// TestScheduleRetrySinkFailure tests that a dead-letter store failure surfaces
func TestScheduleRetrySinkFailure(t *testing.T) {
	sink := &memSink{failErr: errors.New("disk full")}
	m := newTestStateMachine(&memAudit{}, sink)

	task := queuedTask().WithStatus(TaskStatusFailed).WithRetryCount(3)
	_, err := m.ScheduleRetry(context.Background(), task, 3)
	if err == nil {
		t.Fatal("expected error when dead-letter append fails")
	}
	if !IsPersistenceError(err) {
		t.Errorf("expected persistence error, got %v", err)
	}
}
