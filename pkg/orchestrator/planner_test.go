package orchestrator

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/salesops/salesops/pkg/canonjson"
)

// memAudit captures appended records in memory for assertions.
type memAudit struct {
	records []memAuditRecord
	failErr error
}

type memAuditRecord struct {
	triggerSource string
	input         any
	output        any
}

func (m *memAudit) Append(_ context.Context, triggerSource string, input, output any) error {
	if m.failErr != nil {
		return m.failErr
	}
	m.records = append(m.records, memAuditRecord{triggerSource, input, output})
	return nil
}

// memSink captures dead-lettered tasks in memory.
type memSink struct {
	tasks   []Task
	reasons []string
	failErr error
}

func (m *memSink) AppendDeadLetter(_ context.Context, task Task, reason string) error {
	if m.failErr != nil {
		return m.failErr
	}
	m.tasks = append(m.tasks, task)
	m.reasons = append(m.reasons, reason)
	return nil
}

// sequentialIDs returns an id generator yielding task-1, task-2, ...
func sequentialIDs() IDGenerator {
	n := 0
	return func(string) string {
		n++
		return fmt.Sprintf("task-%d", n)
	}
}

func fixedClock(t time.Time) Clock {
	return func() time.Time { return t }
}

// TestPlanTasks tests basic plan compilation
func TestPlanTasks(t *testing.T) {
	audit := &memAudit{}
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	planner := NewTaskPlanner(PlannerConfig{
		Audit:       audit,
		IDGenerator: sequentialIDs(),
		Clock:       fixedClock(now),
	})

	taskTypes := []string{"search_companies", "find_contacts", "generate_emails"}
	tasks, err := planner.PlanTasks(context.Background(), "intent-1", taskTypes, PlanOptions{})
	if err != nil {
		t.Fatalf("failed to plan tasks: %v", err)
	}

	if len(tasks) != 3 {
		t.Fatalf("expected 3 tasks, got %d", len(tasks))
	}
	for i, task := range tasks {
		if task.TaskType != taskTypes[i] {
			t.Errorf("task %d: expected type %s, got %s", i, taskTypes[i], task.TaskType)
		}
		if task.Status != TaskStatusQueued {
			t.Errorf("task %d: expected queued, got %s", i, task.Status)
		}
		if task.RetryCount != 0 {
			t.Errorf("task %d: expected retry count 0, got %d", i, task.RetryCount)
		}
		if task.IntentID != "intent-1" {
			t.Errorf("task %d: expected intent-1, got %s", i, task.IntentID)
		}
		wantKey := "intent-1:" + taskTypes[i] + ":none"
		if task.IdempotencyKey != wantKey {
			t.Errorf("task %d: expected key %s, got %s", i, wantKey, task.IdempotencyKey)
		}
		if !task.CreatedAt.Equal(now) {
			t.Errorf("task %d: expected shared timestamp %v, got %v", i, now, task.CreatedAt)
		}
		if task.Payload == nil || len(task.Payload) != 0 {
			t.Errorf("task %d: expected empty payload, got %v", i, task.Payload)
		}
	}

	if len(audit.records) != 1 {
		t.Fatalf("expected 1 audit record, got %d", len(audit.records))
	}
	if audit.records[0].triggerSource != "orchestrator.plan_tasks" {
		t.Errorf("unexpected trigger source %s", audit.records[0].triggerSource)
	}
}

// TestPlanTasksEntityScope tests entity-scoped idempotency keys
func TestPlanTasksEntityScope(t *testing.T) {
	planner := NewTaskPlanner(PlannerConfig{
		Audit:       &memAudit{},
		IDGenerator: sequentialIDs(),
	})

	tasks, err := planner.PlanTasks(context.Background(), "intent-9", []string{"update_pipeline"}, PlanOptions{
		EntityID: "acct-42",
	})
	if err != nil {
		t.Fatalf("failed to plan tasks: %v", err)
	}

	want := "intent-9:update_pipeline:acct-42"
	if tasks[0].IdempotencyKey != want {
		t.Errorf("expected key %s, got %s", want, tasks[0].IdempotencyKey)
	}
}

// TestPlanTasksPayloads tests per-type payload forwarding
func TestPlanTasksPayloads(t *testing.T) {
	planner := NewTaskPlanner(PlannerConfig{
		Audit:       &memAudit{},
		IDGenerator: sequentialIDs(),
	})

	payloads := map[string]map[string]any{
		"collect_news": {"topic": "fintech"},
	}
	tasks, err := planner.PlanTasks(context.Background(), "intent-1",
		[]string{"collect_news", "generate_emails"}, PlanOptions{Payloads: payloads})
	if err != nil {
		t.Fatalf("failed to plan tasks: %v", err)
	}

	if tasks[0].Payload["topic"] != "fintech" {
		t.Errorf("expected payload to be forwarded, got %v", tasks[0].Payload)
	}
	if len(tasks[1].Payload) != 0 {
		t.Errorf("expected empty payload for unlisted type, got %v", tasks[1].Payload)
	}

	// The forwarded payload must be a copy, not an alias.
	tasks[0].Payload["topic"] = "changed"
	if payloads["collect_news"]["topic"] != "fintech" {
		t.Error("planner aliased the caller's payload map")
	}
}

// TestPlanTasksDeterminism tests that fixed seams produce byte-identical plans
func TestPlanTasksDeterminism(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	plan := func() []byte {
		t.Helper()
		planner := NewTaskPlanner(PlannerConfig{
			Audit:       &memAudit{},
			IDGenerator: sequentialIDs(),
			Clock:       fixedClock(now),
		})
		tasks, err := planner.PlanTasks(context.Background(), "intent-1",
			[]string{"search_companies", "collect_news"}, PlanOptions{
				EntityID: "acct-1",
				Payloads: map[string]map[string]any{
					"search_companies": {"industry": "SaaS", "region": "EMEA"},
				},
			})
		if err != nil {
			t.Fatalf("failed to plan tasks: %v", err)
		}
		data, err := canonjson.Marshal(tasksToMaps(tasks))
		if err != nil {
			t.Fatalf("failed to serialize plan: %v", err)
		}
		return data
	}

	first := plan()
	second := plan()
	if !bytes.Equal(first, second) {
		t.Errorf("expected byte-identical plans:\n%s\n%s", first, second)
	}
}

// TestPlanTasksEmpty tests that an empty plan is not journaled
func TestPlanTasksEmpty(t *testing.T) {
	audit := &memAudit{}
	planner := NewTaskPlanner(PlannerConfig{Audit: audit})

	tasks, err := planner.PlanTasks(context.Background(), "intent-1", nil, PlanOptions{})
	if err != nil {
		t.Fatalf("failed to plan tasks: %v", err)
	}
	if len(tasks) != 0 {
		t.Errorf("expected empty plan, got %d tasks", len(tasks))
	}
	if len(audit.records) != 0 {
		t.Errorf("expected no audit records for empty plan, got %d", len(audit.records))
	}
}

// TestPlanTasksAuditFailure tests that a journaling failure fails the plan
func TestPlanTasksAuditFailure(t *testing.T) {
	audit := &memAudit{failErr: errors.New("disk full")}
	planner := NewTaskPlanner(PlannerConfig{Audit: audit})

	_, err := planner.PlanTasks(context.Background(), "intent-1", []string{"collect_news"}, PlanOptions{})
	if err == nil {
		t.Fatal("expected error when audit append fails")
	}
	if !IsPersistenceError(err) {
		t.Errorf("expected persistence error, got %v", err)
	}
}

// TestBuildIdempotencyKey tests key derivation
func TestBuildIdempotencyKey(t *testing.T) {
	tests := []struct {
		name     string
		intentID string
		taskType string
		entityID string
		want     string
	}{
		{"with entity", "i1", "find_contacts", "acct-7", "i1:find_contacts:acct-7"},
		{"without entity", "i1", "find_contacts", "", "i1:find_contacts:none"},
		{"literal none entity collides", "i1", "find_contacts", "none", "i1:find_contacts:none"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := BuildIdempotencyKey(tt.intentID, tt.taskType, tt.entityID); got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}
