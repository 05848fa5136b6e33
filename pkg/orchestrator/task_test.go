package orchestrator

import (
	"testing"
	"time"
)

// TestTaskStatusValidate tests status enum validation
func TestTaskStatusValidate(t *testing.T) {
	valid := []TaskStatus{
		TaskStatusQueued,
		TaskStatusRunning,
		TaskStatusSuccess,
		TaskStatusFailed,
		TaskStatusRetrying,
		TaskStatusDeadLetter,
	}
	for _, status := range valid {
		if err := status.Validate(); err != nil {
			t.Errorf("expected %s to be valid: %v", status, err)
		}
	}

	invalid := []TaskStatus{"", "done", "QUEUED", "dead_letter"}
	for _, status := range invalid {
		if err := status.Validate(); err == nil {
			t.Errorf("expected %q to be invalid", status)
		}
	}
}

// TestTaskStatusTerminal tests terminal and active classification
func TestTaskStatusTerminal(t *testing.T) {
	tests := []struct {
		status   TaskStatus
		terminal bool
		active   bool
	}{
		{TaskStatusQueued, false, true},
		{TaskStatusRunning, false, true},
		{TaskStatusSuccess, true, false},
		{TaskStatusFailed, false, false},
		{TaskStatusRetrying, false, true},
		{TaskStatusDeadLetter, true, false},
	}

	for _, tt := range tests {
		if got := tt.status.IsTerminal(); got != tt.terminal {
			t.Errorf("%s: IsTerminal() = %v, want %v", tt.status, got, tt.terminal)
		}
		if got := tt.status.IsActive(); got != tt.active {
			t.Errorf("%s: IsActive() = %v, want %v", tt.status, got, tt.active)
		}
	}
}

// TestTaskImmutability tests that With* helpers copy instead of mutating
func TestTaskImmutability(t *testing.T) {
	task := Task{
		TaskID:     "task-1",
		Status:     TaskStatusQueued,
		RetryCount: 0,
	}

	next := task.WithStatus(TaskStatusRunning)
	if task.Status != TaskStatusQueued {
		t.Errorf("WithStatus mutated the receiver: %s", task.Status)
	}
	if next.Status != TaskStatusRunning {
		t.Errorf("expected running, got %s", next.Status)
	}

	retried := task.WithRetryCount(2)
	if task.RetryCount != 0 {
		t.Errorf("WithRetryCount mutated the receiver: %d", task.RetryCount)
	}
	if retried.RetryCount != 2 {
		t.Errorf("expected retry count 2, got %d", retried.RetryCount)
	}
}

// TestTaskMapRoundTrip tests ToMap followed by TaskFromMap
func TestTaskMapRoundTrip(t *testing.T) {
	created := time.Date(2026, 3, 14, 9, 26, 53, 589793000, time.UTC)
	task := Task{
		TaskID:         "task-1",
		IntentID:       "intent-1",
		TaskType:       "search_companies",
		Status:         TaskStatusRetrying,
		RetryCount:     2,
		IdempotencyKey: "intent-1:search_companies:none",
		Payload:        map[string]any{"raw_text": "find fintech companies"},
		CreatedAt:      created,
	}

	rebuilt, err := TaskFromMap(task.ToMap())
	if err != nil {
		t.Fatalf("failed to rebuild task: %v", err)
	}

	if rebuilt.TaskID != task.TaskID {
		t.Errorf("expected task_id %s, got %s", task.TaskID, rebuilt.TaskID)
	}
	if rebuilt.IntentID != task.IntentID {
		t.Errorf("expected intent_id %s, got %s", task.IntentID, rebuilt.IntentID)
	}
	if rebuilt.Status != task.Status {
		t.Errorf("expected status %s, got %s", task.Status, rebuilt.Status)
	}
	if rebuilt.RetryCount != task.RetryCount {
		t.Errorf("expected retry_count %d, got %d", task.RetryCount, rebuilt.RetryCount)
	}
	if rebuilt.IdempotencyKey != task.IdempotencyKey {
		t.Errorf("expected idempotency_key %s, got %s", task.IdempotencyKey, rebuilt.IdempotencyKey)
	}
	if !rebuilt.CreatedAt.Equal(task.CreatedAt) {
		t.Errorf("expected created_at %v, got %v", task.CreatedAt, rebuilt.CreatedAt)
	}
	if rebuilt.Payload["raw_text"] != "find fintech companies" {
		t.Errorf("unexpected payload: %v", rebuilt.Payload)
	}
}

// TestTaskFromMapRejectsInvalid tests reconstruction failure modes
func TestTaskFromMapRejectsInvalid(t *testing.T) {
	base := func() map[string]any {
		return map[string]any{
			"task_id":         "task-1",
			"intent_id":       "intent-1",
			"task_type":       "collect_news",
			"status":          "queued",
			"retry_count":     0,
			"idempotency_key": "intent-1:collect_news:none",
			"payload":         map[string]any{},
			"created_at":      "2026-03-14T09:26:53Z",
		}
	}

	tests := []struct {
		name   string
		mutate func(m map[string]any)
	}{
		{"missing task_id", func(m map[string]any) { delete(m, "task_id") }},
		{"missing status", func(m map[string]any) { delete(m, "status") }},
		{"invalid status", func(m map[string]any) { m["status"] = "done" }},
		{"missing created_at", func(m map[string]any) { delete(m, "created_at") }},
		{"garbage created_at", func(m map[string]any) { m["created_at"] = "not-a-time" }},
		{"non-numeric retry_count", func(m map[string]any) { m["retry_count"] = "two" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := base()
			tt.mutate(m)
			if _, err := TaskFromMap(m); err == nil {
				t.Errorf("expected error for %s", tt.name)
			}
		})
	}
}

// TestParseTimestamp tests timestamp parsing across persisted layouts
func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  time.Time
	}{
		{
			name:  "rfc3339 with zone",
			value: "2026-03-14T09:26:53Z",
			want:  time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC),
		},
		{
			name:  "rfc3339 nano",
			value: "2026-03-14T09:26:53.589793Z",
			want:  time.Date(2026, 3, 14, 9, 26, 53, 589793000, time.UTC),
		},
		{
			name:  "naive iso interpreted as utc",
			value: "2026-03-14T09:26:53.589793",
			want:  time.Date(2026, 3, 14, 9, 26, 53, 589793000, time.UTC),
		},
		{
			name:  "naive with space separator",
			value: "2026-03-14 09:26:53",
			want:  time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTimestamp(tt.value)
			if err != nil {
				t.Fatalf("failed to parse %q: %v", tt.value, err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
			if got.Location() != time.UTC {
				t.Errorf("expected UTC location, got %v", got.Location())
			}
		})
	}

	if _, err := ParseTimestamp("14/03/2026"); err == nil {
		t.Error("expected error for unrecognized layout")
	}
}

// TestFormatTimestamp tests that formatting always attaches the UTC offset
func TestFormatTimestamp(t *testing.T) {
	loc := time.FixedZone("CET", 3600)
	local := time.Date(2026, 3, 14, 10, 26, 53, 0, loc)

	got := FormatTimestamp(local)
	want := "2026-03-14T09:26:53Z"
	if got != want {
		t.Errorf("expected %s, got %s", want, got)
	}
}
