package orchestrator

import (
	"encoding/json"
	"fmt"
	"time"
)

// TaskStatus represents the lifecycle state of a planned task.
type TaskStatus string

const (
	// TaskStatusQueued indicates the task is waiting to be picked up by a worker.
	TaskStatusQueued TaskStatus = "queued"

	// TaskStatusRunning indicates the task is currently executing.
	TaskStatusRunning TaskStatus = "running"

	// TaskStatusSuccess indicates the task completed successfully.
	TaskStatusSuccess TaskStatus = "success"

	// TaskStatusFailed indicates the task failed and awaits a retry decision.
	TaskStatusFailed TaskStatus = "failed"

	// TaskStatusRetrying indicates a retry has been scheduled for the task.
	TaskStatusRetrying TaskStatus = "retrying"

	// TaskStatusDeadLetter indicates the task exhausted its retries and was
	// quarantined in the dead-letter store.
	TaskStatusDeadLetter TaskStatus = "deadletter"
)

// IsTerminal returns true if the status represents a final state.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusSuccess || s == TaskStatusDeadLetter
}

// IsActive returns true if the task is still moving through its lifecycle.
func (s TaskStatus) IsActive() bool {
	return s == TaskStatusQueued || s == TaskStatusRunning || s == TaskStatusRetrying
}

// Validate checks if the task status is valid.
func (s TaskStatus) Validate() error {
	switch s {
	case TaskStatusQueued, TaskStatusRunning, TaskStatusSuccess,
		TaskStatusFailed, TaskStatusRetrying, TaskStatusDeadLetter:
		return nil
	default:
		return fmt.Errorf("invalid task status: %s", s)
	}
}

// MarshalJSON implements custom JSON marshaling for type-safe enum serialization.
func (s TaskStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(s))
}

// UnmarshalJSON implements custom JSON unmarshaling with validation.
func (s *TaskStatus) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	*s = TaskStatus(str)
	return s.Validate()
}

// Task is an immutable value describing one scheduled action within an
// intent's execution. State transitions never mutate a Task in place; the
// state machine returns a fresh value for every transition.
type Task struct {
	// TaskID uniquely identifies the task within one plan instance.
	TaskID string `json:"task_id"`

	// IntentID is the id of the parent intent.
	IntentID string `json:"intent_id"`

	// TaskType is one of the closed set of intent actions.
	TaskType string `json:"task_type"`

	// Status is the current lifecycle state.
	Status TaskStatus `json:"status"`

	// RetryCount is the number of retries scheduled so far. It only grows.
	RetryCount int `json:"retry_count"`

	// IdempotencyKey is the deterministic key coalescing retries of the same
	// logical effect. It is computed once by the planner and never recomputed
	// from mutable state.
	IdempotencyKey string `json:"idempotency_key"`

	// Payload is the opaque record forwarded to the worker handler.
	Payload map[string]any `json:"payload"`

	// CreatedAt is the UTC planning timestamp, set once by the planner.
	CreatedAt time.Time `json:"created_at"`
}

// WithStatus returns a copy of the task with the given status.
func (t Task) WithStatus(status TaskStatus) Task {
	t.Status = status
	return t
}

// WithRetryCount returns a copy of the task with the given retry count.
func (t Task) WithRetryCount(count int) Task {
	t.RetryCount = count
	return t
}

// ToMap converts the task to its generic JSON representation. Timestamps are
// rendered in RFC 3339 with the UTC offset attached, matching the persisted
// form used by the audit log and dead-letter store.
func (t Task) ToMap() map[string]any {
	payload := t.Payload
	if payload == nil {
		payload = map[string]any{}
	}
	return map[string]any{
		"task_id":         t.TaskID,
		"intent_id":       t.IntentID,
		"task_type":       t.TaskType,
		"status":          string(t.Status),
		"retry_count":     t.RetryCount,
		"idempotency_key": t.IdempotencyKey,
		"payload":         payload,
		"created_at":      FormatTimestamp(t.CreatedAt),
	}
}

// TaskFromMap reconstructs a task from its generic JSON representation.
// Naive timestamps are interpreted as UTC.
func TaskFromMap(data map[string]any) (Task, error) {
	task := Task{
		Payload: map[string]any{},
	}

	var ok bool
	if task.TaskID, ok = data["task_id"].(string); !ok {
		return Task{}, fmt.Errorf("task map missing task_id")
	}
	if task.IntentID, ok = data["intent_id"].(string); !ok {
		return Task{}, fmt.Errorf("task map missing intent_id")
	}
	if task.TaskType, ok = data["task_type"].(string); !ok {
		return Task{}, fmt.Errorf("task map missing task_type")
	}

	status, ok := data["status"].(string)
	if !ok {
		return Task{}, fmt.Errorf("task map missing status")
	}
	task.Status = TaskStatus(status)
	if err := task.Status.Validate(); err != nil {
		return Task{}, err
	}

	if key, ok := data["idempotency_key"].(string); ok {
		task.IdempotencyKey = key
	}
	if payload, ok := data["payload"].(map[string]any); ok {
		task.Payload = payload
	}

	count, err := numberToInt(data["retry_count"])
	if err != nil {
		return Task{}, fmt.Errorf("invalid retry_count: %w", err)
	}
	task.RetryCount = count

	createdAt, ok := data["created_at"].(string)
	if !ok {
		return Task{}, fmt.Errorf("task map missing created_at")
	}
	task.CreatedAt, err = ParseTimestamp(createdAt)
	if err != nil {
		return Task{}, fmt.Errorf("invalid created_at: %w", err)
	}

	return task, nil
}

// FormatTimestamp renders t as an RFC 3339 UTC timestamp.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// ParseTimestamp parses a persisted timestamp. Values without a timezone are
// assumed to be UTC before the zone is attached.
func ParseTimestamp(value string) (time.Time, error) {
	layouts := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05.999999999",
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05.999999999",
		"2006-01-02 15:04:05",
	}
	for _, layout := range layouts {
		if ts, err := time.ParseInLocation(layout, value, time.UTC); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp: %q", value)
}

// numberToInt accepts the numeric shapes JSON decoding can produce.
func numberToInt(value any) (int, error) {
	switch v := value.(type) {
	case nil:
		return 0, nil
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		return int(v), nil
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, err
		}
		return int(n), nil
	default:
		return 0, fmt.Errorf("unexpected number type %T", value)
	}
}
