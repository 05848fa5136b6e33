package orchestrator

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/salesops/salesops/pkg/telemetry"
)

// IDGenerator produces a unique task id for a task type. The default
// generator returns a random UUID; tests substitute deterministic generators.
type IDGenerator func(taskType string) string

// Clock returns the current time. The default clock returns UTC now.
type Clock func() time.Time

// DefaultIDGenerator returns a random UUID, ignoring the task type.
func DefaultIDGenerator(_ string) string {
	return uuid.NewString()
}

// DefaultClock returns the current UTC time.
func DefaultClock() time.Time {
	return time.Now().UTC()
}

// AuditLog journals state-changing operations. Implemented by the audit log
// store; append failures must fail the enclosing operation.
type AuditLog interface {
	Append(ctx context.Context, triggerSource string, input, output any) error
}

// DeadLetterSink captures tasks whose retries are exhausted.
type DeadLetterSink interface {
	AppendDeadLetter(ctx context.Context, task Task, reason string) error
}

// BuildIdempotencyKey derives the deterministic idempotency key for a task.
// An empty entity id maps to the literal token "none"; a caller passing the
// string "none" as an entity id collides with the absent case intentionally.
func BuildIdempotencyKey(intentID, taskType, entityID string) string {
	if entityID == "" {
		entityID = "none"
	}
	return intentID + ":" + taskType + ":" + entityID
}

// PlannerConfig configures a task planner. Zero-value fields fall back to
// the production defaults; Audit is required.
type PlannerConfig struct {
	// Audit receives a journal record for every non-empty plan.
	Audit AuditLog

	// IDGenerator overrides task id generation.
	IDGenerator IDGenerator

	// Clock overrides the planning timestamp source.
	Clock Clock

	// Metrics records compiled plans and emitted tasks. Optional.
	Metrics *telemetry.Metrics
}

// TaskPlanner compiles a validated intent's task types into an ordered list
// of queued tasks. Given the same id generator, clock and inputs the planner
// produces byte-identical serialized output.
type TaskPlanner struct {
	audit   AuditLog
	idGen   IDGenerator
	clock   Clock
	metrics *telemetry.Metrics
}

// NewTaskPlanner creates a planner from the given configuration.
func NewTaskPlanner(cfg PlannerConfig) *TaskPlanner {
	idGen := cfg.IDGenerator
	if idGen == nil {
		idGen = DefaultIDGenerator
	}
	clock := cfg.Clock
	if clock == nil {
		clock = DefaultClock
	}
	return &TaskPlanner{
		audit:   cfg.Audit,
		idGen:   idGen,
		clock:   clock,
		metrics: cfg.Metrics,
	}
}

// PlanOptions carries the optional planning inputs.
type PlanOptions struct {
	// EntityID scopes the idempotency keys to a CRM entity. Empty means the
	// plan is not entity-scoped.
	EntityID string

	// Payloads maps task types to the payload forwarded to their handlers.
	// Task types without an entry receive an empty payload.
	Payloads map[string]map[string]any
}

// PlanTasks builds one queued task per task type, in input order. All tasks
// of one plan share a single clock reading. A non-empty plan is journaled
// under "orchestrator.plan_tasks" before it is returned.
func (p *TaskPlanner) PlanTasks(ctx context.Context, intentID string, taskTypes []string, opts PlanOptions) ([]Task, error) {
	createdAt := p.clock()

	tasks := make([]Task, 0, len(taskTypes))
	for _, taskType := range taskTypes {
		payload := map[string]any{}
		for k, v := range opts.Payloads[taskType] {
			payload[k] = v
		}
		tasks = append(tasks, Task{
			TaskID:         p.idGen(taskType),
			IntentID:       intentID,
			TaskType:       taskType,
			Status:         TaskStatusQueued,
			RetryCount:     0,
			IdempotencyKey: BuildIdempotencyKey(intentID, taskType, opts.EntityID),
			Payload:        payload,
			CreatedAt:      createdAt,
		})
	}

	if len(tasks) == 0 {
		return tasks, nil
	}

	var entityID any
	if opts.EntityID != "" {
		entityID = opts.EntityID
	}
	payloads := opts.Payloads
	if payloads == nil {
		payloads = map[string]map[string]any{}
	}

	input := map[string]any{
		"intent_id":  intentID,
		"task_types": taskTypes,
		"entity_id":  entityID,
		"payloads":   payloads,
	}
	output := map[string]any{"tasks": tasksToMaps(tasks)}
	if err := p.audit.Append(ctx, "orchestrator.plan_tasks", input, output); err != nil {
		return nil, NewPersistenceError("failed to journal task plan", err)
	}
	p.metrics.RecordPlanCreated(taskTypes)

	return tasks, nil
}

func tasksToMaps(tasks []Task) []map[string]any {
	maps := make([]map[string]any, 0, len(tasks))
	for _, task := range tasks {
		maps = append(maps, task.ToMap())
	}
	return maps
}
