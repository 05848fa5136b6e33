package orchestrator

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Worker symbolic handler ids, as registered in the worker dispatch table.
const (
	WorkerCompanySearch  = "workers.tasks.company_search"
	WorkerContactFinder  = "workers.tasks.contact_finder"
	WorkerNewsCollector  = "workers.tasks.news_collector"
	WorkerEmailGenerator = "workers.tasks.email_generator"
	WorkerScheduler      = "workers.tasks.scheduler"
	WorkerPipelineBANT   = "workers.tasks.pipeline_bant"
)

// DispatchTable maps each action to the symbolic id of the worker handler
// that executes it. The table is constant.
var DispatchTable = map[Action]string{
	ActionSearchCompanies: WorkerCompanySearch,
	ActionFindContacts:    WorkerContactFinder,
	ActionCollectNews:     WorkerNewsCollector,
	ActionGenerateEmails:  WorkerEmailGenerator,
	ActionScheduleEmails:  WorkerScheduler,
	ActionUpdatePipeline:  WorkerPipelineBANT,
}

// WorkerRef links a planned task to its symbolic worker id for the external
// dispatcher.
type WorkerRef struct {
	TaskID   string `json:"task_id"`
	TaskType string `json:"task_type"`
	Worker   string `json:"worker"`
}

// Config configures the orchestrator façade.
type Config struct {
	// Planner compiles intents into task plans.
	Planner *TaskPlanner

	// Audit journals every planning call under "orchestrator.plan_intent".
	Audit AuditLog
}

// Orchestrator binds validated intents to the planner and the worker
// dispatch table.
type Orchestrator struct {
	planner *TaskPlanner
	audit   AuditLog
	tracer  trace.Tracer
}

// New creates an orchestrator from the given configuration.
func New(cfg Config) *Orchestrator {
	return &Orchestrator{
		planner: cfg.Planner,
		audit:   cfg.Audit,
		tracer:  otel.Tracer("salesops/orchestrator"),
	}
}

// PlanTasksForIntent compiles the intent's actions into an ordered task plan.
// Each task's payload merges the intent's raw text, language and
// canonicalized filters. The call is journaled under
// "orchestrator.plan_intent" with the intent id and the resulting tasks.
func (o *Orchestrator) PlanTasksForIntent(ctx context.Context, intent *Intent) ([]Task, error) {
	ctx, span := o.tracer.Start(ctx, "orchestrator.plan_intent", trace.WithAttributes(
		attribute.String("intent_id", intent.IntentID),
		attribute.Int("action_count", len(intent.Actions)),
	))
	defer span.End()

	tasks, err := o.planner.PlanTasks(ctx, intent.IntentID, intent.TaskTypes(), PlanOptions{
		Payloads: buildPayloads(intent),
	})
	if err != nil {
		return nil, err
	}

	input := map[string]any{
		"intent_id": intent.IntentID,
		"actions":   intent.TaskTypes(),
	}
	output := map[string]any{"tasks": tasksToMaps(tasks)}
	if err := o.audit.Append(ctx, "orchestrator.plan_intent", input, output); err != nil {
		return nil, NewPersistenceError("failed to journal intent plan", err)
	}

	return tasks, nil
}

// MapTasksToWorkers produces the dispatch table entries for a task plan.
func MapTasksToWorkers(tasks []Task) []WorkerRef {
	refs := make([]WorkerRef, 0, len(tasks))
	for _, task := range tasks {
		refs = append(refs, WorkerRef{
			TaskID:   task.TaskID,
			TaskType: task.TaskType,
			Worker:   DispatchTable[Action(task.TaskType)],
		})
	}
	return refs
}

// buildPayloads merges the intent context into a per-task payload. Only
// present filter keys survive canonicalization; an absent language is
// recorded as an explicit null.
func buildPayloads(intent *Intent) map[string]map[string]any {
	var language any
	if intent.Language != "" {
		language = intent.Language
	}

	payloads := make(map[string]map[string]any, len(intent.Actions))
	for _, action := range intent.Actions {
		payloads[string(action)] = map[string]any{
			"raw_text": intent.RawText,
			"language": language,
			"filters":  intent.Filters.ToMap(),
		}
	}
	return payloads
}
