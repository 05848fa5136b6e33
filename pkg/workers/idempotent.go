// Package workers provides the idempotent execution wrapper around worker
// handlers and the reference handler set behind the orchestrator's dispatch
// table.
package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/salesops/salesops/pkg/canonjson"
	"github.com/salesops/salesops/pkg/telemetry"
)

const (
	// LockTTL caps how long a crashed handler can hold an execution lock.
	LockTTL = 300 * time.Second

	// ResultTTL is how long memoized handler results are served.
	ResultTTL = 86400 * time.Second
)

// Result envelope statuses.
const (
	StatusSuccess = "success"
	StatusLocked  = "locked"
	StatusFailed  = "failed"
)

// Handler is a worker business function: payload in, result record out.
// Handlers are defined externally to the substrate; the executor only wraps
// them.
type Handler func(ctx context.Context, payload map[string]any) (map[string]any, error)

// AuditLog journals every wrapped invocation. Append failures fail the
// invocation: an effect that cannot be journaled is not reported.
type AuditLog interface {
	Append(ctx context.Context, triggerSource string, input, output any) error
}

// TokenGenerator produces lock tokens. The default returns random UUIDs.
type TokenGenerator func() string

// Envelope is the result record returned by the executor.
type Envelope struct {
	Status         string         `json:"status"`
	TaskType       string         `json:"task_type"`
	IdempotencyKey string         `json:"idempotency_key"`
	Result         map[string]any `json:"result,omitempty"`
	Error          string         `json:"error,omitempty"`
}

// ToMap converts the envelope to its generic JSON representation. Only
// present fields survive: success carries result, failed carries error,
// locked carries neither.
func (e Envelope) ToMap() map[string]any {
	m := map[string]any{
		"status":          e.Status,
		"task_type":       e.TaskType,
		"idempotency_key": e.IdempotencyKey,
	}
	if e.Result != nil {
		m["result"] = e.Result
	}
	if e.Error != "" {
		m["error"] = e.Error
	}
	return m
}

// BuildIdempotencyKey derives the idempotency key for a wrapped invocation.
// An empty entity id maps to the literal token "none". A non-empty version
// opens a fresh idempotency domain without changing intent or entity
// identity.
func BuildIdempotencyKey(intentID, taskType, entityID, version string) string {
	if entityID == "" {
		entityID = "none"
	}
	parts := []string{intentID, taskType, entityID}
	if version != "" {
		parts = append(parts, version)
	}
	return strings.Join(parts, ":")
}

// ExecutorConfig configures an idempotent executor. KV and Audit are
// required.
type ExecutorConfig struct {
	// KV is the shared key/value service used for locking and memoization.
	KV KV

	// Audit journals every invocation under "worker.<task_type>".
	Audit AuditLog

	// Tokens overrides lock token generation.
	Tokens TokenGenerator

	// Metrics records cache hits, lock contention and execution outcomes.
	Metrics *telemetry.Metrics
}

// Executor wraps worker handlers with lock-then-memoize semantics: at most
// one concurrent execution per idempotency key, and exactly-once effect once
// a result is cached. Failures are journaled and re-raised but never cached,
// so the next call with the same key retries. The executor never blocks on a
// lock held by another caller and never mutates task lifecycle state.
type Executor struct {
	kv      KV
	audit   AuditLog
	tokens  TokenGenerator
	metrics *telemetry.Metrics
	tracer  trace.Tracer
}

// NewExecutor creates an executor from the given configuration.
func NewExecutor(cfg ExecutorConfig) *Executor {
	tokens := cfg.Tokens
	if tokens == nil {
		tokens = uuid.NewString
	}
	return &Executor{
		kv:      cfg.KV,
		audit:   cfg.Audit,
		tokens:  tokens,
		metrics: cfg.Metrics,
		tracer:  otel.Tracer("salesops/workers"),
	}
}

// RunRequest identifies one wrapped invocation.
type RunRequest struct {
	// TaskType names the worker operation.
	TaskType string

	// IntentID is the parent intent's id.
	IntentID string

	// EntityID scopes the invocation to a CRM entity; empty means none.
	EntityID string

	// Version forces a fresh idempotency domain when payload semantics
	// change; empty means the base domain.
	Version string

	// Payload is forwarded to the handler unchanged.
	Payload map[string]any

	// Handler is the wrapped business function.
	Handler Handler
}

// Run executes the request with lock-then-memoize semantics.
//
// The observable effect sequence per idempotency key is: zero or more
// (locked | cached) results, one execution, then indefinite cached results
// until the result TTL expires.
func (e *Executor) Run(ctx context.Context, req RunRequest) (Envelope, error) {
	idem := BuildIdempotencyKey(req.IntentID, req.TaskType, req.EntityID, req.Version)
	lockKey := "lock:" + idem
	resultKey := "result:" + idem
	payload := req.Payload
	if payload == nil {
		payload = map[string]any{}
	}

	// Fast memoization path.
	cached, ok, err := e.kv.Get(ctx, resultKey)
	if err != nil {
		return Envelope{}, err
	}
	if ok {
		return e.serveCached(ctx, req, payload, cached)
	}

	token := e.tokens()
	acquired, err := e.kv.SetNX(ctx, lockKey, token, LockTTL)
	if err != nil {
		return Envelope{}, err
	}

	if !acquired {
		// Another holder may have finished between the result read and the
		// lock attempt.
		cached, ok, err := e.kv.Get(ctx, resultKey)
		if err != nil {
			return Envelope{}, err
		}
		if ok {
			return e.serveCached(ctx, req, payload, cached)
		}

		envelope := Envelope{
			Status:         StatusLocked,
			TaskType:       req.TaskType,
			IdempotencyKey: idem,
		}
		input := e.auditInput(req, payload)
		input["locked"] = true
		if err := e.audit.Append(ctx, "worker."+req.TaskType, input, envelope.ToMap()); err != nil {
			return Envelope{}, err
		}
		e.metrics.RecordWorkerLocked(req.TaskType)
		return envelope, nil
	}

	defer e.releaseLock(ctx, lockKey, token)

	return e.execute(ctx, req, payload, idem, resultKey)
}

// execute runs the handler while the lock is held.
func (e *Executor) execute(ctx context.Context, req RunRequest, payload map[string]any, idem, resultKey string) (Envelope, error) {
	ctx, span := e.tracer.Start(ctx, "worker.execute", trace.WithAttributes(
		attribute.String("task_type", req.TaskType),
		attribute.String("idempotency_key", idem),
	))
	defer span.End()

	started := time.Now()
	result, err := req.Handler(ctx, payload)
	elapsed := time.Since(started).Seconds()

	if err != nil {
		telemetry.RecordError(span, err)
		e.metrics.RecordWorkerExecution(req.TaskType, StatusFailed, elapsed)

		envelope := Envelope{
			Status:         StatusFailed,
			TaskType:       req.TaskType,
			IdempotencyKey: idem,
			Error:          err.Error(),
		}
		input := e.auditInput(req, payload)
		input["error"] = err.Error()
		if auditErr := e.audit.Append(ctx, "worker."+req.TaskType, input, envelope.ToMap()); auditErr != nil {
			return Envelope{}, auditErr
		}
		// Failures are observable but not sticky: nothing is cached.
		return envelope, fmt.Errorf("handler %s failed: %w", req.TaskType, err)
	}

	e.metrics.RecordWorkerExecution(req.TaskType, StatusSuccess, elapsed)

	envelope := Envelope{
		Status:         StatusSuccess,
		TaskType:       req.TaskType,
		IdempotencyKey: idem,
		Result:         result,
	}
	data, err := canonjson.Marshal(envelope.ToMap())
	if err != nil {
		return Envelope{}, fmt.Errorf("failed to serialize result envelope: %w", err)
	}
	if err := e.kv.Set(ctx, resultKey, string(data), ResultTTL); err != nil {
		return Envelope{}, err
	}
	if err := e.audit.Append(ctx, "worker."+req.TaskType, e.auditInput(req, payload), envelope.ToMap()); err != nil {
		return Envelope{}, err
	}

	return envelope, nil
}

// serveCached deserializes and journals a memoized result.
func (e *Executor) serveCached(ctx context.Context, req RunRequest, payload map[string]any, cached string) (Envelope, error) {
	var envelope Envelope
	if err := json.Unmarshal([]byte(cached), &envelope); err != nil {
		return Envelope{}, fmt.Errorf("failed to decode cached result: %w", err)
	}

	input := e.auditInput(req, payload)
	input["cached"] = true
	if err := e.audit.Append(ctx, "worker."+req.TaskType, input, envelope.ToMap()); err != nil {
		return Envelope{}, err
	}
	e.metrics.RecordWorkerCacheHit(req.TaskType)
	return envelope, nil
}

// releaseLock deletes the lock only if this executor still owns it. A token
// owned by another holder is never deleted.
func (e *Executor) releaseLock(ctx context.Context, lockKey, token string) {
	value, ok, err := e.kv.Get(ctx, lockKey)
	if err != nil {
		telemetry.FromContext(ctx).WithError(err).Warn("failed to read lock for release")
		return
	}
	if !ok || value != token {
		return
	}
	if err := e.kv.Del(ctx, lockKey); err != nil {
		telemetry.FromContext(ctx).WithError(err).Warn("failed to release lock")
	}
}

// auditInput builds the journaled input record for one invocation. Absent
// entity id and version are recorded as explicit nulls.
func (e *Executor) auditInput(req RunRequest, payload map[string]any) map[string]any {
	var entityID any
	if req.EntityID != "" {
		entityID = req.EntityID
	}
	var version any
	if req.Version != "" {
		version = req.Version
	}
	return map[string]any{
		"intent_id": req.IntentID,
		"entity_id": entityID,
		"payload":   payload,
		"version":   version,
	}
}
