package stores

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/salesops/salesops/pkg/canonjson"
	"github.com/salesops/salesops/pkg/orchestrator"
)

const createDeadLetterTable = `
	CREATE TABLE IF NOT EXISTS deadletter_tasks (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		task_json TEXT NOT NULL,
		reason TEXT NOT NULL,
		deadlettered_at TEXT NOT NULL
	)
`

// DeadLetterConfig configures a dead-letter store.
type DeadLetterConfig struct {
	// DB is the database handle. Required.
	DB *sql.DB

	// Clock overrides the quarantine timestamp source.
	Clock Clock
}

// DeadLetterStore durably captures tasks whose bounded retries are
// exhausted. Rows are append-only.
type DeadLetterStore struct {
	db    *sql.DB
	clock Clock

	initOnce sync.Once
	initErr  error
}

// Compile-time check that the store satisfies the state machine's sink seam.
var _ orchestrator.DeadLetterSink = (*DeadLetterStore)(nil)

// NewDeadLetterStore creates a dead-letter store from the given configuration.
func NewDeadLetterStore(cfg DeadLetterConfig) *DeadLetterStore {
	clock := cfg.Clock
	if clock == nil {
		clock = DefaultClock
	}
	return &DeadLetterStore{
		db:    cfg.DB,
		clock: clock,
	}
}

func (s *DeadLetterStore) ensureTable(ctx context.Context) error {
	s.initOnce.Do(func() {
		if _, err := s.db.ExecContext(ctx, createDeadLetterTable); err != nil {
			s.initErr = fmt.Errorf("failed to create deadletter_tasks table: %w", err)
		}
	})
	return s.initErr
}

// Append stores one quarantined task and returns the stored item with its
// assigned id. The task is serialized to canonical JSON.
func (s *DeadLetterStore) Append(ctx context.Context, task orchestrator.Task, reason string) (DeadLetterItem, error) {
	if err := s.ensureTable(ctx); err != nil {
		return DeadLetterItem{}, err
	}

	taskJSON, err := canonjson.Marshal(task.ToMap())
	if err != nil {
		return DeadLetterItem{}, fmt.Errorf("failed to serialize task: %w", err)
	}

	deadletteredAt := s.clock().UTC()
	query := `
		INSERT INTO deadletter_tasks (task_json, reason, deadlettered_at)
		VALUES (?, ?, ?)
	`
	result, err := s.db.ExecContext(ctx, query, string(taskJSON), reason, orchestrator.FormatTimestamp(deadletteredAt))
	if err != nil {
		return DeadLetterItem{}, fmt.Errorf("failed to append dead-letter task: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return DeadLetterItem{}, fmt.Errorf("failed to get dead-letter id: %w", err)
	}

	return DeadLetterItem{
		ID:             id,
		Task:           task,
		Reason:         reason,
		DeadletteredAt: deadletteredAt,
	}, nil
}

// AppendDeadLetter implements the state machine's dead-letter sink.
func (s *DeadLetterStore) AppendDeadLetter(ctx context.Context, task orchestrator.Task, reason string) error {
	_, err := s.Append(ctx, task, reason)
	return err
}

// List returns up to limit items in descending id order. Persisted
// timestamps without a timezone are interpreted as UTC.
func (s *DeadLetterStore) List(ctx context.Context, limit int) ([]DeadLetterItem, error) {
	if err := s.ensureTable(ctx); err != nil {
		return nil, err
	}

	query := `
		SELECT id, task_json, reason, deadlettered_at
		FROM deadletter_tasks
		ORDER BY id DESC
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list dead-letter tasks: %w", err)
	}
	defer rows.Close()

	items := []DeadLetterItem{}
	for rows.Next() {
		var item DeadLetterItem
		var taskJSON, deadletteredAt string
		if err := rows.Scan(&item.ID, &taskJSON, &item.Reason, &deadletteredAt); err != nil {
			return nil, fmt.Errorf("failed to scan dead-letter task: %w", err)
		}

		var taskMap map[string]any
		if err := json.Unmarshal([]byte(taskJSON), &taskMap); err != nil {
			return nil, fmt.Errorf("failed to decode dead-letter task: %w", err)
		}
		item.Task, err = orchestrator.TaskFromMap(taskMap)
		if err != nil {
			return nil, fmt.Errorf("failed to rebuild dead-letter task: %w", err)
		}

		item.DeadletteredAt, err = orchestrator.ParseTimestamp(deadletteredAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse dead-letter timestamp: %w", err)
		}

		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating dead-letter tasks: %w", err)
	}

	return items, nil
}

// Count returns the number of quarantined tasks.
func (s *DeadLetterStore) Count(ctx context.Context) (int64, error) {
	if err := s.ensureTable(ctx); err != nil {
		return 0, err
	}

	var count int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM deadletter_tasks`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count dead-letter tasks: %w", err)
	}
	return count, nil
}
