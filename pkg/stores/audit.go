package stores

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/salesops/salesops/pkg/canonjson"
	"github.com/salesops/salesops/pkg/orchestrator"
)

const createAuditLogTable = `
	CREATE TABLE IF NOT EXISTS audit_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		trigger_source TEXT NOT NULL,
		input_json TEXT NOT NULL,
		output_result TEXT NOT NULL,
		created_at TEXT NOT NULL
	)
`

// AuditLogConfig configures an audit log store.
type AuditLogConfig struct {
	// DB is the database handle. Required. Tests may share one in-memory
	// handle across stores.
	DB *sql.DB

	// Clock overrides the append timestamp source.
	Clock Clock
}

// AuditLogStore is the append-only journal of every plan, transition and
// handler invocation. It exposes no update or delete path. An append failure
// surfaces to the caller: the enclosing state change must not be reported as
// successful.
type AuditLogStore struct {
	db    *sql.DB
	clock Clock

	initOnce sync.Once
	initErr  error
}

// Compile-time check that the store satisfies the orchestrator's audit seam.
var _ orchestrator.AuditLog = (*AuditLogStore)(nil)

// NewAuditLogStore creates an audit log store from the given configuration.
func NewAuditLogStore(cfg AuditLogConfig) *AuditLogStore {
	clock := cfg.Clock
	if clock == nil {
		clock = DefaultClock
	}
	return &AuditLogStore{
		db:    cfg.DB,
		clock: clock,
	}
}

// ensureTable creates the audit_log table on first use.
func (s *AuditLogStore) ensureTable(ctx context.Context) error {
	s.initOnce.Do(func() {
		if _, err := s.db.ExecContext(ctx, createAuditLogTable); err != nil {
			s.initErr = fmt.Errorf("failed to create audit_log table: %w", err)
		}
	})
	return s.initErr
}

// Append journals one record. Input and output payloads are serialized to
// canonical JSON so equal logical inputs produce byte-equal rows.
func (s *AuditLogStore) Append(ctx context.Context, triggerSource string, input, output any) error {
	if err := s.ensureTable(ctx); err != nil {
		return err
	}

	inputJSON, err := canonjson.Marshal(input)
	if err != nil {
		return fmt.Errorf("failed to serialize audit input: %w", err)
	}
	outputJSON, err := canonjson.Marshal(output)
	if err != nil {
		return fmt.Errorf("failed to serialize audit output: %w", err)
	}

	query := `
		INSERT INTO audit_log (trigger_source, input_json, output_result, created_at)
		VALUES (?, ?, ?, ?)
	`
	createdAt := orchestrator.FormatTimestamp(s.clock())
	if _, err := s.db.ExecContext(ctx, query, triggerSource, string(inputJSON), string(outputJSON), createdAt); err != nil {
		return fmt.Errorf("failed to append audit record: %w", err)
	}

	return nil
}

// Tail returns up to limit records in descending id order, for operator
// inspection.
func (s *AuditLogStore) Tail(ctx context.Context, limit int) ([]AuditRecord, error) {
	if err := s.ensureTable(ctx); err != nil {
		return nil, err
	}

	query := `
		SELECT id, trigger_source, input_json, output_result, created_at
		FROM audit_log
		ORDER BY id DESC
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to read audit log: %w", err)
	}
	defer rows.Close()

	records := []AuditRecord{}
	for rows.Next() {
		var record AuditRecord
		var createdAt string
		if err := rows.Scan(&record.ID, &record.TriggerSource, &record.InputJSON, &record.OutputResult, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit record: %w", err)
		}
		record.CreatedAt, err = orchestrator.ParseTimestamp(createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse audit timestamp: %w", err)
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit records: %w", err)
	}

	return records, nil
}

// Count returns the number of appended records.
func (s *AuditLogStore) Count(ctx context.Context) (int64, error) {
	if err := s.ensureTable(ctx); err != nil {
		return 0, err
	}

	var count int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM audit_log`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count audit records: %w", err)
	}
	return count, nil
}
