package stores

import (
	"time"

	"github.com/salesops/salesops/pkg/orchestrator"
)

// Clock returns the current time. Stores default to UTC now.
type Clock func() time.Time

// DefaultClock returns the current UTC time.
func DefaultClock() time.Time {
	return time.Now().UTC()
}

// AuditRecord is one appended audit log row.
type AuditRecord struct {
	// ID is the auto-assigned, monotonically increasing row id.
	ID int64 `json:"id"`

	// TriggerSource names the operation that produced the record.
	TriggerSource string `json:"trigger_source"`

	// InputJSON is the canonical JSON of the operation inputs.
	InputJSON string `json:"input_json"`

	// OutputResult is the canonical JSON of the operation outputs.
	OutputResult string `json:"output_result"`

	// CreatedAt is the UTC append timestamp.
	CreatedAt time.Time `json:"created_at"`
}

// DeadLetterItem is one quarantined task row.
type DeadLetterItem struct {
	// ID is the auto-assigned row id.
	ID int64 `json:"id"`

	// Task is the task as it was when its retries ran out.
	Task orchestrator.Task `json:"task"`

	// Reason records why the task was quarantined.
	Reason string `json:"reason"`

	// DeadletteredAt is the UTC quarantine timestamp.
	DeadletteredAt time.Time `json:"deadlettered_at"`
}
