package stores

import (
	"context"
	"database/sql"
	"os"
	"sync"
)

// DatabasePathEnv names the environment variable that points the default
// stores at their SQLite file.
const DatabasePathEnv = "SALESOPS_DB_PATH"

// defaultDatabasePath is used when DatabasePathEnv is unset.
const defaultDatabasePath = "salesops.db"

var (
	defaultMu          sync.Mutex
	defaultDB          *sql.DB
	defaultAudit       *AuditLogStore
	defaultDeadLetters *DeadLetterStore
)

// DefaultAuditLog returns the process-wide audit log store, creating it on
// first access. It lives until process exit unless replaced with
// SetDefaultAuditLog.
func DefaultAuditLog() (*AuditLogStore, error) {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	if defaultAudit != nil {
		return defaultAudit, nil
	}
	db, err := defaultHandle()
	if err != nil {
		return nil, err
	}
	defaultAudit = NewAuditLogStore(AuditLogConfig{DB: db})
	return defaultAudit, nil
}

// DefaultDeadLetters returns the process-wide dead-letter store, creating it
// on first access.
func DefaultDeadLetters() (*DeadLetterStore, error) {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	if defaultDeadLetters != nil {
		return defaultDeadLetters, nil
	}
	db, err := defaultHandle()
	if err != nil {
		return nil, err
	}
	defaultDeadLetters = NewDeadLetterStore(DeadLetterConfig{DB: db})
	return defaultDeadLetters, nil
}

// SetDefaultAuditLog replaces the process-wide audit log store. Tests and
// alternative deployments use this to substitute their own store.
func SetDefaultAuditLog(store *AuditLogStore) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultAudit = store
}

// SetDefaultDeadLetters replaces the process-wide dead-letter store.
func SetDefaultDeadLetters(store *DeadLetterStore) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultDeadLetters = store
}

// defaultHandle opens the shared default database once. Callers hold defaultMu.
func defaultHandle() (*sql.DB, error) {
	if defaultDB != nil {
		return defaultDB, nil
	}

	path := os.Getenv(DatabasePathEnv)
	if path == "" {
		path = defaultDatabasePath
	}
	db, err := Open(context.Background(), path)
	if err != nil {
		return nil, err
	}
	defaultDB = db
	return defaultDB, nil
}
