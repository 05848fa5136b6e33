// Package stores provides the durable persistence layer for the
// orchestration substrate: the append-only audit log and the dead-letter
// table. Both are born durable and never updated or deleted.
//
// The default backend is SQLite (modernc.org/sqlite); any database/sql
// handle whose driver understands the two schemas works. Tables are created
// on first use, and embedded golang-migrate migrations cover managed
// deployments.
package stores
