// Package store persists projects, files, language pairs, targets,
// artifacts, validations, and the pipeline job ledger in SQLite.
//
// The Store owns the connection, applies whitelisted durability
// pragmas, and runs the idempotent schema bootstrap on every open. All
// mutating methods serialize through one write mutex; the engine is
// single-process and single-writer-at-a-time. Enum columns are parsed
// into closed Go types at the scan boundary, and unrecognized stored
// values surface as UnknownEnumError rather than being coerced.
//
// Treat this package as the single source of truth for persistence
// semantics; when adding statuses or columns, update schema.sql and the
// matching parser in models.go together.
package store
