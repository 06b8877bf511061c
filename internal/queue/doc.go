// Package queue persists search jobs and their ranked results and exposes
// helpers for driving the job lifecycle.
//
// The Store wraps database/sql over SQLite (default) or MySQL. It owns schema
// creation, the atomic pending to processing claim, result persistence on
// completion, the cross-job leaderboard, result labelling, cascading
// delete-by-path, bulk reset and stale job reaping. Writes retry on SQLite
// busy errors and MySQL deadlocks.
//
// Treat this package as the single source of truth for job state; when you add
// columns, update both schema files and bump schemaVersion.
package queue
