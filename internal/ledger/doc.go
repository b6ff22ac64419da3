// Package ledger records prepared artifacts and deployment attempts in a
// local SQLite database.
//
// Each artifact row captures the checkpoint and archive digests so a later
// run can tell whether a cached archive still matches what was shipped. Each
// deployment row tracks one Orchestrator run from start to its terminal
// status. Runs left in the running state by a crashed process are marked
// interrupted the next time a deployment acquires the deploy lock.
//
// Schema changes land as new files under migrations/; applied versions are
// tracked in schema_migrations.
package ledger
