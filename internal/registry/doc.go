// Package registry tracks render jobs for status polling and result lookup.
//
// The in-memory Registry is the authoritative view of live jobs: it serializes
// state transitions per job, enforces monotonicity (terminal states never
// revert), and evicts terminal jobs after the retention window. The SQLite
// Journal is an append-style durable record of submissions and outcomes that
// survives restarts for operator history; it never feeds back into live state.
package registry
