// Package main hosts the subburn CLI entrypoint and command graph.
//
// The Cobra-based command tree translates terminal invocations into HTTP
// calls against the subburnd daemon: job submission, status polling, artifact
// fetching, cancellation, history queries, and configuration scaffolding. It
// centralizes configuration resolution and daemon address discovery so
// subcommands can focus on user experience instead of wiring.
package main
