// Package daemon coordinates the long-running clipwatch process.
//
// It wires configuration, the job store, the workflow manager, the directory
// watcher and the HTTP gateway into a single lifecycle with flock-based
// locking to prevent multiple instances against the same log directory. Run
// is the process entry point used by `clipwatch serve`: it builds the logger,
// opens the store, starts the daemon and blocks until SIGINT or SIGTERM.
//
// Keep orchestration logic here: job execution lives in workflow, HTTP
// handling in gateway, and the daemon focuses on startup, shutdown, and high
// level coordination.
package daemon
