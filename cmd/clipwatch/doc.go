// Command clipwatch is the operator CLI for the clipwatch gateway.
//
// `clipwatch serve` runs the daemon: store, workflow manager, folder watcher
// and HTTP gateway. `clipwatch capture` records a live source into segments
// and uploads them to the gateway, cutting either on a timer or at detected
// reference clips. The remaining commands either talk to a running gateway
// over HTTP (search, result, latest, match, forget, reset, verify, update-db,
// health) or work on local state directly (jobs, segment, signatures, deps,
// config).
package main
