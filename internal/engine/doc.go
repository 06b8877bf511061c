// Package engine is the HTTP client for the external similarity engine.
//
// The engine exposes search, verify, extract and health endpoints. Each call
// carries its own timeout through the request context; failures are tagged
// with services error markers so the workflow can record them on the job.
package engine
