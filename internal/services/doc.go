// Package services defines shared utilities consumed by the gateway, the job
// workflow and the capture pipeline.
//
// It provides context helpers that stamp job IDs and correlation identifiers
// for logging, plus structured error markers and the Wrap helper. The gateway
// maps those markers onto HTTP status codes in one place.
package services
