// Package api defines the JSON payloads exchanged with the clipwatch gateway
// and a small HTTP client over them.
//
// The gateway encodes these types and the CLI and segment recorder decode
// them, so field names here are the wire contract. Field names use snake_case
// to stay compatible with existing capture clients.
package api
