// Package gateway is the HTTP front door of clipwatch.
//
// It accepts query clips (multipart upload or a server-side path), hands them
// to the workflow manager, serves job results and the cross-job leaderboard,
// persists segments uploaded by the recorder, streams videos with byte-range
// support from allow-listed directories, and relays verification and index
// rebuild requests to the similarity engine.
//
// Routing is chi; every error leaves as JSON {"error": "..."} with the status
// derived from the services error markers. Mutating routes require the bearer
// token when server.api_token is set.
package gateway
