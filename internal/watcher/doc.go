// Package watcher polls the watched folder that segment uploads land in.
//
// Each poll first enforces the retention cap by deleting the oldest videos,
// then submits every remaining video whose path has no job of any status.
// Polls never overlap: a tick that arrives while the previous poll is still
// running is skipped.
package watcher
