// Package workflow drives search jobs through their lifecycle.
//
// The Manager turns submitted paths into pending jobs and runs one goroutine
// per job: claim (pending to processing), call the similarity engine, then
// persist up to MaxResults ranked results as completed or record a truncated
// error as failed. Jobs never retry; a failed job is resubmitted as a new job.
// Temporary uploads are deleted once their job reaches a terminal state.
//
// A cron-scheduled reaper fails processing jobs that outlived the engine
// timeout (a crash or a lost status write) and evicts expired verifications.
// Pending jobs found at Start are dispatched again; the atomic claim keeps
// them single-execution.
package workflow
