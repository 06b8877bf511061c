// Package notifications publishes search outcomes to ntfy.
//
// NewService returns a no-op when no topic is configured, so callers never
// need to check whether notifications are enabled. Each Event has a fixed
// title, tag set and priority; the Payload supplies the variable parts of
// the message body.
package notifications
