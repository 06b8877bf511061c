package queue

import "errors"

// ErrInvalidTransition is returned when a status change would violate the job lifecycle.
var ErrInvalidTransition = errors.New("invalid status transition")
