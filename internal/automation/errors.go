package automation

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by store lookups for unknown ids.
var ErrNotFound = errors.New("not found")

// ErrAlreadyRunning is returned by Engine.Start when the scheduler loop is
// already armed.
var ErrAlreadyRunning = errors.New("scheduler already running")

// ValidationError reports a user-correctable problem with a subscribe
// request. Field names the offending input so the caller can retry.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// DeliveryError reports a transport failure for one message. The scheduler
// catches it per task: the task returns to the queue and other due tasks in
// the same tick still run.
type DeliveryError struct {
	TemplateKey string
	Err         error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("delivery of %q failed: %v", e.TemplateKey, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }
