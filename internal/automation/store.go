package automation

import (
	"context"
	"time"
)

// Store persists subscribers and scheduled tasks. Two implementations exist:
// MemoryStore (single process, no persistence) and PGStore (PostgreSQL, for
// deployments that cannot lose the queue on restart).
//
// Task state transitions go through the claim protocol: ClaimTask is the
// only way a task leaves pending, and it succeeds for exactly one caller.
// MarkSent, ReleaseTask, RecordFailure, and MarkFailed operate on the
// claimed (inflight) task only.
type Store interface {
	CreateSubscriber(ctx context.Context, sub *Subscriber) error
	// GetSubscriber returns ErrNotFound for unknown ids.
	GetSubscriber(ctx context.Context, id string) (*Subscriber, error)
	SetSubscriberStatus(ctx context.Context, id string, status SubscriberStatus) error
	// IncrementEmailsSent bumps the subscriber's delivered-message counter.
	IncrementEmailsSent(ctx context.Context, id string) error

	// CreateTasks inserts all follow-up tasks for a subscriber in one call.
	CreateTasks(ctx context.Context, tasks []*ScheduledTask) error
	// DueTasks returns pending tasks with dueAt <= now, in arbitrary order.
	// It is a pure read and never mutates task status.
	DueTasks(ctx context.Context, now time.Time) ([]*ScheduledTask, error)
	// ClaimTask atomically moves a task pending → inflight. Returns false
	// when the task is no longer pending (claimed, sent, or failed).
	ClaimTask(ctx context.Context, id string) (bool, error)
	// MarkSent moves a claimed task inflight → sent and records sentAt.
	MarkSent(ctx context.Context, id string, now time.Time) error
	// ReleaseTask moves a claimed task inflight → pending without counting
	// an attempt. Used when dispatch is skipped (inactive subscriber).
	ReleaseTask(ctx context.Context, id string) error
	// RecordFailure moves a claimed task inflight → pending, counting one
	// attempt and recording the error, so a later tick retries it.
	RecordFailure(ctx context.Context, id string, sendErr string) error
	// MarkFailed dead-letters a claimed task (inflight → failed).
	MarkFailed(ctx context.Context, id string, sendErr string) error

	Stats(ctx context.Context) (*Stats, error)
}
