package automation

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"
)

// SubscriberStatus is the lifecycle state of a subscriber.
type SubscriberStatus string

const (
	StatusActive       SubscriberStatus = "active"
	StatusUnsubscribed SubscriberStatus = "unsubscribed"
)

// Subscriber is one landing-page signup. Email and FirstName are immutable
// after creation; repeated signups with the same email deliberately create
// independent records (the id embeds the creation timestamp).
type Subscriber struct {
	ID           string           `json:"id"`
	Email        string           `json:"email"`
	FirstName    string           `json:"first_name"`
	SubscribedAt time.Time        `json:"subscribed_at"`
	EmailsSent   int              `json:"emails_sent"`
	Status       SubscriberStatus `json:"status"`
}

// TaskStatus is the delivery state of a scheduled task.
//
// pending → inflight is an atomic claim taken by exactly one dispatcher.
// inflight → sent is terminal. inflight → pending returns the task to the
// queue for a later tick; inflight → failed dead-letters it after the
// attempt limit.
type TaskStatus string

const (
	TaskPending  TaskStatus = "pending"
	TaskInflight TaskStatus = "inflight"
	TaskSent     TaskStatus = "sent"
	TaskFailed   TaskStatus = "failed"
)

// ScheduledTask is an instruction to deliver one sequence message to one
// subscriber at a computed due time. The subscriber reference is by id, not
// ownership: the subscriber's status is re-checked at dispatch time.
type ScheduledTask struct {
	ID           string     `json:"id"`
	SubscriberID string     `json:"subscriber_id"`
	TemplateKey  string     `json:"template_key"`
	DueAt        time.Time  `json:"due_at"`
	Status       TaskStatus `json:"status"`
	Attempts     int        `json:"attempts"`
	SentAt       *time.Time `json:"sent_at,omitempty"`
	LastError    string     `json:"last_error,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// Stats is the aggregate state of the subscriber store and queue.
type Stats struct {
	TotalSubscribers     int `json:"totalSubscribers"`
	ActiveSubscribers    int `json:"activeSubscribers"`
	TotalEmailsScheduled int `json:"totalEmailsScheduled"`
	EmailsSent           int `json:"emailsSent"`
}

// NewSubscriberID derives a subscriber id from the email and creation
// timestamp. Because the timestamp participates, the same email subscribing
// twice yields two distinct ids.
func NewSubscriberID(email string, at time.Time) string {
	h := sha256.Sum256([]byte(email + "|" + strconv.FormatInt(at.UnixNano(), 10)))
	return "sub_" + hex.EncodeToString(h[:8])
}
