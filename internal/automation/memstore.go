package automation

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryStore is the in-process Store: mutex-guarded maps, no persistence.
// All state is lost on restart; deployments that care use PGStore instead.
type MemoryStore struct {
	mu          sync.Mutex
	subscribers map[string]*Subscriber
	tasks       map[string]*ScheduledTask
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		subscribers: make(map[string]*Subscriber),
		tasks:       make(map[string]*ScheduledTask),
	}
}

func (s *MemoryStore) CreateSubscriber(ctx context.Context, sub *Subscriber) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.subscribers[sub.ID]; exists {
		return fmt.Errorf("subscriber %s already exists", sub.ID)
	}
	cp := *sub
	s.subscribers[sub.ID] = &cp
	return nil
}

func (s *MemoryStore) GetSubscriber(ctx context.Context, id string) (*Subscriber, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.subscribers[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *sub
	return &cp, nil
}

func (s *MemoryStore) SetSubscriberStatus(ctx context.Context, id string, status SubscriberStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.subscribers[id]
	if !ok {
		return ErrNotFound
	}
	sub.Status = status
	return nil
}

func (s *MemoryStore) IncrementEmailsSent(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.subscribers[id]
	if !ok {
		return ErrNotFound
	}
	sub.EmailsSent++
	return nil
}

func (s *MemoryStore) CreateTasks(ctx context.Context, tasks []*ScheduledTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range tasks {
		if _, exists := s.tasks[t.ID]; exists {
			return fmt.Errorf("task %s already exists", t.ID)
		}
	}
	for _, t := range tasks {
		cp := *t
		s.tasks[t.ID] = &cp
	}
	return nil
}

func (s *MemoryStore) DueTasks(ctx context.Context, now time.Time) ([]*ScheduledTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var due []*ScheduledTask
	for _, t := range s.tasks {
		if t.Status == TaskPending && !t.DueAt.After(now) {
			cp := *t
			due = append(due, &cp)
		}
	}
	return due, nil
}

func (s *MemoryStore) ClaimTask(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return false, ErrNotFound
	}
	if t.Status != TaskPending {
		return false, nil
	}
	t.Status = TaskInflight
	return true, nil
}

func (s *MemoryStore) MarkSent(ctx context.Context, id string, now time.Time) error {
	return s.transition(id, TaskInflight, func(t *ScheduledTask) {
		t.Status = TaskSent
		t.SentAt = &now
		t.LastError = ""
	})
}

func (s *MemoryStore) ReleaseTask(ctx context.Context, id string) error {
	return s.transition(id, TaskInflight, func(t *ScheduledTask) {
		t.Status = TaskPending
	})
}

func (s *MemoryStore) RecordFailure(ctx context.Context, id string, sendErr string) error {
	return s.transition(id, TaskInflight, func(t *ScheduledTask) {
		t.Status = TaskPending
		t.Attempts++
		t.LastError = sendErr
	})
}

func (s *MemoryStore) MarkFailed(ctx context.Context, id string, sendErr string) error {
	return s.transition(id, TaskInflight, func(t *ScheduledTask) {
		t.Status = TaskFailed
		t.Attempts++
		t.LastError = sendErr
	})
}

func (s *MemoryStore) transition(id string, from TaskStatus, apply func(*ScheduledTask)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return ErrNotFound
	}
	if t.Status != from {
		return fmt.Errorf("task %s is %s, expected %s", id, t.Status, from)
	}
	apply(t)
	return nil
}

func (s *MemoryStore) Stats(ctx context.Context) (*Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := &Stats{}
	for _, sub := range s.subscribers {
		stats.TotalSubscribers++
		if sub.Status == StatusActive {
			stats.ActiveSubscribers++
		}
		stats.EmailsSent += sub.EmailsSent
	}
	stats.TotalEmailsScheduled = len(s.tasks)
	return stats, nil
}

// TasksForSubscriber returns copies of all tasks referencing the subscriber,
// in no particular order. Test and debugging helper.
func (s *MemoryStore) TasksForSubscriber(id string) []*ScheduledTask {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*ScheduledTask
	for _, t := range s.tasks {
		if t.SubscriberID == id {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out
}
