package automation

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/leadflow/internal/pkg/distlock"
	"github.com/ignite/leadflow/internal/pkg/logger"
	"github.com/ignite/leadflow/internal/sequence"
)

// DeliveryResult describes one successful delivery.
type DeliveryResult struct {
	Provider  string    `json:"provider"`
	MessageID string    `json:"message_id"`
	SentAt    time.Time `json:"sent_at"`
}

// Dispatcher renders a sequence message for a subscriber and hands it to a
// transport. A transport failure comes back as *DeliveryError.
type Dispatcher interface {
	Send(ctx context.Context, sub *Subscriber, msg sequence.Message) (*DeliveryResult, error)
}

// Options tunes the engine. Zero values fall back to defaults.
type Options struct {
	// TickInterval is how often the scheduler scans for due tasks. Default 60s.
	TickInterval time.Duration
	// MaxAttempts is the delivery attempt limit per task before it is
	// dead-lettered. Default 5.
	MaxAttempts int
	// TickLock, when set, serializes ticks across processes sharing a
	// durable store. Nil means single-process operation.
	TickLock distlock.DistLock
}

// Engine owns the subscriber store, the queue, and the scheduler loop. It is
// constructed once in the process entry point and passed to the HTTP facade;
// there is no package-level instance.
type Engine struct {
	store       Store
	seq         *sequence.Sequence
	dispatcher  Dispatcher
	tick        time.Duration
	maxAttempts int
	tickLock    distlock.DistLock
	log         *logger.Logger

	mu         sync.Mutex
	running    bool
	stopCh     chan struct{}
	wg         sync.WaitGroup
	lastTickAt time.Time
}

// NewEngine creates an engine. The sequence must already be validated.
func NewEngine(store Store, seq *sequence.Sequence, dispatcher Dispatcher, opts Options) *Engine {
	if opts.TickInterval <= 0 {
		opts.TickInterval = 60 * time.Second
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 5
	}
	return &Engine{
		store:       store,
		seq:         seq,
		dispatcher:  dispatcher,
		tick:        opts.TickInterval,
		maxAttempts: opts.MaxAttempts,
		tickLock:    opts.TickLock,
		log:         logger.With("engine"),
	}
}

// Subscribe validates the input, creates the subscriber, sends the first
// sequence message synchronously, and queues the four follow-ups. Only the
// immediate send is awaited by the caller; scheduling never blocks on it.
//
// The same email subscribing twice creates two independent subscribers with
// independent follow-up schedules.
func (e *Engine) Subscribe(ctx context.Context, email, firstName string) (*Subscriber, error) {
	email = strings.TrimSpace(email)
	firstName = strings.TrimSpace(firstName)
	if err := validateSubscription(email, firstName); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	sub := &Subscriber{
		ID:           NewSubscriberID(email, now),
		Email:        email,
		FirstName:    firstName,
		SubscribedAt: now,
		Status:       StatusActive,
	}

	// The subscriber record must exist before any task referencing it.
	if err := e.store.CreateSubscriber(ctx, sub); err != nil {
		return nil, fmt.Errorf("create subscriber: %w", err)
	}

	if _, err := e.dispatcher.Send(ctx, sub, e.seq.Immediate()); err != nil {
		// The welcome message is best-effort: the signup stands and the
		// follow-up schedule is still created.
		e.log.Error("immediate send failed", "subscriber", sub.ID, "error", err)
	} else {
		if err := e.store.IncrementEmailsSent(ctx, sub.ID); err != nil {
			e.log.Error("increment emails_sent failed", "subscriber", sub.ID, "error", err)
		}
		sub.EmailsSent++
	}

	tasks := make([]*ScheduledTask, 0, len(e.seq.FollowUps()))
	for _, msg := range e.seq.FollowUps() {
		tasks = append(tasks, &ScheduledTask{
			ID:           uuid.NewString(),
			SubscriberID: sub.ID,
			TemplateKey:  msg.TemplateKey,
			DueAt:        now.Add(msg.Delay()),
			Status:       TaskPending,
			CreatedAt:    now,
		})
	}
	if err := e.store.CreateTasks(ctx, tasks); err != nil {
		return nil, fmt.Errorf("schedule follow-ups: %w", err)
	}

	e.log.Info("subscriber enrolled",
		"subscriber", sub.ID, "email", sub.Email, "follow_ups", len(tasks))
	return sub, nil
}

// Unsubscribe marks the subscriber unsubscribed. Queued tasks stay in the
// queue but are skipped at dispatch time.
func (e *Engine) Unsubscribe(ctx context.Context, subscriberID string) error {
	if err := e.store.SetSubscriberStatus(ctx, subscriberID, StatusUnsubscribed); err != nil {
		return err
	}
	e.log.Info("subscriber unsubscribed", "subscriber", subscriberID)
	return nil
}

// GetSubscriber looks up a subscriber by id.
func (e *Engine) GetSubscriber(ctx context.Context, id string) (*Subscriber, error) {
	return e.store.GetSubscriber(ctx, id)
}

// Start arms the scheduler loop. Calling Start while running is an error,
// not a second timer.
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.running {
		return ErrAlreadyRunning
	}
	e.running = true
	e.stopCh = make(chan struct{})

	e.wg.Add(1)
	go e.run(e.stopCh)

	e.log.Info("scheduler started", "tick", e.tick)
	return nil
}

// Stop halts future ticks and waits for the current tick to finish. It does
// not interrupt a send already in flight. Stop on a stopped engine is a no-op.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	close(e.stopCh)
	e.mu.Unlock()

	e.wg.Wait()
	e.log.Info("scheduler stopped")
}

// Running reports whether the scheduler loop is armed.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

func (e *Engine) run(stopCh <-chan struct{}) {
	defer e.wg.Done()

	ticker := time.NewTicker(e.tick)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			e.processDue(context.Background(), time.Now().UTC())
		}
	}
}

// processDue is one scheduler tick: scan for due pending tasks and dispatch
// each one. Failures are isolated per task; a tick with nothing due is a no-op.
func (e *Engine) processDue(ctx context.Context, now time.Time) {
	e.mu.Lock()
	e.lastTickAt = now
	e.mu.Unlock()

	if e.tickLock != nil {
		ok, err := e.tickLock.Acquire(ctx)
		if err != nil {
			e.log.Error("tick lock acquire failed", "error", err)
			return
		}
		if !ok {
			// another process owns this tick
			return
		}
		defer e.tickLock.Release(ctx)
	}

	tasks, err := e.store.DueTasks(ctx, now)
	if err != nil {
		e.log.Error("due task scan failed", "error", err)
		return
	}

	for _, task := range tasks {
		if ctx.Err() != nil {
			return
		}
		e.dispatchTask(ctx, task, now)
	}
}

// dispatchTask claims one due task and delivers it. The claim guarantees
// at most one in-flight delivery per task even with concurrent schedulers.
func (e *Engine) dispatchTask(ctx context.Context, task *ScheduledTask, now time.Time) {
	claimed, err := e.store.ClaimTask(ctx, task.ID)
	if err != nil {
		e.log.Error("claim failed", "task", task.ID, "error", err)
		return
	}
	if !claimed {
		return
	}

	sub, err := e.store.GetSubscriber(ctx, task.SubscriberID)
	if err != nil {
		// orphan task: the subscriber is gone, dead-letter it
		e.log.Error("subscriber lookup failed", "task", task.ID, "subscriber", task.SubscriberID, "error", err)
		e.storeErr(e.store.MarkFailed(ctx, task.ID, "subscriber lookup: "+err.Error()))
		return
	}

	if sub.Status != StatusActive {
		// the task stays queued but is never dispatched; status is checked
		// at dispatch time, not schedule time
		e.storeErr(e.store.ReleaseTask(ctx, task.ID))
		return
	}

	msg, ok := e.seq.ByTemplateKey(task.TemplateKey)
	if !ok {
		e.storeErr(e.store.MarkFailed(ctx, task.ID, "unknown template key "+task.TemplateKey))
		return
	}

	if _, err := e.dispatcher.Send(ctx, sub, msg); err != nil {
		e.log.Error("delivery failed",
			"task", task.ID, "subscriber", sub.ID, "template", task.TemplateKey,
			"attempt", task.Attempts+1, "error", err)
		if task.Attempts+1 >= e.maxAttempts {
			e.storeErr(e.store.MarkFailed(ctx, task.ID, err.Error()))
			e.log.Warn("task dead-lettered", "task", task.ID, "attempts", task.Attempts+1)
		} else {
			e.storeErr(e.store.RecordFailure(ctx, task.ID, err.Error()))
		}
		return
	}

	e.storeErr(e.store.MarkSent(ctx, task.ID, now))
	e.storeErr(e.store.IncrementEmailsSent(ctx, sub.ID))
	e.log.Info("task delivered", "task", task.ID, "subscriber", sub.ID, "template", task.TemplateKey)
}

func (e *Engine) storeErr(err error) {
	if err != nil {
		e.log.Error("store update failed", "error", err)
	}
}

// Estimated engagement rates reported alongside stats. Informational only:
// the service has no open/click tracking, so these are list-building
// industry baselines.
const (
	estimatedOpenRate       = 0.42
	estimatedClickRate      = 0.07
	estimatedConversionRate = 0.02
)

// EngineStats is the Stats payload plus scheduler state and the
// informational estimated rates.
type EngineStats struct {
	Stats
	EstimatedOpenRate       float64    `json:"estimatedOpenRate"`
	EstimatedClickRate      float64    `json:"estimatedClickRate"`
	EstimatedConversionRate float64    `json:"estimatedConversionRate"`
	SchedulerRunning        bool       `json:"schedulerRunning"`
	LastTickAt              *time.Time `json:"lastTickAt,omitempty"`
}

// Stats returns queue and subscriber aggregates.
func (e *Engine) Stats(ctx context.Context) (*EngineStats, error) {
	stats, err := e.store.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("collect stats: %w", err)
	}

	out := &EngineStats{
		Stats:                   *stats,
		EstimatedOpenRate:       estimatedOpenRate,
		EstimatedClickRate:      estimatedClickRate,
		EstimatedConversionRate: estimatedConversionRate,
	}

	e.mu.Lock()
	out.SchedulerRunning = e.running
	if !e.lastTickAt.IsZero() {
		t := e.lastTickAt
		out.LastTickAt = &t
	}
	e.mu.Unlock()
	return out, nil
}
