package automation

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// PGStore implements Store against PostgreSQL. It is the durable collaborator
// for deployments that cannot lose the queue on restart; the claim protocol
// rides on conditional UPDATEs, so several processes can share one queue.
type PGStore struct{ db *sql.DB }

// NewPGStore creates a Postgres-backed store.
func NewPGStore(db *sql.DB) *PGStore { return &PGStore{db: db} }

// Schema for the two tables. Applied by cmd/server at startup.
const Schema = `
CREATE TABLE IF NOT EXISTS drip_subscribers (
	id            TEXT PRIMARY KEY,
	email         TEXT NOT NULL,
	first_name    TEXT NOT NULL,
	subscribed_at TIMESTAMPTZ NOT NULL,
	emails_sent   INTEGER NOT NULL DEFAULT 0,
	status        TEXT NOT NULL DEFAULT 'active'
);

CREATE TABLE IF NOT EXISTS drip_tasks (
	id            TEXT PRIMARY KEY,
	subscriber_id TEXT NOT NULL REFERENCES drip_subscribers(id),
	template_key  TEXT NOT NULL,
	due_at        TIMESTAMPTZ NOT NULL,
	status        TEXT NOT NULL DEFAULT 'pending',
	attempts      INTEGER NOT NULL DEFAULT 0,
	sent_at       TIMESTAMPTZ,
	last_error    TEXT NOT NULL DEFAULT '',
	created_at    TIMESTAMPTZ NOT NULL,
	UNIQUE (subscriber_id, template_key)
);

CREATE INDEX IF NOT EXISTS idx_drip_tasks_due
	ON drip_tasks (due_at) WHERE status = 'pending';
`

func (s *PGStore) CreateSubscriber(ctx context.Context, sub *Subscriber) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO drip_subscribers (id, email, first_name, subscribed_at, emails_sent, status)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, sub.ID, sub.Email, sub.FirstName, sub.SubscribedAt, sub.EmailsSent, sub.Status)
	if err != nil {
		return fmt.Errorf("create subscriber: %w", err)
	}
	return nil
}

func (s *PGStore) GetSubscriber(ctx context.Context, id string) (*Subscriber, error) {
	sub := &Subscriber{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, email, first_name, subscribed_at, emails_sent, status
		FROM drip_subscribers
		WHERE id = $1
	`, id).Scan(&sub.ID, &sub.Email, &sub.FirstName, &sub.SubscribedAt, &sub.EmailsSent, &sub.Status)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get subscriber: %w", err)
	}
	return sub, nil
}

func (s *PGStore) SetSubscriberStatus(ctx context.Context, id string, status SubscriberStatus) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE drip_subscribers SET status = $1 WHERE id = $2
	`, status, id)
	if err != nil {
		return fmt.Errorf("set subscriber status: %w", err)
	}
	return requireRow(res)
}

func (s *PGStore) IncrementEmailsSent(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE drip_subscribers SET emails_sent = emails_sent + 1 WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("increment emails_sent: %w", err)
	}
	return requireRow(res)
}

func (s *PGStore) CreateTasks(ctx context.Context, tasks []*ScheduledTask) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	for _, t := range tasks {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO drip_tasks (id, subscriber_id, template_key, due_at, status, attempts, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, t.ID, t.SubscriberID, t.TemplateKey, t.DueAt, t.Status, t.Attempts, t.CreatedAt); err != nil {
			return fmt.Errorf("insert task %s: %w", t.ID, err)
		}
	}
	return tx.Commit()
}

func (s *PGStore) DueTasks(ctx context.Context, now time.Time) ([]*ScheduledTask, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, subscriber_id, template_key, due_at, status, attempts, sent_at, last_error, created_at
		FROM drip_tasks
		WHERE status = 'pending' AND due_at <= $1
	`, now)
	if err != nil {
		return nil, fmt.Errorf("list due tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*ScheduledTask
	for rows.Next() {
		t := &ScheduledTask{}
		var sentAt sql.NullTime
		if err := rows.Scan(&t.ID, &t.SubscriberID, &t.TemplateKey, &t.DueAt, &t.Status,
			&t.Attempts, &sentAt, &t.LastError, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		if sentAt.Valid {
			t.SentAt = &sentAt.Time
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func (s *PGStore) ClaimTask(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE drip_tasks SET status = 'inflight' WHERE id = $1 AND status = 'pending'
	`, id)
	if err != nil {
		return false, fmt.Errorf("claim task: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *PGStore) MarkSent(ctx context.Context, id string, now time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE drip_tasks SET status = 'sent', sent_at = $1, last_error = ''
		WHERE id = $2 AND status = 'inflight'
	`, now, id)
	if err != nil {
		return fmt.Errorf("mark sent: %w", err)
	}
	return requireRow(res)
}

func (s *PGStore) ReleaseTask(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE drip_tasks SET status = 'pending' WHERE id = $1 AND status = 'inflight'
	`, id)
	if err != nil {
		return fmt.Errorf("release task: %w", err)
	}
	return requireRow(res)
}

func (s *PGStore) RecordFailure(ctx context.Context, id string, sendErr string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE drip_tasks SET status = 'pending', attempts = attempts + 1, last_error = $1
		WHERE id = $2 AND status = 'inflight'
	`, sendErr, id)
	if err != nil {
		return fmt.Errorf("record failure: %w", err)
	}
	return requireRow(res)
}

func (s *PGStore) MarkFailed(ctx context.Context, id string, sendErr string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE drip_tasks SET status = 'failed', attempts = attempts + 1, last_error = $1
		WHERE id = $2 AND status = 'inflight'
	`, sendErr, id)
	if err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	return requireRow(res)
}

func (s *PGStore) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE status = 'active'),
		       COALESCE(SUM(emails_sent), 0)
		FROM drip_subscribers
	`).Scan(&stats.TotalSubscribers, &stats.ActiveSubscribers, &stats.EmailsSent)
	if err != nil {
		return nil, fmt.Errorf("subscriber stats: %w", err)
	}

	err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM drip_tasks`).Scan(&stats.TotalEmailsScheduled)
	if err != nil {
		return nil, fmt.Errorf("task stats: %w", err)
	}
	return stats, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
