package automation

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupPGStore(t *testing.T) (*PGStore, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	return NewPGStore(db), mock, func() { db.Close() }
}

func TestPGStoreCreateSubscriber(t *testing.T) {
	store, mock, cleanup := setupPGStore(t)
	defer cleanup()

	sub := &Subscriber{
		ID: "sub_abc", Email: "ada@example.com", FirstName: "Ada",
		SubscribedAt: time.Now().UTC(), Status: StatusActive,
	}

	mock.ExpectExec("INSERT INTO drip_subscribers").
		WithArgs(sub.ID, sub.Email, sub.FirstName, sub.SubscribedAt, 0, string(StatusActive)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.CreateSubscriber(context.Background(), sub))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPGStoreGetSubscriberNotFound(t *testing.T) {
	store, mock, cleanup := setupPGStore(t)
	defer cleanup()

	mock.ExpectQuery("SELECT (.+) FROM drip_subscribers").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := store.GetSubscriber(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPGStoreClaimTask(t *testing.T) {
	store, mock, cleanup := setupPGStore(t)
	defer cleanup()
	ctx := context.Background()

	// first claimer wins the conditional update
	mock.ExpectExec("UPDATE drip_tasks SET status = 'inflight'").
		WithArgs("t1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	claimed, err := store.ClaimTask(ctx, "t1")
	require.NoError(t, err)
	assert.True(t, claimed)

	// a task no longer pending updates zero rows
	mock.ExpectExec("UPDATE drip_tasks SET status = 'inflight'").
		WithArgs("t1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	claimed, err = store.ClaimTask(ctx, "t1")
	require.NoError(t, err)
	assert.False(t, claimed)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPGStoreDueTasks(t *testing.T) {
	store, mock, cleanup := setupPGStore(t)
	defer cleanup()

	now := time.Date(2024, 1, 2, 0, 0, 1, 0, time.UTC)
	due := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{
		"id", "subscriber_id", "template_key", "due_at", "status", "attempts", "sent_at", "last_error", "created_at",
	}).AddRow("t1", "sub_abc", "quick_win", due, "pending", 0, nil, "", due.Add(-24*time.Hour))

	mock.ExpectQuery("SELECT (.+) FROM drip_tasks").
		WithArgs(now).
		WillReturnRows(rows)

	tasks, err := store.DueTasks(context.Background(), now)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "quick_win", tasks[0].TemplateKey)
	assert.Equal(t, TaskPending, tasks[0].Status)
	assert.Nil(t, tasks[0].SentAt)
}

func TestPGStoreMarkSent(t *testing.T) {
	store, mock, cleanup := setupPGStore(t)
	defer cleanup()

	now := time.Now().UTC()
	mock.ExpectExec("UPDATE drip_tasks SET status = 'sent'").
		WithArgs(now, "t1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.MarkSent(context.Background(), "t1", now))

	// marking a task that is not inflight reports ErrNotFound
	mock.ExpectExec("UPDATE drip_tasks SET status = 'sent'").
		WithArgs(now, "t1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, store.MarkSent(context.Background(), "t1", now), ErrNotFound)
}

func TestPGStoreCreateTasksTransactional(t *testing.T) {
	store, mock, cleanup := setupPGStore(t)
	defer cleanup()

	now := time.Now().UTC()
	tasks := []*ScheduledTask{
		{ID: "t1", SubscriberID: "sub_abc", TemplateKey: "quick_win", DueAt: now.Add(24 * time.Hour), Status: TaskPending, CreatedAt: now},
		{ID: "t2", SubscriberID: "sub_abc", TemplateKey: "case_study", DueAt: now.Add(48 * time.Hour), Status: TaskPending, CreatedAt: now},
	}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO drip_tasks").
		WithArgs("t1", "sub_abc", "quick_win", tasks[0].DueAt, string(TaskPending), 0, now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO drip_tasks").
		WithArgs("t2", "sub_abc", "case_study", tasks[1].DueAt, string(TaskPending), 0, now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, store.CreateTasks(context.Background(), tasks))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPGStoreStats(t *testing.T) {
	store, mock, cleanup := setupPGStore(t)
	defer cleanup()

	mock.ExpectQuery("SELECT COUNT\\(\\*\\),").
		WillReturnRows(sqlmock.NewRows([]string{"count", "active", "sent"}).AddRow(10, 8, 31))
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM drip_tasks").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(40))

	stats, err := store.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 10, stats.TotalSubscribers)
	assert.Equal(t, 8, stats.ActiveSubscribers)
	assert.Equal(t, 31, stats.EmailsSent)
	assert.Equal(t, 40, stats.TotalEmailsScheduled)
}
