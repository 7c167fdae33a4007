// Package transport holds the delivery mechanisms that actually move email.
// The engine never talks to a provider directly; it hands rendered messages
// to a Transport. LogTransport is the default for development, SES and
// SparkPost for production.
package transport

import (
	"context"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/ignite/leadflow/internal/pkg/logger"
)

// Email is one rendered message ready for delivery.
type Email struct {
	To       string
	ToName   string
	From     string
	FromName string
	Subject  string
	HTML     string
}

// Result reports a successful delivery.
type Result struct {
	Provider  string
	MessageID string
	SentAt    time.Time
}

// Transport delivers a rendered email. This is the only place network I/O
// happens in the send path.
type Transport interface {
	Name() string
	Send(ctx context.Context, email *Email) (*Result, error)
}

// LogTransport is the stub transport: it logs the delivery (recipient
// redacted) and reports success. It cannot fail. Send is called from both
// the subscribe path and the scheduler goroutine, so the counter is atomic.
type LogTransport struct {
	log *logger.Logger
	seq atomic.Int64
}

// NewLogTransport creates the logging stub.
func NewLogTransport() *LogTransport {
	return &LogTransport{log: logger.With("transport.log")}
}

func (t *LogTransport) Name() string { return "log" }

func (t *LogTransport) Send(ctx context.Context, email *Email) (*Result, error) {
	n := t.seq.Add(1)
	t.log.Info("email delivered (stub)",
		"to", email.To, "subject", email.Subject, "bytes", len(email.HTML))
	return &Result{
		Provider:  "log",
		MessageID: "log-" + strconv.FormatInt(n, 10),
		SentAt:    time.Now().UTC(),
	}, nil
}
