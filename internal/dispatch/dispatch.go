// Package dispatch renders a sequence message for a subscriber and hands it
// to a transport. It is the bridge between the automation engine and the
// delivery mechanism.
package dispatch

import (
	"context"

	"github.com/ignite/leadflow/internal/automation"
	"github.com/ignite/leadflow/internal/pkg/logger"
	"github.com/ignite/leadflow/internal/render"
	"github.com/ignite/leadflow/internal/sequence"
	"github.com/ignite/leadflow/internal/transport"
)

// Dispatcher implements automation.Dispatcher. Render failures and transport
// failures both surface as *automation.DeliveryError so the engine keeps the
// task pending for a later tick.
type Dispatcher struct {
	renderer  *render.Renderer
	transport transport.Transport
	from      string
	fromName  string
	log       *logger.Logger
}

// New creates a dispatcher sending from the given address.
func New(renderer *render.Renderer, tr transport.Transport, from, fromName string) *Dispatcher {
	return &Dispatcher{
		renderer:  renderer,
		transport: tr,
		from:      from,
		fromName:  fromName,
		log:       logger.With("dispatch"),
	}
}

// Send renders the message and delivers it through the transport.
func (d *Dispatcher) Send(ctx context.Context, sub *automation.Subscriber, msg sequence.Message) (*automation.DeliveryResult, error) {
	rendered, err := d.renderer.Render(sub, msg)
	if err != nil {
		return nil, &automation.DeliveryError{TemplateKey: msg.TemplateKey, Err: err}
	}

	res, err := d.transport.Send(ctx, &transport.Email{
		To:       sub.Email,
		ToName:   sub.FirstName,
		From:     d.from,
		FromName: d.fromName,
		Subject:  rendered.Subject,
		HTML:     rendered.HTML,
	})
	if err != nil {
		return nil, &automation.DeliveryError{TemplateKey: msg.TemplateKey, Err: err}
	}

	d.log.Debug("message dispatched",
		"subscriber", sub.ID, "template", msg.TemplateKey,
		"provider", res.Provider, "message_id", res.MessageID)

	return &automation.DeliveryResult{
		Provider:  res.Provider,
		MessageID: res.MessageID,
		SentAt:    res.SentAt,
	}, nil
}
