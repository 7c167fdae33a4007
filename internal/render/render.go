// Package render turns sequence templates into send-ready subject/body pairs
// using the Liquid template language, with a typed context built from
// subscriber fields.
package render

import (
	"fmt"
	"strings"
	"sync"

	"github.com/osteele/liquid"

	"github.com/ignite/leadflow/internal/automation"
	"github.com/ignite/leadflow/internal/sequence"
)

// Renderer renders sequence messages for subscribers. Compiled templates are
// cached per template key; bodies are static for the life of the process.
type Renderer struct {
	engine *liquid.Engine
	cache  sync.Map // template source -> *liquid.Template
}

// NewRenderer creates a renderer with the filters the email copy relies on.
func NewRenderer() *Renderer {
	engine := liquid.NewEngine()

	// {{ first_name | default: "there" }}
	engine.RegisterFilter("default", func(value any, defaultVal string) any {
		if value == nil {
			return defaultVal
		}
		s := fmt.Sprintf("%v", value)
		if s == "" || s == "<nil>" {
			return defaultVal
		}
		return value
	})

	return &Renderer{engine: engine}
}

// Rendered is the output of one message render.
type Rendered struct {
	Subject string
	HTML    string
}

// Render produces the subject and body for a message addressed to the
// subscriber. The body comes from the built-in copy for the message's
// template key.
func (r *Renderer) Render(sub *automation.Subscriber, msg sequence.Message) (*Rendered, error) {
	body, ok := sequence.Body(msg.TemplateKey)
	if !ok {
		return nil, fmt.Errorf("no body for template key %q", msg.TemplateKey)
	}

	ctx := bindings(sub)

	subject, err := r.render(msg.Subject, ctx)
	if err != nil {
		return nil, fmt.Errorf("render subject for %q: %w", msg.TemplateKey, err)
	}
	html, err := r.render(body, ctx)
	if err != nil {
		return nil, fmt.Errorf("render body for %q: %w", msg.TemplateKey, err)
	}

	return &Rendered{Subject: subject, HTML: html}, nil
}

func (r *Renderer) render(source string, ctx map[string]any) (string, error) {
	// legacy bracket tags predate the Liquid engine; substitute them first
	// so copy written against the old renderer keeps working
	source = substituteLegacyTags(source, ctx)

	tpl, err := r.compile(source)
	if err != nil {
		return "", err
	}
	out, err := tpl.RenderString(ctx)
	if err != nil {
		return "", err
	}
	return out, nil
}

func (r *Renderer) compile(source string) (*liquid.Template, error) {
	if cached, ok := r.cache.Load(source); ok {
		return cached.(*liquid.Template), nil
	}
	tpl, err := r.engine.ParseString(source)
	if err != nil {
		return nil, err
	}
	r.cache.Store(source, tpl)
	return tpl, nil
}

func bindings(sub *automation.Subscriber) map[string]any {
	return map[string]any{
		"first_name":    sub.FirstName,
		"email":         sub.Email,
		"subscriber_id": sub.ID,
	}
}

func substituteLegacyTags(source string, ctx map[string]any) string {
	pairs := []string{
		"[FIRST_NAME]", fmt.Sprintf("%v", ctx["first_name"]),
		"[EMAIL]", fmt.Sprintf("%v", ctx["email"]),
	}
	return strings.NewReplacer(pairs...).Replace(source)
}
