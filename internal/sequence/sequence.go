// Package sequence defines the drip sequence: the ordered list of messages
// and their delay offsets from subscription time. The table is configuration,
// not logic — operators change cadence by editing the YAML file, not code.
package sequence

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Message is one entry in the drip sequence.
type Message struct {
	ID          string `yaml:"id" json:"id"`
	TemplateKey string `yaml:"template_key" json:"template_key"`
	Subject     string `yaml:"subject" json:"subject"`
	DelayHours  int    `yaml:"delay_hours" json:"delay_hours"`
}

// Delay returns the offset from subscription time at which the message is due.
func (m Message) Delay() time.Duration {
	return time.Duration(m.DelayHours) * time.Hour
}

// Sequence is the ordered drip sequence. The first message is sent
// synchronously at subscribe time; the rest are queued.
type Sequence struct {
	Messages []Message `yaml:"messages"`
}

// Load reads a sequence from a YAML file. An empty path returns the
// embedded default sequence.
func Load(path string) (*Sequence, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sequence file: %w", err)
	}

	var seq Sequence
	if err := yaml.Unmarshal(data, &seq); err != nil {
		return nil, fmt.Errorf("parse sequence file: %w", err)
	}

	if err := seq.Validate(); err != nil {
		return nil, fmt.Errorf("invalid sequence in %s: %w", path, err)
	}
	return &seq, nil
}

// Validate checks the structural invariants of the sequence: at least two
// messages, unique ids, unique template keys that resolve to a registered
// body, the first message immediate, and strictly increasing delays.
func (s *Sequence) Validate() error {
	if len(s.Messages) < 2 {
		return fmt.Errorf("sequence needs at least 2 messages, got %d", len(s.Messages))
	}

	ids := make(map[string]bool, len(s.Messages))
	keys := make(map[string]bool, len(s.Messages))
	for i, m := range s.Messages {
		if m.ID == "" {
			return fmt.Errorf("message %d: missing id", i)
		}
		if m.TemplateKey == "" {
			return fmt.Errorf("message %q: missing template_key", m.ID)
		}
		if m.Subject == "" {
			return fmt.Errorf("message %q: missing subject", m.ID)
		}
		if ids[m.ID] {
			return fmt.Errorf("duplicate message id %q", m.ID)
		}
		if keys[m.TemplateKey] {
			return fmt.Errorf("duplicate template key %q", m.TemplateKey)
		}
		if _, ok := Body(m.TemplateKey); !ok {
			// catch this at load time, not after the task dead-letters
			return fmt.Errorf("message %q: no body registered for template key %q", m.ID, m.TemplateKey)
		}
		ids[m.ID] = true
		keys[m.TemplateKey] = true
	}

	if s.Messages[0].DelayHours != 0 {
		return fmt.Errorf("first message must have delay_hours 0, got %d", s.Messages[0].DelayHours)
	}
	for i := 1; i < len(s.Messages); i++ {
		if s.Messages[i].DelayHours <= s.Messages[i-1].DelayHours {
			return fmt.Errorf("message %q: delay_hours must be strictly increasing", s.Messages[i].ID)
		}
	}
	return nil
}

// Immediate returns the message sent synchronously at subscribe time.
func (s *Sequence) Immediate() Message {
	return s.Messages[0]
}

// FollowUps returns the messages that are queued for later delivery.
func (s *Sequence) FollowUps() []Message {
	return s.Messages[1:]
}

// ByTemplateKey returns the message with the given template key.
func (s *Sequence) ByTemplateKey(key string) (Message, bool) {
	for _, m := range s.Messages {
		if m.TemplateKey == key {
			return m, true
		}
	}
	return Message{}, false
}
