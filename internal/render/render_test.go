package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/leadflow/internal/automation"
	"github.com/ignite/leadflow/internal/sequence"
)

func testSubscriber(firstName string) *automation.Subscriber {
	return &automation.Subscriber{
		ID:        "sub_abc",
		Email:     "ada@example.com",
		FirstName: firstName,
		Status:    automation.StatusActive,
	}
}

func TestRenderSubstitutesFirstName(t *testing.T) {
	r := NewRenderer()
	seq := sequence.Default()

	out, err := r.Render(testSubscriber("Ada"), seq.Immediate())
	require.NoError(t, err)
	assert.Contains(t, out.Subject, "Ada")
	assert.Contains(t, out.HTML, "Hey Ada,")
	assert.NotContains(t, out.HTML, "{{")
}

func TestRenderDefaultFilterForMissingName(t *testing.T) {
	r := NewRenderer()
	seq := sequence.Default()

	out, err := r.Render(testSubscriber(""), seq.Immediate())
	require.NoError(t, err)
	assert.Contains(t, out.Subject, "friend")
	assert.Contains(t, out.HTML, "Hey there,")
}

func TestRenderBothPlaceholderSpellings(t *testing.T) {
	r := NewRenderer()
	sub := testSubscriber("Ada")

	// Liquid spelling with and without spaces, plus the legacy bracket tag,
	// all resolve to the same value
	for _, msgBody := range []string{"{{first_name}}", "{{ first_name }}", "[FIRST_NAME]"} {
		got, err := r.render(msgBody, map[string]any{
			"first_name": sub.FirstName,
			"email":      sub.Email,
		})
		require.NoError(t, err)
		assert.Equal(t, "Ada", got, "spelling %q", msgBody)
	}
}

func TestRenderLegacyEmailTag(t *testing.T) {
	r := NewRenderer()

	got, err := r.render("Sent to [EMAIL]", map[string]any{
		"first_name": "Ada",
		"email":      "ada@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, "Sent to ada@example.com", got)
}

func TestRenderUnknownTemplateKey(t *testing.T) {
	r := NewRenderer()
	_, err := r.Render(testSubscriber("Ada"), sequence.Message{
		ID: "x", TemplateKey: "missing", Subject: "s",
	})
	assert.Error(t, err)
}

func TestRenderAllDefaultMessages(t *testing.T) {
	r := NewRenderer()
	sub := testSubscriber("Ada")

	for _, msg := range sequence.Default().Messages {
		out, err := r.Render(sub, msg)
		require.NoError(t, err, "template %q", msg.TemplateKey)
		assert.NotEmpty(t, out.Subject)
		assert.NotEmpty(t, out.HTML)
	}
}
