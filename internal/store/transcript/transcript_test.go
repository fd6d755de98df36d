package transcript

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aria/internal/realtime/events"
)

func TestStreamingDeltasAccumulate(t *testing.T) {
	tr := New(nil)

	tr.Apply(events.AriaMessage{MessageID: "m1", Role: "assistant", Delta: "Three leads "})
	tr.Apply(events.AriaMessage{MessageID: "m1", Delta: "match your filter."})
	tr.Apply(events.AriaMessage{MessageID: "m1", Complete: true})

	messages := tr.Messages()
	require.Len(t, messages, 1)
	assert.Equal(t, "Three leads match your filter.", messages[0].Content)
	assert.True(t, messages[0].Complete)
	assert.Equal(t, "assistant", messages[0].Role)
}

func TestFinalizedMessageRedeliveryIsSuppressed(t *testing.T) {
	tr := New(nil)

	msg := events.AriaMessage{
		MessageID: "m1",
		Complete:  true,
		RichContent: []events.RichContent{
			{Kind: "text", Text: "Quarterly summary"},
		},
	}
	tr.Apply(msg)
	tr.Apply(msg)
	tr.Apply(events.AriaMessage{MessageID: "m1", Delta: "late straggler"})

	messages := tr.Messages()
	require.Len(t, messages, 1)
	assert.Equal(t, "Quarterly summary", messages[0].Content)
}

func TestInterleavedConversations(t *testing.T) {
	tr := New(nil)
	tr.Apply(events.AriaMessage{MessageID: "m1", Delta: "first"})
	tr.Apply(events.AriaMessage{MessageID: "m2", Delta: "second"})
	tr.Apply(events.AriaMessage{MessageID: "m1", Delta: " message"})

	messages := tr.Messages()
	require.Len(t, messages, 2)
	assert.Equal(t, "first message", messages[0].Content)
	assert.Equal(t, "second", messages[1].Content)
}

func TestMessageWithoutIDIsDropped(t *testing.T) {
	tr := New(nil)
	tr.Apply(events.AriaMessage{Delta: "orphan"})
	assert.Zero(t, tr.Len())
}

func TestClearKeepsSeenWindow(t *testing.T) {
	tr := New(nil)
	tr.Apply(events.AriaMessage{MessageID: "m1", Delta: "hello", Complete: true})
	tr.Clear()
	assert.Zero(t, tr.Len())

	// A stale re-delivery after the clear must not resurrect the message.
	tr.Apply(events.AriaMessage{MessageID: "m1", Delta: "hello", Complete: true})
	assert.Zero(t, tr.Len())
}
