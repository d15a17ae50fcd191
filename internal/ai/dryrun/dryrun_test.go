package dryrun

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rapturt9/interactive-worlds-sub000/internal/ai"
	"github.com/rapturt9/interactive-worlds-sub000/internal/chat"
	"github.com/rapturt9/interactive-worlds-sub000/internal/prompt"
	"github.com/rapturt9/interactive-worlds-sub000/internal/tools"
)

func collect(t *testing.T, req *ai.Request) ([]*chat.Message, string) {
	t.Helper()
	client := NewClient()
	responseChan := make(chan string)

	var final []*chat.Message
	var err error
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer close(responseChan)
		final, err = client.SendStream(context.Background(), req, responseChan)
	}()

	var streamed strings.Builder
	for token := range responseChan {
		streamed.WriteString(token)
	}
	<-done
	require.NoError(t, err)
	return final, streamed.String()
}

func TestWorldPhaseReplyCarriesTags(t *testing.T) {
	req := &ai.Request{
		System:   prompt.ForPhase(chat.PhaseWorld, "", ""),
		Messages: []*chat.Message{chat.NewMessage(chat.RoleUser, "a foggy island", chat.PhaseWorld)},
	}
	final, streamed := collect(t, req)

	require.Len(t, final, 2)
	reply := final[1].FlattenText()
	assert.Equal(t, reply, streamed, "streamed tokens reassemble into the final text")
	assert.Contains(t, reply, "<bible>")
	assert.Contains(t, reply, "a foggy island")
	assert.Contains(t, reply, "<chat_name>")
}

func TestGameplayReplyFoldsToolResults(t *testing.T) {
	req := &ai.Request{
		System:   prompt.ForPhase(chat.PhaseChat0, "B", "C"),
		Messages: []*chat.Message{chat.NewMessage(chat.RoleUser, "open the door", chat.PhaseChat0)},
		Tools:    tools.Default(),
	}
	final, _ := collect(t, req)

	require.Len(t, final, 2)
	assistant := final[1]
	assert.Equal(t, chat.RoleAssistant, assistant.Role)

	var kinds []chat.PartKind
	for _, p := range assistant.Parts {
		kinds = append(kinds, p.Kind)
	}
	assert.Contains(t, kinds, chat.PartToolCall)
	assert.Contains(t, kinds, chat.PartToolResult)
}

func TestAbortStopsTheStream(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := NewClient()
	responseChan := make(chan string)
	_, err := client.SendStream(ctx, &ai.Request{
		System:   "plain",
		Messages: []*chat.Message{chat.NewMessage(chat.RoleUser, "hello", chat.PhaseChat0)},
	}, responseChan)
	assert.ErrorIs(t, err, context.Canceled)
}
