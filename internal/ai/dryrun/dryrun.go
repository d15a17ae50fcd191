// Package dryrun is an offline vendor for tests and --dry-run sessions. It
// fabricates a deterministic reply shaped like what the real model would
// return for the phase it is asked to run, tags included.
package dryrun

import (
	"context"
	"strings"

	"github.com/rapturt9/interactive-worlds-sub000/internal/ai"
	"github.com/rapturt9/interactive-worlds-sub000/internal/chat"
)

type Client struct{}

func NewClient() *Client {
	return &Client{}
}

var _ ai.Vendor = (*Client)(nil)

func (c *Client) GetName() string {
	return "DryRun"
}

func (c *Client) SendStream(ctx context.Context, req *ai.Request, responseChan chan<- string) ([]*chat.Message, error) {
	reply, parts := c.buildReply(req)

	for _, token := range strings.SplitAfter(reply, " ") {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case responseChan <- token:
		}
	}

	assistant := chat.NewMessage(chat.RoleAssistant, reply, "")
	assistant.Parts = parts

	final := make([]*chat.Message, 0, len(req.Messages)+1)
	final = append(final, req.Messages...)
	return append(final, assistant), nil
}

// buildReply keys off the tags the system prompt asks for, so each phase gets
// a parseable answer.
func (c *Client) buildReply(req *ai.Request) (string, []chat.Part) {
	prompt := ""
	if len(req.Messages) > 0 {
		prompt = req.Messages[len(req.Messages)-1].FlattenText()
	}

	switch {
	case strings.Contains(req.System, "<bible>"):
		reply := "A dry-run world takes shape. <bible>A small flat world generated without a model, seeded by: " +
			prompt + "</bible> <chat_name>Dry Run Adventure</chat_name>"
		return reply, []chat.Part{{Kind: chat.PartText, Text: reply}}

	case strings.Contains(req.System, "<character>"):
		reply := "A dry-run hero steps forward. <local_context>The starting village of the flat world.</local_context> " +
			"<character>A placeholder adventurer with no particular skills.</character>"
		return reply, []chat.Part{{Kind: chat.PartText, Text: reply}}

	default:
		reply := "The story continues, without a model in sight. You said: " + prompt
		parts := []chat.Part{{Kind: chat.PartText, Text: reply}}
		if req.Tools != nil {
			args := `{"options": ["fortune", "misfortune"]}`
			if result, err := req.Tools.Invoke("roll", args); err == nil {
				parts = append(parts,
					chat.Part{Kind: chat.PartToolCall, ToolName: "roll", ToolArgs: args},
					chat.Part{Kind: chat.PartToolResult, ToolName: "roll", Result: result},
				)
			}
		}
		return reply, parts
	}
}
