// Package anthropic adapts the Anthropic messages API to the ai.Vendor
// contract.
package anthropic

import (
	"context"
	"os"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/pkg/errors"

	"github.com/rapturt9/interactive-worlds-sub000/internal/ai"
	"github.com/rapturt9/interactive-worlds-sub000/internal/chat"
)

const (
	defaultModel     = string(anthropic.ModelClaudeSonnet4_0)
	defaultMaxTokens = 4096
)

type Client struct {
	client anthropic.Client
}

// NewClient reads ANTHROPIC_API_KEY from the environment.
func NewClient() (*Client, error) {
	key := os.Getenv("ANTHROPIC_API_KEY")
	if key == "" {
		return nil, errors.New("ANTHROPIC_API_KEY not set")
	}
	return &Client{client: anthropic.NewClient(option.WithAPIKey(key))}, nil
}

var _ ai.Vendor = (*Client)(nil)

func (c *Client) GetName() string {
	return "Anthropic"
}

func (c *Client) SendStream(ctx context.Context, req *ai.Request, responseChan chan<- string) ([]*chat.Message, error) {
	stream := c.client.Messages.NewStreaming(ctx, c.buildParams(req))

	var sb strings.Builder
	for stream.Next() {
		event := stream.Current()
		switch ev := event.AsAny().(type) {
		case anthropic.ContentBlockDeltaEvent:
			switch delta := ev.Delta.AsAny().(type) {
			case anthropic.TextDelta:
				sb.WriteString(delta.Text)
				select {
				case <-ctx.Done():
					return nil, ctx.Err()
				case responseChan <- delta.Text:
				}
			}
		}
	}
	if err := stream.Err(); err != nil {
		return nil, errors.Wrap(err, "anthropic stream")
	}

	text := sb.String()
	if text == "" {
		return nil, errors.New("empty response")
	}

	assistant := chat.NewMessage(chat.RoleAssistant, text, "")
	assistant.Parts = []chat.Part{{Kind: chat.PartText, Text: text}}

	final := make([]*chat.Message, 0, len(req.Messages)+1)
	final = append(final, req.Messages...)
	return append(final, assistant), nil
}

func (c *Client) buildParams(req *ai.Request) anthropic.MessageNewParams {
	model := req.Options.Model
	if model == "" {
		model = defaultModel
	}
	maxTokens := req.Options.MaxTokens
	if maxTokens == 0 {
		maxTokens = defaultMaxTokens
	}

	messages := make([]anthropic.MessageParam, 0, len(req.Messages))
	for _, m := range req.Messages {
		block := anthropic.NewTextBlock(m.FlattenText())
		if m.Role == chat.RoleAssistant {
			messages = append(messages, anthropic.NewAssistantMessage(block))
		} else {
			messages = append(messages, anthropic.NewUserMessage(block))
		}
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: int64(maxTokens),
		Messages:  messages,
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}
	if req.Options.Temperature != 0 {
		params.Temperature = anthropic.Float(req.Options.Temperature)
	}
	return params
}
