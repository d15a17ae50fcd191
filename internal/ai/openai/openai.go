// Package openai adapts the OpenAI chat completions API to the ai.Vendor
// contract.
package openai

import (
	"context"
	"os"
	"strings"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/pkg/errors"

	"github.com/rapturt9/interactive-worlds-sub000/internal/ai"
	"github.com/rapturt9/interactive-worlds-sub000/internal/chat"
)

const defaultModel = "gpt-4o-mini"

type Client struct {
	client openai.Client
}

// NewClient reads OPENAI_API_KEY from the environment.
func NewClient() (*Client, error) {
	key := os.Getenv("OPENAI_API_KEY")
	if key == "" {
		return nil, errors.New("OPENAI_API_KEY not set")
	}
	return &Client{client: openai.NewClient(option.WithAPIKey(key))}, nil
}

var _ ai.Vendor = (*Client)(nil)

func (c *Client) GetName() string {
	return "OpenAI"
}

func (c *Client) SendStream(ctx context.Context, req *ai.Request, responseChan chan<- string) ([]*chat.Message, error) {
	stream := c.client.Chat.Completions.NewStreaming(ctx, c.buildParams(req))

	var sb strings.Builder
	for stream.Next() {
		chunk := stream.Current()
		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		sb.WriteString(delta)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case responseChan <- delta:
		}
	}
	if err := stream.Err(); err != nil {
		return nil, errors.Wrap(err, "openai stream")
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

func (c *Client) buildParams(req *ai.Request) openai.ChatCompletionNewParams {
	model := req.Options.Model
	if model == "" {
		model = defaultModel
	}

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	for _, m := range req.Messages {
		switch m.Role {
		case chat.RoleAssistant:
			messages = append(messages, openai.AssistantMessage(m.FlattenText()))
		default:
			messages = append(messages, openai.UserMessage(m.FlattenText()))
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(model),
		Messages: messages,
	}
	if req.Options.Temperature != 0 {
		params.Temperature = openai.Float(req.Options.Temperature)
	}
	if req.Options.MaxTokens != 0 {
		params.MaxTokens = openai.Int(int64(req.Options.MaxTokens))
	}
	return params
}
