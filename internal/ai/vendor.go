// Package ai defines the streaming generation collaborator consumed by the
// lifecycle controller. Concrete vendors live in subpackages.
package ai

import (
	"context"

	"github.com/rapturt9/interactive-worlds-sub000/internal/chat"
	"github.com/rapturt9/interactive-worlds-sub000/internal/tools"
)

// Options are per-call generation settings.
type Options struct {
	Model       string
	Temperature float64
	MaxTokens   int
}

// Request is one generation call: a synthesized system prompt, the ordered
// message context, and the tool registry the model may invoke.
type Request struct {
	System   string
	Messages []*chat.Message
	Tools    *tools.Registry
	Options  Options
}

// Vendor streams a generation. Implementations send tokens into the channel
// as they arrive but never close it; the caller owns the channel. The return
// value is the final structured message list: the request context followed by
// the newly generated assistant message(s). Cancelling ctx aborts the stream.
type Vendor interface {
	GetName() string
	SendStream(ctx context.Context, req *Request, responseChan chan<- string) ([]*chat.Message, error)
}
