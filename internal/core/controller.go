// Package core drives the streaming-generation lifecycle of a session, one
// phase at a time.
package core

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/rapturt9/interactive-worlds-sub000/internal/ai"
	"github.com/rapturt9/interactive-worlds-sub000/internal/chat"
	debuglog "github.com/rapturt9/interactive-worlds-sub000/internal/log"
	"github.com/rapturt9/interactive-worlds-sub000/internal/prompt"
	"github.com/rapturt9/interactive-worlds-sub000/internal/session"
	"github.com/rapturt9/interactive-worlds-sub000/internal/storage"
	"github.com/rapturt9/interactive-worlds-sub000/internal/tools"
)

// Status of one phase channel.
type Status int

const (
	Idle Status = iota
	Generating
	Failed
)

// Config wires the controller's collaborators and callbacks.
type Config struct {
	Vendor  ai.Vendor
	Tools   *tools.Registry
	Options ai.Options

	// Manual disables auto-advance; completed phases signal OnAdvanceReady
	// and wait for an explicit Start instead.
	Manual bool

	// OnToken receives streamed tokens for incremental display. Nothing is
	// persisted until the stream completes.
	OnToken func(phase, token string)

	// OnAdvanceReady fires in manual mode when a phase with a successor
	// completes.
	OnAdvanceReady func(sessionID, nextPhase string)
}

// channelState tracks one phase channel. The phase families (world,
// character, gameplay) are independent channels; at most one generation runs
// per channel. Serializing across channels is the caller's business.
type channelState struct {
	status    Status
	latchUsed bool
	baseline  int
	phase     string
	sessionID string
	cancel    context.CancelFunc
}

// Controller is the lifecycle orchestrator the presentation layer drives.
type Controller struct {
	store      *session.Store
	transition *session.Transition
	snapshots  *session.Snapshots
	cfg        Config

	mu       sync.Mutex
	channels map[string]*channelState
}

func NewController(store *session.Store, transition *session.Transition, snapshots *session.Snapshots, cfg Config) *Controller {
	return &Controller{
		store:      store,
		transition: transition,
		snapshots:  snapshots,
		cfg:        cfg,
		channels:   make(map[string]*channelState),
	}
}

func (c *Controller) channel(name string) *channelState {
	ch, ok := c.channels[name]
	if !ok {
		ch = &channelState{}
		c.channels[name] = ch
	}
	return ch
}

// Status reports the state of a phase channel.
func (c *Controller) Status(channelName string) Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.channel(channelName).status
}

// Abort cancels the in-flight generation on a channel, if any. The channel
// returns to Idle with nothing persisted beyond the user prompt that Start
// already wrote.
func (c *Controller) Abort(channelName string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch := c.channel(channelName)
	if ch.status == Generating && ch.cancel != nil {
		ch.cancel()
	}
}

// Start runs one phase generation to completion. The user prompt is persisted
// before the network call, so a failed or aborted stream never loses input.
// fromPhases overrides the phase's default copy-forward sources when given.
// When the phase declares a successor and the controller is not in manual
// mode, the successor phase is started immediately after completion.
func (c *Controller) Start(ctx context.Context, sessionID, phase, userPrompt string, fromPhases ...string) error {
	if !chat.ValidPhase(phase) {
		return errors.Wrapf(session.ErrInvariant, "unknown phase %q", phase)
	}
	channelName := ChannelFor(phase)

	c.mu.Lock()
	ch := c.channel(channelName)
	if ch.status == Generating {
		c.mu.Unlock()
		return errors.Wrapf(ErrBusy, "channel %s", channelName)
	}
	streamCtx, cancel := context.WithCancel(ctx)
	ch.status = Generating
	ch.latchUsed = false
	ch.phase = phase
	ch.sessionID = sessionID
	ch.cancel = cancel
	c.mu.Unlock()
	defer cancel()

	debuglog.Basicf("starting phase %s for session %s", phase, sessionID)

	sess, err := c.store.GetSession(ctx, sessionID)
	if err != nil {
		return c.fail(channelName, err)
	}
	if sess.CurrentPhase != phase {
		if _, err = c.store.UpdateSession(ctx, sessionID, storage.SessionPatch{CurrentPhase: &phase}); err != nil {
			return c.fail(channelName, err)
		}
	}

	spec := specFor(phase)
	copyFrom := spec.copyFrom
	if len(fromPhases) > 0 {
		copyFrom = fromPhases
	}
	if len(copyFrom) > 0 {
		if _, err = c.transition.CopyForward(ctx, sessionID, copyFrom, phase); err != nil {
			return c.fail(channelName, err)
		}
	}

	userMsg := chat.NewMessage(chat.RoleUser, userPrompt, phase)
	if _, err = c.store.AppendMessage(ctx, sessionID, userMsg); err != nil {
		return c.fail(channelName, err)
	}

	seeded, err := c.store.ListMessages(ctx, sessionID, phase)
	if err != nil {
		return c.fail(channelName, err)
	}

	c.mu.Lock()
	ch.baseline = len(seeded)
	c.mu.Unlock()

	req := &ai.Request{
		System:   prompt.ForPhase(phase, sess.BibleContent, sess.CharacterContent),
		Messages: seeded,
		Tools:    c.cfg.Tools,
		Options:  c.cfg.Options,
	}

	responseChan := make(chan string)
	errChan := make(chan error, 1)
	var final []*chat.Message

	go func() {
		defer close(responseChan)
		f, streamErr := c.cfg.Vendor.SendStream(streamCtx, req, responseChan)
		if streamErr != nil {
			errChan <- streamErr
		} else {
			final = f
		}
		close(errChan)
	}()

	for token := range responseChan {
		if c.cfg.OnToken != nil {
			c.cfg.OnToken(phase, token)
		}
	}

	if streamErr, ok := <-errChan; ok && streamErr != nil {
		if errors.Is(streamErr, context.Canceled) {
			// Abort path: back to Idle, no partial persistence.
			c.setStatus(channelName, Idle)
			debuglog.Basicf("phase %s aborted", phase)
			return streamErr
		}
		return c.fail(channelName, errors.Wrap(ErrTransport, streamErr.Error()))
	}

	return c.Complete(ctx, channelName, final)
}

// Complete processes a finished stream: persist the new messages, run the
// phase's parser against the generated text, and advance. A one-shot latch,
// reset by every Start, makes duplicate completion notifications harmless.
func (c *Controller) Complete(ctx context.Context, channelName string, final []*chat.Message) error {
	c.mu.Lock()
	ch := c.channel(channelName)
	if ch.latchUsed {
		c.mu.Unlock()
		debuglog.Basicf("ignoring duplicate completion on channel %s", channelName)
		return ErrDuplicateCompletion
	}
	ch.latchUsed = true
	phase, sessionID, baseline := ch.phase, ch.sessionID, ch.baseline
	c.mu.Unlock()

	if baseline > len(final) {
		baseline = len(final)
	}
	newMsgs := final[baseline:]

	// The context before baseline was only replayed for the model; persisting
	// it again would duplicate history.
	var generated string
	for _, m := range newMsgs {
		cp := m.Clone()
		cp.Phase = phase
		if _, err := c.store.AppendMessage(ctx, sessionID, cp); err != nil {
			return c.fail(channelName, err)
		}
		if m.Role == chat.RoleAssistant {
			generated += m.FlattenText()
		}
	}

	var parseErr error
	spec := specFor(phase)
	if spec.parse != nil {
		sess, err := c.store.GetSession(ctx, sessionID)
		if err != nil {
			return c.fail(channelName, err)
		}
		patch, err := spec.parse(generated, sess)
		if errors.Is(err, ErrMalformedOutput) {
			// Messages are already durable; only the metadata update is
			// skipped. The caller may re-prompt.
			debuglog.Basicf("phase %s: %v", phase, err)
			parseErr = err
		} else if err != nil {
			return c.fail(channelName, err)
		} else if !patch.IsEmpty() {
			if _, err = c.store.UpdateSession(ctx, sessionID, patch); err != nil {
				return c.fail(channelName, err)
			}
		}
	}

	if chat.IsGameplayPhase(phase) {
		if err := c.snapshotTurn(ctx, sessionID); err != nil {
			return c.fail(channelName, err)
		}
	}

	c.setStatus(channelName, Idle)
	debuglog.Basicf("phase %s completed for session %s", phase, sessionID)

	if spec.successor == "" || parseErr != nil {
		return parseErr
	}
	if c.cfg.Manual {
		if c.cfg.OnAdvanceReady != nil {
			c.cfg.OnAdvanceReady(sessionID, spec.successor)
		}
		return nil
	}
	return c.Start(ctx, sessionID, spec.successor, spec.kickoff)
}

// snapshotTurn advances the turn counter and captures canonical state for the
// time-travel UI.
func (c *Controller) snapshotTurn(ctx context.Context, sessionID string) error {
	sess, err := c.store.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	turn, err := c.snapshots.IncrementTurn(ctx, sessionID)
	if err != nil {
		return err
	}
	return c.snapshots.Save(ctx, sessionID, turn, sess.BibleContent, sess.CharacterContent)
}

func (c *Controller) setStatus(channelName string, status Status) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.channel(channelName).status = status
}

// fail transitions the channel through Failed back to Idle and reports the
// error upward. Nothing partial was persisted by the failed step.
func (c *Controller) fail(channelName string, err error) error {
	c.setStatus(channelName, Failed)
	c.setStatus(channelName, Idle)
	debuglog.Basicf("channel %s failed: %v", channelName, err)
	return err
}
