package core

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rapturt9/interactive-worlds-sub000/internal/ai"
	"github.com/rapturt9/interactive-worlds-sub000/internal/chat"
	"github.com/rapturt9/interactive-worlds-sub000/internal/session"
	"github.com/rapturt9/interactive-worlds-sub000/internal/storage"
	"github.com/rapturt9/interactive-worlds-sub000/internal/storage/memdb"
)

// scriptedVendor implements ai.Vendor for tests: one canned reply per call,
// in order.
type scriptedVendor struct {
	mu       sync.Mutex
	replies  []string
	errs     []error
	calls    int
	requests []*ai.Request

	started chan struct{} // signaled once per call, if non-nil
	block   chan struct{} // wait before replying, if non-nil
}

func (v *scriptedVendor) GetName() string { return "scripted" }

func (v *scriptedVendor) SendStream(ctx context.Context, req *ai.Request, responseChan chan<- string) ([]*chat.Message, error) {
	v.mu.Lock()
	idx := v.calls
	v.calls++
	v.requests = append(v.requests, req)
	started, block := v.started, v.block
	v.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	// Only the first call blocks; later calls run free.
	if block != nil && idx == 0 {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if idx < len(v.errs) && v.errs[idx] != nil {
		return nil, v.errs[idx]
	}

	reply := "ok"
	if idx < len(v.replies) && v.replies[idx] != "" {
		reply = v.replies[idx]
	}
	for _, token := range strings.SplitAfter(reply, " ") {
		select {
		case responseChan <- token:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	assistant := chat.NewMessage(chat.RoleAssistant, reply, "")
	final := make([]*chat.Message, 0, len(req.Messages)+1)
	final = append(final, req.Messages...)
	return append(final, assistant), nil
}

func newTestController(t *testing.T, vendor ai.Vendor, cfg Config) (*Controller, *session.Store, *session.Snapshots, string) {
	t.Helper()
	db := memdb.NewDb()
	store := session.NewStore(db)
	snaps := session.NewSnapshots(db)
	rec, err := store.CreateSession(context.Background(), session.Seed{Title: "untitled"})
	require.NoError(t, err)

	cfg.Vendor = vendor
	return NewController(store, session.NewTransition(store), snaps, cfg), store, snaps, rec.ID
}

func countByRole(msgs []*chat.Message, role string) int {
	n := 0
	for _, m := range msgs {
		if m.Role == role {
			n++
		}
	}
	return n
}

func TestWorldPhaseScenario(t *testing.T) {
	vendor := &scriptedVendor{
		replies: []string{"Behold. <bible>B</bible> <chat_name>N</chat_name>"},
	}
	var readyNext string
	ctrl, store, _, id := newTestController(t, vendor, Config{
		Manual:         true,
		OnAdvanceReady: func(_, next string) { readyNext = next },
	})
	ctx := context.Background()

	require.NoError(t, ctrl.Start(ctx, id, chat.PhaseWorld, "make me a world"))

	sess, err := store.GetSession(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "B", sess.BibleContent)
	assert.Equal(t, "B", sess.OriginalBibleContent)
	assert.Equal(t, "N", sess.Title)

	world, err := store.ListMessages(ctx, id, chat.PhaseWorld)
	require.NoError(t, err)
	assert.Equal(t, 1, countByRole(world, chat.RoleAssistant), "exactly one new assistant message")
	assert.Equal(t, 1, countByRole(world, chat.RoleUser))
	assert.Equal(t, "make me a world", world[0].Content)

	assert.Equal(t, chat.PhaseCharacter, readyNext, "manual mode signals instead of auto-starting")
	assert.Equal(t, Idle, ctrl.Status(ChannelWorld))
}

func TestStreamedTokensReachTheCallback(t *testing.T) {
	vendor := &scriptedVendor{replies: []string{"a b c <bible>B</bible>"}}
	var streamed strings.Builder
	ctrl, _, _, id := newTestController(t, vendor, Config{
		Manual:  true,
		OnToken: func(_, token string) { streamed.WriteString(token) },
	})

	require.NoError(t, ctrl.Start(context.Background(), id, chat.PhaseWorld, "p"))
	assert.Equal(t, "a b c <bible>B</bible>", streamed.String())
}

func TestAutoAdvanceRunsTheFullChain(t *testing.T) {
	vendor := &scriptedVendor{
		replies: []string{
			"<bible>a world</bible> <chat_name>The Long Road</chat_name>",
			"<local_context>a village</local_context> <character>a wanderer</character>",
			"The adventure begins.",
		},
	}
	ctrl, store, snaps, id := newTestController(t, vendor, Config{})
	ctx := context.Background()

	require.NoError(t, ctrl.Start(ctx, id, chat.PhaseWorld, "go"))

	sess, err := store.GetSession(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, chat.PhaseChat0, sess.CurrentPhase)
	assert.Equal(t, session.StateGameplay, sess.CoarseState)
	assert.Equal(t, "a wanderer", sess.CharacterContent)
	assert.Contains(t, sess.BibleContent, "a world")
	assert.Contains(t, sess.BibleContent, "a village", "local context folded into the bible")
	assert.Equal(t, "a world", sess.OriginalBibleContent, "original bible untouched by later phases")
	assert.Equal(t, "The Long Road", sess.Title)

	// The gameplay turn completed: counter advanced and a snapshot exists.
	assert.Equal(t, 1, sess.CurrentTurn)
	snap, err := snaps.Load(ctx, id, 1)
	require.NoError(t, err)
	assert.Equal(t, sess.BibleContent, snap.Bible)
	assert.Equal(t, "a wanderer", snap.Character)

	// chat0 context was copied forward from both earlier phases.
	require.Len(t, vendor.requests, 3)
	chatReq := vendor.requests[2]
	assert.Greater(t, len(chatReq.Messages), 2)
	for _, m := range chatReq.Messages {
		assert.NotEqual(t, chat.RoleSystem, m.Role)
	}
	assert.Contains(t, chatReq.System, "a wanderer")
}

func TestSingleFlightGuard(t *testing.T) {
	vendor := &scriptedVendor{
		replies: []string{"<bible>B</bible>"},
		started: make(chan struct{}, 1),
		block:   make(chan struct{}),
	}
	ctrl, _, _, id := newTestController(t, vendor, Config{Manual: true})
	ctx := context.Background()

	errCh := make(chan error, 1)
	go func() { errCh <- ctrl.Start(ctx, id, chat.PhaseWorld, "first") }()
	<-vendor.started

	err := ctrl.Start(ctx, id, chat.PhaseWorld, "second")
	assert.True(t, errors.Is(err, ErrBusy))
	assert.Equal(t, Generating, ctrl.Status(ChannelWorld))

	close(vendor.block)
	require.NoError(t, <-errCh)
	assert.Equal(t, Idle, ctrl.Status(ChannelWorld))
}

func TestDuplicateCompletionIsProcessedOnce(t *testing.T) {
	vendor := &scriptedVendor{replies: []string{"<bible>B</bible>"}}
	ctrl, store, _, id := newTestController(t, vendor, Config{Manual: true})
	ctx := context.Background()

	require.NoError(t, ctrl.Start(ctx, id, chat.PhaseWorld, "p"))

	before, err := store.ListMessages(ctx, id)
	require.NoError(t, err)

	// A reconnecting stream delivering its final notification again must not
	// persist anything twice.
	err = ctrl.Complete(ctx, ChannelWorld, nil)
	assert.True(t, errors.Is(err, ErrDuplicateCompletion))

	after, err := store.ListMessages(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, len(before), len(after))
}

func TestMalformedOutputSkipsMetadataButKeepsMessages(t *testing.T) {
	vendor := &scriptedVendor{replies: []string{"no tags at all"}}
	advanced := false
	ctrl, store, _, id := newTestController(t, vendor, Config{
		OnAdvanceReady: func(string, string) { advanced = true },
	})
	ctx := context.Background()

	err := ctrl.Start(ctx, id, chat.PhaseWorld, "p")
	assert.True(t, errors.Is(err, ErrMalformedOutput))

	sess, err2 := store.GetSession(ctx, id)
	require.NoError(t, err2)
	assert.Empty(t, sess.BibleContent, "metadata update skipped")

	msgs, err2 := store.ListMessages(ctx, id, chat.PhaseWorld)
	require.NoError(t, err2)
	assert.Equal(t, 1, countByRole(msgs, chat.RoleAssistant), "message persistence still proceeds")
	assert.False(t, advanced, "no advancement on malformed output")
	assert.Equal(t, Idle, ctrl.Status(ChannelWorld))
	assert.Equal(t, 1, vendor.calls, "no auto-advance call")
}

func TestTransportFailureIsRetryable(t *testing.T) {
	vendor := &scriptedVendor{
		errs:    []error{errors.New("connection reset")},
		replies: []string{"", "<bible>B</bible>"},
	}
	ctrl, store, _, id := newTestController(t, vendor, Config{Manual: true})
	ctx := context.Background()

	err := ctrl.Start(ctx, id, chat.PhaseWorld, "my prompt")
	assert.True(t, errors.Is(err, ErrTransport))
	assert.Equal(t, Idle, ctrl.Status(ChannelWorld))

	msgs, err2 := store.ListMessages(ctx, id, chat.PhaseWorld)
	require.NoError(t, err2)
	assert.Equal(t, 0, countByRole(msgs, chat.RoleAssistant), "no partial persistence")
	assert.Equal(t, 1, countByRole(msgs, chat.RoleUser), "prompt survives the failure")

	// Re-issuing start retries cleanly.
	require.NoError(t, ctrl.Start(ctx, id, chat.PhaseWorld, "my prompt"))
	sess, err2 := store.GetSession(ctx, id)
	require.NoError(t, err2)
	assert.Equal(t, "B", sess.BibleContent)
}

func TestAbortReturnsChannelToIdle(t *testing.T) {
	vendor := &scriptedVendor{
		started: make(chan struct{}, 1),
		block:   make(chan struct{}),
	}
	ctrl, store, _, id := newTestController(t, vendor, Config{Manual: true})
	ctx := context.Background()

	errCh := make(chan error, 1)
	go func() { errCh <- ctrl.Start(ctx, id, chat.PhaseWorld, "p") }()
	<-vendor.started

	ctrl.Abort(ChannelWorld)
	err := <-errCh
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, Idle, ctrl.Status(ChannelWorld))

	msgs, err2 := store.ListMessages(ctx, id, chat.PhaseWorld)
	require.NoError(t, err2)
	assert.Equal(t, 0, countByRole(msgs, chat.RoleAssistant))
	assert.Equal(t, 1, countByRole(msgs, chat.RoleUser), "user input never lost on abort")
}

func TestGameplayTurnsAccumulateSnapshots(t *testing.T) {
	vendor := &scriptedVendor{replies: []string{"turn one", "turn two"}}
	ctrl, store, snaps, id := newTestController(t, vendor, Config{Manual: true})
	ctx := context.Background()

	bible, character, phase := "B", "C", chat.PhaseChat0
	state := session.StateGameplay
	_, err := store.UpdateSession(ctx, id, sessionPatch(&bible, &character, &phase, &state))
	require.NoError(t, err)

	require.NoError(t, ctrl.Start(ctx, id, chat.PhaseChat0, "act one"))
	require.NoError(t, ctrl.Start(ctx, id, chat.PhaseChat0, "act two"))

	list, err := snaps.List(ctx, id)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, 1, list[0].TurnNumber)
	assert.Equal(t, 2, list[1].TurnNumber)

	cur, err := snaps.CurrentTurn(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 2, cur)
}

func TestChannelsAreIndependent(t *testing.T) {
	vendor := &scriptedVendor{
		started: make(chan struct{}, 1),
		block:   make(chan struct{}),
		replies: []string{"", "gameplay continues"},
	}
	ctrl, store, _, id := newTestController(t, vendor, Config{Manual: true})
	ctx := context.Background()

	bible, character, phase := "B", "C", chat.PhaseChat0
	state := session.StateGameplay
	_, err := store.UpdateSession(ctx, id, sessionPatch(&bible, &character, &phase, &state))
	require.NoError(t, err)

	// World channel is mid-generation; the gameplay channel must not be
	// blocked by it.
	errCh := make(chan error, 1)
	go func() { errCh <- ctrl.Start(ctx, id, chat.PhaseWorld, "w") }()
	<-vendor.started
	assert.Equal(t, Generating, ctrl.Status(ChannelWorld))

	vendor.mu.Lock()
	vendor.started = nil
	vendor.mu.Unlock()

	require.NoError(t, ctrl.Start(ctx, id, chat.PhaseChat0, "g"))

	close(vendor.block)
	err = <-errCh
	assert.True(t, errors.Is(err, ErrMalformedOutput), "default reply has no bible tag")
}

func sessionPatch(bible, character, phase, state *string) storage.SessionPatch {
	return storage.SessionPatch{
		BibleContent:     bible,
		CharacterContent: character,
		CurrentPhase:     phase,
		CoarseState:      state,
	}
}
