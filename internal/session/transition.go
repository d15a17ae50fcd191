package session

import (
	"context"

	"github.com/rapturt9/interactive-worlds-sub000/internal/chat"
	debuglog "github.com/rapturt9/interactive-worlds-sub000/internal/log"
)

// Transition copies message history forward when a session advances from one
// phase to the next. Copies are additive: source-phase records are untouched,
// so each phase keeps a complete audit trail. Do not turn this into a move.
type Transition struct {
	store *Store
}

func NewTransition(store *Store) *Transition {
	return &Transition{store: store}
}

// CopyForward duplicates the real conversation from fromPhases into toPhase
// and returns the copies in timestamp order, ready to seed the next
// generation call's context. Synthetic display artifacts are skipped: system
// records, phase-boundary markers, and confirmation blurbs are regenerated on
// demand and must not travel forward. Repeated invocation is idempotent
// because message appends dedup per (id, phase).
func (t *Transition) CopyForward(ctx context.Context, sessionID string, fromPhases []string, toPhase string) ([]*chat.Message, error) {
	msgs, err := t.store.ListMessages(ctx, sessionID, fromPhases...)
	if err != nil {
		return nil, err
	}

	copies := make([]*chat.Message, 0, len(msgs))
	for _, m := range msgs {
		if m.Role == chat.RoleSystem || m.IsBoundaryMarker() || chat.IsSyntheticConfirmation(m.Content) {
			continue
		}
		cp := m.Clone()
		cp.Phase = toPhase
		if _, err = t.store.AppendMessage(ctx, sessionID, cp); err != nil {
			return nil, err
		}
		copies = append(copies, cp)
	}

	debuglog.Detailedf("copied %d of %d messages from %v to %s", len(copies), len(msgs), fromPhases, toPhase)
	return copies, nil
}
