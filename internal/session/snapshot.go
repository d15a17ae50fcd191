package session

import (
	"context"

	debuglog "github.com/rapturt9/interactive-worlds-sub000/internal/log"
	"github.com/rapturt9/interactive-worlds-sub000/internal/storage"
)

// Snapshots maintains the turn-indexed record of canonical state (bible and
// character) and the session's turn counter. It knows nothing about phases or
// messages.
type Snapshots struct {
	db storage.Store
}

func NewSnapshots(db storage.Store) *Snapshots {
	return &Snapshots{db: db}
}

// Save upserts the snapshot for (session, turn). Saving the same turn twice
// overwrites it rather than duplicating it.
func (s *Snapshots) Save(ctx context.Context, sessionID string, turn int, bible, character string) error {
	return s.db.UpsertSnapshot(ctx, &storage.SnapshotRecord{
		SessionID:  sessionID,
		TurnNumber: turn,
		Bible:      bible,
		Character:  character,
	})
}

func (s *Snapshots) Load(ctx context.Context, sessionID string, turn int) (*storage.SnapshotRecord, error) {
	return s.db.GetSnapshot(ctx, sessionID, turn)
}

// List returns the session's snapshots ordered by turn ascending.
func (s *Snapshots) List(ctx context.Context, sessionID string) ([]storage.SnapshotRecord, error) {
	return s.db.ListSnapshots(ctx, sessionID)
}

func (s *Snapshots) CurrentTurn(ctx context.Context, sessionID string) (int, error) {
	rec, err := s.db.GetSession(ctx, sessionID)
	if err != nil {
		return 0, err
	}
	return rec.CurrentTurn, nil
}

// IncrementTurn advances the turn counter by one and returns the new value.
// Read-then-write is fine under the single-writer-per-session model.
func (s *Snapshots) IncrementTurn(ctx context.Context, sessionID string) (int, error) {
	rec, err := s.db.GetSession(ctx, sessionID)
	if err != nil {
		return 0, err
	}
	next := rec.CurrentTurn + 1
	if _, err = s.db.UpdateSession(ctx, sessionID, storage.SessionPatch{CurrentTurn: &next}); err != nil {
		return 0, err
	}
	return next, nil
}

// Rollback copies a snapshot's bible and character back into the session.
// Message history, the current phase, and the turn counter are untouched, so
// rollback redirects future generation context without rewriting the visible
// transcript.
func (s *Snapshots) Rollback(ctx context.Context, sessionID string, turn int) error {
	snap, err := s.db.GetSnapshot(ctx, sessionID, turn)
	if err != nil {
		return err
	}
	_, err = s.db.UpdateSession(ctx, sessionID, storage.SessionPatch{
		BibleContent:     &snap.Bible,
		CharacterContent: &snap.Character,
	})
	if err != nil {
		return err
	}
	debuglog.Basicf("session %s rolled back to turn %d", sessionID, turn)
	return nil
}
