// Package session owns session and message records, phase copy-forward, and
// turn-indexed snapshots of canonical state.
package session

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/rapturt9/interactive-worlds-sub000/internal/chat"
	debuglog "github.com/rapturt9/interactive-worlds-sub000/internal/log"
	"github.com/rapturt9/interactive-worlds-sub000/internal/storage"
)

// Coarse session states.
const (
	StateWorldGeneration = "world_generation"
	StateGameplay        = "gameplay"
)

// ErrInvariant marks programmer errors: persisting a system message, or
// rewriting the original bible after it is set. These fail loudly.
var ErrInvariant = errors.New("invariant violation")

// Seed carries the caller-supplied fields of a new session.
type Seed struct {
	ID        string
	Title     string
	ModelTier string
}

// Store layers the session/message contract over a storage.Store.
type Store struct {
	db storage.Store
}

func NewStore(db storage.Store) *Store {
	return &Store{db: db}
}

// CreateSession starts a session in the world phase.
func (s *Store) CreateSession(ctx context.Context, seed Seed) (*storage.SessionRecord, error) {
	rec := &storage.SessionRecord{
		ID:           seed.ID,
		Title:        seed.Title,
		ModelTier:    seed.ModelTier,
		CoarseState:  StateWorldGeneration,
		CurrentPhase: chat.PhaseWorld,
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if err := s.db.CreateSession(ctx, rec); err != nil {
		return nil, err
	}
	debuglog.Detailedf("session %s created", rec.ID)
	return rec, nil
}

func (s *Store) GetSession(ctx context.Context, id string) (*storage.SessionRecord, error) {
	return s.db.GetSession(ctx, id)
}

func (s *Store) ListSessions(ctx context.Context) ([]storage.SessionRecord, error) {
	return s.db.ListSessions(ctx)
}

// UpdateSession applies a partial update. The original bible is write-once:
// a patch that would change it after it is set is rejected.
func (s *Store) UpdateSession(ctx context.Context, id string, patch storage.SessionPatch) (*storage.SessionRecord, error) {
	if patch.OriginalBibleContent != nil {
		cur, err := s.db.GetSession(ctx, id)
		if err != nil {
			return nil, err
		}
		if cur.OriginalBibleContent != "" && cur.OriginalBibleContent != *patch.OriginalBibleContent {
			return nil, errors.Wrapf(ErrInvariant, "original bible of session %s is immutable", id)
		}
	}
	return s.db.UpdateSession(ctx, id, patch)
}

// AppendMessage persists one message under its phase. System-role and
// synthetic display records are never persisted. Re-appending an id already
// stored for the same phase is a no-op, which makes retried writes safe.
func (s *Store) AppendMessage(ctx context.Context, sessionID string, msg *chat.Message) (bool, error) {
	if msg.Role == chat.RoleSystem {
		return false, errors.Wrap(ErrInvariant, "system messages are synthesized on demand, not persisted")
	}
	if msg.Synthetic {
		return false, errors.Wrap(ErrInvariant, "synthetic display records are not persisted")
	}
	if !chat.ValidPhase(msg.Phase) {
		return false, errors.Wrapf(ErrInvariant, "unknown phase %q", msg.Phase)
	}

	rec, err := toRecord(sessionID, msg)
	if err != nil {
		return false, err
	}
	inserted, err := s.db.InsertMessage(ctx, rec)
	if err != nil {
		return false, err
	}
	if !inserted {
		debuglog.Tracef("message %s already stored for phase %s, skipping", msg.ID, msg.Phase)
	}
	return inserted, nil
}

// ListMessages returns messages in timestamp order, optionally restricted to
// a set of phases.
func (s *Store) ListMessages(ctx context.Context, sessionID string, phases ...string) ([]*chat.Message, error) {
	recs, err := s.db.ListMessages(ctx, sessionID, phases...)
	if err != nil {
		return nil, err
	}
	out := make([]*chat.Message, 0, len(recs))
	for i := range recs {
		msg, err := fromRecord(&recs[i])
		if err != nil {
			return nil, err
		}
		out = append(out, msg)
	}
	return out, nil
}

// EditMessage replaces one record's content and deletes every record with a
// later timestamp in the same phase, truncating the transcript at the edit
// point.
func (s *Store) EditMessage(ctx context.Context, sessionID, messageID, phase, content string) error {
	msgs, err := s.ListMessages(ctx, sessionID, phase)
	if err != nil {
		return err
	}
	var target *chat.Message
	for _, m := range msgs {
		if m.ID == messageID {
			target = m
			break
		}
	}
	if target == nil {
		return errors.Wrapf(storage.ErrNotFound, "message %s in phase %s", messageID, phase)
	}

	if err = s.db.ReplaceMessageContent(ctx, sessionID, messageID, phase, content, ""); err != nil {
		return err
	}
	removed, err := s.db.DeleteMessagesAfter(ctx, sessionID, phase, target.Timestamp)
	if err != nil {
		return err
	}
	debuglog.Detailedf("edited message %s, truncated %d later records in phase %s", messageID, removed, phase)
	return nil
}

func toRecord(sessionID string, msg *chat.Message) (*storage.MessageRecord, error) {
	rec := &storage.MessageRecord{
		SessionID: sessionID,
		MessageID: msg.ID,
		Phase:     msg.Phase,
		Role:      msg.Role,
		Content:   msg.Content,
		Timestamp: msg.Timestamp,
	}
	if len(msg.Parts) > 0 {
		data, err := json.Marshal(msg.Parts)
		if err != nil {
			return nil, errors.Wrap(err, "encoding message parts")
		}
		rec.PartsJSON = string(data)
	}
	return rec, nil
}

func fromRecord(rec *storage.MessageRecord) (*chat.Message, error) {
	msg := &chat.Message{
		ID:        rec.MessageID,
		Role:      rec.Role,
		Content:   rec.Content,
		Timestamp: rec.Timestamp,
		Phase:     rec.Phase,
	}
	if rec.PartsJSON != "" {
		if err := json.Unmarshal([]byte(rec.PartsJSON), &msg.Parts); err != nil {
			return nil, errors.Wrapf(err, "decoding parts of message %s", rec.MessageID)
		}
	}
	return msg, nil
}
