// Package storage defines the persistence contract the session core depends
// on. Implementations live in the sibling memdb and gormdb packages.
package storage

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// ErrNotFound is returned when a session or snapshot does not exist. Callers
// treat it as non-fatal.
var ErrNotFound = errors.New("not found")

// SessionRecord is the stored form of a narrative session.
type SessionRecord struct {
	ID                   string `gorm:"primaryKey"`
	Title                string
	ModelTier            string
	CoarseState          string
	CurrentPhase         string
	BibleContent         string `gorm:"type:text"`
	OriginalBibleContent string `gorm:"type:text"`
	CharacterContent     string `gorm:"type:text"`
	CurrentTurn          int
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// MessageRecord is one physical message row. A logical message copied forward
// across phases yields several rows sharing MessageID with distinct Phase
// values; (SessionID, MessageID, Phase) is unique.
type MessageRecord struct {
	RowID     uint   `gorm:"primaryKey;autoIncrement"`
	SessionID string `gorm:"index:idx_message_identity,unique"`
	MessageID string `gorm:"index:idx_message_identity,unique"`
	Phase     string `gorm:"index:idx_message_identity,unique"`
	Role      string
	Content   string `gorm:"type:text"`
	PartsJSON string `gorm:"type:text"`
	Timestamp time.Time
}

// SnapshotRecord is the canonical state captured at a gameplay turn.
type SnapshotRecord struct {
	RowID      uint   `gorm:"primaryKey;autoIncrement"`
	SessionID  string `gorm:"index:idx_snapshot_identity,unique"`
	TurnNumber int    `gorm:"index:idx_snapshot_identity,unique"`
	Bible      string `gorm:"type:text"`
	Character  string `gorm:"type:text"`
	CreatedAt  time.Time
}

// SessionPatch is a partial session update. Nil fields are left untouched, so
// callers cannot accidentally zero a field they did not mention.
type SessionPatch struct {
	Title                *string
	ModelTier            *string
	CoarseState          *string
	CurrentPhase         *string
	BibleContent         *string
	OriginalBibleContent *string
	CharacterContent     *string
	CurrentTurn          *int
}

// Store is the persistence collaborator. All operations are independently
// retryable; InsertMessage's dedup per (session, id, phase) is what makes
// retry-on-timeout safe for message writes.
type Store interface {
	CreateSession(ctx context.Context, rec *SessionRecord) error
	GetSession(ctx context.Context, id string) (*SessionRecord, error)
	ListSessions(ctx context.Context) ([]SessionRecord, error)
	// UpdateSession applies the non-nil fields of patch and returns the
	// updated record. ErrNotFound when the session does not exist.
	UpdateSession(ctx context.Context, id string, patch SessionPatch) (*SessionRecord, error)

	// InsertMessage appends one physical row. Re-inserting an existing
	// (session, id, phase) triple is a no-op reported by inserted=false.
	InsertMessage(ctx context.Context, rec *MessageRecord) (inserted bool, err error)
	// ListMessages returns rows in timestamp order. With no phases given,
	// every phase is included.
	ListMessages(ctx context.Context, sessionID string, phases ...string) ([]MessageRecord, error)
	// ReplaceMessageContent rewrites one row's content, for the explicit
	// user-initiated edit path only.
	ReplaceMessageContent(ctx context.Context, sessionID, messageID, phase, content, partsJSON string) error
	// DeleteMessagesAfter removes rows in one phase with timestamps strictly
	// later than after, returning how many were removed.
	DeleteMessagesAfter(ctx context.Context, sessionID, phase string, after time.Time) (int, error)

	// UpsertSnapshot writes the snapshot for (session, turn), overwriting a
	// prior snapshot at the same turn instead of duplicating it.
	UpsertSnapshot(ctx context.Context, rec *SnapshotRecord) error
	GetSnapshot(ctx context.Context, sessionID string, turn int) (*SnapshotRecord, error)
	// ListSnapshots returns snapshots ordered by turn ascending.
	ListSnapshots(ctx context.Context, sessionID string) ([]SnapshotRecord, error)
}

// Apply folds the patch into rec in place.
func (p SessionPatch) Apply(rec *SessionRecord) {
	if p.Title != nil {
		rec.Title = *p.Title
	}
	if p.ModelTier != nil {
		rec.ModelTier = *p.ModelTier
	}
	if p.CoarseState != nil {
		rec.CoarseState = *p.CoarseState
	}
	if p.CurrentPhase != nil {
		rec.CurrentPhase = *p.CurrentPhase
	}
	if p.BibleContent != nil {
		rec.BibleContent = *p.BibleContent
	}
	if p.OriginalBibleContent != nil {
		rec.OriginalBibleContent = *p.OriginalBibleContent
	}
	if p.CharacterContent != nil {
		rec.CharacterContent = *p.CharacterContent
	}
	if p.CurrentTurn != nil {
		rec.CurrentTurn = *p.CurrentTurn
	}
}

// IsEmpty reports whether the patch touches no fields.
func (p SessionPatch) IsEmpty() bool {
	return p.Title == nil && p.ModelTier == nil && p.CoarseState == nil &&
		p.CurrentPhase == nil && p.BibleContent == nil &&
		p.OriginalBibleContent == nil && p.CharacterContent == nil &&
		p.CurrentTurn == nil
}
