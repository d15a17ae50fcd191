// Package memdb is the in-memory storage.Store used by tests and ephemeral
// runs. Everything is guarded by one mutex; the single-writer-per-session
// model makes finer locking pointless.
package memdb

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/rapturt9/interactive-worlds-sub000/internal/storage"
)

type Db struct {
	mu        sync.Mutex
	sessions  map[string]*storage.SessionRecord
	messages  map[string][]*storage.MessageRecord // by session id, insertion order
	snapshots map[string]map[int]*storage.SnapshotRecord
	nextRow   uint
}

func NewDb() *Db {
	return &Db{
		sessions:  make(map[string]*storage.SessionRecord),
		messages:  make(map[string][]*storage.MessageRecord),
		snapshots: make(map[string]map[int]*storage.SnapshotRecord),
		nextRow:   1,
	}
}

var _ storage.Store = (*Db)(nil)

func (db *Db) CreateSession(_ context.Context, rec *storage.SessionRecord) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, exists := db.sessions[rec.ID]; exists {
		return errors.Errorf("session %s already exists", rec.ID)
	}
	now := time.Now().UTC()
	cp := *rec
	cp.CreatedAt = now
	cp.UpdatedAt = now
	db.sessions[rec.ID] = &cp
	return nil
}

func (db *Db) GetSession(_ context.Context, id string) (*storage.SessionRecord, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	rec, ok := db.sessions[id]
	if !ok {
		return nil, errors.Wrapf(storage.ErrNotFound, "session %s", id)
	}
	cp := *rec
	return &cp, nil
}

func (db *Db) ListSessions(_ context.Context) ([]storage.SessionRecord, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	out := make([]storage.SessionRecord, 0, len(db.sessions))
	for _, rec := range db.sessions {
		out = append(out, *rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (db *Db) UpdateSession(_ context.Context, id string, patch storage.SessionPatch) (*storage.SessionRecord, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	rec, ok := db.sessions[id]
	if !ok {
		return nil, errors.Wrapf(storage.ErrNotFound, "session %s", id)
	}
	patch.Apply(rec)
	rec.UpdatedAt = time.Now().UTC()
	cp := *rec
	return &cp, nil
}

func (db *Db) InsertMessage(_ context.Context, rec *storage.MessageRecord) (bool, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, ok := db.sessions[rec.SessionID]; !ok {
		return false, errors.Wrapf(storage.ErrNotFound, "session %s", rec.SessionID)
	}
	for _, existing := range db.messages[rec.SessionID] {
		if existing.MessageID == rec.MessageID && existing.Phase == rec.Phase {
			return false, nil
		}
	}
	cp := *rec
	cp.RowID = db.nextRow
	db.nextRow++
	db.messages[rec.SessionID] = append(db.messages[rec.SessionID], &cp)
	return true, nil
}

func (db *Db) ListMessages(_ context.Context, sessionID string, phases ...string) ([]storage.MessageRecord, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, ok := db.sessions[sessionID]; !ok {
		return nil, errors.Wrapf(storage.ErrNotFound, "session %s", sessionID)
	}
	wanted := func(phase string) bool {
		if len(phases) == 0 {
			return true
		}
		for _, p := range phases {
			if p == phase {
				return true
			}
		}
		return false
	}

	var out []storage.MessageRecord
	for _, rec := range db.messages[sessionID] {
		if wanted(rec.Phase) {
			out = append(out, *rec)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].RowID < out[j].RowID
		}
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out, nil
}

func (db *Db) ReplaceMessageContent(_ context.Context, sessionID, messageID, phase, content, partsJSON string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, rec := range db.messages[sessionID] {
		if rec.MessageID == messageID && rec.Phase == phase {
			rec.Content = content
			rec.PartsJSON = partsJSON
			return nil
		}
	}
	return errors.Wrapf(storage.ErrNotFound, "message %s in phase %s", messageID, phase)
}

func (db *Db) DeleteMessagesAfter(_ context.Context, sessionID, phase string, after time.Time) (int, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	kept := db.messages[sessionID][:0]
	removed := 0
	for _, rec := range db.messages[sessionID] {
		if rec.Phase == phase && rec.Timestamp.After(after) {
			removed++
			continue
		}
		kept = append(kept, rec)
	}
	db.messages[sessionID] = kept
	return removed, nil
}

func (db *Db) UpsertSnapshot(_ context.Context, rec *storage.SnapshotRecord) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, ok := db.sessions[rec.SessionID]; !ok {
		return errors.Wrapf(storage.ErrNotFound, "session %s", rec.SessionID)
	}
	byTurn, ok := db.snapshots[rec.SessionID]
	if !ok {
		byTurn = make(map[int]*storage.SnapshotRecord)
		db.snapshots[rec.SessionID] = byTurn
	}
	cp := *rec
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	byTurn[rec.TurnNumber] = &cp
	return nil
}

func (db *Db) GetSnapshot(_ context.Context, sessionID string, turn int) (*storage.SnapshotRecord, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	rec, ok := db.snapshots[sessionID][turn]
	if !ok {
		return nil, errors.Wrapf(storage.ErrNotFound, "snapshot turn %d", turn)
	}
	cp := *rec
	return &cp, nil
}

func (db *Db) ListSnapshots(_ context.Context, sessionID string) ([]storage.SnapshotRecord, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	var out []storage.SnapshotRecord
	for _, rec := range db.snapshots[sessionID] {
		out = append(out, *rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TurnNumber < out[j].TurnNumber })
	return out, nil
}
