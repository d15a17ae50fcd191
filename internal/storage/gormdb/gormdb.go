// Package gormdb is the sqlite-backed storage.Store for durable sessions.
package gormdb

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/rapturt9/interactive-worlds-sub000/internal/storage"
)

type Db struct {
	db *gorm.DB
}

// Open connects to the sqlite database at path, creating it and migrating the
// schema as needed. Use ":memory:" for a throwaway database.
func Open(path string) (*Db, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, errors.Wrap(err, "opening sqlite database")
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, errors.Wrap(err, "getting underlying sql.DB")
	}
	sqlDB.Exec("PRAGMA foreign_keys = ON;")
	sqlDB.Exec("PRAGMA journal_mode = WAL;")

	if err = db.AutoMigrate(
		&storage.SessionRecord{},
		&storage.MessageRecord{},
		&storage.SnapshotRecord{},
	); err != nil {
		return nil, errors.Wrap(err, "migrating schema")
	}
	return &Db{db: db}, nil
}

var _ storage.Store = (*Db)(nil)

func (d *Db) CreateSession(ctx context.Context, rec *storage.SessionRecord) error {
	return d.db.WithContext(ctx).Create(rec).Error
}

func (d *Db) GetSession(ctx context.Context, id string) (*storage.SessionRecord, error) {
	var rec storage.SessionRecord
	err := d.db.WithContext(ctx).First(&rec, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.Wrapf(storage.ErrNotFound, "session %s", id)
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (d *Db) ListSessions(ctx context.Context) ([]storage.SessionRecord, error) {
	var out []storage.SessionRecord
	err := d.db.WithContext(ctx).Order("created_at asc").Find(&out).Error
	return out, err
}

func (d *Db) UpdateSession(ctx context.Context, id string, patch storage.SessionPatch) (*storage.SessionRecord, error) {
	var rec *storage.SessionRecord
	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var cur storage.SessionRecord
		if err := tx.First(&cur, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errors.Wrapf(storage.ErrNotFound, "session %s", id)
			}
			return err
		}
		patch.Apply(&cur)
		cur.UpdatedAt = time.Now().UTC()
		if err := tx.Save(&cur).Error; err != nil {
			return err
		}
		rec = &cur
		return nil
	})
	return rec, err
}

func (d *Db) InsertMessage(ctx context.Context, rec *storage.MessageRecord) (bool, error) {
	if _, err := d.GetSession(ctx, rec.SessionID); err != nil {
		return false, err
	}
	// The unique (session_id, message_id, phase) index turns a retried write
	// into a no-op instead of a duplicate row.
	res := d.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(rec)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (d *Db) ListMessages(ctx context.Context, sessionID string, phases ...string) ([]storage.MessageRecord, error) {
	if _, err := d.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}
	q := d.db.WithContext(ctx).Where("session_id = ?", sessionID)
	if len(phases) > 0 {
		q = q.Where("phase IN ?", phases)
	}
	var out []storage.MessageRecord
	err := q.Order("timestamp asc, row_id asc").Find(&out).Error
	return out, err
}

func (d *Db) ReplaceMessageContent(ctx context.Context, sessionID, messageID, phase, content, partsJSON string) error {
	res := d.db.WithContext(ctx).Model(&storage.MessageRecord{}).
		Where("session_id = ? AND message_id = ? AND phase = ?", sessionID, messageID, phase).
		Updates(map[string]any{"content": content, "parts_json": partsJSON})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errors.Wrapf(storage.ErrNotFound, "message %s in phase %s", messageID, phase)
	}
	return nil
}

func (d *Db) DeleteMessagesAfter(ctx context.Context, sessionID, phase string, after time.Time) (int, error) {
	res := d.db.WithContext(ctx).
		Where("session_id = ? AND phase = ? AND timestamp > ?", sessionID, phase, after).
		Delete(&storage.MessageRecord{})
	return int(res.RowsAffected), res.Error
}

func (d *Db) UpsertSnapshot(ctx context.Context, rec *storage.SnapshotRecord) error {
	if _, err := d.GetSession(ctx, rec.SessionID); err != nil {
		return err
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	return d.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "session_id"}, {Name: "turn_number"}},
		DoUpdates: clause.AssignmentColumns([]string{"bible", "character", "created_at"}),
	}).Create(rec).Error
}

func (d *Db) GetSnapshot(ctx context.Context, sessionID string, turn int) (*storage.SnapshotRecord, error) {
	var rec storage.SnapshotRecord
	err := d.db.WithContext(ctx).
		First(&rec, "session_id = ? AND turn_number = ?", sessionID, turn).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.Wrapf(storage.ErrNotFound, "snapshot turn %d", turn)
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (d *Db) ListSnapshots(ctx context.Context, sessionID string) ([]storage.SnapshotRecord, error) {
	var out []storage.SnapshotRecord
	err := d.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("turn_number asc").
		Find(&out).Error
	return out, err
}
