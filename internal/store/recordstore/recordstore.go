// Package recordstore implements response.Store on top of GORM/Postgres,
// grounded on the teacher's internal/repository GORM repositories: the same
// WithContext/First/error-wrapping idiom, retargeted at the engine's
// generic, author-declared PersistentRecord shape instead of a fixed
// voice-tenant/voice-agent schema.
package recordstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jinzhu/copier"
	"gorm.io/gorm"

	"github.com/tingiris/violet-convo/internal/core/response"
)

// row is the GORM model backing every persistent record regardless of its
// author-declared type: fields are stored as a JSON blob since the engine
// treats record schemas as opaque (spec §3 PersistentRecord, §6 "where is
// an opaque string forwarded to the backend").
type row struct {
	ID       uint   `gorm:"primarykey"`
	Type     string `gorm:"index:idx_type_key"`
	KeyField string `gorm:"index:idx_type_key"`
	KeyValue string `gorm:"index:idx_type_key"`
	Fields   string // JSON-encoded map[string]string
}

func (row) TableName() string { return "persistent_records" }

// meta mirrors row's addressing columns; used only so copier has two
// distinct struct shapes to reconcile instead of a hand-rolled field-by-
// field assignment.
type meta struct {
	Type     string
	KeyField string
	KeyValue string
}

// Store implements response.Store against a GORM/Postgres connection.
type Store struct {
	db *gorm.DB
}

// New wraps an already-migrated *gorm.DB. New does not migrate; the
// persistent_records table must already exist.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Load fetches one record by (recordType, keyField, keyValue); where is
// appended as a raw SQL predicate when non-empty, matching the "opaque
// string forwarded to the backend" contract of spec §6.
func (s *Store) Load(ctx context.Context, recordType, keyField, keyValue, where string) (*response.Record, error) {
	query := s.db.WithContext(ctx).
		Where("type = ? AND key_field = ? AND key_value = ?", recordType, keyField, keyValue)
	if where != "" {
		query = query.Where(where)
	}

	var r row
	if err := query.First(&r).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("recordstore: load %s/%s=%s: %w", recordType, keyField, keyValue, err)
	}

	fields := map[string]string{}
	if r.Fields != "" {
		if err := json.Unmarshal([]byte(r.Fields), &fields); err != nil {
			return nil, fmt.Errorf("recordstore: decode fields: %w", err)
		}
	}
	return &response.Record{Type: r.Type, Fields: fields}, nil
}

// Store upserts rec keyed on (Type, KeyField, KeyValue), as populated by a
// prior LoadRecord call.
func (s *Store) Store(ctx context.Context, rec *response.Record) error {
	data, err := json.Marshal(rec.Fields)
	if err != nil {
		return fmt.Errorf("recordstore: encode fields: %w", err)
	}

	var m meta
	if err := copier.Copy(&m, rec); err != nil {
		return fmt.Errorf("recordstore: copy metadata: %w", err)
	}

	var existing row
	err = s.db.WithContext(ctx).
		Where("type = ? AND key_field = ? AND key_value = ?", m.Type, m.KeyField, m.KeyValue).
		First(&existing).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return s.db.WithContext(ctx).Create(&row{
			Type: m.Type, KeyField: m.KeyField, KeyValue: m.KeyValue, Fields: string(data),
		}).Error
	case err != nil:
		return fmt.Errorf("recordstore: find existing row: %w", err)
	default:
		existing.Fields = string(data)
		return s.db.WithContext(ctx).Save(&existing).Error
	}
}
