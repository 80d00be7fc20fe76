package kv

import (
	"context"
	"errors"

	pkgerrors "github.com/pkg/errors"
	"github.com/zeebo/xxh3"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/totegamma/memories/internal/infra/database/models"
)

// PostgresStore keeps values in the kv_entries table. Update takes a
// transaction-scoped advisory lock on the key, which also covers keys that
// do not exist yet.
type PostgresStore struct {
	db *gorm.DB
}

func NewPostgresStore(db *gorm.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Get(ctx context.Context, key string) ([]byte, error) {
	var entry models.Entry
	err := s.db.WithContext(ctx).
		Where("key = ?", key).
		Take(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, pkgerrors.Wrap(err, "postgres get")
	}
	return []byte(entry.Value), nil
}

func (s *PostgresStore) Set(ctx context.Context, key string, value []byte) error {
	return pkgerrors.Wrap(upsert(s.db.WithContext(ctx), key, value), "postgres set")
}

func (s *PostgresStore) Delete(ctx context.Context, key string) error {
	err := s.db.WithContext(ctx).Delete(&models.Entry{}, "key = ?", key).Error
	return pkgerrors.Wrap(err, "postgres delete")
}

func (s *PostgresStore) Update(ctx context.Context, key string, fn UpdateFunc) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("SELECT pg_advisory_xact_lock(?)", lockID(key)).Error; err != nil {
			return pkgerrors.Wrap(err, "postgres lock")
		}

		var entry models.Entry
		err := tx.Where("key = ?", key).Take(&entry).Error
		exists := true
		if errors.Is(err, gorm.ErrRecordNotFound) {
			exists = false
		} else if err != nil {
			return pkgerrors.Wrap(err, "postgres get")
		}

		var current []byte
		if exists {
			current = []byte(entry.Value)
		}

		next, write, err := fn(current, exists)
		if err != nil {
			return err
		}
		if !write {
			return nil
		}

		return pkgerrors.Wrap(upsert(tx, key, next), "postgres set")
	})
}

func upsert(db *gorm.DB, key string, value []byte) error {
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "m_date"}),
	}).Create(&models.Entry{
		Key:   key,
		Value: string(value),
	}).Error
}

func lockID(key string) int64 {
	return int64(xxh3.HashString(key))
}

var _ Store = (*PostgresStore)(nil)
