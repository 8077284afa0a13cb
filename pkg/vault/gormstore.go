package vault

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// VaultObject is the Postgres row backing one vault key.
type VaultObject struct {
	Key       string         `gorm:"primaryKey;size:512"`
	Blob      datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt time.Time      `gorm:"index"`
}

func (VaultObject) TableName() string {
	return "vault_objects"
}

// GormStore is the durable Postgres vault backend.
type GormStore struct {
	db *gorm.DB
}

var _ ObjectStore = &GormStore{}

func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&VaultObject{}); err != nil {
		return nil, fmt.Errorf("vault: migrate vault_objects: %w", err)
	}
	return &GormStore{db: db}, nil
}

func (s *GormStore) Put(ctx context.Context, key string, blob []byte) error {
	obj := VaultObject{
		Key:       key,
		Blob:      datatypes.JSON(blob),
		CreatedAt: time.Now().UTC(),
	}
	// Keys are content/path derived, so a conflicting insert is a
	// retried idempotent write, not an update.
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&obj).Error
	if err != nil {
		return fmt.Errorf("vault: postgres put %s: %w", key, err)
	}
	return nil
}

func (s *GormStore) Get(ctx context.Context, key string) ([]byte, error) {
	var obj VaultObject
	err := s.db.WithContext(ctx).First(&obj, "key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("vault: postgres get %s: %w", key, err)
	}
	return []byte(obj.Blob), nil
}

func (s *GormStore) List(ctx context.Context, prefix string, limit int) ([]string, error) {
	query := s.db.WithContext(ctx).
		Model(&VaultObject{}).
		Where("key LIKE ?", prefix+"%").
		Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var keys []string
	if err := query.Pluck("key", &keys).Error; err != nil {
		return nil, fmt.Errorf("vault: postgres list %s: %w", prefix, err)
	}
	return keys, nil
}
