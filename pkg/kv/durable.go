package kv

import (
	"context"
	"errors"
	"time"

	pkgerrors "github.com/leminhvu/packtrace-backend/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Backup is the sqlite row model for long-lived gateway backups.
type Backup struct {
	Key       string `gorm:"primaryKey"`
	Value     []byte
	ExpiresAt time.Time
	UpdatedAt time.Time
}

// TableName pins the backup table name.
func (Backup) TableName() string {
	return "kv_backups"
}

// Durable is a gorm-backed Gateway used as the long-lived secondary store.
// Entries carry a TTL so stale backups age out.
type Durable struct {
	db  *gorm.DB
	ttl time.Duration
}

// NewDurable migrates the backup table and returns the store.
func NewDurable(db *gorm.DB, ttl time.Duration) (*Durable, error) {
	if db == nil {
		return nil, errors.New("gorm db required")
	}
	if ttl <= 0 {
		return nil, errors.New("backup ttl must be positive")
	}
	if err := db.AutoMigrate(&Backup{}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStorageUnavailable, err, "migrate kv backups")
	}
	return &Durable{db: db, ttl: ttl}, nil
}

func (d *Durable) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var row Backup
	err := d.db.WithContext(ctx).First(&row, "key = ?", key).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, nil
		}
		return nil, false, pkgerrors.Wrap(pkgerrors.CodeStorageUnavailable, err, "read backup")
	}
	if time.Now().After(row.ExpiresAt) {
		return nil, false, nil
	}
	return row.Value, true, nil
}

func (d *Durable) Set(ctx context.Context, key string, value []byte) error {
	row := Backup{
		Key:       key,
		Value:     value,
		ExpiresAt: time.Now().Add(d.ttl),
	}
	err := d.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "expires_at", "updated_at"}),
		}).
		Create(&row).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeStorageUnavailable, err, "write backup")
	}
	return nil
}

// CleanupExpired deletes rows whose TTL has lapsed and returns the count.
func (d *Durable) CleanupExpired(ctx context.Context) (int64, error) {
	res := d.db.WithContext(ctx).Delete(&Backup{}, "expires_at < ?", time.Now())
	if res.Error != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeStorageUnavailable, res.Error, "cleanup backups")
	}
	return res.RowsAffected, nil
}

func (d *Durable) Remove(ctx context.Context, key string) error {
	err := d.db.WithContext(ctx).Delete(&Backup{}, "key = ?", key).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeStorageUnavailable, err, "delete backup")
	}
	return nil
}
