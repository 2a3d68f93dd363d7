package entry

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// entryRecord is the gorm model behind SQLStore
type entryRecord struct {
	ID        string `gorm:"primaryKey;size:36"`
	Domain    string `gorm:"not null;uniqueIndex:idx_entries_domain_unique_id"`
	UniqueID  string `gorm:"not null;uniqueIndex:idx_entries_domain_unique_id"`
	Title     string
	Data      Data `gorm:"serializer:json"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (entryRecord) TableName() string {
	return "config_entries"
}

func (r *entryRecord) toEntry() *Entry {
	return &Entry{
		ID:        r.ID,
		Domain:    r.Domain,
		UniqueID:  r.UniqueID,
		Title:     r.Title,
		Data:      r.Data.Clone(),
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

// SQLStore persists entries in SQLite through gorm.
type SQLStore struct {
	db     *gorm.DB
	reload reloadListeners
}

// OpenSQLite opens (creating if needed) the SQLite database at path and migrates it
func OpenSQLite(path string) (*SQLStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open entry database: %w", err)
	}

	// SQLite allows a single writer.
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access entry database: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	return NewSQLStore(db)
}

// NewSQLStore wraps an open gorm connection and migrates the entry table
func NewSQLStore(db *gorm.DB) (*SQLStore, error) {
	if err := db.AutoMigrate(&entryRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate entry table: %w", err)
	}
	return &SQLStore{db: db}, nil
}

// Close closes the underlying database connection
func (s *SQLStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *SQLStore) Get(ctx context.Context, entryID string) (*Entry, error) {
	var rec entryRecord
	err := s.db.WithContext(ctx).First(&rec, "id = ?", entryID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, entryID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load entry %s: %w", entryID, err)
	}
	return rec.toEntry(), nil
}

func (s *SQLStore) Lookup(ctx context.Context, domain, uniqueID string) (*Entry, error) {
	var rec entryRecord
	err := s.db.WithContext(ctx).
		Where("domain = ? AND unique_id = ?", domain, uniqueID).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, domain, uniqueID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up entry %s/%s: %w", domain, uniqueID, err)
	}
	return rec.toEntry(), nil
}

func (s *SQLStore) List(ctx context.Context, domain string) ([]*Entry, error) {
	var recs []entryRecord
	q := s.db.WithContext(ctx).Order("created_at, id")
	if domain != "" {
		q = q.Where("domain = ?", domain)
	}
	if err := q.Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("failed to list entries: %w", err)
	}

	out := make([]*Entry, 0, len(recs))
	for i := range recs {
		out = append(out, recs[i].toEntry())
	}
	return out, nil
}

func (s *SQLStore) Create(ctx context.Context, e *Entry) (*Entry, error) {
	rec := entryRecord{
		ID:       e.ID,
		Domain:   e.Domain,
		UniqueID: e.UniqueID,
		Title:    e.Title,
		Data:     e.Data.Clone(),
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}

	err := s.db.WithContext(ctx).Create(&rec).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, fmt.Errorf("%w: %s/%s", ErrAlreadyConfigured, e.Domain, e.UniqueID)
	}
	if err != nil {
		if _, lookupErr := s.Lookup(ctx, e.Domain, e.UniqueID); lookupErr == nil {
			return nil, fmt.Errorf("%w: %s/%s", ErrAlreadyConfigured, e.Domain, e.UniqueID)
		}
		return nil, fmt.Errorf("failed to create entry: %w", err)
	}
	return rec.toEntry(), nil
}

func (s *SQLStore) Update(ctx context.Context, entryID string, data Data) (*Entry, error) {
	var rec entryRecord
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&rec, "id = ?", entryID).Error; err != nil {
			return err
		}
		rec.Data = data.Clone()
		return tx.Save(&rec).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, entryID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update entry %s: %w", entryID, err)
	}
	return rec.toEntry(), nil
}

func (s *SQLStore) Reload(ctx context.Context, entryID string) error {
	e, err := s.Get(ctx, entryID)
	if err != nil {
		return err
	}
	return s.reload.notify(ctx, e)
}

func (s *SQLStore) Delete(ctx context.Context, entryID string) error {
	res := s.db.WithContext(ctx).Delete(&entryRecord{}, "id = ?", entryID)
	if res.Error != nil {
		return fmt.Errorf("failed to delete entry %s: %w", entryID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, entryID)
	}
	return nil
}

func (s *SQLStore) OnReload(fn ReloadFunc) {
	s.reload.add(fn)
}
