// Package store persists anchored commits in a local SQLite file.
//
// The store assumes a single writer: no file locking is applied, so concurrent
// gitgood processes must not share a store file.
package store

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/gitgood-project/gitgood/pkg/errclass"
	"github.com/gitgood-project/gitgood/pkg/model"
)

//go:embed schema.sql
var schemaSQL string

// Store is an open connection to the commit store.
type Store struct {
	db   *gorm.DB
	path string
}

// Option configures Open.
type Option func(*gorm.Config)

// WithSQLLogging writes every statement to w.
func WithSQLLogging(w io.Writer) Option {
	return func(c *gorm.Config) {
		c.Logger = logger.New(log.New(w, "sql: ", log.LstdFlags), logger.Config{
			LogLevel:                  logger.Info,
			IgnoreRecordNotFoundError: true,
		})
	}
}

// Open opens (creating if needed) the store at path and applies the schema
// on first use.
func Open(path string, opts ...Option) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, errclass.ErrStore.WithMessagef("create store dir: %v", err)
		}
	}

	cfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)}
	for _, opt := range opts {
		opt(cfg)
	}

	db, err := gorm.Open(sqlite.Open(path+"?_foreign_keys=on"), cfg)
	if err != nil {
		return nil, errclass.ErrStore.WithMessagef("open %s", path).WithCause(err)
	}

	s := &Store{db: db, path: path}
	if err := s.ensureSchema(); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// With opens the store, runs fn, and closes the store on every path.
func With(path string, fn func(*Store) error, opts ...Option) (err error) {
	s, err := Open(path, opts...)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, s.Close())
	}()
	return fn(s)
}

// Path returns the store file path.
func (s *Store) Path() string {
	return s.path
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) ensureSchema() error {
	var n int64
	err := s.db.Raw("SELECT count(*) FROM sqlite_master WHERE type = 'table' AND name = ?", "commits").Scan(&n).Error
	if err != nil {
		return errclass.ErrStore.WithMessage("inspect schema").WithCause(err)
	}
	if n > 0 {
		return nil
	}
	if err := s.db.Exec(schemaSQL).Error; err != nil {
		return errclass.ErrStore.WithMessage("apply schema").WithCause(err)
	}
	return nil
}

// IsRecorded reports whether a commit hash already has a row.
func (s *Store) IsRecorded(ctx context.Context, hash string) (bool, error) {
	return isRecorded(s.db.WithContext(ctx), hash)
}

func isRecorded(db *gorm.DB, hash string) (bool, error) {
	var n int64
	if err := db.Model(&Commit{}).Where("local_commit_hash = ?", hash).Count(&n).Error; err != nil {
		return false, errclass.ErrStore.WithMessage("lookup commit").WithCause(err)
	}
	return n > 0, nil
}

// OnchainID returns the label first assigned to project, if any.
func (s *Store) OnchainID(ctx context.Context, project string) (uint64, bool, error) {
	var c Commit
	err := s.db.WithContext(ctx).
		Where("project_name = ?", project).
		Order("id").
		Limit(1).
		Find(&c).Error
	if err != nil {
		return 0, false, errclass.ErrStore.WithMessage("lookup onchain id").WithCause(err)
	}
	if c.ID == 0 {
		return 0, false, nil
	}
	return c.OnchainID, true, nil
}

// InTx runs fn inside a store transaction. Any error from fn rolls back
// every write made through the Tx.
func (s *Store) InTx(ctx context.Context, fn func(*Tx) error) error {
	return s.db.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		return fn(&Tx{db: db})
	})
}

// RecordCommit inserts rec in its own transaction.
func (s *Store) RecordCommit(ctx context.Context, rec *model.CommitRecord) error {
	return s.InTx(ctx, func(tx *Tx) error { return tx.InsertCommit(rec) })
}

// Commits lists a project's commits in insertion order with their transaction hashes.
func (s *Store) Commits(ctx context.Context, project string) ([]model.CommitRecord, error) {
	var rows []model.CommitRecord
	err := s.selectRecords(ctx).
		Where("c.project_name = ?", project).
		Order("c.id").
		Scan(&rows).Error
	if err != nil {
		return nil, errclass.ErrStore.WithMessage("list commits").WithCause(err)
	}
	return rows, nil
}

// Latest returns the most recently recorded commit of project.
func (s *Store) Latest(ctx context.Context, project string) (*model.CommitRecord, error) {
	var rows []model.CommitRecord
	err := s.selectRecords(ctx).
		Where("c.project_name = ?", project).
		Order("c.id DESC").
		Limit(1).
		Scan(&rows).Error
	if err != nil {
		return nil, errclass.ErrStore.WithMessage("latest commit").WithCause(err)
	}
	if len(rows) == 0 {
		return nil, errclass.ErrNotRecorded.WithMessagef("no commits recorded for project %q", project)
	}
	return &rows[0], nil
}

func (s *Store) selectRecords(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).
		Table("commits AS c").
		Select("c.id, c.onchain_id, c.project_name, c.local_commit_hash, c.commit_message, c.commit_timestamp, " +
			"COALESCE(t.transaction_hash, '') AS transaction_hash").
		Joins("LEFT JOIN transactions AS t ON t.transaction_id = c.id")
}

// Tx is a store transaction handed to InTx callbacks.
type Tx struct {
	db *gorm.DB
}

// InsertCommit inserts rec and sets rec.ID. A hash that already has a row
// fails with ErrDuplicateCommit.
func (t *Tx) InsertCommit(rec *model.CommitRecord) error {
	dup, err := isRecorded(t.db, rec.LocalCommitHash)
	if err != nil {
		return err
	}
	if dup {
		return errclass.ErrDuplicateCommit.WithMessagef("commit %s already recorded", rec.LocalCommitHash)
	}

	row := &Commit{
		OnchainID:       rec.OnchainID,
		ProjectName:     rec.ProjectName,
		LocalCommitHash: rec.LocalCommitHash,
		CommitMessage:   rec.CommitMessage,
		CommitTimestamp: rec.CommitTimestamp,
	}
	if err := t.db.Create(row).Error; err != nil {
		return errclass.ErrStore.WithMessage("insert commit").WithCause(err)
	}
	rec.ID = row.ID
	return nil
}

// InsertTransaction links a submitted transaction hash to a commit row.
func (t *Tx) InsertTransaction(commitID uint, hash string) error {
	row := &Transaction{TransactionID: commitID, TransactionHash: hash}
	if err := t.db.Create(row).Error; err != nil {
		return errclass.ErrStore.WithMessage("insert transaction").WithCause(fmt.Errorf("commit %d: %w", commitID, err))
	}
	return nil
}
