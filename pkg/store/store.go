// Package store writes imported pages, backlinks and attachments to the
// destination document store.
package store

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-hclog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/hashicorp-forge/hermes-import/pkg/models"
	"github.com/hashicorp-forge/hermes-import/pkg/ordering"
)

// DefaultBatchSize is the number of rows inserted per statement when a
// caller does not choose one.
const DefaultBatchSize = 100

// Store is a gorm-backed repository for imported content. Write methods
// take the transaction they run in.
type Store struct {
	db     *gorm.DB
	logger hclog.Logger
}

// New creates a new Store.
func New(db *gorm.DB, logger hclog.Logger) *Store {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Store{
		db:     db,
		logger: logger.Named("store"),
	}
}

// DB returns the underlying connection.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// NextRootPosition returns an order key that sorts after every existing root
// page of the space.
func (s *Store) NextRootPosition(ctx context.Context, spaceID string) (string, error) {
	last, err := models.GetLastRootPosition(s.db.WithContext(ctx), spaceID)
	if err != nil {
		return "", fmt.Errorf("failed to read last root position: %w", err)
	}

	next, err := ordering.KeyBetween(last, "")
	if err != nil {
		return "", fmt.Errorf("failed to allocate root position after %q: %w", last, err)
	}
	return next, nil
}

// InsertPage inserts one page.
func (s *Store) InsertPage(tx *gorm.DB, page *models.Page) error {
	if err := tx.Omit(clause.Associations).Create(page).Error; err != nil {
		return fmt.Errorf("failed to insert page %s: %w", page.ID, err)
	}
	return nil
}

// InsertBacklinks inserts backlink rows in batches of batchSize. Duplicate
// edges are ignored.
func (s *Store) InsertBacklinks(tx *gorm.DB, backlinks []models.Backlink, batchSize int) error {
	if len(backlinks) == 0 {
		return nil
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	err := tx.
		Clauses(clause.OnConflict{DoNothing: true}).
		CreateInBatches(&backlinks, batchSize).
		Error
	if err != nil {
		return fmt.Errorf("failed to insert backlinks: %w", err)
	}

	s.logger.Debug("inserted backlinks", "count", len(backlinks), "batch_size", batchSize)
	return nil
}

// InsertAttachments inserts attachment rows.
func (s *Store) InsertAttachments(tx *gorm.DB, attachments []models.Attachment, batchSize int) error {
	if len(attachments) == 0 {
		return nil
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	if err := tx.CreateInBatches(&attachments, batchSize).Error; err != nil {
		return fmt.Errorf("failed to insert attachments: %w", err)
	}
	return nil
}
