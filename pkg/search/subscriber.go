package search

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-hclog"
	"gorm.io/gorm"

	"github.com/hashicorp-forge/hermes-import/pkg/events"
	"github.com/hashicorp-forge/hermes-import/pkg/models"
)

const loadBatchSize = 200

// Subscriber indexes the pages named by PagesCreated events. It implements
// events.Bus so it can sit beside the publisher.
type Subscriber struct {
	db     *gorm.DB
	index  *Index
	logger hclog.Logger
}

// NewSubscriber creates a subscriber that loads pages from db.
func NewSubscriber(db *gorm.DB, index *Index, logger hclog.Logger) *Subscriber {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Subscriber{
		db:     db,
		index:  index,
		logger: logger.Named("search-subscriber"),
	}
}

// Publish implements events.Bus.
func (s *Subscriber) Publish(ctx context.Context, event *events.PagesCreated) error {
	for start := 0; start < len(event.PageIDs); start += loadBatchSize {
		end := min(start+loadBatchSize, len(event.PageIDs))

		var pages []models.Page
		err := s.db.WithContext(ctx).
			Where("id IN ?", event.PageIDs[start:end]).
			Find(&pages).
			Error
		if err != nil {
			return fmt.Errorf("failed to load pages for event %s: %w", event.ID, err)
		}
		if err := s.index.IndexPages(ctx, pages); err != nil {
			return err
		}
	}

	s.logger.Info("indexed event", "event_id", event.ID, "space_id", event.SpaceID, "pages", len(event.PageIDs))
	return nil
}

// IndexSpace indexes every live page of a space and returns the count.
func (s *Subscriber) IndexSpace(ctx context.Context, spaceID string) (int, error) {
	var (
		pages []models.Page
		total int
	)
	result := s.db.WithContext(ctx).
		Where("space_id = ?", spaceID).
		FindInBatches(&pages, loadBatchSize, func(tx *gorm.DB, batch int) error {
			if err := s.index.IndexPages(ctx, pages); err != nil {
				return err
			}
			total += len(pages)
			return nil
		})
	if result.Error != nil {
		return total, fmt.Errorf("failed to index space %s: %w", spaceID, result.Error)
	}
	return total, nil
}

// Close implements events.Bus. The index is owned by the caller.
func (s *Subscriber) Close() {}
