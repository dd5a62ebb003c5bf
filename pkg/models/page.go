package models

import (
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gorm.io/gorm"
)

// Page is a committed document row.
//
// Position is a fractional-index key: sibling pages are ordered by comparing
// positions bytewise, so the column must use a binary collation.
type Page struct {
	ID     string  `gorm:"type:varchar(36);primaryKey" json:"id"`
	SlugID string  `gorm:"type:varchar(16);not null;uniqueIndex" json:"slugId"`
	Title  string  `gorm:"type:text" json:"title"`
	Icon   *string `gorm:"type:varchar(255)" json:"icon,omitempty"`

	// Content is the normalized markup after every reference was resolved.
	Content string `gorm:"type:text" json:"content"`

	// TextContent is the plain-text extract used for full-text search.
	TextContent string `gorm:"type:text" json:"textContent"`

	// Markdown is a markdown rendering of the page for downstream indexers.
	Markdown string `gorm:"type:text" json:"markdown"`

	// NativeDoc is the rich-document node tree built from Content.
	NativeDoc JSON `gorm:"type:jsonb" json:"nativeDoc"`

	Position     string  `gorm:"type:varchar(255);not null;index:idx_pages_space_parent_position,priority:3" json:"position"`
	SpaceID      string  `gorm:"type:varchar(36);not null;index:idx_pages_space_parent_position,priority:1" json:"spaceId"`
	ParentPageID *string `gorm:"type:varchar(36);index:idx_pages_space_parent_position,priority:2" json:"parentPageId,omitempty"`
	WorkspaceID  string  `gorm:"type:varchar(36);not null" json:"workspaceId"`
	CreatorID    string  `gorm:"type:varchar(36)" json:"creatorId"`

	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName specifies the table name.
func (Page) TableName() string {
	return "pages"
}

// Validate checks the fields required to insert a page.
func (p *Page) Validate() error {
	return validation.ValidateStruct(p,
		validation.Field(&p.ID, validation.Required),
		validation.Field(&p.SlugID, validation.Required),
		validation.Field(&p.Position, validation.Required),
		validation.Field(&p.SpaceID, validation.Required),
		validation.Field(&p.WorkspaceID, validation.Required),
	)
}

// BeforeCreate rejects pages that are missing required fields.
func (p *Page) BeforeCreate(tx *gorm.DB) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("invalid page %q: %w", p.Title, err)
	}
	return nil
}

// GetChildPages returns the live children of a page (or the root pages of a
// space when parentID is nil) in position order.
func GetChildPages(db *gorm.DB, spaceID string, parentID *string) ([]Page, error) {
	query := db.Where("space_id = ?", spaceID)
	if parentID == nil {
		query = query.Where("parent_page_id IS NULL")
	} else {
		query = query.Where("parent_page_id = ?", *parentID)
	}

	var pages []Page
	err := query.
		Order("position ASC").
		Find(&pages).
		Error
	return pages, err
}

// GetLastRootPosition returns the greatest position among the root pages of a
// space, or "" when the space has no root pages.
func GetLastRootPosition(db *gorm.DB, spaceID string) (string, error) {
	var pages []Page
	err := db.
		Select("position").
		Where("space_id = ? AND parent_page_id IS NULL", spaceID).
		Order("position DESC").
		Limit(1).
		Find(&pages).
		Error
	if err != nil {
		return "", err
	}
	if len(pages) == 0 {
		return "", nil
	}
	return pages[0].Position, nil
}
