package models

import (
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Space is a destination collection of pages.
type Space struct {
	ID          string  `gorm:"type:varchar(36);primaryKey" json:"id"`
	Name        string  `gorm:"type:varchar(255);not null" json:"name"`
	Slug        string  `gorm:"type:varchar(255);not null;uniqueIndex:idx_spaces_workspace_slug" json:"slug"`
	Description *string `gorm:"type:text" json:"description,omitempty"`
	WorkspaceID string  `gorm:"type:varchar(36);not null;uniqueIndex:idx_spaces_workspace_slug" json:"workspaceId"`
	CreatorID   string  `gorm:"type:varchar(36)" json:"creatorId"`

	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName specifies the table name.
func (Space) TableName() string {
	return "spaces"
}

// Create inserts the space.
func (s *Space) Create(db *gorm.DB) error {
	if err := validation.ValidateStruct(s,
		validation.Field(&s.ID, validation.Required),
		validation.Field(&s.Name, validation.Required, validation.Length(1, 255)),
		validation.Field(&s.Slug, validation.Required, validation.Length(1, 255)),
		validation.Field(&s.WorkspaceID, validation.Required),
	); err != nil {
		return fmt.Errorf("validation error: %w", err)
	}

	return db.
		Omit(clause.Associations).
		Create(s).
		Error
}

// Get retrieves a space by ID.
func (s *Space) Get(db *gorm.DB, id string) error {
	if err := validation.Validate(id, validation.Required); err != nil {
		return err
	}

	return db.
		Where("id = ?", id).
		First(s).
		Error
}

// SpaceMember role constants
const (
	SpaceRoleAdmin  = "admin"
	SpaceRoleWriter = "writer"
	SpaceRoleReader = "reader"
)

// SpaceMember grants a user a role on a space.
type SpaceMember struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	SpaceID   string    `gorm:"type:varchar(36);not null;uniqueIndex:idx_space_members_space_user" json:"spaceId"`
	UserID    string    `gorm:"type:varchar(36);not null;uniqueIndex:idx_space_members_space_user" json:"userId"`
	Role      string    `gorm:"type:varchar(20);not null" json:"role"`
	AddedByID string    `gorm:"type:varchar(36)" json:"addedById,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// TableName specifies the table name.
func (SpaceMember) TableName() string {
	return "space_members"
}
