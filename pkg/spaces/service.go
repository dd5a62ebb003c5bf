// Package spaces creates destination spaces and manages their membership.
package spaces

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/hashicorp/go-hclog"
	"github.com/iancoleman/strcase"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/hashicorp-forge/hermes-import/pkg/docid"
	"github.com/hashicorp-forge/hermes-import/pkg/models"
)

// ErrSpaceNotFound is returned when a space does not exist or was deleted.
var ErrSpaceNotFound = errors.New("space not found")

// maxSlugLength matches the width of the slug column.
const maxSlugLength = 255

// CreateRequest describes a space to create.
type CreateRequest struct {
	Name        string
	Key         string
	Description string
	WorkspaceID string
	CreatorID   string
}

// Validate checks the request.
func (r CreateRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required, validation.Length(1, 255)),
		validation.Field(&r.WorkspaceID, validation.Required),
	)
}

// Service creates spaces and grants membership.
type Service struct {
	db     *gorm.DB
	logger hclog.Logger
}

// NewService creates a new space service.
func NewService(db *gorm.DB, logger hclog.Logger) *Service {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Service{
		db:     db,
		logger: logger.Named("spaces"),
	}
}

// Create inserts a new space with a slug that is unique within the
// workspace. The slug is derived from the space key, or from the name when
// the key is empty.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*models.Space, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("invalid space request: %w", err)
	}

	existing, err := s.ExistingSlugs(ctx, req.WorkspaceID)
	if err != nil {
		return nil, err
	}

	base := req.Key
	if base == "" {
		base = req.Name
	}

	space := &models.Space{
		ID:          docid.NewUUID().String(),
		Name:        req.Name,
		Slug:        UniqueSlug(base, existing),
		WorkspaceID: req.WorkspaceID,
		CreatorID:   req.CreatorID,
	}
	if req.Description != "" {
		space.Description = &req.Description
	}

	if err := space.Create(s.db.WithContext(ctx)); err != nil {
		return nil, fmt.Errorf("failed to create space: %w", err)
	}

	s.logger.Info("created space",
		"space_id", space.ID,
		"slug", space.Slug,
		"workspace_id", space.WorkspaceID,
	)
	return space, nil
}

// Get returns a live space.
func (s *Service) Get(ctx context.Context, spaceID string) (*models.Space, error) {
	var space models.Space
	if err := space.Get(s.db.WithContext(ctx), spaceID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrSpaceNotFound, spaceID)
		}
		return nil, fmt.Errorf("failed to get space: %w", err)
	}
	return &space, nil
}

// ExistingSlugs returns the slugs already used in a workspace, including
// those of soft-deleted spaces since the unique index still covers them.
func (s *Service) ExistingSlugs(ctx context.Context, workspaceID string) (map[string]bool, error) {
	var slugs []string
	err := s.db.WithContext(ctx).
		Unscoped().
		Model(&models.Space{}).
		Where("workspace_id = ?", workspaceID).
		Pluck("slug", &slugs).
		Error
	if err != nil {
		return nil, fmt.Errorf("failed to list space slugs: %w", err)
	}

	existing := make(map[string]bool, len(slugs))
	for _, slug := range slugs {
		existing[slug] = true
	}
	return existing, nil
}

// GrantAdmins makes each user an admin of the space. Users that already
// have a membership keep their row.
func (s *Service) GrantAdmins(ctx context.Context, spaceID, addedByID string, userIDs []string) error {
	if len(userIDs) == 0 {
		return nil
	}

	members := make([]models.SpaceMember, 0, len(userIDs))
	seen := make(map[string]bool, len(userIDs))
	for _, id := range userIDs {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		members = append(members, models.SpaceMember{
			SpaceID:   spaceID,
			UserID:    id,
			Role:      models.SpaceRoleAdmin,
			AddedByID: addedByID,
		})
	}
	if len(members) == 0 {
		return nil
	}

	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&members).
		Error
	if err != nil {
		return fmt.Errorf("failed to grant space admins: %w", err)
	}

	s.logger.Debug("granted space admins", "space_id", spaceID, "count", len(members))
	return nil
}

// SoftDelete marks a space and its pages deleted. It compensates for a
// space created by an import whose commit failed.
func (s *Service) SoftDelete(ctx context.Context, spaceID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("space_id = ?", spaceID).Delete(&models.Page{}).Error; err != nil {
			return fmt.Errorf("failed to delete space pages: %w", err)
		}

		result := tx.Where("id = ?", spaceID).Delete(&models.Space{})
		if result.Error != nil {
			return fmt.Errorf("failed to delete space: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("%w: %s", ErrSpaceNotFound, spaceID)
		}

		s.logger.Info("soft-deleted space", "space_id", spaceID)
		return nil
	})
}

// UniqueSlug derives a kebab-case slug from name and appends a numeric
// suffix until it does not collide with existing.
func UniqueSlug(name string, existing map[string]bool) string {
	base := Slugify(name)
	if !existing[base] {
		return base
	}
	for i := 2; ; i++ {
		suffix := "-" + strconv.Itoa(i)
		candidate := truncate(base, maxSlugLength-len(suffix)) + suffix
		if !existing[candidate] {
			return candidate
		}
	}
}

// Slugify converts a space key or name into a kebab-case slug.
func Slugify(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}

	slug := strcase.ToKebab(strings.Join(strings.Fields(b.String()), " "))
	for strings.Contains(slug, "--") {
		slug = strings.ReplaceAll(slug, "--", "-")
	}
	slug = strings.Trim(slug, "-")
	if slug == "" {
		slug = "space"
	}
	return truncate(slug, maxSlugLength)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return strings.TrimRight(s[:n], "-")
}
