package spaces

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/hashicorp-forge/hermes-import/pkg/database"
	"github.com/hashicorp-forge/hermes-import/pkg/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := database.Connect(database.Config{Driver: database.DriverSQLite, Path: ":memory:"}, nil)
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(models.ModelsToAutoMigrate()...))
	return db
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"key", "ENG", "eng"},
		{"name with spaces", "Engineering Docs", "engineering-docs"},
		{"camel case", "ProductTeam", "product-team"},
		{"punctuation", "R&D: Plans!", "r-d-plans"},
		{"empty", "", "space"},
		{"only symbols", "!!!", "space"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Slugify(tt.in))
		})
	}
}

func TestUniqueSlug(t *testing.T) {
	existing := map[string]bool{"eng": true, "eng-2": true}
	assert.Equal(t, "eng-3", UniqueSlug("ENG", existing))
	assert.Equal(t, "ops", UniqueSlug("OPS", existing))
}

func TestService(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	svc := NewService(db, nil)

	t.Run("Create derives unique slugs", func(t *testing.T) {
		first, err := svc.Create(ctx, CreateRequest{Name: "Engineering", Key: "ENG", WorkspaceID: "ws-1"})
		require.NoError(t, err)
		assert.Equal(t, "eng", first.Slug)
		assert.NotEmpty(t, first.ID)

		second, err := svc.Create(ctx, CreateRequest{Name: "Engineering", Key: "ENG", WorkspaceID: "ws-1"})
		require.NoError(t, err)
		assert.Equal(t, "eng-2", second.Slug)

		other, err := svc.Create(ctx, CreateRequest{Name: "Engineering", Key: "ENG", WorkspaceID: "ws-2"})
		require.NoError(t, err)
		assert.Equal(t, "eng", other.Slug, "slugs are scoped to a workspace")
	})

	t.Run("Create validates request", func(t *testing.T) {
		_, err := svc.Create(ctx, CreateRequest{Key: "X"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid space request")
	})

	t.Run("GrantAdmins is idempotent", func(t *testing.T) {
		space, err := svc.Create(ctx, CreateRequest{Name: "Members", WorkspaceID: "ws-1"})
		require.NoError(t, err)

		require.NoError(t, svc.GrantAdmins(ctx, space.ID, "creator", []string{"u1", "u2", "u1"}))
		require.NoError(t, svc.GrantAdmins(ctx, space.ID, "creator", []string{"u2"}))

		var members []models.SpaceMember
		require.NoError(t, db.Where("space_id = ?", space.ID).Order("user_id").Find(&members).Error)
		require.Len(t, members, 2)
		assert.Equal(t, models.SpaceRoleAdmin, members[0].Role)
		assert.Equal(t, "u1", members[0].UserID)
	})

	t.Run("SoftDelete hides space and pages", func(t *testing.T) {
		space, err := svc.Create(ctx, CreateRequest{Name: "Doomed", WorkspaceID: "ws-1"})
		require.NoError(t, err)
		require.NoError(t, db.Create(&models.Page{
			ID:          "11111111-1111-1111-1111-111111111111",
			SlugID:      "AAAAAAAAAA",
			Position:    "a0",
			SpaceID:     space.ID,
			WorkspaceID: "ws-1",
		}).Error)

		require.NoError(t, svc.SoftDelete(ctx, space.ID))

		_, err = svc.Get(ctx, space.ID)
		assert.ErrorIs(t, err, ErrSpaceNotFound)

		var count int64
		require.NoError(t, db.Model(&models.Page{}).Where("space_id = ?", space.ID).Count(&count).Error)
		assert.Zero(t, count)

		slugs, err := svc.ExistingSlugs(ctx, "ws-1")
		require.NoError(t, err)
		assert.True(t, slugs["doomed"], "deleted slugs stay reserved")

		assert.ErrorIs(t, svc.SoftDelete(ctx, "missing"), ErrSpaceNotFound)
	})
}
