package search

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/hashicorp-forge/hermes-import/pkg/database"
	"github.com/hashicorp-forge/hermes-import/pkg/events"
	"github.com/hashicorp-forge/hermes-import/pkg/models"
)

func page(id, space, title, text string) models.Page {
	return models.Page{
		ID:          id,
		SlugID:      "slug-" + id,
		Title:       title,
		TextContent: text,
		Position:    "a0",
		SpaceID:     space,
		WorkspaceID: "ws-1",
	}
}

func openMemory(t *testing.T) *Index {
	t.Helper()
	idx, err := Open("", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func TestIndex(t *testing.T) {
	ctx := context.Background()
	idx := openMemory(t)

	require.NoError(t, idx.IndexPages(ctx, []models.Page{
		page("p1", "eng", "Deploy runbook", "How to deploy the billing service to production"),
		page("p2", "eng", "Oncall", "Escalation paths and pager rotations"),
		page("p3", "ops", "Deploys", "Release trains for every deployment"),
	}))

	count, err := idx.Count()
	require.NoError(t, err)
	assert.Equal(t, uint64(3), count)

	t.Run("MatchesStemmedText", func(t *testing.T) {
		res, err := idx.Search(ctx, Query{Text: "deploying"})
		require.NoError(t, err)
		assert.Equal(t, uint64(2), res.Total)

		var ids []string
		for _, h := range res.Hits {
			ids = append(ids, h.ID)
		}
		assert.ElementsMatch(t, []string{"p1", "p3"}, ids)
	})

	t.Run("FiltersBySpace", func(t *testing.T) {
		res, err := idx.Search(ctx, Query{Text: "deploy", SpaceID: "ops"})
		require.NoError(t, err)
		require.Len(t, res.Hits, 1)
		assert.Equal(t, "p3", res.Hits[0].ID)
		assert.Equal(t, "Deploys", res.Hits[0].Title)
		assert.Equal(t, "slug-p3", res.Hits[0].SlugID)
		assert.Equal(t, "ops", res.Hits[0].SpaceID)
	})

	t.Run("HighlightsContent", func(t *testing.T) {
		res, err := idx.Search(ctx, Query{Text: "pager"})
		require.NoError(t, err)
		require.Len(t, res.Hits, 1)
		require.NotEmpty(t, res.Hits[0].Fragments)
		assert.Contains(t, res.Hits[0].Fragments[0], "pager")
	})

	t.Run("EmptyTextMatchesAll", func(t *testing.T) {
		res, err := idx.Search(ctx, Query{SpaceID: "eng", Limit: 1})
		require.NoError(t, err)
		assert.Equal(t, uint64(2), res.Total)
		assert.Len(t, res.Hits, 1)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, idx.Delete(ctx, []string{"p2"}))
		res, err := idx.Search(ctx, Query{Text: "pager"})
		require.NoError(t, err)
		assert.Zero(t, res.Total)
	})
}

func TestOpen_OnDisk(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "index", "pages.bleve")

	idx, err := Open(path, nil)
	require.NoError(t, err)
	require.NoError(t, idx.IndexPages(ctx, []models.Page{page("p1", "eng", "Runbook", "restart the cache")}))
	require.NoError(t, idx.Close())

	idx, err = Open(path, nil)
	require.NoError(t, err)
	defer idx.Close()

	res, err := idx.Search(ctx, Query{Text: "cache"})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), res.Total)
}

func seed(t *testing.T, n int) *gorm.DB {
	t.Helper()

	db, err := database.Connect(database.Config{Driver: database.DriverSQLite, Path: ":memory:"}, nil)
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(models.ModelsToAutoMigrate()...))

	require.NoError(t, db.Create(&models.Space{ID: "eng", Name: "Engineering", Slug: "eng", WorkspaceID: "ws-1"}).Error)
	for i := 0; i < n; i++ {
		p := page(fmt.Sprintf("p%03d", i), "eng", fmt.Sprintf("Page %d", i), "shared words")
		p.Position = fmt.Sprintf("a%d", i)
		require.NoError(t, db.Create(&p).Error)
	}
	return db
}

func TestSubscriber(t *testing.T) {
	ctx := context.Background()

	t.Run("IndexesEventPages", func(t *testing.T) {
		db := seed(t, 3)
		idx := openMemory(t)
		sub := NewSubscriber(db, idx, nil)

		var bus events.Bus = sub
		require.NoError(t, bus.Publish(ctx, events.NewPagesCreated("eng", "ws-1", []string{"p000", "p002"})))

		count, err := idx.Count()
		require.NoError(t, err)
		assert.Equal(t, uint64(2), count)
	})

	t.Run("IndexSpace", func(t *testing.T) {
		db := seed(t, loadBatchSize+5)
		idx := openMemory(t)
		sub := NewSubscriber(db, idx, nil)

		n, err := sub.IndexSpace(ctx, "eng")
		require.NoError(t, err)
		assert.Equal(t, loadBatchSize+5, n)

		res, err := idx.Search(ctx, Query{Text: "shared", SpaceID: "eng"})
		require.NoError(t, err)
		assert.Equal(t, uint64(loadBatchSize+5), res.Total)
	})
}
