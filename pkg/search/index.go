// Package search keeps a local full-text index of imported pages.
package search

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"
	"github.com/hashicorp/go-hclog"

	"github.com/hashicorp-forge/hermes-import/pkg/models"
)

// DefaultLimit is the page size of a search without an explicit limit.
const DefaultLimit = 20

// Document is the indexed form of a page.
type Document struct {
	ID          string `json:"id"`
	SlugID      string `json:"slugId"`
	Title       string `json:"title"`
	Content     string `json:"content"`
	SpaceID     string `json:"spaceId"`
	WorkspaceID string `json:"workspaceId"`
}

// DocumentFromPage converts a committed page.
func DocumentFromPage(p models.Page) Document {
	return Document{
		ID:          p.ID,
		SlugID:      p.SlugID,
		Title:       p.Title,
		Content:     p.TextContent,
		SpaceID:     p.SpaceID,
		WorkspaceID: p.WorkspaceID,
	}
}

// Query is a search request.
type Query struct {
	Text    string
	SpaceID string
	Limit   int
	Offset  int
}

// Hit is one matching page.
type Hit struct {
	ID        string
	SlugID    string
	Title     string
	SpaceID   string
	Score     float64
	Fragments []string
}

// Result holds the hits of one search.
type Result struct {
	Hits  []Hit
	Total uint64
	Took  time.Duration
}

// Index is a bleve index of pages.
type Index struct {
	index  bleve.Index
	logger hclog.Logger
}

// Open opens the index at path, creating it when it does not exist. An empty
// path yields an in-memory index.
func Open(path string, logger hclog.Logger) (*Index, error) {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	logger = logger.Named("search")

	if path == "" {
		idx, err := bleve.NewMemOnly(pageMapping())
		if err != nil {
			return nil, fmt.Errorf("failed to create in-memory index: %w", err)
		}
		return &Index{index: idx, logger: logger}, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create index directory: %w", err)
	}
	idx, err := bleve.Open(path)
	if errors.Is(err, bleve.ErrorIndexPathDoesNotExist) {
		logger.Info("creating page index", "path", path)
		idx, err = bleve.New(path, pageMapping())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open index %s: %w", path, err)
	}
	return &Index{index: idx, logger: logger}, nil
}

func pageMapping() mapping.IndexMapping {
	text := bleve.NewTextFieldMapping()
	text.Analyzer = "en"
	text.Store = true

	keyword := bleve.NewKeywordFieldMapping()

	doc := bleve.NewDocumentMapping()
	doc.AddFieldMappingsAt("title", text)
	doc.AddFieldMappingsAt("content", text)
	doc.AddFieldMappingsAt("id", keyword)
	doc.AddFieldMappingsAt("slugId", keyword)
	doc.AddFieldMappingsAt("spaceId", keyword)
	doc.AddFieldMappingsAt("workspaceId", keyword)

	m := bleve.NewIndexMapping()
	m.DefaultMapping = doc
	return m
}

// IndexPages adds or replaces pages in one batch.
func (i *Index) IndexPages(ctx context.Context, pages []models.Page) error {
	if len(pages) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	batch := i.index.NewBatch()
	for _, p := range pages {
		if err := batch.Index(p.ID, DocumentFromPage(p)); err != nil {
			return fmt.Errorf("failed to add page %s to batch: %w", p.ID, err)
		}
	}
	if err := i.index.Batch(batch); err != nil {
		return fmt.Errorf("failed to index pages: %w", err)
	}

	i.logger.Debug("indexed pages", "count", len(pages))
	return nil
}

// Delete removes pages from the index.
func (i *Index) Delete(ctx context.Context, ids []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	batch := i.index.NewBatch()
	for _, id := range ids {
		batch.Delete(id)
	}
	return i.index.Batch(batch)
}

// Search runs a match query over titles and content. A query without text
// matches every page.
func (i *Index) Search(ctx context.Context, q Query) (*Result, error) {
	var match query.Query = bleve.NewMatchAllQuery()
	if q.Text != "" {
		title := bleve.NewMatchQuery(q.Text)
		title.SetField("title")
		title.SetBoost(2)
		content := bleve.NewMatchQuery(q.Text)
		content.SetField("content")
		match = bleve.NewDisjunctionQuery(title, content)
	}
	if q.SpaceID != "" {
		space := bleve.NewTermQuery(q.SpaceID)
		space.SetField("spaceId")
		match = bleve.NewConjunctionQuery(match, space)
	}

	limit := q.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	req := bleve.NewSearchRequestOptions(match, limit, q.Offset, false)
	req.Fields = []string{"title", "slugId", "spaceId"}
	if q.Text != "" {
		req.Highlight = bleve.NewHighlight()
		req.Highlight.AddField("content")
	}

	res, err := i.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	out := &Result{
		Hits:  make([]Hit, 0, len(res.Hits)),
		Total: res.Total,
		Took:  res.Took,
	}
	for _, h := range res.Hits {
		hit := Hit{ID: h.ID, Score: h.Score}
		hit.Title, _ = h.Fields["title"].(string)
		hit.SlugID, _ = h.Fields["slugId"].(string)
		hit.SpaceID, _ = h.Fields["spaceId"].(string)
		hit.Fragments = h.Fragments["content"]
		out.Hits = append(out.Hits, hit)
	}
	return out, nil
}

// Count returns the number of indexed pages.
func (i *Index) Count() (uint64, error) {
	return i.index.DocCount()
}

// Close closes the index.
func (i *Index) Close() error {
	return i.index.Close()
}
