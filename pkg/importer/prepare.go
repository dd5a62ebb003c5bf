package importer

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/hashicorp-forge/hermes-import/pkg/attachments"
	"github.com/hashicorp-forge/hermes-import/pkg/export"
	"github.com/hashicorp-forge/hermes-import/pkg/hierarchy"
	"github.com/hashicorp-forge/hermes-import/pkg/markup"
	"github.com/hashicorp-forge/hermes-import/pkg/models"
	"github.com/hashicorp-forge/hermes-import/pkg/references"
	"github.com/hashicorp-forge/hermes-import/pkg/richdoc"
)

type prepareInput struct {
	req        Request
	spaceID    string
	tree       *hierarchy.Tree
	titles     references.TitleIndex
	pageFiles  map[string]map[string]string
	spaceFiles map[string]string
	spaceKey   string
}

// preparedPage is a page ready to be inserted.
type preparedPage struct {
	node        *hierarchy.Node
	page        *models.Page
	backlinks   []references.Backlink
	attachments []models.Attachment
	warnings    []Warning
}

// prepare builds the final content of every placed page. Pages are
// processed concurrently and returned in level order.
func (i *Importer) prepare(ctx context.Context, in prepareInput) ([]*preparedPage, error) {
	nodes := in.tree.Ordered()
	out := make([]*preparedPage, len(nodes))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(i.concurrency)
	for idx, n := range nodes {
		g.Go(func() error {
			p, err := i.preparePage(gctx, in, n)
			if err != nil {
				return fmt.Errorf("failed to prepare page %q: %w", n.Title, err)
			}
			out[idx] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (i *Importer) preparePage(ctx context.Context, in prepareInput, n *hierarchy.Node) (*preparedPage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p := &preparedPage{node: n}
	warn := func(kind, detail string) {
		p.warnings = append(p.warnings, Warning{
			Kind:      kind,
			PageID:    n.ID,
			ArchiveID: n.ArchiveID,
			Detail:    detail,
		})
	}

	var content string
	switch {
	case n.MissingBody:
		warn(WarningMissingBody, fmt.Sprintf("%q has no body content", n.Title))
	case n.BodyFormat != export.BodyFormatStorage:
		content = markup.FromPlainText(n.Markup)
		warn(WarningNonStorageBody, fmt.Sprintf("%q was imported as plain text", n.Title))
	default:
		out, err := markup.TransformWith(n.Markup, markup.Options{SpaceKey: in.spaceKey})
		if err != nil {
			return nil, fmt.Errorf("failed to transform markup: %w", err)
		}
		content = out.HTML
		for _, d := range out.Degradations {
			warn(d.Kind, d.Detail)
		}
	}

	files := in.pageFiles[n.ArchiveID]
	resolved, err := references.Resolve(n.ID, content, in.titles, files)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve references: %w", err)
	}
	for _, title := range resolved.UnresolvedPages {
		warn(WarningUnresolvedLink, fmt.Sprintf("no imported page is titled %q", title))
	}
	p.backlinks = resolved.Backlinks

	processed, err := i.attachments.Process(ctx, attachments.Input{
		PageID:      n.ID,
		SpaceID:     in.spaceID,
		WorkspaceID: in.req.WorkspaceID,
		CreatorID:   in.req.CreatorID,
		HTML:        resolved.HTML,
		PageFiles:   files,
		SpaceFiles:  in.spaceFiles,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to process attachments: %w", err)
	}
	for _, w := range processed.Warnings {
		warn(w.Kind, fmt.Sprintf("%s: %s", w.Name, w.Detail))
	}
	p.attachments = processed.Attachments

	doc, err := richdoc.Build(processed.HTML)
	if err != nil {
		return nil, fmt.Errorf("failed to build document: %w", err)
	}

	p.page = &models.Page{
		ID:          n.ID,
		SlugID:      n.SlugID,
		Title:       n.Title,
		Content:     processed.HTML,
		TextContent: doc.Text,
		Markdown:    doc.Markdown,
		NativeDoc:   models.JSON(doc.JSON),
		Position:    n.OrderKey,
		SpaceID:     in.spaceID,
		WorkspaceID: in.req.WorkspaceID,
		CreatorID:   in.req.CreatorID,
	}
	if !n.IsRoot() {
		parent := n.ParentID
		p.page.ParentPageID = &parent
	}
	return p, nil
}

// titleIndex maps titles to placed pages. The archive's first page with a
// title wins; titles whose first page was not placed fall back to the first
// placed page in level order.
func titleIndex(exp *export.Export, tree *hierarchy.Tree) references.TitleIndex {
	index := make(references.TitleIndex, tree.Len())
	for title, archiveID := range exp.TitleToID {
		id, ok := tree.IDMap[archiveID]
		if !ok {
			continue
		}
		if n, ok := tree.Nodes[id]; ok {
			index[title] = references.PageTarget{ID: n.ID, SlugID: n.SlugID}
		}
	}
	for _, n := range tree.Ordered() {
		if _, ok := index[n.Title]; !ok {
			index[n.Title] = references.PageTarget{ID: n.ID, SlugID: n.SlugID}
		}
	}
	return index
}
