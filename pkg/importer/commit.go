package importer

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/hashicorp-forge/hermes-import/pkg/models"
)

type commitResult struct {
	pageIDs     []string
	backlinks   int
	attachments int
}

// commit inserts prepared pages in level order, then the backlinks whose
// endpoints were both committed, then attachment rows. Everything runs in
// one transaction that is not interrupted by cancellation of ctx.
func (i *Importer) commit(ctx context.Context, prepared []*preparedPage) (*commitResult, error) {
	out := &commitResult{}
	db := i.store.DB().WithContext(context.WithoutCancel(ctx))

	err := db.Transaction(func(tx *gorm.DB) error {
		out.pageIDs = out.pageIDs[:0]
		committed := make(map[string]bool, len(prepared))

		level := -1
		for _, p := range prepared {
			if p.node.Level < level {
				return fmt.Errorf("page %s at level %d follows level %d", p.page.ID, p.node.Level, level)
			}
			level = p.node.Level

			if err := i.store.InsertPage(tx, p.page); err != nil {
				return err
			}
			committed[p.page.ID] = true
			out.pageIDs = append(out.pageIDs, p.page.ID)
		}

		var edges []models.Backlink
		var files []models.Attachment
		for _, p := range prepared {
			for _, b := range p.backlinks {
				if !committed[b.SourcePageID] || !committed[b.TargetPageID] {
					continue
				}
				edges = append(edges, models.Backlink{
					SourcePageID: b.SourcePageID,
					TargetPageID: b.TargetPageID,
					WorkspaceID:  p.page.WorkspaceID,
				})
			}
			for _, a := range p.attachments {
				if committed[a.PageID] {
					files = append(files, a)
				}
			}
		}

		if err := i.store.InsertBacklinks(tx, edges, i.batchSize); err != nil {
			return err
		}
		if err := i.store.InsertAttachments(tx, files, i.batchSize); err != nil {
			return err
		}

		out.backlinks = len(edges)
		out.attachments = len(files)
		return nil
	})
	if err != nil {
		return nil, err
	}

	i.logger.Debug("committed import",
		"pages", len(out.pageIDs),
		"backlinks", out.backlinks,
		"attachments", out.attachments,
	)
	return out, nil
}
