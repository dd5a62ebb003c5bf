// Package importer turns an extracted space export into committed pages.
//
// A run parses the manifest, rebuilds the page tree under new identifiers,
// allocates sibling positions, converts every page's markup and resolves its
// references, then commits all pages and backlinks in one transaction.
// Degradations along the way are collected as warnings on the Result.
package importer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/afero"

	"github.com/hashicorp-forge/hermes-import/pkg/attachments"
	"github.com/hashicorp-forge/hermes-import/pkg/docid"
	"github.com/hashicorp-forge/hermes-import/pkg/events"
	"github.com/hashicorp-forge/hermes-import/pkg/export"
	"github.com/hashicorp-forge/hermes-import/pkg/hierarchy"
	"github.com/hashicorp-forge/hermes-import/pkg/models"
	"github.com/hashicorp-forge/hermes-import/pkg/ordering"
	"github.com/hashicorp-forge/hermes-import/pkg/spaces"
	"github.com/hashicorp-forge/hermes-import/pkg/store"
)

// DefaultConcurrency is the number of pages prepared in parallel.
const DefaultConcurrency = 4

// Config holds the importer's collaborators and settings.
type Config struct {
	FS          afero.Fs
	Store       *store.Store
	Spaces      *spaces.Service
	Attachments *attachments.Pipeline
	Bus         events.Bus

	OrphanPolicy hierarchy.OrphanPolicy

	// Concurrency bounds page preparation (default: 4).
	Concurrency int

	// BatchSize bounds rows per insert statement (default: 100).
	BatchSize int

	// Generator supplies page IDs. Defaults to random IDs.
	Generator docid.Generator

	Logger hclog.Logger
}

// Importer runs imports.
type Importer struct {
	fs          afero.Fs
	store       *store.Store
	spaces      *spaces.Service
	attachments *attachments.Pipeline
	bus         events.Bus

	orphanPolicy hierarchy.OrphanPolicy
	concurrency  int
	batchSize    int
	generator    docid.Generator

	logger hclog.Logger
}

// New creates a new Importer.
func New(cfg Config) (*Importer, error) {
	if cfg.FS == nil {
		return nil, fmt.Errorf("filesystem is required")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if cfg.Attachments == nil {
		return nil, fmt.Errorf("attachment pipeline is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = hclog.NewNullLogger()
	}
	if cfg.Spaces == nil {
		cfg.Spaces = spaces.NewService(cfg.Store.DB(), cfg.Logger)
	}
	if cfg.Bus == nil {
		cfg.Bus = events.NewLogBus(cfg.Logger)
	}
	if cfg.OrphanPolicy == "" {
		cfg.OrphanPolicy = hierarchy.OrphanSkip
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = store.DefaultBatchSize
	}
	if cfg.Generator == nil {
		cfg.Generator = docid.NewRandomGenerator()
	}

	return &Importer{
		fs:           cfg.FS,
		store:        cfg.Store,
		spaces:       cfg.Spaces,
		attachments:  cfg.Attachments,
		bus:          cfg.Bus,
		orphanPolicy: cfg.OrphanPolicy,
		concurrency:  cfg.Concurrency,
		batchSize:    cfg.BatchSize,
		generator:    cfg.Generator,
		logger:       cfg.Logger.Named("importer"),
	}, nil
}

// Run imports the archive described by req.
//
// Structural problems with the archive fail the run before anything is
// written. Once pages are committed the run succeeds; a failure to publish
// the pages.created event is reported as a warning.
func (i *Importer) Run(ctx context.Context, req Request) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("invalid import request: %w", err)
	}

	log := i.logger.With("archive", req.ArchiveDir, "mode", req.Mode)
	log.Info("starting import")

	exp, err := export.NewParser(i.logger).Parse(ctx, i.fs, req.ArchiveDir)
	if err != nil {
		return nil, fmt.Errorf("failed to parse archive: %w", err)
	}
	if len(exp.Pages) == 0 {
		return nil, fmt.Errorf("%w: archive holds no current pages", ErrNoPagesFound)
	}
	if req.Mode == ModeSpace && exp.Space == nil {
		return nil, fmt.Errorf("%w: archive has no space record", ErrNoSpaceInfoFound)
	}

	result := &Result{DroppedRecords: exp.Dropped}

	opts := hierarchy.Options{
		SpaceImport:  req.Mode == ModeSpace,
		OrphanPolicy: i.orphanPolicy,
		Generator:    i.generator,
	}
	if exp.Space != nil {
		opts.HomePageID = exp.Space.HomePageID
	}
	tree, err := hierarchy.Build(exp.Pages, opts)
	if err != nil {
		var orphaned *hierarchy.OrphanedPagesError
		if errors.As(err, &orphaned) {
			return nil, fmt.Errorf("%w: %w", ErrOrphanedPages, err)
		}
		return nil, fmt.Errorf("failed to build page tree: %w", err)
	}
	for _, a := range tree.Anomalies {
		kind := WarningOrphanedPage
		if a.Promoted {
			kind = WarningPromotedPage
		}
		result.warn(Warning{Kind: kind, ArchiveID: a.ArchiveID, Detail: fmt.Sprintf("%q: %s", a.Title, a.Detail)})
	}
	if tree.Len() == 0 {
		return nil, fmt.Errorf("%w: no page could be placed in the tree", ErrNoPagesFound)
	}

	index, err := export.BuildCandidateIndex(i.fs, req.ArchiveDir)
	if err != nil {
		return nil, fmt.Errorf("failed to index attachments: %w", err)
	}
	pageFiles := export.AttachmentPaths(exp, index)
	spaceFiles := export.SpaceFiles(pageFiles)

	space, created, err := i.destination(ctx, req, exp.Space)
	if err != nil {
		return nil, err
	}
	result.SpaceID = space.ID
	result.SpaceName = space.Name
	result.SpaceSlug = space.Slug

	// From here on a failure must undo the space this run created.
	fail := func(err error) (*Result, error) {
		if created {
			return nil, i.compensate(ctx, space.ID, err)
		}
		return nil, err
	}

	anchor, err := i.store.NextRootPosition(ctx, space.ID)
	if err != nil {
		return fail(fmt.Errorf("failed to find next root position: %w", err))
	}
	if err := ordering.Allocate(tree, anchor); err != nil {
		return fail(fmt.Errorf("failed to allocate page positions: %w", err))
	}

	prepared, err := i.prepare(ctx, prepareInput{
		req:        req,
		spaceID:    space.ID,
		tree:       tree,
		titles:     titleIndex(exp, tree),
		pageFiles:  pageFiles,
		spaceFiles: spaceFiles,
		spaceKey:   archiveSpaceKey(exp),
	})
	if err != nil {
		return fail(err)
	}

	committed, err := i.commit(ctx, prepared)
	if err != nil {
		return fail(fmt.Errorf("%w: %w", ErrTransaction, err))
	}

	result.PageCount = len(committed.pageIDs)
	result.CommittedPageIDs = committed.pageIDs
	result.AttachmentCount = committed.attachments
	result.BacklinkCount = committed.backlinks
	for _, p := range prepared {
		result.Warnings = append(result.Warnings, p.warnings...)
	}

	event := events.NewPagesCreated(space.ID, req.WorkspaceID, committed.pageIDs)
	if err := i.bus.Publish(ctx, event); err != nil {
		log.Warn("failed to publish pages.created event", "event_id", event.ID, "error", err)
		result.warn(Warning{Kind: WarningPublishFailed, Detail: err.Error()})
	}

	log.Info("import complete",
		"space_id", space.ID,
		"pages", result.PageCount,
		"backlinks", result.BacklinkCount,
		"attachments", result.AttachmentCount,
		"warnings", len(result.Warnings),
	)
	return result, nil
}

// destination returns the space pages are imported into, creating it in
// space mode. created reports whether this run created the space.
func (i *Importer) destination(ctx context.Context, req Request, info *export.SpaceInfo) (*models.Space, bool, error) {
	if req.Mode == ModeFull {
		space, err := i.spaces.Get(ctx, req.SpaceID)
		if err != nil {
			return nil, false, fmt.Errorf("failed to load destination space: %w", err)
		}
		return space, false, nil
	}

	// Some exports carry only the space key.
	name := strings.TrimSpace(info.Name)
	if name == "" {
		name = strings.TrimSpace(info.Key)
	}

	space, err := i.spaces.Create(ctx, spaces.CreateRequest{
		Name:        name,
		Key:         info.Key,
		Description: info.Description,
		WorkspaceID: req.WorkspaceID,
		CreatorID:   req.CreatorID,
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to create space: %w", err)
	}

	admins := req.AdminUserIDs
	if req.CreatorID != "" {
		admins = append([]string{req.CreatorID}, admins...)
	}
	if err := i.spaces.GrantAdmins(ctx, space.ID, req.CreatorID, admins); err != nil {
		return nil, false, i.compensate(ctx, space.ID, err)
	}
	return space, true, nil
}

// compensate soft-deletes a space created by a failed run and folds the
// outcome into the returned error.
func (i *Importer) compensate(ctx context.Context, spaceID string, cause error) error {
	if err := i.spaces.SoftDelete(context.WithoutCancel(ctx), spaceID); err != nil {
		i.logger.Error("failed to remove space after failed import", "space_id", spaceID, "error", err)
		return fmt.Errorf("%w (space %s was left behind: %v)", cause, spaceID, err)
	}
	i.logger.Info("removed space after failed import", "space_id", spaceID)
	return fmt.Errorf("%w (space %s was removed)", cause, spaceID)
}

// archiveSpaceKey is the key of the exported space, or "" when the manifest
// has no Space object.
func archiveSpaceKey(exp *export.Export) string {
	if exp.Space == nil {
		return ""
	}
	return strings.TrimSpace(exp.Space.Key)
}
