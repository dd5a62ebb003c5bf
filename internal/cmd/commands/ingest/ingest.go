// Package ingest implements the import subcommand.
package ingest

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"

	"github.com/hashicorp-forge/hermes-import/internal/cmd/base"
	"github.com/hashicorp-forge/hermes-import/internal/config"
	"github.com/hashicorp-forge/hermes-import/internal/migrate"
	"github.com/hashicorp-forge/hermes-import/pkg/attachments"
	"github.com/hashicorp-forge/hermes-import/pkg/database"
	"github.com/hashicorp-forge/hermes-import/pkg/events"
	"github.com/hashicorp-forge/hermes-import/pkg/export"
	"github.com/hashicorp-forge/hermes-import/pkg/hierarchy"
	"github.com/hashicorp-forge/hermes-import/pkg/importer"
	"github.com/hashicorp-forge/hermes-import/pkg/jobs"
	"github.com/hashicorp-forge/hermes-import/pkg/search"
	"github.com/hashicorp-forge/hermes-import/pkg/store"
)

type Command struct {
	*base.Command

	flagConfig       string
	flagArchive      string
	flagMode         string
	flagSpaceID      string
	flagWorkspaceID  string
	flagCreatorID    string
	flagAdmins       []string
	flagOrphanPolicy string
	flagReport       string
	flagMigrate      bool
	flagForce        bool
}

func (c *Command) Synopsis() string {
	return "Import a space export archive"
}

func (c *Command) Help() string {
	return `Usage: hermes-import import -archive=<path> [options]

  Imports a space export into the destination store. The archive may be a
  zip file or an already extracted directory holding entities.xml.

  In "space" mode a new space is created from the archive's space record.
  In "full" mode pages are added to the existing space named by -space-id.` +
		c.Flags().Help()
}

func (c *Command) Flags() *base.FlagSet {
	f := base.NewFlagSet(flag.NewFlagSet("import", flag.ContinueOnError))

	f.StringVar(&c.flagConfig, "config", "",
		"Path to the HCL `file` holding configuration. Defaults apply when unset.")
	f.StringVar(&c.flagArchive, "archive", "",
		"(Required) Zip archive or extracted export `directory`.")
	f.StringVar(&c.flagMode, "mode", string(importer.ModeSpace),
		"Import `mode`: space or full.")
	f.StringVar(&c.flagSpaceID, "space-id", "",
		"Destination space `ID` (full mode only).")
	f.StringVar(&c.flagWorkspaceID, "workspace-id", "",
		"Workspace `ID`. Overrides import.workspace_id.")
	f.StringVar(&c.flagCreatorID, "creator-id", "",
		"User `ID` recorded as the creator. Overrides import.creator_id.")
	f.StringSliceVar(&c.flagAdmins, "admin",
		"User IDs granted admin on a created space. May be repeated.")
	f.StringVar(&c.flagOrphanPolicy, "orphan-policy", "",
		"Orphan `policy`: skip, promote or strict. Overrides import.orphan_policy.")
	f.StringVar(&c.flagReport, "report", "",
		"Write a YAML report of the run to this `file`.")
	f.BoolVar(&c.flagMigrate, "migrate", true,
		"Apply pending schema migrations before importing.")
	f.BoolVar(&c.flagForce, "force", false,
		"Release unfinished jobs of the same archive before starting. Use after a crashed run.")

	return f
}

func (c *Command) Run(args []string) int {
	logger, ui := c.Log, c.UI

	flags := c.Flags()
	if err := flags.Parse(args); err != nil {
		ui.Error(fmt.Sprintf("error parsing flags: %v", err))
		return 1
	}

	if c.flagArchive == "" {
		ui.Error("archive flag is required")
		return 1
	}
	mode, err := importer.ParseMode(c.flagMode)
	if err != nil {
		ui.Error(err.Error())
		return 1
	}

	cfg, err := config.NewConfig(c.flagConfig)
	if err != nil {
		ui.Error(fmt.Sprintf("error parsing config file: %v", err))
		return 1
	}
	c.applyOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		ui.Error(fmt.Sprintf("invalid configuration: %v", err))
		return 1
	}
	logger.SetLevel(hclog.LevelFromString(cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	r := &runner{
		cfg:    cfg,
		fs:     afero.NewOsFs(),
		logger: logger,
	}
	report, err := r.run(ctx, runOptions{
		archive: c.flagArchive,
		mode:    mode,
		spaceID: c.flagSpaceID,
		migrate: c.flagMigrate,
		force:   c.flagForce,
	})
	if report != nil && c.flagReport != "" {
		if werr := writeReport(r.fs, c.flagReport, report); werr != nil {
			ui.Error(fmt.Sprintf("error writing report: %v", werr))
		}
	}
	if err != nil {
		if errors.Is(err, jobs.ErrJobRunning) {
			ui.Error(fmt.Sprintf("import refused: %v", err))
			return 1
		}
		ui.Error(fmt.Sprintf("import failed: %v", err))
		return 1
	}

	res := report.Result
	ui.Info(fmt.Sprintf("Imported %d pages into space %s (%s)", res.PageCount, res.SpaceID, res.SpaceSlug))
	ui.Info(fmt.Sprintf("Attachments: %d, backlinks: %d, dropped records: %d",
		res.AttachmentCount, res.BacklinkCount, res.DroppedRecords))
	if n := len(res.Warnings); n > 0 {
		ui.Warn(fmt.Sprintf("%d warnings", n))
		for _, w := range res.Warnings {
			ui.Warn(fmt.Sprintf("  %s: %s", w.Kind, w.Detail))
		}
	}
	return 0
}

func (c *Command) applyOverrides(cfg *config.Config) {
	if c.flagWorkspaceID != "" {
		cfg.Import.WorkspaceID = c.flagWorkspaceID
	}
	if c.flagCreatorID != "" {
		cfg.Import.CreatorID = c.flagCreatorID
	}
	if len(c.flagAdmins) > 0 {
		cfg.Import.AdminUserIDs = c.flagAdmins
	}
	if c.flagOrphanPolicy != "" {
		cfg.Import.OrphanPolicy = c.flagOrphanPolicy
	}
}

// Report is written by -report.
type Report struct {
	JobID      string           `yaml:"job_id,omitempty"`
	Archive    string           `yaml:"archive"`
	Checksum   string           `yaml:"checksum,omitempty"`
	Mode       string           `yaml:"mode"`
	StartedAt  time.Time        `yaml:"started_at"`
	FinishedAt time.Time        `yaml:"finished_at"`
	Status     string           `yaml:"status"`
	Error      string           `yaml:"error,omitempty"`
	Result     *importer.Result `yaml:"result,omitempty"`
}

func writeReport(fs afero.Fs, path string, report *Report) error {
	out, err := yaml.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create report directory: %w", err)
		}
	}
	return afero.WriteFile(fs, path, out, 0o644)
}

type runOptions struct {
	archive string
	mode    importer.Mode
	spaceID string
	migrate bool
	force   bool
}

// runner wires the importer's collaborators from configuration.
type runner struct {
	cfg    *config.Config
	fs     afero.Fs
	logger hclog.Logger

	// bus overrides the configured event bus.
	bus events.Bus
}

func (r *runner) run(ctx context.Context, opts runOptions) (*Report, error) {
	report := &Report{
		Archive:   opts.archive,
		Mode:      string(opts.mode),
		StartedAt: time.Now().UTC(),
		Status:    "failed",
	}
	finish := func(err error) (*Report, error) {
		report.FinishedAt = time.Now().UTC()
		if err != nil {
			report.Error = err.Error()
		} else {
			report.Status = "completed"
		}
		return report, err
	}

	db, err := database.Connect(r.cfg.DatabaseConfig(), r.logger)
	if err != nil {
		return finish(fmt.Errorf("error initializing database: %w", err))
	}
	defer closeDB(db, r.logger)

	if opts.migrate {
		sqlDB, err := db.DB()
		if err != nil {
			return finish(fmt.Errorf("error getting database handle: %w", err))
		}
		if err := migrate.RunMigrations(sqlDB, r.cfg.Database.Driver); err != nil {
			return finish(fmt.Errorf("error running migrations: %w", err))
		}
	}

	checksum, err := jobs.Checksum(r.fs, opts.archive)
	if err != nil {
		return finish(err)
	}
	report.Checksum = checksum

	imp := r.cfg.Import
	manager := jobs.NewManager(db, r.logger)
	manager.SetStaleAfter(imp.StaleJobDuration())
	if opts.force {
		if _, err := manager.Release(ctx, checksum, "released by a forced run"); err != nil {
			return finish(err)
		}
	}
	job, err := manager.Begin(ctx, jobs.BeginRequest{
		ArchivePath: opts.archive,
		Checksum:    checksum,
		Mode:        string(opts.mode),
		WorkspaceID: imp.WorkspaceID,
		SpaceID:     opts.spaceID,
		CreatedBy:   imp.CreatorID,
	})
	if err != nil {
		return finish(err)
	}
	report.JobID = job.JobUUID

	result, err := r.importArchive(ctx, db, opts)
	if err != nil {
		if ferr := manager.Fail(ctx, job, err); ferr != nil {
			r.logger.Error("error recording failed job", "job", job.JobUUID, "error", ferr)
		}
		return finish(err)
	}
	report.Result = result

	if err := manager.Complete(ctx, job, jobs.Summary{
		SpaceID:      result.SpaceID,
		PageCount:    result.PageCount,
		WarningCount: len(result.Warnings),
	}); err != nil {
		r.logger.Error("error recording completed job", "job", job.JobUUID, "error", err)
	}
	return finish(nil)
}

func (r *runner) importArchive(ctx context.Context, db *gorm.DB, opts runOptions) (*importer.Result, error) {
	dir, cleanup, err := r.archiveDir(ctx, opts.archive)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	objects, err := r.objectStore()
	if err != nil {
		return nil, err
	}

	bus := r.bus
	if bus == nil {
		bus, err = r.eventBus()
		if err != nil {
			return nil, err
		}
		defer bus.Close()
	}

	if path := r.cfg.Search.IndexPath; path != "" {
		index, err := search.Open(path, r.logger)
		if err != nil {
			return nil, err
		}
		defer func() {
			if err := index.Close(); err != nil {
				r.logger.Warn("error closing page index", "error", err)
			}
		}()
		bus = events.NewFanout(bus, search.NewSubscriber(db, index, r.logger))
	}

	imp := r.cfg.Import
	policy, err := hierarchy.ParseOrphanPolicy(imp.OrphanPolicy)
	if err != nil {
		return nil, err
	}

	im, err := importer.New(importer.Config{
		FS:           r.fs,
		Store:        store.New(db, r.logger),
		Attachments:  attachments.NewPipeline(r.fs, objects, r.logger),
		Bus:          bus,
		OrphanPolicy: policy,
		Concurrency:  imp.TransformConcurrency,
		BatchSize:    imp.BatchSize,
		Logger:       r.logger,
	})
	if err != nil {
		return nil, err
	}

	return im.Run(ctx, importer.Request{
		ArchiveDir:   dir,
		Mode:         opts.mode,
		SpaceID:      opts.spaceID,
		WorkspaceID:  imp.WorkspaceID,
		CreatorID:    imp.CreatorID,
		AdminUserIDs: imp.AdminUserIDs,
	})
}

// archiveDir returns the extracted archive root. Zip archives are extracted
// into a temporary directory that cleanup removes.
func (r *runner) archiveDir(ctx context.Context, archive string) (string, func(), error) {
	info, err := r.fs.Stat(archive)
	if err != nil {
		return "", nil, fmt.Errorf("error reading archive: %w", err)
	}
	if info.IsDir() {
		return archive, func() {}, nil
	}

	workDir := r.cfg.Import.WorkDir
	if workDir == "" {
		workDir = os.TempDir()
	}
	if err := r.fs.MkdirAll(workDir, 0o755); err != nil {
		return "", nil, fmt.Errorf("error creating work directory: %w", err)
	}
	dir, err := afero.TempDir(r.fs, workDir, "hermes-import-")
	if err != nil {
		return "", nil, fmt.Errorf("error creating extraction directory: %w", err)
	}
	cleanup := func() {
		if err := r.fs.RemoveAll(dir); err != nil {
			r.logger.Warn("error removing extracted archive", "dir", dir, "error", err)
		}
	}

	r.logger.Info("extracting archive", "archive", archive, "dir", dir)
	if err := export.Extract(ctx, r.fs, archive, dir); err != nil {
		cleanup()
		return "", nil, err
	}
	return dir, cleanup, nil
}

func (r *runner) objectStore() (attachments.Store, error) {
	s := r.cfg.Storage
	switch s.Backend {
	case config.StorageS3:
		return attachments.NewS3Store(s.S3, r.logger)
	default:
		return attachments.NewLocalStore(r.fs, s.Local.Root, s.Local.BaseURL), nil
	}
}

func (r *runner) eventBus() (events.Bus, error) {
	k := r.cfg.Kafka
	if len(k.Brokers) == 0 {
		return events.NewLogBus(r.logger), nil
	}
	return events.NewKafkaPublisher(events.KafkaConfig{
		Brokers:    k.Brokers,
		Topic:      k.Topic,
		MaxRetries: uint64(k.MaxRetries),
	}, r.logger)
}

func closeDB(db *gorm.DB, logger hclog.Logger) {
	sqlDB, err := db.DB()
	if err != nil {
		return
	}
	if err := sqlDB.Close(); err != nil {
		logger.Warn("error closing database", "error", err)
	}
}
