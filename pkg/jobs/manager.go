// Package jobs tracks import runs and keeps two runs of the same archive
// from executing at the same time.
package jobs

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/hashicorp/go-hclog"
	"github.com/spf13/afero"
	"gorm.io/gorm"

	"github.com/hashicorp-forge/hermes-import/pkg/docid"
	"github.com/hashicorp-forge/hermes-import/pkg/export"
	"github.com/hashicorp-forge/hermes-import/pkg/models"
)

// ErrJobRunning is returned by Begin when another run of the same archive
// has not finished.
var ErrJobRunning = errors.New("an import of this archive is already running")

// BeginRequest describes an import run that is about to start.
type BeginRequest struct {
	ArchivePath string
	Checksum    string
	Mode        string
	WorkspaceID string
	SpaceID     string
	CreatedBy   string
}

// DefaultStaleAfter is how long a job may stay pending or running before a
// new run of the same archive treats it as abandoned.
const DefaultStaleAfter = 12 * time.Hour

// activeStatuses are the statuses that hold an archive.
var activeStatuses = []models.ImportJobStatus{
	models.ImportJobStatusPending,
	models.ImportJobStatusRunning,
}

// Summary is recorded when a run completes.
type Summary struct {
	SpaceID      string
	PageCount    int
	WarningCount int
}

// Manager records import jobs.
type Manager struct {
	db         *gorm.DB
	logger     hclog.Logger
	now        func() time.Time
	staleAfter time.Duration
}

// NewManager creates a new job manager.
func NewManager(db *gorm.DB, logger hclog.Logger) *Manager {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Manager{
		db:         db,
		logger:     logger.Named("import-jobs"),
		now:        time.Now,
		staleAfter: DefaultStaleAfter,
	}
}

// SetStaleAfter changes how long an unfinished job holds its archive. Zero
// or less disables expiry.
func (m *Manager) SetStaleAfter(d time.Duration) {
	m.staleAfter = d
}

// Begin records a running job. It fails with ErrJobRunning when a job for
// the same archive checksum is still pending or running. Unfinished jobs
// older than the stale threshold are failed first so a crashed run does not
// hold the archive forever. A unique index on active checksums settles races
// between concurrent callers.
func (m *Manager) Begin(ctx context.Context, req BeginRequest) (*models.ImportJob, error) {
	if err := validation.ValidateStruct(&req,
		validation.Field(&req.ArchivePath, validation.Required),
		validation.Field(&req.Checksum, validation.Required),
		validation.Field(&req.Mode, validation.Required),
	); err != nil {
		return nil, fmt.Errorf("invalid job request: %w", err)
	}

	started := m.now()
	job := &models.ImportJob{
		JobUUID:         docid.NewUUID().String(),
		ArchivePath:     req.ArchivePath,
		ArchiveChecksum: req.Checksum,
		Mode:            req.Mode,
		Status:          models.ImportJobStatusRunning,
		WorkspaceID:     req.WorkspaceID,
		CreatedBy:       req.CreatedBy,
		StartedAt:       &started,
	}
	if req.SpaceID != "" {
		job.SpaceID = &req.SpaceID
	}

	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if m.staleAfter > 0 {
			cutoff := started.Add(-m.staleAfter)
			msg := fmt.Sprintf("abandoned: still unfinished after %s", m.staleAfter)
			if _, err := m.abandon(tx.Where("started_at < ?", cutoff), req.Checksum, msg, started); err != nil {
				return err
			}
		}

		var running int64
		err := tx.Model(&models.ImportJob{}).
			Where("archive_checksum = ? AND status IN ?", req.Checksum, activeStatuses).
			Count(&running).
			Error
		if err != nil {
			return fmt.Errorf("failed to check running jobs: %w", err)
		}
		if running > 0 {
			return ErrJobRunning
		}

		if err := tx.Create(job).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrJobRunning
			}
			return fmt.Errorf("failed to create job: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	m.logger.Info("import job started",
		"job_uuid", job.JobUUID,
		"archive", job.ArchivePath,
		"mode", job.Mode,
	)
	return job, nil
}

// Release fails every pending or running job of an archive so a new run can
// begin. It returns the number of jobs released.
func (m *Manager) Release(ctx context.Context, checksum, reason string) (int64, error) {
	if checksum == "" {
		return 0, fmt.Errorf("checksum is required")
	}
	if reason == "" {
		reason = "released"
	}
	return m.abandon(m.db.WithContext(ctx), checksum, reason, m.now())
}

// abandon fails the active jobs of checksum matched by tx's conditions.
func (m *Manager) abandon(tx *gorm.DB, checksum, reason string, now time.Time) (int64, error) {
	result := tx.Model(&models.ImportJob{}).
		Where("archive_checksum = ? AND status IN ?", checksum, activeStatuses).
		Updates(map[string]interface{}{
			"status":        models.ImportJobStatusFailed,
			"error_message": reason,
			"completed_at":  now,
		})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to release jobs for %s: %w", checksum, result.Error)
	}
	if result.RowsAffected > 0 {
		m.logger.Warn("released unfinished import jobs",
			"checksum", checksum,
			"count", result.RowsAffected,
			"reason", reason,
		)
	}
	return result.RowsAffected, nil
}

// Complete marks a job completed.
func (m *Manager) Complete(ctx context.Context, job *models.ImportJob, summary Summary) error {
	now := m.now()
	updates := map[string]interface{}{
		"status":        models.ImportJobStatusCompleted,
		"page_count":    summary.PageCount,
		"warning_count": summary.WarningCount,
		"completed_at":  now,
	}
	if summary.SpaceID != "" {
		updates["space_id"] = summary.SpaceID
	}

	if err := m.finish(ctx, job, updates); err != nil {
		return err
	}

	job.Status = models.ImportJobStatusCompleted
	job.PageCount = summary.PageCount
	job.WarningCount = summary.WarningCount
	job.CompletedAt = &now
	if summary.SpaceID != "" {
		job.SpaceID = &summary.SpaceID
	}

	m.logger.Info("import job completed",
		"job_uuid", job.JobUUID,
		"pages", summary.PageCount,
		"warnings", summary.WarningCount,
	)
	return nil
}

// Fail marks a job failed and records the cause.
func (m *Manager) Fail(ctx context.Context, job *models.ImportJob, cause error) error {
	now := m.now()
	msg := "unknown error"
	if cause != nil {
		msg = cause.Error()
	}

	updates := map[string]interface{}{
		"status":        models.ImportJobStatusFailed,
		"error_message": msg,
		"completed_at":  now,
	}
	if err := m.finish(ctx, job, updates); err != nil {
		return err
	}

	job.Status = models.ImportJobStatusFailed
	job.ErrorMessage = &msg
	job.CompletedAt = &now

	m.logger.Warn("import job failed", "job_uuid", job.JobUUID, "error", msg)
	return nil
}

func (m *Manager) finish(ctx context.Context, job *models.ImportJob, updates map[string]interface{}) error {
	if job.IsTerminal() {
		return fmt.Errorf("job %s already finished with status %s", job.JobUUID, job.Status)
	}

	// The transition is recorded even when the caller's context was
	// cancelled, so a job never stays running.
	result := m.db.WithContext(context.WithoutCancel(ctx)).
		Model(&models.ImportJob{}).
		Where("id = ? AND status = ?", job.ID, models.ImportJobStatusRunning).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to update job %s: %w", job.JobUUID, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("job %s is not running", job.JobUUID)
	}
	return nil
}

// Get returns a job by UUID.
func (m *Manager) Get(ctx context.Context, jobUUID string) (*models.ImportJob, error) {
	var job models.ImportJob
	if err := m.db.WithContext(ctx).Where("job_uuid = ?", jobUUID).First(&job).Error; err != nil {
		return nil, fmt.Errorf("failed to get job %s: %w", jobUUID, err)
	}
	return &job, nil
}

// Checksum returns the hex SHA-256 digest of an archive. For an extracted
// archive directory the manifest is digested.
func Checksum(fs afero.Fs, path string) (string, error) {
	if info, err := fs.Stat(path); err == nil && info.IsDir() {
		path = filepath.Join(path, export.ManifestName)
	}

	f, err := fs.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
