package models

import "time"

// ImportJobStatus represents the state of an import job.
type ImportJobStatus string

const (
	ImportJobStatusPending   ImportJobStatus = "pending"
	ImportJobStatusRunning   ImportJobStatus = "running"
	ImportJobStatusCompleted ImportJobStatus = "completed"
	ImportJobStatusFailed    ImportJobStatus = "failed"
)

// ImportJob tracks one import run of one archive.
type ImportJob struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	JobUUID         string          `gorm:"type:varchar(36);not null;uniqueIndex" json:"jobUuid"`
	ArchivePath     string          `gorm:"type:text;not null" json:"archivePath"`
	ArchiveChecksum string          `gorm:"type:varchar(64);not null;index;uniqueIndex:idx_import_jobs_active_checksum,where:status = 'pending' OR status = 'running'" json:"archiveChecksum"`
	Mode            string          `gorm:"type:varchar(20);not null" json:"mode"`
	Status          ImportJobStatus `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	WorkspaceID     string          `gorm:"type:varchar(36)" json:"workspaceId"`
	SpaceID         *string         `gorm:"type:varchar(36)" json:"spaceId,omitempty"`
	CreatedBy       string          `gorm:"type:varchar(36)" json:"createdBy"`

	// Progress
	PageCount    int     `json:"pageCount"`
	WarningCount int     `json:"warningCount"`
	ErrorMessage *string `gorm:"type:text" json:"errorMessage,omitempty"`

	StartedAt   *time.Time `json:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// TableName specifies the table name.
func (ImportJob) TableName() string {
	return "import_jobs"
}

// IsTerminal reports whether the job has finished.
func (j *ImportJob) IsTerminal() bool {
	return j.Status == ImportJobStatusCompleted || j.Status == ImportJobStatusFailed
}
