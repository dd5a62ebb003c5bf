package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/hashicorp-forge/hermes-import/pkg/database"
	"github.com/hashicorp-forge/hermes-import/pkg/models"
)

func newManager(t *testing.T) *Manager {
	db, err := database.Connect(database.Config{Driver: database.DriverSQLite, Path: ":memory:"}, nil)
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(models.ModelsToAutoMigrate()...))
	return NewManager(db, nil)
}

func TestManager(t *testing.T) {
	ctx := context.Background()

	t.Run("Begin refuses concurrent run of same archive", func(t *testing.T) {
		m := newManager(t)
		req := BeginRequest{ArchivePath: "/tmp/a.zip", Checksum: "abc", Mode: "space"}

		job, err := m.Begin(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, models.ImportJobStatusRunning, job.Status)
		assert.NotNil(t, job.StartedAt)

		_, err = m.Begin(ctx, req)
		assert.ErrorIs(t, err, ErrJobRunning)

		other, err := m.Begin(ctx, BeginRequest{ArchivePath: "/tmp/b.zip", Checksum: "def", Mode: "space"})
		require.NoError(t, err)
		assert.NotEqual(t, job.JobUUID, other.JobUUID)
	})

	t.Run("Complete releases the archive", func(t *testing.T) {
		m := newManager(t)
		req := BeginRequest{ArchivePath: "/tmp/a.zip", Checksum: "abc", Mode: "full", SpaceID: "s1"}

		job, err := m.Begin(ctx, req)
		require.NoError(t, err)
		require.NoError(t, m.Complete(ctx, job, Summary{SpaceID: "s1", PageCount: 3, WarningCount: 1}))

		stored, err := m.Get(ctx, job.JobUUID)
		require.NoError(t, err)
		assert.Equal(t, models.ImportJobStatusCompleted, stored.Status)
		assert.Equal(t, 3, stored.PageCount)
		assert.Equal(t, 1, stored.WarningCount)
		assert.NotNil(t, stored.CompletedAt)

		_, err = m.Begin(ctx, req)
		assert.NoError(t, err)

		assert.Error(t, m.Complete(ctx, job, Summary{}), "finished jobs cannot complete again")
	})

	t.Run("Fail records the cause", func(t *testing.T) {
		m := newManager(t)
		job, err := m.Begin(ctx, BeginRequest{ArchivePath: "/tmp/a.zip", Checksum: "abc", Mode: "space"})
		require.NoError(t, err)

		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		require.NoError(t, m.Fail(cancelled, job, errors.New("no pages found")))

		stored, err := m.Get(ctx, job.JobUUID)
		require.NoError(t, err)
		assert.Equal(t, models.ImportJobStatusFailed, stored.Status)
		require.NotNil(t, stored.ErrorMessage)
		assert.Equal(t, "no pages found", *stored.ErrorMessage)
	})

	t.Run("active checksums are unique in the schema", func(t *testing.T) {
		m := newManager(t)
		row := func(status models.ImportJobStatus) *models.ImportJob {
			return &models.ImportJob{
				JobUUID:         uuid.NewString(),
				ArchivePath:     "/tmp/a.zip",
				ArchiveChecksum: "abc",
				Mode:            "space",
				Status:          status,
			}
		}

		require.NoError(t, m.db.Create(row(models.ImportJobStatusCompleted)).Error)
		require.NoError(t, m.db.Create(row(models.ImportJobStatusFailed)).Error)
		require.NoError(t, m.db.Create(row(models.ImportJobStatusRunning)).Error)
		assert.ErrorIs(t, m.db.Create(row(models.ImportJobStatusPending)).Error, gorm.ErrDuplicatedKey)
	})

	t.Run("stale jobs stop holding the archive", func(t *testing.T) {
		m := newManager(t)
		start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
		m.now = func() time.Time { return start }
		req := BeginRequest{ArchivePath: "/tmp/a.zip", Checksum: "abc", Mode: "space"}

		crashed, err := m.Begin(ctx, req)
		require.NoError(t, err)

		m.now = func() time.Time { return start.Add(time.Hour) }
		_, err = m.Begin(ctx, req)
		assert.ErrorIs(t, err, ErrJobRunning, "a recent job still holds the archive")

		m.now = func() time.Time { return start.Add(DefaultStaleAfter + time.Hour) }
		job, err := m.Begin(ctx, req)
		require.NoError(t, err)
		assert.NotEqual(t, crashed.JobUUID, job.JobUUID)

		stored, err := m.Get(ctx, crashed.JobUUID)
		require.NoError(t, err)
		assert.Equal(t, models.ImportJobStatusFailed, stored.Status)
		require.NotNil(t, stored.ErrorMessage)
		assert.Contains(t, *stored.ErrorMessage, "abandoned")
	})

	t.Run("expiry can be disabled", func(t *testing.T) {
		m := newManager(t)
		m.SetStaleAfter(0)
		start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
		m.now = func() time.Time { return start }
		req := BeginRequest{ArchivePath: "/tmp/a.zip", Checksum: "abc", Mode: "space"}

		_, err := m.Begin(ctx, req)
		require.NoError(t, err)

		m.now = func() time.Time { return start.Add(30 * 24 * time.Hour) }
		_, err = m.Begin(ctx, req)
		assert.ErrorIs(t, err, ErrJobRunning)
	})

	t.Run("Release frees the archive", func(t *testing.T) {
		m := newManager(t)
		req := BeginRequest{ArchivePath: "/tmp/a.zip", Checksum: "abc", Mode: "space"}

		held, err := m.Begin(ctx, req)
		require.NoError(t, err)

		released, err := m.Release(ctx, "abc", "forced by operator")
		require.NoError(t, err)
		assert.Equal(t, int64(1), released)

		_, err = m.Begin(ctx, req)
		require.NoError(t, err)

		stored, err := m.Get(ctx, held.JobUUID)
		require.NoError(t, err)
		assert.Equal(t, models.ImportJobStatusFailed, stored.Status)
		assert.Equal(t, "forced by operator", *stored.ErrorMessage)

		_, err = m.Release(ctx, "", "")
		assert.Error(t, err)
	})

	t.Run("Begin validates request", func(t *testing.T) {
		m := newManager(t)
		_, err := m.Begin(ctx, BeginRequest{ArchivePath: "/tmp/a.zip"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid job request")
	})
}

func TestChecksum(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/a.zip", []byte("hello"), 0o644))

	sum, err := Checksum(fs, "/a.zip")
	require.NoError(t, err)
	assert.Equal(t, "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824", sum)

	_, err = Checksum(fs, "/missing.zip")
	assert.Error(t, err)

	require.NoError(t, afero.WriteFile(fs, "/export/entities.xml", []byte("hello"), 0o644))
	dirSum, err := Checksum(fs, "/export")
	require.NoError(t, err)
	assert.Equal(t, sum, dirSum)
}
