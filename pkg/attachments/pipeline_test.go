package attachments

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pngHeader is enough for content type detection.
var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")

func setupFS(t *testing.T) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/export/attachments/11/300/2", pngHeader, 0o644))
	require.NoError(t, afero.WriteFile(fs, "/export/attachments/12/400/1", []byte("hello notes"), 0o644))
	return fs
}

func baseInput(html string) Input {
	return Input{
		PageID:      "page-1",
		SpaceID:     "space-1",
		WorkspaceID: "ws-1",
		CreatorID:   "user-1",
		HTML:        html,
		PageFiles:   map[string]string{"diagram.png": "/export/attachments/11/300/2"},
		SpaceFiles: map[string]string{
			"diagram.png": "/export/attachments/11/300/2",
			"notes.txt":   "/export/attachments/12/400/1",
		},
	}
}

func TestPipeline_Process(t *testing.T) {
	fs := setupFS(t)
	pipeline := NewPipeline(fs, NewLocalStore(fs, "/uploads", "/files"), hclog.NewNullLogger())

	in := baseInput(`<img src="attachment:/export/attachments/11/300/2" width="20"/>` +
		`<p><a href="attachment:/export/attachments/11/300/2">diagram</a></p>` +
		`<p><a href="attachment-ref:Notes.TXT">notes</a></p>` +
		`<p><a href="attachment-ref:missing.pdf">missing</a></p>` +
		`<img src="attachment-ref:missing.pdf"/>` +
		`<p><a href="https://example.com">external</a></p>`)

	out, err := pipeline.Process(context.Background(), in)
	require.NoError(t, err)

	require.Len(t, out.Attachments, 2, "each file is uploaded once per page")
	diagram := out.Attachments[0]
	assert.Equal(t, "diagram.png", diagram.FileName)
	assert.Equal(t, "png", diagram.FileExt)
	assert.Equal(t, "image/png", diagram.MimeType)
	assert.Equal(t, int64(len(pngHeader)), diagram.FileSize)
	assert.Equal(t, "page-1", diagram.PageID)
	assert.Equal(t, "space-1", diagram.SpaceID)
	assert.Equal(t, "/files/space-1/"+diagram.ID+"/diagram.png", diagram.URL)

	notes := out.Attachments[1]
	assert.Equal(t, "Notes.TXT", notes.FileName)
	assert.Contains(t, notes.MimeType, "text/plain")

	stored, err := afero.ReadFile(fs, "/uploads/"+notes.FilePath)
	require.NoError(t, err)
	assert.Equal(t, "hello notes", string(stored))

	assert.Equal(t,
		`<img src="`+diagram.URL+`" width="20"/>`+
			`<p><a href="`+diagram.URL+`">diagram</a></p>`+
			`<p><a href="`+notes.URL+`">notes</a></p>`+
			`<p>missing</p>`+
			`<p><a href="https://example.com">external</a></p>`,
		out.HTML)

	require.Len(t, out.Warnings, 1, "warnings are reported once per file")
	assert.Equal(t, WarningUnresolved, out.Warnings[0].Kind)
	assert.Equal(t, "missing.pdf", out.Warnings[0].Name)
}

type failingStore struct {
	err error
}

func (s failingStore) Put(context.Context, string, io.Reader, int64, string) (string, error) {
	return "", s.err
}

func TestPipeline_UploadFailure(t *testing.T) {
	fs := setupFS(t)
	pipeline := NewPipeline(fs, failingStore{err: errors.New("bucket unavailable")}, nil)

	out, err := pipeline.Process(context.Background(),
		baseInput(`<p><a href="attachment:/export/attachments/11/300/2">diagram</a></p><img src="attachment:/export/attachments/11/300/2"/>`))
	require.NoError(t, err)

	assert.Equal(t, `<p>diagram</p>`, out.HTML)
	assert.Empty(t, out.Attachments)
	require.Len(t, out.Warnings, 1)
	assert.Equal(t, WarningUploadFailed, out.Warnings[0].Kind)
	assert.Contains(t, out.Warnings[0].Detail, "bucket unavailable")
}

func TestPipeline_MissingFile(t *testing.T) {
	fs := setupFS(t)
	pipeline := NewPipeline(fs, NewLocalStore(fs, "/uploads", "/files"), nil)

	in := baseInput(`<img src="attachment:/export/attachments/99/1/1"/>`)
	in.PageFiles["gone.png"] = "/export/attachments/99/1/1"

	out, err := pipeline.Process(context.Background(), in)
	require.NoError(t, err)

	assert.Empty(t, out.HTML)
	require.Len(t, out.Warnings, 1)
	assert.Equal(t, WarningUploadFailed, out.Warnings[0].Kind)
}

func TestPipeline_OnlyExportFilesAreUploaded(t *testing.T) {
	fs := setupFS(t)
	require.NoError(t, afero.WriteFile(fs, "/etc/secret", []byte("TOPSECRET"), 0o600))
	pipeline := NewPipeline(fs, NewLocalStore(fs, "/uploads", "/files"), nil)

	out, err := pipeline.Process(context.Background(), baseInput(
		`<p><a href="attachment:/etc/secret">secret</a></p><img src="attachment:/etc/secret"/>`))
	require.NoError(t, err)

	assert.Equal(t, `<p>secret</p>`, out.HTML)
	assert.Empty(t, out.Attachments)
	require.Len(t, out.Warnings, 1)
	assert.Equal(t, WarningUnresolved, out.Warnings[0].Kind)

	uploaded, err := afero.Exists(fs, "/uploads")
	require.NoError(t, err)
	assert.False(t, uploaded)
}

func TestPipeline_Cancelled(t *testing.T) {
	fs := setupFS(t)
	pipeline := NewPipeline(fs, NewLocalStore(fs, "/uploads", "/files"), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := pipeline.Process(ctx, baseInput(`<img src="attachment:/export/attachments/11/300/2"/>`))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "my-file-v2-final.png", sanitizeFilename("my file v2:final.png"))
	assert.Equal(t, "a-b.txt", sanitizeFilename("a/b.txt"))
}

func TestS3Config(t *testing.T) {
	t.Run("validate", func(t *testing.T) {
		assert.Error(t, (&S3Config{Bucket: "b"}).Validate())
		assert.Error(t, (&S3Config{Region: "us-east-1"}).Validate())
		assert.Error(t, (&S3Config{Region: "us-east-1", Bucket: "b", AccessKey: "k"}).Validate())
		assert.NoError(t, (&S3Config{Region: "us-east-1", Bucket: "b"}).Validate())
	})

	t.Run("public url defaults", func(t *testing.T) {
		aws := &S3Config{Region: "us-east-1", Bucket: "docs"}
		aws.SetDefaults()
		assert.Equal(t, "https://docs.s3.us-east-1.amazonaws.com", aws.PublicURL)
		assert.Equal(t, 30, aws.RequestTimeoutSeconds)

		minio := &S3Config{Region: "us-east-1", Bucket: "docs", Endpoint: "http://localhost:9000/"}
		minio.SetDefaults()
		assert.Equal(t, "http://localhost:9000/docs", minio.PublicURL)
	})
}
