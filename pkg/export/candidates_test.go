package export

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildCandidateIndex(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "/export/attachments/11/300/1", "old")
	writeFile(t, fs, "/export/attachments/11/300/2", "new")
	writeFile(t, fs, "/export/attachments/11/301/1", "notes")

	index, err := BuildCandidateIndex(fs, "/export")
	require.NoError(t, err)
	assert.Len(t, index, 3)
	assert.Equal(t, "/export/attachments/11/300/2", index["attachments/11/300/2"])

	t.Run("exact version", func(t *testing.T) {
		p, ok := index.Lookup("11", "300", 1)
		require.True(t, ok)
		assert.Equal(t, "/export/attachments/11/300/1", p)
	})

	t.Run("falls back to highest version", func(t *testing.T) {
		p, ok := index.Lookup("11", "300", 7)
		require.True(t, ok)
		assert.Equal(t, "/export/attachments/11/300/2", p)
	})

	t.Run("unknown attachment", func(t *testing.T) {
		_, ok := index.Lookup("11", "999", 1)
		assert.False(t, ok)
	})
}

func TestBuildCandidateIndex_NoAttachments(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "/export/entities.xml", testManifest)

	index, err := BuildCandidateIndex(fs, "/export")
	require.NoError(t, err)
	assert.Empty(t, index)
}

func TestAttachmentPaths(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "/export/entities.xml", testManifest)
	writeFile(t, fs, "/export/attachments/11/300/2", "png")
	writeFile(t, fs, "/export/attachments/11/301/1", "notes")

	exp, err := Parse(context.Background(), fs, "/export")
	require.NoError(t, err)
	index, err := BuildCandidateIndex(fs, "/export")
	require.NoError(t, err)

	paths := AttachmentPaths(exp, index)
	assert.Equal(t, map[string]string{
		"diagram.png": "/export/attachments/11/300/2",
		"notes.txt":   "/export/attachments/11/301/1",
	}, paths["11"])
	assert.Empty(t, paths["10"])

	files := SpaceFiles(paths)
	assert.Equal(t, "/export/attachments/11/300/2", files["diagram.png"])
}

func buildZip(t *testing.T, entries map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range entries {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestExtract(t *testing.T) {
	t.Run("unpacks entries", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		writeFile(t, fs, "/in/export.zip", string(buildZip(t, map[string]string{
			"entities.xml":         testManifest,
			"attachments/11/300/2": "png",
			"attachments/11/301/1": "notes",
		})))

		require.NoError(t, Extract(context.Background(), fs, "/in/export.zip", "/work"))

		data, err := afero.ReadFile(fs, "/work/attachments/11/300/2")
		require.NoError(t, err)
		assert.Equal(t, "png", string(data))

		_, err = Parse(context.Background(), fs, "/work")
		require.NoError(t, err)
	})

	t.Run("rejects entries escaping the destination", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		writeFile(t, fs, "/in/evil.zip", string(buildZip(t, map[string]string{
			"../../etc/passwd": "root",
		})))

		err := Extract(context.Background(), fs, "/in/evil.zip", "/work")
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrMalformedArchive))
		exists, _ := afero.Exists(fs, "/etc/passwd")
		assert.False(t, exists)
	})

	t.Run("rejects non-zip input", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		writeFile(t, fs, "/in/export.zip", "not a zip")

		err := Extract(context.Background(), fs, "/in/export.zip", "/work")
		assert.True(t, errors.Is(err, ErrMalformedArchive))
	})

	t.Run("honors cancellation", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		writeFile(t, fs, "/in/export.zip", string(buildZip(t, map[string]string{"entities.xml": testManifest})))

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := Extract(ctx, fs, "/in/export.zip", "/work")
		assert.ErrorIs(t, err, context.Canceled)
	})
}
