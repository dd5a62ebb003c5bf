package export

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// Extract unpacks the zip at zipPath into destDir. Entries that would land
// outside destDir are rejected. The context is checked between entries.
func Extract(ctx context.Context, fs afero.Fs, zipPath, destDir string) error {
	f, err := fs.Open(zipPath)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat archive: %w", err)
	}

	// ErrInsecurePath still yields a usable reader; entries are checked below.
	zr, err := zip.NewReader(f, info.Size())
	if err != nil && (zr == nil || !errors.Is(err, zip.ErrInsecurePath)) {
		return &MalformedArchiveError{Path: zipPath, Reason: "not a zip archive", Err: err}
	}

	root := filepath.Clean(destDir)
	if err := fs.MkdirAll(root, 0o755); err != nil {
		return fmt.Errorf("failed to create destination directory: %w", err)
	}

	for _, entry := range zr.File {
		if err := ctx.Err(); err != nil {
			return err
		}

		target := filepath.Join(root, filepath.FromSlash(entry.Name))
		if target != root && !strings.HasPrefix(target, root+string(os.PathSeparator)) {
			return &MalformedArchiveError{
				Path:   zipPath,
				Reason: fmt.Sprintf("entry %q escapes the destination directory", entry.Name),
			}
		}

		if entry.FileInfo().IsDir() {
			if err := fs.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("failed to create directory %s: %w", target, err)
			}
			continue
		}

		if err := extractFile(fs, entry, target); err != nil {
			return err
		}
	}

	return nil
}

func extractFile(fs afero.Fs, entry *zip.File, target string) error {
	if err := fs.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", target, err)
	}

	src, err := entry.Open()
	if err != nil {
		return fmt.Errorf("failed to open archive entry %s: %w", entry.Name, err)
	}
	defer src.Close()

	dst, err := fs.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", target, err)
	}

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return fmt.Errorf("failed to extract %s: %w", entry.Name, err)
	}
	if err := dst.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", target, err)
	}
	return nil
}
