package attachments

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// LocalStore writes attachments below a directory of an afero filesystem.
type LocalStore struct {
	fs      afero.Fs
	root    string
	baseURL string
}

// NewLocalStore creates a store rooted at root whose files are served under
// baseURL (for example "/files").
func NewLocalStore(fs afero.Fs, root, baseURL string) *LocalStore {
	return &LocalStore{
		fs:      fs,
		root:    root,
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}
}

// Put implements Store.
func (s *LocalStore) Put(ctx context.Context, key string, r io.Reader, _ int64, _ string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	target := filepath.Join(s.root, filepath.FromSlash(key))
	if err := s.fs.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", fmt.Errorf("failed to create directory for %s: %w", key, err)
	}

	f, err := s.fs.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", target, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return "", fmt.Errorf("failed to write %s: %w", target, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to close %s: %w", target, err)
	}

	return s.baseURL + "/" + path.Clean(key), nil
}
