package export

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/afero"
)

// AttachmentsDir is the directory holding attachment files inside an archive.
const AttachmentsDir = "attachments"

// CandidateIndex maps slash-separated archive-relative paths
// ("attachments/<container>/<attachment>/<version>") to their path on the
// extracted filesystem.
type CandidateIndex map[string]string

// BuildCandidateIndex walks dir/attachments. An archive without an
// attachments directory yields an empty index.
func BuildCandidateIndex(fs afero.Fs, dir string) (CandidateIndex, error) {
	index := make(CandidateIndex)
	base := filepath.Join(dir, AttachmentsDir)

	if _, err := fs.Stat(base); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return index, nil
		}
		return nil, fmt.Errorf("failed to stat attachments directory: %w", err)
	}

	err := afero.Walk(fs, base, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		index[filepath.ToSlash(rel)] = p
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to index attachments: %w", err)
	}
	return index, nil
}

// Lookup finds the file for an attachment version. When the exact version is
// missing the highest version stored for the attachment is used.
func (idx CandidateIndex) Lookup(containerID, attachmentID string, version int) (string, bool) {
	dir := path.Join(AttachmentsDir, containerID, attachmentID)
	if p, ok := idx[path.Join(dir, strconv.Itoa(version))]; ok {
		return p, true
	}

	best, bestVersion := "", -1
	for rel, p := range idx {
		if path.Dir(rel) != dir {
			continue
		}
		v, err := strconv.Atoi(path.Base(rel))
		if err != nil {
			continue
		}
		if v > bestVersion {
			best, bestVersion = p, v
		}
	}
	return best, bestVersion >= 0
}

// AttachmentPaths returns, per page ID, the file name → extracted path map of
// the page's attachments. Attachments whose file is absent from the archive
// are left out.
func AttachmentPaths(exp *Export, index CandidateIndex) map[string]map[string]string {
	out := make(map[string]map[string]string, len(exp.Pages))
	for pageID, page := range exp.Pages {
		files := make(map[string]string, len(page.AttachmentIDs))
		for _, id := range page.AttachmentIDs {
			a := exp.Attachments[id]

			containers := []string{pageID}
			if a.ContainerID != "" && a.ContainerID != pageID {
				containers = append([]string{a.ContainerID}, containers...)
			}
			for _, container := range containers {
				if p, ok := index.Lookup(container, a.ID, a.Version); ok {
					files[a.FileName] = p
					break
				}
			}
		}
		out[pageID] = files
	}
	return out
}

// SpaceFiles flattens per-page attachment maps into one map keyed by
// lower-cased base name, used for best-effort matching of references that no
// page-level map could resolve. Pages are visited in ID order and the first
// match wins.
func SpaceFiles(perPage map[string]map[string]string) map[string]string {
	ids := make([]string, 0, len(perPage))
	for id := range perPage {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make(map[string]string)
	for _, id := range ids {
		names := make([]string, 0, len(perPage[id]))
		for name := range perPage[id] {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			key := strings.ToLower(path.Base(name))
			if _, ok := out[key]; !ok {
				out[key] = perPage[id][name]
			}
		}
	}
	return out
}
