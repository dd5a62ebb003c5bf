package importer

import (
	"errors"

	"github.com/hashicorp-forge/hermes-import/pkg/export"
)

// Fatal import failures. Every error returned by Run matches at most one of
// these with errors.Is and carries the underlying cause in its message.
var (
	// ErrMalformedArchive means the manifest is missing, unparsable or holds
	// records of the wrong shape.
	ErrMalformedArchive = export.ErrMalformedArchive

	// ErrNoPagesFound means no page survived filtering.
	ErrNoPagesFound = errors.New("no pages found")

	// ErrNoSpaceInfoFound means a space import found no space record.
	ErrNoSpaceInfoFound = errors.New("no space info found")

	// ErrOrphanedPages means the strict orphan policy rejected the archive.
	ErrOrphanedPages = errors.New("orphaned pages")

	// ErrTransaction means the commit failed and was rolled back.
	ErrTransaction = errors.New("import transaction failed")
)
