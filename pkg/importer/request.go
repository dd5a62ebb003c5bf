package importer

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// Mode selects how the archive is placed in the destination.
type Mode string

const (
	// ModeFull imports every page into an existing space, keeping the
	// archive's hierarchy.
	ModeFull Mode = "full"

	// ModeSpace creates a new space from the archive's space record. The home
	// page is left out and its children become root pages.
	ModeSpace Mode = "space"
)

// ParseMode parses a mode name.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeFull, ModeSpace:
		return m, nil
	default:
		return "", fmt.Errorf("unknown import mode %q (must be full or space)", s)
	}
}

// Request describes one import run.
type Request struct {
	// ArchiveDir is the extracted archive root holding entities.xml.
	ArchiveDir string
	Mode       Mode

	// SpaceID is the destination space in full mode.
	SpaceID     string
	WorkspaceID string
	CreatorID   string

	// AdminUserIDs are granted admin on a space created in space mode.
	AdminUserIDs []string
}

// Validate checks the request.
func (r *Request) Validate() error {
	var result *multierror.Error

	if r.ArchiveDir == "" {
		result = multierror.Append(result, fmt.Errorf("archive directory is required"))
	}
	if r.WorkspaceID == "" {
		result = multierror.Append(result, fmt.Errorf("workspace ID is required"))
	}
	switch r.Mode {
	case ModeFull:
		if r.SpaceID == "" {
			result = multierror.Append(result, fmt.Errorf("space ID is required in full mode"))
		}
	case ModeSpace:
		if r.SpaceID != "" {
			result = multierror.Append(result, fmt.Errorf("space ID must be empty in space mode"))
		}
	default:
		result = multierror.Append(result, fmt.Errorf("unknown import mode %q", r.Mode))
	}

	return result.ErrorOrNil()
}

// Warning kinds.
const (
	WarningOrphanedPage         = "orphaned_page"
	WarningPromotedPage         = "promoted_page"
	WarningMissingBody          = "missing_body"
	WarningNonStorageBody       = "non_storage_body"
	WarningUnresolvedLink       = "unresolved_link"
	WarningUnresolvedAttachment = "unresolved_attachment"
	WarningUploadFailed         = "attachment_upload_failed"
	WarningUnknownEmoticon      = "unknown_emoticon"
	WarningUnsupportedMacro     = "unsupported_macro"
	WarningUnclassifiedLink     = "unclassified_link"
	WarningCrossSpaceLink       = "cross_space_link"
	WarningReservedTarget       = "reserved_target"
	WarningPublishFailed        = "event_publish_failed"
)

// Warning is a degradation that did not stop the import.
type Warning struct {
	Kind      string `json:"kind" yaml:"kind"`
	PageID    string `json:"pageId,omitempty" yaml:"page_id,omitempty"`
	ArchiveID string `json:"archiveId,omitempty" yaml:"archive_id,omitempty"`
	Detail    string `json:"detail" yaml:"detail"`
}

// Result summarizes a successful run.
type Result struct {
	SpaceID   string `json:"spaceId" yaml:"space_id"`
	SpaceName string `json:"spaceName,omitempty" yaml:"space_name,omitempty"`
	SpaceSlug string `json:"spaceSlug,omitempty" yaml:"space_slug,omitempty"`

	PageCount        int      `json:"pageCount" yaml:"page_count"`
	CommittedPageIDs []string `json:"committedPageIds" yaml:"committed_page_ids"`
	AttachmentCount  int      `json:"attachmentCount" yaml:"attachment_count"`
	BacklinkCount    int      `json:"backlinkCount" yaml:"backlink_count"`

	// DroppedRecords counts manifest records filtered out as non-current.
	DroppedRecords int `json:"droppedRecords" yaml:"dropped_records"`

	Warnings []Warning `json:"warnings" yaml:"warnings"`
}

func (r *Result) warn(w Warning) {
	r.Warnings = append(r.Warnings, w)
}
