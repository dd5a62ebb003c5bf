package export

// Status is the lifecycle status of an exported content record.
type Status string

const (
	StatusCurrent    Status = "current"
	StatusHistorical Status = "historical"
	StatusDraft      Status = "draft"
	StatusDeleted    Status = "deleted"
)

// BodyFormat is the markup dialect of a body content record.
type BodyFormat string

const (
	// BodyFormatStorage is the XHTML storage format with ac:/ri: macros.
	BodyFormatStorage BodyFormat = "storage"

	// BodyFormatOther covers wiki markup and any format the transformer
	// does not understand.
	BodyFormatOther BodyFormat = "other"
)

// storageBodyType is the numeric bodyType the manifest uses for the storage
// format.
const storageBodyType = 2

// Page is a surviving page record.
type Page struct {
	ID    string
	Title string

	// ParentID is the archive ID of the parent page, or "" for none.
	ParentID string

	// Position is the archive-native sibling ordering hint. Nil positions
	// sort after every explicit position.
	Position *int

	// BodyID references the page's BodyContent record.
	BodyID string

	// Markup is the raw body resolved through BodyID. It is empty when the
	// body could not be found (see MissingBody).
	Markup      string
	BodyFormat  BodyFormat
	MissingBody bool

	// AttachmentIDs is the union of attachments that name this page as their
	// container and attachments listed in the page's own collection, sorted.
	AttachmentIDs []string

	Status            Status
	OriginalVersionID string
	Version           int
}

// BodyContent is the markup of a page or space description.
type BodyContent struct {
	ID        string
	Format    BodyFormat
	Markup    string
	ContentID string
}

// Attachment is a file attached to a page.
type Attachment struct {
	ID          string
	FileName    string
	MimeType    string
	ContainerID string
	Version     int
}

// SpaceInfo describes the exported space.
type SpaceInfo struct {
	ID          string
	Name        string
	Key         string
	HomePageID  string
	Description string
}

// Export is the in-memory result of parsing an archive.
type Export struct {
	Pages       map[string]Page
	TitleToID   map[string]string
	Space       *SpaceInfo
	Attachments map[string]Attachment
	Bodies      map[string]BodyContent

	// Dropped counts records filtered out as non-current or superseded.
	Dropped int
}
