package export

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/afero"
)

// ManifestName is the name of the object dump at the archive root.
const ManifestName = "entities.xml"

// cancelCheckInterval is how many objects are decoded between context checks.
const cancelCheckInterval = 256

// Parser decodes extracted archives.
type Parser struct {
	logger hclog.Logger
}

// NewParser creates a parser. A nil logger discards output.
func NewParser(logger hclog.Logger) *Parser {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Parser{logger: logger.Named("export-parser")}
}

// Parse decodes the archive extracted at dir using a silent parser.
func Parse(ctx context.Context, fs afero.Fs, dir string) (*Export, error) {
	return NewParser(nil).Parse(ctx, fs, dir)
}

// manifest holds every decoded record before filtering.
type manifest struct {
	pages        []*pageRecord
	bodies       map[string]BodyContent
	attachments  []*attachmentRecord
	spaces       []*SpaceInfo
	spaceDescIDs map[string]string
	descriptions map[string]*spaceDescription
	skipped      map[string]int

	// dropped counts non-current and superseded pages and attachments. They
	// are discarded before their shape is checked.
	dropped int
}

// Parse reads dir/entities.xml and returns the surviving records. The
// context is checked while decoding so large manifests can be abandoned.
func (p *Parser) Parse(ctx context.Context, fs afero.Fs, dir string) (*Export, error) {
	path := filepath.Join(dir, ManifestName)
	f, err := fs.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &MalformedArchiveError{Path: dir, Reason: ManifestName + " not found"}
		}
		return nil, &MalformedArchiveError{Path: dir, Reason: "failed to open " + ManifestName, Err: err}
	}
	defer f.Close()

	m, err := p.decode(ctx, f)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return nil, err
		}
		return nil, &MalformedArchiveError{Path: path, Reason: "failed to decode manifest", Err: err}
	}

	exp := m.assemble()

	p.logger.Debug("parsed manifest",
		"path", path,
		"pages", len(exp.Pages),
		"bodies", len(exp.Bodies),
		"attachments", len(exp.Attachments),
		"dropped", exp.Dropped,
		"has_space", exp.Space != nil,
	)
	for class, n := range m.skipped {
		p.logger.Trace("skipped unsupported objects", "class", class, "count", n)
	}

	return exp, nil
}

func (p *Parser) decode(ctx context.Context, r io.Reader) (*manifest, error) {
	m := &manifest{
		bodies:       make(map[string]BodyContent),
		spaceDescIDs: make(map[string]string),
		descriptions: make(map[string]*spaceDescription),
		skipped:      make(map[string]int),
	}

	dec := xml.NewDecoder(r)
	sawRoot := false
	objects := 0
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		se, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		if !sawRoot {
			sawRoot = true
			if se.Name.Local == "object" {
				return nil, fmt.Errorf("manifest has no root element")
			}
			continue
		}
		if se.Name.Local != "object" {
			if err := dec.Skip(); err != nil {
				return nil, err
			}
			continue
		}

		objects++
		if objects%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		var obj xmlObject
		if err := dec.DecodeElement(&obj, &se); err != nil {
			return nil, err
		}
		if err := m.add(&obj); err != nil {
			return nil, err
		}
	}

	if !sawRoot {
		return nil, fmt.Errorf("manifest is empty")
	}
	return m, ctx.Err()
}

func (m *manifest) add(o *xmlObject) error {
	if (o.Class == classPage || o.Class == classAttachment) && !o.current() {
		m.dropped++
		return nil
	}

	switch o.Class {
	case classPage:
		rec, err := decodePage(o)
		if err != nil {
			return err
		}
		m.pages = append(m.pages, rec)

	case classBodyContent:
		body, err := decodeBodyContent(o)
		if err != nil {
			return err
		}
		m.bodies[body.ID] = *body

	case classAttachment:
		rec, err := decodeAttachment(o)
		if err != nil {
			return err
		}
		m.attachments = append(m.attachments, rec)

	case classSpace:
		info, descID, err := decodeSpace(o)
		if err != nil {
			return err
		}
		m.spaces = append(m.spaces, info)
		if descID != "" {
			m.spaceDescIDs[info.ID] = descID
		}

	case classSpaceDescription:
		desc, err := decodeSpaceDescription(o)
		if err != nil {
			return err
		}
		m.descriptions[desc.id] = desc

	default:
		m.skipped[o.Class]++
	}
	return nil
}

// assemble filters the decoded records and joins pages with their bodies and
// attachments.
func (m *manifest) assemble() *Export {
	exp := &Export{
		Pages:       make(map[string]Page),
		TitleToID:   make(map[string]string),
		Attachments: make(map[string]Attachment),
		Bodies:      m.bodies,
		Dropped:     m.dropped,
	}

	// Bodies declare their owner; pages may or may not list them back.
	bodyByContent := make(map[string]string, len(m.bodies))
	for _, b := range m.bodies {
		if b.ContentID == "" {
			continue
		}
		if prev, ok := bodyByContent[b.ContentID]; !ok || b.ID > prev {
			bodyByContent[b.ContentID] = b.ID
		}
	}

	for _, rec := range m.attachments {
		exp.Attachments[rec.ID] = rec.Attachment
	}

	byContainer := make(map[string][]string)
	for _, a := range exp.Attachments {
		if a.ContainerID != "" {
			byContainer[a.ContainerID] = append(byContainer[a.ContainerID], a.ID)
		}
	}

	for _, rec := range m.pages {
		page := rec.Page

		if len(rec.bodyIDs) > 0 {
			page.BodyID = rec.bodyIDs[0]
		} else {
			page.BodyID = bodyByContent[page.ID]
		}
		if body, ok := m.bodies[page.BodyID]; ok {
			page.Markup = body.Markup
			page.BodyFormat = body.Format
		} else {
			page.MissingBody = true
			page.BodyFormat = BodyFormatStorage
		}

		seen := make(map[string]bool)
		for _, id := range append(byContainer[page.ID], rec.attachmentIDs...) {
			if _, ok := exp.Attachments[id]; !ok || seen[id] {
				continue
			}
			seen[id] = true
			page.AttachmentIDs = append(page.AttachmentIDs, id)
		}
		sort.Strings(page.AttachmentIDs)

		if _, dup := exp.Pages[page.ID]; dup {
			continue
		}
		exp.Pages[page.ID] = page
		if _, taken := exp.TitleToID[page.Title]; !taken {
			exp.TitleToID[page.Title] = page.ID
		}
	}

	if len(m.spaces) > 0 {
		space := *m.spaces[0]
		if descID, ok := m.spaceDescIDs[space.ID]; ok {
			space.Description = m.describe(descID, bodyByContent)
		}
		exp.Space = &space
	}

	return exp
}

func (m *manifest) describe(descID string, bodyByContent map[string]string) string {
	if desc, ok := m.descriptions[descID]; ok {
		for _, id := range desc.bodyIDs {
			if body, ok := m.bodies[id]; ok {
				return body.Markup
			}
		}
	}
	if body, ok := m.bodies[bodyByContent[descID]]; ok {
		return body.Markup
	}
	return ""
}
