package export

import (
	"strconv"
	"strings"
)

// Object classes the parser understands. Objects of any other class are
// skipped.
const (
	classPage             = "Page"
	classBodyContent      = "BodyContent"
	classAttachment       = "Attachment"
	classSpace            = "Space"
	classSpaceDescription = "SpaceDescription"
)

// xmlObject is one <object class="..."> element of the manifest.
type xmlObject struct {
	Class       string          `xml:"class,attr"`
	ID          *xmlID          `xml:"id"`
	Properties  []xmlProperty   `xml:"property"`
	Collections []xmlCollection `xml:"collection"`
}

// xmlID is an <id name="id">123</id> element.
type xmlID struct {
	Name  string `xml:"name,attr"`
	Value string `xml:",chardata"`
}

// xmlProperty is either a scalar (<property name="title">Home</property>) or
// a reference to another object (<property name="parent" class="Page"><id
// name="id">1</id></property>).
type xmlProperty struct {
	Name  string `xml:"name,attr"`
	Class string `xml:"class,attr"`
	ID    *xmlID `xml:"id"`
	Value string `xml:",chardata"`
}

// xmlCollection is a <collection name="..."> of references.
type xmlCollection struct {
	Name     string       `xml:"name,attr"`
	Elements []xmlElement `xml:"element"`
}

type xmlElement struct {
	Class string `xml:"class,attr"`
	ID    *xmlID `xml:"id"`
}

func (o *xmlObject) id() string {
	if o.ID == nil {
		return ""
	}
	return strings.TrimSpace(o.ID.Value)
}

func (o *xmlObject) property(name string) *xmlProperty {
	for i := range o.Properties {
		if o.Properties[i].Name == name {
			return &o.Properties[i]
		}
	}
	return nil
}

// text returns a scalar property. Missing properties read as "".
func (o *xmlObject) text(name string) string {
	p := o.property(name)
	if p == nil || p.ID != nil {
		return ""
	}
	return p.Value
}

// ref returns the ID a reference property points at, or "".
func (o *xmlObject) ref(name string) string {
	p := o.property(name)
	if p == nil || p.ID == nil {
		return ""
	}
	return strings.TrimSpace(p.ID.Value)
}

// integer parses an optional integer property.
func (o *xmlObject) integer(name string) (*int, error) {
	raw := strings.TrimSpace(o.text(name))
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return nil, &ShapeError{
			Class:  o.Class,
			ID:     o.id(),
			Reason: "property " + name + " is not an integer: " + strconv.Quote(raw),
		}
	}
	return &n, nil
}

// collection returns the IDs referenced by a collection, in document order.
func (o *xmlObject) collection(name string) []string {
	for _, c := range o.Collections {
		if c.Name != name {
			continue
		}
		ids := make([]string, 0, len(c.Elements))
		for _, e := range c.Elements {
			if e.ID == nil {
				continue
			}
			if id := strings.TrimSpace(e.ID.Value); id != "" {
				ids = append(ids, id)
			}
		}
		return ids
	}
	return nil
}

// status reads contentStatus. Manifests from older exports omit it, in which
// case the record is current.
func (o *xmlObject) status() Status {
	s := strings.TrimSpace(o.text("contentStatus"))
	if s == "" {
		return StatusCurrent
	}
	return Status(s)
}

// current reports whether the record is the live version of its content.
// Drafts, deleted and historical records, and any record pointing at an
// original version, are not.
func (o *xmlObject) current() bool {
	return o.status() == StatusCurrent && o.ref("originalVersion") == ""
}

func (o *xmlObject) shapeError(reason string) error {
	return &ShapeError{Class: o.Class, ID: o.id(), Reason: reason}
}

// pageRecord is a decoded Page object before filtering.
type pageRecord struct {
	Page
	bodyIDs       []string
	attachmentIDs []string
}

// attachmentRecord is a decoded current Attachment object.
type attachmentRecord struct {
	Attachment
}

// spaceDescription is a decoded SpaceDescription object.
type spaceDescription struct {
	id      string
	bodyIDs []string
}

func decodePage(o *xmlObject) (*pageRecord, error) {
	if o.id() == "" {
		return nil, o.shapeError("missing id")
	}
	title := o.text("title")
	if strings.TrimSpace(title) == "" {
		return nil, o.shapeError("missing title")
	}
	position, err := o.integer("position")
	if err != nil {
		return nil, err
	}
	version, err := o.integer("version")
	if err != nil {
		return nil, err
	}

	rec := &pageRecord{
		Page: Page{
			ID:                o.id(),
			Title:             title,
			ParentID:          o.ref("parent"),
			Position:          position,
			Status:            o.status(),
			OriginalVersionID: o.ref("originalVersion"),
		},
		bodyIDs:       o.collection("bodyContents"),
		attachmentIDs: o.collection("attachments"),
	}
	if version != nil {
		rec.Version = *version
	}
	return rec, nil
}

func decodeBodyContent(o *xmlObject) (*BodyContent, error) {
	if o.id() == "" {
		return nil, o.shapeError("missing id")
	}
	bodyType, err := o.integer("bodyType")
	if err != nil {
		return nil, err
	}

	format := BodyFormatStorage
	if bodyType != nil && *bodyType != storageBodyType {
		format = BodyFormatOther
	}
	return &BodyContent{
		ID:        o.id(),
		Format:    format,
		Markup:    o.text("body"),
		ContentID: o.ref("content"),
	}, nil
}

func decodeAttachment(o *xmlObject) (*attachmentRecord, error) {
	if o.id() == "" {
		return nil, o.shapeError("missing id")
	}
	name := o.text("title")
	if name == "" {
		name = o.text("fileName")
	}
	if strings.TrimSpace(name) == "" {
		return nil, o.shapeError("missing file name")
	}
	version, err := o.integer("version")
	if err != nil {
		return nil, err
	}

	mimeType := o.text("contentType")
	if mimeType == "" {
		mimeType = o.text("mediaType")
	}

	rec := &attachmentRecord{
		Attachment: Attachment{
			ID:          o.id(),
			FileName:    name,
			MimeType:    strings.TrimSpace(mimeType),
			ContainerID: o.ref("containerContent"),
			Version:     1,
		},
	}
	if version != nil {
		rec.Version = *version
	}
	return rec, nil
}

// decodeSpace returns the space and the ID of its SpaceDescription, if the
// description is a reference.
func decodeSpace(o *xmlObject) (*SpaceInfo, string, error) {
	if o.id() == "" {
		return nil, "", o.shapeError("missing id")
	}
	info := &SpaceInfo{
		ID:         o.id(),
		Name:       o.text("name"),
		Key:        o.text("key"),
		HomePageID: o.ref("homePage"),
	}
	if info.Name == "" && info.Key == "" {
		return nil, "", o.shapeError("missing name and key")
	}
	descID := o.ref("description")
	if descID == "" {
		info.Description = o.text("description")
	}
	return info, descID, nil
}

func decodeSpaceDescription(o *xmlObject) (*spaceDescription, error) {
	if o.id() == "" {
		return nil, o.shapeError("missing id")
	}
	return &spaceDescription{id: o.id(), bodyIDs: o.collection("bodyContents")}, nil
}
