package attachments

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/gabriel-vasile/mimetype"
	"github.com/hashicorp/go-hclog"
	"github.com/spf13/afero"
	"golang.org/x/net/html"

	"github.com/hashicorp-forge/hermes-import/pkg/docid"
	"github.com/hashicorp-forge/hermes-import/pkg/markup"
	"github.com/hashicorp-forge/hermes-import/pkg/models"
	"github.com/hashicorp-forge/hermes-import/pkg/references"
)

// Warning kinds.
const (
	WarningUnresolved   = "unresolved_attachment"
	WarningUploadFailed = "attachment_upload_failed"
)

// Warning reports an attachment reference that was dropped.
type Warning struct {
	Kind   string
	Name   string
	Detail string
}

// Input describes one page to process.
type Input struct {
	PageID      string
	SpaceID     string
	WorkspaceID string
	CreatorID   string

	HTML string

	// PageFiles maps the page's attachment file names to extracted paths.
	PageFiles map[string]string

	// SpaceFiles maps lower-cased base names of every attachment in the
	// export to extracted paths, for best-effort matching.
	SpaceFiles map[string]string
}

// Processed is the outcome of Process.
type Processed struct {
	HTML        string
	Attachments []models.Attachment
	Warnings    []Warning
}

// Pipeline uploads referenced files and rewrites references to their URLs.
type Pipeline struct {
	fs     afero.Fs
	store  Store
	ids    docid.Generator
	logger hclog.Logger
}

// NewPipeline creates a pipeline reading extracted files from fs.
func NewPipeline(fs afero.Fs, store Store, logger hclog.Logger) *Pipeline {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Pipeline{
		fs:     fs,
		store:  store,
		ids:    docid.NewRandomGenerator(),
		logger: logger.Named("attachments"),
	}
}

// upload is the result of storing one file for a page.
type upload struct {
	url string
	err error
}

// Process uploads every file the page references. Resolved "attachment:"
// targets are uploaded when they name a file in PageFiles or SpaceFiles; "attachment-ref:" placeholders are matched
// against the space-wide file map by base name. References that still cannot
// be served become dead: links are replaced by their text and images are
// removed. Only a cancelled context is returned as an error.
func (p *Pipeline) Process(ctx context.Context, in Input) (*Processed, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader("<html><body>" + in.HTML + "</body></html>"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse content: %w", err)
	}
	body := doc.Find("body").First()

	names := make(map[string]string, len(in.PageFiles))
	for name, p := range in.PageFiles {
		names[p] = name
	}

	// Only files extracted from the export may be uploaded.
	allowed := make(map[string]bool, len(in.PageFiles)+len(in.SpaceFiles))
	for _, p := range in.PageFiles {
		allowed[p] = true
	}
	for _, p := range in.SpaceFiles {
		allowed[p] = true
	}

	out := &Processed{}
	uploads := make(map[string]upload)
	warned := make(map[string]bool)

	process := func(s *goquery.Selection, key string) error {
		target, _ := s.Attr(key)

		var filePath, fileName string
		switch {
		case strings.HasPrefix(target, references.AttachmentPrefix):
			filePath = strings.TrimPrefix(target, references.AttachmentPrefix)
			fileName = names[filePath]
			if fileName == "" {
				fileName = path.Base(filePath)
			}
			if !allowed[filePath] {
				filePath = ""
			}
		case strings.HasPrefix(target, markup.AttachmentRefPrefix):
			fileName = strings.TrimPrefix(target, markup.AttachmentRefPrefix)
			filePath = in.SpaceFiles[strings.ToLower(path.Base(fileName))]
		default:
			return nil
		}

		if filePath == "" {
			p.warnOnce(out, warned, Warning{
				Kind:   WarningUnresolved,
				Name:   fileName,
				Detail: "no file in the export matches " + fileName,
			})
			deadReference(s)
			return nil
		}

		u, ok := uploads[filePath]
		if !ok {
			var row *models.Attachment
			row, u.err = p.upload(ctx, in, filePath, fileName)
			if u.err == nil {
				u.url = row.URL
				out.Attachments = append(out.Attachments, *row)
			}
			uploads[filePath] = u
		}
		if u.err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			p.warnOnce(out, warned, Warning{
				Kind:   WarningUploadFailed,
				Name:   fileName,
				Detail: u.err.Error(),
			})
			deadReference(s)
			return nil
		}

		s.SetAttr(key, u.url)
		return nil
	}

	var procErr error
	body.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		procErr = process(s, "href")
		return procErr == nil
	})
	if procErr == nil {
		body.Find("img[src]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
			procErr = process(s, "src")
			return procErr == nil
		})
	}
	if procErr != nil {
		return nil, procErr
	}

	rendered, err := body.Html()
	if err != nil {
		return nil, fmt.Errorf("failed to render content: %w", err)
	}
	out.HTML = strings.TrimSpace(rendered)
	return out, nil
}

func (p *Pipeline) warnOnce(out *Processed, warned map[string]bool, w Warning) {
	if warned[w.Kind+"\x00"+w.Name] {
		return
	}
	warned[w.Kind+"\x00"+w.Name] = true
	out.Warnings = append(out.Warnings, w)
}

// upload stores one file and returns its attachment row.
func (p *Pipeline) upload(ctx context.Context, in Input, filePath, fileName string) (*models.Attachment, error) {
	f, err := p.fs.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", filePath, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", filePath, err)
	}

	mtype, err := mimetype.DetectReader(f)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to detect content type of %s: %w", filePath, err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to rewind %s: %w", filePath, err)
	}

	ext := strings.ToLower(filepath.Ext(fileName))
	if ext == "" {
		ext = mtype.Extension()
	}

	id := p.ids.NewUUID().String()
	key := path.Join(in.SpaceID, id, sanitizeFilename(fileName))

	url, err := p.store.Put(ctx, key, f, info.Size(), mtype.String())
	if err != nil {
		return nil, err
	}

	p.logger.Debug("uploaded attachment",
		"page_id", in.PageID,
		"file", fileName,
		"size", info.Size(),
		"mime_type", mtype.String(),
	)

	return &models.Attachment{
		ID:          id,
		FileName:    fileName,
		FilePath:    key,
		FileSize:    info.Size(),
		FileExt:     strings.TrimPrefix(ext, "."),
		MimeType:    mtype.String(),
		URL:         url,
		PageID:      in.PageID,
		SpaceID:     in.SpaceID,
		WorkspaceID: in.WorkspaceID,
		CreatorID:   in.CreatorID,
	}, nil
}

// deadReference replaces a link with its text and removes an image.
func deadReference(s *goquery.Selection) {
	if goquery.NodeName(s) == "img" {
		s.Remove()
		return
	}
	s.ReplaceWithNodes(&html.Node{Type: html.TextNode, Data: s.Text()})
}
