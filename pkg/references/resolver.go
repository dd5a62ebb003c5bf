// Package references resolves the placeholders left by the markup
// transformer once every page of the run has its final identifiers.
package references

import (
	"fmt"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/hashicorp-forge/hermes-import/pkg/markup"
)

// Resolved reference prefixes.
const (
	PagePrefix       = "page:"
	AttachmentPrefix = "attachment:"
)

// PageTarget identifies a page committed in this run.
type PageTarget struct {
	ID     string
	SlugID string
}

// TitleIndex maps page titles to their committed identifiers.
type TitleIndex map[string]PageTarget

// Backlink is a page-to-page reference discovered in content.
type Backlink struct {
	SourcePageID string
	TargetPageID string
}

// Resolution is the outcome of resolving one page.
type Resolution struct {
	HTML      string
	Backlinks []Backlink

	// UnresolvedPages lists page titles that were degraded to text.
	UnresolvedPages []string

	// UnresolvedAttachments lists file names left as placeholders for the
	// attachment pipeline.
	UnresolvedAttachments []string
}

// Resolve rewrites the placeholders in content. Page references to titles in
// pages become "page:<id>" links; others are replaced by their text.
// Attachment references matching files (by exact name or path suffix) become
// "attachment:<path>"; others are left in place.
func Resolve(pageID, content string, pages TitleIndex, files map[string]string) (*Resolution, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader("<html><body>" + content + "</body></html>"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse content: %w", err)
	}
	body := doc.Find("body").First()

	res := &Resolution{}
	seenBacklinks := make(map[string]bool)
	seenUnresolved := make(map[string]bool)

	body.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if !strings.HasPrefix(href, markup.PageRefPrefix) {
			return
		}
		title := strings.TrimPrefix(href, markup.PageRefPrefix)

		target, ok := pages[title]
		if !ok {
			if !seenUnresolved[title] {
				seenUnresolved[title] = true
				res.UnresolvedPages = append(res.UnresolvedPages, title)
			}
			s.ReplaceWithNodes(&html.Node{Type: html.TextNode, Data: s.Text()})
			return
		}

		s.SetAttr("href", PagePrefix+target.ID)
		s.SetAttr("data-page-id", target.ID)
		s.SetAttr("data-slug-id", target.SlugID)

		if target.ID != pageID && !seenBacklinks[target.ID] {
			seenBacklinks[target.ID] = true
			res.Backlinks = append(res.Backlinks, Backlink{SourcePageID: pageID, TargetPageID: target.ID})
		}
	})

	matcher := newFileMatcher(files)
	pending := make(map[string]bool)
	resolveAttr := func(s *goquery.Selection, key string) {
		v, _ := s.Attr(key)
		if !strings.HasPrefix(v, markup.AttachmentRefPrefix) {
			return
		}
		name := strings.TrimPrefix(v, markup.AttachmentRefPrefix)
		if p, ok := matcher.match(name); ok {
			s.SetAttr(key, AttachmentPrefix+p)
			return
		}
		if !pending[name] {
			pending[name] = true
			res.UnresolvedAttachments = append(res.UnresolvedAttachments, name)
		}
	}
	body.Find("a[href]").Each(func(_ int, s *goquery.Selection) { resolveAttr(s, "href") })
	body.Find("img[src]").Each(func(_ int, s *goquery.Selection) { resolveAttr(s, "src") })

	out, err := body.Html()
	if err != nil {
		return nil, fmt.Errorf("failed to render content: %w", err)
	}
	res.HTML = strings.TrimSpace(out)
	return res, nil
}

// fileMatcher looks up attachment files by exact name, then by path suffix.
type fileMatcher struct {
	files map[string]string
	names []string
}

func newFileMatcher(files map[string]string) *fileMatcher {
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)
	return &fileMatcher{files: files, names: names}
}

func (m *fileMatcher) match(name string) (string, bool) {
	if p, ok := m.files[name]; ok {
		return p, true
	}

	// References may carry a directory prefix the map does not, or the
	// reverse.
	for _, candidate := range m.names {
		if hasPathSuffix(name, candidate) || hasPathSuffix(candidate, name) {
			return m.files[candidate], true
		}
	}
	return "", false
}

// hasPathSuffix reports whether s ends with suffix on a path element
// boundary.
func hasPathSuffix(s, suffix string) bool {
	return suffix != "" && (s == suffix || strings.HasSuffix(s, "/"+suffix))
}
