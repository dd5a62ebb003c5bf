// Package markup rewrites storage-format markup (XHTML with ac: and ri:
// macros) into the normalized HTML stored on pages.
//
// Links and images whose targets are only known once the whole export has
// been placed are emitted as placeholders: page links point at
// "page-ref:<title>" and attachments at "attachment-ref:<file name>".
package markup

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Placeholder prefixes.
const (
	PageRefPrefix       = "page-ref:"
	AttachmentRefPrefix = "attachment-ref:"
)

// Degradation kinds.
const (
	DegradationUnknownEmoticon  = "unknown_emoticon"
	DegradationUnsupportedMacro = "unsupported_macro"
	DegradationUnclassifiedLink = "unclassified_link"
	DegradationCrossSpaceLink   = "cross_space_link"
	DegradationReservedTarget   = "reserved_target"
)

// reservedPrefixes are the targets the import pipeline gives meaning to.
// Authored links and images may not use them.
var reservedPrefixes = []string{
	PageRefPrefix,
	AttachmentRefPrefix,
	"page:",
	"attachment:",
}

// isReservedTarget reports whether an authored href or src uses a target
// prefix owned by the import pipeline.
func isReservedTarget(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	for _, prefix := range reservedPrefixes {
		if strings.HasPrefix(v, prefix) {
			return true
		}
	}
	return false
}

// Options configures a transform.
type Options struct {
	// SpaceKey is the key of the exported space. Page links naming a
	// different space key are degraded to text. When empty, every link that
	// names a space key is treated as pointing outside the export.
	SpaceKey string
}

// Degradation records an item that was replaced by a fallback.
type Degradation struct {
	Kind   string
	Detail string
}

// Output is the result of transforming one page body.
type Output struct {
	HTML string

	// PageRefs and AttachmentRefs list the placeholder targets in first-seen
	// order without duplicates.
	PageRefs       []string
	AttachmentRefs []string

	Degradations []Degradation
}

var (
	cdataPattern = regexp.MustCompile(`(?s)<!\[CDATA\[(.*?)\]\]>`)

	// Self-closing namespaced elements would otherwise swallow their
	// following siblings in the HTML parser.
	selfClosingPattern = regexp.MustCompile(
		`<((?:ac|ri):[A-Za-z0-9-]+)((?:\s+[^\s=/>]+(?:\s*=\s*(?:"[^"]*"|'[^']*'|[^\s>]+))?)*)\s*/>`)
)

// preprocess turns storage markup into something the HTML5 parser reads as
// the intended tree.
func preprocess(raw string) string {
	out := cdataPattern.ReplaceAllStringFunc(raw, func(m string) string {
		return html.EscapeString(cdataPattern.FindStringSubmatch(m)[1])
	})
	return selfClosingPattern.ReplaceAllString(out, "<$1$2></$1>")
}

// rule is one rewrite step. Rules run in the order of the rules slice because
// later rules depend on the output of earlier ones.
type rule struct {
	name  string
	apply func(t *transform)
}

var rules = []rule{
	{"reserved targets", (*transform).reservedTargets},
	{"code", (*transform).codeBlocks},
	{"callouts", (*transform).callouts},
	{"panels", (*transform).panels},
	{"expand", (*transform).expands},
	{"toc", (*transform).tableOfContents},
	{"page links", (*transform).pageLinks},
	{"attachments", (*transform).attachments},
	{"urls", (*transform).urls},
	{"mentions", (*transform).mentions},
	{"emoticons", (*transform).emoticons},
	{"task lists", (*transform).taskLists},
	{"status", (*transform).statuses},
	{"noformat", (*transform).noFormat},
	{"layout", (*transform).layouts},
	{"cleanup", (*transform).cleanup},
}

// transform carries the state of one Transform call.
type transform struct {
	body *goquery.Selection
	out  *Output
	opts Options

	seenPages       map[string]bool
	seenAttachments map[string]bool
}

// Transform rewrites one page body with default options.
func Transform(raw string) (*Output, error) {
	return TransformWith(raw, Options{})
}

// TransformWith rewrites one page body.
func TransformWith(raw string, opts Options) (*Output, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(
		"<html><body>" + preprocess(raw) + "</body></html>"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse markup: %w", err)
	}

	t := &transform{
		body:            doc.Find("body").First(),
		out:             &Output{},
		opts:            opts,
		seenPages:       make(map[string]bool),
		seenAttachments: make(map[string]bool),
	}
	for _, r := range rules {
		r.apply(t)
	}

	rendered, err := t.body.Html()
	if err != nil {
		return nil, fmt.Errorf("failed to render markup: %w", err)
	}
	t.out.HTML = strings.TrimSpace(rendered)
	return t.out, nil
}

// FromPlainText renders a body that is not in the storage format as escaped
// paragraphs, one per blank-line separated block.
func FromPlainText(raw string) string {
	var b strings.Builder
	for _, block := range strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n\n") {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		lines := strings.Split(block, "\n")
		for i := range lines {
			lines[i] = html.EscapeString(lines[i])
		}
		b.WriteString("<p>")
		b.WriteString(strings.Join(lines, "<br/>"))
		b.WriteString("</p>")
	}
	return b.String()
}

func (t *transform) degrade(kind, format string, args ...interface{}) {
	t.out.Degradations = append(t.out.Degradations, Degradation{
		Kind:   kind,
		Detail: fmt.Sprintf(format, args...),
	})
}

func (t *transform) notePageRef(title string) {
	if !t.seenPages[title] {
		t.seenPages[title] = true
		t.out.PageRefs = append(t.out.PageRefs, title)
	}
}

func (t *transform) noteAttachmentRef(name string) {
	if !t.seenAttachments[name] {
		t.seenAttachments[name] = true
		t.out.AttachmentRefs = append(t.out.AttachmentRefs, name)
	}
}
